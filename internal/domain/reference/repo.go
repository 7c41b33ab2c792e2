package reference

import (
	"context"
)

// Repository is the storage surface the bulk reconciliation engine needs.
// Write methods issued inside WithTx share one transaction, so a batch
// either fully commits or fully rolls back.
type Repository interface {
	// WithTx runs fn inside a single transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// ExistingKeys returns the subset of keys already present in the
	// entity's table, as a set keyed by Key.hash.
	ExistingKeys(ctx context.Context, e Entity, keys []Key) (map[string]bool, error)

	// InsertBatch assigns identifiers from the entity's counter and inserts
	// every record in one statement batch.
	InsertBatch(ctx context.Context, e Entity, recs []*Record) error

	// Rename applies per-row key updates and returns the number of rows
	// changed.
	Rename(ctx context.Context, e Entity, changes []Rename) (int, error)

	// SetActive applies per-row active-flag (and optional remarks) updates.
	SetActive(ctx context.Context, e Entity, changes []StatusChange) error

	// List returns a page of records ordered by natural key, plus the total
	// row count.
	List(ctx context.Context, e Entity, limit, offset int) ([]*Record, int, error)
}
