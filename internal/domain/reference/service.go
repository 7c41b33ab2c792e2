package reference

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sevacare/refdata/internal/platform/upload"
)

// ErrNoValidRows is returned when an upload contains no processable rows
// after blank and malformed rows have been dropped.
var ErrNoValidRows = errors.New("no valid rows in upload")

// Service implements the bulk reconciliation workflow: diff uploaded rows
// against existing storage by natural key and act only on the subset that
// passes validation. One Service instance drives all entity types.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// keyFromRow pulls the entity's key tuple out of a row. ok is false when any
// component is blank.
func keyFromRow(row upload.Row, cols []string) (Key, bool) {
	key := make(Key, len(cols))
	for i, c := range cols {
		v := row.Get(c)
		if v == "" {
			return nil, false
		}
		key[i] = v
	}
	return key, true
}

// BulkCreate inserts every uploaded key not already present. Duplicate keys
// within the upload are coalesced; keys already in storage are reported back
// rather than inserted. The existence check and the insert run in one
// transaction, so the batch fully commits or fully rolls back.
func (s *Service) BulkCreate(ctx context.Context, e Entity, rows []upload.Row) (*CreateResult, error) {
	seen := make(map[string]bool)
	var keys []Key
	for _, row := range rows {
		key, ok := keyFromRow(row, e.KeyColumns)
		if !ok {
			continue
		}
		if seen[key.hash()] {
			continue
		}
		seen[key.hash()] = true
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, ErrNoValidRows
	}

	result := &CreateResult{}
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.ExistingKeys(ctx, e, keys)
		if err != nil {
			return err
		}

		now := Now()
		var recs []*Record
		for _, key := range keys {
			if existing[key.hash()] {
				result.AlreadyPresent = append(result.AlreadyPresent, key.Display())
				continue
			}
			recs = append(recs, &Record{
				Key:       key,
				Active:    true,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}

		if err := s.repo.InsertBatch(ctx, e, recs); err != nil {
			return err
		}
		result.Inserted = len(recs)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bulk create %s: %w", e.Name, err)
	}

	s.logger.Info().
		Str("entity", e.Name).
		Int("inserted", result.Inserted).
		Int("already_present", len(result.AlreadyPresent)).
		Msg("bulk create")
	return result, nil
}

// BulkRename applies current-name to new-name updates. A row is applied only
// when its current key exists, its desired key does not, and the two differ;
// everything else is reported back as skipped, by value, without being
// written.
func (s *Service) BulkRename(ctx context.Context, e Entity, rows []upload.Row) (*RenameResult, error) {
	type candidate struct {
		row  upload.Row
		from Key
		to   Key
	}

	newCols := e.RenameColumns()
	var candidates []candidate
	for _, row := range rows {
		from, ok := keyFromRow(row, e.KeyColumns)
		if !ok {
			continue
		}
		to, ok := keyFromRow(row, newCols)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{row: row, from: from, to: to})
	}
	if len(candidates) == 0 {
		return nil, ErrNoValidRows
	}

	result := &RenameResult{}
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		froms := make([]Key, len(candidates))
		tos := make([]Key, len(candidates))
		for i, c := range candidates {
			froms[i] = c.from
			tos[i] = c.to
		}

		currentExists, err := s.repo.ExistingKeys(ctx, e, froms)
		if err != nil {
			return err
		}
		desiredExists, err := s.repo.ExistingKeys(ctx, e, tos)
		if err != nil {
			return err
		}

		var changes []Rename
		for _, c := range candidates {
			if !currentExists[c.from.hash()] || desiredExists[c.to.hash()] || c.from.Equal(c.to) {
				result.Skipped = append(result.Skipped, c.row)
				continue
			}
			changes = append(changes, Rename{From: c.from, To: c.to})
		}

		updated, err := s.repo.Rename(ctx, e, changes)
		if err != nil {
			return err
		}
		result.Updated = updated
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bulk rename %s: %w", e.Name, err)
	}

	s.logger.Info().
		Str("entity", e.Name).
		Int("updated", result.Updated).
		Int("skipped", len(result.Skipped)).
		Msg("bulk rename")
	return result, nil
}

// BulkSuspend applies active-flag (and optional remarks) updates to every
// uploaded key that exists; unknown keys are reported and left untouched.
// The operation is idempotent: re-suspending a suspended row is still an
// update.
func (s *Service) BulkSuspend(ctx context.Context, e Entity, rows []upload.Row) (*SuspendResult, error) {
	type candidate struct {
		key     Key
		active  bool
		remarks *string
	}

	var candidates []candidate
	for _, row := range rows {
		key, ok := keyFromRow(row, e.KeyColumns)
		if !ok {
			continue
		}
		active, ok := parseFlag(row.Get("active_flag"))
		if !ok {
			continue
		}
		c := candidate{key: key, active: active}
		if e.SuspendRemarks {
			if remarks := row.Get("remarks"); remarks != "" {
				c.remarks = &remarks
			}
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil, ErrNoValidRows
	}

	result := &SuspendResult{}
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		keys := make([]Key, len(candidates))
		for i, c := range candidates {
			keys[i] = c.key
		}
		existing, err := s.repo.ExistingKeys(ctx, e, keys)
		if err != nil {
			return err
		}

		var changes []StatusChange
		for _, c := range candidates {
			if !existing[c.key.hash()] {
				result.NotFound = append(result.NotFound, c.key.Display())
				continue
			}
			changes = append(changes, StatusChange{Key: c.key, Active: c.active, Remarks: c.remarks})
			result.Updated = append(result.Updated, c.key.Display())
		}

		return s.repo.SetActive(ctx, e, changes)
	})
	if err != nil {
		return nil, fmt.Errorf("bulk suspend %s: %w", e.Name, err)
	}

	s.logger.Info().
		Str("entity", e.Name).
		Int("updated", len(result.Updated)).
		Int("not_found", len(result.NotFound)).
		Msg("bulk suspend")
	return result, nil
}

// List returns a page of records for the entity.
func (s *Service) List(ctx context.Context, e Entity, limit, offset int) ([]*Record, int, error) {
	return s.repo.List(ctx, e, limit, offset)
}

// parseFlag accepts the 0/1 active-flag column. Anything else drops the row.
func parseFlag(v string) (bool, bool) {
	switch v {
	case "0":
		return false, true
	case "1":
		return true, true
	default:
		return false, false
	}
}
