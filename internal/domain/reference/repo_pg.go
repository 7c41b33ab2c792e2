package reference

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sevacare/refdata/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// repoPG implements Repository on Postgres. Table and column names are
// interpolated into SQL text; they come from the static Entities registry,
// never from request input.
type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

func (r *repoPG) ExistingKeys(ctx context.Context, e Entity, keys []Key) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(keys) == 0 {
		return existing, nil
	}

	var (
		rows pgx.Rows
		err  error
	)
	if len(e.KeyColumns) == 1 {
		vals := make([]string, len(keys))
		for i, k := range keys {
			vals[i] = k[0]
		}
		rows, err = r.conn(ctx).Query(ctx, fmt.Sprintf(
			`SELECT %s FROM %s WHERE %s = ANY($1)`,
			e.KeyColumns[0], e.Table, e.KeyColumns[0]), vals)
	} else {
		rows, err = r.conn(ctx).Query(ctx, tupleInSQL(e, len(keys)), tupleArgs(keys)...)
	}
	if err != nil {
		return nil, fmt.Errorf("query existing %s keys: %w", e.Name, err)
	}
	defer rows.Close()

	width := len(e.KeyColumns)
	for rows.Next() {
		key := make(Key, width)
		dests := make([]interface{}, width)
		for i := range key {
			dests[i] = &key[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("scan existing %s key: %w", e.Name, err)
		}
		existing[key.hash()] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing %s keys: %w", e.Name, err)
	}
	return existing, nil
}

// tupleInSQL builds "SELECT k1,..,kn FROM t WHERE (k1,..,kn) IN ((..),..)"
// for composite-key entities.
func tupleInSQL(e Entity, count int) string {
	width := len(e.KeyColumns)
	tuples := make([]string, count)
	arg := 1
	for i := range tuples {
		ph := make([]string, width)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", arg)
			arg++
		}
		tuples[i] = "(" + strings.Join(ph, ",") + ")"
	}
	cols := strings.Join(e.KeyColumns, ", ")
	return fmt.Sprintf(`SELECT %s FROM %s WHERE (%s) IN (%s)`,
		cols, e.Table, cols, strings.Join(tuples, ","))
}

func tupleArgs(keys []Key) []interface{} {
	var args []interface{}
	for _, k := range keys {
		for _, v := range k {
			args = append(args, v)
		}
	}
	return args
}

func (r *repoPG) InsertBatch(ctx context.Context, e Entity, recs []*Record) error {
	if len(recs) == 0 {
		return nil
	}

	// Reserve a contiguous identifier block from the entity's counter row.
	// Running inside the same transaction as the insert keeps concurrent
	// creates from racing on identifier assignment.
	count := int64(len(recs))
	var last int64
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ref_counters (entity, last_id) VALUES ($1, $2)
		ON CONFLICT (entity) DO UPDATE SET last_id = ref_counters.last_id + EXCLUDED.last_id
		RETURNING last_id`, e.Name, count).Scan(&last)
	if err != nil {
		return fmt.Errorf("advance %s counter: %w", e.Name, err)
	}
	first := last - count + 1

	width := len(e.KeyColumns)
	ph := make([]string, width+5)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf(`INSERT INTO %s (id, %s, remarks, active, created_at, updated_at) VALUES (%s)`,
		e.Table, strings.Join(e.KeyColumns, ", "), strings.Join(ph, ","))

	batch := &pgx.Batch{}
	for i, rec := range recs {
		rec.ID = first + int64(i)
		args := make([]interface{}, 0, width+5)
		args = append(args, rec.ID)
		for _, v := range rec.Key {
			args = append(args, v)
		}
		args = append(args, rec.Remarks, boolToFlag(rec.Active), rec.CreatedAt, rec.UpdatedAt)
		batch.Queue(sql, args...)
	}

	br := r.conn(ctx).SendBatch(ctx, batch)
	for range recs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert %s batch: %w", e.Name, err)
		}
	}
	return br.Close()
}

func (r *repoPG) Rename(ctx context.Context, e Entity, changes []Rename) (int, error) {
	if len(changes) == 0 {
		return 0, nil
	}

	width := len(e.KeyColumns)
	set := make([]string, width)
	for i, c := range e.KeyColumns {
		set[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	where := make([]string, width)
	for i, c := range e.KeyColumns {
		where[i] = fmt.Sprintf("%s = $%d", c, width+2+i)
	}
	sql := fmt.Sprintf(`UPDATE %s SET %s, updated_at = $%d WHERE %s`,
		e.Table, strings.Join(set, ", "), width+1, strings.Join(where, " AND "))

	now := Now()
	batch := &pgx.Batch{}
	for _, ch := range changes {
		args := make([]interface{}, 0, 2*width+1)
		for _, v := range ch.To {
			args = append(args, v)
		}
		args = append(args, now)
		for _, v := range ch.From {
			args = append(args, v)
		}
		batch.Queue(sql, args...)
	}

	br := r.conn(ctx).SendBatch(ctx, batch)
	updated := 0
	for range changes {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return updated, fmt.Errorf("rename %s row: %w", e.Name, err)
		}
		updated += int(tag.RowsAffected())
	}
	return updated, br.Close()
}

func (r *repoPG) SetActive(ctx context.Context, e Entity, changes []StatusChange) error {
	if len(changes) == 0 {
		return nil
	}

	width := len(e.KeyColumns)
	now := Now()
	batch := &pgx.Batch{}
	for _, ch := range changes {
		var (
			set  string
			args []interface{}
		)
		if ch.Remarks != nil {
			set = "active = $1, remarks = $2, updated_at = $3"
			args = append(args, boolToFlag(ch.Active), ch.Remarks, now)
		} else {
			set = "active = $1, updated_at = $2"
			args = append(args, boolToFlag(ch.Active), now)
		}
		where := make([]string, width)
		for i, c := range e.KeyColumns {
			where[i] = fmt.Sprintf("%s = $%d", c, len(args)+1+i)
		}
		for _, v := range ch.Key {
			args = append(args, v)
		}
		batch.Queue(fmt.Sprintf(`UPDATE %s SET %s WHERE %s`,
			e.Table, set, strings.Join(where, " AND ")), args...)
	}

	br := r.conn(ctx).SendBatch(ctx, batch)
	for range changes {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("set %s active flag: %w", e.Name, err)
		}
	}
	return br.Close()
}

func (r *repoPG) List(ctx context.Context, e Entity, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, e.Table)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s rows: %w", e.Name, err)
	}

	cols := strings.Join(e.KeyColumns, ", ")
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
		`SELECT id, %s, remarks, active, created_at, updated_at FROM %s ORDER BY %s LIMIT $1 OFFSET $2`,
		cols, e.Table, cols), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s rows: %w", e.Name, err)
	}
	defer rows.Close()

	width := len(e.KeyColumns)
	var items []*Record
	for rows.Next() {
		rec := &Record{Key: make(Key, width)}
		var flag int16
		dests := make([]interface{}, 0, width+5)
		dests = append(dests, &rec.ID)
		for i := range rec.Key {
			dests = append(dests, &rec.Key[i])
		}
		dests = append(dests, &rec.Remarks, &flag, &rec.CreatedAt, &rec.UpdatedAt)
		if err := rows.Scan(dests...); err != nil {
			return nil, 0, fmt.Errorf("scan %s row: %w", e.Name, err)
		}
		rec.Active = flagToBool(flag)
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate %s rows: %w", e.Name, err)
	}
	return items, total, nil
}

// The active column is a 0/1 smallint rather than a boolean.

func boolToFlag(b bool) int16 {
	if b {
		return 1
	}
	return 0
}

func flagToBool(f int16) bool { return f != 0 }
