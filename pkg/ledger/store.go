package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"k8s.io/klog"
)

// Store is the durable side of the gateway. Every Write runs inside a single RunInTx call.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, b Batch) error) error
	Close() error
}

// Batch is the view of a store inside one transaction.
type Batch interface {
	Exists(ctx context.Context, date time.Time, hash string) (bool, error)
	// Insert reports false when the store already holds the entry, for example because
	// another writer inserted it after Exists was checked.
	Insert(ctx context.Context, e *Entry) (bool, error)
}

type BunStore struct {
	db    *bun.DB
	table string
}

func NewBunStore(db *bun.DB, table string) *BunStore {
	if table == "" {
		table = DefaultTable
	}

	return &BunStore{db: db, table: table}
}

// Migrate creates the entries table and its indexes when missing.
func (s *BunStore) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*Entry)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create %s table: %w", s.table, err)
	}

	_, err = s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS ? ON ? (hash)", bun.Ident(s.table+"_hash_idx"), bun.Ident(s.table))
	if err != nil {
		return fmt.Errorf("failed to create hash index on %s: %w", s.table, err)
	}

	// rows written before the constraint existed may already collide, lookups still dedup in that case
	_, err = s.db.ExecContext(ctx, "CREATE UNIQUE INDEX IF NOT EXISTS ? ON ? (date, hash)", bun.Ident(s.table+"_date_hash_key"), bun.Ident(s.table))
	if err != nil {
		klog.Warningf("failed to create unique (date, hash) index on %s: %v", s.table, err)
	}

	return nil
}

func (s *BunStore) RunInTx(ctx context.Context, fn func(ctx context.Context, b Batch) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &bunBatch{tx: tx, table: s.table})
	})
}

func (s *BunStore) Close() error {
	return s.db.Close()
}

type bunBatch struct {
	tx    bun.Tx
	table string
}

func (b *bunBatch) Exists(ctx context.Context, date time.Time, hash string) (bool, error) {
	return b.tx.NewSelect().
		TableExpr("?", bun.Ident(b.table)).
		ColumnExpr("1").
		Where("date = ?", date).
		Where("hash = ?", hash).
		Exists(ctx)
}

func (b *bunBatch) Insert(ctx context.Context, e *Entry) (bool, error) {
	res, err := b.tx.NewInsert().
		Model(e).
		ModelTableExpr("?", bun.Ident(b.table)).
		On("CONFLICT DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// ListOptions narrows List. Zero values match everything, To is exclusive.
type ListOptions struct {
	Parser string
	From   time.Time
	To     time.Time
}

// List returns stored entries in date order, ties broken by insertion order.
func (s *BunStore) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	var entries []Entry

	q := s.db.NewSelect().
		Model(&entries).
		ModelTableExpr("? AS entry", bun.Ident(s.table)).
		Order("date", "id")

	if opts.Parser != "" {
		q = q.Where("parser = ?", opts.Parser)
	}
	if !opts.From.IsZero() {
		q = q.Where("date >= ?", opts.From)
	}
	if !opts.To.IsZero() {
		q = q.Where("date < ?", opts.To)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.table, err)
	}

	return entries, nil
}
