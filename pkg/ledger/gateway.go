package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"k8s.io/klog"
)

type WriteResult struct {
	Accepted int
	Skipped  int
}

// Gateway writes transactions to a Store at most once per (date, fingerprint).
//
// A gateway without a store is unavailable: writes succeed without doing anything. This
// keeps a long running watcher alive through database outages at the cost of dropping
// the transactions read in the meantime.
type Gateway struct {
	store Store
}

// NewGateway wraps store. A nil store gives an unavailable gateway.
func NewGateway(store Store) *Gateway {
	return &Gateway{store: store}
}

// Open connects with connect and bootstraps the schema. Failures are logged and produce an
// unavailable gateway rather than an error.
func Open(ctx context.Context, connect func(context.Context) (*bun.DB, error), table string) *Gateway {
	db, err := connect(ctx)
	if err != nil {
		klog.Warningf("couldn't connect to DB: %v", err)
		if db != nil {
			db.Close()
		}
		return NewGateway(nil)
	}

	store := NewBunStore(db, table)
	if err := store.Migrate(ctx); err != nil {
		klog.Warningf("couldn't prepare DB: %v", err)
		store.Close()
		return NewGateway(nil)
	}

	return NewGateway(store)
}

func (g *Gateway) Available() bool {
	return g.store != nil
}

// Write stores every transaction not already present, in order, and commits them together.
// On a store error nothing is committed and the counts are zero.
func (g *Gateway) Write(ctx context.Context, transactions []Transaction) (WriteResult, error) {
	if !g.Available() {
		return WriteResult{}, nil
	}

	var result WriteResult

	err := g.store.RunInTx(ctx, func(ctx context.Context, b Batch) error {
		result = WriteResult{}

		for _, t := range transactions {
			exists, err := b.Exists(ctx, t.Date, t.Fingerprint)
			if err != nil {
				return fmt.Errorf("failed to look up entry %s: %w", t.Fingerprint, err)
			}

			if exists {
				klog.V(4).Infof("entry already exist, skipping: %s", strings.TrimRight(t.Raw, "\r\n"))
				result.Skipped++
				continue
			}

			inserted, err := b.Insert(ctx, NewEntry(t))
			if err != nil {
				return fmt.Errorf("failed to insert entry %s: %w", t.Fingerprint, err)
			}

			if !inserted {
				klog.V(4).Infof("entry written concurrently, skipping: %s", strings.TrimRight(t.Raw, "\r\n"))
				result.Skipped++
				continue
			}

			klog.V(4).Infof("adding entry: %s", strings.TrimRight(t.Raw, "\r\n"))
			result.Accepted++
		}

		return nil
	})
	if err != nil {
		return WriteResult{}, fmt.Errorf("error writing entries: %w", err)
	}

	return result, nil
}

// Close releases the store. It is safe to call more than once.
func (g *Gateway) Close() error {
	if g.store == nil {
		return nil
	}

	err := g.store.Close()
	g.store = nil
	return err
}
