// This adapter wires the Postgres backend into the store-agnostic factory by
// registering a constructor at init time. The CLI and the engine obtain a
// store via store.Open(...) without importing this package directly.
package postgres

import (
	"context"

	"migrator/internal/store"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ store.Store = (*wrappedRepo)(nil)

func init() {
	store.Register("postgres", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Timeout: cfg.Timeout})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}

// wrappedRepo implements store.Store by delegating to the concrete
// *Repository while providing a Close method that calls the close function
// returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close implements store.Store.Close.
func (w *wrappedRepo) Close() { w.closeFn() }
