// Backend factory. Mirrors the adapter-registration pattern used across the
// codebase: each backend subpackage registers a constructor from an init
// function, and callers build stores through Open without importing any
// backend or driver package.

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Constructor builds a Store from a Config.
type Constructor func(ctx context.Context, cfg Config) (Store, error)

var (
	regMu    sync.RWMutex
	backends = map[string]Constructor{}
)

// Register installs a backend constructor under a driver name. It is called
// from backend init functions; registering the same name twice panics, as
// that is always a wiring bug.
func Register(driver string, fn Constructor) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := backends[driver]; dup {
		panic(fmt.Sprintf("store: backend %q registered twice", driver))
	}
	backends[driver] = fn
}

// Open builds a Store for cfg. When cfg.Driver is empty it is sniffed from
// the DSN scheme.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Driver == "" {
		driver, dsn, err := SplitDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
		cfg.Driver = driver
		cfg.DSN = dsn
	}

	regMu.RLock()
	fn, ok := backends[cfg.Driver]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: unknown driver %q (registered: %s)", cfg.Driver, strings.Join(Drivers(), ", "))
	}
	return fn(ctx, cfg)
}

// Drivers lists the registered backend names, sorted.
func Drivers() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(backends))
	for name := range backends {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SplitDSN derives the driver from a connection-string scheme and returns
// the DSN the driver expects.
//
//	postgres://... / postgresql://...  -> postgres, URL kept as-is
//	mysql://<native dsn>               -> mysql, prefix stripped
//	sqlserver://...                    -> sqlserver, URL kept as-is
//	sqlite://<path> or a bare *.db     -> sqlite, path
func SplitDSN(dsn string) (driver, rest string, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	case strings.HasPrefix(dsn, "mysql://"):
		// go-sql-driver uses its own DSN grammar, not a URL.
		return "mysql", strings.TrimPrefix(dsn, "mysql://"), nil
	case strings.HasPrefix(dsn, "sqlserver://"):
		return "sqlserver", dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite://"), nil
	case strings.HasSuffix(dsn, ".db"), strings.HasPrefix(dsn, "file:"):
		return "sqlite", dsn, nil
	case dsn == "":
		return "", "", fmt.Errorf("store: empty connection string")
	default:
		return "", "", fmt.Errorf("store: cannot infer driver from connection string %q", redact(dsn))
	}
}

// redact hides everything after the first '@' so credentials never reach the
// error path.
func redact(dsn string) string {
	if i := strings.IndexByte(dsn, '@'); i >= 0 {
		return dsn[:strings.IndexByte(dsn, ':')+1] + "***" + dsn[i:]
	}
	return dsn
}
