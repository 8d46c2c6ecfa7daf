// Package builtin contains the named transforms shipped with the migrator.
//
// Each transform is exposed as a constructor taking Params (ambient,
// registry-build-time inputs such as the run's fixed "now" timestamp) and
// returning a pure transform.Func. New table transforms are added here and
// named in the migration set file; the engine resolves the name through New.
package builtin

import (
	"fmt"
	"time"

	"migrator/internal/transform"
)

// Params carries construction-time inputs shared by the builtin transforms.
// Nothing here may vary per row; that would break transform purity and the
// restartability of batches.
type Params struct {
	// Now is the timestamp stamped into derived audit fields. It is fixed for
	// the whole run so re-reading a batch after a retry produces identical
	// rows.
	Now time.Time

	// Scales maps target column -> decimal scale for the table, taken from
	// the column projection. Used by transforms that pass numeric fields
	// through.
	Scales map[string]int
}

// Names returns the transform names accepted in migration set files, for the
// config linter.
func Names() []string {
	return []string{"identity", "normalize", "users"}
}

// New resolves a transform name from the migration set file. The empty name
// and "identity" both select the identity transform.
func New(name string, p Params) (transform.Func, error) {
	switch name {
	case "", "identity":
		return transform.Identity(p.Scales), nil
	case "normalize":
		return Normalize(p), nil
	case "users":
		return Users(p), nil
	default:
		return nil, fmt.Errorf("unknown transform %q", name)
	}
}
