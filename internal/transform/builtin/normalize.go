package builtin

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"migrator/internal/transform"
	"migrator/pkg/records"
)

// Normalize returns a transform that trims and NFC-normalizes every string
// field, then applies the identity quantization for decimal-shaped columns.
// Legacy exports mix composed and decomposed unicode; normalizing here keeps
// the target's unique-column checks from treating the same name as two
// values.
func Normalize(p Params) transform.Func {
	identity := transform.Identity(p.Scales)
	return func(r records.Record) (records.Record, error) {
		out, err := identity(r)
		if err != nil {
			return nil, err
		}
		cloned := false
		for k, v := range out {
			s, ok := v.(string)
			if !ok {
				continue
			}
			n := norm.NFC.String(strings.TrimSpace(s))
			if n == s {
				continue
			}
			if !cloned {
				out = out.Clone()
				cloned = true
			}
			out[k] = n
		}
		return out, nil
	}
}
