// The users transform: legacy flat user rows -> evolved user schema.
//
// The legacy store kept profile/KYC state as two scalar columns. The new
// schema folds them into one structured personalData document and adds
// volume counters and audit columns that did not exist before. Everything
// not named below passes through verbatim.

package builtin

import (
	"migrator/internal/transform"
	"migrator/pkg/records"
)

// Legacy source fields consumed by the users transform.
const (
	fieldProfileFilled = "profileFilled"
	fieldKYCState      = "kycState"
)

// KYCNone is the default KYC state stamped when the legacy row carries none.
const KYCNone = "none"

// Users returns the transform for the users table.
//
// Per row it:
//   - copies every untouched field verbatim;
//   - synthesizes personalData from the legacy profileFilled/kycState pair:
//     {eula: true, dataFilled: bool(profileFilled) default false,
//     kyc: kycState default "none"};
//   - initializes the new-schema volume counters to zero and the optional
//     preferences document to null;
//   - copies the row id into the createdBy/updatedBy audit fields;
//   - stamps updatedAt with the run's fixed "now";
//   - quantizes decimal-shaped columns at their declared scale.
func Users(p Params) transform.Func {
	identity := transform.Identity(p.Scales)
	return func(r records.Record) (records.Record, error) {
		id, ok := r["id"]
		if !ok || id == nil {
			return nil, transform.Errorf("id", "required for audit fields, missing or null")
		}

		out, err := identity(r)
		if err != nil {
			return nil, err
		}
		out = out.Clone()

		dataFilled, _ := out.Bool(fieldProfileFilled) // absent -> false
		kyc, ok := out.String(fieldKYCState)
		if !ok || kyc == "" {
			kyc = KYCNone
		}
		delete(out, fieldProfileFilled)
		delete(out, fieldKYCState)

		out["personalData"] = map[string]any{
			"eula":       true,
			"dataFilled": dataFilled,
			"kyc":        kyc,
		}

		// New-schema fields with documented defaults.
		out["tradeVolume"] = int64(0)
		out["withdrawVolume"] = int64(0)
		out["preferences"] = nil

		out["createdBy"] = id
		out["updatedBy"] = id
		out["updatedAt"] = p.Now

		return out, nil
	}
}
