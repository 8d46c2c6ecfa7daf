// Package compat exposes the backward-compatible accessors over the migrated
// personalData document.
//
// The legacy schema stored profile and KYC state as flat columns; the new
// schema folds them into one structured document. Downstream read services
// must not duplicate that state into their own columns: these accessors are
// the contract. Each is a pure function over the document value and returns
// an explicit default when the document or sub-key is absent, so callers
// behave identically for rows written before and after the backfill of any
// later schema change.
package compat

// KYCDefault is returned when the document carries no KYC state.
const KYCDefault = "none"

// ProfileFilled reports whether the user completed their profile.
// A nil document or missing key reads as false.
func ProfileFilled(personalData map[string]any) bool {
	if personalData == nil {
		return false
	}
	v, ok := personalData["dataFilled"].(bool)
	return ok && v
}

// KYCState returns the user's KYC state, defaulting to "none" for nil
// documents, missing keys, and empty values.
func KYCState(personalData map[string]any) string {
	if personalData == nil {
		return KYCDefault
	}
	s, ok := personalData["kyc"].(string)
	if !ok || s == "" {
		return KYCDefault
	}
	return s
}

// EULAAccepted reports whether the user accepted the EULA. Migrated rows
// always carry true; rows created by other writers may not.
func EULAAccepted(personalData map[string]any) bool {
	if personalData == nil {
		return false
	}
	v, ok := personalData["eula"].(bool)
	return ok && v
}
