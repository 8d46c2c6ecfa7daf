package builtin

import (
	"testing"
	"time"

	"migrator/pkg/compat"
	"migrator/pkg/records"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestUsers_SynthesizesPersonalData(t *testing.T) {
	t.Parallel()

	fn := Users(Params{Now: testNow})
	in := records.Record{
		"id":            "u-1",
		"email":         "a@example.com",
		"profileFilled": true,
		"kycState":      "verified",
	}

	out, err := fn(in)
	if err != nil {
		t.Fatalf("users: %v", err)
	}

	pd, ok := out["personalData"].(map[string]any)
	if !ok {
		t.Fatalf("personalData = %T, want map", out["personalData"])
	}
	if pd["eula"] != true {
		t.Errorf("eula = %v, want true", pd["eula"])
	}
	if pd["dataFilled"] != true {
		t.Errorf("dataFilled = %v, want true", pd["dataFilled"])
	}
	if pd["kyc"] != "verified" {
		t.Errorf("kyc = %v, want verified", pd["kyc"])
	}

	// The flat legacy columns must be gone.
	if out.Has("profileFilled") || out.Has("kycState") {
		t.Errorf("legacy columns survived: %v", out)
	}

	// Untouched fields pass through.
	if out["email"] != "a@example.com" {
		t.Errorf("email = %v, want passthrough", out["email"])
	}

	// New-schema defaults and audit fields.
	if out["tradeVolume"] != int64(0) || out["withdrawVolume"] != int64(0) {
		t.Errorf("volumes = %v / %v, want 0", out["tradeVolume"], out["withdrawVolume"])
	}
	if v, present := out["preferences"]; !present || v != nil {
		t.Errorf("preferences = %v (present=%t), want explicit null", v, present)
	}
	if out["createdBy"] != "u-1" || out["updatedBy"] != "u-1" {
		t.Errorf("audit ids = %v / %v, want u-1", out["createdBy"], out["updatedBy"])
	}
	if out["updatedAt"] != testNow {
		t.Errorf("updatedAt = %v, want fixed run timestamp", out["updatedAt"])
	}
}

func TestUsers_Defaults(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		in             records.Record
		wantDataFilled bool
		wantKYC        string
	}{
		{
			name:           "missing both legacy columns",
			in:             records.Record{"id": 7},
			wantDataFilled: false,
			wantKYC:        "none",
		},
		{
			name:           "null kyc state",
			in:             records.Record{"id": 7, "profileFilled": false, "kycState": nil},
			wantDataFilled: false,
			wantKYC:        "none",
		},
		{
			name:           "empty kyc state",
			in:             records.Record{"id": 7, "kycState": ""},
			wantDataFilled: false,
			wantKYC:        "none",
		},
		{
			name:           "integer-encoded profile flag",
			in:             records.Record{"id": 7, "profileFilled": 1, "kycState": "pending"},
			wantDataFilled: true,
			wantKYC:        "pending",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fn := Users(Params{Now: testNow})
			out, err := fn(tc.in)
			if err != nil {
				t.Fatalf("users: %v", err)
			}
			pd := out["personalData"].(map[string]any)
			if pd["dataFilled"] != tc.wantDataFilled {
				t.Errorf("dataFilled = %v, want %v", pd["dataFilled"], tc.wantDataFilled)
			}
			if pd["kyc"] != tc.wantKYC {
				t.Errorf("kyc = %v, want %v", pd["kyc"], tc.wantKYC)
			}
		})
	}
}

func TestUsers_MissingIDFails(t *testing.T) {
	t.Parallel()

	fn := Users(Params{Now: testNow})
	for _, in := range []records.Record{
		{"email": "a@example.com"},
		{"id": nil},
	} {
		if _, err := fn(in); err == nil {
			t.Errorf("users(%v): want error for missing id", in)
		}
	}
}

func TestUsers_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	fn := Users(Params{Now: testNow, Scales: map[string]int{"balance": 2}})
	in := records.Record{"id": 1, "profileFilled": true, "kycState": "verified", "balance": 10.006}

	if _, err := fn(in); err != nil {
		t.Fatalf("users: %v", err)
	}
	if in["profileFilled"] != true || in["kycState"] != "verified" || in["balance"] != 10.006 {
		t.Errorf("input mutated: %v", in)
	}
}

// The migrated document must round-trip through the compat accessors the
// downstream services use.
func TestUsers_CompatAccessors(t *testing.T) {
	t.Parallel()

	fn := Users(Params{Now: testNow})
	out, err := fn(records.Record{"id": 1, "profileFilled": true, "kycState": "verified"})
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	pd := out["personalData"].(map[string]any)

	if !compat.ProfileFilled(pd) {
		t.Error("compat.ProfileFilled = false, want true")
	}
	if got := compat.KYCState(pd); got != "verified" {
		t.Errorf("compat.KYCState = %q, want verified", got)
	}
	if !compat.EULAAccepted(pd) {
		t.Error("compat.EULAAccepted = false, want true")
	}
}
