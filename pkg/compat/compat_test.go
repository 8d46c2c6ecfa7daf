package compat

import "testing"

func TestProfileFilled(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		doc  map[string]any
		want bool
	}{
		{name: "nil document", doc: nil, want: false},
		{name: "missing key", doc: map[string]any{"kyc": "none"}, want: false},
		{name: "filled", doc: map[string]any{"dataFilled": true}, want: true},
		{name: "not filled", doc: map[string]any{"dataFilled": false}, want: false},
		{name: "wrong type", doc: map[string]any{"dataFilled": "yes"}, want: false},
	}
	for _, tc := range cases {
		if got := ProfileFilled(tc.doc); got != tc.want {
			t.Errorf("%s: ProfileFilled = %t, want %t", tc.name, got, tc.want)
		}
	}
}

func TestKYCState(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		doc  map[string]any
		want string
	}{
		{name: "nil document", doc: nil, want: "none"},
		{name: "missing key", doc: map[string]any{}, want: "none"},
		{name: "empty value", doc: map[string]any{"kyc": ""}, want: "none"},
		{name: "wrong type", doc: map[string]any{"kyc": 1}, want: "none"},
		{name: "verified", doc: map[string]any{"kyc": "verified"}, want: "verified"},
	}
	for _, tc := range cases {
		if got := KYCState(tc.doc); got != tc.want {
			t.Errorf("%s: KYCState = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestEULAAccepted(t *testing.T) {
	t.Parallel()

	if EULAAccepted(nil) {
		t.Error("nil document must read as not accepted")
	}
	if !EULAAccepted(map[string]any{"eula": true}) {
		t.Error("accepted document must read as accepted")
	}
	if EULAAccepted(map[string]any{"eula": "true"}) {
		t.Error("non-bool value must read as not accepted")
	}
}
