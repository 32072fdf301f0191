package record

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/errdefs"
)

func candidates(n int) []Candidate {
	out := make([]Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Candidate{
			ID: fmt.Sprintf("t%d", i+1),
			IP: fmt.Sprintf("192.0.2.%d", i+1),
		})
	}
	return out
}

func TestValidate_Count(t *testing.T) {
	tests := []struct {
		typ    Type
		n      int
		wantOK bool
	}{
		{TypeSingle, 0, false},
		{TypeSingle, 1, true},
		{TypeSingle, 2, false},
		{TypeMulti, 0, false},
		{TypeMulti, 1, true},
		{TypeMulti, 5, true},
		{TypeRoundTrip, 0, false},
		{TypeRoundTrip, 3, true},
		{TypeWeight, 0, false},
		{TypeWeight, 2, true},
		{TypeGeo, 0, false},
		{TypeGeo, 4, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			_, err := Validate(tt.typ, candidates(tt.n))
			if tt.wantOK && err != nil {
				t.Fatalf("Validate(%s, %d targets): unexpected error: %v", tt.typ, tt.n, err)
			}
			if !tt.wantOK && !errdefs.IsValidation(err, errdefs.KindCountOutOfRange) {
				t.Fatalf("Validate(%s, %d targets): expected CountOutOfRange, got %v", tt.typ, tt.n, err)
			}
		})
	}
}

func TestValidate_UnknownType(t *testing.T) {
	_, err := Validate("failover", candidates(1))
	if !errdefs.IsValidation(err, errdefs.KindUnknownType) {
		t.Fatalf("expected UnknownType, got %v", err)
	}
}

func TestValidate_MalformedAddress(t *testing.T) {
	for _, ip := range []string{"", "10.0.0.256", "example.com", "10.0.0", "fe80::1%eth0", "2001:db8:::1"} {
		t.Run(ip, func(t *testing.T) {
			_, err := Validate(TypeMulti, []Candidate{
				{ID: "ok", IP: "10.0.0.1"},
				{ID: "bad", IP: ip},
			})
			ve, ok := errdefs.AsValidation(err)
			if !ok || ve.Kind != errdefs.KindMalformedAddress {
				t.Fatalf("expected MalformedAddress, got %v", err)
			}
			if ve.Subject != "bad" {
				t.Errorf("expected subject 'bad', got %q", ve.Subject)
			}
		})
	}
}

func TestValidate_AcceptsIPv6(t *testing.T) {
	targets, err := Validate(TypeSingle, []Candidate{{ID: "v6", IP: "2001:db8::1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if targets[0].IP != "2001:db8::1" {
		t.Errorf("expected ip preserved, got %q", targets[0].IP)
	}
}

func TestValidate_Weight(t *testing.T) {
	tests := []struct {
		name       string
		weight     string
		wantWeight int
		wantErr    bool
	}{
		{"omitted defaults to 1", "", 1, false},
		{"explicit", "70", 70, false},
		{"zero", "0", 0, true},
		{"negative", "-3", 0, true},
		{"fractional", "1.5", 0, true},
		{"exponent", "1e3", 0, true},
		{"not a number", "abc", 0, true},
		{"boolean", "true", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targets, err := Validate(TypeWeight, []Candidate{{ID: "t1", IP: "10.0.0.1", Weight: Weight(tt.weight)}})
			if tt.wantErr {
				ve, ok := errdefs.AsValidation(err)
				if !ok || ve.Kind != errdefs.KindInvalidWeight || ve.Subject != "t1" {
					t.Fatalf("expected InvalidWeight(t1), got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if targets[0].Weight != tt.wantWeight {
				t.Errorf("expected weight %d, got %d", tt.wantWeight, targets[0].Weight)
			}
		})
	}
}

func TestValidate_WeightStrippedForOtherTypes(t *testing.T) {
	for _, typ := range []Type{TypeSingle, TypeMulti, TypeRoundTrip, TypeGeo} {
		t.Run(string(typ), func(t *testing.T) {
			// Even an invalid weight is ignored when the type does not use it.
			targets, err := Validate(typ, []Candidate{{ID: "t1", IP: "10.0.0.1", Weight: "-3"}})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if targets[0].Weight != 0 {
				t.Errorf("expected weight stripped, got %d", targets[0].Weight)
			}
		})
	}
}

func TestValidate_Normalization(t *testing.T) {
	got, err := Validate(TypeGeo, []Candidate{
		{ID: "eu-1", IP: "192.0.2.10", GeoLocation: &GeoLocation{Country: "DE", Region: "eu"}},
		{ID: "na-1", IP: "192.0.2.20"},
		{ID: "partial", IP: "192.0.2.30", GeoLocation: &GeoLocation{Country: "US"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Target{
		{ID: "eu-1", IP: "192.0.2.10", GeoLocation: GeoLocation{Country: "DE", Region: "eu"}},
		{ID: "na-1", IP: "192.0.2.20", GeoLocation: GeoLocation{Country: "ZZ", Region: "unknown"}},
		{ID: "partial", IP: "192.0.2.30", GeoLocation: GeoLocation{Country: "US", Region: "unknown"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Validate() mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_TargetIDs(t *testing.T) {
	_, err := Validate(TypeMulti, []Candidate{{ID: "a", IP: "10.0.0.1"}, {ID: "a", IP: "10.0.0.2"}})
	if !errdefs.IsValidation(err, errdefs.KindDuplicateTargetID) {
		t.Errorf("expected DuplicateTargetID, got %v", err)
	}

	_, err = Validate(TypeMulti, []Candidate{{ID: " ", IP: "10.0.0.1"}})
	if !errdefs.IsValidation(err, errdefs.KindMissingTargetID) {
		t.Errorf("expected MissingTargetID, got %v", err)
	}
}

func TestValidate_TypeChangeRevalidates(t *testing.T) {
	rec := Record{FQDN: "example.com", Type: TypeWeight}
	targets, err := Validate(TypeWeight, []Candidate{{ID: "a", IP: "10.0.0.1", Weight: "3"}, {ID: "b", IP: "10.0.0.2"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec.Targets = targets

	// Switching a two-target weight record to single must be rejected.
	if _, err := Validate(TypeSingle, rec.Candidates()); !errdefs.IsValidation(err, errdefs.KindCountOutOfRange) {
		t.Errorf("expected CountOutOfRange when narrowing to single, got %v", err)
	}

	// Switching to multi drops the weights.
	multi, err := Validate(TypeMulti, rec.Candidates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, tg := range multi {
		if tg.Weight != 0 {
			t.Errorf("target %s: expected weight stripped, got %d", tg.ID, tg.Weight)
		}
	}
}

func TestWeight_JSON(t *testing.T) {
	var c Candidate
	for in, want := range map[string]Weight{
		`{"weight":3}`:     "3",
		`{"weight":"abc"}`: "abc",
		`{"weight":true}`:  "true",
		`{"weight":null}`:  "",
	} {
		c = Candidate{}
		if err := json.Unmarshal([]byte(in), &c); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if c.Weight != want {
			t.Errorf("%s: expected %q, got %q", in, want, c.Weight)
		}
	}

	out, err := json.Marshal(Candidate{ID: "a", IP: "10.0.0.1", Weight: "3"})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"id":"a","ip":"10.0.0.1","weight":3}` {
		t.Errorf("unexpected encoding %s", out)
	}
}
