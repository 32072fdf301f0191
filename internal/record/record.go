// Package record defines DNS records with routing strategies, the per-type
// target policy, and the validator that turns caller input into stored
// targets.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/errdefs"
)

// Type is the routing strategy of a record.
type Type string

const (
	TypeSingle    Type = "single"
	TypeMulti     Type = "multi"
	TypeRoundTrip Type = "roundtrip"
	TypeWeight    Type = "weight"
	TypeGeo       Type = "geo"
)

const (
	// UnknownCountry and UnknownRegion fill geo_location when nothing better is known.
	UnknownCountry = "ZZ"
	UnknownRegion  = "unknown"

	DefaultWeight = 1
	DefaultTTL    = 300
)

var (
	ErrNotFound      = fmt.Errorf("record %w", errdefs.ErrNotFound)
	ErrDuplicateFQDN = fmt.Errorf("duplicate fqdn: %w", errdefs.ErrConflict)
)

// GeoLocation is the country/region metadata attached to a target.
type GeoLocation struct {
	Country string `json:"country" yaml:"country"`
	Region  string `json:"region" yaml:"region"`
}

// UnknownLocation is the default geo_location.
func UnknownLocation() GeoLocation {
	return GeoLocation{Country: UnknownCountry, Region: UnknownRegion}
}

// Weight is a caller-supplied weight kept as its raw JSON token, so any
// value (1.5, "abc", true) decodes and the validator classifies it.
// A JSON string is held unquoted; null and absent are empty.
type Weight string

func (w *Weight) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*w = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = Weight(s)
	default:
		*w = Weight(data)
	}
	return nil
}

// MarshalJSON writes a numeric weight as a number and anything else as a
// string.
func (w Weight) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseFloat(string(w), 64); err == nil {
		return []byte(w), nil
	}
	return json.Marshal(string(w))
}

func (w Weight) String() string { return string(w) }

// Candidate is a target as supplied by a caller, before validation.
type Candidate struct {
	ID          string       `json:"id,omitempty"`
	IP          string       `json:"ip"`
	GeoLocation *GeoLocation `json:"geo_location,omitempty"`
	Weight      Weight       `json:"weight,omitempty"`
}

// Target is a validated, normalized destination of a record. Weight is only
// non-zero on weight records.
type Target struct {
	ID          string      `json:"id" yaml:"id"`
	IP          string      `json:"ip" yaml:"ip"`
	GeoLocation GeoLocation `json:"geo_location" yaml:"geo_location"`
	Weight      int         `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// Record is a stored DNS record. FQDN is the key and never changes.
type Record struct {
	FQDN    string   `json:"fqdn" yaml:"fqdn"`
	Type    Type     `json:"type" yaml:"type"`
	TTL     int      `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	Targets []Target `json:"targets" yaml:"targets"`
}

// TargetIDs returns the ids of the record's targets in display order.
func (r Record) TargetIDs() []string {
	ids := make([]string, 0, len(r.Targets))
	for _, t := range r.Targets {
		ids = append(ids, t.ID)
	}
	return ids
}

// Clone returns a deep copy so stores never share target slices with callers.
func (r Record) Clone() Record {
	out := r
	out.Targets = append([]Target(nil), r.Targets...)
	return out
}

// Candidates converts stored targets back into validator input, which is how
// an edit starts from the current state.
func (r Record) Candidates() []Candidate {
	out := make([]Candidate, 0, len(r.Targets))
	for _, t := range r.Targets {
		geo := t.GeoLocation
		c := Candidate{ID: t.ID, IP: t.IP, GeoLocation: &geo}
		if t.Weight != 0 {
			c.Weight = Weight(strconv.Itoa(t.Weight))
		}
		out = append(out, c)
	}
	return out
}
