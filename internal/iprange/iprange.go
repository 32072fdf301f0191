// Package iprange keeps a registry of non-overlapping IP address ranges
// mapped to countries, used to geo-classify addresses.
package iprange

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/errdefs"
)

// Range maps an inclusive address interval to a country. StartIP is the key.
type Range struct {
	StartIP string `json:"start_ip" yaml:"start_ip"`
	EndIP   string `json:"end_ip" yaml:"end_ip"`
	Country string `json:"country" yaml:"country"`
	ISOCode string `json:"iso_code" yaml:"iso_code"`
}

// Patch carries the fields of an update. Nil fields are left unchanged;
// the start address is the key and cannot be patched.
type Patch struct {
	EndIP   *string `json:"end_ip,omitempty"`
	Country *string `json:"country,omitempty"`
	ISOCode *string `json:"iso_code,omitempty"`
}

// Apply returns r with the patch applied.
func (p Patch) Apply(r Range) Range {
	if p.EndIP != nil {
		r.EndIP = *p.EndIP
	}
	if p.Country != nil {
		r.Country = *p.Country
	}
	if p.ISOCode != nil {
		r.ISOCode = *p.ISOCode
	}
	return r
}

// OverlapError is returned when a range would intersect a stored one.
type OverlapError struct {
	Range    Range
	Existing Range
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("OverlapConflict: %s-%s overlaps existing range %s-%s (%s)",
		e.Range.StartIP, e.Range.EndIP, e.Existing.StartIP, e.Existing.EndIP, e.Existing.Country)
}

func (e *OverlapError) Unwrap() error { return errdefs.ErrConflict }

// ErrNotFound is returned for an unknown start_ip.
var ErrNotFound = fmt.Errorf("ip range %w", errdefs.ErrNotFound)

// entry is a parsed Range held in the registry index.
type entry struct {
	start, end netip.Addr
	rng        Range
}

// ParseAddr parses an IPv4 or IPv6 literal. IPv4-mapped IPv6 addresses are
// unmapped so they order and match as IPv4.
func ParseAddr(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil || addr.Zone() != "" {
		return netip.Addr{}, errdefs.Invalid(errdefs.KindMalformedAddress, s, "not an IPv4 or IPv6 address")
	}
	return addr.Unmap(), nil
}

// CanonicalKey returns the canonical form of a start_ip key.
func CanonicalKey(s string) (string, error) {
	addr, err := ParseAddr(s)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

// parseRange validates r and returns its index entry with canonical
// addresses and normalized metadata.
func parseRange(r Range) (entry, error) {
	start, err := ParseAddr(r.StartIP)
	if err != nil {
		return entry{}, err
	}
	end, err := ParseAddr(r.EndIP)
	if err != nil {
		return entry{}, err
	}
	if start.Is4() != end.Is4() {
		return entry{}, errdefs.Invalid(errdefs.KindFamilyMismatch, r.StartIP, fmt.Sprintf("start %s and end %s are different address families", start, end))
	}
	if start.Compare(end) > 0 {
		return entry{}, errdefs.Invalid(errdefs.KindInvalidRange, r.StartIP, fmt.Sprintf("start %s is after end %s", start, end))
	}

	norm := Range{
		StartIP: start.String(),
		EndIP:   end.String(),
		Country: strings.TrimSpace(r.Country),
		ISOCode: strings.ToUpper(strings.TrimSpace(r.ISOCode)),
	}
	if norm.ISOCode == "" && len(norm.Country) == 2 {
		norm.ISOCode = strings.ToUpper(norm.Country)
	}
	return entry{start: start, end: end, rng: norm}, nil
}

func (e entry) contains(a netip.Addr) bool {
	return e.start.Compare(a) <= 0 && e.end.Compare(a) >= 0
}
