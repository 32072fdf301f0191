package record

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/errdefs"
)

// Validate checks candidates against the policy of t and returns the
// normalized targets. It has no side effects; the same input always yields
// the same output.
//
// Targets keep their input order. A weight on a non-weight record is
// dropped, a missing weight on a weight record becomes DefaultWeight, and a
// missing geo_location becomes UnknownLocation.
func Validate(t Type, candidates []Candidate) ([]Target, error) {
	policy, ok := PolicyFor(t)
	if !ok {
		return nil, errdefs.Invalid(errdefs.KindUnknownType, string(t), "expected one of single, multi, roundtrip, weight, geo")
	}
	if !policy.Allows(len(candidates)) {
		return nil, errdefs.Invalid(errdefs.KindCountOutOfRange, "", countDetail(t, policy, len(candidates)))
	}

	seen := sets.New[string]()
	out := make([]Target, 0, len(candidates))
	for i, c := range candidates {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return nil, errdefs.Invalid(errdefs.KindMissingTargetID, strconv.Itoa(i), "target has no id")
		}
		if seen.Has(id) {
			return nil, errdefs.Invalid(errdefs.KindDuplicateTargetID, id, "")
		}
		seen.Insert(id)

		if !ValidAddress(c.IP) {
			return nil, errdefs.Invalid(errdefs.KindMalformedAddress, id, fmt.Sprintf("%q is not an IPv4 or IPv6 address", c.IP))
		}

		target := Target{ID: id, IP: strings.TrimSpace(c.IP), GeoLocation: normalizeGeo(c.GeoLocation)}
		if policy.RequiresWeight {
			w, err := parseWeight(c.Weight.String())
			if err != nil {
				return nil, errdefs.Invalid(errdefs.KindInvalidWeight, id, err.Error())
			}
			target.Weight = w
		}
		out = append(out, target)
	}
	return out, nil
}

// ValidAddress reports whether s is an IPv4 or IPv6 literal without a zone.
func ValidAddress(s string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return addr.Zone() == ""
}

func parseWeight(raw string) (int, error) {
	if raw == "" {
		return DefaultWeight, nil
	}
	w, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("weight %q is not an integer", raw)
	}
	if w <= 0 {
		return 0, fmt.Errorf("weight %d must be positive", w)
	}
	return w, nil
}

func normalizeGeo(g *GeoLocation) GeoLocation {
	if g == nil {
		return UnknownLocation()
	}
	out := GeoLocation{Country: strings.TrimSpace(g.Country), Region: strings.TrimSpace(g.Region)}
	if out.Country == "" {
		out.Country = UnknownCountry
	}
	if out.Region == "" {
		out.Region = UnknownRegion
	}
	return out
}

func countDetail(t Type, p Policy, n int) string {
	if p.MaxTargets == 0 {
		return fmt.Sprintf("%s expects at least %d target(s), got %d", t, p.MinTargets, n)
	}
	if p.MinTargets == p.MaxTargets {
		return fmt.Sprintf("%s expects exactly %d target(s), got %d", t, p.MinTargets, n)
	}
	return fmt.Sprintf("%s expects %d to %d targets, got %d", t, p.MinTargets, p.MaxTargets, n)
}
