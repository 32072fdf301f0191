package record

// Policy is the target cardinality and attribute rule for one Type.
// MaxTargets of zero means unbounded.
type Policy struct {
	MinTargets     int
	MaxTargets     int
	RequiresWeight bool
}

var policies = map[Type]Policy{
	TypeSingle:    {MinTargets: 1, MaxTargets: 1},
	TypeMulti:     {MinTargets: 1},
	TypeRoundTrip: {MinTargets: 1},
	TypeWeight:    {MinTargets: 1, RequiresWeight: true},
	TypeGeo:       {MinTargets: 1},
}

// PolicyFor returns the policy for t, or false for an unknown type.
func PolicyFor(t Type) (Policy, bool) {
	p, ok := policies[t]
	return p, ok
}

// Allows reports whether n targets satisfy the policy.
func (p Policy) Allows(n int) bool {
	if n < p.MinTargets {
		return false
	}
	return p.MaxTargets == 0 || n <= p.MaxTargets
}

// MultiTarget reports whether more than one target may be attached.
func (p Policy) MultiTarget() bool {
	return p.MaxTargets != 1
}

// Types returns every known record type.
func Types() []Type {
	return []Type{TypeSingle, TypeMulti, TypeRoundTrip, TypeWeight, TypeGeo}
}
