package health

import "k8s.io/apimachinery/pkg/util/sets"

// Aggregate reduces the samples of a record's targets to one status by
// majority vote.
//
// Only samples whose status is exactly healthy or unhealthy vote; targets
// without a sample abstain. No votes, or an even split, yields unknown: an
// evenly divided fleet is never reported as healthy. The result does not
// depend on iteration order of either argument. Samples keyed by ids that
// are not in targetIDs are ignored.
func Aggregate(targetIDs sets.Set[string], samples map[string]Sample) Status {
	var healthy, unhealthy int
	for id := range targetIDs {
		sample, ok := samples[id]
		if !ok {
			continue
		}
		switch sample.Status {
		case StatusHealthy:
			healthy++
		case StatusUnhealthy:
			unhealthy++
		}
	}

	switch {
	case healthy == 0 && unhealthy == 0:
		return StatusUnknown
	case healthy == unhealthy:
		return StatusUnknown
	case healthy > unhealthy:
		return StatusHealthy
	default:
		return StatusUnhealthy
	}
}

// ReduceRegions derives a target's status from the verdicts of the regional
// probers that have reported so far. Healthy needs a strict majority
// (n/2+1); anything less is unhealthy, and no reports at all is unknown.
func ReduceRegions(byRegion map[string]Status) Status {
	total := len(byRegion)
	if total == 0 {
		return StatusUnknown
	}
	healthy := 0
	for _, s := range byRegion {
		if s == StatusHealthy {
			healthy++
		}
	}
	if healthy >= total/2+1 {
		return StatusHealthy
	}
	return StatusUnhealthy
}
