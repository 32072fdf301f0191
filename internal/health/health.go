// Package health reduces per-target health samples, produced by an external
// prober, into a record-level status.
package health

import "time"

// Status is the liveness verdict for a target or a record.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// UnreachableRTT is the latency reported for a target that failed its check.
const UnreachableRTT = 999.0

// RTT holds round-trip times in milliseconds.
type RTT struct {
	LastMS   *float64           `json:"last_ms,omitempty"`
	ByRegion map[string]float64 `json:"by_region,omitempty"`
}

// Sample is the latest health observation for one target. It is never
// persisted by this service.
type Sample struct {
	Status         Status            `json:"status"`
	StatusByRegion map[string]Status `json:"status_by_region,omitempty"`
	RTT            *RTT              `json:"rtt,omitempty"`
	LastCheck      *time.Time        `json:"last_check,omitempty"`
}

// Clone returns a deep copy of s.
func (s Sample) Clone() Sample {
	out := Sample{Status: s.Status}
	if s.StatusByRegion != nil {
		out.StatusByRegion = make(map[string]Status, len(s.StatusByRegion))
		for k, v := range s.StatusByRegion {
			out.StatusByRegion[k] = v
		}
	}
	if s.RTT != nil {
		rtt := RTT{}
		if s.RTT.LastMS != nil {
			v := *s.RTT.LastMS
			rtt.LastMS = &v
		}
		if s.RTT.ByRegion != nil {
			rtt.ByRegion = make(map[string]float64, len(s.RTT.ByRegion))
			for k, v := range s.RTT.ByRegion {
				rtt.ByRegion[k] = v
			}
		}
		out.RTT = &rtt
	}
	if s.LastCheck != nil {
		ts := *s.LastCheck
		out.LastCheck = &ts
	}
	return out
}

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusHealthy, StatusUnhealthy, StatusUnknown:
		return true
	}
	return false
}
