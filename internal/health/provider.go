package health

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by providers when the health subsystem cannot
// be reached. Callers degrade to StatusUnknown instead of failing.
var ErrUnavailable = errors.New("health subsystem unavailable")

// Provider is the interface that health sample sources must implement.
type Provider interface {
	// Samples returns the latest sample per target id for the record.
	// Targets that have never been checked are simply absent.
	Samples(ctx context.Context, fqdn string) (map[string]Sample, error)
}

// Report is one observation pushed by a regional prober.
type Report struct {
	FQDN     string  `json:"fqdn"`
	TargetID string  `json:"target_id"`
	Region   string  `json:"region"`
	Status   Status  `json:"status"`
	RTT      float64 `json:"rtt"`
}

// Reporter is implemented by providers that accept pushed observations.
type Reporter interface {
	Report(ctx context.Context, r Report) (Sample, error)
	// Forget drops every sample held for fqdn.
	Forget(ctx context.Context, fqdn string) error
}
