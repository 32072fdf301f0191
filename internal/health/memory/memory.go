// Package memory is a health provider that keeps the latest samples pushed
// by regional probers in process memory.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/errdefs"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/health"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/record"
)

func init() {
	health.Register("memory", func(log logr.Logger, _ map[string]string) (health.Provider, error) {
		return New(log), nil
	})
}

// Provider implements health.Provider and health.Reporter.
type Provider struct {
	mu      sync.RWMutex
	samples map[string]map[string]health.Sample // fqdn -> target id -> sample
	now     func() time.Time
	log     logr.Logger
}

// New creates an empty provider.
func New(log logr.Logger) *Provider {
	return &Provider{
		samples: make(map[string]map[string]health.Sample),
		now:     time.Now,
		log:     log,
	}
}

// Samples returns copies of the samples held for fqdn.
func (p *Provider) Samples(_ context.Context, fqdn string) (map[string]health.Sample, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	held := p.samples[fqdn]
	out := make(map[string]health.Sample, len(held))
	for id, s := range held {
		out[id] = s.Clone()
	}
	return out, nil
}

// Report merges one regional observation into the target's sample. The
// region's verdict is recorded, the target status is re-derived from all
// regions that have reported, and the latency is stored (UnreachableRTT
// when the check failed).
func (p *Provider) Report(_ context.Context, r health.Report) (health.Sample, error) {
	fqdn, err := record.CanonicalFQDN(r.FQDN)
	if err != nil {
		return health.Sample{}, err
	}
	targetID := strings.TrimSpace(r.TargetID)
	if targetID == "" {
		return health.Sample{}, errdefs.Invalid(errdefs.KindInvalidReport, fqdn, "target_id is required")
	}
	region := strings.TrimSpace(r.Region)
	if region == "" {
		return health.Sample{}, errdefs.Invalid(errdefs.KindInvalidReport, targetID, "region is required")
	}
	if r.Status != health.StatusHealthy && r.Status != health.StatusUnhealthy {
		return health.Sample{}, errdefs.Invalid(errdefs.KindInvalidReport, targetID, "status must be healthy or unhealthy")
	}

	rtt := r.RTT
	if r.Status != health.StatusHealthy {
		rtt = health.UnreachableRTT
	}
	now := p.now().UTC().Truncate(time.Second)

	p.mu.Lock()
	defer p.mu.Unlock()

	byTarget, ok := p.samples[fqdn]
	if !ok {
		byTarget = make(map[string]health.Sample)
		p.samples[fqdn] = byTarget
	}
	sample := byTarget[targetID]
	if sample.Status == "" {
		sample.Status = health.StatusUnknown
	}
	if sample.StatusByRegion == nil {
		sample.StatusByRegion = make(map[string]health.Status)
	}
	sample.StatusByRegion[region] = r.Status
	if agg := health.ReduceRegions(sample.StatusByRegion); agg != health.StatusUnknown {
		sample.Status = agg
	}
	if sample.RTT == nil {
		sample.RTT = &health.RTT{}
	}
	if sample.RTT.ByRegion == nil {
		sample.RTT.ByRegion = make(map[string]float64)
	}
	sample.RTT.LastMS = &rtt
	sample.RTT.ByRegion[region] = rtt
	sample.LastCheck = &now
	byTarget[targetID] = sample

	p.log.V(1).Info("health sample updated", "fqdn", fqdn, "target", targetID, "region", region, "status", sample.Status, "rtt", rtt)
	return sample.Clone(), nil
}

// Forget drops every sample held for fqdn.
func (p *Provider) Forget(_ context.Context, fqdn string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.samples, fqdn)
	return nil
}
