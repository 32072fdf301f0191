// Package service is the single entry point for callers that manage records
// and IP ranges. It validates input, persists through a store and attaches
// the derived health status to every record it returns.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/errdefs"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/health"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/iprange"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/metrics"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/record"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/store"
)

// DefaultHealthConcurrency bounds the health reads in flight during a list.
const DefaultHealthConcurrency = 8

// ErrReportingUnsupported is returned by ReportHealth when the configured
// health provider only serves samples and does not accept reports.
var ErrReportingUnsupported = errors.New("health provider does not accept reports")

var allStatuses = []string{string(health.StatusHealthy), string(health.StatusUnhealthy), string(health.StatusUnknown)}

// Request is the caller input of a create or update. FQDN is the key; on
// update it names the record to replace.
type Request struct {
	FQDN    string             `json:"fqdn"`
	Type    record.Type        `json:"type"`
	TTL     int                `json:"ttl,omitempty"`
	Targets []record.Candidate `json:"targets"`
}

// RecordStatus is a stored record with its derived status and the raw
// health sample of each target that has one.
type RecordStatus struct {
	record.Record
	Status            health.Status            `json:"status"`
	Health            map[string]health.Sample `json:"health"`
	HealthUnavailable bool                     `json:"health_unavailable,omitempty"`
}

// Service composes the record store, the health provider and the IP range
// registry.
type Service struct {
	records store.RecordStore
	health  health.Provider
	ranges  *iprange.Registry
	log     logr.Logger

	newID             func() string
	healthConcurrency int
}

// Option customizes a Service.
type Option func(*Service)

// WithHealthConcurrency overrides DefaultHealthConcurrency.
func WithHealthConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.healthConcurrency = n
		}
	}
}

// WithIDGenerator replaces the uuid generator used for targets without an id.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

func New(records store.RecordStore, hp health.Provider, ranges *iprange.Registry, log logr.Logger, opts ...Option) *Service {
	s := &Service{
		records:           records,
		health:            hp,
		ranges:            ranges,
		log:               log,
		newID:             uuid.NewString,
		healthConcurrency: DefaultHealthConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRecord validates req and stores it. A record with the same fqdn
// fails with record.ErrDuplicateFQDN; of two concurrent creates exactly one
// succeeds.
func (s *Service) CreateRecord(ctx context.Context, req Request) (record.Record, error) {
	rec, err := s.build(req, nil)
	if err == nil {
		err = s.records.CreateRecord(ctx, rec)
	}
	metrics.RecordOperations.WithLabelValues("create", metrics.Result(err)).Inc()
	if err != nil {
		return record.Record{}, err
	}

	s.log.Info("record created", "fqdn", rec.FQDN, "type", rec.Type, "targets", len(rec.Targets))
	return rec, nil
}

// UpdateRecord replaces the record named by req.FQDN. The input is validated
// from scratch against req.Type, which may differ from the stored type.
// Targets sent without an id keep the id of the stored target with the same
// address. A zero TTL keeps the stored TTL.
func (s *Service) UpdateRecord(ctx context.Context, req Request) (record.Record, error) {
	rec, err := s.update(ctx, req)
	metrics.RecordOperations.WithLabelValues("update", metrics.Result(err)).Inc()
	if err != nil {
		return record.Record{}, err
	}

	s.log.Info("record updated", "fqdn", rec.FQDN, "type", rec.Type, "targets", len(rec.Targets))
	return rec, nil
}

func (s *Service) update(ctx context.Context, req Request) (record.Record, error) {
	fqdn, err := record.CanonicalFQDN(req.FQDN)
	if err != nil {
		return record.Record{}, err
	}
	prev, err := s.records.GetRecord(ctx, fqdn)
	if err != nil {
		return record.Record{}, err
	}
	rec, err := s.build(req, &prev)
	if err != nil {
		return record.Record{}, err
	}
	if err := s.records.UpdateRecord(ctx, rec); err != nil {
		return record.Record{}, err
	}
	return rec, nil
}

// DeleteRecord removes the record and any health samples held for it.
func (s *Service) DeleteRecord(ctx context.Context, fqdn string) error {
	err := s.delete(ctx, fqdn)
	metrics.RecordOperations.WithLabelValues("delete", metrics.Result(err)).Inc()
	return err
}

func (s *Service) delete(ctx context.Context, fqdn string) error {
	fqdn, err := record.CanonicalFQDN(fqdn)
	if err != nil {
		return err
	}
	if err := s.records.DeleteRecord(ctx, fqdn); err != nil {
		return err
	}
	metrics.ForgetRecord(fqdn)

	if reporter, ok := s.health.(health.Reporter); ok {
		if err := reporter.Forget(ctx, fqdn); err != nil {
			s.log.Error(err, "failed to drop health samples", "fqdn", fqdn)
		}
	}
	s.log.Info("record deleted", "fqdn", fqdn)
	return nil
}

// GetRecord returns the record with its derived status. A health provider
// failure does not fail the read: the status becomes unknown and
// HealthUnavailable is set.
func (s *Service) GetRecord(ctx context.Context, fqdn string) (RecordStatus, error) {
	fqdn, err := record.CanonicalFQDN(fqdn)
	if err != nil {
		return RecordStatus{}, err
	}
	rec, err := s.records.GetRecord(ctx, fqdn)
	if err != nil {
		return RecordStatus{}, err
	}
	return s.withStatus(ctx, rec), nil
}

// ListRecords returns every record with its status, ordered by fqdn. Health
// reads run concurrently, bounded by the configured concurrency.
func (s *Service) ListRecords(ctx context.Context) ([]RecordStatus, error) {
	recs, err := s.records.ListRecords(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RecordStatus, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.healthConcurrency)
	for i, rec := range recs {
		g.Go(func() error {
			out[i] = s.withStatus(gctx, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordExists reports whether a record is stored under host and its type.
func (s *Service) RecordExists(ctx context.Context, host string) (record.Type, bool, error) {
	fqdn, err := record.CanonicalFQDN(host)
	if err != nil {
		return "", false, err
	}
	rec, err := s.records.GetRecord(ctx, fqdn)
	switch {
	case errdefs.IsNotFound(err):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return rec.Type, true, nil
}

// ReportHealth hands a prober observation to the health provider. The
// record and target must exist.
func (s *Service) ReportHealth(ctx context.Context, r health.Report) (health.Sample, error) {
	reporter, ok := s.health.(health.Reporter)
	if !ok {
		return health.Sample{}, ErrReportingUnsupported
	}

	fqdn, err := record.CanonicalFQDN(r.FQDN)
	if err != nil {
		return health.Sample{}, err
	}
	rec, err := s.records.GetRecord(ctx, fqdn)
	if err != nil {
		return health.Sample{}, err
	}
	r.TargetID = strings.TrimSpace(r.TargetID)
	if !sets.New(rec.TargetIDs()...).Has(r.TargetID) {
		return health.Sample{}, errdefs.Invalid(errdefs.KindInvalidReport, r.TargetID, fmt.Sprintf("record %s has no such target", fqdn))
	}

	r.FQDN = fqdn
	return reporter.Report(ctx, r)
}

func (s *Service) withStatus(ctx context.Context, rec record.Record) RecordStatus {
	out := RecordStatus{Record: rec, Status: health.StatusUnknown, Health: map[string]health.Sample{}}

	samples, err := s.health.Samples(ctx, rec.FQDN)
	if err != nil {
		metrics.HealthReadErrors.Inc()
		s.log.Error(err, "health read failed, reporting unknown", "fqdn", rec.FQDN)
		out.HealthUnavailable = true
		metrics.ObserveStatus(rec.FQDN, string(out.Status), allStatuses)
		return out
	}

	ids := sets.New(rec.TargetIDs()...)
	for id, sample := range samples {
		if ids.Has(id) {
			out.Health[id] = sample
		}
	}
	out.Status = health.Aggregate(ids, out.Health)
	metrics.ObserveStatus(rec.FQDN, string(out.Status), allStatuses)
	return out
}

// build canonicalizes and validates req. prev is the stored record on update.
func (s *Service) build(req Request, prev *record.Record) (record.Record, error) {
	fqdn, err := record.CanonicalFQDN(req.FQDN)
	if err != nil {
		return record.Record{}, err
	}
	targets, err := record.Validate(req.Type, s.enrich(req.Targets, prev))
	if err != nil {
		return record.Record{}, err
	}

	ttl := req.TTL
	if ttl <= 0 && prev != nil {
		ttl = prev.TTL
	}
	if ttl <= 0 {
		ttl = record.DefaultTTL
	}
	return record.Record{FQDN: fqdn, Type: req.Type, TTL: ttl, Targets: targets}, nil
}

// enrich fills what the caller may leave out: a missing id is reused from
// the stored target with the same address or generated, and a missing
// geo_location is looked up in the IP range registry.
func (s *Service) enrich(in []record.Candidate, prev *record.Record) []record.Candidate {
	idByIP := map[string]string{}
	if prev != nil {
		for _, t := range prev.Targets {
			idByIP[t.IP] = t.ID
		}
	}
	used := sets.New[string]()
	for _, c := range in {
		if id := strings.TrimSpace(c.ID); id != "" {
			used.Insert(id)
		}
	}

	out := make([]record.Candidate, len(in))
	for i, c := range in {
		if strings.TrimSpace(c.ID) == "" {
			if id, ok := idByIP[strings.TrimSpace(c.IP)]; ok && !used.Has(id) {
				c.ID = id
			} else {
				c.ID = s.newID()
			}
			used.Insert(c.ID)
		}
		if c.GeoLocation == nil && s.ranges != nil {
			if loc, ok, err := s.ranges.Locate(c.IP); err == nil && ok {
				country := loc.ISOCode
				if country == "" {
					country = loc.Country
				}
				c.GeoLocation = &record.GeoLocation{Country: country, Region: loc.Region}
			}
		}
		out[i] = c
	}
	return out
}
