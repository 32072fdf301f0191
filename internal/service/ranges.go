package service

import (
	"context"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/iprange"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/metrics"
)

func (s *Service) CreateRange(ctx context.Context, r iprange.Range) (iprange.Range, error) {
	out, err := s.ranges.Insert(ctx, r)
	metrics.RangeOperations.WithLabelValues("create", metrics.Result(err)).Inc()
	return out, err
}

func (s *Service) UpdateRange(ctx context.Context, startIP string, patch iprange.Patch) (iprange.Range, error) {
	out, err := s.ranges.Update(ctx, startIP, patch)
	metrics.RangeOperations.WithLabelValues("update", metrics.Result(err)).Inc()
	return out, err
}

func (s *Service) DeleteRange(ctx context.Context, startIP string) error {
	err := s.ranges.Delete(ctx, startIP)
	metrics.RangeOperations.WithLabelValues("delete", metrics.Result(err)).Inc()
	return err
}

// ListRanges pages through ranges in ascending start order.
func (s *Service) ListRanges(limit int, startAfter string) (iprange.Page, error) {
	return s.ranges.List(limit, startAfter)
}

// LookupCountry classifies address. The bool is false when no range holds it.
func (s *Service) LookupCountry(address string) (iprange.Location, bool, error) {
	return s.ranges.Locate(address)
}
