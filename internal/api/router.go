// Package api exposes the service over HTTP/JSON.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/health"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/iprange"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/metrics"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/record"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/service"
)

// Service is the subset of *service.Service the handlers call.
type Service interface {
	CreateRecord(ctx context.Context, req service.Request) (record.Record, error)
	UpdateRecord(ctx context.Context, req service.Request) (record.Record, error)
	DeleteRecord(ctx context.Context, fqdn string) error
	GetRecord(ctx context.Context, fqdn string) (service.RecordStatus, error)
	ListRecords(ctx context.Context) ([]service.RecordStatus, error)
	RecordExists(ctx context.Context, host string) (record.Type, bool, error)
	ReportHealth(ctx context.Context, r health.Report) (health.Sample, error)

	CreateRange(ctx context.Context, r iprange.Range) (iprange.Range, error)
	UpdateRange(ctx context.Context, startIP string, patch iprange.Patch) (iprange.Range, error)
	DeleteRange(ctx context.Context, startIP string) error
	ListRanges(limit int, startAfter string) (iprange.Page, error)
	LookupCountry(address string) (iprange.Location, bool, error)
}

// Handler serves the /api routes.
type Handler struct {
	svc Service
	log logr.Logger
}

// NewRouter builds the full HTTP surface: the /api routes, liveness and
// readiness probes, and the Prometheus endpoint. readyChecks are served
// under /readyz in addition to a ping check.
func NewRouter(svc Service, log logr.Logger, readyChecks map[string]healthz.Checker) http.Handler {
	h := &Handler{svc: svc, log: log}

	r := mux.NewRouter()
	r.Use(instrument)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/records", h.listRecords).Methods(http.MethodGet)
	api.HandleFunc("/records", h.createRecord).Methods(http.MethodPost)
	api.HandleFunc("/records/{fqdn}", h.getRecord).Methods(http.MethodGet)
	api.HandleFunc("/records/{fqdn}", h.updateRecord).Methods(http.MethodPut)
	api.HandleFunc("/records/{fqdn}", h.deleteRecord).Methods(http.MethodDelete)
	api.HandleFunc("/exists", h.recordExists).Methods(http.MethodGet)
	api.HandleFunc("/health", h.reportHealth).Methods(http.MethodPost)

	api.HandleFunc("/ip-ranges", h.listRanges).Methods(http.MethodGet)
	api.HandleFunc("/ip-ranges", h.createRange).Methods(http.MethodPost)
	api.HandleFunc("/ip-ranges/{start_ip}", h.updateRange).Methods(http.MethodPut)
	api.HandleFunc("/ip-ranges/{start_ip}", h.deleteRange).Methods(http.MethodDelete)
	api.HandleFunc("/ip-geo/{address}", h.lookupCountry).Methods(http.MethodGet)

	// Set on the root router: a subrouter's NotFoundHandler would answer
	// method mismatches before MethodNotAllowedHandler runs.
	r.NotFoundHandler = http.HandlerFunc(h.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)

	ready := map[string]healthz.Checker{"ping": healthz.Ping}
	for name, check := range readyChecks {
		ready[name] = check
	}
	r.PathPrefix("/healthz").Handler(http.StripPrefix("/healthz", &healthz.Handler{Checks: map[string]healthz.Checker{"ping": healthz.Ping}}))
	r.PathPrefix("/readyz").Handler(http.StripPrefix("/readyz", &healthz.Handler{Checks: ready}))
	r.Handle("/metrics", promhttp.HandlerFor(ctrlmetrics.Registry, promhttp.HandlerOpts{}))

	return corsMiddleware(r)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument counts requests by route template so that record names and
// addresses do not become label values.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.code)).Inc()
	})
}
