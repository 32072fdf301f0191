// Package httpsource is a health provider that reads samples from an
// external health-check API.
//
// The API is expected to serve GET {base_url}/health/{fqdn} with a JSON
// object keyed by target id:
//
//	{"web-1": {"status": "healthy", "status_by_region": {"na": "healthy"}, "rtt": {"last_ms": 21}}}
//
// Keys that are not target ids of the record (for example per-region agent
// entries) are tolerated and ignored by the aggregator.
package httpsource

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/health"
)

func init() {
	health.Register("http", func(log logr.Logger, settings map[string]string) (health.Provider, error) {
		return New(log, settings)
	})
}

const defaultTimeout = 5 * time.Second

// Provider implements health.Provider over HTTP.
type Provider struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	log     logr.Logger
}

// New creates an HTTP health provider from the given settings map.
// Required settings: base_url.
// Optional settings: api_key (sent as a bearer token), timeout (default 5s),
// skip_tls_verify (default false).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	baseURL := settings["base_url"]
	if baseURL == "" {
		return nil, fmt.Errorf("httpsource: missing required setting 'base_url'")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("httpsource: invalid base_url %q: %w", baseURL, err)
	}

	timeout := defaultTimeout
	if v := settings["timeout"]; v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("httpsource: invalid timeout %q: %w", v, err)
		}
		timeout = parsed
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if v := settings["skip_tls_verify"]; v == "true" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Provider{
		baseURL: baseURL,
		apiKey:  settings["api_key"],
		timeout: timeout,
		client:  &http.Client{Transport: transport, Timeout: timeout},
		log:     log,
	}, nil
}

// Samples fetches the current samples for fqdn. A 404 means the health
// subsystem has nothing for the record yet and yields an empty map; any
// transport failure or other status wraps health.ErrUnavailable.
func (p *Provider) Samples(ctx context.Context, fqdn string) (map[string]health.Sample, error) {
	endpoint := strings.TrimRight(p.baseURL, "/") + "/health/" + url.PathEscape(fqdn)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("httpsource: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpsource: GET %s: %v: %w", endpoint, err, health.ErrUnavailable)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		p.log.V(1).Info("no health data for record", "fqdn", fqdn)
		return map[string]health.Sample{}, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("httpsource: GET %s returned status %d: %s: %w", endpoint, resp.StatusCode, strings.TrimSpace(string(body)), health.ErrUnavailable)
	}

	var samples map[string]health.Sample
	if err := json.NewDecoder(resp.Body).Decode(&samples); err != nil {
		return nil, fmt.Errorf("httpsource: decode health response: %v: %w", err, health.ErrUnavailable)
	}
	if samples == nil {
		samples = map[string]health.Sample{}
	}
	p.log.V(1).Info("fetched health samples", "fqdn", fqdn, "count", len(samples))
	return samples, nil
}
