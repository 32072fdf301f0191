package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geodns.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromPath(t *testing.T) {
	t.Setenv("HEALTH_TOKEN", "s3cret")
	path := writeConfig(t, `listen: ":9000"
store:
  backend: file
  settings:
    path: /var/lib/geodns/state.yaml
health:
  provider: http
  settings:
    base_url: "https://health.internal"
    api_key: "${HEALTH_TOKEN}"
    timeout: 2s
routeSync:
  enabled: true
  domainMapPath: /etc/geodns/domain-map.yaml
  ttl: 60
  upsert: true
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &Config{
		Listen: ":9000",
		Store:  BackendConfig{Backend: "file", Settings: map[string]string{"path": "/var/lib/geodns/state.yaml"}},
		Health: ProviderConfig{Provider: "http", Settings: map[string]string{
			"base_url": "https://health.internal",
			"api_key":  "s3cret",
			"timeout":  "2s",
		}},
		RouteSync: RouteSyncConfig{
			Enabled:       true,
			DomainMapPath: "/etc/geodns/domain-map.yaml",
			TTL:           60,
			Upsert:        true,
			MetricsAddr:   "0",
			ProbeAddr:     "0",
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("LoadFromPath() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromPath_Defaults(t *testing.T) {
	cfg, err := LoadFromPath(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("expected defaults (-want +got):\n%s", diff)
	}
	if cfg.Store.Backend != "memory" || cfg.Health.Provider != "memory" || cfg.Listen != ":8080" || cfg.RouteSync.Enabled {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFromPath_Errors(t *testing.T) {
	tests := map[string]string{
		"malformed":    "store: [",
		"negative ttl": "routeSync:\n  ttl: -5\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFromPath(writeConfig(t, content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "listen: \":7000\"\n"))
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":7000" {
		t.Errorf("expected CONFIG_PATH to be used, got %q", cfg.Listen)
	}

	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
