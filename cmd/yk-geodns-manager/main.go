package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/api"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/config"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/controller"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/health"
	_ "github.com/yuriy-kovalchuk/yk-geodns-manager/internal/health/providers"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/iprange"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/service"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/store"
	_ "github.com/yuriy-kovalchuk/yk-geodns-manager/internal/store/backends"
)

var (
	scheme  = runtime.NewScheme()
	Version = "dev"
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(gatewayv1.Install(scheme))
}

func main() {
	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	log := ctrl.Log.WithName("setup")
	log.Info("starting yk-geodns-manager", "version", Version)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}
	log.Info("loaded config", "listen", cfg.Listen, "store", cfg.Store.Backend, "health", cfg.Health.Provider, "routeSync", cfg.RouteSync.Enabled)

	ctx := ctrl.SetupSignalHandler()

	backend, err := store.New(cfg.Store.Backend, ctrl.Log.WithName("store-"+cfg.Store.Backend), cfg.Store.Settings)
	if err != nil {
		return fmt.Errorf("unable to create store backend: %w", err)
	}

	ranges, err := iprange.NewRegistry(ctx, backend, ctrl.Log.WithName("ip-ranges"))
	if err != nil {
		return fmt.Errorf("unable to load ip ranges: %w", err)
	}

	healthProvider, err := health.NewProvider(cfg.Health.Provider, ctrl.Log.WithName("health-"+cfg.Health.Provider), cfg.Health.Settings)
	if err != nil {
		return fmt.Errorf("unable to create health provider: %w", err)
	}

	svc := service.New(backend, healthProvider, ranges, ctrl.Log.WithName("service"))

	ready := map[string]healthz.Checker{
		"store": func(req *http.Request) error {
			_, err := backend.ListRanges(req.Context())
			return err
		},
	}
	server := api.NewServer(cfg.Listen, api.NewRouter(svc, ctrl.Log.WithName("api"), ready), ctrl.Log.WithName("http"))

	if !cfg.RouteSync.Enabled {
		return server.Start(ctx)
	}
	return runWithRouteSync(ctx, cfg, svc, server)
}

// runWithRouteSync runs the API server as a runnable of a controller-runtime
// manager that also syncs HTTPRoute hostnames into records.
func runWithRouteSync(ctx context.Context, cfg *config.Config, svc *service.Service, server *api.Server) error {
	log := ctrl.Log.WithName("setup")

	domainMap, err := config.LoadDomainMap(cfg.RouteSync.DomainMapPath)
	if err != nil {
		return fmt.Errorf("unable to load domain map: %w", err)
	}
	log.Info("loaded domain map", "path", cfg.RouteSync.DomainMapPath, "domains", len(domainMap.Domains()))

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsserver.Options{BindAddress: cfg.RouteSync.MetricsAddr},
		HealthProbeBindAddress: cfg.RouteSync.ProbeAddr,
	})
	if err != nil {
		return fmt.Errorf("unable to create manager: %w", err)
	}

	reconciler := &controller.HTTPRouteReconciler{
		Client:    mgr.GetClient(),
		APIReader: mgr.GetAPIReader(),
		Log:       ctrl.Log.WithName("httproute-controller"),
		DomainMap: domainMap,
		Records:   svc,
		TTL:       cfg.RouteSync.TTL,
		Upsert:    cfg.RouteSync.Upsert,
	}
	if err := reconciler.SetupWithManager(mgr); err != nil {
		return fmt.Errorf("unable to set up HTTPRoute controller: %w", err)
	}
	if err := mgr.Add(server); err != nil {
		return fmt.Errorf("unable to add API server to manager: %w", err)
	}

	log.Info("starting manager")
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("manager exited with error: %w", err)
	}
	return nil
}
