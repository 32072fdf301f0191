package controller

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-logr/logr"
	"k8s.io/client-go/util/retry"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/config"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/errdefs"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/record"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/service"
)

const (
	finalizerName              = "geodns.yk/cleanup"
	managedHostnamesAnnotation = "geodns.yk/managed-hostnames"

	// routeTargetID is the target id of records created from a route.
	routeTargetID = "lb"
)

// Records is the part of the service the reconciler drives.
type Records interface {
	RecordExists(ctx context.Context, host string) (record.Type, bool, error)
	CreateRecord(ctx context.Context, req service.Request) (record.Record, error)
	UpdateRecord(ctx context.Context, req service.Request) (record.Record, error)
	DeleteRecord(ctx context.Context, fqdn string) error
}

// HTTPRouteReconciler keeps a single record per HTTPRoute hostname that the
// domain map resolves, pointing at the mapped load balancer address.
type HTTPRouteReconciler struct {
	client.Client
	APIReader client.Reader
	Log       logr.Logger
	DomainMap *config.DomainMap
	Records   Records
	TTL       int
	Upsert    bool // when true, rewrite existing records; when false, only create missing ones
}

func (r *HTTPRouteReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	var route gatewayv1.HTTPRoute
	if err := r.reader().Get(ctx, req.NamespacedName, &route); err != nil {
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}

	// Handle deletion
	if !route.DeletionTimestamp.IsZero() {
		if controllerutil.ContainsFinalizer(&route, finalizerName) {
			r.Log.Info("deleting records for HTTPRoute", "name", req.NamespacedName)
			hosts := managedHostnames(&route)
			for _, host := range routeHostnames(&route) {
				if _, ok := r.DomainMap.LookupIP(host); ok {
					hosts = append(hosts, host)
				}
			}
			for _, host := range mergeHostnames(hosts) {
				if err := r.deleteRecord(ctx, host); err != nil {
					return ctrl.Result{}, err
				}
			}
			if err := r.updateRoute(ctx, req, func(rt *gatewayv1.HTTPRoute) {
				controllerutil.RemoveFinalizer(rt, finalizerName)
			}); err != nil {
				return ctrl.Result{}, fmt.Errorf("failed to remove finalizer: %w", err)
			}
		}
		return ctrl.Result{}, nil
	}

	if !controllerutil.ContainsFinalizer(&route, finalizerName) {
		if err := r.updateRoute(ctx, req, func(rt *gatewayv1.HTTPRoute) {
			controllerutil.AddFinalizer(rt, finalizerName)
		}); err != nil {
			return ctrl.Result{}, fmt.Errorf("failed to add finalizer: %w", err)
		}
		return ctrl.Result{}, nil
	}

	previous := managedHostnames(&route)
	current := make([]string, 0, len(route.Spec.Hostnames))

	for _, host := range routeHostnames(&route) {
		ip, ok := r.DomainMap.LookupIP(host)
		if !ok {
			r.Log.V(1).Info("no domain mapping found for hostname", "hostname", host)
			continue
		}
		r.Log.V(1).Info("resolved hostname to IP", "hostname", host, "ip", ip)
		if err := r.ensureRecord(ctx, host, ip); err != nil {
			return ctrl.Result{}, err
		}
		current = append(current, host)
	}

	// Delete records of hostnames that are no longer served by the route
	for _, old := range previous {
		if slices.Contains(current, old) {
			continue
		}
		r.Log.Info("hostname removed from HTTPRoute, deleting record", "hostname", old)
		if err := r.deleteRecord(ctx, old); err != nil {
			return ctrl.Result{}, err
		}
	}

	if !slices.Equal(previous, current) {
		if err := r.updateRoute(ctx, req, func(rt *gatewayv1.HTTPRoute) {
			setManagedHostnames(rt, current)
		}); err != nil {
			return ctrl.Result{}, fmt.Errorf("failed to update managed-hostnames annotation: %w", err)
		}
	}

	return ctrl.Result{}, nil
}

func (r *HTTPRouteReconciler) ensureRecord(ctx context.Context, host, ip string) error {
	req := service.Request{
		FQDN:    host,
		Type:    record.TypeSingle,
		TTL:     r.TTL,
		Targets: []record.Candidate{{ID: routeTargetID, IP: ip}},
	}

	typ, exists, err := r.Records.RecordExists(ctx, host)
	if err != nil {
		return fmt.Errorf("checking record for %s: %w", host, err)
	}
	if exists {
		if !r.Upsert {
			r.Log.V(1).Info("record already exists, skipping", "hostname", host, "type", typ)
			return nil
		}
		if _, err := r.Records.UpdateRecord(ctx, req); err != nil {
			return fmt.Errorf("updating record for %s: %w", host, err)
		}
		r.Log.Info("updated record", "hostname", host, "ip", ip)
		return nil
	}

	_, err = r.Records.CreateRecord(ctx, req)
	switch {
	case errdefs.IsConflict(err):
		// Created concurrently through the API.
		r.Log.V(1).Info("record appeared while syncing, skipping", "hostname", host)
		return nil
	case err != nil:
		return fmt.Errorf("creating record for %s: %w", host, err)
	}
	r.Log.Info("created record", "hostname", host, "ip", ip)
	return nil
}

func (r *HTTPRouteReconciler) deleteRecord(ctx context.Context, host string) error {
	err := r.Records.DeleteRecord(ctx, host)
	switch {
	case errdefs.IsNotFound(err):
		r.Log.V(1).Info("record already gone", "hostname", host)
		return nil
	case err != nil:
		return fmt.Errorf("deleting record for %s: %w", host, err)
	}
	r.Log.Info("deleted record", "hostname", host)
	return nil
}

// updateRoute re-reads the route and applies mutate, retrying on conflicts.
func (r *HTTPRouteReconciler) updateRoute(ctx context.Context, req ctrl.Request, mutate func(*gatewayv1.HTTPRoute)) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		var route gatewayv1.HTTPRoute
		if err := r.reader().Get(ctx, req.NamespacedName, &route); err != nil {
			return err
		}
		mutate(&route)
		return r.Update(ctx, &route)
	})
}

// reader bypasses the cache when an API reader is configured, so that the
// finalizer and annotation writes never act on stale objects.
func (r *HTTPRouteReconciler) reader() client.Reader {
	if r.APIReader != nil {
		return r.APIReader
	}
	return r.Client
}

func (r *HTTPRouteReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&gatewayv1.HTTPRoute{}).
		WithEventFilter(predicate.Funcs{
			UpdateFunc: func(e event.UpdateEvent) bool {
				// Reconcile if the Spec (Generation) has changed.
				if e.ObjectOld.GetGeneration() != e.ObjectNew.GetGeneration() {
					return true
				}
				// Also reconcile if finalizers have changed (e.g. our finalizer was added).
				if len(e.ObjectOld.GetFinalizers()) != len(e.ObjectNew.GetFinalizers()) {
					return true
				}
				// Ignore status-only updates.
				return false
			},
		}).
		Complete(r)
}
