package controller

import (
	"encoding/json"
	"sort"

	"k8s.io/apimachinery/pkg/util/sets"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/record"
)

// routeHostnames returns the canonical hostnames of the route, without
// duplicates and in route order. Hostnames that are not valid record names
// are skipped.
func routeHostnames(route *gatewayv1.HTTPRoute) []string {
	seen := sets.New[string]()
	out := make([]string, 0, len(route.Spec.Hostnames))
	for _, h := range route.Spec.Hostnames {
		fqdn, err := record.CanonicalFQDN(string(h))
		if err != nil || seen.Has(fqdn) {
			continue
		}
		seen.Insert(fqdn)
		out = append(out, fqdn)
	}
	return out
}

// managedHostnames reads the hostnames recorded by the last successful sync.
// A missing or unreadable annotation means none.
func managedHostnames(route *gatewayv1.HTTPRoute) []string {
	val, ok := route.Annotations[managedHostnamesAnnotation]
	if !ok {
		return nil
	}
	var hosts []string
	if err := json.Unmarshal([]byte(val), &hosts); err != nil {
		return nil
	}
	return hosts
}

func setManagedHostnames(route *gatewayv1.HTTPRoute, hosts []string) {
	if route.Annotations == nil {
		route.Annotations = make(map[string]string)
	}
	data, _ := json.Marshal(hosts)
	route.Annotations[managedHostnamesAnnotation] = string(data)
}

// mergeHostnames returns the sorted union of the given lists.
func mergeHostnames(lists ...[]string) []string {
	all := sets.New[string]()
	for _, l := range lists {
		all.Insert(l...)
	}
	out := all.UnsortedList()
	sort.Strings(out)
	return out
}
