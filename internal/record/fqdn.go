package record

import (
	"strings"

	"github.com/miekg/dns"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/errdefs"
)

// CanonicalFQDN lower-cases name and strips the trailing dot, so that
// "App.Example.com." and "app.example.com" address the same record.
func CanonicalFQDN(name string) (string, error) {
	fqdn := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
	if fqdn == "" {
		return "", errdefs.Invalid(errdefs.KindInvalidFQDN, name, "fqdn is required")
	}
	if _, ok := dns.IsDomainName(fqdn); !ok {
		return "", errdefs.Invalid(errdefs.KindInvalidFQDN, name, "not a valid domain name")
	}
	for _, r := range fqdn {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.', r == '*':
		default:
			return "", errdefs.Invalid(errdefs.KindInvalidFQDN, name, "unexpected character "+string(r))
		}
	}
	return fqdn, nil
}
