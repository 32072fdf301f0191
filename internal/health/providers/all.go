// Package providers imports all health provider packages to trigger their init() registration.
package providers

import (
	_ "github.com/yuriy-kovalchuk/yk-geodns-manager/internal/health/httpsource"
	_ "github.com/yuriy-kovalchuk/yk-geodns-manager/internal/health/memory"
)
