// Package backends imports all store backend packages to trigger their init() registration.
package backends

import (
	_ "github.com/yuriy-kovalchuk/yk-geodns-manager/internal/store/file"
	_ "github.com/yuriy-kovalchuk/yk-geodns-manager/internal/store/memory"
)
