//go:build cgo_sqlite

// CGO SQLite driver, selected with the cgo_sqlite build tag.
//
// Build with: go build -tags cgo_sqlite
// Requires: CGO_ENABLED=1
package sqlite

import (
	sqliteexternal "github.com/FocuswithJustin/citesync/contrib/sqlite-external"
)

const (
	driverName    = sqliteexternal.DriverName
	driverType    = sqliteexternal.DriverType
	driverPackage = sqliteexternal.DriverPackage + " (via contrib/sqlite-external)"
)
