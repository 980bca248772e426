// Package sqliteexternal registers the optional CGO SQLite driver.
//
// citesync stores bibliography databases through core/sqlite, which uses the
// pure Go modernc.org/sqlite driver by default. Building with
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./...
//
// makes core/sqlite import this package instead, which registers
// github.com/mattn/go-sqlite3. Prefer it when large bibliographies are
// queried often and CGO is already part of the build.
package sqliteexternal
