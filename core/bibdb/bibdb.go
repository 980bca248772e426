// Package bibdb is the bibliographic database collaborator: entries keyed by
// citation key, an ordered search across several databases, and the entry
// comparator and labeler used when building bibliographies.
package bibdb

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/FocuswithJustin/citesync/core/errors"
)

// Common field names.
const (
	FieldAuthor = "author"
	FieldEditor = "editor"
	FieldYear   = "year"
	FieldTitle  = "title"
)

// Entry is one bibliographic record.
type Entry struct {
	Key    string            `yaml:"key" json:"key"`
	Type   string            `yaml:"type" json:"type"`
	Fields map[string]string `yaml:"fields" json:"fields"`
}

// Field returns the named field, or "" when it is absent.
func (e *Entry) Field(name string) string {
	if e == nil || e.Fields == nil {
		return ""
	}
	return e.Fields[name]
}

// Validate checks that the entry can be stored.
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.Key) == "" {
		return errors.NewValidation("key", "entry key cannot be empty")
	}
	return nil
}

// Database finds entries by citation key.
type Database interface {
	// Name identifies the database in lookups and log output.
	Name() string

	// Lookup returns the entry for key. A missing key is not an error.
	Lookup(ctx context.Context, key string) (*Entry, bool, error)
}

// FindFirst searches dbs in order and returns the first match together with
// the database that holds it.
func FindFirst(ctx context.Context, dbs []Database, key string) (*Entry, Database, bool, error) {
	for _, db := range dbs {
		if err := ctx.Err(); err != nil {
			return nil, nil, false, err
		}
		entry, ok, err := db.Lookup(ctx, key)
		if err != nil {
			return nil, nil, false, errors.Wrapf(err, "lookup %q in %s", key, db.Name())
		}
		if ok {
			return entry, db, true, nil
		}
	}
	return nil, nil, false, nil
}

// MemoryDatabase holds entries in a map.
type MemoryDatabase struct {
	mu      sync.RWMutex
	name    string
	entries map[string]*Entry
}

// NewMemoryDatabase creates a database holding entries.
func NewMemoryDatabase(name string, entries ...Entry) *MemoryDatabase {
	db := &MemoryDatabase{name: name, entries: make(map[string]*Entry)}
	for _, e := range entries {
		db.Put(e)
	}
	return db
}

// Name implements Database.
func (db *MemoryDatabase) Name() string { return db.name }

// Put adds or replaces an entry.
func (db *MemoryDatabase) Put(e Entry) {
	db.mu.Lock()
	defer db.mu.Unlock()
	stored := e
	stored.Fields = make(map[string]string, len(e.Fields))
	for k, v := range e.Fields {
		stored.Fields[k] = v
	}
	db.entries[e.Key] = &stored
}

// Lookup implements Database.
func (db *MemoryDatabase) Lookup(_ context.Context, key string) (*Entry, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.entries[key]
	return e, ok, nil
}

// Keys returns all keys, sorted.
func (db *MemoryDatabase) Keys() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	keys := make([]string, 0, len(db.entries))
	for k := range db.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
