// Package models defines the record data model shared by the client, the
// migration engine and the site resolver.
//
// Record values are effectively untyped JSON objects. Rather than imposing
// full schema validation, Value keeps the payload opaque except for the
// well-known `$type` tag, and SiteConfig offers a typed view over the
// configuration singleton that round-trips unknown fields untouched.
package models

import (
	"fmt"
	"strings"
)

// TypeField is the well-known value field carrying the record's own
// collection identifier.
const TypeField = "$type"

// MigrationVersionField is the marker field inside the site-namespace
// configuration record that records completed migration.
const MigrationVersionField = "migrationVersion"

// CurrentMigrationVersion is the version written by a completed migration
// run. A marker at or above this value means the tenant needs no further
// work.
const CurrentMigrationVersion = 1

// AtURI addresses one record as at://<did>/<collection>/<rkey>.
type AtURI struct {
	DID        string
	Collection string
	RecordKey  string
}

const atScheme = "at://"

// ParseAtURI parses an at:// record URI. All three segments are required.
func ParseAtURI(s string) (AtURI, error) {
	if !strings.HasPrefix(s, atScheme) {
		return AtURI{}, fmt.Errorf("not an at:// uri: %q", s)
	}
	parts := strings.Split(strings.TrimPrefix(s, atScheme), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return AtURI{}, fmt.Errorf("malformed at:// uri: %q", s)
	}
	return AtURI{DID: parts[0], Collection: parts[1], RecordKey: parts[2]}, nil
}

func (u AtURI) String() string {
	return atScheme + u.DID + "/" + u.Collection + "/" + u.RecordKey
}

func (u AtURI) IsZero() bool {
	return u == AtURI{}
}

// WithCollection returns a copy of the URI with only the collection segment
// replaced. The tenant and record-key segments are never touched.
func (u AtURI) WithCollection(collectionID string) AtURI {
	u.Collection = collectionID
	return u
}

// Value is a record payload. It is opaque apart from the type tag.
type Value map[string]any

// Type returns the `$type` tag, or "" when absent.
func (v Value) Type() string {
	s, _ := v[TypeField].(string)
	return s
}

func (v Value) SetType(collectionID string) {
	v[TypeField] = collectionID
}

// Clone returns a shallow copy. Nested values are shared with the
// original, which is fine for the rewriter since it only replaces
// top-level entries.
func (v Value) Clone() Value {
	out := make(Value, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Record pairs a record's URI with its value.
type Record struct {
	URI   AtURI `json:"uri"`
	Value Value `json:"value"`
}

// SiteConfig is a typed view over the configuration singleton's value.
// Mutations write through to the underlying Value, so unknown fields are
// preserved.
type SiteConfig struct {
	v Value
}

// ConfigFromValue wraps v; a nil value yields an empty, writable config.
func ConfigFromValue(v Value) SiteConfig {
	if v == nil {
		v = Value{}
	}
	return SiteConfig{v: v}
}

// Value returns the underlying payload.
func (c SiteConfig) Value() Value {
	return c.v
}

func (c SiteConfig) Title() string {
	s, _ := c.v["title"].(string)
	return s
}

func (c SiteConfig) SetTitle(title string) {
	c.v["title"] = title
}

// MigrationVersion returns the marker value, or 0 when absent. JSON
// decoding yields float64 for numbers, so both forms are accepted.
func (c SiteConfig) MigrationVersion() int {
	switch n := c.v[MigrationVersionField].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// SetMigrationVersion sets the marker, never letting it decrease.
func (c SiteConfig) SetMigrationVersion(version int) {
	if version < c.MigrationVersion() {
		return
	}
	c.v[MigrationVersionField] = version
}
