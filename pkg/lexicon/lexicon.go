// Package lexicon maps semantic collection keys to concrete collection
// identifiers per namespace, and decides which namespace is active for
// writes and which are consulted for reads.
//
// Two parallel namespaces exist for the same set of collections: the legacy
// `app.wharf.beta.*` identifiers and the current `app.wharf.site.*` ones.
// The split is controlled by a single rollout flag; while the rollout is in
// progress, reads consult the site namespace first and fall back to beta.
package lexicon

import (
	"fmt"
	"strings"
)

// Namespace selects one of the two parallel collection naming schemes.
type Namespace string

const (
	// NamespaceBeta is the legacy naming scheme records are migrated away from.
	NamespaceBeta Namespace = "beta"
	// NamespaceSite is the current naming scheme records are migrated to.
	NamespaceSite Namespace = "site"
)

// Key is a semantic, namespace-independent name for one category of records.
type Key string

const (
	KeyConfig   Key = "config"
	KeyLayout   Key = "layout"
	KeyProfile  Key = "profile"
	KeySection  Key = "section"
	KeyText     Key = "text"
	KeyKeepsake Key = "keepsake"
)

// RecordKeySelf is the fixed record key used by all singleton collections.
const RecordKeySelf = "self"

var collections = map[Key]map[Namespace]string{
	KeyConfig:   {NamespaceBeta: "app.wharf.beta.config", NamespaceSite: "app.wharf.site.config"},
	KeyLayout:   {NamespaceBeta: "app.wharf.beta.layout", NamespaceSite: "app.wharf.site.layout"},
	KeyProfile:  {NamespaceBeta: "app.wharf.beta.profile", NamespaceSite: "app.wharf.site.profile"},
	KeySection:  {NamespaceBeta: "app.wharf.beta.section", NamespaceSite: "app.wharf.site.section"},
	KeyText:     {NamespaceBeta: "app.wharf.beta.text", NamespaceSite: "app.wharf.site.text"},
	KeyKeepsake: {NamespaceBeta: "app.wharf.beta.keepsake", NamespaceSite: "app.wharf.site.keepsake"},
}

var singletons = map[Key]bool{
	KeyConfig:  true,
	KeyLayout:  true,
	KeyProfile: true,
}

// reverse is built once from collections so identifier lookups stay O(1).
var reverse = func() map[string]struct {
	key Key
	ns  Namespace
} {
	m := make(map[string]struct {
		key Key
		ns  Namespace
	})
	for key, byNS := range collections {
		for ns, id := range byNS {
			m[id] = struct {
				key Key
				ns  Namespace
			}{key, ns}
		}
	}
	return m
}()

// Keys returns every known collection key in a stable order.
func Keys() []Key {
	return []Key{KeyConfig, KeyLayout, KeyProfile, KeySection, KeyText, KeyKeepsake}
}

// Singleton reports whether the key names a collection holding exactly one
// record per tenant, at RecordKeySelf.
func (k Key) Singleton() bool {
	return singletons[k]
}

// CollectionID returns the concrete collection identifier for a key within
// a namespace. Unknown keys are a programming error and panic.
func CollectionID(key Key, ns Namespace) string {
	byNS, ok := collections[key]
	if !ok {
		panic(fmt.Sprintf("lexicon: unknown collection key %q", key))
	}
	id, ok := byNS[ns]
	if !ok {
		panic(fmt.Sprintf("lexicon: unknown namespace %q", ns))
	}
	return id
}

// SemanticKey resolves a concrete collection identifier back to its semantic
// key and namespace. The boolean is false for identifiers outside the
// registry.
func SemanticKey(collectionID string) (Key, Namespace, bool) {
	e, ok := reverse[collectionID]
	if !ok {
		return "", "", false
	}
	return e.key, e.ns, true
}

// WriteNamespace returns the single namespace that receives writes.
func WriteNamespace(rollout bool) Namespace {
	if rollout {
		return NamespaceSite
	}
	return NamespaceBeta
}

// ReadNamespaces returns the namespaces to consult for reads, most
// preferred first.
func ReadNamespaces(rollout bool) []Namespace {
	if rollout {
		return []Namespace{NamespaceSite, NamespaceBeta}
	}
	return []Namespace{NamespaceBeta}
}

// RolloutEnabled parses an environment-provided rollout flag value. Only a
// small set of case-insensitive truthy tokens enables the rollout; anything
// else, including the empty string, disables it.
func RolloutEnabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
