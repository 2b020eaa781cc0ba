// Package migrate moves one tenant's records from the beta collection
// namespace to the site namespace. It never deletes; beta records stay
// behind as a permanent fallback for readers that have not migrated.
package migrate

import (
	"github.com/wharfside/wharf/pkg/lexicon"
	"github.com/wharfside/wharf/pkg/models"
)

// RewriteValue produces a copy of value addressed to the target namespace:
// the `$type` tag is replaced with the target collection identifier, and
// every field recognized as a record cross-reference has only its
// collection segment swapped through the registry. Tenant and record-key
// segments of a reference are never touched. Fields that are not
// references pass through unchanged.
//
// The function is pure, which is what makes the orchestrator's copies
// idempotent: rewriting the same source twice yields the same output.
func RewriteValue(collectionID string, value models.Value, target lexicon.Namespace) models.Value {
	out := value.Clone()

	if key, _, ok := lexicon.SemanticKey(collectionID); ok {
		out.SetType(lexicon.CollectionID(key, target))
	}

	for field, v := range out {
		if field == models.TypeField {
			continue
		}
		switch ref := v.(type) {
		case string:
			out[field] = rewriteRef(ref, target)
		case []any:
			rewritten := make([]any, len(ref))
			for i, elem := range ref {
				if s, ok := elem.(string); ok {
					rewritten[i] = rewriteRef(s, target)
				} else {
					rewritten[i] = elem
				}
			}
			out[field] = rewritten
		}
	}
	return out
}

// rewriteRef swaps the collection segment of an at:// reference whose
// collection is in the registry. Anything else comes back verbatim.
func rewriteRef(s string, target lexicon.Namespace) string {
	uri, err := models.ParseAtURI(s)
	if err != nil {
		return s
	}
	key, _, ok := lexicon.SemanticKey(uri.Collection)
	if !ok {
		return s
	}
	return uri.WithCollection(lexicon.CollectionID(key, target)).String()
}
