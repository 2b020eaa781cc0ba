package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wharfside/wharf/pkg/lexicon"
	"github.com/wharfside/wharf/pkg/models"
)

func TestRewriteValue_typeTag(t *testing.T) {
	betaID := lexicon.CollectionID(lexicon.KeyConfig, lexicon.NamespaceBeta)
	siteID := lexicon.CollectionID(lexicon.KeyConfig, lexicon.NamespaceSite)

	in := models.Value{models.TypeField: betaID, "title": "Legacy"}
	out := RewriteValue(betaID, in, lexicon.NamespaceSite)

	assert.Equal(t, siteID, out.Type())
	assert.Equal(t, "Legacy", out["title"])
}

func TestRewriteValue_referenceKeepsTenantAndKey(t *testing.T) {
	betaSection := lexicon.CollectionID(lexicon.KeySection, lexicon.NamespaceBeta)
	betaText := lexicon.CollectionID(lexicon.KeyText, lexicon.NamespaceBeta)
	siteText := lexicon.CollectionID(lexicon.KeyText, lexicon.NamespaceSite)

	in := models.Value{
		models.TypeField: betaSection,
		"ref":            "at://did:plc:tenant/" + betaText + "/welcome",
	}
	out := RewriteValue(betaSection, in, lexicon.NamespaceSite)

	got, err := models.ParseAtURI(out["ref"].(string))
	require.NoError(t, err)
	assert.Equal(t, "did:plc:tenant", got.DID)
	assert.Equal(t, siteText, got.Collection)
	assert.Equal(t, "welcome", got.RecordKey)
}

func TestRewriteValue_referenceSlices(t *testing.T) {
	betaSection := lexicon.CollectionID(lexicon.KeySection, lexicon.NamespaceBeta)
	betaText := lexicon.CollectionID(lexicon.KeyText, lexicon.NamespaceBeta)
	siteText := lexicon.CollectionID(lexicon.KeyText, lexicon.NamespaceSite)

	in := models.Value{
		models.TypeField: betaSection,
		"items": []any{
			"at://did:plc:tenant/" + betaText + "/a",
			"not a uri",
			42,
		},
	}
	out := RewriteValue(betaSection, in, lexicon.NamespaceSite)

	items := out["items"].([]any)
	assert.Equal(t, "at://did:plc:tenant/"+siteText+"/a", items[0])
	assert.Equal(t, "not a uri", items[1])
	assert.Equal(t, 42, items[2])
}

func TestRewriteValue_nonReferencesPassThrough(t *testing.T) {
	betaSection := lexicon.CollectionID(lexicon.KeySection, lexicon.NamespaceBeta)

	in := models.Value{
		models.TypeField: betaSection,
		"heading":        "About",
		"order":          float64(2),
		"visible":        true,
		// A URI pointing at a collection outside the registry stays as is.
		"external": "at://did:plc:tenant/app.other.thing/x",
		"nested":   map[string]any{"deep": "untouched"},
	}
	out := RewriteValue(betaSection, in, lexicon.NamespaceSite)

	assert.Equal(t, "About", out["heading"])
	assert.Equal(t, float64(2), out["order"])
	assert.Equal(t, true, out["visible"])
	assert.Equal(t, "at://did:plc:tenant/app.other.thing/x", out["external"])
	assert.Equal(t, map[string]any{"deep": "untouched"}, out["nested"])
}

func TestRewriteValue_isPure(t *testing.T) {
	betaSection := lexicon.CollectionID(lexicon.KeySection, lexicon.NamespaceBeta)
	betaText := lexicon.CollectionID(lexicon.KeyText, lexicon.NamespaceBeta)

	in := models.Value{
		models.TypeField: betaSection,
		"ref":            "at://did:plc:tenant/" + betaText + "/welcome",
	}

	first := RewriteValue(betaSection, in, lexicon.NamespaceSite)
	second := RewriteValue(betaSection, in, lexicon.NamespaceSite)

	assert.Equal(t, first, second)
	// The input is untouched.
	assert.Equal(t, betaSection, in.Type())
	assert.Equal(t, "at://did:plc:tenant/"+betaText+"/welcome", in["ref"])

	// Rewriting an already-rewritten value is a no-op.
	siteSection := lexicon.CollectionID(lexicon.KeySection, lexicon.NamespaceSite)
	assert.Equal(t, first, RewriteValue(siteSection, first, lexicon.NamespaceSite))
}
