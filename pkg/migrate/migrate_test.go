package migrate_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wharfside/wharf/internal/fakepds"
	"github.com/wharfside/wharf/pkg/lexicon"
	"github.com/wharfside/wharf/pkg/migrate"
	"github.com/wharfside/wharf/pkg/models"
	"github.com/wharfside/wharf/pkg/repo"
)

const tenant = "did:plc:w4rfh0lder"

func newMigrator(t *testing.T, pds *fakepds.Server, session repo.Session) *migrate.Migrator {
	t.Helper()
	store := repo.NewClient(pds.URL(), session)
	return migrate.New(store, session, zerolog.Nop())
}

func ownerSession() repo.Session {
	return repo.Session{DID: tenant, AccessToken: "test-token"}
}

func betaID(key lexicon.Key) string { return lexicon.CollectionID(key, lexicon.NamespaceBeta) }
func siteID(key lexicon.Key) string { return lexicon.CollectionID(key, lexicon.NamespaceSite) }

func seedLegacySite(pds *fakepds.Server) {
	pds.Seed(tenant, betaID(lexicon.KeyConfig), lexicon.RecordKeySelf, models.Value{
		models.TypeField: betaID(lexicon.KeyConfig),
		"title":          "Legacy",
	})
	pds.Seed(tenant, betaID(lexicon.KeySection), "abc123", models.Value{
		models.TypeField: betaID(lexicon.KeySection),
		"ref":            "at://" + tenant + "/" + betaID(lexicon.KeyText) + "/welcome",
	})
}

func TestRun_notOwnerMakesNoCalls(t *testing.T) {
	pds := fakepds.New()
	defer pds.Close()
	seedLegacySite(pds)

	other := repo.Session{DID: "did:plc:someoneelse", AccessToken: "tok"}
	m := newMigrator(t, pds, other)

	res, err := m.Run(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, migrate.StateDone, res.State)
	assert.Equal(t, "not owner", res.Skipped)
	assert.Zero(t, pds.TotalCalls())
}

func TestRun_unauthenticatedMakesNoCalls(t *testing.T) {
	pds := fakepds.New()
	defer pds.Close()
	seedLegacySite(pds)

	m := newMigrator(t, pds, repo.Session{})
	res, err := m.Run(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, "not owner", res.Skipped)
	assert.Zero(t, pds.TotalCalls())
}

func TestRun_scenarioLegacyCopy(t *testing.T) {
	pds := fakepds.New()
	defer pds.Close()
	seedLegacySite(pds)

	m := newMigrator(t, pds, ownerSession())
	res, err := m.Run(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, migrate.StateDone, res.State)
	assert.Equal(t, 2, res.Copied)

	section := pds.Record(tenant, siteID(lexicon.KeySection), "abc123")
	require.NotNil(t, section)
	assert.Equal(t, siteID(lexicon.KeySection), section.Type())
	assert.Equal(t, "at://"+tenant+"/"+siteID(lexicon.KeyText)+"/welcome", section["ref"])

	config := pds.Record(tenant, siteID(lexicon.KeyConfig), lexicon.RecordKeySelf)
	require.NotNil(t, config)
	cfg := models.ConfigFromValue(config)
	assert.Equal(t, "Legacy", cfg.Title())
	assert.Equal(t, models.CurrentMigrationVersion, cfg.MigrationVersion())

	// Legacy records are never deleted.
	assert.NotNil(t, pds.Record(tenant, betaID(lexicon.KeyConfig), lexicon.RecordKeySelf))
	assert.NotNil(t, pds.Record(tenant, betaID(lexicon.KeySection), "abc123"))
	assert.Zero(t, pds.Calls("deleteRecord"))
}

func TestRun_markerFastPath(t *testing.T) {
	pds := fakepds.New()
	defer pds.Close()
	pds.Seed(tenant, siteID(lexicon.KeyConfig), lexicon.RecordKeySelf, models.Value{
		models.TypeField:             siteID(lexicon.KeyConfig),
		"title":                      "Done already",
		models.MigrationVersionField: float64(models.CurrentMigrationVersion),
	})

	m := newMigrator(t, pds, ownerSession())
	res, err := m.Run(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, "already migrated", res.Skipped)

	assert.Equal(t, 1, pds.Calls("getRecord"))
	assert.Zero(t, pds.Calls("putRecord"))
	assert.Zero(t, pds.Calls("listRecords"))
}

func TestRun_idempotent(t *testing.T) {
	pds := fakepds.New()
	defer pds.Close()
	seedLegacySite(pds)

	m := newMigrator(t, pds, ownerSession())
	_, err := m.Run(context.Background(), tenant)
	require.NoError(t, err)

	after := map[string]map[string]models.Value{}
	for _, key := range lexicon.Keys() {
		after[siteID(key)] = pds.Collection(tenant, siteID(key))
	}
	puts := pds.Calls("putRecord")

	// Second run is the marker fast path: same records, no extra writes.
	res, err := m.Run(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, "already migrated", res.Skipped)
	assert.Equal(t, puts, pds.Calls("putRecord"))
	for _, key := range lexicon.Keys() {
		assert.Equal(t, after[siteID(key)], pds.Collection(tenant, siteID(key)))
	}
}

func TestRun_emptyTenantWritesNothing(t *testing.T) {
	pds := fakepds.New()
	defer pds.Close()

	m := newMigrator(t, pds, ownerSession())
	res, err := m.Run(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, migrate.StateDone, res.State)
	assert.Equal(t, "nothing to migrate", res.Skipped)
	assert.Zero(t, pds.Calls("putRecord"))
	assert.Nil(t, pds.Record(tenant, siteID(lexicon.KeyConfig), lexicon.RecordKeySelf))
}

func TestRun_storeFailureAbortsWithoutMarker(t *testing.T) {
	pds := fakepds.New()
	defer pds.Close()
	seedLegacySite(pds)

	pds.FailCalls("putRecord", 1, http.StatusInternalServerError, "InternalServerError")

	m := newMigrator(t, pds, ownerSession())
	res, err := m.Run(context.Background(), tenant)
	require.Error(t, err)
	assert.Equal(t, migrate.StateAborted, res.State)

	// The marker was not committed, so the next visit retries and
	// completes.
	config := pds.Record(tenant, siteID(lexicon.KeyConfig), lexicon.RecordKeySelf)
	if config != nil {
		assert.Less(t, models.ConfigFromValue(config).MigrationVersion(), models.CurrentMigrationVersion)
	}

	res, err = m.Run(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, migrate.StateDone, res.State)
	cfg := models.ConfigFromValue(pds.Record(tenant, siteID(lexicon.KeyConfig), lexicon.RecordKeySelf))
	assert.Equal(t, models.CurrentMigrationVersion, cfg.MigrationVersion())
}

func TestRun_copiesManyListRecords(t *testing.T) {
	pds := fakepds.New()
	defer pds.Close()
	seedLegacySite(pds)

	// Enough text records to span multiple listing pages.
	for i := 0; i < 250; i++ {
		rkey := fmt.Sprintf("t%03d", i)
		pds.Seed(tenant, betaID(lexicon.KeyText), rkey, models.Value{
			models.TypeField: betaID(lexicon.KeyText),
			"body":           fmt.Sprintf("text %d", i),
		})
	}

	m := newMigrator(t, pds, ownerSession())
	res, err := m.Run(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, 252, res.Copied)
	assert.Len(t, pds.Collection(tenant, siteID(lexicon.KeyText)), 250)
}
