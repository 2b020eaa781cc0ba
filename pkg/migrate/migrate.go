package migrate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wharfside/wharf/pkg/lexicon"
	"github.com/wharfside/wharf/pkg/models"
	"github.com/wharfside/wharf/pkg/repo"
)

// State is where a migration run ended up.
type State string

const (
	// StateDone means the run finished, possibly without doing anything:
	// an unauthorized caller and an already-migrated tenant both end here.
	StateDone State = "done"
	// StateAborted means a store failure stopped the run before the
	// marker commit. The tenant's next visit retries from scratch.
	StateAborted State = "aborted"
)

// Result describes one migration run for diagnostics.
type Result struct {
	State State
	// Copied is the number of records written into the site namespace,
	// excluding the final marker write.
	Copied int
	// Skipped explains a zero-effect run: "not owner" or "already
	// migrated". Empty when the run copied data.
	Skipped string
}

// Migrator copies one tenant's records from the beta namespace into the
// site namespace and commits a migration marker. Runs are idempotent:
// every write is an overwrite of a value derived purely from committed
// beta data, and the marker is only written once everything else
// succeeded. Two racing runs for the same tenant converge to the same
// final state.
type Migrator struct {
	store   repo.Store
	session repo.Session
	log     zerolog.Logger
}

// New creates a Migrator acting on behalf of session.
func New(store repo.Store, session repo.Session, log zerolog.Logger) *Migrator {
	return &Migrator{store: store, session: session, log: log}
}

// Run migrates tenant if needed. It makes no network call at all unless
// the session is authenticated as that exact tenant, and it never deletes
// beta records.
//
// Errors are returned for logging only; callers on the page-load path must
// not surface them, since the dual-namespace resolver keeps serving the
// beta namespace until a later run succeeds.
func (m *Migrator) Run(ctx context.Context, tenant string) (Result, error) {
	// Authorization gate, before any I/O.
	if m.session.Tenant() != tenant || tenant == "" {
		return Result{State: StateDone, Skipped: "not owner"}, nil
	}

	// Marker check: the site-namespace config is the single source of
	// truth for completed migration.
	siteConfigID := lexicon.CollectionID(lexicon.KeyConfig, lexicon.NamespaceSite)
	existing, err := m.store.GetRecord(ctx, tenant, siteConfigID, lexicon.RecordKeySelf)
	if err != nil {
		return Result{State: StateAborted}, fmt.Errorf("read site config: %w", err)
	}
	if existing != nil {
		if v := models.ConfigFromValue(existing.Value).MigrationVersion(); v >= models.CurrentMigrationVersion {
			return Result{State: StateDone, Skipped: "already migrated"}, nil
		}
	}

	copied := 0
	// configValue tracks the best configuration seen during the copy so
	// the marker commit does not need a re-read.
	var configValue models.Value
	if existing != nil {
		configValue = existing.Value
	}

	for _, key := range lexicon.Keys() {
		betaID := lexicon.CollectionID(key, lexicon.NamespaceBeta)
		siteID := lexicon.CollectionID(key, lexicon.NamespaceSite)

		if key.Singleton() {
			rec, err := m.store.GetRecord(ctx, tenant, betaID, lexicon.RecordKeySelf)
			if err != nil {
				return Result{State: StateAborted}, fmt.Errorf("read %s: %w", betaID, err)
			}
			if rec == nil {
				// Nothing to migrate for a feature the tenant never used.
				continue
			}
			value := RewriteValue(betaID, rec.Value, lexicon.NamespaceSite)
			if err := m.store.PutRecord(ctx, siteID, lexicon.RecordKeySelf, value); err != nil {
				return Result{State: StateAborted}, fmt.Errorf("write %s: %w", siteID, err)
			}
			copied++
			if key == lexicon.KeyConfig {
				configValue = value
			}
			continue
		}

		records, err := repo.ListAll(ctx, m.store, m.log, tenant, betaID)
		if err != nil {
			return Result{State: StateAborted}, fmt.Errorf("list %s: %w", betaID, err)
		}
		for _, rec := range records {
			rkey := rec.URI.RecordKey
			if rkey == "" {
				m.log.Warn().Str("collection", betaID).Msg("record without a key, skipping")
				continue
			}
			value := RewriteValue(betaID, rec.Value, lexicon.NamespaceSite)
			if err := m.store.PutRecord(ctx, siteID, rkey, value); err != nil {
				return Result{State: StateAborted}, fmt.Errorf("write %s/%s: %w", siteID, rkey, err)
			}
			copied++
		}
	}

	if copied == 0 && existing == nil {
		// Nothing in the beta namespace and nothing started in the site
		// namespace: an unconfigured tenant gets no marker and no writes.
		return Result{State: StateDone, Skipped: "nothing to migrate"}, nil
	}

	// Commit point: the marker write. Until this succeeds, a rerun redoes
	// the whole copy.
	config := models.ConfigFromValue(configValue)
	config.Value().SetType(siteConfigID)
	config.SetMigrationVersion(models.CurrentMigrationVersion)
	if err := m.store.PutRecord(ctx, siteConfigID, lexicon.RecordKeySelf, config.Value()); err != nil {
		return Result{State: StateAborted}, fmt.Errorf("commit migration marker: %w", err)
	}

	m.log.Info().
		Str("tenant", tenant).
		Int("copied", copied).
		Int("version", models.CurrentMigrationVersion).
		Msg("namespace migration completed")

	return Result{State: StateDone, Copied: copied}, nil
}
