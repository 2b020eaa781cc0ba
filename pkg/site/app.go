package site

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wharfside/wharf/pkg/migrate"
	"github.com/wharfside/wharf/pkg/repo"
)

// Config holds the site server configuration. Values come from flags, the
// environment (WHARF_* keys) or a config file; see cmd/wharf.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8372".
	Addr string
	// StoreURL is the record store endpoint.
	StoreURL string
	// EventsURL is the store's event stream endpoint. Empty disables the
	// subscription and the resolved-site cache is only dropped by restart.
	EventsURL string

	// SessionDID and SessionToken identify the signed-in tenant, if any.
	// Anonymous serving works without them; migration requires them.
	SessionDID   string
	SessionToken string

	// Rollout enables the site namespace for writes and dual-namespace
	// reads. Parsed from WHARF_SITE_ROLLOUT by lexicon.RolloutEnabled.
	Rollout bool
}

// App wires the store client, migrator and resolver cache behind the HTTP
// surface.
type App struct {
	cfg      Config
	store    repo.Store
	session  repo.Session
	migrator *migrate.Migrator
	log      zerolog.Logger

	mu sync.Mutex
	// cache holds resolved sites per tenant; entries are dropped when the
	// event stream reports a commit for the tenant.
	cache map[string]*ResolvedSite
	// migrated marks tenants whose migration already ran this process, so
	// each visit triggers at most one best-effort run.
	migrated map[string]bool
}

// New creates the app. It does not dial anything; connections happen
// lazily per request and in Run.
func New(cfg Config, log zerolog.Logger) *App {
	session := repo.Session{DID: cfg.SessionDID, AccessToken: cfg.SessionToken}
	store := repo.NewClient(cfg.StoreURL, session)
	return &App{
		cfg:      cfg,
		store:    store,
		session:  session,
		migrator: migrate.New(store, session, log),
		log:      log,
		cache:    make(map[string]*ResolvedSite),
		migrated: make(map[string]bool),
	}
}

// Store exposes the underlying store, mainly for tests and the snapshot
// command.
func (a *App) Store() repo.Store {
	return a.store
}

// maybeMigrate kicks off one best-effort migration run for tenant when the
// viewer is that tenant and the rollout is on. It never blocks the page:
// the run happens in the background and failures are only logged, to be
// retried on a later visit.
func (a *App) maybeMigrate(tenant string) {
	if !a.cfg.Rollout || a.session.Tenant() != tenant {
		return
	}

	a.mu.Lock()
	already := a.migrated[tenant]
	if !already {
		a.migrated[tenant] = true
	}
	a.mu.Unlock()
	if already {
		return
	}

	go func() {
		res, err := a.migrator.Run(context.Background(), tenant)
		if err != nil {
			a.log.Warn().Err(err).Str("tenant", tenant).Msg("migration run aborted, will retry on a later visit")
			a.mu.Lock()
			delete(a.migrated, tenant)
			a.mu.Unlock()
			return
		}
		if res.Copied > 0 {
			a.invalidate(tenant)
		}
	}()
}

// resolve returns the cached site for tenant, or resolves and caches it.
func (a *App) resolve(ctx context.Context, tenant string) (*ResolvedSite, error) {
	a.mu.Lock()
	cached, ok := a.cache[tenant]
	a.mu.Unlock()
	if ok {
		return cached, nil
	}

	resolved, err := ResolveSite(ctx, a.store, a.cfg.Rollout, tenant)
	if err != nil {
		return nil, err
	}
	if resolved != nil {
		a.mu.Lock()
		a.cache[tenant] = resolved
		a.mu.Unlock()
	}
	return resolved, nil
}

func (a *App) invalidate(tenant string) {
	a.mu.Lock()
	delete(a.cache, tenant)
	a.mu.Unlock()
}

// handleEvent drops the cached site of any tenant whose repo changed.
func (a *App) handleEvent(ev repo.Event) {
	if ev.Tenant == "" {
		return
	}
	a.log.Debug().Str("tenant", ev.Tenant).Str("commit", ev.Commit).Msg("repo commit, invalidating cache")
	a.invalidate(ev.Tenant)
}
