// Package site loads and serves a tenant's site from the record store,
// reading across both collection namespaces so tenants who have not yet
// migrated keep rendering correctly.
package site

import (
	"context"
	"sync"

	"github.com/wharfside/wharf/pkg/lexicon"
	"github.com/wharfside/wharf/pkg/models"
	"github.com/wharfside/wharf/pkg/repo"
)

// ResolvedSite is a tenant's active configuration and the namespace it was
// found in.
type ResolvedSite struct {
	Namespace lexicon.Namespace `json:"namespace"`
	// Config and Layout are the singleton records; either may be nil, but
	// not both.
	Config *models.Record `json:"config,omitempty"`
	Layout *models.Record `json:"layout,omitempty"`
}

// ResolveSite locates a tenant's active configuration by scanning the read
// namespaces in preference order. The first namespace holding either the
// config or the layout singleton wins. (nil, nil) means the tenant is
// unconfigured, which is a legitimate outcome, not an error.
//
// ResolveSite never writes, so it is safe for any viewer, not just the
// tenant.
func ResolveSite(ctx context.Context, st repo.Store, rollout bool, tenant string) (*ResolvedSite, error) {
	for _, ns := range lexicon.ReadNamespaces(rollout) {
		configID := lexicon.CollectionID(lexicon.KeyConfig, ns)
		layoutID := lexicon.CollectionID(lexicon.KeyLayout, ns)

		// The two singleton reads are independent; issue them together.
		var (
			wg                   sync.WaitGroup
			config, layout       *models.Record
			configErr, layoutErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			config, configErr = st.GetRecord(ctx, tenant, configID, lexicon.RecordKeySelf)
		}()
		go func() {
			defer wg.Done()
			layout, layoutErr = st.GetRecord(ctx, tenant, layoutID, lexicon.RecordKeySelf)
		}()
		wg.Wait()

		if configErr != nil {
			return nil, configErr
		}
		if layoutErr != nil {
			return nil, layoutErr
		}

		if config != nil || layout != nil {
			return &ResolvedSite{Namespace: ns, Config: config, Layout: layout}, nil
		}
	}
	return nil, nil
}
