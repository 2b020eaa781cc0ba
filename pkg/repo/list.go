package repo

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wharfside/wharf/pkg/models"
)

const (
	// listPageSize bounds how many records one page request may return.
	listPageSize = 100
	// listMaxPages is a safety valve against a store that never stops
	// returning cursors. 50 pages of 100 records is far beyond any real
	// personal-site repo.
	listMaxPages = 50
)

// ListAll fetches every record of one collection for one tenant, walking
// the store's cursor pagination defensively.
//
// Termination, in priority order: the store returns no cursor (normal
// end); the page ceiling is reached; or a cursor repeats one already seen.
// The latter two stop early with a logged warning and return whatever was
// accumulated, never an error: an incomplete listing must be retriable by
// the caller rather than fatal.
func ListAll(ctx context.Context, st Store, log zerolog.Logger, tenant, collection string) ([]models.Record, error) {
	var out []models.Record

	seen := make(map[string]struct{})
	cursor := ""

	for page := 0; ; page++ {
		if page >= listMaxPages {
			log.Warn().
				Str("tenant", tenant).
				Str("collection", collection).
				Int("pages", page).
				Int("records", len(out)).
				Msg("listing hit the page ceiling, returning partial result")
			return out, nil
		}

		p, err := st.ListRecords(ctx, tenant, collection, listPageSize, cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Records...)

		if p.Cursor == "" {
			return out, nil
		}
		if _, dup := seen[p.Cursor]; dup {
			log.Warn().
				Str("tenant", tenant).
				Str("collection", collection).
				Str("cursor", p.Cursor).
				Int("records", len(out)).
				Msg("listing cursor repeated, returning partial result")
			return out, nil
		}
		seen[p.Cursor] = struct{}{}
		cursor = p.Cursor
	}
}
