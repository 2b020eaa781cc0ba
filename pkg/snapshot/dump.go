package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wharfside/wharf/pkg/lexicon"
	"github.com/wharfside/wharf/pkg/models"
	"github.com/wharfside/wharf/pkg/repo"
)

// Entry is one record in a snapshot file.
type Entry struct {
	URI   string       `cbor:"uri"`
	Value models.Value `cbor:"value"`
}

// Dump exports every known collection of one tenant to path, walking the
// read namespaces in order, and writes the sidecar manifest. It returns
// the manifest on success.
func Dump(ctx context.Context, st repo.Store, log zerolog.Logger, tenant string, rollout bool, path string) (*Manifest, error) {
	var entries []Entry
	var namespaces []string

	for _, ns := range lexicon.ReadNamespaces(rollout) {
		namespaces = append(namespaces, string(ns))
		for _, key := range lexicon.Keys() {
			collectionID := lexicon.CollectionID(key, ns)

			if key.Singleton() {
				rec, err := st.GetRecord(ctx, tenant, collectionID, lexicon.RecordKeySelf)
				if err != nil {
					return nil, fmt.Errorf("read %s: %w", collectionID, err)
				}
				if rec != nil {
					entries = append(entries, Entry{URI: rec.URI.String(), Value: rec.Value})
				}
				continue
			}

			records, err := repo.ListAll(ctx, st, log, tenant, collectionID)
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", collectionID, err)
			}
			for _, rec := range records {
				entries = append(entries, Entry{URI: rec.URI.String(), Value: rec.Value})
			}
		}
	}

	data, err := cbor.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	digest := sha256.Sum256(data)
	m := &Manifest{
		SnapshotID:  uuid.NewString(),
		Tenant:      tenant,
		CreatedAt:   time.Now().UTC(),
		Namespaces:  namespaces,
		RecordCount: len(entries),
		SHA256:      hex.EncodeToString(digest[:]),
	}
	if err := WriteManifest(path, m); err != nil {
		return nil, err
	}

	log.Info().
		Str("tenant", tenant).
		Str("path", path).
		Int("records", m.RecordCount).
		Msg("snapshot written")

	return m, nil
}

// ReadDump loads a snapshot file, verifying it against its manifest.
func ReadDump(path string) ([]Entry, *Manifest, error) {
	m, err := ReadManifest(path)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot: %w", err)
	}

	digest := sha256.Sum256(data)
	if got := hex.EncodeToString(digest[:]); got != m.SHA256 {
		return nil, nil, fmt.Errorf("snapshot checksum mismatch: manifest %s, file %s", m.SHA256, got)
	}

	var entries []Entry
	if err := cbor.Unmarshal(data, &entries); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(entries) != m.RecordCount {
		return nil, nil, fmt.Errorf("snapshot has %d records, manifest says %d", len(entries), m.RecordCount)
	}
	return entries, m, nil
}
