// Package snapshot exports a tenant's records to a local CBOR file with a
// JSON sidecar manifest. Snapshots read across both namespaces, so a
// half-migrated tenant's export is still complete.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Manifest describes one snapshot file for later verification.
type Manifest struct {
	SnapshotID string    `json:"snapshot_id"`
	Tenant     string    `json:"tenant"`
	CreatedAt  time.Time `json:"created_at"`

	// Namespaces lists the namespaces that were read, in scan order.
	Namespaces  []string `json:"namespaces"`
	RecordCount int      `json:"record_count"`

	// SHA256 is the hex digest of the snapshot file.
	SHA256 string `json:"sha256"`
}

// Validate checks the manifest for consistency and completeness.
func (m *Manifest) Validate() error {
	if m.SnapshotID == "" {
		return fmt.Errorf("manifest missing snapshot id")
	}
	if m.Tenant == "" {
		return fmt.Errorf("manifest missing tenant")
	}
	if len(m.Namespaces) == 0 {
		return fmt.Errorf("manifest missing namespaces")
	}
	if m.RecordCount < 0 {
		return fmt.Errorf("negative record count")
	}
	if m.SHA256 == "" {
		return fmt.Errorf("manifest missing checksum")
	}
	return nil
}

func manifestPath(snapshotPath string) string {
	return snapshotPath + ".manifest.json"
}

// WriteManifest writes the sidecar manifest next to the snapshot file.
func WriteManifest(snapshotPath string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(manifestPath(snapshotPath), data, 0o600)
}

// ReadManifest reads and validates the sidecar manifest of a snapshot.
// Manifests are mandatory; a snapshot without one is considered invalid.
func ReadManifest(snapshotPath string) (*Manifest, error) {
	data, err := os.ReadFile(manifestPath(snapshotPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest not found for %s", snapshotPath)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
