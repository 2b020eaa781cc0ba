package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wharfside/wharf/pkg/repo"
	"github.com/wharfside/wharf/pkg/snapshot"
)

var dumpOutput string

var dumpCmd = &cobra.Command{
	Use:   "dump <did>",
	Short: "Export a tenant's records to a CBOR snapshot",
	Long: `Dump lists every known collection of the given tenant across the active
read namespaces and writes the records to a CBOR file, with a JSON sidecar
manifest carrying the record count and checksum.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := buildLogger()
		if err != nil {
			return err
		}

		cfg := siteConfig()
		session := repo.Session{DID: cfg.SessionDID, AccessToken: cfg.SessionToken}
		store := repo.NewClient(cfg.StoreURL, session)

		m, err := snapshot.Dump(cmd.Context(), store, log, args[0], cfg.Rollout, dumpOutput)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %d records to %s (snapshot %s)\n", m.RecordCount, dumpOutput, m.SnapshotID)
		return nil
	},
}

func init() {
	dumpCmd.Flags().StringVarP(&dumpOutput, "output", "o", "wharf-snapshot.cbor", "snapshot file path")
}
