package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wharfside/wharf/pkg/migrate"
	"github.com/wharfside/wharf/pkg/repo"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the signed-in tenant's records to the current namespace",
	Long: `Migrate copies the signed-in tenant's records from the legacy collection
namespace to the current one and commits the migration marker. Legacy
records are left untouched. The run is idempotent and safe to repeat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := buildLogger()
		if err != nil {
			return err
		}

		cfg := siteConfig()
		session := repo.Session{DID: cfg.SessionDID, AccessToken: cfg.SessionToken}
		if !session.Authenticated() {
			return fmt.Errorf("migrate requires session_did and session_token")
		}

		store := repo.NewClient(cfg.StoreURL, session)
		m := migrate.New(store, session, log)
		res, err := m.Run(cmd.Context(), session.Tenant())
		if err != nil {
			return fmt.Errorf("migration aborted: %w", err)
		}
		if res.Skipped != "" {
			fmt.Printf("nothing to do: %s\n", res.Skipped)
			return nil
		}
		fmt.Printf("migrated %d records\n", res.Copied)
		return nil
	},
}
