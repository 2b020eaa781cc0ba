package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wharfside/wharf/pkg/lexicon"
	"github.com/wharfside/wharf/pkg/logger"
	"github.com/wharfside/wharf/pkg/site"
)

// Configuration keys. Each is settable by flag, by WHARF_* environment
// variable, or in the optional config file.
const (
	cfgKeyAddr         = "addr"
	cfgKeyStoreURL     = "store_url"
	cfgKeyEventsURL    = "events_url"
	cfgKeySessionDID   = "session_did"
	cfgKeySessionToken = "session_token"
	cfgKeySiteRollout  = "site_rollout"
	cfgKeyLogLevel     = "log_level"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "wharf",
	Short: "wharf renders a personal site from a tenant-owned record repo",
	Long: `wharf is a client for personal sites stored as records in a remote,
tenant-owned record repository. It serves sites over HTTP, migrates a
tenant's records from the legacy collection namespace to the current one,
and exports repo snapshots.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default: ./wharf.yaml)")
	pf.String(cfgKeyAddr, ":8372", "HTTP listen address")
	pf.String(cfgKeyStoreURL, "http://localhost:2583", "record store endpoint")
	pf.String(cfgKeyEventsURL, "", "record store event stream endpoint (ws://...)")
	pf.String(cfgKeySessionDID, "", "DID of the signed-in tenant")
	pf.String(cfgKeySessionToken, "", "access token of the signed-in tenant")
	pf.String(cfgKeySiteRollout, "", "enable the site namespace rollout (true/false)")
	pf.String(cfgKeyLogLevel, "info", "log level (trace..error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(dumpCmd)
}

// initConfig wires flags, WHARF_* environment variables and the optional
// config file into viper. Precedence: flags, then env, then file.
func initConfig(cmd *cobra.Command) error {
	viper.SetEnvPrefix("WHARF")
	viper.AutomaticEnv()

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	viper.SetConfigName("wharf")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		// A missing default config file is not an error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// siteConfig assembles the app config from the resolved settings.
func siteConfig() site.Config {
	return site.Config{
		Addr:         viper.GetString(cfgKeyAddr),
		StoreURL:     viper.GetString(cfgKeyStoreURL),
		EventsURL:    viper.GetString(cfgKeyEventsURL),
		SessionDID:   viper.GetString(cfgKeySessionDID),
		SessionToken: viper.GetString(cfgKeySessionToken),
		Rollout:      lexicon.RolloutEnabled(viper.GetString(cfgKeySiteRollout)),
	}
}

func buildLogger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(viper.GetString(cfgKeyLogLevel))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
	}
	return logger.New().Level(level).Make()
}
