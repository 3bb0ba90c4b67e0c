// Command relay is the admin CLI: it opens the relay's store directly and
// manages bans, config, and pending follow requests without going through
// the HTTP API, the way original_source/relay/cli wraps RelayDatabase.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deemkeen/aprelay/activitypub"
	"github.com/deemkeen/aprelay/cache"
	"github.com/deemkeen/aprelay/config"
	"github.com/deemkeen/aprelay/store"
)

var (
	dbPath     string
	configPath string

	relayStore *store.SQLiteStore
	relayDeps  activitypub.Deps
)

var rootCmd = &cobra.Command{
	Use:           "relay",
	Short:         "Administer an aprelay instance's store directly",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}

		s, err := store.Open(cfg.DBPath, nil)
		if err != nil {
			return fmt.Errorf("open store at %s: %w", cfg.DBPath, err)
		}
		relayStore = s

		privateKeyPEM, _, err := s.GetConfig(store.ConfigPrivateKey)
		if err != nil {
			return fmt.Errorf("relay has no actor key yet; start the server once before using this CLI: %w", err)
		}
		relayDeps = activitypub.Deps{
			Store:      s,
			Cache:      cache.NewSQLiteCache(s.DB()),
			HTTPClient: activitypub.NewDefaultHTTPClient(cfg.PushTimeout),
			PrivateKey: privateKeyPEM,
			KeyID:      fmt.Sprintf("https://%s/actor#main-key", cfg.Host),
			Host:       cfg.Host,
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if relayStore != nil {
			return relayStore.Close()
		}
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the relay's SQLite database (overrides the config file's db_path)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the relay's YAML config file")

	rootCmd.AddCommand(instanceCmd, softwareCmd, configCmd, requestCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
