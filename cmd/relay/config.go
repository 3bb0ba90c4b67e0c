package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deemkeen/aprelay/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the relay settings stored in the database",
}

// systemConfigKeys are never shown or settable through this command: the
// schema version is internal bookkeeping, and the private key is sensitive.
var systemConfigKeys = map[string]bool{
	store.ConfigSchemaVersion: true,
	store.ConfigPrivateKey:    true,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the current relay config",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := relayStore.GetConfigAll()
		if err != nil {
			return err
		}
		fmt.Println("Relay Config:")
		for _, e := range entries {
			if systemConfigKeys[e.Key] {
				continue
			}
			fmt.Printf("- %s %q\n", (e.Key + ":" + strings.Repeat(" ", max(1, 20-len(e.Key)-1))), e.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if systemConfigKeys[key] {
			fmt.Printf("Invalid config name or value: %s\n", key)
			return fmt.Errorf("%s cannot be set through this command", key)
		}
		if err := relayStore.PutConfig(key, value); err != nil {
			fmt.Printf("Invalid config name or value: %s\n", key)
			return err
		}
		fmt.Printf("%s: %q\n", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configListCmd, configSetCmd)
}
