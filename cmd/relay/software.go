package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deemkeen/aprelay/activitypub"
	"github.com/deemkeen/aprelay/domain"
	"github.com/deemkeen/aprelay/relayerr"
)

// relaySoftware lists the fediverse relay implementations banned as a group
// by "software ban RELAYS", mirroring original_source/relay/misc.py's
// RELAY_SOFTWARE set.
var relaySoftware = []string{"activityrelay", "aoderelay", "selective-relay", "gotosocial-relay"}

var softwareCmd = &cobra.Command{
	Use:   "software",
	Short: "Manage banned software",
}

var softwareListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all banned software",
	RunE: func(cmd *cobra.Command, args []string) error {
		bans, err := relayStore.ListSoftwareBans()
		if err != nil {
			return err
		}
		fmt.Println("Banned software:")
		for _, b := range bans {
			printSoftwareBan(b)
		}
		return nil
	},
}

var softwareBanCmd = &cobra.Command{
	Use:   "ban <name|RELAYS>",
	Short: "Ban software. Use RELAYS as the name to ban known relay implementations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		reason, _ := cmd.Flags().GetString("reason")
		note, _ := cmd.Flags().GetString("note")
		fetchNodeinfo, _ := cmd.Flags().GetBool("fetch-nodeinfo")

		if name == "RELAYS" {
			for _, item := range relaySoftware {
				if _, err := relayStore.GetSoftwareBan(item); err == nil {
					fmt.Printf("Relay already banned: %s\n", item)
					continue
				}
				r := reason
				if r == "" {
					r = "relay"
				}
				if err := relayStore.PutSoftwareBan(domain.SoftwareBan{Name: item, Reason: r, Note: note}); err != nil {
					return err
				}
			}
			fmt.Println("Banned all relay software")
			return nil
		}

		if fetchNodeinfo {
			resolved, err := resolveSoftwareName(name)
			if err != nil {
				fmt.Printf("Failed to fetch software name from domain: %s\n", name)
				return err
			}
			name = resolved
		}

		if _, err := relayStore.GetSoftwareBan(name); err == nil {
			fmt.Printf("Software already banned: %s\n", name)
			return nil
		}
		if err := relayStore.PutSoftwareBan(domain.SoftwareBan{Name: name, Reason: reason, Note: note}); err != nil {
			fmt.Printf("Failed to ban software: %s\n", name)
			return err
		}
		fmt.Printf("Banned software: %s\n", name)
		return nil
	},
}

var softwareUnbanCmd = &cobra.Command{
	Use:   "unban <name|RELAYS>",
	Short: "Unban software. Use RELAYS as the name to unban known relay implementations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		fetchNodeinfo, _ := cmd.Flags().GetBool("fetch-nodeinfo")

		if name == "RELAYS" {
			for _, item := range relaySoftware {
				if err := relayStore.DeleteSoftwareBan(item); err != nil && relayerr.KindOf(err) == relayerr.NotFound {
					fmt.Printf("Relay was not banned: %s\n", item)
				}
			}
			fmt.Println("Unbanned all relay software")
			return nil
		}

		if fetchNodeinfo {
			resolved, err := resolveSoftwareName(name)
			if err != nil {
				fmt.Printf("Failed to fetch software name from domain: %s\n", name)
				return err
			}
			name = resolved
		}

		if err := relayStore.DeleteSoftwareBan(name); err != nil {
			if relayerr.KindOf(err) == relayerr.NotFound {
				fmt.Printf("Software was not banned: %s\n", name)
				return nil
			}
			return err
		}
		fmt.Printf("Unbanned software: %s\n", name)
		return nil
	},
}

var softwareUpdateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Update the public reason or internal note for a software ban",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		reason, _ := cmd.Flags().GetString("reason")
		note, _ := cmd.Flags().GetString("note")
		if reason == "" && note == "" {
			return fmt.Errorf("must pass --reason or --note")
		}
		if err := relayStore.UpdateSoftwareBan(domain.SoftwareBan{Name: name, Reason: reason, Note: note}); err != nil {
			fmt.Printf("Failed to update software ban: %s\n", name)
			return err
		}
		fmt.Printf("Updated software ban: %s\n", name)
		if got, err := relayStore.GetSoftwareBan(name); err == nil {
			printSoftwareBan(*got)
		}
		return nil
	},
}

func resolveSoftwareName(host string) (string, error) {
	ni, err := activitypub.FetchNodeinfo(relayDeps, host)
	if err != nil {
		return "", err
	}
	if ni.Software.Name == "" {
		return "", fmt.Errorf("nodeinfo for %s did not report a software name", host)
	}
	return strings.ToLower(ni.Software.Name), nil
}

func printSoftwareBan(b domain.SoftwareBan) {
	if b.Reason != "" {
		fmt.Printf("- %s (%s)\n", b.Name, b.Reason)
	} else {
		fmt.Printf("- %s\n", b.Name)
	}
}

func init() {
	softwareBanCmd.Flags().StringP("reason", "r", "", "Public note about why the software is banned")
	softwareBanCmd.Flags().StringP("note", "n", "", "Internal note seen only by admins")
	softwareBanCmd.Flags().BoolP("fetch-nodeinfo", "f", false, "Treat the name like a domain and fetch the software name from its nodeinfo")
	softwareUnbanCmd.Flags().BoolP("fetch-nodeinfo", "f", false, "Treat the name like a domain and fetch the software name from its nodeinfo")
	softwareUpdateCmd.Flags().StringP("reason", "r", "", "")
	softwareUpdateCmd.Flags().StringP("note", "n", "", "")

	softwareCmd.AddCommand(softwareListCmd, softwareBanCmd, softwareUnbanCmd, softwareUpdateCmd)
}
