package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deemkeen/aprelay/domain"
	"github.com/deemkeen/aprelay/relayerr"
)

var instanceCmd = &cobra.Command{
	Use:   "instance",
	Short: "Manage instance bans",
}

var instanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all banned instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		bans, err := relayStore.ListDomainBans()
		if err != nil {
			return err
		}
		fmt.Println("Banned domains:")
		for _, b := range bans {
			printDomainBan(b)
		}
		return nil
	},
}

var instanceBanCmd = &cobra.Command{
	Use:   "ban <domain>",
	Short: "Ban an instance and remove its inbox if one is registered",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dom := args[0]
		reason, _ := cmd.Flags().GetString("reason")
		note, _ := cmd.Flags().GetString("note")

		if _, err := relayStore.GetDomainBan(dom); err == nil {
			fmt.Printf("Domain already banned: %s\n", dom)
			return nil
		}
		if err := relayStore.PutDomainBan(domain.DomainBan{Domain: dom, Reason: reason, Note: note}); err != nil {
			return err
		}
		fmt.Printf("Banned instance: %s\n", dom)
		return nil
	},
}

var instanceUnbanCmd = &cobra.Command{
	Use:   "unban <domain>",
	Short: "Unban an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dom := args[0]
		if err := relayStore.DeleteDomainBan(dom); err != nil {
			if relayerr.KindOf(err) == relayerr.NotFound {
				fmt.Printf("Instance wasn't banned: %s\n", dom)
				return nil
			}
			return err
		}
		fmt.Printf("Unbanned instance: %s\n", dom)
		return nil
	},
}

var instanceUpdateCmd = &cobra.Command{
	Use:   "update <domain>",
	Short: "Update the public reason or internal note for a domain ban",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dom := args[0]
		reason, _ := cmd.Flags().GetString("reason")
		note, _ := cmd.Flags().GetString("note")
		if reason == "" && note == "" {
			return fmt.Errorf("must pass --reason or --note")
		}
		if err := relayStore.UpdateDomainBan(domain.DomainBan{Domain: dom, Reason: reason, Note: note}); err != nil {
			fmt.Printf("Failed to update domain ban: %s\n", dom)
			return err
		}
		fmt.Printf("Updated domain ban: %s\n", dom)
		if got, err := relayStore.GetDomainBan(dom); err == nil {
			printDomainBan(*got)
		}
		return nil
	},
}

func printDomainBan(b domain.DomainBan) {
	if b.Reason != "" {
		fmt.Printf("- %s (%s)\n", b.Domain, b.Reason)
	} else {
		fmt.Printf("- %s\n", b.Domain)
	}
}

func init() {
	instanceBanCmd.Flags().StringP("reason", "r", "", "Public note about why the domain is banned")
	instanceBanCmd.Flags().StringP("note", "n", "", "Internal note seen only by admins")
	instanceUpdateCmd.Flags().StringP("reason", "r", "", "")
	instanceUpdateCmd.Flags().StringP("note", "n", "", "")

	instanceCmd.AddCommand(instanceListCmd, instanceBanCmd, instanceUnbanCmd, instanceUpdateCmd)
}
