package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deemkeen/aprelay/activitypub"
	"github.com/deemkeen/aprelay/relayerr"
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Manage follow requests",
}

var requestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all current follow requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		reqs, err := relayStore.GetRequests()
		if err != nil {
			return err
		}
		fmt.Println("Follow requests:")
		for _, r := range reqs {
			fmt.Printf("- [%s] %s\n", r.CreatedAt.Format("2006-01-02"), r.Domain)
		}
		return nil
	},
}

var requestAcceptCmd = &cobra.Command{
	Use:   "accept <domain>",
	Short: "Accept a follow request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return respondToRequest(args[0], true)
	},
}

var requestDenyCmd = &cobra.Command{
	Use:   "deny <domain>",
	Short: "Deny a follow request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return respondToRequest(args[0], false)
	},
}

// respondToRequest fetches the pending instance first, since accepting or
// rejecting in the store can update or delete that row before the response
// activity is built.
func respondToRequest(dom string, accept bool) error {
	inst, err := relayStore.GetInstance(dom)
	if err != nil {
		if relayerr.KindOf(err) == relayerr.NotFound {
			fmt.Println("Request not found")
			return nil
		}
		return err
	}

	if err := relayStore.PutRequestResponse(dom, accept); err != nil {
		if relayerr.KindOf(err) == relayerr.NotFound {
			fmt.Println("Request not found")
			return nil
		}
		return err
	}

	if err := activitypub.RespondToRequest(relayDeps, *inst, accept); err != nil {
		return fmt.Errorf("sent store update but delivery failed: %w", err)
	}
	return nil
}

func init() {
	requestCmd.AddCommand(requestListCmd, requestAcceptCmd, requestDenyCmd)
}
