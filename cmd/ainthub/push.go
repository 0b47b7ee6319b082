package main

import (
	"fmt"

	"github.com/ainternet/ainthub/internal/types"
	"github.com/spf13/cobra"
)

var pushFlags struct {
	clientConfig
	from      string
	pollType  string
	sessionID string
}

var pushCmd = &cobra.Command{
	Use:   "push <to-domain> <content>",
	Short: "Send a message to another agent",
	Args:  cobra.ExactArgs(2),
	RunE:  runPush,
}

func init() {
	rootCmd.AddCommand(pushCmd)

	addClientFlags(pushCmd, &pushFlags.clientConfig)
	pushCmd.Flags().StringVar(&pushFlags.from, "from", "", "sending domain (required)")
	pushCmd.Flags().StringVar(&pushFlags.pollType, "type", "PUSH", "poll type: PUSH, PULL, SYNC, TASK, or ACK")
	pushCmd.Flags().StringVar(&pushFlags.sessionID, "session", "", "conversation session id")
	pushCmd.MarkFlagRequired("from")
}

func runPush(cmd *cobra.Command, args []string) error {
	c, err := pushFlags.newAuthedClient()
	if err != nil {
		return err
	}

	resp, err := c.Push(types.PushRequest{
		FromAgent: pushFlags.from,
		ToAgent:   args[0],
		Content:   args[1],
		PollType:  pushFlags.pollType,
		SessionID: pushFlags.sessionID,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Delivered: %s\n", resp.MessageID)
	return nil
}
