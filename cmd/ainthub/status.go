package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusFlags struct {
	clientConfig
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hub-wide counters",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	addClientFlags(statusCmd, &statusFlags.clientConfig)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := statusFlags.newClient()
	if err != nil {
		return err
	}

	resp, err := c.Status()
	if err != nil {
		return err
	}

	fmt.Printf("Status:            %s\n", resp.Status)
	fmt.Printf("Registered agents: %d\n", resp.RegisteredAgents)
	fmt.Printf("Pending messages:  %d\n", resp.PendingMessages)

	return nil
}
