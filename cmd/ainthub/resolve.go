package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var resolveFlags struct {
	clientConfig
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <domain>",
	Short: "Resolve a .aint domain to its agent record",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	addClientFlags(resolveCmd, &resolveFlags.clientConfig)
}

func runResolve(cmd *cobra.Command, args []string) error {
	c, err := resolveFlags.newClient()
	if err != nil {
		return err
	}

	resp, err := c.Resolve(args[0])
	if err != nil {
		return err
	}

	if resp.Status != "found" || resp.Record == nil {
		fmt.Printf("Domain %s not found.\n", args[0])
		return nil
	}

	r := resp.Record
	fmt.Printf("Domain:        %s\n", r.Domain)
	fmt.Printf("Agent:         %s\n", r.Agent)
	fmt.Printf("Owner:         %s\n", r.Owner)
	fmt.Printf("Endpoint:      %s\n", r.Endpoint)
	if r.IPoll != "" {
		fmt.Printf("Poll endpoint: %s\n", r.IPoll)
	}
	if len(r.Capabilities) > 0 {
		fmt.Printf("Capabilities:  %s\n", strings.Join(r.Capabilities, ", "))
	}
	fmt.Printf("Trust:         %.2f (%s)\n", r.TrustScore, r.Tier)
	fmt.Printf("Status:        %s\n", r.Status)
	fmt.Printf("Registered:    %s\n", r.RegisteredAt)

	return nil
}
