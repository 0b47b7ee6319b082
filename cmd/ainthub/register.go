package main

import (
	"fmt"

	"github.com/ainternet/ainthub/internal/types"
	"github.com/spf13/cobra"
)

var registerFlags struct {
	clientConfig
	agentName    string
	owner        string
	endpoint     string
	pollEndpoint string
	capabilities []string
	elevated     bool
}

var registerCmd = &cobra.Command{
	Use:   "register <domain>",
	Short: "Register a .aint domain",
	Long: `Register a .aint domain for an agent. The returned agent key is shown
exactly once; it authenticates all subsequent push, pull, and respond calls.`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	addClientFlags(registerCmd, &registerFlags.clientConfig)
	registerCmd.Flags().StringVar(&registerFlags.agentName, "agent-name", "", "human-readable agent name")
	registerCmd.Flags().StringVar(&registerFlags.owner, "owner", "", "owner contact")
	registerCmd.Flags().StringVar(&registerFlags.endpoint, "endpoint", "", "agent HTTP endpoint (required)")
	registerCmd.Flags().StringVar(&registerFlags.pollEndpoint, "poll-endpoint", "", "poll delivery endpoint")
	registerCmd.Flags().StringSliceVar(&registerFlags.capabilities, "capability", nil, "advertised capability (repeatable)")
	registerCmd.Flags().BoolVar(&registerFlags.elevated, "elevated", false, "request operator approval for elevated standing")
	registerCmd.MarkFlagRequired("endpoint")
}

func runRegister(cmd *cobra.Command, args []string) error {
	c, err := registerFlags.newClient()
	if err != nil {
		return err
	}

	resp, err := c.Register(types.RegisterRequest{
		Domain:       args[0],
		AgentName:    registerFlags.agentName,
		Owner:        registerFlags.owner,
		Endpoint:     registerFlags.endpoint,
		PollEndpoint: registerFlags.pollEndpoint,
		Capabilities: registerFlags.capabilities,
		Elevated:     registerFlags.elevated,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Domain:  %s\n", resp.Domain)
	fmt.Printf("Status:  %s\n", resp.Status)
	fmt.Printf("Tier:    %s\n", resp.Tier)
	fmt.Printf("Trust:   %.2f\n", resp.TrustScore)
	fmt.Println()
	fmt.Println("Agent key (save this, it will not be shown again):")
	fmt.Println(resp.AgentKey)

	return nil
}
