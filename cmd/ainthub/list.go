package main

import (
	"fmt"
	"strings"

	"github.com/ainternet/ainthub/internal/types"
	"github.com/spf13/cobra"
)

var listFlags struct {
	clientConfig
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all active domains",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	addClientFlags(listCmd, &listFlags.clientConfig)
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := listFlags.newClient()
	if err != nil {
		return err
	}

	resp, err := c.List()
	if err != nil {
		return err
	}

	printDomains(resp)
	return nil
}

func printDomains(resp *types.ListResponse) {
	if resp.Count == 0 {
		fmt.Println("No domains found.")
		return
	}

	fmt.Printf("%-28s  %-6s  %-9s  %s\n", "DOMAIN", "TRUST", "TIER", "CAPABILITIES")
	for _, d := range resp.Domains {
		fmt.Printf("%-28s  %-6.2f  %-9s  %s\n", d.Domain, d.TrustScore, d.Tier, strings.Join(d.Capabilities, ","))
	}
}
