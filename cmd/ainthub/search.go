package main

import (
	"github.com/spf13/cobra"
)

var searchFlags struct {
	clientConfig
	capability string
	minTrust   float64
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search active domains by capability and trust",
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	addClientFlags(searchCmd, &searchFlags.clientConfig)
	searchCmd.Flags().StringVar(&searchFlags.capability, "capability", "", "capability the agent must advertise")
	searchCmd.Flags().Float64Var(&searchFlags.minTrust, "min-trust", 0, "minimum trust score")
}

func runSearch(cmd *cobra.Command, args []string) error {
	c, err := searchFlags.newClient()
	if err != nil {
		return err
	}

	resp, err := c.Search(searchFlags.capability, searchFlags.minTrust)
	if err != nil {
		return err
	}

	printDomains(resp)
	return nil
}
