package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pullFlags struct {
	clientConfig
	agent string
	peek  bool
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Drain the agent's inbox",
	RunE:  runPull,
}

func init() {
	rootCmd.AddCommand(pullCmd)

	addClientFlags(pullCmd, &pullFlags.clientConfig)
	pullCmd.Flags().StringVar(&pullFlags.agent, "agent", "", "agent domain to pull for (required)")
	pullCmd.Flags().BoolVar(&pullFlags.peek, "peek", false, "leave messages unread")
	pullCmd.MarkFlagRequired("agent")
}

func runPull(cmd *cobra.Command, args []string) error {
	c, err := pullFlags.newAuthedClient()
	if err != nil {
		return err
	}

	resp, err := c.Pull(pullFlags.agent, !pullFlags.peek)
	if err != nil {
		return err
	}

	if resp.Count == 0 {
		fmt.Println("No messages.")
		return nil
	}

	for _, p := range resp.Polls {
		createdAt, _ := time.Parse(time.RFC3339, p.CreatedAt)
		fmt.Printf("[%s] %s  %s -> %s  (%s)\n", p.PollType, createdAt.Format("2006-01-02 15:04:05"), p.From, p.To, p.ID)
		fmt.Printf("  %s\n", p.Content)
	}

	return nil
}
