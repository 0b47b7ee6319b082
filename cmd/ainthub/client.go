// Package main implements the ainthub CLI.
package main

import (
	"fmt"
	"os"

	"github.com/ainternet/ainthub/internal/client"
	"github.com/spf13/cobra"
)

type clientConfig struct {
	agentKey string
	apiURL   string
}

func addClientFlags(cmd *cobra.Command, cfg *clientConfig) {
	cmd.Flags().StringVar(&cfg.agentKey, "agent-key", os.Getenv("AINT_AGENT_KEY"), "agent key for authentication")
	cmd.Flags().StringVar(&cfg.apiURL, "api-url", getEnv("AINT_API_URL", "http://localhost:8080"), "API server URL")
}

// newClient builds a client; authed commands additionally require a key.
func (cfg *clientConfig) newClient() (*client.Client, error) {
	if cfg.apiURL == "" {
		return nil, fmt.Errorf("API URL required (use --api-url flag or AINT_API_URL env var)")
	}
	return client.NewClient(cfg.apiURL, cfg.agentKey), nil
}

func (cfg *clientConfig) newAuthedClient() (*client.Client, error) {
	if cfg.agentKey == "" {
		return nil, fmt.Errorf("agent key required (use --agent-key flag or AINT_AGENT_KEY env var)")
	}
	return cfg.newClient()
}
