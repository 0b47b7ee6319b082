package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ainternet/ainthub/internal/models"
)

const agentColumns = "id, domain, agent_name, owner, endpoint, poll_endpoint, capabilities, trust_score, tier, status, key_prefix, key_hash, registered_at"

// CreateAgent inserts a new agent record and returns its ID. The domain must
// already be lowercased; the UNIQUE index on domain is the authority on
// duplicate registration, so callers should check IsUniqueViolation on error.
func CreateAgent(d *sql.DB, a *models.Agent) (int64, error) {
	caps, err := json.Marshal(a.Capabilities)
	if err != nil {
		return 0, fmt.Errorf("marshal capabilities: %w", err)
	}
	result, err := d.Exec(
		`INSERT INTO agents (domain, agent_name, owner, endpoint, poll_endpoint, capabilities, trust_score, tier, status, key_prefix, key_hash, registered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Domain, a.AgentName, a.Owner, a.Endpoint, a.PollEndpoint, string(caps),
		a.TrustScore, a.Tier, a.Status, a.KeyPrefix, a.KeyHash, a.RegisteredAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetAgentByDomain retrieves an agent by its lowercased domain. Returns
// (nil, nil) when no record exists.
func GetAgentByDomain(d *sql.DB, domain string) (*models.Agent, error) {
	row := d.QueryRow("SELECT "+agentColumns+" FROM agents WHERE domain = ?", strings.ToLower(domain))
	return scanAgent(row)
}

// GetAgentByKeyPrefix retrieves an agent by its owner-key prefix. Returns
// (nil, nil) when no record exists.
func GetAgentByKeyPrefix(d *sql.DB, prefix string) (*models.Agent, error) {
	row := d.QueryRow("SELECT "+agentColumns+" FROM agents WHERE key_prefix = ?", prefix)
	return scanAgent(row)
}

// ListAgentsByStatus returns all agents with the given status, ordered by
// descending trust score with domain name breaking ties.
func ListAgentsByStatus(d *sql.DB, status string) ([]models.Agent, error) {
	rows, err := d.Query(
		"SELECT "+agentColumns+" FROM agents WHERE status = ? ORDER BY trust_score DESC, domain ASC",
		status,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		a, err := scanAgentRows(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// UpdateAgentCapabilities replaces the agent's capability set.
func UpdateAgentCapabilities(d *sql.DB, id int64, capabilities []string) error {
	caps, err := json.Marshal(capabilities)
	if err != nil {
		return fmt.Errorf("marshal capabilities: %w", err)
	}
	_, err = d.Exec("UPDATE agents SET capabilities = ? WHERE id = ?", string(caps), id)
	return err
}

// UpdateAgentStatus sets the agent's lifecycle status. Records are never
// hard-deleted; revocation is a status change.
func UpdateAgentStatus(d *sql.DB, id int64, status string) error {
	_, err := d.Exec("UPDATE agents SET status = ? WHERE id = ?", status, id)
	return err
}

// CountAgentsByStatus returns the number of agents with the given status.
func CountAgentsByStatus(d *sql.DB, status string) (int, error) {
	var count int
	err := d.QueryRow("SELECT COUNT(*) FROM agents WHERE status = ?", status).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgentFrom(s rowScanner) (*models.Agent, error) {
	var a models.Agent
	var caps string
	err := s.Scan(&a.ID, &a.Domain, &a.AgentName, &a.Owner, &a.Endpoint, &a.PollEndpoint,
		&caps, &a.TrustScore, &a.Tier, &a.Status, &a.KeyPrefix, &a.KeyHash, &a.RegisteredAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(caps), &a.Capabilities); err != nil {
		return nil, fmt.Errorf("unmarshal capabilities for %s: %w", a.Domain, err)
	}
	return &a, nil
}

func scanAgent(row *sql.Row) (*models.Agent, error) {
	a, err := scanAgentFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func scanAgentRows(rows *sql.Rows) (*models.Agent, error) {
	return scanAgentFrom(rows)
}
