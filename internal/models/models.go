// Package models defines the database entity types.
package models

import "strings"

// Access tiers, derived from trust score.
const (
	TierSandbox  = "sandbox"
	TierVerified = "verified"
	TierCore     = "core"
)

// Agent statuses.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusRevoked   = "revoked"
)

// I-Poll message types.
const (
	PollPush = "PUSH"
	PollPull = "PULL"
	PollSync = "SYNC"
	PollTask = "TASK"
	PollAck  = "ACK"
)

// ValidPollType reports whether t is one of the five poll types.
func ValidPollType(t string) bool {
	switch t {
	case PollPush, PollPull, PollSync, PollTask, PollAck:
		return true
	}
	return false
}

// System utility domains. These are synchronous pseudo-agents answered by
// the relay, not registrable records, and they are the only recipients a
// sandbox-tier agent may message.
const (
	EchoDomain = "echo.aint"
	PingDomain = "ping.aint"
	HelpDomain = "help.aint"
)

// IsSystemDomain reports whether domain names a system utility pseudo-agent.
func IsSystemDomain(domain string) bool {
	switch domain {
	case EchoDomain, PingDomain, HelpDomain:
		return true
	}
	return false
}

// Agent represents a registered .aint domain record. Domain is stored
// lowercased; a UNIQUE index enforces case-insensitive uniqueness.
type Agent struct {
	ID           int64
	Domain       string
	AgentName    string
	Owner        string
	Endpoint     string
	PollEndpoint string
	Capabilities []string
	TrustScore   float64
	Tier         string
	Status       string
	KeyPrefix    string
	KeyHash      []byte
	RegisteredAt int64
}

// HasCapability reports whether the agent advertises the capability
// (case-insensitive).
func (a *Agent) HasCapability(capability string) bool {
	for _, c := range a.Capabilities {
		if strings.EqualFold(c, capability) {
			return true
		}
	}
	return false
}

// Message represents a stored I-Poll message.
type Message struct {
	ID        string
	FromAgent string
	ToAgent   string
	PollType  string
	Content   string
	SessionID *string
	Metadata  map[string]any
	CreatedAt int64
	ReadAt    *int64
}

// TrustSignal is one recorded reputation signal.
type TrustSignal struct {
	ID         int64
	AgentID    int64
	Kind       string
	Magnitude  float64
	OccurredAt int64
}

// AdminKey represents an operator API key record.
type AdminKey struct {
	ID        int64
	KeyPrefix string
	KeyHash   []byte
	CreatedAt int64
	RevokedAt *int64
}
