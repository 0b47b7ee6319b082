// Package registry implements AINS, the .aint domain registry: registration,
// resolution, capability search, and lifecycle status changes. The registry
// exclusively owns agent records; it never hard-deletes them.
package registry

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"time"

	"github.com/ainternet/ainthub/internal/auth"
	"github.com/ainternet/ainthub/internal/db"
	"github.com/ainternet/ainthub/internal/fault"
	"github.com/ainternet/ainthub/internal/logging"
	"github.com/ainternet/ainthub/internal/models"
	"github.com/ainternet/ainthub/internal/trust"
	"go.uber.org/zap"
)

// Suffix is the top-level namespace every registered domain must carry.
const Suffix = ".aint"

// name label: letters, digits, underscore, hyphen; must not start with a
// hyphen; 1-63 chars before the suffix.
var namePattern = regexp.MustCompile(`^[a-z0-9_][a-z0-9_-]{0,62}\.aint$`)

// Normalize lowercases a domain, trims whitespace, and appends the .aint
// suffix if missing, mirroring how the hub's clients address agents.
func Normalize(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain != "" && !strings.HasSuffix(domain, Suffix) {
		domain += Suffix
	}
	return domain
}

// Valid reports whether a normalized domain matches the required suffix and
// charset.
func Valid(domain string) bool {
	return namePattern.MatchString(domain)
}

// Registration holds the caller-supplied fields for a new domain.
type Registration struct {
	Domain       string
	AgentName    string
	Owner        string
	Endpoint     string
	PollEndpoint string
	Capabilities []string
	// Elevated requests capabilities beyond sandbox self-service; the record
	// is created pending and needs an operator approval.
	Elevated bool
}

// Registry is the AINS store, backed by the shared sqlite database.
type Registry struct {
	DB     *sql.DB
	Logger *zap.Logger
}

// Register creates a new agent record and returns it together with the
// owner key (shown exactly once). Self-service registrations are active
// immediately at the sandbox tier; elevated requests are created pending.
// Two concurrent registrations of the same name cannot both succeed: the
// UNIQUE index on domain decides the winner.
func (r *Registry) Register(ctx context.Context, reg Registration) (*models.Agent, string, error) {
	domain := Normalize(reg.Domain)
	if !Valid(domain) {
		return nil, "", fault.Newf(fault.InvalidDomain, "domain %q does not match <name>%s", reg.Domain, Suffix)
	}
	if models.IsSystemDomain(domain) {
		return nil, "", fault.Newf(fault.InvalidDomain, "domain %s is reserved", domain)
	}

	displayKey, prefix, hash, err := auth.GenerateKey(auth.ServiceAgent)
	if err != nil {
		return nil, "", fault.Wrap(fault.StorageUnavailable, "generate owner key", err)
	}

	status := models.StatusActive
	if reg.Elevated {
		status = models.StatusPending
	}

	agent := &models.Agent{
		Domain:       domain,
		AgentName:    reg.AgentName,
		Owner:        reg.Owner,
		Endpoint:     reg.Endpoint,
		PollEndpoint: reg.PollEndpoint,
		Capabilities: normalizeCapabilities(reg.Capabilities),
		TrustScore:   trust.BaseScore,
		Tier:         trust.TierFor(trust.BaseScore),
		Status:       status,
		KeyPrefix:    prefix,
		KeyHash:      hash,
		RegisteredAt: time.Now().Unix(),
	}

	id, err := db.CreateAgent(r.DB, agent)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, "", fault.Newf(fault.DuplicateDomain, "domain %s is already registered", domain)
		}
		return nil, "", fault.Storage("create agent", err)
	}
	agent.ID = id

	r.Logger.Info("domain registered",
		logging.Domain(domain),
		logging.Tier(agent.Tier),
		zap.String("status", agent.Status))

	return agent, displayKey, nil
}

// Resolve looks up a domain case-insensitively. Exact match only.
func (r *Registry) Resolve(ctx context.Context, domain string) (*models.Agent, error) {
	agent, err := db.GetAgentByDomain(r.DB, Normalize(domain))
	if err != nil {
		return nil, fault.Storage("resolve domain", err)
	}
	if agent == nil {
		return nil, fault.Newf(fault.NotFound, "domain %s is not registered", Normalize(domain))
	}
	return agent, nil
}

// List returns all active records ordered by descending trust score, domain
// name ascending on ties.
func (r *Registry) List(ctx context.Context) ([]models.Agent, error) {
	agents, err := db.ListAgentsByStatus(r.DB, models.StatusActive)
	if err != nil {
		return nil, fault.Storage("list agents", err)
	}
	return agents, nil
}

// Search returns active agents that advertise capability (when non-empty)
// and whose trust score is at least minTrust, in List order.
func (r *Registry) Search(ctx context.Context, capability string, minTrust float64) ([]models.Agent, error) {
	agents, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	matched := agents[:0]
	for _, a := range agents {
		if capability != "" && !a.HasCapability(capability) {
			continue
		}
		if a.TrustScore < minTrust {
			continue
		}
		matched = append(matched, a)
	}
	return matched, nil
}

// SetCapabilities replaces the capability set for a domain. Caller identity
// is established by the gateway; the registry only requires that the record
// exists.
func (r *Registry) SetCapabilities(ctx context.Context, domain string, capabilities []string) error {
	agent, err := r.Resolve(ctx, domain)
	if err != nil {
		return err
	}
	if err := db.UpdateAgentCapabilities(r.DB, agent.ID, normalizeCapabilities(capabilities)); err != nil {
		return fault.Storage("update capabilities", err)
	}
	return nil
}

// SetStatus moves a domain to a new lifecycle status. Revocation and
// suspension are status changes, never deletions.
func (r *Registry) SetStatus(ctx context.Context, domain, status string) error {
	agent, err := r.Resolve(ctx, domain)
	if err != nil {
		return err
	}
	if err := db.UpdateAgentStatus(r.DB, agent.ID, status); err != nil {
		return fault.Storage("update status", err)
	}
	r.Logger.Info("domain status changed", logging.Domain(agent.Domain), zap.String("status", status))
	return nil
}

func normalizeCapabilities(caps []string) []string {
	out := make([]string, 0, len(caps))
	seen := make(map[string]bool, len(caps))
	for _, c := range caps {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
