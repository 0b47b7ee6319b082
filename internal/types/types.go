// Package types defines the API request and response types.
package types

// AgentRecord is the wire shape of a registered domain.
type AgentRecord struct {
	Domain       string   `json:"domain"`
	Agent        string   `json:"agent"`
	Owner        string   `json:"owner"`
	Endpoint     string   `json:"endpoint"`
	IPoll        string   `json:"i_poll"`
	Capabilities []string `json:"capabilities"`
	TrustScore   float64  `json:"trust_score"`
	Tier         string   `json:"tier"`
	Status       string   `json:"status"`
	RegisteredAt string   `json:"registered_at"`
}

// ResolveResponse is returned by GET /api/ains/resolve/{domain}.
type ResolveResponse struct {
	Status string       `json:"status"` // found | not_found
	Domain string       `json:"domain,omitempty"`
	Record *AgentRecord `json:"record,omitempty"`
}

// ListResponse is returned by GET /api/ains/list and /api/ains/search.
type ListResponse struct {
	Count   int           `json:"count"`
	Domains []AgentRecord `json:"domains"`
}

// RegisterRequest is the body of POST /api/ains/register.
type RegisterRequest struct {
	Domain       string   `json:"domain"`
	AgentName    string   `json:"agent_name,omitempty"`
	Owner        string   `json:"owner,omitempty"`
	Endpoint     string   `json:"endpoint"`
	PollEndpoint string   `json:"poll_endpoint,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Elevated     bool     `json:"elevated,omitempty"`
}

// RegisterResponse is returned by POST /api/ains/register. AgentKey is shown
// exactly once.
type RegisterResponse struct {
	Status     string  `json:"status"` // registered | pending_approval
	Domain     string  `json:"domain"`
	Tier       string  `json:"tier"`
	TrustScore float64 `json:"trust_score"`
	AgentKey   string  `json:"agent_key"`
}

// CapabilitiesRequest is the body of PUT /api/ains/capabilities.
type CapabilitiesRequest struct {
	Capabilities []string `json:"capabilities"`
}

// PushRequest is the body of POST /api/ipoll/push.
type PushRequest struct {
	FromAgent string         `json:"from_agent"`
	ToAgent   string         `json:"to_agent"`
	Content   string         `json:"content"`
	PollType  string         `json:"poll_type,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// PushResponse is returned by POST /api/ipoll/push.
type PushResponse struct {
	Status    string `json:"status"` // delivered
	MessageID string `json:"message_id"`
}

// PollMessage is the wire shape of a stored message.
type PollMessage struct {
	ID        string         `json:"id"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	PollType  string         `json:"poll_type"`
	Content   string         `json:"content"`
	SessionID string         `json:"session_id,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
	ReadAt    string         `json:"read_at,omitempty"`
}

// PullResponse is returned by GET /api/ipoll/pull/{agent_id}.
type PullResponse struct {
	Agent string        `json:"agent"`
	Count int           `json:"count"`
	Polls []PollMessage `json:"polls"`
}

// RespondRequest is the body of POST /api/ipoll/respond. FromAgent is
// optional; when present it must name the authenticated caller.
type RespondRequest struct {
	PollID    string `json:"poll_id"`
	Response  string `json:"response"`
	FromAgent string `json:"from_agent,omitempty"`
}

// RespondResponse is returned by POST /api/ipoll/respond.
type RespondResponse struct {
	OriginalID string `json:"original_id"`
	ResponseID string `json:"response_id"`
}

// HistoryResponse is returned by GET /api/ipoll/history.
type HistoryResponse struct {
	Agent string        `json:"agent"`
	Count int           `json:"count"`
	Polls []PollMessage `json:"polls"`
}

// StatusResponse is returned by GET /api/ipoll/status.
type StatusResponse struct {
	Status           string `json:"status"`
	RegisteredAgents int    `json:"registered_agents"`
	PendingMessages  int    `json:"pending_messages"`
}

// ApprovalResponse is returned by the operator approve/suspend endpoints.
type ApprovalResponse struct {
	Domain string `json:"domain"`
	Status string `json:"status"`
}

// ErrorResponse carries a machine-readable failure kind and a human-readable
// message. No operation returns a bare transport error code without a body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
