// Package server implements the HTTP API and DNS servers.
package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ainternet/ainthub/internal/auth"
	"github.com/ainternet/ainthub/internal/db"
	"github.com/ainternet/ainthub/internal/fault"
	"github.com/ainternet/ainthub/internal/gateway"
	"github.com/ainternet/ainthub/internal/models"
	"github.com/ainternet/ainthub/internal/registry"
	"github.com/ainternet/ainthub/internal/relay"
	"github.com/ainternet/ainthub/internal/types"
	"go.uber.org/zap"
)

type contextKey string

const callerContextKey contextKey = "caller"

func callerDomain(r *http.Request) string {
	if domain, ok := r.Context().Value(callerContextKey).(string); ok {
		return domain
	}
	return ""
}

// APIServer handles the AINS and I-Poll REST API.
type APIServer struct {
	DB      *sql.DB
	Gateway *gateway.Gateway
	Logger  *zap.Logger
}

// Handler returns the HTTP handler for the API server. Resolve, list,
// search, status, and register are public; relay operations and capability
// updates require the caller's agent key; approve and suspend require the
// operator key.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/ains/resolve/{domain}", s.handleResolve)
	mux.HandleFunc("GET /api/ains/list", s.handleList)
	mux.HandleFunc("GET /api/ains/search", s.handleSearch)
	mux.HandleFunc("POST /api/ains/register", s.handleRegister)
	mux.Handle("PUT /api/ains/capabilities", s.requireAgent(s.handleCapabilities))
	mux.Handle("POST /api/ains/approve/{domain}", s.requireAdmin(s.handleApprove))
	mux.Handle("POST /api/ains/suspend/{domain}", s.requireAdmin(s.handleSuspend))

	mux.Handle("POST /api/ipoll/push", s.requireAgent(s.handlePush))
	mux.Handle("GET /api/ipoll/pull/{agent_id}", s.requireAgent(s.handlePull))
	mux.Handle("POST /api/ipoll/respond", s.requireAgent(s.handleRespond))
	mux.Handle("GET /api/ipoll/history", s.requireAgent(s.handleHistory))
	mux.HandleFunc("GET /api/ipoll/status", s.handleStatus)

	return mux
}

// requireAgent validates the caller's owner key and stores the caller's
// domain in the request context.
func (s *APIServer) requireAgent(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := bearerToken(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, fault.ValidationError, "agent key required")
			return
		}

		prefix, _, err := auth.ParseKey(auth.ServiceAgent, key)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fault.ValidationError, "invalid agent key")
			return
		}

		agent, err := db.GetAgentByKeyPrefix(s.DB, prefix)
		if err != nil {
			s.storageError(w, "look up agent key", err)
			return
		}
		if agent == nil || !auth.VerifyKey(auth.ServiceAgent, key, agent.KeyHash) {
			writeError(w, http.StatusUnauthorized, fault.ValidationError, "invalid agent key")
			return
		}

		ctx := context.WithValue(r.Context(), callerContextKey, agent.Domain)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin validates the operator key.
func (s *APIServer) requireAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := bearerToken(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, fault.ValidationError, "operator key required")
			return
		}

		prefix, _, err := auth.ParseKey(auth.ServiceAdmin, key)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fault.ValidationError, "invalid operator key")
			return
		}

		stored, err := db.GetAdminKeyByPrefix(s.DB, prefix)
		if err != nil {
			s.storageError(w, "look up operator key", err)
			return
		}
		if stored == nil || stored.RevokedAt != nil || !auth.VerifyKey(auth.ServiceAdmin, key, stored.KeyHash) {
			writeError(w, http.StatusUnauthorized, fault.ValidationError, "invalid operator key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func (s *APIServer) handleResolve(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")
	agent, err := s.Gateway.Registry.Resolve(r.Context(), domain)
	if err != nil {
		if fault.IsKind(err, fault.NotFound) {
			// Misses are a 200 with status not_found; clients distinguish
			// them by body, not transport code.
			writeJSON(w, http.StatusOK, types.ResolveResponse{Status: "not_found"})
			return
		}
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ResolveResponse{
		Status: "found",
		Domain: agent.Domain,
		Record: agentRecord(agent),
	})
}

func (s *APIServer) handleList(w http.ResponseWriter, r *http.Request) {
	agents, err := s.Gateway.Registry.List(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(agents))
}

func (s *APIServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	capability := r.URL.Query().Get("capability")
	minTrust := 0.0
	if v := r.URL.Query().Get("min_trust"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fault.ValidationError, "min_trust must be a number")
			return
		}
		minTrust = parsed
	}

	agents, err := s.Gateway.Registry.Search(r.Context(), capability, minTrust)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(agents))
}

func (s *APIServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Domain == "" {
		writeError(w, http.StatusBadRequest, fault.ValidationError, "domain is required")
		return
	}

	agent, key, out := s.Gateway.Register(r.Context(), registry.Registration{
		Domain:       req.Domain,
		AgentName:    req.AgentName,
		Owner:        req.Owner,
		Endpoint:     req.Endpoint,
		PollEndpoint: req.PollEndpoint,
		Capabilities: req.Capabilities,
		Elevated:     req.Elevated,
	})
	if !out.OK() {
		s.writeOutcome(w, out)
		return
	}

	status := "registered"
	if agent.Status == models.StatusPending {
		status = "pending_approval"
	}

	writeJSON(w, http.StatusOK, types.RegisterResponse{
		Status:     status,
		Domain:     agent.Domain,
		Tier:       agent.Tier,
		TrustScore: agent.TrustScore,
		AgentKey:   key,
	})
}

func (s *APIServer) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	var req types.CapabilitiesRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	out := s.Gateway.SetCapabilities(r.Context(), callerDomain(r), req.Capabilities)
	if !out.OK() {
		s.writeOutcome(w, out)
		return
	}
	writeJSON(w, http.StatusOK, types.ApprovalResponse{Domain: callerDomain(r), Status: "updated"})
}

func (s *APIServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	domain := registry.Normalize(r.PathValue("domain"))
	out := s.Gateway.Approve(r.Context(), domain)
	if !out.OK() {
		s.writeOutcome(w, out)
		return
	}
	writeJSON(w, http.StatusOK, types.ApprovalResponse{Domain: domain, Status: models.StatusActive})
}

func (s *APIServer) handleSuspend(w http.ResponseWriter, r *http.Request) {
	domain := registry.Normalize(r.PathValue("domain"))
	out := s.Gateway.Suspend(r.Context(), domain)
	if !out.OK() {
		s.writeOutcome(w, out)
		return
	}
	writeJSON(w, http.StatusOK, types.ApprovalResponse{Domain: domain, Status: models.StatusSuspended})
}

func (s *APIServer) handlePush(w http.ResponseWriter, r *http.Request) {
	var req types.PushRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.ToAgent == "" {
		writeError(w, http.StatusBadRequest, fault.ValidationError, "to_agent is required")
		return
	}

	from := req.FromAgent
	if from == "" {
		from = callerDomain(r)
	}

	msg, out := s.Gateway.Push(r.Context(), callerDomain(r), relay.PushRequest{
		From:      from,
		To:        req.ToAgent,
		PollType:  req.PollType,
		Content:   req.Content,
		SessionID: req.SessionID,
		Metadata:  req.Metadata,
	})
	if !out.OK() {
		s.writeOutcome(w, out)
		return
	}
	writeJSON(w, http.StatusOK, types.PushResponse{Status: "delivered", MessageID: msg.ID})
}

func (s *APIServer) handlePull(w http.ResponseWriter, r *http.Request) {
	agentID := registry.Normalize(r.PathValue("agent_id"))
	if agentID != callerDomain(r) {
		writeError(w, http.StatusForbidden, fault.TierDenied, "an agent may only pull its own inbox")
		return
	}

	markRead := true
	if v := r.URL.Query().Get("mark_read"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fault.ValidationError, "mark_read must be a boolean")
			return
		}
		markRead = parsed
	}
	includeRead, _ := strconv.ParseBool(r.URL.Query().Get("include_read"))

	messages, out := s.Gateway.Pull(r.Context(), agentID, includeRead, markRead)
	if !out.OK() {
		s.writeOutcome(w, out)
		return
	}

	writeJSON(w, http.StatusOK, types.PullResponse{
		Agent: agentID,
		Count: len(messages),
		Polls: pollMessages(messages),
	})
}

func (s *APIServer) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req types.RespondRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.PollID == "" {
		writeError(w, http.StatusBadRequest, fault.ValidationError, "poll_id is required")
		return
	}
	if req.FromAgent != "" && registry.Normalize(req.FromAgent) != callerDomain(r) {
		writeError(w, http.StatusBadRequest, fault.ValidationError, "from_agent does not match caller identity")
		return
	}

	msg, out := s.Gateway.Ack(r.Context(), callerDomain(r), req.PollID, req.Response)
	if !out.OK() {
		s.writeOutcome(w, out)
		return
	}
	writeJSON(w, http.StatusOK, types.RespondResponse{OriginalID: req.PollID, ResponseID: msg.ID})
}

func (s *APIServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fault.ValidationError, "limit must be an integer")
			return
		}
		limit = parsed
	}

	messages, out := s.Gateway.History(r.Context(), callerDomain(r), sessionID, limit)
	if !out.OK() {
		s.writeOutcome(w, out)
		return
	}
	writeJSON(w, http.StatusOK, types.HistoryResponse{
		Agent: callerDomain(r),
		Count: len(messages),
		Polls: pollMessages(messages),
	})
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	registered, pending, out := s.Gateway.Status(r.Context())
	if !out.OK() {
		s.writeOutcome(w, out)
		return
	}
	writeJSON(w, http.StatusOK, types.StatusResponse{
		Status:           "ok",
		RegisteredAgents: registered,
		PendingMessages:  pending,
	})
}

// decodeBody strictly decodes a bounded JSON request body into dst,
// writing the error response itself on failure.
func (s *APIServer) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fault.ValidationError, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, fault.ValidationError, "invalid JSON")
		return false
	}
	if dec.Decode(&struct{}{}) != io.EOF {
		writeError(w, http.StatusBadRequest, fault.ValidationError, "unexpected trailing data")
		return false
	}
	return true
}

func (s *APIServer) writeOutcome(w http.ResponseWriter, out gateway.Outcome) {
	if out.Err == nil {
		writeError(w, http.StatusInternalServerError, fault.StorageUnavailable, "internal error")
		return
	}
	s.writeFailure(w, out.Err)
}

func (s *APIServer) writeFailure(w http.ResponseWriter, err error) {
	kind, ok := fault.KindOf(err)
	if !ok {
		kind = fault.StorageUnavailable
	}
	if kind.Fatal() {
		s.Logger.Error("storage failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, kind, "storage unavailable")
		return
	}
	writeError(w, httpStatus(kind), kind, err.Error())
}

func (s *APIServer) storageError(w http.ResponseWriter, msg string, err error) {
	s.Logger.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, fault.StorageUnavailable, "storage unavailable")
}

func httpStatus(kind fault.Kind) int {
	switch kind {
	case fault.InvalidDomain, fault.ValidationError:
		return http.StatusBadRequest
	case fault.DuplicateDomain:
		return http.StatusConflict
	case fault.NotFound, fault.UnknownRecipient, fault.UnknownMessage:
		return http.StatusNotFound
	case fault.TierDenied:
		return http.StatusForbidden
	case fault.RateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func agentRecord(a *models.Agent) *types.AgentRecord {
	return &types.AgentRecord{
		Domain:       a.Domain,
		Agent:        a.AgentName,
		Owner:        a.Owner,
		Endpoint:     a.Endpoint,
		IPoll:        a.PollEndpoint,
		Capabilities: a.Capabilities,
		TrustScore:   a.TrustScore,
		Tier:         a.Tier,
		Status:       a.Status,
		RegisteredAt: time.Unix(a.RegisteredAt, 0).UTC().Format(time.RFC3339),
	}
}

func listResponse(agents []models.Agent) types.ListResponse {
	resp := types.ListResponse{Domains: make([]types.AgentRecord, 0, len(agents))}
	for i := range agents {
		resp.Domains = append(resp.Domains, *agentRecord(&agents[i]))
	}
	resp.Count = len(resp.Domains)
	return resp
}

func pollMessages(messages []models.Message) []types.PollMessage {
	polls := make([]types.PollMessage, 0, len(messages))
	for _, m := range messages {
		p := types.PollMessage{
			ID:        m.ID,
			From:      m.FromAgent,
			To:        m.ToAgent,
			PollType:  m.PollType,
			Content:   m.Content,
			Metadata:  m.Metadata,
			CreatedAt: time.Unix(m.CreatedAt, 0).UTC().Format(time.RFC3339),
		}
		if m.SessionID != nil {
			p.SessionID = *m.SessionID
		}
		if m.ReadAt != nil {
			p.ReadAt = time.Unix(*m.ReadAt, 0).UTC().Format(time.RFC3339)
		}
		polls = append(polls, p)
	}
	return polls
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, kind fault.Kind, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: string(kind), Message: message})
}
