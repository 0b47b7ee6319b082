// Package relay implements I-Poll, the store-and-forward typed messaging
// layer. The relay exclusively owns message lifecycle: created at push,
// mutated once to set read_at, and garbage-collected lazily on expiry.
package relay

import (
	"context"
	"database/sql"
	"time"

	"github.com/ainternet/ainthub/internal/db"
	"github.com/ainternet/ainthub/internal/fault"
	"github.com/ainternet/ainthub/internal/logging"
	"github.com/ainternet/ainthub/internal/models"
	"github.com/ainternet/ainthub/internal/registry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxContentBytes bounds the opaque message payload.
const MaxContentBytes = 64 << 10

// DefaultHistoryLimit caps history queries when the caller gives no limit.
const DefaultHistoryLimit = 20

// Relay is the I-Poll message store. Recipient existence is validated
// against the registry, which must outlive the relay.
type Relay struct {
	DB       *sql.DB
	Registry *registry.Registry
	Logger   *zap.Logger
}

// PushRequest holds the caller-supplied fields for one transmission.
type PushRequest struct {
	From      string
	To        string
	PollType  string
	Content   string
	SessionID string
	Metadata  map[string]any
}

// Push delivers a message to the recipient's inbox and returns the stored
// message. Pushes to system utility domains are answered synchronously: the
// reply is enqueued into the sender's inbox instead, and that reply is what
// is returned.
//
// Sandbox-tier senders may only target system utility domains. The gateway
// rejects such pushes during its tier stage, before any rate accounting;
// the relay enforces the rule again so direct callers cannot bypass it.
func (r *Relay) Push(ctx context.Context, req PushRequest) (*models.Message, error) {
	from := registry.Normalize(req.From)
	to := registry.Normalize(req.To)

	pollType := req.PollType
	if pollType == "" {
		pollType = models.PollPush
	}
	if !models.ValidPollType(pollType) {
		return nil, fault.Newf(fault.ValidationError, "unknown poll type %q", req.PollType)
	}
	if len(req.Content) > MaxContentBytes {
		return nil, fault.Newf(fault.ValidationError, "content exceeds %d bytes", MaxContentBytes)
	}

	sender, err := r.Registry.Resolve(ctx, from)
	if err != nil {
		if fault.IsKind(err, fault.NotFound) {
			return nil, fault.Newf(fault.ValidationError, "sender %s is not registered", from)
		}
		return nil, err
	}

	if sender.Tier == models.TierSandbox && !models.IsSystemDomain(to) {
		return nil, fault.Newf(fault.TierDenied, "sandbox tier may only message system utility domains, not %s", to)
	}

	if reply, ok := systemReply(to, req.Content); ok {
		return r.deliver(&models.Message{
			FromAgent: to,
			ToAgent:   from,
			PollType:  models.PollAck,
			Content:   reply,
			SessionID: optional(req.SessionID),
			Metadata:  map[string]any{"system": true},
		})
	}

	recipient, err := r.Registry.Resolve(ctx, to)
	if err != nil {
		if fault.IsKind(err, fault.NotFound) {
			return nil, fault.Newf(fault.UnknownRecipient, "recipient %s is not registered", to)
		}
		return nil, err
	}
	if recipient.Status != models.StatusActive {
		return nil, fault.Newf(fault.UnknownRecipient, "recipient %s is not active", to)
	}

	metadata := make(map[string]any, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	// Stamp the sender's trust score so recipients can weigh the message.
	metadata["trust_score"] = sender.TrustScore

	return r.deliver(&models.Message{
		FromAgent: from,
		ToAgent:   to,
		PollType:  pollType,
		Content:   req.Content,
		SessionID: optional(req.SessionID),
		Metadata:  metadata,
	})
}

func (r *Relay) deliver(m *models.Message) (*models.Message, error) {
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now().Unix()

	if err := db.InsertMessage(r.DB, m); err != nil {
		return nil, fault.Storage("append message", err)
	}

	r.Logger.Info("message delivered",
		logging.MessageID(m.ID),
		zap.String("from", m.FromAgent),
		zap.String("to", m.ToAgent),
		logging.PollType(m.PollType))

	return m, nil
}

// Pull returns the messages addressed to agent in ascending created_at
// order. By default only unread messages are returned; includeRead requests
// full history. When markRead is set, read_at is stamped atomically with the
// read, so a message is never returned as unread twice.
func (r *Relay) Pull(ctx context.Context, agent string, includeRead, markRead bool) ([]models.Message, error) {
	messages, err := db.PullInbox(r.DB, registry.Normalize(agent), includeRead, markRead, time.Now().Unix())
	if err != nil {
		return nil, fault.Storage("pull inbox", err)
	}
	return messages, nil
}

// Ack responds to a message: it pushes an ACK back to the original sender
// with metadata linking to the acknowledged message.
func (r *Relay) Ack(ctx context.Context, messageID, from, content string) (*models.Message, error) {
	original, err := db.GetMessageByID(r.DB, messageID)
	if err != nil {
		return nil, fault.Storage("look up message", err)
	}
	if original == nil {
		return nil, fault.Newf(fault.UnknownMessage, "message %s does not exist", messageID)
	}

	sessionID := ""
	if original.SessionID != nil {
		sessionID = *original.SessionID
	}

	return r.Push(ctx, PushRequest{
		From:      from,
		To:        original.FromAgent,
		PollType:  models.PollAck,
		Content:   content,
		SessionID: sessionID,
		Metadata:  map[string]any{"in_reply_to": original.ID},
	})
}

// History returns up to limit messages sent to or from agent, newest first,
// optionally filtered by session. Read messages are included; history never
// mutates read state.
func (r *Relay) History(ctx context.Context, agent, sessionID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	messages, err := db.MessageHistory(r.DB, registry.Normalize(agent), sessionID, limit)
	if err != nil {
		return nil, fault.Storage("message history", err)
	}
	return messages, nil
}

// Pending counts unread, unexpired messages across all inboxes.
func (r *Relay) Pending(ctx context.Context) (int, error) {
	count, err := db.CountPendingMessages(r.DB, time.Now().Unix())
	if err != nil {
		return 0, fault.Storage("count pending messages", err)
	}
	return count, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
