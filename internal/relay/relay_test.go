package relay

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ainternet/ainthub/internal/db"
	"github.com/ainternet/ainthub/internal/fault"
	"github.com/ainternet/ainthub/internal/models"
	"github.com/ainternet/ainthub/internal/registry"
	"github.com/ainternet/ainthub/internal/trust"
	"go.uber.org/zap"
)

func newTestRelay(t *testing.T) *Relay {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	reg := &registry.Registry{DB: d, Logger: zap.NewNop()}
	return &Relay{DB: d, Registry: reg, Logger: zap.NewNop()}
}

// registerAgent creates an active agent at the given trust score, so tests
// can place senders above or below the sandbox threshold.
func registerAgent(t *testing.T, r *Relay, domain string, score float64) {
	t.Helper()
	agent, _, err := r.Registry.Register(context.Background(), registry.Registration{Domain: domain})
	if err != nil {
		t.Fatalf("register %s: %v", domain, err)
	}
	if _, err := r.DB.Exec("UPDATE agents SET trust_score = ?, tier = ? WHERE id = ?",
		score, trust.TierFor(score), agent.ID); err != nil {
		t.Fatalf("set score for %s: %v", domain, err)
	}
}

func TestPushPullRoundtrip(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()
	registerAgent(t, r, "alpha", 0.6)
	registerAgent(t, r, "beta", 0.6)

	sent, err := r.Push(ctx, PushRequest{
		From:     "alpha",
		To:       "beta.aint",
		PollType: models.PollTask,
		Content:  "summarize this",
	})
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if sent.ID == "" {
		t.Error("message has no ID")
	}

	messages, err := r.Pull(ctx, "beta.aint", false, true)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	m := messages[0]
	if m.FromAgent != "alpha.aint" || m.ToAgent != "beta.aint" {
		t.Errorf("addressing = %s -> %s", m.FromAgent, m.ToAgent)
	}
	if m.PollType != models.PollTask || m.Content != "summarize this" {
		t.Errorf("payload = %s %q", m.PollType, m.Content)
	}
	// The sender's trust score rides along in metadata.
	if score, ok := m.Metadata["trust_score"].(float64); !ok || score != 0.6 {
		t.Errorf("trust_score metadata = %v", m.Metadata["trust_score"])
	}

	// Drained.
	messages, err = r.Pull(ctx, "beta.aint", false, true)
	if err != nil {
		t.Fatalf("second Pull failed: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("inbox not drained, got %d messages", len(messages))
	}
}

func TestPushDefaultsAndValidation(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()
	registerAgent(t, r, "alpha", 0.6)
	registerAgent(t, r, "beta", 0.6)

	sent, err := r.Push(ctx, PushRequest{From: "alpha", To: "beta", Content: "hi"})
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if sent.PollType != models.PollPush {
		t.Errorf("default poll type = %q, want PUSH", sent.PollType)
	}

	_, err = r.Push(ctx, PushRequest{From: "alpha", To: "beta", PollType: "SHOUT", Content: "hi"})
	if !fault.IsKind(err, fault.ValidationError) {
		t.Errorf("bad poll type: expected ValidationError, got %v", err)
	}

	_, err = r.Push(ctx, PushRequest{From: "alpha", To: "beta", Content: strings.Repeat("x", MaxContentBytes+1)})
	if !fault.IsKind(err, fault.ValidationError) {
		t.Errorf("oversize content: expected ValidationError, got %v", err)
	}

	_, err = r.Push(ctx, PushRequest{From: "ghost", To: "beta", Content: "hi"})
	if !fault.IsKind(err, fault.ValidationError) {
		t.Errorf("unregistered sender: expected ValidationError, got %v", err)
	}
}

func TestPushUnknownRecipient(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()
	registerAgent(t, r, "alpha", 0.6)
	registerAgent(t, r, "suspended", 0.6)
	if err := r.Registry.SetStatus(ctx, "suspended.aint", models.StatusSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	_, err := r.Push(ctx, PushRequest{From: "alpha", To: "ghost", Content: "hi"})
	if !fault.IsKind(err, fault.UnknownRecipient) {
		t.Errorf("unknown recipient: expected UnknownRecipient, got %v", err)
	}

	_, err = r.Push(ctx, PushRequest{From: "alpha", To: "suspended", Content: "hi"})
	if !fault.IsKind(err, fault.UnknownRecipient) {
		t.Errorf("suspended recipient: expected UnknownRecipient, got %v", err)
	}
}

func TestSandboxMayOnlyMessageSystemDomains(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()
	registerAgent(t, r, "newbie", 0.3)
	registerAgent(t, r, "beta", 0.6)

	_, err := r.Push(ctx, PushRequest{From: "newbie", To: "beta", Content: "hi"})
	if !fault.IsKind(err, fault.TierDenied) {
		t.Errorf("expected TierDenied, got %v", err)
	}

	if _, err := r.Push(ctx, PushRequest{From: "newbie", To: "echo", Content: "hi"}); err != nil {
		t.Errorf("sandbox push to echo failed: %v", err)
	}
}

func TestSystemDomainReplies(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()
	registerAgent(t, r, "newbie", 0.3)

	tests := []struct {
		to   string
		want string
	}{
		{"echo.aint", "ECHO: hello there"},
		{"ping.aint", "PONG!"},
	}
	for _, tt := range tests {
		reply, err := r.Push(ctx, PushRequest{From: "newbie", To: tt.to, Content: "hello there"})
		if err != nil {
			t.Fatalf("push to %s: %v", tt.to, err)
		}
		if reply.Content != tt.want {
			t.Errorf("%s reply = %q, want %q", tt.to, reply.Content, tt.want)
		}
		if reply.FromAgent != tt.to || reply.ToAgent != "newbie.aint" {
			t.Errorf("%s reply addressing = %s -> %s", tt.to, reply.FromAgent, reply.ToAgent)
		}
		if reply.PollType != models.PollAck {
			t.Errorf("%s reply type = %q, want ACK", tt.to, reply.PollType)
		}
	}

	reply, err := r.Push(ctx, PushRequest{From: "newbie", To: "help", Content: "?"})
	if err != nil {
		t.Fatalf("push to help: %v", err)
	}
	if !strings.Contains(reply.Content, "echo.aint") {
		t.Errorf("help text does not mention the utility domains: %q", reply.Content)
	}

	// The replies landed in the sender's inbox.
	messages, err := r.Pull(ctx, "newbie", false, true)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if len(messages) != 3 {
		t.Errorf("expected 3 system replies in inbox, got %d", len(messages))
	}
}

func TestAck(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()
	registerAgent(t, r, "alpha", 0.6)
	registerAgent(t, r, "beta", 0.6)

	session := "sess-42"
	original, err := r.Push(ctx, PushRequest{From: "alpha", To: "beta", Content: "task", SessionID: session})
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	ack, err := r.Ack(ctx, original.ID, "beta", "done")
	if err != nil {
		t.Fatalf("Ack failed: %v", err)
	}
	if ack.PollType != models.PollAck || ack.ToAgent != "alpha.aint" {
		t.Errorf("ack = %s to %s", ack.PollType, ack.ToAgent)
	}
	if ack.Metadata["in_reply_to"] != original.ID {
		t.Errorf("in_reply_to = %v, want %s", ack.Metadata["in_reply_to"], original.ID)
	}
	if ack.SessionID == nil || *ack.SessionID != session {
		t.Errorf("ack did not carry the session")
	}

	_, err = r.Ack(ctx, "no-such-message", "beta", "done")
	if !fault.IsKind(err, fault.UnknownMessage) {
		t.Errorf("expected UnknownMessage, got %v", err)
	}
}

func TestExpiredMessagesAreSkipped(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()
	registerAgent(t, r, "alpha", 0.6)
	registerAgent(t, r, "beta", 0.6)

	_, err := r.Push(ctx, PushRequest{
		From:     "alpha",
		To:       "beta",
		Content:  "stale",
		Metadata: map[string]any{"expires": time.Now().Add(-time.Minute).Unix()},
	})
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	_, err = r.Push(ctx, PushRequest{
		From:     "alpha",
		To:       "beta",
		Content:  "fresh",
		Metadata: map[string]any{"expires": time.Now().Add(time.Hour).Unix()},
	})
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	messages, err := r.Pull(ctx, "beta", false, true)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "fresh" {
		t.Errorf("expected only the fresh message, got %v", messages)
	}
}

func TestConcurrentPullsDeliverEachMessageOnce(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()
	registerAgent(t, r, "alpha", 0.6)
	registerAgent(t, r, "beta", 0.6)

	const total = 20
	for i := 0; i < total; i++ {
		if _, err := r.Push(ctx, PushRequest{From: "alpha", To: "beta", Content: "msg"}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	var wg sync.WaitGroup
	results := make(chan []models.Message, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			messages, err := r.Pull(ctx, "beta", false, true)
			if err != nil {
				t.Errorf("concurrent pull: %v", err)
				return
			}
			results <- messages
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]int)
	for messages := range results {
		for _, m := range messages {
			seen[m.ID]++
		}
	}
	if len(seen) != total {
		t.Errorf("pulls returned %d distinct messages, want %d", len(seen), total)
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("message %s observed as unread %d times", id, count)
		}
	}
}

func TestHistory(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()
	registerAgent(t, r, "alpha", 0.6)
	registerAgent(t, r, "beta", 0.6)

	if _, err := r.Push(ctx, PushRequest{From: "alpha", To: "beta", Content: "one", SessionID: "s1"}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if _, err := r.Push(ctx, PushRequest{From: "beta", To: "alpha", Content: "two", SessionID: "s1"}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if _, err := r.Push(ctx, PushRequest{From: "alpha", To: "beta", Content: "three"}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	history, err := r.History(ctx, "alpha", "", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("full history = %d messages, want 3", len(history))
	}

	history, err = r.History(ctx, "alpha", "s1", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("session history = %d messages, want 2", len(history))
	}

	// History is a read-only view; everything is still unread.
	messages, err := r.Pull(ctx, "beta", false, false)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if len(messages) != 2 {
		t.Errorf("expected 2 unread messages for beta, got %d", len(messages))
	}
}

func TestPending(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()
	registerAgent(t, r, "alpha", 0.6)
	registerAgent(t, r, "beta", 0.6)

	if _, err := r.Push(ctx, PushRequest{From: "alpha", To: "beta", Content: "one"}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if _, err := r.Push(ctx, PushRequest{From: "beta", To: "alpha", Content: "two"}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	count, err := r.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if count != 2 {
		t.Errorf("pending = %d, want 2", count)
	}

	if _, err := r.Pull(ctx, "beta", false, true); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	count, err = r.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if count != 1 {
		t.Errorf("pending after drain = %d, want 1", count)
	}
}
