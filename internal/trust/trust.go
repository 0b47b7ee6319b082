// Package trust computes agent reputation scores and derives access tiers.
//
// The score is a scalar in [0, 1] accumulated additively from behavioral and
// verification signals. The tier is never stored independently: every score
// write recomputes it from the clamped score in the same transaction, so no
// reader can observe a score and tier that disagree.
package trust

import (
	"context"
	"database/sql"
	"time"

	"github.com/ainternet/ainthub/internal/fault"
	"github.com/ainternet/ainthub/internal/logging"
	"github.com/ainternet/ainthub/internal/models"
	"go.uber.org/zap"
)

// BaseScore is the score assigned at registration. It lands in the sandbox
// tier, so registration never blocks on the trust engine.
const BaseScore = 0.3

// Tier thresholds: sandbox [0, 0.5), verified [0.5, 0.9), core [0.9, 1.0].
const (
	verifiedThreshold = 0.5
	coreThreshold     = 0.9
)

// Signal is a reputation signal kind.
type Signal string

// Signal kinds and their default magnitudes.
const (
	SignalUptime       Signal = "uptime"       // rolling uptime >= 99%
	SignalLatency      Signal = "latency"      // rolling p50 < 500ms
	SignalVerification Signal = "verification" // external verification decision
	SignalError        Signal = "error"        // failed delivery attributed to the agent
	SignalSpam         Signal = "spam"         // upheld spam report
)

// Magnitude returns the default score delta for the signal kind.
func (s Signal) Magnitude() float64 {
	switch s {
	case SignalUptime:
		return 0.1
	case SignalLatency:
		return 0.1
	case SignalVerification:
		return 0.2
	case SignalError:
		return -0.05
	case SignalSpam:
		return -0.1
	}
	return 0
}

// Clamp bounds a score to [0, 1]. Applied on every mutation, not only at
// read time, so the stored value is always valid.
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// TierFor derives the access tier from a clamped score.
func TierFor(score float64) string {
	switch {
	case score >= coreThreshold:
		return models.TierCore
	case score >= verifiedThreshold:
		return models.TierVerified
	default:
		return models.TierSandbox
	}
}

// Engine is the single mutation path for trust scores. It owns the
// trust_score and tier columns of the agents table and touches nothing else.
type Engine struct {
	DB     *sql.DB
	Logger *zap.Logger
}

// Record applies a signal with the given magnitude to the agent's score,
// clamps, rederives the tier, and logs the signal — all in one transaction.
// It returns the new score and tier.
func (e *Engine) Record(ctx context.Context, domain string, kind Signal, magnitude float64) (float64, string, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", fault.Storage("begin trust update", err)
	}
	defer tx.Rollback()

	var agentID int64
	var score float64
	err = tx.QueryRowContext(ctx, "SELECT id, trust_score FROM agents WHERE domain = ?", domain).
		Scan(&agentID, &score)
	if err == sql.ErrNoRows {
		return 0, "", fault.Newf(fault.NotFound, "agent %s not registered", domain)
	}
	if err != nil {
		return 0, "", fault.Storage("read trust score", err)
	}

	score = Clamp(score + magnitude)
	tier := TierFor(score)

	if _, err := tx.ExecContext(ctx, "UPDATE agents SET trust_score = ?, tier = ? WHERE id = ?", score, tier, agentID); err != nil {
		return 0, "", fault.Storage("write trust score", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO trust_signals (agent_id, kind, magnitude, occurred_at) VALUES (?, ?, ?, ?)",
		agentID, string(kind), magnitude, time.Now().Unix()); err != nil {
		return 0, "", fault.Storage("record trust signal", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, "", fault.Storage("commit trust update", err)
	}

	e.Logger.Debug("trust signal recorded",
		logging.Domain(domain),
		zap.String("signal", string(kind)),
		zap.Float64("magnitude", magnitude),
		logging.Trust(score),
		logging.Tier(tier))

	return score, tier, nil
}

// RecordDefault applies a signal using its default magnitude.
func (e *Engine) RecordDefault(ctx context.Context, domain string, kind Signal) (float64, string, error) {
	return e.Record(ctx, domain, kind, kind.Magnitude())
}

// Score returns the agent's current score and tier.
func (e *Engine) Score(ctx context.Context, domain string) (float64, string, error) {
	var score float64
	var tier string
	err := e.DB.QueryRowContext(ctx, "SELECT trust_score, tier FROM agents WHERE domain = ?", domain).
		Scan(&score, &tier)
	if err == sql.ErrNoRows {
		return 0, "", fault.Newf(fault.NotFound, "agent %s not registered", domain)
	}
	if err != nil {
		return 0, "", fault.Storage("read trust score", err)
	}
	return score, tier, nil
}

// Signals returns the recorded signal history for an agent, oldest first.
func (e *Engine) Signals(ctx context.Context, domain string) ([]models.TrustSignal, error) {
	rows, err := e.DB.QueryContext(ctx, `
		SELECT s.id, s.agent_id, s.kind, s.magnitude, s.occurred_at
		FROM trust_signals s
		JOIN agents a ON a.id = s.agent_id
		WHERE a.domain = ?
		ORDER BY s.id ASC`, domain)
	if err != nil {
		return nil, fault.Storage("list trust signals", err)
	}
	defer rows.Close()

	var signals []models.TrustSignal
	for rows.Next() {
		var s models.TrustSignal
		if err := rows.Scan(&s.ID, &s.AgentID, &s.Kind, &s.Magnitude, &s.OccurredAt); err != nil {
			return nil, fault.Storage("scan trust signal", err)
		}
		signals = append(signals, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Storage("list trust signals", err)
	}
	return signals, nil
}
