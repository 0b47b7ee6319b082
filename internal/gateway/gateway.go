// Package gateway mediates every registry and relay operation through tier
// and rate-limit checks. Each call walks a fixed state machine:
//
//	Received -> TierChecked -> RateChecked -> Executed -> {Succeeded, Rejected, Failed}
//
// The tier check runs before the rate check: a denial is cheaper and more
// informative than a consumed rate slot. Rate-limit rejections are never
// trust signals; caller-attributable execution failures are.
package gateway

import (
	"context"
	"database/sql"

	"github.com/ainternet/ainthub/internal/db"
	"github.com/ainternet/ainthub/internal/fault"
	"github.com/ainternet/ainthub/internal/logging"
	"github.com/ainternet/ainthub/internal/models"
	"github.com/ainternet/ainthub/internal/ratelimit"
	"github.com/ainternet/ainthub/internal/registry"
	"github.com/ainternet/ainthub/internal/relay"
	"github.com/ainternet/ainthub/internal/trust"
	"go.uber.org/zap"
)

// State is a gateway call state.
type State string

// Call states. The last three are terminal and externally observable.
const (
	StateReceived    State = "received"
	StateTierChecked State = "tier_checked"
	StateRateChecked State = "rate_checked"
	StateExecuted    State = "executed"
	StateSucceeded   State = "succeeded"
	StateRejected    State = "rejected"
	StateFailed      State = "failed"
)

// Outcome is the terminal result of one gateway call. Kind is empty on
// success; Err carries the classified failure otherwise.
type Outcome struct {
	State State
	Kind  fault.Kind
	Err   error
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool { return o.State == StateSucceeded }

func succeeded() Outcome {
	return Outcome{State: StateSucceeded}
}

func rejected(err error) Outcome {
	kind, _ := fault.KindOf(err)
	return Outcome{State: StateRejected, Kind: kind, Err: err}
}

func failed(err error) Outcome {
	kind, ok := fault.KindOf(err)
	if !ok {
		kind = fault.StorageUnavailable
	}
	return Outcome{State: StateFailed, Kind: kind, Err: err}
}

// Gateway is the system boundary. It holds no state of its own beyond the
// components it mediates.
type Gateway struct {
	DB       *sql.DB
	Registry *registry.Registry
	Relay    *relay.Relay
	Trust    *trust.Engine
	Limiter  *ratelimit.Keyed
	Logger   *zap.Logger
}

// tierCheck runs the TierChecked stage: the caller must be a registered,
// active agent. It returns the caller's record when the call may proceed.
func (g *Gateway) tierCheck(ctx context.Context, caller string) (*models.Agent, Outcome) {
	agent, err := g.Registry.Resolve(ctx, caller)
	if err != nil {
		if fault.IsKind(err, fault.NotFound) {
			// Unregistered callers are limited to the public register
			// operation, which never reaches admission.
			return nil, rejected(fault.Newf(fault.TierDenied, "caller %s is not registered", registry.Normalize(caller)))
		}
		return nil, failed(err)
	}
	if agent.Status != models.StatusActive {
		return nil, rejected(fault.Newf(fault.TierDenied, "caller %s is %s", agent.Domain, agent.Status))
	}
	return agent, Outcome{State: StateTierChecked}
}

// rateCheck runs the RateChecked stage, consuming one window slot on
// admission.
func (g *Gateway) rateCheck(agent *models.Agent) Outcome {
	if !g.Limiter.Admit(agent.Domain, agent.Tier) {
		// Being rate limited is not a trust signal; no state is touched.
		g.Logger.Debug("rate limited",
			logging.Agent(agent.Domain),
			logging.Tier(agent.Tier),
			logging.Outcome(string(StateRejected)))
		return rejected(fault.Newf(fault.RateLimited, "tier %s allows %d calls per hour", agent.Tier, ratelimit.Limit(agent.Tier)))
	}
	return Outcome{State: StateRateChecked}
}

// admit runs the TierChecked and RateChecked stages for a registered caller.
// It returns the caller's record when the call may proceed.
func (g *Gateway) admit(ctx context.Context, caller string) (*models.Agent, Outcome) {
	agent, out := g.tierCheck(ctx, caller)
	if agent == nil {
		return nil, out
	}
	if out := g.rateCheck(agent); out.State != StateRateChecked {
		return nil, out
	}
	return agent, Outcome{State: StateRateChecked}
}

// finish classifies an execution error and records an error-penalty trust
// signal when the failure is attributable to the caller.
func (g *Gateway) finish(ctx context.Context, caller string, err error) Outcome {
	if err == nil {
		return succeeded()
	}
	out := failed(err)
	g.Logger.Debug("call failed",
		logging.Agent(registry.Normalize(caller)),
		logging.Outcome(string(out.State)),
		zap.Error(err))
	if callerAttributable(out.Kind) && caller != "" {
		if _, _, terr := g.Trust.RecordDefault(ctx, registry.Normalize(caller), trust.SignalError); terr != nil {
			g.Logger.Warn("record error penalty", logging.Agent(caller), zap.Error(terr))
		}
	}
	return out
}

// callerAttributable reports whether a failure kind counts against the
// caller's trust. Recipient unreachability is not modeled: the core never
// dials agent endpoints.
func callerAttributable(kind fault.Kind) bool {
	switch kind {
	case fault.UnknownRecipient, fault.UnknownMessage:
		return true
	}
	return false
}

// Register handles the one public mutation. Unregistered callers are allowed
// here and nowhere else.
func (g *Gateway) Register(ctx context.Context, reg registry.Registration) (*models.Agent, string, Outcome) {
	agent, key, err := g.Registry.Register(ctx, reg)
	if err != nil {
		return nil, "", failed(err)
	}
	return agent, key, succeeded()
}

// Push delivers a message on behalf of caller, who must match the request's
// sender. The sandbox recipient restriction is part of the tier stage, so a
// denied push never consumes a rate slot.
func (g *Gateway) Push(ctx context.Context, caller string, req relay.PushRequest) (*models.Message, Outcome) {
	if registry.Normalize(req.From) != registry.Normalize(caller) {
		return nil, failed(fault.Newf(fault.ValidationError, "from_agent %s does not match caller identity", req.From))
	}
	agent, out := g.tierCheck(ctx, caller)
	if agent == nil {
		return nil, out
	}
	if to := registry.Normalize(req.To); agent.Tier == models.TierSandbox && !models.IsSystemDomain(to) {
		return nil, rejected(fault.Newf(fault.TierDenied, "sandbox tier may only message system utility domains, not %s", to))
	}
	if out := g.rateCheck(agent); out.State != StateRateChecked {
		return nil, out
	}

	msg, err := g.Relay.Push(ctx, req)
	if err != nil {
		if fault.IsKind(err, fault.TierDenied) {
			return nil, rejected(err)
		}
		return nil, g.finish(ctx, caller, err)
	}
	return msg, succeeded()
}

// Pull drains (or peeks at) the caller's inbox.
func (g *Gateway) Pull(ctx context.Context, caller string, includeRead, markRead bool) ([]models.Message, Outcome) {
	agent, out := g.admit(ctx, caller)
	if agent == nil {
		return nil, out
	}
	messages, err := g.Relay.Pull(ctx, agent.Domain, includeRead, markRead)
	if err != nil {
		return nil, g.finish(ctx, caller, err)
	}
	return messages, succeeded()
}

// Ack responds to a received message on behalf of caller.
func (g *Gateway) Ack(ctx context.Context, caller, messageID, content string) (*models.Message, Outcome) {
	agent, out := g.admit(ctx, caller)
	if agent == nil {
		return nil, out
	}
	msg, err := g.Relay.Ack(ctx, messageID, agent.Domain, content)
	if err != nil {
		if fault.IsKind(err, fault.TierDenied) {
			return nil, rejected(err)
		}
		return nil, g.finish(ctx, caller, err)
	}
	return msg, succeeded()
}

// History returns the caller's message history.
func (g *Gateway) History(ctx context.Context, caller, sessionID string, limit int) ([]models.Message, Outcome) {
	agent, out := g.admit(ctx, caller)
	if agent == nil {
		return nil, out
	}
	messages, err := g.Relay.History(ctx, agent.Domain, sessionID, limit)
	if err != nil {
		return nil, g.finish(ctx, caller, err)
	}
	return messages, succeeded()
}

// SetCapabilities replaces the caller's own capability set.
func (g *Gateway) SetCapabilities(ctx context.Context, caller string, capabilities []string) Outcome {
	agent, out := g.admit(ctx, caller)
	if agent == nil {
		return out
	}
	if err := g.Registry.SetCapabilities(ctx, agent.Domain, capabilities); err != nil {
		return g.finish(ctx, caller, err)
	}
	return succeeded()
}

// Approve activates a pending registration and applies the verification
// trust bonus. Operator-only; the caller is authenticated upstream with the
// admin key, so no tier or rate admission applies.
func (g *Gateway) Approve(ctx context.Context, domain string) Outcome {
	agent, err := g.Registry.Resolve(ctx, domain)
	if err != nil {
		return failed(err)
	}
	if agent.Status != models.StatusPending {
		return failed(fault.Newf(fault.ValidationError, "domain %s is %s, not pending", agent.Domain, agent.Status))
	}
	if err := g.Registry.SetStatus(ctx, agent.Domain, models.StatusActive); err != nil {
		return failed(err)
	}
	if _, _, err := g.Trust.RecordDefault(ctx, agent.Domain, trust.SignalVerification); err != nil {
		return failed(err)
	}
	return succeeded()
}

// Suspend moves a domain to suspended status. Operator-only.
func (g *Gateway) Suspend(ctx context.Context, domain string) Outcome {
	if err := g.Registry.SetStatus(ctx, domain, models.StatusSuspended); err != nil {
		return failed(err)
	}
	return succeeded()
}

// Status reports hub-wide counters.
func (g *Gateway) Status(ctx context.Context) (registered int, pending int, out Outcome) {
	registered, err := db.CountAgentsByStatus(g.DB, models.StatusActive)
	if err != nil {
		return 0, 0, failed(fault.Storage("count agents", err))
	}
	pending, err = g.Relay.Pending(ctx)
	if err != nil {
		return 0, 0, failed(err)
	}
	return registered, pending, succeeded()
}
