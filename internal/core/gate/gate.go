// Package gate runs the anti-abuse pipeline in front of outbound calls.
//
// Checks run in a fixed order and the first failure wins: honeypot, bot
// score, fill timing, interaction, phone validation, blacklist, IP rate
// limit, phone rate limit. Only a submission that passes every check reaches
// the Caller.
package gate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/callgate/callgate/internal/core"
	"github.com/callgate/callgate/internal/core/limiter"
	"github.com/callgate/callgate/internal/core/phone"
	"github.com/callgate/callgate/internal/metrics"
	"github.com/callgate/callgate/internal/provider"
	"github.com/callgate/callgate/internal/provider/recaptcha"
)

// UnknownClient stands in for a client address that could not be resolved.
const UnknownClient = "unknown"

// Config holds the pipeline thresholds and the call order template.
type Config struct {
	MinScore     float64
	NeutralScore float64
	MinFillTime  time.Duration
	RequireToken bool
	FailClosed   bool

	MaxCallsPerIP      int
	MaxCallsPerPhone   int
	BlacklistThreshold int

	AssistantID     string
	PhoneNumberID   string
	MaxCallDuration time.Duration
}

// DefaultConfig mirrors the configuration defaults.
var DefaultConfig = Config{
	MinScore:           0.6,
	NeutralScore:       0.5,
	MinFillTime:        3 * time.Second,
	RequireToken:       true,
	MaxCallsPerIP:      3,
	MaxCallsPerPhone:   2,
	BlacklistThreshold: 5,
	MaxCallDuration:    180 * time.Second,
}

// Verifier scores a bot-detection token.
type Verifier interface {
	Enabled() bool
	Verify(ctx context.Context, token, remoteIP string) (*recaptcha.Result, error)
}

// Caller places the outbound call.
type Caller interface {
	PlaceCall(ctx context.Context, order core.CallOrder) (*core.CallResult, error)
}

// Result is a submission that was accepted. A Honeypot result must be
// answered exactly like a placed call.
type Result struct {
	Honeypot bool
	CallID   string
	Data     map[string]any
	Score    float64
	Degraded bool
}

// Gate wires the pipeline to its collaborators.
type Gate struct {
	Config    Config
	Verifier  Verifier
	Limiter   *limiter.Limiter
	Blacklist limiter.Blacklist
	Caller    Caller
	Logger    *logging.Logger
	Clock     func() time.Time
}

// Submit runs req through the pipeline. It returns a *Rejection for pipeline
// verdicts, a *provider.Error when the call provider refuses the order, and
// any other error for infrastructure failures.
func (g *Gate) Submit(ctx context.Context, req core.CallRequest, clientIP string) (*Result, error) {
	metrics.RecordGateRequest()

	result, err := g.submit(ctx, req, normalizeClient(clientIP))

	var rej *Rejection
	if errors.As(err, &rej) {
		metrics.RecordGateRejection(string(rej.Step))
	} else if result != nil && result.Honeypot {
		metrics.RecordGateRejection(string(StepHoneypot))
	}
	return result, err
}

func (g *Gate) submit(ctx context.Context, req core.CallRequest, clientIP string) (*Result, error) {
	if req.Honeypot != "" {
		g.warn("Bot detected via honeypot", zap.String("client_ip", clientIP))
		return &Result{Honeypot: true}, nil
	}

	score, degraded, rej := g.checkBotScore(ctx, req, clientIP)
	if rej != nil {
		return nil, rej
	}

	if rej := g.checkTiming(req); rej != nil {
		return nil, rej
	}

	if req.UserInteracted != nil && !*req.UserInteracted {
		g.warn("No user interaction before submit", zap.String("client_ip", clientIP))
		return nil, security(StepInteraction)
	}

	number, err := phone.Validate(req.PhoneNumber)
	if err != nil {
		return nil, invalidPhone(err)
	}

	listed, err := g.Blacklist.IsBlacklisted(ctx, number)
	if err != nil {
		return nil, err
	}
	if listed {
		g.warn("Blacklisted number rejected", zap.String("phone", phone.Mask(number)))
		return nil, &Rejection{Kind: KindBlacklisted, Step: StepBlacklist, Message: MsgSecurity}
	}

	rej, err = g.checkRateLimits(ctx, number, clientIP)
	if err != nil {
		return nil, err
	}
	if rej != nil {
		return nil, rej
	}

	call, err := g.placeCall(ctx, req, number)
	if err != nil {
		return nil, err
	}

	return &Result{CallID: call.ID, Data: call.Data, Score: score, Degraded: degraded}, nil
}

func (g *Gate) checkBotScore(ctx context.Context, req core.CallRequest, clientIP string) (float64, bool, *Rejection) {
	neutral := g.Config.NeutralScore

	if g.Verifier == nil || !g.Verifier.Enabled() {
		g.warn("Bot-score verifier not configured, allowing with neutral score", zap.Float64("score", neutral))
		return neutral, true, nil
	}

	token := strings.TrimSpace(req.RecaptchaToken)
	if token == "" {
		if g.Config.RequireToken {
			g.warn("No bot-score token provided", zap.String("client_ip", clientIP))
			return 0, false, botScore(DetailTokenRequired, nil)
		}
		g.warn("No bot-score token provided, allowing with neutral score", zap.Float64("score", neutral))
		return neutral, true, nil
	}

	result, err := g.Verifier.Verify(ctx, token, clientIP)
	if err != nil {
		if g.Config.FailClosed {
			g.logError("Bot-score verification unavailable, rejecting", zap.Error(err))
			return 0, false, botScore(DetailVerifierFailed, err)
		}
		g.warn("Bot-score verification unavailable, allowing with neutral score",
			zap.Error(err), zap.Float64("score", neutral))
		return neutral, true, nil
	}

	if !result.Success {
		g.warn("Bot-score verification failed",
			zap.Strings("error_codes", result.ErrorCodes),
			zap.String("hostname", result.Hostname))
		return 0, false, botScore(DetailVerifyFailed, nil)
	}

	metrics.RecordBotScore(result.Score)
	if result.Score < g.Config.MinScore {
		g.warn("Low bot score",
			zap.Float64("score", result.Score),
			zap.String("action", result.Action),
			zap.String("client_ip", clientIP))
		return result.Score, false, botScore(DetailLowScore, nil)
	}

	g.debug("Bot score accepted", zap.Float64("score", result.Score), zap.String("action", result.Action))
	return result.Score, false, nil
}

func (g *Gate) checkTiming(req core.CallRequest) *Rejection {
	if req.FormStartTime == nil || *req.FormStartTime <= 0 {
		return nil
	}

	elapsed := g.now().UnixMilli() - *req.FormStartTime
	if elapsed < g.Config.MinFillTime.Milliseconds() {
		g.warn("Form submitted too fast", zap.Int64("fill_ms", elapsed))
		return security(StepTiming)
	}
	return nil
}

func (g *Gate) checkRateLimits(ctx context.Context, number, clientIP string) (*Rejection, error) {
	decision, err := g.Limiter.Check(ctx, limiter.IPKey(clientIP), g.Config.MaxCallsPerIP)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		g.warn("Rate limit exceeded for IP",
			zap.String("client_ip", clientIP),
			zap.String("reason", decision.Reason),
			zap.Int("count", decision.Count))
		return &Rejection{
			Kind:       KindRateLimited,
			Step:       StepRateLimitIP,
			Message:    MsgRateLimitIP,
			RetryAfter: decision.RetryAfter,
			Reason:     decision.Reason,
		}, nil
	}

	decision, err = g.Limiter.Check(ctx, limiter.PhoneKey(number), g.Config.MaxCallsPerPhone)
	if err != nil {
		return nil, err
	}
	if decision.Allowed {
		return nil, nil
	}

	g.warn("Rate limit exceeded for phone",
		zap.String("phone", phone.Mask(number)),
		zap.String("reason", decision.Reason),
		zap.Int("count", decision.Count))

	if decision.Count > g.Config.BlacklistThreshold {
		added, err := g.Blacklist.Add(ctx, core.BlacklistEntry{
			Phone:   number,
			Reason:  decision.Reason,
			Source:  core.BlacklistSourceAuto,
			AddedAt: g.now(),
		})
		if err != nil {
			return nil, err
		}
		if added {
			metrics.RecordBlacklistAddition(core.BlacklistSourceAuto)
			g.warn("Added number to blacklist",
				zap.String("phone", phone.Mask(number)),
				zap.Int("count", decision.Count))
		}
	}

	return &Rejection{
		Kind:       KindRateLimited,
		Step:       StepRateLimitPhone,
		Message:    MsgRateLimitPhone,
		RetryAfter: decision.RetryAfter,
		Reason:     decision.Reason,
	}, nil
}

func (g *Gate) placeCall(ctx context.Context, req core.CallRequest, number string) (*core.CallResult, error) {
	if g.Caller == nil {
		return nil, configError(errors.New("call provider not configured"))
	}
	if strings.TrimSpace(g.Config.AssistantID) == "" {
		return nil, configError(errors.New("vapi assistant id not configured"))
	}
	if strings.TrimSpace(g.Config.PhoneNumberID) == "" {
		return nil, configError(errors.New("vapi phone number id not configured"))
	}

	order := core.CallOrder{
		AssistantID:        g.Config.AssistantID,
		PhoneNumberID:      g.Config.PhoneNumberID,
		CustomerNumber:     number,
		Metadata:           req.Metadata(),
		MaxDurationSeconds: int(g.Config.MaxCallDuration / time.Second),
	}

	call, err := g.Caller.PlaceCall(ctx, order)
	if err != nil {
		if errors.Is(err, provider.ErrNotConfigured) {
			metrics.RecordCallPlaced("not_configured")
			return nil, configError(err)
		}
		var perr *provider.Error
		if errors.As(err, &perr) {
			metrics.RecordCallPlaced("provider_error")
			g.logError("Call provider rejected order",
				zap.Int("status", perr.StatusCode),
				zap.String("message", perr.Message))
			return nil, err
		}
		metrics.RecordCallPlaced("error")
		return nil, err
	}

	metrics.RecordCallPlaced("success")
	g.info("Call initiated", zap.String("call_id", call.ID), zap.String("phone", phone.Mask(number)))
	return call, nil
}

func security(step Step) *Rejection {
	return &Rejection{Kind: KindSecurity, Step: step, Message: MsgSecurity}
}

func botScore(details string, cause error) *Rejection {
	return &Rejection{Kind: KindSecurity, Step: StepBotScore, Message: MsgBotScore, Details: details, Cause: cause}
}

func configError(cause error) *Rejection {
	return &Rejection{Kind: KindConfig, Step: StepCall, Message: MsgConfig, Cause: cause}
}

func invalidPhone(err error) *Rejection {
	msg := MsgPhoneFormat
	switch {
	case errors.Is(err, phone.ErrRequired):
		msg = MsgPhoneRequired
	case errors.Is(err, phone.ErrPattern):
		msg = MsgPhonePattern
	}
	return &Rejection{Kind: KindInvalidInput, Step: StepValidation, Message: msg, Cause: err}
}

func normalizeClient(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return UnknownClient
	}
	return ip
}

func (g *Gate) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now().UTC()
}

func (g *Gate) debug(msg string, fields ...zap.Field) {
	if g.Logger != nil {
		g.Logger.Debug(msg, fields...)
	}
}

func (g *Gate) info(msg string, fields ...zap.Field) {
	if g.Logger != nil {
		g.Logger.Info(msg, fields...)
	}
}

func (g *Gate) warn(msg string, fields ...zap.Field) {
	if g.Logger != nil {
		g.Logger.Warn(msg, fields...)
	}
}

func (g *Gate) logError(msg string, fields ...zap.Field) {
	if g.Logger != nil {
		g.Logger.Error(msg, fields...)
	}
}
