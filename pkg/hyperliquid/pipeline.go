package hyperliquid

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"hyperwire/internal/circuitbreaker"
	"hyperwire/internal/nonce"
	"hyperwire/internal/ratelimit"
	"hyperwire/internal/transport"
	"hyperwire/pkg/core"
	"hyperwire/pkg/symbols"
)

// Rate-limit weights per request class. The venue budgets heavy metadata
// queries differently from light queries and trading actions.
const (
	weightAction = 1
	weightLight  = 2
	weightInfo   = 20
)

// Pipeline performs one rate-limited, optionally signed, optionally translated
// round trip against the venue. The same contract is served over REST and,
// when a poster is supplied, over correlated websocket post requests.
type Pipeline struct {
	http     *transport.HTTPClient
	limiter  *ratelimit.Limiter
	registry *symbols.Registry
	breaker  *circuitbreaker.Breaker
	signer   Signer
	nonces   *nonce.Source
	logger   zerolog.Logger
}

func newPipeline(httpClient *transport.HTTPClient, limiter *ratelimit.Limiter, registry *symbols.Registry, breaker *circuitbreaker.Breaker, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		http:     httpClient,
		limiter:  limiter,
		registry: registry,
		breaker:  breaker,
		nonces:   nonce.NewSource(),
		logger:   logger,
	}
}

// setSigner attaches the signing capability. Only the authenticated client
// variant does this; the public client leaves it nil and every RequireAuth
// request fails before any network activity.
func (p *Pipeline) setSigner(signer Signer) {
	p.signer = signer
}

// prepare runs the stages shared by both transports: the auth guard, signing
// with a fresh nonce, the registry readiness wait for translated calls, the
// breaker gate and the rate-limit acquisition. It returns the body to dispatch.
func (p *Pipeline) prepare(ctx context.Context, req *core.Request) (any, error) {
	body := req.Body

	if req.RequireAuth {
		if p.signer == nil {
			return nil, core.ErrNoSigner
		}
		n := p.nonces.Next()
		sig, err := p.signer.Sign(ctx, req.Body, n)
		if err != nil {
			return nil, fmt.Errorf("sign action: %w", err)
		}
		body = &signedAction{
			Action:    req.Body,
			Nonce:     n,
			Signature: sig,
		}
	}

	if req.Translate {
		if err := p.registry.EnsureReady(ctx); err != nil {
			return nil, err
		}
	}

	if p.breaker != nil && !p.breaker.Allow() {
		return nil, core.ErrCircuitOpen
	}

	if err := p.limiter.Acquire(ctx, req.Weight); err != nil {
		if errors.Is(err, ratelimit.ErrWeightExceedsCapacity) {
			return nil, err
		}
		return nil, classifyTransportError(err)
	}

	return body, nil
}

// SendRaw performs the round trip and returns the undecoded response body.
// A non-nil post routes the request over the websocket post channel; otherwise
// it goes over REST. Transport and venue errors surface as typed errors; there
// is no retry at this layer.
func (p *Pipeline) SendRaw(ctx context.Context, post *poster, req *core.Request) ([]byte, error) {
	body, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	var raw []byte
	if post != nil {
		kind := "info"
		if req.RequireAuth {
			kind = "action"
		}
		raw, err = post.Do(ctx, kind, body)
		if err != nil {
			p.record(false)
			return nil, err
		}
	} else {
		resp, httpErr := p.http.Post(ctx, req.Path, body)
		if httpErr != nil {
			p.record(false)
			return nil, classifyTransportError(httpErr)
		}
		if resp.StatusCode() >= http.StatusBadRequest {
			p.record(false)
			return nil, classifyStatusError(resp.StatusCode(), resp.Bytes())
		}
		raw = resp.Bytes()
	}
	p.record(true)

	if err := errorEnvelope(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Send performs the round trip and returns the decoded response, translated
// when the request asked for it.
func (p *Pipeline) Send(ctx context.Context, post *poster, req *core.Request) (any, error) {
	raw, err := p.SendRaw(ctx, post, req)
	if err != nil {
		return nil, err
	}

	var decoded any
	if err := sonic.Unmarshal(raw, &decoded); err != nil {
		return nil, core.NewVenueError(core.ErrorTypeAPI, "malformed response body").WithCause(err)
	}

	if req.Translate {
		decoded = p.registry.TranslateEmbedded(decoded, symbols.NewFieldSet(req.SymbolFields...), symbols.ClassAny)
	}
	return decoded, nil
}

func (p *Pipeline) record(success bool) {
	if p.breaker != nil {
		p.breaker.Record(success)
	}
}

// errorEnvelope detects the venue's structured error shape
// {"status":"err","response":<message>} and maps it to a typed error.
// Responses that are not objects, or carry any other status, pass.
func errorEnvelope(raw []byte) error {
	var envelope struct {
		Status   string `json:"status"`
		Response any    `json:"response"`
	}
	if err := sonic.Unmarshal(raw, &envelope); err != nil || envelope.Status != "err" {
		return nil
	}

	message := "venue rejected request"
	if m, ok := envelope.Response.(string); ok && m != "" {
		message = m
	}
	return core.NewVenueError(core.ErrorTypeAPI, message).
		WithCode("err").
		WithRaw(envelope.Response)
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewVenueError(core.ErrorTypeTimeout, "request deadline exceeded").WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return core.NewVenueError(core.ErrorTypeTimeout, "request cancelled").WithCause(err)
	}
	return core.NewVenueError(core.ErrorTypeNetwork, err.Error()).WithCause(err)
}

func classifyStatusError(status int, body []byte) error {
	message := string(body)
	if message == "" {
		message = http.StatusText(status)
	}

	var errorType core.ErrorType
	switch {
	case status == http.StatusTooManyRequests:
		errorType = core.ErrorTypeRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		errorType = core.ErrorTypeAuthentication
	case status >= http.StatusInternalServerError:
		errorType = core.ErrorTypeServerError
	default:
		errorType = core.ErrorTypeBadRequest
	}
	return core.NewVenueError(errorType, message).WithStatus(status)
}
