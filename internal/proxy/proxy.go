// Package proxy performs resilient downstream HTTP calls on behalf of the
// gateway router: circuit breaking, bounded retries, and a synthetic
// fallback when a service is down.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/breaker"
	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/registry"
	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/retry"
)

// StatusError marks a downstream response with status >= 500. It is
// retryable and counts against the service's breaker; the final response is
// still relayed to the client when retries run out.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.Code)
}

// Request carries the inbound call the proxy replays downstream.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Proxy orchestrates breaker + retry around downstream HTTP calls.
type Proxy struct {
	client        *http.Client
	breakers      *breaker.Group
	retryCfg      retry.Config
	healthTimeout time.Duration
	logger        *slog.Logger
}

// New constructs a Proxy. timeout bounds the wait for downstream response
// headers; streamed bodies stay open past it by design, since AI response
// streams outlive any sane request deadline.
func New(breakers *breaker.Group, retryCfg retry.Config, timeout time.Duration, logger *slog.Logger) *Proxy {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Proxy{
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: timeout,
				MaxIdleConnsPerHost:   32,
			},
		},
		breakers:      breakers,
		retryCfg:      retryCfg,
		healthTimeout: 2 * time.Second,
		logger:        logger,
	}
}

// Breakers exposes the breaker group for observability and operator resets.
func (p *Proxy) Breakers() *breaker.Group {
	return p.breakers
}

// Call proxies one request to the route's target.
//
// Breaker open: returns the synthetic 503 fallback without any network
// activity. Transient failures (network error or 5xx) are retried per the
// retry config; a final 5xx is relayed as-is and counted against the
// breaker. 4xx responses return immediately with exactly one attempt and no
// breaker penalty. A nil response with non-nil error means the caller should
// answer 502.
func (p *Proxy) Call(ctx context.Context, route registry.Route, req Request) (*ServiceResponse, error) {
	b := p.breakers.For(route.Name)
	if !b.Allow() {
		p.logger.Warn("breaker open, returning fallback", "target", route.Name)
		return Fallback(route.Name), nil
	}

	resp, err := retry.Do(ctx, p.retryCfg, func(attempt int) (*ServiceResponse, error) {
		if attempt > 1 {
			p.logger.Debug("retrying downstream call", "target", route.Name, "attempt", attempt)
		}
		return p.do(ctx, route, req)
	})

	switch {
	case err == nil:
		b.RecordSuccess()
		return resp, nil
	case ctx.Err() != nil:
		// Client went away; neither success nor failure of the service.
		b.Discard()
		return nil, err
	case retry.IsNonRetryable(err):
		// Malformed request, not a service failure.
		b.Discard()
		return nil, err
	default:
		b.RecordFailure()
		if resp != nil {
			// Retries exhausted on 5xx: relay the real response.
			return resp, nil
		}
		p.logger.Warn("downstream call failed", "target", route.Name, "error", err)
		return nil, err
	}
}

func (p *Proxy) do(ctx context.Context, route registry.Route, call Request) (*ServiceResponse, error) {
	url := route.Target.URL() + call.Path
	if call.Query != "" {
		url += "?" + call.Query
	}

	var body io.Reader
	if len(call.Body) > 0 {
		body = bytes.NewReader(call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, call.Method, url, body)
	if err != nil {
		return nil, retry.NonRetryable(fmt.Errorf("build downstream request: %w", err))
	}
	for key, values := range cleanHeader(call.Header) {
		req.Header[key] = values
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", route.Name, err)
	}

	kind := kindFor(resp.Header.Get("Content-Type"))
	if kind == BodyStream {
		return &ServiceResponse{
			Status: resp.StatusCode,
			Header: cleanHeader(resp.Header),
			Kind:   BodyStream,
			Stream: resp.Body,
		}, nil
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", route.Name, err)
	}

	sr := &ServiceResponse{
		Status: resp.StatusCode,
		Header: cleanHeader(resp.Header),
		Kind:   kind,
		Body:   data,
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return sr, &StatusError{Code: resp.StatusCode}
	}
	return sr, nil
}

// CheckHealth probes a route's GET /health endpoint per the downstream
// contract. Any 2xx means ready.
func (p *Proxy) CheckHealth(ctx context.Context, route registry.Route) error {
	ctx, cancel := context.WithTimeout(ctx, p.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, route.Target.URL()+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New("unhealthy: status " + resp.Status)
	}
	return nil
}
