// Copyright PolyMD Authors, 2026. All rights reserved.

// Package httputil provides the bounded-retry, backoff, and
// rate-limiting wrapper used by every outbound call to an external
// service. One Endpoint exists per external API; its throttle state is
// the only mutable resource shared across pipeline stages.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/apaudelx/PolyMD/pkg/types"
)

// ErrorKind classifies an outbound-call failure.
type ErrorKind int

const (
	// KindNetwork is a transport-level failure (timeout, refused
	// connection). Retryable.
	KindNetwork ErrorKind = iota

	// KindRateLimited is an HTTP 429 response. Retryable with backoff.
	KindRateLimited

	// KindServer is a transient HTTP 5xx response. Retryable.
	KindServer

	// KindAuth is an HTTP 401/403 response. Fatal: the credential is
	// wrong and no amount of retrying fixes it.
	KindAuth

	// KindBadRequest is any other HTTP 4xx response. The request itself
	// is malformed; not retryable.
	KindBadRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindAuth:
		return "auth"
	case KindBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

// Error is a classified outbound-call failure.
type Error struct {
	Kind     ErrorKind
	Endpoint string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Endpoint, e.Kind, e.Status)
	}
	return fmt.Sprintf("%s: %s: %v", e.Endpoint, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure may succeed on a later attempt.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindRateLimited || e.Kind == KindServer
}

// IsAuth reports whether err stems from a rejected credential. Auth
// failures are fatal to a run: every later call with the same
// credential would fail the same way.
func IsAuth(err error) bool {
	var he *Error
	return errors.As(err, &he) && he.Kind == KindAuth
}

// ErrExhausted marks an operation that failed after the full attempt
// budget. Callers use errors.Is to distinguish "gave up" from
// "rejected".
var ErrExhausted = errors.New("retries exhausted")

// now and sleep are package vars so tests can substitute fake clocks.
var (
	now   = time.Now
	sleep = func(ctx context.Context, d time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	}
)

// Endpoint wraps one external API with retry, backoff, and a shared
// inter-call throttle. All callers of the same external service must
// share one Endpoint so the rate limit holds globally.
type Endpoint struct {
	// Name identifies the endpoint in errors and logs.
	Name string

	Client *http.Client

	// MaxAttempts is the total call budget per logical operation.
	MaxAttempts int

	// BaseDelay seeds exponential backoff: the wait before attempt n+1
	// is BaseDelay * 2^n, capped at MaxBackoff.
	BaseDelay  time.Duration
	MaxBackoff time.Duration

	// MinInterval is the minimum spacing between consecutive calls,
	// enforced across all concurrent callers.
	MinInterval time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewEndpoint builds an Endpoint from retry configuration.
func NewEndpoint(name string, client *http.Client, cfg types.RetryConfig) *Endpoint {
	return &Endpoint{
		Name:        name,
		Client:      client,
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxBackoff:  cfg.MaxBackoff,
		MinInterval: cfg.MinInterval,
	}
}

const (
	defaultMaxAttempts = 3
	defaultMaxBackoff  = 2 * time.Minute
)

// Do executes one logical operation against the endpoint. build is
// called once per attempt to produce a fresh request (request bodies
// cannot be replayed after a failed send).
//
// Transport errors, HTTP 429, and HTTP 5xx are retried with
// exponential backoff up to MaxAttempts total calls. HTTP 401/403 and
// other 4xx surface immediately as non-retryable *Error values.
// Exhausting the budget returns an error wrapping ErrExhausted and the
// last classified failure. Response bodies of failed attempts are
// drained and closed before retrying.
func (e *Endpoint) Do(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	maxAttempts := e.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	maxBackoff := e.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * e.BaseDelay
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		if err := e.throttle(ctx); err != nil {
			return nil, err
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("%s: building request: %w", e.Name, err)
		}

		resp, err := client.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = &Error{Kind: KindNetwork, Endpoint: e.Name, Err: err}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			drain(resp)
			lastErr = &Error{Kind: KindRateLimited, Endpoint: e.Name, Status: resp.StatusCode}
		case resp.StatusCode >= 500:
			drain(resp)
			lastErr = &Error{Kind: KindServer, Endpoint: e.Name, Status: resp.StatusCode}
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			drain(resp)
			return nil, &Error{Kind: KindAuth, Endpoint: e.Name, Status: resp.StatusCode}
		case resp.StatusCode >= 400:
			drain(resp)
			return nil, &Error{Kind: KindBadRequest, Endpoint: e.Name, Status: resp.StatusCode}
		default:
			return resp, nil
		}
	}

	return nil, fmt.Errorf("%s: %w after %d attempts: %w", e.Name, ErrExhausted, maxAttempts, lastErr)
}

// throttle blocks until MinInterval has passed since the previous call.
// The mutex is held across the wait so concurrent callers queue and the
// spacing invariant holds globally, not per caller.
func (e *Endpoint) throttle(ctx context.Context) error {
	if e.MinInterval <= 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.lastCall.IsZero() {
		if wait := e.MinInterval - now().Sub(e.lastCall); wait > 0 {
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	e.lastCall = now()
	return nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
