package fetcher

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Outcome is the tri-state settlement of one fetch attempt chain.
type Outcome byte

const (
	OutcomeLoaded  Outcome = 'l'
	OutcomeError   Outcome = 'e'
	OutcomeBlocked Outcome = 'b'
)

// SettleFunc receives the result for one path. For blocked outcomes,
// prevented reports whether the block is terminal; a non-prevented block is
// advisory and a terminal settle for the same path follows.
type SettleFunc func(path string, outcome Outcome, prevented bool)

// Options control one fetch chain (all attempts for one path).
type Options struct {
	// Retries after the first failed attempt.
	NumRetries int
	// Before runs before each attempt's request is issued. Returning false
	// skips the fetch; the path settles as loaded (the caller has taken over).
	Before func(path string, req *http.Request) bool
}

// Fetcher is the resource-loading collaborator of the bundle engine.
// Implementations must eventually deliver exactly one terminal settle per
// Fetch call, plus at most one advisory blocked settle before it.
type Fetcher interface {
	Fetch(ctx context.Context, path string, opts Options, settle SettleFunc)
}

// BlockPolicy decides whether a path is blocked and whether the block is
// terminal. A nil policy blocks nothing.
type BlockPolicy func(path string) (blocked, prevented bool)

// IsStylesheet classifies a path by convention: a "css!" prefix or a ".css"
// suffix marks a stylesheet; everything else is a script.
func IsStylesheet(path string) bool {
	return strings.HasPrefix(path, "css!") || strings.HasSuffix(path, ".css")
}

// FetchURL strips the classification prefix, leaving the fetchable location.
func FetchURL(path string) string {
	return strings.TrimPrefix(path, "css!")
}

// HTTP fetches resources over HTTP with per-path retries.
type HTTP struct {
	client    *http.Client
	policy    BlockPolicy
	log       zerolog.Logger
	retryBase time.Duration
	retryMax  time.Duration
}

// NewHTTP builds an HTTP fetcher. client may be nil for a default with a
// 30s timeout.
func NewHTTP(client *http.Client, policy BlockPolicy, log zerolog.Logger) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTP{
		client:    client,
		policy:    policy,
		log:       log,
		retryBase: 250 * time.Millisecond,
		retryMax:  10 * time.Second,
	}
}

// HostBlockPolicy blocks any path whose URL contains one of the given host
// substrings. prevent controls whether matches are terminal.
func HostBlockPolicy(hosts []string, prevent bool) BlockPolicy {
	return func(path string) (bool, bool) {
		u := FetchURL(path)
		for _, h := range hosts {
			if h != "" && strings.Contains(u, h) {
				return true, prevent
			}
		}
		return false, false
	}
}

// Fetch runs the attempt chain for one path in the calling goroutine.
// Outcomes: loaded on a 2xx response (non-empty body for stylesheets), error
// after retries are exhausted, blocked per the policy.
func (f *HTTP) Fetch(ctx context.Context, path string, opts Options, settle SettleFunc) {
	if f.policy != nil {
		if blocked, prevented := f.policy(path); blocked {
			settle(path, OutcomeBlocked, prevented)
			if prevented {
				return
			}
			// Advisory block: the real settlement still follows.
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.retryBase
	bo.MaxInterval = f.retryMax
	for attempt := 0; ; attempt++ {
		outcome := f.attempt(ctx, path, attempt, opts)
		if outcome == OutcomeError && attempt+1 < opts.NumRetries+1 {
			fetchRetriesTotal.Inc()
			f.log.Debug().Str("path", path).Int("attempt", attempt).Msg("fetch retry")
			select {
			case <-time.After(bo.NextBackOff()):
			case <-ctx.Done():
				settle(path, OutcomeError, false)
				return
			}
			continue
		}
		settle(path, outcome, false)
		return
	}
}

func (f *HTTP) attempt(ctx context.Context, path string, attempt int, opts Options) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, FetchURL(path), nil)
	if err != nil {
		f.log.Debug().Err(err).Str("path", path).Msg("bad fetch request")
		return OutcomeError
	}
	if opts.Before != nil && !opts.Before(path, req) {
		// Caller opted out of this fetch entirely.
		return OutcomeLoaded
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Debug().Err(err).Str("path", path).Int("attempt", attempt).Msg("fetch failed")
		return OutcomeError
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return OutcomeError
	}
	// Error signaling for stylesheets is unreliable; an empty sheet is a miss.
	if IsStylesheet(path) && len(strings.TrimSpace(string(body))) == 0 {
		return OutcomeError
	}
	return OutcomeLoaded
}
