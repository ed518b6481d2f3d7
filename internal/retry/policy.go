// Package retry computes how long to wait before repeating a request the
// Docs API rejected with HTTP 429.
package retry

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/docs2static/internal/config"
)

// Policy is the backoff applied to rate limited requests. The zero value
// never retries.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration
	Max        time.Duration // cap for growth and for server hints
	MaxRetries int           // retries after the first attempt
}

// DefaultPolicy waits 2s once, which is what the Docs API asks of polite
// clients.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffFixed, Initial: 2 * time.Second, Max: 30 * time.Second, MaxRetries: 1}
}

// FromConfig builds the policy described by the retry section of the configuration.
func FromConfig(cfg config.RetryConfig) Policy {
	return NewPolicy(cfg.Mode, cfg.Initial, cfg.Max, cfg.MaxRetries)
}

// NewPolicy overlays the given values on DefaultPolicy; zero durations,
// negative retries and unknown modes keep the default.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if m := config.NormalizeRetryBackoff(string(mode)); m != "" {
		p.Mode = m
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	p.Initial = min(p.Initial, p.Max)
	return p
}

// Delay returns the wait before retry number n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		d = p.Initial << min(n-1, 30)
	default:
		d = time.Duration(n) * p.Initial
	}
	if d <= 0 || d > p.Max {
		return p.Max
	}
	return d
}

// After returns the wait before retry n, honouring a Retry-After header
// (seconds or HTTP date) up to Max. Without a usable hint it is Delay(n).
func (p Policy) After(n int, retryAfter string, now time.Time) time.Duration {
	hint, ok := ParseRetryAfter(retryAfter, now)
	if !ok || n <= 0 {
		return p.Delay(n)
	}
	return min(hint, p.Max)
}

// ParseRetryAfter decodes a Retry-After header value.
func ParseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(at.Sub(now), 0), true
	}
	return 0, false
}
