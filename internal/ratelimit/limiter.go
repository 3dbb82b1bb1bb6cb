// Package ratelimit throttles page fetches per host so a polling watch or a
// batch scan does not hammer one marketplace.
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

const (
	DefaultRate  = 1.0
	DefaultBurst = 2
)

// Limiter gates outbound requests by URL.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
	Allow(rawURL string) bool
}

// HostLimiter keeps one token bucket per host. "www." is folded so
// www.ebay.com and ebay.com share a bucket.
type HostLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	perHost  rate.Limit
	burst    int
}

// NewHostLimiter returns a limiter allowing perSecond requests per host.
func NewHostLimiter(perSecond float64, burst int) *HostLimiter {
	if perSecond <= 0 {
		perSecond = DefaultRate
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		perHost:  rate.Limit(perSecond),
		burst:    burst,
	}
}

// Wait blocks until the host of rawURL has a token. URLs without a host
// (file paths) are never throttled.
func (l *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	host := Host(rawURL)
	if host == "" {
		return nil
	}
	return l.get(host).Wait(ctx)
}

func (l *HostLimiter) Allow(rawURL string) bool {
	host := Host(rawURL)
	if host == "" {
		return true
	}
	return l.get(host).Allow()
}

// SetLimit overrides the rate for one host.
func (l *HostLimiter) SetLimit(host string, perSecond float64, burst int) {
	host = normalizeHost(host)
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[host]; ok {
		lim.SetLimit(rate.Limit(perSecond))
		lim.SetBurst(burst)
		return
	}
	l.limiters[host] = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Hosts returns how many hosts have buckets.
func (l *HostLimiter) Hosts() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limiters)
}

func (l *HostLimiter) get(host string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limiters[host]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[host]; ok {
		return lim
	}
	lim = rate.NewLimiter(l.perHost, l.burst)
	l.limiters[host] = lim
	return lim
}

// Host returns the bucket key for rawURL, or "" when it has no host.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return normalizeHost(u.Hostname())
}

func normalizeHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(h), "www.")
}
