// Package proxy rotates the outbound proxies used for page polling.
package proxy

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultCooldown is how long a failed proxy is skipped
const DefaultCooldown = 5 * time.Minute

// Pool hands out proxies round-robin, skipping recently failed ones
type Pool struct {
	mu       sync.Mutex
	proxies  []string
	index    int
	failed   map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
}

// Parse splits a comma-separated proxy flag value into a Pool
func Parse(list string) *Pool {
	var proxies []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return New(proxies)
}

// New creates a Pool over proxies
func New(proxies []string) *Pool {
	return &Pool{
		proxies:  proxies,
		failed:   make(map[string]time.Time),
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
}

// Len returns the number of configured proxies
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.proxies)
}

// Next returns the next proxy not in cooldown. When every proxy failed
// recently the rotation continues anyway; "" means no proxies are configured.
func (p *Pool) Next() string {
	if p == nil {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}
	for range p.proxies {
		candidate := p.proxies[p.index]
		p.index = (p.index + 1) % len(p.proxies)

		failedAt, ok := p.failed[candidate]
		if !ok {
			return candidate
		}
		if p.now().Sub(failedAt) >= p.cooldown {
			delete(p.failed, candidate)
			return candidate
		}
	}
	candidate := p.proxies[p.index]
	p.index = (p.index + 1) % len(p.proxies)
	return candidate
}

// MarkFailed puts proxy into cooldown
func (p *Pool) MarkFailed(proxy string) {
	if p == nil || proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[proxy] = p.now()
}

// MarkHealthy clears the cooldown of proxy
func (p *Pool) MarkHealthy(proxy string) {
	if p == nil || proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failed, proxy)
}

// Func returns an http.Transport proxy function that uses fixed
func Func(fixed string) func(*http.Request) (*url.URL, error) {
	if fixed == "" {
		return http.ProxyFromEnvironment
	}
	return func(*http.Request) (*url.URL, error) {
		return url.Parse(fixed)
	}
}
