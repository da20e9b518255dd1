// Copyright 2026 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package webhook

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 1000
	clientTTL         = 5 * time.Minute
)

// RateLimiter keeps one token bucket per client. Idle clients are evicted
// after clientTTL.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int

	// proxyHops is the number of trusted proxies that append to
	// X-Forwarded-For in front of the server.
	proxyHops int
}

// NewRateLimiter allows perMinute requests per client per minute. It returns
// nil when perMinute is not positive; a nil RateLimiter allows everything.
//
// proxyHops is how many trusted proxies sit in front of the server. With zero
// the peer address is the client; otherwise the client is the entry those
// proxies appended to X-Forwarded-For. Entries left of it are caller supplied
// and never used.
func NewRateLimiter(perMinute, proxyHops int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &RateLimiter{
		limiters:  expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, clientTTL),
		limit:     rate.Limit(float64(perMinute) / 60.0),
		burst:     perMinute,
		proxyHops: proxyHops,
	}
}

// AllowRequest reports whether the client that sent r may proceed.
func (l *RateLimiter) AllowRequest(r *http.Request) bool {
	if l == nil {
		return true
	}
	return l.Allow(clientKey(r, l.proxyHops))
}

// Allow reports whether the client identified by key may proceed.
func (l *RateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}

	// Get and Add are individually safe, the pair is not.
	l.mu.Lock()
	limiter, ok := l.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(key, limiter)
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// clientKey identifies the caller. The last proxyHops entries of
// X-Forwarded-For were written by trusted proxies, the outermost of which
// recorded the client address. When the header is shorter than that, or no
// proxies are trusted, the peer address is used.
func clientKey(r *http.Request, proxyHops int) string {
	if proxyHops > 0 {
		var hops []string
		for _, v := range r.Header.Values("X-Forwarded-For") {
			for _, hop := range strings.Split(v, ",") {
				hops = append(hops, strings.TrimSpace(hop))
			}
		}
		if idx := len(hops) - proxyHops; idx >= 0 && hops[idx] != "" {
			return hops[idx]
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
