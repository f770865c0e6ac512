package llm

import (
	"sync"

	"golang.org/x/time/rate"
)

// defaultRequestsPerSecond bounds the outbound request rate to a single
// base URL (requests per second, with a burst of the same size).
const defaultRequestsPerSecond = 4

// limiterPool hands out one rate.Limiter per base URL, created lazily and
// reused across Client.Stream calls so a single session's retries (or a
// batch tool spawning several sub-agent loops) don't overrun one backend.
type limiterPool struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newLimiterPool() *limiterPool {
	return &limiterPool{limiters: make(map[string]*rate.Limiter)}
}

func (p *limiterPool) forBaseURL(baseURL string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[baseURL]
	if !ok {
		l = rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultRequestsPerSecond)
		p.limiters[baseURL] = l
	}
	return l
}
