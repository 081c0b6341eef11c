package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimit is a per-IP fixed-window limiter.
type RateLimit struct {
	requests map[string]*clientInfo
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

type clientInfo struct {
	count   int
	resetAt time.Time
}

// NewRateLimit allows limit requests per window per client IP and forgets
// idle clients every cleanup interval.
func NewRateLimit(limit int, window, cleanup time.Duration) *RateLimit {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	if cleanup <= 0 {
		cleanup = 5 * time.Minute
	}
	p := &RateLimit{
		requests: make(map[string]*clientInfo),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	go p.cleanupLoop(cleanup)
	return p
}

func (p *RateLimit) Name() string  { return "ratelimit" }
func (p *RateLimit) Priority() int { return 50 }

func (p *RateLimit) Close() error {
	p.stopOnce.Do(func() { close(p.stopChan) })
	return nil
}

func (p *RateLimit) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !p.allow(ip) {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(p.limit))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", strconv.Itoa(int(p.window.Seconds())))
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (p *RateLimit) allow(ip string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()

	info, exists := p.requests[ip]
	if !exists || now.After(info.resetAt) {
		p.requests[ip] = &clientInfo{
			count:   1,
			resetAt: now.Add(p.window),
		}
		return true
	}

	if info.count >= p.limit {
		return false
	}

	info.count++
	return true
}

func (p *RateLimit) sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for ip, info := range p.requests {
		if now.After(info.resetAt) {
			delete(p.requests, ip)
		}
	}
}

func (p *RateLimit) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.sweep()
		case <-p.stopChan:
			return
		}
	}
}

// clientIP is the RemoteAddr host. Forwarding headers are chi RealIP's job,
// which runs earlier and rewrites RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
