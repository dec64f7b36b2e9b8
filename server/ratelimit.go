// server/ratelimit.go
package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// keyedLimiter 每个 key 一个令牌桶: window 内最多 n 次
type keyedLimiter struct {
	limit    rate.Limit
	burst    int
	now      func() time.Time
	mutex    sync.Mutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiter(n int, window time.Duration, now func() time.Time) *keyedLimiter {
	if n <= 0 {
		n = 1
	}
	if now == nil {
		now = time.Now
	}
	return &keyedLimiter{
		limit:    rate.Every(window / time.Duration(n)),
		burst:    n,
		now:      now,
		limiters: make(map[string]*limiterEntry),
	}
}

func (l *keyedLimiter) Allow(key string) bool {
	now := l.now()

	l.mutex.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	l.mutex.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// Prune 删除 idle 时间内没有请求的 key
func (l *keyedLimiter) Prune(idle time.Duration) int {
	cutoff := l.now().Add(-idle)

	l.mutex.Lock()
	defer l.mutex.Unlock()

	removed := 0
	for key, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

func (l *keyedLimiter) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.limiters)
}

// clientIP 优先取 X-Forwarded-For 的第一个地址
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
