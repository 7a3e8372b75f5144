package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 15 * time.Minute

// LoginLimiter throttles login attempts per client key (usually the IP).
type LoginLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter allows perMinute attempts per key, bursting to perMinute.
// perMinute <= 0 disables limiting.
func NewLoginLimiter(perMinute int) *LoginLimiter {
	l := &LoginLimiter{
		limit:    rate.Inf,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
	if perMinute > 0 {
		l.limit = rate.Every(time.Minute / time.Duration(perMinute))
		l.burst = perMinute
	}
	return l
}

// Allow consumes one attempt for key.
func (l *LoginLimiter) Allow(key string) bool {
	if l.limit == rate.Inf {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		l.evictIdle(now)
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Reset forgets key, used after a successful login.
func (l *LoginLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.visitors, key)
	l.mu.Unlock()
}

func (l *LoginLimiter) evictIdle(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > limiterIdleTTL {
			delete(l.visitors, key)
		}
	}
}
