package middleware

import (
    "context"
    "sync"
    "time"
)

// Rate limiter ONLY for invalid auth attempts
type InvalidAuthRateLimiter struct {
    mu       sync.Mutex
    attempts map[string]*attemptInfo
    limit    int
    window   time.Duration
}

type attemptInfo struct {
    count   int
    firstAt time.Time
}

// NewInvalidAuthRateLimiter allows limit failed attempts per IP per window.
// The cleanup loop stops when ctx is done.
func NewInvalidAuthRateLimiter(ctx context.Context, limit int, window time.Duration) *InvalidAuthRateLimiter {
    rl := &InvalidAuthRateLimiter{
        attempts: make(map[string]*attemptInfo),
        limit:    limit,
        window:   window,
    }
    go rl.cleanup(ctx)
    return rl
}

// Allow records a failed attempt and reports whether the IP is still under
// the limit.
func (r *InvalidAuthRateLimiter) Allow(ip string) bool {
    r.mu.Lock()
    defer r.mu.Unlock()

    now := time.Now()
    info, exists := r.attempts[ip]
    if !exists {
        r.attempts[ip] = &attemptInfo{count: 1, firstAt: now}
        return true
    }

    // Reset if window expired
    if now.Sub(info.firstAt) > r.window {
        r.attempts[ip] = &attemptInfo{count: 1, firstAt: now}
        return true
    }

    if info.count >= r.limit {
        return false
    }
    info.count++
    return true
}

// Blocked reports whether the IP has used up its attempts without recording
// a new one.
func (r *InvalidAuthRateLimiter) Blocked(ip string) bool {
    r.mu.Lock()
    defer r.mu.Unlock()

    info, exists := r.attempts[ip]
    if !exists || time.Since(info.firstAt) > r.window {
        return false
    }
    return info.count >= r.limit
}

func (r *InvalidAuthRateLimiter) cleanup(ctx context.Context) {
    ticker := time.NewTicker(5 * time.Minute)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            r.mu.Lock()
            now := time.Now()
            for ip, info := range r.attempts {
                if now.Sub(info.firstAt) > r.window {
                    delete(r.attempts, ip)
                }
            }
            r.mu.Unlock()
        }
    }
}
