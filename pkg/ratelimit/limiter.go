package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces requests
type Limiter interface {
	// Allow reports whether a request may proceed now, consuming a token
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset refills the limiter
	Reset()
}

// Pacer spaces requests at least interval apart after an initial burst
type Pacer struct {
	interval time.Duration
	burst    int
	mu       sync.Mutex
	limiter  *rate.Limiter
}

// NewPacer creates a pacer. A non-positive interval disables pacing.
func NewPacer(interval time.Duration, burst int) *Pacer {
	if burst < 1 {
		burst = 1
	}
	p := &Pacer{interval: interval, burst: burst}
	p.limiter = p.newLimiter()
	return p
}

func (p *Pacer) newLimiter() *rate.Limiter {
	if p.interval <= 0 {
		return rate.NewLimiter(rate.Inf, p.burst)
	}
	return rate.NewLimiter(rate.Every(p.interval), p.burst)
}

func (p *Pacer) current() *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limiter
}

// Allow implements Limiter
func (p *Pacer) Allow() bool {
	return p.current().Allow()
}

// Wait implements Limiter
func (p *Pacer) Wait(ctx context.Context) error {
	return p.current().Wait(ctx)
}

// Reset implements Limiter
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limiter = p.newLimiter()
}

// Interval returns the configured spacing
func (p *Pacer) Interval() time.Duration {
	return p.interval
}
