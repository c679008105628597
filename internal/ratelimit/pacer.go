package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Pacer admits at most n concurrent holders. A released slot re-opens only
// after delay has elapsed since the release, so a steady state dispatches at
// most n attempts per delay.
type Pacer struct {
	slots   chan struct{}
	delay   time.Duration
	limiter *RateLimiter

	mu      sync.Mutex
	closed  bool
	pending map[*time.Timer]struct{}
}

// NewPacer creates a pacer with n slots. limiter may be nil.
func NewPacer(n int, delay time.Duration, limiter *RateLimiter) *Pacer {
	if n < 1 {
		n = 1
	}
	if delay < 0 {
		delay = 0
	}
	p := &Pacer{
		slots:   make(chan struct{}, n),
		delay:   delay,
		limiter: limiter,
		pending: make(map[*time.Timer]struct{}),
	}
	for i := 0; i < n; i++ {
		p.slots <- struct{}{}
	}
	return p
}

// Acquire blocks until a slot is open and the rate ceiling allows a dispatch.
// It returns ctx.Err() without holding a slot if ctx is done first.
func (p *Pacer) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.slots:
	}

	// Both cases may have been ready; cancellation wins.
	if err := ctx.Err(); err != nil {
		p.slots <- struct{}{}
		return err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		p.slots <- struct{}{}
		return err
	}
	return nil
}

// Release returns a slot, re-opening it after the pacing delay.
func (p *Pacer) Release() {
	if p.delay == 0 {
		p.slots <- struct{}{}
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(p.delay, func() {
		p.mu.Lock()
		delete(p.pending, t)
		p.mu.Unlock()
		p.slots <- struct{}{}
	})
	p.pending[t] = struct{}{}
}

// Close cancels slots still waiting out their delay. Acquire must not be
// called after Close.
func (p *Pacer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for t := range p.pending {
		t.Stop()
	}
	p.pending = nil
}

// Delay returns the pacing delay.
func (p *Pacer) Delay() time.Duration {
	return p.delay
}
