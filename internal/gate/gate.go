/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package gate issues short human-readable challenges that must be answered
// before the daily answer is revealed. Challenges are single use.
package gate

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// Alphabet leaves out characters that are easy to confuse (0/O, 1/l/I, i).
	Alphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"
	CodeLength = 6
	DefaultTTL = 5 * time.Minute
)

// Challenge is an issued code awaiting an answer.
type Challenge struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Gate holds outstanding challenges in memory.
type Gate struct {
	mu         sync.Mutex
	challenges map[string]Challenge
	ttl        time.Duration
	now        func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock sets the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// New returns a gate whose challenges live for ttl. A non-positive ttl uses
// DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	g := &Gate{
		challenges: make(map[string]Challenge),
		ttl:        ttl,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Issue creates and stores a new challenge.
func (g *Gate) Issue() Challenge {
	c := Challenge{
		ID:        uuid.NewString(),
		Code:      randomCode(CodeLength),
		ExpiresAt: g.now().Add(g.ttl),
	}

	g.mu.Lock()
	g.challenges[c.ID] = c
	g.mu.Unlock()

	return c
}

// Verify reports whether answer matches the challenge id, ignoring case. The
// challenge is consumed whatever the outcome.
func (g *Gate) Verify(id, answer string) bool {
	g.mu.Lock()
	c, ok := g.challenges[id]
	delete(g.challenges, id)
	g.mu.Unlock()

	if !ok || !g.now().Before(c.ExpiresAt) {
		return false
	}

	return strings.EqualFold(strings.TrimSpace(answer), c.Code)
}

// Pending returns the number of stored challenges, expired or not.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.challenges)
}

// Reap drops expired challenges and returns how many were removed.
func (g *Gate) Reap() int {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, c := range g.challenges {
		if !now.Before(c.ExpiresAt) {
			delete(g.challenges, id)
			removed++
		}
	}

	return removed
}

// Run reaps expired challenges every half ttl until ctx is done.
func (g *Gate) Run(ctx context.Context) {
	ticker := time.NewTicker(g.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Reap()
		}
	}
}

// randomCode draws n characters from Alphabet with crypto/rand, rejecting
// bytes that would bias the distribution.
func randomCode(n int) string {
	const limit = 256 - 256%len(Alphabet)

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == n {
				break
			}
		}
	}

	return string(out)
}
