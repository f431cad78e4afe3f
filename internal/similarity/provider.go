/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package similarity scores how close a guess is to the secret word.
//
// The Provider prefers a remote embedding service and degrades to a local
// heuristic whenever that service fails or Health says it is down. Scoring
// never returns an error and never waits on a health probe.
package similarity

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Seednode/yementuel/internal/metrics"
)

// DefaultProbeInterval is how long fallback mode waits between health probes.
const DefaultProbeInterval = 30 * time.Second

// maxNonIdentical keeps remote scores for different words below 1.0.
var maxNonIdentical = math.Nextafter(1, 0)

// Provider scores word pairs.
type Provider struct {
	client        *Client
	health        *Health
	fallback      *Fallback
	probeInterval time.Duration
	probeTimeout  time.Duration
	probes        singleflight.Group
	probing       atomic.Bool
	metrics       *metrics.Metrics
	logf          func(format string, args ...any)
	now           func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithClient enables the remote scoring path.
func WithClient(c *Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// WithFallback replaces the local scorer.
func WithFallback(f *Fallback) Option {
	return func(p *Provider) {
		p.fallback = f
	}
}

// WithProbeInterval sets the minimum time between probes in fallback mode.
func WithProbeInterval(d time.Duration) Option {
	return func(p *Provider) {
		p.probeInterval = d
	}
}

// WithLogger sets the log function.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(p *Provider) {
		p.logf = logf
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provider) {
		p.metrics = m
	}
}

// WithClock sets the clock used for probe bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// NewProvider returns a provider sharing health. Without WithClient it only
// ever scores locally.
func NewProvider(health *Health, opts ...Option) *Provider {
	p := &Provider{
		health:        health,
		fallback:      NewFallback(nil),
		probeInterval: DefaultProbeInterval,
		probeTimeout:  DefaultTimeout,
		logf:          func(string, ...any) {},
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		p.health.Set(ModeFallback, p.now())
	}

	return p
}

// Health returns the shared health state.
func (p *Provider) Health() *Health {
	return p.health
}

// Score returns the similarity of guess to secret in [0,1]. It is 1.0 exactly
// when the two are equal.
func (p *Provider) Score(ctx context.Context, guess, secret string) float64 {
	if guess == secret {
		return 1.0
	}

	if p.client == nil || p.health.Mode() == ModeFallback {
		p.maybeProbe()
		p.metrics.ObserveScore(ModeFallback.String())
		return p.fallback.Score(guess, secret)
	}

	sim, err := p.client.Similarity(ctx, guess, secret)
	if err != nil {
		p.logf("PROVIDER: Remote scoring failed, using fallback: %v", err)
		p.metrics.ProviderFailure()
		p.probeAsync()
		p.metrics.ObserveScore(ModeFallback.String())
		return p.fallback.Score(guess, secret)
	}

	p.metrics.ObserveScore(ModePrimary.String())

	switch {
	case math.IsNaN(sim) || sim < 0:
		return 0
	case sim > maxNonIdentical:
		return maxNonIdentical
	default:
		return sim
	}
}

// Refresh probes the remote service and records the result. Concurrent
// callers share one probe.
func (p *Provider) Refresh(ctx context.Context) Mode {
	v, _, _ := p.probes.Do("probe", func() (any, error) {
		mode := ModeFallback
		if p.client != nil && p.client.TestConnection(ctx) {
			mode = ModePrimary
		}

		if prev := p.health.Set(mode, p.now()); prev != mode {
			p.logf("PROVIDER: Similarity provider mode changed from %s to %s", prev, mode)
		}
		p.metrics.SetProviderPrimary(mode == ModePrimary)

		return mode, nil
	})

	return v.(Mode)
}

func (p *Provider) probeAsync() {
	if !p.probing.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer p.probing.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), p.probeTimeout)
		defer cancel()

		p.Refresh(ctx)
	}()
}

func (p *Provider) maybeProbe() {
	if p.client == nil {
		return
	}

	if p.now().Sub(p.health.LastChecked()) >= p.probeInterval {
		p.probeAsync()
	}
}
