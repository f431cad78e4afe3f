/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package metrics exposes Prometheus instruments for the game. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "yementuel"

// Guess outcomes.
const (
	GuessCorrect   = "correct"
	GuessIncorrect = "incorrect"
	GuessRejected  = "rejected"
	GuessError     = "error"
)

// Metrics holds every instrument the game records.
type Metrics struct {
	guesses          *prometheus.CounterVec
	scores           *prometheus.CounterVec
	providerFailures prometheus.Counter
	providerPrimary  prometheus.Gauge
	reveals          prometheus.Counter
	feedClients      prometheus.Gauge
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		guesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guesses_total",
			Help:      "Guesses handled, by outcome.",
		}, []string{"outcome"}),
		scores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "similarity_scores_total",
			Help:      "Similarity scores computed, by provider mode.",
		}, []string{"mode"}),
		providerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "similarity_provider_failures_total",
			Help:      "Remote similarity calls that fell back to local scoring.",
		}),
		providerPrimary: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "similarity_provider_primary",
			Help:      "1 while the remote similarity provider is in use, 0 in fallback mode.",
		}),
		reveals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_reveals_total",
			Help:      "Answers disclosed after a passed reveal challenge.",
		}),
		feedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected live feed websockets.",
		}),
	}

	reg.MustRegister(m.guesses, m.scores, m.providerFailures, m.providerPrimary, m.reveals, m.feedClients)

	return m
}

// ObserveGuess counts a guess outcome.
func (m *Metrics) ObserveGuess(outcome string) {
	if m == nil {
		return
	}
	m.guesses.WithLabelValues(outcome).Inc()
}

// ObserveScore counts a similarity score computed in mode.
func (m *Metrics) ObserveScore(mode string) {
	if m == nil {
		return
	}
	m.scores.WithLabelValues(mode).Inc()
}

// ProviderFailure counts a remote call that fell back.
func (m *Metrics) ProviderFailure() {
	if m == nil {
		return
	}
	m.providerFailures.Inc()
}

// SetProviderPrimary records the current provider mode.
func (m *Metrics) SetProviderPrimary(primary bool) {
	if m == nil {
		return
	}
	if primary {
		m.providerPrimary.Set(1)
	} else {
		m.providerPrimary.Set(0)
	}
}

// ObserveReveal counts a disclosed answer.
func (m *Metrics) ObserveReveal() {
	if m == nil {
		return
	}
	m.reveals.Inc()
}

// FeedConnected adjusts the live feed client gauge by delta.
func (m *Metrics) FeedConnected(delta int) {
	if m == nil {
		return
	}
	m.feedClients.Add(float64(delta))
}
