/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package engine runs the guessing game: it validates a guess, resolves the
// day's secret, scores the pair, records the attempt and ranks it within the
// guessing session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Seednode/yementuel/internal/ledger"
	"github.com/Seednode/yementuel/internal/metrics"
	"github.com/Seednode/yementuel/internal/words"
)

// WordRegistry is the daily word store.
type WordRegistry interface {
	Resolve(ctx context.Context, date string) (string, error)
	Upsert(ctx context.Context, word, date string) (words.UpsertResult, error)
	List(ctx context.Context, today string) ([]words.DailyWord, error)
	Revisions(ctx context.Context, date string) ([]words.Revision, error)
}

// AttemptLedger is the attempt store.
type AttemptLedger interface {
	Record(ctx context.Context, sessionID, date, word string, similarity float64) (ledger.Attempt, error)
	Ranked(ctx context.Context, date string, scope ledger.Scope) ([]ledger.Attempt, error)
}

// Scorer returns a similarity in [0,1] and never fails.
type Scorer interface {
	Score(ctx context.Context, guess, secret string) float64
}

// Result is the outcome of a scored guess.
type Result struct {
	Word       string  `json:"word"`
	Similarity float64 `json:"similarity"`
	IsCorrect  bool    `json:"isCorrect"`
	Rank       int     `json:"rank"`
}

// HistoryItem is one attempt in a session's history.
type HistoryItem struct {
	Word       string    `json:"word"`
	Similarity float64   `json:"similarity"`
	Timestamp  time.Time `json:"timestamp"`
}

// DayAttempt is one attempt in the all-sessions view of a date.
type DayAttempt struct {
	Rank int `json:"rank"`
	HistoryItem
}

// DayReport summarizes every session's attempts on one date. Session ids
// are never included.
type DayReport struct {
	Date     string       `json:"date"`
	Total    int          `json:"total"`
	Sessions int          `json:"sessions"`
	Solved   int          `json:"solved"`
	Attempts []DayAttempt `json:"attempts"`
}

// Engine orchestrates a guess.
type Engine struct {
	registry WordRegistry
	ledger   AttemptLedger
	scorer   Scorer

	now      func() time.Time
	location *time.Location
	logf     func(format string, args ...any)
	metrics  *metrics.Metrics
	observe  func(sessionID string, r Result)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock that decides which day it is.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLocation sets the time zone whose calendar days the game follows.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		e.location = loc
	}
}

// WithLogger sets the log function.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(e *Engine) {
		e.logf = logf
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithObserver registers fn to receive every scored guess. It is called
// synchronously after the attempt is recorded and must not block.
func WithObserver(fn func(sessionID string, r Result)) Option {
	return func(e *Engine) {
		e.observe = fn
	}
}

// New returns an engine over the given stores and scorer.
func New(registry WordRegistry, attempts AttemptLedger, scorer Scorer, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		ledger:   attempts,
		scorer:   scorer,
		now:      time.Now,
		location: time.UTC,
		logf:     func(string, ...any) {},
		observe:  func(string, Result) {},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Today returns the current game date.
func (e *Engine) Today() string {
	return words.DateOf(e.now().In(e.location))
}

// CheckGuess scores word against today's secret for sessionID.
func (e *Engine) CheckGuess(ctx context.Context, word, sessionID string) (Result, error) {
	if sessionID == "" {
		e.metrics.ObserveGuess(metrics.GuessRejected)
		return Result{}, ErrNoSession
	}

	guess, err := words.Canonical(word)
	if err != nil {
		e.metrics.ObserveGuess(metrics.GuessRejected)
		return Result{}, err
	}

	date := e.Today()

	secret, err := e.registry.Resolve(ctx, date)
	if err != nil {
		e.metrics.ObserveGuess(metrics.GuessError)
		if errors.Is(err, words.ErrNoActiveWord) {
			e.logf("ENGINE: No word is set for %s", date)
		}
		return Result{}, e.resolveError(err)
	}

	similarity := e.scorer.Score(ctx, guess, secret)
	correct := guess == words.Normalize(secret)

	if _, err := e.ledger.Record(ctx, sessionID, date, guess, similarity); err != nil {
		e.metrics.ObserveGuess(metrics.GuessError)
		return Result{}, &PersistenceError{Op: "record attempt", Err: err}
	}

	ranked, err := e.ledger.Ranked(ctx, date, ledger.Scoped{SessionID: sessionID})
	if err != nil {
		e.metrics.ObserveGuess(metrics.GuessError)
		return Result{}, &PersistenceError{Op: "rank attempts", Err: err}
	}

	result := Result{
		Word:       guess,
		Similarity: similarity,
		IsCorrect:  correct,
		Rank:       ledger.Rank(ranked, guess),
	}

	if correct {
		e.metrics.ObserveGuess(metrics.GuessCorrect)
	} else {
		e.metrics.ObserveGuess(metrics.GuessIncorrect)
	}

	e.observe(sessionID, result)

	return result, nil
}

// ListHistory returns sessionID's attempts on date, best first. An empty date
// means today.
func (e *Engine) ListHistory(ctx context.Context, date, sessionID string) ([]HistoryItem, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	date, err := e.dateOrToday(date)
	if err != nil {
		return nil, err
	}

	ranked, err := e.ledger.Ranked(ctx, date, ledger.Scoped{SessionID: sessionID})
	if err != nil {
		return nil, &PersistenceError{Op: "list attempts", Err: err}
	}

	items := make([]HistoryItem, 0, len(ranked))
	for _, a := range ranked {
		items = append(items, HistoryItem{
			Word:       a.Word,
			Similarity: a.Similarity,
			Timestamp:  a.SubmittedAt,
		})
	}

	return items, nil
}

// DayAttempts returns every session's attempts on date, best first. It is
// for trusted views only. An empty date means today.
func (e *Engine) DayAttempts(ctx context.Context, date string) (DayReport, error) {
	date, err := e.dateOrToday(date)
	if err != nil {
		return DayReport{}, err
	}

	ranked, err := e.ledger.Ranked(ctx, date, ledger.Unscoped{})
	if err != nil {
		return DayReport{}, &PersistenceError{Op: "list day attempts", Err: err}
	}

	report := DayReport{
		Date:     date,
		Total:    len(ranked),
		Attempts: make([]DayAttempt, 0, len(ranked)),
	}

	sessions := make(map[string]struct{})
	solved := make(map[string]struct{})
	for i, a := range ranked {
		sessions[a.SessionID] = struct{}{}
		if a.Similarity == 1 {
			solved[a.SessionID] = struct{}{}
		}

		report.Attempts = append(report.Attempts, DayAttempt{
			Rank: i + 1,
			HistoryItem: HistoryItem{
				Word:       a.Word,
				Similarity: a.Similarity,
				Timestamp:  a.SubmittedAt,
			},
		})
	}
	report.Sessions = len(sessions)
	report.Solved = len(solved)

	return report, nil
}

// RevealAnswer returns the secret for date. Callers must have passed the
// reveal gate first. An empty date means today.
func (e *Engine) RevealAnswer(ctx context.Context, date string) (string, error) {
	date, err := e.dateOrToday(date)
	if err != nil {
		return "", err
	}

	word, err := e.registry.Resolve(ctx, date)
	if err != nil {
		return "", e.resolveError(err)
	}

	e.metrics.ObserveReveal()
	e.logf("ENGINE: Revealed answer for %s", date)

	return word, nil
}

// ActiveWord returns today's secret.
func (e *Engine) ActiveWord(ctx context.Context) (words.DailyWord, error) {
	date := e.Today()

	word, err := e.registry.Resolve(ctx, date)
	if err != nil {
		return words.DailyWord{}, e.resolveError(err)
	}

	return words.DailyWord{Date: date, Word: word, IsActive: true}, nil
}

// SetActiveWord sets the secret for date, or for today when date is empty.
// Overwriting a date that already has attempts is allowed and logged.
func (e *Engine) SetActiveWord(ctx context.Context, word, date string) (words.UpsertResult, error) {
	date, err := e.dateOrToday(date)
	if err != nil {
		return words.UpsertResult{}, err
	}

	res, err := e.registry.Upsert(ctx, word, date)
	if err != nil {
		if _, ok := IsValidation(err); ok {
			return words.UpsertResult{}, err
		}
		return words.UpsertResult{}, &PersistenceError{Op: "set daily word", Err: err}
	}

	switch {
	case res.Replaced && res.AttemptsAtChange > 0:
		e.logf("ENGINE: WARNING: Word for %s changed from %q to %q after %d attempts",
			date, res.PreviousWord, res.Word, res.AttemptsAtChange)
	case res.Replaced:
		e.logf("ENGINE: Word for %s changed from %q to %q", date, res.PreviousWord, res.Word)
	default:
		e.logf("ENGINE: Word for %s set to %q", date, res.Word)
	}

	return res, nil
}

// ListAllWords returns every daily word, most recent first.
func (e *Engine) ListAllWords(ctx context.Context) ([]words.DailyWord, error) {
	list, err := e.registry.List(ctx, e.Today())
	if err != nil {
		return nil, &PersistenceError{Op: "list daily words", Err: err}
	}

	return list, nil
}

// WordRevisions returns the audit trail of writes to date, oldest first.
func (e *Engine) WordRevisions(ctx context.Context, date string) ([]words.Revision, error) {
	date, err := e.dateOrToday(date)
	if err != nil {
		return nil, err
	}

	revs, err := e.registry.Revisions(ctx, date)
	if err != nil {
		return nil, &PersistenceError{Op: "list revisions", Err: err}
	}

	return revs, nil
}

func (e *Engine) resolveError(err error) error {
	if errors.Is(err, words.ErrNoActiveWord) {
		return err
	}

	return &PersistenceError{Op: "resolve daily word", Err: err}
}

func (e *Engine) dateOrToday(date string) (string, error) {
	if date == "" {
		return e.Today(), nil
	}

	if _, err := words.ParseDate(date); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidDate, err)
	}

	return date, nil
}
