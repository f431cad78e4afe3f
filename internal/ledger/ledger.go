/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package ledger is the append-only record of scored guesses.
//
// Rank is never stored. It is the position of an attempt in the ordering
// (similarity desc, submission time asc, insertion order asc) of the
// attempts visible in a Scope, and is recomputed on every read.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Seednode/yementuel/internal/store"
)

// ErrInvalidSimilarity is returned when a similarity outside [0,1] is recorded.
var ErrInvalidSimilarity = errors.New("similarity must be within [0,1]")

// Attempt is one scored guess by one session on one date.
type Attempt struct {
	ID          int64     `json:"-"`
	SessionID   string    `json:"-"`
	Date        string    `json:"date"`
	Word        string    `json:"word"`
	Similarity  float64   `json:"similarity"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Scope selects which attempts of a date a ranked read sees.
// It is either Scoped or Unscoped.
type Scope interface {
	isScope()
}

// Scoped limits a read to one session.
type Scoped struct {
	SessionID string
}

// Unscoped reads every session's attempts. Only trusted views use it.
type Unscoped struct{}

func (Scoped) isScope()   {}
func (Unscoped) isScope() {}

// Ledger stores attempts.
type Ledger struct {
	db  store.DBExecutor
	now func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock used to stamp attempts.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New returns a ledger writing to db.
func New(db store.DBExecutor, opts ...Option) *Ledger {
	l := &Ledger{db: db, now: time.Now}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Record appends an attempt. Repeated guesses of the same word are separate
// attempts.
func (l *Ledger) Record(ctx context.Context, sessionID, date, word string, similarity float64) (Attempt, error) {
	if math.IsNaN(similarity) || similarity < 0 || similarity > 1 {
		return Attempt{}, fmt.Errorf("%w: %v", ErrInvalidSimilarity, similarity)
	}

	submitted := l.now()

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO word_attempts (session_id, word, similarity, date, submitted_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, word, similarity, date, submitted.UnixNano())
	if err != nil {
		return Attempt{}, fmt.Errorf("record attempt: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Attempt{}, fmt.Errorf("record attempt: %w", err)
	}

	return Attempt{
		ID:          id,
		SessionID:   sessionID,
		Date:        date,
		Word:        word,
		Similarity:  similarity,
		SubmittedAt: submitted,
	}, nil
}

const rankedColumns = `SELECT id, session_id, word, similarity, date, submitted_at FROM word_attempts`

const rankedOrder = ` ORDER BY similarity DESC, submitted_at ASC, id ASC`

// Ranked returns the attempts of date visible in scope, best first.
func (l *Ledger) Ranked(ctx context.Context, date string, scope Scope) ([]Attempt, error) {
	var (
		query string
		args  []any
	)

	switch s := scope.(type) {
	case Scoped:
		query = rankedColumns + ` WHERE date = ? AND session_id = ?` + rankedOrder
		args = []any{date, s.SessionID}
	case Unscoped:
		query = rankedColumns + ` WHERE date = ?` + rankedOrder
		args = []any{date}
	default:
		return nil, fmt.Errorf("unsupported scope %T", scope)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var submitted int64
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Word, &a.Similarity, &a.Date, &submitted); err != nil {
			return nil, err
		}
		a.SubmittedAt = time.Unix(0, submitted)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// Rank returns the 1-based position of the best-ranked attempt for word in
// an already ranked slice, or 0 when word is absent.
func Rank(ranked []Attempt, word string) int {
	for i, a := range ranked {
		if a.Word == word {
			return i + 1
		}
	}
	return 0
}
