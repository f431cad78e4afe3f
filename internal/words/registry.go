/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package words holds the daily word registry: which secret word is active
// on which calendar date, how words are normalized, and how a word is picked
// for days nobody curated.
package words

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoActiveWord is returned when no word was ever set for a date.
var ErrNoActiveWord = errors.New("no active word")

// DailyWord is one registry row.
type DailyWord struct {
	Date      string    `json:"date"`
	Word      string    `json:"word"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	IsActive  bool      `json:"isActive"`
}

// UpsertResult describes what an upsert changed.
type UpsertResult struct {
	Date             string `json:"date"`
	Word             string `json:"word"`
	Replaced         bool   `json:"replaced"`
	PreviousWord     string `json:"previousWord,omitempty"`
	AttemptsAtChange int    `json:"attemptsAtChange"`
}

// Registry maps calendar dates to secret words.
type Registry struct {
	db  *sql.DB
	now func() time.Time
}

// NewRegistry returns a registry backed by db.
func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db, now: time.Now}
}

// Resolve returns the word for date, or an error wrapping ErrNoActiveWord.
func (r *Registry) Resolve(ctx context.Context, date string) (string, error) {
	var word string

	err := r.db.QueryRowContext(ctx, `SELECT word FROM daily_words WHERE date = ?`, date).Scan(&word)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("%w for %s", ErrNoActiveWord, date)
	case err != nil:
		return "", fmt.Errorf("resolve daily word: %w", err)
	}

	return word, nil
}

// Upsert sets the word for date, replacing any existing one. Concurrent
// upserts for the same date resolve as last writer wins. Every call leaves
// a revision row behind, including how many attempts the date already had.
func (r *Registry) Upsert(ctx context.Context, word, date string) (UpsertResult, error) {
	w, err := Canonical(word)
	if err != nil {
		return UpsertResult{}, err
	}
	if _, err := ParseDate(date); err != nil {
		return UpsertResult{}, err
	}

	now := r.now().UTC().Format(time.RFC3339Nano)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// The revision insert is the first statement so the write lock is taken
	// before the previous word and attempt count are read.
	var previous sql.NullString
	var attempts int
	err = tx.QueryRowContext(ctx, `INSERT INTO daily_word_revisions (date, previous_word, word, attempts_at_change, changed_at)
		SELECT ?, (SELECT word FROM daily_words WHERE date = ?), ?, (SELECT COUNT(*) FROM word_attempts WHERE date = ?), ?
		RETURNING previous_word, attempts_at_change`,
		date, date, w, date, now).Scan(&previous, &attempts)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("record revision: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO daily_words (word, date, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET word = excluded.word, updated_at = excluded.updated_at`,
		w, date, now, now)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upsert daily word: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("commit upsert: %w", err)
	}

	return UpsertResult{
		Date:             date,
		Word:             w,
		Replaced:         previous.Valid,
		PreviousWord:     previous.String,
		AttemptsAtChange: attempts,
	}, nil
}

// Seed inserts word for date only if the date has no word yet.
// It reports whether a row was written.
func (r *Registry) Seed(ctx context.Context, word, date string) (bool, error) {
	w, err := Canonical(word)
	if err != nil {
		return false, err
	}
	if _, err := ParseDate(date); err != nil {
		return false, err
	}

	now := r.now().UTC().Format(time.RFC3339Nano)

	res, err := r.db.ExecContext(ctx, `INSERT INTO daily_words (word, date, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO NOTHING`, w, date, now, now)
	if err != nil {
		return false, fmt.Errorf("seed daily word: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// List returns every daily word, most recent date first, with IsActive set
// on the entry matching today.
func (r *Registry) List(ctx context.Context, today string) ([]DailyWord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT date, word, created_at, updated_at FROM daily_words ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list daily words: %w", err)
	}
	defer rows.Close()

	var out []DailyWord
	for rows.Next() {
		var dw DailyWord
		var created, updated string
		if err := rows.Scan(&dw.Date, &dw.Word, &created, &updated); err != nil {
			return nil, err
		}
		dw.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		dw.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		dw.IsActive = dw.Date == today
		out = append(out, dw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// Revision is one audited write to the registry.
type Revision struct {
	Date             string    `json:"date"`
	PreviousWord     string    `json:"previousWord,omitempty"`
	Word             string    `json:"word"`
	AttemptsAtChange int       `json:"attemptsAtChange"`
	ChangedAt        time.Time `json:"changedAt"`
}

// Revisions returns the audit trail for date, oldest first.
func (r *Registry) Revisions(ctx context.Context, date string) ([]Revision, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT date, previous_word, word, attempts_at_change, changed_at
		FROM daily_word_revisions WHERE date = ? ORDER BY id ASC`, date)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var rev Revision
		var previous sql.NullString
		var changed string
		if err := rows.Scan(&rev.Date, &previous, &rev.Word, &rev.AttemptsAtChange, &changed); err != nil {
			return nil, err
		}
		rev.PreviousWord = previous.String
		rev.ChangedAt, _ = time.Parse(time.RFC3339Nano, changed)
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
