/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package words

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// DefaultPool is used when no word list is configured.
var DefaultPool = []string{
	"사과", "바나나", "딸기", "포도", "복숭아", "수박", "메론", "키위",
	"고양이", "강아지", "토끼", "사자", "호랑이", "코끼리", "기린",
	"학교", "회사", "병원", "공원", "도서관", "카페", "식당",
	"사랑", "행복", "기쁨", "슬픔", "두려움", "평화",
	"컴퓨터", "핸드폰", "연필", "가방", "신발", "모자",
	"음식", "우유", "커피", "주스", "친구", "가족", "부모",
	"형제", "자매", "선생님", "학생", "의사",
	"여름", "가을", "겨울", "바람", "구름",
}

// ErrEmptyPool is returned when a word list contains no playable words.
var ErrEmptyPool = errors.New("word pool is empty")

// Rotator makes sure every calendar date has a word, picking one from a pool
// for dates nobody curated.
type Rotator struct {
	registry *Registry

	mu   sync.RWMutex
	pool []string

	now  func() time.Time
	logf func(format string, args ...any)
}

// RotatorOption configures a Rotator.
type RotatorOption func(*Rotator)

// WithRotatorClock sets the clock whose location decides where midnight is.
func WithRotatorClock(now func() time.Time) RotatorOption {
	return func(r *Rotator) {
		r.now = now
	}
}

// NewRotator returns a rotator over pool. The pool must already be canonical;
// LoadPool produces one.
func NewRotator(registry *Registry, pool []string, logf func(format string, args ...any), opts ...RotatorOption) (*Rotator, error) {
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}

	r := &Rotator{
		registry: registry,
		pool:     pool,
		now:      time.Now,
		logf:     logf,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// SetPool replaces the pool. Dates already seeded keep their word.
func (r *Rotator) SetPool(pool []string) error {
	if len(pool) == 0 {
		return ErrEmptyPool
	}

	r.mu.Lock()
	r.pool = pool
	r.mu.Unlock()

	return nil
}

// WordFor deterministically picks the pool word for date.
func (r *Rotator) WordFor(date string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(date))

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.pool[h.Sum32()%uint32(len(r.pool))]
}

// EnsureDate seeds the pool word for date when the date has none.
func (r *Rotator) EnsureDate(ctx context.Context, date string) (bool, error) {
	word := r.WordFor(date)

	seeded, err := r.registry.Seed(ctx, word, date)
	if err != nil {
		return false, err
	}
	if seeded {
		r.logf("WORDS: Seeded word for %s from pool", date)
	}

	return seeded, nil
}

// Run seeds today's word, then wakes at every local midnight to seed the
// next day, until ctx is done.
func (r *Rotator) Run(ctx context.Context) {
	for {
		now := r.now()

		if _, err := r.EnsureDate(ctx, DateOf(now)); err != nil && ctx.Err() == nil {
			r.logf("WORDS: Failed to seed word for %s: %v", DateOf(now), err)
		}

		timer := time.NewTimer(time.Until(nextMidnight(now)) + time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// LoadPool reads one word per line from path. Blank lines and lines starting
// with # are skipped; every other line must be a playable word.
func LoadPool(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()

	return ReadPool(f)
}

// ReadPool parses a word list, dropping duplicates.
func ReadPool(rd io.Reader) ([]string, error) {
	seen := make(map[string]bool)

	var pool []string

	sc := bufio.NewScanner(rd)
	line := 0
	for sc.Scan() {
		line++

		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		w, err := Canonical(text)
		if err != nil {
			return nil, fmt.Errorf("word list line %d: %w", line, err)
		}

		if seen[w] {
			continue
		}
		seen[w] = true
		pool = append(pool, w)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read word list: %w", err)
	}

	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}

	return pool, nil
}
