/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package words

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MinLength is the minimum number of syllables in a playable word.
const MinLength = 2

// Reason identifies why a word was rejected.
type Reason string

const (
	ReasonEmpty       Reason = "empty"
	ReasonTooShort    Reason = "too_short"
	ReasonWrongScript Reason = "wrong_script"
)

// ValidationError is returned for words that cannot be played or stored.
// It is user-correctable and never has side effects.
type ValidationError struct {
	Word   string
	Reason Reason
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonEmpty:
		return "word is empty"
	case ReasonTooShort:
		return fmt.Sprintf("word %q is shorter than %d characters", e.Word, MinLength)
	case ReasonWrongScript:
		return fmt.Sprintf("word %q must contain only Hangul syllables", e.Word)
	default:
		return fmt.Sprintf("invalid word %q", e.Word)
	}
}

// Normalize trims surrounding whitespace and composes the word to NFC, so
// input typed as separate jamo compares equal to precomposed syllables.
func Normalize(word string) string {
	return norm.NFC.String(strings.TrimSpace(word))
}

// Validate checks an already normalized word.
func Validate(word string) error {
	if word == "" {
		return &ValidationError{Word: word, Reason: ReasonEmpty}
	}

	for _, r := range word {
		if !isHangulSyllable(r) {
			return &ValidationError{Word: word, Reason: ReasonWrongScript}
		}
	}

	if utf8.RuneCountInString(word) < MinLength {
		return &ValidationError{Word: word, Reason: ReasonTooShort}
	}

	return nil
}

// Canonical normalizes and validates in one step.
func Canonical(word string) (string, error) {
	w := Normalize(word)
	if err := Validate(w); err != nil {
		return "", err
	}
	return w, nil
}

func isHangulSyllable(r rune) bool {
	return r >= 0xAC00 && r <= 0xD7A3
}
