/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

import (
	"errors"
	"fmt"

	"github.com/Seednode/yementuel/internal/words"
)

// ValidationError rejects a guess before any scoring or storage happens.
type ValidationError = words.ValidationError

var (
	// ErrNoSession is returned when a guess or history read has no session id.
	ErrNoSession = errors.New("session id is required")
	// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date")
)

// PersistenceError wraps a storage failure that ended a request.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a rejected word, returning it if so.
func IsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}

	return nil, false
}
