/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Seednode/yementuel/internal/i18n"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 4 << 10

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, body envelope) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	return w.Write(data)
}

// respond writes a successful envelope around data and logs the exchange.
func respond(cfg *Config, w http.ResponseWriter, r *http.Request, errs chan<- error, what string, startTime time.Time, data any) {
	written, err := writeJSON(cfg, w, http.StatusOK, envelope{Success: true, Data: data})
	if err != nil {
		errs <- err

		return
	}

	logf(cfg, "SERVE: %s (%s) to %s in %s",
		what,
		humanReadableSize(int64(written)),
		realIP(r),
		time.Since(startTime).Round(time.Microsecond),
	)
}

// fail writes a localized error envelope.
func fail(cfg *Config, w http.ResponseWriter, r *http.Request, errs chan<- error, status int, key string) {
	msg := i18n.Message(i18n.FromRequest(r), key)

	if _, err := writeJSON(cfg, w, status, envelope{Error: msg}); err != nil {
		errs <- err
	}
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("decode request: trailing data")
	}

	return nil
}
