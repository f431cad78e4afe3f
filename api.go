/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/yementuel/internal/engine"
	"github.com/Seednode/yementuel/internal/i18n"
	"github.com/Seednode/yementuel/internal/session"
	"github.com/Seednode/yementuel/internal/words"
)

type checkRequest struct {
	Word string `json:"word"`
}

type revealRequest struct {
	ChallengeID string `json:"challengeId"`
	Answer      string `json:"answer"`
}

type historyResponse struct {
	Date     string               `json:"date"`
	Attempts []engine.HistoryItem `json:"attempts"`
}

type revealResponse struct {
	Date   string `json:"date"`
	Answer string `json:"answer"`
}

var reasonKeys = map[words.Reason]string{
	words.ReasonEmpty:       i18n.WordEmpty,
	words.ReasonTooShort:    i18n.WordTooShort,
	words.ReasonWrongScript: i18n.WordWrongScript,
}

// validationKey returns the message for a rejected word.
func validationKey(v *engine.ValidationError) string {
	if key, ok := reasonKeys[v.Reason]; ok {
		return key
	}
	return i18n.WordTooShort
}

// guessFailure maps an engine error to a status and message.
func guessFailure(err error, fallback string) (int, string) {
	if v, ok := engine.IsValidation(err); ok {
		return http.StatusBadRequest, validationKey(v)
	}

	switch {
	case errors.Is(err, engine.ErrInvalidDate), errors.Is(err, engine.ErrNoSession):
		return http.StatusBadRequest, i18n.RequestInvalid
	case errors.Is(err, words.ErrNoActiveWord):
		return http.StatusInternalServerError, i18n.NoActiveWord
	default:
		return http.StatusInternalServerError, fallback
	}
}

func serveCheck(cfg *Config, svc *services, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		var req checkRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(cfg, w, r, errs, http.StatusBadRequest, i18n.RequestInvalid)

			return
		}

		sessionID, _ := session.FromRequest(w, r)

		result, err := svc.engine.CheckGuess(r.Context(), req.Word, sessionID)
		if err != nil {
			status, key := guessFailure(err, i18n.GuessFailed)
			if status >= http.StatusInternalServerError {
				logError(err)
			}
			fail(cfg, w, r, errs, status, key)

			return
		}

		respond(cfg, w, r, errs, "Guess result", startTime, result)
	}
}

func serveList(cfg *Config, svc *services, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		sessionID, _ := session.FromRequest(w, r)

		date := r.URL.Query().Get("date")
		if date == "" {
			date = svc.engine.Today()
		}

		items, err := svc.engine.ListHistory(r.Context(), date, sessionID)
		if err != nil {
			status, key := guessFailure(err, i18n.ListFailed)
			if status >= http.StatusInternalServerError {
				logError(err)
			}
			fail(cfg, w, r, errs, status, key)

			return
		}

		respond(cfg, w, r, errs, "Word list", startTime, historyResponse{Date: date, Attempts: items})
	}
}

func serveChallenge(cfg *Config, svc *services, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		respond(cfg, w, r, errs, "Reveal challenge", startTime, svc.gate.Issue())
	}
}

func serveReveal(cfg *Config, svc *services, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		var req revealRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(cfg, w, r, errs, http.StatusBadRequest, i18n.RequestInvalid)

			return
		}

		if !svc.gate.Verify(req.ChallengeID, req.Answer) {
			logf(cfg, "GATE: Rejected reveal challenge from %s", realIP(r))
			fail(cfg, w, r, errs, http.StatusForbidden, i18n.RevealGate)

			return
		}

		date := svc.engine.Today()

		answer, err := svc.engine.RevealAnswer(r.Context(), date)
		if err != nil {
			status, key := guessFailure(err, i18n.RevealFailed)
			logError(err)
			fail(cfg, w, r, errs, status, key)

			return
		}

		respond(cfg, w, r, errs, "Answer", startTime, revealResponse{Date: date, Answer: answer})
	}
}

func registerWordHandlers(cfg *Config, svc *services, mux *httprouter.Router, errs chan<- error) {
	mux.POST(cfg.prefix+"/api/words/check", serveCheck(cfg, svc, errs))
	mux.GET(cfg.prefix+"/api/words/list", serveList(cfg, svc, errs))
	mux.GET(cfg.prefix+"/api/words/challenge", serveChallenge(cfg, svc, errs))
	mux.POST(cfg.prefix+"/api/words/reveal-answer", serveReveal(cfg, svc, errs))
	mux.GET(cfg.prefix+"/api/words/ws", serveFeed(cfg, svc.feeds))
}
