/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/yementuel/internal/admin"
	"github.com/Seednode/yementuel/internal/i18n"
	"github.com/Seednode/yementuel/internal/words"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type dailyWordRequest struct {
	Word string `json:"word"`
	Date string `json:"date,omitempty"`
}

type adminKey struct{}

// adminFrom returns the username requireAdmin stored on ctx.
func adminFrom(ctx context.Context) string {
	name, _ := ctx.Value(adminKey{}).(string)
	return name
}

func requireAdmin(cfg *Config, svc *services, errs chan<- error, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		token, ok := admin.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			fail(cfg, w, r, errs, http.StatusUnauthorized, i18n.AdminUnauthorized)

			return
		}

		claims, err := svc.auth.Verify(token)
		if err != nil {
			logf(cfg, "ADMIN: Rejected token from %s: %v", realIP(r), err)
			fail(cfg, w, r, errs, http.StatusUnauthorized, i18n.AdminInvalidToken)

			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), adminKey{}, claims.Username())), p)
	}
}

func serveLogin(cfg *Config, svc *services, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(cfg, w, r, errs, http.StatusBadRequest, i18n.RequestInvalid)

			return
		}

		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			fail(cfg, w, r, errs, http.StatusBadRequest, i18n.AdminMissingFields)

			return
		}

		token, err := svc.auth.Login(r.Context(), req.Username, req.Password)
		switch {
		case errors.Is(err, admin.ErrInvalidCredentials):
			logf(cfg, "ADMIN: Failed login for %q from %s", req.Username, realIP(r))
			fail(cfg, w, r, errs, http.StatusUnauthorized, i18n.AdminLoginFailed)

			return
		case err != nil:
			logError(err)
			fail(cfg, w, r, errs, http.StatusInternalServerError, i18n.AdminLoginFailed)

			return
		}

		logf(cfg, "ADMIN: %q logged in from %s", req.Username, realIP(r))

		respond(cfg, w, r, errs, "Admin token", startTime, loginResponse{Token: token, Username: req.Username})
	}
}

func serveDailyWord(cfg *Config, svc *services, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		active, err := svc.engine.ActiveWord(r.Context())
		switch {
		case errors.Is(err, words.ErrNoActiveWord):
			respond(cfg, w, r, errs, "Daily word", startTime, nil)

			return
		case err != nil:
			logError(err)
			fail(cfg, w, r, errs, http.StatusInternalServerError, i18n.AdminWordFailed)

			return
		}

		respond(cfg, w, r, errs, "Daily word", startTime, active)
	}
}

func serveSetDailyWord(cfg *Config, svc *services, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		var req dailyWordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(cfg, w, r, errs, http.StatusBadRequest, i18n.RequestInvalid)

			return
		}

		res, err := svc.engine.SetActiveWord(r.Context(), req.Word, req.Date)
		if err != nil {
			status, key := guessFailure(err, i18n.AdminWordFailed)
			if status >= http.StatusInternalServerError {
				logError(err)
			}
			fail(cfg, w, r, errs, status, key)

			return
		}

		logf(cfg, "ADMIN: %q set the word for %s", adminFrom(r.Context()), res.Date)

		respond(cfg, w, r, errs, "Daily word update", startTime, res)
	}
}

func serveDailyWords(cfg *Config, svc *services, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		list, err := svc.engine.ListAllWords(r.Context())
		if err != nil {
			logError(err)
			fail(cfg, w, r, errs, http.StatusInternalServerError, i18n.ListFailed)

			return
		}
		if list == nil {
			list = []words.DailyWord{}
		}

		respond(cfg, w, r, errs, "Daily words", startTime, list)
	}
}

func serveRevisions(cfg *Config, svc *services, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		revs, err := svc.engine.WordRevisions(r.Context(), r.URL.Query().Get("date"))
		if err != nil {
			status, key := guessFailure(err, i18n.ListFailed)
			if status >= http.StatusInternalServerError {
				logError(err)
			}
			fail(cfg, w, r, errs, status, key)

			return
		}
		if revs == nil {
			revs = []words.Revision{}
		}

		respond(cfg, w, r, errs, "Word revisions", startTime, revs)
	}
}

func serveDayAttempts(cfg *Config, svc *services, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		report, err := svc.engine.DayAttempts(r.Context(), r.URL.Query().Get("date"))
		if err != nil {
			status, key := guessFailure(err, i18n.ListFailed)
			if status >= http.StatusInternalServerError {
				logError(err)
			}
			fail(cfg, w, r, errs, status, key)

			return
		}

		respond(cfg, w, r, errs, "Day attempts", startTime, report)
	}
}

func registerAdminHandlers(cfg *Config, svc *services, mux *httprouter.Router, errs chan<- error) {
	mux.POST(cfg.prefix+"/api/admin/login", serveLogin(cfg, svc, errs))
	mux.GET(cfg.prefix+"/api/admin/daily-word", requireAdmin(cfg, svc, errs, serveDailyWord(cfg, svc, errs)))
	mux.PUT(cfg.prefix+"/api/admin/daily-word", requireAdmin(cfg, svc, errs, serveSetDailyWord(cfg, svc, errs)))
	mux.GET(cfg.prefix+"/api/admin/daily-words", requireAdmin(cfg, svc, errs, serveDailyWords(cfg, svc, errs)))
	mux.GET(cfg.prefix+"/api/admin/revisions", requireAdmin(cfg, svc, errs, serveRevisions(cfg, svc, errs)))
	mux.GET(cfg.prefix+"/api/admin/attempts", requireAdmin(cfg, svc, errs, serveDayAttempts(cfg, svc, errs)))
}
