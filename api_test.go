/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/yementuel/internal/gate"
	"github.com/Seednode/yementuel/internal/session"
	"github.com/Seednode/yementuel/internal/store"
)

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func testConfig() *Config {
	return &Config{
		adminPassword: "hunter2",
		adminUser:     "admin",
		bind:          "127.0.0.1",
		challengeTTL:  gate.DefaultTTL,
		db:            store.Memory,
		defaultWord:   "사과",
		feedTimeout:   time.Minute,
		jwtSecret:     "test-secret",
		metrics:       true,
		nlpRetries:    2,
		nlpTimeout:    time.Second,
		port:          8080,
		probeInterval: time.Second,
		timezone:      "UTC",
	}
}

func newTestServer(t *testing.T, mutate ...func(*Config)) (*httptest.Server, *services) {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(cfg)
	}
	require.NoError(t, cfg.validate())

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc, err := newServices(ctx, cfg, db)
	require.NoError(t, err)

	errs := make(chan error, 64)
	go drainErrors(errs)

	srv := httptest.NewServer(newRouter(cfg, svc, errs))
	t.Cleanup(func() {
		svc.feeds.CloseAll()
		srv.Close()
		close(errs)
	})

	return srv, svc
}

func newClient(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func doJSON(t *testing.T, c *http.Client, method, url string, body any, header http.Header) (int, testEnvelope) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			rd = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))

	var env testEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))

	return resp.StatusCode, env
}

type testResult struct {
	Word       string  `json:"word"`
	Similarity float64 `json:"similarity"`
	IsCorrect  bool    `json:"isCorrect"`
	Rank       int     `json:"rank"`
}

func guess(t *testing.T, c *http.Client, base, word string) (int, testEnvelope, testResult) {
	t.Helper()

	status, env := doJSON(t, c, http.MethodPost, base+"/api/words/check", map[string]string{"word": word}, nil)

	var res testResult
	if env.Success {
		require.NoError(t, json.Unmarshal(env.Data, &res))
	}

	return status, env, res
}

func TestHomeIssuesSession(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newClient(t)

	resp, err := c.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "connect-src")

	var found bool
	for _, cookie := range resp.Cookies() {
		if cookie.Name == session.CookieName {
			found = true
			_, ok := session.Resolve(cookie.Value)
			assert.True(t, ok)
		}
	}
	assert.True(t, found)
}

func TestGuessAndHistory(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newClient(t)

	status, env, first := guess(t, c, srv.URL, "바나나")
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, "바나나", first.Word)
	assert.False(t, first.IsCorrect)
	assert.Equal(t, 1, first.Rank)
	assert.GreaterOrEqual(t, first.Similarity, 0.0)
	assert.Less(t, first.Similarity, 0.95)

	status, _, second := guess(t, c, srv.URL, "사과")
	require.Equal(t, http.StatusOK, status)
	assert.True(t, second.IsCorrect)
	assert.Equal(t, 1.0, second.Similarity)
	assert.Equal(t, 1, second.Rank)

	status, env = doJSON(t, c, http.MethodGet, srv.URL+"/api/words/list", nil, nil)
	require.Equal(t, http.StatusOK, status)

	var history struct {
		Date     string `json:"date"`
		Attempts []struct {
			Word       string  `json:"word"`
			Similarity float64 `json:"similarity"`
		} `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history.Attempts, 2)
	assert.Equal(t, "사과", history.Attempts[0].Word)
	assert.Equal(t, "바나나", history.Attempts[1].Word)
}

func TestSessionsDoNotShareHistory(t *testing.T) {
	srv, _ := newTestServer(t)
	alice, bob := newClient(t), newClient(t)

	_, _, res := guess(t, alice, srv.URL, "포도")
	assert.Equal(t, 1, res.Rank)
	_, _, res = guess(t, bob, srv.URL, "포도")
	assert.Equal(t, 1, res.Rank)

	for _, c := range []*http.Client{alice, bob} {
		_, env := doJSON(t, c, http.MethodGet, srv.URL+"/api/words/list", nil, nil)

		var history struct {
			Attempts []json.RawMessage `json:"attempts"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &history))
		assert.Len(t, history.Attempts, 1)
	}
}

func TestSessionHeaderCarrier(t *testing.T) {
	srv, _ := newTestServer(t)
	id := session.Issue()
	header := http.Header{session.HeaderName: {id}}

	status, _ := doJSON(t, http.DefaultClient, http.MethodPost, srv.URL+"/api/words/check", map[string]string{"word": "포도"}, header)
	require.Equal(t, http.StatusOK, status)

	_, env := doJSON(t, http.DefaultClient, http.MethodGet, srv.URL+"/api/words/list", nil, header)

	var history struct {
		Attempts []json.RawMessage `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history.Attempts, 1)
}

func TestGuessValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newClient(t)

	tests := []struct {
		name   string
		body   any
		lang   string
		status int
		want   string
	}{
		{name: "too short", body: map[string]string{"word": "사"}, status: http.StatusBadRequest, want: "2글자 이상의 한글 단어를 입력해주세요."},
		{name: "wrong script", body: map[string]string{"word": "apple"}, status: http.StatusBadRequest, want: "한글 단어만 입력할 수 있습니다."},
		{name: "english", body: map[string]string{"word": ""}, lang: "en-US", status: http.StatusBadRequest, want: "Please enter a word."},
		{name: "malformed", body: `{"word":`, status: http.StatusBadRequest, want: "잘못된 요청입니다."},
		{name: "trailing data", body: `{"word":"사과"}{}`, status: http.StatusBadRequest, want: "잘못된 요청입니다."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.lang != "" {
				header.Set("Accept-Language", tt.lang)
			}

			status, env := doJSON(t, c, http.MethodPost, srv.URL+"/api/words/check", tt.body, header)
			assert.Equal(t, tt.status, status)
			assert.False(t, env.Success)
			assert.Equal(t, tt.want, env.Error)
		})
	}

	_, env := doJSON(t, c, http.MethodGet, srv.URL+"/api/words/list", nil, nil)

	var history struct {
		Attempts []json.RawMessage `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Empty(t, history.Attempts)
}

func TestRevealFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newClient(t)

	challenge := func() gate.Challenge {
		status, env := doJSON(t, c, http.MethodGet, srv.URL+"/api/words/challenge", nil, nil)
		require.Equal(t, http.StatusOK, status)

		var ch gate.Challenge
		require.NoError(t, json.Unmarshal(env.Data, &ch))
		require.Len(t, ch.Code, gate.CodeLength)

		return ch
	}

	reveal := func(id, answer string) (int, testEnvelope) {
		return doJSON(t, c, http.MethodPost, srv.URL+"/api/words/reveal-answer",
			map[string]string{"challengeId": id, "answer": answer}, nil)
	}

	ch := challenge()
	status, env := reveal(ch.ID, "wrong!")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "보안 문자가 올바르지 않거나 만료되었습니다.", env.Error)

	status, _ = reveal(ch.ID, ch.Code)
	assert.Equal(t, http.StatusForbidden, status, "a challenge is consumed by any attempt")

	ch = challenge()
	status, env = reveal(ch.ID, strings.ToLower(ch.Code))
	require.Equal(t, http.StatusOK, status)

	var answer struct {
		Answer string `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &answer))
	assert.Equal(t, "사과", answer.Answer)
}

func login(t *testing.T, base, user, password string) (int, string) {
	t.Helper()

	status, env := doJSON(t, http.DefaultClient, http.MethodPost, base+"/api/admin/login",
		map[string]string{"username": user, "password": password}, nil)

	var body struct {
		Token string `json:"token"`
	}
	if env.Success {
		require.NoError(t, json.Unmarshal(env.Data, &body))
	}

	return status, body.Token
}

func TestAdminFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newClient(t)

	status, _ := doJSON(t, c, http.MethodGet, srv.URL+"/api/admin/daily-word", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, c, http.MethodGet, srv.URL+"/api/admin/daily-word", nil,
		http.Header{"Authorization": {"Bearer not-a-token"}})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = login(t, srv.URL, "admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = login(t, srv.URL, "", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, token := login(t, srv.URL, "admin", "hunter2")
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, token)

	auth := http.Header{"Authorization": {"Bearer " + token}}

	status, env := doJSON(t, c, http.MethodGet, srv.URL+"/api/admin/daily-word", nil, auth)
	require.Equal(t, http.StatusOK, status)

	var active struct {
		Word     string `json:"word"`
		IsActive bool   `json:"isActive"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &active))
	assert.Equal(t, "사과", active.Word)
	assert.True(t, active.IsActive)

	_, _, _ = guess(t, c, srv.URL, "포도")

	status, env = doJSON(t, c, http.MethodPut, srv.URL+"/api/admin/daily-word", map[string]string{"word": "딸기"}, auth)
	require.Equal(t, http.StatusOK, status, env.Error)

	var upsert struct {
		Replaced         bool   `json:"replaced"`
		PreviousWord     string `json:"previousWord"`
		AttemptsAtChange int    `json:"attemptsAtChange"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &upsert))
	assert.True(t, upsert.Replaced)
	assert.Equal(t, "사과", upsert.PreviousWord)
	assert.Equal(t, 1, upsert.AttemptsAtChange)

	status, _ = doJSON(t, c, http.MethodPut, srv.URL+"/api/admin/daily-word", map[string]string{"word": "apple"}, auth)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, c, http.MethodPut, srv.URL+"/api/admin/daily-word", map[string]string{"word": "수박", "date": "someday"}, auth)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, c, http.MethodPut, srv.URL+"/api/admin/daily-word", map[string]string{"word": "수박", "date": "2099-01-01"}, auth)
	require.Equal(t, http.StatusOK, status)

	status, env = doJSON(t, c, http.MethodGet, srv.URL+"/api/admin/daily-words", nil, auth)
	require.Equal(t, http.StatusOK, status)

	var list []struct {
		Date     string `json:"date"`
		Word     string `json:"word"`
		IsActive bool   `json:"isActive"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "2099-01-01", list[0].Date)
	assert.False(t, list[0].IsActive)
	assert.Equal(t, "딸기", list[1].Word)
	assert.True(t, list[1].IsActive)

	status, env = doJSON(t, c, http.MethodGet, srv.URL+"/api/admin/revisions", nil, auth)
	require.Equal(t, http.StatusOK, status)

	var revs []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &revs))
	assert.Len(t, revs, 1)
}

func TestAdminDayAttempts(t *testing.T) {
	srv, _ := newTestServer(t)

	first, second := newClient(t), newClient(t)
	_, _, _ = guess(t, first, srv.URL, "포도")
	_, _, _ = guess(t, first, srv.URL, "딸기")
	_, _, _ = guess(t, second, srv.URL, "사과")

	status, _ := doJSON(t, first, http.MethodGet, srv.URL+"/api/admin/attempts", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, token := login(t, srv.URL, "admin", "hunter2")
	require.Equal(t, http.StatusOK, status)
	auth := http.Header{"Authorization": {"Bearer " + token}}

	status, env := doJSON(t, first, http.MethodGet, srv.URL+"/api/admin/attempts", nil, auth)
	require.Equal(t, http.StatusOK, status, env.Error)

	var report struct {
		Total    int `json:"total"`
		Sessions int `json:"sessions"`
		Solved   int `json:"solved"`
		Attempts []struct {
			Rank      int     `json:"rank"`
			Word      string  `json:"word"`
			Sim       float64 `json:"similarity"`
			SessionID string  `json:"sessionId"`
		} `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Sessions)
	assert.Equal(t, 1, report.Solved)
	require.Len(t, report.Attempts, 3)
	assert.Equal(t, "사과", report.Attempts[0].Word)
	assert.Equal(t, 1, report.Attempts[0].Rank)
	for _, a := range report.Attempts {
		assert.Empty(t, a.SessionID)
	}
	assert.NotContains(t, string(env.Data), "sessionId")

	status, _ = doJSON(t, first, http.MethodGet, srv.URL+"/api/admin/attempts?date=someday", nil, auth)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestOpsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newClient(t)

	_, _, _ = guess(t, c, srv.URL, "포도")

	for path, want := range map[string]string{
		"/healthz":    "similarity: fallback",
		"/version":    "yementuel v" + releaseVersion,
		"/robots.txt": "GPTBot",
		"/metrics":    `yementuel_guesses_total{outcome="incorrect"} 1`,
	} {
		resp, err := c.Get(srv.URL + path)
		require.NoError(t, err)

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, string(body), want, path)
	}
}

func TestQRCode(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/qr")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG\r\n\x1a\n")))
}

func TestAssets(t *testing.T) {
	srv, _ := newTestServer(t)

	for path, ctype := range map[string]string{
		"/assets/app.js":             "text/javascript; charset=utf-8",
		"/assets/app.css":            "text/css; charset=utf-8",
		"/favicons/favicon.svg":      "image/svg+xml",
		"/favicons/site.webmanifest": "application/manifest+json",
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, ctype, resp.Header.Get("Content-Type"), path)
	}

	resp, err := http.Get(srv.URL + "/assets/missing.js")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPrefixedRoutes(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *Config) { cfg.prefix = "/game/" })
	c := newClient(t)

	status, _, res := guess(t, c, srv.URL+"/game", "사과")
	require.Equal(t, http.StatusOK, status)
	assert.True(t, res.IsCorrect)

	resp, err := c.Get(srv.URL + "/api/words/list")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
