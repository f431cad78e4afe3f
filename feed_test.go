/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/yementuel/internal/engine"
	"github.com/Seednode/yementuel/internal/session"
)

type feedMessage struct {
	Type     string               `json:"type"`
	Date     string               `json:"date"`
	Attempts []engine.HistoryItem `json:"attempts"`
	Result   engine.Result        `json:"result"`
	Message  string               `json:"message"`
}

func dialFeed(t *testing.T, base string, jar http.CookieJar) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/api/words/ws"
	dialer := websocket.Dialer{Jar: jar, HandshakeTimeout: 5 * time.Second}

	conn, resp, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readFeed(t *testing.T, conn *websocket.Conn) feedMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg feedMessage
	require.NoError(t, conn.ReadJSON(&msg))

	return msg
}

func TestFeedRequiresSession(t *testing.T) {
	srv, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/words/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFeedBroadcastsSessionGuesses(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newClient(t)

	_, _, _ = guess(t, c, srv.URL, "포도")

	first := dialFeed(t, srv.URL, c.Jar)
	second := dialFeed(t, srv.URL, c.Jar)

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readFeed(t, conn)
		assert.Equal(t, "history", msg.Type)
		require.Len(t, msg.Attempts, 1)
		assert.Equal(t, "포도", msg.Attempts[0].Word)
	}

	// Guess over HTTP, observe on both tabs.
	_, _, _ = guess(t, c, srv.URL, "사과")
	for _, conn := range []*websocket.Conn{first, second} {
		msg := readFeed(t, conn)
		assert.Equal(t, "guess_result", msg.Type)
		assert.Equal(t, "사과", msg.Result.Word)
		assert.True(t, msg.Result.IsCorrect)
	}

	// Guess over the socket.
	require.NoError(t, first.WriteJSON(FeedClientMessage{Type: "guess", Word: "딸기"}))
	for _, conn := range []*websocket.Conn{first, second} {
		msg := readFeed(t, conn)
		assert.Equal(t, "guess_result", msg.Type)
		assert.Equal(t, "딸기", msg.Result.Word)
		assert.Positive(t, msg.Result.Rank)
	}

	// A rejected guess is reported only to the sender.
	require.NoError(t, second.WriteJSON(FeedClientMessage{Type: "guess", Word: "x"}))
	msg := readFeed(t, second)
	assert.Equal(t, "error", msg.Type)
	assert.NotEmpty(t, msg.Message)

	require.NoError(t, first.WriteJSON(FeedClientMessage{Type: "guess", Word: "수박"}))
	msg = readFeed(t, first)
	assert.Equal(t, "guess_result", msg.Type, "first tab never saw the rejection")
	assert.Equal(t, "수박", msg.Result.Word)
}

func TestFeedIsolatesSessions(t *testing.T) {
	srv, _ := newTestServer(t)
	alice, bob := newClient(t), newClient(t)

	// Give bob a session through the home page.
	resp, err := bob.Get(srv.URL + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()

	bobFeed := dialFeed(t, srv.URL, bob.Jar)
	assert.Equal(t, "history", readFeed(t, bobFeed).Type)

	_, _, _ = guess(t, alice, srv.URL, "포도")
	_, _, _ = guess(t, bob, srv.URL, "딸기")

	msg := readFeed(t, bobFeed)
	assert.Equal(t, "딸기", msg.Result.Word)
}

func TestFeedManagerReap(t *testing.T) {
	cfg := testConfig()
	fm := newFeedManager(cfg, time.Minute, nil)

	hub := fm.getHub(session.Issue())
	fm.Publish("unknown", engine.Result{Word: "사과"})

	assert.Zero(t, fm.Reap(time.Now()))
	assert.Equal(t, 1, fm.Reap(time.Now().Add(2*time.Minute)))

	select {
	case <-hub.done:
	case <-time.After(time.Second):
		t.Fatal("reaped hub was not closed")
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()
	assert.Empty(t, fm.hubs)
}

func TestFeedJoinReplacesClosedHub(t *testing.T) {
	cfg := testConfig()
	fm := newFeedManager(cfg, time.Minute, nil)
	t.Cleanup(fm.CloseAll)

	id := session.Issue()

	stale := fm.getHub(id)
	stale.closeAll()

	client := &feedClient{send: make(chan any, 1)}

	hub, ok := fm.join(id, client)
	require.True(t, ok)
	assert.NotSame(t, stale, hub)

	fm.mu.Lock()
	assert.Same(t, hub, fm.hubs[id])
	fm.mu.Unlock()

	assert.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return hub.clients[client]
	}, time.Second, 5*time.Millisecond)
}

func TestFeedLookupKeepsHubAlive(t *testing.T) {
	cfg := testConfig()
	fm := newFeedManager(cfg, time.Minute, nil)
	t.Cleanup(fm.CloseAll)

	id := session.Issue()
	hub := fm.getHub(id)

	hub.mu.Lock()
	hub.lastActive = time.Now().Add(-time.Hour)
	hub.mu.Unlock()

	assert.Same(t, hub, fm.getHub(id))
	assert.Zero(t, fm.Reap(time.Now()))
}

func TestFeedAcceptsExistingSession(t *testing.T) {
	srv, _ := newTestServer(t)
	id := session.Issue()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: session.CookieName, Value: id}})

	conn := dialFeed(t, srv.URL, jar)
	msg := readFeed(t, conn)
	assert.Equal(t, "history", msg.Type)
	assert.Empty(t, msg.Attempts)
}
