/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Live feed
//
// Every session gets a hub that fans its scored guesses out to all of the
// session's open tabs. Guesses submitted over HTTP or over the websocket
// itself are published the same way.
//
// - Hubs are keyed by session id, created on first connection
// - A new connection first receives the session's history for today
// - Clients may submit {"type":"guess","word":"..."}; errors go only to
//   the submitting client
// - Slow clients are dropped instead of stalling the hub
// - Idle hubs are reaped after --feed-timeout

package main

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/text/language"

	"github.com/Seednode/yementuel/internal/engine"
	"github.com/Seednode/yementuel/internal/i18n"
	"github.com/Seednode/yementuel/internal/metrics"
	"github.com/Seednode/yementuel/internal/session"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = feedPongWait * 9 / 10
	feedMaxMessage = 1024
)

// FeedClientMessage is sent by clients.
type FeedClientMessage struct {
	Type string `json:"type"`           // "guess"
	Word string `json:"word,omitempty"` // guess
}

// FeedHistoryMessage is sent once on connect.
type FeedHistoryMessage struct {
	Type     string               `json:"type"` // "history"
	Date     string               `json:"date"`
	Attempts []engine.HistoryItem `json:"attempts"`
}

// FeedGuessMessage is broadcast for every scored guess of the session.
type FeedGuessMessage struct {
	Type   string        `json:"type"` // "guess_result"
	Result engine.Result `json:"result"`
}

// FeedErrorMessage is sent to a single client whose guess failed.
type FeedErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type feedClient struct {
	conn *websocket.Conn
	send chan any
	lang language.Tag
}

type directMessage struct {
	client *feedClient
	msg    any
}

// Hub fans messages out to one session's connections.
type Hub struct {
	sessionID string
	clients   map[*feedClient]bool

	register  chan *feedClient
	unreg     chan *feedClient
	broadcast chan any
	direct    chan directMessage
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.RWMutex
	lastActive time.Time

	metrics *metrics.Metrics
}

func newHub(sessionID string, m *metrics.Metrics) *Hub {
	return &Hub{
		sessionID:  sessionID,
		clients:    make(map[*feedClient]bool),
		register:   make(chan *feedClient),
		unreg:      make(chan *feedClient),
		broadcast:  make(chan any, 16),
		direct:     make(chan directMessage),
		done:       make(chan struct{}),
		lastActive: time.Now(),
		metrics:    m,
	}
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

func (h *Hub) idleSince() (time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive, len(h.clients) == 0
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.lastActive = time.Now()
			h.mu.Unlock()

			h.metrics.FeedConnected(1)
			logf(cfg, "FEED: Client joined session feed (%d connected)", len(h.clients))

		case c := <-h.unreg:
			h.drop(c)

		case d := <-h.direct:
			h.mu.RLock()
			_, ok := h.clients[d.client]
			if ok {
				select {
				case d.client.send <- d.msg:
				default:
				}
			}
			h.mu.RUnlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*feedClient
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()

			for _, c := range slow {
				h.drop(c)
			}
			h.touch()

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
				h.metrics.FeedConnected(-1)
			}
			h.mu.Unlock()

			return
		}
	}
}

func (h *Hub) drop(c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.metrics.FeedConnected(-1)
	}
	h.lastActive = time.Now()
}

func (h *Hub) closeAll() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// FeedManager holds a hub per session.
type FeedManager struct {
	cfg         *Config
	engine      *engine.Engine
	metrics     *metrics.Metrics
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
}

func newFeedManager(cfg *Config, idleTimeout time.Duration, m *metrics.Metrics) *FeedManager {
	return &FeedManager{
		cfg:         cfg,
		metrics:     m,
		hubs:        make(map[string]*Hub),
		idleTimeout: idleTimeout,
	}
}

func (fm *FeedManager) getHub(sessionID string) *Hub {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if hub, ok := fm.hubs[sessionID]; ok {
		hub.touch()
		return hub
	}

	hub := newHub(sessionID, fm.metrics)
	fm.hubs[sessionID] = hub
	go hub.run(fm.cfg)

	return hub
}

// forget removes hub from the map if it is still the session's hub.
func (fm *FeedManager) forget(sessionID string, hub *Hub) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.hubs[sessionID] == hub {
		delete(fm.hubs, sessionID)
	}
}

// join registers c with the session's hub. A hub closed between lookup and
// registration is replaced once before giving up.
func (fm *FeedManager) join(sessionID string, c *feedClient) (*Hub, bool) {
	for range 2 {
		hub := fm.getHub(sessionID)

		select {
		case hub.register <- c:
			return hub, true
		case <-hub.done:
			fm.forget(sessionID, hub)
		}
	}

	return nil, false
}

// Publish hands a scored guess to the session's hub, if anyone is listening.
// It never blocks.
func (fm *FeedManager) Publish(sessionID string, result engine.Result) {
	fm.mu.Lock()
	hub, ok := fm.hubs[sessionID]
	fm.mu.Unlock()

	if !ok {
		return
	}

	select {
	case hub.broadcast <- FeedGuessMessage{Type: "guess_result", Result: result}:
	default:
		logf(fm.cfg, "FEED: Dropped update for a busy session feed")
	}
}

// Reap closes hubs without clients that have been idle longer than the
// idle timeout, returning how many were closed.
func (fm *FeedManager) Reap(now time.Time) int {
	cutoff := now.Add(-fm.idleTimeout)

	fm.mu.Lock()
	defer fm.mu.Unlock()

	reaped := 0
	for id, hub := range fm.hubs {
		last, empty := hub.idleSince()
		if empty && last.Before(cutoff) {
			delete(fm.hubs, id)
			hub.closeAll()
			reaped++
		}
	}

	return reaped
}

// Run reaps idle hubs until ctx is done.
func (fm *FeedManager) Run(ctx context.Context) {
	if fm.idleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(fm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := fm.Reap(now); n > 0 {
				logf(fm.cfg, "FEED: Reaped %d idle session feeds", n)
			}
		}
	}
}

// CloseAll closes every hub.
func (fm *FeedManager) CloseAll() {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	for id, hub := range fm.hubs {
		delete(fm.hubs, id)
		hub.closeAll()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func serveFeed(cfg *Config, fm *FeedManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sessionID, ok := session.Read(r)
		if !ok {
			http.Error(w, "missing session", http.StatusUnauthorized)
			return
		}

		date := fm.engine.Today()
		history, err := fm.engine.ListHistory(r.Context(), date, sessionID)
		if err != nil {
			logError(err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &feedClient{
			conn: conn,
			send: make(chan any, 8),
			lang: i18n.FromRequest(r),
		}
		client.send <- FeedHistoryMessage{Type: "history", Date: date, Attempts: history}

		hub, ok := fm.join(sessionID, client)
		if !ok {
			logf(cfg, "FEED: Could not join session feed for %s", realIP(r))
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(fm, hub)
	}
}

func (c *feedClient) readPump(fm *FeedManager, h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(feedMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})

	for {
		var msg FeedClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "guess":
			// The result reaches this client through the hub broadcast.
			_, err := fm.engine.CheckGuess(context.Background(), msg.Word, h.sessionID)
			if err != nil {
				_, key := guessFailure(err, i18n.GuessFailed)
				msg := FeedErrorMessage{Type: "error", Message: i18n.Message(c.lang, key)}

				select {
				case h.direct <- directMessage{client: c, msg: msg}:
				case <-h.done:
					return
				}
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
