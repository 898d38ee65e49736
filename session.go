/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// memorylane sessions
//
// Each session is a hub keyed by a random game ID and holds one round
// controller. Every browser connected to the same ID sees the same photo,
// slider and score, and any of them may move the slider, guess or skip.
//
// Features:
// - WebSockets per game ID: /play/:gameid and /play/:gameid/ws
// - One goroutine per hub drives the controller; timer expiries are posted
//   back into that goroutine, so transitions never overlap
// - Players identified by cookie (playerID)
// - Sessions auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current session, backed by go-qrcode

package main

import (
	"bytes"
	"crypto/rand"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/xid"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type ClientMessage struct {
	Type  string `json:"type"`            // "select", "guess", "skip"
	Index *int   `json:"index,omitempty"` // select / guess
}

// SlotsMessage is sent once on connect so the client can label the slider.
type SlotsMessage struct {
	Type         string      `json:"type"` // "slots"
	Slots        []MonthSlot `json:"slots"`
	DefaultIndex int         `json:"default_index"`
}

// StateMessage is broadcast after every transition.
type StateMessage struct {
	Type        string `json:"type"` // "state"
	Game        string `json:"game"`
	Phase       Phase  `json:"phase"`
	Score       int    `json:"score"`
	SliderIndex int    `json:"slider_index"`
	Selected    string `json:"selected"`
	Image       string `json:"image,omitempty"`
	Reveal      string `json:"reveal,omitempty"` // correct month, only while wrong
}

// SimpleMessage is for generic notifications ("celebrate", "no_content").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

type command struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id        string
	clients   map[*Client]bool
	game      *Controller
	photoBase string

	register chan *Client
	unreg    chan *Client
	commands chan command
	timers   chan func()
	done     chan struct{}

	mu        sync.RWMutex
	closeOnce sync.Once

	createdAt  time.Time
	lastActive time.Time
}

func newHub(cfg *Config, gameID string, records []MemoryRecord) (*Hub, error) {
	rng, err := newShuffler(cfg.seed, gameID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	h := &Hub{
		id:         gameID,
		clients:    make(map[*Client]bool),
		photoBase:  cfg.prefix + "/photos/",
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		commands:   make(chan command),
		timers:     make(chan func()),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}

	h.game = newController(rng, h, h, cfg.correctDelay, cfg.wrongDelay)

	if err := h.game.Initialize(records); err != nil {
		if !errors.Is(err, ErrNoContent) {
			return nil, err
		}
		logf(cfg, "GAMES: Session %s has no memories to play", gameID)
	}

	return h, nil
}

// AfterFunc hands f back to the hub goroutine once d has elapsed.
func (h *Hub) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, func() {
		select {
		case h.timers <- f:
		case <-h.done:
		}
	})
}

// Celebrate is only called from within the hub goroutine, with h.mu held.
func (h *Hub) Celebrate() {
	h.broadcastLocked(SimpleMessage{Type: "celebrate"})
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			select {
			case <-h.done:
				// reaped while this client was connecting
				h.mu.Unlock()
				close(c.send)
				_ = c.conn.Close()
				return
			default:
			}

			h.lastActive = time.Now()
			h.clients[c] = true

			c.send <- SlotsMessage{
				Type:         "slots",
				Slots:        slots,
				DefaultIndex: defaultSlotIdx,
			}
			h.sendStateLocked(c)
			h.mu.Unlock()

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case cmd := <-h.commands:
			h.handleCommand(cfg, cmd)

		case f := <-h.timers:
			h.mu.Lock()
			f()
			h.broadcastStateLocked()
			h.mu.Unlock()

		case <-h.done:
			return
		}
	}
}

func (h *Hub) handleCommand(cfg *Config, cmd command) {
	msg := cmd.msg

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	switch msg.Type {
	case "select":
		if msg.Index == nil {
			return
		}
		h.game.SelectSlot(*msg.Index)

	case "guess":
		if msg.Index != nil {
			h.game.SelectSlot(*msg.Index)
		}

		selected := h.game.Selected()
		if !h.game.SubmitGuess() {
			break
		}

		if h.game.State().Phase == PhaseCorrect {
			logf(cfg, "GAMES: %s correctly guessed %s in %s", cmd.client.playerID, selected, h.id)
		} else {
			logf(cfg, "GAMES: %s incorrectly guessed %s in %s", cmd.client.playerID, selected, h.id)
		}

	case "skip":
		h.game.AdvanceRound()

	default:
		return
	}

	h.broadcastStateLocked()
}

func (h *Hub) stateMessageLocked() any {
	st := h.game.State()

	if st.Phase == PhaseEmpty {
		return SimpleMessage{
			Type:    "no_content",
			Message: "There are no memories to show yet.",
		}
	}

	msg := StateMessage{
		Type:        "state",
		Game:        h.id,
		Phase:       st.Phase,
		Score:       st.Score,
		SliderIndex: st.SliderIndex,
		Selected:    slots[st.SliderIndex].String(),
	}

	if st.Current != nil {
		msg.Image = h.imageURL(*st.Current)

		if st.Phase == PhaseWrong {
			msg.Reveal = st.Current.Month
		}
	}

	return msg
}

func (h *Hub) imageURL(m MemoryRecord) string {
	if m.remote() {
		return m.Image
	}
	return h.photoBase + url.PathEscape(m.Image)
}

func (h *Hub) sendStateLocked(c *Client) {
	select {
	case c.send <- h.stateMessageLocked():
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcastStateLocked() {
	h.broadcastLocked(h.stateMessageLocked())
}

func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// closeAll disconnects all clients of this hub and stops its goroutine
// (used by reaper).
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closeOnce.Do(func() {
		close(h.done)
	})

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const playerCookieName = "memorylane_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

func randomGameID(n int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	const max = byte(255 - (256 % len(letters)))

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			panic(err)
		}

		for _, b := range buf {
			if b <= max {
				out = append(out, letters[int(b)%len(letters)])
				if len(out) == n {
					return string(out)
				}
			}
		}
	}

	return string(out)
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated session.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	records     []MemoryRecord
	idleTimeout time.Duration
}

func newGameManager(records []MemoryRecord, idleTimeout time.Duration) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		records:     records,
		idleTimeout: idleTimeout,
	}
	if idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(cfg *Config, gameID string) (*Hub, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub, nil
	}

	hub, err := newHub(cfg, gameID, gm.records)
	if err != nil {
		return nil, err
	}

	gm.hubs[gameID] = hub
	go hub.run(cfg)

	return hub, nil
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	for {
		id := randomGameID(8)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have had no clients and no
// activity for longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(max(gm.idleTimeout/2, minSessionTimeout/2))
	for range ticker.C {
		gm.reap(time.Now().Add(-gm.idleTimeout))
	}
}

func (gm *GameManager) reap(cutoff time.Time) int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	reaped := 0
	for id, hub := range gm.hubs {
		hub.mu.RLock()
		last := hub.lastActive
		connected := len(hub.clients)
		hub.mu.RUnlock()

		// a connected browser would silently reconnect to a fresh session
		if connected > 0 {
			continue
		}

		if last.Before(cutoff) {
			delete(gm.hubs, id)
			go hub.closeAll()
			reaped++
		}
	}

	return reaped
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(w, r)

		hub, err := gm.getHub(cfg, gameID)
		if err != nil {
			logf(cfg, "ERROR: Unable to start session %s: %v", gameID, err)
			http.Error(w, "unable to start session", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			playerID: playerID,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		logf(cfg, "GAMES: Player %s connected to %s from %s", playerID, gameID, realIP(r))

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "select", "guess", "skip":
			select {
			case h.commands <- command{client: c, msg: msg}:
			case <-h.done:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	const qrSize = 320
	png, err := qrcode.Encode(scheme+"://"+r.Host+path, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func getIndexHandler(cfg *Config, errs chan<- error) httprouter.Handle {
	page, err := assets.ReadFile("assets/index.html")
	if err != nil {
		panic(err)
	}
	page = bytes.ReplaceAll(page, []byte("{{PREFIX}}"), []byte(cfg.prefix))

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		if _, err := w.Write(page); err != nil {
			errs <- err
		}
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created session %s%s/%s", cfg.prefix, path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerGame sets up routes so that:
//   - $path                  → redirects to new random session (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that session
//   - $path/:gameid/qr       → PNG QR code for that session URL
func registerGame(cfg *Config, path string, gm *GameManager, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))
	mux.GET(cfg.prefix+path+"/:gameid", getIndexHandler(cfg, errs))
	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))
	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)
}
