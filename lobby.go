package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"maps"
	"math/rand/v2"
	"net/http"
	"slices"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"werewolves/internal/engine"
)

// Lobby is the registry of running games.
type Lobby struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	hub      *Hub
	cfg      AppConfig
	// seed, when set, makes every new game deal and wake deterministically.
	seed    *uint64
	created uint64
}

var lobby *Lobby

func newLobby(cfg AppConfig, h *Hub) *Lobby {
	return &Lobby{sessions: make(map[string]*Session), hub: h, cfg: cfg}
}

// Create registers a new game with the given capacity and role decks. Nil
// decks use the engine defaults.
func (l *Lobby) Create(capacity int, active, passive []engine.RoleKind) (*Session, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("capacity %d: %w", capacity, engine.ErrInvalidState)
	}
	id := uuid.NewString()
	opts := sessionOptions{
		settleDelay: l.cfg.SettleDelay,
		wakeTimeout: l.cfg.WakeTimeout,
		logger:      appLogger,
		activePool:  active,
		passivePool: passive,
		storyteller: globalStoryteller,
	}
	if l.seed != nil {
		l.mu.Lock()
		opts.rand = rand.New(rand.NewPCG(*l.seed, l.created))
		l.created++
		l.mu.Unlock()
	}
	if err := insertGame(id, capacity); err != nil {
		return nil, err
	}
	sess, err := newSession(id, capacity, l.hub, opts)
	if err != nil {
		deleteGame(id)
		return nil, err
	}

	l.mu.Lock()
	l.sessions[id] = sess
	l.mu.Unlock()

	log.Printf("Game %s created (capacity %d)", id, capacity)
	LogDBState("after game create: " + id)
	return sess, nil
}

// Get looks a game up by id.
func (l *Lobby) Get(id string) (*Session, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sess, ok := l.sessions[id]
	if !ok {
		return nil, fmt.Errorf("game %q: %w", id, engine.ErrNotFound)
	}
	return sess, nil
}

// Delete tears a game down and drops its history.
func (l *Lobby) Delete(id string) error {
	l.mu.Lock()
	sess, ok := l.sessions[id]
	delete(l.sessions, id)
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("game %q: %w", id, engine.ErrNotFound)
	}
	sess.Close()
	if err := deleteGame(id); err != nil {
		return err
	}
	log.Printf("Game %s deleted", id)
	return nil
}

// List returns the running games ordered by id.
func (l *Lobby) List() []*Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := slices.Sorted(maps.Keys(l.sessions))
	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.sessions[id])
	}
	return out
}

// CloseAll stops every session.
func (l *Lobby) CloseAll() {
	l.mu.Lock()
	sessions := slices.Collect(maps.Values(l.sessions))
	clear(l.sessions)
	l.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

// ============================================================================
// HTTP API
// ============================================================================

type createGameRequest struct {
	Capacity    int      `json:"capacity"`
	ActivePool  []string `json:"active_pool,omitempty"`
	PassivePool []string `json:"passive_pool,omitempty"`
}

type gameSummary struct {
	ID       string `json:"id"`
	Capacity int    `json:"capacity"`
	Players  int    `json:"players"`
	Started  bool   `json:"started"`
	Over     bool   `json:"over"`
	Winner   string `json:"winner,omitempty"`
}

type joinRequest struct {
	Name string `json:"name"`
}

type joinResponse struct {
	GameID string `json:"game_id"`
	Player string `json:"player"`
	Token  string `json:"token"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: %v", err)
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, errUnauthorized) {
		return http.StatusUnauthorized
	}
	switch engine.Kind(err) {
	case "NotFound":
		return http.StatusNotFound
	case "Capacity", "InvalidState":
		return http.StatusConflict
	case "IllegalAbility":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logError("http", err)
	}
	writeJSON(w, status, engine.ErrorReport{Kind: engine.Kind(err), Message: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("bad request body: %v: %w", err, engine.ErrInvalidState)
	}
	return nil
}

// parsePool reads a custom deck. Every role must belong to that deck; only
// the Villager is dealt from both.
func parsePool(names []string, passive bool) ([]engine.RoleKind, error) {
	if names == nil {
		return nil, nil
	}
	deck := "active"
	if passive {
		deck = "passive"
	}
	pool := make([]engine.RoleKind, 0, len(names))
	for _, name := range names {
		k, err := engine.ParseRoleKind(name)
		if err != nil {
			return nil, err
		}
		if !k.InDeck(passive) {
			return nil, fmt.Errorf("%s is not a %s role: %w", k, deck, engine.ErrInvalidState)
		}
		pool = append(pool, k)
	}
	return pool, nil
}

// sessionFor resolves the {gameID} URL parameter.
func sessionFor(r *http.Request) (*Session, error) {
	return lobby.Get(chi.URLParam(r, "gameID"))
}

func handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	active, err := parsePool(req.ActivePool, false)
	if err != nil {
		writeError(w, err)
		return
	}
	passive, err := parsePool(req.PassivePool, true)
	if err != nil {
		writeError(w, err)
		return
	}
	sess, err := lobby.Create(req.Capacity, active, passive)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, gameSummary{ID: sess.id, Capacity: req.Capacity})
}

func handleListGames(w http.ResponseWriter, r *http.Request) {
	games := []gameSummary{}
	for _, sess := range lobby.List() {
		var summary gameSummary
		err := sess.Do(r.Context(), "summary", func(m *engine.Manager) error {
			g := m.Game()
			summary = gameSummary{
				ID:       g.ID,
				Capacity: g.Capacity,
				Players:  len(g.Players),
				Started:  g.Started,
				Over:     g.Over,
				Winner:   g.Winner,
			}
			return nil
		})
		if err != nil {
			continue // deleted meanwhile
		}
		games = append(games, summary)
	}
	writeJSON(w, http.StatusOK, games)
}

func handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := lobby.Delete(chi.URLParam(r, "gameID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleJoinGame(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, fmt.Errorf("name is required: %w", engine.ErrInvalidState))
		return
	}

	secretCode, err := generateSecretCode()
	if err != nil {
		writeError(w, err)
		return
	}
	err = sess.Do(r.Context(), "join", func(m *engine.Manager) error {
		if err := m.Join(req.Name); err != nil {
			return err
		}
		if err := insertSeat(sess.id, req.Name, secretCode); err != nil {
			m.Unseat(req.Name)
			return err
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("Player '%s' joined game %s", req.Name, sess.id)
	DebugLog("handleJoinGame", "Player '%s' seated in game %s", req.Name, sess.id)
	LogDBState("after join: " + req.Name)
	writeJSON(w, http.StatusCreated, joinResponse{GameID: sess.id, Player: req.Name, Token: secretCode})
}

func handleLeaveGame(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	player, err := authenticateSeat(sess.id, r)
	if err != nil {
		writeError(w, err)
		return
	}
	err = sess.Do(r.Context(), "leave", func(m *engine.Manager) error {
		if err := m.Leave(player); err != nil {
			return err
		}
		return deleteSeat(sess.id, player)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("Player '%s' left game %s", player, sess.id)
	LogDBState("after leave: " + player)
	w.WriteHeader(http.StatusNoContent)
}

type playerStatus struct {
	engine.PlayerView
	Online bool `json:"online"`
}

func handleListPlayers(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var players []engine.PlayerView
	err = sess.Do(r.Context(), "players", func(m *engine.Manager) error {
		players = m.Snapshot().Players
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]playerStatus, 0, len(players))
	for _, p := range players {
		out = append(out, playerStatus{PlayerView: p, Online: sess.hub.connected(sess.id, p.Name) > 0})
	}
	writeJSON(w, http.StatusOK, out)
}

func handleGameState(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var snap engine.Snapshot
	err = sess.Do(r.Context(), "state", func(m *engine.Manager) error {
		snap = m.Snapshot()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleGameHistory returns the history lines the caller may see. Without
// credentials only public lines are returned.
func handleGameHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view := historyView{}
	if player, _ := seatCredentials(r); player != "" {
		if view.Player, err = authenticateSeat(sess.id, r); err != nil {
			writeError(w, err)
			return
		}
	}
	err = sess.Do(r.Context(), "history", func(m *engine.Manager) error {
		g := m.Game()
		view.Cycle, view.Day, view.Over = g.Cycle, g.Day, g.Over
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	actions, err := getActionsForPlayer(sess.id, view)
	if err != nil {
		writeError(w, err)
		return
	}
	if actions == nil {
		actions = []GameAction{}
	}
	writeJSON(w, http.StatusOK, actions)
}

func handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := getRoles()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

// handleCommand runs one inbound command over plain HTTP, for clients that
// do not keep a websocket open. Failures come back as the error body instead
// of a toast.
func handleCommand(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	player, err := authenticateSeat(sess.id, r)
	if err != nil {
		writeError(w, err)
		return
	}
	var msg WSMessage
	if err := decodeJSON(r, &msg); err != nil {
		writeError(w, err)
		return
	}
	if err := dispatchCommand(r.Context(), sess, player, msg); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
