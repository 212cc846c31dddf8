package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"

	"werewolves/internal/engine"
)

// ============================================================================
// Test logger
// ============================================================================

// TestLogger wraps AppLogger for test use with testing.T integration
type TestLogger struct {
	*AppLogger
	t *testing.T
}

// NewTestLogger creates a test logger from environment variables
func NewTestLogger(t *testing.T) *TestLogger {
	config := LogConfig{
		OutputDir:   os.Getenv("TEST_OUTPUT_DIR"),
		LogRequests: os.Getenv("TEST_LOG_REQUESTS") == "1",
		LogDB:       os.Getenv("TEST_LOG_DB") == "1",
		LogWS:       os.Getenv("TEST_LOG_WS") == "1",
		Debug:       os.Getenv("TEST_DEBUG") == "1",
	}
	al, err := NewAppLogger(config)
	if err != nil {
		t.Logf("test logger: %v, logging to files disabled", err)
		al = &AppLogger{cfg: LogConfig{Debug: config.Debug}}
	}
	return &TestLogger{AppLogger: al, t: t}
}

// Debug logs a debug message using testing.T.Logf
func (tl *TestLogger) Debug(format string, args ...any) {
	if !tl.cfg.Debug {
		return
	}
	tl.t.Logf("[DEBUG] "+format, args...)
}

// loggingTransport records the client side of every test request.
type loggingTransport struct {
	logger *AppLogger
}

func (l loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.Body != nil {
		reqBody, _ = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		l.logger.LogRequest(req.Method, req.URL.String(), reqBody, 0, nil, nil)
		return nil, err
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	l.logger.LogRequest(req.Method, req.URL.String(), reqBody, resp.StatusCode, resp.Header, respBody)
	return resp, nil
}

// ============================================================================
// Test server
// ============================================================================

// TestContext is a running server with its own database and lobby.
type TestContext struct {
	t       *testing.T
	baseURL string
	logger  *TestLogger
	server  *httptest.Server
	once    sync.Once
}

type testOptions struct {
	wakeTimeout time.Duration
	storyteller Storyteller
}

func newTestContext(t *testing.T) *TestContext {
	return newTestContextWith(t, testOptions{})
}

func newTestContextWith(t *testing.T, opts testOptions) *TestContext {
	t.Helper()
	logger := NewTestLogger(t)
	appLogger = logger.AppLogger

	path := filepath.Join(t.TempDir(), "werewolves_test.db")
	var dbErr error
	db, dbErr = sqlx.Connect("sqlite3", "file:"+path+"?_busy_timeout=5000")
	if dbErr != nil {
		t.Fatalf("Failed to connect to test database: %v", dbErr)
	}
	if err := initDB(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	logger.LogDB("after initDB")

	globalStoryteller = opts.storyteller
	hub = newHub()
	hub.start()

	cfg := defaultConfig()
	cfg.WakeTimeout = opts.wakeTimeout
	lobby = newLobby(cfg, hub)
	seed := uint64(7)
	lobby.seed = &seed

	ctx := &TestContext{t: t, logger: logger, server: httptest.NewServer(newRouter())}
	ctx.baseURL = ctx.server.URL
	logger.Debug("Test server listening on %s", ctx.baseURL)
	t.Cleanup(ctx.cleanup)
	return ctx
}

func (ctx *TestContext) cleanup() {
	ctx.once.Do(func() {
		lobby.CloseAll()
		hub.stop()
		ctx.server.Close()
		db.Close()
		globalStoryteller = nil
		ctx.logger.Close()
		appLogger = nil
	})
}

// do sends a JSON request and decodes the response body into out when it is
// non-nil. It returns the status code.
func (ctx *TestContext) do(method, path string, headers map[string]string, body, out any) int {
	ctx.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			ctx.t.Fatalf("encode %s %s: %v", method, path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ctx.baseURL+path, reader)
	if err != nil {
		ctx.t.Fatalf("build %s %s: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	client := http.DefaultClient
	if ctx.logger.cfg.LogRequests {
		client = &http.Client{Transport: loggingTransport{ctx.logger.AppLogger}}
	}
	resp, err := client.Do(req)
	if err != nil {
		ctx.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			ctx.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// createGame opens a game and fails the test unless it was created.
func (ctx *TestContext) createGame(capacity int, active, passive []string) string {
	ctx.t.Helper()
	var summary gameSummary
	req := createGameRequest{Capacity: capacity, ActivePool: active, PassivePool: passive}
	if status := ctx.do(http.MethodPost, "/games", nil, req, &summary); status != http.StatusCreated {
		ctx.t.Fatalf("create game: status %d", status)
	}
	return summary.ID
}

// oneWolfGame opens a game whose deck deals one Werewolf and no special
// passives, and seats the given players.
func (ctx *TestContext) oneWolfGame(names ...string) (string, []*TestPlayer) {
	ctx.t.Helper()
	active := []string{"Werewolf"}
	passive := []string{}
	for range names {
		passive = append(passive, "Villager")
	}
	for len(active) < len(names) {
		active = append(active, "Villager")
	}
	gameID := ctx.createGame(len(names), active, passive)
	var players []*TestPlayer
	for _, name := range names {
		players = append(players, ctx.mustJoin(gameID, name))
	}
	return gameID, players
}

// join seats a player and returns the status code.
func (ctx *TestContext) join(gameID, name string) (*TestPlayer, int) {
	ctx.t.Helper()
	var resp joinResponse
	status := ctx.do(http.MethodPost, "/games/"+gameID+"/players", nil, joinRequest{Name: name}, &resp)
	if status != http.StatusCreated {
		return nil, status
	}
	return &TestPlayer{ctx: ctx, gameID: gameID, name: resp.Player, token: resp.Token}, status
}

func (ctx *TestContext) mustJoin(gameID, name string) *TestPlayer {
	ctx.t.Helper()
	p, status := ctx.join(gameID, name)
	if status != http.StatusCreated {
		ctx.t.Fatalf("join %s as %s: status %d", gameID, name, status)
	}
	return p
}

func (ctx *TestContext) state(gameID string) engine.Snapshot {
	ctx.t.Helper()
	var snap engine.Snapshot
	if status := ctx.do(http.MethodGet, "/games/"+gameID+"/state", nil, nil, &snap); status != http.StatusOK {
		ctx.t.Fatalf("state of %s: status %d", gameID, status)
	}
	return snap
}

// publicHistory returns the descriptions a spectator can read.
func (ctx *TestContext) publicHistory(gameID string) []string {
	ctx.t.Helper()
	var actions []GameAction
	if status := ctx.do(http.MethodGet, "/games/"+gameID+"/history", nil, nil, &actions); status != http.StatusOK {
		ctx.t.Fatalf("history of %s: status %d", gameID, status)
	}
	return descriptions(actions)
}

// waitFor polls cond until it holds or the deadline passes.
func (ctx *TestContext) waitFor(what string, cond func() bool) {
	ctx.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	ctx.logger.LogDB("FAIL: timed out waiting for " + what)
	ctx.t.Fatalf("timed out waiting for %s", what)
}

func descriptions(actions []GameAction) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Description)
	}
	return out
}

func containsLine(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// ============================================================================
// Test player
// ============================================================================

// TestPlayer is a seated player holding its secret code.
type TestPlayer struct {
	ctx    *TestContext
	gameID string
	name   string
	token  string
}

func (tp *TestPlayer) query() string {
	return "?player=" + url.QueryEscape(tp.name)
}

func (tp *TestPlayer) auth() map[string]string {
	return map[string]string{seatTokenHeader: tp.token}
}

// command posts one command and returns the status code.
func (tp *TestPlayer) command(msg WSMessage) int {
	tp.ctx.t.Helper()
	return tp.ctx.do(http.MethodPost, "/games/"+tp.gameID+"/commands"+tp.query(), tp.auth(), msg, nil)
}

func (tp *TestPlayer) mustCommand(msg WSMessage) {
	tp.ctx.t.Helper()
	if status := tp.command(msg); status != http.StatusNoContent {
		tp.ctx.logger.LogDB("FAIL: command " + msg.Action)
		tp.ctx.t.Fatalf("%s: %s returned status %d", tp.name, msg.Action, status)
	}
}

// history returns the descriptions this player can read.
func (tp *TestPlayer) history() []string {
	tp.ctx.t.Helper()
	var actions []GameAction
	status := tp.ctx.do(http.MethodGet, "/games/"+tp.gameID+"/history"+tp.query(), tp.auth(), nil, &actions)
	if status != http.StatusOK {
		tp.ctx.t.Fatalf("history for %s: status %d", tp.name, status)
	}
	return descriptions(actions)
}

// activeRole reads the player's dealt role from their private history.
func (tp *TestPlayer) activeRole() string {
	tp.ctx.t.Helper()
	for _, line := range tp.history() {
		if rest, ok := strings.CutPrefix(line, "You are the "); ok {
			name, _, _ := strings.Cut(rest, " (")
			return name
		}
	}
	tp.ctx.t.Fatalf("%s has no role in their history", tp.name)
	return ""
}

// dial opens the player's websocket.
func (tp *TestPlayer) dial() *TestSocket {
	tp.ctx.t.Helper()
	wsURL := "ws" + strings.TrimPrefix(tp.ctx.baseURL, "http") +
		"/games/" + tp.gameID + "/ws" + tp.query() + "&token=" + url.QueryEscape(tp.token)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		tp.ctx.t.Fatalf("dial websocket for %s: %v (status %d)", tp.name, err, status)
	}
	sock := &TestSocket{t: tp.ctx.t, conn: conn}
	tp.ctx.t.Cleanup(func() { conn.Close() })
	return sock
}

// ============================================================================
// Websocket client
// ============================================================================

// frame is an event as read off the wire.
type frame struct {
	Kind    engine.EventKind `json:"type"`
	GameID  string           `json:"game_id"`
	Cycle   int              `json:"cycle"`
	Payload json.RawMessage  `json:"payload"`
}

// TestSocket reads events from a websocket connection.
type TestSocket struct {
	t    *testing.T
	conn *websocket.Conn
}

// next reads one frame, or fails after the deadline.
func (s *TestSocket) next(timeout time.Duration) (frame, error) {
	s.conn.SetReadDeadline(time.Now().Add(timeout))
	var f frame
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("decode %s: %w", data, err)
	}
	return f, nil
}

// waitFor skips frames until one of the given kind arrives.
func (s *TestSocket) waitFor(kind engine.EventKind) frame {
	s.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.t.Fatalf("no %s event before the deadline", kind)
		}
		f, err := s.next(remaining)
		if err != nil {
			s.t.Fatalf("waiting for %s: %v", kind, err)
		}
		if f.Kind == kind {
			return f
		}
	}
}

func (s *TestSocket) send(msg WSMessage) {
	s.t.Helper()
	if err := s.conn.WriteJSON(msg); err != nil {
		s.t.Fatalf("send %s: %v", msg.Action, err)
	}
}

// ============================================================================
// Game helpers
// ============================================================================

// splitByRole returns the Werewolf and everyone else.
func splitByRole(players []*TestPlayer) (wolf *TestPlayer, others []*TestPlayer) {
	for _, p := range players {
		if p.activeRole() == "Werewolf" {
			wolf = p
		} else {
			others = append(others, p)
		}
	}
	return wolf, others
}

// openVote finds the open vote of the given kind.
func openVote(snap engine.Snapshot, kind string) (engine.VoteView, bool) {
	for _, v := range snap.Votes {
		if v.Kind == kind {
			return v, true
		}
	}
	return engine.VoteView{}, false
}

// openChat finds the chat of the given kind opened on cycle.
func openChat(snap engine.Snapshot, kind string, cycle int) engine.ChatView {
	for _, c := range snap.Chats {
		if c.Kind == kind && c.Cycle == cycle {
			return c
		}
	}
	return engine.ChatView{ID: "missing"}
}

// startAndSleep starts the game and marks everyone ready, which brings the
// first night.
func startAndSleep(players []*TestPlayer) {
	players[0].mustCommand(WSMessage{Action: "start_game"})
	for _, p := range players {
		p.mustCommand(WSMessage{Action: "mark_ready"})
	}
}

// mockStoryteller streams a fixed story in chunks.
type mockStoryteller struct {
	mu      sync.Mutex
	chunks  []string
	err     error
	history [][]string
}

func (m *mockStoryteller) Tell(ctx context.Context, history []string, onChunk func(string)) (string, error) {
	m.mu.Lock()
	m.history = append(m.history, history)
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	var full strings.Builder
	for _, c := range m.chunks {
		if err := ctx.Err(); err != nil {
			return full.String(), err
		}
		full.WriteString(c)
		onChunk(c)
	}
	return full.String(), nil
}

func (m *mockStoryteller) calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history
}
