package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGameLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	al, err := NewAppLogger(LogConfig{OutputDir: dir})
	if err != nil {
		t.Fatalf("NewAppLogger: %v", err)
	}
	defer al.Close()
	logger, closer, err := al.GameLogger("g1")
	if err != nil {
		t.Fatalf("GameLogger: %v", err)
	}
	if closer == nil {
		t.Fatal("file logger should return a closer")
	}
	logger.Info().Str("player", "Alice").Msg("player joined")
	logger.Debug().Msg("hidden below info")
	closer.Close()

	data, err := os.ReadFile(filepath.Join(dir, "game_g1.log"))
	if err != nil {
		t.Fatalf("read game log: %v", err)
	}
	if !strings.Contains(string(data), `"player":"Alice"`) {
		t.Errorf("game log missing the entry: %s", data)
	}
	if strings.Contains(string(data), "hidden below info") {
		t.Errorf("debug entry written without debug enabled: %s", data)
	}
}

func TestGameLoggerDisabled(t *testing.T) {
	var none *AppLogger
	if _, closer, err := none.GameLogger("g1"); closer != nil || err != nil {
		t.Errorf("nil logger = %v, %v; want no closer", closer, err)
	}
	al, _ := NewAppLogger(LogConfig{})
	if _, closer, err := al.GameLogger("g1"); closer != nil || err != nil {
		t.Errorf("disabled logger = %v, %v; want no closer", closer, err)
	}
}

// readLogLines decodes a JSON-lines log file.
func readLogLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		entry := map[string]any{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLoggingHandlerRecordsRequests(t *testing.T) {
	dir := t.TempDir()
	al, err := NewAppLogger(LogConfig{OutputDir: dir, LogRequests: true})
	if err != nil {
		t.Fatalf("NewAppLogger: %v", err)
	}
	defer al.Close()

	h := &LoggingHandler{Logger: al, Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"got":` + string(body) + `}`))
	})}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/games", strings.NewReader(`{"capacity":3}`)))

	if rec.Code != http.StatusTeapot || rec.Body.String() != `{"got":{"capacity":3}}` {
		t.Errorf("response not passed through: %d %s", rec.Code, rec.Body)
	}
	lines := readLogLines(t, filepath.Join(dir, "requests.log"))
	if len(lines) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(lines))
	}
	want := map[string]any{
		"n":             float64(1),
		"method":        "POST",
		"url":           "/games",
		"status":        float64(http.StatusTeapot),
		"request_body":  `{"capacity":3}`,
		"response_body": `{"got":{"capacity":3}}`,
		"log":           "requests",
	}
	for k, v := range want {
		if lines[0][k] != v {
			t.Errorf("%s = %v, want %v", k, lines[0][k], v)
		}
	}
}

func TestWebSocketAndDBLogs(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.cleanup()

	dir := t.TempDir()
	al, err := NewAppLogger(LogConfig{OutputDir: dir, LogWS: true, LogDB: true})
	if err != nil {
		t.Fatalf("NewAppLogger: %v", err)
	}
	defer al.Close()
	if _, err := os.Stat(filepath.Join(dir, "requests.log")); !os.IsNotExist(err) {
		t.Errorf("disabled concern opened a file: %v", err)
	}

	al.LogWebSocket("IN", "Alice", `{"action":"mark_ready"}`)
	al.LogWebSocket("OUT", "Alice", `{"type":"night-begin"}`)
	frames := readLogLines(t, filepath.Join(dir, "websocket.log"))
	if len(frames) != 2 || frames[1]["n"] != float64(2) || frames[1]["direction"] != "OUT" || frames[0]["player"] != "Alice" {
		t.Errorf("websocket log = %v", frames)
	}

	if err := insertGame("dump", 4); err != nil {
		t.Fatalf("insertGame: %v", err)
	}
	al.LogDB("after insert")
	found := false
	for _, entry := range readLogLines(t, filepath.Join(dir, "database.log")) {
		if entry["table"] != "game" {
			continue
		}
		found = true
		rows, _ := entry["rows"].([]any)
		if entry["context"] != "after insert" || len(rows) != 1 || !strings.HasPrefix(rows[0].(string), "dump | 4") {
			t.Errorf("game table dump = %v", entry)
		}
	}
	if !found {
		t.Error("database log has no entry for the game table")
	}
}

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := setupTracing(context.Background(), "")
	if err != nil {
		t.Fatalf("setupTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown: %v", err)
	}
}
