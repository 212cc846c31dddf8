package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// LogConfig holds logging configuration
type LogConfig struct {
	OutputDir   string
	LogRequests bool
	LogDB       bool
	LogWS       bool
	Debug       bool
}

// AppLogger owns the optional diagnostic sinks of the server. Each concern
// (requests, database dumps, websocket frames, per-game engine logs) writes
// JSON lines to its own file under OutputDir and is a no-op when disabled.
type AppLogger struct {
	cfg LogConfig

	requests  zerolog.Logger
	database  zerolog.Logger
	websocket zerolog.Logger
	files     []io.Closer

	requestCount atomic.Int64
	frameCount   atomic.Int64
}

// Global application logger (used by server)
var appLogger *AppLogger

const maxLoggedBody = 5000

// NewAppLogger opens the sink of every enabled concern.
func NewAppLogger(cfg LogConfig) (*AppLogger, error) {
	al := &AppLogger{
		cfg:       cfg,
		requests:  zerolog.Nop(),
		database:  zerolog.Nop(),
		websocket: zerolog.Nop(),
	}
	if cfg.OutputDir == "" {
		return al, nil
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}

	sinks := []struct {
		on   bool
		name string
		dst  *zerolog.Logger
	}{
		{cfg.LogRequests, "requests.log", &al.requests},
		{cfg.LogDB, "database.log", &al.database},
		{cfg.LogWS, "websocket.log", &al.websocket},
	}
	for _, s := range sinks {
		if !s.on {
			continue
		}
		logger, f, err := al.fileLogger(s.name, zerolog.InfoLevel)
		if err != nil {
			al.Close()
			return nil, err
		}
		*s.dst = logger.With().Str("log", strings.TrimSuffix(s.name, ".log")).Logger()
		al.files = append(al.files, f)
	}
	return al, nil
}

func (al *AppLogger) fileLogger(name string, level zerolog.Level) (zerolog.Logger, *os.File, error) {
	f, err := os.OpenFile(filepath.Join(al.cfg.OutputDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return zerolog.New(f).Level(level).With().Timestamp().Logger(), f, nil
}

// InitAppLogger initializes the global application logger
func InitAppLogger(cfg LogConfig) error {
	var err error
	appLogger, err = NewAppLogger(cfg)
	return err
}

// Close releases the log files.
func (al *AppLogger) Close() {
	for _, f := range al.files {
		f.Close()
	}
	al.files = nil
}

// GameLogger builds the engine logger of one game. With an output dir it
// writes to game_<id>.log, in debug mode to the console, and otherwise
// nowhere. The closer, when non-nil, releases the log file. A nil AppLogger
// yields a disabled logger.
func (al *AppLogger) GameLogger(gameID string) (zerolog.Logger, io.Closer, error) {
	if al == nil {
		return zerolog.Nop(), nil, nil
	}
	level := zerolog.InfoLevel
	if al.cfg.Debug {
		level = zerolog.DebugLevel
	}
	switch {
	case al.cfg.OutputDir != "":
		logger, f, err := al.fileLogger("game_"+gameID+".log", level)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		return logger, f, nil
	case al.cfg.Debug:
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
		return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil, nil
	default:
		return zerolog.Nop(), nil, nil
	}
}

func clip(body []byte) string {
	if len(body) > maxLoggedBody {
		return fmt.Sprintf("%s... (truncated, %d bytes total)", body[:maxLoggedBody], len(body))
	}
	return string(body)
}

// LogRequest records one HTTP exchange. status is 0 when no response came
// back.
func (al *AppLogger) LogRequest(method, url string, reqBody []byte, status int, header http.Header, respBody []byte) {
	if !al.cfg.LogRequests {
		return
	}
	ev := al.requests.Info().
		Int64("n", al.requestCount.Add(1)).
		Str("method", method).
		Str("url", url)
	if len(reqBody) > 0 {
		ev = ev.Str("request_body", clip(reqBody))
	}
	if status != 0 {
		ev = ev.Int("status", status).Str("content_type", header.Get("Content-Type"))
	}
	if enc := header.Get("Content-Encoding"); enc != "" {
		ev = ev.Str("response_body", fmt.Sprintf("[%s, %d bytes]", enc, len(respBody)))
	} else if len(respBody) > 0 {
		ev = ev.Str("response_body", clip(respBody))
	}
	ev.Msg(method + " " + url)
}

// LogWebSocket logs one websocket frame. direction is IN or OUT.
func (al *AppLogger) LogWebSocket(direction, player, message string) {
	if !al.cfg.LogWS {
		return
	}
	al.websocket.Info().
		Int64("n", al.frameCount.Add(1)).
		Str("direction", direction).
		Str("player", player).
		Msg(message)
}

// LogDB dumps every table of the history store, one entry per table.
func (al *AppLogger) LogDB(context string) {
	if !al.cfg.LogDB || db == nil {
		return
	}
	var tables []string
	if err := db.Select(&tables, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name"); err != nil {
		al.database.Error().Err(err).Str("context", context).Msg("list tables")
		return
	}
	for _, table := range tables {
		cols, rows, err := dumpTable(table)
		if err != nil {
			al.database.Error().Err(err).Str("context", context).Str("table", table).Msg("dump")
			continue
		}
		al.database.Info().
			Str("context", context).
			Str("table", table).
			Strs("columns", cols).
			Strs("rows", rows).
			Msg("dump")
	}
}

func dumpTable(table string) ([]string, []string, error) {
	rows, err := db.Queryx("SELECT * FROM " + table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	out := []string{}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return cols, out, err
		}
		cells := make([]string, len(values))
		for i, v := range values {
			switch val := v.(type) {
			case nil:
				cells[i] = "NULL"
			case []byte:
				cells[i] = string(val)
			default:
				cells[i] = fmt.Sprint(val)
			}
		}
		out = append(out, strings.Join(cells, " | "))
	}
	return cols, out, rows.Err()
}

// Debug logs a debug message if debug mode is enabled
func (al *AppLogger) Debug(format string, args ...any) {
	if !al.cfg.Debug {
		return
	}
	log.Printf("[DEBUG] "+format, args...)
}

// IsEnabled returns true if any logging is enabled
func (al *AppLogger) IsEnabled() bool {
	c := al.cfg
	return c.LogRequests || c.LogDB || c.LogWS || c.Debug
}

// LoggingHandler records every request passing through it. The response is
// teed rather than buffered, so streaming and websocket upgrades still work.
type LoggingHandler struct {
	Handler http.Handler
	Logger  *AppLogger
}

func (l *LoggingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var reqBody []byte
	if r.Body != nil {
		reqBody, _ = io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	var respBody bytes.Buffer
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	ww.Tee(&respBody)
	l.Handler.ServeHTTP(ww, r)

	l.Logger.LogRequest(r.Method, r.URL.String(), reqBody, ww.Status(), ww.Header(), respBody.Bytes())
}

// LogWSMessage logs a WebSocket message using the global logger
func LogWSMessage(direction, player, message string) {
	if appLogger != nil {
		appLogger.LogWebSocket(direction, player, message)
	}
}

// LogDBState logs the database state using the global logger
func LogDBState(context string) {
	if appLogger != nil {
		appLogger.LogDB(context)
	}
}

// DebugLog logs a debug message tagged with the calling context
func DebugLog(context, format string, args ...any) {
	if appLogger != nil {
		appLogger.Debug("["+context+"] "+format, args...)
	}
}

// CloseAppLogger closes the global application logger
func CloseAppLogger() {
	if appLogger != nil {
		appLogger.Close()
	}
}
