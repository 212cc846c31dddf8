package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"werewolves/internal/engine"
)

// commandTimeout bounds how long a websocket command waits for its game.
const commandTimeout = 10 * time.Second

var devMode bool

// logError logs an error with context and dumps the database in dev mode
func logError(context string, err error) {
	log.Printf("ERROR [%s]: %v", context, err)
	if devMode {
		LogDBState("error: " + context)
	}
}

// dispatchCommand routes an inbound command to its handler.
func dispatchCommand(ctx context.Context, sess *Session, player string, msg WSMessage) error {
	switch msg.Action {
	case "start_game":
		return handleWSStartGame(ctx, sess, player, msg)
	case "mark_ready":
		return handleWSMarkReady(ctx, sess, player, msg)
	case "submit_target":
		return handleWSSubmitTarget(ctx, sess, player, msg)
	case "submit_answer":
		return handleWSSubmitAnswer(ctx, sess, player, msg)
	case "role_finished":
		return handleWSRoleFinished(ctx, sess, player, msg)
	case "cast_vote":
		return handleWSCastVote(ctx, sess, player, msg)
	case "post_chat":
		return handleWSPostChat(ctx, sess, player, msg)
	case "hunter_revenge":
		return handleWSHunterRevenge(ctx, sess, player, msg)
	default:
		return fmt.Errorf("unknown action %q: %w", msg.Action, engine.ErrInvalidState)
	}
}

func handleWSMessage(client *Client, sess *Session, message []byte) {
	var msg WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("WebSocket unmarshal error for player %s: %v", client.player, err)
		sendErrorToast(client.gameID, client.player, fmt.Errorf("bad message: %v: %w", err, engine.ErrInvalidState))
		return
	}

	LogWSMessage("IN", client.player, string(message))

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := dispatchCommand(ctx, sess, client.player, msg); err != nil {
		DebugLog("handleWSMessage", "%s from '%s' in game %s failed: %v", msg.Action, client.player, client.gameID, err)
		sendErrorToast(client.gameID, client.player, err)
	}
}

// newRouter wires the HTTP API. Every route is traced; request logging is
// added when enabled.
func newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(middleware.Compress(5, "application/json"))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/roles", handleListRoles)
	r.Route("/games", func(r chi.Router) {
		r.Post("/", handleCreateGame)
		r.Get("/", handleListGames)
		r.Route("/{gameID}", func(r chi.Router) {
			r.Delete("/", handleDeleteGame)
			r.Get("/players", handleListPlayers)
			r.Post("/players", handleJoinGame)
			r.Delete("/players", handleLeaveGame)
			r.Post("/commands", handleCommand)
			r.Get("/state", handleGameState)
			r.Get("/history", handleGameHistory)
			r.Get("/ws", handleWebSocket)
		})
	})

	var h http.Handler = r
	if appLogger != nil && appLogger.cfg.LogRequests {
		h = &LoggingHandler{Handler: h, Logger: appLogger}
	}
	return otelhttp.NewHandler(h, "http")
}

var rootCmd = &cobra.Command{
	Use:          "werewolves",
	Short:        "Werewolf game server: lobby API, websocket events and the night engine",
	RunE:         runServer,
	SilenceUsage: true,
}

var flags flagValues

func init() {
	flags = registerFlags(rootCmd.Flags())
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(*flags.configPath)
	if err != nil {
		return err
	}
	flags.applyTo(&cfg)
	devMode = cfg.Dev

	// Set up logging to both stdout and file
	logFile, err := os.OpenFile("werewolves.log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	if err := InitAppLogger(cfg.toLogConfig()); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer CloseAppLogger()
	if appLogger.IsEnabled() {
		log.Println("Extended logging enabled")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Printf("Tracing shutdown: %v", err)
		}
	}()

	db, err = sqlx.Connect("sqlite3", cfg.DB)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	if err := initDB(); err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	LogDBState("after initDB")

	initStoryteller(cfg)

	hub = newHub()
	hub.start()
	defer hub.stop()
	lobby = newLobby(cfg, hub)
	defer lobby.CloseAll()

	srv := &http.Server{Addr: cfg.Addr, Handler: newRouter()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Server starting on %s", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
