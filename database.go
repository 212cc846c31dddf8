package main

import (
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	"werewolves/internal/engine"
)

// db is the history store. Game state itself lives in memory inside each
// session; the store keeps seats and the append-only action log.
var db *sqlx.DB

// GameRow is one lobby entry.
type GameRow struct {
	ID        string `db:"game_id" json:"id"`
	Capacity  int    `db:"capacity" json:"capacity"`
	Winner    string `db:"winner" json:"winner,omitempty"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// Role is one catalog entry as listed by GET /roles.
type Role struct {
	Name        string `db:"name" json:"name"`
	Team        string `db:"team" json:"team"`
	Passive     bool   `db:"passive" json:"passive"`
	Description string `db:"description" json:"description"`
}

// GameAction is one line of a game's history.
type GameAction struct {
	ID          int64  `db:"id" json:"id"`
	GameID      string `db:"game_id" json:"-"`
	Cycle       int    `db:"cycle" json:"cycle"`
	Phase       string `db:"phase" json:"phase"` // "night" or "day"
	ActionType  string `db:"action_type" json:"type"`
	Actor       string `db:"actor" json:"-"`
	Visibility  string `db:"visibility" json:"-"`
	Description string `db:"description" json:"description"` // empty = hidden
}

const (
	ActionRoleDealt   = "role_dealt"
	ActionNightfall   = "nightfall"
	ActionWake        = "wake"
	ActionNotice      = "notice"
	ActionDawn        = "dawn"
	ActionElimination = "elimination"
	ActionChat        = "chat"
	ActionStory       = "story"
	ActionGameOver    = "game_over"
)

const (
	VisibilityPublic   = "public"
	VisibilityActor    = "actor"
	VisibilityResolved = "resolved"
)

const (
	PhaseNight = "night"
	PhaseDay   = "day"
)

// historyView is where a reader stands when asking for history. Player is
// empty for spectators.
type historyView struct {
	Player string
	Cycle  int
	Day    bool
	Over   bool
}

// canSeeAction applies the visibility rules. Once the game is over every
// line is public.
func canSeeAction(action GameAction, view historyView) bool {
	if view.Over {
		return true
	}
	switch action.Visibility {
	case VisibilityPublic:
		return true
	case VisibilityActor:
		return view.Player != "" && view.Player == action.Actor
	case VisibilityResolved:
		// Visible once we're past the night the action was taken
		if action.Cycle < view.Cycle {
			return true
		}
		return action.Cycle == view.Cycle && action.Phase == PhaseNight && view.Day
	default:
		return false
	}
}

func insertGame(id string, capacity int) error {
	_, err := db.Exec(`INSERT INTO game (game_id, capacity, created_at) VALUES (?, ?, ?)`,
		id, capacity, time.Now().Unix())
	return err
}

func deleteGame(id string) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, q := range []string{
		`DELETE FROM game_action WHERE game_id = ?`,
		`DELETE FROM seat WHERE game_id = ?`,
		`DELETE FROM game WHERE game_id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func getGames() ([]GameRow, error) {
	var games []GameRow
	err := db.Select(&games, `SELECT game_id, capacity, winner, created_at FROM game ORDER BY created_at, game_id`)
	return games, err
}

func setWinner(gameID, winner string) error {
	_, err := db.Exec(`UPDATE game SET winner = ? WHERE game_id = ?`, winner, gameID)
	return err
}

func insertSeat(gameID, name, secretCode string) error {
	_, err := db.Exec(`INSERT INTO seat (game_id, player_name, secret_code) VALUES (?, ?, ?)`,
		gameID, name, secretCode)
	return err
}

func deleteSeat(gameID, name string) error {
	_, err := db.Exec(`DELETE FROM seat WHERE game_id = ? AND player_name = ?`, gameID, name)
	return err
}

func getSeatCode(gameID, name string) (string, error) {
	var code string
	err := db.Get(&code, `SELECT secret_code FROM seat WHERE game_id = ? AND player_name = ?`, gameID, name)
	return code, err
}

func getRoles() ([]Role, error) {
	var roles []Role
	err := db.Select(&roles, `SELECT name, team, passive, description FROM role ORDER BY rowid`)
	return roles, err
}

// recordAction appends a history line and returns its id.
func recordAction(a GameAction) (int64, error) {
	res, err := db.NamedExec(`
		INSERT INTO game_action (game_id, cycle, phase, action_type, actor, visibility, description)
		VALUES (:game_id, :cycle, :phase, :action_type, :actor, :visibility, :description)`, a)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func updateActionDescription(id int64, description string) error {
	_, err := db.Exec(`UPDATE game_action SET description = ? WHERE rowid = ?`, description, id)
	return err
}

func deleteAction(id int64) error {
	_, err := db.Exec(`DELETE FROM game_action WHERE rowid = ?`, id)
	return err
}

// getActionsForPlayer returns the history lines the viewer may read, oldest first.
func getActionsForPlayer(gameID string, view historyView) ([]GameAction, error) {
	var all []GameAction
	err := db.Select(&all, `
		SELECT rowid AS id, game_id, cycle, phase, action_type, actor, visibility, description
		FROM game_action
		WHERE game_id = ? AND description != ''
		ORDER BY rowid ASC`, gameID)
	if err != nil {
		return nil, err
	}

	var visible []GameAction
	for _, action := range all {
		if canSeeAction(action, view) {
			visible = append(visible, action)
		}
	}
	return visible, nil
}

// getPublicHistory returns the public descriptions of a game, oldest first.
func getPublicHistory(gameID string) ([]string, error) {
	var descriptions []string
	err := db.Select(&descriptions, `
		SELECT description FROM game_action
		WHERE game_id = ? AND description != '' AND visibility = ?
		ORDER BY rowid ASC`, gameID, VisibilityPublic)
	return descriptions, err
}

func initDB() error {
	schema := `
	PRAGMA journal_mode=WAL;

	CREATE TABLE IF NOT EXISTS game (
		game_id TEXT PRIMARY KEY,
		capacity INTEGER NOT NULL,
		winner TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS seat (
		game_id TEXT NOT NULL,
		player_name TEXT NOT NULL,
		secret_code TEXT NOT NULL,
		FOREIGN KEY (game_id) REFERENCES game(game_id),
		UNIQUE(game_id, player_name)
	);
	CREATE TABLE IF NOT EXISTS role (
		name TEXT NOT NULL UNIQUE,
		team TEXT NOT NULL,
		passive INTEGER NOT NULL DEFAULT 0,
		description TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS game_action (
		game_id TEXT NOT NULL,
		cycle INTEGER NOT NULL,
		phase TEXT NOT NULL,
		action_type TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT '',
		visibility TEXT NOT NULL DEFAULT 'public',
		description TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (game_id) REFERENCES game(game_id)
	);
	CREATE INDEX IF NOT EXISTS idx_game_action_lookup ON game_action(game_id, visibility);
	`
	if _, err := db.Exec(schema); err != nil {
		log.Printf("initDB error: %v", err)
		return err
	}

	// The role table mirrors the engine catalog
	for _, k := range engine.RoleKinds() {
		if _, err := db.Exec(`INSERT OR IGNORE INTO role (name, team, passive, description) VALUES (?, ?, ?, ?)`,
			k.String(), k.Team().String(), k.Passive(), k.Describe()); err != nil {
			log.Printf("initDB error: %v", err)
			return err
		}
	}
	log.Printf("Database initialized successfully")
	return nil
}
