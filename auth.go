package main

import (
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
)

// seatTokenHeader carries the secret code handed out on join. Browsers that
// cannot set headers on a websocket upgrade pass ?token= instead.
const seatTokenHeader = "X-Seat-Token"

var errUnauthorized = errors.New("unauthorized")

func generateSecretCode() (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// seatCredentials reads the claimed player name and secret code.
func seatCredentials(r *http.Request) (player, code string) {
	player = r.URL.Query().Get("player")
	code = r.Header.Get(seatTokenHeader)
	if code == "" {
		code = r.URL.Query().Get("token")
	}
	return player, code
}

// authenticateSeat checks the request's secret code against the seat table and
// returns the player it belongs to.
func authenticateSeat(gameID string, r *http.Request) (string, error) {
	player, code := seatCredentials(r)
	if player == "" || code == "" {
		return "", fmt.Errorf("missing player or token: %w", errUnauthorized)
	}
	stored, err := getSeatCode(gameID, player)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("no seat for %q: %w", player, errUnauthorized)
	}
	if err != nil {
		return "", err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		DebugLog("authenticateSeat", "Wrong secret code for '%s' in game %s", player, gameID)
		return "", fmt.Errorf("wrong token for %q: %w", player, errUnauthorized)
	}
	return player, nil
}
