package main

import (
	"encoding/json"
	"log"

	"werewolves/internal/engine"
)

// sendErrorToast reports a failed command to the player who issued it only.
func sendErrorToast(gameID, player string, err error) {
	ev := engine.Event{
		Kind:    engine.EventError,
		GameID:  gameID,
		To:      []string{player},
		Payload: engine.ErrorReport{Kind: engine.Kind(err), Message: err.Error()},
	}
	data, mErr := json.Marshal(ev)
	if mErr != nil {
		log.Printf("Failed to encode toast: %v", mErr)
		return
	}
	hub.sendToPlayer(gameID, player, data)
}
