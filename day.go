package main

import (
	"context"
	"log"

	"werewolves/internal/engine"
)

// handleWSStartGame deals the roles once the roster is full.
func handleWSStartGame(ctx context.Context, sess *Session, player string, _ WSMessage) error {
	err := sess.Do(ctx, "start_game", func(m *engine.Manager) error {
		return m.Start()
	})
	if err != nil {
		return err
	}
	log.Printf("Game %s started by %s", sess.id, player)
	LogDBState("after start: " + sess.id)
	return nil
}

// handleWSMarkReady flags the player as ready to sleep. The last ready player
// brings the night, and the wake loop starts after the settling delay.
func handleWSMarkReady(ctx context.Context, sess *Session, player string, _ WSMessage) error {
	return sess.Do(ctx, "mark_ready", func(m *engine.Manager) error {
		began, err := m.MarkReady(player)
		if err != nil {
			return err
		}
		if began {
			DebugLog("handleWSMarkReady", "Everyone in game %s is ready, night %d begins", sess.id, m.Game().Cycle)
			sess.scheduleAdvance()
		}
		return nil
	})
}

// handleWSCastVote puts the player's ballot on a lynch or team vote.
func handleWSCastVote(ctx context.Context, sess *Session, player string, msg WSMessage) error {
	return sess.Do(ctx, "cast_vote", func(m *engine.Manager) error {
		DebugLog("handleWSCastVote", "%s votes %v on %s", player, msg.Votees, msg.VoteID)
		return m.CastVote(msg.VoteID, player, msg.Votees)
	})
}

// handleWSPostChat appends a line to a day or team chat.
func handleWSPostChat(ctx context.Context, sess *Session, player string, msg WSMessage) error {
	return sess.Do(ctx, "post_chat", func(m *engine.Manager) error {
		return m.PostChat(msg.ChatID, player, msg.Text)
	})
}

// handleWSHunterRevenge spends a dead Hunter's shot. An empty target passes.
func handleWSHunterRevenge(ctx context.Context, sess *Session, player string, msg WSMessage) error {
	return sess.Do(ctx, "hunter_revenge", func(m *engine.Manager) error {
		return m.HunterShot(player, msg.Target)
	})
}
