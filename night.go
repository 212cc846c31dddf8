package main

import (
	"context"
	"fmt"

	"werewolves/internal/engine"
)

// waitingAs checks that player is the one the night is waiting on for kind.
func waitingAs(m *engine.Manager, kind engine.RoleKind, player string) error {
	for _, w := range m.Waiting() {
		if w.Role == kind.String() && w.Player == player {
			return nil
		}
	}
	return fmt.Errorf("%s is not awake as %s: %w", player, kind, engine.ErrInvalidState)
}

// handleWSSubmitTarget names the target(s) of a waking role's ability.
func handleWSSubmitTarget(ctx context.Context, sess *Session, player string, msg WSMessage) error {
	kind, err := engine.ParseRoleKind(msg.Role)
	if err != nil {
		return err
	}
	return sess.Do(ctx, "submit_target", func(m *engine.Manager) error {
		if err := waitingAs(m, kind, player); err != nil {
			return err
		}
		DebugLog("handleWSSubmitTarget", "%s (%s) targets %v in game %s", player, kind, msg.Targets, sess.id)
		return m.SubmitTarget(kind, msg.Targets)
	})
}

// handleWSSubmitAnswer answers a waking role's yes/no question.
func handleWSSubmitAnswer(ctx context.Context, sess *Session, player string, msg WSMessage) error {
	kind, err := engine.ParseRoleKind(msg.Role)
	if err != nil {
		return err
	}
	return sess.Do(ctx, "submit_answer", func(m *engine.Manager) error {
		DebugLog("handleWSSubmitAnswer", "%s (%s) answers %t in game %s", player, kind, msg.Answer, sess.id)
		return m.SubmitAnswer(kind, player, msg.Answer)
	})
}

// handleWSRoleFinished acknowledges a narrative so the next role can wake.
func handleWSRoleFinished(ctx context.Context, sess *Session, player string, msg WSMessage) error {
	kind, err := engine.ParseRoleKind(msg.Role)
	if err != nil {
		return err
	}
	return sess.Do(ctx, "role_finished", func(m *engine.Manager) error {
		return m.RoleFinished(kind, player)
	})
}
