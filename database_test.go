package main

import (
	"slices"
	"testing"

	"werewolves/internal/engine"
)

func TestCanSeeAction(t *testing.T) {
	public := GameAction{Cycle: 1, Phase: PhaseNight, Visibility: VisibilityPublic}
	private := GameAction{Cycle: 1, Phase: PhaseNight, Visibility: VisibilityActor, Actor: "Alice"}
	resolvedNight := GameAction{Cycle: 2, Phase: PhaseNight, Visibility: VisibilityResolved}
	resolvedDay := GameAction{Cycle: 2, Phase: PhaseDay, Visibility: VisibilityResolved}

	tests := []struct {
		name   string
		action GameAction
		view   historyView
		want   bool
	}{
		{"public to spectator", public, historyView{Cycle: 1}, true},
		{"private to owner", private, historyView{Player: "Alice", Cycle: 1}, true},
		{"private to other", private, historyView{Player: "Bob", Cycle: 5, Day: true}, false},
		{"private to spectator", private, historyView{Cycle: 5}, false},
		{"night action during that night", resolvedNight, historyView{Player: "Bob", Cycle: 2}, false},
		{"night action the next morning", resolvedNight, historyView{Player: "Bob", Cycle: 2, Day: true}, true},
		{"night action a cycle later", resolvedNight, historyView{Cycle: 3}, true},
		{"day action the same day", resolvedDay, historyView{Cycle: 2, Day: true}, false},
		{"everything once over", private, historyView{Player: "Bob", Cycle: 1, Over: true}, true},
		{"unknown visibility", GameAction{Visibility: "secret"}, historyView{Cycle: 9}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canSeeAction(tt.action, tt.view); got != tt.want {
				t.Errorf("canSeeAction = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestActionHistory(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.cleanup()

	const gameID = "history-game"
	if err := insertGame(gameID, 3); err != nil {
		t.Fatalf("insertGame: %v", err)
	}
	add := func(a GameAction) int64 {
		t.Helper()
		a.GameID = gameID
		id, err := recordAction(a)
		if err != nil {
			t.Fatalf("recordAction: %v", err)
		}
		return id
	}
	add(GameAction{Cycle: 0, Phase: PhaseDay, ActionType: ActionRoleDealt, Visibility: VisibilityActor, Actor: "Alice", Description: "You are the Seer."})
	add(GameAction{Cycle: 1, Phase: PhaseNight, ActionType: ActionNightfall, Visibility: VisibilityPublic, Description: "Night 1 falls."})
	add(GameAction{Cycle: 1, Phase: PhaseNight, ActionType: ActionWake, Visibility: VisibilityResolved, Description: "The Seer woke up."})
	story := add(GameAction{Cycle: 1, Phase: PhaseDay, ActionType: ActionStory, Visibility: VisibilityPublic})

	lines := func(view historyView) []string {
		t.Helper()
		actions, err := getActionsForPlayer(gameID, view)
		if err != nil {
			t.Fatalf("getActionsForPlayer: %v", err)
		}
		return descriptions(actions)
	}

	if got := lines(historyView{Player: "Alice", Cycle: 1}); !slices.Equal(got, []string{"You are the Seer.", "Night 1 falls."}) {
		t.Errorf("Alice at night sees %v", got)
	}
	if got := lines(historyView{Player: "Bob", Cycle: 1, Day: true}); !slices.Equal(got, []string{"Night 1 falls.", "The Seer woke up."}) {
		t.Errorf("Bob in the morning sees %v", got)
	}

	// The empty story row stays hidden until text arrives
	if err := updateActionDescription(story, "A scream at dawn."); err != nil {
		t.Fatalf("updateActionDescription: %v", err)
	}
	public, err := getPublicHistory(gameID)
	if err != nil {
		t.Fatalf("getPublicHistory: %v", err)
	}
	if !slices.Equal(public, []string{"Night 1 falls.", "A scream at dawn."}) {
		t.Errorf("public history = %v", public)
	}
	if err := deleteAction(story); err != nil {
		t.Fatalf("deleteAction: %v", err)
	}
	if got := lines(historyView{Cycle: 1, Day: true}); slices.Contains(got, "A scream at dawn.") {
		t.Errorf("deleted story still listed: %v", got)
	}

	if err := setWinner(gameID, engine.WinVillage); err != nil {
		t.Fatalf("setWinner: %v", err)
	}
	games, err := getGames()
	if err != nil || len(games) != 1 || games[0].Winner != engine.WinVillage || games[0].Capacity != 3 {
		t.Errorf("getGames = %+v, %v", games, err)
	}

	if err := deleteGame(gameID); err != nil {
		t.Fatalf("deleteGame: %v", err)
	}
	if got := lines(historyView{Over: true}); len(got) != 0 {
		t.Errorf("history survived deleteGame: %v", got)
	}
}

func TestSeats(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.cleanup()

	if err := insertGame("g", 2); err != nil {
		t.Fatalf("insertGame: %v", err)
	}
	if err := insertSeat("g", "Alice", "c0ffee00"); err != nil {
		t.Fatalf("insertSeat: %v", err)
	}
	if err := insertSeat("g", "Alice", "ffffffff"); err == nil {
		t.Error("a name may hold one seat per game")
	}
	code, err := getSeatCode("g", "Alice")
	if err != nil || code != "c0ffee00" {
		t.Errorf("getSeatCode = %q, %v", code, err)
	}
	if err := deleteSeat("g", "Alice"); err != nil {
		t.Fatalf("deleteSeat: %v", err)
	}
	if _, err := getSeatCode("g", "Alice"); err == nil {
		t.Error("seat survived deleteSeat")
	}
}

func TestInitDBIsIdempotent(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.cleanup()

	if err := initDB(); err != nil {
		t.Fatalf("second initDB: %v", err)
	}
	roles, err := getRoles()
	if err != nil {
		t.Fatalf("getRoles: %v", err)
	}
	if len(roles) != len(engine.RoleKinds()) {
		t.Errorf("expected %d roles after two inits, got %d", len(engine.RoleKinds()), len(roles))
	}
	if roles[0].Name != engine.RoleKinds()[0].String() {
		t.Errorf("roles should keep catalog order, first is %s", roles[0].Name)
	}
}
