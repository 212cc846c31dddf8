package engine

import (
	"fmt"
	"slices"
)

// Game is the mutable record of one session. Only the Manager that owns it
// may touch it, and callers must serialize access per game.
type Game struct {
	ID       string
	Capacity int
	Cycle    int
	Day      bool
	Started  bool
	Over     bool
	Winner   string

	// DiseasedKilled makes the pack skip its next hunt.
	DiseasedKilled bool
	// TroublemakerNight is the cycle the Troublemaker acted on, zero if never.
	TroublemakerNight int

	Players     []*Player
	ActivePool  []RoleKind
	PassivePool []RoleKind

	// Lynched maps a cycle to the player lynched that day.
	Lynched map[int]*Player
	Votes   map[string]*Vote
	Chats   map[string]*Chat

	// HoodlumTargets lists the names marked by the Hoodlum, kept after the
	// marked players leave the roster.
	HoodlumTargets []string
	// PendingHunters lists dead Hunters still owed a revenge shot.
	PendingHunters []string
}

func newGame(id string, capacity int, active, passive []RoleKind) *Game {
	return &Game{
		ID:          id,
		Capacity:    capacity,
		ActivePool:  slices.Clone(active),
		PassivePool: slices.Clone(passive),
		Lynched:     make(map[int]*Player),
		Votes:       make(map[string]*Vote),
		Chats:       make(map[string]*Chat),
	}
}

// Player looks a player up by name.
func (g *Game) Player(name string) (*Player, error) {
	if i := g.index(name); i >= 0 {
		return g.Players[i], nil
	}
	return nil, fmt.Errorf("player %q in game %s: %w", name, g.ID, ErrNotFound)
}

func (g *Game) index(name string) int {
	return slices.IndexFunc(g.Players, func(p *Player) bool { return p.Name == name })
}

// Alive returns the living players in roster order.
func (g *Game) Alive() []*Player {
	var out []*Player
	for _, p := range g.Players {
		if !p.Dead {
			out = append(out, p)
		}
	}
	return out
}

// Vote looks a vote up by id.
func (g *Game) Vote(id string) (*Vote, error) {
	if v, ok := g.Votes[id]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("vote %q in game %s: %w", id, g.ID, ErrNotFound)
}

// Chat looks a chat up by id.
func (g *Game) Chat(id string) (*Chat, error) {
	if c, ok := g.Chats[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("chat %q in game %s: %w", id, g.ID, ErrNotFound)
}

// lastLynched is the player lynched on the day before the current night.
func (g *Game) lastLynched() *Player {
	return g.Lynched[g.Cycle-1]
}

// neighbors returns the roster entries on either side of index i, wrapping
// around both ends.
func (g *Game) neighbors(i int) (prev, next *Player) {
	n := len(g.Players)
	return g.Players[(i-1+n)%n], g.Players[(i+1)%n]
}

func names(players []*Player) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		out = append(out, p.Name)
	}
	return out
}
