package engine

import (
	"maps"
	"slices"
)

// PlayerView is a roster entry as seen from outside. Roles stay secret.
type PlayerView struct {
	Name  string `json:"name"`
	Alive bool   `json:"alive"`
	Ready bool   `json:"ready"`
}

// VoteView exposes an open vote.
type VoteView struct {
	ID       string              `json:"id"`
	Kind     string              `json:"kind"`
	Cycle    int                 `json:"cycle"`
	Voters   []string            `json:"voters"`
	Votees   []string            `json:"votees"`
	Ballots  map[string][]string `json:"ballots"`
	Tally    map[string]int      `json:"tally"`
	Complete bool                `json:"complete"`
}

// ChatView exposes a chat and its transcript.
type ChatView struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Cycle    int       `json:"cycle"`
	Members  []string  `json:"members"`
	Messages []Message `json:"messages"`
}

// Snapshot is a copy of the game state for inspection.
type Snapshot struct {
	ID          string         `json:"id"`
	Capacity    int            `json:"capacity"`
	Cycle       int            `json:"cycle"`
	Day         bool           `json:"day"`
	Started     bool           `json:"started"`
	Over        bool           `json:"over"`
	Winner      string         `json:"winner,omitempty"`
	Players     []PlayerView   `json:"players"`
	ActivePool  []string       `json:"active_pool"`
	PassivePool []string       `json:"passive_pool"`
	Lynched     map[int]string `json:"lynched"`
	Votes       []VoteView     `json:"votes"`
	Chats       []ChatView     `json:"chats"`
}

// Snapshot copies the current state.
func (m *Manager) Snapshot() Snapshot {
	g := m.game
	s := Snapshot{
		ID:          g.ID,
		Capacity:    g.Capacity,
		Cycle:       g.Cycle,
		Day:         g.Day,
		Started:     g.Started,
		Over:        g.Over,
		Winner:      g.Winner,
		Players:     make([]PlayerView, 0, len(g.Players)),
		ActivePool:  kindNames(g.ActivePool),
		PassivePool: kindNames(g.PassivePool),
		Lynched:     make(map[int]string, len(g.Lynched)),
	}
	for _, p := range g.Players {
		s.Players = append(s.Players, PlayerView{Name: p.Name, Alive: !p.Dead, Ready: p.Ready})
	}
	for cycle, p := range g.Lynched {
		s.Lynched[cycle] = p.Name
	}
	for _, v := range m.sortedVotes() {
		s.Votes = append(s.Votes, VoteView{
			ID:       v.ID,
			Kind:     v.Kind.String(),
			Cycle:    v.Cycle,
			Voters:   slices.Clone(v.Voters),
			Votees:   slices.Clone(v.Votees),
			Ballots:  v.Ballots(),
			Tally:    v.Tally(),
			Complete: v.IsComplete(),
		})
	}
	for _, id := range slices.Sorted(maps.Keys(g.Chats)) {
		c := g.Chats[id]
		s.Chats = append(s.Chats, ChatView{
			ID:       c.ID,
			Kind:     c.Kind.String(),
			Cycle:    c.Cycle,
			Members:  slices.Clone(c.Members),
			Messages: slices.Clone(c.Messages),
		})
	}
	return s
}

func kindNames(kinds []RoleKind) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k.String())
	}
	return out
}
