package engine

import "slices"

// Winner announcements.
const (
	WinCult       = "The Cult has won!"
	WinTanner     = "The Tanner has won!"
	WinHoodlum    = "The Hoodlum has won!"
	WinVillage    = "The Town has won!"
	WinLoneWolf   = "The Lone Wolf has won!"
	WinWerewolves = "The Werewolves have won!"
	WinVampires   = "The Vampires have won!"
)

// CheckGameOver evaluates the win conditions in priority order and returns
// the first that holds, or "". Players killed but not yet removed from the
// roster count as dead, which is what lets a Tanner win at dawn or on the
// gallows.
func (m *Manager) CheckGameOver() string {
	g := m.game
	alive := g.Alive()
	all := func(match func(*Player) bool) bool { return !slices.ContainsFunc(alive, func(p *Player) bool { return !match(p) }) }
	activeTeam := func(t Team) func(*Player) bool {
		return func(p *Player) bool { return p.Active != nil && p.Active.Team == t }
	}

	for _, p := range alive {
		if p.Active != nil && p.Active.Team == TeamCult &&
			all(func(q *Player) bool { return q.Is(EffectCult) || q.hasActive(RoleCultLeader) }) {
			return WinCult
		}
	}
	for _, p := range g.Players {
		if p.Dead && p.hasPassive(RoleTanner) {
			return WinTanner
		}
	}
	for _, p := range alive {
		if p.hasPassive(RoleHoodlum) && len(g.HoodlumTargets) > 0 && m.allDead(g.HoodlumTargets) {
			return WinHoodlum
		}
	}
	switch {
	case all(activeTeam(TeamVillage)):
		return WinVillage
	case len(alive) == 1 && alive[0].hasActive(RoleLoneWolf):
		return WinLoneWolf
	case all(activeTeam(TeamWerewolves)):
		return WinWerewolves
	case all(activeTeam(TeamVampires)):
		return WinVampires
	}
	return ""
}

// allDead reports whether every named player is dead or gone from the roster.
func (m *Manager) allDead(names []string) bool {
	for _, name := range names {
		if p, err := m.game.Player(name); err == nil && !p.Dead {
			return false
		}
	}
	return true
}
