package engine

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/rs/zerolog"
)

// roleRef points at one role of one player for the duration of a call.
type roleRef struct {
	player *Player
	slot   Slot
}

func (r roleRef) role() *Role { return r.player.Role(r.slot) }

// PlayerManager owns the roster: seating, dealing roles, and turning the
// effect ledger into deaths, revivals and transformations at dawn.
type PlayerManager struct {
	game *Game
	rng  *rand.Rand
	log  zerolog.Logger
}

// Add seats a new player.
func (pm *PlayerManager) Add(name string) (*Player, error) {
	g := pm.game
	if name == "" {
		return nil, fmt.Errorf("empty player name: %w", ErrInvalidState)
	}
	if g.index(name) >= 0 {
		return nil, fmt.Errorf("name %q is taken: %w", name, ErrInvalidState)
	}
	if len(g.Players) >= g.Capacity {
		return nil, fmt.Errorf("game %s is full (%d players): %w", g.ID, g.Capacity, ErrCapacity)
	}
	p := &Player{Name: name}
	g.Players = append(g.Players, p)
	pm.log.Info().Str("player", name).Int("seated", len(g.Players)).Msg("player joined")
	return p, nil
}

// Remove drops a player from the roster and shrinks the declared capacity.
func (pm *PlayerManager) Remove(name string) error {
	return pm.remove(name, true)
}

func (pm *PlayerManager) remove(name string, shrink bool) error {
	g := pm.game
	i := g.index(name)
	if i < 0 {
		return fmt.Errorf("player %q in game %s: %w", name, g.ID, ErrNotFound)
	}
	g.Players = slices.Delete(g.Players, i, i+1)
	if shrink && g.Capacity > 0 {
		g.Capacity--
	}
	pm.log.Info().Str("player", name).Int("capacity", g.Capacity).Msg("player removed")
	return nil
}

// AssignRoles deals one active and one passive role to every player,
// sampling each pool without replacement.
func (pm *PlayerManager) AssignRoles() error {
	g := pm.game
	n := len(g.Players)
	if len(g.ActivePool) < n || len(g.PassivePool) < n {
		return fmt.Errorf("pools hold %d active and %d passive roles for %d players: %w",
			len(g.ActivePool), len(g.PassivePool), n, ErrCapacity)
	}
	for _, p := range g.Players {
		p.Active = newRole(pm.draw(&g.ActivePool))
		p.Passive = newRole(pm.draw(&g.PassivePool))
		pm.log.Info().Str("player", p.Name).
			Stringer("active", p.Active.Kind).
			Stringer("passive", p.Passive.Kind).
			Msg("roles dealt")
	}
	return nil
}

func (pm *PlayerManager) draw(pool *[]RoleKind) RoleKind {
	i := pm.rng.IntN(len(*pool))
	k := (*pool)[i]
	*pool = slices.Delete(*pool, i, i+1)
	return k
}

// ResolveEffects applies the ledger of the player at roster index i. The
// order matters: heals come after kills so they can cancel them.
func (pm *PlayerManager) ResolveEffects(i int) {
	g := pm.game
	p := g.Players[i]

	if p.Is(EffectHuntressed) || p.Is(EffectWitchKilled) {
		p.kill()
	}

	if p.Is(EffectWolved) {
		p.kill()
		if p.hasPassive(RoleCursed) {
			p.revive()
			p.Active = newRole(RoleWerewolf)
			pm.log.Info().Str("player", p.Name).Msg("cursed player turned into a werewolf")
		}
		if p.hasPassive(RoleToughGuy) && p.deathCycle == 0 {
			p.revive()
			p.deathCycle = g.Cycle + 1
			pm.log.Info().Str("player", p.Name).Int("dies_on", p.deathCycle).Msg("tough guy shrugs off the bite")
		}
		if p.IsVampire() {
			p.revive()
		}
		if p.hasPassive(RoleDiseased) && p.Dead {
			g.DiseasedKilled = true
		}
	}

	healed := p.Is(EffectHealed) || p.Is(EffectWitchHealed)
	if healed || p.Is(EffectPriested) {
		// A blessing is spent only when it is the thing that saves the player.
		if p.Dead && !healed {
			p.Effects.Remove(EffectPriested)
		}
		p.revive()
	}

	if p.hasPassive(RoleMadBomber) && p.Dead {
		prev, next := g.neighbors(i)
		prev.kill()
		next.kill()
		pm.log.Info().Str("player", p.Name).Str("left", prev.Name).Str("right", next.Name).Msg("mad bomber explodes")
	}

	if p.Dead && p.Is(EffectDoppelganged) {
		for _, d := range g.Players {
			if d != p && d.hasPassive(RoleDoppelganger) {
				d.Active = newRole(p.Active.Kind)
				d.Active.State = Awoken
				pm.log.Info().Str("player", d.Name).Stringer("role", d.Active.Kind).Msg("doppelganger takes over a role")
			}
		}
	}
}

// Wakeables lists every role of a living player that takes part in the
// night loop.
func (pm *PlayerManager) Wakeables() []roleRef {
	var out []roleRef
	for _, p := range pm.game.Players {
		if p.Dead {
			continue
		}
		if p.Active != nil && p.Active.Kind.Wakes() {
			out = append(out, roleRef{p, SlotActive})
		}
		if p.Passive != nil && p.Passive.Kind.Wakes() {
			out = append(out, roleRef{p, SlotPassive})
		}
	}
	return out
}

// Werewolves returns the living players whose active role hunts with the pack.
func (pm *PlayerManager) Werewolves() []*Player {
	return pm.living(func(p *Player) bool { return p.IsWolf() })
}

// Vampires returns the living vampires.
func (pm *PlayerManager) Vampires() []*Player {
	return pm.living(func(p *Player) bool { return p.IsVampire() })
}

func (pm *PlayerManager) living(match func(*Player) bool) []*Player {
	var out []*Player
	for _, p := range pm.game.Players {
		if !p.Dead && match(p) {
			out = append(out, p)
		}
	}
	return out
}

// removeDead drops every dead player from the roster and returns their names.
// Capacity is left alone: deaths are not departures.
func (pm *PlayerManager) removeDead() []string {
	g := pm.game
	var gone []string
	g.Players = slices.DeleteFunc(g.Players, func(p *Player) bool {
		if p.Dead {
			gone = append(gone, p.Name)
		}
		return p.Dead
	})
	return gone
}
