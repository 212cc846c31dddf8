package engine

import (
	"fmt"
	"strings"
)

// ability holds the bespoke behavior of a role kind. Any nil field falls back
// to the generic handling driven by the role's catalog entry.
type ability struct {
	// ask decides whether the gating question may be asked tonight.
	ask func(m *Manager, p *Player, r *Role) bool
	// wake produces the narrative of a role that does not target.
	wake func(m *Manager, p *Player, r *Role) string
	// target applies a target selection. A nil entry in targets is a skipped
	// positional slot. It must not change state when it returns an error
	// other than ErrIllegalAbility.
	target func(m *Manager, p *Player, r *Role, targets []*Player) (string, error)
}

var abilities [roleKindCount]ability

func init() {
	abilities[RoleAlfaWolf] = ability{ask: alfaWolfAsk, wake: alfaWolfWake}
	abilities[RoleApprenticeSeer] = ability{wake: apprenticeSeerWake}
	abilities[RoleDrunk] = ability{wake: drunkWake}
	abilities[RoleMason] = ability{wake: masonWake}
	abilities[RoleMinion] = ability{wake: minionWake}
	abilities[RolePI] = ability{wake: piWake}
	abilities[RoleTroublemaker] = ability{wake: troublemakerWake}
	abilities[RoleRevealer] = ability{target: revealerTarget}
	abilities[RoleWitch] = ability{target: witchTarget}
	abilities[RoleHoodlum] = ability{target: hoodlumTarget}
}

// applyDefault tags every target with the role's effect and reports the
// role's check, if it has one.
func applyDefault(m *Manager, p *Player, r *Role, targets []*Player) (string, error) {
	spec := catalog[r.Kind]
	if spec.effect == EffectNone && spec.check == checkNone {
		return "", fmt.Errorf("%s has neither effect nor check: %w", r.Kind, ErrIllegalAbility)
	}
	var lines []string
	for _, t := range targets {
		if t == nil {
			continue
		}
		if spec.effect != EffectNone {
			t.Effects.Add(spec.effect)
			lines = append(lines, fmt.Sprintf("%s is now %s.", t.Name, spec.effect))
		}
		if spec.check != checkNone {
			text, err := check(spec.check, t)
			if err != nil {
				return "", fmt.Errorf("%s: %w", r.Kind, err)
			}
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func check(kind checkKind, t *Player) (string, error) {
	switch kind {
	case checkWerewolf:
		if t.IsWolf() || t.hasPassive(RoleLycan) {
			return t.Name + " IS a Werewolf!", nil
		}
		return t.Name + " is NOT a Werewolf.", nil
	case checkAura:
		if t.IsVampire() || t.hasActive(RoleCultLeader) {
			return t.Name + " IS a Vampire or the Cult Leader!", nil
		}
		return t.Name + " is neither a Vampire nor the Cult Leader.", nil
	case checkSeer:
		if t.hasActive(RoleSeer) {
			return t.Name + " IS the Seer!", nil
		}
		return t.Name + " is NOT the Seer.", nil
	case checkRole:
		return fmt.Sprintf("%s is a %s.", t.Name, t.Active.Name()), nil
	}
	return "", fmt.Errorf("check %d: %w", kind, ErrIllegalAbility)
}

func alfaWolfAsk(m *Manager, _ *Player, _ *Role) bool {
	last := m.game.lastLynched()
	return m.game.Cycle > 1 && last != nil && last.IsWolf()
}

// alfaWolfWake spends the answer; the question is asked afresh on the next
// night that qualifies.
func alfaWolfWake(m *Manager, _ *Player, r *Role) string {
	yes := r.Answer == AnsweredYes
	r.Answer = Unanswered
	if !yes {
		return doesNothing(r.Kind)
	}
	for _, t := range m.game.Players {
		if !t.Dead && t.Is(EffectWolved) && !t.IsWolf() {
			t.Active = newRole(RoleWerewolf)
			t.Active.State = Awoken
			t.Effects.Remove(EffectWolved)
			m.log.Info().Str("player", t.Name).Msg("alfa wolf turned the victim")
			return t.Name + " is now a Werewolf!"
		}
	}
	return doesNothing(r.Kind)
}

func apprenticeSeerWake(m *Manager, p *Player, r *Role) string {
	for _, q := range m.game.Players {
		if !q.Dead && q.hasActive(RoleSeer) {
			return doesNothing(r.Kind)
		}
	}
	p.Active = newRole(RoleSeer)
	m.log.Info().Str("player", p.Name).Msg("apprentice seer promoted")
	return "The Seer is gone. You are the Seer from the next night on!"
}

func drunkWake(m *Manager, p *Player, r *Role) string {
	g := m.game
	if g.Cycle != 2 || len(g.ActivePool) == 0 {
		return doesNothing(r.Kind)
	}
	k := m.players.draw(&g.ActivePool)
	p.Active = newRole(k)
	m.log.Info().Str("player", p.Name).Stringer("role", k).Msg("drunk sobered up")
	return fmt.Sprintf("The Drunk will become a %s on the next night!", k)
}

func masonWake(m *Manager, _ *Player, r *Role) string {
	if m.game.Cycle != 1 {
		return doesNothing(r.Kind)
	}
	var masons []string
	for _, q := range m.game.Alive() {
		if q.hasPassive(RoleMason) {
			masons = append(masons, q.Name)
		}
	}
	return "The Masons are: " + strings.Join(masons, ", ") + "."
}

func minionWake(m *Manager, _ *Player, r *Role) string {
	if m.game.Cycle != 1 {
		return doesNothing(r.Kind)
	}
	wolves := names(m.players.Werewolves())
	if len(wolves) == 0 {
		return "There are no Werewolves."
	}
	return "The Werewolves are: " + strings.Join(wolves, ", ") + "."
}

func piWake(m *Manager, p *Player, _ *Role) string {
	g := m.game
	prev, next := g.neighbors(g.index(p.Name))
	if prev.IsWolf() || next.IsWolf() {
		return fmt.Sprintf("Either %s or %s is a Werewolf.", prev.Name, next.Name)
	}
	return fmt.Sprintf("%s and %s are not Werewolves.", prev.Name, next.Name)
}

func troublemakerWake(m *Manager, _ *Player, r *Role) string {
	if r.Used || r.Answer != AnsweredYes {
		return doesNothing(r.Kind)
	}
	r.Used = true
	m.game.TroublemakerNight = m.game.Cycle
	return "Trouble is brewing. Two players will be lynched tomorrow!"
}

// revealerTarget kills a werewolf target, or the Revealer himself when the
// target is anything else. A successful shot may be taken again.
func revealerTarget(m *Manager, p *Player, r *Role, targets []*Player) (string, error) {
	t := targets[0]
	if t.IsWolf() {
		t.kill()
		r.Used = false
		r.Answer = Unanswered
		return t.Name + " was a Werewolf and has been revealed!", nil
	}
	p.kill()
	r.Used = true
	return t.Name + " was not a Werewolf. The Revealer pays with his life.", nil
}

// witchTarget heals the first target and poisons the second. Each potion
// works once per game.
func witchTarget(m *Manager, _ *Player, r *Role, targets []*Player) (string, error) {
	var heal, kill *Player
	heal = targets[0]
	if len(targets) > 1 {
		kill = targets[1]
	}
	if heal != nil && r.Used {
		return "", fmt.Errorf("the healing potion is spent: %w", ErrInvalidState)
	}
	if kill != nil && r.KillUsed {
		return "", fmt.Errorf("the killing potion is spent: %w", ErrInvalidState)
	}
	var lines []string
	if heal != nil {
		heal.Effects.Add(EffectWitchHealed)
		r.Used = true
		lines = append(lines, heal.Name+" will be healed.")
	}
	if kill != nil {
		kill.Effects.Add(EffectWitchKilled)
		r.KillUsed = true
		lines = append(lines, kill.Name+" will be poisoned.")
	}
	return strings.Join(lines, "\n"), nil
}

func hoodlumTarget(m *Manager, p *Player, r *Role, targets []*Player) (string, error) {
	text, err := applyDefault(m, p, r, targets)
	if err != nil {
		return "", err
	}
	for _, t := range targets {
		if t != nil {
			m.game.HoodlumTargets = append(m.game.HoodlumTargets, t.Name)
		}
	}
	return text, nil
}
