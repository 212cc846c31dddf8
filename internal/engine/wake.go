package engine

import (
	"errors"
	"fmt"
	"slices"
)

// Advance runs the wake-selection loop. It returns as soon as a role is
// waiting for input, or after starting the day once nobody is left to wake.
func (m *Manager) Advance() {
	g := m.game
	for g.Started && !g.Over && !g.Day && g.Cycle > 0 {
		universe := m.players.Wakeables()
		if slices.ContainsFunc(universe, func(r roleRef) bool { return r.role().State == Waking }) {
			return
		}
		if pack := unawoken(m.players.Werewolves()); len(pack) > 0 {
			m.wakeGroup(TeamWerewolves, pack)
			continue
		}
		if pack := unawoken(m.players.Vampires()); len(pack) > 0 {
			m.wakeGroup(TeamVampires, pack)
			continue
		}
		var idle []roleRef
		for _, r := range universe {
			if r.role().State == Unawoken {
				idle = append(idle, r)
			}
		}
		if len(idle) == 0 {
			m.applyDay()
			return
		}
		m.wakeRole(idle[m.rng.IntN(len(idle))])
	}
}

func unawoken(players []*Player) []*Player {
	var out []*Player
	for _, p := range players {
		if p.Active.State == Unawoken {
			out = append(out, p)
		}
	}
	return out
}

// wakeGroup wakes a whole team at once. Cult members among them get the
// cult notice; the rest share one chat and one vote led by the first of
// them in roster order.
func (m *Manager) wakeGroup(team Team, members []*Player) {
	g := m.game
	var acting []*Player
	for _, p := range members {
		if p.Is(EffectCult) {
			m.divertToCult(roleRef{p, SlotActive})
			continue
		}
		acting = append(acting, p)
	}
	if len(acting) == 0 {
		return
	}

	kind, chatKind, count := VoteWerewolf, ChatWerewolves, 1
	if team == TeamVampires {
		kind, chatKind = VoteVampire, ChatVampires
	} else if last := g.lastLynched(); last != nil && last.hasActive(RoleWolfCub) {
		count = 2
	}

	crew := names(acting)
	chat := newChat(chatKind, g.Cycle, crew)
	g.Chats[chat.ID] = chat
	vote := newVote(kind, g.Cycle, crew[:1], names(g.Alive()), count)
	g.Votes[vote.ID] = vote
	for _, p := range acting {
		p.Active.wake(PendingGroup)
	}
	m.log.Info().Stringer("team", team).Strs("members", crew).Int("targets", count).Msg("team wakes")
	m.emit(EventWakeGroup, crew, GroupWake{
		Team:        team.String(),
		Members:     crew,
		Initiator:   crew[0],
		ChatID:      chat.ID,
		VoteID:      vote.ID,
		TargetCount: count,
	})
}

// resolvePack applies a finished team vote and sends the team back to sleep.
func (m *Manager) resolvePack(v *Vote) {
	team, effect := TeamWerewolves, EffectWolved
	if v.Kind == VoteVampire {
		team, effect = TeamVampires, EffectVampired
	}
	targets, _ := v.Ballot(v.Voters[0])
	for _, name := range targets {
		if p, err := m.game.Player(name); err == nil {
			p.Effects.Add(effect)
		}
	}
	var crew []string
	for _, p := range m.game.Players {
		if p.Active != nil && p.Active.Pending == PendingGroup && p.Active.Team == team {
			p.Active.finish()
			crew = append(crew, p.Name)
		}
	}
	m.log.Info().Stringer("team", team).Strs("targets", targets).Msg("team chose")
	m.emit(EventNotice, crew, Notice{Text: fmt.Sprintf("The %s have chosen %v.", team, targets)})
	m.Advance()
}

func (m *Manager) divertToCult(ref roleRef) {
	ref.role().wake(PendingCult)
	m.tell(ref.player, ref.role().Name(), "You belong to the Cult now. Your ability has no effect.")
}

// wakeRole wakes a single role: the cult notice for converts, the gating
// question if one may be asked, otherwise the ability itself.
func (m *Manager) wakeRole(ref roleRef) {
	r, p := ref.role(), ref.player
	m.log.Debug().Str("player", p.Name).Stringer("role", r.Kind).Msg("waking")
	if ref.slot == SlotActive && p.Is(EffectCult) && r.Kind != RoleCultLeader {
		m.divertToCult(ref)
		return
	}
	if r.hasQuestion() && m.canAsk(p, r) {
		r.Answer = Unanswered
		r.wake(PendingAnswer)
		m.emit(EventQuestion, []string{p.Name}, QuestionPrompt{
			Role:   r.Name(),
			Player: p.Name,
			Prompt: catalog[r.Kind].question,
		})
		return
	}
	m.invoke(ref)
}

func (m *Manager) canAsk(p *Player, r *Role) bool {
	if ask := abilities[r.Kind].ask; ask != nil {
		return ask(m, p, r)
	}
	return !r.Used && r.Answer == Unanswered
}

// exhausted reports whether a targeting role has nothing to do tonight.
func (m *Manager) exhausted(r *Role) bool {
	spec := catalog[r.Kind]
	switch {
	case r.Kind == RoleWitch:
		return r.Used && r.KillUsed
	case spec.oneShot && r.Used:
		return true
	case spec.question != "" && r.Answer != AnsweredYes:
		return true
	}
	return false
}

// invoke runs the role's ability: a target prompt for targeting roles, a
// narrative for the rest.
func (m *Manager) invoke(ref roleRef) {
	r, p := ref.role(), ref.player
	spec := catalog[r.Kind]
	if spec.targets > 0 && !m.exhausted(r) {
		r.wake(PendingTarget)
		m.emit(EventWake, []string{p.Name}, WakePrompt{
			Role:        r.Name(),
			Player:      p.Name,
			Prompt:      "Please select your target(s):",
			TargetCount: spec.targets,
			Cancelable:  spec.cancelable,
		})
		return
	}
	text := doesNothing(r.Kind)
	if wake := abilities[r.Kind].wake; wake != nil && spec.targets == 0 {
		text = wake(m, p, r)
	}
	// The narrative may have replaced the role; the new one waits for the ack.
	r = ref.role()
	r.wake(PendingAck)
	m.emit(EventWake, []string{p.Name}, WakePrompt{Role: r.Name(), Player: p.Name, Prompt: text})
}

func doesNothing(k RoleKind) string {
	return "The " + k.String() + " does nothing on this night!"
}

// findWaking returns the waking role of kind k that waits for one of the
// given pending actions. An empty player matches any holder; several
// holders of one kind can be waking together when a pack gets cult notices.
func (m *Manager) findWaking(k RoleKind, player string, pending ...Pending) (roleRef, bool) {
	for _, ref := range m.players.Wakeables() {
		if player != "" && ref.player.Name != player {
			continue
		}
		r := ref.role()
		if r.Kind == k && r.State == Waking && slices.Contains(pending, r.Pending) {
			return ref, true
		}
	}
	return roleRef{}, false
}

// SubmitTarget answers a target prompt. Names are positional for roles with
// two distinct actions (the Witch heals the first and kills the second), and
// an empty name skips that slot. A cancelable role may name nobody.
func (m *Manager) SubmitTarget(kind RoleKind, targets []string) error {
	ref, ok := m.findWaking(kind, "", PendingTarget)
	if !ok {
		return fmt.Errorf("no %s is waiting for a target: %w", kind, ErrInvalidState)
	}
	r, p := ref.role(), ref.player
	spec := catalog[kind]

	var picked []*Player
	named := 0
	for _, name := range targets {
		if name == "" {
			picked = append(picked, nil)
			continue
		}
		t, err := m.game.Player(name)
		if err != nil {
			return err
		}
		picked = append(picked, t)
		named++
	}
	switch {
	case named == 0 && spec.cancelable:
		r.finish()
		m.tell(p, r.Name(), "You stay in bed tonight.")
		m.Advance()
		return nil
	case named == 0:
		return fmt.Errorf("%s must name a target: %w", kind, ErrInvalidState)
	case len(picked) > spec.targets:
		return fmt.Errorf("%s names at most %d targets: %w", kind, spec.targets, ErrInvalidState)
	case !spec.cancelable && named != spec.targets:
		return fmt.Errorf("%s must name %d targets: %w", kind, spec.targets, ErrInvalidState)
	}

	act := abilities[kind].target
	if act == nil {
		act = applyDefault
	}
	text, err := act(m, p, r, picked)
	if err != nil && !errors.Is(err, ErrIllegalAbility) {
		return err
	}
	if spec.oneShot && err == nil && kind != RoleRevealer {
		r.Used = true
	}
	r.finish()
	if err != nil {
		m.log.Error().Err(err).Stringer("role", kind).Msg("ability misconfigured, turn skipped")
		text = doesNothing(kind)
	}
	m.log.Info().Str("player", p.Name).Stringer("role", kind).Msg("role acted")
	m.tell(p, r.Name(), text)
	m.Advance()
	return err
}

// SubmitAnswer answers a gating question for the named player's role.
func (m *Manager) SubmitAnswer(kind RoleKind, player string, yes bool) error {
	if _, err := m.game.Player(player); err != nil {
		return err
	}
	ref, ok := m.findWaking(kind, player, PendingAnswer)
	if !ok {
		return fmt.Errorf("%s's %s was not asked anything: %w", player, kind, ErrInvalidState)
	}
	r := ref.role()
	r.Answer = AnsweredNo
	if yes {
		r.Answer = AnsweredYes
	}
	m.invoke(ref)
	return nil
}

// RoleFinished acknowledges the named player's narrative or cult notice so
// the next role can wake.
func (m *Manager) RoleFinished(kind RoleKind, player string) error {
	if _, err := m.game.Player(player); err != nil {
		return err
	}
	ref, ok := m.findWaking(kind, player, PendingAck, PendingCult)
	if !ok {
		return fmt.Errorf("%s's %s is not waiting to finish: %w", player, kind, ErrInvalidState)
	}
	ref.role().finish()
	m.Advance()
	return nil
}

// Waiting lists the roles currently waiting for input.
func (m *Manager) Waiting() []WakePrompt {
	var out []WakePrompt
	for _, ref := range m.players.Wakeables() {
		if r := ref.role(); r.State == Waking {
			out = append(out, WakePrompt{Role: r.Name(), Player: ref.player.Name})
		}
	}
	return out
}

// ForceDefault resolves every waiting role as if it did nothing, drops any
// open team vote and any unclaimed Hunter shot, then continues the loop. It
// reports whether anything was waiting.
func (m *Manager) ForceDefault() bool {
	g := m.game
	forced := false
	for _, ref := range m.players.Wakeables() {
		r := ref.role()
		if r.State != Waking {
			continue
		}
		r.finish()
		forced = true
		m.tell(ref.player, r.Name(), "Time is up. "+doesNothing(r.Kind))
	}
	for id, v := range g.Votes {
		if v.Kind != VoteLynch {
			delete(g.Votes, id)
		}
	}
	if len(g.PendingHunters) > 0 {
		g.PendingHunters = nil
		forced = true
	}
	if forced {
		m.log.Warn().Msg("waiting roles timed out")
		m.Advance()
	}
	return forced
}
