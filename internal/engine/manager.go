package engine

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a Manager. Every field is optional.
type Options struct {
	Notifier    Notifier
	Logger      *zerolog.Logger
	Rand        *rand.Rand
	ActivePool  []RoleKind
	PassivePool []RoleKind
	Clock       func() time.Time
}

// Manager drives one game: seating, the night loop, dawn resolution, votes
// and win conditions. It is not safe for concurrent use; callers serialize
// every call for a given game.
type Manager struct {
	game    *Game
	players *PlayerManager
	notify  Notifier
	log     zerolog.Logger
	rng     *rand.Rand
	now     func() time.Time
}

// NewManager creates a game with the given id and declared capacity.
func NewManager(id string, capacity int, opts Options) *Manager {
	m := &Manager{
		notify: opts.Notifier,
		rng:    opts.Rand,
		now:    opts.Clock,
	}
	if m.notify == nil {
		m.notify = nopNotifier{}
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if m.now == nil {
		m.now = time.Now
	}
	if opts.Logger != nil {
		m.log = opts.Logger.With().Str("game", id).Logger()
	} else {
		m.log = zerolog.Nop()
	}
	active, passive := opts.ActivePool, opts.PassivePool
	if active == nil {
		active = DefaultActivePool
	}
	if passive == nil {
		passive = DefaultPassivePool
	}
	m.game = newGame(id, capacity, active, passive)
	m.players = &PlayerManager{game: m.game, rng: m.rng, log: m.log}
	return m
}

// Game exposes the record for read access.
func (m *Manager) Game() *Game { return m.game }

// Players exposes the roster manager.
func (m *Manager) Players() *PlayerManager { return m.players }

func (m *Manager) emit(kind EventKind, to []string, payload any) {
	m.notify.Notify(Event{Kind: kind, GameID: m.game.ID, Cycle: m.game.Cycle, To: to, Payload: payload})
}

func (m *Manager) tell(p *Player, role string, text string) {
	m.emit(EventNotice, []string{p.Name}, Notice{Role: role, Text: text})
}

func (m *Manager) emitRoster() {
	m.emit(EventRoster, nil, m.Snapshot().Players)
}

// Join seats a player before the game starts.
func (m *Manager) Join(name string) error {
	if m.game.Started {
		return fmt.Errorf("game %s already started: %w", m.game.ID, ErrInvalidState)
	}
	if _, err := m.players.Add(name); err != nil {
		return err
	}
	m.emitRoster()
	return nil
}

// Unseat takes back a Join that could not be completed. Unlike Leave it
// keeps the declared capacity.
func (m *Manager) Unseat(name string) error {
	if m.game.Started {
		return fmt.Errorf("game %s already started: %w", m.game.ID, ErrInvalidState)
	}
	if err := m.players.remove(name, false); err != nil {
		return err
	}
	m.emitRoster()
	return nil
}

// Leave removes a player. Once the game is running this also drops them
// from open votes and chats and re-checks the win conditions.
func (m *Manager) Leave(name string) error {
	g := m.game
	if err := m.players.Remove(name); err != nil {
		return err
	}
	m.forget(name)
	g.PendingHunters = slices.DeleteFunc(g.PendingHunters, func(s string) bool { return s == name })
	m.emitRoster()
	if !g.Started || g.Over {
		return nil
	}
	if winner := m.CheckGameOver(); winner != "" {
		m.endGame(winner)
		return nil
	}
	m.resolveCompletedVotes()
	if !g.Day && g.Cycle > 0 {
		m.Advance()
	}
	return nil
}

// forget removes a departed player from every open vote and chat. A team
// vote that loses its initiator passes to the next waiting pack member.
func (m *Manager) forget(name string) {
	g := m.game
	for _, v := range g.Votes {
		v.Voters = slices.DeleteFunc(v.Voters, func(s string) bool { return s == name })
		v.Votees = slices.DeleteFunc(v.Votees, func(s string) bool { return s == name })
		delete(v.ballot, name)
		for voter, b := range v.ballot {
			if slices.Contains(b, name) {
				delete(v.ballot, voter)
			}
		}
		if v.Kind != VoteLynch && len(v.Voters) == 0 {
			for _, p := range g.Players {
				if !p.Dead && p.Active != nil && p.Active.Pending == PendingGroup && teamOfVote(v.Kind) == p.Active.Team {
					v.Voters = []string{p.Name}
					break
				}
			}
		}
	}
	for _, c := range g.Chats {
		c.Members = slices.DeleteFunc(c.Members, func(s string) bool { return s == name })
	}
}

func teamOfVote(k VoteKind) Team {
	if k == VoteVampire {
		return TeamVampires
	}
	return TeamWerewolves
}

func (m *Manager) resolveCompletedVotes() {
	for _, v := range m.sortedVotes() {
		if !v.Resolved && len(v.Voters) > 0 && v.IsComplete() {
			m.resolveVote(v)
		}
	}
}

func (m *Manager) sortedVotes() []*Vote {
	votes := make([]*Vote, 0, len(m.game.Votes))
	for _, v := range m.game.Votes {
		votes = append(votes, v)
	}
	slices.SortFunc(votes, func(a, b *Vote) int { return cmp.Compare(a.ID, b.ID) })
	return votes
}

// Start deals the roles. The roster must be full.
func (m *Manager) Start() error {
	g := m.game
	if g.Started {
		return fmt.Errorf("game %s already started: %w", g.ID, ErrInvalidState)
	}
	if len(g.Players) == 0 || len(g.Players) < g.Capacity {
		return fmt.Errorf("game %s has %d of %d players: %w", g.ID, len(g.Players), g.Capacity, ErrInvalidState)
	}
	if err := m.players.AssignRoles(); err != nil {
		return err
	}
	g.Started = true
	m.log.Info().Int("players", len(g.Players)).Msg("game started")
	for _, p := range g.Players {
		m.emit(EventRolesAssigned, []string{p.Name}, p.Assignment())
	}
	return nil
}

// MarkReady flags a player as ready to sleep. When every living player is
// ready the night begins and MarkReady returns true; the caller then runs
// Advance, after whatever settling delay it wants.
func (m *Manager) MarkReady(name string) (bool, error) {
	g := m.game
	p, err := g.Player(name)
	if err != nil {
		return false, err
	}
	switch {
	case !g.Started:
		return false, fmt.Errorf("game %s has not started: %w", g.ID, ErrInvalidState)
	case g.Over:
		return false, fmt.Errorf("game %s is over: %w", g.ID, ErrInvalidState)
	case g.Cycle > 0 && !g.Day:
		return false, fmt.Errorf("night %d in progress: %w", g.Cycle, ErrInvalidState)
	case len(g.PendingHunters) > 0:
		return false, fmt.Errorf("waiting for the Hunter: %w", ErrInvalidState)
	}
	p.Ready = true
	m.emitRoster()
	for _, q := range g.Alive() {
		if !q.Ready {
			return false, nil
		}
	}
	m.BeginNight()
	return true, nil
}

// BeginNight applies the night transition and announces it.
func (m *Manager) BeginNight() {
	m.applyNight()
	m.log.Info().Int("cycle", m.game.Cycle).Msg("night begins")
	m.emit(EventNightBegin, nil, nil)
}

func (m *Manager) applyNight() {
	g := m.game
	g.Day = false
	for _, p := range g.Players {
		if p.Dead {
			continue
		}
		p.Ready = false
		p.Effects.clearTransient()
		p.Active.sleep()
		p.Passive.sleep()
		if p.hasPassive(RoleToughGuy) && p.deathCycle != 0 && p.deathCycle == g.Cycle+1 {
			p.kill()
			m.log.Info().Str("player", p.Name).Msg("tough guy succumbs to his wounds")
		}
	}
	if g.DiseasedKilled {
		for _, p := range m.players.Werewolves() {
			p.Active.finish()
		}
		g.DiseasedKilled = false
		m.log.Info().Msg("the pack is sick and skips the hunt")
	}
	// Ballots nobody finished are dropped with the day.
	for id := range g.Votes {
		delete(g.Votes, id)
	}
	g.Cycle++
}

func (m *Manager) applyDay() {
	g := m.game
	g.Day = true
	for i, p := range g.Players {
		p.Ready = false
		m.players.ResolveEffects(i)
		for _, r := range []*Role{p.Active, p.Passive} {
			if r.Answer == AnsweredNo {
				r.Answer = Unanswered
			}
		}
	}
	winner := m.settleDeaths()

	summary := DaySummary{Troublemaker: g.TroublemakerNight == g.Cycle}
	for _, p := range g.Players {
		switch {
		case p.Dead:
			summary.Dead = append(summary.Dead, p.Name)
		case p.Is(EffectHagged):
			summary.Hagged = append(summary.Hagged, p.Name)
		case p.Is(EffectSilenced):
			summary.Silenced = append(summary.Silenced, p.Name)
		}
	}
	m.log.Info().Int("cycle", g.Cycle).Strs("dead", summary.Dead).Msg("day begins")

	if winner != "" {
		m.emit(EventDayBegin, nil, summary)
		m.endGame(winner)
		return
	}

	living := names(g.Alive())
	chat := newChat(ChatDay, g.Cycle, living)
	g.Chats[chat.ID] = chat
	maxVotees := 1
	if summary.Troublemaker {
		maxVotees = 2
	}
	vote := newVote(VoteLynch, g.Cycle, living, slices.Clone(living), maxVotees)
	g.Votes[vote.ID] = vote
	summary.ChatID, summary.LynchVoteID = chat.ID, vote.ID

	m.bury()
	m.emit(EventDayBegin, nil, summary)
	m.promptHunters()
}

// settleDeaths applies the rules that follow any death: sweethearts die
// together and dead Hunters are owed a shot. It returns the winner, if any.
func (m *Manager) settleDeaths() string {
	g := m.game
	if slices.ContainsFunc(g.Players, func(p *Player) bool { return p.Dead && p.Is(EffectCupided) }) {
		for _, p := range g.Players {
			if p.Is(EffectCupided) && !p.Dead {
				p.kill()
				m.log.Info().Str("player", p.Name).Msg("sweetheart dies of a broken heart")
			}
		}
	}
	for _, p := range g.Players {
		if p.Dead && p.hasPassive(RoleHunter) && !slices.Contains(g.PendingHunters, p.Name) {
			g.PendingHunters = append(g.PendingHunters, p.Name)
		}
	}
	return m.CheckGameOver()
}

// bury removes the dead from the roster and from every open vote and chat.
func (m *Manager) bury() []string {
	gone := m.players.removeDead()
	for _, name := range gone {
		m.forget(name)
	}
	return gone
}

func (m *Manager) promptHunters() {
	g := m.game
	if g.Over {
		g.PendingHunters = nil
		return
	}
	for _, h := range g.PendingHunters {
		m.emit(EventHunterRevenge, []string{h}, HunterPrompt{Hunter: h, Targets: names(g.Alive())})
	}
}

// CastVote records a ballot and resolves the decision once it is complete.
func (m *Manager) CastVote(voteID, voter string, votees []string) error {
	g := m.game
	v, err := g.Vote(voteID)
	if err != nil {
		return err
	}
	weight := 1
	if p, err := g.Player(voter); err == nil && p.hasPassive(RoleMayor) {
		weight = 2
	}
	if err := v.SetVote(voter, weight, votees); err != nil {
		return err
	}
	var to []string
	if v.Kind != VoteLynch {
		to = v.Voters
	}
	m.emit(EventVoteUpdate, to, VoteState{
		VoteID:   v.ID,
		Kind:     v.Kind.String(),
		Ballots:  v.Ballots(),
		Tally:    v.Tally(),
		Complete: v.IsComplete(),
	})
	if v.IsComplete() {
		m.resolveVote(v)
	}
	return nil
}

func (m *Manager) resolveVote(v *Vote) {
	v.Resolved = true
	delete(m.game.Votes, v.ID)
	if v.Kind == VoteLynch {
		m.resolveLynch(v)
		return
	}
	m.resolvePack(v)
}

func (m *Manager) resolveLynch(v *Vote) {
	g := m.game
	ranking := v.Ranking()
	if len(ranking) == 0 {
		return
	}
	top, err := g.Player(ranking[0])
	if err != nil {
		return
	}
	if top.hasPassive(RolePrince) {
		reason := top.Name + " is the Prince and cannot be lynched!"
		m.log.Info().Str("player", top.Name).Msg("lynch cancelled by the prince")
		m.emit(EventLynchResult, nil, LynchResult{Cancelled: true, Reason: reason})
		return
	}

	top.kill()
	g.Lynched[g.Cycle] = top
	eliminated := []string{top.Name}

	if v.MaxVotees > 1 && len(ranking) > 1 && v.Tally()[ranking[1]] > 0 {
		if second, err := g.Player(ranking[1]); err == nil && !second.hasPassive(RolePrince) {
			second.kill()
			eliminated = append(eliminated, second.Name)
		}
	}
	vamped := v.VampedVotee(func(name string) bool {
		p, err := g.Player(name)
		return err == nil && p.Is(EffectVampired)
	})
	if vamped != "" && !slices.Contains(eliminated, vamped) {
		if p, err := g.Player(vamped); err == nil {
			p.kill()
			eliminated = append(eliminated, vamped)
		}
	}
	m.log.Info().Strs("eliminated", eliminated).Msg("lynch resolved")

	winner := m.settleDeaths()
	for _, p := range g.Players {
		if p.Dead && !slices.Contains(eliminated, p.Name) {
			eliminated = append(eliminated, p.Name)
		}
	}
	m.bury()
	m.emit(EventLynchResult, nil, LynchResult{Eliminated: eliminated})
	if winner != "" {
		m.endGame(winner)
		return
	}
	m.promptHunters()
}

// HunterShot spends a dead Hunter's revenge. An empty target passes.
func (m *Manager) HunterShot(hunter, target string) error {
	g := m.game
	i := slices.Index(g.PendingHunters, hunter)
	if i < 0 {
		return fmt.Errorf("%s has no shot to take: %w", hunter, ErrInvalidState)
	}
	var victim *Player
	if target != "" {
		p, err := g.Player(target)
		if err != nil {
			return err
		}
		if p.Dead {
			return fmt.Errorf("%s is already dead: %w", target, ErrInvalidState)
		}
		victim = p
	}
	g.PendingHunters = slices.Delete(g.PendingHunters, i, i+1)
	if victim == nil {
		m.emit(EventNotice, nil, Notice{Role: RoleHunter.String(), Text: hunter + " lowers the rifle."})
		return nil
	}

	victim.kill()
	m.log.Info().Str("hunter", hunter).Str("victim", victim.Name).Msg("hunter takes revenge")
	winner := m.settleDeaths()
	gone := m.bury()
	m.emit(EventLynchResult, nil, LynchResult{Eliminated: gone, Reason: hunter + " took " + victim.Name + " down with them."})
	if winner != "" {
		m.endGame(winner)
		return nil
	}
	m.resolveCompletedVotes()
	m.promptHunters()
	return nil
}

// PostChat appends a line to a chat.
func (m *Manager) PostChat(chatID, sender, text string) error {
	c, err := m.game.Chat(chatID)
	if err != nil {
		return err
	}
	if err := c.Post(sender, text, m.now()); err != nil {
		return err
	}
	var to []string
	if c.Kind != ChatDay {
		to = c.Members
	}
	m.emit(EventChatUpdate, to, ChatTranscript{
		ChatID:   c.ID,
		Kind:     c.Kind.String(),
		Messages: slices.Clone(c.Messages),
	})
	return nil
}

func (m *Manager) endGame(winner string) {
	g := m.game
	g.Over = true
	g.Winner = winner
	g.PendingHunters = nil
	m.log.Info().Str("winner", winner).Msg("game over")
	m.emit(EventGameOver, nil, GameOver{Winner: winner})
}
