package engine

import (
	"maps"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/rs/zerolog"
)

// seat describes one player of a hand-built test game.
type seat struct {
	name    string
	active  RoleKind
	passive RoleKind
}

func villager(name string) seat { return seat{name, RoleVillager, RoleVillager} }

// recorder keeps every event the engine emits.
type recorder struct {
	events []Event
}

func (r *recorder) Notify(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) all(kind EventKind) []Event {
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) last(kind EventKind) (Event, bool) {
	evs := r.all(kind)
	if len(evs) == 0 {
		return Event{}, false
	}
	return evs[len(evs)-1], true
}

// testContext wraps a started game whose roles were dealt by hand.
type testContext struct {
	t      *testing.T
	m      *Manager
	events *recorder
	logger zerolog.Logger
}

func newTestContext(t *testing.T, seats ...seat) *testContext {
	return newSeededTestContext(t, 1, seats...)
}

func newSeededTestContext(t *testing.T, seed uint64, seats ...seat) *testContext {
	t.Helper()
	ctx := &testContext{
		t:      t,
		events: &recorder{},
		logger: zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger(),
	}
	ctx.m = NewManager("test", len(seats), Options{
		Notifier: ctx.events,
		Logger:   &ctx.logger,
		Rand:     rand.New(rand.NewPCG(seed, 2)),
	})
	for _, s := range seats {
		if err := ctx.m.Join(s.name); err != nil {
			t.Fatalf("join %s: %v", s.name, err)
		}
		p := ctx.player(s.name)
		p.Active = newRole(s.active)
		p.Passive = newRole(s.passive)
	}
	ctx.m.game.Started = true
	return ctx
}

func (ctx *testContext) debug(msg string) {
	ctx.logger.Debug().Msg(msg)
}

func (ctx *testContext) player(name string) *Player {
	ctx.t.Helper()
	p, err := ctx.m.game.Player(name)
	if err != nil {
		ctx.t.Fatalf("player %s: %v", name, err)
	}
	return p
}

// startDay jumps straight to the first day without playing a night.
func (ctx *testContext) startDay() DaySummary {
	ctx.t.Helper()
	ctx.m.game.Cycle = 1
	ctx.m.applyDay()
	ev, ok := ctx.events.last(EventDayBegin)
	if !ok {
		ctx.t.Fatal("no day-begin event")
	}
	return ev.Payload.(DaySummary)
}

// startNight marks every living player ready and runs the loop until the
// first role waits for input.
func (ctx *testContext) startNight() {
	ctx.t.Helper()
	alive := ctx.m.game.Alive()
	for i, p := range alive {
		begun, err := ctx.m.MarkReady(p.Name)
		if err != nil {
			ctx.t.Fatalf("mark ready %s: %v", p.Name, err)
		}
		if begun != (i == len(alive)-1) {
			ctx.t.Fatalf("night begun after %d of %d ready players", i+1, len(alive))
		}
	}
	ctx.m.Advance()
}

// lynchVote returns the open lynch vote.
func (ctx *testContext) lynchVote() *Vote {
	ctx.t.Helper()
	for _, v := range ctx.m.game.Votes {
		if v.Kind == VoteLynch {
			return v
		}
	}
	ctx.t.Fatal("no open lynch vote")
	return nil
}

func (ctx *testContext) teamVote() *Vote {
	for _, v := range ctx.m.sortedVotes() {
		if v.Kind != VoteLynch && !v.Resolved {
			return v
		}
	}
	return nil
}

// soloWaking returns the single role waiting for input outside a team vote.
func (ctx *testContext) soloWaking() (roleRef, bool) {
	var found []roleRef
	for _, ref := range ctx.m.players.Wakeables() {
		if r := ref.role(); r.State == Waking && r.Pending != PendingGroup {
			found = append(found, ref)
		}
	}
	if len(found) > 1 {
		ctx.t.Fatalf("%d roles awake at once", len(found))
	}
	if len(found) == 0 {
		return roleRef{}, false
	}
	return found[0], true
}

// script says how each role answers during playNight.
type script struct {
	targets map[RoleKind][]string
	answers map[RoleKind]bool
}

// playNight drives the current night to dawn following s. Roles without a
// scripted target are timed out.
func (ctx *testContext) playNight(s script) {
	ctx.t.Helper()
	for i := 0; !ctx.m.game.Day && !ctx.m.game.Over; i++ {
		if i > 100 {
			ctx.t.Fatal("night never ended")
		}
		if v := ctx.teamVote(); v != nil {
			kind := RoleWerewolf
			if v.Kind == VoteVampire {
				kind = RoleVampire
			}
			if picks, ok := s.targets[kind]; ok {
				if err := ctx.m.CastVote(v.ID, v.Voters[0], picks); err != nil {
					ctx.t.Fatalf("team vote: %v", err)
				}
			} else {
				ctx.m.ForceDefault()
			}
			continue
		}
		ref, ok := ctx.soloWaking()
		if !ok {
			ctx.t.Fatal("night stalled with nobody awake")
		}
		r := ref.role()
		var err error
		switch r.Pending {
		case PendingAnswer:
			err = ctx.m.SubmitAnswer(r.Kind, ref.player.Name, s.answers[r.Kind])
		case PendingTarget:
			picks, ok := s.targets[r.Kind]
			if !ok {
				ctx.m.ForceDefault()
				continue
			}
			err = ctx.m.SubmitTarget(r.Kind, picks)
		case PendingAck, PendingCult:
			err = ctx.m.RoleFinished(r.Kind, ref.player.Name)
		default:
			ctx.t.Fatalf("%s waking with pending %d", r.Kind, r.Pending)
		}
		if err != nil {
			ctx.t.Fatalf("%s: %v", r.Kind, err)
		}
	}
}

func (ctx *testContext) castAll(v *Vote, ballots map[string]string) {
	ctx.t.Helper()
	for _, voter := range slices.Sorted(maps.Keys(ballots)) {
		if err := ctx.m.CastVote(v.ID, voter, []string{ballots[voter]}); err != nil {
			ctx.t.Fatalf("%s votes %s: %v", voter, ballots[voter], err)
		}
	}
}
