package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"werewolves/internal/engine"
)

// errSessionClosed is returned for commands sent to a deleted game.
var errSessionClosed = fmt.Errorf("game closed: %w", engine.ErrNotFound)

// sessionOptions carries the per-game settings taken from AppConfig.
type sessionOptions struct {
	settleDelay time.Duration
	wakeTimeout time.Duration
	logger      *AppLogger
	activePool  []engine.RoleKind
	passivePool []engine.RoleKind
	storyteller Storyteller
	rand        *rand.Rand
}

// Session owns one game. Every engine call runs on the session goroutine, so
// the Manager is never touched concurrently; timers and storyteller chunks
// queue commands like any other caller.
type Session struct {
	id  string
	m   *engine.Manager
	hub *Hub

	settleDelay time.Duration
	wakeTimeout time.Duration
	storyteller Storyteller

	commands chan func()
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	logFile  io.Closer

	// Owned by the session goroutine.
	settleTimer *time.Timer
	wakeTimer   *time.Timer
	waitingKey  string
	wakeGen     int

	// Cancels in-flight stories on close.
	storyCtx    context.Context
	storyCancel context.CancelFunc
}

func newSession(id string, capacity int, h *Hub, opts sessionOptions) (*Session, error) {
	logger, logFile, err := opts.logger.GameLogger(id)
	if err != nil {
		return nil, err
	}
	s := &Session{
		id:          id,
		hub:         h,
		settleDelay: opts.settleDelay,
		wakeTimeout: opts.wakeTimeout,
		storyteller: opts.storyteller,
		commands:    make(chan func(), 64),
		done:        make(chan struct{}),
		logFile:     logFile,
	}
	s.storyCtx, s.storyCancel = context.WithCancel(context.Background())
	s.m = engine.NewManager(id, capacity, engine.Options{
		Notifier:    s,
		Logger:      &logger,
		Rand:        opts.rand,
		ActivePool:  opts.activePool,
		PassivePool: opts.passivePool,
	})
	s.wg.Add(1)
	go s.loop()
	return s, nil
}

func (s *Session) loop() {
	defer s.wg.Done()
	for {
		select {
		case fn := <-s.commands:
			fn()
		case <-s.done:
			if s.settleTimer != nil {
				s.settleTimer.Stop()
			}
			if s.wakeTimer != nil {
				s.wakeTimer.Stop()
			}
			return
		}
	}
}

// Close stops the session goroutine and any story still being told.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		s.storyCancel()
		s.wg.Wait()
		if s.logFile != nil {
			s.logFile.Close()
		}
	})
}

// enqueue schedules fn on the session goroutine without waiting for it.
func (s *Session) enqueue(fn func()) {
	select {
	case s.commands <- fn:
	case <-s.done:
	}
}

// Do runs fn on the session goroutine and waits for its result. name labels
// the trace span.
func (s *Session) Do(ctx context.Context, name string, fn func(m *engine.Manager) error) error {
	ctx, span := tracer.Start(ctx, "session."+name, trace.WithAttributes(attribute.String("game.id", s.id)))
	defer span.End()

	errc := make(chan error, 1)
	cmd := func() {
		errc <- fn(s.m)
		s.rearmWakeTimer()
	}
	select {
	case s.commands <- cmd:
	case <-s.done:
		return errSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	var err error
	select {
	case err = <-errc:
	case <-s.done:
		err = errSessionClosed
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, engine.Kind(err))
	}
	return err
}

// scheduleAdvance starts the wake loop after the settling delay. Runs on the
// session goroutine.
func (s *Session) scheduleAdvance() {
	if s.settleDelay <= 0 {
		s.m.Advance()
		return
	}
	if s.settleTimer != nil {
		s.settleTimer.Stop()
	}
	s.settleTimer = time.AfterFunc(s.settleDelay, func() {
		s.enqueue(func() {
			s.m.Advance()
			s.rearmWakeTimer()
		})
	})
}

// rearmWakeTimer restarts the wake timeout whenever the set of roles the game
// is waiting on changes. Runs on the session goroutine.
func (s *Session) rearmWakeTimer() {
	if s.wakeTimeout <= 0 {
		return
	}
	key := s.waitingOn()
	if key == s.waitingKey {
		return
	}
	s.waitingKey = key
	s.wakeGen++
	if s.wakeTimer != nil {
		s.wakeTimer.Stop()
		s.wakeTimer = nil
	}
	if key == "" {
		return
	}
	gen := s.wakeGen
	s.wakeTimer = time.AfterFunc(s.wakeTimeout, func() {
		s.enqueue(func() {
			if gen != s.wakeGen {
				return
			}
			log.Printf("Game %s: wake timeout, forcing %s", s.id, s.waitingKey)
			s.m.ForceDefault()
			s.rearmWakeTimer()
		})
	})
}

// waitingOn summarizes who the game waits for: waking roles plus unclaimed
// Hunter shots.
func (s *Session) waitingOn() string {
	g := s.m.Game()
	if g.Over {
		return ""
	}
	var parts []string
	for _, w := range s.m.Waiting() {
		parts = append(parts, w.Role+":"+w.Player)
	}
	for _, h := range g.PendingHunters {
		parts = append(parts, "Hunter:"+h)
	}
	return strings.Join(parts, ",")
}

// Notify receives every engine event on the session goroutine: it forwards it
// to the websocket hub, appends it to the history and starts a story when
// someone died.
func (s *Session) Notify(ev engine.Event) {
	s.hub.Publish(ev)
	s.record(ev)

	switch p := ev.Payload.(type) {
	case engine.DaySummary:
		if len(p.Dead) > 0 {
			s.maybeGenerateStory(ev.Cycle, PhaseDay)
		}
	case engine.LynchResult:
		if len(p.Eliminated) > 0 {
			s.maybeGenerateStory(ev.Cycle, PhaseDay)
		}
	case engine.GameOver:
		if err := setWinner(s.id, p.Winner); err != nil {
			logError("Notify: setWinner", err)
		}
		log.Printf("Game %s over: %s", s.id, p.Winner)
	}
}

// record turns an event into history lines.
func (s *Session) record(ev engine.Event) {
	phase := PhaseNight
	if s.m.Game().Day || ev.Cycle == 0 {
		phase = PhaseDay
	}
	base := GameAction{GameID: s.id, Cycle: ev.Cycle, Phase: phase, Visibility: VisibilityPublic}

	var actions []GameAction
	add := func(actionType, visibility, actor, description string) {
		a := base
		a.ActionType, a.Visibility, a.Actor, a.Description = actionType, visibility, actor, description
		actions = append(actions, a)
	}

	switch p := ev.Payload.(type) {
	case engine.RoleAssignment:
		add(ActionRoleDealt, VisibilityActor, p.Player,
			fmt.Sprintf("You are the %s (%s), with %s as your passive role.", p.Active.Name, p.Active.Team, p.Passive.Name))
	case engine.WakePrompt:
		add(ActionWake, VisibilityResolved, "", fmt.Sprintf("The %s woke up.", p.Role))
	case engine.GroupWake:
		add(ActionWake, VisibilityResolved, "", fmt.Sprintf("The %s woke up together.", p.Team))
	case engine.Notice:
		if len(ev.To) == 0 {
			add(ActionNotice, VisibilityPublic, "", p.Text)
		}
		for _, to := range ev.To {
			add(ActionNotice, VisibilityActor, to, p.Text)
		}
	case engine.DaySummary:
		if len(p.Dead) == 0 {
			add(ActionDawn, VisibilityPublic, "", fmt.Sprintf("Day %d dawns. Nobody died in the night.", ev.Cycle))
		} else {
			add(ActionDawn, VisibilityPublic, "", fmt.Sprintf("Day %d dawns. Found dead: %s.", ev.Cycle, strings.Join(p.Dead, ", ")))
		}
	case engine.LynchResult:
		switch {
		case p.Cancelled:
			add(ActionElimination, VisibilityPublic, "", "Nobody was lynched: "+p.Reason)
		case p.Reason != "":
			add(ActionElimination, VisibilityPublic, "", p.Reason)
		case len(p.Eliminated) > 0:
			add(ActionElimination, VisibilityPublic, "", strings.Join(p.Eliminated, " and ")+" lynched by the village.")
		}
	case engine.ChatTranscript:
		if p.Kind == engine.ChatDay.String() && len(p.Messages) > 0 {
			last := p.Messages[len(p.Messages)-1]
			add(ActionChat, VisibilityPublic, last.Sender, last.Sender+": "+last.Text)
		}
	case engine.GameOver:
		add(ActionGameOver, VisibilityPublic, "", p.Winner)
	default:
		if ev.Kind == engine.EventNightBegin {
			add(ActionNightfall, VisibilityPublic, "", fmt.Sprintf("Night %d falls.", ev.Cycle))
		}
	}

	for _, a := range actions {
		if _, err := recordAction(a); err != nil {
			logError("record "+string(ev.Kind), err)
		}
	}
}
