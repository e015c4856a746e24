package main

import (
	"math/rand"
	"sync"
	"testing"
	"time"
)

// fakeTimer is a deferred callback owned by a fakeClock.
type fakeTimer struct {
	clock     *fakeClock
	at        time.Time
	fn        func()
	fired     bool
	cancelled bool
}

func (t *fakeTimer) Cancel() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}

// fakeClock lets tests drive deadlines deterministically. Advance moves time
// forward and fires due timers in order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Schedule(d time.Duration, fn func()) TimerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock to now+d, firing every timer due on the way in
// chronological order. Callbacks run outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.fired || t.cancelled || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		fn := next.fn
		c.mu.Unlock()
		fn()
	}
}

// recordedEvent is one captured outbound event.
type recordedEvent struct {
	RoomID        string
	ParticipantID string
	Event         string
	Payload       any
}

// recordingBroadcaster captures everything the engine emits.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBroadcaster) Broadcast(roomID string, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{RoomID: roomID, Event: event, Payload: payload})
}

func (b *recordingBroadcaster) SendTo(participantID string, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{ParticipantID: participantID, Event: event, Payload: payload})
}

func (b *recordingBroadcaster) named(event string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, ev := range b.events {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

func (b *recordingBroadcaster) sentTo(participantID, event string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, ev := range b.events {
		if ev.ParticipantID == participantID && ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// recordingSink captures the system chat lines the engine narrates.
type recordingSink struct {
	mu    sync.Mutex
	lines map[string][]string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{lines: make(map[string][]string)}
}

func (s *recordingSink) AppendSystemMessage(roomID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines[roomID] = append(s.lines[roomID], text)
}

func (s *recordingSink) ClearChat(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lines, roomID)
}

func (s *recordingSink) history(roomID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines[roomID]...)
}

// testEnv bundles an engine with its fake collaborators and the roster.
type testEnv struct {
	t      *testing.T
	engine *GameEngine
	clock  *fakeClock
	out    *recordingBroadcaster
	chat   *recordingSink
	host   *Participant
	byName map[string]*Participant
}

// newTestEngine builds a running engine with a host named "Mod" and the given
// players. The shuffle rng is seeded, so deals are reproducible.
func newTestEngine(t *testing.T, playerNames ...string) *testEnv {
	t.Helper()

	clock := newFakeClock()
	out := &recordingBroadcaster{}
	chat := newRecordingSink()
	engine := NewGameEngine(newRoom("TEST01"), defaultCatalog(), defaultEngineConfig(),
		clock, out, chat, rand.New(rand.NewSource(42)))
	engine.Run()
	t.Cleanup(engine.Stop)

	env := &testEnv{t: t, engine: engine, clock: clock, out: out, chat: chat, byName: make(map[string]*Participant)}

	host, gerr := engine.Join("Mod")
	if gerr != nil {
		t.Fatalf("host join failed: %v", gerr)
	}
	env.host = host
	env.byName["Mod"] = host

	for _, name := range playerNames {
		p, gerr := engine.Join(name)
		if gerr != nil {
			t.Fatalf("join %s failed: %v", name, gerr)
		}
		env.byName[name] = p
	}
	return env
}

// drain waits for the engine loop to process everything already queued.
func (env *testEnv) drain() {
	env.engine.call(func() {})
}

// advance moves the fake clock and then drains the loop, so timer work that
// was posted back into the loop has run before the test continues.
func (env *testEnv) advance(d time.Duration) {
	env.clock.Advance(d)
	env.drain()
}

func (env *testEnv) id(name string) string {
	p, ok := env.byName[name]
	if !ok {
		env.t.Fatalf("no participant named %s", name)
	}
	return p.ID
}

// phase reads the current phase through the loop.
func (env *testEnv) phase() Phase {
	var p Phase
	env.engine.call(func() { p = env.engine.room.Phase })
	return p
}

// setRoles pins roles directly, bypassing the shuffle, for tests that need a
// known deal.
func (env *testEnv) setRoles(roles map[string]RoleID) {
	env.engine.call(func() {
		for name, role := range roles {
			p := env.engine.room.ParticipantByName(name)
			if p == nil {
				continue
			}
			p.RoleID = role
		}
	})
}

// beginGame pins roles and enters the introduction phase directly.
func (env *testEnv) beginGame(roles map[string]RoleID) {
	env.engine.call(func() {
		for name, role := range roles {
			if p := env.engine.room.ParticipantByName(name); p != nil {
				p.RoleID = role
			}
		}
		env.engine.beginIntroduction()
	})
}

// beginNightWith pins roles and jumps straight into the night phase.
func (env *testEnv) beginNightWith(roles map[string]RoleID) {
	env.engine.call(func() {
		for name, role := range roles {
			if p := env.engine.room.ParticipantByName(name); p != nil {
				p.RoleID = role
			}
		}
		env.engine.beginNight()
	})
}

// currentTurn reads the active night turn's role, or "" when none.
func (env *testEnv) currentTurn() RoleID {
	var role RoleID
	env.engine.call(func() {
		if env.engine.night != nil && env.engine.night.turn != nil {
			role = env.engine.night.turn.RoleID
		}
	})
	return role
}

// result reads the final win result, or nil while the game runs.
func (env *testEnv) result() *WinResult {
	var res *WinResult
	env.engine.call(func() { res = env.engine.room.Result })
	return res
}
