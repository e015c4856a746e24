package main

import (
	"log"
	"math/rand"
	"sync"
	"time"
)

// TimerHandle is a cancellable deferred callback.
type TimerHandle interface {
	Cancel() bool
}

// Clock abstracts time reads and deferred scheduling so tests can drive the
// engine deterministically.
type Clock interface {
	Now() time.Time
	Schedule(d time.Duration, fn func()) TimerHandle
}

type realTimer struct{ t *time.Timer }

func (rt realTimer) Cancel() bool { return rt.t.Stop() }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Schedule(d time.Duration, fn func()) TimerHandle {
	return realTimer{t: time.AfterFunc(d, fn)}
}

// Broadcaster is the engine's outbound capability: fan-out to a room or
// unicast to one participant. Delivery failures are the transport's problem;
// the engine never sees them.
type Broadcaster interface {
	Broadcast(roomID string, event string, payload any)
	SendTo(participantID string, event string, payload any)
}

// SystemMessageSink is the chat collaborator's inbound side: the engine
// narrates night results, tallies and game end through it, and wipes the
// room's history on restart.
type SystemMessageSink interface {
	AppendSystemMessage(roomID, text string)
	ClearChat(roomID string)
}

type noopSink struct{}

func (noopSink) AppendSystemMessage(string, string) {}
func (noopSink) ClearChat(string)                   {}

// ChatPolicy says who may talk; it is a pure function of the phase and is
// recomputed on every phase entry for the chat collaborator.
type ChatPolicy struct {
	CanPublicChat   bool `json:"can_public_chat"`
	CanWerewolfChat bool `json:"can_werewolf_chat"`
	CanWhisperHost  bool `json:"can_whisper_host"`
}

func chatPolicyForPhase(p Phase) ChatPolicy {
	switch p {
	case PhaseNight:
		return ChatPolicy{CanWerewolfChat: true, CanWhisperHost: true}
	case PhaseEnded:
		return ChatPolicy{CanPublicChat: true}
	default:
		return ChatPolicy{CanPublicChat: true, CanWhisperHost: true}
	}
}

// EngineConfig holds the per-room timing and rule knobs.
type EngineConfig struct {
	IntroductionDuration time.Duration
	DayDuration          time.Duration
	VotingDuration       time.Duration
	NightTurnBudget      time.Duration
	NightSettleDelay     time.Duration
	SurvivorRoundTarget  int
}

func defaultEngineConfig() EngineConfig {
	return EngineConfig{
		IntroductionDuration: 180 * time.Second,
		DayDuration:          300 * time.Second,
		VotingDuration:       120 * time.Second,
		NightTurnBudget:      30 * time.Second,
		NightSettleDelay:     2 * time.Second,
		SurvivorRoundTarget:  3,
	}
}

// GameEngine owns one room. Every read and write of room state happens on the
// engine's event loop goroutine; public methods post closures into the inbox
// and wait, so callers from any goroutine see serialized, post-mutation state.
type GameEngine struct {
	room     *Room
	catalog  *RoleCatalog
	cfg      EngineConfig
	clock    Clock
	out      Broadcaster
	chat     SystemMessageSink
	narrator Storyteller
	rng      *rand.Rand

	inbox    chan func()
	done     chan struct{}
	stopOnce sync.Once

	// Deadline bookkeeping. At most one deferred callback is pending per
	// room; rescheduleDeadline is the only way it changes, and the sequence
	// number makes a stale fire a no-op even if it races a cancel.
	deadlineSeq    uint64
	deadlineHandle TimerHandle
	deadlineFire   func()

	phaseStart time.Time
	phaseBase  time.Duration
	extension  time.Duration

	night *nightState

	// story is the public narration history fed to the storyteller.
	story []string
}

// NewGameEngine wires an engine around a room. The rng drives role shuffles;
// seeding it makes a whole game reproducible.
func NewGameEngine(room *Room, catalog *RoleCatalog, cfg EngineConfig, clock Clock, out Broadcaster, chat SystemMessageSink, rng *rand.Rand) *GameEngine {
	if chat == nil {
		chat = noopSink{}
	}
	return &GameEngine{
		room:    room,
		catalog: catalog,
		cfg:     cfg,
		clock:   clock,
		out:     out,
		chat:    chat,
		rng:     rng,
		inbox:   make(chan func(), 256),
		done:    make(chan struct{}),
	}
}

// Run starts the room's event loop goroutine.
func (e *GameEngine) Run() {
	go e.loop()
}

// Stop tears the room down: cancels every outstanding timer and exits the
// loop. Safe to call more than once.
func (e *GameEngine) Stop() {
	e.stopOnce.Do(func() {
		e.call(func() { e.cancelDeadline() })
		close(e.done)
	})
}

func (e *GameEngine) loop() {
	for {
		select {
		case <-e.done:
			return
		case fn := <-e.inbox:
			fn()
		}
	}
}

// do posts work to the room's event loop without waiting.
func (e *GameEngine) do(fn func()) {
	select {
	case e.inbox <- fn:
	case <-e.done:
	}
}

// call posts work and waits for it to run. Never invoke from loop-owned code.
func (e *GameEngine) call(fn func()) {
	ran := make(chan struct{})
	e.do(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
	case <-e.done:
	}
}

// RoomID returns the immutable room code.
func (e *GameEngine) RoomID() string { return e.room.ID }

// Snapshot returns a consistent copy of the room state.
func (e *GameEngine) Snapshot() RoomSnapshot {
	var snap RoomSnapshot
	e.call(func() { snap = e.room.Snapshot() })
	return snap
}

// PublicState returns the room's broadcastable view.
func (e *GameEngine) PublicState() RoomStatePayload {
	var ps RoomStatePayload
	e.call(func() { ps = publicRoomState(e.room) })
	return ps
}

// ConnectedCount reports how many participants are currently connected.
func (e *GameEngine) ConnectedCount() int {
	n := 0
	e.call(func() {
		for _, p := range e.room.Participants() {
			if p.Connected {
				n++
			}
		}
	})
	return n
}

// SetConnected flips a participant's connectivity flag. Disconnects never
// remove a participant; the roster entry waits for a rebind.
func (e *GameEngine) SetConnected(participantID string, connected bool) {
	e.call(func() {
		p := e.room.ParticipantByID(participantID)
		if p == nil {
			return
		}
		p.Connected = connected
		DebugLog("SetConnected", "Participant '%s' connected=%v in room %s", p.Name, connected, e.room.ID)
		e.broadcastRoomState()
	})
}

// rescheduleDeadline cancels any pending deferred callback and schedules a
// new one. The fired closure re-enters the event loop and checks the
// sequence number, so a cancel racing a same-tick fire cannot double-fire.
func (e *GameEngine) rescheduleDeadline(d time.Duration, fire func()) {
	if e.deadlineHandle != nil {
		e.deadlineHandle.Cancel()
		e.deadlineHandle = nil
	}
	e.deadlineSeq++
	seq := e.deadlineSeq
	e.deadlineFire = fire
	e.deadlineHandle = e.clock.Schedule(d, func() {
		e.do(func() {
			if seq != e.deadlineSeq {
				return // superseded deadline; stale fire is a no-op
			}
			e.deadlineHandle = nil
			fire()
		})
	})
}

func (e *GameEngine) cancelDeadline() {
	if e.deadlineHandle != nil {
		e.deadlineHandle.Cancel()
		e.deadlineHandle = nil
	}
	e.deadlineSeq++
	e.deadlineFire = nil
}

// enterTimedPhase moves the room into a phase that auto-advances at
// start + base unless extended or forced.
func (e *GameEngine) enterTimedPhase(p Phase, base time.Duration, fire func()) {
	e.room.Phase = p
	e.phaseStart = e.clock.Now()
	e.phaseBase = base
	e.extension = 0
	e.room.PhaseDeadline = e.phaseStart.Add(base)
	e.rescheduleDeadline(base, fire)
	log.Printf("Room %s entered phase '%s' (deadline %s)", e.room.ID, p, e.room.PhaseDeadline.Format(time.RFC3339))
	e.broadcastPhase()
}

// enterUntimedPhase moves the room into a phase with no wall deadline
// (night is driven by the turn scheduler, setup and ended wait on commands).
func (e *GameEngine) enterUntimedPhase(p Phase) {
	e.cancelDeadline()
	e.room.Phase = p
	e.phaseStart = e.clock.Now()
	e.phaseBase = 0
	e.extension = 0
	e.room.PhaseDeadline = time.Time{}
	log.Printf("Room %s entered phase '%s'", e.room.ID, p)
	e.broadcastPhase()
}

func (e *GameEngine) broadcastPhase() {
	e.out.Broadcast(e.room.ID, EventPhaseChanged, PhasePayload{
		Phase:      e.room.Phase,
		Deadline:   deadlineUnix(e.room.PhaseDeadline),
		ChatPolicy: chatPolicyForPhase(e.room.Phase),
	})
	e.broadcastRoomState()
}

func (e *GameEngine) broadcastRoomState() {
	e.out.Broadcast(e.room.ID, EventRoomState, publicRoomState(e.room))
}

// systemMessage narrates a line into the room's chat and event stream.
func (e *GameEngine) systemMessage(text string) {
	e.story = append(e.story, text)
	if len(e.story) > 50 {
		e.story = e.story[len(e.story)-50:]
	}
	e.chat.AppendSystemMessage(e.room.ID, text)
	e.out.Broadcast(e.room.ID, EventSystemMessage, map[string]string{"text": text})
}

// SetStoryteller wires an optional narrator. Call before Run.
func (e *GameEngine) SetStoryteller(s Storyteller) { e.narrator = s }

// beginIntroduction is the SETUP→INTRODUCTION entry, after roles are dealt.
func (e *GameEngine) beginIntroduction() {
	e.enterTimedPhase(PhaseIntroduction, e.cfg.IntroductionDuration, e.beginNight)
	for _, p := range e.room.Players() {
		info := e.catalog.RoleByID(p.RoleID)
		e.out.SendTo(p.ID, EventRoleInfo, RoleInfoPayload{
			RoleID:      p.RoleID,
			Name:        info.Name,
			Description: info.Description,
			Team:        info.Team,
		})
	}
	e.systemMessage("The game has started. Check your role card.")
}

// beginNight clears the previous night's scratch state and hands control to
// the turn scheduler.
func (e *GameEngine) beginNight() {
	e.room.ClearNightScratch()
	e.enterUntimedPhase(PhaseNight)
	e.systemMessage("Night falls over the village.")
	e.nightBegin()
}

// beginDay announces the night's outcome, checks for a winner and opens the
// discussion window.
func (e *GameEngine) beginDay() {
	deaths, saved := e.resolveNightDeaths()
	for _, d := range deaths {
		e.systemMessage(d.Name + " was found dead at dawn.")
	}
	if saved != nil {
		e.systemMessage("Someone was attacked in the night, but survived.")
	}
	if len(deaths) == 0 && saved == nil {
		e.systemMessage("The night passed quietly.")
	}
	e.narrate()

	if res := e.evaluateWin(); res != nil {
		e.endGame(res)
		return
	}
	e.enterTimedPhase(PhaseDay, e.cfg.DayDuration, e.beginVoting)
}

// beginVoting clears the prior ledger and opens the vote window.
func (e *GameEngine) beginVoting() {
	e.room.ClearVotes()
	e.enterTimedPhase(PhaseVoting, e.cfg.VotingDuration, func() { e.finishVoting() })
	e.systemMessage("The village gathers to vote.")
}

// endGame is the ENDED interrupt: cancel all timers, freeze the result and
// reveal everything.
func (e *GameEngine) endGame(res *WinResult) {
	e.cancelDeadline()
	e.night = nil
	res.EndedAt = e.clock.Now()
	e.room.Result = res
	e.room.Phase = PhaseEnded
	e.room.PhaseDeadline = time.Time{}
	log.Printf("Room %s finished, winner: %s", e.room.ID, res.Faction)
	e.systemMessage(res.Message)
	e.out.Broadcast(e.room.ID, EventGameEnded, GameEndedPayload{
		Result:      res,
		Roles:       revealRoles(e.room),
		CenterCards: append([]RoleID(nil), e.room.CenterCards...),
		ChatPolicy:  chatPolicyForPhase(PhaseEnded),
	})
	e.broadcastRoomState()
	e.narrate()
}

// revealRoles maps every participant id to their final role for the reveal.
func revealRoles(r *Room) map[string]RoleID {
	roles := make(map[string]RoleID)
	for _, p := range r.Participants() {
		roles[p.ID] = p.RoleID
	}
	return roles
}
