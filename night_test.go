package main

import (
	"testing"
	"time"
)

func TestBuildNightQueueOrder(t *testing.T) {
	r := newRoom("R1")
	host, _ := r.AddParticipant("Mod")
	r.HostID = host.ID
	roles := map[string]RoleID{
		"Alice": RoleSeer,
		"Bob":   RoleWerewolf,
		"Carol": RoleBodyguard,
		"Dave":  RoleWarden,
		"Eve":   RoleVillager, // no night action
		"Frank": RoleTanner,   // no night action
	}
	for name, role := range roles {
		p, _ := r.AddParticipant(name)
		p.RoleID = role
	}

	queue := buildNightQueue(r, defaultCatalog())
	want := []RoleID{RoleWerewolf, RoleWarden, RoleSeer, RoleBodyguard}
	if len(queue) != len(want) {
		t.Fatalf("expected queue %v, got %v", want, queue)
	}
	for i := range want {
		if queue[i] != want[i] {
			t.Fatalf("expected queue %v, got %v", want, queue)
		}
	}
}

func TestBuildNightQueueSkipsDeadHolders(t *testing.T) {
	r := newRoom("R1")
	seer, _ := r.AddParticipant("Alice")
	seer.RoleID = RoleSeer
	seer.Alive = false
	wolf, _ := r.AddParticipant("Bob")
	wolf.RoleID = RoleWerewolf

	queue := buildNightQueue(r, defaultCatalog())
	if len(queue) != 1 || queue[0] != RoleWerewolf {
		t.Errorf("dead seer should not enqueue a turn, got %v", queue)
	}
}

func TestNightTurnFlowWithProtection(t *testing.T) {
	env := newTestEngine(t, "Alice", "Bob", "Carol", "Dave")
	env.beginNightWith(map[string]RoleID{
		"Alice": RoleWerewolf,
		"Bob":   RoleSeer,
		"Carol": RoleVillager,
		"Dave":  RoleBodyguard,
	})

	if got := env.currentTurn(); got != RoleWerewolf {
		t.Fatalf("expected werewolf turn first, got %s", got)
	}

	// Acting out of turn is rejected and queues nothing.
	_, gerr := env.engine.SubmitNightAction(env.id("Bob"), NightAction{TargetIDs: []string{env.id("Carol")}})
	if gerr == nil || gerr.Code != ErrCodeWrongTurn {
		t.Fatalf("out-of-turn action should fail with %s, got %v", ErrCodeWrongTurn, gerr)
	}

	res, gerr := env.engine.SubmitNightAction(env.id("Alice"), NightAction{TargetIDs: []string{env.id("Carol")}})
	if gerr != nil {
		t.Fatalf("werewolf action failed: %v", gerr)
	}
	if res.Outcome != OutcomeOK {
		t.Errorf("expected ok outcome, got %s", res.Outcome)
	}

	if got := env.currentTurn(); got != RoleSeer {
		t.Fatalf("expected seer turn, got %s", got)
	}
	res, gerr = env.engine.SubmitNightAction(env.id("Bob"), NightAction{TargetIDs: []string{env.id("Alice")}})
	if gerr != nil {
		t.Fatalf("seer action failed: %v", gerr)
	}
	if res.RevealedRoles[env.id("Alice")] != RoleWerewolf {
		t.Errorf("seer should see the werewolf card, got %v", res.RevealedRoles)
	}

	if got := env.currentTurn(); got != RoleBodyguard {
		t.Fatalf("expected bodyguard turn, got %s", got)
	}
	if _, gerr = env.engine.SubmitNightAction(env.id("Dave"), NightAction{TargetIDs: []string{env.id("Carol")}}); gerr != nil {
		t.Fatalf("bodyguard action failed: %v", gerr)
	}

	// Queue exhausted; the settle delay runs, then dawn breaks.
	env.advance(2 * time.Second)
	if env.phase() != PhaseDay {
		t.Fatalf("expected day phase, got %s", env.phase())
	}

	snap := env.engine.Snapshot()
	for _, p := range snap.Participants {
		if p.Name == "Carol" && !p.Alive {
			t.Error("protected victim must survive the night")
		}
	}
}

func TestNightKillAtDawn(t *testing.T) {
	env := newTestEngine(t, "Alice", "Bob", "Carol")
	env.beginNightWith(map[string]RoleID{
		"Alice": RoleWerewolf,
		"Bob":   RoleSeer,
		"Carol": RoleVillager,
	})

	if _, gerr := env.engine.SubmitNightAction(env.id("Alice"), NightAction{TargetIDs: []string{env.id("Carol")}}); gerr != nil {
		t.Fatalf("werewolf action failed: %v", gerr)
	}
	if _, gerr := env.engine.SubmitNightAction(env.id("Bob"), NightAction{TargetIDs: []string{env.id("Alice")}}); gerr != nil {
		t.Fatalf("seer action failed: %v", gerr)
	}
	env.advance(2 * time.Second)

	if env.phase() != PhaseDay {
		t.Fatalf("expected day phase, got %s", env.phase())
	}
	snap := env.engine.Snapshot()
	if snap.CiviliansKilled != 1 {
		t.Errorf("expected 1 civilian killed, got %d", snap.CiviliansKilled)
	}
	for _, p := range snap.Participants {
		if p.Name == "Carol" && p.Alive {
			t.Error("unprotected victim must die at dawn")
		}
	}
}

func TestNightActionIdempotentRejection(t *testing.T) {
	env := newTestEngine(t, "Alice", "Eve", "Bob", "Carol")
	env.beginNightWith(map[string]RoleID{
		"Alice": RoleWerewolf,
		"Eve":   RoleWerewolf,
		"Bob":   RoleVillager,
		"Carol": RoleSeer,
	})

	// Targeting a packmate fails and leaves the turn open for a retry.
	_, gerr := env.engine.SubmitNightAction(env.id("Alice"), NightAction{TargetIDs: []string{env.id("Eve")}})
	if gerr == nil || gerr.Code != ErrCodeInvalidTarget {
		t.Fatalf("packmate target should fail with %s, got %v", ErrCodeInvalidTarget, gerr)
	}
	if _, gerr = env.engine.SubmitNightAction(env.id("Alice"), NightAction{TargetIDs: []string{env.id("Bob")}}); gerr != nil {
		t.Fatalf("retry after rejection failed: %v", gerr)
	}

	// A second accepted action from the same actor is rejected.
	_, gerr = env.engine.SubmitNightAction(env.id("Alice"), NightAction{TargetIDs: []string{env.id("Bob")}})
	if gerr == nil || gerr.Code != ErrCodeAlreadyActed {
		t.Fatalf("double action should fail with %s, got %v", ErrCodeAlreadyActed, gerr)
	}

	// The turn stays open until the whole pack has acted.
	if got := env.currentTurn(); got != RoleWerewolf {
		t.Fatalf("turn should still be werewolf, got %s", got)
	}
	if _, gerr = env.engine.SubmitNightAction(env.id("Eve"), NightAction{TargetIDs: []string{env.id("Bob")}}); gerr != nil {
		t.Fatalf("second werewolf action failed: %v", gerr)
	}
	if got := env.currentTurn(); got != RoleSeer {
		t.Fatalf("turn should advance to seer, got %s", got)
	}
}

func TestNightTurnTimeoutAdvances(t *testing.T) {
	env := newTestEngine(t, "Alice", "Bob", "Carol")
	env.beginNightWith(map[string]RoleID{
		"Alice": RoleWerewolf,
		"Bob":   RoleSeer,
		"Carol": RoleVillager,
	})

	if got := env.currentTurn(); got != RoleWerewolf {
		t.Fatalf("expected werewolf turn, got %s", got)
	}
	env.advance(30 * time.Second)
	if got := env.currentTurn(); got != RoleSeer {
		t.Fatalf("expected timeout to advance to seer, got %s", got)
	}

	// A late werewolf action is a plain rejection, not a crash.
	_, gerr := env.engine.SubmitNightAction(env.id("Alice"), NightAction{TargetIDs: []string{env.id("Carol")}})
	if gerr == nil || gerr.Code != ErrCodeWrongTurn {
		t.Errorf("late action should fail with %s, got %v", ErrCodeWrongTurn, gerr)
	}
}

func TestBlockedActorIsSkipped(t *testing.T) {
	env := newTestEngine(t, "Alice", "Bob", "Carol")
	env.beginNightWith(map[string]RoleID{
		"Alice": RoleWarden,
		"Bob":   RoleSeer,
		"Carol": RoleVillager,
	})

	if got := env.currentTurn(); got != RoleWarden {
		t.Fatalf("expected warden turn, got %s", got)
	}
	if _, gerr := env.engine.SubmitNightAction(env.id("Alice"), NightAction{TargetIDs: []string{env.id("Bob")}}); gerr != nil {
		t.Fatalf("warden action failed: %v", gerr)
	}

	// The seer's whole turn is blocked away; the queue ends immediately.
	if got := env.currentTurn(); got != "" {
		t.Fatalf("blocked seer turn should be skipped, still on %s", got)
	}
	skips := env.out.sentTo(env.id("Bob"), EventActionResult)
	foundSkip := false
	for _, ev := range skips {
		if res, ok := ev.Payload.(ActionResult); ok && res.Outcome == OutcomeSkippedBlocked {
			foundSkip = true
		}
	}
	if !foundSkip {
		t.Error("blocked actor should be told they were skipped")
	}

	env.advance(2 * time.Second)
	if env.phase() != PhaseDay {
		t.Fatalf("expected day phase, got %s", env.phase())
	}
}

func TestWerewolfVoteTieKillsNobody(t *testing.T) {
	env := newTestEngine(t, "Alice", "Eve", "Bob", "Carol")
	env.beginNightWith(map[string]RoleID{
		"Alice": RoleWerewolf,
		"Eve":   RoleWerewolf,
		"Bob":   RoleVillager,
		"Carol": RoleVillager,
	})

	env.engine.SubmitNightAction(env.id("Alice"), NightAction{TargetIDs: []string{env.id("Bob")}})
	env.engine.SubmitNightAction(env.id("Eve"), NightAction{TargetIDs: []string{env.id("Carol")}})
	env.advance(2 * time.Second)

	if env.phase() != PhaseDay {
		t.Fatalf("expected day phase, got %s", env.phase())
	}
	snap := env.engine.Snapshot()
	for _, p := range snap.Participants {
		if !p.Alive {
			t.Errorf("%s should survive a split kill vote", p.Name)
		}
	}
}

func TestLoneWolfCenterPeek(t *testing.T) {
	env := newTestEngine(t, "Alice", "Bob", "Carol")
	env.engine.call(func() {
		env.engine.room.CenterCards = []RoleID{RoleSeer, RoleVillager}
	})
	env.beginNightWith(map[string]RoleID{
		"Alice": RoleWerewolf,
		"Bob":   RoleVillager,
		"Carol": RoleVillager,
	})

	res, gerr := env.engine.SubmitNightAction(env.id("Alice"), NightAction{
		TargetIDs:     []string{env.id("Bob")},
		CenterIndexes: []int{0},
	})
	if gerr != nil {
		t.Fatalf("lone wolf action failed: %v", gerr)
	}
	if res.RevealedRoles["center:0"] != RoleSeer {
		t.Errorf("lone wolf should peek at the center card, got %v", res.RevealedRoles)
	}
}

func TestLoneWolfPeeksInsteadOfKilling(t *testing.T) {
	env := newTestEngine(t, "Alice", "Bob")
	env.engine.call(func() {
		env.engine.room.CenterCards = []RoleID{RoleMason}
	})
	env.beginNightWith(map[string]RoleID{
		"Alice": RoleWerewolf,
		"Bob":   RoleVillager,
	})

	res, gerr := env.engine.SubmitNightAction(env.id("Alice"), NightAction{CenterIndexes: []int{0}})
	if gerr != nil {
		t.Fatalf("target-less lone wolf peek failed: %v", gerr)
	}
	if res.RevealedRoles["center:0"] != RoleMason {
		t.Errorf("expected the center card revealed, got %v", res.RevealedRoles)
	}

	env.advance(2 * time.Second)
	if env.phase() != PhaseDay {
		t.Fatalf("expected day phase, got %s", env.phase())
	}
	for _, p := range env.engine.Snapshot().Participants {
		if !p.Alive {
			t.Errorf("%s should survive a huntless night", p.Name)
		}
	}
}

func TestPackWolfMustNameVictim(t *testing.T) {
	env := newTestEngine(t, "Alice", "Eve", "Bob")
	env.engine.call(func() {
		env.engine.room.CenterCards = []RoleID{RoleMason}
	})
	env.beginNightWith(map[string]RoleID{
		"Alice": RoleWerewolf,
		"Eve":   RoleWerewolf,
		"Bob":   RoleVillager,
	})

	_, gerr := env.engine.SubmitNightAction(env.id("Alice"), NightAction{CenterIndexes: []int{0}})
	if gerr == nil || gerr.Code != ErrCodeInvalidTarget {
		t.Errorf("a wolf with a pack cannot trade the kill for a peek, got %v", gerr)
	}
}

func TestSeerValidation(t *testing.T) {
	env := newTestEngine(t, "Alice", "Bob")
	env.engine.call(func() {
		env.engine.room.CenterCards = []RoleID{RoleVillager, RoleDrunk}
	})
	env.beginNightWith(map[string]RoleID{
		"Alice": RoleSeer,
		"Bob":   RoleVillager,
	})

	if _, gerr := env.engine.SubmitNightAction(env.id("Alice"), NightAction{TargetIDs: []string{env.id("Alice")}}); gerr == nil {
		t.Error("seer self-peek should be rejected")
	}
	if _, gerr := env.engine.SubmitNightAction(env.id("Alice"), NightAction{CenterIndexes: []int{1, 1}}); gerr == nil {
		t.Error("peeking the same center card twice should be rejected")
	}
	res, gerr := env.engine.SubmitNightAction(env.id("Alice"), NightAction{CenterIndexes: []int{0, 1}})
	if gerr != nil {
		t.Fatalf("center peek failed: %v", gerr)
	}
	if res.RevealedRoles["center:0"] != RoleVillager || res.RevealedRoles["center:1"] != RoleDrunk {
		t.Errorf("wrong center reveal: %v", res.RevealedRoles)
	}
}

func TestRobberSwapsAndSees(t *testing.T) {
	env := newTestEngine(t, "Alice", "Bob", "Carol")
	env.beginNightWith(map[string]RoleID{
		"Alice": RoleWerewolf,
		"Bob":   RoleRobber,
		"Carol": RoleVillager,
	})

	if _, gerr := env.engine.SubmitNightAction(env.id("Alice"), NightAction{TargetIDs: []string{env.id("Carol")}}); gerr != nil {
		t.Fatalf("werewolf action failed: %v", gerr)
	}
	res, gerr := env.engine.SubmitNightAction(env.id("Bob"), NightAction{TargetIDs: []string{env.id("Alice")}})
	if gerr != nil {
		t.Fatalf("robber action failed: %v", gerr)
	}
	if res.RevealedRoles[env.id("Bob")] != RoleWerewolf {
		t.Errorf("robber should see their stolen role, got %v", res.RevealedRoles)
	}

	env.engine.call(func() {
		if env.engine.room.ParticipantByName("Alice").RoleID != RoleRobber {
			t.Error("victim should hold the robber card now")
		}
		if env.engine.room.ParticipantByName("Bob").RoleID != RoleWerewolf {
			t.Error("robber should hold the werewolf card now")
		}
	})
}
