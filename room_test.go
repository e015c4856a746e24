package main

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAddParticipantRejectsDuplicateNames(t *testing.T) {
	r := newRoom("R1")
	if _, gerr := r.AddParticipant("Alice"); gerr != nil {
		t.Fatalf("first add failed: %v", gerr)
	}
	_, gerr := r.AddParticipant("ALICE")
	if gerr == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
	if gerr.Code != ErrCodeNameTaken {
		t.Errorf("expected code %s, got %s", ErrCodeNameTaken, gerr.Code)
	}
}

func TestAddParticipantRejectsBlankName(t *testing.T) {
	r := newRoom("R1")
	if _, gerr := r.AddParticipant("   "); gerr == nil {
		t.Fatal("expected blank name to be rejected")
	}
}

func TestParticipantsDeterministicOrder(t *testing.T) {
	r := newRoom("R1")
	for _, name := range []string{"carol", "Alice", "bob"} {
		if _, gerr := r.AddParticipant(name); gerr != nil {
			t.Fatalf("add %s: %v", name, gerr)
		}
	}
	got := r.Participants()
	want := []string{"Alice", "bob", "carol"}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, got[i].Name)
		}
	}
}

func TestParticipantColorsAreDistinct(t *testing.T) {
	r := newRoom("R1")
	names := []string{"a", "b", "c", "d", "e", "f"}
	seen := make(map[string]bool)
	for _, n := range names {
		p, gerr := r.AddParticipant(n)
		if gerr != nil {
			t.Fatalf("add %s: %v", n, gerr)
		}
		if seen[p.Color] {
			t.Errorf("color %s assigned twice", p.Color)
		}
		seen[p.Color] = true
	}
}

func TestPickColorExhaustedPaletteFallsBack(t *testing.T) {
	used := make(map[string]bool)
	for _, c := range displayPalette {
		used[c] = true
	}
	if got := pickColor(used, ""); got != defaultColor {
		t.Errorf("expected default color, got %s", got)
	}
}

func TestPickColorPrefersRequestedWhenFree(t *testing.T) {
	used := map[string]bool{displayPalette[0]: true}
	if got := pickColor(used, displayPalette[3]); got != displayPalette[3] {
		t.Errorf("expected preferred color %s, got %s", displayPalette[3], got)
	}
}

func TestRecordVoteValidation(t *testing.T) {
	r := newRoom("R1")
	host, _ := r.AddParticipant("Mod")
	r.HostID = host.ID
	alice, _ := r.AddParticipant("Alice")
	bob, _ := r.AddParticipant("Bob")

	if gerr := r.RecordVote(host.ID, alice.ID); gerr == nil {
		t.Error("host vote should be rejected")
	}

	bob.Alive = false
	if gerr := r.RecordVote(bob.ID, alice.ID); gerr == nil || gerr.Code != ErrCodeNotAlive {
		t.Errorf("dead voter should be rejected with %s, got %v", ErrCodeNotAlive, gerr)
	}
	if gerr := r.RecordVote(alice.ID, bob.ID); gerr == nil {
		t.Error("voting for a dead player should be rejected")
	}

	// Abstain, then change to a real vote; the replacement wins.
	if gerr := r.RecordVote(alice.ID, ""); gerr != nil {
		t.Fatalf("abstain failed: %v", gerr)
	}
	bob.Alive = true
	if gerr := r.RecordVote(alice.ID, bob.ID); gerr != nil {
		t.Fatalf("re-vote failed: %v", gerr)
	}
	if r.Votes[alice.ID] != bob.ID {
		t.Errorf("expected re-vote to replace, got %q", r.Votes[alice.ID])
	}
	if bob.VoteCount != 1 {
		t.Errorf("expected vote count 1, got %d", bob.VoteCount)
	}
}

func TestSwapWithCenterBounds(t *testing.T) {
	r := newRoom("R1")
	p, _ := r.AddParticipant("Alice")
	r.CenterCards = []RoleID{RoleSeer}
	p.RoleID = RoleVillager

	if gerr := r.SwapWithCenter(p.ID, 1); gerr == nil {
		t.Error("out of range center index should be rejected")
	}
	if gerr := r.SwapWithCenter(p.ID, 0); gerr != nil {
		t.Fatalf("swap failed: %v", gerr)
	}
	if p.RoleID != RoleSeer || r.CenterCards[0] != RoleVillager {
		t.Errorf("swap did not exchange roles: player=%s center=%s", p.RoleID, r.CenterCards[0])
	}
}

func TestMarkBlockedRules(t *testing.T) {
	r := newRoom("R1")
	alice, _ := r.AddParticipant("Alice")
	bob, _ := r.AddParticipant("Bob")
	bob.Alive = false

	if gerr := r.MarkBlocked(alice.ID); gerr != nil {
		t.Fatalf("block failed: %v", gerr)
	}
	if !alice.Blocked {
		t.Error("blocked flag should be set")
	}
	if gerr := r.MarkBlocked(bob.ID); gerr == nil || gerr.Code != ErrCodeNotAlive {
		t.Errorf("blocking a dead player should fail with %s, got %v", ErrCodeNotAlive, gerr)
	}
	if gerr := r.MarkBlocked("no-such-id"); gerr == nil || gerr.Code != ErrCodeNotFound {
		t.Errorf("blocking a missing player should fail with %s, got %v", ErrCodeNotFound, gerr)
	}
}

func TestMarkKilledDropsPendingVote(t *testing.T) {
	r := newRoom("R1")
	alice, _ := r.AddParticipant("Alice")
	bob, _ := r.AddParticipant("Bob")
	r.RecordVote(alice.ID, bob.ID)
	r.RecordVote(bob.ID, alice.ID)

	if _, gerr := r.MarkKilled(alice.ID); gerr != nil {
		t.Fatalf("kill failed: %v", gerr)
	}
	if _, ok := r.Votes[alice.ID]; ok {
		t.Error("a dead voter's ballot must leave the ledger")
	}
	if bob.VoteCount != 0 {
		t.Errorf("dropping the ballot should update counts, got %d", bob.VoteCount)
	}
	// The vote cast against the victim stays; only their own ballot goes.
	if r.Votes[bob.ID] != alice.ID {
		t.Error("surviving voters keep their ballots")
	}
	if alice.VoteCount != 1 {
		t.Errorf("expected the victim to keep 1 received vote, got %d", alice.VoteCount)
	}
}

func TestClearNightScratch(t *testing.T) {
	r := newRoom("R1")
	p, _ := r.AddParticipant("Alice")
	p.Protected = true
	p.Blocked = true
	r.ClearNightScratch()
	if p.Protected || p.Blocked {
		t.Error("scratch flags should be cleared")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := newRoom("R1")
	host, _ := r.AddParticipant("Mod")
	r.HostID = host.ID
	host.RoleID = RoleModerator
	alice, _ := r.AddParticipant("Alice")
	alice.RoleID = RoleWerewolf
	bob, _ := r.AddParticipant("Bob")
	bob.RoleID = RoleSeer
	bob.Alive = false
	r.SelectedRoleIDs = []RoleID{RoleWerewolf, RoleSeer, RoleVillager}
	r.CenterCards = []RoleID{RoleVillager}
	r.Phase = PhaseDay
	r.PhaseDeadline = time.Date(2025, 6, 1, 20, 5, 0, 0, time.UTC)
	r.RecordVote(alice.ID, alice.ID)
	r.VotingRounds = 2
	r.CiviliansKilled = 1

	data, err := r.MarshalState()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var snap RoomSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	restored := RestoreRoom(snap)

	data2, err := restored.MarshalState()
	if err != nil {
		t.Fatalf("marshal restored: %v", err)
	}
	if string(data) != string(data2) {
		t.Errorf("round trip changed state:\n%s\nvs\n%s", data, data2)
	}
}
