package main

import (
	"strings"
	"testing"
)

func newTestRegistry(t *testing.T) (*RoomRegistry, *recordingBroadcaster) {
	t.Helper()
	out := &recordingBroadcaster{}
	reg := NewRoomRegistry(defaultCatalog(), defaultEngineConfig(), newFakeClock(), out, noopSink{}, nil)
	t.Cleanup(reg.StopAll)
	return reg, out
}

func TestRoomCodeShape(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := newRoomCode()
		if err != nil {
			t.Fatalf("code generation failed: %v", err)
		}
		if len(code) != roomCodeLength {
			t.Fatalf("expected %d characters, got %q", roomCodeLength, code)
		}
		for _, c := range code {
			if !strings.ContainsRune(roomCodeAlphabet, c) {
				t.Fatalf("code %q uses %q outside the alphabet", code, c)
			}
		}
	}
}

func TestCreateRoomRegistersAndRuns(t *testing.T) {
	reg, _ := newTestRegistry(t)

	engine, err := reg.CreateRoom()
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if reg.Count() != 1 {
		t.Errorf("expected 1 live room, got %d", reg.Count())
	}
	if got := reg.Get(engine.RoomID()); got != engine {
		t.Error("lookup by code must return the created engine")
	}
	if reg.Get("NOSUCH") != nil {
		t.Error("unknown code must return nil")
	}

	// The loop must be running: a synchronous call has to return.
	engine.call(func() {})
}

func TestRemoveStopsRoom(t *testing.T) {
	reg, _ := newTestRegistry(t)
	engine, err := reg.CreateRoom()
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	reg.Remove(engine.RoomID())
	if reg.Count() != 0 {
		t.Errorf("expected 0 live rooms, got %d", reg.Count())
	}
	// Removing again is a no-op.
	reg.Remove(engine.RoomID())
}

func TestRemoveIfEmpty(t *testing.T) {
	reg, _ := newTestRegistry(t)
	engine, err := reg.CreateRoom()
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	code := engine.RoomID()

	p, gerr := engine.Join("Alice")
	if gerr != nil {
		t.Fatalf("join failed: %v", gerr)
	}
	if reg.RemoveIfEmpty(code) {
		t.Error("room with a connected participant must not be removed")
	}

	engine.SetConnected(p.ID, false)
	if !reg.RemoveIfEmpty(code) {
		t.Error("room with everyone disconnected should be removed")
	}
	if reg.Get(code) != nil {
		t.Error("removed room must be gone from the registry")
	}
	if reg.RemoveIfEmpty(code) {
		t.Error("removing a missing room must report false")
	}
}
