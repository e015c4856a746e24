package main

import (
	"testing"
)

func TestHubChatHistoryLifecycle(t *testing.T) {
	h := newHub()
	h.AppendSystemMessage("ROOM1", "first")
	h.AppendSystemMessage("ROOM1", "second")
	h.AppendSystemMessage("ROOM2", "other")

	got := h.ChatHistory("ROOM1")
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("wrong history: %v", got)
	}

	h.ClearChat("ROOM1")
	if len(h.ChatHistory("ROOM1")) != 0 {
		t.Error("cleared room should have no history")
	}
	if len(h.ChatHistory("ROOM2")) != 1 {
		t.Error("clearing one room must not touch another")
	}
}

func TestLastDisconnectTearsDownRoom(t *testing.T) {
	h := newHub()
	reg := NewRoomRegistry(defaultCatalog(), defaultEngineConfig(), newFakeClock(), h, h, nil)
	t.Cleanup(reg.StopAll)
	h.rooms = reg

	engine, err := reg.CreateRoom()
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	code := engine.RoomID()
	alice, gerr := engine.Join("Alice")
	if gerr != nil {
		t.Fatalf("join failed: %v", gerr)
	}
	bob, gerr := engine.Join("Bob")
	if gerr != nil {
		t.Fatalf("join failed: %v", gerr)
	}

	h.AppendSystemMessage(code, "the game is afoot")

	h.dropParticipant(alice.ID, "Alice", code)
	if reg.Get(code) == nil {
		t.Fatal("room with a connected participant must survive a disconnect")
	}

	h.dropParticipant(bob.ID, "Bob", code)
	if reg.Get(code) != nil {
		t.Error("room should be torn down after the last disconnect")
	}
	if len(h.ChatHistory(code)) != 0 {
		t.Error("teardown should drop the room's chat history")
	}

	// Dropping against a removed room is a no-op.
	h.dropParticipant(bob.ID, "Bob", code)
}
