package main

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"log"
	"math/rand"
	"sync"
)

// roomCodeAlphabet skips lookalike characters (0/O, 1/I/L).
const roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const roomCodeLength = 6

// newRoomCode generates an unguessable join code.
func newRoomCode() (string, error) {
	buf := make([]byte, roomCodeLength)
	if _, err := crand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate room code: %w", err)
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(buf), nil
}

// cryptoSeed draws a shuffle seed from the system entropy pool.
func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		log.Printf("cryptoSeed: falling back to constant seed: %v", err)
		return 1
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}

// RoomRegistry owns the live rooms: creation, lookup by code and teardown.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*GameEngine

	catalog  *RoleCatalog
	cfg      EngineConfig
	clock    Clock
	out      Broadcaster
	chat     SystemMessageSink
	narrator Storyteller
}

func NewRoomRegistry(catalog *RoleCatalog, cfg EngineConfig, clock Clock, out Broadcaster, chat SystemMessageSink, narrator Storyteller) *RoomRegistry {
	return &RoomRegistry{
		rooms:    make(map[string]*GameEngine),
		catalog:  catalog,
		cfg:      cfg,
		clock:    clock,
		out:      out,
		chat:     chat,
		narrator: narrator,
	}
}

// CreateRoom spins up a new room with a fresh code and starts its event loop.
func (reg *RoomRegistry) CreateRoom() (*GameEngine, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var code string
	for {
		var err error
		code, err = newRoomCode()
		if err != nil {
			return nil, err
		}
		if _, taken := reg.rooms[code]; !taken {
			break
		}
	}

	rng := rand.New(rand.NewSource(cryptoSeed()))
	engine := NewGameEngine(newRoom(code), reg.catalog, reg.cfg, reg.clock, reg.out, reg.chat, rng)
	engine.SetStoryteller(reg.narrator)
	engine.Run()
	reg.rooms[code] = engine
	log.Printf("Room %s created (%d rooms live)", code, len(reg.rooms))
	return engine, nil
}

// Get returns the engine for a room code, or nil.
func (reg *RoomRegistry) Get(code string) *GameEngine {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[code]
}

// Count returns the number of live rooms.
func (reg *RoomRegistry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Remove tears a room down and stops its event loop.
func (reg *RoomRegistry) Remove(code string) {
	reg.mu.Lock()
	engine, ok := reg.rooms[code]
	if ok {
		delete(reg.rooms, code)
	}
	total := len(reg.rooms)
	reg.mu.Unlock()
	if ok {
		engine.Stop()
		log.Printf("Room %s removed (%d rooms live)", code, total)
	}
}

// RemoveIfEmpty tears a room down only when nobody is connected to it.
// Returns true if the room was removed.
func (reg *RoomRegistry) RemoveIfEmpty(code string) bool {
	engine := reg.Get(code)
	if engine == nil {
		return false
	}
	if engine.ConnectedCount() > 0 {
		return false
	}
	reg.Remove(code)
	return true
}

// StopAll tears down every room, for shutdown.
func (reg *RoomRegistry) StopAll() {
	reg.mu.Lock()
	engines := make([]*GameEngine, 0, len(reg.rooms))
	for code, engine := range reg.rooms {
		engines = append(engines, engine)
		delete(reg.rooms, code)
	}
	reg.mu.Unlock()
	for _, engine := range engines {
		engine.Stop()
	}
}
