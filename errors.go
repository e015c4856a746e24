package main

import "fmt"

// Error codes for expected game-rule rejections. These are routine during
// normal play and are narrated back to the acting participant; they never
// abort the room.
const (
	ErrCodeWrongPhase    = "wrong_phase"
	ErrCodeWrongTurn     = "wrong_turn"
	ErrCodeAlreadyActed  = "already_acted"
	ErrCodeInvalidTarget = "invalid_target"
	ErrCodeNotFound      = "not_found"
	ErrCodeNotAlive      = "not_alive"
	ErrCodeNotHost       = "not_host"
	ErrCodeBadConfig     = "bad_config"
	ErrCodeNameTaken     = "name_taken"
)

// GameError is a typed, expected rejection of a participant or host command.
// Reason is human-readable and shown to the actor as-is.
type GameError struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (e *GameError) Error() string {
	return e.Reason
}

func newGameError(code, format string, args ...any) *GameError {
	return &GameError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

func errWrongPhase(want Phase, got Phase) *GameError {
	return newGameError(ErrCodeWrongPhase, "Not allowed now: requires %s phase (currently %s)", want, got)
}

func errNotHost() *GameError {
	return newGameError(ErrCodeNotHost, "Only the host can do that")
}

func errNotFound(what string) *GameError {
	return newGameError(ErrCodeNotFound, "%s not found", what)
}

func errInvalidTarget(reason string) *GameError {
	return newGameError(ErrCodeInvalidTarget, "%s", reason)
}
