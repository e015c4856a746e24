package main

import (
	"log"
	"time"
)

// ForceNextPhase advances the room regardless of clocks. During night it
// closes the current turn (or cuts the dawn settle delay short); elsewhere it
// runs the phase's natural transition immediately.
func (e *GameEngine) ForceNextPhase(hostID string) *GameError {
	var gerr *GameError
	e.call(func() {
		if gerr = e.requireHost(hostID); gerr != nil {
			return
		}
		log.Printf("Room %s: host forced phase advance from '%s'", e.room.ID, e.room.Phase)
		switch e.room.Phase {
		case PhaseIntroduction:
			e.cancelDeadline()
			e.beginNight()
		case PhaseNight:
			e.nightForce()
		case PhaseDay:
			e.cancelDeadline()
			e.beginVoting()
		case PhaseVoting:
			e.cancelDeadline()
			e.finishVoting()
		default:
			gerr = newGameError(ErrCodeWrongPhase, "Cannot advance from phase '%s'", e.room.Phase)
		}
	})
	return gerr
}

// ExtendPhase pushes the current timed phase's deadline out by delta.
// Extensions compose from the phase start, so two 60s extensions always mean
// start + base + 120s no matter when they were requested.
func (e *GameEngine) ExtendPhase(hostID string, delta time.Duration) *GameError {
	var gerr *GameError
	e.call(func() {
		if gerr = e.requireHost(hostID); gerr != nil {
			return
		}
		if delta <= 0 {
			gerr = newGameError(ErrCodeBadConfig, "Extension must be positive")
			return
		}
		if e.phaseBase == 0 || e.deadlineFire == nil {
			gerr = newGameError(ErrCodeWrongPhase, "Phase '%s' has no deadline to extend", e.room.Phase)
			return
		}
		e.extension += delta
		deadline := e.phaseStart.Add(e.phaseBase + e.extension)
		e.room.PhaseDeadline = deadline
		e.rescheduleDeadline(deadline.Sub(e.clock.Now()), e.deadlineFire)
		log.Printf("Room %s: phase '%s' extended by %s (deadline now %s)",
			e.room.ID, e.room.Phase, delta, deadline.Format(time.RFC3339))
		e.broadcastPhase()
	})
	return gerr
}

// ForceEndVoting closes the vote window immediately; anyone who has not
// voted abstains. Outside voting this is a typed rejection, not a no-op.
func (e *GameEngine) ForceEndVoting(hostID string) *GameError {
	var gerr *GameError
	e.call(func() {
		if gerr = e.requireHost(hostID); gerr != nil {
			return
		}
		if e.room.Phase != PhaseVoting {
			gerr = errWrongPhase(PhaseVoting, e.room.Phase)
			return
		}
		log.Printf("Room %s: host force-ended voting", e.room.ID)
		e.cancelDeadline()
		e.finishVoting()
	})
	return gerr
}

// HostKill eliminates a player by moderator fiat. Retaliation and win
// evaluation run exactly as they would for a natural death.
func (e *GameEngine) HostKill(hostID, targetID string) *GameError {
	var gerr *GameError
	e.call(func() {
		if gerr = e.requireHost(hostID); gerr != nil {
			return
		}
		if targetID == e.room.HostID {
			gerr = errInvalidTarget("The moderator cannot be killed")
			return
		}
		var target *Participant
		if target, gerr = e.room.MarkKilled(targetID); gerr != nil {
			return
		}
		e.noteDeath(target)
		log.Printf("Room %s: host killed %s", e.room.ID, target.Name)
		e.systemMessage(target.Name + " has been struck down by the moderator.")
		e.resolveRetaliation(target)
		e.broadcastRoomState()
		if e.room.Phase != PhaseSetup && e.room.Phase != PhaseEnded {
			if res := e.evaluateWin(); res != nil {
				e.endGame(res)
			}
		}
	})
	return gerr
}

// HostRevive brings a dead player back to life. No win re-evaluation, and the
// kill counter stays put: it counts deaths, not the currently dead.
func (e *GameEngine) HostRevive(hostID, targetID string) *GameError {
	var gerr *GameError
	e.call(func() {
		if gerr = e.requireHost(hostID); gerr != nil {
			return
		}
		target := e.room.ParticipantByID(targetID)
		if target == nil {
			gerr = errNotFound("Participant")
			return
		}
		if target.Alive {
			gerr = errInvalidTarget(target.Name + " is already alive")
			return
		}
		target.Alive = true
		log.Printf("Room %s: host revived %s", e.room.ID, target.Name)
		e.systemMessage(target.Name + " has been brought back to life.")
		e.broadcastRoomState()
	})
	return gerr
}

// HostToggleProtect flips a living player's protection flag for this night.
func (e *GameEngine) HostToggleProtect(hostID, targetID string) *GameError {
	var gerr *GameError
	e.call(func() {
		if gerr = e.requireHost(hostID); gerr != nil {
			return
		}
		target := e.room.ParticipantByID(targetID)
		if target == nil {
			gerr = errNotFound("Participant")
			return
		}
		if !target.Alive {
			gerr = newGameError(ErrCodeNotAlive, "Cannot protect a dead player")
			return
		}
		target.Protected = !target.Protected
		DebugLog("HostToggleProtect", "Room %s: %s protected=%v", e.room.ID, target.Name, target.Protected)
		e.broadcastRoomState()
	})
	return gerr
}

// HostChangeRole reassigns a player's role mid-game. The new role must be in
// the implemented catalog; the host stays the moderator.
func (e *GameEngine) HostChangeRole(hostID, targetID string, roleID RoleID) *GameError {
	var gerr *GameError
	e.call(func() {
		if gerr = e.requireHost(hostID); gerr != nil {
			return
		}
		info := e.catalog.RoleByID(roleID)
		if !info.Implemented || info.ID == RoleModerator {
			gerr = errInvalidTarget("Role '" + string(roleID) + "' cannot be assigned")
			return
		}
		if gerr = e.room.AssignRole(targetID, roleID); gerr != nil {
			return
		}
		target := e.room.ParticipantByID(targetID)
		log.Printf("Room %s: host changed %s's role to %s", e.room.ID, target.Name, roleID)
		e.out.SendTo(targetID, EventRoleInfo, RoleInfoPayload{
			RoleID:      roleID,
			Name:        info.Name,
			Description: info.Description,
			Team:        info.Team,
		})
		e.broadcastRoomState()
	})
	return gerr
}

// KickParticipant removes a player from the roster entirely. Their pending
// vote disappears with them; the host cannot kick themselves.
func (e *GameEngine) KickParticipant(hostID, targetID string) *GameError {
	var gerr *GameError
	e.call(func() {
		if gerr = e.requireHost(hostID); gerr != nil {
			return
		}
		if targetID == e.room.HostID {
			gerr = errInvalidTarget("The host cannot kick themselves")
			return
		}
		target := e.room.ParticipantByID(targetID)
		if target == nil {
			gerr = errNotFound("Participant")
			return
		}
		name := target.Name
		if gerr = e.room.RemoveParticipant(targetID); gerr != nil {
			return
		}
		e.room.refreshVoteCounts()
		log.Printf("Room %s: host kicked %s", e.room.ID, name)
		e.systemMessage(name + " has been removed from the game.")
		e.broadcastRoomState()
	})
	return gerr
}
