package main

import (
	"log"
)

// Join adds a newcomer to the room, or rebinds a returning participant whose
// name already exists in the roster (reconnect-by-name: role, alive and vote
// state carry over). The first participant to join becomes the host.
func (e *GameEngine) Join(name string) (*Participant, *GameError) {
	var p *Participant
	var gerr *GameError
	e.call(func() {
		if existing := e.room.ParticipantByName(name); existing != nil {
			p, gerr = e.room.RebindParticipant(name)
			if gerr == nil {
				log.Printf("Participant '%s' rebound to room %s", name, e.room.ID)
				DebugLog("Join", "Participant '%s' reconnected to room %s", name, e.room.ID)
				e.broadcastRoomState()
			}
			return
		}
		if e.room.Phase != PhaseSetup {
			gerr = newGameError(ErrCodeWrongPhase, "Game already started; only returning players can join")
			return
		}
		p, gerr = e.room.AddParticipant(name)
		if gerr != nil {
			return
		}
		if e.room.HostID == "" {
			e.room.HostID = p.ID
			e.room.AssignRole(p.ID, RoleModerator)
			DebugLog("Join", "Participant '%s' is host of room %s", name, e.room.ID)
		}
		log.Printf("Participant '%s' joined room %s (%d total)", name, e.room.ID, len(e.room.Participants()))
		e.broadcastRoomState()
	})
	return p, gerr
}

// SelectRole appends a role to the session's role list. Setup only, host only.
func (e *GameEngine) SelectRole(hostID string, roleID RoleID) *GameError {
	var gerr *GameError
	e.call(func() {
		if gerr = e.requireHost(hostID); gerr != nil {
			return
		}
		if e.room.Phase != PhaseSetup {
			gerr = errWrongPhase(PhaseSetup, e.room.Phase)
			return
		}
		info := e.catalog.RoleByID(roleID)
		if !info.Implemented || info.ID == RoleModerator {
			gerr = errInvalidTarget("Role '" + string(roleID) + "' cannot be added")
			return
		}
		e.room.SelectedRoleIDs = append(e.room.SelectedRoleIDs, roleID)
		DebugLog("SelectRole", "Added role %s to room %s (%d selected)", roleID, e.room.ID, len(e.room.SelectedRoleIDs))
		e.broadcastRoomState()
	})
	return gerr
}

// RemoveRole removes one instance of a role from the session's role list.
func (e *GameEngine) RemoveRole(hostID string, roleID RoleID) *GameError {
	var gerr *GameError
	e.call(func() {
		if gerr = e.requireHost(hostID); gerr != nil {
			return
		}
		if e.room.Phase != PhaseSetup {
			gerr = errWrongPhase(PhaseSetup, e.room.Phase)
			return
		}
		for i, id := range e.room.SelectedRoleIDs {
			if id == roleID {
				e.room.SelectedRoleIDs = append(e.room.SelectedRoleIDs[:i], e.room.SelectedRoleIDs[i+1:]...)
				DebugLog("RemoveRole", "Removed role %s from room %s", roleID, e.room.ID)
				e.broadcastRoomState()
				return
			}
		}
		gerr = errNotFound("Selected role")
	})
	return gerr
}

// StartGame deals roles and moves SETUP → INTRODUCTION.
func (e *GameEngine) StartGame(hostID string) *GameError {
	var gerr *GameError
	e.call(func() {
		if gerr = e.requireHost(hostID); gerr != nil {
			return
		}
		if e.room.Phase != PhaseSetup {
			gerr = newGameError(ErrCodeWrongPhase, "Game already started")
			return
		}
		players := e.room.Players()
		if len(players) == 0 {
			gerr = newGameError(ErrCodeBadConfig, "No players to start with")
			return
		}
		if len(e.room.SelectedRoleIDs) < len(players) {
			gerr = newGameError(ErrCodeBadConfig, "Not enough roles selected: %d roles for %d players",
				len(e.room.SelectedRoleIDs), len(players))
			return
		}
		e.assignRoles()
		log.Printf("Room %s started: %d players, %d roles, %d center cards",
			e.room.ID, len(players), len(e.room.SelectedRoleIDs), len(e.room.CenterCards))
		e.beginIntroduction()
	})
	return gerr
}

// assignRoles deals the selected roles. The werewolf partition is shuffled
// separately and one werewolf role is pinned onto a player first: dealing
// every werewolf into the center would make that faction unwinnable.
func (e *GameEngine) assignRoles() {
	players := e.room.Players()

	var wolves, others []RoleID
	for _, id := range e.room.SelectedRoleIDs {
		if e.catalog.RoleByID(id).Team == TeamWerewolf {
			wolves = append(wolves, id)
		} else {
			others = append(others, id)
		}
	}
	e.shuffleRoles(wolves)
	e.shuffleRoles(others)

	remaining := players
	if len(wolves) > 0 && len(players) > 0 {
		i := e.rng.Intn(len(players))
		e.room.AssignRole(players[i].ID, wolves[0])
		wolves = wolves[1:]
		remaining = make([]*Participant, 0, len(players)-1)
		remaining = append(remaining, players[:i]...)
		remaining = append(remaining, players[i+1:]...)
	}

	pool := append(wolves, others...)
	e.shuffleRoles(pool)
	for i, p := range remaining {
		e.room.AssignRole(p.ID, pool[i])
	}
	e.room.CenterCards = append([]RoleID(nil), pool[len(remaining):]...)
}

// shuffleRoles is a uniform Fisher-Yates over the engine's seeded rng.
func (e *GameEngine) shuffleRoles(roles []RoleID) {
	for i := len(roles) - 1; i > 0; i-- {
		j := e.rng.Intn(i + 1)
		roles[i], roles[j] = roles[j], roles[i]
	}
}

// RestartGame resets an ended room back to SETUP. The roster and connection
// state survive; roles, votes, counters and the result are cleared.
func (e *GameEngine) RestartGame(hostID string) *GameError {
	var gerr *GameError
	e.call(func() {
		if gerr = e.requireHost(hostID); gerr != nil {
			return
		}
		if e.room.Phase != PhaseEnded {
			gerr = errWrongPhase(PhaseEnded, e.room.Phase)
			return
		}
		for _, p := range e.room.Participants() {
			p.Alive = true
			p.Protected = false
			p.Blocked = false
			p.RevengeTarget = ""
			p.VoteCount = 0
			if p.ID == e.room.HostID {
				p.RoleID = RoleModerator
			} else {
				p.RoleID = ""
			}
		}
		e.room.CenterCards = nil
		e.room.ClearVotes()
		e.room.VotingRounds = 0
		e.room.CiviliansKilled = 0
		e.room.Result = nil
		e.night = nil
		e.story = nil
		e.chat.ClearChat(e.room.ID)
		e.enterUntimedPhase(PhaseSetup)
		log.Printf("Room %s restarted, roster of %d preserved", e.room.ID, len(e.room.Participants()))
		e.systemMessage("The host has started a new game.")
	})
	return gerr
}

func (e *GameEngine) requireHost(participantID string) *GameError {
	if e.room.HostID == "" || participantID != e.room.HostID {
		return errNotHost()
	}
	return nil
}
