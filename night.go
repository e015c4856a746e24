package main

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

// NightAction is one actor's submission for their night turn. Which fields
// are required depends on the acting role.
type NightAction struct {
	TargetIDs     []string `json:"target_ids,omitempty"`
	CenterIndexes []int    `json:"center_indexes,omitempty"`
}

// ActionResult is what the acting participant gets back for an accepted
// action. Revealed roles are keyed by participant id or "center:N".
type ActionResult struct {
	Outcome       string            `json:"outcome"`
	Message       string            `json:"message,omitempty"`
	RevealedRoles map[string]RoleID `json:"revealed_roles,omitempty"`
}

const (
	OutcomeOK             = "ok"
	OutcomeSkippedBlocked = "skipped_blocked"
)

// NightTurn is the scheduler's ephemeral per-role-group state.
type NightTurn struct {
	RoleID    RoleID
	Eligible  []string
	Completed map[string]bool
	Deadline  int64 // unix seconds, for UI display
}

// nightState exists only while the scheduler is mid-sequence.
type nightState struct {
	queue     []RoleID
	idx       int
	turn      *NightTurn
	killVotes map[string]string // werewolf actor id → victim id
}

// buildNightQueue collects the distinct roles held by living players, keeps
// the implemented ones with a night action, and orders them by turn order
// (catalog declaration order breaks ties).
func buildNightQueue(room *Room, catalog *RoleCatalog) []RoleID {
	seen := make(map[RoleID]bool)
	var queue []RoleID
	for _, p := range room.AlivePlayers() {
		if seen[p.RoleID] {
			continue
		}
		seen[p.RoleID] = true
		info := catalog.RoleByID(p.RoleID)
		if info.HasNightAction && info.Implemented {
			queue = append(queue, p.RoleID)
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		a, b := catalog.RoleByID(queue[i]), catalog.RoleByID(queue[j])
		if a.TurnOrder != b.TurnOrder {
			return a.TurnOrder < b.TurnOrder
		}
		return catalog.declarationIndex(a.ID) < catalog.declarationIndex(b.ID)
	})
	return queue
}

func (e *GameEngine) nightBegin() {
	e.night = &nightState{
		queue:     buildNightQueue(e.room, e.catalog),
		killVotes: make(map[string]string),
	}
	DebugLog("nightBegin", "Room %s night queue: %v", e.room.ID, e.night.queue)
	e.nightAdvance()
}

// nightAdvance opens the next turn with a living holder, skipping empty
// role-groups immediately. With the queue exhausted it schedules the short
// settle delay before dawn so in-flight messages can land.
func (e *GameEngine) nightAdvance() {
	ns := e.night
	if ns == nil {
		return
	}
	ns.turn = nil
	for ns.idx < len(ns.queue) {
		roleID := ns.queue[ns.idx]
		var eligible []*Participant
		for _, p := range e.room.AlivePlayers() {
			if p.RoleID == roleID {
				eligible = append(eligible, p)
			}
		}
		if len(eligible) == 0 {
			DebugLog("nightAdvance", "Room %s: no living %s, skipping turn", e.room.ID, roleID)
			ns.idx++
			continue
		}

		turn := &NightTurn{
			RoleID:    roleID,
			Completed: make(map[string]bool),
			Deadline:  e.clock.Now().Add(e.cfg.NightTurnBudget).Unix(),
		}
		for _, p := range eligible {
			turn.Eligible = append(turn.Eligible, p.ID)
		}

		// Actors blocked by an earlier role are auto-completed; they get a
		// skip notice instead of a real action.
		for _, p := range eligible {
			if p.Blocked {
				turn.Completed[p.ID] = true
				e.out.SendTo(p.ID, EventActionResult, ActionResult{
					Outcome: OutcomeSkippedBlocked,
					Message: "You were locked up tonight and skip your action.",
				})
			}
		}
		if len(turn.Completed) == len(turn.Eligible) {
			ns.idx++
			continue
		}

		ns.turn = turn
		for _, p := range eligible {
			if !turn.Completed[p.ID] {
				e.out.SendTo(p.ID, EventYourTurn, TurnPayload{RoleID: roleID, Deadline: turn.Deadline})
			}
		}
		e.out.Broadcast(e.room.ID, EventTurnStarted, TurnPayload{RoleID: roleID, Deadline: turn.Deadline})
		e.rescheduleDeadline(e.cfg.NightTurnBudget, e.nightTurnTimeout)
		log.Printf("Room %s: %s turn open, %d eligible actor(s)", e.room.ID, roleID, len(turn.Eligible))
		return
	}

	DebugLog("nightAdvance", "Room %s night queue exhausted, settling before dawn", e.room.ID)
	e.rescheduleDeadline(e.cfg.NightSettleDelay, e.beginDay)
}

// nightTurnTimeout fires when a turn's budget elapses with actors missing.
func (e *GameEngine) nightTurnTimeout() {
	ns := e.night
	if ns == nil || ns.turn == nil {
		return
	}
	log.Printf("Room %s: %s turn timed out (%d/%d acted)",
		e.room.ID, ns.turn.RoleID, len(ns.turn.Completed), len(ns.turn.Eligible))
	ns.idx++
	e.nightAdvance()
}

// nightForce is the host's force-advance while night is running: close the
// current turn as a timeout would, or cut the settle delay short.
func (e *GameEngine) nightForce() {
	ns := e.night
	if ns == nil {
		return
	}
	if ns.turn != nil {
		ns.idx++
		e.nightAdvance()
		return
	}
	e.cancelDeadline()
	e.beginDay()
}

// SubmitNightAction validates and applies one actor's night action. The
// checks run in a fixed order and the first failure short-circuits with no
// state mutated, so retrying a rejected action is always safe.
func (e *GameEngine) SubmitNightAction(actorID string, act NightAction) (ActionResult, *GameError) {
	var res ActionResult
	var gerr *GameError
	e.call(func() { res, gerr = e.submitNightAction(actorID, act) })
	return res, gerr
}

func (e *GameEngine) submitNightAction(actorID string, act NightAction) (ActionResult, *GameError) {
	var zero ActionResult
	actor := e.room.ParticipantByID(actorID)
	if actor == nil {
		return zero, errNotFound("Participant")
	}
	if !actor.Alive {
		return zero, newGameError(ErrCodeNotAlive, "Dead players cannot act")
	}
	ns := e.night
	if e.room.Phase != PhaseNight || ns == nil || ns.turn == nil {
		return zero, newGameError(ErrCodeWrongTurn, "It is not your turn")
	}
	turn := ns.turn
	eligible := false
	for _, id := range turn.Eligible {
		if id == actorID {
			eligible = true
			break
		}
	}
	if actor.RoleID != turn.RoleID || !eligible {
		return zero, newGameError(ErrCodeWrongTurn, "It is not your turn")
	}
	if turn.Completed[actorID] {
		return zero, newGameError(ErrCodeAlreadyActed, "You have already acted this turn")
	}

	res, gerr := e.resolveRoleAction(actor, act)
	if gerr != nil {
		// Not completed: the actor may retry until the turn deadline.
		return zero, gerr
	}

	turn.Completed[actorID] = true
	e.out.SendTo(actorID, EventActionResult, res)
	DebugLog("submitNightAction", "Room %s: %s (%s) acted (%d/%d)",
		e.room.ID, actor.Name, actor.RoleID, len(turn.Completed), len(turn.Eligible))

	if len(turn.Completed) == len(turn.Eligible) {
		// Completion beats the pending deadline; cancel it before advancing.
		e.cancelDeadline()
		ns.idx++
		e.nightAdvance()
	}
	return res, nil
}

// resolveRoleAction dispatches over the closed role set. Every branch
// validates its own preconditions and mutates the room only through the
// Room's capability methods.
func (e *GameEngine) resolveRoleAction(actor *Participant, act NightAction) (ActionResult, *GameError) {
	var zero ActionResult
	switch actor.RoleID {
	case RoleWerewolf:
		return e.resolveWerewolfAction(actor, act)

	case RoleWarden:
		target, gerr := e.livingTargetNotSelf(actor, act, 0)
		if gerr != nil {
			return zero, gerr
		}
		if gerr := e.room.MarkBlocked(target.ID); gerr != nil {
			return zero, gerr
		}
		return ActionResult{Outcome: OutcomeOK, Message: "You locked up " + target.Name + " for the night."}, nil

	case RoleMason:
		var names []string
		for _, p := range e.room.AlivePlayers() {
			if p.RoleID == RoleMason && p.ID != actor.ID {
				names = append(names, p.Name)
			}
		}
		msg := "You are the only mason."
		if len(names) > 0 {
			msg = "Your fellow masons: " + strings.Join(names, ", ")
		}
		return ActionResult{Outcome: OutcomeOK, Message: msg}, nil

	case RoleSeer:
		if len(act.CenterIndexes) > 0 {
			if len(act.TargetIDs) != 0 || len(act.CenterIndexes) != 2 || act.CenterIndexes[0] == act.CenterIndexes[1] {
				return zero, errInvalidTarget("Seer looks at one player or two different center cards")
			}
			revealed := make(map[string]RoleID)
			for _, idx := range act.CenterIndexes {
				if idx < 0 || idx >= len(e.room.CenterCards) {
					return zero, errInvalidTarget(fmt.Sprintf("No center card %d", idx))
				}
			}
			for _, idx := range act.CenterIndexes {
				revealed[fmt.Sprintf("center:%d", idx)] = e.room.CenterCards[idx]
			}
			return ActionResult{Outcome: OutcomeOK, Message: "You peeked at two center cards.", RevealedRoles: revealed}, nil
		}
		target, gerr := e.livingTargetNotSelf(actor, act, 0)
		if gerr != nil {
			return zero, gerr
		}
		return ActionResult{
			Outcome:       OutcomeOK,
			Message:       "You looked at " + target.Name + "'s role.",
			RevealedRoles: map[string]RoleID{target.ID: target.RoleID},
		}, nil

	case RoleRobber:
		target, gerr := e.livingTargetNotSelf(actor, act, 0)
		if gerr != nil {
			return zero, gerr
		}
		if gerr := e.room.SwapRoles(actor.ID, target.ID); gerr != nil {
			return zero, gerr
		}
		return ActionResult{
			Outcome:       OutcomeOK,
			Message:       "You robbed " + target.Name + " and took their role.",
			RevealedRoles: map[string]RoleID{actor.ID: actor.RoleID},
		}, nil

	case RoleTroublemaker:
		if len(act.TargetIDs) != 2 {
			return zero, errInvalidTarget("Troublemaker swaps two other players")
		}
		a, gerr := e.livingTargetNotSelf(actor, act, 0)
		if gerr != nil {
			return zero, gerr
		}
		b, gerr := e.livingTargetNotSelf(actor, act, 1)
		if gerr != nil {
			return zero, gerr
		}
		if gerr := e.room.SwapRoles(a.ID, b.ID); gerr != nil {
			return zero, gerr
		}
		return ActionResult{Outcome: OutcomeOK, Message: "You swapped " + a.Name + " and " + b.Name + "."}, nil

	case RoleDrunk:
		if len(act.CenterIndexes) != 1 {
			return zero, errInvalidTarget("Drunk swaps with one center card")
		}
		if gerr := e.room.SwapWithCenter(actor.ID, act.CenterIndexes[0]); gerr != nil {
			return zero, gerr
		}
		return ActionResult{Outcome: OutcomeOK, Message: "You swapped your role with a center card, unseen."}, nil

	case RoleInsomniac:
		return ActionResult{
			Outcome:       OutcomeOK,
			Message:       "You wake and check your card.",
			RevealedRoles: map[string]RoleID{actor.ID: actor.RoleID},
		}, nil

	case RoleBodyguard:
		target, gerr := e.livingTargetNotSelf(actor, act, 0)
		if gerr != nil {
			return zero, gerr
		}
		if gerr := e.room.MarkProtected(target.ID); gerr != nil {
			return zero, gerr
		}
		return ActionResult{Outcome: OutcomeOK, Message: "You are guarding " + target.Name + " tonight."}, nil

	default:
		return zero, newGameError(ErrCodeInvalidTarget, "Your role has no night action")
	}
}

// resolveWerewolfAction records a kill vote and shows the actor their pack.
// A lone werewolf may instead spend the turn peeking at one center card, or
// peek alongside the kill vote.
func (e *GameEngine) resolveWerewolfAction(actor *Participant, act NightAction) (ActionResult, *GameError) {
	var zero ActionResult

	var pack []string
	for _, p := range e.room.AlivePlayers() {
		if e.catalog.RoleByID(p.RoleID).Team == TeamWerewolf && p.ID != actor.ID {
			pack = append(pack, p.Name)
		}
	}

	revealed := make(map[string]RoleID)
	if len(pack) == 0 && len(act.CenterIndexes) == 1 {
		idx := act.CenterIndexes[0]
		if idx < 0 || idx >= len(e.room.CenterCards) {
			return zero, errInvalidTarget(fmt.Sprintf("No center card %d", idx))
		}
		revealed[fmt.Sprintf("center:%d", idx)] = e.room.CenterCards[idx]
	}

	// No victim named: only the lone wolf may trade the kill for a peek.
	if len(act.TargetIDs) == 0 {
		if len(pack) > 0 || len(revealed) == 0 {
			return zero, errInvalidTarget("Name a victim")
		}
		return ActionResult{
			Outcome:       OutcomeOK,
			Message:       "You forgo the hunt and peek at a center card.",
			RevealedRoles: revealed,
		}, nil
	}

	target, gerr := e.livingTargetNotSelf(actor, act, 0)
	if gerr != nil {
		return zero, gerr
	}
	if e.catalog.RoleByID(target.RoleID).Team == TeamWerewolf {
		return zero, errInvalidTarget("Choose a victim outside the pack")
	}

	e.night.killVotes[actor.ID] = target.ID

	msg := "You voted to kill " + target.Name + "."
	if len(pack) > 0 {
		msg += " Your pack: " + strings.Join(pack, ", ")
	}
	res := ActionResult{Outcome: OutcomeOK, Message: msg}
	if len(revealed) > 0 {
		res.RevealedRoles = revealed
	}
	return res, nil
}

// livingTargetNotSelf resolves act.TargetIDs[i] to a living participant
// other than the actor and the host.
func (e *GameEngine) livingTargetNotSelf(actor *Participant, act NightAction, i int) (*Participant, *GameError) {
	if len(act.TargetIDs) <= i {
		return nil, errInvalidTarget("Missing target")
	}
	targetID := act.TargetIDs[i]
	if targetID == actor.ID {
		return nil, errInvalidTarget("You cannot target yourself")
	}
	target := e.room.ParticipantByID(targetID)
	if target == nil {
		return nil, errNotFound("Target")
	}
	if target.ID == e.room.HostID {
		return nil, errInvalidTarget("The moderator cannot be targeted")
	}
	if !target.Alive {
		return nil, errInvalidTarget("Cannot target a dead player")
	}
	return target, nil
}

// resolveNightDeaths applies the werewolves' plurality kill at dawn. A tie
// or a protected victim means nobody dies. Returns the dead (kill plus any
// retaliation chain) and the saved victim, if any.
func (e *GameEngine) resolveNightDeaths() (deaths []*Participant, saved *Participant) {
	ns := e.night
	e.night = nil
	if ns == nil {
		return nil, nil
	}

	counts := make(map[string]int)
	for _, victimID := range ns.killVotes {
		counts[victimID]++
	}
	var victimID string
	max, tie := 0, false
	// Iterate in display order so equal counts resolve identically on replay.
	for _, p := range e.room.Participants() {
		c := counts[p.ID]
		if c > max {
			max, victimID, tie = c, p.ID, false
		} else if c == max && c > 0 {
			tie = true
		}
	}
	if victimID == "" || tie || max == 0 {
		return nil, nil
	}

	victim := e.room.ParticipantByID(victimID)
	if victim == nil || !victim.Alive {
		return nil, nil
	}
	if victim.Protected {
		log.Printf("Room %s: %s was attacked but protected", e.room.ID, victim.Name)
		return nil, victim
	}

	if _, gerr := e.room.MarkKilled(victimID); gerr != nil {
		logError("resolveNightDeaths: MarkKilled", gerr)
		return nil, nil
	}
	e.noteDeath(victim)
	log.Printf("Room %s: werewolves killed %s", e.room.ID, victim.Name)
	deaths = append(deaths, victim)
	deaths = append(deaths, e.resolveRetaliation(victim)...)
	return deaths, nil
}
