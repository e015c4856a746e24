package main

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

// TallyResult is the outcome of closing one voting round.
type TallyResult struct {
	Eliminated *Participant
	Abstained  []string
	Counts     map[string]int
	NoVotes    bool
	Message    string
}

// SubmitVote records or replaces one participant's vote. An empty targetID is
// an explicit abstain. Once every eligible voter has voted the round closes
// immediately instead of waiting out the clock.
func (e *GameEngine) SubmitVote(voterID, targetID string) *GameError {
	var gerr *GameError
	e.call(func() {
		if e.room.Phase != PhaseVoting {
			gerr = errWrongPhase(PhaseVoting, e.room.Phase)
			return
		}
		if gerr = e.room.RecordVote(voterID, targetID); gerr != nil {
			return
		}
		e.broadcastRoomState()
		if len(e.room.Votes) >= len(e.room.EligibleVoters()) {
			DebugLog("SubmitVote", "Room %s: all %d voters in, closing round early", e.room.ID, len(e.room.Votes))
			e.cancelDeadline()
			e.finishVoting()
		}
	})
	return gerr
}

// finishVoting closes the round: non-voters become abstains, the tally runs,
// an eliminated player (plus any retaliation) dies, and the win conditions
// decide whether the game ends or night falls again.
func (e *GameEngine) finishVoting() {
	for _, p := range e.room.EligibleVoters() {
		if _, voted := e.room.Votes[p.ID]; !voted {
			e.room.Votes[p.ID] = ""
		}
	}

	tally := tallyVotes(e.room)
	e.room.VotingRounds++
	log.Printf("Room %s voting round %d: %s", e.room.ID, e.room.VotingRounds, tally.Message)
	e.systemMessage(tally.Message)

	if tally.Eliminated != nil {
		if _, gerr := e.room.MarkKilled(tally.Eliminated.ID); gerr != nil {
			logError("finishVoting: MarkKilled", gerr)
		} else {
			e.noteDeath(tally.Eliminated)
			e.resolveRetaliation(tally.Eliminated)
		}
	}
	e.narrate()

	if res := e.evaluateWin(); res != nil {
		e.endGame(res)
		return
	}
	e.beginNight()
}

// tallyVotes evaluates the vote ledger. Elimination requires a majority of
// eligible voters, ceil(n/2), landing on a single strictly-highest candidate;
// ties and sub-majority rounds eliminate nobody.
func tallyVotes(r *Room) TallyResult {
	eligible := r.EligibleVoters()
	res := TallyResult{Counts: make(map[string]int)}

	cast := 0
	for _, p := range eligible {
		targetID, ok := r.Votes[p.ID]
		if !ok || targetID == "" {
			res.Abstained = append(res.Abstained, p.Name)
			continue
		}
		cast++
		res.Counts[targetID]++
	}
	if cast == 0 {
		res.NoVotes = true
		res.Message = "No votes were cast. Nobody is eliminated."
		return res
	}

	majority := (len(eligible) + 1) / 2
	var topID string
	top, tie := 0, false
	// Display order keeps equal tallies deterministic.
	for _, p := range r.Participants() {
		c := res.Counts[p.ID]
		if c > top {
			top, topID, tie = c, p.ID, false
		} else if c == top && c > 0 {
			tie = true
		}
	}

	if tie || top < majority {
		var parts []string
		for _, p := range r.Participants() {
			if c := res.Counts[p.ID]; c > 0 {
				parts = append(parts, fmt.Sprintf("%s (%d)", p.Name, c))
			}
		}
		res.Message = "The vote was inconclusive: " + strings.Join(parts, ", ") + ". Nobody is eliminated."
		return res
	}

	res.Eliminated = r.ParticipantByID(topID)
	res.Message = fmt.Sprintf("The village has voted: %s is eliminated with %d of %d votes.",
		res.Eliminated.Name, top, len(eligible))
	return res
}

// SetRevengeTarget lets a living hunter mark who dies with them. The mark may
// be changed at any point before the hunter's elimination.
func (e *GameEngine) SetRevengeTarget(actorID, targetID string) *GameError {
	var gerr *GameError
	e.call(func() {
		actor := e.room.ParticipantByID(actorID)
		if actor == nil {
			gerr = errNotFound("Participant")
			return
		}
		if actor.RoleID != RoleHunter {
			gerr = errInvalidTarget("Only the hunter marks a revenge target")
			return
		}
		if !actor.Alive {
			gerr = newGameError(ErrCodeNotAlive, "Dead players cannot act")
			return
		}
		if e.room.Phase == PhaseSetup || e.room.Phase == PhaseEnded {
			gerr = newGameError(ErrCodeWrongPhase, "The game is not running")
			return
		}
		target := e.room.ParticipantByID(targetID)
		if target == nil {
			gerr = errNotFound("Target")
			return
		}
		if target.ID == actorID || target.ID == e.room.HostID || !target.Alive {
			gerr = errInvalidTarget("Pick another living player")
			return
		}
		actor.RevengeTarget = targetID
		DebugLog("SetRevengeTarget", "Room %s: hunter %s marked %s", e.room.ID, actor.Name, target.Name)
		e.out.SendTo(actorID, EventActionResult, ActionResult{
			Outcome: OutcomeOK,
			Message: "If you die, " + target.Name + " dies with you.",
		})
	})
	return gerr
}

// resolveRetaliation fires a dead hunter's marked kill, recursively so a
// chain of hunters resolves in one pass. Runs before win evaluation.
func (e *GameEngine) resolveRetaliation(dead *Participant) []*Participant {
	if dead.RoleID != RoleHunter || dead.RevengeTarget == "" {
		return nil
	}
	target := e.room.ParticipantByID(dead.RevengeTarget)
	if target == nil || !target.Alive {
		return nil
	}
	if _, gerr := e.room.MarkKilled(target.ID); gerr != nil {
		logError("resolveRetaliation: MarkKilled", gerr)
		return nil
	}
	e.noteDeath(target)
	log.Printf("Room %s: hunter %s took %s down with them", e.room.ID, dead.Name, target.Name)
	e.systemMessage("With their dying breath, " + dead.Name + " shoots " + target.Name + ".")
	killed := []*Participant{target}
	return append(killed, e.resolveRetaliation(target)...)
}

// noteDeath updates the kill counters after any elimination.
func (e *GameEngine) noteDeath(p *Participant) {
	if e.catalog.RoleByID(p.RoleID).Team == TeamVillager {
		e.room.CiviliansKilled++
	}
}

// evaluateWin checks the win conditions in fixed priority order and returns
// nil while the game continues.
//
//  1. A survivor alive after enough voting rounds wins alone.
//  2. A dead tanner wins alone.
//  3. Any dead werewolf-team member means the village wins.
//  4. No living villager-team player means the werewolves win.
func (e *GameEngine) evaluateWin() *WinResult {
	r := e.room

	if r.VotingRounds >= e.cfg.SurvivorRoundTarget {
		for _, p := range r.Players() {
			if p.Alive && e.catalog.RoleByID(p.RoleID).Team == TeamSurvivor {
				return &WinResult{
					Faction: TeamSurvivor,
					Winners: []string{p.ID},
					Message: p.Name + " outlasted the village and wins alone.",
				}
			}
		}
	}

	for _, p := range r.Players() {
		if !p.Alive && e.catalog.RoleByID(p.RoleID).Team == TeamTanner {
			return &WinResult{
				Faction: TeamTanner,
				Winners: []string{p.ID},
				Message: p.Name + " the tanner wanted to die, and wins alone.",
			}
		}
	}

	for _, p := range r.Players() {
		if !p.Alive && e.catalog.RoleByID(p.RoleID).Team == TeamWerewolf {
			return &WinResult{
				Faction: TeamVillager,
				Winners: e.teamMembers(TeamVillager),
				Message: "A werewolf is dead. The village wins.",
			}
		}
	}

	villagersAlive := false
	for _, p := range r.Players() {
		if p.Alive && e.catalog.RoleByID(p.RoleID).Team == TeamVillager {
			villagersAlive = true
			break
		}
	}
	if !villagersAlive {
		return &WinResult{
			Faction: TeamWerewolf,
			Winners: e.teamMembers(TeamWerewolf),
			Message: "The last villager is gone. The werewolves win.",
		}
	}

	return nil
}

// teamMembers lists every player id on a team, dead or alive, in stable order.
func (e *GameEngine) teamMembers(team Team) []string {
	var ids []string
	for _, p := range e.room.Players() {
		if e.catalog.RoleByID(p.RoleID).Team == team {
			ids = append(ids, p.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
