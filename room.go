package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Phase is the top-level state of a room's game session.
type Phase string

const (
	PhaseSetup        Phase = "setup"
	PhaseIntroduction Phase = "introduction"
	PhaseNight        Phase = "night"
	PhaseDay          Phase = "day"
	PhaseVoting       Phase = "voting"
	PhaseEnded        Phase = "ended"
)

// Participant is one identity inside a room. A Participant survives transport
// disconnects; it is only removed by an explicit kick or room teardown.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RoleID    RoleID `json:"role_id,omitempty"`
	Alive     bool   `json:"alive"`
	Protected bool   `json:"protected"`
	Connected bool   `json:"connected"`
	Color     string `json:"color"`

	// Blocked is night-scratch state: set by the warden, cleared at dusk.
	Blocked bool `json:"blocked,omitempty"`

	// RevengeTarget is the participant a hunter has marked; resolved as an
	// immediate retaliation kill when the hunter is eliminated.
	RevengeTarget string `json:"revenge_target,omitempty"`

	// VoteCount is a derived display cache, maintained by RecordVote.
	VoteCount int `json:"vote_count"`
}

// WinResult is produced once per game and immutable afterwards.
type WinResult struct {
	Faction Team      `json:"faction"`
	Winners []string  `json:"winners"`
	Message string    `json:"message"`
	EndedAt time.Time `json:"ended_at"`
}

// Room is the authoritative record of one game session. All access is
// serialized by the owning engine's event loop; Room itself holds no locks.
type Room struct {
	ID              string
	HostID          string
	participants    map[string]*Participant
	SelectedRoleIDs []RoleID
	CenterCards     []RoleID
	Phase           Phase
	PhaseDeadline   time.Time // zero = no pending deadline
	Votes           map[string]string
	VotingRounds    int
	CiviliansKilled int
	Result          *WinResult
}

func newRoom(id string) *Room {
	return &Room{
		ID:           id,
		participants: make(map[string]*Participant),
		Phase:        PhaseSetup,
		Votes:        make(map[string]string),
	}
}

// AddParticipant creates a participant with a fresh id and a free display
// colour. Names must be unique within the room, case-insensitively.
func (r *Room) AddParticipant(name string) (*Participant, *GameError) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newGameError(ErrCodeBadConfig, "Name is required")
	}
	if r.ParticipantByName(name) != nil {
		return nil, newGameError(ErrCodeNameTaken, "Name '%s' is already taken in this room", name)
	}
	p := &Participant{
		ID:        uuid.NewString(),
		Name:      name,
		Alive:     true,
		Connected: true,
		Color:     pickColor(r.usedColors(), ""),
	}
	r.participants[p.ID] = p
	return p, nil
}

// RemoveParticipant deletes a participant outright (kick or teardown).
func (r *Room) RemoveParticipant(id string) *GameError {
	if _, ok := r.participants[id]; !ok {
		return errNotFound("Participant")
	}
	delete(r.participants, id)
	delete(r.Votes, id)
	return nil
}

func (r *Room) ParticipantByID(id string) *Participant {
	return r.participants[id]
}

// ParticipantByName does a case-insensitive roster lookup.
func (r *Room) ParticipantByName(name string) *Participant {
	for _, p := range r.participants {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// RebindParticipant re-attaches a reconnecting identity to its existing
// roster entry by claimed name. Role, alive and vote state are preserved;
// only the connected flag changes.
func (r *Room) RebindParticipant(claimedName string) (*Participant, *GameError) {
	p := r.ParticipantByName(claimedName)
	if p == nil {
		return nil, errNotFound("Participant")
	}
	p.Connected = true
	return p, nil
}

// Participants returns the roster in deterministic display order:
// case-insensitive name, then id as a stable secondary key.
func (r *Room) Participants() []*Participant {
	list := make([]*Participant, 0, len(r.participants))
	for _, p := range r.participants {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := strings.ToLower(list[i].Name), strings.ToLower(list[j].Name)
		if a != b {
			return a < b
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// Players returns all non-host participants in display order.
func (r *Room) Players() []*Participant {
	var players []*Participant
	for _, p := range r.Participants() {
		if p.ID != r.HostID {
			players = append(players, p)
		}
	}
	return players
}

// AlivePlayers returns living non-host participants in display order.
func (r *Room) AlivePlayers() []*Participant {
	var alive []*Participant
	for _, p := range r.Players() {
		if p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}

// EligibleVoters are the living non-host participants; connectivity does not
// affect eligibility.
func (r *Room) EligibleVoters() []*Participant {
	return r.AlivePlayers()
}

// AssignRole sets a participant's role. The host's role is pinned to the
// moderator role and cannot be changed.
func (r *Room) AssignRole(id string, role RoleID) *GameError {
	p := r.participants[id]
	if p == nil {
		return errNotFound("Participant")
	}
	if id == r.HostID && role != RoleModerator {
		return errInvalidTarget("The host's role is fixed to moderator")
	}
	p.RoleID = role
	return nil
}

// RecordVote stores one vote for a living non-host participant. An empty
// target is an explicit abstain. Re-voting replaces the previous vote.
func (r *Room) RecordVote(voterID, targetID string) *GameError {
	voter := r.participants[voterID]
	if voter == nil {
		return errNotFound("Voter")
	}
	if voterID == r.HostID {
		return errInvalidTarget("The host does not vote")
	}
	if !voter.Alive {
		return newGameError(ErrCodeNotAlive, "Dead players cannot vote")
	}
	if targetID != "" {
		target := r.participants[targetID]
		if target == nil {
			return errNotFound("Target")
		}
		if !target.Alive {
			return errInvalidTarget("Cannot vote for a dead player")
		}
	}
	r.Votes[voterID] = targetID
	r.refreshVoteCounts()
	return nil
}

// ClearVotes resets the vote ledger at the start of a voting phase.
func (r *Room) ClearVotes() {
	r.Votes = make(map[string]string)
	r.refreshVoteCounts()
}

func (r *Room) refreshVoteCounts() {
	for _, p := range r.participants {
		p.VoteCount = 0
	}
	for _, targetID := range r.Votes {
		if target := r.participants[targetID]; target != nil {
			target.VoteCount++
		}
	}
}

// MarkKilled sets a living participant dead and drops their pending vote, so
// the ledger never holds more entries than there are eligible voters.
// Protection is a caller concern: the night resolver checks Protected before
// calling this.
func (r *Room) MarkKilled(id string) (*Participant, *GameError) {
	p := r.participants[id]
	if p == nil {
		return nil, errNotFound("Participant")
	}
	if !p.Alive {
		return nil, newGameError(ErrCodeNotAlive, "%s is already dead", p.Name)
	}
	p.Alive = false
	delete(r.Votes, id)
	r.refreshVoteCounts()
	return p, nil
}

// MarkProtected flags a living participant as protected for this night.
func (r *Room) MarkProtected(id string) *GameError {
	p := r.participants[id]
	if p == nil {
		return errNotFound("Participant")
	}
	if !p.Alive {
		return newGameError(ErrCodeNotAlive, "Cannot protect a dead player")
	}
	p.Protected = true
	return nil
}

// MarkBlocked flags a living participant as blocked for this night; their
// night turn is auto-completed as skipped.
func (r *Room) MarkBlocked(id string) *GameError {
	p := r.participants[id]
	if p == nil {
		return errNotFound("Participant")
	}
	if !p.Alive {
		return newGameError(ErrCodeNotAlive, "Cannot block a dead player")
	}
	p.Blocked = true
	return nil
}

// SwapRoles exchanges the roles of two distinct participants.
func (r *Room) SwapRoles(aID, bID string) *GameError {
	if aID == bID {
		return errInvalidTarget("Swap targets must be two different players")
	}
	a, b := r.participants[aID], r.participants[bID]
	if a == nil || b == nil {
		return errNotFound("Participant")
	}
	a.RoleID, b.RoleID = b.RoleID, a.RoleID
	return nil
}

// SwapWithCenter exchanges a participant's role with a center card.
func (r *Room) SwapWithCenter(id string, centerIdx int) *GameError {
	p := r.participants[id]
	if p == nil {
		return errNotFound("Participant")
	}
	if centerIdx < 0 || centerIdx >= len(r.CenterCards) {
		return errInvalidTarget(fmt.Sprintf("No center card %d", centerIdx))
	}
	p.RoleID, r.CenterCards[centerIdx] = r.CenterCards[centerIdx], p.RoleID
	return nil
}

// ClearNightScratch wipes the per-night flags (protection, blocks) at dusk.
func (r *Room) ClearNightScratch() {
	for _, p := range r.participants {
		p.Protected = false
		p.Blocked = false
	}
}

func (r *Room) usedColors() map[string]bool {
	used := make(map[string]bool)
	for _, p := range r.participants {
		if p.Color != "" {
			used[p.Color] = true
		}
	}
	return used
}

// displayPalette is the fixed 12-colour participant palette.
var displayPalette = [12]string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231", "#911eb4",
	"#46f0f0", "#f032e6", "#bcf60c", "#fabebe", "#008080", "#e6beff",
}

const defaultColor = "#808080"

// pickColor deterministically picks a display colour: the preferred one if
// free, else the first unused palette entry, else the default.
func pickColor(used map[string]bool, preferred string) string {
	if preferred != "" && !used[preferred] {
		for _, c := range displayPalette {
			if c == preferred {
				return preferred
			}
		}
	}
	for _, c := range displayPalette {
		if !used[c] {
			return c
		}
	}
	return defaultColor
}

// RoomSnapshot is the serializable form of a room's state. Restoring a
// snapshot and replaying the same accepted actions with the same shuffle
// seed reproduces the room exactly.
type RoomSnapshot struct {
	ID              string         `json:"id"`
	HostID          string         `json:"host_id"`
	Participants    []*Participant `json:"participants"`
	SelectedRoleIDs []RoleID       `json:"selected_role_ids"`
	CenterCards     []RoleID       `json:"center_cards"`
	Phase           Phase          `json:"phase"`
	PhaseDeadline   time.Time      `json:"phase_deadline"`
	Votes           map[string]string `json:"votes"`
	VotingRounds    int            `json:"voting_rounds"`
	CiviliansKilled int            `json:"civilians_killed"`
	Result          *WinResult     `json:"result,omitempty"`
}

// Snapshot captures the room's full state in deterministic order.
func (r *Room) Snapshot() RoomSnapshot {
	snap := RoomSnapshot{
		ID:              r.ID,
		HostID:          r.HostID,
		Participants:    r.Participants(),
		SelectedRoleIDs: append([]RoleID(nil), r.SelectedRoleIDs...),
		CenterCards:     append([]RoleID(nil), r.CenterCards...),
		Phase:           r.Phase,
		PhaseDeadline:   r.PhaseDeadline,
		Votes:           make(map[string]string, len(r.Votes)),
		VotingRounds:    r.VotingRounds,
		CiviliansKilled: r.CiviliansKilled,
		Result:          r.Result,
	}
	for k, v := range r.Votes {
		snap.Votes[k] = v
	}
	return snap
}

// MarshalState serializes the room state to JSON.
func (r *Room) MarshalState() ([]byte, error) {
	return json.Marshal(r.Snapshot())
}

// RestoreRoom rebuilds a Room from a snapshot.
func RestoreRoom(snap RoomSnapshot) *Room {
	r := newRoom(snap.ID)
	r.HostID = snap.HostID
	for _, p := range snap.Participants {
		clone := *p
		r.participants[clone.ID] = &clone
	}
	r.SelectedRoleIDs = append([]RoleID(nil), snap.SelectedRoleIDs...)
	r.CenterCards = append([]RoleID(nil), snap.CenterCards...)
	r.Phase = snap.Phase
	r.PhaseDeadline = snap.PhaseDeadline
	for k, v := range snap.Votes {
		r.Votes[k] = v
	}
	r.VotingRounds = snap.VotingRounds
	r.CiviliansKilled = snap.CiviliansKilled
	r.Result = snap.Result
	r.refreshVoteCounts()
	return r
}
