package main

import "time"

// Server event names. Every outbound frame is {"event": ..., "payload": ...}.
const (
	EventRoomState     = "room_state"
	EventPhaseChanged  = "phase_changed"
	EventTurnStarted   = "turn_started"
	EventYourTurn      = "your_turn"
	EventActionResult  = "action_result"
	EventRoleInfo      = "role_info"
	EventSystemMessage = "system_message"
	EventGameEnded     = "game_ended"
	EventChatMessage   = "chat_message"
	EventError         = "error"
)

// PhasePayload announces a phase transition. Deadline is unix seconds, 0 when
// the phase has no wall clock.
type PhasePayload struct {
	Phase      Phase      `json:"phase"`
	Deadline   int64      `json:"deadline,omitempty"`
	ChatPolicy ChatPolicy `json:"chat_policy"`
}

// TurnPayload announces a night turn. Broadcast publicly as turn_started and
// unicast to eligible actors as your_turn.
type TurnPayload struct {
	RoleID   RoleID `json:"role_id"`
	Deadline int64  `json:"deadline"`
}

// RoleInfoPayload is the private role card sent to each player.
type RoleInfoPayload struct {
	RoleID      RoleID `json:"role_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Team        Team   `json:"team"`
}

// GameEndedPayload carries the full reveal: result, every role, the center.
type GameEndedPayload struct {
	Result      *WinResult        `json:"result"`
	Roles       map[string]RoleID `json:"roles"`
	CenterCards []RoleID          `json:"center_cards"`
	ChatPolicy  ChatPolicy        `json:"chat_policy"`
}

// PublicParticipant is a roster entry with the hidden state stripped.
type PublicParticipant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Alive     bool   `json:"alive"`
	Connected bool   `json:"connected"`
	Color     string `json:"color"`
	IsHost    bool   `json:"is_host"`
	VoteCount int    `json:"vote_count"`
}

// RoomStatePayload is the broadcast room view. Roles, votes by voter,
// protection and center cards never appear here.
type RoomStatePayload struct {
	RoomID        string              `json:"room_id"`
	Phase         Phase               `json:"phase"`
	Deadline      int64               `json:"deadline,omitempty"`
	Participants  []PublicParticipant `json:"participants"`
	SelectedRoles []RoleID            `json:"selected_roles"`
	CenterCount   int                 `json:"center_count"`
	VotingRounds  int                 `json:"voting_rounds"`
	VotesCast     int                 `json:"votes_cast"`
	ChatPolicy    ChatPolicy          `json:"chat_policy"`
}

// publicRoomState projects a room into its broadcastable form.
func publicRoomState(r *Room) RoomStatePayload {
	payload := RoomStatePayload{
		RoomID:        r.ID,
		Phase:         r.Phase,
		Deadline:      deadlineUnix(r.PhaseDeadline),
		SelectedRoles: append([]RoleID(nil), r.SelectedRoleIDs...),
		CenterCount:   len(r.CenterCards),
		VotingRounds:  r.VotingRounds,
		VotesCast:     len(r.Votes),
		ChatPolicy:    chatPolicyForPhase(r.Phase),
	}
	for _, p := range r.Participants() {
		payload.Participants = append(payload.Participants, PublicParticipant{
			ID:        p.ID,
			Name:      p.Name,
			Alive:     p.Alive,
			Connected: p.Connected,
			Color:     p.Color,
			IsHost:    p.ID == r.HostID,
			VoteCount: p.VoteCount,
		})
	}
	return payload
}

func deadlineUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
