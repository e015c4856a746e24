package main

import "strings"

// Chat channels.
const (
	ChatPublic   = "public"
	ChatWerewolf = "werewolf"
	ChatWhisper  = "whisper"
)

// RelayChat routes a participant's chat line according to the phase policy.
// Public goes to the room, werewolf chat to the pack and the host, whispers
// to the host only. The sender always sees their own message echoed back.
func (e *GameEngine) RelayChat(senderID, channel, text string) *GameError {
	var gerr *GameError
	e.call(func() {
		sender := e.room.ParticipantByID(senderID)
		if sender == nil {
			gerr = errNotFound("Participant")
			return
		}
		text = strings.TrimSpace(text)
		if text == "" {
			gerr = newGameError(ErrCodeBadConfig, "Empty message")
			return
		}

		policy := chatPolicyForPhase(e.room.Phase)
		payload := map[string]string{
			"from":    sender.Name,
			"color":   sender.Color,
			"channel": channel,
			"text":    text,
		}

		switch channel {
		case ChatPublic:
			if !policy.CanPublicChat {
				gerr = newGameError(ErrCodeWrongPhase, "Public chat is closed right now")
				return
			}
			e.out.Broadcast(e.room.ID, EventChatMessage, payload)

		case ChatWerewolf:
			if !policy.CanWerewolfChat {
				gerr = newGameError(ErrCodeWrongPhase, "The pack only talks at night")
				return
			}
			if e.catalog.RoleByID(sender.RoleID).Team != TeamWerewolf && sender.ID != e.room.HostID {
				gerr = errInvalidTarget("You are not part of the pack")
				return
			}
			for _, p := range e.room.Participants() {
				if e.catalog.RoleByID(p.RoleID).Team == TeamWerewolf || p.ID == e.room.HostID {
					e.out.SendTo(p.ID, EventChatMessage, payload)
				}
			}

		case ChatWhisper:
			if !policy.CanWhisperHost {
				gerr = newGameError(ErrCodeWrongPhase, "Whispers are closed right now")
				return
			}
			e.out.SendTo(e.room.HostID, EventChatMessage, payload)
			if senderID != e.room.HostID {
				e.out.SendTo(senderID, EventChatMessage, payload)
			}

		default:
			gerr = errInvalidTarget("Unknown chat channel '" + channel + "'")
		}
	})
	return gerr
}
