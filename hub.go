package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSMessage represents a message from the client
type WSMessage struct {
	Action        string   `json:"action"`
	RoleID        string   `json:"role_id,omitempty"`
	TargetID      string   `json:"target_id,omitempty"`
	TargetIDs     []string `json:"target_ids,omitempty"`
	CenterIndexes []int    `json:"center_indexes,omitempty"`
	Seconds       int      `json:"seconds,omitempty"`
	Channel       string   `json:"channel,omitempty"`
	Text          string   `json:"text,omitempty"`
}

// ServerEvent is the outbound frame envelope.
type ServerEvent struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Client represents a websocket connection bound to one participant
type Client struct {
	conn            *websocket.Conn
	participantID   string
	participantName string
	roomID          string
	writeMu         sync.Mutex // Serialize writes to WebSocket (required by gorilla/websocket)
}

// Hub fans engine events out to connected clients. It implements both
// Broadcaster and SystemMessageSink for the engines behind it.
type Hub struct {
	clients    map[*websocket.Conn]*Client
	register   chan *Client
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	done       chan struct{}
	wg         sync.WaitGroup

	// set after construction; the registry needs the hub as Broadcaster first
	rooms *RoomRegistry

	chatMu  sync.Mutex
	chatLog map[string][]string
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*Client),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn, 64),
		done:       make(chan struct{}),
		chatLog:    make(map[string][]string),
	}
}

// stop signals the hub goroutine to exit and waits for it to finish
func (h *Hub) stop() {
	close(h.done)
	h.wg.Wait()
}

func encodeEvent(event string, payload any) []byte {
	data, err := json.Marshal(ServerEvent{Event: event, Payload: payload})
	if err != nil {
		log.Printf("encodeEvent %s: %v", event, err)
		return nil
	}
	return data
}

func (c *Client) write(data []byte) {
	if data == nil {
		return
	}
	c.writeMu.Lock()
	err := c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		log.Printf("WebSocket write error to '%s': %v", c.participantName, err)
	}
}

// Broadcast sends an event to every connection in a room.
func (h *Hub) Broadcast(roomID string, event string, payload any) {
	data := encodeEvent(event, payload)
	LogRoomEvent(roomID, event, "broadcast")

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.roomID == roomID {
			client.write(data)
		}
	}
}

// SendTo sends an event to every connection of one participant.
func (h *Hub) SendTo(participantID string, event string, payload any) {
	data := encodeEvent(event, payload)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.participantID == participantID {
			LogWSMessage("OUT", client.participantName, event)
			client.write(data)
		}
	}
}

// AppendSystemMessage records a system line in the room's chat history so
// late joiners can catch up.
func (h *Hub) AppendSystemMessage(roomID, text string) {
	h.chatMu.Lock()
	defer h.chatMu.Unlock()
	logLines := append(h.chatLog[roomID], text)
	if len(logLines) > 100 {
		logLines = logLines[len(logLines)-100:]
	}
	h.chatLog[roomID] = logLines
}

// ChatHistory returns a copy of the room's recent system messages.
func (h *Hub) ChatHistory(roomID string) []string {
	h.chatMu.Lock()
	defer h.chatMu.Unlock()
	return append([]string(nil), h.chatLog[roomID]...)
}

// ClearChat wipes a room's chat history, on restart or teardown.
func (h *Hub) ClearChat(roomID string) {
	h.chatMu.Lock()
	defer h.chatMu.Unlock()
	delete(h.chatLog, roomID)
}

func (h *Hub) run() {
	h.wg.Add(1)
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected ('%s' in room %s). Total: %d",
				client.participantName, client.roomID, total)
			DebugLog("hub.register", "Participant '%s' connected to room %s", client.participantName, client.roomID)

		case conn := <-h.unregister:
			var lostID, lostName, lostRoom string
			h.mu.Lock()
			client, ok := h.clients[conn]
			if ok {
				delete(h.clients, conn)
				conn.Close()

				// Check if the participant has any remaining connections
				hasOtherConn := false
				for _, c := range h.clients {
					if c.participantID == client.participantID {
						hasOtherConn = true
						break
					}
				}
				if !hasOtherConn {
					lostID = client.participantID
					lostName = client.participantName
					lostRoom = client.roomID
				}
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected. Total: %d", total)
			// Flip connectivity after releasing the lock; SetConnected
			// broadcasts, which needs the read lock.
			if lostID != "" {
				h.dropParticipant(lostID, lostName, lostRoom)
			}
		}
	}
}

// dropParticipant marks a participant disconnected once their last connection
// is gone, and tears the room down when nobody is left connected.
func (h *Hub) dropParticipant(participantID, name, roomID string) {
	DebugLog("hub.dropParticipant", "Participant '%s' has no more connections", name)
	engine := h.rooms.Get(roomID)
	if engine == nil {
		return
	}
	engine.SetConnected(participantID, false)
	if h.rooms.RemoveIfEmpty(roomID) {
		h.ClearChat(roomID)
		log.Printf("Room %s is empty, removed", roomID)
	}
}

func (h *Hub) sendError(client *Client, gerr *GameError) {
	DebugLog("hub.sendError", "To '%s': %s: %s", client.participantName, gerr.Code, gerr.Reason)
	client.write(encodeEvent(EventError, map[string]string{
		"code":   gerr.Code,
		"reason": gerr.Reason,
	}))
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomCode := r.URL.Query().Get("room")
	name := r.URL.Query().Get("name")
	if roomCode == "" || name == "" {
		http.Error(w, "room and name are required", http.StatusBadRequest)
		return
	}

	engine := h.rooms.Get(roomCode)
	if engine == nil {
		DebugLog("handleWebSocket", "Rejected connection to unknown room '%s'", roomCode)
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	var upgrader = websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error for '%s': %v", name, err)
		return
	}

	p, gerr := engine.Join(name)
	if gerr != nil {
		data := encodeEvent(EventError, map[string]string{"code": gerr.Code, "reason": gerr.Reason})
		conn.WriteMessage(websocket.TextMessage, data)
		conn.Close()
		return
	}

	client := &Client{
		conn:            conn,
		participantID:   p.ID,
		participantName: p.Name,
		roomID:          engine.RoomID(),
	}
	h.register <- client

	// Catch the new connection up before live events flow.
	client.write(encodeEvent(EventRoomState, engine.PublicState()))
	for _, line := range h.ChatHistory(client.roomID) {
		client.write(encodeEvent(EventSystemMessage, map[string]string{"text": line}))
	}
	engine.SetConnected(p.ID, true)

	go func() {
		defer func() {
			h.unregister <- conn
		}()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				break
			}
			h.handleWSMessage(engine, client, message)
		}
	}()
}

func (h *Hub) handleWSMessage(engine *GameEngine, client *Client, message []byte) {
	var msg WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("WebSocket unmarshal error for '%s': %v", client.participantName, err)
		return
	}

	LogWSMessage("IN", client.participantName, msg.Action)

	var gerr *GameError
	switch msg.Action {
	case "select_role":
		gerr = engine.SelectRole(client.participantID, RoleID(msg.RoleID))
	case "remove_role":
		gerr = engine.RemoveRole(client.participantID, RoleID(msg.RoleID))
	case "start_game":
		gerr = engine.StartGame(client.participantID)
	case "restart_game":
		gerr = engine.RestartGame(client.participantID)
	case "night_action":
		_, gerr = engine.SubmitNightAction(client.participantID, NightAction{
			TargetIDs:     msg.TargetIDs,
			CenterIndexes: msg.CenterIndexes,
		})
	case "vote":
		gerr = engine.SubmitVote(client.participantID, msg.TargetID)
	case "revenge_target":
		gerr = engine.SetRevengeTarget(client.participantID, msg.TargetID)
	case "chat":
		gerr = engine.RelayChat(client.participantID, msg.Channel, msg.Text)
	case "force_next_phase":
		gerr = engine.ForceNextPhase(client.participantID)
	case "extend_phase":
		gerr = engine.ExtendPhase(client.participantID, time.Duration(msg.Seconds)*time.Second)
	case "force_end_voting":
		gerr = engine.ForceEndVoting(client.participantID)
	case "host_kill":
		gerr = engine.HostKill(client.participantID, msg.TargetID)
	case "host_revive":
		gerr = engine.HostRevive(client.participantID, msg.TargetID)
	case "host_protect":
		gerr = engine.HostToggleProtect(client.participantID, msg.TargetID)
	case "host_change_role":
		gerr = engine.HostChangeRole(client.participantID, msg.TargetID, RoleID(msg.RoleID))
	case "kick":
		gerr = engine.KickParticipant(client.participantID, msg.TargetID)
	default:
		log.Printf("Unknown action: %s from '%s' in room %s", msg.Action, client.participantName, client.roomID)
		return
	}

	if gerr != nil {
		h.sendError(client, gerr)
	}
}
