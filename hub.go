package main

import (
	"encoding/json"
	"log"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"werewolves/internal/engine"
)

const writeWait = 5 * time.Second

// WSMessage is one inbound command. Fields not used by an action are left empty.
type WSMessage struct {
	Action  string   `json:"action"`
	Role    string   `json:"role,omitempty"`
	Targets []string `json:"targets,omitempty"`
	Answer  bool     `json:"answer,omitempty"`
	VoteID  string   `json:"vote_id,omitempty"`
	Votees  []string `json:"votees,omitempty"`
	ChatID  string   `json:"chat_id,omitempty"`
	Text    string   `json:"text,omitempty"`
	Target  string   `json:"target,omitempty"`
}

// Client represents a websocket connection bound to one seat
type Client struct {
	conn    *websocket.Conn
	gameID  string
	player  string
	writeMu sync.Mutex // Serialize writes to WebSocket (required by gorilla/websocket)
}

func (c *Client) write(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// outbound is one serialized event and its audience.
type outbound struct {
	gameID string
	to     []string
	data   []byte
}

// Hub fans engine events out to the websocket clients of each game
type Hub struct {
	clients    map[*websocket.Conn]*Client
	broadcast  chan outbound
	register   chan *Client
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	done       chan struct{}
	wg         sync.WaitGroup
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan outbound, 64),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn, 64),
		done:       make(chan struct{}),
	}
}

var hub *Hub

// start runs the hub loop in the background
func (h *Hub) start() {
	h.wg.Add(1)
	go h.run()
}

// stop signals the hub goroutine to exit and waits for it to finish
func (h *Hub) stop() {
	close(h.done)
	h.wg.Wait()
	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

// Publish queues an event for every subscriber of its game, or only for the
// players in ev.To when it is set. Events keep their publication order.
func (h *Hub) Publish(ev engine.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Hub: failed to encode %s event: %v", ev.Kind, err)
		return
	}
	select {
	case h.broadcast <- outbound{gameID: ev.GameID, to: ev.To, data: data}:
	case <-h.done:
	}
}

// sendToPlayer writes straight to every connection of one seat
func (h *Hub) sendToPlayer(gameID, player string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.gameID != gameID || client.player != player {
			continue
		}
		LogWSMessage("OUT", player, string(message))
		if err := client.write(message); err != nil {
			log.Printf("WebSocket write error to player %s: %v", player, err)
		}
	}
}

// connected reports how many connections a seat has open
func (h *Hub) connected(gameID, player string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		if c.gameID == gameID && c.player == player {
			n++
		}
	}
	return n
}

func (h *Hub) run() {
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
			log.Printf("WebSocket client connected (game %s, player %s). Total: %d", client.gameID, client.player, total)
			DebugLog("hub.register", "Player '%s' connected to game %s", client.player, client.gameID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if client, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				DebugLog("hub.unregister", "Player '%s' disconnected from game %s", client.player, client.gameID)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected. Total: %d", total)

		case msg := <-h.broadcast:
			var failed []*websocket.Conn
			h.mu.RLock()
			for conn, client := range h.clients {
				if client.gameID != msg.gameID {
					continue
				}
				if len(msg.to) > 0 && !slices.Contains(msg.to, client.player) {
					continue
				}
				LogWSMessage("OUT", client.player, string(msg.data))
				if err := client.write(msg.data); err != nil {
					log.Printf("WebSocket write error: %v", err)
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()
			if len(failed) > 0 {
				h.mu.Lock()
				for _, conn := range failed {
					conn.Close()
					delete(h.clients, conn)
				}
				h.mu.Unlock()
			}
		}
	}
}

// welcome is the first frame on a new connection: the public state plus the
// seat's own role cards once they are dealt.
type welcome struct {
	State engine.Snapshot        `json:"state"`
	You   *engine.RoleAssignment `json:"you,omitempty"`
}

const eventWelcome engine.EventKind = "welcome"

func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Capture globals at entry to avoid race conditions in tests
	currentHub := hub
	currentLobby := lobby

	gameID := chi.URLParam(r, "gameID")
	sess, err := currentLobby.Get(gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	player, err := authenticateSeat(gameID, r)
	if err != nil {
		DebugLog("handleWebSocket", "Rejected WebSocket connection to game %s: %v", gameID, err)
		writeError(w, err)
		return
	}

	var upgrader = websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error for player %s: %v", player, err)
		return
	}

	DebugLog("handleWebSocket", "WebSocket upgraded successfully for player '%s' in game %s", player, gameID)
	client := &Client{conn: conn, gameID: gameID, player: player}
	select {
	case currentHub.register <- client:
	case <-currentHub.done:
		conn.Close()
		return
	}

	err = sess.Do(r.Context(), "welcome", func(m *engine.Manager) error {
		hello := welcome{State: m.Snapshot()}
		if p, err := m.Game().Player(player); err == nil && p.Active != nil {
			you := p.Assignment()
			hello.You = &you
		}
		currentHub.Publish(engine.Event{Kind: eventWelcome, GameID: gameID, Cycle: m.Game().Cycle, To: []string{player}, Payload: hello})
		return nil
	})
	if err != nil {
		logError("handleWebSocket: welcome", err)
	}

	// Handle messages and disconnection
	go func() {
		defer func() {
			currentHub.unregister <- conn
		}()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				break
			}
			handleWSMessage(client, sess, message)
		}
	}()
}
