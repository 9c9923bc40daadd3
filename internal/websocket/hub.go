package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/model"
	"github.com/mentorboxai/api/pkg/response"
)

const pingInterval = 30 * time.Second

// Client represents a WebSocket subscriber of one job
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte

	// mu guards closed; Send is only written or closed while holding it
	mu     sync.Mutex
	closed bool
}

// trySend queues msg without blocking. It reports false when the buffer is
// full or the hub already closed the client.
func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// Hub fans job updates out to the subscribers of each job
type Hub struct {
	// Clients grouped by job ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	mu  sync.RWMutex
	log logger.Logger
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

// NewHub creates a new Hub
func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()
			h.log.Debug().Str("job_id", client.JobID).Msg("websocket client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.log.Debug().Str("job_id", client.JobID).Msg("websocket client unregistered")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.JobID] {
				if !client.trySend(msg.Message) {
					// Slow consumer
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.JobID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	client.close()
	if len(clients) == 0 {
		delete(h.clients, client.JobID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.clients {
		for client := range clients {
			h.remove(client)
		}
	}
}

// Subscribers returns the number of clients listening to jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

// Register adds a new client. After the hub stopped the client's channel is
// closed right away.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) publish(jobID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("failed to marshal websocket message")
		return
	}

	select {
	case h.broadcast <- &BroadcastMessage{JobID: jobID, Message: data}:
	default:
		h.log.Warn().Str("job_id", jobID).Msg("websocket broadcast buffer full, dropping update")
	}
}

// BroadcastProgress sends a progress update to all job subscribers
func (h *Hub) BroadcastProgress(jobID string, progress int, status model.JobStatus, step string) {
	h.publish(jobID, model.WSProgressMessage{
		Type:        model.WSMessageTypeProgress,
		JobID:       jobID,
		Progress:    progress,
		Status:      status,
		CurrentStep: step,
	})
}

// BroadcastComplete sends a completion message to all job subscribers
func (h *Hub) BroadcastComplete(jobID string, result *model.StatusResponse) {
	h.publish(jobID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Result: result,
	})
}

// BroadcastError sends an error message to all job subscribers
func (h *Hub) BroadcastError(jobID string, code, message string) {
	h.publish(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

// HandleConnection serves one WebSocket subscriber. snapshot, when non-nil,
// is read only after the client is registered, so an update published during
// the handshake is either queued for the client or already in the snapshot.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string, snapshot func() []byte) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	if snapshot != nil {
		if data := snapshot(); data != nil {
			client.trySend(data)
		}
	}

	// Writer
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("job_id", jobID).Msg("websocket error")
			}
			break
		}
		h.handleMessage(client, message)
	}
}

// handleMessage answers client pings. Other client messages are ignored.
func (h *Hub) handleMessage(client *Client, message []byte) {
	var msg model.WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if msg.Type != model.WSMessageTypePing {
		return
	}

	pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
	if !client.trySend(pong) {
		h.log.Debug().Str("job_id", client.JobID).Msg("pong dropped")
	}
}

// Snapshot encodes the message a subscriber joining late should see first:
// a completion or error for finished jobs, the current progress otherwise.
func Snapshot(status *model.StatusResponse) ([]byte, error) {
	switch status.Status {
	case model.JobStatusDone:
		return json.Marshal(model.WSCompleteMessage{
			Type:   model.WSMessageTypeComplete,
			JobID:  status.JobID,
			Result: status,
		})
	case model.JobStatusFailed:
		msg := ""
		if status.Error != nil {
			msg = *status.Error
		}
		return json.Marshal(model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			JobID: status.JobID,
			Error: model.WSError{Code: response.CodeGenerationFailed, Message: msg},
		})
	}

	step := ""
	if status.CurrentStep != nil {
		step = *status.CurrentStep
	}
	return json.Marshal(model.WSProgressMessage{
		Type:        model.WSMessageTypeProgress,
		JobID:       status.JobID,
		Progress:    status.Progress,
		Status:      status.Status,
		CurrentStep: step,
	})
}
