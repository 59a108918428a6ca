package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dgallion1/bookmarkd/internal/outline"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Annotation batches are larger than control messages.
	maxMessageSize = 1 << 20

	sendBufferSize = 64
)

// Message types on the event stream.
const (
	msgAnnotationsChanged = "annotationsChanged"
	msgResolved           = "resolved"
	msgDocumentLoaded     = "documentLoaded"
	msgDocumentRemoved    = "documentRemoved"
	msgPing               = "ping"
	msgPong               = "pong"
	msgError              = "error"
)

// wsMessage is the envelope for every event-stream message. ID correlates a
// resolved message with the annotationsChanged message that caused it.
type wsMessage struct {
	Type      string              `json:"type"`
	ID        string              `json:"id,omitempty"`
	DocID     string              `json:"doc_id,omitempty"`
	Events    []outline.Placement `json:"events,omitempty"`
	Data      any                 `json:"data,omitempty"`
	Error     string              `json:"error,omitempty"`
	Timestamp string              `json:"timestamp,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Requests are already authenticated by API key.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans document events out to the clients watching each document.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*wsClient]struct{}
	log     *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*wsClient]struct{}),
		log:     log,
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.docID]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.clients[c.docID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.docID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.docID)
	}
	close(c.send)
}

// Publish sends msg to every client watching docID. Clients whose buffer is
// full miss the message.
func (h *Hub) Publish(docID string, msg *wsMessage) {
	msg.DocID = docID
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("encode event", "type", msg.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[docID] {
		select {
		case c.send <- data:
		default:
			h.log.Warn("dropped event for slow client", "doc_id", docID, "type", msg.Type)
		}
	}
}

// sendTo queues msg for a single registered client.
func (h *Hub) sendTo(c *wsClient, msg *wsMessage) {
	msg.DocID = c.docID
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.docID][c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// ClientCount returns the number of clients watching docID.
func (h *Hub) ClientCount(docID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[docID])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for docID, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, docID)
	}
}

type wsClient struct {
	server *Server
	conn   *websocket.Conn
	docID  string
	send   chan []byte
	log    *slog.Logger
}

// handleEvents upgrades to the document's event stream. The first message
// is documentLoaded with the document summary.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.document(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "doc_id", doc.ID, "error", err)
		return
	}

	c := &wsClient{
		server: s,
		conn:   conn,
		docID:  doc.ID,
		send:   make(chan []byte, sendBufferSize),
		log:    s.log.With("doc_id", doc.ID, "remote", r.RemoteAddr),
	}
	s.hub.register(c)
	s.hub.sendTo(c, &wsMessage{Type: msgDocumentLoaded, Data: doc.Summary()})
	c.log.Info("event stream opened")

	go c.writePump()
	go c.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		c.server.hub.unregister(c)
		c.conn.Close()
		c.log.Info("event stream closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read error", "error", err)
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *wsClient) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.server.hub.sendTo(c, &wsMessage{Type: msgError, Error: "invalid json"})
		return
	}

	switch msg.Type {
	case msgAnnotationsChanged:
		c.annotationsChanged(msg)
	case msgPing:
		c.server.hub.sendTo(c, &wsMessage{Type: msgPong, ID: msg.ID})
	default:
		c.server.hub.sendTo(c, &wsMessage{Type: msgError, ID: msg.ID, Error: "unknown message type " + msg.Type})
	}
}

// annotationsChanged resolves the events against the current document, so
// a replaced outline takes effect on the next message.
func (c *wsClient) annotationsChanged(msg wsMessage) {
	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	doc, err := c.server.registry.Get(ctx, c.docID)
	if err != nil {
		c.log.Warn("document unavailable for event", "error", err)
		c.server.hub.sendTo(c, &wsMessage{Type: msgError, ID: id, Error: "document unavailable"})
		return
	}

	res := doc.AnnotationsChanged(msg.Events)
	c.server.hub.Publish(c.docID, &wsMessage{Type: msgResolved, ID: id, Data: res})
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
