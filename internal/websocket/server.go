package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/approach-monitor/internal/inference"
	"github.com/yegors/approach-monitor/pkg/logger"
)

// Message types
const (
	MessageTypeCycleReport = "cycle_report" // Server sends each finished cycle
	MessageTypeSubscribe   = "subscribe"    // Client limits reports to some airports
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

// Message represents a WebSocket message
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SubscribeRequest is the payload of a subscribe message. An empty list means all airports.
type SubscribeRequest struct {
	Airports []string `json:"airports"`
}

// LatestFunc returns the most recent report, or nil before the first cycle.
type LatestFunc func() *inference.Report

// Client represents a WebSocket client
type Client struct {
	conn     *websocket.Conn
	send     chan *Message
	server   *Server
	mu       sync.Mutex
	closed   bool
	airports map[string]bool // nil means every airport
}

// Server fans cycle reports out to connected clients
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	upgrader   websocket.Upgrader
	done       chan struct{} // closed when Run returns
	latest     LatestFunc
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewServer creates a new WebSocket server. latest may be nil.
func NewServer(latest LatestFunc, log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, sendBufferSize),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		latest: latest,
		logger: log.Named("web-socket"),
	}
}

// Run dispatches registrations and broadcasts until ctx is done
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting WebSocket server")
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			s.remove(client)
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			s.mu.Lock()
			for client := range s.clients {
				if !client.deliver(message) {
					// Slow or gone, drop it
					s.remove(client)
				}
			}
			s.mu.Unlock()
		}
	}
}

// remove must be called with s.mu held
func (s *Server) remove(client *Client) {
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	client.mu.Lock()
	if !client.closed {
		client.closed = true
		close(client.send)
	}
	client.mu.Unlock()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		s.remove(client)
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// HandleConnection upgrades the request and starts the client pumps
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	s.logger.Debug("Successfully upgraded connection to WebSocket",
		logger.String("remote_addr", r.RemoteAddr))

	client := &Client{
		conn:   conn,
		send:   make(chan *Message, sendBufferSize),
		server: s,
	}

	// New clients get the current picture right away
	if s.latest != nil {
		if report := s.latest(); report != nil {
			client.send <- &Message{Type: MessageTypeCycleReport, Data: report}
		}
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// Broadcast queues a message for every client. It never blocks the caller;
// when the queue is full the message is dropped.
func (s *Server) Broadcast(message *Message) {
	select {
	case s.broadcast <- message:
	default:
		s.logger.Warn("Broadcast queue full, dropping message",
			logger.String("message_type", message.Type))
	}
}

// BroadcastReport sends a finished cycle to all clients
func (s *Server) BroadcastReport(report *inference.Report) {
	s.Broadcast(&Message{Type: MessageTypeCycleReport, Data: report})
}

// deliver queues the message, narrowed to the client's airports. It returns
// false when the client is closed or its buffer is full.
func (c *Client) deliver(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	out := message
	if report, ok := message.Data.(*inference.Report); ok && c.airports != nil {
		out = &Message{Type: message.Type, Data: filterReport(report, c.airports)}
	}

	select {
	case c.send <- out:
		return true
	default:
		return false
	}
}

func (c *Client) subscribe(req SubscribeRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(req.Airports) == 0 {
		c.airports = nil
		return
	}
	c.airports = make(map[string]bool, len(req.Airports))
	for _, icao := range req.Airports {
		c.airports[strings.ToUpper(strings.TrimSpace(icao))] = true
	}
}

// filterReport returns a shallow copy holding only the given airports
func filterReport(report *inference.Report, airports map[string]bool) *inference.Report {
	filtered := &inference.Report{
		CycleAt:  report.CycleAt,
		Stats:    report.Stats,
		Airports: make([]inference.AirportReport, 0, len(airports)),
	}
	for _, ap := range report.Airports {
		if airports[ap.Airport.ICAO] {
			filtered.Airports = append(filtered.Airports, ap)
		}
	}
	return filtered
}

// readPump handles subscription messages until the connection drops
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close()
	}()

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		var message struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			c.server.logger.Warn("Failed to parse WebSocket message", logger.Error(err))
			continue
		}

		switch message.Type {
		case MessageTypeSubscribe:
			var req SubscribeRequest
			if err := json.Unmarshal(message.Data, &req); err != nil {
				c.server.logger.Warn("Invalid subscribe request", logger.Error(err))
				continue
			}
			c.subscribe(req)
			c.server.logger.Debug("Client subscribed",
				logger.String("airports", strings.Join(req.Airports, ",")))
		default:
			c.server.logger.Debug("Ignoring WebSocket message", logger.String("type", message.Type))
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(message); err != nil {
			c.server.logger.Debug("Failed to write message", logger.Error(err))
			return
		}
	}

	// Channel closed by the hub
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
