// Package server implements the map query server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"path"
	"sync"
	"time"

	"tilemap/internal/database"
	"tilemap/internal/protocol"
	"tilemap/pkg/grid"
	"tilemap/pkg/maps"

	"github.com/gorilla/websocket"
)

// Version is reported to clients in the welcome message.
const Version = "0.1.0"

// Server is the map query server.
type Server struct {
	db       *database.DB
	loader   *maps.Loader
	hub      *Hub
	upgrader websocket.Upgrader
	addr     string
	server   *http.Server
}

// Config holds server configuration.
type Config struct {
	Addr   string
	DBPath string

	// Grid is the shape of every map the server handles. Defaults to the
	// isometric preset.
	Grid *grid.MapGrid
}

// New creates a new server.
func New(cfg Config) (*Server, error) {
	g := cfg.Grid
	if g == nil {
		var err error
		if g, err = grid.Preset("isometric"); err != nil {
			return nil, err
		}
	}

	db, err := database.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Server{
		db:     db,
		loader: maps.NewLoader(g),
		addr:   cfg.Addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}

	s.hub = NewHub(s)
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	return s, nil
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Read-only map API
	mux.HandleFunc("GET /api/maps", s.handleListMaps)
	mux.HandleFunc("GET /api/maps/{uid}", s.handleMapFiles)
	mux.HandleFunc("GET /api/maps/{uid}/{file}", s.handleMapFile)

	return mux
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve runs the hub and serves connections from ln until Stop.
func (s *Server) Serve(ln net.Listener) error {
	log.Printf("Map Server")
	log.Printf("  Address: http://%s", ln.Addr())
	log.Printf("  Database: %s", s.db.Dialect())
	log.Printf("  Grid: %s", s.loader.Grid.Type)
	log.Printf("  WebSocket: ws://%s/ws", ln.Addr())
	log.Printf("")
	log.Printf("Press Ctrl+C to stop")

	s.hub.Start()

	err := s.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.hub.Stop()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(s.hub, conn)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// handleListMaps returns the stored map index.
func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	records, err := s.db.ListMaps()
	if err != nil {
		log.Printf("Failed to list maps: %v", err)
		http.Error(w, "Failed to list maps", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*database.MapRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// MapFiles describes a stored map package.
type MapFiles struct {
	Map   *database.MapRecord `json:"map"`
	Files []string            `json:"files"`
}

// handleMapFiles lists the files of a stored map package in package order.
func (s *Server) handleMapFiles(w http.ResponseWriter, r *http.Request) {
	rec, err := s.db.GetMapByUID(r.PathValue("uid"))
	if errors.Is(err, database.ErrMapNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "Failed to find map", http.StatusInternalServerError)
		return
	}

	files, err := s.db.Package(rec).Contents()
	if err != nil {
		log.Printf("Failed to list files of %s: %v", rec.UID, err)
		http.Error(w, "Failed to list files", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(MapFiles{Map: rec, Files: files})
}

// handleMapFile serves one file from a stored map package.
func (s *Server) handleMapFile(w http.ResponseWriter, r *http.Request) {
	rec, err := s.db.GetMapByUID(r.PathValue("uid"))
	if errors.Is(err, database.ErrMapNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "Failed to find map", http.StatusInternalServerError)
		return
	}

	name := r.PathValue("file")
	f, err := s.db.Package(rec).Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType(name))
	if _, err := io.Copy(w, f); err != nil {
		log.Printf("Failed to send %s/%s: %v", rec.UID, name, err)
	}
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".png":
		return "image/png"
	case ".yaml":
		return "application/yaml"
	case ".lua":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// Hub owns the connected clients and every open map. All map access
// happens on the hub goroutine; maps.Map is not safe for concurrent use.
type Hub struct {
	server *Server

	// Registered clients
	clients map[*Client]bool

	// Open maps by stored map ID
	sessions map[string]*mapSession

	register   chan *Client
	unregister chan *Client
	inbound    chan *ClientMessage
	done       chan struct{}
	wg         sync.WaitGroup
}

// ClientMessage wraps a message with its source client.
type ClientMessage struct {
	Client  *Client
	Message *protocol.Message
}

// NewHub creates a new Hub.
func NewHub(server *Server) *Hub {
	return &Hub{
		server:     server,
		clients:    make(map[*Client]bool),
		sessions:   make(map[string]*mapSession),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *ClientMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.sendWelcome(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case cm := <-h.inbound:
			if h.clients[cm.Client] {
				NewHandlers(h).Handle(cm.Client, cm.Message)
			}

		case <-h.done:
			h.closeSessions()
			return
		}
	}
}

// Start runs the hub loop on its own goroutine.
func (h *Hub) Start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.Run()
	}()
}

// Stop ends the hub loop and waits for a loop started with Start to save
// its dirty maps.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
	h.wg.Wait()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Inbound queues a message from a client.
func (h *Hub) Inbound(client *Client, msg *protocol.Message) {
	select {
	case h.inbound <- &ClientMessage{Client: client, Message: msg}:
	case <-h.done:
	}
}

func (h *Hub) sendWelcome(client *Client) {
	h.send(client, protocol.TypeWelcome, "", protocol.WelcomePayload{
		ServerVersion: Version,
		GridType:      h.server.loader.Grid.Type.String(),
	})
}

// send queues a message for a client. requestID is echoed when non-empty.
func (h *Hub) send(client *Client, msgType protocol.MessageType, requestID string, payload interface{}) {
	if !h.clients[client] {
		return
	}
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		log.Printf("Failed to build %s: %v", msgType, err)
		return
	}
	if requestID != "" {
		msg.ID = requestID
	}

	select {
	case client.send <- msg:
	default:
		// Channel full, client too slow
		log.Printf("Dropping slow client %s", client.AuthorName)
		h.removeClient(client)
	}
}

// removeClient detaches a client from its map and closes its send queue.
func (h *Hub) removeClient(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	h.leaveSession(client)
	close(client.send)
}

func (h *Hub) closeSessions() {
	for id, session := range h.sessions {
		if session.dirty {
			h.saveSession(session, nil)
		}
		delete(h.sessions, id)
	}
}

// Client represents a connected WebSocket client.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan *protocol.Message

	// Owned by the hub goroutine
	author     *database.Author
	AuthorName string
	session    *mapSession
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 65536
)

// NewClient creates a new client.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan *protocol.Message, 256),
	}
}

// ReadPump pumps messages from the WebSocket to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid message: %v", err)
			continue
		}

		c.hub.Inbound(c, &msg)
	}
}

// WritePump pumps messages from the hub to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Failed to marshal message: %v", err)
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
