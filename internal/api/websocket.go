// internal/api/websocket.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Corphon/CantusMCP/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Production deployments should restrict the origin here
		return true
	},
}

// WebSocketClient represents one client connection bound to a chat session.
type WebSocketClient struct {
	conn      WebSocketConnection
	sessionID string
	userID    string
	send      chan []byte
	closed    int32 // atomic flag, 0=open, 1=closed
	lastPing  time.Time
	createdAt time.Time
}

// WebSocketManager tracks every live connection grouped by session.
type WebSocketManager struct {
	connections   map[string]map[WebSocketConnection]*WebSocketClient // sessionID -> connections
	broadcast     chan []byte
	register      chan *WebSocketClient
	unregister    chan *WebSocketClient
	cleanup       chan bool
	mutex         sync.RWMutex
	pingTimeout   time.Duration
	cleanupTicker *time.Ticker
}

// Global WebSocket manager
var wsManager = &WebSocketManager{
	connections: make(map[string]map[WebSocketConnection]*WebSocketClient),
	broadcast:   make(chan []byte, 256),
	register:    make(chan *WebSocketClient, 256),
	unregister:  make(chan *WebSocketClient, 256),
	cleanup:     make(chan bool, 1),
	pingTimeout: 60 * time.Second,
}

// WebSocketConnection is the subset of *websocket.Conn the manager needs.
type WebSocketConnection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// WebSocketConnWrapper adapts a real *websocket.Conn to the interface.
type WebSocketConnWrapper struct {
	*websocket.Conn
}

func init() {
	go wsManager.run()
}

// ========================================
// WebSocketClient methods
// ========================================

// Close marks the client closed and closes the underlying connection.
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		// Only the closed flag is set here. The send channel is closed
		// by the write pump's defer, which owns it.
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// IsClosed reports whether the connection has been closed.
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// UpdatePing refreshes the liveness timestamp.
func (client *WebSocketClient) UpdatePing() {
	client.lastPing = time.Now()
}

// IsExpired reports whether the client stopped answering pings.
func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}

	return time.Since(client.lastPing) > timeout
}

// SendMessage queues a JSON message for delivery to this client.
func (client *WebSocketClient) SendMessage(message map[string]interface{}) error {
	if client.IsClosed() {
		return nil
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	// Re-check, the write pump may have torn the client down meanwhile
	if client.IsClosed() {
		return nil
	}

	select {
	case client.send <- msgBytes:
		return nil
	default:
		// Queue full, drop rather than block the caller
		log.Printf("⚠️ Message queue full for client %s, message dropped", client.userID)
		return nil
	}
}

// SendError sends an error event to the client.
func (client *WebSocketClient) SendError(errorMsg string) {
	errorResponse := map[string]interface{}{
		"type":      "error",
		"error":     errorMsg,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	client.SendMessage(errorResponse)
}

// ========================================
// WebSocketManager methods
// ========================================

// run is the manager's main loop.
func (manager *WebSocketManager) run() {
	manager.cleanupTicker = time.NewTicker(30 * time.Second)
	defer manager.cleanupTicker.Stop()

	for {
		select {
		case client := <-manager.register:
			manager.registerClient(client)

		case client := <-manager.unregister:
			manager.unregisterClient(client)

		case <-manager.cleanupTicker.C:
			manager.cleanupExpiredConnections()

		case message := <-manager.broadcast:
			manager.broadcastMessage(message)

		case <-manager.cleanup:
			manager.shutdown()
			return
		}
	}
}

// registerClient adds a new client to its session bucket.
func (manager *WebSocketManager) registerClient(client *WebSocketClient) {
	if client == nil {
		log.Printf("⚠️ Attempted to register nil client, ignored")
		return
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.connections[client.sessionID] == nil {
		manager.connections[client.sessionID] = make(map[WebSocketConnection]*WebSocketClient)
	}

	manager.connections[client.sessionID][client.conn] = client
	client.UpdatePing()
	metrics.GetCollector().IncGauge("ws_connections")

	log.Printf("✅ WebSocket client connected to session %s (user: %s)", client.sessionID, client.userID)
}

// unregisterClient removes a client and drops empty session buckets.
func (manager *WebSocketManager) unregisterClient(client *WebSocketClient) {
	if client == nil {
		log.Printf("⚠️ Attempted to unregister nil client, ignored")
		return
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if connections, exists := manager.connections[client.sessionID]; exists {
		if _, tracked := connections[client.conn]; tracked {
			delete(connections, client.conn)
			metrics.GetCollector().DecGauge("ws_connections")
		}

		if len(connections) == 0 {
			delete(manager.connections, client.sessionID)
		}
	}

	if !client.IsClosed() {
		client.Close()
	}

	log.Printf("🔌 WebSocket client disconnected (session: %s, user: %s)", client.sessionID, client.userID)
}

// cleanupExpiredConnections drops closed and unresponsive clients.
func (manager *WebSocketManager) cleanupExpiredConnections() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for sessionID, connections := range manager.connections {
		for conn, client := range connections {
			if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
				delete(connections, conn)
				metrics.GetCollector().DecGauge("ws_connections")
				if !client.IsClosed() {
					client.Close()
				}
			}
		}
		if len(connections) == 0 {
			delete(manager.connections, sessionID)
		}
	}
}

// broadcastMessage delivers a message to every connected client.
func (manager *WebSocketManager) broadcastMessage(message []byte) {
	manager.mutex.RLock()
	allClients := make([]*WebSocketClient, 0)
	for _, connections := range manager.connections {
		for _, client := range connections {
			if !client.IsClosed() {
				allClients = append(allClients, client)
			}
		}
	}
	manager.mutex.RUnlock()

	if len(allClients) > 0 {
		manager.processBatch(allClients, message)
	}
}

// processBatch sends one message to a batch of clients.
func (manager *WebSocketManager) processBatch(clients []*WebSocketClient, message []byte) {
	failedCount := 0
	for _, client := range clients {
		if client.IsClosed() {
			continue
		}

		select {
		case client.send <- message:
			// Delivered
		default:
			// Queue full, cap how many stragglers get the full unregister path
			failedCount++
			if failedCount <= 5 {
				go func(c *WebSocketClient) {
					c.Close()
					select {
					case manager.unregister <- c:
					case <-time.After(50 * time.Millisecond):
						// Give up, the cleanup ticker will catch it
					}
				}(client)
			} else {
				client.Close()
			}
		}
	}
}

// shutdown closes every connection and resets the maps.
func (manager *WebSocketManager) shutdown() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	log.Println("🛑 Shutting down WebSocket manager...")

	for _, connections := range manager.connections {
		for _, client := range connections {
			client.Close()
		}
	}

	manager.connections = make(map[string]map[WebSocketConnection]*WebSocketClient)
	metrics.GetCollector().SetGauge("ws_connections", 0)

	log.Println("✅ WebSocket manager stopped")
}

// GetStatus reports connection counts per session.
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	sessions := make(map[string]interface{})
	totalConnections := 0

	for sessionID, connections := range manager.connections {
		activeConnections := 0
		users := make([]interface{}, 0)

		for _, client := range connections {
			if client != nil && !client.IsClosed() {
				activeConnections++
				userInfo := map[string]interface{}{
					"user_id":      client.userID,
					"session_id":   client.sessionID,
					"connected_at": client.createdAt.Format(time.RFC3339),
					"last_ping":    client.lastPing.Format(time.RFC3339),
				}
				users = append(users, userInfo)
			}
		}

		sessions[sessionID] = map[string]interface{}{
			"client_count": activeConnections,
			"users":        users,
		}
		totalConnections += activeConnections
	}

	return map[string]interface{}{
		"total_sessions":    len(manager.connections),
		"total_connections": totalConnections,
		"sessions":          sessions,
	}
}

// BroadcastToSession sends a message to every client on one session.
func (manager *WebSocketManager) BroadcastToSession(sessionID string, message map[string]interface{}) {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("❌ Failed to marshal broadcast message: %v", err)
		return
	}

	manager.mutex.RLock()
	connections, exists := manager.connections[sessionID]
	if !exists {
		manager.mutex.RUnlock()
		return
	}

	clientConnections := make([]*WebSocketClient, 0, len(connections))
	for _, client := range connections {
		if !client.IsClosed() {
			clientConnections = append(clientConnections, client)
		}
	}
	manager.mutex.RUnlock()

	if len(clientConnections) > 0 {
		manager.processBatch(clientConnections, msgBytes)
	}
}

// ReadJSON reads a JSON message, kept for handlers and tests.
func (w *WebSocketConnWrapper) ReadJSON(v interface{}) error {
	return w.Conn.ReadJSON(v)
}

// WriteJSON writes a JSON message, kept for handlers and tests.
func (w *WebSocketConnWrapper) WriteJSON(v interface{}) error {
	return w.Conn.WriteJSON(v)
}
