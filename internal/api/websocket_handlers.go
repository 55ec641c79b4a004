// internal/api/websocket_handlers.go
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/CantusMCP/internal/di"
	"github.com/Corphon/CantusMCP/internal/services"
)

// streamTurnTimeout bounds one assistant turn started over a socket.
const streamTurnTimeout = 2 * time.Minute

// WebSocketHandler handles WebSocket chat connections.
type WebSocketHandler struct {
	assistantService *services.AssistantService
}

// NewWebSocketHandler creates a WebSocket handler.
func NewWebSocketHandler() *WebSocketHandler {
	container := di.GetContainer()

	return &WebSocketHandler{
		assistantService: container.Get("assistant").(*services.AssistantService),
	}
}

// ChatSessionWebSocket upgrades the request and serves one chat session connection.
func (wh *WebSocketHandler) ChatSessionWebSocket(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		log.Printf("❌ WebSocket connection rejected: session id missing")
		http.Error(c.Writer, "session id missing", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ Chat WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	userID := c.DefaultQuery("user_id", "anonymous")

	client := &WebSocketClient{
		conn:      &WebSocketConnWrapper{conn},
		sessionID: sessionID,
		userID:    userID,
		send:      make(chan []byte, 256),
		closed:    0,
		lastPing:  time.Now(),
		createdAt: time.Now(),
	}

	select {
	case wsManager.register <- client:
		// Registered
	default:
		log.Printf("❌ Cannot register WebSocket client, register channel full")
		return
	}

	defer func() {
		// Unregister with timeout to prevent blocking
		done := make(chan bool, 1)
		go func() {
			wsManager.unregister <- client
			done <- true
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			log.Printf("⚠️ WebSocket client unregister timed out")
		}
	}()

	go wh.handleWebSocketWrites(client)
	go wh.handleWebSocketReads(client)

	wh.sendWelcomeMessage(client, sessionID, userID)

	// Hold the handler open until the connection goes away
	<-c.Request.Context().Done()
	log.Printf("📱 WebSocket connection for session %s closed (user: %s)", sessionID, userID)
}

// handleWebSocketReads pumps incoming messages off the connection.
func (wh *WebSocketHandler) handleWebSocketReads(client *WebSocketClient) {
	defer func() {
		if !client.IsClosed() {
			select {
			case wsManager.unregister <- client:
			case <-time.After(1 * time.Second):
				log.Printf("⚠️ Unregister timed out while shutting down read pump")
			}
		}
	}()

	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if client.IsClosed() {
			break
		}

		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		_, messageBytes, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket read error: %v", err)
			}
			break
		}

		var message map[string]interface{}
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			log.Printf("⚠️ Failed to parse WebSocket message: %v", err)
			continue
		}

		client.UpdatePing()

		wh.handleMessage(client, message)
	}
}

// handleWebSocketWrites pumps queued messages onto the connection and keeps pings going.
func (wh *WebSocketHandler) handleWebSocketWrites(client *WebSocketClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		atomic.StoreInt32(&client.closed, 1)
		// The write pump owns the send channel. Recover in case a racing
		// teardown already closed it.
		func() {
			defer func() {
				recover()
			}()
			close(client.send)
		}()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			if client.IsClosed() {
				return
			}

			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("❌ WebSocket write failed: %v", err)
				return
			}

		case <-ticker.C:
			if client.IsClosed() {
				return
			}

			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("❌ WebSocket ping failed: %v", err)
				return
			}
			client.UpdatePing()
		}
	}
}

// handleMessage dispatches one incoming client message.
func (wh *WebSocketHandler) handleMessage(client *WebSocketClient, message map[string]interface{}) {
	msgType, ok := message["type"].(string)
	if !ok {
		log.Printf("⚠️ Received message without a type")
		return
	}

	switch msgType {
	case "chat":
		wh.handleChat(client, message)
	case "ping":
		wh.handlePing(client)
	default:
		log.Printf("⚠️ Unknown message type: %s", msgType)
	}
}

// handleChat runs one assistant turn and streams it back to the session.
func (wh *WebSocketHandler) handleChat(client *WebSocketClient, message map[string]interface{}) {
	userMessage, ok := message["message"].(string)
	if !ok || userMessage == "" {
		wh.sendError(client, "missing message content")
		return
	}

	if wh.assistantService == nil {
		wh.sendError(client, "assistant service unavailable")
		return
	}

	// Echo the user message so every tab on the session sees it
	wsManager.BroadcastToSession(client.sessionID, map[string]interface{}{
		"type":       "chat:user",
		"session_id": client.sessionID,
		"user_id":    client.userID,
		"message":    userMessage,
		"timestamp":  time.Now().Format(time.RFC3339),
	})

	ctx, cancel := context.WithTimeout(context.Background(), streamTurnTimeout)
	defer cancel()

	onChunk := func(chunk string) {
		wsManager.BroadcastToSession(client.sessionID, map[string]interface{}{
			"type":       "chat:chunk",
			"session_id": client.sessionID,
			"content":    chunk,
		})
	}

	result, err := wh.assistantService.StreamChat(ctx, client.sessionID, userMessage, onChunk)
	if err != nil {
		wh.sendError(client, "chat failed: "+err.Error())
		return
	}

	// Final event carries the parsed reply with its media references
	wsManager.BroadcastToSession(client.sessionID, map[string]interface{}{
		"type":       "chat:message",
		"session_id": result.SessionID,
		"data":       result,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

// handlePing answers a client-level ping.
func (wh *WebSocketHandler) handlePing(client *WebSocketClient) {
	pong := map[string]interface{}{
		"type":      "pong",
		"timestamp": time.Now().Unix(),
	}

	client.SendMessage(pong)
}

// sendWelcomeMessage confirms the connection to the client.
func (wh *WebSocketHandler) sendWelcomeMessage(client *WebSocketClient, sessionID, userID string) {
	welcomeMsg := map[string]interface{}{
		"type":       "connected",
		"session_id": sessionID,
		"user_id":    userID,
		"timestamp":  time.Now().Format(time.RFC3339),
		"message":    "WebSocket connection established",
	}

	client.SendMessage(welcomeMsg)
}

// sendError sends an error event without going through SendMessage's close checks twice.
func (wh *WebSocketHandler) sendError(client *WebSocketClient, errorMsg string) {
	errorResponse := map[string]interface{}{
		"type":      "error",
		"error":     errorMsg,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if msgBytes, err := json.Marshal(errorResponse); err == nil {
		select {
		case client.send <- msgBytes:
		default:
			log.Printf("⚠️ Cannot deliver error message to client, queue full")
		}
	}
}
