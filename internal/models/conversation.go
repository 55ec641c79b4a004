// internal/models/conversation.go
package models

import (
	"time"

	"github.com/Corphon/CantusMCP/internal/content"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of an assistant conversation. Parsed is only set
// on assistant turns; it carries the renderable form of Content.
type ChatMessage struct {
	ID        string                 `json:"id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Parsed    *content.ParsedMessage `json:"parsed,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Conversation is one assistant session and its full history.
type Conversation struct {
	ID          string        `json:"id"`
	Messages    []ChatMessage `json:"messages"`
	CreatedAt   time.Time     `json:"created_at"`
	LastUpdated time.Time     `json:"last_updated"`
}
