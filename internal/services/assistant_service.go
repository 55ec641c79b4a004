// internal/services/assistant_service.go
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Corphon/CantusMCP/internal/content"
	apperrors "github.com/Corphon/CantusMCP/internal/errors"
	"github.com/Corphon/CantusMCP/internal/llm"
	"github.com/Corphon/CantusMCP/internal/logger"
	"github.com/Corphon/CantusMCP/internal/metrics"
	"github.com/Corphon/CantusMCP/internal/models"
	"github.com/Corphon/CantusMCP/internal/storage"
)

const (
	conversationsDir = "conversations"

	// promptHistoryMessages bounds how much history goes into the prompt,
	// maxHistoryMessages how much a conversation file retains.
	promptHistoryMessages = 12
	maxHistoryMessages    = 200

	// catalogPromptLimit caps the catalog listing embedded in the system
	// prompt.
	catalogPromptLimit = 50

	chatTemperature = 0.7
	chatMaxTokens   = 1024
)

// Session ids land in file names, so only a safe charset is allowed.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// AssistantService runs the chat loop: prompt the model with catalog
// context, parse the reply into text segments and media references, and
// persist the conversation.
type AssistantService struct {
	llm        *LLMService
	catalog    *CatalogService
	storage    *storage.FileStorage
	parser     *content.Parser
	locks      *LockManager
	appMetrics *metrics.AppMetrics
}

// ChatResult is one completed assistant turn.
type ChatResult struct {
	SessionID string              `json:"session_id"`
	Message   *models.ChatMessage `json:"message"`
	Stats     content.Stats       `json:"stats"`
}

// NewAssistantService wires the assistant against the LLM service, the
// catalog, and the conversation store.
func NewAssistantService(llmService *LLMService, catalog *CatalogService, fs *storage.FileStorage) *AssistantService {
	return &AssistantService{
		llm:        llmService,
		catalog:    catalog,
		storage:    fs,
		parser:     content.NewParser(),
		locks:      NewLockManager(),
		appMetrics: metrics.NewAppMetrics(),
	}
}

// ParseContent runs the reply parser on arbitrary text and meters the
// outcome. The parse endpoint shares this path with the chat loop.
func (s *AssistantService) ParseContent(text string) (content.ParsedMessage, content.Stats) {
	parsed, stats := s.parser.ParseWithStats(text)
	s.appMetrics.RecordParse(stats.Blocks, stats.DemotedBlocks, stats.SkippedEntries, stats.InlineTags)
	return parsed, stats
}

// Chat sends one user message and returns the parsed assistant reply. An
// empty sessionID starts a new conversation.
func (s *AssistantService) Chat(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	return s.chat(ctx, sessionID, message, nil)
}

// StreamChat behaves like Chat but forwards raw reply chunks to onChunk as
// they arrive. The returned result carries the final parsed message.
func (s *AssistantService) StreamChat(ctx context.Context, sessionID, message string, onChunk func(string)) (*ChatResult, error) {
	return s.chat(ctx, sessionID, message, onChunk)
}

func (s *AssistantService) chat(ctx context.Context, sessionID, message string, onChunk func(string)) (*ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperrors.NewValidationError("message is empty", nil)
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if !sessionIDPattern.MatchString(sessionID) {
		return nil, apperrors.NewValidationError("invalid session id", nil)
	}

	if ready, state := s.llm.GetProviderStatus(); !ready {
		return nil, apperrors.NewLLMError(fmt.Sprintf("assistant is not available: %s", state), nil)
	}

	var result *ChatResult

	// The session lock covers the whole turn, so concurrent messages to one
	// session serialize and the history stays ordered.
	err := s.locks.ExecuteWithSessionLock(sessionID, func() error {
		conv, err := s.loadOrCreateConversation(sessionID)
		if err != nil {
			return err
		}

		now := time.Now()
		conv.Messages = append(conv.Messages, models.ChatMessage{
			ID:        uuid.NewString(),
			Role:      models.RoleUser,
			Content:   message,
			CreatedAt: now,
		})

		req := llm.CompletionRequest{
			SystemPrompt: s.buildSystemPrompt(),
			Prompt:       buildUserPrompt(conv, message),
			Temperature:  chatTemperature,
			MaxTokens:    chatMaxTokens,
		}

		replyText, err := s.complete(ctx, req, onChunk)
		if err != nil {
			if ctx.Err() != nil {
				s.appMetrics.RecordError("timeout", "assistant_service")
				return apperrors.NewTimeoutError("assistant request timed out", err)
			}
			s.appMetrics.RecordError("llm_error", "assistant_service")
			return apperrors.NewLLMError("assistant request failed", err)
		}

		parsed, stats := s.ParseContent(replyText)
		if stats.DemotedBlocks > 0 || stats.SkippedEntries > 0 {
			logger.Get().Warn("Assistant reply carried unusable media payloads", map[string]interface{}{
				"session_id":      sessionID,
				"demoted_blocks":  stats.DemotedBlocks,
				"skipped_entries": stats.SkippedEntries,
			})
		}

		assistantMsg := models.ChatMessage{
			ID:        uuid.NewString(),
			Role:      models.RoleAssistant,
			Content:   replyText,
			Parsed:    &parsed,
			CreatedAt: time.Now(),
		}
		conv.Messages = append(conv.Messages, assistantMsg)

		if len(conv.Messages) > maxHistoryMessages {
			conv.Messages = conv.Messages[len(conv.Messages)-maxHistoryMessages:]
		}
		conv.LastUpdated = time.Now()

		if err := s.storage.SaveJSONFile(conversationsDir, sessionID+".json", conv); err != nil {
			return apperrors.NewStorageError("failed to save conversation", err)
		}

		result = &ChatResult{
			SessionID: sessionID,
			Message:   &assistantMsg,
			Stats:     stats,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// complete runs the request either as one blocking completion or as a
// stream, returning the full reply text.
func (s *AssistantService) complete(ctx context.Context, req llm.CompletionRequest, onChunk func(string)) (string, error) {
	if onChunk == nil {
		resp, err := s.llm.Complete(ctx, req)
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	}

	stream, err := s.llm.Stream(ctx, req)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for chunk := range stream {
		if chunk.Text != "" {
			sb.WriteString(chunk.Text)
			onChunk(chunk.Text)
		}
		if chunk.Done && chunk.FinishReason == "error" {
			return "", fmt.Errorf("stream aborted")
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := sb.String()
	if text == "" {
		return "", fmt.Errorf("empty reply from provider")
	}
	return text, nil
}

// GetConversation returns a stored conversation.
func (s *AssistantService) GetConversation(sessionID string) (*models.Conversation, error) {
	if !sessionIDPattern.MatchString(sessionID) {
		return nil, apperrors.NewValidationError("invalid session id", nil)
	}

	var conv models.Conversation
	err := s.locks.ExecuteWithSessionReadLock(sessionID, func() error {
		if !s.storage.FileExists(conversationsDir, sessionID+".json") {
			return apperrors.NewNotFoundError(fmt.Sprintf("conversation not found: %s", sessionID), nil)
		}
		return s.storage.LoadJSONFile(conversationsDir, sessionID+".json", &conv)
	})
	if err != nil {
		return nil, err
	}

	return &conv, nil
}

// DeleteConversation removes a stored conversation.
func (s *AssistantService) DeleteConversation(sessionID string) error {
	if !sessionIDPattern.MatchString(sessionID) {
		return apperrors.NewValidationError("invalid session id", nil)
	}

	return s.locks.ExecuteWithSessionLock(sessionID, func() error {
		if !s.storage.FileExists(conversationsDir, sessionID+".json") {
			return apperrors.NewNotFoundError(fmt.Sprintf("conversation not found: %s", sessionID), nil)
		}
		return s.storage.DeleteFile(conversationsDir, sessionID+".json")
	})
}

// ListSessions returns the ids of all stored conversations, sorted.
func (s *AssistantService) ListSessions() ([]string, error) {
	files, err := s.storage.ListFiles(conversationsDir, ".json")
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list conversations", err)
	}

	sessions := make([]string, 0, len(files))
	for _, f := range files {
		sessions = append(sessions, strings.TrimSuffix(f, ".json"))
	}
	return sessions, nil
}

func (s *AssistantService) loadOrCreateConversation(sessionID string) (*models.Conversation, error) {
	if !s.storage.FileExists(conversationsDir, sessionID+".json") {
		return &models.Conversation{
			ID:        sessionID,
			CreatedAt: time.Now(),
		}, nil
	}

	var conv models.Conversation
	if err := s.storage.LoadJSONFile(conversationsDir, sessionID+".json", &conv); err != nil {
		return nil, apperrors.NewStorageError("failed to load conversation", err)
	}
	return &conv, nil
}

// buildSystemPrompt describes the assistant's job, the media annotation
// forms the reply parser understands, and the catalog it may reference.
func (s *AssistantService) buildSystemPrompt() string {
	var b strings.Builder

	b.WriteString("You are Cantus, the assistant of a worship team's song catalog. ")
	b.WriteString("Answer briefly, in the user's language, and only reference songs from the catalog below.\n\n")

	b.WriteString("When you point the user at sheet music, audio, or other material, attach it ")
	b.WriteString("in a fenced ```json block shaped like this:\n")
	b.WriteString("```json\n")
	b.WriteString(`{"scores": [{"name": "...", "url": "..."}], "tracks": [{"name": "...", "path": "..."}], "resources": [{"name": "...", "url": "...", "description": "..."}]}` + "\n")
	b.WriteString("```\n")
	b.WriteString("Copy the urls and paths from the catalog verbatim and omit lists you do not need. ")
	b.WriteString("For a single quick reference you may instead write [EMBED_SCORE:url:name] or [EMBED_TRACK:path:name] inline.\n")

	songs := s.catalog.Songs()
	if len(songs) == 0 {
		b.WriteString("\nThe catalog is currently empty; say so when asked about songs.\n")
		return b.String()
	}

	b.WriteString("\nCatalog:\n")
	for i, song := range songs {
		if i == catalogPromptLimit {
			fmt.Fprintf(&b, "... and %d more songs\n", len(songs)-catalogPromptLimit)
			break
		}
		fmt.Fprintf(&b, "- %s: %q", song.ID, song.Title)
		if song.Author != "" {
			fmt.Fprintf(&b, " by %s", song.Author)
		}
		if song.ScoreURL != "" {
			fmt.Fprintf(&b, " score=%s", song.ScoreURL)
		}
		if song.TrackPath != "" {
			fmt.Fprintf(&b, " track=%s", song.TrackPath)
		}
		if song.ResourceURL != "" {
			fmt.Fprintf(&b, " resource=%s", song.ResourceURL)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// buildUserPrompt folds recent history into the prompt ahead of the current
// message.
func buildUserPrompt(conv *models.Conversation, message string) string {
	// The user message was already appended, skip it when collecting history.
	history := conv.Messages
	if len(history) > 0 {
		history = history[:len(history)-1]
	}
	if len(history) > promptHistoryMessages {
		history = history[len(history)-promptHistoryMessages:]
	}

	if len(history) == 0 {
		return message
	}

	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, msg := range history {
		switch msg.Role {
		case models.RoleUser:
			fmt.Fprintf(&b, "User: %s\n", msg.Content)
		case models.RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", msg.Content)
		}
	}
	fmt.Fprintf(&b, "\nCurrent user message: %s", message)

	return b.String()
}
