// internal/api/handlers.go
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/CantusMCP/internal/config"
	apperrors "github.com/Corphon/CantusMCP/internal/errors"
	"github.com/Corphon/CantusMCP/internal/llm"
	"github.com/Corphon/CantusMCP/internal/metrics"
	"github.com/Corphon/CantusMCP/internal/services"
)

// Handler serves the HTTP API.
type Handler struct {
	CatalogService   *services.CatalogService
	AssistantService *services.AssistantService
	LLMService       *services.LLMService
	WebSocketHandler *WebSocketHandler
	Response         *ResponseHelper

	startedAt time.Time
}

// NewHandler creates the API handler around the core services.
func NewHandler(catalog *services.CatalogService, assistant *services.AssistantService, llmService *services.LLMService, wsHandler *WebSocketHandler) *Handler {
	return &Handler{
		CatalogService:   catalog,
		AssistantService: assistant,
		LLMService:       llmService,
		WebSocketHandler: wsHandler,
		Response:         NewResponseHelper(),
		startedAt:        time.Now(),
	}
}

// APIResponse is the standard response envelope.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError is the standard error payload.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// PaginationMeta carries paging information.
type PaginationMeta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// PaginatedResponse is an envelope with pagination metadata.
type PaginatedResponse struct {
	*APIResponse
	Meta *PaginationMeta `json:"meta,omitempty"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

// ParseRequest is the body of POST /api/parse.
type ParseRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpdateSettingsRequest is the body of PUT /api/settings.
type UpdateSettingsRequest struct {
	Provider string            `json:"provider" binding:"required"`
	Config   map[string]string `json:"config" binding:"required"`
}

// ========================================
// Health and stats
// ========================================

// Health reports service liveness and component readiness.
func (h *Handler) Health(c *gin.Context) {
	ready, state := h.LLMService.GetProviderStatus()

	h.Response.Success(c, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"catalog_songs":  h.CatalogService.Count(),
		"llm": map[string]interface{}{
			"ready":  ready,
			"status": state,
		},
	})
}

// GetStats returns the metrics snapshot plus catalog and session counts.
func (h *Handler) GetStats(c *gin.Context) {
	sessions, err := h.AssistantService.ListSessions()
	if err != nil {
		h.Response.InternalError(c, "failed to count chat sessions", err.Error())
		return
	}

	h.Response.Success(c, map[string]interface{}{
		"metrics":       metrics.GetCollector().Snapshot(),
		"catalog_songs": h.CatalogService.Count(),
		"chat_sessions": len(sessions),
	})
}

// ========================================
// Catalog handlers
// ========================================

// GetSongs lists catalog entries, optionally paginated.
func (h *Handler) GetSongs(c *gin.Context) {
	summaries := h.CatalogService.ListSongs()

	pageParam := c.Query("page")
	if pageParam == "" {
		h.Response.Success(c, summaries)
		return
	}

	page, err := strconv.Atoi(pageParam)
	if err != nil || page < 1 {
		h.Response.BadRequest(c, "invalid page parameter")
		return
	}

	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if err != nil || perPage < 1 || perPage > 100 {
		h.Response.BadRequest(c, "invalid per_page parameter")
		return
	}

	total := len(summaries)
	totalPages := (total + perPage - 1) / perPage

	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	h.Response.PaginatedSuccess(c, summaries[start:end], &PaginationMeta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// GetSong returns one catalog entry with its full lyrics.
func (h *Handler) GetSong(c *gin.Context) {
	song, err := h.CatalogService.GetSong(c.Param("id"))
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.Error(c, http.StatusNotFound, ErrorSongNotFound, err.Error())
			return
		}
		h.Response.AppError(c, err, "failed to load song")
		return
	}

	h.Response.Success(c, song)
}

// SearchSongs runs an accent and case insensitive search over the catalog.
func (h *Handler) SearchSongs(c *gin.Context) {
	query := c.Query("q")

	hits, err := h.CatalogService.Search(c.Request.Context(), query)
	if err != nil {
		if apperrors.IsValidationError(err) {
			h.Response.Error(c, http.StatusBadRequest, ErrorSearchQueryInvalid, err.Error())
			return
		}
		h.Response.AppError(c, err, "search failed")
		return
	}

	h.Response.Success(c, map[string]interface{}{
		"query": query,
		"hits":  hits,
		"count": len(hits),
	})
}

// ReloadCatalog re-reads the catalog file from disk.
func (h *Handler) ReloadCatalog(c *gin.Context) {
	if err := h.CatalogService.Reload(); err != nil {
		h.Response.AppError(c, err, "catalog reload failed")
		return
	}

	h.Response.Success(c, map[string]interface{}{
		"catalog_songs": h.CatalogService.Count(),
	}, "catalog reloaded")
}

// ========================================
// Chat and parsing handlers
// ========================================

// Chat runs one assistant turn and returns the parsed reply.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	result, err := h.AssistantService.Chat(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		h.Response.AppError(c, err, "chat failed")
		return
	}

	h.Response.Success(c, result)
}

// ParseContent splits raw assistant text into segments and media references.
func (h *Handler) ParseContent(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	parsed, stats := h.AssistantService.ParseContent(req.Content)

	h.Response.Success(c, map[string]interface{}{
		"parsed": parsed,
		"stats":  stats,
	})
}

// GetConversation returns a stored conversation.
func (h *Handler) GetConversation(c *gin.Context) {
	conv, err := h.AssistantService.GetConversation(c.Param("session_id"))
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.Error(c, http.StatusNotFound, ErrorSessionNotFound, err.Error())
			return
		}
		h.Response.AppError(c, err, "failed to load conversation")
		return
	}

	h.Response.Success(c, conv)
}

// DeleteConversation removes a stored conversation.
func (h *Handler) DeleteConversation(c *gin.Context) {
	if err := h.AssistantService.DeleteConversation(c.Param("session_id")); err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.Error(c, http.StatusNotFound, ErrorSessionNotFound, err.Error())
			return
		}
		h.Response.AppError(c, err, "failed to delete conversation")
		return
	}

	h.Response.Success(c, nil, "conversation deleted")
}

// ListSessions lists the stored conversation session ids.
func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.AssistantService.ListSessions()
	if err != nil {
		h.Response.InternalError(c, "failed to list sessions", err.Error())
		return
	}

	h.Response.Success(c, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// ========================================
// Settings and LLM handlers
// ========================================

// GetSettings returns the current runtime settings.
func (h *Handler) GetSettings(c *gin.Context) {
	cfg := config.GetCurrentConfig()

	llmConfig := make(map[string]interface{})
	if cfg.LLMConfig != nil {
		llmConfig["model"] = cfg.LLMConfig["default_model"]
		llmConfig["has_api_key"] = cfg.LLMConfig["api_key"] != ""
	}

	h.Response.Success(c, map[string]interface{}{
		"llm_provider": cfg.LLMProvider,
		"debug_mode":   cfg.DebugMode,
		"port":         cfg.Port,
		"llm_config":   llmConfig,
	})
}

// UpdateSettings swaps the LLM provider configuration.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	// Swap the live provider first so a bad config never gets persisted
	if err := h.LLMService.UpdateProvider(req.Provider, req.Config); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid,
			"provider configuration rejected", err.Error())
		return
	}

	if err := config.UpdateLLMConfig(req.Provider, req.Config); err != nil {
		// Provider is live but the settings will not survive a restart
		h.Response.Error(c, http.StatusPartialContent, "CONFIG_NOT_PERSISTED",
			"provider updated but configuration could not be saved", err.Error())
		return
	}

	h.Response.Success(c, map[string]interface{}{
		"provider": h.LLMService.ProviderName(),
		"model":    h.LLMService.ActiveModel(),
	}, "LLM configuration updated")
}

// TestConnection runs a tiny completion against the active provider.
func (h *Handler) TestConnection(c *gin.Context) {
	ready, state := h.LLMService.GetProviderStatus()
	if !ready {
		h.Response.ServiceUnavailable(c, ErrorLLMServiceUnavailable, "LLM service is not ready", state)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	_, err := h.LLMService.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: "You are a helpful assistant.",
		Prompt:       "Hello",
		Temperature:  0.1,
		MaxTokens:    5,
	})
	if err != nil {
		h.Response.Error(c, http.StatusServiceUnavailable, ErrorConnectionTestFailed,
			"connection test failed", err.Error())
		return
	}

	h.Response.Success(c, map[string]interface{}{
		"provider": h.LLMService.ProviderName(),
		"status":   "connected",
		"test":     "passed",
	}, "connection test passed")
}

// GetLLMStatus reports the LLM service state for the settings UI.
func (h *Handler) GetLLMStatus(c *gin.Context) {
	cfg := config.GetCurrentConfig()

	status := map[string]interface{}{
		"ready":    h.LLMService.IsReady(),
		"status":   h.LLMService.GetReadyState(),
		"provider": h.LLMService.ProviderName(),
		"config": map[string]interface{}{
			"provider":    cfg.LLMProvider,
			"has_api_key": cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] != "",
		},
	}

	if cfg.LLMConfig != nil {
		if model, ok := cfg.LLMConfig["default_model"]; ok {
			status["config"].(map[string]interface{})["model"] = model
		}
	}

	c.JSON(http.StatusOK, status)
}

// GetLLMModels lists the models a provider supports.
func (h *Handler) GetLLMModels(c *gin.Context) {
	provider := c.Query("provider")
	if provider == "" {
		provider = h.LLMService.ProviderName()
	}
	if provider == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing provider parameter"})
		return
	}

	models := llm.GetSupportedModelsForProvider(provider)

	if len(models) == 0 {
		availableProviders := llm.ListProviders()
		providerExists := false
		for _, p := range availableProviders {
			if p == provider {
				providerExists = true
				break
			}
		}

		if !providerExists {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "unsupported LLM provider: " + provider,
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"provider": provider,
		"models":   models,
		"count":    len(models),
	})
}

// ========================================
// WebSocket handlers
// ========================================

// ChatSessionWebSocket serves the chat WebSocket endpoint.
func (h *Handler) ChatSessionWebSocket(c *gin.Context) {
	h.WebSocketHandler.ChatSessionWebSocket(c)
}

// GetWebSocketStatus reports live connection state, for debugging.
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	status := wsManager.GetStatus()
	status["ping_timeout_seconds"] = int(wsManager.pingTimeout.Seconds())
	status["timestamp"] = time.Now().Format(time.RFC3339)

	c.JSON(http.StatusOK, status)
}

// CleanupWebSocketConnections forces an expired-connection sweep.
func (h *Handler) CleanupWebSocketConnections(c *gin.Context) {
	wsManager.cleanupExpiredConnections()
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "connection cleanup executed",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
