// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/CantusMCP/internal/config"
	"github.com/Corphon/CantusMCP/internal/di"
	"github.com/Corphon/CantusMCP/internal/metrics"
	"github.com/Corphon/CantusMCP/internal/services"
)

// SetupRouter wires the HTTP routes around the services in the DI container.
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	container := di.GetContainer()

	// Services come from the container only, never created here
	catalogService, ok := container.Get("catalog").(*services.CatalogService)
	if !ok {
		return nil, fmt.Errorf("catalog service is not initialized")
	}

	assistantService, ok := container.Get("assistant").(*services.AssistantService)
	if !ok {
		return nil, fmt.Errorf("assistant service is not initialized")
	}

	llmService, ok := container.Get("llm").(*services.LLMService)
	if !ok {
		return nil, fmt.Errorf("llm service is not initialized")
	}

	handler := NewHandler(catalogService, assistantService, llmService, NewWebSocketHandler())

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(corsMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(RequestMetricsMiddleware(metrics.NewAppMetrics()))

	// HTTPS redirect (production)
	if !cfg.DebugMode {
		r.Use(func(c *gin.Context) {
			if c.Request.Header.Get("X-Forwarded-Proto") != "https" {
				c.Redirect(http.StatusPermanentRedirect,
					"https://"+c.Request.Host+c.Request.URL.Path)
				c.Abort()
				return
			}
			c.Next()
		})
	}

	// WebSocket endpoint stays outside the rate-limited API group
	r.GET("/ws/chat/:session_id", handler.ChatSessionWebSocket)

	// ===============================
	// API routes
	// ===============================
	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		api.GET("/health", handler.Health)
		api.GET("/stats", handler.GetStats)

		// ===============================
		// Catalog routes
		// ===============================
		songsGroup := api.Group("/songs")
		{
			songsGroup.GET("", handler.GetSongs)
			songsGroup.GET("/:id", handler.GetSong)
			songsGroup.POST("/reload", handler.ReloadCatalog)
		}

		api.GET("/search", handler.SearchSongs)
		api.POST("/parse", handler.ParseContent)

		// ===============================
		// Chat routes
		// ===============================
		chatGroup := api.Group("/chat")
		{
			chatGroup.POST("", ChatRateLimit(), handler.Chat)
			chatGroup.GET("/sessions", handler.ListSessions)
			chatGroup.GET("/:session_id", handler.GetConversation)
			chatGroup.DELETE("/:session_id", handler.DeleteConversation)
		}

		// ===============================
		// Settings routes
		// ===============================
		settingsGroup := api.Group("/settings")
		{
			settingsGroup.GET("", handler.GetSettings)
			settingsGroup.PUT("", handler.UpdateSettings)
			settingsGroup.POST("/test-connection", handler.TestConnection)
		}

		// ===============================
		// LLM info routes
		// ===============================
		llmGroup := api.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.GET("/models", handler.GetLLMModels)
		}

		// ===============================
		// WebSocket management routes (debug)
		// ===============================
		wsGroup := api.Group("/ws")
		{
			wsGroup.GET("/status", handler.GetWebSocketStatus)
			wsGroup.POST("/cleanup", handler.CleanupWebSocketConnections)
		}
	}

	return r, nil
}

// corsMiddleware enables cross-origin requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
