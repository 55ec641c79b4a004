// internal/app/app.go
package app

import (
	"fmt"

	"github.com/Corphon/CantusMCP/internal/config"
	"github.com/Corphon/CantusMCP/internal/di"
	"github.com/Corphon/CantusMCP/internal/services"
	"github.com/Corphon/CantusMCP/internal/storage"

	// Providers register themselves with the llm registry on import.
	_ "github.com/Corphon/CantusMCP/internal/llm/providers/openrouter"
)

// InitServices builds the core services in dependency order and registers
// them in the global container.
func InitServices() error {
	container := di.GetContainer()
	cfg := config.GetCurrentConfig()

	// Storage first, everything else persists through it
	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	container.Register("storage", fileStorage)

	// The LLM service starts in a not-ready state when no key is configured
	llmService, err := services.NewLLMService()
	if err != nil {
		return fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	container.Register("llm", llmService)

	catalogService, err := services.NewCatalogService(fileStorage, cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to initialize catalog service: %w", err)
	}
	container.Register("catalog", catalogService)

	assistantService := services.NewAssistantService(llmService, catalogService, fileStorage)
	container.Register("assistant", assistantService)

	return nil
}
