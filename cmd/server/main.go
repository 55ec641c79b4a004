// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/CantusMCP/internal/api"
	"github.com/Corphon/CantusMCP/internal/app"
	"github.com/Corphon/CantusMCP/internal/config"
	"github.com/Corphon/CantusMCP/internal/di"
	"github.com/Corphon/CantusMCP/internal/logger"
	"github.com/Corphon/CantusMCP/internal/metrics"
)

func main() {
	log.Println("🚀 Starting CantusMCP server...")

	// 1. Load the base configuration
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("✅ Base configuration loaded, port: %s", baseConfig.Port)

	// 2. Create the required directories
	createDirectories(baseConfig)
	log.Println("✅ Directory structure ready")

	// 3. Initialize the configuration system
	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		log.Fatalf("Failed to initialize configuration system: %v", err)
	}
	log.Println("✅ Configuration system initialized")

	// 4. Attach the logger to its file
	if err := logger.Init(baseConfig.LogDir); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	if baseConfig.DebugMode {
		logger.Get().SetLevel(logger.DEBUG)
	}
	log.Println("✅ Logger initialized")

	// 5. Initialize the dependency injection container
	container := di.GetContainer()
	log.Printf("✅ Dependency container ready, services: %d", len(container.GetNames()))

	// 6. Initialize all services in dependency order
	if err := app.InitServices(); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	log.Println("✅ All services initialized")

	if err := performHealthCheck(); err != nil {
		log.Printf("⚠️ Service health check warning: %v", err)
	}

	// 7. Set up routes, services come from the container
	router, err := api.SetupRouter()
	if err != nil {
		log.Fatalf("❌ Failed to set up routes: %v", err)
	}
	log.Println("✅ Routes configured")

	// 8. Start the periodic metrics report
	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	metrics.NewAppMetrics().StartMetricsCollection(metricsCtx)

	// 9. Start the server
	log.Printf("🌐 Server listening on port %s", baseConfig.Port)
	log.Printf("🔗 API root: http://localhost:%s/api", baseConfig.Port)

	setupGracefulShutdown(router, baseConfig.Port)
}

// performHealthCheck verifies that the critical services are registered.
func performHealthCheck() error {
	container := di.GetContainer()

	criticalServices := []string{"storage", "llm", "catalog", "assistant"}

	for _, serviceName := range criticalServices {
		if service := container.Get(serviceName); service == nil {
			return fmt.Errorf("critical service not registered: %s", serviceName)
		}
	}

	log.Println("✅ Service health check passed")
	return nil
}

// setupGracefulShutdown runs the server and drains it on SIGINT/SIGTERM.
func setupGracefulShutdown(router *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shut down: %v", err)
	}

	log.Println("✅ Server shut down cleanly")
}

// createDirectories creates the directory tree the application writes to.
func createDirectories(cfg *config.Config) {
	dirs := []string{
		cfg.DataDir,
		filepath.Join(cfg.DataDir, "conversations"),
		cfg.LogDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
