// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig is the full runtime configuration, including the LLM settings
// that can be changed from the settings endpoint and persist across restarts.
type AppConfig struct {
	Port        string `json:"port"`
	DataDir     string `json:"data_dir"`
	LogDir      string `json:"log_dir"`
	CatalogPath string `json:"catalog_path"`
	DebugMode   bool   `json:"debug_mode"`

	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`
}

// Config holds the environment-derived part of the configuration.
type Config struct {
	Port        string
	DataDir     string
	LogDir      string
	CatalogPath string
	DebugMode   bool
	LLMProvider string
	LLMAPIKey   string
	LLMModel    string
}

// Load reads configuration from the environment, with .env as an optional
// overlay.
func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		DataDir:     getEnvPath("DATA_DIR", "data"),
		LogDir:      getEnvPath("LOG_DIR", "logs"),
		DebugMode:   getEnvBool("DEBUG_MODE", true),
		LLMProvider: getEnv("LLM_PROVIDER", "openrouter"),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMModel:    getEnv("LLM_MODEL", "openai/gpt-4o-mini"),
	}
	config.CatalogPath = getEnv("CATALOG_PATH", filepath.Join(config.DataDir, "songs.json"))

	if config.LLMAPIKey == "" {
		// Not fatal, the assistant stays disabled until a key is configured.
		log.Println("warning: LLM_API_KEY is not set, the assistant needs a key from the settings endpoint before it can answer")
	}

	return config, nil
}

// getEnv returns the environment value or the default when unset.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath returns the directory named by the environment value, creating
// it when missing.
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("warning: failed to create directory %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool reads a boolean environment value.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// InitConfig loads the environment configuration, overlays the persisted
// config file when present, and writes the merged result back.
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = &AppConfig{
		Port:        baseConfig.Port,
		DataDir:     baseConfig.DataDir,
		LogDir:      baseConfig.LogDir,
		CatalogPath: baseConfig.CatalogPath,
		DebugMode:   baseConfig.DebugMode,
		LLMProvider: baseConfig.LLMProvider,
		LLMConfig: map[string]string{
			"api_key":       baseConfig.LLMAPIKey,
			"default_model": baseConfig.LLMModel,
		},
	}

	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				// Keep the saved LLM settings but refresh everything the
				// environment owns.
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.CatalogPath = baseConfig.CatalogPath
				savedConfig.DebugMode = baseConfig.DebugMode

				if savedConfig.LLMConfig != nil && savedConfig.LLMConfig["api_key"] == "" {
					savedConfig.LLMConfig["api_key"] = baseConfig.LLMAPIKey
				}

				currentConfig = &savedConfig
			}
		}
	}

	return SaveConfig()
}

// GetCurrentConfig returns a copy of the current configuration.
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// Config was never initialized, fall back to the environment.
		baseConfig, _ := Load()
		return &AppConfig{
			Port:        baseConfig.Port,
			DataDir:     baseConfig.DataDir,
			LogDir:      baseConfig.LogDir,
			CatalogPath: baseConfig.CatalogPath,
			DebugMode:   baseConfig.DebugMode,
			LLMProvider: baseConfig.LLMProvider,
			LLMConfig: map[string]string{
				"api_key":       baseConfig.LLMAPIKey,
				"default_model": baseConfig.LLMModel,
			},
		}
	}

	configCopy := *currentConfig
	return &configCopy
}

// UpdateLLMConfig swaps the LLM provider settings and persists them.
func UpdateLLMConfig(provider string, config map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("config system is not initialized")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = config

	return SaveConfig()
}

// SaveConfig writes the current configuration to the config file. Callers
// must hold configMutex.
func SaveConfig() error {
	if currentConfig == nil {
		return fmt.Errorf("no config to save")
	}

	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
