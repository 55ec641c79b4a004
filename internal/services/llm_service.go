// internal/services/llm_service.go
package services

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Corphon/CantusMCP/internal/config"
	"github.com/Corphon/CantusMCP/internal/llm"
	"github.com/Corphon/CantusMCP/internal/logger"
	"github.com/Corphon/CantusMCP/internal/metrics"
)

var ErrLLMNotReady = errors.New("llm service not ready")

// LLMService owns the provider lifecycle and fronts every completion call.
// It stays usable when no API key is configured: callers check IsReady and
// the service reports a human-readable state instead of failing at startup.
type LLMService struct {
	providerMutex      sync.RWMutex
	provider           llm.Provider
	providerName       string
	cache              *responseCache
	appMetrics         *metrics.AppMetrics
	isReady            bool
	readyState         string
	activeDefaultModel string
}

type responseCache struct {
	entries    map[string]*cacheEntry
	mutex      sync.RWMutex
	expiration time.Duration
}

type cacheEntry struct {
	response  llm.CompletionResponse
	createdAt time.Time
}

// NewLLMService builds the service from the current configuration. A missing
// or broken provider config yields a not-ready service, never an error.
func NewLLMService() (*LLMService, error) {
	service := createBaseLLMService()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service, nil
	}

	if cfg.LLMProvider == "" || (cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] == "") {
		service.readyState = "API key not configured"
		return service, nil
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return service, nil
	}

	service.provider = provider
	service.providerName = cfg.LLMProvider
	service.activeDefaultModel = extractDefaultModel(cfg.LLMConfig)
	service.isReady = true
	service.readyState = "Ready"

	return service, nil
}

// NewEmptyLLMService returns a standby instance for setups without any
// provider configuration.
func NewEmptyLLMService() *LLMService {
	service := createBaseLLMService()
	service.providerName = "empty"
	service.readyState = "Standby mode – configure an API key in settings"
	return service
}

func createBaseLLMService() *LLMService {
	return &LLMService{
		provider:           nil,
		providerName:       "",
		isReady:            false,
		readyState:         "Uninitialized",
		activeDefaultModel: "",
		appMetrics:         metrics.NewAppMetrics(),
		cache: &responseCache{
			entries:    make(map[string]*cacheEntry),
			mutex:      sync.RWMutex{},
			expiration: 30 * time.Minute,
		},
	}
}

func extractDefaultModel(cfg map[string]string) string {
	if cfg == nil {
		return ""
	}
	return cfg["default_model"]
}

// IsReady reports whether a provider is initialized and configured.
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	if s.provider != nil && s.isReady {
		return true
	}

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return false
	}

	if cfg.LLMProvider == "" {
		return false
	}

	if cfg.LLMConfig == nil || cfg.LLMConfig["api_key"] == "" {
		return false
	}

	return true
}

// GetReadyState returns a human-readable readiness description.
func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return "Cannot get configuration"
	}

	if cfg.LLMProvider == "" {
		return "LLM provider not configured"
	}

	if cfg.LLMConfig == nil || cfg.LLMConfig["api_key"] == "" {
		return "API key not configured"
	}

	if s.provider != nil && s.isReady {
		return "Ready"
	}

	return "Waiting for initialization"
}

// GetProviderStatus returns readiness along with its description.
func (s *LLMService) GetProviderStatus() (bool, string) {
	if s == nil {
		return false, "LLM service not initialized"
	}
	if s.IsReady() {
		return true, "Ready"
	}
	return false, s.GetReadyState()
}

// ProviderName returns the name of the active provider, or "" when none is
// configured.
func (s *LLMService) ProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// ActiveModel returns the configured default model. Empty means the provider
// falls back to its own default.
func (s *LLMService) ActiveModel() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.activeDefaultModel
}

// SupportedModels lists the models the active provider offers.
func (s *LLMService) SupportedModels() []string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	if s.provider == nil {
		return nil
	}
	return s.provider.GetSupportedModels()
}

// UpdateProvider swaps the provider at runtime and resets the cache.
func (s *LLMService) UpdateProvider(providerName string, providerConfig map[string]string) error {
	provider, err := llm.GetProvider(providerName, providerConfig)
	if err != nil {
		s.providerMutex.Lock()
		s.isReady = false
		s.readyState = fmt.Sprintf("Configuration failed: %v", err)
		s.providerMutex.Unlock()
		return err
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = providerName
	s.activeDefaultModel = extractDefaultModel(providerConfig)
	s.isReady = true
	s.readyState = "Ready"

	s.cache = &responseCache{
		entries:    make(map[string]*cacheEntry),
		mutex:      sync.RWMutex{},
		expiration: 30 * time.Minute,
	}

	return nil
}

// resolveModel picks an explicit model over the configured default. An empty
// result lets the provider use its own default.
func (s *LLMService) resolveModel(requested string) string {
	if requested != "" {
		return requested
	}
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.activeDefaultModel
}

func (s *LLMService) generateCacheKey(prompt, systemPrompt, model string) string {
	s.providerMutex.RLock()
	providerName := s.providerName
	s.providerMutex.RUnlock()

	hashInput := fmt.Sprintf("%s:::%s:::%s:::%s",
		prompt, systemPrompt, model, providerName)
	h := md5.New()
	h.Write([]byte(hashInput))
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (c *responseCache) get(key string) (llm.CompletionResponse, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return llm.CompletionResponse{}, false
	}

	if time.Since(entry.createdAt) > c.expiration {
		return llm.CompletionResponse{}, false
	}

	return entry.response, true
}

func (c *responseCache) put(key string, response llm.CompletionResponse) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = &cacheEntry{
		response:  response,
		createdAt: time.Now(),
	}

	if len(c.entries) > 1000 {
		c.cleanupOldest(100)
	}
}

// cleanupOldest drops the count oldest entries. Caller holds the write lock.
func (c *responseCache) cleanupOldest(count int) {
	type keyAge struct {
		key string
		age time.Time
	}

	entries := make([]keyAge, 0, len(c.entries))
	for k, v := range c.entries {
		entries = append(entries, keyAge{k, v.createdAt})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].age.Before(entries[j].age)
	})

	maxToDelete := min(count, len(entries))
	for i := 0; i < maxToDelete; i++ {
		delete(c.entries, entries[i].key)
	}
}

// Complete sends one completion request through the active provider. Results
// are cached on (prompt, system prompt, model) for repeated calls.
func (s *LLMService) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		state := s.readyState
		s.providerMutex.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrLLMNotReady, state)
	}
	provider := s.provider
	providerName := s.providerName
	s.providerMutex.RUnlock()

	req.Model = s.resolveModel(req.Model)

	cacheKey := s.generateCacheKey(req.Prompt, req.SystemPrompt, req.Model)
	if cached, ok := s.cache.get(cacheKey); ok {
		logger.Get().Debug("LLM cache hit", map[string]interface{}{
			"cache_key_prefix": cacheKey[:8],
		})
		return &cached, nil
	}

	start := time.Now()
	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		s.appMetrics.RecordError("llm_error", "llm_service")
		return nil, err
	}

	s.appMetrics.RecordLLMRequest(providerName, resp.ModelName, time.Since(start))

	s.cache.put(cacheKey, *resp)

	return resp, nil
}

// Stream opens a streaming completion. Streamed replies are not cached.
func (s *LLMService) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamResponse, error) {
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		state := s.readyState
		s.providerMutex.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrLLMNotReady, state)
	}
	provider := s.provider
	s.providerMutex.RUnlock()

	req.Model = s.resolveModel(req.Model)

	return provider.StreamCompletion(ctx, req)
}
