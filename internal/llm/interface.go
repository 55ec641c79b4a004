// internal/llm/interface.go
package llm

import (
	"context"
	"errors"
)

var ErrUnknownProvider = errors.New("unknown LLM provider")

// CompletionRequest is the provider-independent request shape.
type CompletionRequest struct {
	Prompt       string                 `json:"prompt"`
	SystemPrompt string                 `json:"system_prompt,omitempty"`
	MaxTokens    int                    `json:"max_tokens,omitempty"`
	Temperature  float32                `json:"temperature,omitempty"`
	TopP         float32                `json:"top_p,omitempty"`
	Model        string                 `json:"model,omitempty"`
	StopWords    []string               `json:"stop_words,omitempty"`
	Stream       bool                   `json:"stream,omitempty"`
	ExtraParams  map[string]interface{} `json:"extra_params,omitempty"`
}

// CompletionResponse is the provider-independent response shape.
type CompletionResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	TokensUsed   int    `json:"tokens_used,omitempty"`
	PromptTokens int    `json:"prompt_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// StreamResponse is one chunk of a streaming completion.
type StreamResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	Done         bool   `json:"done"`
}

// Provider is implemented by every model backend.
type Provider interface {
	// Initialize configures the provider from the llm_config map.
	Initialize(config map[string]string) error

	// GetName returns the display name of the provider.
	GetName() string

	// GetSupportedModels lists the models the provider can serve.
	GetSupportedModels() []string

	// CompleteText generates a reply for one request.
	CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// StreamCompletion generates a reply as a chunk stream.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan StreamResponse, error)

	// FetchAvailableModels refreshes the model list from the provider API,
	// for providers that expose one.
	FetchAvailableModels(ctx context.Context) error

	// SetCustomModels overrides the model list.
	SetCustomModels(models []string)
}

// ProviderFactory builds an unconfigured provider instance.
type ProviderFactory func() Provider

var providers = make(map[string]ProviderFactory)

// Register adds a provider factory under its config name. Providers call
// this from init.
func Register(name string, factory ProviderFactory) {
	providers[name] = factory
}

// GetProvider builds and initializes the named provider.
func GetProvider(name string, config map[string]string) (Provider, error) {
	factory, exists := providers[name]
	if !exists {
		return nil, ErrUnknownProvider
	}

	provider := factory()
	if err := provider.Initialize(config); err != nil {
		return nil, err
	}

	return provider, nil
}

// ListProviders returns all registered provider names.
func ListProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}

// GetSupportedModelsForProvider lists the models of the named provider
// without initializing it.
func GetSupportedModelsForProvider(name string) []string {
	factory, exists := providers[name]
	if !exists {
		return []string{}
	}

	provider := factory()
	return provider.GetSupportedModels()
}
