// internal/services/assistant_service_test.go
package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/CantusMCP/internal/content"
	apperrors "github.com/Corphon/CantusMCP/internal/errors"
	"github.com/Corphon/CantusMCP/internal/llm"
	"github.com/Corphon/CantusMCP/internal/models"
	"github.com/Corphon/CantusMCP/internal/storage"
)

// fakeProvider plays back a fixed reply and records every request it sees.
type fakeProvider struct {
	mu       sync.Mutex
	reply    string
	requests []llm.CompletionRequest
}

func (p *fakeProvider) Initialize(config map[string]string) error { return nil }
func (p *fakeProvider) GetName() string                           { return "Fake" }
func (p *fakeProvider) GetSupportedModels() []string              { return []string{"fake-1"} }
func (p *fakeProvider) FetchAvailableModels(ctx context.Context) error {
	return nil
}
func (p *fakeProvider) SetCustomModels(models []string) {}

func (p *fakeProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	return &llm.CompletionResponse{
		Text:         p.reply,
		FinishReason: "stop",
		ModelName:    "fake-1",
		ProviderName: "Fake",
	}, nil
}

func (p *fakeProvider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	reply := p.reply
	p.mu.Unlock()

	ch := make(chan llm.StreamResponse)
	go func() {
		defer close(ch)
		// Split the reply into a few chunks to exercise accumulation.
		for len(reply) > 0 {
			n := min(7, len(reply))
			ch <- llm.StreamResponse{Text: reply[:n], ModelName: "fake-1"}
			reply = reply[n:]
		}
		ch <- llm.StreamResponse{Done: true, FinishReason: "stop", ModelName: "fake-1"}
	}()
	return ch, nil
}

func (p *fakeProvider) lastRequest() llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

func newTestLLMService(p llm.Provider) *LLMService {
	s := createBaseLLMService()
	s.provider = p
	s.providerName = "fake"
	s.isReady = true
	s.readyState = "Ready"
	return s
}

func newTestAssistant(t *testing.T, reply string) (*AssistantService, *fakeProvider) {
	t.Helper()

	catalog, fs := newTestCatalog(t, testSongs())
	provider := &fakeProvider{reply: reply}
	svc := NewAssistantService(newTestLLMService(provider), catalog, fs)
	return svc, provider
}

func TestChatParsesMediaReply(t *testing.T) {
	reply := "A partitura está aqui.\n" +
		"```json\n" +
		`{"scores": [{"name": "Glória a Deus", "url": "https://scores.example.com/gloria.pdf"}]}` + "\n" +
		"```\n"
	svc, _ := newTestAssistant(t, reply)

	result, err := svc.Chat(context.Background(), "", "Quero a partitura de Glória a Deus")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, models.RoleAssistant, result.Message.Role)
	assert.Equal(t, reply, result.Message.Content)

	require.NotNil(t, result.Message.Parsed)
	require.Len(t, result.Message.Parsed.Media, 1)
	score, ok := result.Message.Parsed.Media[0].(content.ScoreRef)
	require.True(t, ok)
	assert.Equal(t, "Glória a Deus", score.Name)
	assert.Equal(t, []string{"https://scores.example.com/gloria.pdf"}, score.Pages)

	assert.Equal(t, 1, result.Stats.Blocks)
	assert.Equal(t, 0, result.Stats.DemotedBlocks)
}

func TestChatPersistsConversation(t *testing.T) {
	svc, _ := newTestAssistant(t, "Claro, posso ajudar.")

	result, err := svc.Chat(context.Background(), "", "Olá")
	require.NoError(t, err)

	conv, err := svc.GetConversation(result.SessionID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)

	assert.Equal(t, models.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "Olá", conv.Messages[0].Content)
	assert.Nil(t, conv.Messages[0].Parsed)

	assert.Equal(t, models.RoleAssistant, conv.Messages[1].Role)
	assert.NotNil(t, conv.Messages[1].Parsed)
}

func TestChatFoldsHistoryIntoPrompt(t *testing.T) {
	svc, provider := newTestAssistant(t, "Entendido.")

	first, err := svc.Chat(context.Background(), "", "Procuro canções sobre graça")
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), first.SessionID, "E a segunda?")
	require.NoError(t, err)

	req := provider.lastRequest()
	assert.Contains(t, req.Prompt, "Conversation so far:")
	assert.Contains(t, req.Prompt, "Procuro canções sobre graça")
	assert.Contains(t, req.Prompt, "Current user message: E a segunda?")
}

func TestChatSystemPromptCarriesCatalog(t *testing.T) {
	svc, provider := newTestAssistant(t, "ok")

	_, err := svc.Chat(context.Background(), "", "o que temos?")
	require.NoError(t, err)

	req := provider.lastRequest()
	assert.Contains(t, req.SystemPrompt, "Glória a Deus")
	assert.Contains(t, req.SystemPrompt, "https://scores.example.com/gloria.pdf")
	assert.Contains(t, req.SystemPrompt, "EMBED_SCORE")
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	svc, _ := newTestAssistant(t, "ok")

	_, err := svc.Chat(context.Background(), "", "   ")
	assert.True(t, apperrors.IsValidationError(err))
}

func TestChatRejectsUnsafeSessionID(t *testing.T) {
	svc, _ := newTestAssistant(t, "ok")

	_, err := svc.Chat(context.Background(), "../../etc/passwd", "oi")
	assert.True(t, apperrors.IsValidationError(err))
}

func TestChatWithoutProviderFailsCleanly(t *testing.T) {
	catalog, fs := newTestCatalog(t, testSongs())
	svc := NewAssistantService(NewEmptyLLMService(), catalog, fs)

	_, err := svc.Chat(context.Background(), "", "oi")
	assert.True(t, apperrors.IsLLMError(err))
}

func TestStreamChatAccumulatesChunks(t *testing.T) {
	reply := "Segue a faixa. [EMBED_TRACK:tracks/amor-eterno.mp3:Amor Eterno]"
	svc, _ := newTestAssistant(t, reply)

	var streamed strings.Builder
	result, err := svc.StreamChat(context.Background(), "", "Tem a gravação?", func(chunk string) {
		streamed.WriteString(chunk)
	})
	require.NoError(t, err)

	assert.Equal(t, reply, streamed.String())
	assert.Equal(t, reply, result.Message.Content)

	require.NotNil(t, result.Message.Parsed)
	require.Len(t, result.Message.Parsed.Media, 1)
	track, ok := result.Message.Parsed.Media[0].(content.TrackRef)
	require.True(t, ok)
	assert.Equal(t, "tracks/amor-eterno.mp3", track.Path)
	assert.Equal(t, "Amor Eterno", track.Name)
	assert.Equal(t, 1, result.Stats.InlineTags)
}

func TestGetConversationNotFound(t *testing.T) {
	svc, _ := newTestAssistant(t, "ok")

	_, err := svc.GetConversation("nope")
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestDeleteConversation(t *testing.T) {
	svc, _ := newTestAssistant(t, "ok")

	result, err := svc.Chat(context.Background(), "", "oi")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteConversation(result.SessionID))

	_, err = svc.GetConversation(result.SessionID)
	assert.True(t, apperrors.IsNotFoundError(err))

	err = svc.DeleteConversation(result.SessionID)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestListSessions(t *testing.T) {
	svc, _ := newTestAssistant(t, "ok")

	first, err := svc.Chat(context.Background(), "", "primeira")
	require.NoError(t, err)
	second, err := svc.Chat(context.Background(), "", "segunda")
	require.NoError(t, err)

	sessions, err := svc.ListSessions()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.SessionID, second.SessionID}, sessions)
}

func TestParseContentCountsDemotions(t *testing.T) {
	svc, _ := newTestAssistant(t, "unused")

	parsed, stats := svc.ParseContent("```json\n{{{{\n```\n")
	assert.Equal(t, 1, stats.Blocks)
	assert.Equal(t, 1, stats.DemotedBlocks)
	assert.Empty(t, parsed.Media)
	require.Len(t, parsed.TextSegments, 1)
	assert.Contains(t, parsed.TextSegments[0], "{{{{")
}
