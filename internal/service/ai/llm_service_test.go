package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/friday/backend/internal/config"
	"github.com/zhouzirui/friday/backend/internal/model/persona"
)

type recordingModel struct {
	input   []*schema.Message
	options *model.Options
}

func (m *recordingModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.input = input
	m.options = model.GetCommonOptions(&model.Options{}, opts...)
	return schema.AssistantMessage("ok", nil), nil
}

func (m *recordingModel) Stream(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.input = input
	m.options = model.GetCommonOptions(&model.Options{}, opts...)
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage("ok", nil)}), nil
}

func TestServiceStreamAppliesPersonaOptions(t *testing.T) {
	p := ConfiguredPersona(persona.Seed()[0], config.AIConfig{
		Provider:    config.ProviderOpenAI,
		OpenAIModel: "gpt-4",
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	fake := &recordingModel{}
	svc := NewServiceWithModel(fake, persona.NewMemoryStore([]persona.Persona{p}))

	stream, err := svc.Stream(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	defer stream.Close()

	require.NotNil(t, fake.options.Model)
	assert.Equal(t, "gpt-4", *fake.options.Model)
	require.NotNil(t, fake.options.Temperature)
	assert.InDelta(t, 0.7, *fake.options.Temperature, 1e-6)
	require.NotNil(t, fake.options.MaxTokens)
	assert.Equal(t, 1000, *fake.options.MaxTokens)
}

func TestSystemPromptUsesPersonaPrompt(t *testing.T) {
	svc := NewServiceWithModel(&recordingModel{}, persona.NewMemoryStore(persona.Seed()))
	assert.True(t, strings.HasPrefix(svc.SystemPrompt(), "You are Friday, an AI assistant inspired by JARVIS"))
}

func TestBuildSystemPromptFallsBackToDescription(t *testing.T) {
	got := NewPromptManager().BuildSystemPrompt(persona.Persona{
		Name:   "Karen",
		Title:  "suit assistant",
		Tone:   "calm",
		Traits: []string{"precise"},
	})
	assert.Contains(t, got, "You are Karen, suit assistant.")
	assert.Contains(t, got, "Your tone is calm.")
	assert.Contains(t, got, "- precise")
}

func chunk(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"model":   "gpt-4",
		"choices": []map[string]any{{"index": 0, "delta": map[string]string{"content": content}}},
	})
	return "data: " + string(payload) + "\n\n"
}

func newOpenAIServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIChatModelStreamsDeltas(t *testing.T) {
	var got map[string]any
	srv := newOpenAIServer(t, func(w http.ResponseWriter, body map[string]any) {
		got = body
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, chunk("Hel"))
		io.WriteString(w, chunk(""))
		io.WriteString(w, chunk("lo"))
		io.WriteString(w, "data: [DONE]\n\n")
	})

	cm, err := NewOpenAIChatModel(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "gpt-4", Temperature: 0.7, MaxTokens: 1000})
	require.NoError(t, err)

	stream, err := cm.Stream(context.Background(), []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("hi"),
	})
	require.NoError(t, err)
	defer stream.Close()

	var parts []string
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		parts = append(parts, msg.Content)
	}

	assert.Equal(t, []string{"Hel", "lo"}, parts)
	assert.Equal(t, "gpt-4", got["model"])
	assert.Equal(t, true, got["stream"])
	assert.EqualValues(t, 1000, got["max_tokens"])
	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestOpenAIChatModelStreamOpenFailure(t *testing.T) {
	srv := newOpenAIServer(t, func(w http.ResponseWriter, _ map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	})

	cm, err := NewOpenAIChatModel(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "gpt-4"})
	require.NoError(t, err)

	_, err = cm.Stream(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)
}

func TestNewOpenAIChatModelRequiresKey(t *testing.T) {
	_, err := NewOpenAIChatModel(OpenAIConfig{Model: "gpt-4"})
	require.Error(t, err)
}
