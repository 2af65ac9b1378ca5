package chat

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/cloudwego/eino/schema"

	chatmodel "github.com/zhouzirui/friday/backend/internal/model/chat"
	"github.com/zhouzirui/friday/backend/internal/service/history"
)

const (
	defaultWindow         = 10
	defaultPersistTimeout = 5 * time.Second
)

// Completer opens provider streams. *ai.Service satisfies it.
type Completer interface {
	SystemPrompt() string
	Stream(ctx context.Context, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error)
}

// ChatRequest is the body of a chat request. Message stays raw so a value of
// the wrong JSON type can be told apart from a missing one.
type ChatRequest struct {
	Message   json.RawMessage `json:"message"`
	UserID    string          `json:"userId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// Text returns the user message or a ValidationError when it is missing,
// empty, or not a string.
func (r ChatRequest) Text() (string, error) {
	if len(r.Message) == 0 || string(r.Message) == "null" {
		return "", &ValidationError{Field: "message", Reason: "Message is required"}
	}
	var text string
	if err := json.Unmarshal(r.Message, &text); err != nil {
		return "", &ValidationError{Field: "message", Reason: "Message must be a string"}
	}
	if text == "" {
		return "", &ValidationError{Field: "message", Reason: "Message is required"}
	}
	return text, nil
}

// Turn is one validated exchange ready to be relayed.
type Turn struct {
	UserID     string
	SessionID  string
	Text       string
	UserTurnID string
	Messages   []*schema.Message
}

// Service runs the context assembly and stream relay stages of a chat turn.
type Service struct {
	history        history.Store
	completer      Completer
	window         int
	persistTimeout time.Duration
}

// Option customises a Service.
type Option func(*Service)

// WithWindow sets how many prior turns are sent as context.
func WithWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithPersistTimeout bounds the post-stream reply write.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// NewService wires the chat pipeline.
func NewService(store history.Store, completer Completer, opts ...Option) *Service {
	s := &Service{
		history:        store,
		completer:      completer,
		window:         defaultWindow,
		persistTimeout: defaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prepare validates the request, loads the history window and records the
// user turn. Nothing is sent to the provider here.
func (s *Service) Prepare(ctx context.Context, req ChatRequest) (*Turn, error) {
	text, err := req.Text()
	if err != nil {
		return nil, err
	}

	var window []chatmodel.Turn
	if req.UserID != "" {
		window, err = s.history.QueryRecent(ctx, req.UserID, s.window)
		if err != nil {
			return nil, &PersistenceError{Stage: StageLoadHistory, Err: err}
		}
	}

	turn := &Turn{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Text:      text,
		Messages:  Assemble(s.completer.SystemPrompt(), window, text),
	}

	if req.UserID != "" {
		id, err := s.history.Append(ctx, chatmodel.Turn{
			UserID:    req.UserID,
			SessionID: req.SessionID,
			Role:      chatmodel.RoleUser,
			Content:   text,
		})
		if err != nil {
			return nil, &PersistenceError{Stage: StageSaveUserTurn, Err: err}
		}
		turn.UserTurnID = id
	}

	log.Printf("[chat] prepared turn user=%q history=%d", req.UserID, len(window))
	return turn, nil
}

// Assemble builds the provider message list: system instruction, prior turns
// oldest first, then the new user message.
func Assemble(system string, prior []chatmodel.Turn, text string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(prior)+2)
	messages = append(messages, schema.SystemMessage(system))
	for _, t := range prior {
		switch t.Role {
		case chatmodel.RoleUser:
			messages = append(messages, schema.UserMessage(t.Content))
		case chatmodel.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(t.Content, nil))
		}
	}
	return append(messages, schema.UserMessage(text))
}
