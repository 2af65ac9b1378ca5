package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/friday/backend/internal/config"
	"github.com/zhouzirui/friday/backend/internal/model/persona"
)

// Service encapsulates the completion provider and the assistant persona.
type Service struct {
	chatModel model.BaseChatModel
	personas  persona.Store
	prompts   *PromptManager
}

// NewService creates the service with the provider selected in cfg.
func NewService(ctx context.Context, personas persona.Store, cfg config.AIConfig) (*Service, error) {
	chatModel, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	log.Printf("[ai] provider=%s model=%s", cfg.Provider, cfg.ModelName())
	return NewServiceWithModel(chatModel, personas), nil
}

// NewServiceWithModel wires an already constructed chat model.
func NewServiceWithModel(chatModel model.BaseChatModel, personas persona.Store) *Service {
	return &Service{
		chatModel: chatModel,
		personas:  personas,
		prompts:   NewPromptManager(),
	}
}

// Persona returns the assistant persona requests are answered as.
func (s *Service) Persona() persona.Persona {
	return s.personas.Default()
}

// SystemPrompt returns the fixed instruction placed first in every request.
func (s *Service) SystemPrompt() string {
	return s.prompts.BuildSystemPrompt(s.Persona())
}

// Stream opens one streaming completion for the assembled messages.
func (s *Service) Stream(ctx context.Context, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	stream, err := s.chatModel.Stream(ctx, messages, s.options()...)
	if err != nil {
		return nil, fmt.Errorf("failed to stream completion: %w", err)
	}
	return stream, nil
}

func (s *Service) options() []model.Option {
	p := s.Persona()

	var opts []model.Option
	if p.Model != "" {
		opts = append(opts, model.WithModel(p.Model))
	}
	if p.Temperature != 0 {
		opts = append(opts, model.WithTemperature(p.Temperature))
	}
	if p.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(p.MaxTokens))
	}
	return opts
}

// ConfiguredPersona applies the provider configuration to a base persona so
// environment settings take effect; a persona file may still override them.
func ConfiguredPersona(base persona.Persona, cfg config.AIConfig) persona.Persona {
	base.Model = cfg.ModelName()
	base.Temperature = cfg.Temperature
	base.MaxTokens = cfg.MaxTokens
	return base
}
