package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/friday/backend/internal/model/persona"
)

// PromptManager turns a persona into the fixed system instruction that leads
// every provider request.
type PromptManager struct{}

// NewPromptManager creates a prompt manager.
func NewPromptManager() *PromptManager {
	return &PromptManager{}
}

// BuildSystemPrompt returns the persona's own system prompt when it has one,
// otherwise a prompt composed from its descriptive fields.
func (pm *PromptManager) BuildSystemPrompt(p persona.Persona) string {
	if prompt := strings.TrimSpace(p.SystemPrompt); prompt != "" {
		return prompt
	}
	return pm.buildBasicSystemPrompt(p)
}

func (pm *PromptManager) buildBasicSystemPrompt(p persona.Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s", p.Name)
	if p.Title != "" {
		fmt.Fprintf(&b, ", %s", p.Title)
	}
	b.WriteString(".")

	if p.Tone != "" {
		fmt.Fprintf(&b, "\n\nYour tone is %s.", p.Tone)
	}
	if len(p.Traits) > 0 {
		fmt.Fprintf(&b, "\n\nTraits:\n- %s", strings.Join(p.Traits, "\n- "))
	}
	if len(p.Capabilities) > 0 {
		fmt.Fprintf(&b, "\n\nCurrent capabilities:\n- %s", strings.Join(p.Capabilities, "\n- "))
	}

	b.WriteString("\n\nKeep responses concise but informative.")
	return b.String()
}
