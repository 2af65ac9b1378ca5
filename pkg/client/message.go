package client

import "time"

// FallbackErrorText replaces the assistant message when a turn fails.
const FallbackErrorText = "Sorry, I encountered an error. Please try again."

// Role of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry as the client renders it.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Streaming bool      `json:"isStreaming,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RenderFunc receives the full current state of a message on every change.
// Calls replace earlier state, so rendering the same value twice is harmless.
type RenderFunc func(Message)
