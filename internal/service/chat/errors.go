package chat

import "fmt"

// Persistence stages reported by PersistenceError.
const (
	StageLoadHistory  = "load_history"
	StageSaveUserTurn = "save_user_turn"
	StageSaveReply    = "save_reply"
)

// ValidationError reports malformed request input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ProviderTransportError reports a failure opening or reading the provider stream.
type ProviderTransportError struct {
	Err error
}

func (e *ProviderTransportError) Error() string {
	return fmt.Sprintf("provider transport: %v", e.Err)
}

func (e *ProviderTransportError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a history store failure at a given stage.
type PersistenceError struct {
	Stage string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence (%s): %v", e.Stage, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
