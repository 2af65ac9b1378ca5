package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	chatmodel "github.com/zhouzirui/friday/backend/internal/model/chat"
)

// StreamFailureMessage is the in-band error text sent when the provider
// stream breaks after streaming started.
const StreamFailureMessage = "Internal server error"

// FrameWriter delivers relay output to one client connection. Each call must
// reach the client before it returns.
type FrameWriter interface {
	WriteContent(content string) error
	WriteError(message string) error
	WriteDone() error
}

// Relay opens one provider stream for the turn and forwards every fragment as
// it arrives. On natural end the reply is persisted and the sentinel written.
func (s *Service) Relay(ctx context.Context, turn *Turn, w FrameWriter) error {
	stream, err := s.completer.Stream(ctx, turn.Messages)
	if err != nil {
		log.Printf("[relay] open stream failed: %v", err)
		return &ProviderTransportError{Err: err}
	}
	defer stream.Close()

	var reply strings.Builder
	fragments := 0
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				log.Printf("[relay] client went away after %d fragments", fragments)
				return ctxErr
			}
			log.Printf("[relay] stream failed after %d fragments: %v", fragments, err)
			if werr := w.WriteError(StreamFailureMessage); werr != nil {
				log.Printf("[relay] write error frame: %v", werr)
			}
			return &ProviderTransportError{Err: err}
		}
		if msg == nil || msg.Content == "" {
			continue
		}

		if err := w.WriteContent(msg.Content); err != nil {
			log.Printf("[relay] client write failed after %d fragments: %v", fragments, err)
			return fmt.Errorf("write content frame: %w", err)
		}
		reply.WriteString(msg.Content)
		fragments++
	}

	s.persistReply(ctx, turn, reply.String())

	if err := w.WriteDone(); err != nil {
		return fmt.Errorf("write sentinel: %w", err)
	}
	log.Printf("[relay] completed user=%q fragments=%d chars=%d", turn.UserID, fragments, reply.Len())
	return nil
}

// persistReply stores the assistant turn. Failures are logged only; the
// client already holds the full reply.
func (s *Service) persistReply(ctx context.Context, turn *Turn, reply string) {
	if turn.UserID == "" || reply == "" {
		return
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	_, err := s.history.Append(saveCtx, chatmodel.Turn{
		UserID:    turn.UserID,
		SessionID: turn.SessionID,
		Role:      chatmodel.RoleAssistant,
		Content:   reply,
	})
	if err != nil {
		perr := &PersistenceError{Stage: StageSaveReply, Err: err}
		log.Printf("[relay] %v", perr)
	}
}
