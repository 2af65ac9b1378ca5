package client

import (
	"errors"
	"fmt"
	"io"

	"github.com/zhouzirui/friday/backend/pkg/frame"
)

// ErrStreamIncomplete is returned when the stream ends before the sentinel.
var ErrStreamIncomplete = errors.New("stream ended before completion")

// StreamError carries an in-band error frame sent by the server.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("server reported stream error: %s", e.Message)
}

// Consumer reduces stream frames into a single assistant message.
type Consumer struct {
	render RenderFunc
}

// NewConsumer creates a consumer. render may be nil.
func NewConsumer(render RenderFunc) *Consumer {
	if render == nil {
		render = func(Message) {}
	}
	return &Consumer{render: render}
}

// ReadStream consumes an event stream body. It returns nil once the sentinel
// arrives; anything after it is left unread.
func (c *Consumer) ReadStream(r io.Reader, msg *Message) error {
	dec := frame.NewDecoder()
	buf := make([]byte, 4096)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, rec := range dec.Feed(buf[:n]) {
				f, perr := frame.Parse(rec)
				if perr != nil {
					continue
				}
				done, ferr := c.apply(msg, f)
				if ferr != nil {
					return ferr
				}
				if done {
					return nil
				}
			}
		}
		if errors.Is(err, io.EOF) {
			dec.Flush()
			return ErrStreamIncomplete
		}
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
	}
}

// ReadPayloads consumes frames delivered one payload per call of next, as
// WebSocket text messages are. next returns io.EOF when the transport closed.
func (c *Consumer) ReadPayloads(next func() ([]byte, error), msg *Message) error {
	for {
		payload, err := next()
		if errors.Is(err, io.EOF) {
			return ErrStreamIncomplete
		}
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		f, perr := frame.ParsePayload(payload)
		if perr != nil {
			continue
		}
		done, ferr := c.apply(msg, f)
		if ferr != nil {
			return ferr
		}
		if done {
			return nil
		}
	}
}

// Fail moves msg to the error end state.
func (c *Consumer) Fail(msg *Message) {
	msg.Content = FallbackErrorText
	msg.Streaming = false
	c.render(*msg)
}

func (c *Consumer) apply(msg *Message, f frame.Frame) (bool, error) {
	switch {
	case f.Done:
		msg.Streaming = false
		c.render(*msg)
		return true, nil
	case f.Error != "":
		return false, &StreamError{Message: f.Error}
	case f.Content != "":
		msg.Content += f.Content
		c.render(*msg)
	}
	return false, nil
}
