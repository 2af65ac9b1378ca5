package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTurnInFlight is returned when a send starts while another is streaming.
	ErrTurnInFlight = errors.New("a reply is still streaming")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
)

// Conversation keeps a transcript and allows one in-flight turn at a time.
type Conversation struct {
	client    *Client
	userID    string
	sessionID string
	now       func() time.Time

	mu         sync.Mutex
	inFlight   bool
	transcript []Message
}

// NewConversation starts an empty conversation. userID may be empty for
// anonymous use.
func NewConversation(c *Client, userID string) *Conversation {
	return &Conversation{
		client:    c,
		userID:    userID,
		sessionID: uuid.NewString(),
		now:       time.Now,
	}
}

// Load seeds the transcript, e.g. with history fetched after sign-in.
func (c *Conversation) Load(messages []Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = append([]Message(nil), messages...)
}

// Transcript returns a copy of the messages so far.
func (c *Conversation) Transcript() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.transcript...)
}

// Send streams one turn over the event-stream endpoint.
func (c *Conversation) Send(ctx context.Context, text string, render RenderFunc) (Message, error) {
	return c.send(ctx, text, render, func(ctx context.Context, req ChatRequest, consumer *Consumer, msg *Message) error {
		body, err := c.client.OpenStream(ctx, req)
		if err != nil {
			return err
		}
		defer body.Close()
		return consumer.ReadStream(body, msg)
	})
}

// SendWS streams one turn over the WebSocket endpoint.
func (c *Conversation) SendWS(ctx context.Context, text string, render RenderFunc) (Message, error) {
	return c.send(ctx, text, render, func(ctx context.Context, req ChatRequest, consumer *Consumer, msg *Message) error {
		conn, err := c.client.OpenWS(ctx, req)
		if err != nil {
			return err
		}
		defer conn.Close()

		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()
		return consumer.ReadPayloads(wsNext(conn), msg)
	})
}

type transport func(ctx context.Context, req ChatRequest, consumer *Consumer, msg *Message) error

func (c *Conversation) send(ctx context.Context, text string, render RenderFunc, open transport) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return Message{}, ErrTurnInFlight
	}
	c.inFlight = true
	c.transcript = append(c.transcript, Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   text,
		Timestamp: c.now(),
	})
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	consumer := NewConsumer(render)
	reply := Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Streaming: true,
		Timestamp: c.now(),
	}
	consumer.render(reply)

	err := open(ctx, ChatRequest{Message: text, UserID: c.userID, SessionID: c.sessionID}, consumer, &reply)
	if err != nil {
		consumer.Fail(&reply)
	}

	c.mu.Lock()
	c.transcript = append(c.transcript, reply)
	c.mu.Unlock()
	return reply, err
}
