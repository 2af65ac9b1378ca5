// Package stream adapts relay output to client transports.
package stream

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/friday/backend/pkg/frame"
	"github.com/zhouzirui/friday/backend/pkg/utils"
)

// SSEWriter writes frames as Server-Sent Events records. Headers are sent with
// the first frame so callers can still answer with a JSON error before that.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewSSEWriter wraps w, which must support flushing.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, utils.ErrStreamingUnsupported
	}
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Started reports whether the response status and headers were committed.
func (s *SSEWriter) Started() bool {
	return s.started
}

func (s *SSEWriter) WriteContent(content string) error { return s.write(frame.Content(content)) }
func (s *SSEWriter) WriteError(message string) error   { return s.write(frame.Failure(message)) }
func (s *SSEWriter) WriteDone() error                  { return s.write(frame.Sentinel()) }

func (s *SSEWriter) write(f frame.Frame) error {
	record, err := frame.Encode(f)
	if err != nil {
		return err
	}
	if !s.started {
		utils.SetupSSEHeaders(s.w)
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	return utils.WriteSSERecord(s.w, s.flusher, record)
}

// WSWriter writes frames as WebSocket text messages, one payload per message.
type WSWriter struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
	written      int
}

// NewWSWriter wraps an upgraded connection.
func NewWSWriter(conn *websocket.Conn, writeTimeout time.Duration) *WSWriter {
	return &WSWriter{conn: conn, writeTimeout: writeTimeout}
}

// Started reports whether any frame reached the connection.
func (s *WSWriter) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written > 0
}

func (s *WSWriter) WriteContent(content string) error { return s.write(frame.Content(content)) }
func (s *WSWriter) WriteError(message string) error   { return s.write(frame.Failure(message)) }
func (s *WSWriter) WriteDone() error                  { return s.write(frame.Sentinel()) }

func (s *WSWriter) write(f frame.Frame) error {
	payload, err := frame.Payload(f)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	s.written++
	return nil
}
