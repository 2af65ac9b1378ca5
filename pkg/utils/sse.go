package utils

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	errTrailingData = errors.New("unexpected data after JSON body")

	// ErrStreamingUnsupported is returned when the response cannot be flushed.
	ErrStreamingUnsupported = errors.New("streaming unsupported")
)

// SetupSSEHeaders 设置Server-Sent Events响应头
func SetupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteSSERecord 写入一条完整的SSE记录并立即刷新
func WriteSSERecord(w http.ResponseWriter, flusher http.Flusher, record []byte) error {
	if _, err := w.Write(record); err != nil {
		return fmt.Errorf("write sse record: %w", err)
	}
	flusher.Flush()
	return nil
}
