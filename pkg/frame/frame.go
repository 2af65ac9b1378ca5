// Package frame implements the line-delimited event-stream records exchanged
// between the chat relay and its consumers.
//
// A record is one or more lines terminated by a blank line. The relay only
// emits single-line data records:
//
//	data: {"content":"Hel"}
//
//	data: [DONE]
package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// DataPrefix marks a data line inside a record.
	DataPrefix = "data: "
	// DoneMarker is the payload of the terminal sentinel record.
	DoneMarker = "[DONE]"
	// Delimiter terminates a record.
	Delimiter = "\n\n"
)

// ErrMalformedFrame is returned for records that carry no data line or whose
// payload is not valid JSON. Consumers drop such records and keep reading.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is a decoded record: incremental content, an in-band error, or the
// terminal sentinel.
type Frame struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Done    bool   `json:"-"`
}

// Content builds a content frame.
func Content(content string) Frame { return Frame{Content: content} }

// Failure builds an in-band error frame.
func Failure(message string) Frame { return Frame{Error: message} }

// Sentinel builds the terminal frame.
func Sentinel() Frame { return Frame{Done: true} }

// Payload renders the frame body without the data prefix. WebSocket
// transports send it as one text message.
func Payload(f Frame) ([]byte, error) {
	if f.Done {
		return []byte(DoneMarker), nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}
	return data, nil
}

// Encode renders the frame as a complete delimited record.
func Encode(f Frame) ([]byte, error) {
	payload, err := Payload(f)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(DataPrefix)+len(payload)+len(Delimiter))
	out = append(out, DataPrefix...)
	out = append(out, payload...)
	out = append(out, Delimiter...)
	return out, nil
}

// ParsePayload decodes a record body (prefix already stripped).
func ParsePayload(payload []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(payload)
	if string(trimmed) == DoneMarker {
		return Sentinel(), nil
	}

	var f Frame
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return f, nil
}

// Parse decodes one delimited record. Non-data lines (event:, id:, comments)
// are ignored; multiple data lines are joined with a newline.
func Parse(rec Record) (Frame, error) {
	var (
		data  [][]byte
		found bool
	)
	for _, line := range bytes.Split([]byte(rec), []byte("\n")) {
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		value := bytes.TrimPrefix(line, []byte("data:"))
		value = bytes.TrimPrefix(value, []byte(" "))
		data = append(data, value)
		found = true
	}
	if !found {
		return Frame{}, fmt.Errorf("%w: no data line", ErrMalformedFrame)
	}
	return ParsePayload(bytes.Join(data, []byte("\n")))
}
