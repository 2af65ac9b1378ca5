package frame

import "bytes"

// Record is the raw text of one delimited record, without its terminator.
type Record string

// Decoder splits an arbitrarily chunked byte stream into records. Bytes after
// the last delimiter are held back until a later Feed completes them, so a
// record split across reads is never parsed partially.
type Decoder struct {
	buf []byte
}

// NewDecoder returns an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk and returns the records it completed, in stream order.
func (d *Decoder) Feed(chunk []byte) []Record {
	for _, b := range chunk {
		// Raw carriage returns never appear inside JSON strings, so dropping
		// them turns CRLF streams into LF streams without touching payloads.
		if b == '\r' {
			continue
		}
		d.buf = append(d.buf, b)
	}

	var records []Record
	for {
		idx := bytes.Index(d.buf, []byte(Delimiter))
		if idx < 0 {
			break
		}
		raw := d.buf[:idx]
		d.buf = d.buf[idx+len(Delimiter):]
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		records = append(records, Record(raw))
	}

	if len(d.buf) == 0 {
		d.buf = nil
	}
	return records
}

// Pending reports how many bytes are buffered waiting for a delimiter.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// Flush discards an unterminated trailing record at end of stream and reports
// how many bytes were dropped. A partial record is never parsed.
func (d *Decoder) Flush() int {
	dropped := len(d.buf)
	d.buf = nil
	return dropped
}
