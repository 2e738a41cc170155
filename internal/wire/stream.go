package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vanshika/supplytrace/internal/domain"
)

const maxLineBytes = 1 << 20

// Entry is one line of a transaction stream: who submits it and what.
type Entry struct {
	Credential domain.Ref      `json:"credential"`
	Payload    json.RawMessage `json:"payload"`
}

// StreamReader reads JSON-lines transaction streams. Blank lines are skipped.
type StreamReader struct {
	scanner *bufio.Scanner
	line    int
}

// NewStreamReader wraps r.
func NewStreamReader(r io.Reader) *StreamReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &StreamReader{scanner: scanner}
}

// Next returns the next entry or io.EOF once the stream is drained.
func (s *StreamReader) Next() (Entry, error) {
	for s.scanner.Scan() {
		s.line++
		raw := s.scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return Entry{}, fmt.Errorf("line %d: %w", s.line, err)
		}
		if entry.Credential.IsZero() {
			return Entry{}, fmt.Errorf("line %d: %w", s.line, &domain.ValidationError{Field: "credential", Reason: "is required"})
		}
		if len(entry.Payload) == 0 {
			return Entry{}, fmt.Errorf("line %d: %w", s.line, &domain.ValidationError{Field: "payload", Reason: "is required"})
		}
		return entry, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Entry{}, fmt.Errorf("read stream: %w", err)
	}
	return Entry{}, io.EOF
}

// Line reports the line number of the entry last returned.
func (s *StreamReader) Line() int { return s.line }

// ReadAll drains r into memory.
func ReadAll(r io.Reader) ([]Entry, error) {
	reader := NewStreamReader(r)
	var entries []Entry
	for {
		entry, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
}

// StreamWriter appends entries as JSON lines.
type StreamWriter struct {
	enc *json.Encoder
}

func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{enc: json.NewEncoder(w)}
}

// Write encodes p under credential as one line.
func (s *StreamWriter) Write(credential domain.Ref, p Payload) error {
	body, err := EncodePayload(p)
	if err != nil {
		return err
	}
	return s.enc.Encode(Entry{Credential: credential, Payload: body})
}
