package httpapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/surya-d-naidu/HealthCareBot/conversation"
)

// sseWriter writes server-sent events. Headers go out with the first event,
// so a request that fails early can still be answered with plain JSON.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming unsupported by response writer")
	}
	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) Started() bool {
	return s.started
}

// Data sends one unnamed event carrying a text chunk.
func (s *sseWriter) Data(text string) error {
	return s.Event("", text)
}

func (s *sseWriter) Event(name, data string) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	var b strings.Builder
	if name != "" {
		b.WriteString("event: " + name + "\n")
	}
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")

	if _, err := io.WriteString(s.w, b.String()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// StreamResult is a streamed reply put back together by ReadStream.
type StreamResult struct {
	Chunks []string
	// Result is the chunks folded the same way the server folds them.
	Result string
	Meta   *ChatResponse
	// Error holds the apology sent in an error event.
	Error string
}

// ReadStream consumes a chat stream until the server closes it.
func ReadStream(r io.Reader, onChunk func(string)) (*StreamResult, error) {
	res := &StreamResult{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxBodyBytes)

	var (
		event string
		data  []string
	)
	dispatch := func() error {
		defer func() { event, data = "", nil }()
		if data == nil {
			return nil
		}
		payload := strings.Join(data, "\n")
		switch event {
		case "", "message":
			res.Chunks = append(res.Chunks, payload)
			if onChunk != nil {
				onChunk(payload)
			}
		case "meta":
			var meta ChatResponse
			if err := json.Unmarshal([]byte(payload), &meta); err != nil {
				return fmt.Errorf("could not decode stream metadata: %w", err)
			}
			res.Meta = &meta
		case "error":
			res.Error = payload
		}
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, ":"):
			// comment
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				event = value
			case "data":
				data = append(data, value)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := dispatch(); err != nil {
		return nil, err
	}

	res.Result = conversation.Fold(res.Chunks)
	return res, nil
}
