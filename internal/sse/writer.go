package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("sse: streaming unsupported by response writer")

// Writer emits server-sent-event frames over an HTTP response, flushing
// after every frame so clients observe events as they are produced.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w for a text/event-stream response and writes the
// stream headers. It fails before any body bytes are written, so callers
// may still fall back to a plain error response.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// Send writes one frame: "event: <name>\ndata: <json>\n\n".
func (sw *Writer) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse.Writer.Send: marshal: %w", err)
	}

	_, err = fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", event, payload)
	if err != nil {
		return fmt.Errorf("sse.Writer.Send: write: %w", err)
	}
	sw.flusher.Flush()

	return nil
}
