package sse

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Frame is one decoded server-sent event: a type name and its raw data
// payload. Data is kept as text; callers decide how (and whether) to parse
// it as JSON.
type Frame struct {
	Event string
	Data  string
}

// Decoder incrementally parses an event stream: bytes are buffered and
// split on blank-line frame boundaries, then each frame's "event:" and
// "data:" fields are extracted. Unknown field names are ignored, matching
// the text/event-stream convention.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder wraps an inbound event-stream body.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next complete frame, or io.EOF when the stream ends.
// A frame with neither an event name nor data (for example a lone comment
// or keep-alive) is skipped rather than surfaced.
func (d *Decoder) Next() (*Frame, error) {
	for {
		frame, err := d.readFrame()
		if err != nil {
			return nil, err
		}
		if frame.Event == "" && frame.Data == "" {
			continue
		}
		return frame, nil
	}
}

func (d *Decoder) readFrame() (*Frame, error) {
	var (
		frame    Frame
		data     []string
		sawField bool
	)

	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			// A final unterminated frame still counts if it carried fields.
			if err == io.EOF && sawField {
				applyLine(&frame, &data, line, &sawField)
				frame.Data = strings.Join(data, "\n")
				return &frame, nil
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("sse.Decoder: read: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if !sawField {
				continue
			}
			frame.Data = strings.Join(data, "\n")
			return &frame, nil
		}

		applyLine(&frame, &data, line, &sawField)
	}
}

func applyLine(frame *Frame, data *[]string, line string, sawField *bool) {
	name, value, found := strings.Cut(line, ":")
	if !found {
		return
	}
	value = strings.TrimPrefix(value, " ")

	switch name {
	case "event":
		frame.Event = value
		*sawField = true
	case "data":
		*data = append(*data, value)
		*sawField = true
	}
}
