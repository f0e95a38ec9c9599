package sse

import (
	"fmt"
	"io"
	"strings"
)

// Event names written on the "event:" line.
const (
	EventConnected = "connected"
	EventRegistry  = "registry"
)

// Frame is one server-sent event.
type Frame struct {
	Event string
	Data  []byte
}

// WriteTo writes f in the text/event-stream format. Multi-line data is split
// across several "data:" lines.
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	if f.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", f.Event)
	}
	for _, line := range strings.Split(string(f.Data), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
