package aeris

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteSSEEvent serializes ev in the SSE wire format described in
// spec.md §6 and writes it to w, terminated by a blank line.
func WriteSSEEvent(w io.Writer, ev *SSEEvent) error {
	var b strings.Builder

	if ev.Comment != "" {
		for _, line := range strings.Split(ev.Comment, "\n") {
			b.WriteString(": ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	if ev.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", sanitizeSSEField(ev.ID))
	}

	if ev.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", sanitizeSSEField(ev.Event))
	}

	for _, line := range strings.Split(ev.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}

	if ev.Retry > 0 {
		b.WriteString("retry: ")
		b.WriteString(strconv.Itoa(ev.Retry))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

// sanitizeSSEField strips newlines from single-line SSE fields (id,
// event) since the wire format has no escaping for them.
func sanitizeSSEField(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
