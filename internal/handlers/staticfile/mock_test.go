package staticfile

import (
	"bytes"
	"fmt"
	"testing"

	"example.com/microhttpd/internal/server"
)

// mockResponseWriter is a test implementation of server.ResponseWriter. It
// records the response head and body, and models the output channel's queue
// depth: WriteData grows it, flush drains it.
type mockResponseWriter struct {
	t *testing.T

	status      int
	headers     []server.HeaderField
	body        *bytes.Buffer
	headersSent bool
	ended       bool
	transfer    server.Transfer

	queued    int
	failWrite bool
}

func newMockResponseWriter(t *testing.T) *mockResponseWriter {
	t.Helper()
	return &mockResponseWriter{t: t, body: new(bytes.Buffer)}
}

func (m *mockResponseWriter) SendHeaders(status int, headers []server.HeaderField, endStream bool) error {
	if m.headersSent {
		m.t.Errorf("SendHeaders called more than once")
		return fmt.Errorf("headers already sent")
	}
	m.status = status
	m.headers = make([]server.HeaderField, len(headers))
	copy(m.headers, headers)
	m.headersSent = true
	m.ended = endStream
	return nil
}

func (m *mockResponseWriter) WriteData(p []byte, endStream bool) (int, error) {
	if !m.headersSent {
		m.t.Errorf("WriteData called before SendHeaders")
		return 0, fmt.Errorf("headers not sent yet")
	}
	if m.ended {
		m.t.Errorf("WriteData called after response end")
		return 0, fmt.Errorf("response already ended")
	}
	if m.failWrite {
		return 0, fmt.Errorf("simulated write failure")
	}
	n, err := m.body.Write(p)
	m.queued += n
	m.ended = endStream
	return n, err
}

func (m *mockResponseWriter) Buffered() int { return m.queued }

func (m *mockResponseWriter) StartTransfer(t server.Transfer) { m.transfer = t }

// flush models the connection loop draining the output channel.
func (m *mockResponseWriter) flush() { m.queued = 0 }

func (m *mockResponseWriter) header(name string) string {
	for _, h := range m.headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}
