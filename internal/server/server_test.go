package server

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/microhttpd/internal/config"
	"example.com/microhttpd/internal/logger"
	"example.com/microhttpd/internal/metrics"
)

type routerFunc func(rw ResponseWriter, req *Request)

func (f routerFunc) HandleRequest(rw ResponseWriter, req *Request) { f(rw, req) }

// serveOneRequest runs a raw request through serveConn over an in-memory
// connection and returns the bytes written back.
func serveOneRequest(t *testing.T, raw string, handle routerFunc) string {
	t.Helper()
	srv, err := NewServer(&config.Config{Server: &config.ServerConfig{}}, logger.NewDiscardLogger(), handle)
	require.NoError(t, err)

	client, conn := net.Pipe()
	done := make(chan string, 1)
	go func() {
		client.Write([]byte(raw))
		out, _ := io.ReadAll(client)
		client.Close()
		done <- string(out)
	}()
	srv.serveConn(conn)
	return <-done
}

func parseRequest(t *testing.T, raw string) (*Request, error) {
	t.Helper()
	return readRequest(bufio.NewReader(strings.NewReader(raw)), "192.0.2.1:1234")
}

func TestReadRequest(t *testing.T) {
	req, err := parseRequest(t, "GET /index.html?q=1 HTTP/1.1\r\nHost: example.com\r\nAccept: text/html\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/index.html?q=1", req.URL)
	assert.Equal(t, "example.com", req.Header.Get("Host"))
	assert.Equal(t, "text/html", req.Header.Get("Accept"))
	assert.Equal(t, "192.0.2.1:1234", req.RemoteAddr)
}

func TestReadRequestHTTP10(t *testing.T) {
	req, err := parseRequest(t, "HEAD / HTTP/1.0\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "HEAD", req.Method)
}

func TestReadRequestMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty line", "\r\n\r\n"},
		{"missing protocol", "GET /\r\n\r\n"},
		{"lowercase method", "get / HTTP/1.1\r\n\r\n"},
		{"relative target", "GET index.html HTTP/1.1\r\n\r\n"},
		{"absolute-form target", "GET http://example.com/ HTTP/1.1\r\n\r\n"},
		{"bad protocol", "GET / HTTP/2.0\r\n\r\n"},
		{"truncated header block", "GET / HTTP/1.1\r\nHost: example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseRequest(t, tc.raw)
			assert.Error(t, err)
		})
	}
}

func TestServeConnCountsResponseStatus(t *testing.T) {
	before := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("204"))
	out := serveOneRequest(t, "GET /ping HTTP/1.1\r\n\r\n", func(rw ResponseWriter, req *Request) {
		rw.SendHeaders(204, nil, true)
	})
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 204 No Content\r\n"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("204")))
}

func TestServeConnCountsSilentHandler(t *testing.T) {
	// A handler that never sends a response head must not mint a "0" status
	// label.
	before := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("none"))
	out := serveOneRequest(t, "GET /void HTTP/1.1\r\n\r\n", func(rw ResponseWriter, req *Request) {})
	assert.Empty(t, out)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("none")))
	assert.Zero(t, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("0")))
}

func TestResponseWriterHead(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	rw := newResponseWriter(bw)

	err := rw.SendHeaders(200, []HeaderField{
		{Name: "Content-Type", Value: "text/plain"},
		{Name: "Content-Length", Value: "2"},
	}, false)
	require.NoError(t, err)
	_, err = rw.WriteData([]byte("hi"), true)
	require.NoError(t, err)
	require.NoError(t, bw.Flush())

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, out, "Content-Type: text/plain\r\n")
	assert.Contains(t, out, "Connection: close\r\n\r\n")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\nhi"))
	assert.Equal(t, int64(2), rw.bodyBytes)
}

func TestResponseWriterRejectsDoubleHeaders(t *testing.T) {
	rw := newResponseWriter(bufio.NewWriter(&bytes.Buffer{}))
	require.NoError(t, rw.SendHeaders(200, nil, false))
	assert.Error(t, rw.SendHeaders(200, nil, false))
}

func TestResponseWriterRejectsBodyBeforeHeaders(t *testing.T) {
	rw := newResponseWriter(bufio.NewWriter(&bytes.Buffer{}))
	_, err := rw.WriteData([]byte("x"), false)
	assert.Error(t, err)
}

func TestResponseWriterRejectsBodyAfterEnd(t *testing.T) {
	rw := newResponseWriter(bufio.NewWriter(&bytes.Buffer{}))
	require.NoError(t, rw.SendHeaders(200, nil, false))
	_, err := rw.WriteData([]byte("x"), true)
	require.NoError(t, err)
	_, err = rw.WriteData([]byte("y"), false)
	assert.Error(t, err)
}

func TestResponseWriterBuffered(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriterSize(&buf, 4096)
	rw := newResponseWriter(bw)

	require.NoError(t, rw.SendHeaders(200, nil, false))
	before := rw.Buffered()
	_, err := rw.WriteData(make([]byte, 100), false)
	require.NoError(t, err)
	assert.Equal(t, before+100, rw.Buffered())

	require.NoError(t, bw.Flush())
	assert.Zero(t, rw.Buffered())
}
