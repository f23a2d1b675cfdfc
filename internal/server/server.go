package server

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pires/go-proxyproto"
	"golang.org/x/net/netutil"

	"example.com/microhttpd/internal/config"
	"example.com/microhttpd/internal/logger"
	"example.com/microhttpd/internal/metrics"
	"example.com/microhttpd/internal/util"
)

const (
	// maxRequestLine bounds the request line and each header line.
	maxRequestLine = 8192
	// headerReadTimeout bounds how long a client may take to send the
	// request head.
	headerReadTimeout = 30 * time.Second
	// writeBufferSize is the size of the per-connection output buffer the
	// transfer engine's queued-byte counter observes.
	writeBufferSize = 4096
)

// Server accepts connections, parses one request per connection, and hands
// it to the injected router. The serving core never touches the network;
// everything it sees goes through Request and ResponseWriter.
type Server struct {
	cfg    *config.Config
	log    *logger.Logger
	router RouterInterface

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, lg *logger.Logger, router RouterInterface) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if lg == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if router == nil {
		return nil, fmt.Errorf("router cannot be nil")
	}
	return &Server{cfg: cfg, log: lg, router: router}, nil
}

// Start listens and serves until Shutdown is called. It blocks.
func (s *Server) Start() error {
	l, err := util.CreateListener("tcp", s.cfg.Server.Address)
	if err != nil {
		return err
	}
	if n := s.cfg.Server.MaxConnections; n > 0 {
		l = netutil.LimitListener(l, n)
	}
	if s.cfg.Server.ProxyProtocol {
		l = &proxyproto.Listener{Listener: l}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.Close()
		return fmt.Errorf("server already shut down")
	}
	s.listener = l
	s.mu.Unlock()

	s.log.Info("Listening", logger.LogFields{"address": s.cfg.Server.Address})

	for {
		conn, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				s.wg.Wait()
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		metrics.ConnectionsTotal.Inc()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closed = true
	l := s.listener
	s.mu.Unlock()
	if l != nil {
		l.Close()
	}
	s.wg.Wait()
}

// serveConn handles a single connection: one request, one response, close.
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(headerReadTimeout))
	br := bufio.NewReaderSize(conn, maxRequestLine)
	bw := bufio.NewWriterSize(conn, writeBufferSize)
	rw := newResponseWriter(bw)

	start := time.Now()
	req, err := readRequest(br, conn.RemoteAddr().String())
	if err != nil {
		s.log.Debug("Rejecting malformed request", logger.LogFields{
			"remote_addr": conn.RemoteAddr().String(),
			"error":       err.Error(),
		})
		SendDefaultErrorResponse(rw, http.StatusBadRequest, nil, "", s.log)
		bw.Flush()
		return
	}
	conn.SetReadDeadline(time.Time{})

	s.router.HandleRequest(rw, req)

	// Drive any attached body transfer: flush the queued bytes, then let the
	// transfer enqueue more, until it reports completion or the client goes
	// away. The transfer's file handle is released exactly once regardless
	// of which exit is taken.
	if t := rw.transfer; t != nil {
		defer t.Close()
		for {
			if err := bw.Flush(); err != nil {
				s.log.Debug("Client disconnected mid-transfer", logger.LogFields{
					"remote_addr": req.RemoteAddr,
					"url":         req.URL,
					"error":       err.Error(),
				})
				break
			}
			if !t.OnWritable(rw) {
				break
			}
		}
	}
	bw.Flush()

	// A handler that never sent a response head leaves no status to report.
	statusLabel := "none"
	if rw.headersSent {
		statusLabel = strconv.Itoa(rw.status)
	}
	metrics.RequestsTotal.WithLabelValues(statusLabel).Inc()
	s.log.Access(req.RemoteAddr, req.Method, req.URL, rw.status, rw.bodyBytes, time.Since(start))
}

// readRequest parses the request line and header block of one HTTP/1.x
// request. The body, if any, is left unread; this server serves content and
// ignores request bodies.
func readRequest(br *bufio.Reader, remoteAddr string) (*Request, error) {
	tp := textproto.NewReader(br)

	line, err := tp.ReadLine()
	if err != nil {
		return nil, fmt.Errorf("failed to read request line: %w", err)
	}
	if len(line) > maxRequestLine {
		return nil, fmt.Errorf("request line too long (%d bytes)", len(line))
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed request line %q", line)
	}
	method, target, proto := parts[0], parts[1], parts[2]
	if method == "" || strings.ToUpper(method) != method {
		return nil, fmt.Errorf("malformed method %q", method)
	}
	if !strings.HasPrefix(target, "/") {
		return nil, fmt.Errorf("unsupported request target %q", target)
	}
	if proto != "HTTP/1.1" && proto != "HTTP/1.0" {
		return nil, fmt.Errorf("unsupported protocol %q", proto)
	}

	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, fmt.Errorf("failed to read header block: %w", err)
	}

	return &Request{
		Method:     method,
		URL:        target,
		Header:     http.Header(mimeHeader),
		RemoteAddr: remoteAddr,
	}, nil
}

// responseWriter writes an HTTP/1.1 response head and body into a buffered
// writer. Buffered exposes the queue depth the transfer engine polls for
// backpressure.
type responseWriter struct {
	bw          *bufio.Writer
	status      int
	headersSent bool
	ended       bool
	bodyBytes   int64
	transfer    Transfer
}

func newResponseWriter(bw *bufio.Writer) *responseWriter {
	return &responseWriter{bw: bw}
}

func (w *responseWriter) SendHeaders(status int, headers []HeaderField, endStream bool) error {
	if w.headersSent {
		return fmt.Errorf("headers already sent")
	}
	reason := http.StatusText(status)
	if reason == "" {
		reason = "Status"
	}
	if _, err := fmt.Fprintf(w.bw, "HTTP/1.1 %d %s\r\n", status, reason); err != nil {
		return err
	}
	for _, hf := range headers {
		if _, err := fmt.Fprintf(w.bw, "%s: %s\r\n", hf.Name, hf.Value); err != nil {
			return err
		}
	}
	if _, err := w.bw.WriteString("Connection: close\r\n\r\n"); err != nil {
		return err
	}
	w.status = status
	w.headersSent = true
	w.ended = endStream
	return nil
}

func (w *responseWriter) WriteData(p []byte, endStream bool) (int, error) {
	if !w.headersSent {
		return 0, fmt.Errorf("WriteData called before SendHeaders")
	}
	if w.ended {
		return 0, fmt.Errorf("WriteData called after response end")
	}
	n, err := w.bw.Write(p)
	w.bodyBytes += int64(n)
	if err != nil {
		return n, err
	}
	w.ended = endStream
	return n, nil
}

func (w *responseWriter) Buffered() int {
	return w.bw.Buffered()
}

func (w *responseWriter) StartTransfer(t Transfer) {
	w.transfer = t
}
