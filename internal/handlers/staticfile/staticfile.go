package staticfile

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"example.com/microhttpd/internal/config"
	"example.com/microhttpd/internal/logger"
	"example.com/microhttpd/internal/metrics"
	"example.com/microhttpd/internal/server"
)

// Handler is the default static-content responder: it serves regular files
// and directory listings for paths already resolved inside the document
// root. It runs after every dispatch handler has declined the request.
type Handler struct {
	cfg *config.FilesConfig
	log *logger.Logger
}

// New creates the static file handler.
func New(cfg *config.FilesConfig, lg *logger.Logger) *Handler {
	if lg == nil {
		lg = logger.NewDiscardLogger()
	}
	return &Handler{cfg: cfg, log: lg}
}

// Serve responds to a request for the resolved entry.
func (h *Handler) Serve(rw server.ResponseWriter, req *server.Request, pi *ResolvedPath) {
	// Trailing path segments are only meaningful to dispatch handlers; the
	// default responder treats them as a miss.
	if pi.PathInfo != "" {
		server.SendDefaultErrorResponse(rw, http.StatusNotFound, req, "", h.log)
		return
	}

	if pi.Stat.Mode().Perm()&0o004 == 0 {
		h.forbidden(rw, req, pi)
		return
	}

	switch {
	case pi.Stat.Mode().IsRegular():
		h.serveFile(rw, req, pi)
	case pi.Stat.IsDir():
		if h.cfg.DirectoryListing == nil || !*h.cfg.DirectoryListing {
			h.forbidden(rw, req, pi)
			return
		}
		ListDirectory(rw, pi, h.log)
	default:
		// Sockets, devices and the like are never served.
		h.forbidden(rw, req, pi)
	}
}

func (h *Handler) forbidden(rw server.ResponseWriter, req *server.Request, pi *ResolvedPath) {
	h.log.Info("Denying access", logger.LogFields{
		"path":   pi.Name,
		"method": req.Method,
	})
	server.SendDefaultErrorResponse(rw, http.StatusForbidden, req,
		"You don't have permission to access "+pi.Name+" on this server.", h.log)
}

// serveFile answers a regular-file request: evaluates preconditions, emits
// the response head, and for bodied responses hands the open file to a
// FileTransfer pumped by the connection's write-readiness loop.
func (h *Handler) serveFile(rw server.ResponseWriter, req *server.Request, pi *ResolvedPath) {
	f, err := os.Open(pi.Path)
	if err != nil {
		h.log.Warn("Failed to open resolved file", logger.LogFields{
			"path":  pi.Path,
			"error": err.Error(),
		})
		h.forbidden(rw, req, pi)
		return
	}

	tag := EntityTag(pi.Stat)
	lastModified := httpDate(pi.Stat.ModTime())

	switch EvaluatePreconditions(req.Method, req.Header, pi.Stat) {
	case RespondNotModified:
		f.Close()
		headers := []server.HeaderField{
			{Name: "ETag", Value: tag},
			{Name: "Last-Modified", Value: lastModified},
			{Name: "Date", Value: httpDate(time.Now())},
		}
		if err := rw.SendHeaders(http.StatusNotModified, headers, true); err != nil {
			h.log.Debug("Failed to send 304", logger.LogFields{"path": pi.Name, "error": err.Error()})
		}
		return

	case RespondPreconditionFailed:
		f.Close()
		headers := []server.HeaderField{
			{Name: "Date", Value: httpDate(time.Now())},
		}
		if err := rw.SendHeaders(http.StatusPreconditionFailed, headers, true); err != nil {
			h.log.Debug("Failed to send 412", logger.LogFields{"path": pi.Name, "error": err.Error()})
		}
		return
	}

	size := pi.Stat.Size()
	headers := []server.HeaderField{
		{Name: "ETag", Value: tag},
		{Name: "Last-Modified", Value: lastModified},
		{Name: "Date", Value: httpDate(time.Now())},
		{Name: "Content-Type", Value: MimeTypeFor(pi.Name)},
		{Name: "Content-Length", Value: strconv.FormatInt(size, 10)},
	}

	// HEAD gets the head only; the handle opened for this request is
	// closed without reading.
	if req.Method == http.MethodHead {
		f.Close()
		if err := rw.SendHeaders(http.StatusOK, headers, true); err != nil {
			h.log.Debug("Failed to send HEAD response", logger.LogFields{"path": pi.Name, "error": err.Error()})
		}
		return
	}

	if err := rw.SendHeaders(http.StatusOK, headers, false); err != nil {
		f.Close()
		return
	}
	metrics.ServedFileSize.Observe(float64(size))

	t := NewFileTransfer(f, pi.Name, size, h.log)
	rw.StartTransfer(t)
	// Prime the channel immediately; subsequent chunks follow readiness
	// notifications.
	t.OnWritable(rw)
}
