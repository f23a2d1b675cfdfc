// Package router implements the dispatch registry: an ordered list of
// pluggable handlers matched either on the raw request URL (before any
// filesystem resolution) or on the resolved path (after resolution and
// authorization), consulted ahead of default static file serving.
package router

import (
	"net/http"

	"example.com/microhttpd/internal/config"
	"example.com/microhttpd/internal/handlers/staticfile"
	"example.com/microhttpd/internal/logger"
	"example.com/microhttpd/internal/server"
)

// Handler processes a dispatched request. For URL-matched handlers pi is
// nil; for path-matched handlers it is the resolved entry.
type Handler interface {
	Handle(rw server.ResponseWriter, req *server.Request, pi *staticfile.ResolvedPath)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(rw server.ResponseWriter, req *server.Request, pi *staticfile.ResolvedPath)

func (f HandlerFunc) Handle(rw server.ResponseWriter, req *server.Request, pi *staticfile.ResolvedPath) {
	f(rw, req, pi)
}

// URLPredicate matches a raw request URL, before resolution.
type URLPredicate func(url string) bool

// PathPredicate matches a resolved path, after resolution.
type PathPredicate func(pi *staticfile.ResolvedPath, url string) bool

type matchKind int

const (
	matchURL matchKind = iota
	matchPath
)

// registration is one entry of the dispatch table. The kind discriminant
// selects which predicate is populated; the two families are never mixed.
type registration struct {
	kind    matchKind
	url     URLPredicate
	path    PathPredicate
	handler Handler
}

// Router is the top-level request entry point. Its registries are populated
// during startup and read-only afterwards, so request processing needs no
// locking.
type Router struct {
	resolver      *staticfile.Resolver
	files         *staticfile.Handler
	auth          Authorizer
	errorDocument string
	log           *logger.Logger

	handlers []registration
}

// New creates a router over the given resolver and default file handler.
// auth may be nil, in which case every request is allowed.
func New(cfg *config.Config, resolver *staticfile.Resolver, files *staticfile.Handler, auth Authorizer, lg *logger.Logger) *Router {
	if lg == nil {
		lg = logger.NewDiscardLogger()
	}
	return &Router{
		resolver:      resolver,
		files:         files,
		auth:          auth,
		errorDocument: cfg.Files.ErrorDocument,
		log:           lg,
	}
}

// RegisterURLHandler appends a handler matched on the raw request URL.
// Handlers run in registration order, first match wins. Registration is
// only legal during startup.
func (r *Router) RegisterURLHandler(match URLPredicate, h Handler) {
	r.handlers = append(r.handlers, registration{kind: matchURL, url: match, handler: h})
}

// RegisterPathHandler appends a handler matched on the resolved path.
func (r *Router) RegisterPathHandler(match PathPredicate, h Handler) {
	r.handlers = append(r.handlers, registration{kind: matchPath, path: match, handler: h})
}

func (r *Router) findURLHandler(url string) Handler {
	for _, reg := range r.handlers {
		if reg.kind != matchURL {
			continue
		}
		if reg.url(url) {
			return reg.handler
		}
	}
	return nil
}

func (r *Router) findPathHandler(pi *staticfile.ResolvedPath, url string) Handler {
	for _, reg := range r.handlers {
		if reg.kind != matchPath {
			continue
		}
		if reg.path(pi, url) {
			return reg.handler
		}
	}
	return nil
}

// HandleRequest dispatches one parsed request. The chain is: URL-matched
// handlers, document-root resolution, error-document resolution, and
// finally an unconditional 404.
func (r *Router) HandleRequest(rw server.ResponseWriter, req *server.Request) {
	if h := r.findURLHandler(req.URL); h != nil {
		h.Handle(rw, req, nil)
		return
	}

	if r.tryFiles(rw, req, req.URL) {
		return
	}
	if r.errorDocument != "" && r.tryFiles(rw, req, r.errorDocument) {
		return
	}

	server.SendDefaultErrorResponse(rw, http.StatusNotFound, req,
		"The requested URL "+req.URL+" was not found on this server.", r.log)
}

// tryFiles resolves url against the document root and serves it. It
// reports whether a response was produced; false means resolution failed
// and the caller should fall through.
func (r *Router) tryFiles(rw server.ResponseWriter, req *server.Request, url string) bool {
	pi := r.resolver.Resolve(rw, url)
	if pi == nil {
		return false
	}
	if pi.Redirected {
		return true
	}

	pi.Credential = req.Header.Get("Authorization")
	if r.auth != nil && !r.auth.Authorize(pi, pi.Credential) {
		challenge := []server.HeaderField{
			{Name: "WWW-Authenticate", Value: r.auth.Challenge()},
		}
		if err := server.WriteErrorResponse(rw, http.StatusUnauthorized, req, "", challenge, r.log); err != nil {
			r.log.Debug("Failed to send authentication challenge", logger.LogFields{
				"url":   req.URL,
				"error": err.Error(),
			})
		}
		return true
	}

	if h := r.findPathHandler(pi, url); h != nil {
		h.Handle(rw, req, pi)
		return true
	}

	r.files.Serve(rw, req, pi)
	return true
}
