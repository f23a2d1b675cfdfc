package staticfile

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"example.com/microhttpd/internal/config"
	"example.com/microhttpd/internal/logger"
	"example.com/microhttpd/internal/server"
)

// maxDecodedPath bounds the decoded root+path length. Longer requests are a
// resolution failure rather than a truncation.
const maxDecodedPath = 4096

// ResolvedPath is the result of resolving a request URL against the
// document root. It is built fresh per request and never cached.
type ResolvedPath struct {
	// Root is the configured document root.
	Root string
	// Path is the absolute, canonicalized filesystem path. It is always the
	// root or a descendant of it.
	Path string
	// Name is the portion of Path relative to Root, beginning with "/".
	// Used in generated URLs and listings.
	Name string
	// PathInfo holds trailing segments beyond the first existing filesystem
	// entry. Only meaningful for dispatch handlers; default file serving
	// rejects requests that carry it.
	PathInfo string
	// Query is the raw query string, split off before decoding. Empty when
	// the request had none.
	Query string
	// Stat is a point-in-time metadata snapshot taken at resolution; it is
	// not re-validated later in the request.
	Stat os.FileInfo
	// Redirected is set when the resolver already emitted a redirect
	// response and the caller should stop processing.
	Redirected bool
	// Credential carries the raw Authorization header value for the
	// authorization collaborator.
	Credential string
}

// Resolver maps raw request URLs to filesystem entries inside the document
// root. It is constructed once at startup and is safe for concurrent use:
// all fields are read-only after construction.
type Resolver struct {
	root       string
	indexFiles []string
	noSymlinks bool
	log        *logger.Logger
}

// NewResolver creates a resolver for the given files configuration. The
// document root must already be absolute and cleaned (config validation
// guarantees this).
func NewResolver(cfg *config.FilesConfig, lg *logger.Logger) *Resolver {
	if lg == nil {
		lg = logger.NewDiscardLogger()
	}
	return &Resolver{
		root:       filepath.Clean(cfg.DocumentRoot),
		indexFiles: cfg.IndexFiles,
		noSymlinks: cfg.NoSymlinks,
		log:        lg,
	}
}

// Root returns the configured document root.
func (r *Resolver) Root() string { return r.root }

// Resolve maps rawURL to a filesystem entry. It returns nil for anything
// that cannot be served: malformed percent-encoding, traversal outside the
// root, and missing entries all look the same to the caller, which maps nil
// to a 404 so that probing reveals nothing about why resolution failed.
//
// When a directory is requested without a trailing slash, Resolve itself
// sends a 302 redirect on rw and returns a result with Redirected set.
func (r *Resolver) Resolve(rw server.ResponseWriter, rawURL string) *ResolvedPath {
	if rawURL == "" {
		return nil
	}

	rawPath := rawURL
	query := ""
	if idx := strings.IndexByte(rawURL, '?'); idx != -1 {
		rawPath = rawURL[:idx]
		query = rawURL[idx+1:]
	}

	decoded, err := url.PathUnescape(rawPath)
	if err != nil || strings.IndexByte(decoded, 0) != -1 {
		return nil
	}
	if len(r.root)+len(decoded) > maxDecodedPath {
		return nil
	}

	full := r.root + decoded
	hadTrailingSlash := strings.HasSuffix(decoded, "/")

	// Find the longest initial segment that names an existing filesystem
	// entry; the remainder becomes PathInfo. Containment is verified on the
	// canonical candidate before any stat, so escapes are rejected even
	// when the target exists.
	var (
		phys     string
		pathInfo string
		fi       os.FileInfo
	)
	for end := len(full); end >= len(r.root); end-- {
		if end != len(full) && full[end] != '/' {
			continue
		}
		cand, ok := r.canonPath(full[:end])
		if !ok {
			continue
		}
		if !r.withinRoot(cand) {
			return nil
		}
		info, statErr := os.Stat(cand)
		if statErr != nil {
			continue
		}
		phys = cand
		pathInfo = full[end:]
		fi = info
		break
	}
	if phys == "" {
		return nil
	}

	pi := &ResolvedPath{
		Root:     r.root,
		Path:     phys,
		Name:     r.nameFor(phys),
		PathInfo: pathInfo,
		Query:    query,
		Stat:     fi,
	}

	if fi.Mode().IsRegular() {
		return pi
	}
	if !fi.IsDir() {
		return nil
	}

	// A directory cannot have path segments beyond it.
	if pathInfo != "" {
		return nil
	}

	// Directory requested without a trailing slash in the original request:
	// redirect to the same path with one appended, preserving the query.
	if !hadTrailingSlash {
		location := pi.Name
		if !strings.HasSuffix(location, "/") {
			location += "/"
		}
		if query != "" {
			location += "?" + query
		}
		headers := []server.HeaderField{
			{Name: "Location", Value: location},
			{Name: "Content-Length", Value: strconv.Itoa(0)},
		}
		if err := rw.SendHeaders(302, headers, true); err != nil {
			r.log.Debug("Failed to send directory redirect", logger.LogFields{
				"path":  pi.Name,
				"error": err.Error(),
			})
		}
		pi.Redirected = true
		return pi
	}

	// Probe the index-file candidates in order; the first regular file
	// found becomes the served target.
	for _, name := range r.indexFiles {
		cand := phys
		if !strings.HasSuffix(cand, "/") {
			cand += "/"
		}
		cand += name
		if info, statErr := os.Stat(cand); statErr == nil && info.Mode().IsRegular() {
			pi.Path = cand
			pi.Name = r.nameFor(cand)
			pi.Stat = info
			break
		}
	}
	return pi
}

// canonPath canonicalizes an absolute path. The default mode is a pure
// lexical rewrite that collapses "." and ".." segments and repeated
// separators without touching the filesystem; it does not resolve symlinks,
// so a symlink planted inside the root can still point outside it. The
// no-symlinks mode closes that gap by resolving through the filesystem and
// fails for paths that do not exist.
func (r *Resolver) canonPath(p string) (string, bool) {
	if r.noSymlinks {
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			return "", false
		}
		return resolved, true
	}
	return filepath.Clean(p), true
}

// withinRoot reports whether p is the document root or a descendant of it,
// bounded by a path separator.
func (r *Resolver) withinRoot(p string) bool {
	if p == r.root {
		return true
	}
	prefix := r.root
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return strings.HasPrefix(p, prefix)
}

// nameFor returns the request-visible name of a physical path: its part
// relative to the root, always beginning with "/".
func (r *Resolver) nameFor(phys string) string {
	name := strings.TrimPrefix(phys, strings.TrimSuffix(r.root, "/"))
	if name == "" {
		return "/"
	}
	return name
}
