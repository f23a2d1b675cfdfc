package staticfile

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"
)

// Outcome is the result of evaluating the conditional-request headers.
type Outcome int

const (
	// Proceed means no precondition short-circuits the request.
	Proceed Outcome = iota
	// RespondNotModified means the request should be answered with 304.
	RespondNotModified
	// RespondPreconditionFailed means the request should be answered with 412.
	RespondPreconditionFailed
)

// EntityTag derives the entity tag for a file: a quoted hexadecimal triplet
// of an inode-like identifier, the size, and the modification time. It is a
// pure function of those three values.
func EntityTag(fi os.FileInfo) string {
	var ino uint64
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		ino = st.Ino
	}
	return formatEntityTag(ino, fi.Size(), fi.ModTime().Unix())
}

func formatEntityTag(ino uint64, size, mtime int64) string {
	return fmt.Sprintf("\"%x-%x-%x\"", ino, uint64(size), uint64(mtime))
}

// parseHTTPDate parses an RFC 1123 date header value. Unparsable dates are
// reported as absent so every predicate fails open.
func parseHTTPDate(value string) (time.Time, bool) {
	t, err := http.ParseTime(value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// tagListMatches reports whether a comma/space-separated entity-tag list
// contains the wildcard or the given tag.
func tagListMatches(list, tag string) bool {
	for _, member := range strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	}) {
		if member == "*" || member == tag {
			return true
		}
	}
	return false
}

// EvaluatePreconditions applies the conditional-request headers to the
// resolved entry's metadata, in fixed precedence order:
// If-Modified-Since, If-Match, If-Range, If-Unmodified-Since,
// If-None-Match. The first failing check decides the outcome.
//
// If-Range always fails: range requests are unsupported and the refusal is
// explicit rather than silently answering with the full body.
func EvaluatePreconditions(method string, header http.Header, fi os.FileInfo) Outcome {
	tag := EntityTag(fi)
	modTime := fi.ModTime().Truncate(time.Second)

	if v := header.Get("If-Modified-Since"); v != "" {
		if t, ok := parseHTTPDate(v); ok && !modTime.After(t.Truncate(time.Second)) {
			return RespondNotModified
		}
	}

	if v := header.Get("If-Match"); v != "" {
		if !tagListMatches(v, tag) {
			return RespondPreconditionFailed
		}
	}

	if header.Get("If-Range") != "" {
		return RespondPreconditionFailed
	}

	if v := header.Get("If-Unmodified-Since"); v != "" {
		if t, ok := parseHTTPDate(v); ok && !t.Truncate(time.Second).After(modTime) {
			return RespondPreconditionFailed
		}
	}

	if v := header.Get("If-None-Match"); v != "" {
		if tagListMatches(v, tag) {
			if method == http.MethodGet || method == http.MethodHead {
				return RespondNotModified
			}
			return RespondPreconditionFailed
		}
	}

	return Proceed
}
