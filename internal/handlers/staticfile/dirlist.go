package staticfile

import (
	"fmt"
	"html"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"example.com/microhttpd/internal/logger"
	"example.com/microhttpd/internal/server"
)

func httpDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// listEntry is one row of a directory listing, pre-statted and filtered.
type listEntry struct {
	name  string
	isDir bool
	info  os.FileInfo
}

// ListDirectory renders an HTML index of the resolved directory.
// Directories sort before files, each group bytewise-alphabetically.
// Entries the world cannot access are silently omitted: directories must be
// traversable by others, files readable by others.
func ListDirectory(rw server.ResponseWriter, pi *ResolvedPath, lg *logger.Logger) {
	if lg == nil {
		lg = logger.NewDiscardLogger()
	}

	dirents, err := os.ReadDir(pi.Path)
	if err != nil {
		lg.Warn("Failed to read directory for listing", logger.LogFields{
			"path":  pi.Path,
			"error": err.Error(),
		})
		server.SendDefaultErrorResponse(rw, http.StatusForbidden, nil, "", lg)
		return
	}

	base := pi.Path
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	var entries []listEntry
	// The parent directory gets a row like any other traversable directory.
	if info, statErr := os.Stat(base + ".."); statErr == nil && info.Mode().Perm()&0o001 != 0 {
		entries = append(entries, listEntry{name: "..", isDir: true, info: info})
	}
	for _, d := range dirents {
		// Stat (not Lstat) so symlinked entries are described by their
		// targets, matching how they would be served.
		info, statErr := os.Stat(base + d.Name())
		if statErr != nil {
			continue
		}
		required := os.FileMode(0o004)
		if info.IsDir() {
			required = 0o001
		}
		if info.Mode().Perm()&required == 0 {
			continue
		}
		entries = append(entries, listEntry{name: d.Name(), isDir: info.IsDir(), info: info})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].isDir != entries[j].isDir {
			return entries[i].isDir
		}
		return entries[i].name < entries[j].name
	})

	headers := []server.HeaderField{
		{Name: "Date", Value: httpDate(time.Now())},
		{Name: "Content-Type", Value: "text/html"},
	}
	if err := rw.SendHeaders(http.StatusOK, headers, false); err != nil {
		return
	}

	urlBase := pi.Name
	if !strings.HasSuffix(urlBase, "/") {
		urlBase += "/"
	}
	escapedName := html.EscapeString(pi.Name)

	var sb strings.Builder
	fmt.Fprintf(&sb,
		"<html><head><title>Index of %s</title></head>"+
			"<body><h1>Index of %s</h1><hr /><ol>",
		escapedName, escapedName)

	for _, e := range entries {
		escaped := html.EscapeString(e.name)
		modified := httpDate(e.info.ModTime())
		if e.isDir {
			fmt.Fprintf(&sb,
				"<li><strong><a href='%s%s/'>%s/</a></strong>"+
					"<br /><small>modified: %s<br /><br /></small></li>",
				html.EscapeString(urlBase), escaped, escaped, modified)
		} else {
			fmt.Fprintf(&sb,
				"<li><strong><a href='%s%s'>%s</a></strong>"+
					"<br /><small>modified: %s<br />%s - %.02f kbyte<br /><br /></small></li>",
				html.EscapeString(urlBase), escaped, escaped, modified,
				MimeTypeFor(e.name), float64(e.info.Size())/1024.0)
		}
	}

	sb.WriteString("</ol><hr /></body></html>")
	if _, err := rw.WriteData([]byte(sb.String()), true); err != nil {
		lg.Debug("Failed to write directory listing body", logger.LogFields{
			"path":  pi.Name,
			"error": err.Error(),
		})
	}
}
