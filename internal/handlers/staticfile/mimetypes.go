package staticfile

import "strings"

type mimeType struct {
	extn string
	mime string
}

// mimeTypes is the static extension table consulted in order. First match
// wins, so more specific entries come before generic ones.
var mimeTypes = []mimeType{
	{"txt", "text/plain"},
	{"log", "text/plain"},
	{"js", "text/javascript"},
	{"css", "text/css"},
	{"htm", "text/html"},
	{"html", "text/html"},
	{"diff", "text/x-patch"},
	{"patch", "text/x-patch"},
	{"c", "text/x-csrc"},
	{"h", "text/x-chdr"},
	{"o", "text/x-object"},
	{"ko", "text/x-object"},

	{"bmp", "image/bmp"},
	{"gif", "image/gif"},
	{"png", "image/png"},
	{"jpg", "image/jpeg"},
	{"jpeg", "image/jpeg"},
	{"svg", "image/svg+xml"},
	{"ico", "image/x-icon"},

	{"json", "application/json"},
	{"jsonld", "application/ld+json"},
	{"zip", "application/zip"},
	{"pdf", "application/pdf"},
	{"xml", "application/xml"},
	{"xsl", "application/xml"},
	{"doc", "application/msword"},
	{"ppt", "application/vnd.ms-powerpoint"},
	{"xls", "application/vnd.ms-excel"},
	{"odt", "application/vnd.oasis.opendocument.text"},
	{"odp", "application/vnd.oasis.opendocument.presentation"},
	{"pl", "application/x-perl"},
	{"sh", "application/x-shellscript"},
	{"php", "application/x-php"},
	{"deb", "application/x-deb"},
	{"iso", "application/x-cd-image"},
	{"tar.gz", "application/x-compressed-tar"},
	{"tgz", "application/x-compressed-tar"},
	{"gz", "application/x-gzip"},
	{"tar.bz2", "application/x-bzip-compressed-tar"},
	{"bz2", "application/x-bzip"},
	{"tar", "application/x-tar"},

	{"mp3", "audio/mpeg"},
	{"ogg", "audio/x-vorbis+ogg"},
	{"wav", "audio/x-wav"},
	{"flac", "audio/flac"},

	{"mp4", "video/mp4"},
	{"webm", "video/webm"},
	{"avi", "video/x-msvideo"},
	{"mpg", "video/mpeg"},
	{"mpeg", "video/mpeg"},
	{"mkv", "video/x-matroska"},
}

// MimeTypeFor looks up the MIME type for a path by its extension suffix,
// case-insensitively, at a '.' or '/' boundary. Unknown extensions get
// application/octet-stream.
func MimeTypeFor(path string) string {
	for _, m := range mimeTypes {
		if hasSuffixAtBoundary(path, m.extn) {
			return m.mime
		}
	}
	return "application/octet-stream"
}

func hasSuffixAtBoundary(path, extn string) bool {
	if len(path) <= len(extn) {
		return false
	}
	boundary := path[len(path)-len(extn)-1]
	if boundary != '.' && boundary != '/' {
		return false
	}
	return strings.EqualFold(path[len(path)-len(extn):], extn)
}
