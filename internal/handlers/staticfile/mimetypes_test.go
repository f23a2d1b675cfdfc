package staticfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMimeTypeFor(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/index.html", "text/html"},
		{"/notes.txt", "text/plain"},
		{"/app.js", "text/javascript"},
		{"/style.css", "text/css"},
		{"/logo.png", "image/png"},
		{"/photo.JPG", "image/jpeg"},
		{"/archive.tar.gz", "application/x-compressed-tar"},
		{"/archive.gz", "application/x-gzip"},
		{"/archive.tar.bz2", "application/x-bzip-compressed-tar"},
		{"/video.mp4", "video/mp4"},
		{"/unknown.xyz", "application/octet-stream"},
		{"/noextension", "application/octet-stream"},
		{"/dir/html", "text/html"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MimeTypeFor(tc.path), "path %q", tc.path)
	}
}

func TestMimeTypeSuffixBoundary(t *testing.T) {
	// "shtml" must not match the "html" entry: the suffix has to start at a
	// '.' or '/' boundary.
	assert.Equal(t, "application/octet-stream", MimeTypeFor("/page.shtml"))
	assert.Equal(t, "text/html", MimeTypeFor("/page.HTML"))
}
