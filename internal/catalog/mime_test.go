package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitExtension(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		ok   bool
	}{
		{"photo.jpg", "jpg", true},
		{"archive.tar.gz", "gz", true},
		{"content://abc", "", false},
		{"content://media.documents/42", "", false},
		{`C:\dir.v2\file`, "", false},
		{"trailing.", "", false},
		{"noext", "", false},
		{".bashrc", "bashrc", true},
	}
	for _, tt := range tests {
		ext, ok := splitExtension(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.ext, ext, tt.name)
	}
}

func TestMimeForExtension(t *testing.T) {
	assert.Equal(t, "image/jpeg", MimeForExtension("JPG"))
	assert.Equal(t, "application/pdf", MimeForExtension("pdf"))
	assert.Equal(t, DefaultMime, MimeForExtension("unknownext"))
}

func TestFiletypeSniffer(t *testing.T) {
	ext, mime, ok := FiletypeSniffer{}.Sniff(pngHeader)
	assert.True(t, ok)
	assert.Equal(t, "png", ext)
	assert.Equal(t, "image/png", mime)

	_, _, ok = FiletypeSniffer{}.Sniff([]byte("hello world"))
	assert.False(t, ok)

	_, _, ok = FiletypeSniffer{}.Sniff(nil)
	assert.False(t, ok)
}

func TestWithSniffer(t *testing.T) {
	c := New(NewMemoryStore(), nil, WithSniffer(SnifferFunc(func([]byte) (string, string, bool) {
		return "bin", "application/x-test", true
	})))
	ext, mime, ok := c.sniffer.Sniff(nil)
	assert.True(t, ok)
	assert.Equal(t, "bin", ext)
	assert.Equal(t, "application/x-test", mime)
}
