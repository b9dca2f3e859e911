package catalog

import (
	"strings"

	"github.com/h2non/filetype"
)

// DefaultMime is used when neither the extension nor the content identifies a file.
const DefaultMime = "application/octet-stream"

// SniffLen is how many leading bytes are read for signature detection.
const SniffLen = 8192

var extensionMimes = map[string]string{
	// text
	"txt":  "text/plain",
	"md":   "text/markdown",
	"csv":  "text/csv",
	"tsv":  "text/tab-separated-values",
	"html": "text/html",
	"htm":  "text/html",
	"css":  "text/css",
	"xml":  "text/xml",
	"ics":  "text/calendar",
	"vcf":  "text/vcard",

	// code and data
	"js":   "text/javascript",
	"mjs":  "text/javascript",
	"json": "application/json",
	"yaml": "application/yaml",
	"yml":  "application/yaml",
	"toml": "application/toml",
	"wasm": "application/wasm",
	"sh":   "application/x-sh",

	// documents
	"pdf":  "application/pdf",
	"rtf":  "application/rtf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"odt":  "application/vnd.oasis.opendocument.text",
	"ods":  "application/vnd.oasis.opendocument.spreadsheet",
	"odp":  "application/vnd.oasis.opendocument.presentation",
	"epub": "application/epub+zip",

	// images
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"svg":  "image/svg+xml",
	"ico":  "image/x-icon",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"heic": "image/heic",
	"heif": "image/heif",
	"avif": "image/avif",

	// audio
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"oga":  "audio/ogg",
	"flac": "audio/flac",
	"aac":  "audio/aac",
	"m4a":  "audio/mp4",
	"opus": "audio/opus",
	"mid":  "audio/midi",
	"midi": "audio/midi",

	// video
	"mp4":  "video/mp4",
	"m4v":  "video/mp4",
	"mkv":  "video/x-matroska",
	"webm": "video/webm",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"wmv":  "video/x-ms-wmv",
	"mpeg": "video/mpeg",
	"mpg":  "video/mpeg",
	"3gp":  "video/3gpp",

	// archives and packages
	"zip": "application/zip",
	"gz":  "application/gzip",
	"tgz": "application/gzip",
	"tar": "application/x-tar",
	"bz2": "application/x-bzip2",
	"xz":  "application/x-xz",
	"7z":  "application/x-7z-compressed",
	"rar": "application/vnd.rar",
	"apk": "application/vnd.android.package-archive",
	"deb": "application/vnd.debian.binary-package",
	"dmg": "application/x-apple-diskimage",
	"iso": "application/x-iso9660-image",
	"exe": "application/vnd.microsoft.portable-executable",
	"msi": "application/x-msi",

	// fonts
	"ttf":   "font/ttf",
	"otf":   "font/otf",
	"woff":  "font/woff",
	"woff2": "font/woff2",
}

// splitExtension returns the suffix after the last "." of name. Suffixes
// that are empty or contain a path separator do not count, so opaque
// references like "content://media.documents/42" have no extension.
func splitExtension(name string) (string, bool) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", false
	}
	ext := name[i+1:]
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		return "", false
	}
	return ext, true
}

// MimeForExtension maps an extension (without the dot) to a MIME type.
func MimeForExtension(ext string) string {
	if m, ok := extensionMimes[strings.ToLower(ext)]; ok {
		return m
	}
	return DefaultMime
}

// Sniffer infers a file type from its leading bytes.
type Sniffer interface {
	Sniff(head []byte) (ext, mime string, ok bool)
}

// SnifferFunc adapts a function to Sniffer.
type SnifferFunc func(head []byte) (ext, mime string, ok bool)

func (f SnifferFunc) Sniff(head []byte) (string, string, bool) { return f(head) }

// FiletypeSniffer detects types by magic number using h2non/filetype.
type FiletypeSniffer struct{}

func (FiletypeSniffer) Sniff(head []byte) (string, string, bool) {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "", "", false
	}
	return kind.Extension, kind.MIME.Value, true
}
