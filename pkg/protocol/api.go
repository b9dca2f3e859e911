// Package protocol defines the peer wire types shared by the server and client.
package protocol

import (
	"fmt"
	"runtime"

	"github.com/google/uuid"
)

// PeerPort is the fixed TCP port every filey instance listens on and probes.
// Serving and discovery use the same port so that any two peers can find each other.
const PeerPort = 38899

// Envelope wraps every HTTP response body, success or error.
type Envelope[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Response messages sent by the peer server.
const (
	MessagePreflight = "Preflight request passed"
	MessageHealthy   = "This Filey server is healthy"
	MessageFiles     = "Get all files success"
)

// FileSummary is the peer-facing projection of a catalog record.
// GET /files returns a list of these; only public records are included.
type FileSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Mime string    `json:"mime"`
}

// PeerInfo identifies a live peer found during discovery.
type PeerInfo struct {
	Address string `json:"address"`
	OSType  OSType `json:"osType"`
}

// OSType is the operating system tag reported by GET /info.
type OSType string

const (
	OSLinux   OSType = "linux"
	OSWindows OSType = "windows"
	OSMacOS   OSType = "macos"
	OSIOS     OSType = "ios"
	OSAndroid OSType = "android"
)

// ParseOSType parses a wire tag. Unknown tags are rejected.
func ParseOSType(s string) (OSType, error) {
	switch OSType(s) {
	case OSLinux, OSWindows, OSMacOS, OSIOS, OSAndroid:
		return OSType(s), nil
	default:
		return "", fmt.Errorf("unknown os type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o OSType) MarshalText() ([]byte, error) {
	if _, err := ParseOSType(string(o)); err != nil {
		return nil, err
	}
	return []byte(o), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *OSType) UnmarshalText(b []byte) error {
	v, err := ParseOSType(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// LocalOS reports the OS tag of the running process.
func LocalOS() OSType {
	return osTypeFor(runtime.GOOS)
}

// osTypeFor maps a GOOS value onto the closed set of wire tags.
// Unix-likes without their own tag report as linux.
func osTypeFor(goos string) OSType {
	switch goos {
	case "windows":
		return OSWindows
	case "darwin":
		return OSMacOS
	case "ios":
		return OSIOS
	case "android":
		return OSAndroid
	default:
		return OSLinux
	}
}

// Mode selects how a browser should treat GET /files/{id}.
type Mode string

const (
	ModeView     Mode = "view"
	ModeDownload Mode = "download"
)

// ParseMode parses the ?mode= query value. An empty value means ModeView.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeView:
		return ModeView, nil
	case ModeDownload:
		return ModeDownload, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want view or download)", s)
	}
}

// Disposition returns the Content-Disposition type for the mode.
func (m Mode) Disposition() string {
	if m == ModeDownload {
		return "attachment"
	}
	return "inline"
}
