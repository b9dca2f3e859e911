// Package models contains the catalog data types.
package models

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/VintageWander/filey/pkg/protocol"
)

// Visibility controls whether a file is exposed to peers.
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// ParseVisibility parses a stored or user supplied visibility tag.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(s) {
	case Public, Private:
		return Visibility(s), nil
	default:
		return "", fmt.Errorf("unknown visibility %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Visibility) MarshalText() ([]byte, error) {
	if _, err := ParseVisibility(string(v)); err != nil {
		return nil, err
	}
	return []byte(v), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Visibility) UnmarshalText(b []byte) error {
	p, err := ParseVisibility(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// FileRecord is one entry of the local catalog.
// Only Visibility may change after the record is created.
type FileRecord struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Mime       string     `json:"mime"`
	Visibility Visibility `json:"visibility"`
	Path       string     `json:"path"`
}

// Summary returns the peer-facing projection. Path is never part of it.
func (r FileRecord) Summary() protocol.FileSummary {
	return protocol.FileSummary{ID: r.ID, Name: r.Name, Mime: r.Mime}
}

// FileDraft is the input of a catalog upsert. Mime is derived by the catalog.
type FileDraft struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	Path       string     `json:"path"`
}
