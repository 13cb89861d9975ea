// Package layout persists the client-owned icon layout for a directory.
//
// The layout is an opaque JSON object: the server stores and returns it
// verbatim, never interpreting its values. It lives in a hidden sidecar
// file inside the directory it annotates, so moving or deleting the
// directory implicitly abandons its layout.
package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SidecarName is the reserved sidecar filename. It is dot-prefixed and
// excluded from all directory listings.
const SidecarName = ".CS_Store"

// ErrCorrupt indicates a sidecar file exists but does not contain a
// valid JSON object.
var ErrCorrupt = errors.New("corrupt layout sidecar")

// Layout maps client-chosen entry identifiers to opaque positioning
// metadata. Values round-trip byte-for-byte through re-serialization.
type Layout map[string]json.RawMessage

// Store reads and writes layout sidecar files.
type Store struct{}

// NewStore creates a layout store.
func NewStore() *Store {
	return &Store{}
}

// Path returns the sidecar path for a directory.
func (s *Store) Path(dir string) string {
	return filepath.Join(dir, SidecarName)
}

// Read loads the layout for a directory. A missing sidecar is not an
// error: it returns an empty layout. A sidecar that exists but holds
// invalid JSON returns an error wrapping ErrCorrupt.
func (s *Store) Read(dir string) (Layout, error) {
	data, err := os.ReadFile(s.Path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return Layout{}, nil
		}
		return nil, fmt.Errorf("read layout sidecar: %w", err)
	}

	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w in %s: %v", ErrCorrupt, dir, err)
	}
	if l == nil {
		l = Layout{}
	}
	return l, nil
}

// Write replaces the sidecar for a directory in full. There is no merge
// with prior contents. The directory must already exist.
func (s *Store) Write(dir string, l Layout) error {
	if l == nil {
		l = Layout{}
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}
	if err := os.WriteFile(s.Path(dir), data, 0644); err != nil {
		return fmt.Errorf("write layout sidecar: %w", err)
	}
	return nil
}
