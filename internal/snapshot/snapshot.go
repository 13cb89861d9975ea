// Package snapshot builds the canonical directory state sent to the
// canvas client: the filtered listing of one directory plus its
// persisted icon layout.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deskcanvas/deskcanvas/internal/classify"
	"github.com/deskcanvas/deskcanvas/internal/layout"
	"github.com/deskcanvas/deskcanvas/internal/logging"
	"github.com/deskcanvas/deskcanvas/internal/metrics"
)

// ParentPath is the reserved entry path for the synthesized parent
// directory entry.
const ParentPath = "parent"

// FilesPrefix is the URL prefix under which regular files of the
// current directory are served.
const FilesPrefix = "/files/"

// Entry is one filesystem child surfaced to the client.
//
// For a regular file, Path is a fetchable URL ("/files/<name>") and
// Absolute is empty. For a directory, Path is the bare child name
// (or "parent") and Absolute is the resolved filesystem path used to
// drive a subsequent cd request.
type Entry struct {
	Path     string            `json:"path"`
	Category classify.Category `json:"type"`
	Absolute string            `json:"absolute,omitempty"`
}

// State is the full snapshot for one directory, sent whole in a single
// message. It is built on demand and never cached.
type State struct {
	Path   string        `json:"path"`
	Files  []Entry       `json:"files"`
	Layout layout.Layout `json:"layout"`
}

// Builder derives State snapshots from the filesystem.
type Builder struct {
	store *layout.Store
}

// NewBuilder creates a builder backed by the given layout store.
func NewBuilder(store *layout.Store) *Builder {
	return &Builder{store: store}
}

// Build produces the snapshot for dir. Listing failures propagate to
// the caller; a corrupt layout sidecar degrades to an empty layout
// with a warning since a previously written layout is being discarded.
func (b *Builder) Build(dir string) (*State, error) {
	start := time.Now()

	children, err := os.ReadDir(dir)
	if err != nil {
		metrics.RecordSnapshotBuild(time.Since(start), false)
		return nil, fmt.Errorf("list directory %s: %w", dir, err)
	}

	// Parent entry always comes first. filepath.Dir of a root returns
	// the root itself, which makes the parent a harmless no-op target.
	files := []Entry{{
		Path:     ParentPath,
		Category: classify.CategoryDir,
		Absolute: filepath.Dir(dir),
	}}

	var dirs []Entry
	var regular []Entry
	for _, child := range children {
		name := child.Name()
		if strings.HasPrefix(name, ".") {
			// Hidden entries stay hidden; the layout sidecar is one of them.
			continue
		}
		if child.IsDir() {
			dirs = append(dirs, Entry{
				Path:     name,
				Category: classify.CategoryDir,
				Absolute: filepath.Join(dir, name),
			})
			continue
		}
		cat, ok := classify.Classify(name)
		if !ok {
			continue
		}
		regular = append(regular, Entry{
			Path:     FilesPrefix + name,
			Category: cat,
		})
	}

	sort.Slice(dirs, func(i, j int) bool {
		return strings.ToLower(dirs[i].Path) < strings.ToLower(dirs[j].Path)
	})
	files = append(files, dirs...)
	files = append(files, regular...)

	l, err := b.store.Read(dir)
	if err != nil {
		logging.Warn("discarding unreadable layout",
			zap.String("dir", dir), zap.Error(err))
		metrics.RecordLayoutRead(false)
		l = layout.Layout{}
	} else {
		metrics.RecordLayoutRead(true)
	}

	metrics.RecordSnapshotBuild(time.Since(start), true)
	return &State{Path: dir, Files: files, Layout: l}, nil
}
