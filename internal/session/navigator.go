package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Navigator owns the single mutable current-directory pointer shared by
// the message dispatcher and the /files/ serving root. The file server
// reads Current on every request, so a completed navigation re-points
// the root without any routing-table mutation.
//
// There is deliberately no containment check: any directory the process
// user can list is a valid target, including ones reached via "..".
// The browser is a local, single-user tool and inherits the process's
// filesystem view wholesale.
type Navigator struct {
	mu  sync.RWMutex
	dir string
}

// NewNavigator creates a navigator rooted at the given start directory.
// The start directory must exist and be listable.
func NewNavigator(start string) (*Navigator, error) {
	abs, err := normalize(start)
	if err != nil {
		return nil, err
	}
	return &Navigator{dir: abs}, nil
}

// Current returns the current directory.
func (n *Navigator) Current() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dir
}

// NavigateTo points the navigator at dir and returns the normalized
// path. Navigating twice to the same path is idempotent. The pointer
// is only swapped once the target is known to be a listable directory,
// so a failed navigation leaves the previous directory current.
func (n *Navigator) NavigateTo(dir string) (string, error) {
	abs, err := normalize(dir)
	if err != nil {
		return "", err
	}
	n.mu.Lock()
	n.dir = abs
	n.mu.Unlock()
	return abs, nil
}

func normalize(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}
