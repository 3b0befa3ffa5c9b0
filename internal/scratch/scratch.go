// Package scratch manages the temporary workspaces a submission is copied
// or extracted into before checking. Workspaces are uniquely named and
// their removal tolerates the read-only files git leaves behind in .git.
package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// maxRemoveAttempts bounds the remove-retry loop. Each retry first forces
// everything writable, so more than a couple of attempts means something
// other than permissions is wrong.
const maxRemoveAttempts = 3

// Workspace is a scratch directory that exists for the duration of one
// submission check.
type Workspace struct {
	// Path is the workspace root on disk.
	Path string
}

// New creates a uniquely named workspace under the system temporary
// directory.
func New(prefix string) (*Workspace, error) {
	return NewUnder(os.TempDir(), prefix)
}

// NewUnder creates a uniquely named workspace under parent.
func NewUnder(parent, prefix string) (*Workspace, error) {
	path := filepath.Join(parent, fmt.Sprintf("%s-%s", prefix, uuid.NewString()))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch workspace: %w", err)
	}
	return &Workspace{Path: path}, nil
}

// Remove deletes the workspace and everything beneath it. Git object files
// are created read-only, which makes a plain removal fail on some
// platforms; on failure the tree is forced writable and the removal
// retried, a bounded number of times.
func (w *Workspace) Remove() error {
	var err error
	for attempt := 0; attempt < maxRemoveAttempts; attempt++ {
		err = os.RemoveAll(w.Path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		forceWritable(w.Path)
	}
	return fmt.Errorf("failed to remove scratch workspace %s: %w", w.Path, err)
}

// forceWritable adds owner write permission to every entry in the tree.
func forceWritable(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		_ = os.Chmod(path, info.Mode().Perm()|0o200)
		return nil
	})
}
