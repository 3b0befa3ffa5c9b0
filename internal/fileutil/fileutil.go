// Package fileutil provides the filesystem helpers shared by the checker:
// immediate-directory listings, shell-glob matching, and tree copying.
package fileutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ListSplit returns the basenames of the immediate children of dir, split
// into regular files and subdirectories. Both slices are sorted.
func ListSplit(dir string) (files, dirs []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		} else {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	sort.Strings(dirs)
	return files, dirs, nil
}

// Match reports whether name matches the shell glob pattern (`*` any run of
// characters, `?` any single character, `[...]` character classes).
func Match(name, pattern string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// MatchAny reports whether name matches any of the patterns.
func MatchAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if Match(name, pattern) {
			return true
		}
	}
	return false
}

// MatchAnyFold is MatchAny with case-insensitive comparison. Used for the
// repository metadata allowlist, where README.md and readme.md are equally
// acceptable.
func MatchAnyFold(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range patterns {
		if Match(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// CopyTree copies the directory tree rooted at src. When into is true, src
// itself is recreated beneath dest (dest/basename(src)); otherwise src's
// contents are copied directly into dest. The path of the copied root is
// returned.
func CopyTree(src, dest string, into bool) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("failed to access %s: %w", src, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("source is not a directory: %s", src)
	}

	target := dest
	if into {
		target = filepath.Join(dest, filepath.Base(src))
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}

	err = filepath.WalkDir(src, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		out := filepath.Join(target, rel)

		if d.IsDir() {
			return os.MkdirAll(out, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(p, out, info.Mode().Perm())
	})
	if err != nil {
		return "", fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return target, nil
}

func copyFile(src, dest string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
