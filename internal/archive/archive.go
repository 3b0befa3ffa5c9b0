// Package archive extracts submission archives into a destination
// directory. Zip and tar (plain or gzipped) archives are supported, which
// covers what submission systems hand over in practice.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExtractError reports a failure to extract a specific archive.
type ExtractError struct {
	Archive string
	Reason  string
	Err     error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to extract %s: %s: %v", e.Archive, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to extract %s: %s", e.Archive, e.Reason)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// Supported reports whether path has an archive extension Extract can
// handle.
func Supported(path string) bool {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"),
		strings.HasSuffix(lower, ".tar"),
		strings.HasSuffix(lower, ".tar.gz"),
		strings.HasSuffix(lower, ".tgz"):
		return true
	}
	return false
}

// Extract unpacks the archive at archivePath into dest. The archive format
// is chosen by extension. Entries that would escape dest are rejected.
func Extract(archivePath, dest string) error {
	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return extractZip(archivePath, dest)
	case strings.HasSuffix(lower, ".tar"):
		return extractTar(archivePath, dest, false)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return extractTar(archivePath, dest, true)
	}
	return &ExtractError{Archive: archivePath, Reason: "unsupported archive format"}
}

func extractZip(archivePath, dest string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return &ExtractError{Archive: archivePath, Reason: "cannot open archive", Err: err}
	}
	defer reader.Close()

	for _, entry := range reader.File {
		target, err := securePath(dest, entry.Name)
		if err != nil {
			return &ExtractError{Archive: archivePath, Reason: "unsafe entry path", Err: err}
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &ExtractError{Archive: archivePath, Reason: "cannot create directory", Err: err}
			}
			continue
		}
		src, err := entry.Open()
		if err != nil {
			return &ExtractError{Archive: archivePath, Reason: "cannot read entry", Err: err}
		}
		err = writeEntry(target, src, entry.Mode())
		src.Close()
		if err != nil {
			return &ExtractError{Archive: archivePath, Reason: "cannot write entry", Err: err}
		}
	}
	return nil
}

func extractTar(archivePath, dest string, gzipped bool) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return &ExtractError{Archive: archivePath, Reason: "cannot open archive", Err: err}
	}
	defer file.Close()

	var source io.Reader = file
	if gzipped {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return &ExtractError{Archive: archivePath, Reason: "cannot decompress archive", Err: err}
		}
		defer gz.Close()
		source = gz
	}

	reader := tar.NewReader(source)
	for {
		header, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &ExtractError{Archive: archivePath, Reason: "corrupt archive", Err: err}
		}
		target, err := securePath(dest, header.Name)
		if err != nil {
			return &ExtractError{Archive: archivePath, Reason: "unsafe entry path", Err: err}
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &ExtractError{Archive: archivePath, Reason: "cannot create directory", Err: err}
			}
		case tar.TypeReg:
			if err := writeEntry(target, reader, header.FileInfo().Mode()); err != nil {
				return &ExtractError{Archive: archivePath, Reason: "cannot write entry", Err: err}
			}
		default:
			// Symlinks and the like never belong in a submission.
		}
	}
}

// securePath joins name onto dest and rejects entries that resolve outside
// dest.
func securePath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	cleanDest := filepath.Clean(dest)
	if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry %q escapes extraction directory", name)
	}
	return target, nil
}

func writeEntry(target string, src io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm()|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
