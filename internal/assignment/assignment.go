// Package assignment ties a structure document to the machinery that checks
// a submission against it: staging into a scratch workspace, locating the
// submission root, running the directory check and filtering the log.
package assignment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/subcheck/internal/dirtree"
)

// Reserved top-level keys of a structure document. All are optional.
const (
	structureKey = "structure"
	gitBranchKey = "git-marking-branch"
	idKey        = "number"
	titleKey     = "title"
	yearKey      = "year"
)

const defaultTitle = "<No title given>"

// Assignment describes one piece of coursework: its identity and the
// directory structure a submission must follow.
type Assignment struct {
	// ID is the assignment number, zero-padded to two digits.
	ID string

	// Title is the assignment's human-readable title.
	Title string

	// Year is the calendar year the assignment's academic year starts in.
	Year int

	// Structure is the root of the expected directory tree.
	Structure *dirtree.Directory

	markingBranch string
}

// Format selects the encoding of a structure document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// Parse builds an Assignment from an encoded structure document.
func Parse(data []byte, format Format) (*Assignment, error) {
	doc := map[string]any{}
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse structure document: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse structure document: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown structure document format %d", format)
	}
	return New(doc)
}

// Load reads an Assignment from a structure document on disk, choosing the
// encoding by file extension.
func Load(path string) (*Assignment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read structure document: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return Parse(data, FormatYAML)
	default:
		return Parse(data, FormatJSON)
	}
}

// New builds an Assignment from a decoded structure document. Missing keys
// fall back to defaults: assignment number 1, the current year, and an
// empty structure.
func New(doc map[string]any) (*Assignment, error) {
	a := &Assignment{
		ID:    "01",
		Title: defaultTitle,
		Year:  time.Now().Year(),
	}

	if raw, ok := doc[idKey]; ok && raw != nil {
		a.ID = fmt.Sprintf("%v", raw)
		if len(a.ID) < 2 {
			a.ID = strings.Repeat("0", 2-len(a.ID)) + a.ID
		}
	}
	if raw, ok := doc[titleKey]; ok && raw != nil {
		if title := fmt.Sprintf("%v", raw); title != "" {
			a.Title = title
		}
	}
	if raw, ok := doc[yearKey]; ok && raw != nil {
		year, err := parseYear(raw)
		if err != nil {
			return nil, err
		}
		a.Year = year
	}
	if raw, ok := doc[gitBranchKey]; ok && raw != nil {
		branch, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("structure document key %q must be a string", gitBranchKey)
		}
		a.markingBranch = branch
	}

	structureDoc := map[string]any{}
	if raw, ok := doc[structureKey]; ok && raw != nil {
		switch v := raw.(type) {
		case map[string]any:
			structureDoc = v
		default:
			return nil, fmt.Errorf("structure document key %q must be a mapping", structureKey)
		}
	}

	root, err := dirtree.New("root", structureDoc)
	if err != nil {
		return nil, fmt.Errorf("invalid directory structure: %w", err)
	}
	// The submission directory name is the student's to choose unless the
	// document pins it down.
	if root.NamePattern == "" {
		root.NamePattern = "*"
	}
	a.Structure = root

	return a, nil
}

func parseYear(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case string:
		var year int
		if _, err := fmt.Sscanf(v, "%d", &year); err != nil {
			return 0, fmt.Errorf("structure document key %q must be a year, got %q", yearKey, v)
		}
		return year, nil
	default:
		return 0, fmt.Errorf("structure document key %q must be a year", yearKey)
	}
}

// MarkingBranch is the branch submissions are marked on.
func (a *Assignment) MarkingBranch() string {
	if a.markingBranch != "" {
		return a.markingBranch
	}
	return dirtree.DefaultMarkingBranch
}

// AcademicYear renders the academic year the assignment was released in,
// e.g. "2025-2026".
func (a *Assignment) AcademicYear() string {
	return fmt.Sprintf("%d-%d", a.Year, a.Year+1)
}

// Name renders the assignment's full display name.
func (a *Assignment) Name() string {
	return fmt.Sprintf("Assignment %s, %s: %s", a.ID, a.AcademicYear(), a.Title)
}
