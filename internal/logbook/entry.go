package logbook

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Entry is a single recorded finding: what happened (Kind), where it was
// observed (a directory path), and the items it concerns.
//
// Content is kept trimmed, deduplicated, and sorted so that merging two
// entries and re-rendering is stable.
type Entry struct {
	Kind    Kind
	Where   string
	Content []string
}

// NewEntry creates a normalized entry.
func NewEntry(kind Kind, where string, content ...string) Entry {
	e := Entry{Kind: kind, Where: where, Content: content}
	e.normalize()
	return e
}

// SameReference reports whether two entries record the same kind of finding
// at the same location, in which case they can be merged.
func (e Entry) SameReference(other Entry) bool {
	return e.Kind == other.Kind && e.Where == other.Where
}

// AddContent appends items, keeping content normalized. Duplicates of
// existing items are discarded.
func (e *Entry) AddContent(items ...string) {
	e.Content = append(e.Content, items...)
	e.normalize()
}

// normalize trims whitespace, drops empty items, removes duplicates, and
// sorts the content alphabetically.
func (e *Entry) normalize() {
	seen := make(map[string]bool, len(e.Content))
	cleaned := make([]string, 0, len(e.Content))
	for _, item := range e.Content {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		cleaned = append(cleaned, item)
	}
	sort.Strings(cleaned)
	e.Content = cleaned
}

// contentAsBullets renders the content items as a bulleted list.
func (e Entry) contentAsBullets() string {
	lines := make([]string, len(e.Content))
	for i, item := range e.Content {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

// firstContent returns the first content item, or the empty string. Several
// templates carry exactly one structured value (a pattern, a branch name)
// in their content.
func (e Entry) firstContent() string {
	if len(e.Content) == 0 {
		return ""
	}
	return e.Content[0]
}

// Render converts the entry into the human-readable text that appears in
// the final report. Paths are rendered relative to relativeTo when it is
// non-empty and the location lies beneath it.
func (e Entry) Render(relativeTo string) string {
	where := e.Where
	if relativeTo != "" {
		if rel, err := filepath.Rel(relativeTo, e.Where); err == nil && !strings.HasPrefix(rel, "..") {
			where = rel
		}
	}

	switch e.Kind {
	case FatalNotADirectory:
		return fmt.Sprintf("%s is not a directory.", where)
	case FatalNameMismatch:
		return fmt.Sprintf("Directory '%s' was expected, but found '%s'.", e.firstContent(), where)
	case FatalPatternMismatch:
		return fmt.Sprintf("Directory '%s' does not have the expected form (expected to match '%s').", where, e.firstContent())
	case FatalMissingSubdir:
		return fmt.Sprintf("Compulsory subdirectory '%s' was not found in %s.", e.firstContent(), where)
	case FatalUnmatchedPatterns:
		return fmt.Sprintf("Could not match compulsory subdirectory patterns in %s:\n%s", where, e.contentAsBullets())
	case FatalNoRepository:
		return fmt.Sprintf("No git repository found at %s.", where)
	case FatalUntrackedChanges:
		return fmt.Sprintf("Untracked changes present in the git repository at %s:\n%s", where, e.contentAsBullets())
	case FatalUnstagedChanges:
		return fmt.Sprintf("Unstaged changes present in the git repository at %s:\n%s", where, e.contentAsBullets())
	case FatalUncommittedChanges:
		return fmt.Sprintf("Uncommitted changes present in the git repository at %s:\n%s", where, e.contentAsBullets())
	case FatalNoValidBranch:
		return fmt.Sprintf("Repository at %s has no '%s' branch, nor any acceptable alternative.", where, e.firstContent())
	case FatalCheckoutFailed:
		return fmt.Sprintf("Could not checkout branch '%s' in the repository at %s.", e.firstContent(), where)
	case FatalUnexpectedRepository:
		return fmt.Sprintf("Found a git repository at %s, which is not an expected location.", where)

	case WarnMissingFiles:
		return fmt.Sprintf("The following compulsory files were not found in %s:\n%s", where, e.contentAsBullets())
	case WarnUnexpectedFiles:
		return fmt.Sprintf("The following files were found in %s, but were not expected:\n%s", where, e.contentAsBullets())
	case WarnNotOnMarkingBranch:
		return fmt.Sprintf("Repository at %s was not on the '%s' branch; it has been switched.", where, e.firstContent())
	case WarnFallbackBranch:
		return fmt.Sprintf("Repository at %s does not have a marking branch, but '%s' is an acceptable alternative and has been checked out.", where, e.firstContent())

	case InfoMatchedName:
		return fmt.Sprintf("Matched '%s' to pattern '%s'.", where, e.firstContent())
	case InfoOptionalFiles:
		return fmt.Sprintf("The following optional files were found in %s:\n%s", where, e.contentAsBullets())
	case InfoOptionalDirAbsent:
		return fmt.Sprintf("Optional directory '%s' was not found in %s.", e.firstContent(), where)
	case InfoMatchedPatterns:
		return fmt.Sprintf("Matched the following patterns to directories in %s:\n%s", where, e.contentAsBullets())
	case InfoOptionalPatternsAbsent:
		return fmt.Sprintf("The following optional directory patterns were not found in %s:\n%s", where, e.contentAsBullets())
	}

	// Unknown kinds still render so nothing is silently dropped.
	return fmt.Sprintf("%s: %s: %s", e.Kind, where, strings.Join(e.Content, ", "))
}
