package logbook

import (
	"path"
	"path/filepath"
	"strings"
)

// Log is an ordered, appendable collection of entries gathered while a
// directory tree is checked. One Log exists per matcher invocation;
// recursive invocations produce their own Log which is merged upward via
// Include.
type Log struct {
	// CurrentDir is the default location for entries added without an
	// explicit one.
	CurrentDir string

	entries []Entry
}

// New creates an empty log whose default entry location is currentDir.
func New(currentDir string) *Log {
	return &Log{CurrentDir: currentDir}
}

// Entries returns the recorded entries in insertion order.
func (l *Log) Entries() []Entry { return l.entries }

// Add records a finding at the log's current directory. If an entry of the
// same kind at the same location already exists, the content is merged into
// it instead of appending a new entry.
func (l *Log) Add(kind Kind, content ...string) {
	l.AddAt(kind, l.CurrentDir, content...)
}

// AddAt records a finding at an explicit location.
func (l *Log) AddAt(kind Kind, where string, content ...string) {
	entry := NewEntry(kind, where, content...)
	for i := range l.entries {
		if l.entries[i].SameReference(entry) {
			l.entries[i].AddContent(content...)
			return
		}
	}
	l.entries = append(l.entries, entry)
}

// Include concatenates another log's entries onto this one, preserving
// their order. The receiver's CurrentDir is unchanged.
func (l *Log) Include(other *Log) {
	if other == nil {
		return
	}
	l.entries = append(l.entries, other.entries...)
}

// Fatal returns the fatal entries, in order.
func (l *Log) Fatal() []Entry { return l.filter(Kind.IsFatal) }

// Warnings returns the warning entries, in order.
func (l *Log) Warnings() []Entry { return l.filter(Kind.IsWarning) }

// Information returns the information entries, in order.
func (l *Log) Information() []Entry { return l.filter(Kind.IsInformation) }

// HasFatal reports whether any fatal entry has been recorded. The matcher
// uses this to short-circuit traversal.
func (l *Log) HasFatal() bool {
	for _, e := range l.entries {
		if e.Kind.IsFatal() {
			return true
		}
	}
	return false
}

func (l *Log) filter(keep func(Kind) bool) []Entry {
	var out []Entry
	for _, e := range l.entries {
		if keep(e.Kind) {
			out = append(out, e)
		}
	}
	return out
}

// SuppressUnexpected removes, from every unexpected-file warning, the
// content items whose location-relative path or base name matches any of
// the given shell glob patterns. Entries left with no content are dropped
// entirely and returned so callers can audit what was suppressed.
func (l *Log) SuppressUnexpected(patterns []string, relativeTo string) []Entry {
	if len(patterns) == 0 {
		return nil
	}

	var removed []Entry
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.Kind != WarnUnexpectedFiles {
			kept = append(kept, e)
			continue
		}

		where := e.Where
		if relativeTo != "" {
			if rel, err := filepath.Rel(relativeTo, e.Where); err == nil {
				where = rel
			}
		}

		var remaining []string
		for _, file := range e.Content {
			if !matchesAny(path.Join(filepath.ToSlash(where), file), patterns) {
				remaining = append(remaining, file)
			}
		}

		if len(remaining) == 0 {
			removed = append(removed, e)
			continue
		}
		e.Content = remaining
		kept = append(kept, e)
	}
	l.entries = kept
	return removed
}

func matchesAny(name string, patterns []string) bool {
	base := path.Base(name)
	for _, pattern := range patterns {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
		// Patterns without a separator apply at any depth.
		if !strings.Contains(pattern, "/") {
			if ok, err := path.Match(pattern, base); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// Section headers for the rendered report, in the fixed output order.
const (
	fatalHeader   = "FATAL"
	warningHeader = "WARNINGS"
	infoHeader    = "INFORMATION"
)

// Render produces the plain-text report: the Fatal, Warnings, and
// Information sections in that order, each omitted when empty. Paths are
// rendered relative to relativeTo when provided.
func (l *Log) Render(relativeTo string) string {
	var b strings.Builder
	renderSection(&b, fatalHeader, l.Fatal(), relativeTo)
	renderSection(&b, warningHeader, l.Warnings(), relativeTo)
	renderSection(&b, infoHeader, l.Information(), relativeTo)
	return b.String()
}

func renderSection(b *strings.Builder, header string, entries []Entry, relativeTo string) {
	if len(entries) == 0 {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", len(header)))
	b.WriteString("\n")
	for _, e := range entries {
		b.WriteString(e.Render(relativeTo))
		b.WriteString("\n")
	}
}
