// Package dirtree models the expected directory structure of an assignment
// submission and owns the matcher that compares it against a real
// filesystem tree.
package dirtree

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Reserved keys inside a schema directory node. Every other key at the same
// level names a child directory.
const (
	compulsoryKey   = "compulsory"
	optionalKey     = "optional"
	dataPatternsKey = "data-file-types"
	gitRootKey      = "git-root"
	variableNameKey = "variable-name"
)

var reservedKeys = map[string]bool{
	compulsoryKey:   true,
	optionalKey:     true,
	dataPatternsKey: true,
	gitRootKey:      true,
	variableNameKey: true,
}

// Directory is one level of the expected submission tree. A Directory owns
// its subdirectories; the parent pointer is a non-owning back-reference
// used only to reconstruct paths.
type Directory struct {
	// Name is the expected directory name. For variable-named directories
	// it is a placeholder until the matcher binds it to a real name.
	Name string

	// NamePattern, when non-empty, is a shell glob the real directory name
	// must match. Its presence makes the directory variable-named.
	NamePattern string

	// Compulsory file basenames that must be present.
	Compulsory []string

	// Optional file basenames that are permitted but not required.
	Optional []string

	// DataPatterns are shell globs for permitted data files.
	DataPatterns []string

	// GitRoot marks this directory as the root of a clean git working
	// tree.
	GitRoot bool

	// Subdirs are the expected child directories, sorted by name.
	Subdirs []*Directory

	parent *Directory
}

// New builds a Directory tree from a decoded schema document (the nested
// structure produced by unmarshaling the assignment's JSON or YAML spec).
func New(name string, doc map[string]any) (*Directory, error) {
	return build(name, doc, nil)
}

func build(name string, doc map[string]any, parent *Directory) (*Directory, error) {
	d := &Directory{Name: name, parent: parent}

	var err error
	if d.Compulsory, err = stringList(doc, compulsoryKey); err != nil {
		return nil, fmt.Errorf("directory %q: %w", name, err)
	}
	if d.Optional, err = stringList(doc, optionalKey); err != nil {
		return nil, fmt.Errorf("directory %q: %w", name, err)
	}
	if d.DataPatterns, err = stringList(doc, dataPatternsKey); err != nil {
		return nil, fmt.Errorf("directory %q: %w", name, err)
	}

	if raw, ok := doc[gitRootKey]; ok && raw != nil {
		flag, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("directory %q: %s must be a boolean", name, gitRootKey)
		}
		d.GitRoot = flag
	}

	if raw, ok := doc[variableNameKey]; ok && raw != nil {
		pattern, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("directory %q: %s must be a string", name, variableNameKey)
		}
		d.NamePattern = pattern
	}

	childNames := make([]string, 0, len(doc))
	for key := range doc {
		if !reservedKeys[key] {
			childNames = append(childNames, key)
		}
	}
	sort.Strings(childNames)

	for _, childName := range childNames {
		childDoc, err := asDocument(doc[childName])
		if err != nil {
			return nil, fmt.Errorf("directory %q: child %q: %w", name, childName, err)
		}
		child, err := build(childName, childDoc, d)
		if err != nil {
			return nil, err
		}
		d.Subdirs = append(d.Subdirs, child)
	}

	return d, nil
}

// stringList reads an optional list-of-strings key, returning a sorted
// copy. A missing or null key yields an empty list.
func stringList(doc map[string]any, key string) ([]string, error) {
	raw, ok := doc[key]
	if !ok || raw == nil {
		return nil, nil
	}

	items, ok := raw.([]any)
	if !ok {
		if direct, ok := raw.([]string); ok {
			out := append([]string(nil), direct...)
			sort.Strings(out)
			return out, nil
		}
		return nil, fmt.Errorf("%s must be a list of strings", key)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a list of strings", key)
		}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// asDocument coerces a child value to a nested document. A null child is an
// empty directory.
func asDocument(raw any) (map[string]any, error) {
	if raw == nil {
		return map[string]any{}, nil
	}
	if doc, ok := raw.(map[string]any); ok {
		return doc, nil
	}
	return nil, fmt.Errorf("must be a mapping")
}

// VariableName reports whether this directory's name is bound from a
// pattern match rather than fixed.
func (d *Directory) VariableName() bool { return d.NamePattern != "" }

// IsDataDir reports whether the directory may contain data files with
// user-chosen names.
func (d *Directory) IsDataDir() bool { return len(d.DataPatterns) > 0 }

// IsOptional reports whether the whole directory is an optional part of the
// submission. Optionality propagates bottom-up: a directory is optional iff
// it has no compulsory files and every subdirectory is itself optional.
func (d *Directory) IsOptional() bool {
	if len(d.Compulsory) > 0 {
		return false
	}
	for _, sub := range d.Subdirs {
		if !sub.IsOptional() {
			return false
		}
	}
	return true
}

// Parent returns the owning directory, or nil for the root.
func (d *Directory) Parent() *Directory { return d.parent }

// PathFromRoot reconstructs this directory's path from the schema root,
// which is rendered as ".".
func (d *Directory) PathFromRoot() string {
	if d.parent == nil {
		return "."
	}
	return filepath.Join(d.parent.PathFromRoot(), d.Name)
}

// FixedNameSubdirs returns the children whose names are fixed.
func (d *Directory) FixedNameSubdirs() []*Directory {
	var out []*Directory
	for _, sub := range d.Subdirs {
		if !sub.VariableName() {
			out = append(out, sub)
		}
	}
	return out
}

// VariableNameSubdirs returns the children that must be matched by pattern.
func (d *Directory) VariableNameSubdirs() []*Directory {
	var out []*Directory
	for _, sub := range d.Subdirs {
		if sub.VariableName() {
			out = append(out, sub)
		}
	}
	return out
}

// Traverse visits this directory and then, depth-first, every directory
// below it.
func (d *Directory) Traverse(visit func(*Directory)) {
	visit(d)
	for _, sub := range d.Subdirs {
		sub.Traverse(visit)
	}
}

// Lookup resolves a slash-separated path relative to this directory.
func (d *Directory) Lookup(rel string) (*Directory, bool) {
	current := d
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			if current.parent == nil {
				return nil, false
			}
			current = current.parent
			continue
		}
		next := (*Directory)(nil)
		for _, sub := range current.Subdirs {
			if sub.Name == part {
				next = sub
				break
			}
		}
		if next == nil {
			return nil, false
		}
		current = next
	}
	return current, true
}

// Describe renders the expected structure as an indented listing, used when
// showing a spec to the submitter.
func (d *Directory) Describe() string {
	var b strings.Builder
	d.describe(&b, 0)
	return b.String()
}

func (d *Directory) describe(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	name := d.Name
	if d.VariableName() {
		name = d.NamePattern
	}
	b.WriteString(indent)
	b.WriteString(name + "/")
	if d.GitRoot {
		b.WriteString("  (git repository)")
	}
	b.WriteString("\n")

	for _, file := range d.Compulsory {
		fmt.Fprintf(b, "%s  %s\n", indent, file)
	}
	for _, file := range d.Optional {
		fmt.Fprintf(b, "%s  %s  [optional]\n", indent, file)
	}
	for _, pattern := range d.DataPatterns {
		fmt.Fprintf(b, "%s  %s  [data]\n", indent, pattern)
	}
	for _, sub := range d.Subdirs {
		sub.describe(b, depth+1)
	}
}
