package dirtree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/harrison/subcheck/internal/fileutil"
	"github.com/harrison/subcheck/internal/gitcheck"
	"github.com/harrison/subcheck/internal/logbook"
	"github.com/harrison/subcheck/internal/solver"
)

// DefaultMarkingBranch is the branch a submission repository must be left
// on for marking.
const DefaultMarkingBranch = "main"

// repoMetadataPatterns lists files commonly present at the root of a git
// repository. When a git-root directory contains files matching these
// (case-insensitively), they are treated as optional rather than
// unexpected.
var repoMetadataPatterns = []string{
	"README*",
	"LICENSE*",
	"*.ini",
	"*.in",
	"*.yaml",
	".gitignore",
}

// CheckOptions configures a matcher run.
type CheckOptions struct {
	// Git inspects repositories. Nil means use the real git binary.
	Git *gitcheck.Inspector

	// MarkingBranch is the branch submissions are marked on. Empty means
	// DefaultMarkingBranch.
	MarkingBranch string

	// FallbackBranches are tried, in order, when the marking branch does
	// not exist in a submission repository.
	FallbackBranches []string

	// SuppressNameBinding prevents variable-named directories from
	// inheriting the matched filesystem name. Speculative probes set this
	// so no binding leaks from one candidate to the next.
	SuppressNameBinding bool

	// probing marks a speculative run of the matcher against a wildcard
	// candidate. Probes skip the variable-name sub-protocol so candidate
	// evaluation cannot recurse into further wildcard matching.
	probing bool
}

func (o CheckOptions) withDefaults() CheckOptions {
	if o.Git == nil {
		o.Git = gitcheck.NewInspector()
	}
	if o.MarkingBranch == "" {
		o.MarkingBranch = DefaultMarkingBranch
	}
	return o
}

// CheckAgainst compares the expected structure rooted at d with the real
// directory at path, returning the log of findings.
//
// Fatal findings are reported as log entries and short-circuit the
// remainder of the check; the returned error is reserved for environmental
// failures (unreadable directories, a broken git installation) where
// checking cannot meaningfully continue.
func (d *Directory) CheckAgainst(ctx context.Context, path string, opts CheckOptions) (*logbook.Log, error) {
	return d.check(ctx, path, opts.withDefaults())
}

func (d *Directory) check(ctx context.Context, path string, opts CheckOptions) (*logbook.Log, error) {
	log := logbook.New(path)

	// Phase 1: the path must exist and be a directory.
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		log.Add(logbook.FatalNotADirectory)
		return log, nil
	}

	// Phase 2: the directory name must agree with the schema.
	if stop := d.checkName(path, opts, log); stop {
		return log, nil
	}

	// Phase 3: git repository state.
	stop, err := d.checkGit(ctx, path, opts, log)
	if err != nil {
		return log, err
	}
	if stop {
		return log, nil
	}

	// Phase 4: files immediately inside the directory.
	if err := d.checkFiles(path, log); err != nil {
		return log, err
	}

	// Phase 5: fixed-name subdirectories.
	stop, err = d.checkFixedSubdirs(ctx, path, opts, log)
	if err != nil || stop {
		return log, err
	}

	// Phase 6: variable-named subdirectories. Skipped while probing so a
	// candidate evaluation cannot trigger nested wildcard matching.
	if !opts.probing && len(d.VariableNameSubdirs()) > 0 {
		if err := d.checkVariableSubdirs(ctx, path, opts, log); err != nil {
			return log, err
		}
	}

	return log, nil
}

// checkName verifies the basename of path against the fixed name or the
// name pattern, binding the pattern match unless suppressed. Returns true
// when a fatal mismatch was recorded.
func (d *Directory) checkName(path string, opts CheckOptions, log *logbook.Log) bool {
	base := filepath.Base(path)

	if !d.VariableName() {
		if base != d.Name {
			log.Add(logbook.FatalNameMismatch, d.Name)
			return true
		}
		return false
	}

	if !fileutil.Match(base, d.NamePattern) {
		log.Add(logbook.FatalPatternMismatch, d.NamePattern)
		return true
	}
	if !opts.SuppressNameBinding && d.Name != base {
		d.Name = base
		log.Add(logbook.InfoMatchedName, d.NamePattern)
	}
	return false
}

// checkGit enforces the git-root flag: a git-root directory must hold a
// clean repository left on an acceptable branch, and a non-git-root
// directory must not hold a repository at all. Returns stop=true when a
// fatal entry was recorded.
func (d *Directory) checkGit(ctx context.Context, path string, opts CheckOptions, log *logbook.Log) (bool, error) {
	isRepo := opts.Git.IsRepository(ctx, path)

	if !d.GitRoot {
		if isRepo {
			log.Add(logbook.FatalUnexpectedRepository)
			return true, nil
		}
		return false, nil
	}

	if !isRepo {
		log.Add(logbook.FatalNoRepository)
		return true, nil
	}

	status, err := opts.Git.WorkingTreeStatus(ctx, path)
	if err != nil {
		return false, err
	}
	// Dirty-state priority: untracked beats unstaged beats uncommitted;
	// only the first non-empty category is reported.
	switch {
	case len(status.Untracked) > 0:
		log.Add(logbook.FatalUntrackedChanges, status.Untracked...)
		return true, nil
	case len(status.Unstaged) > 0:
		log.Add(logbook.FatalUnstagedChanges, status.Unstaged...)
		return true, nil
	case len(status.Uncommitted) > 0:
		log.Add(logbook.FatalUncommittedChanges, status.Uncommitted...)
		return true, nil
	}

	outcome, err := opts.Git.EnsureMarkingBranch(ctx, path, opts.MarkingBranch, opts.FallbackBranches)
	if err != nil {
		var branchErr *gitcheck.BranchError
		if errors.As(err, &branchErr) {
			switch branchErr.Reason {
			case gitcheck.CheckoutFailed:
				log.Add(logbook.FatalCheckoutFailed, branchErr.Branch)
			default:
				log.Add(logbook.FatalNoValidBranch, opts.MarkingBranch)
			}
			return true, nil
		}
		return false, err
	}

	switch outcome.Notice {
	case gitcheck.SwitchedToMarkingBranch:
		log.Add(logbook.WarnNotOnMarkingBranch, opts.MarkingBranch)
	case gitcheck.UsedFallbackBranch:
		log.Add(logbook.WarnFallbackBranch, outcome.Branch)
	}
	return false, nil
}

// checkFiles classifies the files immediately inside path as missing,
// unexpected, or optional, and records the corresponding findings.
func (d *Directory) checkFiles(path string, log *logbook.Log) error {
	files, _, err := fileutil.ListSplit(path)
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
	}

	var missing []string
	for _, f := range d.Compulsory {
		if !present[f] {
			missing = append(missing, f)
		}
	}

	expected := make(map[string]bool, len(d.Compulsory)+len(d.Optional))
	for _, f := range d.Compulsory {
		expected[f] = true
	}
	for _, f := range d.Optional {
		expected[f] = true
	}

	var unexpected, optionalFound []string
	for _, f := range files {
		switch {
		case expected[f]:
			if !contains(d.Compulsory, f) {
				optionalFound = append(optionalFound, f)
			}
		case fileutil.MatchAny(f, d.DataPatterns):
			optionalFound = append(optionalFound, f)
		case d.GitRoot && fileutil.MatchAnyFold(f, repoMetadataPatterns):
			// Repository housekeeping files are tolerated at a git root.
			optionalFound = append(optionalFound, f)
		default:
			unexpected = append(unexpected, f)
		}
	}

	if len(missing) > 0 {
		log.Add(logbook.WarnMissingFiles, missing...)
	}
	if len(unexpected) > 0 {
		log.Add(logbook.WarnUnexpectedFiles, unexpected...)
	}
	if len(optionalFound) > 0 {
		log.Add(logbook.InfoOptionalFiles, optionalFound...)
	}
	return nil
}

// checkFixedSubdirs locates and recurses into every fixed-name child.
// Returns stop=true when a fatal entry was recorded, either here (a
// compulsory child is missing) or by a recursive check.
func (d *Directory) checkFixedSubdirs(ctx context.Context, path string, opts CheckOptions, log *logbook.Log) (bool, error) {
	for _, child := range d.FixedNameSubdirs() {
		childPath := filepath.Join(path, child.Name)

		info, err := os.Stat(childPath)
		if err != nil || !info.IsDir() {
			if child.IsOptional() {
				log.Add(logbook.InfoOptionalDirAbsent, child.Name)
				continue
			}
			log.Add(logbook.FatalMissingSubdir, child.Name)
			return true, nil
		}

		sub, err := child.check(ctx, childPath, opts)
		if err != nil {
			return false, err
		}
		log.Include(sub)
		if sub.HasFatal() {
			return true, nil
		}
	}
	return false, nil
}

// checkVariableSubdirs runs the wildcard matching sub-protocol: it probes
// every unclaimed filesystem subdirectory against every variable-named
// child, asks the solver for a bijection under progressively relaxed
// strictness, and recurses into the matched directories.
func (d *Directory) checkVariableSubdirs(ctx context.Context, path string, opts CheckOptions, log *logbook.Log) error {
	children := d.VariableNameSubdirs()

	_, dirs, err := fileutil.ListSplit(path)
	if err != nil {
		return err
	}
	claimed := make(map[string]bool)
	for _, fixed := range d.FixedNameSubdirs() {
		claimed[fixed.Name] = true
	}
	var candidates []string
	for _, dir := range dirs {
		if !claimed[dir] {
			candidates = append(candidates, dir)
		}
	}

	// Probe every (child, candidate) pair with binding suppressed. A probe
	// is strict when it produced neither fatal entries nor warnings, and
	// lenient when it was merely fatal-free.
	probeOpts := opts
	probeOpts.SuppressNameBinding = true
	probeOpts.probing = true

	strictComp := map[string][]string{}
	lenientComp := map[string][]string{}
	strictOpt := map[string][]string{}
	lenientOpt := map[string][]string{}

	keys := make([]string, len(children))
	byKey := make(map[string]*Directory, len(children))
	for i, child := range children {
		key := fmt.Sprintf("%03d:%s", i, child.NamePattern)
		keys[i] = key
		byKey[key] = child

		var strict, lenient []string
		for _, candidate := range candidates {
			probe, err := child.check(ctx, filepath.Join(path, candidate), probeOpts)
			if err != nil {
				return err
			}
			if probe.HasFatal() {
				continue
			}
			lenient = append(lenient, candidate)
			if len(probe.Warnings()) == 0 {
				strict = append(strict, candidate)
			}
		}

		if child.IsOptional() {
			strictOpt[key] = strict
			lenientOpt[key] = lenient
		} else {
			strictComp[key] = strict
			lenientComp[key] = lenient
		}
	}

	matches, unmatched := resolveAssignments(strictComp, lenientComp, strictOpt, lenientOpt)

	if len(matches) > 0 {
		var lines []string
		for key, dir := range matches {
			lines = append(lines, fmt.Sprintf("%s -> %s", byKey[key].NamePattern, dir))
		}
		log.Add(logbook.InfoMatchedPatterns, lines...)
	}

	var fatalPatterns, optionalPatterns []string
	for _, key := range unmatched {
		child := byKey[key]
		if child.IsOptional() {
			optionalPatterns = append(optionalPatterns, child.NamePattern)
		} else {
			fatalPatterns = append(fatalPatterns, child.NamePattern)
		}
	}
	if len(fatalPatterns) > 0 {
		log.Add(logbook.FatalUnmatchedPatterns, fatalPatterns...)
		return nil
	}
	if len(optionalPatterns) > 0 {
		log.Add(logbook.InfoOptionalPatternsAbsent, optionalPatterns...)
	}

	// Recurse into the matched directories in a stable order, this time
	// with name binding permitted.
	matchedKeys := make([]string, 0, len(matches))
	for key := range matches {
		matchedKeys = append(matchedKeys, key)
	}
	sort.Strings(matchedKeys)

	for _, key := range matchedKeys {
		child := byKey[key]
		sub, err := child.check(ctx, filepath.Join(path, matches[key]), opts)
		if err != nil {
			return err
		}
		log.Include(sub)
		if sub.HasFatal() {
			return nil
		}
	}
	return nil
}

// resolveAssignments attempts the bijection in four passes from most to
// least strict, then falls back to matching the compulsory children alone.
// It returns the matched key->directory assignments and the keys left
// unmatched.
//
// Two optional wildcard directories with identical internal structure are
// genuinely ambiguous; whichever valid bijection the solver settles on is
// accepted.
func resolveAssignments(strictComp, lenientComp, strictOpt, lenientOpt map[string][]string) (map[string]string, []string) {
	passes := []struct {
		comp map[string][]string
		opt  map[string][]string
	}{
		{strictComp, strictOpt},
		{strictComp, lenientOpt},
		{lenientComp, strictOpt},
		{lenientComp, lenientOpt},
	}

	for _, pass := range passes {
		if result, ok := solver.Solve(merge(pass.comp, pass.opt)); ok {
			return result, nil
		}
	}

	// The full set cannot be bijected; keep the compulsory matches if
	// those at least work, reporting every optional child unmatched.
	unmatchedOpt := sortedMapKeys(strictOpt)
	if result, ok := solver.Solve(strictComp); ok {
		return result, unmatchedOpt
	}
	if result, ok := solver.Solve(lenientComp); ok {
		return result, unmatchedOpt
	}

	// Not even the compulsory children can be matched.
	return nil, append(sortedMapKeys(strictComp), unmatchedOpt...)
}

func merge(a, b map[string][]string) map[string][]string {
	out := make(map[string][]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func sortedMapKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
