// Package gitcheck inspects the state of git repositories inside a
// submission. All operations shell out to the git binary; a CommandRunner
// can be injected to fake git in tests.
package gitcheck

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// CommandRunner executes a git command in a working directory and returns
// its combined output.
type CommandRunner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// execRunner runs git for real via os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// Status partitions the dirty state of a working tree. A zero Status means
// the tree is clean.
type Status struct {
	// Untracked files are present on disk but unknown to git.
	Untracked []string

	// Unstaged files have modifications not yet added to the index.
	Unstaged []string

	// Uncommitted files are staged in the index but not committed.
	Uncommitted []string
}

// IsClean reports whether all three categories are empty.
func (s Status) IsClean() bool {
	return len(s.Untracked) == 0 && len(s.Unstaged) == 0 && len(s.Uncommitted) == 0
}

// BranchNotice describes the acceptable outcomes of reconciling a
// repository onto the marking branch.
type BranchNotice int

const (
	// OnMarkingBranch means the repository was already checked out on the
	// marking branch; nothing was changed.
	OnMarkingBranch BranchNotice = iota

	// SwitchedToMarkingBranch means the marking branch existed but was not
	// checked out; it has been now.
	SwitchedToMarkingBranch

	// UsedFallbackBranch means the marking branch does not exist and one of
	// the fallback names was checked out instead.
	UsedFallbackBranch
)

// BranchOutcome reports how branch reconciliation concluded.
type BranchOutcome struct {
	Notice BranchNotice

	// Branch is the branch the repository was left on.
	Branch string
}

// BranchFailure distinguishes the fatal branch reconciliation outcomes.
type BranchFailure int

const (
	// NoValidBranch means neither the marking branch nor any fallback
	// exists in the repository.
	NoValidBranch BranchFailure = iota

	// CheckoutFailed means a suitable branch exists but could not be
	// checked out.
	CheckoutFailed
)

// BranchError is returned when a repository cannot be left on an acceptable
// branch.
type BranchError struct {
	Reason BranchFailure

	// Branch is the branch involved, when one was identified.
	Branch string

	// Err is the underlying git failure for CheckoutFailed.
	Err error
}

func (e *BranchError) Error() string {
	switch e.Reason {
	case CheckoutFailed:
		return fmt.Sprintf("could not checkout branch %q: %v", e.Branch, e.Err)
	default:
		return "no valid branch to mark: marking branch and all fallbacks are missing"
	}
}

func (e *BranchError) Unwrap() error { return e.Err }

// Inspector checks repository presence, working tree cleanliness, and
// branch state for submission directories.
type Inspector struct {
	// Runner executes git commands. Nil means run the real git binary.
	Runner CommandRunner
}

// NewInspector creates an Inspector that runs the real git binary.
func NewInspector() *Inspector {
	return &Inspector{}
}

// NewInspectorWithRunner creates an Inspector with an injected runner.
// Useful for testing.
func NewInspectorWithRunner(runner CommandRunner) *Inspector {
	return &Inspector{Runner: runner}
}

func (i *Inspector) run(ctx context.Context, dir string, args ...string) (string, error) {
	if i.Runner != nil {
		return i.Runner.Run(ctx, dir, args...)
	}
	return execRunner{}.Run(ctx, dir, args...)
}

// IsRepository reports whether a valid repository metadata store exists at
// path itself. Parent directories are deliberately not searched: a
// repository rooted above the checked directory does not count.
func (i *Inspector) IsRepository(ctx context.Context, path string) bool {
	gitDir := filepath.Join(path, ".git")
	if _, err := os.Stat(gitDir); err != nil {
		return false
	}
	// Confirm the metadata store is actually usable, not just a stray
	// .git entry.
	_, err := i.run(ctx, path, "rev-parse", "--git-dir")
	return err == nil
}

// WorkingTreeStatus partitions the dirty state of the repository at path
// using the porcelain status format.
func (i *Inspector) WorkingTreeStatus(ctx context.Context, path string) (Status, error) {
	output, err := i.run(ctx, path, "status", "--porcelain")
	if err != nil {
		return Status{}, fmt.Errorf("failed to read repository status at %s: %w", path, err)
	}
	return parsePorcelain(output), nil
}

// parsePorcelain splits `git status --porcelain` lines into the three dirty
// categories. Each line is "XY path" where X is the index state and Y the
// working tree state.
func parsePorcelain(output string) Status {
	var status Status
	for _, line := range strings.Split(output, "\n") {
		if len(line) < 4 {
			continue
		}
		index, worktree, name := line[0], line[1], strings.TrimSpace(line[3:])
		// Renames keep "old -> new"; the new path is the one that matters.
		if idx := strings.Index(name, " -> "); idx >= 0 {
			name = name[idx+4:]
		}

		switch {
		case index == '?' && worktree == '?':
			status.Untracked = append(status.Untracked, name)
		default:
			if worktree != ' ' {
				status.Unstaged = append(status.Unstaged, name)
			}
			if index != ' ' {
				status.Uncommitted = append(status.Uncommitted, name)
			}
		}
	}
	sort.Strings(status.Untracked)
	sort.Strings(status.Unstaged)
	sort.Strings(status.Uncommitted)
	return status
}

// EnsureMarkingBranch leaves the repository at path checked out on the
// marking branch if possible, or on the first existing fallback branch
// otherwise.
//
// Already being on the marking branch succeeds silently. If the marking
// branch exists elsewhere it is checked out and the outcome says so. If it
// does not exist, the fallbacks are tried in order. A *BranchError is
// returned when no acceptable branch exists or a checkout fails.
func (i *Inspector) EnsureMarkingBranch(ctx context.Context, path, marking string, fallbacks []string) (BranchOutcome, error) {
	current, err := i.run(ctx, path, "branch", "--show-current")
	if err != nil {
		return BranchOutcome{}, fmt.Errorf("failed to read current branch at %s: %w", path, err)
	}
	if strings.TrimSpace(current) == marking {
		return BranchOutcome{Notice: OnMarkingBranch, Branch: marking}, nil
	}

	if i.branchExists(ctx, path, marking) {
		if err := i.checkout(ctx, path, marking); err != nil {
			return BranchOutcome{}, err
		}
		return BranchOutcome{Notice: SwitchedToMarkingBranch, Branch: marking}, nil
	}

	for _, fallback := range fallbacks {
		if !i.branchExists(ctx, path, fallback) {
			continue
		}
		if err := i.checkout(ctx, path, fallback); err != nil {
			return BranchOutcome{}, err
		}
		return BranchOutcome{Notice: UsedFallbackBranch, Branch: fallback}, nil
	}

	return BranchOutcome{}, &BranchError{Reason: NoValidBranch}
}

func (i *Inspector) branchExists(ctx context.Context, path, name string) bool {
	_, err := i.run(ctx, path, "rev-parse", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

func (i *Inspector) checkout(ctx context.Context, path, name string) error {
	if _, err := i.run(ctx, path, "checkout", name); err != nil {
		return &BranchError{Reason: CheckoutFailed, Branch: name, Err: err}
	}
	return nil
}

// FindRepository walks the tree below root depth-first and returns the
// first directory containing repository metadata. Used by setup and test
// tooling, not by the matcher itself.
func (i *Inspector) FindRepository(root string) (string, bool) {
	var found string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || found != "" {
			return fs.SkipAll
		}
		if d.IsDir() {
			if _, statErr := os.Stat(filepath.Join(path, ".git")); statErr == nil {
				found = path
				return fs.SkipAll
			}
		}
		return nil
	})
	return found, found != ""
}

// Clone clones the repository at url into a new directory beneath dest and
// returns the local repository path. All remote branches are fetched and
// the remote's default branch is left checked out.
func (i *Inspector) Clone(ctx context.Context, url, dest string) (string, error) {
	if _, err := i.run(ctx, dest, "clone", "--no-single-branch", url); err != nil {
		return "", fmt.Errorf("failed to clone %s: %w", url, err)
	}

	name := strings.TrimSuffix(filepath.Base(strings.TrimSuffix(url, "/")), ".git")
	local := filepath.Join(dest, name)
	if _, err := os.Stat(local); err != nil {
		// Fall back to scanning for whatever directory the clone created.
		if found, ok := i.FindRepository(dest); ok {
			return found, nil
		}
		return "", fmt.Errorf("clone of %s produced no repository under %s", url, dest)
	}
	return local, nil
}
