package assignment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/harrison/subcheck/internal/archive"
	"github.com/harrison/subcheck/internal/dirtree"
	"github.com/harrison/subcheck/internal/fileutil"
	"github.com/harrison/subcheck/internal/gitcheck"
	"github.com/harrison/subcheck/internal/logbook"
	"github.com/harrison/subcheck/internal/scratch"
)

// CheckOptions configure a submission check.
type CheckOptions struct {
	// Git inspects repositories found in the submission. Defaults to a new
	// inspector running the real git binary.
	Git *gitcheck.Inspector

	// FallbackBranches are tried in order when the marking branch is
	// absent.
	FallbackBranches []string

	// IgnorePatterns are globs for unexpected files that should not be
	// reported.
	IgnorePatterns []string

	// KeepScratch leaves the staging workspace on disk for inspection.
	KeepScratch bool
}

// Result carries the outcome of a submission check.
type Result struct {
	// Log is the diagnostic log after suppression.
	Log *logbook.Log

	// Suppressed lists unexpected-file entries removed by IgnorePatterns.
	Suppressed []logbook.Entry

	// SubmissionRoot is the directory inside the workspace the check ran
	// against.
	SubmissionRoot string

	// TopLevelFiles are stray files found next to the submission root
	// after staging.
	TopLevelFiles []string

	// ScratchPath is set when the workspace was kept on disk.
	ScratchPath string
}

// Outcome summarises the log: "fatal", "warning" or "pass".
func (r *Result) Outcome() string {
	switch {
	case r.Log.HasFatal():
		return "fatal"
	case len(r.Log.Warnings()) > 0:
		return "warning"
	default:
		return "pass"
	}
}

// CheckSubmission validates a submission, given as either an archive file
// or a directory, against the assignment's expected structure. The
// submission is staged into a scratch workspace first so git checkouts and
// other mutations never touch the student's copy.
//
// An error reports a failure of the checking machinery itself; problems
// with the submission are entries in the returned Result's log.
func (a *Assignment) CheckSubmission(ctx context.Context, submission string, opts CheckOptions) (*Result, error) {
	ws, err := scratch.New("subcheck")
	if err != nil {
		return nil, err
	}
	keep := opts.KeepScratch
	defer func() {
		if !keep {
			ws.Remove()
		}
	}()

	if err := stage(submission, ws.Path); err != nil {
		return nil, err
	}

	root, strayFiles, err := findSubmissionRoot(ws.Path)
	if err != nil {
		return nil, err
	}

	log, err := a.Structure.CheckAgainst(ctx, root, dirtree.CheckOptions{
		Git:              opts.Git,
		MarkingBranch:    a.MarkingBranch(),
		FallbackBranches: opts.FallbackBranches,
	})
	if err != nil {
		return nil, err
	}

	suppressed := log.SuppressUnexpected(opts.IgnorePatterns, ws.Path)

	result := &Result{
		Log:            log,
		Suppressed:     suppressed,
		SubmissionRoot: root,
		TopLevelFiles:  strayFiles,
	}
	if keep {
		result.ScratchPath = ws.Path
	}
	return result, nil
}

// stage copies or extracts the submission into the workspace.
func stage(submission, workspace string) error {
	info, err := os.Stat(submission)
	if err != nil {
		return fmt.Errorf("cannot read submission %s: %w", submission, err)
	}
	if info.IsDir() {
		_, err := fileutil.CopyTree(submission, workspace, true)
		if err != nil {
			return fmt.Errorf("failed to stage submission: %w", err)
		}
		return nil
	}
	if !archive.Supported(submission) {
		return fmt.Errorf("submission %s is neither a directory nor a supported archive", submission)
	}
	return archive.Extract(submission, workspace)
}

// findSubmissionRoot locates the single submission directory inside the
// staged workspace. Hidden directories (OS metadata an archiver slipped in)
// are tolerated as long as exactly one visible directory remains.
func findSubmissionRoot(workspace string) (root string, strayFiles []string, err error) {
	files, dirs, err := fileutil.ListSplit(workspace)
	if err != nil {
		return "", nil, fmt.Errorf("failed to list staged submission: %w", err)
	}
	strayFiles = files

	var visible []string
	for _, dir := range dirs {
		if !strings.HasPrefix(dir, ".") && dir != "__MACOSX" {
			visible = append(visible, dir)
		}
	}
	switch len(visible) {
	case 0:
		return "", nil, fmt.Errorf("staging the submission produced no directory")
	case 1:
		return filepath.Join(workspace, visible[0]), strayFiles, nil
	default:
		return "", nil, fmt.Errorf("submission has multiple top-level directories: %s",
			strings.Join(visible, ", "))
	}
}

// NameNotice describes a problem with how the submission file is named.
type NameNotice struct {
	Title  string
	Detail string
}

// candidateNumberLength is the number of digits in a candidate number.
const candidateNumberLength = 8

// CheckSubmissionName verifies that the submission is named with the
// student's candidate number: eight digits, optionally followed only by
// archive extensions. A nil return means the name is acceptable. When
// expected is non-empty the inferred candidate number must match it.
func CheckSubmissionName(submission, expected string) *NameNotice {
	base := filepath.Base(submission)
	stem := base
	if i := strings.IndexByte(base, '.'); i >= 0 {
		stem = base[:i]
	}

	if len(stem) != candidateNumberLength || !allDigits(stem) {
		return &NameNotice{
			Title: fmt.Sprintf("submission is named %q: this is not an 8-digit number", stem),
			Detail: "The submission should be named with your candidate number " +
				"(8 digits) and no further characters.",
		}
	}
	if expected != "" && stem != expected {
		return &NameNotice{
			Title: "submission name and candidate number do not match",
			Detail: fmt.Sprintf("Submission is named %s but your candidate number is %s.",
				stem, expected),
		}
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
