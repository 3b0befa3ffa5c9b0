package dirtree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/subcheck/internal/gitcheck"
	"github.com/harrison/subcheck/internal/logbook"
)

// scriptedGit fakes the git binary for matcher tests.
type scriptedGit struct {
	responses map[string]string
	failures  map[string]error
	calls     []string
}

func (s *scriptedGit) Run(_ context.Context, _ string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	s.calls = append(s.calls, key)
	if err, ok := s.failures[key]; ok {
		return "", err
	}
	if out, ok := s.responses[key]; ok {
		return out, nil
	}
	return "", fmt.Errorf("unscripted git command: %s", key)
}

func (s *scriptedGit) called(key string) bool {
	for _, call := range s.calls {
		if call == key {
			return true
		}
	}
	return false
}

// cleanRepoGit scripts a clean repository already on the marking branch.
func cleanRepoGit() *scriptedGit {
	return &scriptedGit{responses: map[string]string{
		"rev-parse --git-dir":   ".git\n",
		"status --porcelain":    "",
		"branch --show-current": "main\n",
	}}
}

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
}

func touch(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, f), []byte("content\n"), 0o644))
	}
}

func kinds(entries []logbook.Entry) []logbook.Kind {
	out := make([]logbook.Kind, len(entries))
	for i, e := range entries {
		out[i] = e.Kind
	}
	return out
}

func TestCheckNotADirectory(t *testing.T) {
	root, err := New("submission", map[string]any{})
	require.NoError(t, err)

	log, err := root.CheckAgainst(context.Background(), filepath.Join(t.TempDir(), "absent"), CheckOptions{})
	require.NoError(t, err)
	require.Len(t, log.Entries(), 1)
	assert.Equal(t, logbook.FatalNotADirectory, log.Entries()[0].Kind)
}

func TestCheckFixedNameMismatch(t *testing.T) {
	root, err := New("submission", map[string]any{})
	require.NoError(t, err)

	work := t.TempDir()
	mkdirs(t, work, "wrong-name")

	log, err := root.CheckAgainst(context.Background(), filepath.Join(work, "wrong-name"), CheckOptions{})
	require.NoError(t, err)
	require.True(t, log.HasFatal())
	assert.Equal(t, logbook.FatalNameMismatch, log.Fatal()[0].Kind)
	assert.Equal(t, []string{"submission"}, log.Fatal()[0].Content)
}

func TestCheckPatternMismatch(t *testing.T) {
	root, err := New("candidate", map[string]any{"variable-name": "cand-????"})
	require.NoError(t, err)

	work := t.TempDir()
	mkdirs(t, work, "wrong")

	log, err := root.CheckAgainst(context.Background(), filepath.Join(work, "wrong"), CheckOptions{})
	require.NoError(t, err)
	require.True(t, log.HasFatal())
	assert.Equal(t, logbook.FatalPatternMismatch, log.Fatal()[0].Kind)
}

func TestCheckBindsVariableName(t *testing.T) {
	root, err := New("candidate", map[string]any{"variable-name": "cand-*"})
	require.NoError(t, err)

	work := t.TempDir()
	mkdirs(t, work, "cand-1234")

	log, err := root.CheckAgainst(context.Background(), filepath.Join(work, "cand-1234"), CheckOptions{})
	require.NoError(t, err)
	assert.False(t, log.HasFatal())
	assert.Equal(t, "cand-1234", root.Name)
	require.Len(t, log.Information(), 1)
	assert.Equal(t, logbook.InfoMatchedName, log.Information()[0].Kind)
}

// Probing the same node against several candidates with binding suppressed
// must leave the placeholder name untouched.
func TestCheckNameBindingSuppressed(t *testing.T) {
	root, err := New("candidate", map[string]any{"variable-name": "cand-*"})
	require.NoError(t, err)

	work := t.TempDir()
	mkdirs(t, work, "cand-1", "cand-2", "cand-3")

	for _, dir := range []string{"cand-1", "cand-2", "cand-3"} {
		log, err := root.CheckAgainst(context.Background(), filepath.Join(work, dir), CheckOptions{SuppressNameBinding: true})
		require.NoError(t, err)
		assert.False(t, log.HasFatal())
		assert.Empty(t, log.Information())
	}
	assert.Equal(t, "candidate", root.Name)
}

func TestCheckFileClassification(t *testing.T) {
	root, err := New("submission", map[string]any{
		"compulsory":      []any{"c1.py", "c2.py"},
		"optional":        []any{"notes.md"},
		"data-file-types": []any{"*.csv"},
	})
	require.NoError(t, err)

	work := t.TempDir()
	sub := filepath.Join(work, "submission")
	mkdirs(t, work, "submission")
	touch(t, sub, "c1.py", "notes.md", "data.csv", "junk.txt")

	log, err := root.CheckAgainst(context.Background(), sub, CheckOptions{})
	require.NoError(t, err)
	assert.False(t, log.HasFatal())

	warnings := log.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, logbook.WarnMissingFiles, warnings[0].Kind)
	assert.Equal(t, []string{"c2.py"}, warnings[0].Content)
	assert.Equal(t, logbook.WarnUnexpectedFiles, warnings[1].Kind)
	assert.Equal(t, []string{"junk.txt"}, warnings[1].Content)

	infos := log.Information()
	require.Len(t, infos, 1)
	assert.Equal(t, logbook.InfoOptionalFiles, infos[0].Kind)
	assert.Equal(t, []string{"data.csv", "notes.md"}, infos[0].Content)
}

func TestCheckGitRootMetadataAllowlist(t *testing.T) {
	root, err := New("repo", map[string]any{
		"git-root":   true,
		"compulsory": []any{"main.py"},
	})
	require.NoError(t, err)

	work := t.TempDir()
	repo := filepath.Join(work, "repo")
	mkdirs(t, work, "repo", "repo/.git")
	touch(t, repo, "main.py", "README.md", ".gitignore", "setup.ini")

	log, err := root.CheckAgainst(context.Background(), repo, CheckOptions{Git: gitcheck.NewInspectorWithRunner(cleanRepoGit())})
	require.NoError(t, err)
	assert.False(t, log.HasFatal())
	assert.Empty(t, log.Warnings())

	infos := log.Information()
	require.Len(t, infos, 1)
	assert.Equal(t, []string{".gitignore", "README.md", "setup.ini"}, infos[0].Content)
}

func TestCheckUnexpectedRepositoryIsFatal(t *testing.T) {
	root, err := New("submission", map[string]any{})
	require.NoError(t, err)

	work := t.TempDir()
	mkdirs(t, work, "submission", "submission/.git")

	git := gitcheck.NewInspectorWithRunner(cleanRepoGit())
	log, err := root.CheckAgainst(context.Background(), filepath.Join(work, "submission"), CheckOptions{Git: git})
	require.NoError(t, err)
	require.True(t, log.HasFatal())
	assert.Equal(t, logbook.FatalUnexpectedRepository, log.Fatal()[0].Kind)
}

func TestCheckMissingRepositoryIsFatal(t *testing.T) {
	root, err := New("submission", map[string]any{"git-root": true})
	require.NoError(t, err)

	work := t.TempDir()
	mkdirs(t, work, "submission")

	log, err := root.CheckAgainst(context.Background(), filepath.Join(work, "submission"), CheckOptions{})
	require.NoError(t, err)
	require.True(t, log.HasFatal())
	assert.Equal(t, logbook.FatalNoRepository, log.Fatal()[0].Kind)
}

// A working tree with both untracked and unstaged changes reports only the
// untracked fatal.
func TestCheckGitDirtyStatePriority(t *testing.T) {
	root, err := New("repo", map[string]any{"git-root": true})
	require.NoError(t, err)

	work := t.TempDir()
	mkdirs(t, work, "repo", "repo/.git")

	git := &scriptedGit{responses: map[string]string{
		"rev-parse --git-dir": ".git\n",
		"status --porcelain":  "?? stray.txt\n M modified.py\n",
	}}
	log, err := root.CheckAgainst(context.Background(), filepath.Join(work, "repo"), CheckOptions{Git: gitcheck.NewInspectorWithRunner(git)})
	require.NoError(t, err)

	require.Len(t, log.Fatal(), 1)
	assert.Equal(t, logbook.FatalUntrackedChanges, log.Fatal()[0].Kind)
	assert.Equal(t, []string{"stray.txt"}, log.Fatal()[0].Content)
}

// End-to-end: a clean repository on main containing exactly main.py
// produces no fatal entries and no warnings.
func TestCheckCleanSubmissionOnMain(t *testing.T) {
	root, err := New("submission", map[string]any{
		"git-root":   true,
		"compulsory": []any{"main.py"},
	})
	require.NoError(t, err)

	work := t.TempDir()
	sub := filepath.Join(work, "submission")
	mkdirs(t, work, "submission", "submission/.git")
	touch(t, sub, "main.py")

	git := cleanRepoGit()
	log, err := root.CheckAgainst(context.Background(), sub, CheckOptions{Git: gitcheck.NewInspectorWithRunner(git)})
	require.NoError(t, err)

	assert.Empty(t, log.Fatal())
	assert.Empty(t, log.Warnings())
	// Already on main: no checkout should have happened.
	assert.False(t, git.called("checkout main"))
}

// End-to-end: repository left on dev, main exists. One warning, no fatal,
// repository switched onto main.
func TestCheckSubmissionSwitchedToMain(t *testing.T) {
	root, err := New("submission", map[string]any{
		"git-root":   true,
		"compulsory": []any{"main.py"},
	})
	require.NoError(t, err)

	work := t.TempDir()
	sub := filepath.Join(work, "submission")
	mkdirs(t, work, "submission", "submission/.git")
	touch(t, sub, "main.py")

	git := &scriptedGit{responses: map[string]string{
		"rev-parse --git-dir":                        ".git\n",
		"status --porcelain":                         "",
		"branch --show-current":                      "dev\n",
		"rev-parse --verify --quiet refs/heads/main": "abc123\n",
		"checkout main":                              "",
	}}
	log, err := root.CheckAgainst(context.Background(), sub, CheckOptions{
		Git:              gitcheck.NewInspectorWithRunner(git),
		FallbackBranches: []string{"master"},
	})
	require.NoError(t, err)

	assert.Empty(t, log.Fatal())
	require.Len(t, log.Warnings(), 1)
	assert.Equal(t, logbook.WarnNotOnMarkingBranch, log.Warnings()[0].Kind)
	assert.True(t, git.called("checkout main"))
}

func TestCheckNoValidBranchIsFatal(t *testing.T) {
	root, err := New("repo", map[string]any{"git-root": true})
	require.NoError(t, err)

	work := t.TempDir()
	mkdirs(t, work, "repo", "repo/.git")

	git := &scriptedGit{
		responses: map[string]string{
			"rev-parse --git-dir":   ".git\n",
			"status --porcelain":    "",
			"branch --show-current": "dev\n",
		},
		failures: map[string]error{
			"rev-parse --verify --quiet refs/heads/main":   fmt.Errorf("unknown revision"),
			"rev-parse --verify --quiet refs/heads/master": fmt.Errorf("unknown revision"),
		},
	}
	log, err := root.CheckAgainst(context.Background(), filepath.Join(work, "repo"), CheckOptions{
		Git:              gitcheck.NewInspectorWithRunner(git),
		FallbackBranches: []string{"master"},
	})
	require.NoError(t, err)
	require.Len(t, log.Fatal(), 1)
	assert.Equal(t, logbook.FatalNoValidBranch, log.Fatal()[0].Kind)
}

func TestCheckMissingCompulsorySubdirIsFatal(t *testing.T) {
	root, err := New("submission", map[string]any{
		"code": map[string]any{"compulsory": []any{"main.py"}},
	})
	require.NoError(t, err)

	work := t.TempDir()
	mkdirs(t, work, "submission")

	log, err := root.CheckAgainst(context.Background(), filepath.Join(work, "submission"), CheckOptions{})
	require.NoError(t, err)
	require.Len(t, log.Fatal(), 1)
	assert.Equal(t, logbook.FatalMissingSubdir, log.Fatal()[0].Kind)
	assert.Equal(t, []string{"code"}, log.Fatal()[0].Content)
}

func TestCheckAbsentOptionalSubdirIsInformation(t *testing.T) {
	root, err := New("submission", map[string]any{
		"scratch": map[string]any{"optional": []any{"ideas.md"}},
	})
	require.NoError(t, err)

	work := t.TempDir()
	mkdirs(t, work, "submission")

	log, err := root.CheckAgainst(context.Background(), filepath.Join(work, "submission"), CheckOptions{})
	require.NoError(t, err)
	assert.False(t, log.HasFatal())
	require.Len(t, log.Information(), 1)
	assert.Equal(t, logbook.InfoOptionalDirAbsent, log.Information()[0].Kind)
}

func TestCheckFatalInSubdirShortCircuits(t *testing.T) {
	root, err := New("submission", map[string]any{
		"aa": map[string]any{"compulsory": []any{"a.py"}, "inner": map[string]any{"compulsory": []any{"x.py"}}},
		"bb": map[string]any{"compulsory": []any{"b.py"}},
	})
	require.NoError(t, err)

	work := t.TempDir()
	mkdirs(t, work, "submission/aa", "submission/bb")
	touch(t, filepath.Join(work, "submission/aa"), "a.py")
	touch(t, filepath.Join(work, "submission/bb"), "b.py")

	// aa/inner is compulsory and missing: fatal inside aa, so bb is never
	// reached.
	log, err := root.CheckAgainst(context.Background(), filepath.Join(work, "submission"), CheckOptions{})
	require.NoError(t, err)
	require.True(t, log.HasFatal())
	assert.Equal(t, logbook.FatalMissingSubdir, log.Fatal()[0].Kind)
	assert.Equal(t, []string{"inner"}, log.Fatal()[0].Content)
}

func TestCheckVariableSubdirsMatched(t *testing.T) {
	root, err := New("submission", map[string]any{
		"results": map[string]any{
			"variable-name": "results-*",
			"compulsory":    []any{"results.csv"},
		},
		"plots": map[string]any{
			"variable-name": "plots-*",
			"compulsory":    []any{"plot.png"},
		},
	})
	require.NoError(t, err)

	work := t.TempDir()
	sub := filepath.Join(work, "submission")
	mkdirs(t, work, "submission/results-2024", "submission/plots-2024")
	touch(t, filepath.Join(sub, "results-2024"), "results.csv")
	touch(t, filepath.Join(sub, "plots-2024"), "plot.png")

	log, err := root.CheckAgainst(context.Background(), sub, CheckOptions{})
	require.NoError(t, err)
	assert.Empty(t, log.Fatal())
	assert.Empty(t, log.Warnings())

	infoKinds := kinds(log.Information())
	assert.Contains(t, infoKinds, logbook.InfoMatchedPatterns)
	// Recursion bound both names.
	results, ok := root.Lookup("results-2024")
	assert.True(t, ok, "results child should have been bound to results-2024")
	assert.False(t, results.VariableName() && results.Name != "results-2024")
}

func TestCheckVariableCompulsoryUnmatchedIsFatal(t *testing.T) {
	root, err := New("submission", map[string]any{
		"data": map[string]any{
			"variable-name": "data-*",
			"compulsory":    []any{"data.csv"},
		},
	})
	require.NoError(t, err)

	work := t.TempDir()
	mkdirs(t, work, "submission/unrelated")

	log, err := root.CheckAgainst(context.Background(), filepath.Join(work, "submission"), CheckOptions{})
	require.NoError(t, err)
	require.Len(t, log.Fatal(), 1)
	assert.Equal(t, logbook.FatalUnmatchedPatterns, log.Fatal()[0].Kind)
	assert.Equal(t, []string{"data-*"}, log.Fatal()[0].Content)
}

func TestCheckVariableOptionalUnmatchedIsInformation(t *testing.T) {
	root, err := New("submission", map[string]any{
		"extras": map[string]any{
			"variable-name": "extras-*",
			"data-file-types": []any{
				"*.csv",
			},
		},
	})
	require.NoError(t, err)

	work := t.TempDir()
	mkdirs(t, work, "submission")

	log, err := root.CheckAgainst(context.Background(), filepath.Join(work, "submission"), CheckOptions{})
	require.NoError(t, err)
	assert.False(t, log.HasFatal())
	assert.Contains(t, kinds(log.Information()), logbook.InfoOptionalPatternsAbsent)
}

// A candidate that matches a pattern but has warnings (a missing compulsory
// file) is rejected by the strict pass and accepted by a lenient one; the
// warning then surfaces through the real recursion.
func TestCheckVariableMatchingRelaxesToLenient(t *testing.T) {
	root, err := New("submission", map[string]any{
		"code": map[string]any{
			"variable-name": "code-*",
			"compulsory":    []any{"main.py"},
		},
	})
	require.NoError(t, err)

	work := t.TempDir()
	mkdirs(t, work, "submission/code-x")

	log, err := root.CheckAgainst(context.Background(), filepath.Join(work, "submission"), CheckOptions{})
	require.NoError(t, err)
	assert.Empty(t, log.Fatal())

	require.Len(t, log.Warnings(), 1)
	assert.Equal(t, logbook.WarnMissingFiles, log.Warnings()[0].Kind)
	assert.Contains(t, kinds(log.Information()), logbook.InfoMatchedPatterns)
}

// Two ambiguous optional wildcard directories with identical structure are
// still assigned to some valid bijection rather than failing.
func TestCheckVariableMatchingAmbiguityResolves(t *testing.T) {
	root, err := New("submission", map[string]any{
		"run-a": map[string]any{"variable-name": "run-*", "data-file-types": []any{"*.csv"}},
		"run-b": map[string]any{"variable-name": "run-*", "data-file-types": []any{"*.csv"}},
	})
	require.NoError(t, err)

	work := t.TempDir()
	mkdirs(t, work, "submission/run-1", "submission/run-2")

	log, err := root.CheckAgainst(context.Background(), filepath.Join(work, "submission"), CheckOptions{})
	require.NoError(t, err)
	assert.Empty(t, log.Fatal())
	assert.Empty(t, log.Warnings())
	assert.Contains(t, kinds(log.Information()), logbook.InfoMatchedPatterns)
}
