// Package logbook collects the findings produced while a submission is
// checked against an assignment structure. Findings are ordered, typed
// entries that can be merged, filtered, and rendered into the final report.
package logbook

// Kind identifies the reason a log entry was recorded.
//
// Kinds are grouped into severity bands by value: fatal kinds are below
// fatalLimit, warning kinds occupy [warningBase, warningLimit), and
// information kinds start at infoBase. New kinds can be added to a band
// without disturbing the severity filters.
type Kind int

const (
	fatalLimit   = 100
	warningBase  = 100
	warningLimit = 200
	infoBase     = 200
)

// Fatal kinds. Any of these halts the check of the surrounding subtree.
const (
	FatalNotADirectory Kind = iota
	FatalNameMismatch
	FatalPatternMismatch
	FatalMissingSubdir
	FatalUnmatchedPatterns
	FatalNoRepository
	FatalUntrackedChanges
	FatalUnstagedChanges
	FatalUncommittedChanges
	FatalNoValidBranch
	FatalCheckoutFailed
	FatalUnexpectedRepository
)

// Warning kinds. These report submission problems that do not prevent the
// check from completing.
const (
	WarnMissingFiles Kind = warningBase + iota
	WarnUnexpectedFiles
	WarnNotOnMarkingBranch
	WarnFallbackBranch
)

// Information kinds. Non-problems worth surfacing to the submitter.
const (
	InfoMatchedName Kind = infoBase + iota
	InfoOptionalFiles
	InfoOptionalDirAbsent
	InfoMatchedPatterns
	InfoOptionalPatternsAbsent
)

// IsFatal reports whether the kind belongs to the fatal severity band.
func (k Kind) IsFatal() bool { return k < fatalLimit }

// IsWarning reports whether the kind belongs to the warning severity band.
func (k Kind) IsWarning() bool { return k >= warningBase && k < warningLimit }

// IsInformation reports whether the kind belongs to the information band.
func (k Kind) IsInformation() bool { return k >= infoBase }

// String returns a short identifier used in debug output and tests.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

var kindNames = map[Kind]string{
	FatalNotADirectory:        "not-a-directory",
	FatalNameMismatch:         "name-mismatch",
	FatalPatternMismatch:      "pattern-mismatch",
	FatalMissingSubdir:        "missing-subdirectory",
	FatalUnmatchedPatterns:    "unmatched-patterns",
	FatalNoRepository:         "no-repository",
	FatalUntrackedChanges:     "untracked-changes",
	FatalUnstagedChanges:      "unstaged-changes",
	FatalUncommittedChanges:   "uncommitted-changes",
	FatalNoValidBranch:        "no-valid-branch",
	FatalCheckoutFailed:       "checkout-failed",
	FatalUnexpectedRepository: "unexpected-repository",

	WarnMissingFiles:       "missing-files",
	WarnUnexpectedFiles:    "unexpected-files",
	WarnNotOnMarkingBranch: "not-on-marking-branch",
	WarnFallbackBranch:     "fallback-branch",

	InfoMatchedName:            "matched-name",
	InfoOptionalFiles:          "optional-files",
	InfoOptionalDirAbsent:      "optional-directory-absent",
	InfoMatchedPatterns:        "matched-patterns",
	InfoOptionalPatternsAbsent: "optional-patterns-absent",
}
