// Package report renders a check log for people: coloured terminal output,
// Markdown for saved reports and HTML for sharing.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/yuin/goldmark"

	"github.com/harrison/subcheck/internal/logbook"
)

// UseColor decides whether output to w should be coloured for the given
// mode (auto, always, never). Auto colours only real terminals and honours
// NO_COLOR via the color library.
func UseColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return !color.NoColor
	}
	return false
}

// section pairs a log view with its heading and colour.
type section struct {
	heading string
	colour  *color.Color
	entries []logbook.Entry
}

func sections(log *logbook.Log) []section {
	return []section{
		{"FATAL", color.New(color.FgRed, color.Bold), log.Fatal()},
		{"WARNINGS", color.New(color.FgYellow), log.Warnings()},
		{"INFORMATION", color.New(color.FgCyan), log.Information()},
	}
}

// Write renders the log to w. Section headings are coloured when useColor
// is set; entry bodies stay plain so reports remain grep-friendly.
func Write(w io.Writer, log *logbook.Log, relativeTo string, useColor bool) {
	first := true
	for _, s := range sections(log) {
		if len(s.entries) == 0 {
			continue
		}
		if !first {
			fmt.Fprintln(w)
		}
		first = false

		heading := s.heading
		if useColor {
			heading = s.colour.Sprint(heading)
		}
		fmt.Fprintln(w, heading)
		fmt.Fprintln(w, strings.Repeat("-", len(s.heading)))
		for _, entry := range s.entries {
			fmt.Fprintln(w, entry.Render(relativeTo))
		}
	}
	if first {
		ok := "Submission structure is as expected."
		if useColor {
			ok = color.New(color.FgGreen).Sprint(ok)
		}
		fmt.Fprintln(w, ok)
	}
}

// Markdown renders the log as a Markdown document suitable for saving
// alongside marks.
func Markdown(log *logbook.Log, relativeTo string) string {
	var b strings.Builder
	b.WriteString("# Submission check report\n")

	any := false
	for _, s := range sections(log) {
		if len(s.entries) == 0 {
			continue
		}
		any = true
		fmt.Fprintf(&b, "\n## %s\n\n", titleCase(s.heading))
		for _, entry := range s.entries {
			for i, line := range strings.Split(strings.TrimRight(entry.Render(relativeTo), "\n"), "\n") {
				if i == 0 {
					fmt.Fprintf(&b, "- %s\n", line)
				} else {
					fmt.Fprintf(&b, "  %s\n", line)
				}
			}
		}
	}
	if !any {
		b.WriteString("\nSubmission structure is as expected.\n")
	}
	return b.String()
}

// HTML renders the log as a standalone HTML fragment.
func HTML(log *logbook.Log, relativeTo string) (string, error) {
	var out strings.Builder
	if err := goldmark.Convert([]byte(Markdown(log, relativeTo)), &out); err != nil {
		return "", fmt.Errorf("failed to render HTML report: %w", err)
	}
	return out.String(), nil
}

func titleCase(heading string) string {
	lower := strings.ToLower(heading)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// Notice is a standalone user-facing warning, outside the check log itself
// (for example an oddly named submission archive).
type Notice struct {
	Title      string
	Message    string
	Suggestion string
}

// Display shows the notice in yellow.
func (n Notice) Display(out io.Writer) {
	var b strings.Builder

	b.WriteString("\x1b[33m")
	b.WriteString("Warning: ")
	b.WriteString(n.Title)
	b.WriteString("\n")

	if n.Message != "" {
		b.WriteString("    ")
		b.WriteString(n.Message)
		b.WriteString("\n")
	}
	if n.Suggestion != "" {
		b.WriteString("    Suggestion: ")
		b.WriteString(n.Suggestion)
		b.WriteString("\n")
	}

	b.WriteString("\x1b[0m")
	fmt.Fprint(out, b.String())
}
