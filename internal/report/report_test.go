package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/harrison/subcheck/internal/logbook"
)

func sampleLog(t *testing.T) *logbook.Log {
	t.Helper()
	log := logbook.New("/work/sub")
	log.Add(logbook.FatalMissingSubdir, "results")
	log.Add(logbook.WarnMissingFiles, "main.py")
	log.Add(logbook.InfoOptionalFiles, "notes.md")
	return log
}

func TestWritePlain(t *testing.T) {
	var buf bytes.Buffer
	Write(&buf, sampleLog(t), "/work", false)
	out := buf.String()

	for _, want := range []string{"FATAL", "WARNINGS", "INFORMATION", "results", "main.py", "notes.md"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("plain output must not contain ANSI escapes")
	}
}

func TestWriteColour(t *testing.T) {
	var buf bytes.Buffer
	Write(&buf, sampleLog(t), "/work", true)
	out := buf.String()

	if !strings.Contains(out, "\x1b[") {
		t.Error("coloured output should contain ANSI escapes")
	}
	// Bodies stay plain.
	if !strings.Contains(out, "results") {
		t.Errorf("output missing entry body:\n%s", out)
	}
}

func TestWriteEmptyLog(t *testing.T) {
	var buf bytes.Buffer
	Write(&buf, logbook.New("/work/sub"), "/work", false)

	if !strings.Contains(buf.String(), "as expected") {
		t.Errorf("empty log should produce an all-clear line, got:\n%s", buf.String())
	}
}

func TestWriteOmitsEmptySections(t *testing.T) {
	log := logbook.New("/work/sub")
	log.Add(logbook.WarnMissingFiles, "main.py")

	var buf bytes.Buffer
	Write(&buf, log, "/work", false)
	out := buf.String()

	if strings.Contains(out, "FATAL") || strings.Contains(out, "INFORMATION") {
		t.Errorf("empty sections should be omitted:\n%s", out)
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleLog(t), "/work")

	for _, want := range []string{"# Submission check report", "## Fatal", "## Warnings", "## Information", "- "} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestMarkdownEmptyLog(t *testing.T) {
	md := Markdown(logbook.New("/work/sub"), "/work")
	if !strings.Contains(md, "as expected") {
		t.Errorf("markdown for empty log should state all clear:\n%s", md)
	}
}

func TestHTML(t *testing.T) {
	html, err := HTML(sampleLog(t), "/work")
	if err != nil {
		t.Fatalf("HTML failed: %v", err)
	}
	if !strings.Contains(html, "<h1>") || !strings.Contains(html, "<h2>") {
		t.Errorf("HTML output missing headings:\n%s", html)
	}
}

func TestUseColorModes(t *testing.T) {
	var buf bytes.Buffer
	if UseColor("always", &buf) != true {
		t.Error("always mode should force colour")
	}
	if UseColor("never", &buf) != false {
		t.Error("never mode should disable colour")
	}
	// A plain buffer is not a terminal.
	if UseColor("auto", &buf) != false {
		t.Error("auto mode should disable colour for non-terminal writers")
	}
}

func TestNoticeDisplay(t *testing.T) {
	var buf bytes.Buffer
	Notice{
		Title:      "Unexpected submission name",
		Message:    "Expected an 8-digit candidate number.",
		Suggestion: "Rename the archive before submitting.",
	}.Display(&buf)
	out := buf.String()

	for _, want := range []string{"Warning: Unexpected submission name", "8-digit", "Suggestion:"} {
		if !strings.Contains(out, want) {
			t.Errorf("notice missing %q:\n%s", want, out)
		}
	}
}
