package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestConfirmation_Ask(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		input  string
		want   bool
	}{
		{"default answer", "", "yes\n", true},
		{"case and space", "", "  YES \n", true},
		{"no trailing newline", "", "yes", true},
		{"refused", "", "no\n", false},
		{"empty input", "", "", false},
		{"custom answer", "overwrite", "overwrite\n", true},
		{"custom answer not default", "overwrite", "yes\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := Confirmation{
				Title:    "Overwrite options.json",
				Warnings: []string{"The webserver copy is replaced"},
				Answer:   tt.answer,
			}
			if got := c.Ask(strings.NewReader(tt.input), &out); got != tt.want {
				t.Errorf("Ask() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), "Overwrite options.json") {
				t.Error("warning title not rendered")
			}
			if !tt.want && tt.input != "" && !strings.Contains(out.String(), "Operation cancelled") {
				t.Error("cancellation not reported")
			}
		})
	}
}

func TestResult_DetailOrder(t *testing.T) {
	out := NewSuccessResult("Uploaded",
		Param{Key: "Document", Value: "options.json"},
		Param{Key: "Size", Value: "12 bytes"},
	).SetWidth(80).Render()

	first := strings.Index(out, "Document")
	second := strings.Index(out, "Size")
	if first < 0 || second < 0 || first > second {
		t.Errorf("details out of order:\n%s", out)
	}
	if !strings.Contains(out, "SUCCESS") {
		t.Error("missing SUCCESS marker")
	}
}

func TestResult_Failure(t *testing.T) {
	out := NewFailureResult("Upload failed", errors.New("connection refused"),
		[]string{"Is the webserver running?"}).SetWidth(80).Render()

	for _, want := range []string{"FAILED", "connection refused", "Troubleshooting:", "Is the webserver running?"} {
		if !strings.Contains(out, want) {
			t.Errorf("failure box missing %q", want)
		}
	}
}

func TestHeader_Render(t *testing.T) {
	out := NewHeader("download settings", "dao-cfg download options",
		Param{Key: "Webserver", Value: "http://dao.local:5000"},
	).SetWidth(70).Render()

	if !strings.Contains(out, "DOWNLOAD SETTINGS") {
		t.Error("title not upper-cased")
	}
	if !strings.Contains(out, "http://dao.local:5000") {
		t.Error("param value missing")
	}
}

func TestRenderStep(t *testing.T) {
	line := RenderStep(Step{Name: "Read file", Status: StepComplete, Message: "42 bytes"})
	if !strings.Contains(line, StepMarkerComplete) || !strings.Contains(line, "(42 bytes)") {
		t.Errorf("unexpected step line %q", line)
	}
	if !strings.Contains(RenderStep(Step{Name: "Verify", Status: StepSkipped}), "skipped") {
		t.Error("skipped step not labelled")
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable([]string{"Entity", "Name"}, [][]string{{"sensor.temp_1", "Temp 1"}})
	if !strings.Contains(out, "sensor.temp_1") || !strings.Contains(out, "Entity") {
		t.Errorf("table missing content:\n%s", out)
	}
}

func TestWidthOf_NonTerminal(t *testing.T) {
	if got := WidthOf(&bytes.Buffer{}); got != MinTerminalWidth {
		t.Errorf("WidthOf(buffer) = %d, want %d", got, MinTerminalWidth)
	}
	if IsTerminal(strings.NewReader("")) {
		t.Error("strings.Reader reported as terminal")
	}
}
