package ui

import "fmt"

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
	StepSkipped
)

// Step is one line of a multi-step command such as upload: read the file,
// send it, read it back.
type Step struct {
	Name    string
	Status  StepStatus
	Message string // optional note, e.g. "1,234 bytes"
}

// RenderStep renders a single step line with its status marker.
func RenderStep(s Step) string {
	var line string
	switch s.Status {
	case StepComplete:
		line = StepCompleteStyle.Render(fmt.Sprintf("  %s %s", StepMarkerComplete, s.Name))
	case StepRunning:
		line = StepRunningStyle.Render(fmt.Sprintf("  %s %s", StepMarkerRunning, s.Name))
	case StepFailed:
		line = StepFailedStyle.Render(fmt.Sprintf("  %s %s", FailureMarker, s.Name))
	case StepSkipped:
		line = StepPendingStyle.Render(fmt.Sprintf("  %s %s (skipped)", StepMarkerPending, s.Name))
	default:
		line = StepPendingStyle.Render(fmt.Sprintf("  %s %s", StepMarkerPending, s.Name))
	}
	if s.Message != "" {
		line += " " + StepNoteStyle.Render("("+s.Message+")")
	}
	return line
}
