package tui

import (
	"github.com/dasida/tutor/internal/report"
	"github.com/dasida/tutor/internal/tutor"
)

// turnDoneMsg carries the result of a tutor turn.
type turnDoneMsg struct {
	Result *tutor.TurnResult
	Err    error
}

// reportDoneMsg carries a synthesized report.
type reportDoneMsg struct {
	Result *report.Result
	Err    error
}

// finishedMsg is sent once the conversation is marked completed.
type finishedMsg struct {
	Err error
}
