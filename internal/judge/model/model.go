package model

import (
	"strconv"

	"arbiter/internal/judge/verdict"
)

// Submission identifies one submitted source file and its judging outcome.
// The verdict/diagnostic pair is written exactly once, by the orchestrator,
// when judging completes.
type Submission struct {
	ID          string
	ContestID   string
	ProblemID   string
	TeamID      string // empty means a test run that never touches the scoreboard
	UserID      string
	Language    string
	Filename    string
	SubmittedAt int64 // unix seconds

	Verdict    verdict.Verdict
	Diagnostic string
}

// IsTestRun reports whether the submission was made outside a team, by a
// contest owner or admin trying out a problem.
func (s *Submission) IsTestRun() bool {
	return s.TeamID == ""
}

// Problem carries the judging limits for one contest problem.
type Problem struct {
	ID        string
	ContestID string
	Title     string

	// TimeLimit is the nominal CPU time limit in seconds, before the
	// per-language scaling factor is applied.
	TimeLimit float64

	// SpaceLimit is the peak resident memory limit in megabytes.
	SpaceLimit int
}

// Contest holds the contest attributes the judging core reads. CRUD on
// contests lives outside this module.
type Contest struct {
	ID           string
	Name         string
	StartsAt     int64
	EndsAt       int64
	ProblemCount int
}

// Language describes how one programming language is executed.
type Language struct {
	Name string `yaml:"name"`

	// TimeFactor scales the problem's nominal time limit to account for
	// interpreted-vs-compiled overhead. Zero means 1.0.
	TimeFactor float64 `yaml:"timeFactor"`

	// Image overrides the default judge container image.
	Image string `yaml:"image"`

	// Command is an optional container command template, expanded with
	// {code}, {inputs} and {logs} placeholders and split shell-style.
	Command string `yaml:"command"`
}

// ScaledTimeLimit returns the problem time limit adjusted for the language.
func (l Language) ScaledTimeLimit(timeLimit float64) float64 {
	factor := l.TimeFactor
	if factor <= 0 {
		factor = 1.0
	}
	return timeLimit * factor
}

// FormatSubmittedAt renders the submission timestamp as the directory
// component used in the on-disk data layout.
func FormatSubmittedAt(ts int64) string {
	return strconv.FormatInt(ts, 10)
}
