// Package sandbox defines the executor contract the judge orchestrates.
//
// The executor is a fallible black box: it compiles and runs a submission
// under resource limits and reports everything through artifact files in the
// submission's log directory. The judge never inspects processes or
// containers directly, only those artifacts.
package sandbox

import (
	"context"

	"arbiter/internal/judge/model"
)

// Artifact names the executor must produce under the log directory.
const (
	// CompileLogName is non-empty iff compilation failed.
	CompileLogName = "compile.err"

	// Per testcase <name>: program stdout, program stderr, and a GNU-time
	// style resource report. A testcase whose stderr artifact is absent was
	// not run at all.
	StdoutSuffix = ".out"
	StderrSuffix = ".err"
	StatSuffix   = ".stt"
)

// ExecRequest describes one submission execution.
type ExecRequest struct {
	SubmissionID string

	// CodePath is the local path of the submitted source file.
	CodePath string

	Language model.Language

	// InputsDir holds the testcase input files fed to the program.
	InputsDir string

	// LogDir is where the executor must leave its artifacts. The executor
	// creates it if absent.
	LogDir string

	// TimeLimit is the per-testcase wall time limit in seconds, already
	// scaled for the language.
	TimeLimit float64

	// SpaceLimit is the peak memory limit in MB.
	SpaceLimit int
}

// Executor runs a submission to completion. A nil return means execution
// finished and the artifacts describe the outcome, including submission
// failures like a compile error or a crash. A non-nil error means the
// execution infrastructure itself failed and no verdict can be derived.
//
// Implementations must always terminate: the in-sandbox limits bound every
// testcase, and Run must not outlive ctx.
type Executor interface {
	Run(ctx context.Context, req ExecRequest) error
}
