// Package classifier turns sandbox execution artifacts into a verdict.
//
// It is a deterministic, short-circuiting pipeline over the files the
// executor leaves in a submission's log directory: a compile log, and per
// testcase a stdout file, a stderr file and a resource usage report. It does
// no I/O beyond reading those files, which keeps it unit-testable against
// synthetic fixtures.
package classifier

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"arbiter/internal/judge/sandbox"
	"arbiter/internal/judge/verdict"
	appErr "arbiter/pkg/errors"
)

// Classify inspects the artifacts under logDir against the expected outputs in
// answerDir and the problem limits. timeLimit is in seconds (already scaled
// for the language), spaceLimit in MB.
//
// The returned diagnostic is the compile log for CompileError, the failing
// testcase name for per-test verdicts, and empty for Accepted. A non-nil
// error means the artifacts themselves are missing or unreadable, which is an
// execution-infrastructure failure, not a judging verdict.
func Classify(logDir, answerDir string, timeLimit float64, spaceLimit int) (verdict.Verdict, string, error) {
	compileLog, err := os.ReadFile(filepath.Join(logDir, sandbox.CompileLogName))
	if err != nil {
		return "", "", appErr.Wrapf(err, appErr.ArtifactMissing, "read compile log failed")
	}
	if len(compileLog) != 0 {
		return verdict.CompileError, string(compileLog), nil
	}

	entries, err := os.ReadDir(answerDir)
	if err != nil {
		return "", "", appErr.Wrapf(err, appErr.ArtifactMissing, "read answer dir failed")
	}

	// ReadDir sorts by name, so the first failing testcase reported is
	// stable: earlier filenames win ties.
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		// A missing stderr artifact means the executor did not run this
		// case (for example after a global limit was hit). Skip it.
		errPath := filepath.Join(logDir, name+sandbox.StderrSuffix)
		if _, err := os.Stat(errPath); os.IsNotExist(err) {
			continue
		}

		v, err := checkStat(filepath.Join(logDir, name+sandbox.StatSuffix), timeLimit, spaceLimit)
		if err != nil {
			return "", "", err
		}
		if v != "" {
			return v, testcaseDiagnostic(name), nil
		}

		v, err = checkError(errPath)
		if err != nil {
			return "", "", err
		}
		if v != "" {
			return v, testcaseDiagnostic(name), nil
		}

		v, err = checkOutput(filepath.Join(logDir, name+sandbox.StdoutSuffix), filepath.Join(answerDir, name))
		if err != nil {
			return "", "", err
		}
		if v != "" {
			return v, testcaseDiagnostic(name), nil
		}
	}

	return verdict.Accepted, "", nil
}

func testcaseDiagnostic(name string) string {
	return fmt.Sprintf("testcase: %s", name)
}

// checkStat parses the resource usage report and compares it to the limits.
// The time check runs before the space check.
func checkStat(statPath string, timeLimit float64, spaceLimit int) (verdict.Verdict, error) {
	report, err := os.ReadFile(statPath)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.ArtifactMissing, "read stat report failed")
	}
	elapsed, peakMB, err := ParseStatReport(string(report))
	if err != nil {
		return "", err
	}
	if elapsed >= timeLimit {
		return verdict.TimeExceeded, nil
	}
	if peakMB >= float64(spaceLimit) {
		return verdict.SpaceExceeded, nil
	}
	return "", nil
}

func checkError(errPath string) (verdict.Verdict, error) {
	info, err := os.Stat(errPath)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.ArtifactMissing, "stat stderr artifact failed")
	}
	if info.Size() != 0 {
		return verdict.RuntimeError, nil
	}
	return "", nil
}

// checkOutput compares actual stdout to the expected output. At most one
// trailing newline is stripped from the actual output; the expected output is
// trimmed of surrounding whitespace. Any other difference, including internal
// whitespace, fails.
func checkOutput(outPath, answerPath string) (verdict.Verdict, error) {
	actualBytes, err := os.ReadFile(outPath)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.ArtifactMissing, "read stdout artifact failed")
	}
	expectedBytes, err := os.ReadFile(answerPath)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.ArtifactMissing, "read expected output failed")
	}

	actual := string(actualBytes)
	actual = strings.TrimSuffix(actual, "\n")
	expected := strings.TrimSpace(string(expectedBytes))

	if actual != expected {
		return verdict.WrongAnswer, nil
	}
	return "", nil
}
