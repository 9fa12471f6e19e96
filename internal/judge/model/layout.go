package model

import "path/filepath"

const testRunDirName = "test"

// Layout maps submissions and problems to their deterministic on-disk paths.
// The API layer writes code files into this layout before judging starts; the
// judge only derives paths from it.
type Layout struct {
	// SubmissionRoot holds per-submission data dirs.
	SubmissionRoot string `yaml:"submissionRoot"`
	// TestcaseRoot holds per-problem testcase dirs.
	TestcaseRoot string `yaml:"testcaseRoot"`
}

// SubmissionDataDir returns <root>/<contest>/<problem>/<team|test>/<submitted_at>.
// The whole dir is removed when the submission is deleted.
func (l Layout) SubmissionDataDir(s *Submission) string {
	team := s.TeamID
	if team == "" {
		team = testRunDirName
	}
	return filepath.Join(l.SubmissionRoot, s.ContestID, s.ProblemID, team, FormatSubmittedAt(s.SubmittedAt))
}

// CodePath returns the submitted source file path inside the data dir.
func (l Layout) CodePath(s *Submission) string {
	return filepath.Join(l.SubmissionDataDir(s), s.Filename)
}

// LogDir returns the sandbox artifact directory for a code path.
func LogDir(codePath string) string {
	return codePath + ".log"
}

// TestcaseDir returns the testcase bundle dir for a problem.
func (l Layout) TestcaseDir(problemID string) string {
	return filepath.Join(l.TestcaseRoot, problemID)
}

// InputsDir returns the input half of a testcase dir.
func InputsDir(testcaseDir string) string {
	return filepath.Join(testcaseDir, "inputs")
}

// OutputsDir returns the expected-output half of a testcase dir.
func OutputsDir(testcaseDir string) string {
	return filepath.Join(testcaseDir, "outputs")
}
