package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"arbiter/internal/judge/verdict"
	appErr "arbiter/pkg/errors"
)

func statReport(t *testing.T, clock, kbytes string) string {
	t.Helper()
	return "\tElapsed (wall clock) time (h:mm:ss or m:ss): " + clock + "\n" +
		"\tMaximum resident set size (kbytes): " + kbytes + "\n"
}

// fixture builds a log dir and answer dir pair under a temp root.
type fixture struct {
	t         *testing.T
	logDir    string
	answerDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		t:         t,
		logDir:    filepath.Join(root, "code.log"),
		answerDir: filepath.Join(root, "outputs"),
	}
	for _, dir := range []string{f.logDir, f.answerDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	f.writeLog("compile.err", "")
	return f
}

func (f *fixture) writeLog(name, content string) {
	f.t.Helper()
	if err := os.WriteFile(filepath.Join(f.logDir, name), []byte(content), 0644); err != nil {
		f.t.Fatalf("write %s: %v", name, err)
	}
}

func (f *fixture) writeAnswer(name, content string) {
	f.t.Helper()
	if err := os.WriteFile(filepath.Join(f.answerDir, name), []byte(content), 0644); err != nil {
		f.t.Fatalf("write %s: %v", name, err)
	}
}

// addCase writes the full artifact set for one passed testcase; callers
// overwrite individual files to shape failures.
func (f *fixture) addCase(name, output string) {
	f.t.Helper()
	f.writeAnswer(name, output)
	f.writeLog(name+".out", output)
	f.writeLog(name+".err", "")
	f.writeLog(name+".stt", statReport(f.t, "0:00.50", "20000"))
}

func TestClassifyAccepted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addCase("t1", "42\n")
	f.addCase("t2", "hello world\n")

	v, diag, err := Classify(f.logDir, f.answerDir, 1.0, 64)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if v != verdict.Accepted {
		t.Fatalf("verdict = %s, want Accepted", v)
	}
	if diag != "" {
		t.Fatalf("diagnostic = %q, want empty", diag)
	}
}

func TestClassifyCompileError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.writeLog("compile.err", "main.c:3: error: expected ';'")
	// Testcase artifacts are irrelevant once compilation failed.
	f.addCase("t1", "42\n")

	v, diag, err := Classify(f.logDir, f.answerDir, 1.0, 64)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if v != verdict.CompileError {
		t.Fatalf("verdict = %s, want CompileError", v)
	}
	if diag != "main.c:3: error: expected ';'" {
		t.Fatalf("diagnostic = %q, want compile log", diag)
	}
}

func TestClassifyMissingCompileLog(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if err := os.Remove(filepath.Join(f.logDir, "compile.err")); err != nil {
		t.Fatalf("remove compile log: %v", err)
	}

	_, _, err := Classify(f.logDir, f.answerDir, 1.0, 64)
	if err == nil {
		t.Fatal("Classify succeeded without a compile log")
	}
	if appErr.GetCode(err) != appErr.ArtifactMissing {
		t.Fatalf("code = %d, want ArtifactMissing", appErr.GetCode(err))
	}
}

func TestClassifyTimeExceeded(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addCase("t1", "42\n")
	f.writeLog("t1.stt", statReport(t, "0:02.10", "20000"))

	v, diag, err := Classify(f.logDir, f.answerDir, 2.0, 64)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if v != verdict.TimeExceeded {
		t.Fatalf("verdict = %s, want TimeExceeded", v)
	}
	if diag != "testcase: t1" {
		t.Fatalf("diagnostic = %q, want testcase name", diag)
	}
}

func TestClassifySpaceExceeded(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addCase("t1", "42\n")
	f.writeLog("t1.stt", statReport(t, "0:00.50", "64000"))

	v, _, err := Classify(f.logDir, f.answerDir, 1.0, 64)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if v != verdict.SpaceExceeded {
		t.Fatalf("verdict = %s, want SpaceExceeded", v)
	}
}

// A case over both limits with stderr noise must still come out TimeExceeded:
// the resource checks run before the stderr check, and time before space.
func TestClassifyCheckPrecedence(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addCase("t1", "42\n")
	f.writeLog("t1.stt", statReport(t, "0:05.00", "999999"))
	f.writeLog("t1.err", "Killed")
	f.writeLog("t1.out", "wrong")

	v, _, err := Classify(f.logDir, f.answerDir, 1.0, 64)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if v != verdict.TimeExceeded {
		t.Fatalf("verdict = %s, want TimeExceeded", v)
	}
}

func TestClassifyRuntimeError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addCase("t1", "42\n")
	f.writeLog("t1.err", "segmentation fault")

	v, diag, err := Classify(f.logDir, f.answerDir, 1.0, 64)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if v != verdict.RuntimeError {
		t.Fatalf("verdict = %s, want RuntimeError", v)
	}
	if diag != "testcase: t1" {
		t.Fatalf("diagnostic = %q, want testcase name", diag)
	}
}

func TestClassifyWrongAnswer(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		actual   string
		expected string
		want     verdict.Verdict
	}{
		{"trailing newline ok", "4\n", "4", verdict.Accepted},
		{"expected padding ok", "4", "  4\n\n", verdict.Accepted},
		{"double trailing newline", "4\n\n", "4", verdict.WrongAnswer},
		{"trailing space", "4 ", "4", verdict.WrongAnswer},
		{"internal whitespace", "a  b", "a b", verdict.WrongAnswer},
		{"plain mismatch", "5", "4", verdict.WrongAnswer},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.addCase("t1", tc.expected)
			f.writeLog("t1.out", tc.actual)

			v, _, err := Classify(f.logDir, f.answerDir, 1.0, 64)
			if err != nil {
				t.Fatalf("Classify returned error: %v", err)
			}
			if v != tc.want {
				t.Fatalf("verdict = %s, want %s", v, tc.want)
			}
		})
	}
}

// The first failing testcase in name order wins, and cases without a stderr
// artifact are treated as not run.
func TestClassifyOrderingAndSkips(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addCase("a", "1\n")
	f.addCase("b", "2\n")
	f.writeLog("b.out", "wrong")
	f.addCase("c", "3\n")
	f.writeLog("c.err", "crash")

	v, diag, err := Classify(f.logDir, f.answerDir, 1.0, 64)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if v != verdict.WrongAnswer || diag != "testcase: b" {
		t.Fatalf("got %s %q, want WrongAnswer on b", v, diag)
	}

	// Dropping b's stderr artifact makes b skipped; c now decides.
	if err := os.Remove(filepath.Join(f.logDir, "b.err")); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}
	v, diag, err = Classify(f.logDir, f.answerDir, 1.0, 64)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if v != verdict.RuntimeError || diag != "testcase: c" {
		t.Fatalf("got %s %q, want RuntimeError on c", v, diag)
	}
}

func TestClassifyAllCasesSkipped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.writeAnswer("t1", "42\n")

	v, _, err := Classify(f.logDir, f.answerDir, 1.0, 64)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if v != verdict.Accepted {
		t.Fatalf("verdict = %s, want Accepted when nothing ran", v)
	}
}
