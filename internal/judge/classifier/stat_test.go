package classifier

import (
	"math"
	"testing"
)

const sampleReport = `	Command being timed: "./a.out"
	User time (seconds): 0.42
	System time (seconds): 0.03
	Percent of CPU this job got: 99%
	Elapsed (wall clock) time (h:mm:ss or m:ss): 0:01.50
	Maximum resident set size (kbytes): 204800
	Exit status: 0
`

func TestParseStatReport(t *testing.T) {
	t.Parallel()
	elapsed, peakMB, err := ParseStatReport(sampleReport)
	if err != nil {
		t.Fatalf("ParseStatReport returned error: %v", err)
	}
	if elapsed != 1.5 {
		t.Fatalf("elapsed = %v, want 1.5", elapsed)
	}
	if math.Abs(peakMB-204.8) > 1e-9 {
		t.Fatalf("peakMB = %v, want 204.8", peakMB)
	}
}

func TestParseStatReportMissingLines(t *testing.T) {
	t.Parallel()
	if _, _, err := ParseStatReport("Exit status: 0\n"); err == nil {
		t.Fatal("expected error for report without timing lines")
	}
	if _, _, err := ParseStatReport("\tElapsed (wall clock) time (h:mm:ss or m:ss): 0:01.00\n"); err == nil {
		t.Fatal("expected error for report without memory line")
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want float64
	}{
		{"0:01.50", 1.5},
		{"2:05", 125},
		{"1:02:03", 3723},
		{"0:00.00", 0},
	}
	for _, tc := range cases {
		got, err := parseClock(tc.in)
		if err != nil {
			t.Fatalf("parseClock(%q) returned error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parseClock(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := parseClock("abc"); err == nil {
		t.Fatal("expected error for malformed clock value")
	}
}
