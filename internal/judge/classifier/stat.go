package classifier

import (
	"regexp"
	"strconv"
	"strings"

	appErr "arbiter/pkg/errors"
)

// The resource report is the verbose output of GNU time, of which only two
// lines matter here.
var (
	elapsedPattern = regexp.MustCompile(`Elapsed \(wall clock\) time \(h:mm:ss or m:ss\): (.*)\n`)
	residentPattern = regexp.MustCompile(`Maximum resident set size \(kbytes\): (.*)\n`)
)

// ParseStatReport extracts elapsed wall-clock seconds and peak resident
// memory in MB from a resource usage report.
func ParseStatReport(report string) (elapsed float64, peakMB float64, err error) {
	m := elapsedPattern.FindStringSubmatch(report)
	if m == nil {
		return 0, 0, appErr.Newf(appErr.ArtifactMissing, "stat report has no elapsed time line")
	}
	elapsed, err = parseClock(strings.TrimSpace(m[1]))
	if err != nil {
		return 0, 0, appErr.Wrapf(err, appErr.ArtifactMissing, "parse elapsed time failed")
	}

	m = residentPattern.FindStringSubmatch(report)
	if m == nil {
		return 0, 0, appErr.Newf(appErr.ArtifactMissing, "stat report has no resident set size line")
	}
	kbytes, err := strconv.ParseFloat(strings.TrimSpace(m[1]), 64)
	if err != nil {
		return 0, 0, appErr.Wrapf(err, appErr.ArtifactMissing, "parse resident set size failed")
	}

	return elapsed, kbytes / 1000.0, nil
}

// parseClock parses "h:mm:ss" or "m:ss.ss" into seconds.
func parseClock(value string) (float64, error) {
	var total float64
	for _, part := range strings.Split(value, ":") {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, err
		}
		total = total*60 + n
	}
	return total, nil
}
