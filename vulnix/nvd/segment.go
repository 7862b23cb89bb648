package nvd

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// The NVD publishes its JSON 1.1 feed in one archive per year starting with 2002 (which also
// collects everything older), plus a rolling "modified" archive with the entries touched over
// the last eight days. Mirrors serve the same well-known file names.
const (
	firstFeedYear   = 2002
	modifiedSegment = "modified"
	feedNamePrefix  = "nvdcve-1.1-"
)

var archiveNamePattern = regexp.MustCompile(`^nvdcve-1\.1-([0-9]{4}|modified)\.json\.gz$`)

// defaultSegments returns the names of all feed segments to keep in sync as of the given
// point in time: one per year plus the modified segment.
func defaultSegments(now time.Time) []string {
	var segments []string
	for year := firstFeedYear; year <= now.Year(); year++ {
		segments = append(segments, strconv.Itoa(year))
	}
	return append(segments, modifiedSegment)
}

func archiveName(segment string) string {
	return feedNamePrefix + segment + ".json.gz"
}

func metaName(segment string) string {
	return feedNamePrefix + segment + ".meta"
}

// segmentFromArchiveName extracts the segment from a feed archive file name, rejecting names
// that do not follow the mirror convention.
func segmentFromArchiveName(name string) (string, error) {
	matches := archiveNamePattern.FindStringSubmatch(name)
	if matches == nil {
		return "", fmt.Errorf("not a feed archive name: %q", name)
	}
	return matches[1], nil
}
