// Package diffparse parses unified-diff hunks into normalised line ranges.
// Downstream range tables assume every parsed hunk describes only the changed
// region, with leading and trailing context stripped out of the counts.
package diffparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"lanes.dev/lanes/internal/errors"
)

// InputDiff is a single hunk reduced to its line coordinates.
// Starts are 1-indexed; the old side is in the parent's coordinates,
// the new side in the commit's own coordinates.
type InputDiff struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
}

// NetLines returns the net number of lines this hunk contributes.
func (d InputDiff) NetLines() int {
	return d.NewLines - d.OldLines
}

// Regex to match hunk headers: @@ -old_start,old_count +new_start,new_count @@
// Example: @@ -10,5 +10,6 @@
var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Parse parses a unified-diff hunk (header line plus body lines) into an
// InputDiff. Up to three leading and three trailing context lines are folded
// out of the reported counts.
func Parse(text string) (InputDiff, error) {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return InputDiff{}, fmt.Errorf("no header found: %w", errors.ErrMalformedDiff)
	}

	header := lines[0]
	match := hunkHeaderRegex.FindStringSubmatch(header)
	if match == nil {
		return InputDiff{}, fmt.Errorf("%q is not a hunk header: %w", header, errors.ErrMalformedDiff)
	}

	oldStart := parseInt(match[1])
	oldLines := parseCount(match[2])
	newStart := parseInt(match[3])
	newLines := parseCount(match[4])

	body := lines[1:]
	headContext := countContextLines(body, false)
	tailContext := countContextLines(body, true)
	context := headContext + tailContext

	return InputDiff{
		OldStart: oldStart + headContext,
		OldLines: oldLines - context,
		NewStart: newStart + headContext,
		NewLines: newLines - context,
	}, nil
}

// countContextLines counts lines that belong to neither side of the diff,
// looking at up to three lines from the front or the back of the body.
func countContextLines(body []string, fromEnd bool) int {
	count := 0
	for i := 0; i < len(body) && count < 3; i++ {
		line := body[i]
		if fromEnd {
			line = body[len(body)-1-i]
		}
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "+") {
			break
		}
		count++
	}
	return count
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// parseCount parses an optional line count; the unified format omits it
// when the count is 1.
func parseCount(s string) int {
	if s == "" {
		return 1
	}
	return parseInt(s)
}
