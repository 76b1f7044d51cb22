// Copyright (c) 2026 Inkwell. All rights reserved.

package comic

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MissingIssues compares a volume's declared issue total against the
// plain-issue numbers actually observed and formats the gaps as
// contiguous runs, e.g. "1-3, 7, 9-11".
//
// The expected range starts at 0 when an explicit issue "0" exists and
// at 1 otherwise. Non-integer numbers ("10a", "Annual", "1.5") do not
// participate. Returns "" when nothing is missing.
func MissingIssues(declaredCount int, numbers []string) string {
	if declaredCount <= 0 || declaredCount <= len(numbers) {
		return ""
	}

	observed := make(map[int]bool, len(numbers))
	hasZero := false
	for _, number := range numbers {
		value, err := strconv.Atoi(strings.TrimSpace(number))
		if err != nil {
			continue
		}
		observed[value] = true
		if value == 0 {
			hasZero = true
		}
	}

	first, last := 1, declaredCount
	if hasZero {
		first, last = 0, declaredCount-1
	}

	var missing []int
	for expected := first; expected <= last; expected++ {
		if !observed[expected] {
			missing = append(missing, expected)
		}
	}

	return formatRuns(missing)
}

// formatRuns renders sorted integers as comma-joined contiguous runs.
func formatRuns(values []int) string {
	if len(values) == 0 {
		return ""
	}
	sort.Ints(values)

	var parts []string
	runStart, previous := values[0], values[0]
	flush := func() {
		if runStart == previous {
			parts = append(parts, strconv.Itoa(runStart))
			return
		}
		parts = append(parts, fmt.Sprintf("%d-%d", runStart, previous))
	}

	for _, value := range values[1:] {
		if value == previous+1 {
			previous = value
			continue
		}
		flush()
		runStart, previous = value, value
	}
	flush()

	return strings.Join(parts, ", ")
}
