// Copyright (c) 2026 Inkwell. All rights reserved.

package comic

import (
	"sort"
	"strings"

	"github.com/nhatvu/inkwell/pkg/natsort"
)

// Issue type buckets derived from the format string.
const (
	TypePlain   = "plain"
	TypeAnnual  = "annual"
	TypeSpecial = "special"
)

// Format weights for the canonical issue sort: plain issues first, then
// annuals, then every other named special.
const (
	weightPlain   = 1
	weightAnnual  = 2
	weightSpecial = 3
)

// Date sentinels pushing issues with missing date parts to the end.
const (
	sentinelYear  = 9999
	sentinelMonth = 99
	sentinelDay   = 99
)

// reverseNumberedSeries is the curated set of series whose canonical
// reading order is by descending issue number. Matched case-insensitively
// on the series name.
var reverseNumberedSeries = map[string]bool{
	"countdown":                  true,
	"countdown to final crisis":  true,
	"zero hour":                  true,
	"zero hour: crisis in time!": true,
}

// IsReverseNumbered reports whether a series reads in descending issue
// number order.
func IsReverseNumbered(seriesName string) bool {
	return reverseNumberedSeries[strings.ToLower(strings.TrimSpace(seriesName))]
}

// ClassifyFormat buckets a format string into plain / annual / special.
func ClassifyFormat(format string) string {
	trimmed := strings.TrimSpace(format)
	if trimmed == "" {
		return TypePlain
	}
	if strings.Contains(strings.ToLower(trimmed), "annual") {
		return TypeAnnual
	}
	return TypeSpecial
}

// FormatWeight returns the sort weight of a format string.
func FormatWeight(format string) int {
	switch ClassifyFormat(format) {
	case TypePlain:
		return weightPlain
	case TypeAnnual:
		return weightAnnual
	default:
		return weightSpecial
	}
}

// SortRecord is the minimal issue projection the in-memory sort and the
// cover picker operate on.
type SortRecord struct {
	ID     int64
	Number string
	Format string
	Year   *int
	Month  *int
	Day    *int
}

func dateKey(record SortRecord) (int, int, int) {
	year, month, day := sentinelYear, sentinelMonth, sentinelDay
	if record.Year != nil {
		year = *record.Year
	}
	if record.Month != nil {
		month = *record.Month
	}
	if record.Day != nil {
		day = *record.Day
	}
	return year, month, day
}

// CompareIssues is the canonical multi-key issue order within a volume:
// format weight, then publication date with missing parts last, then
// natural sort of the number string. A reverse-numbered series flips only
// the number key.
func CompareIssues(a, b SortRecord, reverse bool) int {
	if wa, wb := FormatWeight(a.Format), FormatWeight(b.Format); wa != wb {
		if wa < wb {
			return -1
		}
		return 1
	}

	ay, am, ad := dateKey(a)
	by, bm, bd := dateKey(b)
	switch {
	case ay != by:
		if ay < by {
			return -1
		}
		return 1
	case am != bm:
		if am < bm {
			return -1
		}
		return 1
	case ad != bd:
		if ad < bd {
			return -1
		}
		return 1
	}

	numberCmp := natsort.Compare(a.Number, b.Number)
	if reverse {
		numberCmp = -numberCmp
	}
	return numberCmp
}

// SortIssues orders records in place using CompareIssues.
func SortIssues(records []SortRecord, reverse bool) {
	sort.SliceStable(records, func(i, j int) bool {
		return CompareIssues(records[i], records[j], reverse) < 0
	})
}
