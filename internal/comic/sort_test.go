// Copyright (c) 2026 Inkwell. All rights reserved.

package comic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhatvu/inkwell/internal/comic"
)

func record(id int64, number, format string, year, month, day int) comic.SortRecord {
	rec := comic.SortRecord{ID: id, Number: number, Format: format}
	if year > 0 {
		rec.Year = &year
	}
	if month > 0 {
		rec.Month = &month
	}
	if day > 0 {
		rec.Day = &day
	}
	return rec
}

func ids(records []comic.SortRecord) []int64 {
	out := make([]int64, len(records))
	for i, rec := range records {
		out[i] = rec.ID
	}
	return out
}

/*
TestClassifyFormat buckets real-world format strings.
*/
func TestClassifyFormat(t *testing.T) {
	assert.Equal(t, comic.TypePlain, comic.ClassifyFormat(""))
	assert.Equal(t, comic.TypePlain, comic.ClassifyFormat("  "))
	assert.Equal(t, comic.TypeAnnual, comic.ClassifyFormat("Annual"))
	assert.Equal(t, comic.TypeAnnual, comic.ClassifyFormat("Annual 2021"))
	assert.Equal(t, comic.TypeSpecial, comic.ClassifyFormat("1-Shot"))
	assert.Equal(t, comic.TypeSpecial, comic.ClassifyFormat("Limited Series"))
}

/*
TestSortIssues_MultiKey checks the canonical order: format weight, then
date with missing parts pushed last, then natural number sort.
*/
func TestSortIssues_MultiKey(t *testing.T) {
	records := []comic.SortRecord{
		record(1, "10", "", 2020, 1, 0),
		record(2, "2", "", 2020, 1, 0),
		record(3, "1", "Annual", 2019, 1, 0), // annual sorts after every plain issue
		record(4, "3", "", 0, 0, 0),          // missing date sorts last among plains
		record(5, "1", "", 2019, 12, 0),
	}

	comic.SortIssues(records, false)
	assert.Equal(t, []int64{5, 2, 1, 4, 3}, ids(records))
}

/*
TestSortIssues_Reverse confirms a reverse-numbered series flips only the
number key: annuals still sort after plain issues.
*/
func TestSortIssues_Reverse(t *testing.T) {
	assert.True(t, comic.IsReverseNumbered("Countdown"))
	assert.True(t, comic.IsReverseNumbered("  countdown "))
	assert.False(t, comic.IsReverseNumbered("Countup"))

	records := []comic.SortRecord{
		record(1, "1", "", 0, 0, 0),
		record(2, "50", "", 0, 0, 0),
		record(3, "27", "", 0, 0, 0),
		record(4, "1", "Annual", 0, 0, 0),
	}

	comic.SortIssues(records, true)
	assert.Equal(t, []int64{2, 3, 1, 4}, ids(records))
}

/*
TestSortIssues_NaturalNumbers checks natural ordering of messy values.
*/
func TestSortIssues_NaturalNumbers(t *testing.T) {
	records := []comic.SortRecord{
		record(1, "10", "", 0, 0, 0),
		record(2, "2", "", 0, 0, 0),
		record(3, "10a", "", 0, 0, 0),
		record(4, "0.5", "", 0, 0, 0),
		record(5, "1", "", 0, 0, 0),
	}

	comic.SortIssues(records, false)
	assert.Equal(t, []int64{4, 5, 2, 1, 3}, ids(records))
}
