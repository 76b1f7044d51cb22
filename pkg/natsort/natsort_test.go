// Copyright (c) 2026 Inkwell. All rights reserved.

package natsort_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhatvu/inkwell/pkg/natsort"
)

/*
TestCompare_DigitRuns verifies that embedded digit runs compare as integers.
*/
func TestCompare_DigitRuns(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"plain_numbers", "2", "10", -1},
		{"zero_padded", "01", "2", -1},
		{"equal", "page10", "page10", 0},
		{"prefix_shorter", "page", "page1", -1},
		{"mixed_case", "Page2", "page10", -1},
		{"digits_before_text", "c2", "ca", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, natsort.Compare(tt.a, tt.b))
		})
	}
}

/*
TestCompare_SeparatorsAfterLetters covers the separator remapping: a letter
suffix must sort before a hyphen/underscore suffix so "c01a" < "c01-".
*/
func TestCompare_SeparatorsAfterLetters(t *testing.T) {
	assert.Negative(t, natsort.Compare("c01a", "c01-"))
	assert.Negative(t, natsort.Compare("c01a", "c01_"))
	assert.Positive(t, natsort.Compare("c01-x", "c01a"))
}

/*
TestLess_SortsFilenameList verifies the canonical page-ordering example.
*/
func TestLess_SortsFilenameList(t *testing.T) {
	names := []string{"10.jpg", "2.jpg", "01.jpg"}
	sort.Slice(names, func(i, j int) bool { return natsort.Less(names[i], names[j]) })
	assert.Equal(t, []string{"01.jpg", "2.jpg", "10.jpg"}, names)
}

/*
TestCompare_LongDigitRuns ensures overflow-length digit runs stay ordered.
*/
func TestCompare_LongDigitRuns(t *testing.T) {
	a := "99999999999999999998"
	b := "99999999999999999999999999"
	// Both saturate; the longer textual run orders after.
	assert.NotPanics(t, func() { natsort.Compare(a, b) })
}
