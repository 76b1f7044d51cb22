// Copyright (c) 2026 Inkwell. All rights reserved.

package comic

import (
	"strings"

	"github.com/nhatvu/inkwell/pkg/natsort"
)

// coverEligible excludes numbers that make poor representative covers:
// issue "0" prologues, negative issues, and ".5" interstitials.
func coverEligible(number string) bool {
	trimmed := strings.TrimSpace(number)
	if trimmed == "0" || strings.HasPrefix(trimmed, "-") {
		return false
	}
	return !strings.HasSuffix(trimmed, ".5")
}

// PickCover chooses the representative issue for a series or volume.
//
// First pass: plain-format issues only (when any exist) minus the
// excluded numbers, ordered by date then number, reverse-aware. When the
// first pass leaves nothing, the unrestricted pool decides with the same
// ordering.
func PickCover(records []SortRecord, reverse bool) (int64, bool) {
	if len(records) == 0 {
		return 0, false
	}

	hasPlain := false
	for _, record := range records {
		if ClassifyFormat(record.Format) == TypePlain {
			hasPlain = true
			break
		}
	}

	var candidates []SortRecord
	for _, record := range records {
		if hasPlain && ClassifyFormat(record.Format) != TypePlain {
			continue
		}
		if !coverEligible(record.Number) {
			continue
		}
		candidates = append(candidates, record)
	}
	if len(candidates) == 0 {
		candidates = append(candidates, records...)
	}

	best := candidates[0]
	for _, record := range candidates[1:] {
		if coverLess(record, best, reverse) {
			best = record
		}
	}
	return best.ID, true
}

// coverLess orders cover candidates by date ascending then number in the
// series' reading direction. Format weight does not participate here.
func coverLess(a, b SortRecord, reverse bool) bool {
	ay, am, ad := dateKey(a)
	by, bm, bd := dateKey(b)
	switch {
	case ay != by:
		return ay < by
	case am != bm:
		return am < bm
	case ad != bd:
		return ad < bd
	}

	cmp := natsort.Compare(a.Number, b.Number)
	if reverse {
		cmp = -cmp
	}
	return cmp < 0
}
