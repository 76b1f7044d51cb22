// Copyright (c) 2026 Inkwell. All rights reserved.

/*
Package natsort implements natural-order string comparison.

Digit runs inside a string compare as integers, so "2" sorts before "10"
and "page2.jpg" before "page10.jpg". The archive page ordering and the
issue-number ordering are both built on this comparison.
*/
package natsort

import (
	"strings"
)

// separatorRune is what '-' and '_' are mapped to before segmentation.
// It sits above every letter so "c01a" sorts before "c01-": the trailing
// 'a' segment must compare lower than a trailing separator segment.
const separatorRune = '￿'

// segment is one run of a normalized string: either a number or text.
type segment struct {
	isNum bool
	num   uint64
	str   string
}

// segments splits the lowercased input into alternating text and digit runs.
func segments(s string) []segment {
	normalized := strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return separatorRune
		}
		return r
	}, strings.ToLower(s))

	var out []segment
	var cur strings.Builder
	curNum := false

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		seg := segment{isNum: curNum, str: cur.String()}
		if curNum {
			seg.num = parseUint(seg.str)
		}
		out = append(out, seg)
		cur.Reset()
	}

	for _, r := range normalized {
		isDigit := r >= '0' && r <= '9'
		if cur.Len() > 0 && isDigit != curNum {
			flush()
		}
		curNum = isDigit
		cur.WriteRune(r)
	}
	flush()

	return out
}

// parseUint converts a digit run, saturating on overflow so absurdly long
// runs still order deterministically.
func parseUint(s string) uint64 {
	var n uint64
	for _, r := range s {
		d := uint64(r - '0')
		if n > (1<<64-1-d)/10 {
			return 1<<64 - 1
		}
		n = n*10 + d
	}
	return n
}

// Compare returns -1, 0 or 1 ordering a relative to b in natural order.
func Compare(a, b string) int {
	as, bs := segments(a), segments(b)

	for i := 0; i < len(as) && i < len(bs); i++ {
		sa, sb := as[i], bs[i]

		switch {
		case sa.isNum && sb.isNum:
			if sa.num != sb.num {
				if sa.num < sb.num {
					return -1
				}
				return 1
			}
			// Equal values with different zero padding: shorter run first
			// keeps the order total.
			if sa.str != sb.str {
				if sa.str < sb.str {
					return -1
				}
				return 1
			}
		case sa.isNum != sb.isNum:
			// A digit run sorts before a text run at the same position.
			if sa.isNum {
				return -1
			}
			return 1
		default:
			if sa.str != sb.str {
				if sa.str < sb.str {
					return -1
				}
				return 1
			}
		}
	}

	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

// Less reports whether a orders before b in natural order.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}
