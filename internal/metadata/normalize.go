// Copyright (c) 2026 Inkwell. All rights reserved.

package metadata

import (
	"strconv"
	"strings"

	"github.com/nhatvu/inkwell/pkg/query"
)

// Bounds for the clamped community rating.
const (
	ratingMin = 0.0
	ratingMax = 5.0
)

// vulgarFractions maps unicode fraction characters onto plain decimal
// text so issue numbers like "½" sort and compare numerically.
var vulgarFractions = map[rune]string{
	'½': "0.5",
	'⅓': "0.33",
	'⅔': "0.67",
	'¼': "0.25",
	'¾': "0.75",
	'⅛': "0.125",
}

// NormalizeIssueNumber trims whitespace and rewrites unicode vulgar
// fractions into decimal text. Everything else passes through unchanged.
func NormalizeIssueNumber(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	var builder strings.Builder
	builder.Grow(len(value))
	for _, r := range value {
		if decimal, ok := vulgarFractions[r]; ok {
			builder.WriteString(decimal)
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

// SplitList splits a comma-separated tag value into trimmed names,
// dropping blanks and de-duplicating while preserving first-seen order.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	seen := make(map[string]bool)
	var names []string
	for _, name := range query.StringSlice(value) {
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// optString returns nil for empty or whitespace-only tag values.
func optString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// optIssueNumber normalizes an issue-number value, nil when blank.
func optIssueNumber(value string) *string {
	normalized := NormalizeIssueNumber(value)
	if normalized == "" {
		return nil
	}
	return &normalized
}

// optInt parses an integer tag value, nil when blank or malformed.
func optInt(value string) *int {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &parsed
}

// optRating parses a decimal tag value accepting "," as the decimal
// separator, then clamps the result to [0, 5]. Nil when blank or
// malformed.
func optRating(value string) *float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	value = strings.ReplaceAll(value, ",", ".")
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}

	if parsed < ratingMin {
		parsed = ratingMin
	}
	if parsed > ratingMax {
		parsed = ratingMax
	}
	return &parsed
}
