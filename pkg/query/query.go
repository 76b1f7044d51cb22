// Copyright (c) 2026 Inkwell. All rights reserved.

// Package query parses loosely formatted list parameters, as they
// arrive in URL queries and in comma-delimited metadata fields.
package query

import (
	"strconv"
	"strings"
)

// IntSlice converts repeated query values to integers. Values that do
// not parse are dropped rather than failing the request.
func IntSlice(values []string) []int {
	var parsed []int
	for _, value := range values {
		if number, err := strconv.Atoi(value); err == nil {
			parsed = append(parsed, number)
		}
	}
	return parsed
}

// StringSlice splits one comma-delimited value into trimmed entries,
// dropping blanks. An empty input yields nil.
func StringSlice(value string) []string {
	if value == "" {
		return nil
	}
	var parts []string
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
