// Copyright (c) 2026 Inkwell. All rights reserved.

/*
Package policy derives per-user visibility predicates for library content.

All predicates are composable SQL fragments appended to the query layer's
WHERE clauses. Nothing here post-filters result sets: a row the viewer may
not see is never selected in the first place.
*/
package policy

import "strings"

// ageRatingOrder is the total order of known age ratings, least to most
// restrictive. Comparisons are case-insensitive.
var ageRatingOrder = []string{
	"Early Childhood",
	"Everyone",
	"G",
	"Kids to Adults",
	"Everyone 10+",
	"PG",
	"Teen",
	"Rating Pending",
	"M",
	"MA15+",
	"Mature 17+",
	"Adults Only 18+",
	"R18+",
	"X18+",
}

// ratingRank maps the lowercased rating to its position in the order.
var ratingRank = func() map[string]int {
	ranks := make(map[string]int, len(ageRatingOrder))
	for i, rating := range ageRatingOrder {
		ranks[strings.ToLower(rating)] = i
	}
	return ranks
}()

// RatingRank returns the position of a rating in the restrictiveness
// order, or -1 for a value outside the known set.
func RatingRank(rating string) int {
	rank, ok := ratingRank[strings.ToLower(strings.TrimSpace(rating))]
	if !ok {
		return -1
	}
	return rank
}

// IsKnownRating reports whether the value is part of the rating order.
func IsKnownRating(rating string) bool {
	return RatingRank(rating) >= 0
}

// AllowedRatings returns every rating at or below the cap. A cap outside
// the known set yields nil (everything is treated as banned).
func AllowedRatings(cap string) []string {
	capRank := RatingRank(cap)
	if capRank < 0 {
		return nil
	}
	allowed := make([]string, 0, capRank+1)
	for _, rating := range ageRatingOrder[:capRank+1] {
		allowed = append(allowed, rating)
	}
	return allowed
}

// BannedRatings returns every rating strictly above the cap.
func BannedRatings(cap string) []string {
	capRank := RatingRank(cap)
	if capRank < 0 {
		return append([]string(nil), ageRatingOrder...)
	}
	banned := make([]string, 0, len(ageRatingOrder)-capRank-1)
	for _, rating := range ageRatingOrder[capRank+1:] {
		banned = append(banned, rating)
	}
	return banned
}
