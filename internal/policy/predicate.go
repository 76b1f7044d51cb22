// Copyright (c) 2026 Inkwell. All rights reserved.

package policy

import (
	"fmt"
	"strings"
)

// Fragment is one SQL predicate with its bound arguments. Fragments are
// composed into larger WHERE clauses by the query layer.
type Fragment struct {
	SQL  string
	Args []any
}

// Always and Never are the identity fragments for composition.
func Always() Fragment { return Fragment{SQL: "1=1"} }
func Never() Fragment  { return Fragment{SQL: "1=0"} }

// And joins fragments into one parenthesized conjunction.
func And(fragments ...Fragment) Fragment {
	if len(fragments) == 0 {
		return Always()
	}
	parts := make([]string, 0, len(fragments))
	var args []any
	for _, fragment := range fragments {
		parts = append(parts, "("+fragment.SQL+")")
		args = append(args, fragment.Args...)
	}
	return Fragment{SQL: strings.Join(parts, " AND "), Args: args}
}

// Viewer is the policy-relevant slice of a user. MaxAgeRating nil means
// no age cap.
type Viewer struct {
	UserID              int64
	IsSuperuser         bool
	MaxAgeRating        *string
	AllowUnknownRatings bool
	AccessibleLibraries []int64
}

// LibraryScope restricts series rows to the viewer's accessible
// libraries. Superusers see every library.
func (v Viewer) LibraryScope(seriesAlias string) Fragment {
	if v.IsSuperuser {
		return Always()
	}
	if len(v.AccessibleLibraries) == 0 {
		return Never()
	}

	args := make([]any, len(v.AccessibleLibraries))
	for i, id := range v.AccessibleLibraries {
		args[i] = id
	}
	return Fragment{
		SQL:  fmt.Sprintf("%s.library_id IN (%s)", seriesAlias, placeholders(len(args))),
		Args: args,
	}
}

// unknownRating matches the unknown-rating tokens: null, blank, and the
// literal "unknown".
func unknownRating(comicAlias string) string {
	return fmt.Sprintf(
		"(%[1]s.age_rating IS NULL OR TRIM(%[1]s.age_rating) = '' OR LOWER(TRIM(%[1]s.age_rating)) = 'unknown')",
		comicAlias,
	)
}

// ComicAllowed is the direct visibility predicate for one comic row:
// rating within the allowed set, or an unknown token when the viewer
// permits unknowns. Ratings outside the known order are never in the
// allowed set, so they are banned whenever a cap is set.
func (v Viewer) ComicAllowed(comicAlias string) Fragment {
	unknown := unknownRating(comicAlias)

	if v.MaxAgeRating == nil {
		if v.AllowUnknownRatings {
			return Always()
		}
		return Fragment{SQL: "NOT " + unknown}
	}

	allowed := AllowedRatings(*v.MaxAgeRating)
	if len(allowed) == 0 {
		// Unrecognized cap value: fail closed, unknowns may still pass.
		if v.AllowUnknownRatings {
			return Fragment{SQL: unknown}
		}
		return Never()
	}

	args := make([]any, len(allowed))
	for i, rating := range allowed {
		args[i] = strings.ToLower(rating)
	}
	inAllowed := fmt.Sprintf("LOWER(TRIM(%s.age_rating)) IN (%s)", comicAlias, placeholders(len(args)))

	if v.AllowUnknownRatings {
		return Fragment{SQL: "(" + inAllowed + " OR " + unknown + ")", Args: args}
	}
	return Fragment{SQL: inAllowed, Args: args}
}

// ComicBanned is the negation of ComicAllowed, used inside poison-pill
// EXISTS subqueries.
func (v Viewer) ComicBanned(comicAlias string) Fragment {
	allowed := v.ComicAllowed(comicAlias)
	return Fragment{SQL: "NOT (" + allowed.SQL + ")", Args: allowed.Args}
}

// SeriesVisible is the poison-pill predicate for a series row: the
// series is hidden whenever any of its issues is banned for the viewer.
func (v Viewer) SeriesVisible(seriesAlias string) Fragment {
	banned := v.ComicBanned("pp_c")
	return Fragment{
		SQL: fmt.Sprintf(
			`NOT EXISTS (
				SELECT 1 FROM comics pp_c
				JOIN volumes pp_v ON pp_c.volume_id = pp_v.id
				WHERE pp_v.series_id = %s.id AND %s
			)`, seriesAlias, banned.SQL),
		Args: banned.Args,
	}
}

// CollectionVisible hides a whole collection when any member issue is
// banned for the viewer.
func (v Viewer) CollectionVisible(collectionAlias string) Fragment {
	banned := v.ComicBanned("pp_c")
	return Fragment{
		SQL: fmt.Sprintf(
			`NOT EXISTS (
				SELECT 1 FROM collection_items pp_i
				JOIN comics pp_c ON pp_i.comic_id = pp_c.id
				WHERE pp_i.collection_id = %s.id AND %s
			)`, collectionAlias, banned.SQL),
		Args: banned.Args,
	}
}

// ReadingListVisible hides a whole reading list when any member issue is
// banned for the viewer.
func (v Viewer) ReadingListVisible(listAlias string) Fragment {
	banned := v.ComicBanned("pp_c")
	return Fragment{
		SQL: fmt.Sprintf(
			`NOT EXISTS (
				SELECT 1 FROM reading_list_items pp_i
				JOIN comics pp_c ON pp_i.comic_id = pp_c.id
				WHERE pp_i.reading_list_id = %s.id AND %s
			)`, listAlias, banned.SQL),
		Args: banned.Args,
	}
}

// placeholders renders n comma-joined SQL placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
