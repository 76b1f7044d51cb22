// Copyright (c) 2026 Inkwell. All rights reserved.

package comic

import (
	"context"
	"fmt"

	"github.com/nhatvu/inkwell/internal/platform/apperr"
	"github.com/nhatvu/inkwell/internal/platform/dberr"
	"github.com/nhatvu/inkwell/internal/policy"
)

// Reader navigation context types.
const (
	ContextVolume      = "volume"
	ContextSeries      = "series"
	ContextReadingList = "reading_list"
	ContextPullList    = "pull_list"
	ContextCollection  = "collection"
)

// scopeCondition renders the volume/series scope filter over the joined
// comic select.
func scopeCondition(scope string, id int64) (policy.Fragment, error) {
	switch scope {
	case ContextVolume:
		return policy.Fragment{SQL: "c.volume_id = ?", Args: []any{id}}, nil
	case ContextSeries:
		return policy.Fragment{SQL: "v.series_id = ?", Args: []any{id}}, nil
	}
	return policy.Fragment{}, apperr.ValidationError(fmt.Sprintf("unknown issue scope %q", scope))
}

func (repository *SQLiteRepository) SortRecords(ctx context.Context, scope string, id int64, viewer policy.Viewer) ([]SortRecord, error) {
	scoped, err := scopeCondition(scope, id)
	if err != nil {
		return nil, err
	}
	where := policy.And(scoped, viewer.LibraryScope("s"), viewer.ComicAllowed("c"))

	query := fmt.Sprintf(`
		SELECT c.id, c.number, c.format, c.year, c.month, c.day
		FROM %s WHERE %s`, comicJoin, where.SQL)

	rows, err := repository.db.QueryContext(ctx, query, where.Args...)
	if err != nil {
		return nil, dberr.Wrap(err, "issue_sort_records")
	}
	defer rows.Close()

	records := make([]SortRecord, 0)
	for rows.Next() {
		var record SortRecord
		if err := rows.Scan(&record.ID, &record.Number, &record.Format,
			&record.Year, &record.Month, &record.Day); err != nil {
			return nil, dberr.Wrap(err, "scan_sort_record")
		}
		records = append(records, record)
	}
	return records, dberr.Wrap(rows.Err(), "issue_sort_records")
}

func (repository *SQLiteRepository) Issues(ctx context.Context, scope string, id int64, viewer policy.Viewer, readFilter string, userID int64) ([]*Comic, error) {
	scoped, err := scopeCondition(scope, id)
	if err != nil {
		return nil, err
	}

	fragments := []policy.Fragment{scoped, viewer.LibraryScope("s"), viewer.ComicAllowed("c")}
	switch readFilter {
	case "", "all":
	case "read":
		fragments = append(fragments, policy.Fragment{
			SQL:  "EXISTS (SELECT 1 FROM reading_progress rp WHERE rp.comic_id = c.id AND rp.user_id = ? AND rp.completed = 1)",
			Args: []any{userID},
		})
	case "unread":
		fragments = append(fragments, policy.Fragment{
			SQL:  "NOT EXISTS (SELECT 1 FROM reading_progress rp WHERE rp.comic_id = c.id AND rp.user_id = ? AND rp.completed = 1)",
			Args: []any{userID},
		})
	default:
		return nil, apperr.ValidationError(fmt.Sprintf("unknown read filter %q", readFilter))
	}
	where := policy.And(fragments...)

	query := fmt.Sprintf(`
		SELECT %s, s.id, s.name, v.volume_number
		FROM %s WHERE %s`, comicColumns, comicJoin, where.SQL)

	rows, err := repository.db.QueryContext(ctx, query, where.Args...)
	if err != nil {
		return nil, dberr.Wrap(err, "list_issues")
	}
	defer rows.Close()

	comics := make([]*Comic, 0)
	for rows.Next() {
		comic := &Comic{}
		if err := rows.Scan(
			&comic.ID, &comic.VolumeID, &comic.FilePath, &comic.FileName, &comic.FileSize, &comic.FileMtime,
			&comic.PageCount, &comic.Number, &comic.Title, &comic.Summary, &comic.Year, &comic.Month, &comic.Day,
			&comic.Web, &comic.Notes, &comic.AgeRating, &comic.LanguageISO, &comic.CommunityRating,
			&comic.DeclaredCount, &comic.Publisher, &comic.Imprint, &comic.Format, &comic.SeriesGroup,
			&comic.ScanInfo, &comic.AlternateSeries, &comic.AlternateNumber, &comic.StoryArc,
			&comic.RawMetadata, &comic.ThumbnailPath, &comic.ColorPalette, &comic.IsDirty,
			&comic.CreatedAt, &comic.UpdatedAt,
			&comic.SeriesID, &comic.SeriesName, &comic.VolumeNumber,
		); err != nil {
			return nil, dberr.Wrap(err, "scan_issue")
		}
		comics = append(comics, comic)
	}
	return comics, dberr.Wrap(rows.Err(), "list_issues")
}

// ContextIssues loads the membership of one reader context. The member
// filter is the navigation policy: library scope, the comic predicate,
// and the owning container's poison pill (via visibility of the
// container itself). A poisoned or invisible context returns no rows and
// an empty label.
func (repository *SQLiteRepository) ContextIssues(ctx context.Context, contextType string, contextID int64, viewer policy.Viewer, userID int64) ([]ContextIssue, string, error) {
	member := policy.And(viewer.LibraryScope("s"), viewer.ComicAllowed("c"))

	var (
		query string
		args  []any
		label string
	)

	// memberJoin walks one item row up to its library for the member
	// predicates.
	const memberJoin = `JOIN comics c ON c.id = %s
			JOIN volumes v ON c.volume_id = v.id
			JOIN series s ON v.series_id = s.id
			JOIN libraries l ON s.library_id = l.id`

	switch contextType {
	case ContextVolume, ContextSeries:
		scoped, err := scopeCondition(contextType, contextID)
		if err != nil {
			return nil, "", err
		}
		// The context is usable only when the owning series passes the
		// poison pill.
		where := policy.And(scoped, member, viewer.SeriesVisible("s"))
		query = fmt.Sprintf(`
			SELECT c.id, c.number, c.format, c.year, c.month, c.day, v.volume_number, 0.0, 0, s.name
			FROM %s WHERE %s`, comicJoin, where.SQL)
		args = where.Args

	case ContextReadingList:
		where := policy.And(
			policy.Fragment{SQL: "rl.id = ?", Args: []any{contextID}},
			member,
			viewer.ReadingListVisible("rl"),
		)
		query = fmt.Sprintf(`
			SELECT c.id, c.number, c.format, c.year, c.month, c.day, v.volume_number, rli.position, 0, rl.name
			FROM reading_list_items rli
			JOIN reading_lists rl ON rli.reading_list_id = rl.id
			`+memberJoin+`
			WHERE %s`, "rli.comic_id", where.SQL)
		args = where.Args

	case ContextPullList:
		where := policy.And(
			policy.Fragment{SQL: "pl.id = ? AND pl.user_id = ?", Args: []any{contextID, userID}},
			member,
		)
		query = fmt.Sprintf(`
			SELECT c.id, c.number, c.format, c.year, c.month, c.day, v.volume_number, 0.0, pli.sort_order, pl.name
			FROM pull_list_items pli
			JOIN pull_lists pl ON pli.pull_list_id = pl.id
			`+memberJoin+`
			WHERE %s`, "pli.comic_id", where.SQL)
		args = where.Args

	case ContextCollection:
		where := policy.And(
			policy.Fragment{SQL: "col.id = ?", Args: []any{contextID}},
			member,
			viewer.CollectionVisible("col"),
		)
		query = fmt.Sprintf(`
			SELECT c.id, c.number, c.format, c.year, c.month, c.day, v.volume_number, 0.0, 0, col.name
			FROM collection_items coli
			JOIN collections col ON coli.collection_id = col.id
			`+memberJoin+`
			WHERE %s`, "coli.comic_id", where.SQL)
		args = where.Args

	default:
		return nil, "", apperr.ValidationError(fmt.Sprintf("unknown context type %q", contextType))
	}

	rows, err := repository.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", dberr.Wrap(err, "reader_context")
	}
	defer rows.Close()

	issues := make([]ContextIssue, 0)
	for rows.Next() {
		var issue ContextIssue
		if err := rows.Scan(&issue.ID, &issue.Number, &issue.Format, &issue.Year, &issue.Month, &issue.Day,
			&issue.VolumeNumber, &issue.Position, &issue.SortOrder, &label); err != nil {
			return nil, "", dberr.Wrap(err, "scan_context_issue")
		}
		issues = append(issues, issue)
	}
	return issues, label, dberr.Wrap(rows.Err(), "reader_context")
}

// Search executes a compiled DSL request as one SELECT with the viewer's
// policy attached.
func (repository *SQLiteRepository) Search(ctx context.Context, req SearchRequest, viewer policy.Viewer) ([]*Comic, int, error) {
	filters, err := req.Compile(viewer)
	if err != nil {
		return nil, 0, err
	}
	where := policy.And(filters, viewer.LibraryScope("s"), viewer.ComicAllowed("c"))

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, comicJoin, where.SQL)
	if err := repository.db.QueryRowContext(ctx, countQuery, where.Args...).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "count_search")
	}

	query := fmt.Sprintf(`
		SELECT %s, s.id, s.name, v.volume_number
		FROM %s
		WHERE %s
		ORDER BY %s
		LIMIT ? OFFSET ?`, comicColumns, comicJoin, where.SQL, req.OrderBy())
	args := append(append([]any{}, where.Args...), req.Limit, req.Offset)

	rows, err := repository.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "search")
	}
	defer rows.Close()

	comics := make([]*Comic, 0)
	for rows.Next() {
		comic := &Comic{}
		if err := rows.Scan(
			&comic.ID, &comic.VolumeID, &comic.FilePath, &comic.FileName, &comic.FileSize, &comic.FileMtime,
			&comic.PageCount, &comic.Number, &comic.Title, &comic.Summary, &comic.Year, &comic.Month, &comic.Day,
			&comic.Web, &comic.Notes, &comic.AgeRating, &comic.LanguageISO, &comic.CommunityRating,
			&comic.DeclaredCount, &comic.Publisher, &comic.Imprint, &comic.Format, &comic.SeriesGroup,
			&comic.ScanInfo, &comic.AlternateSeries, &comic.AlternateNumber, &comic.StoryArc,
			&comic.RawMetadata, &comic.ThumbnailPath, &comic.ColorPalette, &comic.IsDirty,
			&comic.CreatedAt, &comic.UpdatedAt,
			&comic.SeriesID, &comic.SeriesName, &comic.VolumeNumber,
		); err != nil {
			return nil, 0, dberr.Wrap(err, "scan_search_row")
		}
		comics = append(comics, comic)
	}
	return comics, total, dberr.Wrap(rows.Err(), "search")
}
