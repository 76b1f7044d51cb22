// Copyright (c) 2026 Inkwell. All rights reserved.

/*
Package progress tracks per-user reading positions and the activity log.

Progress rows are an upsert per (user, comic) with completion inferred
from the page position. The activity log is append-only and feeds the
heatmap and streak queries; nothing ever updates or deletes its rows.
*/
package progress

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhatvu/inkwell/internal/platform/apperr"
	"github.com/nhatvu/inkwell/internal/platform/dberr"
	"github.com/nhatvu/inkwell/internal/platform/sqlite"
	"github.com/nhatvu/inkwell/internal/policy"
)

// Progress is one user's position in one issue.
type Progress struct {
	ComicID     int64     `json:"comic_id"`
	CurrentPage int       `json:"current_page"`
	TotalPages  int       `json:"total_pages"`
	Completed   bool      `json:"completed"`
	LastReadAt  time.Time `json:"last_read_at"`
}

// SaveRequest is the body of a progress save.
type SaveRequest struct {
	CurrentPage int     `json:"current_page"`
	ContextType *string `json:"context_type"`
	ContextID   *int64  `json:"context_id"`
}

// HeatmapDay is one UTC date's page total.
type HeatmapDay struct {
	Date  string `json:"date"`
	Pages int    `json:"pages"`
}

// Service owns progress writes and the activity queries.
type Service struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewService(db *sql.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// visibleComic loads the page count of a comic the viewer may touch.
// Progress writes honor library scope and the age predicate the same way
// direct reads do.
func (service *Service) visibleComic(ctx context.Context, comicID int64, viewer policy.Viewer) (int, error) {
	where := policy.And(
		policy.Fragment{SQL: "c.id = ?", Args: []any{comicID}},
		viewer.LibraryScope("s"),
		viewer.ComicAllowed("c"),
	)

	var pageCount int
	err := service.db.QueryRowContext(ctx, `
		SELECT c.page_count
		FROM comics c
		JOIN volumes v ON c.volume_id = v.id
		JOIN series s ON v.series_id = s.id
		JOIN libraries l ON s.library_id = l.id
		WHERE `+where.SQL, where.Args...).Scan(&pageCount)
	if err == sql.ErrNoRows {
		return 0, apperr.NotFound("Comic")
	}
	if err != nil {
		return 0, dberr.Wrap(err, "load_progress_comic")
	}
	return pageCount, nil
}

// Save upserts the user's position and appends the activity delta.
func (service *Service) Save(ctx context.Context, userID, comicID int64, viewer policy.Viewer, req SaveRequest) (*Progress, error) {
	if req.CurrentPage < 0 {
		return nil, apperr.ValidationError("current_page must not be negative")
	}

	totalPages, err := service.visibleComic(ctx, comicID, viewer)
	if err != nil {
		return nil, err
	}

	// Clamp to the last page so a stale or confused client cannot
	// persist a position beyond the comic.
	if totalPages > 0 && req.CurrentPage > totalPages-1 {
		req.CurrentPage = totalPages - 1
	}

	completed := totalPages > 0 && req.CurrentPage >= totalPages-1

	var saved *Progress
	err = sqlite.WriteTx(ctx, service.db, func(tx *sqlite.Tx) error {
		var previousPage int
		err := tx.QueryRowContext(ctx,
			`SELECT current_page FROM reading_progress WHERE user_id = ? AND comic_id = ?`,
			userID, comicID).Scan(&previousPage)
		if err != nil && err != sql.ErrNoRows {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reading_progress (user_id, comic_id, current_page, total_pages, completed, last_read_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(user_id, comic_id) DO UPDATE SET
				current_page = excluded.current_page,
				total_pages = excluded.total_pages,
				completed = excluded.completed,
				last_read_at = CURRENT_TIMESTAMP`,
			userID, comicID, req.CurrentPage, totalPages, completed); err != nil {
			return err
		}

		// Delta floored at zero: re-reading earlier pages logs no
		// negative activity.
		delta := req.CurrentPage - previousPage
		if delta < 0 {
			delta = 0
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO activity_log (user_id, comic_id, pages_read, start_page, end_page, context_type, context_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			userID, comicID, delta, previousPage, req.CurrentPage, req.ContextType, req.ContextID); err != nil {
			return err
		}

		saved = &Progress{
			ComicID:     comicID,
			CurrentPage: req.CurrentPage,
			TotalPages:  totalPages,
			Completed:   completed,
			LastReadAt:  time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, dberr.Wrap(err, "save_progress")
	}
	return saved, nil
}

// MarkRead jumps the user's position to the last page.
func (service *Service) MarkRead(ctx context.Context, userID, comicID int64, viewer policy.Viewer) (*Progress, error) {
	totalPages, err := service.visibleComic(ctx, comicID, viewer)
	if err != nil {
		return nil, err
	}

	lastPage := totalPages - 1
	if lastPage < 0 {
		lastPage = 0
	}
	return service.Save(ctx, userID, comicID, viewer, SaveRequest{CurrentPage: lastPage})
}

// Delete removes the user's progress row. The activity log keeps its
// history.
func (service *Service) Delete(ctx context.Context, userID, comicID int64) error {
	err := sqlite.WriteTx(ctx, service.db, func(tx *sqlite.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM reading_progress WHERE user_id = ? AND comic_id = ?`, userID, comicID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.NotFound("Progress")
		}
		return nil
	})
	return dberr.Wrap(err, "delete_progress")
}

// BatchRequest expands volumes and series into their member issues.
type BatchRequest struct {
	ComicIDs  []int64 `json:"comic_ids"`
	VolumeIDs []int64 `json:"volume_ids"`
	SeriesIDs []int64 `json:"series_ids"`
	Read      bool    `json:"read"`
}

// BatchReadStatus marks every expanded issue read or unread. Issues the
// viewer cannot see are silently excluded by the expansion query.
func (service *Service) BatchReadStatus(ctx context.Context, userID int64, viewer policy.Viewer, req BatchRequest) (int, error) {
	comicIDs, err := service.expand(ctx, viewer, req)
	if err != nil {
		return 0, err
	}
	if len(comicIDs) == 0 {
		return 0, nil
	}

	err = sqlite.WriteTx(ctx, service.db, func(tx *sqlite.Tx) error {
		for _, comicID := range comicIDs {
			if req.Read {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO reading_progress (user_id, comic_id, current_page, total_pages, completed, last_read_at)
					SELECT ?, c.id, MAX(c.page_count - 1, 0), c.page_count, 1, CURRENT_TIMESTAMP
					FROM comics c WHERE c.id = ?
					ON CONFLICT(user_id, comic_id) DO UPDATE SET
						current_page = excluded.current_page,
						total_pages = excluded.total_pages,
						completed = 1,
						last_read_at = CURRENT_TIMESTAMP`, userID, comicID); err != nil {
					return err
				}
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM reading_progress WHERE user_id = ? AND comic_id = ?`, userID, comicID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, dberr.Wrap(err, "batch_read_status")
	}
	return len(comicIDs), nil
}

// expand resolves the batch selectors into visible comic ids.
func (service *Service) expand(ctx context.Context, viewer policy.Viewer, req BatchRequest) ([]int64, error) {
	member := policy.And(viewer.LibraryScope("s"), viewer.ComicAllowed("c"))

	seen := make(map[int64]struct{})
	var ordered []int64
	collect := func(condition string, ids []int64) error {
		for _, id := range ids {
			where := policy.And(policy.Fragment{SQL: condition, Args: []any{id}}, member)
			rows, err := service.db.QueryContext(ctx, `
				SELECT c.id
				FROM comics c
				JOIN volumes v ON c.volume_id = v.id
				JOIN series s ON v.series_id = s.id
				JOIN libraries l ON s.library_id = l.id
				WHERE `+where.SQL, where.Args...)
			if err != nil {
				return dberr.Wrap(err, "expand_batch")
			}
			for rows.Next() {
				var comicID int64
				if err := rows.Scan(&comicID); err != nil {
					rows.Close()
					return dberr.Wrap(err, "expand_batch_row")
				}
				if _, ok := seen[comicID]; !ok {
					seen[comicID] = struct{}{}
					ordered = append(ordered, comicID)
				}
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return dberr.Wrap(err, "expand_batch")
			}
			rows.Close()
		}
		return nil
	}

	if err := collect("c.id = ?", req.ComicIDs); err != nil {
		return nil, err
	}
	if err := collect("c.volume_id = ?", req.VolumeIDs); err != nil {
		return nil, err
	}
	if err := collect("v.series_id = ?", req.SeriesIDs); err != nil {
		return nil, err
	}
	return ordered, nil
}

// Heatmap sums pages read per UTC date over the last `days` days.
func (service *Service) Heatmap(ctx context.Context, userID int64, days int) ([]HeatmapDay, error) {
	if days <= 0 {
		days = 365
	}

	rows, err := service.db.QueryContext(ctx, `
		SELECT DATE(created_at), SUM(pages_read)
		FROM activity_log
		WHERE user_id = ? AND created_at >= DATETIME('now', ?)
		GROUP BY DATE(created_at)
		ORDER BY DATE(created_at)`,
		userID, fmt.Sprintf("-%d days", days))
	if err != nil {
		return nil, dberr.Wrap(err, "heatmap")
	}
	defer rows.Close()

	heatmap := make([]HeatmapDay, 0)
	for rows.Next() {
		var day HeatmapDay
		if err := rows.Scan(&day.Date, &day.Pages); err != nil {
			return nil, dberr.Wrap(err, "heatmap_row")
		}
		heatmap = append(heatmap, day)
	}
	return heatmap, dberr.Wrap(rows.Err(), "heatmap")
}

// Streak counts consecutive UTC dates with activity, walking back from
// the most recent one. A gap longer than one day breaks the run.
func (service *Service) Streak(ctx context.Context, userID int64) (int, error) {
	rows, err := service.db.QueryContext(ctx, `
		SELECT DISTINCT DATE(created_at)
		FROM activity_log
		WHERE user_id = ?
		ORDER BY DATE(created_at) DESC`, userID)
	if err != nil {
		return 0, dberr.Wrap(err, "streak")
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return 0, dberr.Wrap(err, "streak_row")
		}
		dates = append(dates, date)
	}
	if err := rows.Err(); err != nil {
		return 0, dberr.Wrap(err, "streak")
	}
	if len(dates) == 0 {
		return 0, nil
	}

	streak := 1
	previous, err := time.Parse("2006-01-02", dates[0])
	if err != nil {
		return 0, dberr.Wrap(err, "streak_parse")
	}
	for _, raw := range dates[1:] {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return 0, dberr.Wrap(err, "streak_parse")
		}
		if previous.Sub(date) != 24*time.Hour {
			break
		}
		streak++
		previous = date
	}
	return streak, nil
}
