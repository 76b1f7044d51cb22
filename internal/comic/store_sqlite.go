// Copyright (c) 2026 Inkwell. All rights reserved.

package comic

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nhatvu/inkwell/internal/platform/dberr"
	"github.com/nhatvu/inkwell/internal/policy"
	"github.com/nhatvu/inkwell/pkg/pagination"
	"github.com/nhatvu/inkwell/pkg/slug"
)

// SQLiteRepository is the Repository implementation over database/sql.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// comicColumns is the canonical projection for scanning a Comic row.
const comicColumns = `c.id, c.volume_id, c.file_path, c.file_name, c.file_size, c.file_mtime,
	c.page_count, c.number, c.title, c.summary, c.year, c.month, c.day, c.web, c.notes,
	c.age_rating, c.language_iso, c.community_rating, c.declared_count, c.publisher, c.imprint,
	c.format, c.series_group, c.scan_info, c.alternate_series, c.alternate_number, c.story_arc,
	c.raw_metadata, c.thumbnail_path, c.color_palette, c.is_dirty, c.created_at, c.updated_at`

// comicJoin joins a comic row up to its library for scope predicates.
const comicJoin = `comics c
	JOIN volumes v ON c.volume_id = v.id
	JOIN series s ON v.series_id = s.id
	JOIN libraries l ON s.library_id = l.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComic(row rowScanner) (*Comic, error) {
	var comic Comic
	err := row.Scan(
		&comic.ID, &comic.VolumeID, &comic.FilePath, &comic.FileName, &comic.FileSize, &comic.FileMtime,
		&comic.PageCount, &comic.Number, &comic.Title, &comic.Summary, &comic.Year, &comic.Month, &comic.Day,
		&comic.Web, &comic.Notes, &comic.AgeRating, &comic.LanguageISO, &comic.CommunityRating,
		&comic.DeclaredCount, &comic.Publisher, &comic.Imprint, &comic.Format, &comic.SeriesGroup,
		&comic.ScanInfo, &comic.AlternateSeries, &comic.AlternateNumber, &comic.StoryArc,
		&comic.RawMetadata, &comic.ThumbnailPath, &comic.ColorPalette, &comic.IsDirty,
		&comic.CreatedAt, &comic.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &comic, nil
}

// # Libraries

func (repository *SQLiteRepository) ListLibraries(ctx context.Context, viewer policy.Viewer) ([]*Library, error) {
	query := `SELECT id, name, root_path, watch_enabled, scan_on_startup, is_scanning, created_at, updated_at
		FROM libraries ORDER BY name`
	var args []any
	if !viewer.IsSuperuser {
		query = `SELECT l.id, l.name, l.root_path, l.watch_enabled, l.scan_on_startup, l.is_scanning, l.created_at, l.updated_at
			FROM libraries l
			JOIN user_libraries ul ON ul.library_id = l.id AND ul.user_id = ?
			ORDER BY l.name`
		args = append(args, viewer.UserID)
	}

	rows, err := repository.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dberr.Wrap(err, "list_libraries")
	}
	defer rows.Close()

	libraries := make([]*Library, 0)
	for rows.Next() {
		library := &Library{}
		if err := rows.Scan(&library.ID, &library.Name, &library.RootPath, &library.WatchEnabled,
			&library.ScanOnStartup, &library.IsScanning, &library.CreatedAt, &library.UpdatedAt); err != nil {
			return nil, dberr.Wrap(err, "scan_library")
		}
		libraries = append(libraries, library)
	}
	return libraries, dberr.Wrap(rows.Err(), "list_libraries")
}

func (repository *SQLiteRepository) GetLibrary(ctx context.Context, id int64) (*Library, error) {
	library := &Library{}
	err := repository.db.QueryRowContext(ctx,
		`SELECT id, name, root_path, watch_enabled, scan_on_startup, is_scanning, created_at, updated_at
		 FROM libraries WHERE id = ?`, id).
		Scan(&library.ID, &library.Name, &library.RootPath, &library.WatchEnabled,
			&library.ScanOnStartup, &library.IsScanning, &library.CreatedAt, &library.UpdatedAt)
	if err != nil {
		return nil, dberr.Wrap(err, "get_library")
	}
	return library, nil
}

// # Series

func (repository *SQLiteRepository) ListSeries(ctx context.Context, libraryID int64, viewer policy.Viewer, params pagination.Params) ([]*Series, int, error) {
	where := policy.And(
		policy.Fragment{SQL: "s.library_id = ?", Args: []any{libraryID}},
		viewer.LibraryScope("s"),
		viewer.SeriesVisible("s"),
	)

	var total int
	countQuery := `SELECT COUNT(*) FROM series s WHERE ` + where.SQL
	if err := repository.db.QueryRowContext(ctx, countQuery, where.Args...).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "count_series")
	}

	query := fmt.Sprintf(`
		SELECT s.id, s.library_id, s.name, s.summary, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM comics c JOIN volumes v ON c.volume_id = v.id WHERE v.series_id = s.id)
		FROM series s
		WHERE %s
		ORDER BY s.name
		LIMIT ? OFFSET ?`, where.SQL)
	args := append(append([]any{}, where.Args...), params.Size, params.Offset())

	rows, err := repository.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_series")
	}
	defer rows.Close()

	series := make([]*Series, 0)
	for rows.Next() {
		item := &Series{}
		if err := rows.Scan(&item.ID, &item.LibraryID, &item.Name, &item.Summary,
			&item.CreatedAt, &item.UpdatedAt, &item.IssueCount); err != nil {
			return nil, 0, dberr.Wrap(err, "scan_series")
		}
		item.Slug = slug.From(item.Name)
		series = append(series, item)
	}
	return series, total, dberr.Wrap(rows.Err(), "list_series")
}

func (repository *SQLiteRepository) GetSeries(ctx context.Context, id int64, viewer policy.Viewer) (*Series, error) {
	where := policy.And(
		policy.Fragment{SQL: "s.id = ?", Args: []any{id}},
		viewer.LibraryScope("s"),
		viewer.SeriesVisible("s"),
	)

	query := `
		SELECT s.id, s.library_id, s.name, s.summary, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM comics c JOIN volumes v ON c.volume_id = v.id WHERE v.series_id = s.id)
		FROM series s WHERE ` + where.SQL

	item := &Series{}
	err := repository.db.QueryRowContext(ctx, query, where.Args...).
		Scan(&item.ID, &item.LibraryID, &item.Name, &item.Summary, &item.CreatedAt, &item.UpdatedAt, &item.IssueCount)
	if err != nil {
		return nil, dberr.Wrap(err, "get_series")
	}
	item.Slug = slug.From(item.Name)
	return item, nil
}

func (repository *SQLiteRepository) PlainIssueNumbers(ctx context.Context, volumeID int64) ([]string, error) {
	rows, err := repository.db.QueryContext(ctx,
		`SELECT number FROM comics WHERE volume_id = ? AND TRIM(format) = ''`, volumeID)
	if err != nil {
		return nil, dberr.Wrap(err, "plain_issue_numbers")
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, dberr.Wrap(err, "scan_issue_number")
		}
		numbers = append(numbers, number)
	}
	return numbers, dberr.Wrap(rows.Err(), "plain_issue_numbers")
}

// VolumeDeclaredCount returns the largest declared issue total any issue
// in the volume claims, 0 when no issue declares one.
func (repository *SQLiteRepository) VolumeDeclaredCount(ctx context.Context, volumeID int64) (int, error) {
	var count int
	err := repository.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(declared_count), 0) FROM comics WHERE volume_id = ?`, volumeID).
		Scan(&count)
	if err != nil {
		return 0, dberr.Wrap(err, "volume_declared_count")
	}
	return count, nil
}

func (repository *SQLiteRepository) TopCreators(ctx context.Context, seriesID int64, limit int) ([]CreatorCount, error) {
	rows, err := repository.db.QueryContext(ctx, `
		SELECT p.id, p.name, cr.role, COUNT(*) AS issues
		FROM credits cr
		JOIN persons p ON cr.person_id = p.id
		JOIN comics c ON cr.comic_id = c.id
		JOIN volumes v ON c.volume_id = v.id
		WHERE v.series_id = ?
		GROUP BY p.id, p.name, cr.role
		ORDER BY issues DESC, p.name
		LIMIT ?`, seriesID, limit)
	if err != nil {
		return nil, dberr.Wrap(err, "top_creators")
	}
	defer rows.Close()

	creators := make([]CreatorCount, 0)
	for rows.Next() {
		var creator CreatorCount
		if err := rows.Scan(&creator.PersonID, &creator.Name, &creator.Role, &creator.Issues); err != nil {
			return nil, dberr.Wrap(err, "scan_creator")
		}
		creators = append(creators, creator)
	}
	return creators, dberr.Wrap(rows.Err(), "top_creators")
}

// RelatedSeries computes the recommendation lanes for a series detail
// page: other visible series sharing a series-group, a publisher, or the
// series' top writer. Every lane respects scope and the poison pill.
func (repository *SQLiteRepository) RelatedSeries(ctx context.Context, seriesID int64, viewer policy.Viewer) (map[string][]*Series, error) {
	visible := policy.And(
		policy.Fragment{SQL: "s.id <> ?", Args: []any{seriesID}},
		viewer.LibraryScope("s"),
		viewer.SeriesVisible("s"),
	)

	lanes := map[string]string{
		"same_series_group": `EXISTS (
			SELECT 1 FROM comics rc JOIN volumes rv ON rc.volume_id = rv.id
			WHERE rv.series_id = s.id AND rc.series_group IS NOT NULL AND rc.series_group IN (
				SELECT oc.series_group FROM comics oc JOIN volumes ov ON oc.volume_id = ov.id
				WHERE ov.series_id = ?1 AND oc.series_group IS NOT NULL))`,
		"same_publisher": `EXISTS (
			SELECT 1 FROM comics rc JOIN volumes rv ON rc.volume_id = rv.id
			WHERE rv.series_id = s.id AND rc.publisher IS NOT NULL AND rc.publisher IN (
				SELECT oc.publisher FROM comics oc JOIN volumes ov ON oc.volume_id = ov.id
				WHERE ov.series_id = ?1 AND oc.publisher IS NOT NULL))`,
		"same_top_writer": `EXISTS (
			SELECT 1 FROM comics rc JOIN volumes rv ON rc.volume_id = rv.id
			JOIN credits rcr ON rcr.comic_id = rc.id AND rcr.role = 'writer'
			WHERE rv.series_id = s.id AND rcr.person_id = (
				SELECT ocr.person_id FROM credits ocr
				JOIN comics oc ON ocr.comic_id = oc.id
				JOIN volumes ov ON oc.volume_id = ov.id
				WHERE ov.series_id = ?1 AND ocr.role = 'writer'
				GROUP BY ocr.person_id ORDER BY COUNT(*) DESC LIMIT 1))`,
	}

	results := make(map[string][]*Series, len(lanes))
	for lane, condition := range lanes {
		query := fmt.Sprintf(`
			SELECT s.id, s.library_id, s.name, s.summary, s.created_at, s.updated_at
			FROM series s
			WHERE %s AND %s
			ORDER BY s.name
			LIMIT 12`, condition, visible.SQL)
		args := append([]any{seriesID}, visible.Args...)

		rows, err := repository.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, dberr.Wrap(err, "related_series_"+lane)
		}

		items := make([]*Series, 0)
		for rows.Next() {
			item := &Series{}
			if err := rows.Scan(&item.ID, &item.LibraryID, &item.Name, &item.Summary,
				&item.CreatedAt, &item.UpdatedAt); err != nil {
				rows.Close()
				return nil, dberr.Wrap(err, "scan_related_series")
			}
			item.Slug = slug.From(item.Name)
			items = append(items, item)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, dberr.Wrap(err, "related_series_"+lane)
		}
		rows.Close()
		results[lane] = items
	}

	return results, nil
}

// # Volumes

func (repository *SQLiteRepository) ListVolumes(ctx context.Context, seriesID int64, viewer policy.Viewer) ([]*Volume, error) {
	rows, err := repository.db.QueryContext(ctx, `
		SELECT v.id, v.series_id, v.volume_number,
		       (SELECT COUNT(*) FROM comics c WHERE c.volume_id = v.id)
		FROM volumes v
		WHERE v.series_id = ?
		ORDER BY v.volume_number`, seriesID)
	if err != nil {
		return nil, dberr.Wrap(err, "list_volumes")
	}
	defer rows.Close()

	volumes := make([]*Volume, 0)
	for rows.Next() {
		volume := &Volume{}
		if err := rows.Scan(&volume.ID, &volume.SeriesID, &volume.VolumeNumber, &volume.IssueCount); err != nil {
			return nil, dberr.Wrap(err, "scan_volume")
		}
		volumes = append(volumes, volume)
	}
	return volumes, dberr.Wrap(rows.Err(), "list_volumes")
}

func (repository *SQLiteRepository) GetVolume(ctx context.Context, id int64, viewer policy.Viewer) (*Volume, error) {
	where := policy.And(
		policy.Fragment{SQL: "v.id = ?", Args: []any{id}},
		viewer.LibraryScope("s"),
		viewer.SeriesVisible("s"),
	)

	query := `
		SELECT v.id, v.series_id, v.volume_number,
		       (SELECT COUNT(*) FROM comics c WHERE c.volume_id = v.id)
		FROM volumes v JOIN series s ON v.series_id = s.id
		WHERE ` + where.SQL

	volume := &Volume{}
	err := repository.db.QueryRowContext(ctx, query, where.Args...).
		Scan(&volume.ID, &volume.SeriesID, &volume.VolumeNumber, &volume.IssueCount)
	if err != nil {
		return nil, dberr.Wrap(err, "get_volume")
	}
	return volume, nil
}

// # Comics

func (repository *SQLiteRepository) GetComicAccess(ctx context.Context, id int64, viewer policy.Viewer) (*ComicAccess, error) {
	scope := viewer.LibraryScope("s")
	rating := viewer.ComicAllowed("c")

	query := fmt.Sprintf(`
		SELECT %s, s.id, s.name, v.volume_number,
		       CASE WHEN %s THEN 1 ELSE 0 END,
		       CASE WHEN %s THEN 1 ELSE 0 END
		FROM %s
		WHERE c.id = ?`, comicColumns, scope.SQL, rating.SQL, comicJoin)
	args := append(append(append([]any{}, scope.Args...), rating.Args...), id)

	row := repository.db.QueryRowContext(ctx, query, args...)

	var access ComicAccess
	comic := &Comic{}
	err := row.Scan(
		&comic.ID, &comic.VolumeID, &comic.FilePath, &comic.FileName, &comic.FileSize, &comic.FileMtime,
		&comic.PageCount, &comic.Number, &comic.Title, &comic.Summary, &comic.Year, &comic.Month, &comic.Day,
		&comic.Web, &comic.Notes, &comic.AgeRating, &comic.LanguageISO, &comic.CommunityRating,
		&comic.DeclaredCount, &comic.Publisher, &comic.Imprint, &comic.Format, &comic.SeriesGroup,
		&comic.ScanInfo, &comic.AlternateSeries, &comic.AlternateNumber, &comic.StoryArc,
		&comic.RawMetadata, &comic.ThumbnailPath, &comic.ColorPalette, &comic.IsDirty,
		&comic.CreatedAt, &comic.UpdatedAt,
		&comic.SeriesID, &access.SeriesName, &access.VolumeNumber,
		&access.InScope, &access.RatingOK,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "get_comic")
	}

	comic.SeriesName = access.SeriesName
	comic.VolumeNumber = access.VolumeNumber
	access.Comic = comic
	return &access, nil
}

func (repository *SQLiteRepository) ListCredits(ctx context.Context, comicID int64) ([]CreditLine, error) {
	rows, err := repository.db.QueryContext(ctx, `
		SELECT p.id, p.name, cr.role
		FROM credits cr JOIN persons p ON cr.person_id = p.id
		WHERE cr.comic_id = ?
		ORDER BY cr.role, p.name`, comicID)
	if err != nil {
		return nil, dberr.Wrap(err, "list_credits")
	}
	defer rows.Close()

	credits := make([]CreditLine, 0)
	for rows.Next() {
		var credit CreditLine
		if err := rows.Scan(&credit.PersonID, &credit.Name, &credit.Role); err != nil {
			return nil, dberr.Wrap(err, "scan_credit")
		}
		credits = append(credits, credit)
	}
	return credits, dberr.Wrap(rows.Err(), "list_credits")
}
