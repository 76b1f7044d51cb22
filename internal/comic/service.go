// Copyright (c) 2026 Inkwell. All rights reserved.

package comic

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/nhatvu/inkwell/internal/archive"
	"github.com/nhatvu/inkwell/internal/platform/apperr"
	"github.com/nhatvu/inkwell/internal/policy"
	"github.com/nhatvu/inkwell/pkg/pagination"
	"github.com/nhatvu/inkwell/pkg/pointer"
)

// Service implements the policy-aware read operations over the library
// model. Every method takes the caller's viewer; no query runs without
// its predicates attached.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	coverDir string
}

// NewService wires the query layer. coverDir is the thumbnail cache
// directory ("<data>/cover").
func NewService(repo Repository, coverDir string, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, coverDir: coverDir}
}

// # Libraries

func (service *Service) ListLibraries(ctx context.Context, viewer policy.Viewer) ([]*Library, error) {
	return service.repo.ListLibraries(ctx, viewer)
}

func (service *Service) GetLibrary(ctx context.Context, id int64, viewer policy.Viewer) (*Library, error) {
	if !viewer.IsSuperuser {
		accessible := false
		for _, libraryID := range viewer.AccessibleLibraries {
			if libraryID == id {
				accessible = true
				break
			}
		}
		if !accessible {
			return nil, apperr.NotFound("Library")
		}
	}
	return service.repo.GetLibrary(ctx, id)
}

func (service *Service) ListSeries(ctx context.Context, libraryID int64, viewer policy.Viewer, params pagination.Params) ([]*Series, int, error) {
	return service.repo.ListSeries(ctx, libraryID, viewer, params)
}

// # Series & Volume detail

// VolumeSummary is one volume on a series detail page.
type VolumeSummary struct {
	*Volume
	MissingIssues string `json:"missing_issues,omitempty"`
	CoverComicID  *int64 `json:"cover_comic_id,omitempty"`
}

// SeriesDetail is the aggregated series payload.
type SeriesDetail struct {
	*Series
	Volumes         []VolumeSummary      `json:"volumes"`
	TopCreators     []CreatorCount       `json:"top_creators"`
	Recommendations map[string][]*Series `json:"recommendations"`
	CoverComicID    *int64               `json:"cover_comic_id,omitempty"`
}

func (service *Service) GetSeriesDetail(ctx context.Context, id int64, viewer policy.Viewer) (*SeriesDetail, error) {
	series, err := service.repo.GetSeries(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	reverse := IsReverseNumbered(series.Name)

	volumes, err := service.repo.ListVolumes(ctx, id, viewer)
	if err != nil {
		return nil, err
	}

	summaries := make([]VolumeSummary, 0, len(volumes))
	for _, volume := range volumes {
		summary := VolumeSummary{Volume: volume}

		numbers, err := service.repo.PlainIssueNumbers(ctx, volume.ID)
		if err != nil {
			return nil, err
		}
		declared, err := service.repo.VolumeDeclaredCount(ctx, volume.ID)
		if err != nil {
			return nil, err
		}
		summary.MissingIssues = MissingIssues(declared, numbers)

		records, err := service.repo.SortRecords(ctx, ContextVolume, volume.ID, viewer)
		if err != nil {
			return nil, err
		}
		if coverID, ok := PickCover(records, reverse); ok {
			summary.CoverComicID = &coverID
		}
		summaries = append(summaries, summary)
	}

	creators, err := service.repo.TopCreators(ctx, id, 10)
	if err != nil {
		return nil, err
	}
	recommendations, err := service.repo.RelatedSeries(ctx, id, viewer)
	if err != nil {
		return nil, err
	}

	detail := &SeriesDetail{
		Series:          series,
		Volumes:         summaries,
		TopCreators:     creators,
		Recommendations: recommendations,
	}

	records, err := service.repo.SortRecords(ctx, ContextSeries, id, viewer)
	if err != nil {
		return nil, err
	}
	if coverID, ok := PickCover(records, reverse); ok {
		detail.CoverComicID = &coverID
	}
	return detail, nil
}

// VolumeDetail is the aggregated volume payload.
type VolumeDetail struct {
	*Volume
	MissingIssues string `json:"missing_issues,omitempty"`
	CoverComicID  *int64 `json:"cover_comic_id,omitempty"`
}

func (service *Service) GetVolumeDetail(ctx context.Context, id int64, viewer policy.Viewer) (*VolumeDetail, error) {
	volume, err := service.repo.GetVolume(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	series, err := service.repo.GetSeries(ctx, volume.SeriesID, viewer)
	if err != nil {
		return nil, err
	}

	numbers, err := service.repo.PlainIssueNumbers(ctx, id)
	if err != nil {
		return nil, err
	}
	declared, err := service.repo.VolumeDeclaredCount(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &VolumeDetail{Volume: volume, MissingIssues: MissingIssues(declared, numbers)}

	records, err := service.repo.SortRecords(ctx, ContextVolume, id, viewer)
	if err != nil {
		return nil, err
	}
	if coverID, ok := PickCover(records, IsReverseNumbered(series.Name)); ok {
		detail.CoverComicID = &coverID
	}
	return detail, nil
}

// # Issue listings

// IssueListQuery captures the filter/sort knobs of the issue listing
// endpoints.
type IssueListQuery struct {
	Type       string // plain | annual | special | all
	ReadFilter string // read | unread | all
	SortOrder  string // asc | desc
	Params     pagination.Params
}

func (service *Service) ListSeriesIssues(ctx context.Context, seriesID int64, viewer policy.Viewer, userID int64, query IssueListQuery) ([]*Comic, int, error) {
	series, err := service.repo.GetSeries(ctx, seriesID, viewer)
	if err != nil {
		return nil, 0, err
	}
	return service.listIssues(ctx, ContextSeries, seriesID, series.Name, viewer, userID, query)
}

func (service *Service) ListVolumeIssues(ctx context.Context, volumeID int64, viewer policy.Viewer, userID int64, query IssueListQuery) ([]*Comic, int, error) {
	volume, err := service.repo.GetVolume(ctx, volumeID, viewer)
	if err != nil {
		return nil, 0, err
	}
	series, err := service.repo.GetSeries(ctx, volume.SeriesID, viewer)
	if err != nil {
		return nil, 0, err
	}
	return service.listIssues(ctx, ContextVolume, volumeID, series.Name, viewer, userID, query)
}

func (service *Service) listIssues(ctx context.Context, scope string, id int64, seriesName string, viewer policy.Viewer, userID int64, query IssueListQuery) ([]*Comic, int, error) {
	comics, err := service.repo.Issues(ctx, scope, id, viewer, query.ReadFilter, userID)
	if err != nil {
		return nil, 0, err
	}

	switch query.Type {
	case "", "all":
	case TypePlain, TypeAnnual, TypeSpecial:
		filtered := comics[:0]
		for _, comic := range comics {
			if ClassifyFormat(comic.Format) == query.Type {
				filtered = append(filtered, comic)
			}
		}
		comics = filtered
	default:
		return nil, 0, apperr.ValidationError(fmt.Sprintf("unknown issue type %q", query.Type))
	}

	reverse := IsReverseNumbered(seriesName)
	sort.SliceStable(comics, func(i, j int) bool {
		a, b := comics[i], comics[j]
		if scope == ContextSeries && a.VolumeNumber != b.VolumeNumber {
			return a.VolumeNumber < b.VolumeNumber
		}
		return CompareIssues(sortRecordOf(a), sortRecordOf(b), reverse) < 0
	})
	if query.SortOrder == "desc" {
		for i, j := 0, len(comics)-1; i < j; i, j = i+1, j-1 {
			comics[i], comics[j] = comics[j], comics[i]
		}
	}

	total := len(comics)
	start := query.Params.Offset()
	if start > total {
		start = total
	}
	end := start + query.Params.Size
	if end > total {
		end = total
	}
	return comics[start:end], total, nil
}

func sortRecordOf(comic *Comic) SortRecord {
	return SortRecord{
		ID:     comic.ID,
		Number: comic.Number,
		Format: comic.Format,
		Year:   comic.Year,
		Month:  comic.Month,
		Day:    comic.Day,
	}
}

// # Direct issue access

// ComicDetail is the single-issue payload with credits attached.
type ComicDetail struct {
	*Comic
	Credits []CreditLine `json:"credits"`
}

// GetComic applies the direct-access rules: 404 when the issue does not
// exist or sits outside the viewer's library scope, 403 when the age
// rating alone blocks it. The poison pill does not apply to direct
// fetches.
func (service *Service) GetComic(ctx context.Context, id int64, viewer policy.Viewer) (*ComicDetail, error) {
	access, err := service.repo.GetComicAccess(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	if !access.InScope {
		return nil, apperr.NotFound("Comic")
	}
	if !access.RatingOK {
		return nil, apperr.Forbidden("Content is restricted by your age rating")
	}

	credits, err := service.repo.ListCredits(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ComicDetail{Comic: access.Comic, Credits: credits}, nil
}

// resolveReadable fetches a comic enforcing the direct-access rules and
// returns the underlying row for file operations.
func (service *Service) resolveReadable(ctx context.Context, id int64, viewer policy.Viewer) (*Comic, error) {
	access, err := service.repo.GetComicAccess(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	if !access.InScope {
		return nil, apperr.NotFound("Comic")
	}
	if !access.RatingOK {
		return nil, apperr.Forbidden("Content is restricted by your age rating")
	}
	return access.Comic, nil
}

// ComicPages lists the ordered page names of an issue's archive.
func (service *Service) ComicPages(ctx context.Context, id int64, viewer policy.Viewer) ([]string, error) {
	comic, err := service.resolveReadable(ctx, id, viewer)
	if err != nil {
		return nil, err
	}

	reader, err := archive.Open(comic.FilePath)
	if err != nil {
		service.logger.WarnContext(ctx, "archive_open_failed",
			slog.Int64("comic_id", id), slog.String("path", comic.FilePath), slog.Any("error", err))
		return nil, apperr.NotFound("Comic archive")
	}
	defer func() { _ = reader.Close() }()

	return reader.Pages(), nil
}

// ComicPage returns the raw bytes and entry name of one page by index.
func (service *Service) ComicPage(ctx context.Context, id int64, index int, viewer policy.Viewer) ([]byte, string, error) {
	comic, err := service.resolveReadable(ctx, id, viewer)
	if err != nil {
		return nil, "", err
	}

	reader, err := archive.Open(comic.FilePath)
	if err != nil {
		return nil, "", apperr.NotFound("Comic archive")
	}
	defer func() { _ = reader.Close() }()

	pages := reader.Pages()
	if index < 0 || index >= len(pages) {
		return nil, "", apperr.NotFound("Page")
	}

	data, err := reader.ReadPage(pages[index])
	if err != nil {
		return nil, "", apperr.Internal(err)
	}
	return data, pages[index], nil
}

// Thumbnail returns the cached thumbnail path when one exists, or falls
// back to the first archive page. Read paths never write the database,
// so a missing thumbnail is served from the archive instead of being
// regenerated here.
func (service *Service) Thumbnail(ctx context.Context, id int64, viewer policy.Viewer) (string, []byte, string, error) {
	comic, err := service.resolveReadable(ctx, id, viewer)
	if err != nil {
		return "", nil, "", err
	}

	cached := filepath.Join(service.coverDir, fmt.Sprintf("comic_%d.webp", id))
	if comic.ThumbnailPath != nil && *comic.ThumbnailPath != "" {
		cached = *comic.ThumbnailPath
	}
	if _, statErr := os.Stat(cached); statErr == nil {
		return cached, nil, "", nil
	}

	data, name, err := service.ComicPage(ctx, id, 0, viewer)
	if err != nil {
		return "", nil, "", err
	}
	return "", data, name, nil
}

// # Reader navigation

// ReadInit is the reader bootstrap payload.
type ReadInit struct {
	ComicID      int64   `json:"comic_id"`
	Title        *string `json:"title"`
	SeriesName   string  `json:"series_name"`
	VolumeNumber int     `json:"volume_number"`
	Number       string  `json:"number"`
	PageCount    int     `json:"page_count"`
	PrevComicID  *int64  `json:"prev_comic_id"`
	NextComicID  *int64  `json:"next_comic_id"`
	Position     int     `json:"position"`
	Total        int     `json:"total"`
	Context      string  `json:"context"`
}

// ReadInitFor computes the ordered navigation list for the requested
// context and positions the comic inside it. A comic outside the
// context still succeeds with null prev/next.
func (service *Service) ReadInitFor(ctx context.Context, comicID int64, contextType string, contextID int64, viewer policy.Viewer, userID int64) (*ReadInit, error) {
	comic, err := service.resolveReadable(ctx, comicID, viewer)
	if err != nil {
		return nil, err
	}

	if contextType == "" {
		contextType = ContextVolume
	}
	if contextID == 0 {
		switch contextType {
		case ContextVolume:
			contextID = comic.VolumeID
		case ContextSeries:
			contextID = comic.SeriesID
		}
	}

	issues, label, err := service.repo.ContextIssues(ctx, contextType, contextID, viewer, userID)
	if err != nil {
		return nil, err
	}
	orderContext(contextType, comic.SeriesName, issues)

	result := &ReadInit{
		ComicID:      comic.ID,
		Title:        comic.Title,
		SeriesName:   comic.SeriesName,
		VolumeNumber: comic.VolumeNumber,
		Number:       comic.Number,
		PageCount:    comic.PageCount,
		Total:        len(issues),
		Context:      label,
	}

	for index, issue := range issues {
		if issue.ID != comic.ID {
			continue
		}
		result.Position = index + 1
		if index > 0 {
			result.PrevComicID = pointer.To(issues[index-1].ID)
		}
		if index < len(issues)-1 {
			result.NextComicID = pointer.To(issues[index+1].ID)
		}
		break
	}
	return result, nil
}

// orderContext sorts a navigation list with the context-appropriate
// order: curated positions for lists, the canonical issue sort for
// volume/series scopes.
func orderContext(contextType, seriesName string, issues []ContextIssue) {
	switch contextType {
	case ContextReadingList:
		sort.SliceStable(issues, func(i, j int) bool { return issues[i].Position < issues[j].Position })
	case ContextPullList:
		sort.SliceStable(issues, func(i, j int) bool { return issues[i].SortOrder < issues[j].SortOrder })
	case ContextCollection:
		sort.SliceStable(issues, func(i, j int) bool { return issues[i].ID < issues[j].ID })
	default:
		reverse := IsReverseNumbered(seriesName)
		sort.SliceStable(issues, func(i, j int) bool {
			a, b := issues[i], issues[j]
			if a.VolumeNumber != b.VolumeNumber {
				return a.VolumeNumber < b.VolumeNumber
			}
			recordA := SortRecord{ID: a.ID, Number: a.Number, Format: a.Format, Year: a.Year, Month: a.Month, Day: a.Day}
			recordB := SortRecord{ID: b.ID, Number: b.Number, Format: b.Format, Year: b.Year, Month: b.Month, Day: b.Day}
			return CompareIssues(recordA, recordB, reverse) < 0
		})
	}
}

// # Search

func (service *Service) Search(ctx context.Context, req SearchRequest, viewer policy.Viewer) ([]*Comic, int, error) {
	if err := req.Normalize(); err != nil {
		return nil, 0, err
	}
	return service.repo.Search(ctx, req, viewer)
}
