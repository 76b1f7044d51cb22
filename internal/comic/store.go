// Copyright (c) 2026 Inkwell. All rights reserved.

package comic

import (
	"context"

	"github.com/nhatvu/inkwell/internal/policy"
	"github.com/nhatvu/inkwell/pkg/pagination"
)

// ComicAccess is the direct-fetch projection: the row plus the two
// policy verdicts the service turns into 404 / 403.
type ComicAccess struct {
	Comic        *Comic
	InScope      bool
	RatingOK     bool
	SeriesName   string
	VolumeNumber int
}

// ContextIssue is one entry of a reader navigation list.
type ContextIssue struct {
	ID           int64
	Number       string
	Format       string
	Year         *int
	Month        *int
	Day          *int
	VolumeNumber int
	Position     float64
	SortOrder    int
}

// Repository is the read-side contract over the library model.
type Repository interface {
	ListLibraries(ctx context.Context, viewer policy.Viewer) ([]*Library, error)
	GetLibrary(ctx context.Context, id int64) (*Library, error)

	ListSeries(ctx context.Context, libraryID int64, viewer policy.Viewer, params pagination.Params) ([]*Series, int, error)
	GetSeries(ctx context.Context, id int64, viewer policy.Viewer) (*Series, error)
	PlainIssueNumbers(ctx context.Context, volumeID int64) ([]string, error)
	VolumeDeclaredCount(ctx context.Context, volumeID int64) (int, error)
	TopCreators(ctx context.Context, seriesID int64, limit int) ([]CreatorCount, error)
	RelatedSeries(ctx context.Context, seriesID int64, viewer policy.Viewer) (map[string][]*Series, error)

	ListVolumes(ctx context.Context, seriesID int64, viewer policy.Viewer) ([]*Volume, error)
	GetVolume(ctx context.Context, id int64, viewer policy.Viewer) (*Volume, error)

	GetComicAccess(ctx context.Context, id int64, viewer policy.Viewer) (*ComicAccess, error)
	ListCredits(ctx context.Context, comicID int64) ([]CreditLine, error)

	// SortRecords returns the sortable issue projection for one scope:
	// "volume" or "series". The viewer's comic predicate and library
	// scope are applied.
	SortRecords(ctx context.Context, scope string, id int64, viewer policy.Viewer) ([]SortRecord, error)

	// Issues returns full rows for a volume or series scope, filtered by
	// the viewer and the optional read filter ("read"/"unread" against
	// userID's progress).
	Issues(ctx context.Context, scope string, id int64, viewer policy.Viewer, readFilter string, userID int64) ([]*Comic, error)

	// ContextIssues returns the raw navigation list for a reader context
	// before in-memory ordering. The container's poison pill and the
	// viewer's scope are applied; a poisoned context yields no rows.
	ContextIssues(ctx context.Context, contextType string, contextID int64, viewer policy.Viewer, userID int64) ([]ContextIssue, string, error)

	Search(ctx context.Context, req SearchRequest, viewer policy.Viewer) ([]*Comic, int, error)

	// ListContainers and GetContainer serve the shared read surface of
	// collections and reading lists; kind is ContextCollection or
	// ContextReadingList. Invisible (poisoned) containers are absent.
	ListContainers(ctx context.Context, kind string, viewer policy.Viewer, params pagination.Params) ([]*Container, int, error)
	GetContainer(ctx context.Context, kind string, id int64, viewer policy.Viewer) (*Container, error)

	ListPullLists(ctx context.Context, userID int64) ([]*PullList, error)
	GetPullList(ctx context.Context, id, userID int64) (*PullList, error)
}
