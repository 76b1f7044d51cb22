// Copyright (c) 2026 Inkwell. All rights reserved.

package comic

import (
	"context"
	"time"

	"github.com/nhatvu/inkwell/internal/policy"
	"github.com/nhatvu/inkwell/pkg/pagination"
	"github.com/nhatvu/inkwell/pkg/slice"
)

// Container is a collection or reading list in API payloads. Both kinds
// share a shape; reading lists additionally carry curated positions on
// their items.
type Container struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	AutoGenerated bool      `json:"auto_generated"`
	CreatedAt     time.Time `json:"created_at"`
	IssueCount    int       `json:"issue_count"`
}

// PullList is a per-user curated list of issues to follow.
type PullList struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	IssueCount int       `json:"issue_count"`
}

// ContainerItem is one ordered member reference in a container detail
// payload. Clients resolve the full issue through /comics/{id}.
type ContainerItem struct {
	ComicID      int64   `json:"comic_id"`
	Number       string  `json:"number"`
	Format       string  `json:"format,omitempty"`
	VolumeNumber int     `json:"volume_number"`
	Position     float64 `json:"position,omitempty"`
}

// ContainerDetail is a container plus its visible membership in reading
// order.
type ContainerDetail struct {
	*Container
	Items []ContainerItem `json:"items"`
}

// PullListDetail is a pull list plus its members in curated order.
type PullListDetail struct {
	*PullList
	Items []ContainerItem `json:"items"`
}

// # Collections / Reading lists

func (service *Service) ListCollections(ctx context.Context, viewer policy.Viewer, params pagination.Params) ([]*Container, int, error) {
	return service.repo.ListContainers(ctx, ContextCollection, viewer, params)
}

func (service *Service) ListReadingLists(ctx context.Context, viewer policy.Viewer, params pagination.Params) ([]*Container, int, error) {
	return service.repo.ListContainers(ctx, ContextReadingList, viewer, params)
}

func (service *Service) GetCollection(ctx context.Context, id int64, viewer policy.Viewer, userID int64) (*ContainerDetail, error) {
	return service.containerDetail(ctx, ContextCollection, id, viewer, userID)
}

func (service *Service) GetReadingList(ctx context.Context, id int64, viewer policy.Viewer, userID int64) (*ContainerDetail, error) {
	return service.containerDetail(ctx, ContextReadingList, id, viewer, userID)
}

func (service *Service) containerDetail(ctx context.Context, kind string, id int64, viewer policy.Viewer, userID int64) (*ContainerDetail, error) {
	container, err := service.repo.GetContainer(ctx, kind, id, viewer)
	if err != nil {
		return nil, err
	}

	issues, _, err := service.repo.ContextIssues(ctx, kind, id, viewer, userID)
	if err != nil {
		return nil, err
	}
	orderContext(kind, "", issues)

	return &ContainerDetail{Container: container, Items: containerItems(kind, issues)}, nil
}

// # Pull lists

func (service *Service) ListPullLists(ctx context.Context, userID int64) ([]*PullList, error) {
	return service.repo.ListPullLists(ctx, userID)
}

func (service *Service) GetPullList(ctx context.Context, id int64, viewer policy.Viewer, userID int64) (*PullListDetail, error) {
	list, err := service.repo.GetPullList(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	issues, _, err := service.repo.ContextIssues(ctx, ContextPullList, id, viewer, userID)
	if err != nil {
		return nil, err
	}
	orderContext(ContextPullList, "", issues)

	return &PullListDetail{PullList: list, Items: containerItems(ContextPullList, issues)}, nil
}

// containerItems projects an ordered navigation list onto the item
// payload. The position field carries the curated ordering key where one
// exists.
func containerItems(kind string, issues []ContextIssue) []ContainerItem {
	items := slice.Map(issues, func(issue ContextIssue) ContainerItem {
		item := ContainerItem{
			ComicID:      issue.ID,
			Number:       issue.Number,
			Format:       issue.Format,
			VolumeNumber: issue.VolumeNumber,
		}
		switch kind {
		case ContextReadingList:
			item.Position = issue.Position
		case ContextPullList:
			item.Position = float64(issue.SortOrder)
		}
		return item
	})
	if items == nil {
		items = []ContainerItem{}
	}
	return items
}
