// Copyright (c) 2026 Inkwell. All rights reserved.

package comic

import (
	"context"
	"fmt"

	"github.com/nhatvu/inkwell/internal/platform/apperr"
	"github.com/nhatvu/inkwell/internal/platform/dberr"
	"github.com/nhatvu/inkwell/internal/policy"
	"github.com/nhatvu/inkwell/pkg/pagination"
	"github.com/nhatvu/inkwell/pkg/slug"
)

// containerTables maps a container kind onto its schema triple.
func containerTables(kind string, viewer policy.Viewer) (table, itemTable, fkColumn string, visible policy.Fragment, err error) {
	switch kind {
	case ContextCollection:
		return "collections", "collection_items", "collection_id", viewer.CollectionVisible("t"), nil
	case ContextReadingList:
		return "reading_lists", "reading_list_items", "reading_list_id", viewer.ReadingListVisible("t"), nil
	}
	return "", "", "", policy.Fragment{}, apperr.ValidationError(fmt.Sprintf("unknown container kind %q", kind))
}

func scanContainer(row rowScanner) (*Container, error) {
	container := &Container{}
	err := row.Scan(&container.ID, &container.Name, &container.AutoGenerated,
		&container.CreatedAt, &container.IssueCount)
	if err != nil {
		return nil, err
	}
	container.Slug = slug.From(container.Name)
	return container, nil
}

func (repository *SQLiteRepository) ListContainers(ctx context.Context, kind string, viewer policy.Viewer, params pagination.Params) ([]*Container, int, error) {
	table, itemTable, fkColumn, visible, err := containerTables(kind, viewer)
	if err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s t WHERE %s`, table, visible.SQL)
	if err := repository.db.QueryRowContext(ctx, countQuery, visible.Args...).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "count_"+table)
	}

	query := fmt.Sprintf(`
		SELECT t.id, t.name, t.auto_generated, t.created_at,
		       (SELECT COUNT(*) FROM %s i WHERE i.%s = t.id)
		FROM %s t
		WHERE %s
		ORDER BY t.name
		LIMIT ? OFFSET ?`, itemTable, fkColumn, table, visible.SQL)
	args := append(append([]any{}, visible.Args...), params.Size, params.Offset())

	rows, err := repository.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_"+table)
	}
	defer rows.Close()

	containers := make([]*Container, 0)
	for rows.Next() {
		container, err := scanContainer(rows)
		if err != nil {
			return nil, 0, dberr.Wrap(err, "scan_container")
		}
		containers = append(containers, container)
	}
	return containers, total, dberr.Wrap(rows.Err(), "list_"+table)
}

func (repository *SQLiteRepository) GetContainer(ctx context.Context, kind string, id int64, viewer policy.Viewer) (*Container, error) {
	table, itemTable, fkColumn, visible, err := containerTables(kind, viewer)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT t.id, t.name, t.auto_generated, t.created_at,
		       (SELECT COUNT(*) FROM %s i WHERE i.%s = t.id)
		FROM %s t
		WHERE t.id = ? AND %s`, itemTable, fkColumn, table, visible.SQL)
	args := append([]any{id}, visible.Args...)

	container, err := scanContainer(repository.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, dberr.Wrap(err, "get_"+table)
	}
	return container, nil
}

// # Pull lists

func (repository *SQLiteRepository) ListPullLists(ctx context.Context, userID int64) ([]*PullList, error) {
	rows, err := repository.db.QueryContext(ctx, `
		SELECT pl.id, pl.name, pl.created_at,
		       (SELECT COUNT(*) FROM pull_list_items pli WHERE pli.pull_list_id = pl.id)
		FROM pull_lists pl
		WHERE pl.user_id = ?
		ORDER BY pl.name`, userID)
	if err != nil {
		return nil, dberr.Wrap(err, "list_pull_lists")
	}
	defer rows.Close()

	lists := make([]*PullList, 0)
	for rows.Next() {
		list := &PullList{}
		if err := rows.Scan(&list.ID, &list.Name, &list.CreatedAt, &list.IssueCount); err != nil {
			return nil, dberr.Wrap(err, "scan_pull_list")
		}
		lists = append(lists, list)
	}
	return lists, dberr.Wrap(rows.Err(), "list_pull_lists")
}

func (repository *SQLiteRepository) GetPullList(ctx context.Context, id, userID int64) (*PullList, error) {
	list := &PullList{}
	err := repository.db.QueryRowContext(ctx, `
		SELECT pl.id, pl.name, pl.created_at,
		       (SELECT COUNT(*) FROM pull_list_items pli WHERE pli.pull_list_id = pl.id)
		FROM pull_lists pl
		WHERE pl.id = ? AND pl.user_id = ?`, id, userID).
		Scan(&list.ID, &list.Name, &list.CreatedAt, &list.IssueCount)
	if err != nil {
		return nil, dberr.Wrap(err, "get_pull_list")
	}
	return list, nil
}
