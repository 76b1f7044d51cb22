// Copyright (c) 2026 Inkwell. All rights reserved.

package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nhatvu/inkwell/internal/jobs"
	"github.com/nhatvu/inkwell/internal/platform/apperr"
	requestutil "github.com/nhatvu/inkwell/internal/platform/request"
	"github.com/nhatvu/inkwell/internal/platform/respond"
	"github.com/nhatvu/inkwell/pkg/convert"
	"github.com/nhatvu/inkwell/pkg/pagination"
)

// BackupFunc runs one hot backup and returns the archive path.
type BackupFunc func(ctx context.Context) (string, error)

// AdminHandler exposes the superuser maintenance surface: scan
// triggers, job introspection, and the manual cleanup/backup tasks.
type AdminHandler struct {
	db      *sql.DB
	manager *jobs.Manager
	backup  BackupFunc
	logger  *slog.Logger
}

func NewAdminHandler(db *sql.DB, manager *jobs.Manager, backup BackupFunc, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{db: db, manager: manager, backup: backup, logger: logger}
}

func (handler *AdminHandler) RegisterRoutes(router chi.Router) {
	router.Post("/libraries/{id}/scan", handler.triggerScan)
	router.Get("/jobs", handler.listJobs)
	router.Get("/jobs/active", handler.activeJobs)
	router.Post("/tasks/cleanup", handler.triggerCleanup)
	router.Post("/tasks/backup", handler.triggerBackup)
}

func requireSuperuser(request *http.Request) error {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		return err
	}
	if !claims.IsSuperuser {
		return apperr.Forbidden("Superuser privileges required")
	}
	return nil
}

func (handler *AdminHandler) triggerScan(writer http.ResponseWriter, request *http.Request) {
	if err := requireSuperuser(request); err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	force := convert.ToBool(request.URL.Query().Get("force"))

	result, err := handler.manager.EnqueueScan(request.Context(), id, force)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, result)
}

func (handler *AdminHandler) listJobs(writer http.ResponseWriter, request *http.Request) {
	if err := requireSuperuser(request); err != nil {
		respond.Error(writer, request, err)
		return
	}
	params := pagination.FromRequest(request, pagination.MaxSize)

	list, total, err := jobs.ListJobs(request.Context(), handler.db, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Paginated(writer, list, params, total)
}

func (handler *AdminHandler) activeJobs(writer http.ResponseWriter, request *http.Request) {
	if err := requireSuperuser(request); err != nil {
		respond.Error(writer, request, err)
		return
	}

	list, err := jobs.ActiveJobs(request.Context(), handler.db)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, list)
}

func (handler *AdminHandler) triggerCleanup(writer http.ResponseWriter, request *http.Request) {
	if err := requireSuperuser(request); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.manager.EnqueueCleanup(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, result)
}

// triggerBackup runs synchronously: the snapshot is fast (VACUUM INTO)
// and the caller wants the archive path back.
func (handler *AdminHandler) triggerBackup(writer http.ResponseWriter, request *http.Request) {
	if err := requireSuperuser(request); err != nil {
		respond.Error(writer, request, err)
		return
	}

	path, err := handler.backup(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]string{"archive": path})
}
