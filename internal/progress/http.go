// Copyright (c) 2026 Inkwell. All rights reserved.

package progress

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nhatvu/inkwell/internal/comic"
	requestutil "github.com/nhatvu/inkwell/internal/platform/request"
	"github.com/nhatvu/inkwell/internal/platform/respond"
	"github.com/nhatvu/inkwell/internal/policy"
	"github.com/nhatvu/inkwell/pkg/convert"
)

// Handler exposes the progress and activity endpoints.
type Handler struct {
	service *Service
	viewers comic.ViewerSource
}

func NewHandler(service *Service, viewers comic.ViewerSource) *Handler {
	return &Handler{service: service, viewers: viewers}
}

func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/progress/{id}", handler.save)
	router.Post("/progress/{id}/mark-read", handler.markRead)
	router.Delete("/progress/{id}", handler.remove)
	router.Post("/batch/read-status", handler.batch)
	router.Get("/activity/heatmap", handler.heatmap)
	router.Get("/activity/streak", handler.streak)
}

func (handler *Handler) viewer(request *http.Request) (policy.Viewer, int64, error) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		return policy.Viewer{}, 0, err
	}
	viewer, err := handler.viewers.ViewerFor(request)
	if err != nil {
		return policy.Viewer{}, 0, err
	}
	return viewer, claims.UserID, nil
}

func (handler *Handler) save(writer http.ResponseWriter, request *http.Request) {
	viewer, userID, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	comicID, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	var body SaveRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	saved, err := handler.service.Save(request.Context(), userID, comicID, viewer, body)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, saved)
}

func (handler *Handler) markRead(writer http.ResponseWriter, request *http.Request) {
	viewer, userID, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	comicID, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	saved, err := handler.service.MarkRead(request.Context(), userID, comicID, viewer)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, saved)
}

func (handler *Handler) remove(writer http.ResponseWriter, request *http.Request) {
	_, userID, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	comicID, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Delete(request.Context(), userID, comicID); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

func (handler *Handler) batch(writer http.ResponseWriter, request *http.Request) {
	viewer, userID, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	var body BatchRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	updated, err := handler.service.BatchReadStatus(request.Context(), userID, viewer, body)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]int{"updated": updated})
}

func (handler *Handler) heatmap(writer http.ResponseWriter, request *http.Request) {
	_, userID, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	days := convert.ToInt(request.URL.Query().Get("days"))

	heatmap, err := handler.service.Heatmap(request.Context(), userID, days)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, heatmap)
}

func (handler *Handler) streak(writer http.ResponseWriter, request *http.Request) {
	_, userID, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	streak, err := handler.service.Streak(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]int{"streak": streak})
}
