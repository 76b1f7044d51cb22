// Copyright (c) 2026 Inkwell. All rights reserved.

package settings

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nhatvu/inkwell/internal/platform/apperr"
	requestutil "github.com/nhatvu/inkwell/internal/platform/request"
	"github.com/nhatvu/inkwell/internal/platform/respond"
)

// Handler exposes the settings admin surface.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/settings", handler.list)
	router.Put("/settings/{key}", handler.update)
}

func requireSuperuser(request *http.Request) error {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		return err
	}
	if !claims.IsSuperuser {
		return apperr.Forbidden("Superuser access required")
	}
	return nil
}

func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	if err := requireSuperuser(request); err != nil {
		respond.Error(writer, request, err)
		return
	}

	grouped, err := handler.service.List(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, grouped)
}

type updateRequest struct {
	Value string `json:"value"`
}

func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	if err := requireSuperuser(request); err != nil {
		respond.Error(writer, request, err)
		return
	}

	key := requestutil.Param(request, "key")
	var body updateRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Update(request.Context(), key, body.Value); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]string{"key": key, "value": body.Value})
}
