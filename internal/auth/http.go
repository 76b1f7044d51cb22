// Copyright (c) 2026 Inkwell. All rights reserved.

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/nhatvu/inkwell/internal/platform/request"
	"github.com/nhatvu/inkwell/internal/platform/respond"
)

// Handler exposes login and the current-account endpoint.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes mounts the endpoints reachable without a token.
func (handler *Handler) RegisterPublicRoutes(router chi.Router) {
	router.Post("/auth/login", handler.login)
}

// RegisterRoutes mounts the authenticated endpoints.
func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/auth/me", handler.me)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var body loginRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.Login(request.Context(), body.Username, body.Password)
	if err != nil {
		// The 401 envelope carries the bearer challenge.
		writer.Header().Set("WWW-Authenticate", "Bearer")
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, result)
}

func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.GetUser(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, user)
}
