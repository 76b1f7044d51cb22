// Copyright (c) 2026 Inkwell. All rights reserved.

package comic

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nhatvu/inkwell/internal/platform/apperr"
	requestutil "github.com/nhatvu/inkwell/internal/platform/request"
	"github.com/nhatvu/inkwell/internal/platform/respond"
	"github.com/nhatvu/inkwell/internal/policy"
	"github.com/nhatvu/inkwell/pkg/pagination"
)

// ViewerSource resolves the authenticated request into the policy
// viewer every read query embeds. Implemented by the auth service.
type ViewerSource interface {
	ViewerFor(r *http.Request) (policy.Viewer, error)
}

// Handler exposes the library read surface.
type Handler struct {
	service *Service
	viewers ViewerSource
}

func NewHandler(service *Service, viewers ViewerSource) *Handler {
	return &Handler{service: service, viewers: viewers}
}

func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/libraries", handler.listLibraries)
	router.Get("/libraries/{id}", handler.getLibrary)
	router.Get("/libraries/{id}/series", handler.listSeries)

	router.Get("/series/{id}", handler.getSeries)
	router.Get("/series/{id}/issues", handler.listSeriesIssues)

	router.Get("/volumes/{id}", handler.getVolume)
	router.Get("/volumes/{id}/issues", handler.listVolumeIssues)

	router.Get("/comics/{id}", handler.getComic)
	router.Get("/comics/{id}/pages", handler.listPages)
	router.Get("/comics/{id}/cover", handler.getCover)
	router.Get("/comics/{id}/thumbnail", handler.getThumbnail)
	router.Post("/comics/search", handler.search)

	router.Get("/reader/{id}/read-init", handler.readInit)
	router.Get("/reader/{id}/page/{index}", handler.readPage)

	router.Get("/collections", handler.listCollections)
	router.Get("/collections/{id}", handler.getCollection)
	router.Get("/reading-lists", handler.listReadingLists)
	router.Get("/reading-lists/{id}", handler.getReadingList)
	router.Get("/pull-lists", handler.listPullLists)
	router.Get("/pull-lists/{id}", handler.getPullList)
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

// # Libraries

func (handler *Handler) listLibraries(writer http.ResponseWriter, request *http.Request) {
	viewer, _, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	libraries, err := handler.service.ListLibraries(request.Context(), viewer)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, libraries)
}

func (handler *Handler) getLibrary(writer http.ResponseWriter, request *http.Request) {
	viewer, _, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	library, err := handler.service.GetLibrary(request.Context(), id, viewer)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, library)
}

func (handler *Handler) listSeries(writer http.ResponseWriter, request *http.Request) {
	viewer, _, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	params := pagination.FromRequest(request, pagination.MaxSize)

	series, total, err := handler.service.ListSeries(request.Context(), id, viewer, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Paginated(writer, series, params, total)
}

// # Series / Volumes

func (handler *Handler) getSeries(writer http.ResponseWriter, request *http.Request) {
	viewer, _, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	detail, err := handler.service.GetSeriesDetail(request.Context(), id, viewer)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, detail)
}

func issueQuery(request *http.Request) IssueListQuery {
	return IssueListQuery{
		Type:       request.URL.Query().Get("type"),
		ReadFilter: request.URL.Query().Get("read_filter"),
		SortOrder:  request.URL.Query().Get("sort_order"),
		Params:     pagination.FromRequest(request, pagination.MaxSize),
	}
}

func (handler *Handler) listSeriesIssues(writer http.ResponseWriter, request *http.Request) {
	viewer, userID, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	query := issueQuery(request)

	issues, total, err := handler.service.ListSeriesIssues(request.Context(), id, viewer, userID, query)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Paginated(writer, issues, query.Params, total)
}

func (handler *Handler) getVolume(writer http.ResponseWriter, request *http.Request) {
	viewer, _, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	detail, err := handler.service.GetVolumeDetail(request.Context(), id, viewer)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, detail)
}

func (handler *Handler) listVolumeIssues(writer http.ResponseWriter, request *http.Request) {
	viewer, userID, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	query := issueQuery(request)

	issues, total, err := handler.service.ListVolumeIssues(request.Context(), id, viewer, userID, query)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Paginated(writer, issues, query.Params, total)
}

// # Comics

func (handler *Handler) getComic(writer http.ResponseWriter, request *http.Request) {
	viewer, _, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	detail, err := handler.service.GetComic(request.Context(), id, viewer)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, detail)
}

func (handler *Handler) listPages(writer http.ResponseWriter, request *http.Request) {
	viewer, _, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	pages, err := handler.service.ComicPages(request.Context(), id, viewer)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]any{"pages": pages, "count": len(pages)})
}

// pageContentTypes maps page extensions onto media types.
var pageContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
}

func writePage(writer http.ResponseWriter, data []byte, name string) {
	contentType := pageContentTypes[strings.ToLower(filepath.Ext(name))]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	writer.Header().Set("Content-Type", contentType)
	writer.Header().Set("Cache-Control", "private, max-age=86400")
	_, _ = writer.Write(data)
}

func (handler *Handler) getCover(writer http.ResponseWriter, request *http.Request) {
	viewer, _, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	data, name, err := handler.service.ComicPage(request.Context(), id, 0, viewer)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	writePage(writer, data, name)
}

func (handler *Handler) getThumbnail(writer http.ResponseWriter, request *http.Request) {
	viewer, _, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	cachedPath, data, name, err := handler.service.Thumbnail(request.Context(), id, viewer)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if cachedPath != "" {
		writer.Header().Set("Cache-Control", "private, max-age=86400")
		http.ServeFile(writer, request, cachedPath)
		return
	}
	writePage(writer, data, name)
}

// # Reader

func (handler *Handler) readInit(writer http.ResponseWriter, request *http.Request) {
	viewer, userID, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	contextType := request.URL.Query().Get("context_type")
	var contextID int64
	if raw := request.URL.Query().Get("context_id"); raw != "" {
		contextID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respond.Error(writer, request, apperr.ValidationError("context_id must be an integer"))
			return
		}
	}

	result, err := handler.service.ReadInitFor(request.Context(), id, contextType, contextID, viewer, userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, result)
}

func (handler *Handler) readPage(writer http.ResponseWriter, request *http.Request) {
	viewer, _, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(request, "index"))
	if err != nil || index < 0 {
		respond.Error(writer, request, apperr.ValidationError("page index must be a non-negative integer"))
		return
	}

	// Transform hints (sharpen, grayscale, webp) are accepted for
	// compatibility; decoding is owned by the image service.
	data, name, err := handler.service.ComicPage(request.Context(), id, index, viewer)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	writePage(writer, data, name)
}

// # Containers

func (handler *Handler) listCollections(writer http.ResponseWriter, request *http.Request) {
	viewer, _, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	params := pagination.FromRequest(request, pagination.MaxSize)

	containers, total, err := handler.service.ListCollections(request.Context(), viewer, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Paginated(writer, containers, params, total)
}

func (handler *Handler) getCollection(writer http.ResponseWriter, request *http.Request) {
	viewer, userID, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	detail, err := handler.service.GetCollection(request.Context(), id, viewer, userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, detail)
}

func (handler *Handler) listReadingLists(writer http.ResponseWriter, request *http.Request) {
	viewer, _, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	params := pagination.FromRequest(request, pagination.MaxSize)

	containers, total, err := handler.service.ListReadingLists(request.Context(), viewer, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Paginated(writer, containers, params, total)
}

func (handler *Handler) getReadingList(writer http.ResponseWriter, request *http.Request) {
	viewer, userID, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	detail, err := handler.service.GetReadingList(request.Context(), id, viewer, userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, detail)
}

func (handler *Handler) listPullLists(writer http.ResponseWriter, request *http.Request) {
	_, userID, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	lists, err := handler.service.ListPullLists(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, lists)
}

func (handler *Handler) getPullList(writer http.ResponseWriter, request *http.Request) {
	viewer, userID, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	id, err := requestutil.IntID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	detail, err := handler.service.GetPullList(request.Context(), id, viewer, userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, detail)
}

// # Search

func (handler *Handler) search(writer http.ResponseWriter, request *http.Request) {
	viewer, _, err := handler.viewer(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var req SearchRequest
	if err := requestutil.DecodeJSON(request, &req); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := req.Normalize(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	comics, total, err := handler.service.Search(request.Context(), req, viewer)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, respond.Page{
		Total: total,
		Page:  req.Offset/req.Limit + 1,
		Size:  req.Limit,
		Items: comics,
	})
}
