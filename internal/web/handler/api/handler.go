package api

import (
	"net/http"

	"github.com/freekieb7/go-drawer/internal/web/handler/api/appdata"
	"github.com/freekieb7/go-drawer/internal/web/handler/api/files"
	"github.com/freekieb7/go-drawer/internal/web/handler/api/shared"
	"github.com/freekieb7/go-drawer/internal/web/handler/api/summaries"
	"github.com/freekieb7/go-drawer/internal/web/middleware"
)

// Handler aggregates all API handlers and provides the main entry point
type Handler struct {
	shared.BaseHandler
	FilesHandler     *files.Handler
	AppDataHandler   *appdata.Handler
	SummariesHandler *summaries.Handler
}

// NewHandler creates a new API handler with all sub-handlers
func NewHandler(base shared.BaseHandler) *Handler {
	return &Handler{
		BaseHandler:      base,
		FilesHandler:     files.NewHandler(base),
		AppDataHandler:   appdata.NewHandler(base),
		SummariesHandler: summaries.NewHandler(base),
	}
}

// RegisterRoutes registers all API routes. protect authenticates the request and
// must leave a valid access token in the context; timeout bounds non-streaming routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, protect, timeout func(http.Handler) http.Handler) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protect(timeout(fn)))
	}
	// Polled reads answer If-None-Match.
	handleTagged := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protect(middleware.ETag()(timeout(fn))))
	}

	// File routes
	handleTagged("GET /api/files", h.FilesHandler.HandleListFiles)
	handle("DELETE /api/files", h.FilesHandler.HandleDeleteFile)
	handle("POST /api/files/move", h.FilesHandler.HandleMoveFile)
	handle("GET /api/files/preview", h.FilesHandler.HandlePreview)
	handle("GET /api/files/revisions", h.FilesHandler.HandleListRevisions)
	handle("POST /api/folders", h.FilesHandler.HandleCreateFolder)
	handle("GET /api/quota", h.FilesHandler.HandleQuota)

	// Uploads stream for as long as the client sends.
	mux.Handle("PUT /api/files/content", protect(http.HandlerFunc(h.FilesHandler.HandleUpload)))

	// Tag routes
	handle("GET /api/tags", h.FilesHandler.HandleGetTags)
	handle("POST /api/tags", h.FilesHandler.HandleAddTag)
	handle("DELETE /api/tags", h.FilesHandler.HandleRemoveTag)

	// App data routes
	handleTagged("GET /api/appdata/{name}", h.AppDataHandler.HandleGetDocument)
	handle("PUT /api/appdata/{name}", h.AppDataHandler.HandlePutDocument)

	// Summary routes
	handle("POST /api/summaries", h.SummariesHandler.HandleCreateSummary)
}
