package files

import (
	"context"
	"net/http"
	"strings"

	"github.com/freekieb7/go-drawer/internal/web/handler/api/shared"
	"github.com/freekieb7/go-drawer/internal/web/response"
)

// HandleGetTags handles GET /api/tags?path=
func (h *Handler) HandleGetTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path, err := h.PathParam(r, "path", true)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	accessToken, err := h.AccessToken(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	tags, err := h.Storage.GetTags(ctx, accessToken, path)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}

	response.SuccessResponse(w, shared.TagsResponse{Path: path, Tags: tags})
}

// HandleAddTag handles POST /api/tags
func (h *Handler) HandleAddTag(w http.ResponseWriter, r *http.Request) {
	var req shared.TagRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.changeTag(w, r, req, h.Storage.AddTag)
}

// HandleRemoveTag handles DELETE /api/tags?path=&tag=
func (h *Handler) HandleRemoveTag(w http.ResponseWriter, r *http.Request) {
	req := shared.TagRequest{
		Path: r.URL.Query().Get("path"),
		Tag:  r.URL.Query().Get("tag"),
	}
	if err := h.ValidateStruct(req); err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.changeTag(w, r, req, h.Storage.RemoveTag)
}

type tagFunc func(ctx context.Context, accessToken, path, tag string) error

func (h *Handler) changeTag(w http.ResponseWriter, r *http.Request, req shared.TagRequest, apply tagFunc) {
	ctx := r.Context()

	accessToken, err := h.AccessToken(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	if err := apply(ctx, accessToken, req.Path, strings.ToLower(req.Tag)); err != nil {
		h.WriteError(w, r, err)
		return
	}

	tags, err := h.Storage.GetTags(ctx, accessToken, req.Path)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}

	response.SuccessResponse(w, shared.TagsResponse{Path: req.Path, Tags: tags})
}
