package files

import (
	"net/http"

	"github.com/freekieb7/go-drawer/internal/web/handler/api/shared"
	"github.com/freekieb7/go-drawer/internal/web/response"
)

// HandleListFiles handles GET /api/files?path=
func (h *Handler) HandleListFiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path, err := h.PathParam(r, "path", false)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	accessToken, err := h.AccessToken(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	entries, err := h.Storage.ListFolder(ctx, accessToken, path)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	response.SuccessResponse(w, shared.ListFilesResponse{
		Path:    path,
		Entries: entries,
	})
}
