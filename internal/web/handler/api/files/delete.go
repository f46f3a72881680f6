package files

import (
	"net/http"

	"github.com/freekieb7/go-drawer/internal/web/response"
)

// HandleDeleteFile handles DELETE /api/files?path=
func (h *Handler) HandleDeleteFile(w http.ResponseWriter, r *http.Request) {
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

	entry, err := h.Storage.Delete(ctx, accessToken, path)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	h.Log(r).InfoContext(ctx, "Deleted path", "type", entry.Type)
	response.SuccessResponse(w, entry)
}
