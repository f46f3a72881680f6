package files

import (
	"net/http"

	"github.com/freekieb7/go-drawer/internal/web/handler/api/shared"
	"github.com/freekieb7/go-drawer/internal/web/response"
)

// HandleCreateFolder handles POST /api/folders
func (h *Handler) HandleCreateFolder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req shared.CreateFolderRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	accessToken, err := h.AccessToken(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	entry, err := h.Storage.CreateFolder(ctx, accessToken, req.Path)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	response.CreatedResponse(w, entry)
}
