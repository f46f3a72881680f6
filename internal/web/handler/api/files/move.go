package files

import (
	"net/http"

	"github.com/freekieb7/go-drawer/internal/web/handler/api/shared"
	"github.com/freekieb7/go-drawer/internal/web/response"
)

// HandleMoveFile handles POST /api/files/move. Renames are moves within a folder.
func (h *Handler) HandleMoveFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req shared.MoveRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	accessToken, err := h.AccessToken(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	entry, err := h.Storage.Move(ctx, accessToken, req.From, req.To)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	response.SuccessResponse(w, entry)
}
