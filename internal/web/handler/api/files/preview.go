package files

import (
	"net/http"

	"github.com/freekieb7/go-drawer/internal/storage"
	"github.com/freekieb7/go-drawer/internal/web/handler/api/shared"
	"github.com/freekieb7/go-drawer/internal/web/response"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

// HandlePreview handles GET /api/files/preview?path=. The returned link expires
// after a few hours and is never cached by us.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
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

	link, err := h.Storage.TemporaryLink(ctx, accessToken, path)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if link.Entry.Type == storage.EntryFolder {
		h.WriteError(w, r, apperrors.ValidationError(shared.ErrNotAFile, nil))
		return
	}

	response.SuccessResponse(w, shared.PreviewResponse{
		URL:   link.URL,
		Entry: link.Entry,
	})
}
