package files

import (
	"net/http"
	"strconv"

	"github.com/freekieb7/go-drawer/internal/web/handler/api/shared"
	"github.com/freekieb7/go-drawer/internal/web/response"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

const (
	defaultRevisionLimit = 10
	maxRevisionLimit     = 100
)

// HandleListRevisions handles GET /api/files/revisions?path=&limit=
func (h *Handler) HandleListRevisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path, err := h.PathParam(r, "path", true)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	limit := defaultRevisionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxRevisionLimit {
			h.WriteError(w, r, apperrors.ValidationError("Query parameter \"limit\" must be between 1 and 100", err))
			return
		}
	}

	accessToken, err := h.AccessToken(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	revisions, err := h.Storage.ListRevisions(ctx, accessToken, path, limit)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	response.SuccessResponse(w, shared.RevisionsResponse{
		Path:      path,
		Revisions: revisions,
	})
}
