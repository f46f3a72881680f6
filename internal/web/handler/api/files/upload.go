package files

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/freekieb7/go-drawer/internal/web/handler/api/shared"
	"github.com/freekieb7/go-drawer/internal/web/response"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

// HandleUpload handles PUT /api/files/content?path=&overwrite=. The request body is
// streamed to the storage provider without buffering.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	maxBytes := h.Config.Storage.MaxUploadBytes

	path, err := h.PathParam(r, "path", true)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	overwrite := false
	if raw := r.URL.Query().Get("overwrite"); raw != "" {
		if overwrite, err = strconv.ParseBool(raw); err != nil {
			h.WriteError(w, r, apperrors.ValidationError("Query parameter \"overwrite\" must be a boolean", err))
			return
		}
	}

	if r.ContentLength > maxBytes {
		h.WriteError(w, r, apperrors.PayloadTooLargeError(shared.ErrUploadTooLarge, nil))
		return
	}

	accessToken, err := h.AccessToken(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	body := &limitedBody{r: http.MaxBytesReader(w, r.Body, maxBytes)}
	entry, err := h.Storage.Upload(ctx, accessToken, path, body, overwrite)
	if body.tooLarge.Load() {
		h.WriteError(w, r, apperrors.PayloadTooLargeError(shared.ErrUploadTooLarge, err))
		return
	}
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	h.Log(r).InfoContext(ctx, "Uploaded file", "size", entry.Size, "overwrite", overwrite)
	response.CreatedResponse(w, entry)
}

// limitedBody remembers whether the size limit cut the stream, since the
// transport does not preserve the read error.
type limitedBody struct {
	r        io.Reader
	tooLarge atomic.Bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		b.tooLarge.Store(true)
	}
	return n, err
}
