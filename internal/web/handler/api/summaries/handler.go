package summaries

import (
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/freekieb7/go-drawer/internal/storage"
	"github.com/freekieb7/go-drawer/internal/web/handler/api/shared"
	"github.com/freekieb7/go-drawer/internal/web/response"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

// Handler summarizes documents from the user's storage.
type Handler struct {
	shared.BaseHandler
}

func NewHandler(base shared.BaseHandler) *Handler {
	return &Handler{
		BaseHandler: base,
	}
}

// HandleCreateSummary handles POST /api/summaries. Documents longer than the
// configured input limit are summarized from their beginning.
func (h *Handler) HandleCreateSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	maxInput := h.Config.Summarizer.MaxInputBytes

	var req shared.SummaryRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	accessToken, err := h.AccessToken(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	content, entry, err := h.Storage.Download(ctx, accessToken, req.Path)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	defer content.Close()

	if entry.Type == storage.EntryFolder {
		h.WriteError(w, r, apperrors.ValidationError(shared.ErrNotAFile, nil))
		return
	}

	raw, err := io.ReadAll(io.LimitReader(content, maxInput+1))
	if err != nil {
		h.WriteError(w, r, apperrors.UpstreamError("Failed to read document", err))
		return
	}

	truncated := int64(len(raw)) > maxInput
	if truncated {
		raw = raw[:maxInput]
	}
	document := toValidUTF8(raw)
	if strings.TrimSpace(document) == "" {
		h.WriteError(w, r, apperrors.ValidationError("Document has no text to summarize", nil))
		return
	}

	text, err := h.Summarizer.Summarize(ctx, document)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	h.Log(r).InfoContext(ctx, "Summarized document", "input_bytes", len(document), "truncated", truncated)
	response.SuccessResponse(w, shared.SummaryResponse{
		Path:      req.Path,
		Summary:   text,
		Truncated: truncated,
	})
}

// toValidUTF8 drops a rune cut in half by truncation and replaces invalid bytes.
func toValidUTF8(b []byte) string {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size != 1 {
			break
		}
		b = b[:len(b)-1]
	}
	return strings.ToValidUTF8(string(b), "�")
}
