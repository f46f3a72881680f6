package appdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"slices"

	"github.com/freekieb7/go-drawer/internal/storage"
	"github.com/freekieb7/go-drawer/internal/web/handler/api/shared"
	"github.com/freekieb7/go-drawer/internal/web/response"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

// Documents are the app data documents the dashboard keeps in the user's storage.
var Documents = []string{"kanban", "notes"}

// MaxDocumentBytes bounds a single app data document.
const MaxDocumentBytes = 1 << 20

// emptyDocument is served for documents that were never saved.
var emptyDocument = json.RawMessage(`{}`)

// Handler stores opaque JSON documents, such as the kanban board, as files in the
// app folder of the user's storage.
type Handler struct {
	shared.BaseHandler
}

func NewHandler(base shared.BaseHandler) *Handler {
	return &Handler{
		BaseHandler: base,
	}
}

func (h *Handler) documentPath(r *http.Request) (string, string, error) {
	name := r.PathValue("name")
	if !slices.Contains(Documents, name) {
		return "", "", apperrors.NotFoundError(shared.ErrUnknownDocument, nil)
	}
	return name, path.Join(h.Config.Storage.AppFolder, name+".json"), nil
}

// HandleGetDocument handles GET /api/appdata/{name}
func (h *Handler) HandleGetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, docPath, err := h.documentPath(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	accessToken, err := h.AccessToken(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	content, _, err := h.Storage.Download(ctx, accessToken, docPath)
	if errors.Is(err, storage.ErrNotFound) {
		response.SuccessResponse(w, shared.AppDataResponse{Name: name, Document: emptyDocument})
		return
	}
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	defer content.Close()

	doc, err := io.ReadAll(io.LimitReader(content, MaxDocumentBytes+1))
	if err != nil {
		h.WriteError(w, r, apperrors.UpstreamError("Failed to read document", err))
		return
	}
	// A document edited outside the dashboard may be anything; start over rather than fail.
	if len(doc) > MaxDocumentBytes || !json.Valid(doc) {
		h.Log(r).WarnContext(ctx, "Stored app data document is unreadable", "document", name, "size", len(doc))
		doc = emptyDocument
	}

	response.SuccessResponse(w, shared.AppDataResponse{Name: name, Document: doc})
}

// HandlePutDocument handles PUT /api/appdata/{name}. The body is the whole document.
func (h *Handler) HandlePutDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, docPath, err := h.documentPath(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	doc, err := io.ReadAll(io.LimitReader(r.Body, MaxDocumentBytes+1))
	if err != nil {
		h.WriteError(w, r, apperrors.InvalidRequestError(shared.ErrInvalidRequestBody, err))
		return
	}
	if len(doc) > MaxDocumentBytes {
		h.WriteError(w, r, apperrors.PayloadTooLargeError("Document exceeds 1 MiB", nil))
		return
	}
	if !json.Valid(doc) {
		h.WriteError(w, r, apperrors.ValidationError(shared.ErrInvalidDocument, nil))
		return
	}

	accessToken, err := h.AccessToken(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	if _, err := h.Storage.Upload(ctx, accessToken, docPath, bytes.NewReader(doc), true); err != nil {
		h.WriteError(w, r, err)
		return
	}

	response.SuccessResponse(w, shared.AppDataResponse{Name: name, Document: doc})
}
