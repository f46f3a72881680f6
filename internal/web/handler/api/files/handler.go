package files

import (
	"github.com/freekieb7/go-drawer/internal/web/handler/api/shared"
)

// Handler serves file, folder, quota and tag requests against the storage provider.
type Handler struct {
	shared.BaseHandler
}

// NewHandler creates a new files handler
func NewHandler(base shared.BaseHandler) *Handler {
	return &Handler{
		BaseHandler: base,
	}
}
