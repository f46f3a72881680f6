package files

import (
	"math"
	"net/http"

	"github.com/freekieb7/go-drawer/internal/web/handler/api/shared"
	"github.com/freekieb7/go-drawer/internal/web/response"
)

// HandleQuota handles GET /api/quota
func (h *Handler) HandleQuota(w http.ResponseWriter, r *http.Request) {
	accessToken, err := h.AccessToken(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	usage, err := h.Storage.SpaceUsage(r.Context(), accessToken)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	var percent float64
	if usage.Allocated > 0 {
		percent = math.Round(float64(usage.Used)/float64(usage.Allocated)*10000) / 100
	}

	response.SuccessResponse(w, shared.QuotaResponse{
		Used:      usage.Used,
		Allocated: usage.Allocated,
		Percent:   percent,
	})
}
