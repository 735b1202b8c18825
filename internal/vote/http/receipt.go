package http

import (
	"net/http"

	"github.com/civicstack/ballotcore/internal/vote/service"
	"github.com/civicstack/ballotcore/pkg/httpx"
	"github.com/civicstack/ballotcore/pkg/slogx"
)

// ReceiptVerifyHandler serves GET /v1/voter/verify-vote/{receiptCode}.
// Public: no session required, and the answer never names the voter or
// the candidate.
type ReceiptVerifyHandler struct {
	ReceiptService *service.ReceiptService
}

func (h *ReceiptVerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.ReceiptService.Verify(ctx, r.PathValue("receiptCode"))
	if err != nil {
		slogx.FromContext(ctx).Error("Receipt verification failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, result)
}
