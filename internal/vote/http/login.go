package http

import (
	"errors"
	"net/http"

	"github.com/civicstack/ballotcore/internal/vote/service"
	"github.com/civicstack/ballotcore/pkg/httpx"
	"github.com/civicstack/ballotcore/pkg/slogx"
)

// LoginHandler serves POST /v1/auth/login.
// A correct NIN/VIN pair starts an OTP challenge; nothing here grants
// access on its own.
type LoginHandler struct {
	CredentialService *service.CredentialService
}

type loginRequest struct {
	NIN string `json:"nin"`
	VIN string `json:"vin"`
}

type loginResponse struct {
	UserID          string `json:"user_id"`
	ChallengeID     string `json:"challenge_id"`
	ChallengeIssued bool   `json:"challenge_issued"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := httpx.ParseJSONBody(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	pending, err := h.CredentialService.Submit(ctx, req.NIN, req.VIN)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMalformedCredential):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "credential format is invalid")
		case errors.Is(err, service.ErrAuthentication):
			httpx.WriteError(w, http.StatusUnauthorized, "authentication_failed", "the provided credentials could not be verified")
		default:
			slogx.FromContext(ctx).Error("Login failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		UserID:          pending.VoterID,
		ChallengeID:     pending.ChallengeID,
		ChallengeIssued: true,
	})
}
