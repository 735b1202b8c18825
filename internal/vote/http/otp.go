package http

import (
	"errors"
	"net/http"

	"github.com/civicstack/ballotcore/internal/vote/service"
	"github.com/civicstack/ballotcore/pkg/httpx"
	"github.com/civicstack/ballotcore/pkg/slogx"
)

// VerifyOTPHandler serves POST /v1/auth/verify-otp.
// A correct code consumes the challenge and opens a session.
type VerifyOTPHandler struct {
	ChallengeService *service.ChallengeService
	SessionService   *service.SessionService
}

type verifyOTPRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

func (h *VerifyOTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyOTPRequest
	if err := httpx.ParseJSONBody(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	seed, err := h.ChallengeService.Verify(ctx, req.ChallengeID, req.Code)
	if err != nil {
		writeChallengeError(w, err)
		return
	}

	pair, err := h.SessionService.Create(ctx, seed)
	if err != nil {
		slogx.FromContext(ctx).Error("Session creation failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int64(pair.ExpiresIn.Seconds()),
	})
}

// ResendOTPHandler serves POST /v1/auth/resend-otp.
type ResendOTPHandler struct {
	ChallengeService *service.ChallengeService
}

type resendOTPRequest struct {
	ChallengeID string `json:"challenge_id"`
}

type resendOTPResponse struct {
	ChallengeID     string `json:"challenge_id"`
	ChallengeIssued bool   `json:"challenge_issued"`
}

func (h *ResendOTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req resendOTPRequest
	if err := httpx.ParseJSONBody(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	replacement, err := h.ChallengeService.Resend(ctx, req.ChallengeID)
	if err != nil {
		if errors.Is(err, service.ErrResendTooSoon) {
			httpx.WriteError(w, http.StatusTooManyRequests, "resend_throttled", "a code was sent recently, wait before requesting another")
			return
		}
		writeChallengeError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resendOTPResponse{
		ChallengeID:     replacement.ID,
		ChallengeIssued: true,
	})
}

// writeChallengeError maps challenge verification failures onto the
// response taxonomy shared by verify and resend. A challenge that can
// never be satisfied again (expired, consumed, exhausted) is 410; a
// wrong code on a live challenge is 400.
func writeChallengeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrChallengeNotFound):
		httpx.WriteError(w, http.StatusNotFound, "challenge_not_found", "no such challenge")
	case errors.Is(err, service.ErrChallengeExpired):
		httpx.WriteError(w, http.StatusGone, "challenge_expired", "the code has expired, log in again")
	case errors.Is(err, service.ErrChallengeConsumed):
		httpx.WriteError(w, http.StatusGone, "challenge_consumed", "this challenge can no longer be used")
	case errors.Is(err, service.ErrAttemptsExhausted):
		httpx.WriteError(w, http.StatusGone, "attempts_exhausted", "too many incorrect codes, log in again")
	case errors.Is(err, service.ErrInvalidCode):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", "the code is incorrect")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
