package http

import (
	"errors"
	"net/http"

	"github.com/civicstack/ballotcore/internal/vote/domain"
	"github.com/civicstack/ballotcore/internal/vote/ledger"
	"github.com/civicstack/ballotcore/internal/vote/service"
	"github.com/civicstack/ballotcore/pkg/httpx"
	"github.com/civicstack/ballotcore/pkg/slogx"
)

// sessionInfoFromRequest re-validates the session family behind already
// verified claims. A signed, unexpired token whose family was revoked is
// refused here.
func sessionInfoFromRequest(r *http.Request, sessions *service.SessionService) (domain.SessionInfo, bool) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		return domain.SessionInfo{}, false
	}

	info, err := sessions.ValidateFamily(r.Context(), claims.SID)
	if err != nil {
		return domain.SessionInfo{}, false
	}
	return info, true
}

// VotingStatusHandler serves GET /v1/elections/{id}/voting-status.
type VotingStatusHandler struct {
	SessionService     *service.SessionService
	EligibilityService *service.EligibilityService
}

type votingStatusResponse struct {
	ElectionID string `json:"election_id"`
	Eligible   bool   `json:"eligible"`
	Reason     string `json:"reason,omitempty"`
	HasVoted   bool   `json:"has_voted"`
}

func (h *VotingStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	info, ok := sessionInfoFromRequest(r, h.SessionService)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "session_revoked", "the session is no longer active")
		return
	}

	electionID := r.PathValue("id")
	result, err := h.EligibilityService.Check(ctx, info, electionID)
	if err != nil {
		if errors.Is(err, service.ErrElectionNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "election_not_found", "no such election")
			return
		}
		slogx.FromContext(ctx).Error("Eligibility check failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, votingStatusResponse{
		ElectionID: electionID,
		Eligible:   result.Eligible,
		Reason:     result.Reason,
		HasVoted:   result.Reason == domain.ReasonAlreadyVoted,
	})
}

// CastVoteHandler serves POST /v1/elections/{id}/vote.
type CastVoteHandler struct {
	SessionService     *service.SessionService
	EligibilityService *service.EligibilityService
}

type castVoteRequest struct {
	CandidateID    string `json:"candidate_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

type castVoteResponse struct {
	ReceiptCode      string `json:"receipt_code"`
	ElectionID       string `json:"election_id"`
	VerificationHash string `json:"verification_hash"`
}

func (h *CastVoteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	info, ok := sessionInfoFromRequest(r, h.SessionService)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "session_revoked", "the session is no longer active")
		return
	}

	var req castVoteRequest
	if err := httpx.ParseJSONBody(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.CandidateID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "candidate_id is required")
		return
	}

	receipt, err := h.EligibilityService.Cast(ctx, info, domain.VoteIntent{
		IdempotencyKey: req.IdempotencyKey,
		ElectionID:     r.PathValue("id"),
		CandidateID:    req.CandidateID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBadIdempotencyKey):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "idempotency_key must be a UUID")
		case errors.Is(err, service.ErrElectionNotFound):
			httpx.WriteError(w, http.StatusNotFound, "election_not_found", "no such election")
		case errors.Is(err, ledger.ErrAlreadyVoted):
			httpx.WriteError(w, http.StatusConflict, "already_voted", "a vote has already been recorded for this election")
		case errors.Is(err, ledger.ErrKeyReuse):
			httpx.WriteError(w, http.StatusUnprocessableEntity, "key_reuse", "this idempotency key belongs to a different attempt")
		case errors.Is(err, service.ErrNotEligible):
			httpx.WriteError(w, http.StatusForbidden, "not_eligible", "the voter is not eligible for this election")
		case errors.Is(err, service.ErrVoteUnavailable):
			w.Header().Set("Retry-After", "5")
			httpx.WriteError(w, http.StatusServiceUnavailable, "vote_unavailable", "vote recording is temporarily unavailable, retry with the same idempotency key")
		default:
			slogx.FromContext(ctx).Error("Cast failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, castVoteResponse{
		ReceiptCode:      receipt.ReceiptCode,
		ElectionID:       receipt.ElectionID,
		VerificationHash: receipt.VerificationHash,
	})
}
