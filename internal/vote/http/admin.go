package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/civicstack/ballotcore/internal/vote/domain"
	"github.com/civicstack/ballotcore/internal/vote/service"
	"github.com/civicstack/ballotcore/internal/vote/store"
	"github.com/civicstack/ballotcore/pkg/httpx"
	"github.com/civicstack/ballotcore/pkg/slogx"
)

// AdminHandler bundles the electoral-roll and election-definition
// endpoints. All routes require the admin role.
type AdminHandler struct {
	ElectionService *service.ElectionService
}

type createElectionRequest struct {
	Name         string    `json:"name"`
	Constituency string    `json:"constituency"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
}

type electionResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Constituency string    `json:"constituency,omitempty"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
}

func toElectionResponse(e domain.Election) electionResponse {
	return electionResponse{
		ID:           e.ID,
		Name:         e.Name,
		Constituency: e.Constituency,
		StartsAt:     e.StartsAt,
		EndsAt:       e.EndsAt,
	}
}

func (h *AdminHandler) CreateElection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createElectionRequest
	if err := httpx.ParseJSONBody(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	election, err := h.ElectionService.CreateElection(ctx, req.Name, req.Constituency, req.StartsAt, req.EndsAt)
	if err != nil {
		if errors.Is(err, service.ErrInvalidElection) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "name is required and ends_at must be after starts_at")
			return
		}
		slogx.FromContext(ctx).Error("Election creation failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toElectionResponse(election))
}

func (h *AdminHandler) ListElections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	elections, err := h.ElectionService.ListElections(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("Election listing failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := make([]electionResponse, 0, len(elections))
	for _, e := range elections {
		out = append(out, toElectionResponse(e))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

type importVoterRequest struct {
	NIN          string `json:"nin"`
	VIN          string `json:"vin"`
	Phone        string `json:"phone"`
	Constituency string `json:"constituency"`
	Role         string `json:"role"`
}

type importVoterResponse struct {
	VoterID string `json:"voter_id"`
}

func (h *AdminHandler) ImportVoter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req importVoterRequest
	if err := httpx.ParseJSONBody(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	voter, err := h.ElectionService.ImportVoter(ctx, req.NIN, req.VIN, req.Phone, req.Constituency, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMalformedCredential):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "credential format is invalid")
		case errors.Is(err, service.ErrVoterExists):
			httpx.WriteError(w, http.StatusConflict, "voter_exists", "a record with this NIN is already on the roll")
		default:
			slogx.FromContext(ctx).Error("Voter import failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, importVoterResponse{VoterID: voter.ID})
}

func (h *AdminHandler) DeactivateVoter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.ElectionService.DeactivateVoter(ctx, r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "voter_not_found", "no such voter")
			return
		}
		slogx.FromContext(ctx).Error("Voter deactivation failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
