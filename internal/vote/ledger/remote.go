package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultRemoteTimeout bounds every call to the tally service. A timed
// out Record leaves retry safety to the idempotency key.
const DefaultRemoteTimeout = 10 * time.Second

// Remote talks to an external tally service over HTTP. The service is
// expected to enforce the same (voter, election) uniqueness and
// idempotency-key semantics as the embedded ledger; this client only
// translates its responses into the contract errors.
type Remote struct {
	baseURL string
	client  *http.Client
}

func NewRemote(baseURL string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type remoteRecordRequest struct {
	VoterID     string `json:"voter_id"`
	ElectionID  string `json:"election_id"`
	CandidateID string `json:"candidate_id"`
}

type remoteRecordResponse struct {
	ReceiptCode      string `json:"receipt_code"`
	VerificationHash string `json:"verification_hash"`
	Replayed         bool   `json:"replayed"`
}

func (r *Remote) Record(ctx context.Context, req RecordRequest) (RecordResult, error) {
	body, err := json.Marshal(remoteRecordRequest{
		VoterID:     req.VoterID,
		ElectionID:  req.ElectionID,
		CandidateID: req.CandidateID,
	})
	if err != nil {
		return RecordResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/votes", bytes.NewReader(body))
	if err != nil {
		return RecordResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		// Network failure or timeout: it is unknown whether the vote was
		// recorded. The caller must retry with the same key.
		return RecordResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out remoteRecordResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return RecordResult{}, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
		}
		return RecordResult{
			ReceiptCode:      out.ReceiptCode,
			VerificationHash: out.VerificationHash,
			Replayed:         out.Replayed,
		}, nil
	case resp.StatusCode == http.StatusConflict:
		return RecordResult{}, ErrAlreadyVoted
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return RecordResult{}, ErrKeyReuse
	case resp.StatusCode >= 500:
		return RecordResult{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return RecordResult{}, fmt.Errorf("ledger: unexpected status %d", resp.StatusCode)
	}
}

func (r *Remote) HasVoted(ctx context.Context, voterID, electionID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/v1/votes/%s/%s",
		r.baseURL, url.PathEscape(electionID), url.PathEscape(voterID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
}

func (r *Remote) Verify(ctx context.Context, receiptCode string) (Verification, error) {
	if receiptCode == "" {
		return Verification{}, nil
	}

	endpoint := r.baseURL + "/v1/receipts/" + url.PathEscape(receiptCode)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Verification{}, err
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out struct {
			Valid      bool   `json:"valid"`
			ElectionID string `json:"election_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return Verification{}, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
		}
		return Verification{Valid: out.Valid, ElectionID: out.ElectionID}, nil
	case http.StatusNotFound:
		return Verification{}, nil
	default:
		return Verification{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
}
