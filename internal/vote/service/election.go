package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/civicstack/ballotcore/internal/vote/domain"
	"github.com/civicstack/ballotcore/internal/vote/store"
	"github.com/civicstack/ballotcore/pkg/cryptox"
	"github.com/civicstack/ballotcore/pkg/idx"
	"github.com/civicstack/ballotcore/pkg/slogx"
)

var (
	ErrInvalidElection = errors.New("invalid election definition")
	ErrVoterExists     = errors.New("voter already on the roll")
)

// ElectionService is the admin surface: defining elections and importing
// voters from the electoral roll. Registration of new voters by the
// public does not exist; records arrive only through import.
type ElectionService struct {
	Store store.Store
}

// CreateElection defines a new election with a half-open voting window.
func (s *ElectionService) CreateElection(ctx context.Context, name, constituency string, startsAt, endsAt time.Time) (domain.Election, error) {
	name = strings.TrimSpace(name)
	if name == "" || !endsAt.After(startsAt) {
		return domain.Election{}, ErrInvalidElection
	}

	now := time.Now().UTC()
	election := domain.Election{
		ID:           idx.New().String(),
		Name:         name,
		Constituency: strings.TrimSpace(constituency),
		StartsAt:     startsAt.UTC(),
		EndsAt:       endsAt.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Elections().CreateElection(ctx, election); err != nil {
		return domain.Election{}, fmt.Errorf("failed to create election: %w", err)
	}

	slogx.FromContext(ctx).Info("Election created",
		slog.String("election_id", election.ID),
		slog.String("name", election.Name),
	)

	return election, nil
}

// GetElection fetches one election.
func (s *ElectionService) GetElection(ctx context.Context, id string) (domain.Election, error) {
	election, err := s.Store.Elections().GetElectionByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Election{}, ErrElectionNotFound
		}
		return domain.Election{}, fmt.Errorf("failed to load election: %w", err)
	}
	return election, nil
}

// ListElections returns all defined elections, newest first.
func (s *ElectionService) ListElections(ctx context.Context) ([]domain.Election, error) {
	elections, err := s.Store.Elections().ListElections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list elections: %w", err)
	}
	return elections, nil
}

// ImportVoter adds one record to the roll. Plain credentials exist only
// inside this call; what persists are the NIN fingerprint, the argon2
// VIN hash and the contact fingerprint.
func (s *ElectionService) ImportVoter(ctx context.Context, nin, vin, phone, constituency, role string) (domain.VoterIdentity, error) {
	nin = strings.TrimSpace(nin)
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if !ninPattern.MatchString(nin) || !vinPattern.MatchString(vin) {
		return domain.VoterIdentity{}, ErrMalformedCredential
	}
	if role == "" {
		role = domain.RoleVoter
	}

	vinHash, err := cryptox.HashCredential(vin)
	if err != nil {
		return domain.VoterIdentity{}, fmt.Errorf("failed to hash credential: %w", err)
	}

	now := time.Now().UTC()
	voter := domain.VoterIdentity{
		ID:           idx.New().String(),
		NINHash:      cryptox.FingerprintToken(nin),
		VINHash:      vinHash,
		PhoneHash:    cryptox.FingerprintToken(strings.TrimSpace(phone)),
		Constituency: strings.TrimSpace(constituency),
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Voters().CreateVoter(ctx, voter); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.VoterIdentity{}, ErrVoterExists
		}
		return domain.VoterIdentity{}, fmt.Errorf("failed to import voter: %w", err)
	}

	slogx.FromContext(ctx).Info("Voter imported", slog.String("voter_id", voter.ID))
	return voter, nil
}

// DeactivateVoter flips a record inactive. Existing sessions stop
// passing eligibility on their next check; the record itself stays.
func (s *ElectionService) DeactivateVoter(ctx context.Context, voterID string) error {
	if err := s.Store.Voters().DeactivateVoter(ctx, voterID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to deactivate voter: %w", err)
	}
	slogx.FromContext(ctx).Info("Voter deactivated", slog.String("voter_id", voterID))
	return nil
}
