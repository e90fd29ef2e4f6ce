package dao

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"propspace/space-portal/space-portal-backend/internal/registry"
)

// Service orchestrates the "create asset, then mint its token" protocol
// against the remote unit registry.
//
// The remote mint is the one point where an operation suspends mid-flight:
// between issuing the call and seeing its result, any number of other
// operations may complete, so the pre-call view of a listing is stale by the
// time the call returns. Every precondition checked before the call is checked
// again after it, and a per-listing in-flight marker rejects a concurrent mint
// on the same listing for the duration.
type Service struct {
	repo     Repository
	registry RegistryClient
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// NewService creates a DAO orchestrator.
func NewService(repo Repository, registryClient RegistryClient, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		registry: registryClient,
		logger:   logger,
		inFlight: make(map[uuid.UUID]struct{}),
	}
}

// CreateSpace persists a listing and registers its descriptor with the
// registry. On a remote failure the listing survives as a draft so
// registration can be re-attempted.
func (s *Service) CreateSpace(ctx context.Context, details SpaceDetails, createdBy registry.AccountID) (*SpaceListing, error) {
	if details.TotalUnits == 0 {
		return nil, serviceErr(ErrorTypeFailure, "space must have at least one unit")
	}
	if details.Owner == "" {
		return nil, serviceErr(ErrorTypeFailure, "space owner is required")
	}

	listing := &SpaceListing{
		ID:        uuid.New(),
		Details:   details,
		Status:    ListingStatusDraft,
		CreatedBy: string(createdBy),
	}
	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return nil, serviceErr(ErrorTypeFailure, "failed to persist listing: %v", err)
	}

	spaceID, err := s.registry.CreateSpace(ctx, details.PricePerUnit, details.TotalUnits)
	if err != nil {
		s.logger.Error("space registration failed",
			zap.String("listing_id", listing.ID.String()), zap.Error(err))
		return nil, wrapRemote(err)
	}

	if !listing.Status.CanBecome(ListingStatusRegistered) {
		return nil, serviceErr(ErrorTypeFailure, "listing %s cannot move from %s to registered", listing.ID, listing.Status)
	}
	listing.RegistrySpaceID = spaceID
	listing.Status = ListingStatusRegistered
	if err := s.repo.UpdateListing(ctx, listing); err != nil {
		return nil, serviceErr(ErrorTypeFailure, "failed to record registration: %v", err)
	}

	s.logger.Info("space registered with registry",
		zap.String("listing_id", listing.ID.String()),
		zap.Uint64("registry_space_id", spaceID))
	return listing, nil
}

// RequestMint issues the asynchronous mint for a registered listing and
// interprets the result. Dispatch is not success: the outcome is whatever the
// decoded result says, and a call that did not complete is final — it is never
// retried, because without idempotency keys a retry could mint twice.
func (s *Service) RequestMint(ctx context.Context, listingID uuid.UUID, properties []registry.Property, requestedUnits uint64) (*MintRequest, error) {
	listing, err := s.repo.GetListing(ctx, listingID)
	if err == ErrRecordNotFound {
		return nil, serviceErr(ErrorTypeNotFound, "listing %s not found", listingID)
	}
	if err != nil {
		return nil, serviceErr(ErrorTypeFailure, "failed to load listing: %v", err)
	}
	if listing.Status != ListingStatusRegistered {
		return nil, serviceErr(ErrorTypeFailure, "listing %s is %s, not registered", listingID, listing.Status)
	}

	if !s.markInFlight(listingID) {
		return nil, serviceErr(ErrorTypeFailure, "a mint for listing %s is already in flight", listingID)
	}
	defer s.clearInFlight(listingID)

	payload, err := json.Marshal(listing.Details)
	if err != nil {
		return nil, serviceErr(ErrorTypeFailure, "failed to serialize space details: %v", err)
	}
	record := &MintRequest{
		ID:             uuid.New(),
		ListingID:      listing.ID,
		SpaceID:        listing.RegistrySpaceID,
		Owner:          string(listing.Details.Owner),
		RequestedUnits: requestedUnits,
		Payload:        datatypes.JSON(payload),
		Status:         MintRequestStatusPending,
	}
	if err := s.repo.CreateMintRequest(ctx, record); err != nil {
		return nil, serviceErr(ErrorTypeFailure, "failed to journal mint request: %v", err)
	}

	now := time.Now()
	record.Status = MintRequestStatusSubmitted
	record.SubmittedAt = &now
	if err := s.repo.UpdateMintRequest(ctx, record); err != nil {
		return nil, serviceErr(ErrorTypeFailure, "failed to journal submission: %v", err)
	}

	// The minting state is persisted before the dispatch so a restart
	// mid-call leaves the listing visibly in limbo instead of silently
	// re-eligible for another mint.
	if !listing.Status.CanBecome(ListingStatusMinting) {
		serr := serviceErr(ErrorTypeFailure, "listing %s cannot move from %s to minting", listingID, listing.Status)
		s.failMintRequest(ctx, record, serr)
		return record, serr
	}
	listing.Status = ListingStatusMinting
	if err := s.repo.UpdateListing(ctx, listing); err != nil {
		serr := serviceErr(ErrorTypeFailure, "failed to record minting state: %v", err)
		s.failMintRequest(ctx, record, serr)
		return record, serr
	}

	// Suspension point: control yields here until the registry responds.
	tokenID, mintErr := s.registry.Mint(ctx, registry.MintParams{
		Owner:          listing.Details.Owner,
		SpaceID:        listing.RegistrySpaceID,
		Properties:     properties,
		PricePerUnit:   listing.Details.PricePerUnit,
		TotalUnits:     listing.Details.TotalUnits,
		RequestedUnits: requestedUnits,
	})

	if mintErr != nil {
		serr := wrapRemote(mintErr)
		s.failMintRequest(ctx, record, serr)
		s.failListing(ctx, listing)
		s.logger.Error("mint rejected or failed",
			zap.String("listing_id", listing.ID.String()),
			zap.String("error_type", string(serr.Type)),
			zap.Error(mintErr))
		return record, serr
	}

	// The world may have moved while we were suspended: only commit if the
	// listing still exists and is still in the state we checked before the
	// call.
	current, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		serr := serviceErr(ErrorTypeFailure,
			"listing %s disappeared during mint; token %d minted but unrecorded", listingID, tokenID)
		s.failMintRequest(ctx, record, serr)
		return record, serr
	}
	if current.Status != ListingStatusMinting || !current.Status.CanBecome(ListingStatusMinted) {
		serr := serviceErr(ErrorTypeFailure,
			"listing %s changed to %s during mint; token %d minted but unrecorded", listingID, current.Status, tokenID)
		s.failMintRequest(ctx, record, serr)
		return record, serr
	}

	current.TokenID = &tokenID
	current.Status = ListingStatusMinted
	if err := s.repo.UpdateListing(ctx, current); err != nil {
		serr := serviceErr(ErrorTypeFailure, "failed to record minted token: %v", err)
		s.failMintRequest(ctx, record, serr)
		return record, serr
	}

	done := time.Now()
	record.Status = MintRequestStatusConfirmed
	record.TokenID = &tokenID
	record.CompletedAt = &done
	if err := s.repo.UpdateMintRequest(ctx, record); err != nil {
		return record, serviceErr(ErrorTypeFailure, "failed to journal confirmation: %v", err)
	}

	s.logger.Info("mint confirmed",
		zap.String("listing_id", listing.ID.String()),
		zap.Uint64("token_id", tokenID))
	return record, nil
}

// TradeUnits relays a custodian-mediated unit transfer to the registry.
func (s *Service) TradeUnits(ctx context.Context, tokenID uint64, sender, receiver registry.AccountID, units uint64) error {
	if err := s.registry.Trade(ctx, tokenID, sender, receiver, units); err != nil {
		return wrapRemote(err)
	}
	return nil
}

// GetToken fetches the live token record from the registry.
func (s *Service) GetToken(ctx context.Context, tokenID uint64) (registry.Token, error) {
	tok, err := s.registry.GetToken(ctx, tokenID)
	if err != nil {
		return registry.Token{}, wrapRemote(err)
	}
	return tok, nil
}

// GetListing returns a listing by id.
func (s *Service) GetListing(ctx context.Context, id uuid.UUID) (*SpaceListing, error) {
	listing, err := s.repo.GetListing(ctx, id)
	if err == ErrRecordNotFound {
		return nil, serviceErr(ErrorTypeNotFound, "listing %s not found", id)
	}
	if err != nil {
		return nil, serviceErr(ErrorTypeFailure, "failed to load listing: %v", err)
	}
	return listing, nil
}

// GetMintRequest returns a journal record by id.
func (s *Service) GetMintRequest(ctx context.Context, id uuid.UUID) (*MintRequest, error) {
	record, err := s.repo.GetMintRequest(ctx, id)
	if err == ErrRecordNotFound {
		return nil, serviceErr(ErrorTypeNotFound, "mint request %s not found", id)
	}
	if err != nil {
		return nil, serviceErr(ErrorTypeFailure, "failed to load mint request: %v", err)
	}
	return record, nil
}

func (s *Service) markInFlight(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Service) clearInFlight(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

// failListing moves a listing to the terminal failed state. The transition is
// skipped when the lifecycle forbids it, such as a listing already minted.
func (s *Service) failListing(ctx context.Context, listing *SpaceListing) {
	if !listing.Status.CanBecome(ListingStatusFailed) {
		return
	}
	listing.Status = ListingStatusFailed
	if err := s.repo.UpdateListing(ctx, listing); err != nil {
		s.logger.Error("failed to record listing failure",
			zap.String("listing_id", listing.ID.String()), zap.Error(err))
	}
}

func (s *Service) failMintRequest(ctx context.Context, record *MintRequest, serr *ServiceError) {
	now := time.Now()
	code := string(serr.Type)
	if serr.Nft != nil {
		code = string(serr.Nft.Code)
	}
	msg := serr.Error()
	record.Status = MintRequestStatusFailed
	record.ErrorCode = &code
	record.ErrorMessage = &msg
	record.CompletedAt = &now
	if err := s.repo.UpdateMintRequest(ctx, record); err != nil {
		s.logger.Error("failed to journal mint failure",
			zap.String("mint_request_id", record.ID.String()), zap.Error(err))
	}
}
