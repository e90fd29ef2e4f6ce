package dao

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"propspace/space-portal/space-portal-backend/internal/registry"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateListing(ctx context.Context, listing *SpaceListing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockRepository) GetListing(ctx context.Context, id uuid.UUID) (*SpaceListing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SpaceListing), args.Error(1)
}

func (m *MockRepository) UpdateListing(ctx context.Context, listing *SpaceListing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockRepository) CreateMintRequest(ctx context.Context, req *MintRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRepository) GetMintRequest(ctx context.Context, id uuid.UUID) (*MintRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MintRequest), args.Error(1)
}

func (m *MockRepository) UpdateMintRequest(ctx context.Context, req *MintRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockRegistryClient is a mock implementation of the RegistryClient interface
type MockRegistryClient struct {
	mock.Mock
}

func (m *MockRegistryClient) CreateSpace(ctx context.Context, pricePerUnit, totalUnits uint64) (uint64, error) {
	args := m.Called(ctx, pricePerUnit, totalUnits)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockRegistryClient) Mint(ctx context.Context, params registry.MintParams) (uint64, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockRegistryClient) Trade(ctx context.Context, tokenID uint64, sender, receiver registry.AccountID, units uint64) error {
	args := m.Called(ctx, tokenID, sender, receiver, units)
	return args.Error(0)
}

func (m *MockRegistryClient) GetToken(ctx context.Context, tokenID uint64) (registry.Token, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).(registry.Token), args.Error(1)
}

func testDetails() SpaceDetails {
	return SpaceDetails{
		Owner:        "alice",
		Location:     "Lisbon",
		Description:  "Rooftop studio",
		PricePerUnit: 500,
		TotalUnits:   100,
	}
}

func registeredListing() *SpaceListing {
	return &SpaceListing{
		ID:              uuid.New(),
		Details:         testDetails(),
		RegistrySpaceID: 7,
		Status:          ListingStatusRegistered,
		CreatedBy:       "alice",
	}
}

func asServiceError(t *testing.T, err error) *ServiceError {
	t.Helper()
	var serr *ServiceError
	require.ErrorAs(t, err, &serr)
	return serr
}

func TestCreateSpaceSuccess(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRegistry := new(MockRegistryClient)
	service := NewService(mockRepo, mockRegistry, zap.NewNop())

	ctx := context.Background()
	mockRepo.On("CreateListing", ctx, mock.AnythingOfType("*dao.SpaceListing")).Return(nil)
	mockRegistry.On("CreateSpace", ctx, uint64(500), uint64(100)).Return(uint64(7), nil)
	mockRepo.On("UpdateListing", ctx, mock.AnythingOfType("*dao.SpaceListing")).Return(nil)

	listing, err := service.CreateSpace(ctx, testDetails(), "alice")

	require.NoError(t, err)
	assert.Equal(t, ListingStatusRegistered, listing.Status)
	assert.Equal(t, uint64(7), listing.RegistrySpaceID)
	assert.Equal(t, "alice", listing.CreatedBy)

	mockRepo.AssertExpectations(t)
	mockRegistry.AssertExpectations(t)
}

func TestCreateSpaceRemoteFailureKeepsDraft(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRegistry := new(MockRegistryClient)
	service := NewService(mockRepo, mockRegistry, zap.NewNop())

	ctx := context.Background()
	mockRepo.On("CreateListing", ctx, mock.AnythingOfType("*dao.SpaceListing")).Return(nil)
	mockRegistry.On("CreateSpace", ctx, uint64(500), uint64(100)).
		Return(uint64(0), &CallError{Op: "createSpace", Err: errors.New("connection refused")})

	_, err := service.CreateSpace(ctx, testDetails(), "alice")

	serr := asServiceError(t, err)
	assert.Equal(t, ErrorTypeRemoteCallFailed, serr.Type)

	// The draft was persisted but never promoted.
	mockRepo.AssertNotCalled(t, "UpdateListing", mock.Anything, mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestCreateSpaceValidation(t *testing.T) {
	service := NewService(new(MockRepository), new(MockRegistryClient), zap.NewNop())
	ctx := context.Background()

	details := testDetails()
	details.TotalUnits = 0
	_, err := service.CreateSpace(ctx, details, "alice")
	assert.Equal(t, ErrorTypeFailure, asServiceError(t, err).Type)

	details = testDetails()
	details.Owner = ""
	_, err = service.CreateSpace(ctx, details, "alice")
	assert.Equal(t, ErrorTypeFailure, asServiceError(t, err).Type)
}

func TestRequestMintSuccess(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRegistry := new(MockRegistryClient)
	service := NewService(mockRepo, mockRegistry, zap.NewNop())

	ctx := context.Background()
	listing := registeredListing()

	mockRepo.On("GetListing", ctx, listing.ID).Return(listing, nil)
	mockRepo.On("CreateMintRequest", ctx, mock.AnythingOfType("*dao.MintRequest")).Return(nil)
	mockRepo.On("UpdateMintRequest", ctx, mock.AnythingOfType("*dao.MintRequest")).Return(nil)
	mockRegistry.On("Mint", ctx, mock.MatchedBy(func(p registry.MintParams) bool {
		return p.SpaceID == 7 && p.Owner == "alice" && p.RequestedUnits == 40
	})).Return(uint64(3), nil)
	var journaled []ListingStatus
	mockRepo.On("UpdateListing", ctx, mock.AnythingOfType("*dao.SpaceListing")).
		Run(func(args mock.Arguments) {
			journaled = append(journaled, args.Get(1).(*SpaceListing).Status)
		}).Return(nil)

	record, err := service.RequestMint(ctx, listing.ID, nil, 40)

	require.NoError(t, err)
	assert.Equal(t, MintRequestStatusConfirmed, record.Status)
	require.NotNil(t, record.TokenID)
	assert.Equal(t, uint64(3), *record.TokenID)
	assert.NotNil(t, record.SubmittedAt)
	assert.NotNil(t, record.CompletedAt)

	// The minting state is persisted before the dispatch, the minted state
	// after it.
	assert.Equal(t, []ListingStatus{ListingStatusMinting, ListingStatusMinted}, journaled)
	assert.Equal(t, ListingStatusMinted, listing.Status)
	require.NotNil(t, listing.TokenID)
	assert.Equal(t, uint64(3), *listing.TokenID)

	mockRepo.AssertExpectations(t)
	mockRegistry.AssertExpectations(t)
}

func TestRequestMintDomainRejection(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRegistry := new(MockRegistryClient)
	service := NewService(mockRepo, mockRegistry, zap.NewNop())

	ctx := context.Background()
	listing := registeredListing()

	mockRepo.On("GetListing", ctx, listing.ID).Return(listing, nil)
	mockRepo.On("CreateMintRequest", ctx, mock.AnythingOfType("*dao.MintRequest")).Return(nil)
	mockRepo.On("UpdateMintRequest", ctx, mock.AnythingOfType("*dao.MintRequest")).Return(nil)
	mockRepo.On("UpdateListing", ctx, mock.AnythingOfType("*dao.SpaceListing")).Return(nil)
	mockRegistry.On("Mint", ctx, mock.Anything).
		Return(uint64(0), &registry.NftError{Code: registry.ErrCodeUnitsNotAvailable})

	record, err := service.RequestMint(ctx, listing.ID, nil, 200)

	serr := asServiceError(t, err)
	assert.Equal(t, ErrorTypeNftRejected, serr.Type)
	require.NotNil(t, serr.Nft)
	assert.Equal(t, registry.ErrCodeUnitsNotAvailable, serr.Nft.Code)

	// The journal keeps the rejection.
	require.NotNil(t, record)
	assert.Equal(t, MintRequestStatusFailed, record.Status)
	require.NotNil(t, record.ErrorCode)
	assert.Equal(t, "UnitsNotAvailable", *record.ErrorCode)
	assert.NotNil(t, record.CompletedAt)

	// The listing lands in the terminal failed state, not back in registered.
	assert.Equal(t, ListingStatusFailed, listing.Status)
}

func TestRequestMintTransportFailureIsFinal(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRegistry := new(MockRegistryClient)
	service := NewService(mockRepo, mockRegistry, zap.NewNop())

	ctx := context.Background()
	listing := registeredListing()

	mockRepo.On("GetListing", ctx, listing.ID).Return(listing, nil)
	mockRepo.On("CreateMintRequest", ctx, mock.AnythingOfType("*dao.MintRequest")).Return(nil)
	mockRepo.On("UpdateMintRequest", ctx, mock.AnythingOfType("*dao.MintRequest")).Return(nil)
	mockRepo.On("UpdateListing", ctx, mock.AnythingOfType("*dao.SpaceListing")).Return(nil)
	mockRegistry.On("Mint", ctx, mock.Anything).
		Return(uint64(0), &CallError{Op: "mint", Err: errors.New("timeout")}).Once()

	record, err := service.RequestMint(ctx, listing.ID, nil, 10)

	serr := asServiceError(t, err)
	assert.Equal(t, ErrorTypeRemoteCallFailed, serr.Type)
	assert.Nil(t, serr.Nft)
	assert.Equal(t, MintRequestStatusFailed, record.Status)
	require.NotNil(t, record.ErrorCode)
	assert.Equal(t, "RemoteCallFailed", *record.ErrorCode)
	assert.Equal(t, ListingStatusFailed, listing.Status)

	// One dispatch, ever. An ambiguous outcome is never retried.
	mockRegistry.AssertNumberOfCalls(t, "Mint", 1)
}

func TestRequestMintRequiresRegisteredListing(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, new(MockRegistryClient), zap.NewNop())

	ctx := context.Background()
	listing := registeredListing()
	listing.Status = ListingStatusDraft
	mockRepo.On("GetListing", ctx, listing.ID).Return(listing, nil)

	_, err := service.RequestMint(ctx, listing.ID, nil, 10)
	assert.Equal(t, ErrorTypeFailure, asServiceError(t, err).Type)

	missing := uuid.New()
	mockRepo.On("GetListing", ctx, missing).Return(nil, ErrRecordNotFound)
	_, err = service.RequestMint(ctx, missing, nil, 10)
	assert.Equal(t, ErrorTypeNotFound, asServiceError(t, err).Type)
}

func TestRequestMintListingVanishesDuringAwait(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRegistry := new(MockRegistryClient)
	service := NewService(mockRepo, mockRegistry, zap.NewNop())

	ctx := context.Background()
	listing := registeredListing()

	// Registered before the call, gone after it.
	mockRepo.On("GetListing", ctx, listing.ID).Return(listing, nil).Once()
	mockRepo.On("GetListing", ctx, listing.ID).Return(nil, ErrRecordNotFound).Once()
	mockRepo.On("CreateMintRequest", ctx, mock.AnythingOfType("*dao.MintRequest")).Return(nil)
	mockRepo.On("UpdateMintRequest", ctx, mock.AnythingOfType("*dao.MintRequest")).Return(nil)
	mockRepo.On("UpdateListing", ctx, mock.AnythingOfType("*dao.SpaceListing")).Return(nil)
	mockRegistry.On("Mint", ctx, mock.Anything).Return(uint64(3), nil)

	record, err := service.RequestMint(ctx, listing.ID, nil, 10)

	serr := asServiceError(t, err)
	assert.Equal(t, ErrorTypeFailure, serr.Type)
	assert.Contains(t, serr.Message, "minted but unrecorded")
	assert.Equal(t, MintRequestStatusFailed, record.Status)
	// Only the pre-dispatch minting transition was written; nothing was
	// committed for a listing that no longer exists.
	mockRepo.AssertNumberOfCalls(t, "UpdateListing", 1)
	assert.Equal(t, ListingStatusMinting, listing.Status)
}

func TestRequestMintListingChangesDuringAwait(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRegistry := new(MockRegistryClient)
	service := NewService(mockRepo, mockRegistry, zap.NewNop())

	ctx := context.Background()
	listing := registeredListing()
	changed := *listing
	changed.Status = ListingStatusFailed

	mockRepo.On("GetListing", ctx, listing.ID).Return(listing, nil).Once()
	mockRepo.On("GetListing", ctx, listing.ID).Return(&changed, nil).Once()
	mockRepo.On("CreateMintRequest", ctx, mock.AnythingOfType("*dao.MintRequest")).Return(nil)
	mockRepo.On("UpdateMintRequest", ctx, mock.AnythingOfType("*dao.MintRequest")).Return(nil)
	mockRepo.On("UpdateListing", ctx, mock.AnythingOfType("*dao.SpaceListing")).Return(nil)
	mockRegistry.On("Mint", ctx, mock.Anything).Return(uint64(3), nil)

	record, err := service.RequestMint(ctx, listing.ID, nil, 10)

	serr := asServiceError(t, err)
	assert.Equal(t, ErrorTypeFailure, serr.Type)
	assert.Equal(t, MintRequestStatusFailed, record.Status)
	// The mint was never committed to the listing that moved on.
	assert.Equal(t, ListingStatusFailed, changed.Status)
	assert.Nil(t, changed.TokenID)
}

func TestRequestMintConcurrentInFlightRejected(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRegistry := new(MockRegistryClient)
	service := NewService(mockRepo, mockRegistry, zap.NewNop())

	ctx := context.Background()
	listing := registeredListing()

	release := make(chan struct{})
	entered := make(chan struct{})
	// Each load returns its own snapshot of the row, the way a real
	// repository would: the second caller still sees registered while the
	// first one is suspended at the remote call.
	fresh := *listing
	mockRepo.On("GetListing", ctx, listing.ID).Return(listing, nil).Once()
	mockRepo.On("GetListing", ctx, listing.ID).Return(&fresh, nil).Once()
	mockRepo.On("GetListing", ctx, listing.ID).Return(listing, nil).Once()
	mockRepo.On("CreateMintRequest", ctx, mock.AnythingOfType("*dao.MintRequest")).Return(nil)
	mockRepo.On("UpdateMintRequest", ctx, mock.AnythingOfType("*dao.MintRequest")).Return(nil)
	mockRepo.On("UpdateListing", ctx, mock.AnythingOfType("*dao.SpaceListing")).Return(nil)
	mockRegistry.On("Mint", ctx, mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(uint64(3), nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := service.RequestMint(ctx, listing.ID, nil, 10)
		assert.NoError(t, err)
	}()

	// While the first mint is suspended at the remote call, a second one on
	// the same listing must be refused without dispatching anything.
	<-entered
	_, err := service.RequestMint(ctx, listing.ID, nil, 10)
	serr := asServiceError(t, err)
	assert.Equal(t, ErrorTypeFailure, serr.Type)
	assert.Contains(t, serr.Message, "already in flight")

	close(release)
	wg.Wait()
	mockRegistry.AssertNumberOfCalls(t, "Mint", 1)
}

func TestTradeUnitsWrapsErrors(t *testing.T) {
	mockRegistry := new(MockRegistryClient)
	service := NewService(new(MockRepository), mockRegistry, zap.NewNop())
	ctx := context.Background()

	mockRegistry.On("Trade", ctx, uint64(1), registry.AccountID("alice"), registry.AccountID("bob"), uint64(5)).
		Return(&registry.NftError{Code: registry.ErrCodeInsufficientUnits}).Once()
	err := service.TradeUnits(ctx, 1, "alice", "bob", 5)
	serr := asServiceError(t, err)
	assert.Equal(t, ErrorTypeNftRejected, serr.Type)

	mockRegistry.On("Trade", ctx, uint64(1), registry.AccountID("alice"), registry.AccountID("bob"), uint64(5)).
		Return(nil).Once()
	assert.NoError(t, service.TradeUnits(ctx, 1, "alice", "bob", 5))
}

func TestWrapRemoteUnauthorized(t *testing.T) {
	serr := wrapRemote(&registry.NftError{Code: "NotCustodian", Message: "caller is not a custodian"})
	assert.Equal(t, ErrorTypeUnauthorized, serr.Type)
	assert.Nil(t, serr.Nft)
}
