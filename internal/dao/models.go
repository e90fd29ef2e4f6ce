package dao

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"propspace/space-portal/space-portal-backend/internal/registry"
	"propspace/space-portal/space-portal-backend/pkg/workflows"
)

// SpaceDetails are the listing terms for a space being fractionalized.
type SpaceDetails struct {
	Owner        registry.AccountID `json:"owner"`
	Location     string             `json:"location"`
	Description  string             `json:"description"`
	PricePerUnit uint64             `json:"price_per_unit"`
	TotalUnits   uint64             `json:"total_units"`
}

// ListingStatus is the lifecycle of a space listing on the DAO side.
type ListingStatus string

const (
	ListingStatusDraft      ListingStatus = "draft"
	ListingStatusRegistered ListingStatus = "registered"
	ListingStatusMinting    ListingStatus = "minting"
	ListingStatusMinted     ListingStatus = "minted"
	ListingStatusFailed     ListingStatus = "failed"
)

// listingLifecycle is the transition table for SpaceListing.Status. Minted and
// failed are terminal; a failed registration stays a draft and may be retried.
// Minted is only reachable through minting, which is persisted before the
// remote dispatch.
var listingLifecycle = workflows.NewStateMachine(map[string][]string{
	string(ListingStatusDraft):      {string(ListingStatusRegistered)},
	string(ListingStatusRegistered): {string(ListingStatusMinting), string(ListingStatusFailed)},
	string(ListingStatusMinting):    {string(ListingStatusMinted), string(ListingStatusFailed)},
	string(ListingStatusMinted):     {},
	string(ListingStatusFailed):     {},
})

// CanBecome reports whether the lifecycle permits moving to next.
func (s ListingStatus) CanBecome(next ListingStatus) bool {
	return listingLifecycle.CanTransition(string(s), string(next))
}

// SpaceListing is the DAO's persisted record of a space: the asset terms, the
// registry descriptor it maps to, and the token once one exists.
type SpaceListing struct {
	ID              uuid.UUID     `json:"id" gorm:"type:uuid;primary_key"`
	Details         SpaceDetails  `json:"details" gorm:"embedded;embeddedPrefix:details_"`
	RegistrySpaceID uint64        `json:"registry_space_id" gorm:"index"`
	TokenID         *uint64       `json:"token_id,omitempty" gorm:"index"`
	Status          ListingStatus `json:"status" gorm:"default:'draft';index"`
	CreatedBy       string        `json:"created_by" gorm:"not null"`
	CreatedAt       time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

// MintRequestStatus is the journal state of one cross-service mint request.
type MintRequestStatus string

const (
	MintRequestStatusPending   MintRequestStatus = "pending"
	MintRequestStatusSubmitted MintRequestStatus = "submitted"
	MintRequestStatusConfirmed MintRequestStatus = "confirmed"
	MintRequestStatusFailed    MintRequestStatus = "failed"
)

// MintRequest journals one mint issued to the registry across the service
// boundary. The record outlives the request so a failed or interrupted mint
// can always be accounted for.
type MintRequest struct {
	ID             uuid.UUID         `json:"id" gorm:"type:uuid;primary_key"`
	ListingID      uuid.UUID         `json:"listing_id" gorm:"type:uuid;not null;index"`
	SpaceID        uint64            `json:"space_id" gorm:"not null;index"`
	Owner          string            `json:"owner" gorm:"not null"`
	RequestedUnits uint64            `json:"requested_units"`
	Payload        datatypes.JSON    `json:"payload" gorm:"default:'{}'"`
	TokenID        *uint64           `json:"token_id,omitempty"`
	Status         MintRequestStatus `json:"status" gorm:"default:'pending';index"`
	ErrorCode      *string           `json:"error_code,omitempty"`
	ErrorMessage   *string           `json:"error_message,omitempty"`
	SubmittedAt    *time.Time        `json:"submitted_at,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}
