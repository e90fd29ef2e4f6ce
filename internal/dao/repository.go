package dao

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrRecordNotFound is returned when a listing or mint request does not exist.
var ErrRecordNotFound = errors.New("record not found")

// Repository is the DAO's persistence boundary.
type Repository interface {
	CreateListing(ctx context.Context, listing *SpaceListing) error
	GetListing(ctx context.Context, id uuid.UUID) (*SpaceListing, error)
	UpdateListing(ctx context.Context, listing *SpaceListing) error

	CreateMintRequest(ctx context.Context, req *MintRequest) error
	GetMintRequest(ctx context.Context, id uuid.UUID) (*MintRequest, error)
	UpdateMintRequest(ctx context.Context, req *MintRequest) error
}

// GormRepository persists DAO records through gorm.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository and migrates its tables.
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&SpaceListing{}, &MintRequest{}); err != nil {
		return nil, fmt.Errorf("failed to migrate dao tables: %w", err)
	}
	return &GormRepository{db: db}, nil
}

func (r *GormRepository) CreateListing(ctx context.Context, listing *SpaceListing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *GormRepository) GetListing(ctx context.Context, id uuid.UUID) (*SpaceListing, error) {
	var listing SpaceListing
	err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *GormRepository) UpdateListing(ctx context.Context, listing *SpaceListing) error {
	return r.db.WithContext(ctx).Save(listing).Error
}

func (r *GormRepository) CreateMintRequest(ctx context.Context, req *MintRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *GormRepository) GetMintRequest(ctx context.Context, id uuid.UUID) (*MintRequest, error) {
	var req MintRequest
	err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *GormRepository) UpdateMintRequest(ctx context.Context, req *MintRequest) error {
	return r.db.WithContext(ctx).Save(req).Error
}
