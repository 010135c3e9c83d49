package changerequests

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmorales/caterflow-backend/pkg/db/models"
)

// Repository manages persistence for change requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.ChangeRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ChangeRequest, error)
	ListByQuote(ctx context.Context, quoteID uuid.UUID) ([]models.ChangeRequest, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a change-request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.ChangeRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ChangeRequest, error) {
	var request models.ChangeRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) ListByQuote(ctx context.Context, quoteID uuid.UUID) ([]models.ChangeRequest, error) {
	var requests []models.ChangeRequest
	err := r.db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.ChangeRequest{}).
		Where("id = ?", id).
		Updates(updates).Error
}
