package quotes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	"github.com/jmorales/caterflow-backend/pkg/pagination"
)

// ListFilter narrows quote listings.
type ListFilter struct {
	Status        *enums.QuoteWorkflowStatus
	EventDateFrom *time.Time
	EventDateTo   *time.Time
	ContactEmail  string
	SearchTerm    string
}

// Repository manages persistence for quotes and their field-change history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, quote *models.Quote) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Quote, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	RecordFieldChanges(ctx context.Context, changes []models.QuoteFieldChange) error
	FieldChangesSince(ctx context.Context, quoteID uuid.UUID, since time.Time) ([]models.QuoteFieldChange, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a quote repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, quote *models.Quote) error {
	return r.db.WithContext(ctx).Create(quote).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	if err := r.db.WithContext(ctx).First(&quote, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Quote, error) {
	query := r.db.WithContext(ctx).Model(&models.Quote{})

	if filter.Status != nil {
		query = query.Where("workflow_status = ?", *filter.Status)
	}
	if filter.EventDateFrom != nil {
		query = query.Where("event_date >= ?", *filter.EventDateFrom)
	}
	if filter.EventDateTo != nil {
		query = query.Where("event_date <= ?", *filter.EventDateTo)
	}
	if filter.ContactEmail != "" {
		query = query.Where("contact_email = ?", filter.ContactEmail)
	}
	if filter.SearchTerm != "" {
		pattern := "%" + filter.SearchTerm + "%"
		query = query.Where("contact_name ILIKE ? OR location ILIKE ?", pattern, pattern)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var quotes []models.Quote
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&quotes).Error; err != nil {
		return nil, err
	}
	return quotes, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) RecordFieldChanges(ctx context.Context, changes []models.QuoteFieldChange) error {
	if len(changes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&changes).Error
}

func (r *repository) FieldChangesSince(ctx context.Context, quoteID uuid.UUID, since time.Time) ([]models.QuoteFieldChange, error) {
	var changes []models.QuoteFieldChange
	if err := r.db.WithContext(ctx).
		Where("quote_id = ? AND recorded_at > ?", quoteID, since).
		Order("recorded_at ASC").
		Find(&changes).Error; err != nil {
		return nil, err
	}
	return changes, nil
}
