package invoices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	"github.com/jmorales/caterflow-backend/pkg/pagination"
)

// ListFilter narrows invoice listings.
type ListFilter struct {
	QuoteID      *uuid.UUID
	Status       *enums.InvoiceWorkflowStatus
	DocumentType *enums.DocumentType
}

// Repository manages persistence for invoices and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindByQuoteID(ctx context.Context, quoteID uuid.UUID) ([]models.Invoice, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Invoice, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CreateLineItem(ctx context.Context, item *models.InvoiceLineItem) error
	FindLineItem(ctx context.Context, id uuid.UUID) (*models.InvoiceLineItem, error)
	ListLineItems(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceLineItem, error)
	UpdateLineItem(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeleteLineItem(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindByQuoteID(ctx context.Context, quoteID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if err := r.db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Order("created_at DESC").
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Invoice, error) {
	query := r.db.WithContext(ctx).Model(&models.Invoice{})

	if filter.QuoteID != nil {
		query = query.Where("quote_id = ?", *filter.QuoteID)
	}
	if filter.Status != nil {
		query = query.Where("workflow_status = ?", *filter.Status)
	}
	if filter.DocumentType != nil {
		query = query.Where("document_type = ?", *filter.DocumentType)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var invoices []models.Invoice
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) CreateLineItem(ctx context.Context, item *models.InvoiceLineItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindLineItem(ctx context.Context, id uuid.UUID) (*models.InvoiceLineItem, error) {
	var item models.InvoiceLineItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListLineItems(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceLineItem, error) {
	var items []models.InvoiceLineItem
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("sort_order ASC, created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateLineItem(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.InvoiceLineItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) DeleteLineItem(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.InvoiceLineItem{}, "id = ?", id).Error
}
