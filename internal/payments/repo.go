package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
)

// Repository manages persistence for payment milestones and transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateMilestones(ctx context.Context, milestones []models.PaymentMilestone) error
	FindMilestone(ctx context.Context, id uuid.UUID) (*models.PaymentMilestone, error)
	ListMilestones(ctx context.Context, invoiceID uuid.UUID) ([]models.PaymentMilestone, error)
	UpdateMilestone(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListOverdueInvoiceIDs(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
	CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error
	FindCompletedByIntentID(ctx context.Context, intentID string) (*models.PaymentTransaction, error)
	ListTransactions(ctx context.Context, invoiceID uuid.UUID) ([]models.PaymentTransaction, error)
	SumCompleted(ctx context.Context, invoiceID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateMilestones(ctx context.Context, milestones []models.PaymentMilestone) error {
	if len(milestones) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&milestones).Error
}

func (r *repository) FindMilestone(ctx context.Context, id uuid.UUID) (*models.PaymentMilestone, error) {
	var milestone models.PaymentMilestone
	if err := r.db.WithContext(ctx).First(&milestone, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &milestone, nil
}

func (r *repository) ListMilestones(ctx context.Context, invoiceID uuid.UUID) ([]models.PaymentMilestone, error) {
	var milestones []models.PaymentMilestone
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC, id ASC").
		Find(&milestones).Error; err != nil {
		return nil, err
	}
	return milestones, nil
}

func (r *repository) UpdateMilestone(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentMilestone{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ListOverdueInvoiceIDs returns invoices that have at least one unpaid,
// non-voided milestone with a due date in the past.
func (r *repository) ListOverdueInvoiceIDs(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentMilestone{}).
		Distinct("invoice_id").
		Where("due_date IS NOT NULL AND due_date < ?", asOf).
		Where("status NOT IN ?", []enums.MilestoneStatus{enums.MilestoneStatusPaid, enums.MilestoneStatusVoided}).
		Pluck("invoice_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// FindCompletedByIntentID looks up a completed transaction by processor
// intent id. Failed attempts for the same intent are ignored so a retried
// charge can still land.
func (r *repository) FindCompletedByIntentID(ctx context.Context, intentID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := r.db.WithContext(ctx).
		First(&txn, "processor_intent_id = ? AND status = ?", intentID, enums.TransactionStatusCompleted).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListTransactions(ctx context.Context, invoiceID uuid.UUID) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) SumCompleted(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	var sum int64
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("invoice_id = ? AND status = ?", invoiceID, enums.TransactionStatusCompleted).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&sum).Error; err != nil {
		return 0, err
	}
	return sum, nil
}
