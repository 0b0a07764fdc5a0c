package repository

import (
	"context"
	"farmland-checkout/internal/model"
	"time"

	"gorm.io/gorm"
)

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.PaymentTransaction) error
	FindByReferenceID(ctx context.Context, referenceID string) (*model.PaymentTransaction, error)
	FindByInvoiceNumber(ctx context.Context, tx *gorm.DB, invoiceNumber string) (*model.PaymentTransaction, error)
	SetSession(ctx context.Context, referenceID, token, checkoutURL string) error
	MarkFailed(ctx context.Context, referenceID string) error
	MarkPaid(ctx context.Context, tx *gorm.DB, referenceID, gatewayTxID, orderNumber string, pointsEarned int64) error
}

type transactionRepoImpl struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepoImpl{
		db: db,
	}
}

func (r *transactionRepoImpl) Create(ctx context.Context, txn *model.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *transactionRepoImpl) FindByReferenceID(ctx context.Context, referenceID string) (*model.PaymentTransaction, error) {
	var txn model.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		First(&txn).Error
	if err != nil {
		return nil, err
	}

	return &txn, nil
}

func (r *transactionRepoImpl) FindByInvoiceNumber(ctx context.Context, tx *gorm.DB, invoiceNumber string) (*model.PaymentTransaction, error) {
	var txn model.PaymentTransaction
	err := tx.WithContext(ctx).
		Where("invoice_number = ?", invoiceNumber).
		First(&txn).Error
	if err != nil {
		return nil, err
	}

	return &txn, nil
}

func (r *transactionRepoImpl) SetSession(ctx context.Context, referenceID, token, checkoutURL string) error {
	return r.db.WithContext(ctx).Model(&model.PaymentTransaction{}).
		Where("reference_id = ?", referenceID).
		Updates(map[string]interface{}{
			"token":      token,
			"updated_at": time.Now(),
		}).Error
}

func (r *transactionRepoImpl) MarkFailed(ctx context.Context, referenceID string) error {
	return r.db.WithContext(ctx).Model(&model.PaymentTransaction{}).
		Where("reference_id = ? AND status = ?", referenceID, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":     model.PaymentStatusFailed,
			"updated_at": time.Now(),
		}).Error
}

// MarkPaid moves a pending transaction to paid. ErrConditionNotMet means it
// was already settled (or never existed).
func (r *transactionRepoImpl) MarkPaid(ctx context.Context, tx *gorm.DB, referenceID, gatewayTxID, orderNumber string, pointsEarned int64) error {
	result := tx.WithContext(ctx).Model(&model.PaymentTransaction{}).
		Where("reference_id = ? AND status = ?", referenceID, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":        model.PaymentStatusPaid,
			"gateway_tx_id": gatewayTxID,
			"order_number":  orderNumber,
			"points_earned": pointsEarned,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConditionNotMet
	}
	return nil
}
