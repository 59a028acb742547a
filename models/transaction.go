package models

import (
	"context"
	"errors"
	"time"

	"github.com/dukaanhq/dukaan_backend/config"
	"github.com/dukaanhq/dukaan_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is a posted sale or purchase. The counter-party's name and
// phone are snapshots taken at posting time; PartyId links to the ledger
// party derived from the normalized phone.
type Transaction struct {
	ID              int                   `gorm:"primary_key" json:"id"`
	BusinessId      string                `gorm:"index;not null" json:"business_id" binding:"required"`
	Type            TransactionType       `gorm:"type:enum('sale','purchase');not null" json:"type" binding:"required"`
	PaymentType     PaymentType           `gorm:"type:enum('cash','credit');not null" json:"payment_type" binding:"required"`
	PartyId         int                   `gorm:"index" json:"party_id"`
	PartyName       string                `gorm:"size:100;not null" json:"party_name"`
	PartyPhone      string                `gorm:"size:20;not null" json:"party_phone"`
	TotalAmount     decimal.Decimal       `gorm:"type:decimal(20,4);not null" json:"total_amount"`
	IsPaid          *bool                 `gorm:"not null;default:false" json:"is_paid"`
	TransactionDate time.Time             `gorm:"not null" json:"transaction_date"`
	DueDate         *time.Time            `json:"due_date"`
	Details         []*TransactionDetail  `gorm:"foreignKey:TransactionId" json:"details"`
	Expenses        []*TransactionExpense `gorm:"foreignKey:TransactionId" json:"expenses"`
	CreatedAt       time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

// TransactionDetail is one line item. ProductName is a snapshot; CostPrice
// is the product's purchase price at the time of a sale, kept for profit
// reporting.
type TransactionDetail struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id"`
	TransactionId int             `gorm:"index;not null" json:"transaction_id"`
	ProductId     int             `gorm:"index;not null" json:"product_id"`
	ProductName   string          `gorm:"size:100" json:"product_name"`
	Qty           int             `gorm:"not null" json:"qty"`
	PricePerUnit  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price_per_unit"`
	CostPrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_price"`
}

// TransactionExpense is an extra charge on a purchase (transport, loading).
type TransactionExpense struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id"`
	TransactionId int             `gorm:"index;not null" json:"transaction_id"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
}

type NewTransaction struct {
	Type            TransactionType          `json:"type" binding:"required"`
	PaymentType     PaymentType              `json:"payment_type" binding:"required"`
	PartyName       string                   `json:"party_name" binding:"required"`
	PartyPhone      string                   `json:"party_phone" binding:"required"`
	TransactionDate *time.Time               `json:"transaction_date"`
	TotalAmount     decimal.Decimal          `json:"total_amount"`
	Details         []*NewTransactionDetail  `json:"details" binding:"required,min=1,dive"`
	Expenses        []*NewTransactionExpense `json:"expenses" binding:"dive"`
}

type NewTransactionDetail struct {
	ProductId    int             `json:"product_id" binding:"required"`
	Qty          int             `json:"qty" binding:"required,gt=0"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

type NewTransactionExpense struct {
	Name   string          `json:"name" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// CreateTransaction / UpdateTransaction / DeleteTransaction live in the
// workflow package; they need the posting lock and a single storage
// transaction across stock, party and record writes.

func (input *NewTransaction) Validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Transaction](ctx, businessId, id); err != nil {
			return utils.ErrTransactionNotFound
		}
	}
	if input.Type != TransactionTypeSale && input.Type != TransactionTypePurchase {
		return errors.New("invalid transaction type")
	}
	if input.PaymentType != PaymentTypeCash && input.PaymentType != PaymentTypeCredit {
		return errors.New("invalid payment type")
	}
	if len(input.Details) == 0 {
		return errors.New("at least one line item is required")
	}
	seen := make(map[int]bool, len(input.Details))
	for _, detail := range input.Details {
		if detail.Qty <= 0 {
			return errors.New("qty must be positive")
		}
		if detail.PricePerUnit.IsNegative() {
			return errors.New("price per unit cannot be negative")
		}
		if seen[detail.ProductId] {
			return errors.New("duplicate product in line items")
		}
		seen[detail.ProductId] = true
	}
	if input.Type == TransactionTypeSale && len(input.Expenses) > 0 {
		return errors.New("other expenses are only allowed on purchases")
	}
	for _, expense := range input.Expenses {
		if expense.Amount.IsNegative() {
			return errors.New("expense amount cannot be negative")
		}
	}

	// the server recomputes the total; a client-sent total that disagrees
	// is rejected rather than trusted
	if !input.TotalAmount.IsZero() {
		computed := input.ComputeTotalAmount()
		if !computed.Equal(input.TotalAmount) {
			return errors.New("total amount mismatch")
		}
	}
	return nil
}

// ComputeTotalAmount is the authoritative total: line items plus expenses.
func (input *NewTransaction) ComputeTotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, detail := range input.Details {
		total = total.Add(detail.PricePerUnit.Mul(decimal.NewFromInt(int64(detail.Qty))))
	}
	for _, expense := range input.Expenses {
		total = total.Add(expense.Amount)
	}
	return total
}

// CalculateTransactionDueDate gives cash transactions no due date; credit
// purchases are due in 10 days, credit sales in 30.
func CalculateTransactionDueDate(date time.Time, txnType TransactionType, payType PaymentType) *time.Time {
	if payType != PaymentTypeCredit {
		return nil
	}
	var dueDate time.Time
	switch txnType {
	case TransactionTypePurchase:
		dueDate = date.AddDate(0, 0, 10)
	case TransactionTypeSale:
		dueDate = date.AddDate(0, 0, 30)
	}
	return &dueDate
}

func GetTransaction(ctx context.Context, id int) (*Transaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[Transaction](ctx, businessId, id, "Details", "Expenses")
	if err != nil {
		return nil, utils.ErrTransactionNotFound
	}
	return result, nil
}

// FetchTransactionForUpdate loads the record with its children inside the
// caller's storage transaction.
func FetchTransactionForUpdate(ctx context.Context, tx *gorm.DB, businessId string, id int) (*Transaction, error) {
	var result Transaction
	err := tx.WithContext(ctx).
		Where("business_id = ?", businessId).
		Preload("Details").
		Preload("Expenses").
		First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrTransactionNotFound
		}
		return nil, err
	}
	return &result, nil
}

func GetTransactions(ctx context.Context, txnType *TransactionType, partyId *int, limit int, offset int) ([]*Transaction, int64, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, 0, errors.New("business id is required")
	}

	if limit <= 0 || limit > config.SearchLimit {
		limit = config.SearchLimit
	}

	dbCtx := db.WithContext(ctx).Model(&Transaction{}).Where("business_id = ?", businessId)
	if txnType != nil && *txnType != "" {
		dbCtx = dbCtx.Where("type = ?", *txnType)
	}
	if partyId != nil && *partyId > 0 {
		dbCtx = dbCtx.Where("party_id = ?", *partyId)
	}

	var total int64
	if err := dbCtx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*Transaction
	err := dbCtx.
		Preload("Details").
		Preload("Expenses").
		Order("transaction_date DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error
	if err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

// GetOverdueCreditTransactions lists unpaid credit transactions whose due
// date has passed, for reminders.
func GetOverdueCreditTransactions(ctx context.Context, asOf time.Time) ([]*Transaction, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	var results []*Transaction
	err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Where("payment_type = ?", PaymentTypeCredit).
		Where("is_paid = ?", false).
		Where("due_date IS NOT NULL AND due_date < ?", asOf).
		Order("due_date").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
