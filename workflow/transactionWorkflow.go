package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/dukaanhq/dukaan_backend/config"
	"github.com/dukaanhq/dukaan_backend/models"
	"github.com/dukaanhq/dukaan_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const createTransactionHandler = "CreateTransaction"

// CreateTransaction posts a sale or purchase: stock deltas, the party
// ledger and the record itself all commit in one storage transaction,
// serialized per business by the posting lock. A repeated idempotencyKey
// returns the originally created transaction.
func CreateTransaction(ctx context.Context, input *models.NewTransaction, idempotencyKey string) (*models.Transaction, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.Validate(ctx, businessId, 0); err != nil {
		return nil, err
	}
	phone, err := utils.NormalizePhoneNumber(input.PartyPhone)
	if err != nil {
		return nil, errors.New("invalid party phone number")
	}

	redisLock, err := utils.BusinessLock(ctx, businessId, "Posting", "TransactionWorkflow", "CreateTransaction")
	if err != nil {
		return nil, err
	}
	defer func() { _ = redisLock.Release(context.Background()) }()

	db := config.GetDB()
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := AcquireBusinessPostingLock(tx, businessId); err != nil {
		tx.Rollback()
		return nil, err
	}
	defer ReleaseBusinessPostingLock(tx, businessId)

	if idempotencyKey != "" {
		skip, refId, err := BeginIdempotency(tx, businessId, createTransactionHandler, idempotencyKey)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if skip {
			if err := tx.Commit().Error; err != nil {
				return nil, err
			}
			return models.GetTransaction(ctx, refId)
		}
	}

	transaction, err := postTransaction(ctx, tx, businessId, input, phone)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if idempotencyKey != "" {
		if err := MarkIdempotencySucceeded(tx, businessId, createTransactionHandler, idempotencyKey, transaction.ID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return transaction, nil
}

func postTransaction(ctx context.Context, tx *gorm.DB, businessId string, input *models.NewTransaction, phone string) (*models.Transaction, error) {

	productIds := make([]int, 0, len(input.Details))
	for _, d := range input.Details {
		productIds = append(productIds, d.ProductId)
	}
	products, err := models.GetProductsByIds(ctx, tx, businessId, productIds)
	if err != nil {
		return nil, err
	}

	// validate everything before the first mutation: a failing line item
	// must leave stock untouched
	deltas := ComputeCreateStockDeltas(input.Type, input.Details)
	if err := PreValidateStockDeltas(deltas, products); err != nil {
		return nil, err
	}
	if err := ApplyStockDeltas(ctx, tx, businessId, deltas); err != nil {
		return nil, err
	}
	if err := EmitLowStockEvents(ctx, tx, businessId, deltas, products); err != nil {
		return nil, err
	}

	transactionDate := time.Now()
	if input.TransactionDate != nil {
		transactionDate = *input.TransactionDate
	}
	totalAmount := input.ComputeTotalAmount()
	dueDate := models.CalculateTransactionDueDate(transactionDate, input.Type, input.PaymentType)

	isPaid := input.PaymentType == models.PaymentTypeCash

	transaction := models.Transaction{
		BusinessId:      businessId,
		Type:            input.Type,
		PaymentType:     input.PaymentType,
		PartyName:       input.PartyName,
		PartyPhone:      phone,
		TotalAmount:     totalAmount,
		IsPaid:          &isPaid,
		TransactionDate: transactionDate,
		DueDate:         dueDate,
		Details:         mapTransactionDetails(businessId, input.Type, input.Details, products),
		Expenses:        mapTransactionExpenses(businessId, input.Expenses),
	}
	if err := tx.WithContext(ctx).Create(&transaction).Error; err != nil {
		return nil, err
	}

	party, err := models.FindOrCreateParty(ctx, tx, businessId, input.PartyName, phone, models.PartyTypeForTransaction(input.Type))
	if err != nil {
		return nil, err
	}
	transaction.PartyId = party.ID
	if err := tx.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", transaction.ID).
		Update("party_id", party.ID).Error; err != nil {
		return nil, err
	}

	contribution := CreditContribution(input.Type, input.PaymentType, totalAmount)
	if !contribution.IsZero() {
		if err := models.AdjustPartyOutstanding(ctx, tx, party, contribution, dueDate); err != nil {
			return nil, err
		}
	}

	if err := models.PublishNotification(ctx, tx, businessId, transaction.TransactionDate, transaction.ID,
		models.NotificationReferenceTypeTransaction, transaction, nil, models.PubSubMessageActionCreate); err != nil {
		return nil, err
	}

	return &transaction, nil
}

// UpdateTransaction replaces the transaction's line items and header in
// place, applying only the net stock difference and reconciling the party
// ledger against the old state.
func UpdateTransaction(ctx context.Context, id int, input *models.NewTransaction) (*models.Transaction, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.Validate(ctx, businessId, id); err != nil {
		return nil, err
	}
	phone, err := utils.NormalizePhoneNumber(input.PartyPhone)
	if err != nil {
		return nil, errors.New("invalid party phone number")
	}

	redisLock, err := utils.BusinessLock(ctx, businessId, "Posting", "TransactionWorkflow", "UpdateTransaction")
	if err != nil {
		return nil, err
	}
	defer func() { _ = redisLock.Release(context.Background()) }()

	db := config.GetDB()
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := AcquireBusinessPostingLock(tx, businessId); err != nil {
		tx.Rollback()
		return nil, err
	}
	defer ReleaseBusinessPostingLock(tx, businessId)

	oldTransaction, err := models.FetchTransactionForUpdate(ctx, tx, businessId, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if input.Type != oldTransaction.Type {
		tx.Rollback()
		return nil, errors.New("transaction type cannot be changed")
	}

	productIds := make([]int, 0, len(input.Details)+len(oldTransaction.Details))
	for _, d := range input.Details {
		productIds = append(productIds, d.ProductId)
	}
	for _, d := range oldTransaction.Details {
		productIds = append(productIds, d.ProductId)
	}
	products, err := models.GetProductsByIds(ctx, tx, businessId, productIds)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	deltas := ComputeEditStockDeltas(input.Type, oldTransaction.Details, input.Details)
	if err := PreValidateStockDeltas(deltas, products); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := ApplyStockDeltas(ctx, tx, businessId, deltas); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := EmitLowStockEvents(ctx, tx, businessId, deltas, products); err != nil {
		tx.Rollback()
		return nil, err
	}

	transactionDate := oldTransaction.TransactionDate
	if input.TransactionDate != nil {
		transactionDate = *input.TransactionDate
	}
	totalAmount := input.ComputeTotalAmount()
	dueDate := models.CalculateTransactionDueDate(transactionDate, input.Type, input.PaymentType)
	isPaid := input.PaymentType == models.PaymentTypeCash

	// overwrite children wholesale; the record keeps its id
	if err := tx.WithContext(ctx).Where("transaction_id = ?", id).Delete(&models.TransactionDetail{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("transaction_id = ?", id).Delete(&models.TransactionExpense{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	newDetails := mapTransactionDetails(businessId, input.Type, input.Details, products)
	for _, d := range newDetails {
		d.TransactionId = id
	}
	newExpenses := mapTransactionExpenses(businessId, input.Expenses)
	for _, e := range newExpenses {
		e.TransactionId = id
	}
	if len(newDetails) > 0 {
		if err := tx.WithContext(ctx).Create(&newDetails).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if len(newExpenses) > 0 {
		if err := tx.WithContext(ctx).Create(&newExpenses).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	partyId, err := reconcileParty(ctx, tx, businessId, oldTransaction, input, phone, totalAmount, dueDate)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"PaymentType":     input.PaymentType,
			"PartyId":         partyId,
			"PartyName":       input.PartyName,
			"PartyPhone":      phone,
			"TotalAmount":     totalAmount,
			"IsPaid":          &isPaid,
			"TransactionDate": transactionDate,
			"DueDate":         dueDate,
		}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	newTransaction, err := models.FetchTransactionForUpdate(ctx, tx, businessId, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := models.PublishNotification(ctx, tx, businessId, newTransaction.TransactionDate, id,
		models.NotificationReferenceTypeTransaction, newTransaction, oldTransaction, models.PubSubMessageActionUpdate); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return newTransaction, nil
}

// reconcileParty keeps the party ledger consistent with the edited record.
// Same phone means an in-place outstanding adjustment; a changed phone
// detaches the old party (reversing its credit contribution and deleting it
// when nothing references it anymore) and attaches the new one.
func reconcileParty(ctx context.Context, tx *gorm.DB, businessId string, old *models.Transaction, input *models.NewTransaction, phone string, newTotal decimal.Decimal, dueDate *time.Time) (int, error) {

	partyType := models.PartyTypeForTransaction(old.Type)

	if phone == old.PartyPhone {
		party, err := models.FindOrCreateParty(ctx, tx, businessId, input.PartyName, phone, partyType)
		if err != nil {
			return 0, err
		}
		oldTotal := old.TotalAmount
		if utils.DereferencePtr(old.IsPaid) {
			// an already-settled credit contribution has left the ledger
			oldTotal = decimal.Zero
		}
		delta := OutstandingEditDelta(old.Type, old.PaymentType, input.PaymentType, oldTotal, newTotal)
		if !delta.IsZero() {
			if err := models.AdjustPartyOutstanding(ctx, tx, party, delta, dueDate); err != nil {
				return 0, err
			}
		}
		return party.ID, nil
	}

	oldParty, err := models.FindParty(ctx, tx, businessId, old.PartyPhone, partyType)
	if err != nil {
		return 0, err
	}
	oldContribution := CreditContribution(old.Type, old.PaymentType, old.TotalAmount)
	if !oldContribution.IsZero() && !utils.DereferencePtr(old.IsPaid) {
		if err := models.AdjustPartyOutstanding(ctx, tx, oldParty, oldContribution.Neg(), nil); err != nil {
			return 0, err
		}
	}

	newParty, err := models.FindOrCreateParty(ctx, tx, businessId, input.PartyName, phone, partyType)
	if err != nil {
		return 0, err
	}
	newContribution := CreditContribution(old.Type, input.PaymentType, newTotal)
	if !newContribution.IsZero() {
		if err := models.AdjustPartyOutstanding(ctx, tx, newParty, newContribution, dueDate); err != nil {
			return 0, err
		}
	}

	// repoint the record before checking whether the old party is empty
	if err := tx.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", old.ID).
		Update("party_id", newParty.ID).Error; err != nil {
		return 0, err
	}
	if _, err := models.DeletePartyIfEmpty(ctx, tx, oldParty); err != nil {
		return 0, err
	}

	return newParty.ID, nil
}

// DeleteTransaction reverses the transaction's stock and ledger effects and
// removes the record. A party left with no transactions is deleted.
func DeleteTransaction(ctx context.Context, id int) (*models.Transaction, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	redisLock, err := utils.BusinessLock(ctx, businessId, "Posting", "TransactionWorkflow", "DeleteTransaction")
	if err != nil {
		return nil, err
	}
	defer func() { _ = redisLock.Release(context.Background()) }()

	db := config.GetDB()
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := AcquireBusinessPostingLock(tx, businessId); err != nil {
		tx.Rollback()
		return nil, err
	}
	defer ReleaseBusinessPostingLock(tx, businessId)

	transaction, err := models.FetchTransactionForUpdate(ctx, tx, businessId, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	productIds := make([]int, 0, len(transaction.Details))
	for _, d := range transaction.Details {
		productIds = append(productIds, d.ProductId)
	}
	products, err := models.GetProductsByIds(ctx, tx, businessId, productIds)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	deltas := ComputeReverseStockDeltas(transaction.Type, transaction.Details)
	if err := PreValidateStockDeltas(deltas, products); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := ApplyStockDeltas(ctx, tx, businessId, deltas); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := EmitLowStockEvents(ctx, tx, businessId, deltas, products); err != nil {
		tx.Rollback()
		return nil, err
	}

	partyType := models.PartyTypeForTransaction(transaction.Type)
	party, err := models.FindParty(ctx, tx, businessId, transaction.PartyPhone, partyType)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	contribution := CreditContribution(transaction.Type, transaction.PaymentType, transaction.TotalAmount)
	if !contribution.IsZero() && !utils.DereferencePtr(transaction.IsPaid) {
		if err := models.AdjustPartyOutstanding(ctx, tx, party, contribution.Neg(), nil); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.WithContext(ctx).Where("transaction_id = ?", id).Delete(&models.TransactionDetail{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("transaction_id = ?", id).Delete(&models.TransactionExpense{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&models.Transaction{}, id).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if _, err := models.DeletePartyIfEmpty(ctx, tx, party); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := models.PublishNotification(ctx, tx, businessId, transaction.TransactionDate, id,
		models.NotificationReferenceTypeTransaction, nil, transaction, models.PubSubMessageActionDelete); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return transaction, nil
}

// MarkTransactionPaid settles a credit transaction. For credit purchases it
// also clears the amount from the vendor's outstanding balance. Marking an
// already-paid transaction is a no-op.
func MarkTransactionPaid(ctx context.Context, id int) (*models.Transaction, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := AcquireBusinessPostingLock(tx, businessId); err != nil {
		tx.Rollback()
		return nil, err
	}
	defer ReleaseBusinessPostingLock(tx, businessId)

	transaction, err := models.FetchTransactionForUpdate(ctx, tx, businessId, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if utils.DereferencePtr(transaction.IsPaid) {
		tx.Rollback()
		return transaction, nil
	}

	oldTransaction := *transaction
	if err := tx.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("is_paid", true).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	paid := true
	transaction.IsPaid = &paid

	contribution := CreditContribution(transaction.Type, transaction.PaymentType, transaction.TotalAmount)
	if !contribution.IsZero() {
		party, err := models.FindParty(ctx, tx, businessId, transaction.PartyPhone, models.PartyTypeForTransaction(transaction.Type))
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := models.AdjustPartyOutstanding(ctx, tx, party, contribution.Neg(), nil); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := models.PublishNotification(ctx, tx, businessId, transaction.TransactionDate, id,
		models.NotificationReferenceTypeTransaction, transaction, &oldTransaction, models.PubSubMessageActionUpdate); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return transaction, nil
}

func mapTransactionDetails(businessId string, txnType models.TransactionType, inputs []*models.NewTransactionDetail, products map[int]*models.Product) []*models.TransactionDetail {
	details := make([]*models.TransactionDetail, 0, len(inputs))
	for _, d := range inputs {
		detail := &models.TransactionDetail{
			BusinessId:   businessId,
			ProductId:    d.ProductId,
			Qty:          d.Qty,
			PricePerUnit: d.PricePerUnit,
		}
		if product, ok := products[d.ProductId]; ok {
			detail.ProductName = product.Name
			if txnType == models.TransactionTypeSale {
				detail.CostPrice = product.PurchasePrice
			}
		}
		details = append(details, detail)
	}
	return details
}

func mapTransactionExpenses(businessId string, inputs []*models.NewTransactionExpense) []*models.TransactionExpense {
	expenses := make([]*models.TransactionExpense, 0, len(inputs))
	for _, e := range inputs {
		expenses = append(expenses, &models.TransactionExpense{
			BusinessId: businessId,
			Name:       e.Name,
			Amount:     e.Amount,
		})
	}
	return expenses
}
