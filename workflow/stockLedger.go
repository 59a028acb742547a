package workflow

import (
	"context"
	"sort"

	"github.com/dukaanhq/dukaan_backend/models"
	"github.com/dukaanhq/dukaan_backend/utils"
	"gorm.io/gorm"
)

// stockEffect is the signed stock change a line item causes when posted:
// sales take stock out, purchases bring it in.
func stockEffect(txnType models.TransactionType, qty int) int {
	if txnType == models.TransactionTypeSale {
		return -qty
	}
	return qty
}

// ComputeCreateStockDeltas maps productId to the stock change of posting a
// new transaction.
func ComputeCreateStockDeltas(txnType models.TransactionType, details []*models.NewTransactionDetail) map[int]int {
	deltas := make(map[int]int, len(details))
	for _, d := range details {
		deltas[d.ProductId] += stockEffect(txnType, d.Qty)
	}
	return deltas
}

// ComputeEditStockDeltas maps productId to the net stock change of replacing
// the old line items with the new ones. A product removed from the
// transaction gets its original effect fully reversed.
func ComputeEditStockDeltas(txnType models.TransactionType, oldDetails []*models.TransactionDetail, newDetails []*models.NewTransactionDetail) map[int]int {
	deltas := make(map[int]int, len(oldDetails)+len(newDetails))
	for _, d := range oldDetails {
		deltas[d.ProductId] -= stockEffect(txnType, d.Qty)
	}
	for _, d := range newDetails {
		deltas[d.ProductId] += stockEffect(txnType, d.Qty)
	}
	for id, delta := range deltas {
		if delta == 0 {
			delete(deltas, id)
		}
	}
	return deltas
}

// ComputeReverseStockDeltas maps productId to the stock change of deleting
// the transaction.
func ComputeReverseStockDeltas(txnType models.TransactionType, details []*models.TransactionDetail) map[int]int {
	deltas := make(map[int]int, len(details))
	for _, d := range details {
		deltas[d.ProductId] -= stockEffect(txnType, d.Qty)
	}
	return deltas
}

func sortedProductIds(deltas map[int]int) []int {
	ids := make([]int, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// PreValidateStockDeltas checks every decrement against the current stock
// before anything is mutated, so a failing line leaves no partial change.
func PreValidateStockDeltas(deltas map[int]int, products map[int]*models.Product) error {
	for _, id := range sortedProductIds(deltas) {
		product, ok := products[id]
		if !ok {
			return utils.ErrProductNotFound
		}
		if delta := deltas[id]; delta < 0 && product.CurrentStock+delta < 0 {
			return utils.ErrInsufficientStock
		}
	}
	return nil
}

// ApplyStockDeltas posts the deltas in a deterministic product order. The
// conditional update in AdjustProductStock is the last line of defense
// against concurrent postings that slipped past pre-validation.
func ApplyStockDeltas(ctx context.Context, tx *gorm.DB, businessId string, deltas map[int]int) error {
	for _, id := range sortedProductIds(deltas) {
		if err := models.AdjustProductStock(ctx, tx, businessId, id, deltas[id]); err != nil {
			return err
		}
	}
	return nil
}

// EmitLowStockEvents writes a low-stock outbox record for every product the
// posting pushed from above its threshold to at or below it.
func EmitLowStockEvents(ctx context.Context, tx *gorm.DB, businessId string, deltas map[int]int, before map[int]*models.Product) error {
	for _, id := range sortedProductIds(deltas) {
		delta := deltas[id]
		if delta >= 0 {
			continue
		}
		product, ok := before[id]
		if !ok {
			continue
		}
		oldStock := product.CurrentStock
		newStock := oldStock + delta
		if oldStock > product.LowStockThreshold && newStock <= product.LowStockThreshold {
			snapshot := *product
			snapshot.CurrentStock = newStock
			if err := models.PublishNotification(ctx, tx, businessId, snapshot.UpdatedAt, product.ID,
				models.NotificationReferenceTypeLowStock, snapshot, nil, models.PubSubMessageActionCreate); err != nil {
				return err
			}
		}
	}
	return nil
}
