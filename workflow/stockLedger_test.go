package workflow

import (
	"testing"

	"github.com/dukaanhq/dukaan_backend/models"
	"github.com/dukaanhq/dukaan_backend/utils"
)

func TestComputeCreateStockDeltas(t *testing.T) {
	details := []*models.NewTransactionDetail{
		{ProductId: 1, Qty: 5},
		{ProductId: 2, Qty: 3},
	}

	sale := ComputeCreateStockDeltas(models.TransactionTypeSale, details)
	if sale[1] != -5 || sale[2] != -3 {
		t.Fatalf("sale deltas: got %v", sale)
	}

	purchase := ComputeCreateStockDeltas(models.TransactionTypePurchase, details)
	if purchase[1] != 5 || purchase[2] != 3 {
		t.Fatalf("purchase deltas: got %v", purchase)
	}
}

func TestComputeEditStockDeltas(t *testing.T) {
	oldDetails := []*models.TransactionDetail{
		{ProductId: 1, Qty: 5},
		{ProductId: 2, Qty: 3},
	}
	newDetails := []*models.NewTransactionDetail{
		{ProductId: 1, Qty: 8},
		{ProductId: 3, Qty: 2},
	}

	// Sale of 5 edited to 8 must take 3 more out of stock; the removed
	// product 2 gets its 3 back; product 3 newly loses 2.
	deltas := ComputeEditStockDeltas(models.TransactionTypeSale, oldDetails, newDetails)
	if deltas[1] != -3 {
		t.Fatalf("product 1: expected -3, got %d", deltas[1])
	}
	if deltas[2] != 3 {
		t.Fatalf("product 2: expected +3, got %d", deltas[2])
	}
	if deltas[3] != -2 {
		t.Fatalf("product 3: expected -2, got %d", deltas[3])
	}
}

func TestComputeEditStockDeltas_UnchangedQtyDropsOut(t *testing.T) {
	oldDetails := []*models.TransactionDetail{{ProductId: 7, Qty: 4}}
	newDetails := []*models.NewTransactionDetail{{ProductId: 7, Qty: 4}}

	deltas := ComputeEditStockDeltas(models.TransactionTypePurchase, oldDetails, newDetails)
	if len(deltas) != 0 {
		t.Fatalf("expected no deltas for unchanged quantities, got %v", deltas)
	}
}

func TestComputeReverseStockDeltas(t *testing.T) {
	details := []*models.TransactionDetail{
		{ProductId: 1, Qty: 5},
		{ProductId: 2, Qty: 3},
	}

	// Deleting a sale puts stock back; deleting a purchase takes it out.
	sale := ComputeReverseStockDeltas(models.TransactionTypeSale, details)
	if sale[1] != 5 || sale[2] != 3 {
		t.Fatalf("sale reversal: got %v", sale)
	}

	purchase := ComputeReverseStockDeltas(models.TransactionTypePurchase, details)
	if purchase[1] != -5 || purchase[2] != -3 {
		t.Fatalf("purchase reversal: got %v", purchase)
	}
}

func TestPreValidateStockDeltas(t *testing.T) {
	products := map[int]*models.Product{
		1: {ID: 1, CurrentStock: 10},
		2: {ID: 2, CurrentStock: 2},
	}

	if err := PreValidateStockDeltas(map[int]int{1: -10, 2: -2}, products); err != nil {
		t.Fatalf("exact drain should pass: %v", err)
	}

	if err := PreValidateStockDeltas(map[int]int{2: -3}, products); err != utils.ErrInsufficientStock {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Increments never fail stock validation.
	if err := PreValidateStockDeltas(map[int]int{2: 100}, products); err != nil {
		t.Fatalf("increment should pass: %v", err)
	}

	if err := PreValidateStockDeltas(map[int]int{9: -1}, products); err != utils.ErrProductNotFound {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}
