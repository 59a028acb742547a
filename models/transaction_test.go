package models

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCalculateTransactionDueDate(t *testing.T) {
	date := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if due := CalculateTransactionDueDate(date, TransactionTypeSale, PaymentTypeCash); due != nil {
		t.Fatalf("cash sale: expected no due date, got %v", due)
	}
	if due := CalculateTransactionDueDate(date, TransactionTypePurchase, PaymentTypeCash); due != nil {
		t.Fatalf("cash purchase: expected no due date, got %v", due)
	}

	due := CalculateTransactionDueDate(date, TransactionTypePurchase, PaymentTypeCredit)
	if due == nil || !due.Equal(date.AddDate(0, 0, 10)) {
		t.Fatalf("credit purchase: expected +10 days, got %v", due)
	}

	due = CalculateTransactionDueDate(date, TransactionTypeSale, PaymentTypeCredit)
	if due == nil || !due.Equal(date.AddDate(0, 0, 30)) {
		t.Fatalf("credit sale: expected +30 days, got %v", due)
	}
}

func TestComputeTotalAmount(t *testing.T) {
	input := &NewTransaction{
		Type:        TransactionTypePurchase,
		PaymentType: PaymentTypeCash,
		Details: []*NewTransactionDetail{
			{ProductId: 1, Qty: 3, PricePerUnit: decimal.NewFromInt(100)},
			{ProductId: 2, Qty: 2, PricePerUnit: decimal.RequireFromString("49.5")},
		},
		Expenses: []*NewTransactionExpense{
			{Name: "transport", Amount: decimal.NewFromInt(50)},
		},
	}

	// 300 + 99 + 50
	if got := input.ComputeTotalAmount(); !got.Equal(decimal.NewFromInt(449)) {
		t.Fatalf("expected 449, got %s", got)
	}
}

func validNewTransaction() *NewTransaction {
	return &NewTransaction{
		Type:        TransactionTypeSale,
		PaymentType: PaymentTypeCash,
		PartyName:   "Mira Stores",
		PartyPhone:  "+919876543210",
		Details: []*NewTransactionDetail{
			{ProductId: 1, Qty: 2, PricePerUnit: decimal.NewFromInt(100)},
		},
	}
}

func TestNewTransactionValidate(t *testing.T) {
	ctx := context.Background()

	if err := validNewTransaction().Validate(ctx, "biz-1", 0); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	input := validNewTransaction()
	input.TotalAmount = decimal.NewFromInt(999)
	if err := input.Validate(ctx, "biz-1", 0); err == nil || err.Error() != "total amount mismatch" {
		t.Fatalf("expected total amount mismatch, got %v", err)
	}

	// a client-sent total matching the recomputed one is accepted
	input = validNewTransaction()
	input.TotalAmount = decimal.NewFromInt(200)
	if err := input.Validate(ctx, "biz-1", 0); err != nil {
		t.Fatalf("matching total rejected: %v", err)
	}

	input = validNewTransaction()
	input.Expenses = []*NewTransactionExpense{{Name: "transport", Amount: decimal.NewFromInt(10)}}
	if err := input.Validate(ctx, "biz-1", 0); err == nil {
		t.Fatal("expected expenses on a sale to be rejected")
	}

	input = validNewTransaction()
	input.Details = append(input.Details, &NewTransactionDetail{ProductId: 1, Qty: 1, PricePerUnit: decimal.NewFromInt(50)})
	if err := input.Validate(ctx, "biz-1", 0); err == nil {
		t.Fatal("expected duplicate product to be rejected")
	}

	input = validNewTransaction()
	input.Details[0].Qty = 0
	if err := input.Validate(ctx, "biz-1", 0); err == nil {
		t.Fatal("expected zero qty to be rejected")
	}

	input = validNewTransaction()
	input.Details = nil
	if err := input.Validate(ctx, "biz-1", 0); err == nil {
		t.Fatal("expected empty line items to be rejected")
	}

	input = validNewTransaction()
	input.Type = "refund"
	if err := input.Validate(ctx, "biz-1", 0); err == nil {
		t.Fatal("expected unknown transaction type to be rejected")
	}
}
