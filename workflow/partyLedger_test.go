package workflow

import (
	"testing"

	"github.com/dukaanhq/dukaan_backend/models"
	"github.com/shopspring/decimal"
)

func TestCreditContribution(t *testing.T) {
	total := decimal.NewFromInt(500)

	cases := []struct {
		txnType models.TransactionType
		payType models.PaymentType
		want    decimal.Decimal
	}{
		{models.TransactionTypePurchase, models.PaymentTypeCredit, total},
		{models.TransactionTypePurchase, models.PaymentTypeCash, decimal.Zero},
		{models.TransactionTypeSale, models.PaymentTypeCredit, decimal.Zero},
		{models.TransactionTypeSale, models.PaymentTypeCash, decimal.Zero},
	}
	for _, c := range cases {
		got := CreditContribution(c.txnType, c.payType, total)
		if !got.Equal(c.want) {
			t.Fatalf("%s/%s: expected %s, got %s", c.txnType, c.payType, c.want, got)
		}
	}
}

func TestOutstandingEditDelta(t *testing.T) {
	oldTotal := decimal.NewFromInt(500)
	newTotal := decimal.NewFromInt(800)

	cases := []struct {
		name   string
		oldPay models.PaymentType
		newPay models.PaymentType
		want   decimal.Decimal
	}{
		{"credit to credit", models.PaymentTypeCredit, models.PaymentTypeCredit, decimal.NewFromInt(300)},
		{"credit to cash", models.PaymentTypeCredit, models.PaymentTypeCash, decimal.NewFromInt(-500)},
		{"cash to credit", models.PaymentTypeCash, models.PaymentTypeCredit, decimal.NewFromInt(800)},
		{"cash to cash", models.PaymentTypeCash, models.PaymentTypeCash, decimal.Zero},
	}
	for _, c := range cases {
		got := OutstandingEditDelta(models.TransactionTypePurchase, c.oldPay, c.newPay, oldTotal, newTotal)
		if !got.Equal(c.want) {
			t.Fatalf("%s: expected %s, got %s", c.name, c.want, got)
		}
	}
}

func TestOutstandingEditDelta_SalesNeverTouchOutstanding(t *testing.T) {
	oldTotal := decimal.NewFromInt(500)
	newTotal := decimal.NewFromInt(800)

	for _, oldPay := range []models.PaymentType{models.PaymentTypeCash, models.PaymentTypeCredit} {
		for _, newPay := range []models.PaymentType{models.PaymentTypeCash, models.PaymentTypeCredit} {
			got := OutstandingEditDelta(models.TransactionTypeSale, oldPay, newPay, oldTotal, newTotal)
			if !got.IsZero() {
				t.Fatalf("sale %s->%s: expected zero, got %s", oldPay, newPay, got)
			}
		}
	}
}
