package workflow

import (
	"github.com/dukaanhq/dukaan_backend/models"
	"github.com/shopspring/decimal"
)

// CreditContribution is the amount a transaction adds to its party's
// outstanding balance. Only credit purchases feed the vendor ledger; sales
// track their paid state on the transaction itself.
func CreditContribution(txnType models.TransactionType, payType models.PaymentType, total decimal.Decimal) decimal.Decimal {
	if txnType == models.TransactionTypePurchase && payType == models.PaymentTypeCredit {
		return total
	}
	return decimal.Zero
}

// OutstandingEditDelta is the outstanding adjustment when a purchase is
// edited in place (same party):
//
//	credit -> credit: newTotal - oldTotal
//	credit -> cash:   -oldTotal
//	cash   -> credit: +newTotal
//	cash   -> cash:   0
func OutstandingEditDelta(txnType models.TransactionType, oldPay, newPay models.PaymentType, oldTotal, newTotal decimal.Decimal) decimal.Decimal {
	oldContribution := CreditContribution(txnType, oldPay, oldTotal)
	newContribution := CreditContribution(txnType, newPay, newTotal)
	return newContribution.Sub(oldContribution)
}
