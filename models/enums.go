package models

type TransactionType string

const (
	TransactionTypeSale     TransactionType = "sale"
	TransactionTypePurchase TransactionType = "purchase"
)

type PaymentType string

const (
	PaymentTypeCash   PaymentType = "cash"
	PaymentTypeCredit PaymentType = "credit"
)

type PartyType string

const (
	PartyTypeCustomer PartyType = "customer"
	PartyTypeVendor   PartyType = "vendor"
)

// PartyTypeForTransaction maps the transaction side to the ledger side:
// sales are recorded against customers, purchases against vendors.
func PartyTypeForTransaction(t TransactionType) PartyType {
	if t == TransactionTypeSale {
		return PartyTypeCustomer
	}
	return PartyTypeVendor
}

type ProductUnit string

const (
	ProductUnitPiece ProductUnit = "pcs"
	ProductUnitKg    ProductUnit = "kg"
	ProductUnitGram  ProductUnit = "g"
	ProductUnitLitre ProductUnit = "l"
	ProductUnitMl    ProductUnit = "ml"
	ProductUnitMetre ProductUnit = "m"
	ProductUnitBox   ProductUnit = "box"
	ProductUnitDozen ProductUnit = "dozen"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "A"
	UserRoleOwner UserRole = "O"
)

type PubSubMessageAction string

const (
	PubSubMessageActionCreate PubSubMessageAction = "C"
	PubSubMessageActionUpdate PubSubMessageAction = "U"
	PubSubMessageActionDelete PubSubMessageAction = "D"
)

// NotificationReferenceType identifies what an outbox record points at.
type NotificationReferenceType string

const (
	NotificationReferenceTypeTransaction NotificationReferenceType = "TXN"
	NotificationReferenceTypeLowStock    NotificationReferenceType = "LOW_STOCK"
)
