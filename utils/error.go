package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// Workflow error kinds. Handlers map these to structured failure responses.
var (
	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrPartyNotFound       = errors.New("party not found")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
