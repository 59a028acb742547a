package models

import (
	"log"

	"github.com/dukaanhq/dukaan_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{}, &User{},
		&Product{}, &Party{},
		&Transaction{}, &TransactionDetail{}, &TransactionExpense{},
		&PubSubMessageRecord{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
