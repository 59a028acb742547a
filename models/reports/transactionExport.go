package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukaanhq/dukaan_backend/config"
	"github.com/dukaanhq/dukaan_backend/models"
	"github.com/dukaanhq/dukaan_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type transactionExportRow struct {
	Id              int             `json:"id"`
	Type            string          `json:"type"`
	PaymentType     string          `json:"payment_type"`
	PartyName       string          `json:"party_name"`
	PartyPhone      string          `json:"party_phone"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	IsPaid          bool            `json:"is_paid"`
	TransactionDate string          `json:"transaction_date"`
	DueDate         *string         `json:"due_date"`
	ItemCount       int             `json:"item_count"`
}

func getTransactionExportRows(ctx context.Context, txnType *models.TransactionType) ([]*transactionExportRow, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	sql := `
SELECT
    t.id,
    t.type,
    t.payment_type,
    t.party_name,
    t.party_phone,
    t.total_amount,
    t.is_paid,
    DATE_FORMAT(t.transaction_date, '%Y-%m-%d') AS transaction_date,
    DATE_FORMAT(t.due_date, '%Y-%m-%d') AS due_date,
    COUNT(td.id) AS item_count
FROM
    transactions t
    LEFT JOIN transaction_details td ON td.transaction_id = t.id
WHERE
    t.business_id = ?
`
	args := []interface{}{businessId}
	if txnType != nil && *txnType != "" {
		sql += "    AND t.type = ?\n"
		args = append(args, *txnType)
	}
	sql += `GROUP BY
    t.id
ORDER BY
    t.transaction_date DESC, t.id DESC;
`

	var records []*transactionExportRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, args...).Scan(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

// BuildTransactionsExcel renders the transaction log as a spreadsheet; the
// caller streams it out with an attachment header.
func BuildTransactionsExcel(ctx context.Context, txnType *models.TransactionType) (*excelize.File, error) {

	f := excelize.NewFile()
	sheetName := "Sheet1"
	_, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}

	data, err := getTransactionExportRows(ctx, txnType)
	if err != nil {
		return nil, err
	}

	// Add headers
	f.SetCellValue(sheetName, "A1", "Id")
	f.SetCellValue(sheetName, "B1", "Type")
	f.SetCellValue(sheetName, "C1", "Payment")
	f.SetCellValue(sheetName, "D1", "PartyName")
	f.SetCellValue(sheetName, "E1", "PartyPhone")
	f.SetCellValue(sheetName, "F1", "Total")
	f.SetCellValue(sheetName, "G1", "Paid")
	f.SetCellValue(sheetName, "H1", "Date")
	f.SetCellValue(sheetName, "I1", "DueDate")
	f.SetCellValue(sheetName, "J1", "Items")

	// Add data
	for i, d := range data {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheetName, "A"+row, d.Id)
		f.SetCellValue(sheetName, "B"+row, d.Type)
		f.SetCellValue(sheetName, "C"+row, d.PaymentType)
		f.SetCellValue(sheetName, "D"+row, d.PartyName)
		f.SetCellValue(sheetName, "E"+row, d.PartyPhone)
		f.SetCellValue(sheetName, "F"+row, d.TotalAmount.String())
		f.SetCellValue(sheetName, "G"+row, d.IsPaid)
		f.SetCellValue(sheetName, "H"+row, d.TransactionDate)
		f.SetCellValue(sheetName, "I"+row, utils.DereferencePtr(d.DueDate, ""))
		f.SetCellValue(sheetName, "J"+row, d.ItemCount)
	}

	return f, nil
}
