// stock-rebuild recomputes product current_stock from the transaction ledger:
// opening_stock + purchased qty - sold qty. Use it to repair drift after a
// manual data fix or a bug in the posting path.
//
// Usage:
//
//	go run ./cmd/stock-rebuild --business-id=<uuid> [--product-id=N] [--dry-run]
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dukaanhq/dukaan_backend/config"
	"gorm.io/gorm"
)

type stockRow struct {
	ProductId    int
	Name         string
	OpeningStock int
	CurrentStock int
	LedgerStock  int
}

func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	productID := flag.Int("product-id", 0, "Optional: limit to one product")
	dryRun := flag.Bool("dry-run", false, "Report drift without writing")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	query := `
		SELECT p.id AS product_id, p.name, p.opening_stock, p.current_stock,
			p.opening_stock + COALESCE(SUM(CASE
				WHEN t.type = 'purchase' THEN td.qty
				WHEN t.type = 'sale' THEN -td.qty
				ELSE 0 END), 0) AS ledger_stock
		FROM products p
		LEFT JOIN transaction_details td ON td.product_id = p.id AND td.business_id = p.business_id
		LEFT JOIN transactions t ON t.id = td.transaction_id AND t.business_id = p.business_id
		WHERE p.business_id = ?`
	args := []any{*businessID}
	if *productID > 0 {
		query += " AND p.id = ?"
		args = append(args, *productID)
	}
	query += " GROUP BY p.id, p.name, p.opening_stock, p.current_stock"

	var rows []stockRow
	if err := db.Raw(query, args...).Scan(&rows).Error; err != nil {
		fmt.Fprintf(os.Stderr, "scan products: %v\n", err)
		os.Exit(1)
	}

	drifted := 0
	for _, r := range rows {
		if r.CurrentStock == r.LedgerStock {
			continue
		}
		drifted++
		fmt.Printf("product=%d %q current=%d ledger=%d\n", r.ProductId, r.Name, r.CurrentStock, r.LedgerStock)
		if *dryRun {
			continue
		}
		if err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Exec(
				"UPDATE products SET current_stock = ? WHERE business_id = ? AND id = ?",
				r.LedgerStock, *businessID, r.ProductId,
			).Error
		}); err != nil {
			fmt.Fprintf(os.Stderr, "rebuild product %d: %v\n", r.ProductId, err)
			os.Exit(1)
		}
	}

	if *dryRun {
		fmt.Printf("dry run: %d of %d products drifted\n", drifted, len(rows))
		return
	}
	fmt.Printf("stock rebuild complete: %d of %d products corrected\n", drifted, len(rows))
}
