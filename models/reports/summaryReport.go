package reports

import (
	"context"
	"errors"
	"time"

	"github.com/dukaanhq/dukaan_backend/config"
	"github.com/dukaanhq/dukaan_backend/models"
	"github.com/dukaanhq/dukaan_backend/utils"
	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

type MonthlySummaryDetail struct {
	Month          string          `json:"month"`
	SalesAmount    decimal.Decimal `json:"sales_amount"`
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	Profit         decimal.Decimal `json:"profit"`
}

type BusinessSummaryResponse struct {
	TotalSales         decimal.Decimal        `json:"total_sales"`
	TotalPurchases     decimal.Decimal        `json:"total_purchases"`
	TotalProfit        decimal.Decimal        `json:"total_profit"`
	TotalReceivable    decimal.Decimal        `json:"total_receivable"`
	TotalPayable       decimal.Decimal        `json:"total_payable"`
	ForecastNextProfit decimal.Decimal        `json:"forecast_next_profit"`
	MonthlySummaries   []MonthlySummaryDetail `json:"monthly_summaries"`
}

// GetBusinessSummary aggregates posted transactions month by month over the
// trailing window and projects next month's profit from the trend.
func GetBusinessSummary(ctx context.Context, months int) (*BusinessSummaryResponse, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if months <= 0 || months > 24 {
		months = 6
	}
	startDate, endDate := utils.GetLastMonthsRange(months)

	query := `
				WITH RECURSIVE MonthList AS (
					SELECT ? AS month_date
					UNION ALL
					SELECT DATE_ADD(month_date, INTERVAL 1 MONTH)
					FROM MonthList
					WHERE DATE_ADD(month_date, INTERVAL 1 MONTH) <= ?
				),
				MonthlyAgg AS (
					SELECT
						DATE_FORMAT(transaction_date, '%Y-%m') AS month,
						SUM(CASE WHEN type = 'sale' THEN total_amount ELSE 0 END) AS sales_amount,
						SUM(CASE WHEN type = 'purchase' THEN total_amount ELSE 0 END) AS purchase_amount
					FROM transactions
					WHERE
						transaction_date >= ?
						AND transaction_date <= ?
						AND business_id = ?
					GROUP BY DATE_FORMAT(transaction_date, '%Y-%m')
				)
				SELECT
					DATE_FORMAT(ml.month_date, '%Y-%m') AS month,
					COALESCE(ma.sales_amount, 0) AS SalesAmount,
					COALESCE(ma.purchase_amount, 0) AS PurchaseAmount
				FROM
					MonthList ml
				LEFT JOIN
					MonthlyAgg ma ON DATE_FORMAT(ml.month_date, '%Y-%m') = ma.month
				ORDER BY
					ml.month_date;
                `

	rows, err := db.Raw(query,
		startDate, endDate,
		startDate, endDate, businessId).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	response := &BusinessSummaryResponse{
		TotalSales:       decimal.NewFromInt(0),
		TotalPurchases:   decimal.NewFromInt(0),
		TotalProfit:      decimal.NewFromInt(0),
		MonthlySummaries: []MonthlySummaryDetail{},
	}

	var profits []decimal.Decimal
	for rows.Next() {
		var monthStr string
		var salesAmount, purchaseAmount decimal.Decimal

		err := rows.Scan(&monthStr, &salesAmount, &purchaseAmount)
		if err != nil {
			return nil, err
		}

		month, err := time.Parse("2006-01", monthStr)
		if err != nil {
			return nil, err
		}
		formattedMonth := month.Format("2006-Jan")

		profit := salesAmount.Sub(purchaseAmount)
		detail := MonthlySummaryDetail{
			Month:          formattedMonth,
			SalesAmount:    salesAmount,
			PurchaseAmount: purchaseAmount,
			Profit:         profit,
		}
		response.MonthlySummaries = append(response.MonthlySummaries, detail)
		response.TotalSales = response.TotalSales.Add(salesAmount)
		response.TotalPurchases = response.TotalPurchases.Add(purchaseAmount)
		response.TotalProfit = response.TotalProfit.Add(profit)
		profits = append(profits, profit)
	}

	response.ForecastNextProfit = LinearForecast(profits)

	// receivable: unpaid credit sales still owed by customers
	receivableQuery := `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM transactions
		WHERE business_id = ?
			AND type = 'sale'
			AND payment_type = 'credit'
			AND is_paid = false;`
	if err := db.Raw(receivableQuery, businessId).Scan(&response.TotalReceivable).Error; err != nil {
		return nil, err
	}

	// payable: outstanding owed to vendors across party ledgers
	payableQuery := `
		SELECT COALESCE(SUM(outstanding), 0)
		FROM parties
		WHERE business_id = ?
			AND type = ?
			AND outstanding > 0;`
	if err := db.Raw(payableQuery, businessId, models.PartyTypeVendor).Scan(&response.TotalPayable).Error; err != nil {
		return nil, err
	}

	return response, nil
}

// LinearForecast fits a least-squares line through the series and returns
// the next value. Fewer than two points just echo the last observation.
func LinearForecast(values []decimal.Decimal) decimal.Decimal {
	n := len(values)
	if n == 0 {
		return decimal.Zero
	}
	if n == 1 {
		return values[0]
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		y, _ := v.Float64()
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return values[n-1]
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	next := intercept + slope*fn
	return decimal.NewFromFloat(next).Round(4)
}
