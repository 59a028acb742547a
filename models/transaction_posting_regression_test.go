package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/dukaanhq/dukaan_backend/config"
	"github.com/dukaanhq/dukaan_backend/models"
	"github.com/dukaanhq/dukaan_backend/utils"
	"github.com/dukaanhq/dukaan_backend/workflow"
	"github.com/shopspring/decimal"
)

func TestTransactionPostingLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "dukaan_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:      "Test Kirana",
		OwnerName: "Owner",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	businessID := biz.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessID)

	db := config.GetDB()

	rice, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:              "Rice 5kg",
		Unit:              models.ProductUnitKg,
		PurchasePrice:     decimal.NewFromInt(300),
		SellingPrice:      decimal.NewFromInt(380),
		OpeningStock:      10,
		LowStockThreshold: 4,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	const (
		customerPhone = "+919876543210"
		vendorPhone   = "+919812345678"
	)

	// Purchase 5 units for cash: stock 10 -> 15, no outstanding.
	cashPurchase, err := workflow.CreateTransaction(ctx, &models.NewTransaction{
		Type:        models.TransactionTypePurchase,
		PaymentType: models.PaymentTypeCash,
		PartyName:   "Sharma Traders",
		PartyPhone:  vendorPhone,
		Details: []*models.NewTransactionDetail{
			{ProductId: rice.ID, Qty: 5, PricePerUnit: decimal.NewFromInt(300)},
		},
	}, "")
	if err != nil {
		t.Fatalf("cash purchase: %v", err)
	}
	if !utils.DereferencePtr(cashPurchase.IsPaid) {
		t.Fatal("cash purchase should be paid immediately")
	}
	if cashPurchase.DueDate != nil {
		t.Fatalf("cash purchase should have no due date, got %v", cashPurchase.DueDate)
	}
	assertStock(t, ctx, rice.ID, 15)

	// Credit sale of 12: stock 15 -> 3, product crosses its threshold.
	creditSale, err := workflow.CreateTransaction(ctx, &models.NewTransaction{
		Type:        models.TransactionTypeSale,
		PaymentType: models.PaymentTypeCredit,
		PartyName:   "Mira Stores",
		PartyPhone:  customerPhone,
		Details: []*models.NewTransactionDetail{
			{ProductId: rice.ID, Qty: 12, PricePerUnit: decimal.NewFromInt(380)},
		},
	}, "")
	if err != nil {
		t.Fatalf("credit sale: %v", err)
	}
	assertStock(t, ctx, rice.ID, 3)
	if utils.DereferencePtr(creditSale.IsPaid) {
		t.Fatal("credit sale should start unpaid")
	}
	if creditSale.DueDate == nil || !creditSale.DueDate.Equal(creditSale.TransactionDate.AddDate(0, 0, 30)) {
		t.Fatalf("credit sale due date: expected +30 days, got %v", creditSale.DueDate)
	}
	if len(creditSale.Details) != 1 || !creditSale.Details[0].CostPrice.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("sale line should snapshot cost price 300, got %+v", creditSale.Details[0])
	}

	lowStock, err := models.GetLowStockProducts(ctx)
	if err != nil {
		t.Fatalf("GetLowStockProducts: %v", err)
	}
	if len(lowStock) != 1 || lowStock[0].ID != rice.ID {
		t.Fatalf("expected rice in low stock list, got %+v", lowStock)
	}
	var lowStockEvents int64
	if err := db.Model(&models.PubSubMessageRecord{}).
		Where("business_id = ? AND reference_type = ?", businessID, models.NotificationReferenceTypeLowStock).
		Count(&lowStockEvents).Error; err != nil {
		t.Fatalf("count low stock events: %v", err)
	}
	if lowStockEvents != 1 {
		t.Fatalf("expected 1 low stock outbox record, got %d", lowStockEvents)
	}

	// A sale of 5 exceeds the remaining 3; stock must be left untouched.
	_, err = workflow.CreateTransaction(ctx, &models.NewTransaction{
		Type:        models.TransactionTypeSale,
		PaymentType: models.PaymentTypeCash,
		PartyName:   "Mira Stores",
		PartyPhone:  customerPhone,
		Details: []*models.NewTransactionDetail{
			{ProductId: rice.ID, Qty: 5, PricePerUnit: decimal.NewFromInt(380)},
		},
	}, "")
	if err != utils.ErrInsufficientStock {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	assertStock(t, ctx, rice.ID, 3)

	// Credit purchase feeds the vendor's outstanding balance.
	creditPurchase, err := workflow.CreateTransaction(ctx, &models.NewTransaction{
		Type:        models.TransactionTypePurchase,
		PaymentType: models.PaymentTypeCredit,
		PartyName:   "Sharma Traders",
		PartyPhone:  vendorPhone,
		Details: []*models.NewTransactionDetail{
			{ProductId: rice.ID, Qty: 1, PricePerUnit: decimal.NewFromInt(450)},
		},
		Expenses: []*models.NewTransactionExpense{
			{Name: "transport", Amount: decimal.NewFromInt(50)},
		},
	}, "")
	if err != nil {
		t.Fatalf("credit purchase: %v", err)
	}
	if !creditPurchase.TotalAmount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("credit purchase total: expected 500, got %s", creditPurchase.TotalAmount)
	}
	if creditPurchase.DueDate == nil || !creditPurchase.DueDate.Equal(creditPurchase.TransactionDate.AddDate(0, 0, 10)) {
		t.Fatalf("credit purchase due date: expected +10 days, got %v", creditPurchase.DueDate)
	}
	assertStock(t, ctx, rice.ID, 4)

	vendor := fetchParty(t, ctx, businessID, vendorPhone, models.PartyTypeVendor)
	if !vendor.Outstanding.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("vendor outstanding: expected 500, got %s", vendor.Outstanding)
	}
	if utils.DereferencePtr(vendor.IsPaid) {
		t.Fatal("vendor with outstanding balance should not be paid")
	}

	// Both purchases share one vendor party record.
	var vendorCount int64
	if err := db.Model(&models.Party{}).
		Where("business_id = ? AND phone = ? AND type = ?", businessID, vendorPhone, models.PartyTypeVendor).
		Count(&vendorCount).Error; err != nil {
		t.Fatalf("count vendors: %v", err)
	}
	if vendorCount != 1 {
		t.Fatalf("expected 1 vendor party, got %d", vendorCount)
	}

	// Editing the credit purchase to cash settles it and clears outstanding.
	edited, err := workflow.UpdateTransaction(ctx, creditPurchase.ID, &models.NewTransaction{
		Type:        models.TransactionTypePurchase,
		PaymentType: models.PaymentTypeCash,
		PartyName:   "Sharma Traders",
		PartyPhone:  vendorPhone,
		Details: []*models.NewTransactionDetail{
			{ProductId: rice.ID, Qty: 1, PricePerUnit: decimal.NewFromInt(450)},
		},
		Expenses: []*models.NewTransactionExpense{
			{Name: "transport", Amount: decimal.NewFromInt(50)},
		},
	})
	if err != nil {
		t.Fatalf("edit purchase to cash: %v", err)
	}
	if !utils.DereferencePtr(edited.IsPaid) {
		t.Fatal("cash purchase should be paid")
	}
	vendor = fetchParty(t, ctx, businessID, vendorPhone, models.PartyTypeVendor)
	if !vendor.Outstanding.IsZero() {
		t.Fatalf("vendor outstanding after edit to cash: expected 0, got %s", vendor.Outstanding)
	}
	if !utils.DereferencePtr(vendor.IsPaid) {
		t.Fatal("vendor should be paid once outstanding is cleared")
	}

	// Editing the quantity applies only the net stock difference.
	edited, err = workflow.UpdateTransaction(ctx, creditPurchase.ID, &models.NewTransaction{
		Type:        models.TransactionTypePurchase,
		PaymentType: models.PaymentTypeCash,
		PartyName:   "Sharma Traders",
		PartyPhone:  vendorPhone,
		Details: []*models.NewTransactionDetail{
			{ProductId: rice.ID, Qty: 3, PricePerUnit: decimal.NewFromInt(450)},
		},
	})
	if err != nil {
		t.Fatalf("edit purchase qty: %v", err)
	}
	assertStock(t, ctx, rice.ID, 6)

	// Changing the type of a posted transaction is rejected.
	_, err = workflow.UpdateTransaction(ctx, creditPurchase.ID, &models.NewTransaction{
		Type:        models.TransactionTypeSale,
		PaymentType: models.PaymentTypeCash,
		PartyName:   "Sharma Traders",
		PartyPhone:  vendorPhone,
		Details: []*models.NewTransactionDetail{
			{ProductId: rice.ID, Qty: 3, PricePerUnit: decimal.NewFromInt(450)},
		},
	})
	if err == nil {
		t.Fatal("expected type change to be rejected")
	}

	// Deleting a purchase reverses its stock effect.
	if _, err := workflow.DeleteTransaction(ctx, cashPurchase.ID); err != nil {
		t.Fatalf("delete cash purchase: %v", err)
	}
	assertStock(t, ctx, rice.ID, 1)

	// Reversing the remaining purchase would drive stock to -2; the delete
	// must fail and leave everything in place.
	if _, err := workflow.DeleteTransaction(ctx, edited.ID); err != utils.ErrInsufficientStock {
		t.Fatalf("expected ErrInsufficientStock on delete, got %v", err)
	}
	assertStock(t, ctx, rice.ID, 1)

	// Deleting the sale returns its stock and removes the customer party,
	// which has no other transactions.
	if _, err := workflow.DeleteTransaction(ctx, creditSale.ID); err != nil {
		t.Fatalf("delete credit sale: %v", err)
	}
	assertStock(t, ctx, rice.ID, 13)
	var customerCount int64
	if err := db.Model(&models.Party{}).
		Where("business_id = ? AND phone = ? AND type = ?", businessID, customerPhone, models.PartyTypeCustomer).
		Count(&customerCount).Error; err != nil {
		t.Fatalf("count customers after delete: %v", err)
	}
	if customerCount != 0 {
		t.Fatalf("expected customer party to be deleted, got %d", customerCount)
	}

	// Now the last purchase can be reversed; the vendor party goes with it.
	if _, err := workflow.DeleteTransaction(ctx, edited.ID); err != nil {
		t.Fatalf("delete edited purchase: %v", err)
	}
	assertStock(t, ctx, rice.ID, 10)

	vendorCount = 0
	if err := db.Model(&models.Party{}).
		Where("business_id = ? AND phone = ? AND type = ?", businessID, vendorPhone, models.PartyTypeVendor).
		Count(&vendorCount).Error; err != nil {
		t.Fatalf("count vendors after delete: %v", err)
	}
	if vendorCount != 0 {
		t.Fatalf("expected vendor party to be deleted, got %d", vendorCount)
	}

	// A repeated idempotency key returns the original transaction instead of
	// posting twice.
	input := &models.NewTransaction{
		Type:        models.TransactionTypePurchase,
		PaymentType: models.PaymentTypeCash,
		PartyName:   "Gupta Wholesale",
		PartyPhone:  "+919898989898",
		Details: []*models.NewTransactionDetail{
			{ProductId: rice.ID, Qty: 1, PricePerUnit: decimal.NewFromInt(290)},
		},
	}
	first, err := workflow.CreateTransaction(ctx, input, "restock-2026-03-01")
	if err != nil {
		t.Fatalf("idempotent create: %v", err)
	}
	second, err := workflow.CreateTransaction(ctx, input, "restock-2026-03-01")
	if err != nil {
		t.Fatalf("idempotent replay: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("idempotent replay created a new transaction: %d vs %d", first.ID, second.ID)
	}
	assertStock(t, ctx, rice.ID, 11)
}

func assertStock(t *testing.T, ctx context.Context, productId int, want int) {
	t.Helper()
	product, err := models.GetProduct(ctx, productId)
	if err != nil {
		t.Fatalf("GetProduct(%d): %v", productId, err)
	}
	if product.CurrentStock != want {
		t.Fatalf("product %d stock: expected %d, got %d", productId, want, product.CurrentStock)
	}
}

func fetchParty(t *testing.T, ctx context.Context, businessID, phone string, partyType models.PartyType) *models.Party {
	t.Helper()
	db := config.GetDB()
	party, err := models.FindParty(ctx, db, businessID, phone, partyType)
	if err != nil {
		t.Fatalf("FindParty(%s/%s): %v", phone, partyType, err)
	}
	return party
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("dukaan-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("dukaan-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=dukaan_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
