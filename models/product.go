package models

import (
	"context"
	"errors"
	"time"

	"github.com/dukaanhq/dukaan_backend/config"
	"github.com/dukaanhq/dukaan_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"index;not null;uniqueIndex:idx_products_business_name" json:"business_id" binding:"required"`
	Name              string          `gorm:"size:100;not null;uniqueIndex:idx_products_business_name" json:"name" binding:"required"`
	Unit              ProductUnit     `gorm:"type:enum('pcs','kg','g','l','ml','m','box','dozen');not null;default:'pcs'" json:"unit"`
	PurchasePrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_price"`
	SellingPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"selling_price"`
	OpeningStock      int             `gorm:"not null;default:0" json:"opening_stock"`
	CurrentStock      int             `gorm:"not null;default:0" json:"current_stock"`
	LowStockThreshold int             `gorm:"not null;default:0" json:"low_stock_threshold"`
	IsActive          *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name              string          `json:"name" binding:"required"`
	Unit              ProductUnit     `json:"unit"`
	PurchasePrice     decimal.Decimal `json:"purchase_price"`
	SellingPrice      decimal.Decimal `json:"selling_price"`
	OpeningStock      int             `json:"opening_stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}

// CreateProduct(newProduct) (Product,error) <Owner>
// UpdateProduct(id, newProduct) (Product,error) <Owner>
// DeleteProduct(id) (Product,error) <Owner>
// GetProduct(id) (Product,error) <Owner>
// ListProducts(name) ([]Product,error) <Owner>
// ListLowStockProducts() ([]Product,error) <Owner>
// AdjustProductStock(tx, businessId, productId, delta) error

func (input *NewProduct) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Product](ctx, businessId, id); err != nil {
			return err
		}
	}
	// validate unique name
	if err := utils.ValidateUnique[Product](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	if input.Unit != "" && !input.Unit.IsValid() {
		return errors.New("invalid unit")
	}
	if input.OpeningStock < 0 {
		return errors.New("opening stock cannot be negative")
	}
	if input.LowStockThreshold < 0 {
		return errors.New("low stock threshold cannot be negative")
	}
	if input.PurchasePrice.IsNegative() || input.SellingPrice.IsNegative() {
		return errors.New("price cannot be negative")
	}
	return nil
}

func (u ProductUnit) IsValid() bool {
	switch u {
	case ProductUnitPiece, ProductUnitKg, ProductUnitGram, ProductUnitLitre,
		ProductUnitMl, ProductUnitMetre, ProductUnitBox, ProductUnitDozen:
		return true
	}
	return false
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	unit := input.Unit
	if unit == "" {
		unit = ProductUnitPiece
	}

	product := Product{
		BusinessId:        businessId,
		Name:              input.Name,
		Unit:              unit,
		PurchasePrice:     input.PurchasePrice,
		SellingPrice:      input.SellingPrice,
		OpeningStock:      input.OpeningStock,
		CurrentStock:      input.OpeningStock,
		LowStockThreshold: input.LowStockThreshold,
		IsActive:          utils.NewTrue(),
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, utils.ErrProductNotFound
	}

	// opening stock is write-once; stock changes flow through transactions
	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(&product).Updates(map[string]interface{}{
		"Name":              input.Name,
		"Unit":              input.Unit,
		"PurchasePrice":     input.PurchasePrice,
		"SellingPrice":      input.SellingPrice,
		"LowStockThreshold": input.LowStockThreshold,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return product, nil
}

func DeleteProduct(ctx context.Context, id int) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, utils.ErrProductNotFound
	}

	count, err := utils.ResourceCountWhere[TransactionDetail](ctx, businessId, "product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("transaction associated with product exists")
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Delete(&result).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, utils.ErrProductNotFound
	}
	return result, nil
}

func GetProducts(ctx context.Context, name *string) ([]*Product, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	var results []*Product
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}

	return results, nil
}

// GetLowStockProducts lists products whose stock has fallen to or below
// their low-stock threshold.
func GetLowStockProducts(ctx context.Context) ([]*Product, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	var results []*Product
	err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Where("current_stock <= low_stock_threshold").
		Where("is_active = ?", true).
		Order("current_stock").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	return results, nil
}

// GetProductsByIds loads the referenced products keyed by id; a missing id
// surfaces as ErrProductNotFound.
func GetProductsByIds(ctx context.Context, tx *gorm.DB, businessId string, ids []int) (map[int]*Product, error) {
	ids = utils.UniqueSlice(ids)

	var products []*Product
	err := tx.WithContext(ctx).
		Where("business_id = ?", businessId).
		Where("id IN (?)", ids).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	if len(products) != len(ids) {
		return nil, utils.ErrProductNotFound
	}

	result := make(map[int]*Product, len(products))
	for _, product := range products {
		result[product.ID] = product
	}
	return result, nil
}

// AdjustProductStock applies delta atomically. The guard in the WHERE keeps
// stock from going below zero even under concurrent postings; a zero-row
// update on a decrement means insufficient stock.
func AdjustProductStock(ctx context.Context, tx *gorm.DB, businessId string, productId int, delta int) error {
	if delta == 0 {
		return nil
	}

	result := tx.WithContext(ctx).Model(&Product{}).
		Where("business_id = ? AND id = ? AND current_stock + ? >= 0", businessId, productId, delta).
		Update("current_stock", gorm.Expr("current_stock + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.WithContext(ctx).Model(&Product{}).
			Where("business_id = ? AND id = ?", businessId, productId).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return utils.ErrProductNotFound
		}
		return utils.ErrInsufficientStock
	}
	return nil
}
