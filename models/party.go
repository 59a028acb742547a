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

// Party is one side of the business's ledger: a customer it sells to or a
// vendor it buys from. A party is identified by (business, phone, type), so
// the same phone number can exist once as a customer and once as a vendor.
// Outstanding tracks unpaid credit purchases owed to vendors; the paid flag
// and due date mirror the latest credit state of that ledger.
type Party struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null;uniqueIndex:idx_parties_business_phone_type" json:"business_id" binding:"required"`
	Name          string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone         string          `gorm:"size:20;not null;uniqueIndex:idx_parties_business_phone_type" json:"phone" binding:"required"`
	Type          PartyType       `gorm:"type:enum('customer','vendor');not null;uniqueIndex:idx_parties_business_phone_type" json:"type" binding:"required"`
	Outstanding   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"outstanding"`
	IsPaid        *bool           `gorm:"not null;default:true" json:"is_paid"`
	DueDate       *time.Time      `json:"due_date"`
	ReminderCount int             `gorm:"default:0" json:"reminder_count"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	TransactionIds []int `gorm:"-" json:"transaction_ids"`
}

// FindOrCreateParty upserts within the caller's storage transaction. Phone
// must already be normalized. The name snapshot from the latest transaction
// wins.
func FindOrCreateParty(ctx context.Context, tx *gorm.DB, businessId string, name string, phone string, partyType PartyType) (*Party, error) {
	var party Party
	err := tx.WithContext(ctx).
		Where("business_id = ? AND phone = ? AND type = ?", businessId, phone, partyType).
		First(&party).Error
	if err == nil {
		if party.Name != name {
			party.Name = name
			if err := tx.WithContext(ctx).Model(&party).Update("name", name).Error; err != nil {
				return nil, err
			}
		}
		return &party, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	party = Party{
		BusinessId:  businessId,
		Name:        name,
		Phone:       phone,
		Type:        partyType,
		Outstanding: decimal.Zero,
		IsPaid:      utils.NewTrue(),
	}
	if err := tx.WithContext(ctx).Create(&party).Error; err != nil {
		return nil, err
	}
	return &party, nil
}

// FindParty looks up a party without creating it.
func FindParty(ctx context.Context, tx *gorm.DB, businessId string, phone string, partyType PartyType) (*Party, error) {
	var party Party
	err := tx.WithContext(ctx).
		Where("business_id = ? AND phone = ? AND type = ?", businessId, phone, partyType).
		First(&party).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrPartyNotFound
		}
		return nil, err
	}
	return &party, nil
}

// AdjustPartyOutstanding adds delta to the party's outstanding balance and
// recomputes the paid flag: a ledger with nothing owed is paid.
func AdjustPartyOutstanding(ctx context.Context, tx *gorm.DB, party *Party, delta decimal.Decimal, dueDate *time.Time) error {
	party.Outstanding = party.Outstanding.Add(delta)
	if party.Outstanding.LessThanOrEqual(decimal.Zero) {
		party.IsPaid = utils.NewTrue()
		party.DueDate = nil
	} else {
		party.IsPaid = utils.NewFalse()
		if dueDate != nil {
			party.DueDate = dueDate
		}
	}
	return tx.WithContext(ctx).Model(&Party{}).
		Where("id = ?", party.ID).
		Updates(map[string]interface{}{
			"Outstanding": party.Outstanding,
			"IsPaid":      party.IsPaid,
			"DueDate":     party.DueDate,
		}).Error
}

// DeletePartyIfEmpty removes the party when no transactions reference it
// anymore. Returns true when the party was deleted.
func DeletePartyIfEmpty(ctx context.Context, tx *gorm.DB, party *Party) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&Transaction{}).
		Where("business_id = ? AND party_id = ?", party.BusinessId, party.ID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if err := tx.WithContext(ctx).Delete(&Party{}, party.ID).Error; err != nil {
		return false, err
	}
	return true, nil
}

func GetParty(ctx context.Context, id int) (*Party, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	party, err := utils.FetchModel[Party](ctx, businessId, id)
	if err != nil {
		return nil, utils.ErrPartyNotFound
	}
	if err := loadPartyTransactionIds(ctx, businessId, party); err != nil {
		return nil, err
	}
	return party, nil
}

func GetParties(ctx context.Context, partyType *PartyType, name *string) ([]*Party, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	var results []*Party
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if partyType != nil && *partyType != "" {
		dbCtx = dbCtx.Where("type = ?", *partyType)
	}
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}

	for _, party := range results {
		if err := loadPartyTransactionIds(ctx, businessId, party); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// transaction references are derived from the foreign key, oldest first
func loadPartyTransactionIds(ctx context.Context, businessId string, party *Party) error {
	db := config.GetDB()
	var ids []int
	err := db.WithContext(ctx).Model(&Transaction{}).
		Where("business_id = ? AND party_id = ?", businessId, party.ID).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	party.TransactionIds = ids
	return nil
}

// MarkPartyReminded bumps the reminder counter for an overdue ledger.
func MarkPartyReminded(ctx context.Context, id int) (*Party, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	party, err := utils.FetchModel[Party](ctx, businessId, id)
	if err != nil {
		return nil, utils.ErrPartyNotFound
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(&party).
		Update("reminder_count", gorm.Expr("reminder_count + 1")).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	party.ReminderCount++
	return party, nil
}
