package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dukaanhq/dukaan_backend/config"
	"github.com/dukaanhq/dukaan_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Outbox publish statuses for PubSubMessageRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// PubSubMessageRecord is a transactional-outbox row: written inside the same
// DB transaction as the domain change, published asynchronously by the
// dispatcher after commit.
type PubSubMessageRecord struct {
	ID                  int                       `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	BusinessId          string                    `gorm:"size:64;not null;index" json:"business_id"`
	TransactionDateTime time.Time                 `gorm:"index;not null" json:"transaction_date_time"`
	ReferenceId         int                       `json:"reference_id"`
	ReferenceType       NotificationReferenceType `gorm:"type:enum('TXN','LOW_STOCK')" json:"reference_type"`
	Action              PubSubMessageAction       `gorm:"type:enum('C','U','D')" json:"action"`
	OldObj              []byte                    `gorm:"type:blob" json:"old_obj"`
	NewObj              []byte                    `gorm:"type:blob" json:"new_obj"`
	PublishStatus       string                    `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt         *time.Time                `gorm:"index" json:"published_at"`
	PubSubMessageId     *string                   `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts     int                       `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt       *time.Time                `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt            *time.Time                `gorm:"index" json:"locked_at"`
	LockedBy            *string                   `gorm:"size:100" json:"locked_by"`
	LastPublishError    *string                   `gorm:"type:text" json:"last_publish_error"`
	CorrelationId       string                    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt           time.Time                 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time                 `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToPubSubMessage(record PubSubMessageRecord) config.PubSubMessage {
	return config.PubSubMessage{
		ID:                  record.ID,
		BusinessId:          record.BusinessId,
		TransactionDateTime: record.TransactionDateTime,
		ReferenceId:         record.ReferenceId,
		ReferenceType:       string(record.ReferenceType),
		Action:              string(record.Action),
		OldObj:              record.OldObj,
		NewObj:              record.NewObj,
		CorrelationId:       record.CorrelationId,
	}
}

// PublishNotification writes the message record inside the caller's DB
// transaction but does NOT publish to Pub/Sub. Publishing is performed
// asynchronously by the outbox dispatcher after commit.
func PublishNotification(ctx context.Context, db *gorm.DB, businessId string, transactionDateTime time.Time, refId int, refType NotificationReferenceType, obj interface{}, oldObj interface{}, msgAction PubSubMessageAction) error {

	var objInByte []byte
	var oldObjInByte []byte
	var err error

	if msgAction == PubSubMessageActionCreate || msgAction == PubSubMessageActionUpdate {
		objInByte, err = json.Marshal(obj)
		if err != nil {
			return err
		}
	}
	if msgAction == PubSubMessageActionUpdate || msgAction == PubSubMessageActionDelete {
		oldObjInByte, err = json.Marshal(oldObj)
		if err != nil {
			return err
		}
	}

	record := PubSubMessageRecord{
		BusinessId:          businessId,
		TransactionDateTime: transactionDateTime,
		ReferenceId:         refId,
		ReferenceType:       refType,
		Action:              msgAction,
		NewObj:              objInByte,
		OldObj:              oldObjInByte,
		PublishStatus:       OutboxPublishStatusPending,
		CorrelationId:       correlationIdFromContextOrNew(ctx),
	}
	err = db.Create(&record).Error
	if err != nil {
		return err
	}
	return nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
