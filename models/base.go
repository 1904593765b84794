package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PublishScanEvent implements the transactional outbox: it writes the event
// record inside the caller's DB transaction but does NOT publish to Pub/Sub.
// Publishing is performed asynchronously by the outbox dispatcher after commit.
func PublishScanEvent(ctx context.Context, db *gorm.DB, facilityId string, eventDateTime time.Time, woundId string, scanId string, eventType ScanEventType, payload interface{}) error {
	payloadInByte, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	record := ScanEventRecord{
		FacilityId:    facilityId,
		WoundId:       woundId,
		ScanId:        scanId,
		EventDateTime: eventDateTime,
		EventType:     eventType,
		Payload:       payloadInByte,
		IsProcessed:   false,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return db.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
