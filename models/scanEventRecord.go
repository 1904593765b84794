package models

import (
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
)

// ScanEventRecord is the transactional outbox row for EHR-bound scan events.
// It is written inside the same DB transaction as the clinical change and
// published to Pub/Sub after commit by the outbox dispatcher.
type ScanEventRecord struct {
	ID            int           `gorm:"primary_key;index:idx_outbox_dispatch,priority:3;index:idx_outbox_reconcile,priority:3" json:"id"`
	FacilityId    string        `gorm:"size:64;not null;index;index:idx_outbox_reconcile,priority:1" json:"facility_id"`
	WoundId       string        `gorm:"size:36;not null;index" json:"wound_id"`
	ScanId        string        `gorm:"size:36;not null;index" json:"scan_id"`
	EventDateTime time.Time     `gorm:"index;not null" json:"event_date_time"`
	EventType     ScanEventType `gorm:"type:enum('scan.confirmed','scan.rejected','alert.raised')" json:"event_type"`
	Payload       []byte        `gorm:"type:blob" json:"payload"`
	IsProcessed   bool          `gorm:"index;not null;index:idx_outbox_reconcile,priority:2" json:"is_processed"`
	// Publish happens after commit via the dispatcher.
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	ProcessedAt      *time.Time `gorm:"index" json:"processed_at"`
	LastProcessError *string    `gorm:"type:text" json:"last_process_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToScanEventMessage(record ScanEventRecord) config.ScanEventMessage {
	return config.ScanEventMessage{
		ID:            record.ID,
		FacilityId:    record.FacilityId,
		EventDateTime: record.EventDateTime,
		WoundId:       record.WoundId,
		ScanId:        record.ScanId,
		EventType:     string(record.EventType),
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}
