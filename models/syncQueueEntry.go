package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"gorm.io/gorm"
)

// SyncQueueEntry holds one offline-captured scan awaiting replay. Entries are
// replayed in (captured_at, device_id, local_seq) order so interleaved devices
// merge deterministically; server receipt order is never used.
type SyncQueueEntry struct {
	ID            int        `gorm:"primary_key;index:idx_sync_claim,priority:3" json:"id"`
	FacilityId    string     `gorm:"size:64;not null;index" json:"facility_id"`
	WoundId       string     `gorm:"size:36;not null;index" json:"wound_id"`
	CaptureId     string     `gorm:"size:36;not null;unique" json:"capture_id"`
	DeviceId      string     `gorm:"size:64;not null;index:uniq_sync_device_seq,unique" json:"device_id"`
	LocalSeq      int64      `gorm:"not null;index:uniq_sync_device_seq,unique" json:"local_seq"`
	CapturedAt    time.Time  `gorm:"not null;index" json:"captured_at"`
	Payload       []byte     `gorm:"type:blob;not null" json:"payload"`
	Status        SyncStatus `gorm:"type:enum('pending','syncing','synced','failed');not null;default:'pending';index:idx_sync_claim,priority:1" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	LastError     *string    `gorm:"type:text" json:"last_error"`
	LockedAt      *time.Time `gorm:"index" json:"locked_at"`
	LockedBy      *string    `gorm:"size:100" json:"locked_by"`
	NextAttemptAt *time.Time `gorm:"index;index:idx_sync_claim,priority:2" json:"next_attempt_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func NewSyncQueueEntry(facilityId string, capture Capture) (*SyncQueueEntry, error) {
	payload, err := json.Marshal(capture)
	if err != nil {
		return nil, err
	}
	return &SyncQueueEntry{
		FacilityId: facilityId,
		WoundId:    capture.WoundId,
		CaptureId:  capture.CaptureId,
		DeviceId:   capture.DeviceId,
		LocalSeq:   capture.LocalSeq,
		CapturedAt: capture.CapturedAt,
		Payload:    payload,
		Status:     SyncStatusPending,
	}, nil
}

func (entry SyncQueueEntry) DecodeCapture() (Capture, error) {
	var capture Capture
	err := json.Unmarshal(entry.Payload, &capture)
	return capture, err
}

// PendingSyncEntries lists a facility's unreplayed entries in replay order.
func PendingSyncEntries(ctx context.Context, facilityId string) ([]SyncQueueEntry, error) {
	db := config.GetDB()
	var entries []SyncQueueEntry
	err := db.WithContext(ctx).Model(&SyncQueueEntry{}).
		Where("facility_id = ? AND status IN ?", facilityId, []SyncStatus{SyncStatusPending, SyncStatusFailed}).
		Order("captured_at ASC, device_id ASC, local_seq ASC").
		Find(&entries).Error
	return entries, err
}

// CountPendingSyncForWound gates live admissions: a wound with unreplayed
// offline entries must finish replay first so trend input stays causal.
func CountPendingSyncForWound(ctx context.Context, woundId string) (int64, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&SyncQueueEntry{}).
		Where("wound_id = ? AND status IN ?", woundId, []SyncStatus{SyncStatusPending, SyncStatusSyncing}).
		Count(&count).Error
	return count, err
}

func MarkSyncEntrySynced(tx *gorm.DB, id int) error {
	return tx.Model(&SyncQueueEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     SyncStatusSynced,
			"last_error": nil,
			"locked_at":  nil,
			"locked_by":  nil,
		}).Error
}

func MarkSyncEntryFailed(tx *gorm.DB, id int, cause error, nextAttemptAt *time.Time) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return tx.Model(&SyncQueueEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          SyncStatusFailed,
			"last_error":      &msg,
			"attempts":        gorm.Expr("attempts + 1"),
			"next_attempt_at": nextAttemptAt,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error
}
