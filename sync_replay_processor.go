package main

import (
	"context"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"bitbucket.org/mmdatafocus/woundcare_backend/utils"
	"bitbucket.org/mmdatafocus/woundcare_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncReplayProcessor retries failed sync queue entries in the background.
// Devices normally drain their own queue through POST /sync/replay; this loop
// picks up entries whose replay failed (classifier outage, transient DB error)
// once their next_attempt_at comes due, plus entries a crashed replay left
// stuck in syncing. Failed entries are never dropped.
type SyncReplayProcessor struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
}

func NewSyncReplayProcessor(db *gorm.DB, logger *logrus.Logger) *SyncReplayProcessor {
	return &SyncReplayProcessor{
		DB:        db,
		Logger:    logger,
		WorkerID:  "sync-retry-" + time.Now().Format("20060102-150405.000"),
		BatchSize: 25,
		Interval:  30 * time.Second,
		LockTTL:   2 * time.Minute,
	}
}

func shouldRunSyncReplayProcessor() bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv("SYNC_RETRY_PROCESSING")))
	if val == "false" {
		return false
	}
	return true
}

func (p *SyncReplayProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *SyncReplayProcessor) processOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-p.LockTTL)

	var claimed []models.SyncQueueEntry
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("(status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?))"+
				" OR (status = ? AND locked_at <= ?)",
				models.SyncStatusFailed, now, models.SyncStatusSyncing, staleBefore).
			Order("captured_at ASC, device_id ASC, local_seq ASC").
			Limit(p.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &p.WorkerID
			if err := tx.Model(&models.SyncQueueEntry{}).
				Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"locked_at": claimed[i].LockedAt,
					"locked_by": claimed[i].LockedBy,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, entry := range claimed {
		procCtx := context.WithValue(ctx, utils.ContextKeyFacilityId, entry.FacilityId)
		procCtx = context.WithValue(procCtx, utils.ContextKeyUserId, 0)
		procCtx = context.WithValue(procCtx, utils.ContextKeyUserName, "System")

		result := workflow.ReplayEntry(procCtx, entry)
		if p.Logger != nil {
			fields := logrus.Fields{
				"field":       "SyncReplayProcessor",
				"facility_id": entry.FacilityId,
				"wound_id":    entry.WoundId,
				"capture_id":  entry.CaptureId,
				"entry_id":    entry.ID,
				"status":      result.Status,
				"attempts":    entry.Attempts + 1,
			}
			if result.Status == models.SyncStatusFailed {
				p.Logger.WithFields(fields).Error("sync retry failed: " + result.Error)
			} else {
				p.Logger.WithFields(fields).Info("sync entry retried")
			}
		}
	}
}
