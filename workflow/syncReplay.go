package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReplayResult reports the outcome of one replayed sync entry.
type ReplayResult struct {
	EntryId   int               `json:"entry_id"`
	CaptureId string            `json:"capture_id"`
	ScanId    string            `json:"scan_id,omitempty"`
	Status    models.SyncStatus `json:"status"`
	Error     string            `json:"error,omitempty"`
}

// EnqueueOfflineCapture persists an offline capture for later replay. A
// duplicate (device_id, local_seq) pair is a sync conflict: the device either
// reused a sequence number or is replaying an already-enqueued capture.
func EnqueueOfflineCapture(ctx context.Context, facilityId string, capture models.Capture) (*models.SyncQueueEntry, error) {
	entry, err := models.NewSyncQueueEntry(facilityId, capture)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return ErrSyncConflict
			}
			return err
		}
		return models.WriteAudit(ctx, tx, "sync.enqueued", "sync_queue_entry", entry.CaptureId, nil)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ReplayPending drains the facility's queue through the pipeline in stable
// (captured_at, device_id, local_seq) order. A failed entry is marked failed
// and does not block the entries behind it.
func ReplayPending(ctx context.Context, facilityId string) ([]ReplayResult, error) {
	db := config.GetDB()
	logger := config.GetLogger()
	pipeline := NewPipeline()

	entries, err := models.PendingSyncEntries(ctx, facilityId)
	if err != nil {
		return nil, err
	}

	results := make([]ReplayResult, 0, len(entries))
	for _, entry := range entries {
		result := replayOne(ctx, db, pipeline, entry)
		results = append(results, result)
		logger.WithFields(logrus.Fields{
			"facility_id": facilityId,
			"entry_id":    entry.ID,
			"capture_id":  entry.CaptureId,
			"status":      result.Status,
		}).Info("sync entry replayed")
	}
	return results, nil
}

// ReplayEntry replays a single queue entry outside a full facility drain. The
// background retry processor uses this for entries it has claimed.
func ReplayEntry(ctx context.Context, entry models.SyncQueueEntry) ReplayResult {
	return replayOne(ctx, config.GetDB(), NewPipeline(), entry)
}

func replayOne(ctx context.Context, db *gorm.DB, pipeline *Pipeline, entry models.SyncQueueEntry) ReplayResult {
	result := ReplayResult{EntryId: entry.ID, CaptureId: entry.CaptureId}

	markFailed := func(cause error) ReplayResult {
		result.Status = models.SyncStatusFailed
		result.Error = cause.Error()
		next := time.Now().Add(5 * time.Minute)
		_ = models.MarkSyncEntryFailed(db.WithContext(ctx), entry.ID, cause, &next)
		return result
	}

	if err := db.WithContext(ctx).Model(&models.SyncQueueEntry{}).
		Where("id = ?", entry.ID).
		Update("status", models.SyncStatusSyncing).Error; err != nil {
		return markFailed(err)
	}

	capture, err := entry.DecodeCapture()
	if err != nil {
		return markFailed(err)
	}
	wound, err := models.GetWound(ctx, entry.FacilityId, entry.WoundId)
	if err != nil {
		return markFailed(err)
	}

	scan, err := pipeline.ProcessCapture(ctx, wound, capture, true)
	if err != nil && scan == nil {
		return markFailed(err)
	}

	// A rejected scan still consumes the entry: the capture was admitted and
	// the rejection is on record.
	result.Status = models.SyncStatusSynced
	if scan != nil {
		result.ScanId = scan.ID
	}
	if err != nil {
		result.Error = err.Error()
	}
	if markErr := models.MarkSyncEntrySynced(db.WithContext(ctx), entry.ID); markErr != nil {
		return markFailed(markErr)
	}
	return result
}
