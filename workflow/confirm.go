package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"bitbucket.org/mmdatafocus/woundcare_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ConfirmScan marks an ai_complete scan clinician_confirmed, recomputes the
// wound trend, evaluates alerts and queues the EHR event. Serialized per
// wound; re-confirming a terminal scan fails with ErrScanStateTerminal.
func ConfirmScan(ctx context.Context, facilityId string, scanId string) (*models.Scan, *WoundTrendState, error) {
	db := config.GetDB()
	logger := config.GetLogger()
	userId, _ := utils.GetUserIdFromContext(ctx)

	var scan models.Scan
	var state *WoundTrendState
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND facility_id = ?", scanId, facilityId).
			First(&scan).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		if err := AcquireWoundLock(tx, scan.WoundId); err != nil {
			return err
		}
		defer ReleaseWoundLock(tx, scan.WoundId)

		if err := scan.Transition(models.ScanStatusClinicianConfirmed); err != nil {
			return err
		}
		now := time.Now()
		scan.ConfirmedBy = &userId
		scan.ConfirmedAt = &now
		if err := tx.Model(&models.Scan{}).Where("id = ?", scan.ID).
			Updates(map[string]interface{}{
				"status":       scan.Status,
				"confirmed_by": scan.ConfirmedBy,
				"confirmed_at": scan.ConfirmedAt,
			}).Error; err != nil {
			return err
		}

		wound, err := models.GetWound(ctx, facilityId, scan.WoundId)
		if err != nil {
			return err
		}
		state, err = RecomputeWoundTrend(ctx, tx, wound)
		if err != nil {
			return err
		}
		scan.ParFromBaseline = trendPAR(state, scan.ID)

		if err := EvaluateAlerts(ctx, tx, wound, state); err != nil {
			return err
		}

		if err := models.WriteAudit(ctx, tx, "scan.confirmed", "scan", scan.ID, map[string]interface{}{
			"confirmed_by": userId,
			"latest_par":   state.LatestPAR,
			"is_stalled":   state.IsStalled,
		}); err != nil {
			return err
		}

		return models.PublishScanEvent(ctx, tx, facilityId, now, scan.WoundId, scan.ID,
			models.ScanEventScanConfirmed, scan)
	})
	if err != nil {
		return nil, nil, err
	}

	logger.WithFields(logrus.Fields{
		"facility_id": facilityId,
		"scan_id":     scan.ID,
		"wound_id":    scan.WoundId,
		"latest_par":  state.LatestPAR,
		"is_stalled":  state.IsStalled,
	}).Info("scan confirmed")
	return &scan, state, nil
}

// RejectScan is the clinician override: an ai_complete scan is discarded from
// the trend without deleting it.
func RejectScan(ctx context.Context, facilityId string, scanId string) (*models.Scan, error) {
	db := config.GetDB()

	var scan models.Scan
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND facility_id = ?", scanId, facilityId).
			First(&scan).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if err := scan.Transition(models.ScanStatusRejected); err != nil {
			return err
		}
		reason := models.RejectionReasonClinicianOverride
		scan.RejectionReason = &reason
		if err := tx.Model(&models.Scan{}).Where("id = ?", scan.ID).
			Updates(map[string]interface{}{
				"status":           scan.Status,
				"rejection_reason": scan.RejectionReason,
			}).Error; err != nil {
			return err
		}
		if err := models.WriteAudit(ctx, tx, "scan.rejected", "scan", scan.ID,
			map[string]string{"reason": string(reason)}); err != nil {
			return err
		}
		return models.PublishScanEvent(ctx, tx, facilityId, time.Now(), scan.WoundId, scan.ID,
			models.ScanEventScanRejected, scan)
	})
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

func trendPAR(state *WoundTrendState, scanId string) *decimal.Decimal {
	for _, p := range state.Points {
		if p.ScanId == scanId {
			return p.ParFromBaseline
		}
	}
	return nil
}
