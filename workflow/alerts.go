package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"gonum.org/v1/gonum/stat"
	"gorm.io/gorm"
)

const (
	severitySpikeThreshold = 0.5
	stage4ProjectedScore   = 3.5
	projectionHorizonDays  = 14
)

// EvaluateAlerts runs the early-warning rules against the freshly recomputed
// trend state. Alerts are deduplicated per (wound, type) while unacknowledged,
// so re-running a recompute never stacks duplicates.
func EvaluateAlerts(ctx context.Context, tx *gorm.DB, wound *models.Wound, state *WoundTrendState) error {
	if len(state.Points) == 0 {
		return nil
	}

	var alerts []models.Alert

	if alert := severitySpikeAlert(wound, state); alert != nil {
		alerts = append(alerts, *alert)
	}
	if state.IsStalled {
		alerts = append(alerts, models.Alert{
			FacilityId: wound.FacilityId,
			WoundId:    wound.ID,
			ScanId:     &state.LatestScanId,
			Type:       models.AlertTypeStalledHealing,
			Severity:   models.AlertSeverityWarning,
			Message: fmt.Sprintf("Wound has not improved past the stall threshold (current PAR: %s%%). Consider treatment plan review.",
				state.LatestPAR.StringFixed(1)),
		})
	}
	if alert := projectedStage4Alert(wound, state); alert != nil {
		alerts = append(alerts, *alert)
	}
	if latestPoint := state.Points[len(state.Points)-1]; latestSubEpidermal(tx, latestPoint.ScanId) {
		alerts = append(alerts, models.Alert{
			FacilityId: wound.FacilityId,
			WoundId:    wound.ID,
			ScanId:     &state.LatestScanId,
			Type:       models.AlertTypeSubEpidermalEarly,
			Severity:   models.AlertSeverityWarning,
			Message:    "Sub-epidermal tissue damage signals detected. Initiate pressure injury prevention protocol.",
		})
	}

	for _, alert := range alerts {
		if err := upsertAlertTx(tx, alert); err != nil {
			return err
		}
	}
	return nil
}

// severitySpikeAlert fires when the classifier score rose by more than the
// threshold against any confirmed scan in the previous 24 hours.
func severitySpikeAlert(wound *models.Wound, state *WoundTrendState) *models.Alert {
	points := state.Points
	if len(points) < 2 {
		return nil
	}
	last := points[len(points)-1]
	prev := points[len(points)-2]
	if last.CapturedAt.Sub(prev.CapturedAt) > 24*time.Hour {
		return nil
	}
	delta := last.SeverityScore - prev.SeverityScore
	if delta <= severitySpikeThreshold {
		return nil
	}
	return &models.Alert{
		FacilityId: wound.FacilityId,
		WoundId:    wound.ID,
		ScanId:     &last.ScanId,
		Type:       models.AlertTypeSeveritySpike,
		Severity:   models.AlertSeverityCritical,
		Message: fmt.Sprintf("Severity score increased by %.2f in the last 24 hours (from %.1f to %.1f).",
			delta, prev.SeverityScore, last.SeverityScore),
	}
}

// projectedStage4Alert projects the severity score two weeks ahead with a
// least-squares fit over the confirmed sequence.
func projectedStage4Alert(wound *models.Wound, state *WoundTrendState) *models.Alert {
	points := state.Points
	if len(points) < 2 {
		return nil
	}
	xs := make([]float64, 0, len(points))
	ys := make([]float64, 0, len(points))
	for _, p := range points {
		xs = append(xs, float64(p.CapturedAt.Unix()))
		ys = append(ys, p.SeverityScore)
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	futureT := xs[len(xs)-1] + projectionHorizonDays*86400
	projected := alpha + beta*futureT
	if projected < stage4ProjectedScore {
		return nil
	}
	return &models.Alert{
		FacilityId: wound.FacilityId,
		WoundId:    wound.ID,
		ScanId:     &state.LatestScanId,
		Type:       models.AlertTypeProjectedStage4,
		Severity:   models.AlertSeverityCritical,
		Message: fmt.Sprintf("Projected severity score in %d days: %.1f. Stage 4 progression risk detected. Immediate clinical review recommended.",
			projectionHorizonDays, projected),
	}
}

func latestSubEpidermal(tx *gorm.DB, scanId string) bool {
	var scan models.Scan
	if err := tx.Select("sub_epidermal_alert").Where("id = ?", scanId).First(&scan).Error; err != nil {
		return false
	}
	return scan.Severity.SubEpidermalAlert
}

func upsertAlertTx(tx *gorm.DB, alert models.Alert) error {
	var count int64
	err := tx.Model(&models.Alert{}).
		Where("wound_id = ? AND type = ? AND acknowledged = false", alert.WoundId, alert.Type).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(&alert).Error
}
