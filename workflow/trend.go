package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"bitbucket.org/mmdatafocus/woundcare_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WoundTrendState is the healing trajectory derived from the full confirmed
// scan sequence. It is always recomputed from scratch, never incrementally
// patched, so replaying history in any batching produces the same state.
type WoundTrendState struct {
	WoundId            string              `json:"wound_id"`
	BaselineScanId     string              `json:"baseline_scan_id"`
	BaselineAreaMM2    decimal.Decimal     `json:"baseline_area_mm2"`
	BaselineCapturedAt time.Time           `json:"baseline_captured_at"`
	LatestScanId       string              `json:"latest_scan_id"`
	LatestAreaMM2      decimal.Decimal     `json:"latest_area_mm2"`
	LatestPAR          decimal.Decimal     `json:"latest_par"`
	LastConfirmedAt    time.Time           `json:"last_confirmed_at"`
	ConfirmedScanCount int                 `json:"confirmed_scan_count"`
	IsStalled          bool                `json:"is_stalled"`
	Points             []models.TrendPoint `json:"points"`
}

type TrendPolicy struct {
	StalledPARThreshold decimal.Decimal
	StalledWindow       time.Duration
}

func CurrentTrendPolicy() TrendPolicy {
	return TrendPolicy{
		StalledPARThreshold: decimal.NewFromFloat(config.StalledPARThreshold()),
		StalledWindow:       time.Duration(config.StalledWindowDays()) * 24 * time.Hour,
	}
}

// ComputePAR is percent area reduction from baseline. Negative when the
// wound has grown.
func ComputePAR(baselineArea, currentArea decimal.Decimal) decimal.Decimal {
	if !baselineArea.IsPositive() {
		return decimal.Zero
	}
	return baselineArea.Sub(currentArea).Div(baselineArea).Mul(oneHundred).Round(2)
}

// ComputeTrend derives the trend state from confirmed scans already sorted in
// (captured_at, id) order. Baseline is the first confirmed scan.
func ComputeTrend(woundId string, scans []models.Scan, policy TrendPolicy) *WoundTrendState {
	state := &WoundTrendState{WoundId: woundId}
	if len(scans) == 0 {
		return state
	}

	baseline := scans[0]
	latest := scans[len(scans)-1]
	state.BaselineScanId = baseline.ID
	state.BaselineAreaMM2 = baseline.Measurement.AreaMM2
	state.BaselineCapturedAt = baseline.CapturedAt
	state.LatestScanId = latest.ID
	state.LatestAreaMM2 = latest.Measurement.AreaMM2
	state.LastConfirmedAt = latest.CapturedAt
	state.ConfirmedScanCount = len(scans)

	state.Points = make([]models.TrendPoint, 0, len(scans))
	for i, scan := range scans {
		point := models.TrendPoint{
			ScanId:         scan.ID,
			CapturedAt:     scan.CapturedAt,
			AreaMM2:        scan.Measurement.AreaMM2,
			SeverityScore:  scan.Severity.SeverityScore,
			DominantTissue: scan.Tissue.DominantTissue,
		}
		if i > 0 {
			par := ComputePAR(baseline.Measurement.AreaMM2, scan.Measurement.AreaMM2)
			point.ParFromBaseline = &par
		}
		state.Points = append(state.Points, point)
	}
	state.LatestPAR = ComputePAR(baseline.Measurement.AreaMM2, latest.Measurement.AreaMM2)

	state.IsStalled = isStalled(state, scans, policy)
	return state
}

// isStalled checks PAR improvement over the trailing window, rolling from the
// latest confirmed scan. A wound younger than the window is never stalled.
func isStalled(state *WoundTrendState, scans []models.Scan, policy TrendPolicy) bool {
	elapsed := state.LastConfirmedAt.Sub(state.BaselineCapturedAt)
	if elapsed < policy.StalledWindow {
		return false
	}

	// Reference scan: the latest confirmed scan at or before the window start.
	windowStart := state.LastConfirmedAt.Add(-policy.StalledWindow)
	reference := scans[0]
	for _, scan := range scans {
		if scan.CapturedAt.After(windowStart) {
			break
		}
		reference = scan
	}

	referencePAR := ComputePAR(state.BaselineAreaMM2, reference.Measurement.AreaMM2)
	improvement := state.LatestPAR.Sub(referencePAR)
	return improvement.LessThan(policy.StalledPARThreshold)
}

// RecomputeWoundTrend rebuilds the wound's trend state inside the caller's
// transaction and persists the denormalized columns plus per-scan PAR values.
// Callers serialize per wound via AcquireWoundLock.
func RecomputeWoundTrend(ctx context.Context, tx *gorm.DB, wound *models.Wound) (*WoundTrendState, error) {
	var scans []models.Scan
	err := tx.WithContext(ctx).Model(&models.Scan{}).
		Where("wound_id = ? AND status = ?", wound.ID, models.ScanStatusClinicianConfirmed).
		Order("captured_at ASC, id ASC").
		Find(&scans).Error
	if err != nil {
		return nil, err
	}

	state := ComputeTrend(wound.ID, scans, CurrentTrendPolicy())

	for _, point := range state.Points {
		if err := tx.Model(&models.Scan{}).
			Where("id = ?", point.ScanId).
			Update("par_from_baseline", point.ParFromBaseline).Error; err != nil {
			return nil, err
		}
	}

	updates := map[string]interface{}{
		"confirmed_scan_count": state.ConfirmedScanCount,
		"is_stalled":           state.IsStalled,
	}
	if state.ConfirmedScanCount > 0 {
		updates["baseline_scan_id"] = state.BaselineScanId
		updates["baseline_area_mm2"] = state.BaselineAreaMM2
		updates["baseline_captured_at"] = state.BaselineCapturedAt
		updates["latest_scan_id"] = state.LatestScanId
		updates["latest_area_mm2"] = state.LatestAreaMM2
		updates["latest_par"] = state.LatestPAR
		updates["last_confirmed_at"] = state.LastConfirmedAt
	}
	if err := tx.Model(&models.Wound{}).Where("id = ?", wound.ID).Updates(updates).Error; err != nil {
		return nil, err
	}

	// Cache is refreshed, not invalidated: trend reads are hot on review
	// dashboards.
	if err := utils.StoreTrendCache(wound.ID, state); err != nil {
		config.LogError(config.GetLogger(), "workflow", "RecomputeWoundTrend", "trend cache store", wound.ID, err)
	}
	return state, nil
}

// GetWoundTrend serves the trend state, preferring the Redis snapshot and
// falling back to a fresh computation.
func GetWoundTrend(ctx context.Context, facilityId string, woundId string) (*WoundTrendState, error) {
	var cached WoundTrendState
	hit, err := utils.RetrieveTrendCache(woundId, &cached)
	if err == nil && hit {
		return &cached, nil
	}

	wound, err := models.GetWound(ctx, facilityId, woundId)
	if err != nil {
		return nil, err
	}
	scans, err := models.ConfirmedScansForWound(ctx, wound.ID)
	if err != nil {
		return nil, err
	}
	state := ComputeTrend(wound.ID, scans, CurrentTrendPolicy())
	if err := utils.StoreTrendCache(wound.ID, state); err != nil {
		config.LogError(config.GetLogger(), "workflow", "GetWoundTrend", "trend cache store", wound.ID, err)
	}
	return state, nil
}
