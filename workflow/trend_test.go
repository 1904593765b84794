package workflow

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"github.com/shopspring/decimal"
)

func trendPolicy() TrendPolicy {
	return TrendPolicy{
		StalledPARThreshold: decimal.NewFromInt(20),
		StalledWindow:       28 * 24 * time.Hour,
	}
}

func confirmedScan(id string, day int, areaMM2 float64) models.Scan {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	scan := models.Scan{
		CapturedAt: base.Add(time.Duration(day) * 24 * time.Hour),
		Status:     models.ScanStatusClinicianConfirmed,
	}
	scan.ID = id
	scan.Measurement.AreaMM2 = decimal.NewFromFloat(areaMM2)
	return scan
}

func TestComputePAR(t *testing.T) {
	cases := []struct {
		baseline, current, want float64
	}{
		{100, 40, 60},
		{100, 120, -20},
		{100, 100, 0},
		{80, 60, 25},
	}
	for _, c := range cases {
		got := ComputePAR(decimal.NewFromFloat(c.baseline), decimal.NewFromFloat(c.current))
		if !got.Equal(decimal.NewFromFloat(c.want)) {
			t.Errorf("ComputePAR(%v, %v) = %s, want %v", c.baseline, c.current, got, c.want)
		}
	}
}

func TestComputePAR_ZeroBaseline(t *testing.T) {
	if got := ComputePAR(decimal.Zero, decimal.NewFromInt(50)); !got.IsZero() {
		t.Errorf("zero baseline must yield zero PAR, got %s", got)
	}
}

func TestComputeTrend_BaselineAndLatest(t *testing.T) {
	scans := []models.Scan{
		confirmedScan("scan-1", 0, 100),
		confirmedScan("scan-2", 7, 80),
		confirmedScan("scan-3", 14, 40),
	}

	state := ComputeTrend("wound-1", scans, trendPolicy())
	if state.BaselineScanId != "scan-1" || state.LatestScanId != "scan-3" {
		t.Fatalf("baseline/latest = %s/%s", state.BaselineScanId, state.LatestScanId)
	}
	if !state.LatestPAR.Equal(decimal.NewFromInt(60)) {
		t.Errorf("latest PAR = %s, want 60", state.LatestPAR)
	}
	if state.ConfirmedScanCount != 3 {
		t.Errorf("confirmed count = %d", state.ConfirmedScanCount)
	}
	if state.Points[0].ParFromBaseline != nil {
		t.Error("baseline point must carry no PAR")
	}
	if got := state.Points[1].ParFromBaseline; got == nil || !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("second point PAR = %v, want 20", got)
	}
}

func TestComputeTrend_EmptyHistory(t *testing.T) {
	state := ComputeTrend("wound-1", nil, trendPolicy())
	if state.ConfirmedScanCount != 0 || state.IsStalled {
		t.Fatalf("empty history: %+v", state)
	}
}

// Recomputing from the same confirmed sequence is idempotent regardless of how
// the scans arrived, so delayed sync batches cannot skew the trajectory.
func TestComputeTrend_RecomputeIsIdempotent(t *testing.T) {
	scans := []models.Scan{
		confirmedScan("scan-1", 0, 100),
		confirmedScan("scan-2", 10, 70),
		confirmedScan("scan-3", 20, 55),
		confirmedScan("scan-4", 30, 30),
	}

	first := ComputeTrend("wound-1", scans, trendPolicy())
	for i := 0; i < 5; i++ {
		again := ComputeTrend("wound-1", scans, trendPolicy())
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("recompute %d diverged", i)
		}
	}
}

func TestComputeTrend_StalledWhenImprovementBelowThreshold(t *testing.T) {
	scans := []models.Scan{
		confirmedScan("scan-1", 0, 100),
		confirmedScan("scan-2", 28, 90),
	}

	state := ComputeTrend("wound-1", scans, trendPolicy())
	if !state.IsStalled {
		t.Errorf("10%% reduction over 28 days must stall, PAR=%s", state.LatestPAR)
	}
}

func TestComputeTrend_NotStalledWhenImprovementMeetsThreshold(t *testing.T) {
	scans := []models.Scan{
		confirmedScan("scan-1", 0, 100),
		confirmedScan("scan-2", 28, 50),
	}

	state := ComputeTrend("wound-1", scans, trendPolicy())
	if state.IsStalled {
		t.Error("50% reduction over the window must not stall")
	}
}

func TestComputeTrend_YoungWoundNeverStalled(t *testing.T) {
	scans := []models.Scan{
		confirmedScan("scan-1", 0, 100),
		confirmedScan("scan-2", 14, 100),
	}

	state := ComputeTrend("wound-1", scans, trendPolicy())
	if state.IsStalled {
		t.Error("history shorter than the window must never stall")
	}
}

// The stall window rolls from the latest scan, so early progress that has
// since flattened still counts as stalled.
func TestComputeTrend_RollingWindowIgnoresEarlyProgress(t *testing.T) {
	scans := []models.Scan{
		confirmedScan("scan-1", 0, 100),
		confirmedScan("scan-2", 14, 50),
		confirmedScan("scan-3", 42, 45),
	}

	state := ComputeTrend("wound-1", scans, trendPolicy())
	if !state.IsStalled {
		t.Errorf("flat trailing window must stall, PAR=%s", state.LatestPAR)
	}
}

func TestComputeTrend_PointOrderFollowsCapture(t *testing.T) {
	scans := make([]models.Scan, 0, 6)
	for i := 0; i < 6; i++ {
		scans = append(scans, confirmedScan(fmt.Sprintf("scan-%d", i+1), i*7, 100-float64(i)*10))
	}

	state := ComputeTrend("wound-1", scans, trendPolicy())
	for i := 1; i < len(state.Points); i++ {
		if state.Points[i].CapturedAt.Before(state.Points[i-1].CapturedAt) {
			t.Fatalf("points out of capture order at %d", i)
		}
	}
}

// Stall is recomputed from the full history every time: a wound flagged
// stalled after a flat window drops the flag as soon as a later scan lifts
// trailing improvement back over the threshold.
func TestComputeTrend_StallClearsOnRenewedProgress(t *testing.T) {
	flat := []models.Scan{
		confirmedScan("scan-1", 0, 100),
		confirmedScan("scan-2", 14, 95),
		confirmedScan("scan-3", 28, 90),
	}
	state := ComputeTrend("wound-1", flat, trendPolicy())
	if !state.IsStalled {
		t.Fatalf("flat 28-day window must stall, PAR=%s", state.LatestPAR)
	}

	recovered := append(append([]models.Scan(nil), flat...),
		confirmedScan("scan-4", 42, 40))
	state = ComputeTrend("wound-1", recovered, trendPolicy())
	if state.IsStalled {
		t.Errorf("renewed progress must clear the stall, PAR=%s", state.LatestPAR)
	}
}
