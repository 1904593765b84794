package workflow

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"github.com/shopspring/decimal"
)

func trendPoint(day int, areaMM2 float64) models.TrendPoint {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return models.TrendPoint{
		CapturedAt: base.Add(time.Duration(day) * 24 * time.Hour),
		AreaMM2:    decimal.NewFromFloat(areaMM2),
	}
}

func TestCalculateHealingTrend_NoHistory(t *testing.T) {
	_, err := CalculateHealingTrend(&WoundTrendState{WoundId: "wound-1"})
	if !errors.Is(err, ErrNoScanHistory) {
		t.Fatalf("expected ErrNoScanHistory, got %v", err)
	}
}

func TestCalculateHealingTrend_DerivesFromState(t *testing.T) {
	state := ComputeTrend("wound-1", []models.Scan{
		confirmedScan("scan-1", 0, 100),
		confirmedScan("scan-2", 7, 80),
		confirmedScan("scan-3", 14, 40),
	}, trendPolicy())

	trend, err := CalculateHealingTrend(state)
	if err != nil {
		t.Fatal(err)
	}
	if trend.DaysElapsed != 14 {
		t.Errorf("days elapsed = %d, want 14", trend.DaysElapsed)
	}
	if !trend.PARPercentage.Equal(decimal.NewFromInt(60)) {
		t.Errorf("PAR = %s, want 60", trend.PARPercentage)
	}
	if trend.TrendDirection != TrendImproving {
		t.Errorf("direction = %s, want improving", trend.TrendDirection)
	}
}

func TestTrendDirection_DeadBand(t *testing.T) {
	cases := []struct {
		name  string
		areas []float64
		want  TrendDirection
	}{
		{"single point", []float64{100}, TrendStable},
		{"within band", []float64{100, 96}, TrendStable},
		{"shrinking", []float64{100, 90}, TrendImproving},
		{"growing", []float64{100, 106}, TrendDeteriorating},
		{"trailing three only", []float64{500, 100, 98, 96}, TrendStable},
	}
	for _, c := range cases {
		points := make([]models.TrendPoint, 0, len(c.areas))
		for i, area := range c.areas {
			points = append(points, trendPoint(i*7, area))
		}
		if got := trendDirection(points); got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}

func TestProjectHealingDays_LinearExtrapolation(t *testing.T) {
	// 10mm2 lost over 7 days leaves 90mm2: 63 days to closure.
	points := []models.TrendPoint{trendPoint(0, 100), trendPoint(7, 90)}
	got := projectHealingDays(points)
	if got == nil {
		t.Fatal("projection = nil, want 63")
	}
	if *got != 63 {
		t.Fatalf("projection = %d, want 63", *got)
	}
}

func TestProjectHealingDays_NilWhenNotShrinking(t *testing.T) {
	if got := projectHealingDays([]models.TrendPoint{trendPoint(0, 90), trendPoint(7, 100)}); got != nil {
		t.Errorf("growing wound projected %d days", *got)
	}
	if got := projectHealingDays([]models.TrendPoint{trendPoint(0, 100), trendPoint(7, 100)}); got != nil {
		t.Errorf("flat wound projected %d days", *got)
	}
	if got := projectHealingDays([]models.TrendPoint{trendPoint(0, 100)}); got != nil {
		t.Errorf("single point projected %d days", *got)
	}
}
