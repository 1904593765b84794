package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"github.com/shopspring/decimal"
)

type TrendDirection string

const (
	TrendImproving     TrendDirection = "improving"
	TrendStable        TrendDirection = "stable"
	TrendDeteriorating TrendDirection = "deteriorating"
)

// HealingTrend is the per-wound analytics view layered on WoundTrendState.
type HealingTrend struct {
	WoundId              string          `json:"wound_id"`
	BaselineAreaMM2      decimal.Decimal `json:"baseline_area_mm2"`
	CurrentAreaMM2       decimal.Decimal `json:"current_area_mm2"`
	PARPercentage        decimal.Decimal `json:"par_percentage"`
	DaysElapsed          int             `json:"days_elapsed"`
	IsStalled            bool            `json:"is_stalled"`
	TrendDirection       TrendDirection  `json:"trend_direction"`
	ProjectedHealingDays *int            `json:"projected_healing_days"`
}

type FacilityWoundBurden struct {
	FacilityId      string         `json:"facility_id"`
	TotalWounds     int            `json:"total_wounds"`
	ActiveWounds    int            `json:"active_wounds"`
	StalledWounds   int            `json:"stalled_wounds"`
	HealedThisMonth int            `json:"healed_this_month"`
	WoundByEtiology map[string]int `json:"wound_by_etiology"`
}

var ErrNoScanHistory = errors.New("no confirmed scan history")

// CalculateHealingTrend derives the analytics view from confirmed trend
// points, pure over its input.
func CalculateHealingTrend(state *WoundTrendState) (*HealingTrend, error) {
	if len(state.Points) == 0 {
		return nil, ErrNoScanHistory
	}
	trend := &HealingTrend{
		WoundId:         state.WoundId,
		BaselineAreaMM2: state.BaselineAreaMM2,
		CurrentAreaMM2:  state.LatestAreaMM2,
		PARPercentage:   state.LatestPAR,
		DaysElapsed:     int(state.LastConfirmedAt.Sub(state.BaselineCapturedAt).Hours() / 24),
		IsStalled:       state.IsStalled,
		TrendDirection:  trendDirection(state.Points),
	}
	trend.ProjectedHealingDays = projectHealingDays(state.Points)
	return trend, nil
}

// trendDirection compares the newest area against the start of the trailing
// three points with a 5% dead band.
func trendDirection(points []models.TrendPoint) TrendDirection {
	if len(points) < 2 {
		return TrendStable
	}
	recent := points
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	first := recent[0].AreaMM2
	last := recent[len(recent)-1].AreaMM2
	if last.LessThan(first.Mul(decimal.NewFromFloat(0.95))) {
		return TrendImproving
	}
	if last.GreaterThan(first.Mul(decimal.NewFromFloat(1.05))) {
		return TrendDeteriorating
	}
	return TrendStable
}

// projectHealingDays linearly extrapolates the last two confirmed areas to
// closure. Nil when the wound is not shrinking.
func projectHealingDays(points []models.TrendPoint) *int {
	if len(points) < 2 {
		return nil
	}
	prev := points[len(points)-2]
	last := points[len(points)-1]
	if !last.AreaMM2.IsPositive() {
		return nil
	}
	days := last.CapturedAt.Sub(prev.CapturedAt).Hours() / 24
	if days <= 0 {
		return nil
	}
	changePerDay := prev.AreaMM2.Sub(last.AreaMM2).Div(decimal.NewFromFloat(days))
	if !changePerDay.IsPositive() {
		return nil
	}
	projected := int(last.AreaMM2.DivRound(changePerDay, 0).IntPart())
	return &projected
}

// FacilityBurden aggregates the facility's wound load for the dashboard.
func FacilityBurden(ctx context.Context, facilityId string) (*FacilityWoundBurden, error) {
	db := config.GetDB()
	var wounds []models.Wound
	if err := db.WithContext(ctx).Model(&models.Wound{}).
		Where("facility_id = ?", facilityId).
		Find(&wounds).Error; err != nil {
		return nil, err
	}

	burden := &FacilityWoundBurden{
		FacilityId:      facilityId,
		TotalWounds:     len(wounds),
		WoundByEtiology: map[string]int{},
	}
	monthStart := time.Now().AddDate(0, -1, 0)
	for _, wound := range wounds {
		burden.WoundByEtiology[string(wound.Etiology)]++
		switch {
		case wound.Status == models.WoundStatusHealed && wound.UpdatedAt.After(monthStart):
			burden.HealedThisMonth++
		case wound.Status == models.WoundStatusActive || wound.Status == models.WoundStatusStalled:
			burden.ActiveWounds++
		}
		if wound.IsStalled {
			burden.StalledWounds++
		}
	}
	return burden, nil
}
