package workflow

import (
	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"github.com/shopspring/decimal"
)

// StageInput is the joined measurement and tissue result plus the raw
// sub-epidermal signals from the capture.
type StageInput struct {
	Measurement models.Measurement
	Tissue      models.TissueComposition

	ThermalDeltaCelsius  float64
	RednessDurationHours float64
}

type stageRule struct {
	stage int
	match func(StageInput, stagePolicy) bool
}

type stagePolicy struct {
	thermalDelta float64
	rednessHours float64
}

var (
	decTwenty = decimal.NewFromInt(20)
	decFifty  = decimal.NewFromInt(50)
	decFive   = decimal.NewFromInt(5)
)

// Rules are evaluated in fixed order from worst stage down; the first match
// wins, so thresholds never have to be mutually exclusive.
var stageRules = []stageRule{
	{
		stage: 4,
		match: func(in StageInput, p stagePolicy) bool {
			if in.Tissue.EscharPct.GreaterThan(decFifty) {
				return true
			}
			return in.Measurement.DepthMM != nil && in.Measurement.DepthMM.GreaterThan(decTwenty)
		},
	},
	{
		stage: 3,
		match: func(in StageInput, p stagePolicy) bool {
			if in.Measurement.DepthMM == nil || !in.Measurement.DepthMM.GreaterThan(decFive) {
				return false
			}
			return in.Tissue.EscharPct.IsPositive() || in.Tissue.SloughPct.IsPositive()
		},
	},
	{
		stage: 2,
		match: func(in StageInput, p stagePolicy) bool {
			// Broken skin with a measurable wound bed.
			return in.Measurement.AreaMM2.IsPositive()
		},
	},
	{
		stage: 1,
		match: func(in StageInput, p stagePolicy) bool {
			return subEpidermalSignal(in, p)
		},
	},
}

// ScoreSeverity maps the joined analysis onto an NPIAP stage 0..4 and an
// independent sub-epidermal alert. The alert is never suppressed by a low
// stage: deep tissue can be failing under intact skin.
func ScoreSeverity(in StageInput) (stage int, subEpidermalAlert bool) {
	p := stagePolicy{
		thermalDelta: config.SubEpidermalThermalDelta(),
		rednessHours: config.PersistentRednessHours(),
	}
	subEpidermalAlert = subEpidermalSignal(in, p)
	for _, rule := range stageRules {
		if rule.match(in, p) {
			return rule.stage, subEpidermalAlert
		}
	}
	return 0, subEpidermalAlert
}

func subEpidermalSignal(in StageInput, p stagePolicy) bool {
	return in.RednessDurationHours >= p.rednessHours && in.ThermalDeltaCelsius > p.thermalDelta
}
