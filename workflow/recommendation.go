package workflow

import (
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"github.com/shopspring/decimal"
)

// RecommendationInput is everything the rule table may read. Identical inputs
// always yield identical recommendations.
type RecommendationInput struct {
	Tissue            models.TissueComposition
	ExudateLevel      models.ExudateLevel
	Etiology          models.WoundEtiology
	IsStalled         bool
	SubEpidermalAlert bool
}

type dressingRule struct {
	name   string
	match  func(RecommendationInput) bool
	result func(RecommendationInput, *models.Recommendation) []string
}

var (
	decThirty  = decimal.NewFromInt(30)
	decSeventy = decimal.NewFromInt(70)
)

func exudateAtLeastModerate(level models.ExudateLevel) bool {
	return level == models.ExudateLevelModerate || level == models.ExudateLevelHigh
}

// Primary dressing rules, evaluated in fixed priority order; the first match
// wins. Necrotic tissue outranks slough, slough outranks granulation cover.
var dressingRules = []dressingRule{
	{
		name:  "eschar_debridement",
		match: func(in RecommendationInput) bool { return in.Tissue.EscharPct.GreaterThan(decThirty) },
		result: func(in RecommendationInput, r *models.Recommendation) []string {
			r.PrimaryDressing = "Hydrocolloid or Enzymatic Debridement Agent"
			r.Urgency = models.UrgencyUrgent
			return []string{
				"Mechanical or autolytic debridement required",
				"Vascular assessment recommended before sharp debridement",
			}
		},
	},
	{
		name: "slough_high_exudate",
		match: func(in RecommendationInput) bool {
			return in.Tissue.SloughPct.GreaterThan(decFifty) && exudateAtLeastModerate(in.ExudateLevel)
		},
		result: func(in RecommendationInput, r *models.Recommendation) []string {
			r.PrimaryDressing = "Alginate Dressing"
			return []string{"Debridement of fibrinous tissue required"}
		},
	},
	{
		name:  "slough_low_exudate",
		match: func(in RecommendationInput) bool { return in.Tissue.SloughPct.GreaterThan(decFifty) },
		result: func(in RecommendationInput, r *models.Recommendation) []string {
			r.PrimaryDressing = "Hydrogel Dressing"
			return []string{"Autolytic debridement - maintain moist wound environment"}
		},
	},
	{
		name: "granulation_low_exudate",
		match: func(in RecommendationInput) bool {
			return in.Tissue.GranulationPct.GreaterThan(decSeventy) && in.ExudateLevel == models.ExudateLevelLow
		},
		result: func(in RecommendationInput, r *models.Recommendation) []string {
			r.PrimaryDressing = "Non-adherent Silicone Foam Dressing"
			return []string{"Protect granulation tissue - avoid trauma on removal"}
		},
	},
	{
		name: "granulation_wet",
		match: func(in RecommendationInput) bool {
			return in.Tissue.GranulationPct.GreaterThan(decSeventy) && exudateAtLeastModerate(in.ExudateLevel)
		},
		result: func(in RecommendationInput, r *models.Recommendation) []string {
			r.PrimaryDressing = "Foam Dressing with Superabsorbent Layer"
			return []string{"High exudate detected; recommend Alginate dressing"}
		},
	},
	{
		name:  "default_foam",
		match: func(in RecommendationInput) bool { return true },
		result: func(in RecommendationInput, r *models.Recommendation) []string {
			r.PrimaryDressing = "Foam Dressing"
			return nil
		},
	},
}

// Recommend builds the treatment recommendation from the ordered rule table
// plus additive etiology, stall and sub-epidermal interventions.
func Recommend(in RecommendationInput) models.Recommendation {
	var rec models.Recommendation
	rec.Urgency = models.UrgencyRoutine

	var interventions []string
	for _, rule := range dressingRules {
		if rule.match(in) {
			interventions = append(interventions, rule.result(in, &rec)...)
			break
		}
	}

	switch in.Etiology {
	case models.EtiologyDiabetic:
		interventions = append(interventions,
			"Offloading: Total Contact Cast or therapeutic footwear",
			"Blood glucose optimisation: target HbA1c <7%")
		rec.ReferralNeeded = true
		reason := "Diabetic foot multidisciplinary team referral"
		rec.ReferralReason = &reason
	case models.EtiologyVenous:
		interventions = append(interventions,
			"Compression therapy: 40mmHg four-layer bandaging",
			"Leg elevation when resting")
	case models.EtiologyPressure:
		interventions = append(interventions,
			"Reposition every 2 hours",
			"Pressure-redistributing mattress",
			"Nutritional assessment (protein, vitamin C, zinc)")
	}

	if in.IsStalled {
		interventions = append(interventions,
			"Wound not progressing - consider biopsy to rule out malignancy",
			"Review treatment plan and consider advanced therapy (NPWT or biologics)")
		rec.Urgency = models.UrgencyUrgent
	}

	if in.SubEpidermalAlert {
		interventions = append(interventions,
			"Stage 1 pressure injury detected - initiate prevention protocol immediately")
		rec.Urgency = models.UrgencyUrgent
	}

	rec.Interventions = strings.Join(interventions, "\n")
	rec.Rationale = buildRationale(in)
	return rec
}

func buildRationale(in RecommendationInput) string {
	var parts []string
	if in.Tissue.EscharPct.IsPositive() {
		parts = append(parts, fmt.Sprintf("%s%% necrotic tissue present", in.Tissue.EscharPct.Round(0)))
	}
	if in.Tissue.SloughPct.IsPositive() {
		parts = append(parts, fmt.Sprintf("%s%% slough requiring debridement", in.Tissue.SloughPct.Round(0)))
	}
	if in.Tissue.GranulationPct.IsPositive() {
		parts = append(parts, fmt.Sprintf("%s%% healthy granulation tissue", in.Tissue.GranulationPct.Round(0)))
	}
	parts = append(parts, fmt.Sprintf("%s exudate level", in.ExudateLevel))
	return strings.Join(parts, "; ") + "."
}
