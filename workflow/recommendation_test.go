package workflow

import (
	"reflect"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"github.com/shopspring/decimal"
)

func recInput() RecommendationInput {
	return RecommendationInput{
		Tissue: models.TissueComposition{
			GranulationPct: decimal.NewFromInt(100),
		},
		ExudateLevel: models.ExudateLevelLow,
		Etiology:     models.EtiologyUnknown,
	}
}

func TestRecommend_IsDeterministic(t *testing.T) {
	in := recInput()
	in.Tissue.EscharPct = decimal.NewFromInt(40)
	in.Etiology = models.EtiologyDiabetic
	in.IsStalled = true

	first := Recommend(in)
	for i := 0; i < 10; i++ {
		if again := Recommend(in); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d diverged:\n%+v\nvs\n%+v", i, first, again)
		}
	}
}

func TestRecommend_EscharOutranksSlough(t *testing.T) {
	in := recInput()
	in.Tissue.EscharPct = decimal.NewFromInt(35)
	in.Tissue.SloughPct = decimal.NewFromInt(60)
	in.ExudateLevel = models.ExudateLevelHigh

	rec := Recommend(in)
	if !strings.Contains(rec.PrimaryDressing, "Hydrocolloid") {
		t.Errorf("expected debridement dressing, got %q", rec.PrimaryDressing)
	}
	if rec.Urgency != models.UrgencyUrgent {
		t.Errorf("necrotic tissue must be urgent, got %s", rec.Urgency)
	}
}

func TestRecommend_SloughDressingFollowsExudate(t *testing.T) {
	in := recInput()
	in.Tissue.SloughPct = decimal.NewFromInt(60)

	in.ExudateLevel = models.ExudateLevelHigh
	if rec := Recommend(in); rec.PrimaryDressing != "Alginate Dressing" {
		t.Errorf("wet sloughy wound: expected Alginate, got %q", rec.PrimaryDressing)
	}

	in.ExudateLevel = models.ExudateLevelLow
	if rec := Recommend(in); rec.PrimaryDressing != "Hydrogel Dressing" {
		t.Errorf("dry sloughy wound: expected Hydrogel, got %q", rec.PrimaryDressing)
	}
}

func TestRecommend_GranulatingWound(t *testing.T) {
	in := recInput()
	in.Tissue.GranulationPct = decimal.NewFromInt(80)

	if rec := Recommend(in); rec.PrimaryDressing != "Non-adherent Silicone Foam Dressing" {
		t.Errorf("dry granulating wound: got %q", rec.PrimaryDressing)
	}

	in.ExudateLevel = models.ExudateLevelModerate
	if rec := Recommend(in); rec.PrimaryDressing != "Foam Dressing with Superabsorbent Layer" {
		t.Errorf("wet granulating wound: got %q", rec.PrimaryDressing)
	}
}

func TestRecommend_DefaultDressing(t *testing.T) {
	in := recInput()
	in.Tissue.GranulationPct = decimal.NewFromInt(50)
	in.Tissue.SloughPct = decimal.NewFromInt(50)
	in.ExudateLevel = models.ExudateLevelNone

	if rec := Recommend(in); rec.PrimaryDressing != "Foam Dressing" {
		t.Errorf("expected default foam dressing, got %q", rec.PrimaryDressing)
	}
}

func TestRecommend_DiabeticEtiologyAddsReferral(t *testing.T) {
	in := recInput()
	in.Etiology = models.EtiologyDiabetic

	rec := Recommend(in)
	if !rec.ReferralNeeded || rec.ReferralReason == nil {
		t.Fatal("diabetic wounds require a multidisciplinary referral")
	}
	if !strings.Contains(rec.Interventions, "Offloading") {
		t.Errorf("expected offloading intervention, got %q", rec.Interventions)
	}
}

func TestRecommend_StallEscalatesUrgency(t *testing.T) {
	in := recInput()
	in.IsStalled = true

	rec := Recommend(in)
	if rec.Urgency != models.UrgencyUrgent {
		t.Errorf("stalled wound must escalate urgency, got %s", rec.Urgency)
	}
	if !strings.Contains(rec.Interventions, "biopsy") {
		t.Errorf("expected biopsy intervention, got %q", rec.Interventions)
	}
}

func TestRecommend_SubEpidermalAlertAddsPreventionProtocol(t *testing.T) {
	in := recInput()
	in.SubEpidermalAlert = true

	rec := Recommend(in)
	if rec.Urgency != models.UrgencyUrgent {
		t.Errorf("sub-epidermal alert must escalate urgency, got %s", rec.Urgency)
	}
	if !strings.Contains(rec.Interventions, "prevention protocol") {
		t.Errorf("expected prevention protocol intervention, got %q", rec.Interventions)
	}
}
