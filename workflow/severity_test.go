package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"github.com/shopspring/decimal"
)

func stageInput() StageInput {
	return StageInput{
		Measurement: models.Measurement{
			AreaMM2: decimal.NewFromInt(300),
		},
		Tissue: models.TissueComposition{
			GranulationPct: decimal.NewFromInt(100),
		},
	}
}

func TestScoreSeverity_Stage4OnEscharCoverage(t *testing.T) {
	in := stageInput()
	in.Tissue.EscharPct = decimal.NewFromInt(60)
	in.Tissue.GranulationPct = decimal.NewFromInt(40)

	stage, _ := ScoreSeverity(in)
	if stage != 4 {
		t.Fatalf("expected stage 4 for >50%% eschar, got %d", stage)
	}
}

func TestScoreSeverity_Stage4OnDeepWound(t *testing.T) {
	in := stageInput()
	depth := decimal.NewFromInt(25)
	in.Measurement.DepthMM = &depth

	stage, _ := ScoreSeverity(in)
	if stage != 4 {
		t.Fatalf("expected stage 4 for 25mm depth, got %d", stage)
	}
}

func TestScoreSeverity_Stage3NeedsDepthAndDevitalisedTissue(t *testing.T) {
	in := stageInput()
	depth := decimal.NewFromInt(8)
	in.Measurement.DepthMM = &depth
	in.Tissue.SloughPct = decimal.NewFromInt(20)
	in.Tissue.GranulationPct = decimal.NewFromInt(80)

	stage, _ := ScoreSeverity(in)
	if stage != 3 {
		t.Fatalf("expected stage 3, got %d", stage)
	}

	// Same depth over a clean granulating bed is not stage 3.
	in.Tissue.SloughPct = decimal.Zero
	in.Tissue.GranulationPct = decimal.NewFromInt(100)
	stage, _ = ScoreSeverity(in)
	if stage != 2 {
		t.Fatalf("expected stage 2 for clean deep wound, got %d", stage)
	}
}

func TestScoreSeverity_Stage2OnOpenWound(t *testing.T) {
	stage, alert := ScoreSeverity(stageInput())
	if stage != 2 {
		t.Fatalf("expected stage 2 for measurable open wound, got %d", stage)
	}
	if alert {
		t.Fatal("no sub-epidermal signals were present")
	}
}

func TestScoreSeverity_Stage1FromSubEpidermalSignalsAlone(t *testing.T) {
	in := StageInput{
		ThermalDeltaCelsius:  2.0,
		RednessDurationHours: 1.5,
	}
	stage, alert := ScoreSeverity(in)
	if stage != 1 {
		t.Fatalf("expected stage 1 under intact skin, got %d", stage)
	}
	if !alert {
		t.Fatal("expected sub-epidermal alert")
	}
}

func TestScoreSeverity_AlertNotSuppressedByHigherStage(t *testing.T) {
	in := stageInput()
	in.Tissue.EscharPct = decimal.NewFromInt(60)
	in.ThermalDeltaCelsius = 2.0
	in.RednessDurationHours = 3.0

	stage, alert := ScoreSeverity(in)
	if stage != 4 {
		t.Fatalf("expected stage 4, got %d", stage)
	}
	if !alert {
		t.Fatal("sub-epidermal alert must fire alongside a high stage")
	}
}

func TestScoreSeverity_ThresholdsAreStrictWhereClinicallyRequired(t *testing.T) {
	// Thermal delta is strictly greater-than; redness hours is at-least.
	in := StageInput{ThermalDeltaCelsius: 1.5, RednessDurationHours: 1.0}
	if _, alert := ScoreSeverity(in); alert {
		t.Fatal("thermal delta equal to threshold must not alert")
	}
	in.ThermalDeltaCelsius = 1.6
	if _, alert := ScoreSeverity(in); !alert {
		t.Fatal("redness at one hour with hotspot must alert")
	}
}
