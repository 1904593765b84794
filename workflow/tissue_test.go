package workflow

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"github.com/shopspring/decimal"
)

func tissueCapture(gran, slough, eschar int64) models.Capture {
	return models.Capture{
		TissuePixels: map[models.TissueType]int64{
			models.TissueTypeGranulation: gran,
			models.TissueTypeSlough:      slough,
			models.TissueTypeEschar:      eschar,
		},
	}
}

func TestClassifyTissue_PartitionSumsToOneHundred(t *testing.T) {
	cases := []struct{ gran, slough, eschar int64 }{
		{1, 1, 1},
		{7000, 2000, 1000},
		{3, 3, 1},
		{999983, 11, 7},
	}
	for _, tc := range cases {
		comp, err := ClassifyTissue(tissueCapture(tc.gran, tc.slough, tc.eschar))
		if err != nil {
			t.Fatalf("unexpected error for %+v: %v", tc, err)
		}
		sum := comp.GranulationPct.Add(comp.SloughPct).Add(comp.EscharPct)
		if !sum.Equal(decimal.NewFromInt(100)) {
			t.Errorf("%+v: percentages sum to %s, want 100", tc, sum)
		}
	}
}

func TestClassifyTissue_ExcludesUnlabeledPixels(t *testing.T) {
	c := tissueCapture(6000, 3000, 1000)
	// Periwound and background labels must not dilute the wound-bed base.
	c.TissuePixels["periwound"] = 50000

	comp, err := ClassifyTissue(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !comp.GranulationPct.Equal(decimal.NewFromInt(60)) {
		t.Errorf("expected 60%% granulation, got %s", comp.GranulationPct)
	}
}

func TestClassifyTissue_SevereClassWinsTies(t *testing.T) {
	comp, err := ClassifyTissue(tissueCapture(500, 500, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp.DominantTissue != models.TissueTypeSlough {
		t.Errorf("50/50 granulation/slough must resolve to slough, got %s", comp.DominantTissue)
	}

	comp, err = ClassifyTissue(tissueCapture(0, 500, 500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp.DominantTissue != models.TissueTypeEschar {
		t.Errorf("50/50 slough/eschar must resolve to eschar, got %s", comp.DominantTissue)
	}
}

func TestClassifyTissue_NoWoundBedPixels(t *testing.T) {
	_, err := ClassifyTissue(tissueCapture(0, 0, 0))
	if !errors.Is(err, ErrClassificationUnavailable) {
		t.Fatalf("expected ErrClassificationUnavailable, got %v", err)
	}
}

func TestClassifyTissue_NegativeCountRejected(t *testing.T) {
	_, err := ClassifyTissue(tissueCapture(100, -1, 0))
	if !errors.Is(err, ErrClassificationUnavailable) {
		t.Fatalf("expected ErrClassificationUnavailable, got %v", err)
	}
}
