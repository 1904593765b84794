package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// ClassifyTissue partitions the wound surface into granulation, slough and
// eschar percentages over a 100% base. Periwound pixels labeled outside these
// classes are excluded from the base. Equal-share ties resolve to the more
// severe class.
func ClassifyTissue(capture models.Capture) (models.TissueComposition, error) {
	var t models.TissueComposition

	counts := map[models.TissueType]int64{
		models.TissueTypeGranulation: capture.TissuePixels[models.TissueTypeGranulation],
		models.TissueTypeSlough:      capture.TissuePixels[models.TissueTypeSlough],
		models.TissueTypeEschar:      capture.TissuePixels[models.TissueTypeEschar],
	}
	var total int64
	for _, c := range counts {
		if c < 0 {
			return t, fmt.Errorf("%w: negative tissue pixel count", ErrClassificationUnavailable)
		}
		total += c
	}
	if total == 0 {
		return t, fmt.Errorf("%w: no classified wound-bed pixels", ErrClassificationUnavailable)
	}

	totalDec := decimal.NewFromInt(total)
	t.GranulationPct = decimal.NewFromInt(counts[models.TissueTypeGranulation]).Mul(oneHundred).Div(totalDec).Round(2)
	t.SloughPct = decimal.NewFromInt(counts[models.TissueTypeSlough]).Mul(oneHundred).Div(totalDec).Round(2)
	// Closing the partition on the most severe class keeps the sum at
	// exactly 100.00 after rounding.
	t.EscharPct = oneHundred.Sub(t.GranulationPct).Sub(t.SloughPct)

	t.DominantTissue = dominantTissue(t)
	return t, nil
}

func dominantTissue(t models.TissueComposition) models.TissueType {
	type entry struct {
		class models.TissueType
		pct   decimal.Decimal
	}
	entries := []entry{
		{models.TissueTypeGranulation, t.GranulationPct},
		{models.TissueTypeSlough, t.SloughPct},
		{models.TissueTypeEschar, t.EscharPct},
	}
	best := entries[0]
	for _, e := range entries[1:] {
		cmp := e.pct.Cmp(best.pct)
		if cmp > 0 || (cmp == 0 && e.class.SeverityRank() > best.class.SeverityRank()) {
			best = e
		}
	}
	return best.class
}
