package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"github.com/shopspring/decimal"
)

type stubEstimator struct {
	delay time.Duration
	err   error
}

func (s stubEstimator) Estimate(ctx context.Context, capture models.Capture) (models.Measurement, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return models.Measurement{}, s.err
	}
	return (&MarkerScaleEstimator{MaxErrorPct: 5.0}).Estimate(ctx, capture)
}

type stubClassifier struct {
	err error
}

func (s stubClassifier) Classify(ctx context.Context, woundId string, imageHash string) (*ClassifierResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ClassifierResult{SeverityScore: 2.7, Stage: "Stage 2", Confidence: 0.94, ModelVersion: "mock-1.0.0"}, nil
}

func analysisCapture() models.Capture {
	c := markerCapture()
	c.CaptureId = "capture-1"
	c.WoundId = "wound-1"
	c.DeviceId = "dev-1"
	c.LocalSeq = 1
	c.CapturedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c.CaptureAngleDegrees = 90.0
	c.FocusScore = 0.9
	c.TissuePixels = map[models.TissueType]int64{
		models.TissueTypeGranulation: 600,
		models.TissueTypeSlough:      300,
		models.TissueTypeEschar:      100,
	}
	return c
}

func analysisWound() *models.Wound {
	return &models.Wound{
		ID:         "wound-1",
		FacilityId: "fac-1",
		PatientId:  "patient-1",
		Etiology:   models.EtiologyUnknown,
		Status:     models.WoundStatusActive,
	}
}

func analysisPipeline(est MeasurementEstimator, cls ClassifierClient) *Pipeline {
	return &Pipeline{Estimator: est, Classifier: cls, Timeout: 2 * time.Second}
}

func TestAnalyze_JoinsMeasurementAndTissue(t *testing.T) {
	p := analysisPipeline(stubEstimator{}, stubClassifier{})

	scan, err := p.analyze(context.Background(), analysisWound(), analysisCapture(), false)
	if err != nil {
		t.Fatal(err)
	}
	if !scan.Measurement.AreaMM2.Equal(decimal.NewFromInt(300)) {
		t.Errorf("area = %s, want 300", scan.Measurement.AreaMM2)
	}
	sum := scan.Tissue.GranulationPct.Add(scan.Tissue.SloughPct).Add(scan.Tissue.EscharPct)
	if !sum.Equal(oneHundred) {
		t.Errorf("tissue sums to %s", sum)
	}
	if scan.Severity.ModelVersion != "mock-1.0.0" || scan.Severity.SeverityScore != 2.7 {
		t.Errorf("classifier verdict not carried: %+v", scan.Severity)
	}
	if scan.Status != models.ScanStatusAIComplete {
		t.Errorf("status = %s", scan.Status)
	}
	if scan.Recommendation.PrimaryDressing == "" {
		t.Error("recommendation missing")
	}
}

func TestAnalyze_SlowStageSurfacesTimeout(t *testing.T) {
	p := analysisPipeline(stubEstimator{delay: 500 * time.Millisecond}, stubClassifier{})
	p.Timeout = 20 * time.Millisecond

	start := time.Now()
	_, err := p.analyze(context.Background(), analysisWound(), analysisCapture(), false)
	if !errors.Is(err, ErrAnalysisTimeout) {
		t.Fatalf("expected ErrAnalysisTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("timeout did not short-circuit the slow stage: %s", elapsed)
	}
	if reason, rejectable := rejectionFor(err); !rejectable || reason != models.RejectionReasonAnalysisTimeout {
		t.Errorf("timeout must consume the capture, got (%s, %v)", reason, rejectable)
	}
}

func TestAnalyze_CancelledContextShortCircuits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := analysisPipeline(stubEstimator{delay: time.Second}, stubClassifier{})
	start := time.Now()
	_, err := p.analyze(ctx, analysisWound(), analysisCapture(), false)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("cancellation did not short-circuit: %s", elapsed)
	}
}

func TestAnalyze_MeasurementErrorPropagates(t *testing.T) {
	p := analysisPipeline(stubEstimator{err: ErrMeasurementUncertain}, stubClassifier{})

	_, err := p.analyze(context.Background(), analysisWound(), analysisCapture(), false)
	if !errors.Is(err, ErrMeasurementUncertain) {
		t.Fatalf("expected ErrMeasurementUncertain, got %v", err)
	}
}

func TestAnalyze_ClassifierOutageIsRetriable(t *testing.T) {
	p := analysisPipeline(stubEstimator{}, stubClassifier{err: ErrClassificationUnavailable})

	_, err := p.analyze(context.Background(), analysisWound(), analysisCapture(), false)
	if !errors.Is(err, ErrClassificationUnavailable) {
		t.Fatalf("expected ErrClassificationUnavailable, got %v", err)
	}
	if _, rejectable := rejectionFor(err); rejectable {
		t.Error("classifier outage must not consume the capture")
	}
}

func TestAnalyze_CalibrationGateRunsFirst(t *testing.T) {
	c := analysisCapture()
	c.FocusScore = 0.1

	// The estimator would block; a calibration reject must never reach it.
	p := analysisPipeline(stubEstimator{delay: time.Second}, stubClassifier{})
	start := time.Now()
	_, err := p.analyze(context.Background(), analysisWound(), c, false)
	if !errors.Is(err, ErrCalibrationRejected) {
		t.Fatalf("expected ErrCalibrationRejected, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("calibration gate did not run first: %s", elapsed)
	}
}

func TestAnalyze_PersistsLocalNpiapStage(t *testing.T) {
	c := analysisCapture()
	c.TissuePixels = map[models.TissueType]int64{
		models.TissueTypeGranulation: 300,
		models.TissueTypeSlough:      100,
		models.TissueTypeEschar:      600,
	}

	p := analysisPipeline(stubEstimator{}, stubClassifier{})
	scan, err := p.analyze(context.Background(), analysisWound(), c, false)
	if err != nil {
		t.Fatal(err)
	}
	if scan.Severity.NpiapStage != 4 {
		t.Errorf("eschar-dominant wound: NpiapStage = %d, want 4", scan.Severity.NpiapStage)
	}
	if scan.Severity.StageClassification != "Stage 2" {
		t.Errorf("classifier verdict must be carried alongside: %q", scan.Severity.StageClassification)
	}
}

func TestAnalyze_StageOneFromSubEpidermalSignals(t *testing.T) {
	c := analysisCapture()
	c.WoundLengthPx = 0
	c.WoundWidthPx = 0
	c.WoundAreaPx = 0
	thermal := 1.6
	redness := 1.0
	c.ThermalDeltaCelsius = &thermal
	c.RednessDurationHours = &redness

	p := analysisPipeline(stubEstimator{}, stubClassifier{})
	scan, err := p.analyze(context.Background(), analysisWound(), c, false)
	if err != nil {
		t.Fatal(err)
	}
	if scan.Severity.NpiapStage != 1 {
		t.Errorf("intact skin with signals: NpiapStage = %d, want 1", scan.Severity.NpiapStage)
	}
	if !scan.Severity.SubEpidermalAlert {
		t.Error("sub-epidermal alert must be set")
	}
}

func TestNewScanFromCapture_SequenceScopedToSequencedRows(t *testing.T) {
	c := analysisCapture()
	c.LocalSeq = 0

	scan := newScanFromCapture(context.Background(), analysisWound(), c, false)
	if scan.LocalSeq != nil {
		t.Fatalf("live capture without a sequence stored %d", *scan.LocalSeq)
	}

	c.LocalSeq = 3
	scan = newScanFromCapture(context.Background(), analysisWound(), c, false)
	if scan.LocalSeq == nil || *scan.LocalSeq != 3 {
		t.Fatal("device-supplied sequence must be kept")
	}

	scan = newScanFromCapture(context.Background(), analysisWound(), c, true)
	if !scan.OfflineOrigin || scan.LocalSeq == nil || *scan.LocalSeq != 3 {
		t.Fatal("offline capture must keep its sequence")
	}
}
