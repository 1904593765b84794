package workflow

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"github.com/shopspring/decimal"
)

func markerCapture() models.Capture {
	return models.Capture{
		CalibrationMarkerDetected: true,
		MarkerSizeMM:              decimal.NewFromInt(10),
		MarkerLengthPx:            100, // 0.1 mm per pixel
		MarkerConfidence:          1.0,
		WoundLengthPx:             250,
		WoundWidthPx:              150,
		WoundAreaPx:               30000,
	}
}

func TestEstimate_MarkerScaleConversion(t *testing.T) {
	e := &MarkerScaleEstimator{MaxErrorPct: 5.0}
	m, err := e.Estimate(context.Background(), markerCapture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !m.LengthMM.Equal(decimal.NewFromInt(25)) {
		t.Errorf("length: expected 25mm, got %s", m.LengthMM)
	}
	if !m.WidthMM.Equal(decimal.NewFromInt(15)) {
		t.Errorf("width: expected 15mm, got %s", m.WidthMM)
	}
	if !m.AreaMM2.Equal(decimal.NewFromInt(300)) {
		t.Errorf("area: expected 300mm2, got %s", m.AreaMM2)
	}
	if !m.ErrorMarginPct.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("margin: expected 2.50, got %s", m.ErrorMarginPct)
	}
}

func TestEstimate_IsDeterministic(t *testing.T) {
	e := &MarkerScaleEstimator{MaxErrorPct: 5.0}
	first, err := e.Estimate(context.Background(), markerCapture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := e.Estimate(context.Background(), markerCapture())
		if err != nil {
			t.Fatalf("unexpected error on run %d: %v", i, err)
		}
		if !again.AreaMM2.Equal(first.AreaMM2) || !again.LengthMM.Equal(first.LengthMM) {
			t.Fatalf("run %d diverged: %s vs %s", i, again.AreaMM2, first.AreaMM2)
		}
	}
}

func TestEstimate_LowConfidenceWidensMargin(t *testing.T) {
	c := markerCapture()
	c.MarkerConfidence = 0.5 // 2.5 / 0.5 = 5.0, exactly at the ceiling

	e := &MarkerScaleEstimator{MaxErrorPct: 5.0}
	m, err := e.Estimate(context.Background(), c)
	if err != nil {
		t.Fatalf("margin equal to ceiling must pass, got %v", err)
	}
	if !m.ErrorMarginPct.Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected 5.00 margin, got %s", m.ErrorMarginPct)
	}
}

func TestEstimate_MarginOverCeilingRejected(t *testing.T) {
	c := markerCapture()
	c.MarkerConfidence = 0.3 // 2.5 / 0.3 = 8.33 > 5

	e := &MarkerScaleEstimator{MaxErrorPct: 5.0}
	_, err := e.Estimate(context.Background(), c)
	if !errors.Is(err, ErrMeasurementUncertain) {
		t.Fatalf("expected ErrMeasurementUncertain, got %v", err)
	}
}

func TestEstimate_NoMarkerEnvelopeExceedsDefaultCeiling(t *testing.T) {
	c := markerCapture()
	c.CalibrationMarkerDetected = false // envelope widens to 8%

	e := &MarkerScaleEstimator{MaxErrorPct: 5.0}
	_, err := e.Estimate(context.Background(), c)
	if !errors.Is(err, ErrMeasurementUncertain) {
		t.Fatalf("expected ErrMeasurementUncertain for uncalibrated capture, got %v", err)
	}
}

func TestEstimate_NoMarkerAcceptedUnderRelaxedCeiling(t *testing.T) {
	c := markerCapture()
	c.CalibrationMarkerDetected = false

	e := &MarkerScaleEstimator{MaxErrorPct: 10.0}
	m, err := e.Estimate(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.ErrorMarginPct.Equal(decimal.NewFromInt(8)) {
		t.Errorf("expected 8.00 margin without marker, got %s", m.ErrorMarginPct)
	}
}

func TestEstimate_RoundsDepthPassThrough(t *testing.T) {
	c := markerCapture()
	depth := decimal.NewFromFloat(6.456)
	c.DepthMM = &depth

	e := &MarkerScaleEstimator{MaxErrorPct: 5.0}
	m, err := e.Estimate(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.DepthMM == nil || !m.DepthMM.Equal(decimal.NewFromFloat(6.46)) {
		t.Errorf("expected depth 6.46, got %v", m.DepthMM)
	}
}

func TestEstimate_MissingScaleReference(t *testing.T) {
	c := markerCapture()
	c.MarkerLengthPx = 0

	e := &MarkerScaleEstimator{MaxErrorPct: 5.0}
	_, err := e.Estimate(context.Background(), c)
	if !errors.Is(err, ErrMeasurementUncertain) {
		t.Fatalf("expected ErrMeasurementUncertain without scale reference, got %v", err)
	}
}

func TestEstimate_DistanceReferenceWithoutMarker(t *testing.T) {
	c := models.Capture{
		SensorDistanceMM: decimal.NewFromInt(400),
		FocalLengthPx:    4000, // 0.1 mm per pixel
		WoundLengthPx:    250,
		WoundWidthPx:     150,
		WoundAreaPx:      30000,
	}

	e := &MarkerScaleEstimator{MaxErrorPct: 5.0}
	m, err := e.Estimate(context.Background(), c)
	if err != nil {
		t.Fatalf("ToF reference must pass the default ceiling, got %v", err)
	}
	if !m.LengthMM.Equal(decimal.NewFromInt(25)) {
		t.Errorf("length: expected 25mm, got %s", m.LengthMM)
	}
	if !m.AreaMM2.Equal(decimal.NewFromInt(300)) {
		t.Errorf("area: expected 300mm2, got %s", m.AreaMM2)
	}
	if !m.ErrorMarginPct.Equal(decimal.NewFromInt(4)) {
		t.Errorf("expected 4.00 margin for distance reference, got %s", m.ErrorMarginPct)
	}
}

func TestEstimate_MarkerOutranksDistanceReference(t *testing.T) {
	c := markerCapture()
	c.SensorDistanceMM = decimal.NewFromInt(800)
	c.FocalLengthPx = 4000 // would read 0.2 mm per pixel

	e := &MarkerScaleEstimator{MaxErrorPct: 5.0}
	m, err := e.Estimate(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.LengthMM.Equal(decimal.NewFromInt(25)) {
		t.Errorf("marker scale must win: expected 25mm, got %s", m.LengthMM)
	}
	if !m.ErrorMarginPct.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("expected 2.50 margin, got %s", m.ErrorMarginPct)
	}
}
