package workflow

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"github.com/disintegration/imaging"
	"github.com/shopspring/decimal"
)

// MeasurementEstimator converts capture geometry into calibrated physical
// measurements. A CV-backed implementation and the deterministic marker-scale
// implementation are interchangeable behind this contract.
type MeasurementEstimator interface {
	Estimate(ctx context.Context, capture models.Capture) (models.Measurement, error)
}

// MarkerScaleEstimator derives a pixel-to-mm scale from the known physical
// size of the calibration marker and applies it to the device-reported wound
// geometry. Identical captures always produce identical measurements.
type MarkerScaleEstimator struct {
	MaxErrorPct float64
}

func NewMarkerScaleEstimator() *MarkerScaleEstimator {
	return &MarkerScaleEstimator{MaxErrorPct: config.MaxMeasurementErrorPct()}
}

func (e *MarkerScaleEstimator) Estimate(ctx context.Context, capture models.Capture) (models.Measurement, error) {
	var m models.Measurement

	if len(capture.ImageData) > 0 {
		img, err := imaging.Decode(bytes.NewReader(capture.ImageData))
		if err != nil {
			return m, fmt.Errorf("%w: undecodable image: %v", ErrMeasurementUncertain, err)
		}
		bounds := img.Bounds()
		if capture.WoundLengthPx > float64(bounds.Dx()) || capture.WoundWidthPx > float64(bounds.Dy()) {
			return m, fmt.Errorf("%w: wound geometry exceeds image bounds", ErrMeasurementUncertain)
		}
	}

	marginPct := errorMarginPct(capture)
	if marginPct > e.MaxErrorPct {
		return m, fmt.Errorf("%w: error margin %.1f%% exceeds %.1f%% ceiling",
			ErrMeasurementUncertain, marginPct, e.MaxErrorPct)
	}

	scale, err := mmPerPixel(capture)
	if err != nil {
		return m, err
	}

	m.LengthMM = decimal.NewFromFloat(capture.WoundLengthPx * scale).Round(2)
	m.WidthMM = decimal.NewFromFloat(capture.WoundWidthPx * scale).Round(2)
	m.AreaMM2 = decimal.NewFromFloat(capture.WoundAreaPx * scale * scale).Round(2)
	if capture.DepthMM != nil {
		depth := capture.DepthMM.Round(2)
		m.DepthMM = &depth
	}
	m.ErrorMarginPct = decimal.NewFromFloat(marginPct).Round(2)
	return m, nil
}

// errorMarginPct follows the calibrated/uncalibrated accuracy envelope: a
// detected marker anchors the scale at 2.5% nominal error, degraded by low
// detection confidence; a ToF distance reference carries a 4% envelope;
// without either reference the envelope widens to 8%.
func errorMarginPct(capture models.Capture) float64 {
	if !capture.CalibrationMarkerDetected {
		if hasDistanceReference(capture) {
			return 4.0
		}
		return 8.0
	}
	conf := capture.MarkerConfidence
	if conf <= 0 {
		conf = 1.0
	}
	conf = math.Min(math.Max(conf, 0.25), 1.0)
	return 2.5 / conf
}

func hasDistanceReference(capture models.Capture) bool {
	return capture.SensorDistanceMM.IsPositive() && capture.FocalLengthPx > 0
}

// mmPerPixel derives the scale from the marker when one was detected,
// otherwise from the ToF sensor distance via the pinhole model
// (mm/px = distance / focal length in px).
func mmPerPixel(capture models.Capture) (float64, error) {
	if capture.MarkerLengthPx > 0 && capture.MarkerSizeMM.IsPositive() {
		markerMM, _ := capture.MarkerSizeMM.Float64()
		return markerMM / capture.MarkerLengthPx, nil
	}
	if hasDistanceReference(capture) {
		distanceMM, _ := capture.SensorDistanceMM.Float64()
		return distanceMM / capture.FocalLengthPx, nil
	}
	return 0, fmt.Errorf("%w: no usable pixel-to-mm reference", ErrMeasurementUncertain)
}
