package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RequireCalibrationMarker reflects facility policy: when true, captures
// without a detected calibration marker are rejected before measurement.
//
// Set via env:
// - REQUIRE_CALIBRATION_MARKER=true
func RequireCalibrationMarker() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("REQUIRE_CALIBRATION_MARKER")))
	if v == "" {
		// Default: markers required. Measurement accuracy depends on them.
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ClassifierMockMode short-circuits the external wound classifier with a
// deterministic local response. Used in dev and wherever the classifier
// service is not reachable.
//
// Set via env:
// - CLASSIFIER_MOCK_MODE=true
func ClassifierMockMode() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("CLASSIFIER_MOCK_MODE")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// MaxMeasurementErrorPct is the ceiling on the reported measurement error
// margin. Scans whose computed margin exceeds it are rejected as
// measurement_uncertain rather than published with an inflated bound.
//
// Set via env:
// - MAX_MEASUREMENT_ERROR_PCT=5
func MaxMeasurementErrorPct() float64 {
	return floatFromEnv("MAX_MEASUREMENT_ERROR_PCT", 5.0)
}

// CaptureAngleTolerance is the accepted deviation (degrees) from the 90°
// capture angle.
//
// Set via env:
// - CAPTURE_ANGLE_TOLERANCE_DEGREES=10
func CaptureAngleTolerance() float64 {
	return floatFromEnv("CAPTURE_ANGLE_TOLERANCE_DEGREES", 10.0)
}

// StalledPARThreshold / StalledWindowDays drive stall detection: a wound whose
// PAR improvement over the trailing window stays under the threshold is
// flagged stalled.
//
// Set via env:
// - STALLED_PAR_THRESHOLD=20
// - STALLED_WINDOW_DAYS=28
func StalledPARThreshold() float64 {
	return floatFromEnv("STALLED_PAR_THRESHOLD", 20.0)
}

func StalledWindowDays() int {
	v := strings.TrimSpace(os.Getenv("STALLED_WINDOW_DAYS"))
	if v == "" {
		return 28
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 28
	}
	return n
}

// Sub-epidermal detection thresholds (thermal hotspot plus persistent
// redness duration). Stage 1 is reachable from these signals alone.
//
// Set via env:
// - SUB_EPIDERMAL_THERMAL_DELTA=1.5
// - PERSISTENT_REDNESS_HOURS=1
func SubEpidermalThermalDelta() float64 {
	return floatFromEnv("SUB_EPIDERMAL_THERMAL_DELTA", 1.5)
}

func PersistentRednessHours() float64 {
	return floatFromEnv("PERSISTENT_REDNESS_HOURS", 1.0)
}

// AnalysisTimeout bounds one pipeline run, external classifier included.
//
// Set via env:
// - ANALYSIS_TIMEOUT_SECONDS=30
func AnalysisTimeout() time.Duration {
	v := strings.TrimSpace(os.Getenv("ANALYSIS_TIMEOUT_SECONDS"))
	if v == "" {
		return 30 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 30 * time.Second
	}
	return time.Duration(n) * time.Second
}

func floatFromEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
