package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Capture is the raw client-submitted payload for one wound scan. It is
// immutable once admitted: the analysis pipeline consumes it exactly once and
// the sync queue stores it verbatim for deferred replay.
type Capture struct {
	CaptureId  string    `json:"capture_id" binding:"required,uuid4"`
	WoundId    string    `json:"wound_id"`
	DeviceId   string    `json:"device_id" binding:"required"`
	LocalSeq   int64     `json:"local_seq"`
	CapturedAt time.Time `json:"captured_at" binding:"required"`

	// Calibration inputs from the device capture session.
	CaptureAngleDegrees       float64         `json:"capture_angle_degrees"`
	FocusScore                float64         `json:"focus_score"`
	CalibrationMarkerDetected bool            `json:"calibration_marker_detected"`
	MarkerSizeMM              decimal.Decimal `json:"marker_size_mm"`
	MarkerLengthPx            float64         `json:"marker_length_px"`
	MarkerConfidence          float64         `json:"marker_confidence"`

	// ToF scale reference for markerless captures: camera-to-wound distance
	// plus the device camera's focal length in pixels.
	SensorDistanceMM decimal.Decimal `json:"sensor_distance_mm"`
	FocalLengthPx    float64         `json:"focal_length_px"`

	// On-device segmentation geometry, in pixels. The backend owns the
	// pixel-to-mm conversion so every device reports in the same space.
	WoundLengthPx float64 `json:"wound_length_px"`
	WoundWidthPx  float64 `json:"wound_width_px"`
	WoundAreaPx   float64 `json:"wound_area_px"`

	// Depth from the ToF sensor, absent on devices without one.
	DepthMM *decimal.Decimal `json:"depth_mm"`

	// Per-pixel tissue label counts from on-device segmentation.
	TissuePixels map[TissueType]int64 `json:"tissue_pixels"`

	// Sub-epidermal detection inputs.
	ThermalDeltaCelsius  *float64 `json:"thermal_delta_celsius"`
	RednessDurationHours *float64 `json:"redness_duration_hours"`

	ExudateLevel  ExudateLevel `json:"exudate_level"`
	ClinicalNotes string       `json:"clinical_notes"`

	// Base64 image payload; cleared after upload to object storage.
	ImageData []byte `json:"image_data"`
}
