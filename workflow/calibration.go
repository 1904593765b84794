package workflow

import (
	"fmt"
	"math"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/models"
)

// CalibrationPolicy is resolved once per admission so a capture is judged
// against a stable snapshot of facility policy.
type CalibrationPolicy struct {
	RequireMarker     bool
	AngleToleranceDeg float64
	MinFocusScore     float64
}

func CurrentCalibrationPolicy() CalibrationPolicy {
	return CalibrationPolicy{
		RequireMarker:     config.RequireCalibrationMarker(),
		AngleToleranceDeg: config.CaptureAngleTolerance(),
		MinFocusScore:     0.4,
	}
}

type calibrationRule struct {
	reason models.RejectionReason
	check  func(models.Capture, CalibrationPolicy) (ok bool, detail string)
}

// Rules run in fixed order; the first failing rule names the rejection.
var calibrationRules = []calibrationRule{
	{
		reason: models.RejectionReasonAngleOutOfTolerance,
		check: func(c models.Capture, p CalibrationPolicy) (bool, string) {
			dev := math.Abs(c.CaptureAngleDegrees - 90.0)
			if dev > p.AngleToleranceDeg {
				return false, fmt.Sprintf("capture angle %.1f deviates %.1f from perpendicular (tolerance %.1f)",
					c.CaptureAngleDegrees, dev, p.AngleToleranceDeg)
			}
			return true, ""
		},
	},
	{
		reason: models.RejectionReasonMissingCalibrationMarker,
		check: func(c models.Capture, p CalibrationPolicy) (bool, string) {
			if p.RequireMarker && !c.CalibrationMarkerDetected {
				return false, "facility policy requires a calibration marker"
			}
			return true, ""
		},
	},
	{
		reason: models.RejectionReasonLowImageQuality,
		check: func(c models.Capture, p CalibrationPolicy) (bool, string) {
			if c.FocusScore < p.MinFocusScore {
				return false, fmt.Sprintf("focus score %.2f below floor %.2f", c.FocusScore, p.MinFocusScore)
			}
			return true, ""
		},
	},
}

// ValidateCalibration gates the pipeline. A rejected capture is persisted as
// a rejected Scan by the caller and never retried automatically.
func ValidateCalibration(capture models.Capture, policy CalibrationPolicy) error {
	for _, rule := range calibrationRules {
		if ok, detail := rule.check(capture, policy); !ok {
			return &CalibrationError{Reason: rule.reason, Detail: detail}
		}
	}
	return nil
}
