package workflow

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
)

func testPolicy() CalibrationPolicy {
	return CalibrationPolicy{
		RequireMarker:     true,
		AngleToleranceDeg: 10.0,
		MinFocusScore:     0.4,
	}
}

func goodCapture() models.Capture {
	return models.Capture{
		CaptureAngleDegrees:       88.0,
		FocusScore:                0.9,
		CalibrationMarkerDetected: true,
	}
}

func TestValidateCalibration_AcceptsWithinTolerance(t *testing.T) {
	if err := ValidateCalibration(goodCapture(), testPolicy()); err != nil {
		t.Fatalf("expected capture to pass calibration, got %v", err)
	}
}

func TestValidateCalibration_RejectsAngleOutOfTolerance(t *testing.T) {
	c := goodCapture()
	c.CaptureAngleDegrees = 75.0 // 15 degrees off perpendicular

	err := ValidateCalibration(c, testPolicy())
	if !errors.Is(err, ErrCalibrationRejected) {
		t.Fatalf("expected ErrCalibrationRejected, got %v", err)
	}
	if got := RejectionReasonForError(err); got != models.RejectionReasonAngleOutOfTolerance {
		t.Fatalf("expected angle_out_of_tolerance, got %s", got)
	}
}

func TestValidateCalibration_BoundaryAngleIsAccepted(t *testing.T) {
	c := goodCapture()
	c.CaptureAngleDegrees = 100.0 // exactly at tolerance

	if err := ValidateCalibration(c, testPolicy()); err != nil {
		t.Fatalf("deviation equal to tolerance must pass, got %v", err)
	}
}

func TestValidateCalibration_MarkerPolicy(t *testing.T) {
	c := goodCapture()
	c.CalibrationMarkerDetected = false

	err := ValidateCalibration(c, testPolicy())
	if got := RejectionReasonForError(err); got != models.RejectionReasonMissingCalibrationMarker {
		t.Fatalf("expected missing_calibration_marker, got %s (err=%v)", got, err)
	}

	// Same capture under a facility that does not require markers.
	p := testPolicy()
	p.RequireMarker = false
	if err := ValidateCalibration(c, p); err != nil {
		t.Fatalf("marker-optional policy must accept, got %v", err)
	}
}

func TestValidateCalibration_FocusFloor(t *testing.T) {
	c := goodCapture()
	c.FocusScore = 0.1

	err := ValidateCalibration(c, testPolicy())
	if got := RejectionReasonForError(err); got != models.RejectionReasonLowImageQuality {
		t.Fatalf("expected low_image_quality, got %s (err=%v)", got, err)
	}
}

func TestValidateCalibration_AngleCheckedBeforeMarker(t *testing.T) {
	c := goodCapture()
	c.CaptureAngleDegrees = 60.0
	c.CalibrationMarkerDetected = false

	err := ValidateCalibration(c, testPolicy())
	if got := RejectionReasonForError(err); got != models.RejectionReasonAngleOutOfTolerance {
		t.Fatalf("rule order changed: expected angle_out_of_tolerance, got %s", got)
	}
}
