package workflow

import (
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
)

// Pipeline error taxonomy. Handlers map these onto HTTP statuses; rejected
// captures additionally persist a rejected Scan carrying the reason.
var (
	ErrCalibrationRejected       = errors.New("calibration rejected")
	ErrMeasurementUncertain      = errors.New("measurement uncertain")
	ErrClassificationUnavailable = errors.New("classification unavailable")
	ErrAnalysisTimeout           = errors.New("analysis timeout")
	ErrSyncConflict              = errors.New("sync conflict")
	ErrReplayPendingForWound     = errors.New("sync replay pending for wound")
)

// CalibrationError wraps ErrCalibrationRejected with the persisted reason.
type CalibrationError struct {
	Reason models.RejectionReason
	Detail string
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("calibration rejected: %s (%s)", e.Reason, e.Detail)
}

func (e *CalibrationError) Unwrap() error { return ErrCalibrationRejected }

// RejectionReasonForError maps a pipeline error onto the reason persisted on
// the rejected Scan.
func RejectionReasonForError(err error) models.RejectionReason {
	var calErr *CalibrationError
	switch {
	case errors.As(err, &calErr):
		return calErr.Reason
	case errors.Is(err, ErrMeasurementUncertain):
		return models.RejectionReasonMeasurementUncertain
	case errors.Is(err, ErrAnalysisTimeout):
		return models.RejectionReasonAnalysisTimeout
	default:
		return models.RejectionReasonLowImageQuality
	}
}
