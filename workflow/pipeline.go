package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"bitbucket.org/mmdatafocus/woundcare_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const captureAdmissionHandler = "capture_admission"

// Pipeline runs one capture through calibration, concurrent measurement and
// tissue classification, external severity classification and the
// recommendation table, then persists the resulting Scan.
type Pipeline struct {
	DB         *gorm.DB
	Logger     *logrus.Logger
	Estimator  MeasurementEstimator
	Classifier ClassifierClient
	Timeout    time.Duration
}

func NewPipeline() *Pipeline {
	return &Pipeline{
		DB:         config.GetDB(),
		Logger:     config.GetLogger(),
		Estimator:  NewMarkerScaleEstimator(),
		Classifier: NewClassifierClient(),
		Timeout:    config.AnalysisTimeout(),
	}
}

// EnsureNoPendingReplay rejects live captures for a wound that still has
// unreplayed offline entries, so replay always lands first.
func EnsureNoPendingReplay(ctx context.Context, woundId string) error {
	count, err := models.CountPendingSyncForWound(ctx, woundId)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %d entries queued for wound %s", ErrReplayPendingForWound, count, woundId)
	}
	return nil
}

// ProcessCapture admits one capture exactly once. When the capture fails
// calibration or measurement, a rejected Scan is persisted and returned along
// with the taxonomy error; the capture is consumed either way. Transient
// classifier failures leave the admission retriable and persist nothing.
func (p *Pipeline) ProcessCapture(ctx context.Context, wound *models.Wound, capture models.Capture, offlineOrigin bool) (*models.Scan, error) {
	db := p.DB

	// Durable exactly-once admission keyed on the capture id.
	var skip bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		skip, err = BeginIdempotency(tx, wound.FacilityId, captureAdmissionHandler, capture.CaptureId)
		return err
	})
	if err != nil {
		return nil, err
	}
	if skip {
		return models.GetScan(ctx, capture.CaptureId)
	}

	scan, err := p.analyze(ctx, wound, capture, offlineOrigin)
	if err != nil {
		reason, rejectable := rejectionFor(err)
		if !rejectable {
			// Leave the admission retriable for transient failures.
			_ = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return MarkIdempotencyFailed(tx, wound.FacilityId, captureAdmissionHandler, capture.CaptureId, err)
			})
			return nil, err
		}
		rejected, persistErr := p.persistRejectedScan(ctx, wound, capture, offlineOrigin, reason, err)
		if persistErr != nil {
			return nil, persistErr
		}
		return rejected, err
	}

	if persistErr := p.persistScan(ctx, wound, capture, scan); persistErr != nil {
		return nil, persistErr
	}
	return scan, nil
}

// analyze runs the compute stages without touching the database.
func (p *Pipeline) analyze(ctx context.Context, wound *models.Wound, capture models.Capture, offlineOrigin bool) (*models.Scan, error) {
	actx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	if err := ValidateCalibration(capture, CurrentCalibrationPolicy()); err != nil {
		return nil, err
	}

	// Measurement and tissue classification are independent; run them
	// concurrently and join before severity scoring.
	type measOut struct {
		m   models.Measurement
		err error
	}
	type tissueOut struct {
		t   models.TissueComposition
		err error
	}
	measCh := make(chan measOut, 1)
	tissueCh := make(chan tissueOut, 1)
	go func() {
		m, err := p.Estimator.Estimate(actx, capture)
		measCh <- measOut{m, err}
	}()
	go func() {
		t, err := ClassifyTissue(capture)
		tissueCh <- tissueOut{t, err}
	}()

	var measurement models.Measurement
	var tissue models.TissueComposition
	for i := 0; i < 2; i++ {
		select {
		case <-actx.Done():
			return nil, fmt.Errorf("%w: %v", ErrAnalysisTimeout, actx.Err())
		case out := <-measCh:
			if out.err != nil {
				return nil, out.err
			}
			measurement = out.m
		case out := <-tissueCh:
			if out.err != nil {
				return nil, out.err
			}
			tissue = out.t
		}
	}

	classified, err := p.Classifier.Classify(actx, wound.ID, hashImage(capture.ImageData))
	if err != nil {
		return nil, err
	}

	stageIn := StageInput{Measurement: measurement, Tissue: tissue}
	if capture.ThermalDeltaCelsius != nil {
		stageIn.ThermalDeltaCelsius = *capture.ThermalDeltaCelsius
	}
	if capture.RednessDurationHours != nil {
		stageIn.RednessDurationHours = *capture.RednessDurationHours
	}
	npiapStage, subEpidermal := ScoreSeverity(stageIn)

	rec := Recommend(RecommendationInput{
		Tissue:            tissue,
		ExudateLevel:      capture.ExudateLevel,
		Etiology:          wound.Etiology,
		IsStalled:         wound.IsStalled,
		SubEpidermalAlert: subEpidermal,
	})

	scan := newScanFromCapture(ctx, wound, capture, offlineOrigin)
	scan.Measurement = measurement
	scan.Tissue = tissue
	scan.Severity = models.SeverityAssessment{
		SeverityScore:       classified.SeverityScore,
		StageClassification: classified.Stage,
		AIConfidence:        classified.Confidence,
		ModelVersion:        classified.ModelVersion,
		NpiapStage:          npiapStage,
		SubEpidermalAlert:   subEpidermal,
	}
	scan.Recommendation = rec
	scan.Status = models.ScanStatusAIComplete
	return scan, nil
}

func (p *Pipeline) persistScan(ctx context.Context, wound *models.Wound, capture models.Capture, scan *models.Scan) error {
	db := p.DB
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(scan).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return fmt.Errorf("%w: device %s local_seq %d already admitted",
					ErrSyncConflict, capture.DeviceId, capture.LocalSeq)
			}
			return err
		}
		if err := models.WriteAudit(ctx, tx, "scan.admitted", "scan", scan.ID, scan.Severity); err != nil {
			return err
		}
		return MarkIdempotencySucceeded(tx, wound.FacilityId, captureAdmissionHandler, capture.CaptureId)
	})
	if err != nil {
		return err
	}
	p.Logger.WithFields(logrus.Fields{
		"facility_id": wound.FacilityId,
		"wound_id":    wound.ID,
		"scan_id":     scan.ID,
		"status":      scan.Status,
	}).Info("scan admitted")
	return nil
}

// persistRejectedScan keeps the rejected capture for audit: corrections are
// new captures, never edits of this row.
func (p *Pipeline) persistRejectedScan(ctx context.Context, wound *models.Wound, capture models.Capture, offlineOrigin bool, reason models.RejectionReason, cause error) (*models.Scan, error) {
	scan := newScanFromCapture(ctx, wound, capture, offlineOrigin)
	scan.Status = models.ScanStatusRejected
	scan.RejectionReason = &reason

	db := p.DB
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(scan).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return fmt.Errorf("%w: device %s local_seq %d already admitted",
					ErrSyncConflict, capture.DeviceId, capture.LocalSeq)
			}
			return err
		}
		detail := map[string]string{"reason": string(reason), "cause": cause.Error()}
		if err := models.WriteAudit(ctx, tx, "scan.rejected", "scan", scan.ID, detail); err != nil {
			return err
		}
		return MarkIdempotencySucceeded(tx, wound.FacilityId, captureAdmissionHandler, capture.CaptureId)
	})
	if err != nil {
		return nil, err
	}
	p.Logger.WithFields(logrus.Fields{
		"facility_id": wound.FacilityId,
		"wound_id":    wound.ID,
		"scan_id":     scan.ID,
		"reason":      reason,
	}).Warn("scan rejected")
	return scan, nil
}

func newScanFromCapture(ctx context.Context, wound *models.Wound, capture models.Capture, offlineOrigin bool) *models.Scan {
	exudate := capture.ExudateLevel
	if exudate == "" {
		exudate = models.ExudateLevelNone
	}
	operatorId, _ := utils.GetUserIdFromContext(ctx)
	// Live captures may omit the offline sequence counter; only sequenced
	// rows participate in the device/seq unique pair.
	var localSeq *int64
	if offlineOrigin || capture.LocalSeq > 0 {
		seq := capture.LocalSeq
		localSeq = &seq
	}
	return &models.Scan{
		ID:                        capture.CaptureId,
		FacilityId:                wound.FacilityId,
		WoundId:                   wound.ID,
		DeviceId:                  capture.DeviceId,
		LocalSeq:                  localSeq,
		CapturedAt:                capture.CapturedAt,
		OfflineOrigin:             offlineOrigin,
		OperatorId:                operatorId,
		CaptureAngleDegrees:       capture.CaptureAngleDegrees,
		FocusScore:                capture.FocusScore,
		CalibrationMarkerDetected: capture.CalibrationMarkerDetected,
		ImageHash:                 hashImage(capture.ImageData),
		ThermalDeltaCelsius:       capture.ThermalDeltaCelsius,
		RednessDurationHours:      capture.RednessDurationHours,
		ExudateLevel:              exudate,
		ClinicalNotes:             capture.ClinicalNotes,
		Status:                    models.ScanStatusPendingAI,
	}
}

// rejectionFor reports whether the error consumes the capture (persisting a
// rejected Scan) or leaves the admission retriable.
func rejectionFor(err error) (models.RejectionReason, bool) {
	switch {
	case errors.Is(err, ErrCalibrationRejected),
		errors.Is(err, ErrMeasurementUncertain),
		errors.Is(err, ErrAnalysisTimeout):
		return RejectionReasonForError(err), true
	default:
		return "", false
	}
}

func hashImage(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
