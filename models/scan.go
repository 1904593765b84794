package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/utils"
	"github.com/shopspring/decimal"
)

// Measurement is the calibrated physical estimate derived from a capture.
type Measurement struct {
	LengthMM       decimal.Decimal  `gorm:"type:decimal(10,2)" json:"length_mm"`
	WidthMM        decimal.Decimal  `gorm:"type:decimal(10,2)" json:"width_mm"`
	AreaMM2        decimal.Decimal  `gorm:"type:decimal(12,2)" json:"area_mm2"`
	DepthMM        *decimal.Decimal `gorm:"type:decimal(10,2)" json:"depth_mm"`
	ErrorMarginPct decimal.Decimal  `gorm:"type:decimal(5,2)" json:"error_margin_pct"`
}

// TissueComposition percentages sum to 100 over the classified classes.
type TissueComposition struct {
	GranulationPct decimal.Decimal `gorm:"type:decimal(5,2)" json:"granulation_pct"`
	SloughPct      decimal.Decimal `gorm:"type:decimal(5,2)" json:"slough_pct"`
	EscharPct      decimal.Decimal `gorm:"type:decimal(5,2)" json:"eschar_pct"`
	DominantTissue TissueType      `gorm:"type:enum('granulation','slough','eschar')" json:"dominant_tissue"`
}

// SeverityAssessment is the external classifier's output plus local flags.
type SeverityAssessment struct {
	SeverityScore       float64 `json:"severity_score"`
	StageClassification string  `gorm:"size:50" json:"stage_classification"`
	AIConfidence        float64 `json:"ai_confidence"`
	ModelVersion        string  `gorm:"size:50" json:"model_version"`

	// NpiapStage is the locally scored NPIAP ordinal (0..4) from the threshold
	// rule table; StageClassification is the external classifier's verdict.
	NpiapStage        int  `json:"npiap_stage"`
	SubEpidermalAlert bool `json:"sub_epidermal_alert"`
}

type Recommendation struct {
	PrimaryDressing   string  `gorm:"size:100" json:"primary_dressing"`
	SecondaryDressing string  `gorm:"size:100" json:"secondary_dressing"`
	Interventions     string  `gorm:"type:text" json:"interventions"`
	Rationale         string  `gorm:"type:text" json:"rationale"`
	Urgency           Urgency `gorm:"type:enum('routine','urgent','emergency');default:'routine'" json:"urgency"`
	ReferralNeeded    bool    `json:"referral_needed"`
	ReferralReason    *string `gorm:"size:255" json:"referral_reason"`
}

// Scan is one analyzed wound capture. The row ID is the client-generated
// capture id, so a duplicate capture admission fails on the primary key.
type Scan struct {
	ID         string `gorm:"primary_key;size:36" json:"id"`
	FacilityId string `gorm:"size:64;not null;index" json:"facility_id"`
	WoundId    string `gorm:"size:36;not null;index:idx_scan_wound_captured,priority:1" json:"wound_id"`
	DeviceId   string `gorm:"size:64;index:uniq_device_seq,unique" json:"device_id"`
	// LocalSeq is the device's offline sequence counter. Live captures without
	// one store NULL so the (device_id, local_seq) unique pair only guards
	// sequenced rows; MySQL never collides NULLs in a unique index.
	LocalSeq   *int64 `gorm:"index:uniq_device_seq,unique" json:"local_seq"`
	OperatorId int    `gorm:"index" json:"operator_id"`

	// CapturedAt is the device clock at capture time. It orders scans within
	// a wound; server receipt time never does.
	CapturedAt    time.Time `gorm:"not null;index:idx_scan_wound_captured,priority:2" json:"captured_at"`
	OfflineOrigin bool      `gorm:"not null;default:false" json:"offline_origin"`

	CaptureAngleDegrees       float64 `json:"capture_angle_degrees"`
	FocusScore                float64 `json:"focus_score"`
	CalibrationMarkerDetected bool    `json:"calibration_marker_detected"`

	ImageObjectKey     string `gorm:"size:512" json:"image_object_key"`
	ThumbnailObjectKey string `gorm:"size:512" json:"thumbnail_object_key"`
	ImageHash          string `gorm:"size:64" json:"image_hash"`

	Measurement    Measurement        `gorm:"embedded" json:"measurement"`
	Tissue         TissueComposition  `gorm:"embedded" json:"tissue"`
	Severity       SeverityAssessment `gorm:"embedded" json:"severity"`
	Recommendation Recommendation     `gorm:"embedded" json:"recommendation"`

	ThermalDeltaCelsius  *float64     `json:"thermal_delta_celsius"`
	RednessDurationHours *float64     `json:"redness_duration_hours"`
	ExudateLevel         ExudateLevel `gorm:"type:enum('none','low','moderate','high');default:'none'" json:"exudate_level"`
	ClinicalNotes        string       `gorm:"type:text" json:"clinical_notes"`

	Status          ScanStatus       `gorm:"type:enum('pending_ai','ai_complete','clinician_confirmed','rejected');not null;default:'pending_ai';index" json:"status"`
	RejectionReason *RejectionReason `gorm:"size:50" json:"rejection_reason"`
	ConfirmedBy     *int             `json:"confirmed_by"`
	ConfirmedAt     *time.Time       `json:"confirmed_at"`

	// Percent area reduction relative to the wound's baseline scan, set when
	// the scan is confirmed. Nil on the baseline itself.
	ParFromBaseline *decimal.Decimal `gorm:"type:decimal(7,2)" json:"par_from_baseline"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

var ErrScanStateTerminal = errors.New("scan is in a terminal state")

// Transition validates the scan lifecycle. Terminal states are final.
func (s *Scan) Transition(next ScanStatus) error {
	if s.Status.IsTerminal() {
		return ErrScanStateTerminal
	}
	allowed := map[ScanStatus][]ScanStatus{
		ScanStatusPendingAI:  {ScanStatusAIComplete, ScanStatusRejected},
		ScanStatusAIComplete: {ScanStatusClinicianConfirmed, ScanStatusRejected},
	}
	for _, a := range allowed[s.Status] {
		if a == next {
			s.Status = next
			return nil
		}
	}
	return fmt.Errorf("invalid scan transition %s -> %s", s.Status, next)
}

func GetScan(ctx context.Context, id string) (*Scan, error) {
	return utils.FetchSingleModel[Scan](ctx, id)
}

// ConfirmedScansForWound returns the wound's confirmed scans in capture order.
// This is the only scan set trend computation may read.
func ConfirmedScansForWound(ctx context.Context, woundId string) ([]Scan, error) {
	db := config.GetDB()
	var scans []Scan
	err := db.WithContext(ctx).Model(&Scan{}).
		Where("wound_id = ? AND status = ?", woundId, ScanStatusClinicianConfirmed).
		Order("captured_at ASC, id ASC").
		Find(&scans).Error
	if err != nil {
		return nil, err
	}
	return scans, nil
}

func CountPendingScansForDevice(ctx context.Context, deviceId string) (int64, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&Scan{}).
		Where("device_id = ? AND status = ?", deviceId, ScanStatusPendingAI).
		Count(&count).Error
	return count, err
}

func (scan Scan) RemoveInstanceRedis() error {
	return utils.ClearTrendCache(scan.WoundId)
}
