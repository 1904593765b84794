package models

import "fmt"

// ScanStatus is the lifecycle state of a wound scan.
// Terminal states (clinician_confirmed, rejected) are never re-entered.
type ScanStatus string

const (
	ScanStatusPendingAI          ScanStatus = "pending_ai"
	ScanStatusAIComplete         ScanStatus = "ai_complete"
	ScanStatusClinicianConfirmed ScanStatus = "clinician_confirmed"
	ScanStatusRejected           ScanStatus = "rejected"
)

func (s ScanStatus) IsTerminal() bool {
	return s == ScanStatusClinicianConfirmed || s == ScanStatusRejected
}

type RejectionReason string

const (
	RejectionReasonAngleOutOfTolerance      RejectionReason = "angle_out_of_tolerance"
	RejectionReasonMissingCalibrationMarker RejectionReason = "missing_calibration_marker"
	RejectionReasonLowImageQuality          RejectionReason = "low_image_quality"
	RejectionReasonMeasurementUncertain     RejectionReason = "measurement_uncertain"
	RejectionReasonAnalysisTimeout          RejectionReason = "analysis_timeout"
	RejectionReasonClinicianOverride        RejectionReason = "clinician_override"
)

type TissueType string

const (
	TissueTypeGranulation TissueType = "granulation"
	TissueTypeSlough      TissueType = "slough"
	TissueTypeEschar      TissueType = "eschar"
)

// severityRank orders tissue classes for dominant-class tie breaks.
// More severe tissue wins an equal-percentage tie.
var tissueSeverityRank = map[TissueType]int{
	TissueTypeGranulation: 0,
	TissueTypeSlough:      1,
	TissueTypeEschar:      2,
}

func (t TissueType) SeverityRank() int {
	return tissueSeverityRank[t]
}

type ExudateLevel string

const (
	ExudateLevelNone     ExudateLevel = "none"
	ExudateLevelLow      ExudateLevel = "low"
	ExudateLevelModerate ExudateLevel = "moderate"
	ExudateLevelHigh     ExudateLevel = "high"
)

func ParseExudateLevel(s string) (ExudateLevel, error) {
	switch ExudateLevel(s) {
	case ExudateLevelNone, ExudateLevelLow, ExudateLevelModerate, ExudateLevelHigh:
		return ExudateLevel(s), nil
	}
	return "", fmt.Errorf("invalid exudate level %q", s)
}

type WoundEtiology string

const (
	EtiologyPressure  WoundEtiology = "pressure"
	EtiologyVenous    WoundEtiology = "venous"
	EtiologyArterial  WoundEtiology = "arterial"
	EtiologyDiabetic  WoundEtiology = "diabetic"
	EtiologySurgical  WoundEtiology = "surgical"
	EtiologyTraumatic WoundEtiology = "traumatic"
	EtiologyUnknown   WoundEtiology = "unknown"
)

func ParseWoundEtiology(s string) (WoundEtiology, error) {
	switch WoundEtiology(s) {
	case EtiologyPressure, EtiologyVenous, EtiologyArterial, EtiologyDiabetic,
		EtiologySurgical, EtiologyTraumatic, EtiologyUnknown:
		return WoundEtiology(s), nil
	}
	return "", fmt.Errorf("invalid wound etiology %q", s)
}

type WoundStatus string

const (
	WoundStatusActive    WoundStatus = "active"
	WoundStatusHealed    WoundStatus = "healed"
	WoundStatusStalled   WoundStatus = "stalled"
	WoundStatusRegressed WoundStatus = "regressed"
	WoundStatusClosed    WoundStatus = "closed"
)

type Urgency string

const (
	UrgencyRoutine   Urgency = "routine"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

type ScanEventType string

const (
	ScanEventScanConfirmed ScanEventType = "scan.confirmed"
	ScanEventScanRejected  ScanEventType = "scan.rejected"
	ScanEventAlertRaised   ScanEventType = "alert.raised"
)

type AlertType string

const (
	AlertTypeSeveritySpike     AlertType = "severity_spike"
	AlertTypeStalledHealing    AlertType = "stalled_healing"
	AlertTypeProjectedStage4   AlertType = "projected_stage4"
	AlertTypeSubEpidermalEarly AlertType = "sub_epidermal_early"
)

type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

type UserRole string

const (
	UserRoleAdmin     UserRole = "A"
	UserRoleClinician UserRole = "C"
	UserRoleNurse     UserRole = "N"
)
