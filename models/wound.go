package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Wound struct {
	ID         string        `gorm:"primary_key;size:36" json:"id"`
	FacilityId string        `gorm:"size:64;not null;index;index:idx_wound_facility_patient,priority:1" json:"facility_id"`
	PatientId  string        `gorm:"size:36;not null;index:idx_wound_facility_patient,priority:2" json:"patient_id"`
	Etiology   WoundEtiology `gorm:"type:enum('pressure','venous','arterial','diabetic','surgical','traumatic','unknown');default:'unknown'" json:"etiology"`
	Location   string        `gorm:"size:100" json:"location"`
	Laterality string        `gorm:"size:20" json:"laterality"`
	Status     WoundStatus   `gorm:"type:enum('active','healed','stalled','regressed','closed');not null;default:'active';index" json:"status"`
	Notes      string        `gorm:"type:text" json:"notes"`

	// Denormalized trend state. Recomputed from confirmed scans on every
	// confirmation and by the trend-rebuild tool; overwriting is idempotent.
	BaselineScanId     *string          `gorm:"size:36" json:"baseline_scan_id"`
	BaselineAreaMM2    *decimal.Decimal `gorm:"type:decimal(12,2)" json:"baseline_area_mm2"`
	BaselineCapturedAt *time.Time       `json:"baseline_captured_at"`
	LatestScanId       *string          `gorm:"size:36" json:"latest_scan_id"`
	LatestAreaMM2      *decimal.Decimal `gorm:"type:decimal(12,2)" json:"latest_area_mm2"`
	LatestPAR          *decimal.Decimal `gorm:"type:decimal(7,2)" json:"latest_par"`
	LastConfirmedAt    *time.Time       `json:"last_confirmed_at"`
	ConfirmedScanCount int              `gorm:"not null;default:0" json:"confirmed_scan_count"`
	IsStalled          bool             `gorm:"not null;default:false;index" json:"is_stalled"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWound struct {
	PatientId  string `json:"patient_id" binding:"required"`
	Etiology   string `json:"etiology" binding:"required"`
	Location   string `json:"location" binding:"required"`
	Laterality string `json:"laterality"`
	Notes      string `json:"notes"`
}

func CreateWound(ctx context.Context, facilityId string, input NewWound) (*Wound, error) {
	etiology, err := ParseWoundEtiology(input.Etiology)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Patient](ctx, facilityId, input.PatientId); err != nil {
		return nil, err
	}
	wound := Wound{
		ID:         uuid.NewString(),
		FacilityId: facilityId,
		PatientId:  input.PatientId,
		Etiology:   etiology,
		Location:   input.Location,
		Laterality: input.Laterality,
		Status:     WoundStatusActive,
		Notes:      input.Notes,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&wound).Error; err != nil {
		return nil, err
	}
	return &wound, nil
}

func GetWound(ctx context.Context, facilityId string, id string) (*Wound, error) {
	return utils.FetchModel[Wound](ctx, facilityId, id)
}

func GetWoundsForPatient(ctx context.Context, facilityId string, patientId string) ([]Wound, error) {
	db := config.GetDB()
	var wounds []Wound
	err := db.WithContext(ctx).Model(&Wound{}).
		Where("facility_id = ? AND patient_id = ?", facilityId, patientId).
		Order("created_at ASC").
		Find(&wounds).Error
	return wounds, err
}

func (wound Wound) RemoveInstanceRedis() error {
	return utils.ClearTrendCache(wound.ID)
}

// TrendPoint is one confirmed scan projected onto the healing timeline.
type TrendPoint struct {
	ScanId          string           `json:"scan_id"`
	CapturedAt      time.Time        `json:"captured_at"`
	AreaMM2         decimal.Decimal  `json:"area_mm2"`
	ParFromBaseline *decimal.Decimal `json:"par_from_baseline"`
	SeverityScore   float64          `json:"severity_score"`
	DominantTissue  TissueType       `json:"dominant_tissue"`
}
