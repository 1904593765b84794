package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/utils"
	"github.com/google/uuid"
)

// Patient is a thin local record keyed to the facility's EHR by MRN.
// Demographics live in the EHR; we store only what scan review screens need.
type Patient struct {
	ID         string    `gorm:"primary_key;size:36" json:"id"`
	FacilityId string    `gorm:"size:64;not null;index:uniq_facility_mrn,unique" json:"facility_id"`
	MRN        string    `gorm:"size:64;not null;index:uniq_facility_mrn,unique" json:"mrn"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPatient struct {
	MRN  string `json:"mrn" binding:"required"`
	Name string `json:"name" binding:"required"`
}

func CreatePatient(ctx context.Context, facilityId string, input NewPatient) (*Patient, error) {
	patient := Patient{
		ID:         uuid.NewString(),
		FacilityId: facilityId,
		MRN:        input.MRN,
		Name:       input.Name,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&patient).Error; err != nil {
		return nil, err
	}
	return &patient, nil
}

func GetPatient(ctx context.Context, facilityId string, id string) (*Patient, error) {
	return utils.FetchModel[Patient](ctx, facilityId, id)
}
