package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/utils"
	"gorm.io/gorm"
)

// AuditRecord captures who did what to which clinical resource. Rows are
// append-only; nothing updates or deletes them.
type AuditRecord struct {
	ID            int       `gorm:"primary_key" json:"id"`
	FacilityId    string    `gorm:"size:64;not null;index:idx_audit_facility_time,priority:1" json:"facility_id"`
	UserId        int       `gorm:"index" json:"user_id"`
	Username      string    `gorm:"size:100" json:"username"`
	Action        string    `gorm:"size:50;not null;index" json:"action"`
	ResourceType  string    `gorm:"size:50;not null" json:"resource_type"`
	ResourceId    string    `gorm:"size:36;not null;index" json:"resource_id"`
	Detail        []byte    `gorm:"type:blob" json:"detail"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index:idx_audit_facility_time,priority:2" json:"created_at"`
}

// WriteAudit appends an audit row inside the caller's transaction so the
// audit trail commits or rolls back with the clinical change itself.
func WriteAudit(ctx context.Context, tx *gorm.DB, action string, resourceType string, resourceId string, detail interface{}) error {
	facilityId, _ := utils.GetFacilityIdFromContext(ctx)
	userId, _ := utils.GetUserIdFromContext(ctx)
	username, _ := utils.GetUsernameFromContext(ctx)

	var detailInByte []byte
	if detail != nil {
		var err error
		detailInByte, err = json.Marshal(detail)
		if err != nil {
			return err
		}
	}
	record := AuditRecord{
		FacilityId:    facilityId,
		UserId:        userId,
		Username:      username,
		Action:        action,
		ResourceType:  resourceType,
		ResourceId:    resourceId,
		Detail:        detailInByte,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func AuditTrailForResource(ctx context.Context, facilityId string, resourceType string, resourceId string) ([]AuditRecord, error) {
	db := config.GetDB()
	var records []AuditRecord
	err := db.WithContext(ctx).Model(&AuditRecord{}).
		Where("facility_id = ? AND resource_type = ? AND resource_id = ?", facilityId, resourceType, resourceId).
		Order("created_at ASC, id ASC").
		Find(&records).Error
	return records, err
}
