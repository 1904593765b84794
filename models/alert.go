package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
)

type Alert struct {
	ID             int           `gorm:"primary_key" json:"id"`
	FacilityId     string        `gorm:"size:64;not null;index:idx_alert_facility_open,priority:1" json:"facility_id"`
	WoundId        string        `gorm:"size:36;not null;index" json:"wound_id"`
	ScanId         *string       `gorm:"size:36;index" json:"scan_id"`
	Type           AlertType     `gorm:"type:enum('severity_spike','stalled_healing','projected_stage4','sub_epidermal_early');not null" json:"type"`
	Severity       AlertSeverity `gorm:"type:enum('info','warning','critical');not null" json:"severity"`
	Message        string        `gorm:"type:text" json:"message"`
	Acknowledged   bool          `gorm:"not null;default:false;index:idx_alert_facility_open,priority:2" json:"acknowledged"`
	AcknowledgedBy *int          `json:"acknowledged_by"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at"`
	CreatedAt      time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpsertAlert creates the alert unless an unacknowledged alert of the same
// type is already open for the wound. Re-running analysis must not stack
// duplicate alerts.
func UpsertAlert(ctx context.Context, alert Alert) error {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&Alert{}).
		Where("wound_id = ? AND type = ? AND acknowledged = false", alert.WoundId, alert.Type).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&alert).Error
}

func OpenAlertsForFacility(ctx context.Context, facilityId string) ([]Alert, error) {
	db := config.GetDB()
	var alerts []Alert
	err := db.WithContext(ctx).Model(&Alert{}).
		Where("facility_id = ? AND acknowledged = false", facilityId).
		Order("created_at DESC").
		Find(&alerts).Error
	return alerts, err
}

func AcknowledgeAlert(ctx context.Context, facilityId string, id int, userId int) error {
	db := config.GetDB()
	now := time.Now()
	return db.WithContext(ctx).Model(&Alert{}).
		Where("id = ? AND facility_id = ?", id, facilityId).
		Updates(map[string]interface{}{
			"acknowledged":    true,
			"acknowledged_by": userId,
			"acknowledged_at": &now,
		}).Error
}
