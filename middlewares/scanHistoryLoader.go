package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
)

type scanHistoryReader struct {
	db *gorm.DB
}

// getScanHistories batches confirmed-scan history per wound, in capture order.
func (r *scanHistoryReader) getScanHistories(ctx context.Context, woundIds []string) []*dataloader.Result[[]*models.Scan] {
	var results []models.Scan

	err := r.db.WithContext(ctx).
		Where("wound_id IN ? AND status = ?", woundIds, models.ScanStatusClinicianConfirmed).
		Order("captured_at ASC, id ASC").
		Find(&results).Error
	if err != nil {
		return handleError[[]*models.Scan](len(woundIds), err)
	}

	resultMap := make(map[string][]*models.Scan, len(woundIds))
	for i := range results {
		resultMap[results[i].WoundId] = append(resultMap[results[i].WoundId], &results[i])
	}
	loaderResults := make([]*dataloader.Result[[]*models.Scan], 0, len(woundIds))
	for _, id := range woundIds {
		loaderResults = append(loaderResults, &dataloader.Result[[]*models.Scan]{Data: resultMap[id]})
	}
	return loaderResults
}

// GetScanHistory returns a wound's confirmed scans efficiently
func GetScanHistory(ctx context.Context, woundId string) ([]*models.Scan, error) {
	loaders := For(ctx)
	return loaders.ScanHistoryLoader.Load(ctx, woundId)()
}
