package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
)

type woundReader struct {
	db *gorm.DB
}

func (r *woundReader) getWounds(ctx context.Context, ids []string) []*dataloader.Result[*models.Wound] {
	var results []models.Wound

	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Wound](len(ids), err)
	}

	resultMap := make(map[string]*models.Wound, len(results))
	for i := range results {
		resultMap[results[i].ID] = &results[i]
	}
	loaderResults := make([]*dataloader.Result[*models.Wound], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*models.Wound]{Data: resultMap[id]})
	}
	return loaderResults
}

// GetWound returns a single wound by id efficiently
func GetWound(ctx context.Context, id string) (*models.Wound, error) {
	loaders := For(ctx)
	return loaders.WoundLoader.Load(ctx, id)()
}

// GetWounds returns many wounds by ids efficiently
func GetWounds(ctx context.Context, ids []string) ([]*models.Wound, []error) {
	loaders := For(ctx)
	return loaders.WoundLoader.LoadMany(ctx, ids)()
}

type patientReader struct {
	db *gorm.DB
}

func (r *patientReader) getPatients(ctx context.Context, ids []string) []*dataloader.Result[*models.Patient] {
	var results []models.Patient

	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Patient](len(ids), err)
	}

	resultMap := make(map[string]*models.Patient, len(results))
	for i := range results {
		resultMap[results[i].ID] = &results[i]
	}
	loaderResults := make([]*dataloader.Result[*models.Patient], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*models.Patient]{Data: resultMap[id]})
	}
	return loaderResults
}

func GetPatient(ctx context.Context, id string) (*models.Patient, error) {
	loaders := For(ctx)
	return loaders.PatientLoader.Load(ctx, id)()
}
