package middlewares

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders wrap the per-request data loaders injected via middleware. The
// analytics endpoints fan out over many wounds; batching keeps that at one
// query per entity type.
type Loaders struct {
	WoundLoader       *dataloader.Loader[string, *models.Wound]
	PatientLoader     *dataloader.Loader[string, *models.Patient]
	ScanHistoryLoader *dataloader.Loader[string, []*models.Scan]
}

func NewLoaders(conn *gorm.DB) *Loaders {
	woundReader := &woundReader{db: conn}
	patientReader := &patientReader{db: conn}
	scanHistoryReader := &scanHistoryReader{db: conn}

	return &Loaders{
		WoundLoader:       dataloader.NewBatchedLoader(woundReader.getWounds, dataloader.WithWait[string, *models.Wound](time.Millisecond)),
		PatientLoader:     dataloader.NewBatchedLoader(patientReader.getPatients, dataloader.WithWait[string, *models.Patient](time.Millisecond)),
		ScanHistoryLoader: dataloader.NewBatchedLoader(scanHistoryReader.getScanHistories, dataloader.WithWait[string, []*models.Scan](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func For(ctx context.Context) *Loaders {
	return ctx.Value(loadersKey).(*Loaders)
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}
