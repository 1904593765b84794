// trend-rebuild recomputes the healing trend for one wound or every wound of
// a facility from its confirmed scan history. Use it after data repairs or
// after replaying a large offline backlog out of band.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"bitbucket.org/mmdatafocus/woundcare_backend/utils"
	"bitbucket.org/mmdatafocus/woundcare_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	facilityID := flag.String("facility-id", "", "Required: facility id")
	woundID := flag.String("wound-id", "", "Optional: single wound id (uuid)")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing wounds and continue rebuilding others")
	flag.Parse()

	if strings.TrimSpace(*facilityID) == "" {
		fmt.Fprintln(os.Stderr, "--facility-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	ctx := context.Background()
	ctx = utils.SetFacilityIdInContext(ctx, *facilityID)
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "System")

	var woundIDs []string
	if strings.TrimSpace(*woundID) != "" {
		woundIDs = []string{strings.TrimSpace(*woundID)}
	} else {
		if err := db.WithContext(ctx).Model(&models.Wound{}).
			Where("facility_id = ?", *facilityID).
			Order("id ASC").
			Pluck("id", &woundIDs).Error; err != nil {
			fmt.Fprintf(os.Stderr, "discover wounds: %v\n", err)
			os.Exit(1)
		}
	}
	if len(woundIDs) == 0 {
		fmt.Println("no wounds to rebuild")
		return
	}

	failed := 0
	for _, id := range woundIDs {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := workflow.AcquireWoundLock(tx, id); err != nil {
				return err
			}
			defer workflow.ReleaseWoundLock(tx, id)

			wound, err := models.GetWound(ctx, *facilityID, id)
			if err != nil {
				return err
			}
			_, err = workflow.RecomputeWoundTrend(ctx, tx, wound)
			return err
		})
		if err != nil {
			failed++
			logger.WithFields(logrus.Fields{
				"field":       "trend-rebuild",
				"facility_id": *facilityID,
				"wound_id":    id,
			}).Error("rebuild failed: " + err.Error())
			if !*continueOnError {
				os.Exit(1)
			}
			continue
		}
		fmt.Printf("rebuilt trend: wound=%s\n", id)
	}

	fmt.Printf("done: %d wounds, %d failed\n", len(woundIDs), failed)
	if failed > 0 {
		os.Exit(1)
	}
}
