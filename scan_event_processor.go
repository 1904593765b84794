package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"bitbucket.org/mmdatafocus/woundcare_backend/workflow"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const scanEventHandlerName = "scan-event-forwarder"

var (
	ehrClient     *resty.Client
	ehrClientOnce sync.Once
)

// getEHRClient returns a shared client for the facility's EHR integration
// endpoint, or nil when EHR_WEBHOOK_URL is not configured.
func getEHRClient() *resty.Client {
	ehrClientOnce.Do(func() {
		url := os.Getenv("EHR_WEBHOOK_URL")
		if url == "" {
			return
		}
		ehrClient = resty.New().
			SetBaseURL(url).
			SetTimeout(20 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(time.Second)
		if key := os.Getenv("EHR_WEBHOOK_API_KEY"); key != "" {
			ehrClient.SetHeader("X-API-Key", key)
		}
	})
	return ehrClient
}

// ProcessScanEvent is the consumer side of the scan event outbox: it forwards
// the event to the EHR integration endpoint and marks the outbox row
// processed. Delivery is at-least-once; DB idempotency keys make the marking
// exactly-once.
func ProcessScanEvent(ctx context.Context, logger *logrus.Logger, m config.ScanEventMessage) error {
	db := config.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		// Enforce strict per-wound ordering across instances.
		if err := workflow.AcquireWoundLock(tx.WithContext(ctx), m.WoundId); err != nil {
			return err
		}
		defer workflow.ReleaseWoundLock(tx.WithContext(ctx), m.WoundId)

		skip, err := workflow.BeginIdempotency(tx, m.FacilityId, scanEventHandlerName, strconv.Itoa(m.ID))
		if err != nil {
			return err
		}
		if skip {
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"field":       "ProcessScanEvent",
					"facility_id": m.FacilityId,
					"wound_id":    m.WoundId,
					"scan_id":     m.ScanId,
					"record_id":   m.ID,
				}).Info("scan event already processed; skipping")
			}
			return nil
		}

		if err := forwardToEHR(ctx, m); err != nil {
			// Returning error rolls the tx back; Pub/Sub (or the direct
			// processor) retries the whole delivery.
			return err
		}

		now := time.Now().UTC()
		if err := tx.WithContext(ctx).Model(&models.ScanEventRecord{}).
			Where("id = ? AND facility_id = ?", m.ID, m.FacilityId).
			Updates(map[string]interface{}{
				"is_processed": true,
				"processed_at": &now,
			}).Error; err != nil {
			return err
		}

		if err := workflow.MarkIdempotencySucceeded(tx, m.FacilityId, scanEventHandlerName, strconv.Itoa(m.ID)); err != nil {
			return err
		}

		if logger != nil {
			logger.WithFields(logrus.Fields{
				"field":          "ProcessScanEvent",
				"facility_id":    m.FacilityId,
				"wound_id":       m.WoundId,
				"scan_id":        m.ScanId,
				"event_type":     m.EventType,
				"record_id":      m.ID,
				"correlation_id": m.CorrelationId,
			}).Info("scan event forwarded")
		}
		return nil
	})
}

func forwardToEHR(ctx context.Context, m config.ScanEventMessage) error {
	client := getEHRClient()
	if client == nil {
		// No EHR integration configured; events are consumed locally.
		return nil
	}

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("X-Correlation-Id", m.CorrelationId).
		SetBody(m).
		Post("/wound-events")
	if err != nil {
		return fmt.Errorf("ehr forward: %w", err)
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return errors.New("ehr forward: endpoint returned " + strconv.Itoa(resp.StatusCode()))
	}
	return nil
}
