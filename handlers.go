package main

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/woundcare_backend/middlewares"
	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"bitbucket.org/mmdatafocus/woundcare_backend/utils"
	"bitbucket.org/mmdatafocus/woundcare_backend/workflow"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		// Capture devices authenticate follow-up calls with a bearer JWT so
		// they can keep syncing after the redis session expires.
		deviceToken := ""
		if user, err := models.GetUserByUsername(c.Request.Context(), req.Username); err == nil {
			if jwt, err := utils.JwtGenerate(user.ID, string(user.Role)); err == nil {
				deviceToken = jwt
			}
		}
		c.JSON(http.StatusOK, gin.H{"data": info, "device_token": deviceToken})
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil || !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": true})
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req models.NewUser
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user.PrepareGive()
		c.JSON(http.StatusOK, gin.H{"data": user})
	}
}

// facilityFromSession resolves the caller's facility; every clinical route is
// scoped to it.
func facilityFromSession(c *gin.Context) (string, bool) {
	facilityId, ok := utils.GetFacilityIdFromContext(c.Request.Context())
	if !ok || facilityId == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return facilityId, true
}

func createPatientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilityId, ok := facilityFromSession(c)
		if !ok {
			return
		}
		var req models.NewPatient
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		patient, err := models.CreatePatient(c.Request.Context(), facilityId, req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": patient})
	}
}

func getPatientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := facilityFromSession(c); !ok {
			return
		}
		patient, err := middlewares.GetPatient(c.Request.Context(), c.Param("patientId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "patient not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": patient})
	}
}

func listWoundsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilityId, ok := facilityFromSession(c)
		if !ok {
			return
		}
		wounds, err := models.GetWoundsForPatient(c.Request.Context(), facilityId, c.Param("patientId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": wounds})
	}
}

func createWoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilityId, ok := facilityFromSession(c)
		if !ok {
			return
		}
		var req models.NewWound
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		wound, err := models.CreateWound(c.Request.Context(), facilityId, req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": wound})
	}
}

func getWoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := facilityFromSession(c); !ok {
			return
		}
		wound, err := middlewares.GetWound(c.Request.Context(), c.Param("woundId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "wound not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": wound})
	}
}

// submitCaptureHandler runs the live capture path: the wound must have no
// pending offline entries, otherwise ordering across the replay boundary
// could not be guaranteed.
func submitCaptureHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilityId, ok := facilityFromSession(c)
		if !ok {
			return
		}
		var capture models.Capture
		if err := c.ShouldBindJSON(&capture); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		capture.WoundId = c.Param("woundId")
		if deviceId, ok := utils.GetDeviceIdFromContext(c.Request.Context()); ok && capture.DeviceId == "" {
			capture.DeviceId = deviceId
		}

		ctx := c.Request.Context()
		if err := workflow.EnsureNoPendingReplay(ctx, capture.WoundId); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		wound, err := models.GetWound(ctx, facilityId, capture.WoundId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "wound not found"})
			return
		}

		scan, err := workflow.NewPipeline().ProcessCapture(ctx, wound, capture, false)
		if err != nil {
			status := captureErrorStatus(err)
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": scan})
	}
}

func captureErrorStatus(err error) int {
	switch {
	case errors.Is(err, workflow.ErrSyncConflict):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrReplayPendingForWound):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrIdempotencyInProgress):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrClassificationUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func listScansHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := facilityFromSession(c); !ok {
			return
		}
		scans, err := middlewares.GetScanHistory(c.Request.Context(), c.Param("woundId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": scans})
	}
}

func getScanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := facilityFromSession(c); !ok {
			return
		}
		scan, err := models.GetScan(c.Request.Context(), c.Param("scanId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": scan})
	}
}

func confirmScanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilityId, ok := facilityFromSession(c)
		if !ok {
			return
		}
		scan, state, err := workflow.ConfirmScan(c.Request.Context(), facilityId, c.Param("scanId"))
		if err != nil {
			if errors.Is(err, models.ErrScanStateTerminal) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"scan": scan, "trend": state}})
	}
}

func rejectScanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilityId, ok := facilityFromSession(c)
		if !ok {
			return
		}
		scan, err := workflow.RejectScan(c.Request.Context(), facilityId, c.Param("scanId"))
		if err != nil {
			if errors.Is(err, models.ErrScanStateTerminal) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": scan})
	}
}

func woundTrendHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilityId, ok := facilityFromSession(c)
		if !ok {
			return
		}
		state, err := workflow.GetWoundTrend(c.Request.Context(), facilityId, c.Param("woundId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": state})
	}
}

func healingTrendHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilityId, ok := facilityFromSession(c)
		if !ok {
			return
		}
		state, err := workflow.GetWoundTrend(c.Request.Context(), facilityId, c.Param("woundId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		trend, err := workflow.CalculateHealingTrend(state)
		if err != nil {
			if errors.Is(err, workflow.ErrNoScanHistory) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": trend})
	}
}

func auditTrailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilityId, ok := facilityFromSession(c)
		if !ok {
			return
		}
		records, err := models.AuditTrailForResource(c.Request.Context(), facilityId, "Wound", c.Param("woundId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": records})
	}
}

// enqueueSyncHandler accepts a batch of offline captures from a device and
// queues them for replay. Admission happens at replay time, not here.
type enqueueSyncRequest struct {
	Captures []models.Capture `json:"captures" binding:"required,min=1,dive"`
}

func enqueueSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilityId, ok := facilityFromSession(c)
		if !ok {
			return
		}
		var req enqueueSyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		ctx := c.Request.Context()
		queued := make([]gin.H, 0, len(req.Captures))
		for _, capture := range req.Captures {
			if deviceId, ok := utils.GetDeviceIdFromContext(ctx); ok && capture.DeviceId == "" {
				capture.DeviceId = deviceId
			}
			entry, err := workflow.EnqueueOfflineCapture(ctx, facilityId, capture)
			if err != nil {
				if errors.Is(err, workflow.ErrSyncConflict) {
					queued = append(queued, gin.H{"capture_id": capture.CaptureId, "status": "duplicate"})
					continue
				}
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "capture_id": capture.CaptureId})
				return
			}
			queued = append(queued, gin.H{"capture_id": capture.CaptureId, "entry_id": entry.ID, "status": entry.Status})
		}
		c.JSON(http.StatusOK, gin.H{"data": queued})
	}
}

func replaySyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilityId, ok := facilityFromSession(c)
		if !ok {
			return
		}
		results, err := workflow.ReplayPending(c.Request.Context(), facilityId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": results})
	}
}

func pendingSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilityId, ok := facilityFromSession(c)
		if !ok {
			return
		}
		entries, err := models.PendingSyncEntries(c.Request.Context(), facilityId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": entries})
	}
}

func listAlertsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilityId, ok := facilityFromSession(c)
		if !ok {
			return
		}
		alerts, err := models.OpenAlertsForFacility(c.Request.Context(), facilityId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": alerts})
	}
}

func acknowledgeAlertHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilityId, ok := facilityFromSession(c)
		if !ok {
			return
		}
		alertId, err := strconv.Atoi(c.Param("alertId"))
		if err != nil || alertId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
			return
		}
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())
		if err := models.AcknowledgeAlert(c.Request.Context(), facilityId, alertId, userId); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": true})
	}
}

func facilityBurdenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		facilityId, ok := facilityFromSession(c)
		if !ok {
			return
		}
		burden, err := workflow.FacilityBurden(c.Request.Context(), facilityId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": burden})
	}
}
