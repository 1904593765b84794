package middlewares

import (
	"context"
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"bitbucket.org/mmdatafocus/woundcare_backend/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware authenticates capture devices with a bearer JWT issued at
// login. Clinician sessions use the redis-backed token header instead; a
// request without an Authorization header passes through untouched.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.Next()
			return
		}

		validate, err := utils.JwtValidate(strings.TrimPrefix(auth, "Bearer "))
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		claim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		user, err := models.GetUserById(c.Request.Context(), claim.ID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), utils.ContextKeyUsername, user.Username)
		ctx = context.WithValue(ctx, utils.ContextKeyUserId, user.ID)
		ctx = context.WithValue(ctx, utils.ContextKeyUserName, user.Name)
		ctx = context.WithValue(ctx, utils.ContextKeyFacilityId, user.FacilityId)
		if user.Role == models.UserRoleAdmin {
			ctx = context.WithValue(ctx, utils.ContextKeyIsAdmin, true)
		}
		if deviceId := c.Request.Header.Get("X-Device-Id"); deviceId != "" {
			ctx = context.WithValue(ctx, utils.ContextKeyDeviceId, deviceId)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
