package middlewares

import (
	"context"
	"net/http"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"bitbucket.org/mmdatafocus/woundcare_backend/models"
	"bitbucket.org/mmdatafocus/woundcare_backend/utils"
	"github.com/gin-gonic/gin"
)

func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		user, err := models.GetUserByUsername(c.Request.Context(), username)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), utils.ContextKeyToken, token)
		ctx = context.WithValue(ctx, utils.ContextKeyUsername, username)
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
