package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/embedpulse/survey-server/apperr"
	"github.com/embedpulse/survey-server/config"
	"github.com/embedpulse/survey-server/models"
	"github.com/embedpulse/survey-server/utils"
)

// CtxTenant is the context key under which the resolved tenant is stored.
const CtxTenant = "tenant"

// TenantAuth checks Authorization: Bearer <widget token>, validates the JWT
// and injects the owning tenant into the request context. Every survey route,
// including the public widget endpoints, resolves a tenant before anything
// else happens.
func TenantAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			apperr.Render(c, apperr.Unauthorized("missing or invalid Authorization header"))
			return
		}
		rawToken := strings.TrimSpace(authHeader[7:])

		claims, err := utils.VerifyToken(rawToken)
		if err != nil {
			apperr.Render(c, apperr.Unauthorized("invalid token"))
			return
		}

		tid, err := strconv.ParseUint(claims.TenantID, 10, 64)
		if err != nil {
			apperr.Render(c, apperr.Unauthorized("invalid subject"))
			return
		}

		var tenant models.Tenant
		if err := config.DB.First(&tenant, tid).Error; err != nil {
			apperr.Render(c, apperr.Unauthorized("tenant not found"))
			return
		}

		c.Set(CtxTenant, tenant)
		c.Next()
	}
}

// Tenant pulls the resolved tenant out of the request context.
func Tenant(c *gin.Context) models.Tenant {
	return c.MustGet(CtxTenant).(models.Tenant)
}
