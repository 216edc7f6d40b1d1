package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/embedpulse/survey-server/apperr"
	"github.com/embedpulse/survey-server/config"
	"github.com/embedpulse/survey-server/models"
	"github.com/embedpulse/survey-server/utils"
)

type tokenReq struct {
	APIKey    string `json:"apiKey" binding:"required"`
	APISecret string `json:"apiSecret" binding:"required"`
}

// IssueToken exchanges a tenant's API credentials for a widget bearer token.
// Bad key and bad secret are indistinguishable to the caller.
func IssueToken(c *gin.Context) {
	var req tokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Render(c, apperr.BadRequest("apiKey and apiSecret are required"))
		return
	}

	var tenant models.Tenant
	if err := config.DB.Where("api_key = ?", req.APIKey).First(&tenant).Error; err != nil {
		apperr.Render(c, apperr.Unauthorized("invalid credentials"))
		return
	}
	if !utils.CheckSecret(tenant.SecretHash, req.APISecret) {
		apperr.Render(c, apperr.Unauthorized("invalid credentials"))
		return
	}

	token, err := utils.GenerateToken(strconv.FormatUint(uint64(tenant.ID), 10))
	if err != nil {
		apperr.Render(c, apperr.Internal(err), "tenant_id", tenant.ID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"teamName":  tenant.Name,
		"expiresAt": time.Now().Add(24 * time.Hour),
	})
}
