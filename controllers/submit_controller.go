package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/embedpulse/survey-server/apperr"
	"github.com/embedpulse/survey-server/codec"
	"github.com/embedpulse/survey-server/config"
	"github.com/embedpulse/survey-server/middleware"
	"github.com/embedpulse/survey-server/models"
	"github.com/embedpulse/survey-server/services"
)

var (
	aggregator *services.Aggregator
	quotaGate  *services.QuotaGate
)

// Init wires the submission pipeline; called once from main and from tests.
func Init(agg *services.Aggregator, quota *services.QuotaGate) {
	aggregator = agg
	quotaGate = quota
}

type submitReq struct {
	// SurveyID is echoed by older widgets; the path parameter is
	// authoritative.
	SurveyID           uint           `json:"surveyId"`
	UserID             *string        `json:"userId"`
	UserIP             *string        `json:"userIp"`
	ExtraInfo          *string        `json:"extraInfo"`
	ClientSubmissionID *string        `json:"clientSubmissionId"`
	Responses          []codec.Answer `json:"responses" binding:"required"`
}

// SubmitSurvey is POST /api/surveys/:id/submissions — the widget's terminal
// submission call. Validation short-circuits before any persistence; the
// aggregator runs in one transaction, so a rejected or failed submission
// leaves no partial state.
func SubmitSurvey(c *gin.Context) {
	tenant := middleware.Tenant(c)

	surveyID, err := strconv.Atoi(c.Param("id"))
	if err != nil || surveyID <= 0 {
		apperr.Render(c, apperr.BadRequest("invalid survey id"))
		return
	}

	// Absent, cross-tenant and unpublished are deliberately the same answer,
	// so survey existence never leaks across tenants.
	var survey models.Survey
	err = config.DB.
		Where("id = ? AND tenant_id = ? AND status = ?", surveyID, tenant.ID, models.SurveyStatusPublished).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		First(&survey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apperr.Render(c, apperr.NotFound("survey not found"))
		return
	}
	if err != nil {
		apperr.Render(c, apperr.Internal(err), "tenant_id", tenant.ID, "survey_id", surveyID)
		return
	}

	decision, err := quotaGate.CanAccept(c.Request.Context(), tenant.ID, services.MetricResponses)
	if err != nil {
		apperr.Render(c, apperr.Internal(err), "tenant_id", tenant.ID, "survey_id", survey.ID)
		return
	}
	if !decision.Allowed {
		apperr.Render(c, apperr.Conflict("response quota exceeded"))
		return
	}

	var req submitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Render(c, apperr.BadRequest("invalid submission payload", apperr.FieldError{
			Field: "body", Message: err.Error(),
		}))
		return
	}

	if !survey.AllowMultipleResponses && req.UserID != nil && *req.UserID != "" {
		var count int64
		err := config.DB.Model(&models.ResponseSession{}).
			Where("survey_id = ? AND user_id = ?", survey.ID, *req.UserID).
			Count(&count).Error
		if err != nil {
			apperr.Render(c, apperr.Internal(err), "tenant_id", tenant.ID, "survey_id", survey.ID)
			return
		}
		if count > 0 {
			apperr.Render(c, apperr.Conflict("survey does not allow multiple responses"))
			return
		}
	}

	decoded, err := services.ValidateSubmission(&survey, req.Responses)
	if err != nil {
		apperr.Render(c, err, "tenant_id", tenant.ID, "survey_id", survey.ID)
		return
	}

	meta := services.SubmissionMeta{
		UserID:             req.UserID,
		UserIP:             req.UserIP,
		ExtraInfo:          req.ExtraInfo,
		ClientSubmissionID: req.ClientSubmissionID,
	}
	if meta.UserIP == nil {
		ip := c.ClientIP()
		meta.UserIP = &ip
	}

	session, _, err := aggregator.Record(c.Request.Context(), tenant, &survey, decoded, meta)
	if err != nil {
		apperr.Render(c, apperr.Internal(err), "tenant_id", tenant.ID, "survey_id", survey.ID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"responseId":  session.ID,
		"surveyId":    survey.ID,
		"teamName":    tenant.Name,
		"submittedAt": session.SubmittedAt,
	})
}
