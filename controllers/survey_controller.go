package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/embedpulse/survey-server/apperr"
	"github.com/embedpulse/survey-server/codec"
	"github.com/embedpulse/survey-server/config"
	"github.com/embedpulse/survey-server/middleware"
	"github.com/embedpulse/survey-server/models"
)

type createOptionReq struct {
	Text    string `json:"text" binding:"required,min=1"`
	IsOther bool   `json:"isOther"`
}

type createQuestionReq struct {
	Title    string            `json:"title" binding:"required,min=1"`
	Format   string            `json:"format" binding:"required"`
	Required bool              `json:"required"`
	Options  []createOptionReq `json:"options"`
}

type createSurveyReq struct {
	Title                  string              `json:"title" binding:"required,min=1"`
	Description            string              `json:"description"`
	AllowMultipleResponses bool                `json:"allowMultipleResponses"`
	Style                  json.RawMessage     `json:"style"`
	Questions              []createQuestionReq `json:"questions"`
}

// CreateSurvey creates a draft survey with its ordered questions and
// options. Question schemas are immutable once submissions start; authoring
// replaces the whole survey rather than patching questions in place.
func CreateSurvey(c *gin.Context) {
	tenant := middleware.Tenant(c)

	var req createSurveyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Render(c, apperr.BadRequest("invalid survey payload", apperr.FieldError{
			Field: "body", Message: err.Error(),
		}))
		return
	}

	if fields := validateQuestions(req.Questions); len(fields) > 0 {
		apperr.Render(c, apperr.BadRequest("invalid questions", fields...))
		return
	}
	if len(req.Style) > 0 && !json.Valid(req.Style) {
		apperr.Render(c, apperr.BadRequest("style is not valid JSON"))
		return
	}

	survey := models.Survey{
		TenantID:               tenant.ID,
		Title:                  req.Title,
		Description:            req.Description,
		Status:                 models.SurveyStatusDraft,
		AllowMultipleResponses: req.AllowMultipleResponses,
	}
	if len(req.Style) > 0 {
		survey.StyleJSON = string(req.Style)
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&survey).Error; err != nil {
			return err
		}
		for qi, qReq := range req.Questions {
			question := models.Question{
				SurveyID: survey.ID,
				Title:    qReq.Title,
				Format:   qReq.Format,
				Required: qReq.Required,
				Position: qi,
			}
			if err := tx.Create(&question).Error; err != nil {
				return err
			}
			for oi, oReq := range qReq.Options {
				option := models.QuestionOption{
					QuestionID: question.ID,
					Text:       oReq.Text,
					Position:   oi,
					IsOther:    oReq.IsOther,
				}
				if err := tx.Create(&option).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		apperr.Render(c, apperr.Internal(err), "tenant_id", tenant.ID)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         survey.ID,
		"title":      survey.Title,
		"status":     survey.Status,
		"created_at": survey.CreatedAt,
	})
}

func validateQuestions(questions []createQuestionReq) []apperr.FieldError {
	var fields []apperr.FieldError
	for i, q := range questions {
		format, err := codec.ParseFormat(q.Format)
		if err != nil {
			fields = append(fields, apperr.FieldError{
				Field: fieldPath("questions", i, "format"), Message: err.Error(),
			})
			continue
		}
		if format.Choice() {
			if len(q.Options) == 0 {
				fields = append(fields, apperr.FieldError{
					Field: fieldPath("questions", i, "options"), Message: "choice questions need at least one option",
				})
			}
			others := 0
			for _, o := range q.Options {
				if o.IsOther {
					others++
				}
			}
			if others > 1 {
				fields = append(fields, apperr.FieldError{
					Field: fieldPath("questions", i, "options"), Message: "at most one option may be marked isOther",
				})
			}
		} else if len(q.Options) > 0 {
			fields = append(fields, apperr.FieldError{
				Field: fieldPath("questions", i, "options"), Message: "only choice questions carry options",
			})
		}
		if q.Required && !format.Collectable() {
			fields = append(fields, apperr.FieldError{
				Field: fieldPath("questions", i, "required"), Message: "STATEMENT questions collect no answer and cannot be required",
			})
		}
	}
	return fields
}

func fieldPath(prefix string, i int, name string) string {
	return prefix + "[" + strconv.Itoa(i) + "]." + name
}

// GetSurveyDetail returns the tenant's own view of a survey in any status.
func GetSurveyDetail(c *gin.Context) {
	tenant := middleware.Tenant(c)

	survey, ok := loadTenantSurvey(c, tenant.ID, "")
	if !ok {
		return
	}

	var style interface{}
	if survey.StyleJSON != "" {
		_ = json.Unmarshal([]byte(survey.StyleJSON), &style)
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                       survey.ID,
		"title":                    survey.Title,
		"description":              survey.Description,
		"status":                   survey.Status,
		"allow_multiple_responses": survey.AllowMultipleResponses,
		"style":                    style,
		"questions":                survey.Questions,
		"created_at":               survey.CreatedAt,
		"published_at":             survey.PublishedAt,
	})
}

// PublishSurvey moves draft → published. Only published surveys accept
// submissions; archived surveys stay closed.
func PublishSurvey(c *gin.Context) {
	tenant := middleware.Tenant(c)

	survey, ok := loadTenantSurvey(c, tenant.ID, "")
	if !ok {
		return
	}
	switch survey.Status {
	case models.SurveyStatusPublished:
		// Already there; idempotent.
	case models.SurveyStatusArchived:
		apperr.Render(c, apperr.Conflict("archived surveys cannot be republished"))
		return
	default:
		now := time.Now()
		updates := map[string]interface{}{
			"status":       models.SurveyStatusPublished,
			"published_at": now,
		}
		if err := config.DB.Model(&survey).Updates(updates).Error; err != nil {
			apperr.Render(c, apperr.Internal(err), "tenant_id", tenant.ID, "survey_id", survey.ID)
			return
		}
		survey.Status = models.SurveyStatusPublished
		survey.PublishedAt = &now
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           survey.ID,
		"status":       survey.Status,
		"published_at": survey.PublishedAt,
	})
}

// ArchiveSurvey closes a survey to further submissions.
func ArchiveSurvey(c *gin.Context) {
	tenant := middleware.Tenant(c)

	survey, ok := loadTenantSurvey(c, tenant.ID, "")
	if !ok {
		return
	}
	if survey.Status != models.SurveyStatusArchived {
		if err := config.DB.Model(&survey).Update("status", models.SurveyStatusArchived).Error; err != nil {
			apperr.Render(c, apperr.Internal(err), "tenant_id", tenant.ID, "survey_id", survey.ID)
			return
		}
		survey.Status = models.SurveyStatusArchived
	}

	c.JSON(http.StatusOK, gin.H{"id": survey.ID, "status": survey.Status})
}

// GetDefinition is what the widget fetches at mount time: the published
// survey's ordered questions, options and presentation style. Same
// conflation rule as submission — absent, cross-tenant and unpublished all
// read as not found.
func GetDefinition(c *gin.Context) {
	tenant := middleware.Tenant(c)

	survey, ok := loadTenantSurvey(c, tenant.ID, models.SurveyStatusPublished)
	if !ok {
		return
	}

	questions := make([]gin.H, 0, len(survey.Questions))
	for _, q := range survey.Questions {
		options := make([]gin.H, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, gin.H{
				"id":       o.ID,
				"text":     o.Text,
				"position": o.Position,
				"isOther":  o.IsOther,
			})
		}
		questions = append(questions, gin.H{
			"id":       q.ID,
			"title":    q.Title,
			"format":   q.Format,
			"required": q.Required,
			"position": q.Position,
			"options":  options,
		})
	}

	var style json.RawMessage
	if survey.StyleJSON != "" {
		style = json.RawMessage(survey.StyleJSON)
	}

	c.JSON(http.StatusOK, gin.H{
		"surveyId":    survey.ID,
		"title":       survey.Title,
		"description": survey.Description,
		"style":       style,
		"questions":   questions,
	})
}

// ListSubmissions is the tenant's paginated view of raw response sessions.
func ListSubmissions(c *gin.Context) {
	tenant := middleware.Tenant(c)

	survey, ok := loadTenantSurvey(c, tenant.ID, "")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := config.DB.Model(&models.ResponseSession{}).
		Where("tenant_id = ? AND survey_id = ?", tenant.ID, survey.ID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		apperr.Render(c, apperr.Internal(err), "tenant_id", tenant.ID, "survey_id", survey.ID)
		return
	}

	var sessions []models.ResponseSession
	err := query.
		Preload("Answers").
		Order("submitted_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&sessions).Error
	if err != nil {
		apperr.Render(c, apperr.Internal(err), "tenant_id", tenant.ID, "survey_id", survey.ID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"surveyId":    survey.ID,
		"page":        page,
		"limit":       limit,
		"total":       total,
		"submissions": sessions,
	})
}

// loadTenantSurvey fetches a survey scoped to the tenant with ordered
// questions and options preloaded. status narrows to one lifecycle state
// when non-empty. Renders NotFound and returns ok=false on a miss.
func loadTenantSurvey(c *gin.Context, tenantID uint, status string) (models.Survey, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		apperr.Render(c, apperr.BadRequest("invalid survey id"))
		return models.Survey{}, false
	}

	query := config.DB.Where("id = ? AND tenant_id = ?", id, tenantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var survey models.Survey
	err = query.
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		First(&survey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apperr.Render(c, apperr.NotFound("survey not found"))
		return models.Survey{}, false
	}
	if err != nil {
		apperr.Render(c, apperr.Internal(err), "tenant_id", tenantID, "survey_id", id)
		return models.Survey{}, false
	}
	return survey, true
}
