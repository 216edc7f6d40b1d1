package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/embedpulse/survey-server/config"
	"github.com/embedpulse/survey-server/controllers"
	"github.com/embedpulse/survey-server/models"
	"github.com/embedpulse/survey-server/routes"
	"github.com/embedpulse/survey-server/services"
	"github.com/embedpulse/survey-server/utils"
)

func setup(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	config.DB = db
	controllers.Init(services.NewAggregator(db), services.NewQuotaGate(db))

	r := gin.New()
	routes.SetupRoutes(r)
	return r, db
}

func createTenant(t *testing.T, db *gorm.DB, name string, limit int64) (models.Tenant, string) {
	t.Helper()
	hash, err := utils.HashSecret(name + "-secret")
	require.NoError(t, err)
	tenant := models.Tenant{
		Name:          name,
		APIKey:        name + "-key",
		SecretHash:    hash,
		ResponseLimit: limit,
	}
	require.NoError(t, db.Create(&tenant).Error)

	token, err := utils.GenerateToken(strconv.FormatUint(uint64(tenant.ID), 10))
	require.NoError(t, err)
	return tenant, token
}

// createScenarioSurvey is the end-to-end fixture: Q1 YES_NO required,
// Q2 STAR_RATING optional.
func createScenarioSurvey(t *testing.T, db *gorm.DB, tenant models.Tenant, status string) models.Survey {
	t.Helper()
	survey := models.Survey{TenantID: tenant.ID, Title: "exit survey", Status: status}
	require.NoError(t, db.Create(&survey).Error)

	q1 := models.Question{SurveyID: survey.ID, Title: "Happy?", Format: "YES_NO", Required: true, Position: 0}
	require.NoError(t, db.Create(&q1).Error)
	q2 := models.Question{SurveyID: survey.ID, Title: "Stars?", Format: "STAR_RATING", Position: 1}
	require.NoError(t, db.Create(&q2).Error)

	survey.Questions = []models.Question{q1, q2}
	return survey
}

func do(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func submitBody(answers []gin.H) gin.H {
	return gin.H{"responses": answers}
}

func TestSubmitEndToEnd(t *testing.T) {
	r, db := setup(t)
	tenant, token := createTenant(t, db, "acme", 0)
	survey := createScenarioSurvey(t, db, tenant, models.SurveyStatusPublished)
	q1, q2 := survey.Questions[0], survey.Questions[1]

	rec := do(r, http.MethodPost, fmt.Sprintf("/api/surveys/%d/submissions", survey.ID), token,
		submitBody([]gin.H{
			{"questionId": q1.ID, "questionFormat": "YES_NO", "booleanValue": true},
		}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ResponseID uint   `json:"responseId"`
		SurveyID   uint   `json:"surveyId"`
		TeamName   string `json:"teamName"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotZero(t, resp.ResponseID)
	assert.Equal(t, survey.ID, resp.SurveyID)
	assert.Equal(t, "acme", resp.TeamName)

	var sessions int64
	require.NoError(t, db.Model(&models.ResponseSession{}).Count(&sessions).Error)
	assert.EqualValues(t, 1, sessions)

	var records []models.AnswerRecord
	require.NoError(t, db.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, q1.ID, records[0].QuestionID)

	var counters []models.AggregateCounter
	require.NoError(t, db.Find(&counters).Error)
	require.Len(t, counters, 1)
	assert.Equal(t, q1.ID, counters[0].QuestionID)
	assert.Equal(t, "true", counters[0].Bucket)
	assert.EqualValues(t, 1, counters[0].ResponseCount)

	var q2Counters int64
	require.NoError(t, db.Model(&models.AggregateCounter{}).
		Where("question_id = ?", q2.ID).Count(&q2Counters).Error)
	assert.Zero(t, q2Counters)
}

func TestSubmitWithoutTokenUnauthorized(t *testing.T) {
	r, db := setup(t)
	tenant, _ := createTenant(t, db, "acme", 0)
	survey := createScenarioSurvey(t, db, tenant, models.SurveyStatusPublished)

	rec := do(r, http.MethodPost, fmt.Sprintf("/api/surveys/%d/submissions", survey.ID), "",
		submitBody(nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitCrossTenantReadsAsNotFound(t *testing.T) {
	r, db := setup(t)
	owner, _ := createTenant(t, db, "acme", 0)
	survey := createScenarioSurvey(t, db, owner, models.SurveyStatusPublished)
	_, otherToken := createTenant(t, db, "rival", 0)

	rec := do(r, http.MethodPost, fmt.Sprintf("/api/surveys/%d/submissions", survey.ID), otherToken,
		submitBody([]gin.H{
			{"questionId": survey.Questions[0].ID, "questionFormat": "YES_NO", "booleanValue": true},
		}))
	assert.Equal(t, http.StatusNotFound, rec.Code, "cross-tenant must not read as unauthorized or forbidden")
}

func TestSubmitUnpublishedSurveyNotFound(t *testing.T) {
	r, db := setup(t)
	tenant, token := createTenant(t, db, "acme", 0)
	survey := createScenarioSurvey(t, db, tenant, models.SurveyStatusDraft)

	rec := do(r, http.MethodPost, fmt.Sprintf("/api/surveys/%d/submissions", survey.ID), token,
		submitBody([]gin.H{
			{"questionId": survey.Questions[0].ID, "questionFormat": "YES_NO", "booleanValue": true},
		}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitMissingRequiredAnswerBadRequest(t *testing.T) {
	r, db := setup(t)
	tenant, token := createTenant(t, db, "acme", 0)
	survey := createScenarioSurvey(t, db, tenant, models.SurveyStatusPublished)

	rec := do(r, http.MethodPost, fmt.Sprintf("/api/surveys/%d/submissions", survey.ID), token,
		submitBody([]gin.H{}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "required questions")

	// Rejected submissions leave no partial state behind.
	var sessions int64
	require.NoError(t, db.Model(&models.ResponseSession{}).Count(&sessions).Error)
	assert.Zero(t, sessions)
}

func TestSubmitQuotaExhaustedConflict(t *testing.T) {
	r, db := setup(t)
	tenant, token := createTenant(t, db, "acme", 1)
	require.NoError(t, db.Model(&tenant).Update("response_count", 1).Error)
	survey := createScenarioSurvey(t, db, tenant, models.SurveyStatusPublished)

	rec := do(r, http.MethodPost, fmt.Sprintf("/api/surveys/%d/submissions", survey.ID), token,
		submitBody([]gin.H{
			{"questionId": survey.Questions[0].ID, "questionFormat": "YES_NO", "booleanValue": true},
		}))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmitIdempotencyKeyDedupes(t *testing.T) {
	r, db := setup(t)
	tenant, token := createTenant(t, db, "acme", 0)
	survey := createScenarioSurvey(t, db, tenant, models.SurveyStatusPublished)

	body := gin.H{
		"clientSubmissionId": "widget-abc-123",
		"responses": []gin.H{
			{"questionId": survey.Questions[0].ID, "questionFormat": "YES_NO", "booleanValue": true},
		},
	}

	first := do(r, http.MethodPost, fmt.Sprintf("/api/surveys/%d/submissions", survey.ID), token, body)
	require.Equal(t, http.StatusOK, first.Code)
	second := do(r, http.MethodPost, fmt.Sprintf("/api/surveys/%d/submissions", survey.ID), token, body)
	require.Equal(t, http.StatusOK, second.Code)

	var sessions int64
	require.NoError(t, db.Model(&models.ResponseSession{}).Count(&sessions).Error)
	assert.EqualValues(t, 1, sessions)
}

func TestDefinitionEndpoint(t *testing.T) {
	r, db := setup(t)
	tenant, token := createTenant(t, db, "acme", 0)
	survey := createScenarioSurvey(t, db, tenant, models.SurveyStatusPublished)

	rec := do(r, http.MethodGet, fmt.Sprintf("/api/surveys/%d/definition", survey.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var def struct {
		SurveyID  uint `json:"surveyId"`
		Questions []struct {
			ID     uint   `json:"id"`
			Format string `json:"format"`
		} `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &def))
	assert.Equal(t, survey.ID, def.SurveyID)
	require.Len(t, def.Questions, 2)
	assert.Equal(t, "YES_NO", def.Questions[0].Format)
}

func TestDefinitionDraftNotFound(t *testing.T) {
	r, db := setup(t)
	tenant, token := createTenant(t, db, "acme", 0)
	survey := createScenarioSurvey(t, db, tenant, models.SurveyStatusDraft)

	rec := do(r, http.MethodGet, fmt.Sprintf("/api/surveys/%d/definition", survey.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
