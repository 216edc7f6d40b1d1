package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/embedpulse/survey-server/apperr"
	"github.com/embedpulse/survey-server/codec"
	"github.com/embedpulse/survey-server/config"
	"github.com/embedpulse/survey-server/middleware"
	"github.com/embedpulse/survey-server/models"
)

// How many free-text answers a results page shows per LONG_TEXT question.
const longTextSampleLimit = 50

// GetSurveyResults serves the live aggregate view straight from the
// materialized counters — no GROUP BY at read time. LONG_TEXT questions have
// no counters, so they get a bounded sample of raw answers instead.
func GetSurveyResults(c *gin.Context) {
	tenant := middleware.Tenant(c)

	survey, ok := loadTenantSurvey(c, tenant.ID, "")
	if !ok {
		return
	}

	var counters []models.AggregateCounter
	err := config.DB.
		Where("tenant_id = ? AND survey_id = ?", tenant.ID, survey.ID).
		Order("question_id ASC, bucket ASC").
		Find(&counters).Error
	if err != nil {
		apperr.Render(c, apperr.Internal(err), "tenant_id", tenant.ID, "survey_id", survey.ID)
		return
	}

	byQuestion := make(map[uint][]models.AggregateCounter)
	for _, counter := range counters {
		byQuestion[counter.QuestionID] = append(byQuestion[counter.QuestionID], counter)
	}

	results := make([]gin.H, 0, len(survey.Questions))
	for _, q := range survey.Questions {
		format := codec.QuestionFormat(q.Format)
		if !format.Collectable() {
			continue
		}

		entry := gin.H{
			"questionId": q.ID,
			"title":      q.Title,
			"format":     q.Format,
		}

		if format == codec.FormatLongText {
			texts, err := longTextSample(tenant.ID, survey.ID, q.ID)
			if err != nil {
				apperr.Render(c, apperr.Internal(err), "tenant_id", tenant.ID, "survey_id", survey.ID)
				return
			}
			entry["texts"] = texts
		} else {
			buckets := make([]gin.H, 0, len(byQuestion[q.ID]))
			var total int64
			for _, counter := range byQuestion[q.ID] {
				buckets = append(buckets, gin.H{
					"bucket":        counter.Bucket,
					"displayValue":  counter.DisplayValue,
					"responseCount": counter.ResponseCount,
					"lastUpdated":   counter.LastUpdated,
				})
				total += counter.ResponseCount
			}
			entry["buckets"] = buckets
			entry["total"] = total
		}

		results = append(results, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"surveyId": survey.ID,
		"results":  results,
	})
}

func longTextSample(tenantID, surveyID, questionID uint) ([]string, error) {
	var records []models.AnswerRecord
	err := config.DB.
		Where("tenant_id = ? AND survey_id = ? AND question_id = ?", tenantID, surveyID, questionID).
		Order("created_at DESC, id DESC").
		Limit(longTextSampleLimit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(records))
	for _, record := range records {
		if record.TextValue != nil {
			texts = append(texts, *record.TextValue)
		}
	}
	return texts, nil
}
