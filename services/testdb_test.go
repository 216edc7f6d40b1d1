package services

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/embedpulse/survey-server/config"
	"github.com/embedpulse/survey-server/models"
)

// openTestDB gives each test its own in-memory sqlite database with the real
// schema. Shared cache keeps the database alive across pooled connections.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

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
	return db
}

func createTenant(t *testing.T, db *gorm.DB, name string, limit int64) models.Tenant {
	t.Helper()
	tenant := models.Tenant{
		Name:          name,
		APIKey:        name + "-key",
		SecretHash:    "x",
		ResponseLimit: limit,
	}
	require.NoError(t, db.Create(&tenant).Error)
	return tenant
}

// createFixtureSurvey builds a published survey exercising every collectable
// format:
//
//	Q0 YES_NO (required)
//	Q1 STAR_RATING
//	Q2 SINGLE_CHOICE ("Red", "Blue", "Other")
//	Q3 MULTIPLE_CHOICE ("Mon", "Tue", "Wed")
//	Q4 LONG_TEXT
//	Q5 STATEMENT
func createFixtureSurvey(t *testing.T, db *gorm.DB, tenant models.Tenant) models.Survey {
	t.Helper()

	survey := models.Survey{
		TenantID: tenant.ID,
		Title:    "fixture",
		Status:   models.SurveyStatusPublished,
	}
	require.NoError(t, db.Create(&survey).Error)

	specs := []struct {
		title    string
		format   string
		required bool
		options  []string
		other    int // index of the isOther option, -1 for none
	}{
		{"Would you recommend us?", "YES_NO", true, nil, -1},
		{"Rate the onboarding", "STAR_RATING", false, nil, -1},
		{"Favourite colour", "SINGLE_CHOICE", false, []string{"Red", "Blue", "Other"}, 2},
		{"Which days do you visit?", "MULTIPLE_CHOICE", false, []string{"Mon", "Tue", "Wed"}, -1},
		{"Anything else?", "LONG_TEXT", false, nil, -1},
		{"Thanks for your time!", "STATEMENT", false, nil, -1},
	}

	for i, spec := range specs {
		question := models.Question{
			SurveyID: survey.ID,
			Title:    spec.title,
			Format:   spec.format,
			Required: spec.required,
			Position: i,
		}
		require.NoError(t, db.Create(&question).Error)
		for oi, text := range spec.options {
			option := models.QuestionOption{
				QuestionID: question.ID,
				Text:       text,
				Position:   oi,
				IsOther:    oi == spec.other,
			}
			require.NoError(t, db.Create(&option).Error)
		}
	}

	return loadSurvey(t, db, survey.ID)
}

func loadSurvey(t *testing.T, db *gorm.DB, id uint) models.Survey {
	t.Helper()
	var survey models.Survey
	err := db.
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		First(&survey, id).Error
	require.NoError(t, err)
	return survey
}

// optionIDCSV joins the wire form of the given option indexes of a question.
func optionIDCSV(q models.Question, idx ...int) string {
	parts := make([]string, len(idx))
	for i, n := range idx {
		parts[i] = strconv.FormatUint(uint64(q.Options[n].ID), 10)
	}
	return strings.Join(parts, ",")
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
func boolPtr(b bool) *bool    { return &b }
