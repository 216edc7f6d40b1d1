package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/embedpulse/survey-server/codec"
	"github.com/embedpulse/survey-server/models"
)

// counterKeyColumns is the natural key of aggregate_counters; concurrent
// increments of the same key serialize at the database through this index.
var counterKeyColumns = []clause.Column{
	{Name: "tenant_id"},
	{Name: "survey_id"},
	{Name: "question_id"},
	{Name: "bucket"},
}

// SubmissionMeta carries the optional respondent identity of a submission.
type SubmissionMeta struct {
	UserID             *string
	UserIP             *string
	ExtraInfo          *string
	ClientSubmissionID *string
}

// Aggregator turns an admitted submission into durable rows and updated
// counters inside a single bounded-duration transaction.
type Aggregator struct {
	db      *gorm.DB
	timeout time.Duration
	log     *slog.Logger
}

type AggregatorOption func(*Aggregator)

func WithTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.timeout = d }
}

func WithLogger(l *slog.Logger) AggregatorOption {
	return func(a *Aggregator) { a.log = l }
}

func NewAggregator(db *gorm.DB, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{db: db, timeout: 10 * time.Second, log: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record persists one response session, its answer records and the counter
// increments, then bumps the tenant's lifetime response count. Any failure
// rolls back the whole transaction; partial aggregation is never visible.
//
// When meta carries a client submission id already seen for this survey, the
// original session is returned with replayed=true and nothing is written —
// this is what makes the widget's bounded retry safe.
func (a *Aggregator) Record(ctx context.Context, tenant models.Tenant, survey *models.Survey, decoded []codec.Decoded, meta SubmissionMeta) (*models.ResponseSession, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	questions := make(map[uint]*models.Question, len(survey.Questions))
	for i := range survey.Questions {
		questions[survey.Questions[i].ID] = &survey.Questions[i]
	}

	for _, d := range decoded {
		if d.TruncatedTexts {
			// The wire carried more free-text slots than options. Tolerated
			// per the codec contract, but worth a trace: ids only, no payload.
			a.log.Warn("truncated free-text slots in multiple-choice answer",
				"tenant_id", tenant.ID, "survey_id", survey.ID, "question_id", d.QuestionID)
		}
	}

	var session models.ResponseSession
	replayed := false

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if meta.ClientSubmissionID != nil && *meta.ClientSubmissionID != "" {
			var existing models.ResponseSession
			err := tx.Where("survey_id = ? AND client_submission_id = ?",
				survey.ID, *meta.ClientSubmissionID).First(&existing).Error
			if err == nil {
				session = existing
				replayed = true
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("lookup client submission id: %w", err)
			}
		}

		session = models.ResponseSession{
			TenantID:           tenant.ID,
			SurveyID:           survey.ID,
			ClientSubmissionID: meta.ClientSubmissionID,
			UserID:             meta.UserID,
			UserIP:             meta.UserIP,
			ExtraInfo:          meta.ExtraInfo,
			Status:             models.SessionStatusCompleted,
		}
		if err := tx.Create(&session).Error; err != nil {
			return fmt.Errorf("create response session: %w", err)
		}

		now := time.Now()
		for _, d := range decoded {
			q, ok := questions[d.QuestionID]
			if !ok {
				// Validator guarantees membership; a miss here is a bug.
				return fmt.Errorf("question %d not in survey %d", d.QuestionID, survey.ID)
			}

			for _, record := range expandRecords(tenant.ID, survey.ID, session.ID, d) {
				if err := tx.Create(&record).Error; err != nil {
					return fmt.Errorf("create answer record for question %d: %w", d.QuestionID, err)
				}
				if err := a.upsertCounter(tx, tenant.ID, survey.ID, q, record, now); err != nil {
					return err
				}
			}
		}

		return tx.Model(&models.Tenant{}).
			Where("id = ?", tenant.ID).
			UpdateColumn("response_count", gorm.Expr("response_count + 1")).Error
	})
	if err != nil {
		return nil, false, err
	}

	return &session, replayed, nil
}

// expandRecords maps one decoded answer to its answer rows. MULTIPLE_CHOICE
// fans out to one row per selected option; everything else yields one row.
func expandRecords(tenantID, surveyID, sessionID uint, d codec.Decoded) []models.AnswerRecord {
	base := models.AnswerRecord{
		TenantID:   tenantID,
		SessionID:  sessionID,
		SurveyID:   surveyID,
		QuestionID: d.QuestionID,
		Format:     string(d.Format),
	}

	switch d.Format {
	case codec.FormatYesNo:
		record := base
		b := d.Bool
		record.BooleanValue = &b
		return []models.AnswerRecord{record}

	case codec.FormatStarRating:
		record := base
		n := d.Number
		record.NumberValue = &n
		return []models.AnswerRecord{record}

	case codec.FormatLongText:
		record := base
		t := d.Text
		record.TextValue = &t
		return []models.AnswerRecord{record}

	case codec.FormatSingleChoice, codec.FormatMultipleChoice:
		records := make([]models.AnswerRecord, 0, len(d.Selections))
		for _, sel := range d.Selections {
			record := base
			id := sel.OptionID
			record.OptionID = &id
			if sel.IsOther {
				record.IsOther = true
				text := sel.OtherText
				record.TextValue = &text
			}
			records = append(records, record)
		}
		return records

	default:
		return nil
	}
}

// upsertCounter maintains the materialized per-bucket total for one answer
// row. Formats without a natural discriminator (free text) keep no counter;
// skipping them must not fail the transaction.
func (a *Aggregator) upsertCounter(tx *gorm.DB, tenantID, surveyID uint, q *models.Question, record models.AnswerRecord, now time.Time) error {
	bucket, display, ok := counterBucket(q, record)
	if !ok {
		return nil
	}

	counter := models.AggregateCounter{
		TenantID:      tenantID,
		SurveyID:      surveyID,
		QuestionID:    q.ID,
		Bucket:        bucket,
		QuestionTitle: q.Title,
		DisplayValue:  display,
		ResponseCount: 1,
		LastUpdated:   now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: counterKeyColumns,
		DoUpdates: clause.Assignments(map[string]interface{}{
			"response_count": gorm.Expr("response_count + 1"),
			"last_updated":   now,
		}),
	}).Create(&counter).Error
	if err != nil {
		return fmt.Errorf("upsert counter for question %d bucket %s: %w", q.ID, bucket, err)
	}
	return nil
}

// counterBucket derives the format-dependent natural key discriminator and
// the denormalized display value for one answer row.
func counterBucket(q *models.Question, record models.AnswerRecord) (bucket, display string, ok bool) {
	switch codec.QuestionFormat(record.Format) {
	case codec.FormatYesNo:
		if record.BooleanValue == nil {
			return "", "", false
		}
		display = "No"
		if *record.BooleanValue {
			display = "Yes"
		}
		return strconv.FormatBool(*record.BooleanValue), display, true

	case codec.FormatStarRating:
		if record.NumberValue == nil {
			return "", "", false
		}
		s := strconv.Itoa(*record.NumberValue)
		return s, s, true

	case codec.FormatSingleChoice, codec.FormatMultipleChoice:
		if record.OptionID == nil {
			return "", "", false
		}
		display = ""
		for _, opt := range q.Options {
			if opt.ID == *record.OptionID {
				display = opt.Text
				break
			}
		}
		return strconv.FormatUint(uint64(*record.OptionID), 10), display, true

	default:
		// LONG_TEXT and anything unmapped: free text is not aggregable.
		return "", "", false
	}
}
