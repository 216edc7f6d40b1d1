package models

import "time"

// AggregateCounter is a materialized running total of answer records sharing
// a (tenant, survey, question, bucket) natural key, so result reads never
// aggregate at query time. Bucket is the format-dependent discriminator:
// the option id for choice formats, "true"/"false" for YES_NO, the rating
// digit for STAR_RATING. Free-text formats keep no counters.
//
// Rows are created lazily on first occurrence of a key and afterwards only
// incremented; the unique index makes concurrent upserts serialize at the
// database.
type AggregateCounter struct {
	ID         uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TenantID   uint   `gorm:"column:tenant_id;not null;uniqueIndex:ux_counters_key,priority:1" json:"tenant_id"`
	SurveyID   uint   `gorm:"column:survey_id;not null;uniqueIndex:ux_counters_key,priority:2" json:"survey_id"`
	QuestionID uint   `gorm:"column:question_id;not null;uniqueIndex:ux_counters_key,priority:3" json:"question_id"`
	Bucket     string `gorm:"column:bucket;size:64;not null;uniqueIndex:ux_counters_key,priority:4" json:"bucket"`

	// Denormalized display fields so result reads need no joins.
	QuestionTitle string `gorm:"column:question_title;type:text" json:"question_title"`
	DisplayValue  string `gorm:"column:display_value;type:text" json:"display_value"`

	ResponseCount int64     `gorm:"column:response_count;not null;default:0" json:"response_count"`
	LastUpdated   time.Time `gorm:"column:last_updated" json:"last_updated"`
}

func (AggregateCounter) TableName() string {
	return "aggregate_counters"
}
