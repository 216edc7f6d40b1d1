package models

import "time"

const (
	SessionStatusCompleted = "completed"
)

// ResponseSession is one completed widget run. Created once per accepted
// submission and never mutated afterwards except for status.
type ResponseSession struct {
	ID       uint `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TenantID uint `gorm:"column:tenant_id;not null;index" json:"tenant_id"`
	SurveyID uint `gorm:"column:survey_id;not null;uniqueIndex:ux_sessions_survey_client_key,priority:1" json:"survey_id"`

	// ClientSubmissionID is the widget-generated idempotency key. The unique
	// index lets a retried submission be answered with the original session
	// instead of a duplicate. Nullable so legacy widgets without the key
	// still submit.
	ClientSubmissionID *string `gorm:"column:client_submission_id;size:64;uniqueIndex:ux_sessions_survey_client_key,priority:2" json:"client_submission_id,omitempty"`

	UserID      *string   `gorm:"column:user_id;size:128" json:"user_id,omitempty"`
	UserIP      *string   `gorm:"column:user_ip;size:45" json:"user_ip,omitempty"`
	ExtraInfo   *string   `gorm:"column:extra_info;type:text" json:"extra_info,omitempty"`
	Status      string    `gorm:"column:status;size:20;default:'completed'" json:"status"`
	SubmittedAt time.Time `gorm:"column:submitted_at;autoCreateTime" json:"submitted_at"`

	Answers []AnswerRecord `gorm:"foreignKey:SessionID" json:"answers,omitempty"`
}

func (ResponseSession) TableName() string {
	return "response_sessions"
}
