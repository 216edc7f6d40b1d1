package models

import "time"

// AnswerRecord is one persisted answer to one question within a session.
// MULTIPLE_CHOICE answers fan out to one record per selected option; every
// other format produces at most one. Exactly one of OptionID/TextValue/
// NumberValue/BooleanValue is semantically primary per format. Immutable.
type AnswerRecord struct {
	ID         uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TenantID   uint            `gorm:"column:tenant_id;not null;index" json:"tenant_id"`
	SessionID  uint            `gorm:"column:session_id;not null;index" json:"session_id"`
	Session    ResponseSession `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
	SurveyID   uint            `gorm:"column:survey_id;not null;index" json:"survey_id"`
	QuestionID uint            `gorm:"column:question_id;not null;index" json:"question_id"`
	Format     string          `gorm:"column:format;size:32;not null" json:"format"`

	OptionID     *uint   `gorm:"column:option_id" json:"option_id,omitempty"`
	TextValue    *string `gorm:"column:text_value;type:text" json:"text_value,omitempty"`
	NumberValue  *int    `gorm:"column:number_value" json:"number_value,omitempty"`
	BooleanValue *bool   `gorm:"column:boolean_value" json:"boolean_value,omitempty"`
	IsOther      bool    `gorm:"column:is_other;default:false" json:"is_other"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (AnswerRecord) TableName() string {
	return "answer_records"
}
