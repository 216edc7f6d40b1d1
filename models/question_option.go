package models

type QuestionOption struct {
	ID         uint     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	QuestionID uint     `gorm:"column:question_id;not null;index" json:"question_id"`
	Question   Question `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"-"`
	Text       string   `gorm:"column:text;type:text;not null" json:"text"`
	Position   int      `gorm:"column:position;default:0" json:"position"`

	// IsOther marks the free-text fallback option. At most one per question.
	IsOther bool `gorm:"column:is_other;default:false" json:"is_other"`
}

func (QuestionOption) TableName() string {
	return "question_options"
}
