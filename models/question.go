package models

type Question struct {
	ID       uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SurveyID uint   `gorm:"column:survey_id;not null;index" json:"survey_id"`
	Survey   Survey `gorm:"foreignKey:SurveyID;constraint:OnDelete:CASCADE" json:"-"`
	Title    string `gorm:"column:title;type:text;not null" json:"title"`

	// Format is one of the codec.QuestionFormat values.
	Format   string `gorm:"column:format;size:32;not null" json:"format"`
	Required bool   `gorm:"column:required;default:false" json:"required"`
	Position int    `gorm:"column:position;default:0" json:"position"`

	Options []QuestionOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}
