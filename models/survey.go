package models

import "time"

// Survey lifecycle. Only published surveys accept submissions.
const (
	SurveyStatusDraft     = "draft"
	SurveyStatusPublished = "published"
	SurveyStatusArchived  = "archived"
)

type Survey struct {
	ID          uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TenantID    uint   `gorm:"column:tenant_id;not null;index" json:"tenant_id"`
	Tenant      Tenant `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
	Title       string `gorm:"column:title;size:255;not null" json:"title"`
	Description string `gorm:"column:description;type:text" json:"description"`
	Status      string `gorm:"column:status;size:20;default:'draft'" json:"status"`

	// AllowMultipleResponses permits the same identified respondent to submit
	// more than one session.
	AllowMultipleResponses bool `gorm:"column:allow_multiple_responses;default:false" json:"allow_multiple_responses"`

	// StyleJSON carries widget presentation settings verbatim; the server
	// never interprets it.
	StyleJSON string `gorm:"column:style_json;type:text" json:"-"`

	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	PublishedAt *time.Time `gorm:"column:published_at" json:"published_at,omitempty"`

	Questions []Question        `gorm:"foreignKey:SurveyID" json:"questions,omitempty"`
	Sessions  []ResponseSession `gorm:"foreignKey:SurveyID" json:"-"`
}

func (Survey) TableName() string {
	return "surveys"
}
