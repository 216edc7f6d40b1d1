package models

import "time"

// Tenant is the team that owns surveys and receives responses. All persisted
// rows are scoped by tenant id for isolation.
type Tenant struct {
	ID         uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name       string `gorm:"column:name;size:100;not null" json:"name"`
	APIKey     string `gorm:"column:api_key;size:64;uniqueIndex;not null" json:"api_key"`
	SecretHash string `gorm:"column:secret_hash;size:255;not null" json:"-"`

	// ResponseCount is the lifetime number of accepted response sessions,
	// bumped once per session inside the aggregation transaction.
	// ResponseLimit 0 means unlimited.
	ResponseCount int64 `gorm:"column:response_count;not null;default:0" json:"response_count"`
	ResponseLimit int64 `gorm:"column:response_limit;not null;default:0" json:"response_limit"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	Surveys []Survey `gorm:"foreignKey:TenantID" json:"-"`
}

func (Tenant) TableName() string {
	return "tenants"
}
