package models

import "time"

// Notification is a message addressed to an order owner.
type Notification struct {
	ID        string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    int64             `json:"user_id" gorm:"index;not null"`
	Kind      string            `json:"kind" gorm:"type:varchar(30)"`
	Subject   string            `json:"subject" gorm:"type:varchar(200)"`
	Message   string            `json:"message" gorm:"type:text"`
	Metadata  map[string]string `json:"metadata" gorm:"serializer:json"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"created_at"`
}
