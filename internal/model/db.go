package model

import (
	"time"

	"gorm.io/datatypes"
)

// StoredBlob is one key/value entry of the session store.
type StoredBlob struct {
	Key       string `gorm:"column:blob_key;primaryKey;size:191;not null"`
	Value     []byte `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index"`
}

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "PENDING"
	OutboxPublished OutboxStatus = "PUBLISHED"
)

// OutboxEvent is a domain event waiting to be published on the broker.
type OutboxEvent struct {
	EventID     string         `gorm:"primaryKey;size:64;not null"`
	EventType   string         `gorm:"size:64;index;not null"`
	Payload     datatypes.JSON `gorm:"not null"`
	Status      OutboxStatus   `gorm:"size:16;index;not null"`
	Attempts    int            `gorm:"not null;default:0"`
	LastError   string         `gorm:"size:512"`
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
