package models

import "time"

type ContextKey string

const (
	OrganizationIDKey ContextKey = "organization_id"
)

// Log is the persisted shape of engine log entries written by the
// async zap sink.
type Log struct {
	Message        string    `bson:"message" json:"message"`
	OrganizationId string    `bson:"organization_id,omitempty" json:"organization_id,omitempty"`
	LogLevelId     int       `bson:"log_level_id" json:"log_level_id"`
	Caller         string    `bson:"caller,omitempty" json:"caller,omitempty"`
	AppId          string    `bson:"app_id" json:"app_id"`
	CreatedOnUtc   time.Time `bson:"created_on_utc" json:"created_on_utc"`
}
