package models

import "time"

// DataRecord is an opaque key/value entry managed through the admin panel.
// UpdatedAt is assigned on every write, never accepted from the client.
type DataRecord struct {
	RecordID  string    `json:"record_id" dynamodbav:"record_id"` // Primary Key
	Key       string    `json:"key" dynamodbav:"record_key"`
	Value     string    `json:"value" dynamodbav:"record_value"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// RecordRequest carries the writable fields of a data record
type RecordRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
