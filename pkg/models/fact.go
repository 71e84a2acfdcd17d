package models

import "time"

// Fact is one tenant-scoped knowledge entry served by progressive recall.
// Facts are deduplicated per tenant by content hash.
type Fact struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id,omitempty"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	Tags        []string  `json:"tags,omitempty"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Deleted     bool      `json:"deleted,omitempty"`
}
