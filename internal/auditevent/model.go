package auditevent

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent is a single persisted audit record. Events are written once at
// ingestion and never updated; the ID doubles as the pagination cursor.
type AuditEvent struct {
	ID        uuid.UUID         `json:"id"`
	DomainID  string            `json:"domain"`
	UserLogin string            `json:"userLogin"`
	Occurred  time.Time         `json:"occurred"`
	Recorded  time.Time         `json:"recorded"`
	UserIP    string            `json:"userIp"`
	Success   bool              `json:"success"`
	Type      string            `json:"type"`
	Params    map[string]string `json:"params,omitempty"`
	Links     map[string]string `json:"links,omitempty"`
}

// Page is one page of audit events in ascending ID order, plus the state a
// client needs to fetch the following page.
type Page struct {
	Events []AuditEvent      `json:"events"`
	Paging Paging            `json:"paging"`
	Links  map[string]string `json:"links,omitempty"`
}

// Paging carries the offset of the next page and a ready-made next URI.
// Both are empty on the last page.
type Paging struct {
	Offset string `json:"offset,omitempty"`
	Next   string `json:"next,omitempty"`
}
