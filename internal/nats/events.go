package nats

import "time"

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// StreamEvents holds every audit event produced by platform components.
const StreamEvents = "AUDITLINE_EVENTS"

// SubjectAuditEvent is the ingestion subject for produced audit events.
const SubjectAuditEvent = "auditline.events.audit"

// EventMessage is the wire shape of a produced audit event. Producers fill
// domain, user and outcome; the service assigns the ID at persistence time.
type EventMessage struct {
	DomainID  string            `json:"domainId" validate:"required"`
	UserLogin string            `json:"userLogin" validate:"required"`
	UserIP    string            `json:"userIp" validate:"required"`
	Occurred  time.Time         `json:"occurred" validate:"required"`
	Success   bool              `json:"success"`
	Type      string            `json:"type" validate:"required"`
	Component string            `json:"component,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Links     map[string]string `json:"links,omitempty"`
}
