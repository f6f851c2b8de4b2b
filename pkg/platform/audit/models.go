package audit

import (
	"context"
	"time"

	id "consentwindow/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers events with legal or regulatory significance. Every
	// consent window transition is one.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

type AuditEvent string

const (
	EventConsentGiven      AuditEvent = "consent_given"
	EventConsentExtended   AuditEvent = "consent_extended"
	EventConsentEndedEarly AuditEvent = "consent_ended_early"
	EventConsentCancelled  AuditEvent = "consent_cancelled"
	EventConsentChecked    AuditEvent = "consent_checked"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventConsentGiven:      CategoryCompliance,
	EventConsentExtended:   CategoryCompliance,
	EventConsentEndedEarly: CategoryCompliance,
	EventConsentCancelled:  CategoryCompliance,
	EventConsentChecked:    CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is the stored form of an audit record.
type Event struct {
	ID          string
	Category    EventCategory
	Timestamp   time.Time
	OwnerID     id.OwnerID
	Fingerprint string
	Action      string
	Index       int
	RequestID   string
	ClientIP    string
	Device      string
}

// ComplianceEvent captures a consent transition requiring guaranteed persistence.
// Use with the compliance publisher for fail-closed semantics.
type ComplianceEvent struct {
	Timestamp   time.Time  // When the transition happened (set automatically if zero)
	OwnerID     id.OwnerID // Owner whose history changed (required)
	Fingerprint string     // 0x-prefixed document hash
	Action      string     // One of the consent_* AuditEvent values
	Index       int        // Position of the affected window in the history
	RequestID   string     // Correlation ID for request tracing
	ClientIP    string
	Device      string
}

func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToEvent converts to the stored Event form.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:    CategoryCompliance,
		Timestamp:   e.Timestamp,
		OwnerID:     e.OwnerID,
		Fingerprint: e.Fingerprint,
		Action:      e.Action,
		Index:       e.Index,
		RequestID:   e.RequestID,
		ClientIP:    e.ClientIP,
		Device:      e.Device,
	}
}

// Store persists audit events. Implementations that share a database with the consent
// store join the transaction carried by ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByOwner(ctx context.Context, owner id.OwnerID) ([]Event, error)
}
