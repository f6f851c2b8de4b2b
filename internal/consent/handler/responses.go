package handler

import (
	"consentwindow/pkg/platform/audit"
)

// AuditEventResponse is one entry of an owner's audit trail.
type AuditEventResponse struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Hash      string `json:"hash"`
	Index     int    `json:"index"`
	Timestamp int64  `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	Device    string `json:"device,omitempty"`
}

// AuditTrailResponse lists events oldest first.
type AuditTrailResponse struct {
	Events []AuditEventResponse `json:"events"`
}

func newAuditTrailResponse(events []audit.Event) AuditTrailResponse {
	out := make([]AuditEventResponse, len(events))
	for i, e := range events {
		out[i] = AuditEventResponse{
			ID:        e.ID,
			Action:    e.Action,
			Hash:      e.Fingerprint,
			Index:     e.Index,
			Timestamp: e.Timestamp.Unix(),
			RequestID: e.RequestID,
			ClientIP:  e.ClientIP,
			Device:    e.Device,
		}
	}
	return AuditTrailResponse{Events: out}
}
