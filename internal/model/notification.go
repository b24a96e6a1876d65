package model

import (
	"time"
)

// NotificationType is the closed set of event categories a notification can carry.
type NotificationType string

const (
	NotificationTypeLeadCreated         NotificationType = "lead_created"
	NotificationTypeLeadAssigned        NotificationType = "lead_assigned"
	NotificationTypeLeadStatusChanged   NotificationType = "lead_status_changed"
	NotificationTypeProductCreated      NotificationType = "product_created"
	NotificationTypeProductUpdated      NotificationType = "product_updated"
	NotificationTypeProductDeleted      NotificationType = "product_deleted"
	NotificationTypeAppointmentBooked   NotificationType = "appointment_booked"
	NotificationTypeCallReportGenerated NotificationType = "call_report_generated"
)

// AllNotificationTypes lists every known type; preference responses must
// contain an entry for each of these.
var AllNotificationTypes = []NotificationType{
	NotificationTypeLeadCreated,
	NotificationTypeLeadAssigned,
	NotificationTypeLeadStatusChanged,
	NotificationTypeProductCreated,
	NotificationTypeProductUpdated,
	NotificationTypeProductDeleted,
	NotificationTypeAppointmentBooked,
	NotificationTypeCallReportGenerated,
}

func (t NotificationType) Valid() bool {
	for _, known := range AllNotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Notification is a single server-originated alert for one user. Only IsRead
// ever changes after creation, and only from false to true.
type Notification struct {
	ID            int64            `db:"id" json:"id"`
	UserID        int64            `db:"user_id" json:"user_id"`
	Message       string           `db:"message" json:"message"`
	Type          NotificationType `db:"type" json:"type"`
	IsRead        bool             `db:"is_read" json:"is_read"`
	RelatedLeadID *int64           `db:"related_lead_id" json:"related_lead_id,omitempty"`
	RelatedCallID *int64           `db:"related_call_id" json:"related_call_id,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

type NotificationPreference struct {
	ID               int64            `db:"id" json:"-"`
	UserID           int64            `db:"user_id" json:"-"`
	NotificationType NotificationType `db:"notification_type" json:"notification_type"`
	Enabled          bool             `db:"enabled" json:"enabled"`
	CreatedAt        time.Time        `db:"created_at" json:"-"`
}

type NotificationPreferenceItem struct {
	NotificationType NotificationType `json:"notification_type" binding:"required,notificationtype"`
	Enabled          bool             `json:"enabled"`
}

type NotificationPreferencesRequest struct {
	Items []NotificationPreferenceItem `json:"items" binding:"required,dive"`
}

type NotificationPreferencesResponse struct {
	Items []NotificationPreferenceItem `json:"items"`
}

type CreateNotificationRequest struct {
	UserID        int64            `json:"user_id" binding:"required"`
	Message       string           `json:"message" binding:"required"`
	Type          NotificationType `json:"type" binding:"required,notificationtype"`
	RelatedLeadID *int64           `json:"related_lead_id"`
	RelatedCallID *int64           `json:"related_call_id"`
}

type NotificationListResponse struct {
	Notifications []*Notification `json:"notifications"`
	Total         int64           `json:"total"`
	Page          int             `json:"page"`
	PageSize      int             `json:"page_size"`
}

// NotificationFilter narrows list queries; nil fields are ignored.
type NotificationFilter struct {
	IsRead   *bool
	Type     *NotificationType
	DateFrom *time.Time
	DateTo   *time.Time
}

// PushChannel is the outbox event type and broker channel that carries push
// envelopes to the realtime hubs.
const PushChannel = "notifications"

// PushEvent is the envelope published to the message broker and fanned out
// to the realtime hubs. UserID routes the event; the notification payload is
// forwarded to the user's open push channels verbatim.
type PushEvent struct {
	UserID       int64         `json:"user_id"`
	Notification *Notification `json:"notification"`
}
