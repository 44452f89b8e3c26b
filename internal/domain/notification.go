package domain

import (
	"encoding/json"
	"time"
)

// NotificationID is a unique identifier for a notification.
type NotificationID string

// String returns the string representation of the NotificationID.
func (id NotificationID) String() string {
	return string(id)
}

// NotificationKind says which lifecycle transition a notification reports.
type NotificationKind string

const (
	NotificationQueued    NotificationKind = "queued"
	NotificationSucceeded NotificationKind = "succeeded"
	NotificationFailed    NotificationKind = "failed"
	NotificationCanceled  NotificationKind = "canceled"
	NotificationPremium   NotificationKind = "premium"
)

// ActionCategory is the action a notification offers the user.
type ActionCategory string

const (
	ActionNone     ActionCategory = ""
	ActionOpenFile ActionCategory = "open_file"
	ActionCancel   ActionCategory = "cancel"
	ActionRetry    ActionCategory = "retry"
	ActionPurchase ActionCategory = "purchase"
)

// Notification is a user-facing message about a download.
// Payload's schema depends on Action: CancelPayload, OpenFilePayload,
// PurchasePayload or RetryableIntent.
type Notification struct {
	ID        NotificationID   `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body,omitempty"`
	Action    ActionCategory   `json:"action,omitempty"`
	Payload   json.RawMessage  `json:"payload,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// CancelPayload binds a cancel action to a job.
type CancelPayload struct {
	GID string `json:"gid"`
}

// OpenFilePayload points at a finished download.
type OpenFilePayload struct {
	Path string `json:"path"`
}

// PurchasePayload points at the subscription page.
type PurchasePayload struct {
	URL string `json:"url"`
}

// Notifier presents notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// NotificationFilter specifies criteria for querying notifications.
type NotificationFilter struct {
	Kind      *NotificationKind `json:"kind,omitempty"`
	Action    *ActionCategory   `json:"action,omitempty"`
	StartTime *time.Time        `json:"start_time,omitempty"`
	EndTime   *time.Time        `json:"end_time,omitempty"`
}

// NotificationQuery represents a query for notifications with pagination.
type NotificationQuery struct {
	Filter NotificationFilter `json:"filter"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// NotificationQueryResult contains the result of a notification query.
type NotificationQueryResult struct {
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"has_more"`
}
