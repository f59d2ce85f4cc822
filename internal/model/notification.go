package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeSlotProposal  NotificationType = "SLOT_PROPOSAL"
	NotificationTypeSlotAvailable NotificationType = "SLOT_AVAILABLE"
	NotificationTypeSlotCancelled NotificationType = "SLOT_CANCELLED"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusSent    NotificationStatus = "SENT"
	NotificationStatusFailed  NotificationStatus = "FAILED"
	NotificationStatusRead    NotificationStatus = "READ"
)

type RecipientAction string

const (
	RecipientActionAccepted RecipientAction = "ACCEPTED"
	RecipientActionRefused  RecipientAction = "REFUSED"
)

// MaxProposalRecipients caps the explicit recipient list of a slot proposal.
const MaxProposalRecipients = 10

// Notification is one dispatch event. Immutable after creation except status.
type Notification struct {
	ID          uuid.UUID          `json:"id" db:"id"`
	Type        NotificationType   `json:"type" db:"type"`
	Status      NotificationStatus `json:"status" db:"status"`
	SlotDate    time.Time          `json:"slot_date" db:"slot_date"`
	StartTime   string             `json:"start_time" db:"start_time"`
	EndTime     string             `json:"end_time" db:"end_time"`
	Location    string             `json:"location" db:"location"`
	Description string             `json:"description" db:"description"`
	SenderID    uuid.UUID          `json:"sender_id" db:"sender_id"`
	SentAt      time.Time          `json:"sent_at" db:"sent_at"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
}

// NotificationRecipient is the per-(notification,user) tracking row,
// unique per pair. Created unflagged at dispatch time.
type NotificationRecipient struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	NotificationID uuid.UUID        `json:"notification_id" db:"notification_id"`
	UserID         uuid.UUID        `json:"user_id" db:"user_id"`
	Received       bool             `json:"received" db:"received"`
	ReceivedAt     *time.Time       `json:"received_at" db:"received_at"`
	Clicked        bool             `json:"clicked" db:"clicked"`
	ClickedAt      *time.Time       `json:"clicked_at" db:"clicked_at"`
	Action         *RecipientAction `json:"action" db:"action"`
	ActionAt       *time.Time       `json:"action_at" db:"action_at"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// SlotDetails describes the preaching slot a notification is about.
type SlotDetails struct {
	Date        string `json:"date" binding:"required,datetime=2006-01-02"`
	StartTime   string `json:"start_time" binding:"required,timeofday"`
	EndTime     string `json:"end_time" binding:"required,timeofday"`
	Location    string `json:"location" binding:"required"`
	Description string `json:"description"`
}

// SendNotificationRequest is the admin dispatch payload.
// RecipientIDs is required for proposals, SlotID for cancellations.
type SendNotificationRequest struct {
	Type         NotificationType `json:"type" binding:"required,oneof=SLOT_PROPOSAL SLOT_AVAILABLE SLOT_CANCELLED"`
	Slot         SlotDetails      `json:"slot" binding:"required"`
	RecipientIDs []uuid.UUID      `json:"recipientIds"`
	SlotID       *uuid.UUID       `json:"slotId"`
}

// TrackClickRequest records that a recipient clicked a notification.
type TrackClickRequest struct {
	NotificationID uuid.UUID `json:"notification_id" binding:"required"`
	UserID         uuid.UUID `json:"user_id" binding:"required"`
}

// TrackReadRequest marks a notification read by the caller.
type TrackReadRequest struct {
	NotificationID uuid.UUID `json:"notification_id" binding:"required"`
}

// RespondRequest records the caller's accept/refuse decision.
type RespondRequest struct {
	Action RecipientAction `json:"action" binding:"required,oneof=ACCEPTED REFUSED"`
}

// DeliveryFailure is one itemized failure in a delivery report.
type DeliveryFailure struct {
	UserID   uuid.UUID `json:"user_id"`
	Endpoint string    `json:"endpoint,omitempty"`
	Reason   string    `json:"reason"`
}

// DeliveryReport is returned to the dispatching admin.
type DeliveryReport struct {
	NotificationID        uuid.UUID         `json:"notification_id"`
	TotalRecipients       int               `json:"totalRecipients"`
	PushNotificationsSent int               `json:"pushNotificationsSent"`
	FailedDeliveries      int               `json:"failedDeliveries"`
	Failures              []DeliveryFailure `json:"failures,omitempty"`
}

// NotificationWithMetrics is a history row: the notification plus counts
// folded from its recipient rows. Never stored, always recomputed.
type NotificationWithMetrics struct {
	Notification
	TotalRecipients int `json:"total_recipients" db:"total_recipients"`
	ReceivedCount   int `json:"received_count" db:"received_count"`
	ClickedCount    int `json:"clicked_count" db:"clicked_count"`
	AcceptedCount   int `json:"accepted_count" db:"accepted_count"`
	RefusedCount    int `json:"refused_count" db:"refused_count"`
}

// UserNotification is a notification joined with the caller's own
// recipient state, for the per-user inbox listing.
type UserNotification struct {
	Notification
	Received bool             `json:"received" db:"received"`
	Clicked  bool             `json:"clicked" db:"clicked"`
	Action   *RecipientAction `json:"action" db:"action"`
	ActionAt *time.Time       `json:"action_at" db:"action_at"`
}
