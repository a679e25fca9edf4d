package notification

import (
	"time"

	"github.com/google/uuid"
)

// Notification types.
const (
	TypeAppointmentRequest     = "appointment_request"
	TypeAppointmentRequestSent = "appointment_request_sent"
	TypeAppointmentAccepted    = "appointment_accepted"
	TypeAppointmentRejected    = "appointment_rejected"
	TypeAppointmentStatus      = "appointment_status"
	TypePrescriptionAdded      = "prescription_added"
	TypeReviewAdded            = "review_added"
)

// Live event names pushed to a user's room.
const (
	EventNewAppointmentRequest     = "newAppointmentRequest"
	EventAppointmentRequestSent    = "appointmentRequestSent"
	EventAppointmentUpdate         = "appointmentUpdate"
	EventReviewAdded               = "reviewAdded"
	EventNotificationsMarkedAsRead = "notificationsMarkedAsRead"
)

// Outbox delivery states.
const (
	DeliveryPending     = "pending"
	DeliveryDispatching = "dispatching"
	DeliveryDelivered   = "delivered"
	DeliveryFailed      = "failed"
)

var typeEvents = map[string]string{
	TypeAppointmentRequest:     EventNewAppointmentRequest,
	TypeAppointmentRequestSent: EventAppointmentRequestSent,
	TypeAppointmentAccepted:    EventAppointmentUpdate,
	TypeAppointmentRejected:    EventAppointmentUpdate,
	TypeAppointmentStatus:      EventAppointmentUpdate,
	TypePrescriptionAdded:      EventAppointmentUpdate,
	TypeReviewAdded:            EventReviewAdded,
}

func ValidType(t string) bool {
	_, ok := typeEvents[t]
	return ok
}

// EventFor returns the live event a notification of type t is pushed as.
func EventFor(t string) string {
	if ev, ok := typeEvents[t]; ok {
		return ev
	}
	return EventAppointmentUpdate
}

type Notification struct {
	ID             uuid.UUID  `json:"id" bson:"_id"`
	UserID         uuid.UUID  `json:"userId" bson:"userId"`
	Type           string     `json:"type" bson:"type"`
	Message        string     `json:"message" bson:"message"`
	AppointmentID  *uuid.UUID `json:"appointmentId,omitempty" bson:"appointmentId,omitempty"`
	Read           bool       `json:"read" bson:"read"`
	DeliveryStatus string     `json:"deliveryStatus" bson:"deliveryStatus"`
	Attempts       int        `json:"-" bson:"attempts"`
	LastError      *string    `json:"-" bson:"lastError,omitempty"`
	NextAttemptAt  time.Time  `json:"-" bson:"nextAttemptAt"`
	ClaimedAt      *time.Time `json:"-" bson:"claimedAt,omitempty"`
	DeliveredAt    *time.Time `json:"-" bson:"deliveredAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" bson:"createdAt"`
}

// Request asks for one notification to be recorded and pushed.
type Request struct {
	UserID        uuid.UUID
	Type          string
	Message       string
	AppointmentID *uuid.UUID
}

// Payload is the body of the live event.
type Payload struct {
	NotificationID uuid.UUID  `json:"notificationId"`
	Message        string     `json:"message"`
	Type           string     `json:"type"`
	AppointmentID  *uuid.UUID `json:"appointmentId,omitempty"`
}

func (n *Notification) Payload() Payload {
	return Payload{
		NotificationID: n.ID,
		Message:        n.Message,
		Type:           n.Type,
		AppointmentID:  n.AppointmentID,
	}
}

// MarkedAsRead is the body of notificationsMarkedAsRead.
type MarkedAsRead struct {
	IDs   []uuid.UUID `json:"ids,omitempty"`
	All   bool        `json:"all"`
	Count int         `json:"count"`
}
