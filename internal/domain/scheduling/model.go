package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusAttended  = "attended"
	StatusCancelled = "cancelled"
	StatusAbsent    = "absent"
	StatusCompleted = "completed"
)

// SlotLength is the bookable granularity inside a doctor's window.
const SlotLength = 30 * time.Minute

const dateLayout = "2006-01-02"

var validStatuses = map[string]bool{
	StatusPending: true, StatusAccepted: true, StatusRejected: true, StatusAttended: true,
	StatusCancelled: true, StatusAbsent: true, StatusCompleted: true,
}

// transitions lists the one-way moves allowed out of each status. Nothing
// leads back to pending.
var transitions = map[string][]string{
	StatusPending:  {StatusAccepted, StatusRejected},
	StatusAccepted: {StatusAttended, StatusCancelled, StatusAbsent},
}

func ValidStatus(s string) bool { return validStatuses[s] }

func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Prescription struct {
	ID         uuid.UUID `json:"id" bson:"id"`
	Medication string    `json:"medication" bson:"medication"`
	Dosage     string    `json:"dosage" bson:"dosage"`
	Frequency  string    `json:"frequency" bson:"frequency"`
	Duration   string    `json:"duration" bson:"duration"`
	Notes      *string   `json:"notes,omitempty" bson:"notes,omitempty"`
	IssuedAt   time.Time `json:"issuedAt" bson:"issuedAt"`
}

type Appointment struct {
	ID            uuid.UUID      `json:"id" bson:"_id"`
	PatientID     uuid.UUID      `json:"patientId" bson:"patientId"`
	DoctorID      uuid.UUID      `json:"doctorId" bson:"doctorId"`
	Date          string         `json:"date" bson:"date"`
	Time          string         `json:"time" bson:"time"`
	Reason        string         `json:"reason" bson:"reason"`
	Status        string         `json:"status" bson:"status"`
	Prescriptions []Prescription `json:"prescriptions" bson:"prescriptions"`
	CreatedAt     time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// HasParticipant reports whether userID is the patient or the doctor.
func (a *Appointment) HasParticipant(userID uuid.UUID) bool {
	return a.PatientID == userID || a.DoctorID == userID
}

type Review struct {
	ID            uuid.UUID `json:"id" bson:"_id"`
	AppointmentID uuid.UUID `json:"appointmentId" bson:"appointmentId"`
	ReviewerID    uuid.UUID `json:"reviewerId" bson:"reviewerId"`
	RevieweeID    uuid.UUID `json:"revieweeId" bson:"revieweeId"`
	Rating        int       `json:"rating" bson:"rating"`
	Comment       string    `json:"comment" bson:"comment"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
}

// ListFilter narrows an appointment listing. Nil ids and an empty status
// match everything.
type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    string
}
