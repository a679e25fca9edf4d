package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// TransitionStatus moves the appointment from one status to another in a
	// single conditional write. It returns apperr.ErrNotFound when the
	// appointment is no longer in status from, and apperr.ErrDuplicate when
	// accepting would give the doctor two accepted appointments in one slot.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (*Appointment, error)
	AddPrescription(ctx context.Context, appointmentID uuid.UUID, p *Prescription) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error)
	SlotTaken(ctx context.Context, doctorID uuid.UUID, date, clock string) (bool, error)
	AcceptedTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error)
}

type ReviewRepository interface {
	// Create fails with apperr.ErrDuplicate if the appointment already has a
	// review.
	Create(ctx context.Context, r *Review) error
	ListByReviewee(ctx context.Context, revieweeID uuid.UUID, limit, offset int) ([]*Review, int, error)
}
