package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashirxD/Hospital-App-sub000/internal/domain/identity"
	"github.com/ashirxD/Hospital-App-sub000/internal/domain/notification"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/auth"
)

// TxRunner runs fn in one store transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier records outbox notifications and wakes their dispatcher.
type Notifier interface {
	Enqueue(ctx context.Context, reqs ...notification.Request) error
	Kick()
}

type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

type Service struct {
	appointments AppointmentRepository
	reviews      ReviewRepository
	users        UserDirectory
	notifier     Notifier
	tx           TxRunner
	now          func() time.Time
}

func NewService(appt AppointmentRepository, rev ReviewRepository, users UserDirectory, notifier Notifier, tx TxRunner) *Service {
	return &Service{
		appointments: appt,
		reviews:      rev,
		users:        users,
		notifier:     notifier,
		tx:           tx,
		now:          time.Now,
	}
}

// inTx runs fn in a transaction and wakes the dispatcher once it commits.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.tx.InTx(ctx, fn); err != nil {
		return err
	}
	s.notifier.Kick()
	return nil
}

func (s *Service) user(ctx context.Context, id uuid.UUID, role, label string) (*identity.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) || errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("%s not found", label)
		}
		return nil, err
	}
	if role != "" && u.Role != role {
		return nil, apperr.NotFound("%s not found", label)
	}
	return u, nil
}

func (s *Service) getAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("appointment not found")
		}
		return nil, apperr.Internal(err, "get appointment")
	}
	return a, nil
}

// -- Booking --

type RequestInput struct {
	DoctorID uuid.UUID `json:"doctorId"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	Reason   string    `json:"reason"`
}

func (s *Service) RequestAppointment(ctx context.Context, caller auth.Identity, in RequestInput) (*Appointment, error) {
	if caller.Role != auth.RolePatient {
		return nil, apperr.Forbidden("only patients can request appointments")
	}
	if in.DoctorID == uuid.Nil {
		return nil, apperr.Validation("doctorId is required")
	}
	day, err := time.Parse(dateLayout, in.Date)
	if err != nil {
		return nil, apperr.Validation("date must be YYYY-MM-DD")
	}
	now := s.now()
	if in.Date < now.Format(dateLayout) {
		return nil, apperr.Validation("date cannot be in the past")
	}
	if _, err := identity.ParseClock(in.Time); err != nil {
		return nil, apperr.Validation("time must be HH:mm")
	}
	if in.Date == now.Format(dateLayout) && in.Time <= now.Format("15:04") {
		return nil, apperr.Validation("time has already passed today")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}

	doctor, err := s.user(ctx, in.DoctorID, auth.RoleDoctor, "doctor")
	if err != nil {
		return nil, err
	}
	patient, err := s.user(ctx, caller.UserID, auth.RolePatient, "patient")
	if err != nil {
		return nil, err
	}
	avail := doctor.Availability
	if avail == nil {
		return nil, apperr.Validation("doctor has not set availability")
	}
	if !avail.OnDay(day) {
		return nil, apperr.Validation("doctor is not available on %s", day.Weekday())
	}
	if !avail.Covers(in.Time) {
		return nil, apperr.Validation("time is outside the doctor's hours (%s-%s)", avail.StartTime, avail.EndTime)
	}
	if !avail.OffersSlot(in.Time, SlotLength) {
		return nil, apperr.Validation("time must start a %d-minute slot from %s", int(SlotLength/time.Minute), avail.StartTime)
	}
	taken, err := s.appointments.SlotTaken(ctx, doctor.ID, in.Date, in.Time)
	if err != nil {
		return nil, apperr.Internal(err, "check slot")
	}
	if taken {
		return nil, apperr.Conflict("slot already booked")
	}

	a := &Appointment{
		ID:            uuid.New(),
		PatientID:     patient.ID,
		DoctorID:      doctor.ID,
		Date:          in.Date,
		Time:          in.Time,
		Reason:        reason,
		Status:        StatusPending,
		Prescriptions: []Prescription{},
	}
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.appointments.Create(ctx, a); err != nil {
			return apperr.Internal(err, "create appointment")
		}
		return s.notifier.Enqueue(ctx,
			notification.Request{
				UserID:        doctor.ID,
				Type:          notification.TypeAppointmentRequest,
				Message:       fmt.Sprintf("New appointment request from %s for %s at %s", patient.Name, a.Date, a.Time),
				AppointmentID: &a.ID,
			},
			notification.Request{
				UserID:        patient.ID,
				Type:          notification.TypeAppointmentRequestSent,
				Message:       fmt.Sprintf("Appointment request sent to Dr. %s for %s at %s", doctor.Name, a.Date, a.Time),
				AppointmentID: &a.ID,
			},
		)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// -- Decisions --

func (s *Service) AcceptAppointment(ctx context.Context, caller auth.Identity, id uuid.UUID) (*Appointment, error) {
	return s.decide(ctx, caller, id, StatusAccepted)
}

func (s *Service) RejectAppointment(ctx context.Context, caller auth.Identity, id uuid.UUID) (*Appointment, error) {
	return s.decide(ctx, caller, id, StatusRejected)
}

func (s *Service) decide(ctx context.Context, caller auth.Identity, id uuid.UUID, to string) (*Appointment, error) {
	a, err := s.getAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.DoctorID != caller.UserID {
		return nil, apperr.Forbidden("only the assigned doctor can decide this request")
	}
	if a.Status != StatusPending {
		return nil, apperr.Conflict("appointment is no longer pending")
	}
	doctor, err := s.user(ctx, a.DoctorID, "", "doctor")
	if err != nil {
		return nil, err
	}
	patient, err := s.user(ctx, a.PatientID, "", "patient")
	if err != nil {
		return nil, err
	}

	verb, typ := "accepted", notification.TypeAppointmentAccepted
	if to == StatusRejected {
		verb, typ = "rejected", notification.TypeAppointmentRejected
	}

	var updated *Appointment
	err = s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if updated, err = s.transition(ctx, a.ID, StatusPending, to); err != nil {
			return err
		}
		return s.notifier.Enqueue(ctx,
			notification.Request{
				UserID:        patient.ID,
				Type:          typ,
				Message:       fmt.Sprintf("Dr. %s %s your appointment on %s at %s", doctor.Name, verb, a.Date, a.Time),
				AppointmentID: &a.ID,
			},
			notification.Request{
				UserID:        doctor.ID,
				Type:          typ,
				Message:       fmt.Sprintf("You %s the appointment with %s on %s at %s", verb, patient.Name, a.Date, a.Time),
				AppointmentID: &a.ID,
			},
		)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to string) (*Appointment, error) {
	updated, err := s.appointments.TransitionStatus(ctx, id, from, to)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, apperr.ErrDuplicate):
		return nil, apperr.Conflict("slot already booked")
	case errors.Is(err, apperr.ErrNotFound):
		if from == StatusPending {
			return nil, apperr.Conflict("appointment is no longer pending")
		}
		return nil, apperr.Conflict("appointment status changed, reload and retry")
	default:
		return nil, apperr.Internal(err, "update appointment status")
	}
}

var doctorStatuses = map[string]bool{StatusAttended: true, StatusCancelled: true, StatusAbsent: true}

// UpdateStatus records the outcome of an accepted appointment.
func (s *Service) UpdateStatus(ctx context.Context, caller auth.Identity, id uuid.UUID, status string) (*Appointment, error) {
	if !doctorStatuses[status] {
		return nil, apperr.Validation("status must be attended, cancelled or absent")
	}
	a, err := s.getAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.DoctorID != caller.UserID {
		return nil, apperr.Forbidden("only the assigned doctor can update this appointment")
	}
	if !CanTransition(a.Status, status) {
		return nil, apperr.Conflict("cannot change status from %s to %s", a.Status, status)
	}
	doctor, err := s.user(ctx, a.DoctorID, "", "doctor")
	if err != nil {
		return nil, err
	}

	var updated *Appointment
	err = s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if updated, err = s.transition(ctx, a.ID, a.Status, status); err != nil {
			return err
		}
		return s.notifier.Enqueue(ctx, notification.Request{
			UserID:        a.PatientID,
			Type:          notification.TypeAppointmentStatus,
			Message:       fmt.Sprintf("Your appointment with Dr. %s on %s at %s was marked %s", doctor.Name, a.Date, a.Time, status),
			AppointmentID: &a.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// -- Prescriptions --

type PrescriptionInput struct {
	Medication string  `json:"medication"`
	Dosage     string  `json:"dosage"`
	Frequency  string  `json:"frequency"`
	Duration   string  `json:"duration"`
	Notes      *string `json:"notes"`
}

func (s *Service) AddPrescription(ctx context.Context, caller auth.Identity, id uuid.UUID, in PrescriptionInput) (*Appointment, error) {
	p := Prescription{
		ID:         uuid.New(),
		Medication: strings.TrimSpace(in.Medication),
		Dosage:     strings.TrimSpace(in.Dosage),
		Frequency:  strings.TrimSpace(in.Frequency),
		Duration:   strings.TrimSpace(in.Duration),
		Notes:      in.Notes,
	}
	if p.Medication == "" || p.Dosage == "" {
		return nil, apperr.Validation("medication and dosage are required")
	}

	a, err := s.getAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.DoctorID != caller.UserID {
		return nil, apperr.Forbidden("only the assigned doctor can prescribe")
	}
	if a.Status != StatusAccepted && a.Status != StatusAttended {
		return nil, apperr.Conflict("prescriptions need an accepted or attended appointment")
	}
	doctor, err := s.user(ctx, a.DoctorID, "", "doctor")
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.appointments.AddPrescription(ctx, a.ID, &p); err != nil {
			return apperr.Internal(err, "add prescription")
		}
		return s.notifier.Enqueue(ctx, notification.Request{
			UserID:        a.PatientID,
			Type:          notification.TypePrescriptionAdded,
			Message:       fmt.Sprintf("Dr. %s added a prescription for %s", doctor.Name, p.Medication),
			AppointmentID: &a.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.getAppointment(ctx, id)
}

// -- Queries --

func (s *Service) ListAppointments(ctx context.Context, caller auth.Identity, status string, limit, offset int) ([]*Appointment, int, error) {
	if status != "" && !ValidStatus(status) {
		return nil, 0, apperr.Validation("invalid status %q", status)
	}
	f := ListFilter{Status: status}
	switch caller.Role {
	case auth.RoleDoctor:
		f.DoctorID = &caller.UserID
	case auth.RolePatient:
		f.PatientID = &caller.UserID
	default:
		return nil, 0, apperr.Forbidden("unknown role")
	}
	return s.list(ctx, f, limit, offset)
}

// PatientHistory lists a patient's appointments with the calling doctor.
func (s *Service) PatientHistory(ctx context.Context, caller auth.Identity, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	if caller.Role != auth.RoleDoctor {
		return nil, 0, apperr.Forbidden("only doctors can view patient history")
	}
	if _, err := s.user(ctx, patientID, auth.RolePatient, "patient"); err != nil {
		return nil, 0, err
	}
	return s.list(ctx, ListFilter{DoctorID: &caller.UserID, PatientID: &patientID}, limit, offset)
}

func (s *Service) list(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	items, total, err := s.appointments.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err, "list appointments")
	}
	return items, total, nil
}

func (s *Service) GetAppointment(ctx context.Context, caller auth.Identity, id uuid.UUID) (*Appointment, error) {
	a, err := s.getAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.HasParticipant(caller.UserID) {
		return nil, apperr.Forbidden("not your appointment")
	}
	return a, nil
}

// AvailableSlots lists the free slot start times of a doctor on date.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, apperr.Validation("date must be YYYY-MM-DD")
	}
	doctor, err := s.user(ctx, doctorID, auth.RoleDoctor, "doctor")
	if err != nil {
		return nil, err
	}
	slots := []string{}
	today := s.now().Format(dateLayout)
	if doctor.Availability == nil || !doctor.Availability.OnDay(day) || date < today {
		return slots, nil
	}

	accepted, err := s.appointments.AcceptedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, apperr.Internal(err, "list accepted times")
	}
	taken := make(map[string]bool, len(accepted))
	for _, t := range accepted {
		taken[t] = true
	}
	nowClock := s.now().Format("15:04")
	for _, slot := range doctor.Availability.Slots(SlotLength) {
		if taken[slot] || (date == today && slot <= nowClock) {
			continue
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// -- Reviews --

type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Service) AddReview(ctx context.Context, caller auth.Identity, appointmentID uuid.UUID, in ReviewInput) (*Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	a, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.PatientID != caller.UserID {
		return nil, apperr.Forbidden("only the patient can review this appointment")
	}
	if a.Status != StatusAttended && a.Status != StatusCompleted {
		return nil, apperr.Conflict("only attended appointments can be reviewed")
	}
	patient, err := s.user(ctx, a.PatientID, "", "patient")
	if err != nil {
		return nil, err
	}

	r := &Review{
		ID:            uuid.New(),
		AppointmentID: a.ID,
		ReviewerID:    a.PatientID,
		RevieweeID:    a.DoctorID,
		Rating:        in.Rating,
		Comment:       strings.TrimSpace(in.Comment),
	}
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.reviews.Create(ctx, r); err != nil {
			if errors.Is(err, apperr.ErrDuplicate) {
				return apperr.Conflict("appointment already reviewed")
			}
			return apperr.Internal(err, "create review")
		}
		return s.notifier.Enqueue(ctx, notification.Request{
			UserID:        a.DoctorID,
			Type:          notification.TypeReviewAdded,
			Message:       fmt.Sprintf("%s left a %d-star review", patient.Name, r.Rating),
			AppointmentID: &a.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) ListDoctorReviews(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Review, int, error) {
	if _, err := s.user(ctx, doctorID, auth.RoleDoctor, "doctor"); err != nil {
		return nil, 0, err
	}
	items, total, err := s.reviews.ListByReviewee(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err, "list reviews")
	}
	return items, total, nil
}

// AppointmentMail resolves the patient email details for an appointment
// decision notice.
func (s *Service) AppointmentMail(ctx context.Context, appointmentID uuid.UUID) (*notification.MailDetails, error) {
	a, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	patient, err := s.user(ctx, a.PatientID, "", "patient")
	if err != nil {
		return nil, err
	}
	doctor, err := s.user(ctx, a.DoctorID, "", "doctor")
	if err != nil {
		return nil, err
	}
	return &notification.MailDetails{
		PatientID: patient.ID,
		To:        patient.Email,
		Name:      patient.Name,
		Doctor:    doctor.Name,
		Date:      a.Date,
		Time:      a.Time,
		Reason:    a.Reason,
	}, nil
}
