package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/db"
)

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `id, patient_id, doctor_id, date, time, reason, status, created_at, updated_at`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Date, &a.Time, &a.Reason, &a.Status,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, db.MapError(err)
	}
	a.Prescriptions = []Prescription{}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, date, time, reason, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.Date, a.Time, a.Reason, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return db.MapError(err)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadPrescriptions(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *appointmentRepoPG) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (*Appointment, error) {
	a, err := r.scanAppt(r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+apptCols, id, from, to))
	if err != nil {
		return nil, err
	}
	if err := r.loadPrescriptions(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *appointmentRepoPG) AddPrescription(ctx context.Context, appointmentID uuid.UUID, p *Prescription) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (id, appointment_id, medication, dosage, frequency, duration, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING issued_at`,
		p.ID, appointmentID, p.Medication, p.Dosage, p.Frequency, p.Duration, p.Notes,
	).Scan(&p.IssuedAt)
	if err != nil {
		return db.MapError(err)
	}
	_, err = r.conn(ctx).Exec(ctx, `UPDATE appointments SET updated_at = NOW() WHERE id = $1`, appointmentID)
	return err
}

const rxCols = `id, appointment_id, medication, dosage, frequency, duration, notes, issued_at`

// loadPrescriptions fills the prescriptions of every appointment in one query.
func (r *appointmentRepoPG) loadPrescriptions(ctx context.Context, appts ...*Appointment) error {
	if len(appts) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Appointment, len(appts))
	ids := make([]uuid.UUID, 0, len(appts))
	for _, a := range appts {
		byID[a.ID] = a
		ids = append(ids, a.ID)
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+rxCols+` FROM prescriptions
		WHERE appointment_id = ANY($1) ORDER BY issued_at`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p Prescription
		var apptID uuid.UUID
		if err := rows.Scan(&p.ID, &apptID, &p.Medication, &p.Dosage, &p.Frequency, &p.Duration,
			&p.Notes, &p.IssuedAt); err != nil {
			return err
		}
		if a, ok := byID[apptID]; ok {
			a.Prescriptions = append(a.Prescriptions, p)
		}
	}
	return rows.Err()
}

func (r *appointmentRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.DoctorID != nil {
		where += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, *f.DoctorID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + ` FROM appointments` + where +
		fmt.Sprintf(` ORDER BY date DESC, time DESC, created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		items = append(items, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadPrescriptions(ctx, items...); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *appointmentRepoPG) SlotTaken(ctx context.Context, doctorID uuid.UUID, date, clock string) (bool, error) {
	var taken bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND date = $2 AND time = $3 AND status = 'accepted')`,
		doctorID, date, clock).Scan(&taken)
	return taken, err
}

func (r *appointmentRepoPG) AcceptedTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT time FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND status = 'accepted'
		ORDER BY time`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// =========== Review Repository ===========

type reviewRepoPG struct{ pool *pgxpool.Pool }

func NewReviewRepoPG(pool *pgxpool.Pool) ReviewRepository { return &reviewRepoPG{pool: pool} }

func (r *reviewRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *reviewRepoPG) Create(ctx context.Context, rv *Review) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO reviews (id, appointment_id, reviewer_id, reviewee_id, rating, comment)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		rv.ID, rv.AppointmentID, rv.ReviewerID, rv.RevieweeID, rv.Rating, rv.Comment,
	).Scan(&rv.CreatedAt)
	return db.MapError(err)
}

func (r *reviewRepoPG) ListByReviewee(ctx context.Context, revieweeID uuid.UUID, limit, offset int) ([]*Review, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE reviewee_id = $1`, revieweeID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, appointment_id, reviewer_id, reviewee_id, rating, comment, created_at
		FROM reviews WHERE reviewee_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, revieweeID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Review
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.AppointmentID, &rv.ReviewerID, &rv.RevieweeID, &rv.Rating,
			&rv.Comment, &rv.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &rv)
	}
	return items, total, rows.Err()
}
