package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/db"
)

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, role, name, email, password_hash, phone, gender, date_of_birth, address,
	specialization, qualifications, experience_years, bio, profile_picture, availability,
	created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Role, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Gender,
		&u.DateOfBirth, &u.Address, &u.Specialization, &u.Qualifications, &u.ExperienceYears,
		&u.Bio, &u.ProfilePicture, &u.Availability, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, role, name, email, password_hash, phone, gender, date_of_birth,
			address, specialization, qualifications, experience_years, bio, profile_picture, availability)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		u.ID, u.Role, u.Name, u.Email, u.PasswordHash, u.Phone, u.Gender, u.DateOfBirth,
		u.Address, u.Specialization, u.Qualifications, u.ExperienceYears, u.Bio, u.ProfilePicture,
		u.Availability).Scan(&u.CreatedAt, &u.UpdatedAt)
	return db.MapError(err)
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE users SET name=$2, phone=$3, gender=$4, date_of_birth=$5, address=$6,
			specialization=$7, qualifications=$8, experience_years=$9, bio=$10,
			profile_picture=$11, availability=$12, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.Name, u.Phone, u.Gender, u.DateOfBirth, u.Address, u.Specialization,
		u.Qualifications, u.ExperienceYears, u.Bio, u.ProfilePicture, u.Availability).Scan(&u.UpdatedAt)
	return db.MapError(err)
}

func (r *userRepoPG) ListByRole(ctx context.Context, role, specialization string, limit, offset int) ([]*User, int, error) {
	where := `WHERE role = $1 AND ($2 = '' OR specialization ILIKE '%' || $2 || '%')`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users `+where, role, specialization).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+userCols+` FROM users `+where+` ORDER BY name LIMIT $3 OFFSET $4`,
		role, specialization, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
