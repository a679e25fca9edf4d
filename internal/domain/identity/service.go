package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/auth"
)

const minPasswordLength = 8

// TokenIssuer signs bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID uuid.UUID, role string) (string, error)
}

type Service struct {
	users    UserRepository
	tokens   TokenIssuer
	hashCost int
}

func NewService(users UserRepository, tokens TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens}
}

type SignupInput struct {
	Role           string  `json:"role"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	Phone          *string `json:"phone"`
	Specialization *string `json:"specialization"`
}

type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("invalid email")
	}
	return email, nil
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	if !auth.ValidRole(in.Role) {
		return nil, apperr.Validation("role must be doctor or patient")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}

	hash, err := auth.HashPassword(in.Password, s.hashCost)
	if err != nil {
		return nil, apperr.Internal(err, "hash password")
	}
	u := &User{
		ID:           uuid.New(),
		Role:         in.Role,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Phone:        in.Phone,
	}
	if in.Role == auth.RoleDoctor {
		u.Specialization = in.Specialization
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, apperr.Internal(err, "create user")
	}
	return s.authResult(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthorized("invalid email or password")
		}
		return nil, apperr.Internal(err, "find user")
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, apperr.Unauthorized("invalid email or password")
	}
	return s.authResult(u)
}

func (s *Service) authResult(u *User) (*AuthResult, error) {
	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, apperr.Internal(err, "issue token")
	}
	return &AuthResult{Token: token, User: u}, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal(err, "get user")
	}
	return u, nil
}

// Exists reports whether a user with id is registered.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.users.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Internal(err, "get user")
	}
	return true, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != auth.RoleDoctor {
		return nil, apperr.NotFound("doctor not found")
	}
	return u, nil
}

// ProfileUpdate carries a partial profile edit; nil fields are left as is.
type ProfileUpdate struct {
	Name            *string `json:"name"`
	Phone           *string `json:"phone"`
	Gender          *string `json:"gender"`
	DateOfBirth     *string `json:"dateOfBirth"`
	Address         *string `json:"address"`
	Specialization  *string `json:"specialization"`
	Qualifications  *string `json:"qualifications"`
	ExperienceYears *int    `json:"experienceYears"`
	Bio             *string `json:"bio"`
	ProfilePicture  *string `json:"profilePicture"`
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileUpdate) (*User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		u.Name = name
	}
	if in.DateOfBirth != nil && *in.DateOfBirth != "" {
		if _, err := time.Parse("2006-01-02", *in.DateOfBirth); err != nil {
			return nil, apperr.Validation("dateOfBirth must be YYYY-MM-DD")
		}
	}
	if in.ExperienceYears != nil && *in.ExperienceYears < 0 {
		return nil, apperr.Validation("experienceYears cannot be negative")
	}

	assign(&u.Phone, in.Phone)
	assign(&u.ProfilePicture, in.ProfilePicture)
	if u.Role == auth.RolePatient {
		assign(&u.Gender, in.Gender)
		assign(&u.DateOfBirth, in.DateOfBirth)
		assign(&u.Address, in.Address)
	} else {
		assign(&u.Specialization, in.Specialization)
		assign(&u.Qualifications, in.Qualifications)
		assign(&u.Bio, in.Bio)
		if in.ExperienceYears != nil {
			u.ExperienceYears = in.ExperienceYears
		}
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, apperr.Internal(err, "update user")
	}
	return u, nil
}

func assign(dst **string, v *string) {
	if v != nil {
		val := strings.TrimSpace(*v)
		*dst = &val
	}
}

func (s *Service) UpdateAvailability(ctx context.Context, id uuid.UUID, a Availability) (*User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != auth.RoleDoctor {
		return nil, apperr.Forbidden("only doctors have availability")
	}
	if err := a.Normalize(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	u.Availability = &a
	if err := s.users.Update(ctx, u); err != nil {
		return nil, apperr.Internal(err, "update availability")
	}
	return u, nil
}

func (s *Service) ListDoctors(ctx context.Context, specialization string, limit, offset int) ([]*User, int, error) {
	items, total, err := s.users.ListByRole(ctx, auth.RoleDoctor, strings.TrimSpace(specialization), limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err, "list doctors")
	}
	return items, total, nil
}
