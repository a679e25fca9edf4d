package identity

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// ParseClock converts "HH:mm" to minutes after midnight.
func ParseClock(s string) (int, error) {
	if !clockPattern.MatchString(s) {
		return 0, fmt.Errorf("time must be HH:mm, got %q", s)
	}
	t, _ := time.Parse("15:04", s)
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock converts minutes after midnight to "HH:mm".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

var weekdays = map[string]string{
	"sunday": "Sunday", "monday": "Monday", "tuesday": "Tuesday", "wednesday": "Wednesday",
	"thursday": "Thursday", "friday": "Friday", "saturday": "Saturday",
}

// Availability is the weekly window in which a doctor accepts bookings.
type Availability struct {
	Days      []string `json:"days" bson:"days"`
	StartTime string   `json:"startTime" bson:"startTime"`
	EndTime   string   `json:"endTime" bson:"endTime"`
}

// Normalize validates the availability and canonicalizes day names.
func (a *Availability) Normalize() error {
	if len(a.Days) == 0 {
		return fmt.Errorf("at least one day is required")
	}
	seen := make(map[string]bool, len(a.Days))
	days := make([]string, 0, len(a.Days))
	for _, d := range a.Days {
		name, ok := weekdays[strings.ToLower(strings.TrimSpace(d))]
		if !ok {
			return fmt.Errorf("invalid day %q", d)
		}
		if !seen[name] {
			seen[name] = true
			days = append(days, name)
		}
	}
	a.Days = days

	start, err := ParseClock(a.StartTime)
	if err != nil {
		return err
	}
	end, err := ParseClock(a.EndTime)
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("startTime must be before endTime")
	}
	return nil
}

// OnDay reports whether the doctor works on the weekday of date.
func (a *Availability) OnDay(date time.Time) bool {
	want := date.Weekday().String()
	for _, d := range a.Days {
		if strings.EqualFold(d, want) {
			return true
		}
	}
	return false
}

// Covers reports whether clock ("HH:mm") falls inside [StartTime, EndTime).
func (a *Availability) Covers(clock string) bool {
	t, err := ParseClock(clock)
	if err != nil {
		return false
	}
	start, err1 := ParseClock(a.StartTime)
	end, err2 := ParseClock(a.EndTime)
	if err1 != nil || err2 != nil {
		return false
	}
	return t >= start && t < end
}

// Slots lists slot start times of the given length that fit inside the window.
func (a *Availability) Slots(step time.Duration) []string {
	start, err1 := ParseClock(a.StartTime)
	end, err2 := ParseClock(a.EndTime)
	mins := int(step / time.Minute)
	if err1 != nil || err2 != nil || mins <= 0 {
		return nil
	}
	var out []string
	for t := start; t+mins <= end; t += mins {
		out = append(out, FormatClock(t))
	}
	return out
}

// OffersSlot reports whether clock starts one of the window's slots of the
// given length, i.e. it lies on the grid from StartTime and the slot ends
// by EndTime.
func (a *Availability) OffersSlot(clock string, step time.Duration) bool {
	t, err := ParseClock(clock)
	if err != nil {
		return false
	}
	start, err1 := ParseClock(a.StartTime)
	end, err2 := ParseClock(a.EndTime)
	mins := int(step / time.Minute)
	if err1 != nil || err2 != nil || mins <= 0 {
		return false
	}
	return t >= start && (t-start)%mins == 0 && t+mins <= end
}

type User struct {
	ID              uuid.UUID     `json:"id" bson:"_id"`
	Role            string        `json:"role" bson:"role"`
	Name            string        `json:"name" bson:"name"`
	Email           string        `json:"email" bson:"email"`
	PasswordHash    string        `json:"-" bson:"passwordHash"`
	Phone           *string       `json:"phone,omitempty" bson:"phone,omitempty"`
	Gender          *string       `json:"gender,omitempty" bson:"gender,omitempty"`
	DateOfBirth     *string       `json:"dateOfBirth,omitempty" bson:"dateOfBirth,omitempty"`
	Address         *string       `json:"address,omitempty" bson:"address,omitempty"`
	Specialization  *string       `json:"specialization,omitempty" bson:"specialization,omitempty"`
	Qualifications  *string       `json:"qualifications,omitempty" bson:"qualifications,omitempty"`
	ExperienceYears *int          `json:"experienceYears,omitempty" bson:"experienceYears,omitempty"`
	Bio             *string       `json:"bio,omitempty" bson:"bio,omitempty"`
	ProfilePicture  *string       `json:"profilePicture,omitempty" bson:"profilePicture,omitempty"`
	Availability    *Availability `json:"availability,omitempty" bson:"availability,omitempty"`
	CreatedAt       time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// Summary is the public card shown to the other party of a conversation or
// booking.
type Summary struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	Specialization *string   `json:"specialization,omitempty"`
	ProfilePicture *string   `json:"profilePicture,omitempty"`
}

func (u *User) Summary() Summary {
	return Summary{
		ID:             u.ID,
		Name:           u.Name,
		Role:           u.Role,
		Specialization: u.Specialization,
		ProfilePicture: u.ProfilePicture,
	}
}
