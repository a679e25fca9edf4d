package identity

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"9:30", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAvailability_Normalize(t *testing.T) {
	a := Availability{Days: []string{"monday", " Friday", "MONDAY"}, StartTime: "09:00", EndTime: "12:00"}
	if err := a.Normalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.Days) != 2 || a.Days[0] != "Monday" || a.Days[1] != "Friday" {
		t.Errorf("unexpected days: %v", a.Days)
	}

	bad := []Availability{
		{StartTime: "09:00", EndTime: "12:00"},
		{Days: []string{"Funday"}, StartTime: "09:00", EndTime: "12:00"},
		{Days: []string{"Monday"}, StartTime: "12:00", EndTime: "09:00"},
		{Days: []string{"Monday"}, StartTime: "9am", EndTime: "12:00"},
	}
	for i, b := range bad {
		if err := b.Normalize(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestAvailability_CoversAndSlots(t *testing.T) {
	a := Availability{Days: []string{"Saturday"}, StartTime: "09:00", EndTime: "10:30"}
	if !a.Covers("09:00") || !a.Covers("10:29") {
		t.Error("expected window to cover 09:00 and 10:29")
	}
	if a.Covers("10:30") || a.Covers("08:59") || a.Covers("bogus") {
		t.Error("window should be half-open")
	}

	slots := a.Slots(30 * time.Minute)
	want := []string{"09:00", "09:30", "10:00"}
	if len(slots) != len(want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Errorf("slot %d: expected %s, got %s", i, want[i], slots[i])
		}
	}

	for _, clock := range want {
		if !a.OffersSlot(clock, 30*time.Minute) {
			t.Errorf("expected %s to start a slot", clock)
		}
	}
	for _, clock := range []string{"09:15", "10:29", "10:30", "08:30", "bogus"} {
		if a.OffersSlot(clock, 30*time.Minute) {
			t.Errorf("%s must not start a slot", clock)
		}
	}

	sat := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !a.OnDay(sat) {
		t.Error("2024-06-01 is a Saturday")
	}
	if a.OnDay(sat.AddDate(0, 0, 1)) {
		t.Error("Sunday is not available")
	}
}
