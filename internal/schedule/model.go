// Package schedule owns opening hours and absences and turns them into the
// 30-minute slots a provider or center offers on a given day.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SlotDuration is the fixed length of every bookable slot.
const SlotDuration = 30 * time.Minute

var (
	ErrInvalidInput = errors.New("schedule: invalid input")
	ErrNotFound     = errors.New("schedule: not found")
)

// OwnerKind distinguishes provider schedules from center schedules.
type OwnerKind string

const (
	OwnerProvider OwnerKind = "provider"
	OwnerCenter   OwnerKind = "center"
)

// Owner identifies whose opening hours are being read or written.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

func ProviderOwner(id uuid.UUID) Owner { return Owner{Kind: OwnerProvider, ID: id} }
func CenterOwner(id uuid.UUID) Owner   { return Owner{Kind: OwnerCenter, ID: id} }

func (o Owner) validate() error {
	if o.ID == uuid.Nil {
		return fmt.Errorf("%w: owner id required", ErrInvalidInput)
	}
	switch o.Kind {
	case OwnerProvider, OwnerCenter:
		return nil
	}
	return fmt.Errorf("%w: unknown owner kind %q", ErrInvalidInput, o.Kind)
}

// Clock is a time of day in minutes after midnight. 24:00 is allowed as an
// end bound.
type Clock int

const endOfDay Clock = 24 * 60

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidInput, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidInput, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidInput, s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: time %q out of range", ErrInvalidInput, s)
	}
	return Clock(h*60 + m), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On anchors the clock on day, in day's location.
func (c Clock) On(day time.Time) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, int(c)/60, int(c)%60, 0, 0, day.Location())
}

// ClockOf returns the time of day of t in t's location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: time must be a string", ErrInvalidInput)
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// OpeningHours is the recurring weekly window for one weekday.
type OpeningHours struct {
	ID        uuid.UUID    `json:"id"`
	Owner     Owner        `json:"owner"`
	DayOfWeek time.Weekday `json:"dayOfWeek"`
	Start     Clock        `json:"startTime"`
	End       Clock        `json:"endTime"`
}

// Validate checks a single entry in isolation.
func (h OpeningHours) Validate() error {
	if h.DayOfWeek < time.Sunday || h.DayOfWeek > time.Saturday {
		return fmt.Errorf("%w: day of week %d out of range", ErrInvalidInput, h.DayOfWeek)
	}
	if h.Start < 0 || h.End > endOfDay {
		return fmt.Errorf("%w: hours outside the day", ErrInvalidInput)
	}
	if h.Start >= h.End {
		return fmt.Errorf("%w: start %s must precede end %s", ErrInvalidInput, h.Start, h.End)
	}
	return nil
}

// ValidateSet checks every entry and rejects duplicate weekdays.
func ValidateSet(hours []OpeningHours) error {
	seen := make(map[time.Weekday]bool, len(hours))
	for _, h := range hours {
		if err := h.Validate(); err != nil {
			return err
		}
		if seen[h.DayOfWeek] {
			return fmt.Errorf("%w: duplicate entry for %s", ErrInvalidInput, h.DayOfWeek)
		}
		seen[h.DayOfWeek] = true
	}
	return nil
}

// Absence blocks a provider's whole calendar day.
type Absence struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"providerId"`
	Date       time.Time `json:"date"`
	Reason     *string   `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Interval is a half-open [Start, End) span.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals share any instant.
// Back-to-back intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Day truncates t to midnight of its calendar date in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// SameDate compares calendar dates, each read in its own location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ParseDate parses "YYYY-MM-DD" as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidInput, s)
	}
	return d, nil
}
