// Package schedule holds the clinic's weekly opening hours and date overrides.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/wolfman30/clinic-booking/internal/bookings"
)

// DayHours represents the opening hours for a single day.
// Nil means the clinic is closed that day.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "18:00" in 24-hour format
	// SlotIntervalMinutes overrides the slot step for the day; 0 steps by service duration.
	SlotIntervalMinutes int `json:"slotIntervalMinutes,omitempty"`
}

// BusinessHours maps day names to their hours.
type BusinessHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// Override replaces the weekly rule for one date.
type Override struct {
	Date                string `json:"date"`
	Closed              bool   `json:"closed"`
	Open                string `json:"open,omitempty"`
	Close               string `json:"close,omitempty"`
	SlotIntervalMinutes int    `json:"slotIntervalMinutes,omitempty"`
	Reason              string `json:"reason,omitempty"`
}

// Window is the effective opening for a date in minutes after midnight.
// Interval is zero when slots step by service duration.
type Window struct {
	Open     int
	Close    int
	Interval int
}

// Length returns the number of open minutes.
func (w Window) Length() int {
	return w.Close - w.Open
}

// DefaultHours is used until staff save a weekly schedule.
func DefaultHours() BusinessHours {
	return BusinessHours{
		Monday:    &DayHours{Open: "09:00", Close: "17:00"},
		Tuesday:   &DayHours{Open: "09:00", Close: "17:00"},
		Wednesday: &DayHours{Open: "09:00", Close: "17:00"},
		Thursday:  &DayHours{Open: "09:00", Close: "17:00"},
		Friday:    &DayHours{Open: "09:00", Close: "17:00"},
	}
}

// GetHoursForDay returns the hours for a given weekday (0=Sunday, 6=Saturday).
func (b *BusinessHours) GetHoursForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return b.Sunday
	case time.Monday:
		return b.Monday
	case time.Tuesday:
		return b.Tuesday
	case time.Wednesday:
		return b.Wednesday
	case time.Thursday:
		return b.Thursday
	case time.Friday:
		return b.Friday
	case time.Saturday:
		return b.Saturday
	default:
		return nil
	}
}

// HasAnyHours returns true if at least one day has business hours configured.
func (b *BusinessHours) HasAnyHours() bool {
	return b.Sunday != nil || b.Monday != nil || b.Tuesday != nil ||
		b.Wednesday != nil || b.Thursday != nil || b.Friday != nil || b.Saturday != nil
}

// Validate checks every configured day.
func (b *BusinessHours) Validate() error {
	for day := time.Sunday; day <= time.Saturday; day++ {
		hours := b.GetHoursForDay(day)
		if hours == nil {
			continue
		}
		if _, err := hours.window(); err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
	}
	return nil
}

func (d *DayHours) window() (Window, error) {
	return parseWindow(d.Open, d.Close, d.SlotIntervalMinutes)
}

// Validate checks the override's date and, unless closed, its hours.
func (o *Override) Validate() error {
	if _, err := time.Parse(bookings.DateLayout, o.Date); err != nil {
		return bookings.Invalid("date", "must be YYYY-MM-DD")
	}
	if o.Closed {
		return nil
	}
	_, err := parseWindow(o.Open, o.Close, o.SlotIntervalMinutes)
	return err
}

func parseWindow(open, close string, interval int) (Window, error) {
	openMin, err := bookings.ParseClock(open)
	if err != nil {
		return Window{}, bookings.Invalid("open", "must be HH:MM")
	}
	closeMin, err := bookings.ParseClock(close)
	if err != nil {
		return Window{}, bookings.Invalid("close", "must be HH:MM")
	}
	if openMin >= closeMin {
		return Window{}, bookings.Invalid("close", "must be after open")
	}
	if interval < 0 {
		return Window{}, bookings.Invalid("slotIntervalMinutes", "must not be negative")
	}
	return Window{Open: openMin, Close: closeMin, Interval: interval}, nil
}

// Resolve picks the effective window for date. A date override wins over the
// weekday rule. A closed override or a day without hours is ErrScheduleClosed.
func Resolve(weekly BusinessHours, override *Override, date time.Time) (Window, error) {
	if override != nil {
		if override.Closed {
			return Window{}, bookings.ErrScheduleClosed
		}
		return parseWindow(override.Open, override.Close, override.SlotIntervalMinutes)
	}
	hours := weekly.GetHoursForDay(date.Weekday())
	if hours == nil {
		return Window{}, bookings.ErrScheduleClosed
	}
	return hours.window()
}

func sortOverrides(overrides []Override) {
	sort.Slice(overrides, func(i, j int) bool { return overrides[i].Date < overrides[j].Date })
}
