// Package availability derives the bookable slots for a date.
package availability

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/internal/schedule"
)

// Slot is a candidate [Start, End) interval in minutes after midnight.
type Slot struct {
	Start int
	End   int
}

type slotJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (s Slot) MarshalJSON() ([]byte, error) {
	return json.Marshal(slotJSON{Start: bookings.FormatClock(s.Start), End: bookings.FormatClock(s.End)})
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	var raw slotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := bookings.ParseClock(raw.Start)
	if err != nil {
		return err
	}
	end, err := bookings.ParseClock(raw.End)
	if err != nil {
		return err
	}
	s.Start, s.End = start, end
	return nil
}

// Input is everything slot generation depends on. Date is midnight of the
// requested day in the clinic location.
type Input struct {
	Date     time.Time
	Window   schedule.Window
	Duration int
	// Interval is the configured default step; the window's own interval wins.
	Interval int
	Booked   []bookings.Booking
	Now      time.Time
	LeadTime time.Duration
}

func (in Input) step() int {
	switch {
	case in.Window.Interval > 0:
		return in.Window.Interval
	case in.Interval > 0:
		return in.Interval
	default:
		return in.Duration
	}
}

func (in Input) past() bool {
	y, m, d := in.Now.In(in.Date.Location()).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, in.Date.Location())
	return in.Date.Before(today)
}

// tooSoon reports whether start falls before now plus the lead time. A slot starting exactly at
// now+lead is offered.
func (in Input) tooSoon(start int) bool {
	return bookings.At(in.Date, start).Before(in.Now.Add(in.LeadTime))
}

func (in Input) taken(start, end int) bool {
	for i := range in.Booked {
		if in.Booked[i].Active() && in.Booked[i].Overlaps(start, end) {
			return true
		}
	}
	return false
}

// Generate returns the offerable slots in chronological order. Past dates,
// a non-positive duration and a duration longer than the window all yield
// no slots.
func Generate(in Input) []Slot {
	slots := []Slot{}
	if in.Duration <= 0 || in.past() {
		return slots
	}
	step := in.step()
	for start := in.Window.Open; start+in.Duration <= in.Window.Close; start += step {
		end := start + in.Duration
		if in.taken(start, end) || in.tooSoon(start) {
			continue
		}
		slots = append(slots, Slot{Start: start, End: end})
	}
	return slots
}

// CheckCandidate reports whether a slot starting at start would be offered by
// Generate for in. Any failure wraps bookings.ErrSlotUnavailable.
func CheckCandidate(in Input, start int) error {
	end := start + in.Duration
	switch {
	case in.Duration <= 0:
		return bookings.Invalid("serviceId", "service has no duration")
	case in.past():
		return fmt.Errorf("%w: date is in the past", bookings.ErrSlotUnavailable)
	case start < in.Window.Open || end > in.Window.Close:
		return fmt.Errorf("%w: outside opening hours", bookings.ErrSlotUnavailable)
	case (start-in.Window.Open)%in.step() != 0:
		return fmt.Errorf("%w: not a slot boundary", bookings.ErrSlotUnavailable)
	case in.tooSoon(start):
		return fmt.Errorf("%w: inside the booking lead time", bookings.ErrSlotUnavailable)
	case in.taken(start, end):
		return fmt.Errorf("%w: overlaps an existing booking", bookings.ErrSlotUnavailable)
	}
	return nil
}
