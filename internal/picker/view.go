package picker

import (
	"fmt"
	"io"
	"time"
)

// Condition is what the time section of a booking page shows.
type Condition int

const (
	ConditionNone Condition = iota
	ConditionLoading
	ConditionError
	ConditionEmpty
	ConditionSlots
)

func (c Condition) String() string {
	return [...]string{"none", "loading", "error", "empty", "slots"}[c]
}

type SlotButton struct {
	Time     string
	Selected bool
	Disabled bool
}

// View is the display model handed to a host renderer.
type View struct {
	Condition Condition
	Date      string
	Message   string
	Slots     []SlotButton
	// Summary is set only when both a date and a time are chosen.
	Summary string
}

// Present maps a state snapshot to exactly one condition, checked in
// priority order: no date, loading, error, slots, empty.
func Present(s State) View {
	if !s.HasDate() {
		return View{Condition: ConditionNone}
	}
	v := View{Date: s.DateString()}
	if s.Time != "" {
		v.Summary = Summary(s.Date, s.Time)
	}
	switch {
	case s.Status == StatusLoading:
		v.Condition = ConditionLoading
	case s.Status == StatusError:
		v.Condition = ConditionError
		v.Message = s.Reason.Message(s.Message)
	case s.Status == StatusReady && len(s.Slots) > 0:
		v.Condition = ConditionSlots
		v.Slots = make([]SlotButton, 0, len(s.Slots))
		for _, slot := range s.Slots {
			v.Slots = append(v.Slots, SlotButton{
				Time:     slot.Time,
				Selected: slot.Time == s.Time,
				Disabled: !slot.Available,
			})
		}
	default:
		v.Condition = ConditionEmpty
		v.Message = "No time slots to show."
	}
	return v
}

// Summary is the confirmation line for a chosen date and time.
func Summary(date time.Time, t string) string {
	label := t
	if parsed, err := time.Parse("15:04", t); err == nil {
		label = parsed.Format("3:04 PM")
	}
	return fmt.Sprintf("%s at %s", date.Format("Monday, January 2, 2006"), label)
}

// WriteText renders v for a terminal.
func (v View) WriteText(w io.Writer) error {
	var err error
	p := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}
	switch v.Condition {
	case ConditionNone:
		return nil
	case ConditionLoading:
		p("Loading available times for %s...\n", v.Date)
	case ConditionError, ConditionEmpty:
		p("%s\n", v.Message)
	case ConditionSlots:
		p("Available times on %s:\n", v.Date)
		for _, s := range v.Slots {
			mark := " "
			if s.Selected {
				mark = "*"
			}
			if s.Disabled {
				p("  %s %s (unavailable)\n", mark, s.Time)
				continue
			}
			p("  %s %s\n", mark, s.Time)
		}
	}
	if v.Summary != "" {
		p("Selected: %s\n", v.Summary)
	}
	return err
}
