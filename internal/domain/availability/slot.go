package availability

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the ISO calendar date used on the wire and by hosts.
	DateLayout = "2006-01-02"

	// WindowDays is how far past the inspected date one fetch reaches.
	WindowDays = 7

	// SlotIntervalMinutes is the granularity slots are generated at upstream.
	SlotIntervalMinutes = 30
)

// TimeSlot is one bookable (date, time) pair as reported by the scheduling authority.
type TimeSlot struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// Query is the availability window requested for one inspected date.
type Query struct {
	BusinessID          string
	DurationMinutes     int
	StartDate           time.Time
	EndDate             time.Time
	SlotIntervalMinutes int
}

// NewQuery builds the window anchored at selected. ok is false when a
// precondition is missing, in which case no request should be issued.
func NewQuery(businessID string, durationMinutes int, selected time.Time) (q Query, ok bool) {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" || durationMinutes <= 0 || selected.IsZero() {
		return Query{}, false
	}
	start := Day(selected)
	return Query{
		BusinessID:          businessID,
		DurationMinutes:     durationMinutes,
		StartDate:           start,
		EndDate:             start.AddDate(0, 0, WindowDays),
		SlotIntervalMinutes: SlotIntervalMinutes,
	}, true
}

func (q Query) Validate() error {
	if q.BusinessID == "" {
		return fmt.Errorf("business id required")
	}
	if q.DurationMinutes < 1 {
		return fmt.Errorf("duration_minutes must be >= 1")
	}
	if q.EndDate.Before(q.StartDate) {
		return fmt.Errorf("end date must not be before start date")
	}
	if q.SlotIntervalMinutes < 1 {
		return fmt.Errorf("slot_interval_minutes must be >= 1")
	}
	return nil
}

// Values encodes the query string expected by the availability endpoint.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("startDate", FormatDate(q.StartDate))
	v.Set("endDate", FormatDate(q.EndDate))
	v.Set("durationMinutes", strconv.Itoa(q.DurationMinutes))
	v.Set("slotIntervalMinutes", strconv.Itoa(q.SlotIntervalMinutes))
	return v
}

// Day truncates t to local midnight in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date in loc (UTC when nil).
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// IsPast reports whether d falls on a day strictly before now's day.
func IsPast(d, now time.Time) bool {
	return Day(d).Before(Day(now.In(d.Location())))
}
