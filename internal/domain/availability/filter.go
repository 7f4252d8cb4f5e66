package availability

// FilterForDate returns the available slots on date, in the order they
// appear in all. Filtering the result again with the same date is a no-op.
func FilterForDate(all []TimeSlot, date string) []TimeSlot {
	var out []TimeSlot
	for _, s := range all {
		if s.Date == date && s.Available {
			out = append(out, s)
		}
	}
	return out
}

// Resolve filters a fetched window for date and classifies an empty result.
// An empty window means the business has no schedule at all; a non-empty
// window with nothing on date means the date is booked out or blocked.
func Resolve(all []TimeSlot, date string) ([]TimeSlot, Reason) {
	if len(all) == 0 {
		return nil, ReasonNoSchedule
	}
	matching := FilterForDate(all, date)
	if len(matching) == 0 {
		return nil, ReasonNoSlotsForDate
	}
	return matching, ReasonNone
}

// Find returns the slot at time t within slots.
func Find(slots []TimeSlot, t string) (TimeSlot, bool) {
	for _, s := range slots {
		if s.Time == t {
			return s, true
		}
	}
	return TimeSlot{}, false
}
