package schedule

import "time"

// GenerateSlots lays out the SlotDuration intervals offered on day. A
// matching absence or a weekday without opening hours yields no slots. The
// first slot starts exactly at the opening time and a trailing remainder
// shorter than SlotDuration is dropped. Slots are computed in loc.
func GenerateSlots(day time.Time, hours []OpeningHours, absences []Absence, loc *time.Location) []Interval {
	day = Day(day, loc)
	for _, a := range absences {
		if SameDate(a.Date, day) {
			return []Interval{}
		}
	}

	entry, ok := hoursFor(day.Weekday(), hours)
	if !ok {
		return []Interval{}
	}

	start, end := entry.Start.On(day), entry.End.On(day)
	slots := make([]Interval, 0, int(end.Sub(start)/SlotDuration))
	for cur := start; !cur.Add(SlotDuration).After(end); cur = cur.Add(SlotDuration) {
		slots = append(slots, Interval{Start: cur, End: cur.Add(SlotDuration)})
	}
	return slots
}

// hoursFor picks the entry for weekday. Sets are validated to hold one entry
// per weekday; with stray duplicates the earliest opening wins.
func hoursFor(weekday time.Weekday, hours []OpeningHours) (OpeningHours, bool) {
	var (
		found OpeningHours
		ok    bool
	)
	for _, h := range hours {
		if h.DayOfWeek != weekday || h.Start >= h.End {
			continue
		}
		if !ok || h.Start < found.Start {
			found, ok = h, true
		}
	}
	return found, ok
}
