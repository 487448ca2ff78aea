package schedule

import (
	"github.com/vaccicare/vaccination-scheduling/internal/errs"
)

const minSlotDurationMinutes = 5

// Validate checks the template invariants before any slot generation.
func (t *WorkingHoursTemplate) Validate() error {
	if t.StartMinute < 0 || t.EndMinute > 24*60 {
		return errs.Validation("working hours must fall within a single day")
	}
	if t.StartMinute >= t.EndMinute {
		return errs.Validation("start time must be before end time")
	}
	if t.LunchStartMinute >= t.LunchEndMinute {
		return errs.Validation("lunch break start must be before lunch break end")
	}
	if t.SlotDurationMinutes < minSlotDurationMinutes {
		return errs.Validation("slot duration must be at least %d minutes", minSlotDurationMinutes)
	}
	if t.MaxCapacity < 1 {
		return errs.Validation("max capacity must be at least 1")
	}
	return nil
}

// SlotWindows divides the working window into slot-duration increments,
// dropping any window that overlaps the lunch break or spills past the
// end of the working hours.
func (t *WorkingHoursTemplate) SlotWindows() []SlotWindow {
	var windows []SlotWindow

	for start := t.StartMinute; start+t.SlotDurationMinutes <= t.EndMinute; start += t.SlotDurationMinutes {
		end := start + t.SlotDurationMinutes
		if start < t.LunchEndMinute && end > t.LunchStartMinute {
			continue
		}
		windows = append(windows, SlotWindow{StartMinute: start, EndMinute: end})
	}

	return windows
}
