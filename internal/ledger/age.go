package ledger

import "time"

type AgeUnit string

const (
	AgeWeeks  AgeUnit = "weeks"
	AgeMonths AgeUnit = "months"
	AgeYears  AgeUnit = "years"
)

type Age struct {
	Value int
	Unit  AgeUnit
}

// ChildAge resolves a birth date into the display age. The boundaries
// are policy, pinned by tests: under 28 days the age is in weeks, under
// 24 months in calendar months (rounded down, never below 1), otherwise
// in calendar years (decremented until the birthday has passed).
func ChildAge(birthDate, now time.Time) Age {
	birth := toDate(birthDate)
	today := toDate(now)

	diffDays := int(today.Sub(birth).Hours() / 24)
	if diffDays < 28 {
		return Age{Value: diffDays / 7, Unit: AgeWeeks}
	}

	months := monthsBetween(birth, today)
	if months < 24 {
		if months < 1 {
			months = 1
		}
		return Age{Value: months, Unit: AgeMonths}
	}

	years := today.Year() - birth.Year()
	if today.Month() < birth.Month() ||
		(today.Month() == birth.Month() && today.Day() < birth.Day()) {
		years--
	}
	return Age{Value: years, Unit: AgeYears}
}

func monthsBetween(from, to time.Time) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	return months
}

func toDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
