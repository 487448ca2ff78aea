package ledger

import (
	"testing"
	"time"
)

func TestChildAge(t *testing.T) {
	now := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		birthDate time.Time
		want      Age
	}{
		{
			name:      "newborn",
			birthDate: now.AddDate(0, 0, -3),
			want:      Age{Value: 0, Unit: AgeWeeks},
		},
		{
			name:      "two weeks old",
			birthDate: now.AddDate(0, 0, -14),
			want:      Age{Value: 2, Unit: AgeWeeks},
		},
		{
			name:      "27 days still in weeks",
			birthDate: now.AddDate(0, 0, -27),
			want:      Age{Value: 3, Unit: AgeWeeks},
		},
		{
			name:      "28 days switches to months",
			birthDate: now.AddDate(0, 0, -28),
			want:      Age{Value: 1, Unit: AgeMonths},
		},
		{
			name:      "six weeks floors to one month",
			birthDate: now.AddDate(0, 0, -42),
			want:      Age{Value: 1, Unit: AgeMonths},
		},
		{
			name:      "eighteen months",
			birthDate: time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
			want:      Age{Value: 18, Unit: AgeMonths},
		},
		{
			name:      "day before second birthday stays in months",
			birthDate: time.Date(2024, 8, 31, 0, 0, 0, 0, time.UTC),
			want:      Age{Value: 23, Unit: AgeMonths},
		},
		{
			name:      "second birthday switches to years",
			birthDate: time.Date(2024, 8, 30, 0, 0, 0, 0, time.UTC),
			want:      Age{Value: 2, Unit: AgeYears},
		},
		{
			name:      "five years, birthday not yet reached",
			birthDate: time.Date(2020, 12, 25, 0, 0, 0, 0, time.UTC),
			want:      Age{Value: 5, Unit: AgeYears},
		},
		{
			name:      "six years, birthday passed",
			birthDate: time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC),
			want:      Age{Value: 6, Unit: AgeYears},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ChildAge(tc.birthDate, now)
			if got != tc.want {
				t.Fatalf("ChildAge(%s) = %d %s, want %d %s",
					tc.birthDate.Format("2006-01-02"), got.Value, got.Unit, tc.want.Value, tc.want.Unit)
			}
		})
	}
}
