package schedule

import (
	"testing"

	"github.com/vaccicare/vaccination-scheduling/internal/errs"
)

func validTemplate() WorkingHoursTemplate {
	return WorkingHoursTemplate{
		Name:                "weekday",
		StartMinute:         8 * 60,
		EndMinute:           17 * 60,
		SlotDurationMinutes: 30,
		LunchStartMinute:    12 * 60,
		LunchEndMinute:      13 * 60,
		MaxCapacity:         5,
	}
}

func TestTemplateValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*WorkingHoursTemplate)
		wantErr bool
	}{
		{
			name:   "valid template",
			mutate: func(t *WorkingHoursTemplate) {},
		},
		{
			name:    "negative start",
			mutate:  func(t *WorkingHoursTemplate) { t.StartMinute = -10 },
			wantErr: true,
		},
		{
			name:    "end past midnight",
			mutate:  func(t *WorkingHoursTemplate) { t.EndMinute = 24*60 + 1 },
			wantErr: true,
		},
		{
			name: "start equals end",
			mutate: func(t *WorkingHoursTemplate) {
				t.StartMinute = 9 * 60
				t.EndMinute = 9 * 60
			},
			wantErr: true,
		},
		{
			name: "lunch start after lunch end",
			mutate: func(t *WorkingHoursTemplate) {
				t.LunchStartMinute = 13 * 60
				t.LunchEndMinute = 12 * 60
			},
			wantErr: true,
		},
		{
			name:    "slot duration below minimum",
			mutate:  func(t *WorkingHoursTemplate) { t.SlotDurationMinutes = 4 },
			wantErr: true,
		},
		{
			name:    "zero capacity",
			mutate:  func(t *WorkingHoursTemplate) { t.MaxCapacity = 0 },
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tpl := validTemplate()
			tc.mutate(&tpl)

			err := tpl.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected validation error, got nil")
				}
				if !errs.IsKind(err, errs.KindValidation) {
					t.Fatalf("expected validation kind, got %v", errs.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSlotWindowsSkipLunch(t *testing.T) {
	tpl := validTemplate()

	windows := tpl.SlotWindows()
	if len(windows) == 0 {
		t.Fatal("expected windows, got none")
	}

	for _, w := range windows {
		if w.StartMinute < tpl.LunchEndMinute && w.EndMinute > tpl.LunchStartMinute {
			t.Errorf("window %d-%d overlaps lunch %d-%d",
				w.StartMinute, w.EndMinute, tpl.LunchStartMinute, tpl.LunchEndMinute)
		}
		if w.EndMinute > tpl.EndMinute {
			t.Errorf("window %d-%d spills past end of day %d", w.StartMinute, w.EndMinute, tpl.EndMinute)
		}
	}

	// 8:00-12:00 yields 8 half-hour windows, 13:00-17:00 another 8.
	if len(windows) != 16 {
		t.Fatalf("expected 16 windows, got %d", len(windows))
	}

	first := windows[0]
	if first.StartMinute != 8*60 || first.EndMinute != 8*60+30 {
		t.Errorf("unexpected first window %d-%d", first.StartMinute, first.EndMinute)
	}
}

func TestSlotWindowsPartialTrailingWindowDropped(t *testing.T) {
	tpl := validTemplate()
	tpl.EndMinute = 17*60 + 20 // 20 leftover minutes, not a full slot

	windows := tpl.SlotWindows()
	last := windows[len(windows)-1]
	if last.EndMinute != 17*60 {
		t.Errorf("trailing partial window should be dropped, last ends at %d", last.EndMinute)
	}
}

func TestSlotWindowsStraddlingLunchDropped(t *testing.T) {
	tpl := validTemplate()
	tpl.StartMinute = 11*60 + 45 // 11:45, first window straddles the 12:00 lunch

	windows := tpl.SlotWindows()
	if len(windows) == 0 {
		t.Fatal("expected afternoon windows")
	}
	if windows[0].StartMinute < 13*60 {
		t.Errorf("first window %d should start after lunch", windows[0].StartMinute)
	}
}
