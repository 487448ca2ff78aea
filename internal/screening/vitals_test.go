package screening

import (
	"testing"

	"github.com/vaccicare/vaccination-scheduling/internal/errs"
)

func validVitals() Vitals {
	return Vitals{
		TemperatureC:  36.8,
		HeartRateBPM:  110,
		SystolicMmHg:  95,
		DiastolicMmHg: 60,
		SpO2Percent:   98,
	}
}

func TestVitalsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Vitals)
		wantErr bool
	}{
		{name: "normal vitals", mutate: func(v *Vitals) {}},
		{name: "temperature at lower bound", mutate: func(v *Vitals) { v.TemperatureC = 35.0 }},
		{name: "temperature at upper bound", mutate: func(v *Vitals) { v.TemperatureC = 40.0 }},
		{name: "fever above range", mutate: func(v *Vitals) { v.TemperatureC = 40.1 }, wantErr: true},
		{name: "hypothermic below range", mutate: func(v *Vitals) { v.TemperatureC = 34.9 }, wantErr: true},
		{name: "heart rate too low", mutate: func(v *Vitals) { v.HeartRateBPM = 59 }, wantErr: true},
		{name: "heart rate too high", mutate: func(v *Vitals) { v.HeartRateBPM = 161 }, wantErr: true},
		{name: "systolic too low", mutate: func(v *Vitals) { v.SystolicMmHg = 69 }, wantErr: true},
		{name: "systolic too high", mutate: func(v *Vitals) { v.SystolicMmHg = 121 }, wantErr: true},
		{name: "diastolic too low", mutate: func(v *Vitals) { v.DiastolicMmHg = 39 }, wantErr: true},
		{name: "diastolic too high", mutate: func(v *Vitals) { v.DiastolicMmHg = 81 }, wantErr: true},
		{name: "spo2 too low", mutate: func(v *Vitals) { v.SpO2Percent = 89 }, wantErr: true},
		{name: "spo2 above hundred", mutate: func(v *Vitals) { v.SpO2Percent = 101 }, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := validVitals()
			tc.mutate(&v)

			err := v.Validate()
			if tc.wantErr {
				if !errs.IsKind(err, errs.KindValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRecordValidate(t *testing.T) {
	base := func() Record {
		return Record{
			Consent: true,
			Vitals:  validVitals(),
			Answers: map[string]string{
				"allergy_history":    "none",
				"recent_illness":     "none",
				"previous_reactions": "none",
			},
		}
	}

	t.Run("complete record passes", func(t *testing.T) {
		rec := base()
		if err := rec.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("missing consent", func(t *testing.T) {
		rec := base()
		rec.Consent = false
		if err := rec.Validate(); !errs.IsKind(err, errs.KindValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("missing required answer", func(t *testing.T) {
		rec := base()
		delete(rec.Answers, "allergy_history")
		if err := rec.Validate(); !errs.IsKind(err, errs.KindValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("blank answer treated as missing", func(t *testing.T) {
		rec := base()
		rec.Answers["recent_illness"] = ""
		if err := rec.Validate(); !errs.IsKind(err, errs.KindValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("bad vitals rejected", func(t *testing.T) {
		rec := base()
		rec.Vitals.SpO2Percent = 80
		if err := rec.Validate(); !errs.IsKind(err, errs.KindValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
