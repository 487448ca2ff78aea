// Package screening holds the pre-vaccination health survey record:
// consent, vitals and answers captured by the doctor before an
// appointment may advance past intake.
package screening

import (
	"github.com/vaccicare/vaccination-scheduling/internal/errs"
)

// Input-sanity bounds for recorded vitals. These are plausibility
// checks on data entry, not medical judgment.
const (
	minTemperatureC = 35.0
	maxTemperatureC = 40.0
	minHeartRate    = 60
	maxHeartRate    = 160
	minSystolic     = 70
	maxSystolic     = 120
	minDiastolic    = 40
	maxDiastolic    = 80
	minSpO2         = 90
	maxSpO2         = 100
)

type Vitals struct {
	TemperatureC  float64
	HeartRateBPM  int
	SystolicMmHg  int
	DiastolicMmHg int
	SpO2Percent   int
}

func (v Vitals) Validate() error {
	if v.TemperatureC < minTemperatureC || v.TemperatureC > maxTemperatureC {
		return errs.Validation("temperature %.1f°C outside %.1f-%.1f°C", v.TemperatureC, minTemperatureC, maxTemperatureC)
	}
	if v.HeartRateBPM < minHeartRate || v.HeartRateBPM > maxHeartRate {
		return errs.Validation("heart rate %d bpm outside %d-%d bpm", v.HeartRateBPM, minHeartRate, maxHeartRate)
	}
	if v.SystolicMmHg < minSystolic || v.SystolicMmHg > maxSystolic {
		return errs.Validation("systolic pressure %d mmHg outside %d-%d mmHg", v.SystolicMmHg, minSystolic, maxSystolic)
	}
	if v.DiastolicMmHg < minDiastolic || v.DiastolicMmHg > maxDiastolic {
		return errs.Validation("diastolic pressure %d mmHg outside %d-%d mmHg", v.DiastolicMmHg, minDiastolic, maxDiastolic)
	}
	if v.SpO2Percent < minSpO2 || v.SpO2Percent > maxSpO2 {
		return errs.Validation("SpO2 %d%% outside %d-%d%%", v.SpO2Percent, minSpO2, maxSpO2)
	}
	return nil
}
