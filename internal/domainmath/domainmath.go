// Package domainmath holds the pure, stateless arithmetic that the FSM
// consults: ideal-gas volume inference, leak rate, flow rate, and the
// distill-progress / flow-staircase lookup tables.
//
// Every function here is side-effect free; all arithmetic is float64.
package domainmath

import "sort"

// PVConst returns p*V, the constant side of the ideal-gas relation used
// throughout the leak/volume calculations below.
func PVConst(pressure, totalVolume float64) float64 {
	return pressure * totalVolume
}

// PressureLeakBySampleTime returns the pressure leak rate over a fixed
// sample window.
func PressureLeakBySampleTime(pressureStop, pressureStart, leakSampleTime float64) float64 {
	return (pressureStop - pressureStart) / leakSampleTime
}

// PressureLeak returns the pressure leak rate between two arbitrary
// timestamps.
func PressureLeak(pressureStop, pressureStart, timeStop, timeStart float64) float64 {
	return (pressureStop - pressureStart) / (timeStop - timeStart)
}

// Leakfactor returns the cumulative pressure loss attributable to the
// known system leak since it was measured, plus whatever historic leak had
// already accrued.
func Leakfactor(currentTime, leakDetectTime, systemLeak, historicLeak float64) float64 {
	return (currentTime-leakDetectTime)*systemLeak + historicLeak
}

// HistoricLeak returns the leak accrued between start and stop at the given
// per-second system leak rate.
func HistoricLeak(systemLeak, stopTime, startTime float64) float64 {
	return systemLeak * (stopTime - startTime)
}

// TotalVolumeAspirated returns the estimated liquid volume already
// aspirated out of the EXC, given the PV constant captured at the start of
// aspiration and the leak-compensated current pressure.
func TotalVolumeAspirated(totalVolume, pvConst, currentPressure float64) float64 {
	return totalVolume - pvConst/currentPressure
}

// Flowrate returns the simple delta flow rate between two aspirated-volume
// samples.
func Flowrate(currentVolume, previousVolume, currentTime, previousTime float64) float64 {
	return (currentVolume - previousVolume) / (currentTime - previousTime)
}

// CalcRawVolume infers the extraction-chamber air volume after
// equalisation, from the pressure observed before/after opening a valve
// into a chamber of known total volume.
func CalcRawVolume(pressureFull, totalVolume, pressureInit, atmPressure float64) float64 {
	return (pressureFull*totalVolume - totalVolume*pressureInit) / (atmPressure - pressureFull)
}

// PressureSlope returns the rate of pressure change over an elapsed
// interval. Kept as a real, always-computed value: the Python original
// computed it but its sole consumer swallowed the exception and always
// saw 0 (spec.md §9 Open Questions); here the caller gets the true value.
func PressureSlope(pressureDiff, timeElapsedSeconds float64) float64 {
	return pressureDiff / timeElapsedSeconds
}

// CalibrationPoint is one (measured air volume -> actual liquid volume)
// calibration anchor.
type CalibrationPoint struct {
	AirVolume    float64
	ActualVolume float64
}

// ConvertAirToLiquid performs 1-D linear interpolation of a measured air
// volume against a calibration table, clamping to the table's endpoints
// outside its domain (matching numpy.interp's default clamp behaviour,
// which the original relied on).
func ConvertAirToLiquid(table []CalibrationPoint, airVolume float64) float64 {
	if len(table) == 0 {
		return 0
	}
	pts := make([]CalibrationPoint, len(table))
	copy(pts, table)
	sort.Slice(pts, func(i, j int) bool { return pts[i].AirVolume < pts[j].AirVolume })

	if airVolume <= pts[0].AirVolume {
		return pts[0].ActualVolume
	}
	last := pts[len(pts)-1]
	if airVolume >= last.AirVolume {
		return last.ActualVolume
	}
	for i := 0; i < len(pts)-1; i++ {
		a, b := pts[i], pts[i+1]
		if airVolume >= a.AirVolume && airVolume <= b.AirVolume {
			if b.AirVolume == a.AirVolume {
				return a.ActualVolume
			}
			t := (airVolume - a.AirVolume) / (b.AirVolume - a.AirVolume)
			return a.ActualVolume + t*(b.ActualVolume-a.ActualVolume)
		}
	}
	return last.ActualVolume
}

// distillPivot is one (power fraction -> estimated total seconds) anchor
// in the distill-progress interpolation table.
type distillPivot struct {
	power   float64
	seconds float64
}

var distillPivots = []distillPivot{
	{power: 0.5, seconds: 6 * 3600},
	{power: 0.8, seconds: 2.5 * 3600},
	{power: 0.9, seconds: 2 * 3600},
}

// DistillProgress estimates completion fraction and ETA (seconds) for the
// bulk distillation stage from elapsed time and the PID's current power
// uptake fraction (0..1).
func DistillProgress(elapsedSeconds, powerUptake float64) (progress, etaSeconds float64) {
	if elapsedSeconds < 1 {
		elapsedSeconds = 1
	}
	estimated := interpDistillSeconds(powerUptake)
	if estimated-elapsedSeconds > 0 {
		return elapsedSeconds / estimated, estimated - elapsedSeconds
	}
	return 0.99, 1
}

func interpDistillSeconds(power float64) float64 {
	pivots := distillPivots
	if power <= pivots[0].power {
		return pivots[0].seconds
	}
	last := pivots[len(pivots)-1]
	if power >= last.power {
		return last.seconds
	}
	for i := 0; i < len(pivots)-1; i++ {
		a, b := pivots[i], pivots[i+1]
		if power >= a.power && power <= b.power {
			t := (power - a.power) / (b.power - a.power)
			return a.seconds + t*(b.seconds-a.seconds)
		}
	}
	return last.seconds
}

// FlowBand is one band of the flow-adjustment staircase: any error
// percentage below Threshold uses this band's Step/Period.
type FlowBand struct {
	Threshold float64
	Step      float64
	PeriodS   float64
}

// StepAndPeriod returns the valve step size and adjustment period for a
// given flow error percentage, by walking the (up to 10) configured bands
// in ascending threshold order and returning the first band whose
// threshold exceeds errorPct. Past the last configured band, that band's
// step/period applies (it is the fallback), per spec.md §9's "treat stages
// 1..10 uniformly" resolution.
func StepAndPeriod(bands []FlowBand, errorPct float64) (step, periodS float64) {
	if len(bands) == 0 {
		return 0, 1
	}
	abs := errorPct
	if abs < 0 {
		abs = -abs
	}
	for _, b := range bands {
		if abs < b.Threshold {
			return b.Step, b.PeriodS
		}
	}
	last := bands[len(bands)-1]
	return last.Step, last.PeriodS
}
