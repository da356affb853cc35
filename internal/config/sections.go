package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/epicfatigue/merlinctl/internal/domainmath"
)

// FlowBands converts the FLOW_ADJ section into the domainmath staircase
// shape.
func (c *Config) FlowBands() []domainmath.FlowBand {
	out := make([]domainmath.FlowBand, len(c.FlowAdjust))
	for i, b := range c.FlowAdjust {
		out[i] = domainmath.FlowBand{Threshold: b.Threshold, Step: b.Step, PeriodS: b.PeriodS}
	}
	return out
}

// EXCVolumeCalibration pairs the two EXC-volume calibration vectors into
// domainmath.CalibrationPoint anchors.
func (c *Config) EXCVolumeCalibration() []domainmath.CalibrationPoint {
	return zipCalibration(c.CalculatedEXCVolumeCalibrationData, c.CalculatedAspiratedVolumeCalibrationData)
}

func zipCalibration(air, actual []float64) []domainmath.CalibrationPoint {
	n := len(air)
	if len(actual) < n {
		n = len(actual)
	}
	out := make([]domainmath.CalibrationPoint, n)
	for i := 0; i < n; i++ {
		out[i] = domainmath.CalibrationPoint{AirVolume: air[i], ActualVolume: actual[i]}
	}
	return out
}

// applyFile overlays every recognised key present in f onto cfg, leaving
// the Default() value in place for anything the file omits.
func (c *Config) applyFile(f *ini.File) error {
	sys := f.Section("SYSTEM")
	getInt(sys, "pressure_slope_sample_time", &c.PressureSlopeSampleTimeMS)
	getInt(sys, "soak_time_seconds", &c.SoakTimeSeconds)

	ex := f.Section("FSM_EX")
	getFloat(ex, "maximum_vacuum_pressure", &c.MaximumVacuumPressure)
	getInt(ex, "maximum_vacuum_time", &c.MaximumVacuumTime)
	getFloat(ex, "tube_filling_vacuum", &c.TubeFillingVacuum)
	getFloat(ex, "max_pressure_loss_evc", &c.MaxPressureLossEVC)
	getInt(ex, "leak_sample_time", &c.LeakSampleTime)
	getInt(ex, "leak_delay_time", &c.LeakDelayTime)
	getInt(ex, "pressure_eq_time", &c.PressureEqTime)
	getFloat(ex, "evc_volume", &c.EVCVolume)
	getFloat(ex, "valve_last_known_setting", &c.ValveLastKnownSetting)
	getFloat(ex, "valve_start_close_value", &c.ValveStartCloseValue)
	getFloat(ex, "valve_adjust_hysteresis", &c.ValveAdjustHysteresis)
	getInt(ex, "valve_adjust_delay", &c.ValveAdjustDelay)
	getFloatList(ex, "calculated_exc_volume_calibration_data", &c.CalculatedEXCVolumeCalibrationData)
	getFloatList(ex, "calculated_aspirated_volume_calibration_data", &c.CalculatedAspiratedVolumeCalibrationData)
	getInt(ex, "top_up_time", &c.TopUpTime)
	getFloat(ex, "top_up_afterfill_valve_setting", &c.TopUpAfterfillValveSetting)
	getFloat(ex, "aspirate_volume", &c.AspirateVolume)
	getFloat(ex, "aspirate_speed", &c.AspirateSpeed)
	getInt(ex, "number_of_flushes", &c.NumberOfFlushes)
	getInt(ex, "flush_time", &c.FlushTime)
	getFloat(ex, "flowrate_fall_limit", &c.FlowrateFallLimit)

	ev := f.Section("FSM_EV")
	getFloat(ev, "min_temp", &c.MinTemp)
	getFloat(ev, "max_temp", &c.MaxTemp)
	getFloat(ev, "error_pressure_during_distill", &c.ErrorPressureDuringDistill)
	getInt(ev, "time_delay_before_pressure_check", &c.TimeDelayBeforePressureCheck)
	getFloat(ev, "distillation_temperature", &c.DistillationTemperature)
	getInt(ev, "after_heat_time", &c.AfterHeatTime)
	getFloat(ev, "after_heat_temp", &c.AfterHeatTemp)
	getInt(ev, "final_air_cycles", &c.FinalAirCycles)
	getInt(ev, "final_air_cycles_time_open", &c.FinalAirCyclesTimeOpen)
	getInt(ev, "final_air_cycles_time_closed", &c.FinalAirCyclesTimeClosed)
	getFloat(ev, "temperature_critical_level", &c.TemperatureCriticalLevel)
	getInt(ev, "temperature_critical_level_max_interval", &c.TemperatureCriticalLevelMaxIntervalS)
	getInt(ev, "temperature_check_interval", &c.TemperatureCheckInterval)
	getFloat(ev, "temperature_increase_threshold", &c.TemperatureIncreaseThreshold)
	getFloat(ev, "temperature_check_threshold", &c.TemperatureCheckThreshold)
	getFloat(ev, "error_pressure_increase_threshold", &c.ErrorPressureIncreaseThreshold)
	getFloat(ev, "ambient_pressure_upper_bound", &c.AmbientPressureUpperBound)
	getFloat(ev, "ambient_pressure_lower_bound", &c.AmbientPressureLowerBound)
	getInt(ev, "peak_pressure_detection_interval_seconds", &c.PeakPressureDetectionIntervalSeconds)
	getFloat(ev, "peak_pressure_during_distill", &c.PeakPressureDuringDistill)
	getInt(ev, "pressure_peak_handle_time_seconds", &c.PressurePeakHandleTimeSeconds)
	getFloat(ev, "pressure_peak_max_pressure", &c.PressurePeakMaxPressure)

	decarb := f.Section("DECARB")
	getFloat(decarb, "temperature", &c.DecarbTemperature)
	getInt(decarb, "time_minutes", &c.DecarbTimeMinutes)

	oilMix := f.Section("OIL_MIX")
	getFloat(oilMix, "temperature", &c.OilMixTemperature)
	getInt(oilMix, "time_minutes", &c.OilMixTimeMinutes)

	pid := f.Section("PID")
	getFloat(pid, "Pterm", &c.PIDPterm)
	getFloat(pid, "Iterm", &c.PIDIterm)
	getFloat(pid, "Dterm", &c.PIDDterm)
	getFloat(pid, "sample_time", &c.PIDSampleTime)
	getFloat(pid, "windup", &c.PIDWindup)
	getFloat(pid, "initial_window_delay", &c.PIDInitialWindowDelay)
	getFloat(pid, "current_window", &c.PIDCurrentWindow)
	getFloat(pid, "wattage_decrease_limit", &c.PIDWattageDecreaseLimit)

	flowAdj := f.Section("FLOW_ADJ")
	for i := range c.FlowAdjust {
		stage := i + 1
		getFloat(flowAdj, fmt.Sprintf("pct_stage_%d", stage), &c.FlowAdjust[i].Threshold)
		getFloat(flowAdj, fmt.Sprintf("step_size_stage_%d", stage), &c.FlowAdjust[i].Step)
		getFloat(flowAdj, fmt.Sprintf("step_period_stage_%d", stage), &c.FlowAdjust[i].PeriodS)
	}

	return nil
}

// populateFile writes every field of cfg back into an ini.File using the
// same key names applyFile reads, so round-tripping Load->Save->Load is
// lossless.
func (c *Config) populateFile(f *ini.File) error {
	sys, _ := f.NewSection("SYSTEM")
	setInt(sys, "pressure_slope_sample_time", c.PressureSlopeSampleTimeMS)
	setInt(sys, "soak_time_seconds", c.SoakTimeSeconds)

	ex, _ := f.NewSection("FSM_EX")
	setFloat(ex, "maximum_vacuum_pressure", c.MaximumVacuumPressure)
	setInt(ex, "maximum_vacuum_time", c.MaximumVacuumTime)
	setFloat(ex, "tube_filling_vacuum", c.TubeFillingVacuum)
	setFloat(ex, "max_pressure_loss_evc", c.MaxPressureLossEVC)
	setInt(ex, "leak_sample_time", c.LeakSampleTime)
	setInt(ex, "leak_delay_time", c.LeakDelayTime)
	setInt(ex, "pressure_eq_time", c.PressureEqTime)
	setFloat(ex, "evc_volume", c.EVCVolume)
	setFloat(ex, "valve_last_known_setting", c.ValveLastKnownSetting)
	setFloat(ex, "valve_start_close_value", c.ValveStartCloseValue)
	setFloat(ex, "valve_adjust_hysteresis", c.ValveAdjustHysteresis)
	setInt(ex, "valve_adjust_delay", c.ValveAdjustDelay)
	setFloatList(ex, "calculated_exc_volume_calibration_data", c.CalculatedEXCVolumeCalibrationData)
	setFloatList(ex, "calculated_aspirated_volume_calibration_data", c.CalculatedAspiratedVolumeCalibrationData)
	setInt(ex, "top_up_time", c.TopUpTime)
	setFloat(ex, "top_up_afterfill_valve_setting", c.TopUpAfterfillValveSetting)
	setFloat(ex, "aspirate_volume", c.AspirateVolume)
	setFloat(ex, "aspirate_speed", c.AspirateSpeed)
	setInt(ex, "number_of_flushes", c.NumberOfFlushes)
	setInt(ex, "flush_time", c.FlushTime)
	setFloat(ex, "flowrate_fall_limit", c.FlowrateFallLimit)

	ev, _ := f.NewSection("FSM_EV")
	setFloat(ev, "min_temp", c.MinTemp)
	setFloat(ev, "max_temp", c.MaxTemp)
	setFloat(ev, "error_pressure_during_distill", c.ErrorPressureDuringDistill)
	setInt(ev, "time_delay_before_pressure_check", c.TimeDelayBeforePressureCheck)
	setFloat(ev, "distillation_temperature", c.DistillationTemperature)
	setInt(ev, "after_heat_time", c.AfterHeatTime)
	setFloat(ev, "after_heat_temp", c.AfterHeatTemp)
	setInt(ev, "final_air_cycles", c.FinalAirCycles)
	setInt(ev, "final_air_cycles_time_open", c.FinalAirCyclesTimeOpen)
	setInt(ev, "final_air_cycles_time_closed", c.FinalAirCyclesTimeClosed)
	setFloat(ev, "temperature_critical_level", c.TemperatureCriticalLevel)
	setInt(ev, "temperature_critical_level_max_interval", c.TemperatureCriticalLevelMaxIntervalS)
	setInt(ev, "temperature_check_interval", c.TemperatureCheckInterval)
	setFloat(ev, "temperature_increase_threshold", c.TemperatureIncreaseThreshold)
	setFloat(ev, "temperature_check_threshold", c.TemperatureCheckThreshold)
	setFloat(ev, "error_pressure_increase_threshold", c.ErrorPressureIncreaseThreshold)
	setFloat(ev, "ambient_pressure_upper_bound", c.AmbientPressureUpperBound)
	setFloat(ev, "ambient_pressure_lower_bound", c.AmbientPressureLowerBound)
	setInt(ev, "peak_pressure_detection_interval_seconds", c.PeakPressureDetectionIntervalSeconds)
	setFloat(ev, "peak_pressure_during_distill", c.PeakPressureDuringDistill)
	setInt(ev, "pressure_peak_handle_time_seconds", c.PressurePeakHandleTimeSeconds)
	setFloat(ev, "pressure_peak_max_pressure", c.PressurePeakMaxPressure)

	decarb, _ := f.NewSection("DECARB")
	setFloat(decarb, "temperature", c.DecarbTemperature)
	setInt(decarb, "time_minutes", c.DecarbTimeMinutes)

	oilMix, _ := f.NewSection("OIL_MIX")
	setFloat(oilMix, "temperature", c.OilMixTemperature)
	setInt(oilMix, "time_minutes", c.OilMixTimeMinutes)

	pid, _ := f.NewSection("PID")
	setFloat(pid, "Pterm", c.PIDPterm)
	setFloat(pid, "Iterm", c.PIDIterm)
	setFloat(pid, "Dterm", c.PIDDterm)
	setFloat(pid, "sample_time", c.PIDSampleTime)
	setFloat(pid, "windup", c.PIDWindup)
	setFloat(pid, "initial_window_delay", c.PIDInitialWindowDelay)
	setFloat(pid, "current_window", c.PIDCurrentWindow)
	setFloat(pid, "wattage_decrease_limit", c.PIDWattageDecreaseLimit)

	flowAdj, _ := f.NewSection("FLOW_ADJ")
	for i, band := range c.FlowAdjust {
		stage := i + 1
		setFloat(flowAdj, fmt.Sprintf("pct_stage_%d", stage), band.Threshold)
		setFloat(flowAdj, fmt.Sprintf("step_size_stage_%d", stage), band.Step)
		setFloat(flowAdj, fmt.Sprintf("step_period_stage_%d", stage), band.PeriodS)
	}

	return nil
}

func getInt(sec *ini.Section, key string, dst *int) {
	if !sec.HasKey(key) {
		return
	}
	if v, err := sec.Key(key).Int(); err == nil {
		*dst = v
	}
}

func getFloat(sec *ini.Section, key string, dst *float64) {
	if !sec.HasKey(key) {
		return
	}
	if v, err := sec.Key(key).Float64(); err == nil {
		*dst = v
	}
}

func getFloatList(sec *ini.Section, key string, dst *[]float64) {
	if !sec.HasKey(key) {
		return
	}
	raw := sec.Key(key).String()
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return
		}
		out = append(out, v)
	}
	if len(out) > 0 {
		*dst = out
	}
}

func setInt(sec *ini.Section, key string, v int) {
	sec.Key(key).SetValue(strconv.Itoa(v))
}

func setFloat(sec *ini.Section, key string, v float64) {
	sec.Key(key).SetValue(strconv.FormatFloat(v, 'f', -1, 64))
}

func setFloatList(sec *ini.Section, key string, vs []float64) {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	sec.Key(key).SetValue(strings.Join(parts, ","))
}
