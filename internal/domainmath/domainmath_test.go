package domainmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPVConst(t *testing.T) {
	assert.Equal(t, 2000.0, PVConst(200, 10))
}

func TestPressureLeak(t *testing.T) {
	assert.Equal(t, -5.0, PressureLeakBySampleTime(90, 100, 2))
	assert.Equal(t, -2.5, PressureLeak(90, 100, 10, 6))
}

func TestLeakfactor(t *testing.T) {
	// 5 elapsed seconds at a 0.1/s leak, plus 3 of historic leak already on
	// the books.
	got := Leakfactor(105, 100, 0.1, 3)
	assert.InDelta(t, 3.5, got, 1e-9)
}

func TestHistoricLeak(t *testing.T) {
	assert.InDelta(t, 2.0, HistoricLeak(0.5, 104, 100), 1e-9)
}

func TestTotalVolumeAspirated(t *testing.T) {
	// pv/p recovers the original volume at the starting pressure; the
	// delta against totalVolume is what's been aspirated out. Pressure
	// rises as the gas volume shrinks, so a higher reading means more
	// has been aspirated (600 mbar: 290 - 87000/600 = 145).
	pv := PVConst(300, 290)
	got := TotalVolumeAspirated(290, pv, 300)
	assert.InDelta(t, 0, got, 1e-9)

	got = TotalVolumeAspirated(290, pv, 600)
	assert.Greater(t, got, 0.0)
}

func TestFlowrate(t *testing.T) {
	assert.InDelta(t, 2.0, Flowrate(20, 10, 5, 0), 1e-9)
}

func TestCalcRawVolume(t *testing.T) {
	// Known-good case: chamber fully equalised with atmosphere reads back
	// the init pressure exactly, giving zero inferred volume change.
	got := CalcRawVolume(1000, 290, 1000, 1013)
	assert.InDelta(t, 0, got, 1e-9)
}

func TestPressureSlope(t *testing.T) {
	assert.InDelta(t, 2.5, PressureSlope(10, 4), 1e-9)
}

func TestConvertAirToLiquidInterpolatesAndClamps(t *testing.T) {
	table := []CalibrationPoint{
		{AirVolume: 0, ActualVolume: 0},
		{AirVolume: 100, ActualVolume: 80},
		{AirVolume: 200, ActualVolume: 150},
	}

	assert.InDelta(t, 40, ConvertAirToLiquid(table, 50), 1e-9)
	assert.InDelta(t, 0, ConvertAirToLiquid(table, -10), 1e-9, "below domain clamps to first anchor")
	assert.InDelta(t, 150, ConvertAirToLiquid(table, 500), 1e-9, "above domain clamps to last anchor")
	assert.Equal(t, 0.0, ConvertAirToLiquid(nil, 42))
}

func TestDistillProgressInterpolatesAgainstPivots(t *testing.T) {
	// At the 0.8-power pivot (2.5h total), halfway elapsed should read ~50%.
	total := 2.5 * 3600
	progress, eta := DistillProgress(total/2, 0.8)
	assert.InDelta(t, 0.5, progress, 1e-6)
	assert.InDelta(t, total/2, eta, 1e-6)
}

func TestDistillProgressClampsNearCompletion(t *testing.T) {
	progress, eta := DistillProgress(1e9, 0.9)
	assert.Equal(t, 0.99, progress)
	assert.Equal(t, 1.0, eta)
}

func TestStepAndPeriodWalksBandsAndFallsBackToLast(t *testing.T) {
	bands := []FlowBand{
		{Threshold: 5, Step: 1, PeriodS: 10},
		{Threshold: 10, Step: 2, PeriodS: 8},
		{Threshold: 20, Step: 4, PeriodS: 5},
	}

	step, period := StepAndPeriod(bands, 3)
	assert.Equal(t, 1.0, step)
	assert.Equal(t, 10.0, period)

	step, period = StepAndPeriod(bands, -7) // negative errors use abs value
	assert.Equal(t, 2.0, step)
	assert.Equal(t, 8.0, period)

	step, period = StepAndPeriod(bands, 1000) // past every band: last is fallback
	assert.Equal(t, 4.0, step)
	assert.Equal(t, 5.0, period)

	step, period = StepAndPeriod(nil, 5)
	assert.Equal(t, 0.0, step)
	assert.Equal(t, 1.0, period)
}
