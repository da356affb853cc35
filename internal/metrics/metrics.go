// Package metrics exposes the control loop's live readings as Prometheus
// gauges (enrichment grounded on 99souls-ariadne's telemetry/metrics
// package: a private registry plus promauto-style collectors, served over
// /metrics by the apiserver rather than the default global registry).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors groups every gauge the control loop updates once per
// published snapshot.
type Collectors struct {
	Registry *prometheus.Registry

	State      *prometheus.GaugeVec
	Pressure   prometheus.Gauge
	BottomTemp prometheus.Gauge
	GasTemp    prometheus.Gauge
	HeaterPct  prometheus.Gauge
	PumpPct    prometheus.Gauge
	FanPct     prometheus.Gauge
	Progress   prometheus.Gauge
	ETASeconds prometheus.Gauge
}

// New builds a private registry and registers every collector against it,
// so a dependency on the process-wide default registry (and whatever else
// might register into it) never leaks into this appliance's /metrics.
func New() *Collectors {
	reg := prometheus.NewRegistry()

	c := &Collectors{
		Registry: reg,
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "merlin_fsm_state",
			Help: "1 for the currently active recipe-machine state, 0 otherwise.",
		}, []string{"state"}),
		Pressure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "merlin_pressure_mbar",
			Help: "Last read system pressure, in mbar.",
		}),
		BottomTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "merlin_bottom_temperature_celsius",
			Help: "Last read vessel bottom temperature, in Celsius.",
		}),
		GasTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "merlin_gas_temperature_celsius",
			Help: "Last read vapor path temperature, in Celsius.",
		}),
		HeaterPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "merlin_heater_percent",
			Help: "Last commanded heater duty cycle, 0-100.",
		}),
		PumpPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "merlin_pump_percent",
			Help: "Last commanded vacuum pump duty cycle, 0-100.",
		}),
		FanPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "merlin_fan_percent",
			Help: "Last commanded cooling fan duty cycle, 0-100.",
		}),
		Progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "merlin_distill_progress_ratio",
			Help: "Estimated DistillBulk progress, 0-1.",
		}),
		ETASeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "merlin_distill_eta_seconds",
			Help: "Estimated seconds remaining in DistillBulk.",
		}),
	}

	reg.MustRegister(c.State, c.Pressure, c.BottomTemp, c.GasTemp, c.HeaterPct, c.PumpPct, c.FanPct, c.Progress, c.ETASeconds)
	return c
}

// states lists every recipe-machine state name so Observe can zero out the
// ones that aren't current (a GaugeVec otherwise only grows, never shrinks).
var states = []string{
	"Ready", "SystemCheck", "PreFillTubes", "FirstDepressurize",
	"MeasureEXCVolume", "SecondDepressurize", "SecondLeakCheck", "TopUpEXC",
	"Soak", "ThirdDepressurize", "Aspirate", "Flush",
	"ExtraFlushDepressurize", "DistillBulk", "AfterDistill",
	"FinalSolventRemoval", "Decarb", "MixOil", "VentPump", "CleanPump", "Error",
}

// Observe publishes one snapshot's worth of readings to the registered
// gauges. A zero Snapshot (before the loop's first tick) sets every gauge
// to 0 and marks no state as current.
func (c *Collectors) Observe(snap Snapshot) {
	for _, s := range states {
		v := 0.0
		if s == snap.State {
			v = 1.0
		}
		c.State.WithLabelValues(s).Set(v)
	}
	c.Pressure.Set(snap.Pressure)
	c.BottomTemp.Set(snap.BottomTemp)
	c.GasTemp.Set(snap.GasTemp)
	c.HeaterPct.Set(snap.HeaterPct)
	c.PumpPct.Set(snap.PumpPct)
	c.FanPct.Set(snap.FanPct)
	c.Progress.Set(snap.DistillProgress)
	c.ETASeconds.Set(snap.DistillETASeconds)
}

// Snapshot is the subset of controlloop.Snapshot this package reads. It is
// declared independently so metrics doesn't import controlloop — the
// apiserver, which imports both, does the field copy.
type Snapshot struct {
	State             string
	Pressure          float64
	BottomTemp        float64
	GasTemp           float64
	HeaterPct         float64
	PumpPct           float64
	FanPct            float64
	DistillProgress   float64
	DistillETASeconds float64
}
