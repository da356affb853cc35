// Package controlloop drives the single cooperative 10 ms tick that owns
// all hardware access and machine mutation (spec.md §4.F, §5). Every
// other subsystem — the command queue, the presentation/status reader —
// only touches this loop through the narrow interfaces it exposes.
package controlloop

import (
	"context"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/epicfatigue/merlinctl/internal/command"
	"github.com/epicfatigue/merlinctl/internal/fsm"
	"github.com/epicfatigue/merlinctl/internal/fsmdata"
	"github.com/epicfatigue/merlinctl/internal/hardware"
	"github.com/epicfatigue/merlinctl/internal/panelui"
	"github.com/epicfatigue/merlinctl/internal/statsdb"
)

// TickPeriod is the loop's cooperative scheduling grain (spec.md §4.F,
// §5: "the loop yields only at the 10 ms tick sleep").
const TickPeriod = 10 * time.Millisecond

const (
	aliveLogInterval  = 600 * time.Second
	snapshotInterval  = 10 * time.Second
)

// Snapshot is the read-only status object published for the presentation
// side (spec.md §3's device status snapshot, §5's "atomically-swappable
// status object").
type Snapshot struct {
	Timestamp   time.Time
	State       string
	MachineState string // idle|running|pause|error

	Pressure    float64
	BottomTemp  float64
	GasTemp     float64
	HeaterPct   float64
	PumpPct     float64
	FanPct      float64

	ErrorMessage string
	Warning      string

	DistillProgress   float64
	DistillETASeconds float64
}

func machineState(name string, data *fsmdata.Data) string {
	switch {
	case name == "Error":
		return "error"
	case data.PauseFlag:
		return "pause"
	case data.RunningFlag:
		return "running"
	default:
		return "idle"
	}
}

// Loop wires the machine, command queue, panel mediator and stats store
// into the single-threaded tick implementing spec.md §4.F's 12 steps.
type Loop struct {
	Machine *fsm.Machine
	Ctx     *fsm.Context
	Queue   *command.Queue
	Panel   *panelui.Mediator
	Stats   *statsdb.DB

	// OnOwnWifi reports whether the device is currently serving its own
	// access point (spec.md §4.D's pause-hold "print label" gate). Nil
	// means never.
	OnOwnWifi func() bool

	snapshot atomic.Pointer[Snapshot]

	lastAliveLog      time.Time
	lastSnapshotAt     time.Time
	lastCreditedMinute float64
}

// Snapshot returns the most recently published status snapshot, or nil
// before the first tick.
func (l *Loop) Snapshot() *Snapshot { return l.snapshot.Load() }

// Run executes ticks until ctx is cancelled, calling heartbeat once per
// tick (spec.md §4.F item 1; consumed by supervisor's watchdog).
func (l *Loop) Run(ctx context.Context, heartbeat func()) {
	ticker := time.NewTicker(TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(heartbeat)
		}
	}
}

func (l *Loop) tick(heartbeat func()) {
	heartbeat() // 1

	now := l.Ctx.Now()
	if l.lastAliveLog.IsZero() || now.Sub(l.lastAliveLog) >= aliveLogInterval { // 2
		log.Printf("controlloop: alive, state=%s pause=%v", l.Machine.Current().Name(), l.Ctx.Data.PauseFlag)
		l.lastAliveLog = now
	}

	if reloaded, err := l.Ctx.Cfg.Reload(); err != nil { // 3
		log.Printf("controlloop: config reload: %v", err)
	} else if reloaded {
		log.Printf("controlloop: config reloaded from disk")
	}

	onWifi := false
	if l.OnOwnWifi != nil {
		onWifi = l.OnOwnWifi()
	}
	res := l.Panel.Tick(l.Ctx.HW, l.Ctx.Data, l.Machine.Current().Name(), onWifi) // 4
	if res.Reset {
		l.Queue.Submit(command.Reset{})
	} else if res.StartProgram > 0 {
		l.dispatchProgram(res.StartProgram)
	}

	if level, err := l.Ctx.HW.AlcoholLevel(); err == nil && level != hardware.AlcoholOff { // 5
		if level == hardware.AlcoholDanger {
			l.shutOffForAlcoholDanger()
		}
	}

	if l.Machine.Current().Name() == "DistillBulk" && l.Stats != nil { // 6
		elapsedMin := math.Floor(now.Sub(l.Machine.EnteredAt()).Minutes())
		if elapsedMin > l.lastCreditedMinute {
			delta := elapsedMin - l.lastCreditedMinute
			if err := l.Stats.CreditMinutes(now, statsdb.ModeDistill, delta); err != nil {
				log.Printf("controlloop: credit stats: %v", err)
			}
			l.lastCreditedMinute = elapsedMin
		}
	} else {
		l.lastCreditedMinute = 0
	}

	commandRan := false
	if cmd, ok := l.Queue.Drain(); ok { // 7
		if err := cmd.Validate(l.Machine, l.Ctx); err != nil {
			log.Printf("controlloop: command rejected: %v", err)
		} else if err := cmd.Execute(l.Machine, l.Ctx); err != nil {
			log.Printf("controlloop: command execute: %v", err)
		} else {
			commandRan = true
		}
	}

	l.executeState() // 8

	if l.Machine.Current().Name() == "Ready" && l.Ctx.PID.Running() { // 9
		temp, err := l.Ctx.HW.BottomTemperature()
		if err == nil {
			l.Ctx.PID.SetSetpoint(l.Ctx.Data.TargetTemp)
			if out, fired := l.Ctx.PID.Update(now, temp); fired {
				_ = l.Ctx.HW.SetHeaterPercent(out)
			}
		}
	}

	_ = l.Ctx.HW.SetPanelState(panelui.DisplayState(l.Machine.Current().Name(), l.Ctx.Data)) // 10

	if commandRan || l.lastSnapshotAt.IsZero() || now.Sub(l.lastSnapshotAt) >= snapshotInterval { // 11
		l.publishSnapshot(now)
		l.lastSnapshotAt = now
	}

	// 12: the tick's Sleep is the ticker channel itself, in Run.
}

// executeState runs the current state's Execute and applies any
// transition, treating a panic from driver code as the catch-all
// HardwareFailure path (spec.md §4.F item 8).
func (l *Loop) executeState() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("controlloop: recovered panic in state %s: %v", l.Machine.Current().Name(), r)
			_ = l.Ctx.HW.BlinkRedLight()
			l.Ctx.Data.FailureMode = fsmdata.UnknownError
			l.Ctx.Data.FailureDescription = "unrecoverable hardware failure"
			l.Machine.Goto(l.Ctx, l.Machine.Registry.Error)
		}
	}()
	l.Machine.Step(l.Ctx)
}

func (l *Loop) shutOffForAlcoholDanger() {
	_ = l.Ctx.HW.SetPumpPWM(0)
	_ = l.Ctx.HW.SetHeaterPercent(0)
	for _, v := range []int{1, 2, 3, 4} {
		_ = l.Ctx.HW.SetValve(v, 0)
	}
	_ = l.Ctx.HW.AlcoholSensorOff()
	l.Ctx.Data.FailureMode = fsmdata.AlcoholGasLevelError
	l.Ctx.Data.FailureDescription = "alcohol vapor sensor reported danger level"
	l.Machine.Goto(l.Ctx, l.Machine.Registry.Error)
}

// dispatchProgram translates the panel's "Play in Ready" single-press
// edge into the command bound to the selected program (spec.md §4.D,
// programs enum in §7).
func (l *Loop) dispatchProgram(program int) {
	var cmd command.Command
	switch program {
	case 1:
		cmd = command.StartExtraction{RunFull: true}
	case 2:
		cmd = command.StartDecarb{}
	case 3:
		cmd = command.StartHeatOil{}
	case 4:
		cmd = command.StartDistill{}
	case 5:
		cmd = command.StartExtraction{RunFull: false}
	case 6:
		cmd = command.StartVentPump{}
	case 7:
		cmd = command.StartCleanPump{}
	default:
		return
	}
	l.Queue.Submit(cmd)
}

func (l *Loop) publishSnapshot(now time.Time) {
	name := l.Machine.Current().Name()
	snap := &Snapshot{
		Timestamp:         now,
		State:             name,
		MachineState:      machineState(name, l.Ctx.Data),
		ErrorMessage:      l.Ctx.Data.FailureDescription,
		Warning:           l.Ctx.Data.Warning,
		DistillProgress:   l.Ctx.Data.DistillProgress,
		DistillETASeconds: l.Ctx.Data.DistillETASeconds,
	}
	snap.Pressure, _ = l.Ctx.HW.Pressure()
	snap.BottomTemp, _ = l.Ctx.HW.BottomTemperature()
	snap.GasTemp, _ = l.Ctx.HW.GasTemperature()
	snap.HeaterPct = l.Ctx.HW.HeaterPercent()
	snap.PumpPct = l.Ctx.HW.PumpPercent()
	snap.FanPct = l.Ctx.HW.FanPercent()
	l.snapshot.Store(snap)
}
