// Package apiserver is the thin stdlib net/http shim external callers use
// to submit commands and read device status (spec.md §1's "external
// collaborators with defined interfaces only" — the API surface itself is
// out of scope, so this stays a narrow adapter rather than a framework).
package apiserver

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/epicfatigue/merlinctl/internal/command"
	"github.com/epicfatigue/merlinctl/internal/controlloop"
	"github.com/epicfatigue/merlinctl/internal/deviceinfo"
	"github.com/epicfatigue/merlinctl/internal/metrics"
	"github.com/epicfatigue/merlinctl/internal/statsdb"
)

// Server answers status reads and command submissions against a running
// controlloop.Loop. It never touches the Facade or Machine directly —
// every mutation goes through the Loop's command.Queue so the control loop
// stays the only hardware-owning goroutine.
type Server struct {
	Loop    *controlloop.Loop
	Queue   *command.Queue
	Stats   *statsdb.DB
	Device  deviceinfo.Info
	Metrics *metrics.Collectors

	mux *http.ServeMux
}

// New builds a Server and wires its routes.
func New(loop *controlloop.Loop, queue *command.Queue, stats *statsdb.DB, device deviceinfo.Info, mc *metrics.Collectors) *Server {
	s := &Server{Loop: loop, Queue: queue, Stats: stats, Device: device, Metrics: mc}
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/command/", s.handleCommand)
	if mc != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(mc.Registry, promhttp.HandlerOpts{}))
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// statusResponse is the wire shape of GET /status (spec.md §3's device
// status snapshot plus the lifetime distill counter).
type statusResponse struct {
	Timestamp         time.Time `json:"timestamp"`
	State             string    `json:"state"`
	MachineState      string    `json:"machine_state"`
	Pressure          float64   `json:"pressure_mbar"`
	BottomTemp        float64   `json:"bottom_temperature_c"`
	GasTemp           float64   `json:"gas_temperature_c"`
	HeaterPct         float64   `json:"heater_percent"`
	PumpPct           float64   `json:"pump_percent"`
	FanPct            float64   `json:"fan_percent"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	Warning           string    `json:"warning,omitempty"`
	DistillProgress   float64   `json:"distill_progress"`
	DistillETASeconds float64   `json:"distill_eta_seconds"`

	MachineID           string  `json:"machine_id"`
	FirmwareVersion     string  `json:"firmware_version"`
	LifetimeDistillMins float64 `json:"lifetime_distill_minutes,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.Loop.Snapshot()
	if snap == nil {
		http.Error(w, "control loop has not ticked yet", http.StatusServiceUnavailable)
		return
	}

	resp := statusResponse{
		Timestamp:           snap.Timestamp,
		State:               snap.State,
		MachineState:        snap.MachineState,
		Pressure:            snap.Pressure,
		BottomTemp:          snap.BottomTemp,
		GasTemp:             snap.GasTemp,
		HeaterPct:           snap.HeaterPct,
		PumpPct:             snap.PumpPct,
		FanPct:              snap.FanPct,
		ErrorMessage:        snap.ErrorMessage,
		Warning:             snap.Warning,
		DistillProgress:     snap.DistillProgress,
		DistillETASeconds:   snap.DistillETASeconds,
		MachineID:           s.Device.MachineID,
		FirmwareVersion:     s.Device.FirmwareVersion,
	}
	if s.Stats != nil {
		if mins, err := s.Stats.LifetimeMinutes(statsdb.ModeDistill); err == nil {
			resp.LifetimeDistillMins = mins
		}
	}

	if s.Metrics != nil {
		s.Metrics.Observe(metrics.Snapshot{
			State:             snap.State,
			Pressure:          snap.Pressure,
			BottomTemp:        snap.BottomTemp,
			GasTemp:           snap.GasTemp,
			HeaterPct:         snap.HeaterPct,
			PumpPct:           snap.PumpPct,
			FanPct:            snap.FanPct,
			DistillProgress:   snap.DistillProgress,
			DistillETASeconds: snap.DistillETASeconds,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("apiserver: encode status: %v", err)
	}
}

// handleCommand accepts POST /command/<name>, translating the path and an
// optional JSON body into one command.Command and submitting it to the
// queue. The loop validates it again at drain time — this is only a
// shape-level and state-free acceptance check.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/command/")
	cmd, err := s.parseCommand(name, r)
	if err != nil {
		writeRejection(w, err.Error())
		return
	}

	s.Queue.Submit(cmd)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) parseCommand(name string, r *http.Request) (command.Command, error) {
	switch {
	case name == "start-extraction":
		var body struct {
			RunFull  bool    `json:"run_full"`
			SoakTime *uint32 `json:"soak_time_seconds,omitempty"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		return command.StartExtraction{RunFull: body.RunFull, SoakTime: body.SoakTime}, nil
	case name == "start-decarb":
		return command.StartDecarb{}, nil
	case name == "start-heat-oil":
		return command.StartHeatOil{}, nil
	case name == "start-distill":
		return command.StartDistill{}, nil
	case name == "start-vent-pump":
		return command.StartVentPump{}, nil
	case name == "start-clean-pump":
		return command.StartCleanPump{}, nil
	case name == "pause":
		return command.PauseProgram{}, nil
	case name == "resume":
		return command.ResumeProgram{}, nil
	case name == "reset":
		return command.Reset{}, nil
	case strings.HasPrefix(name, "clean-valve/"):
		id, err := strconv.Atoi(strings.TrimPrefix(name, "clean-valve/"))
		if err != nil {
			return nil, err
		}
		return command.CleanValve{Valve: id}, nil
	default:
		return nil, unknownCommandError(name)
	}
}

type unknownCommandError string

func (e unknownCommandError) Error() string { return "unknown command: " + string(e) }

type rejection struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

func writeRejection(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	_ = json.NewEncoder(w).Encode(rejection{Type: "rejected", Description: description})
}
