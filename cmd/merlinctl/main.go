// merlinctl is the botanical extractor's embedded controller: it drives
// the recipe state machine against the onboard hardware façade, serves a
// small status/command HTTP API, and persists lifetime usage stats.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/reef-pi/rpi/i2c"
	"github.com/spf13/cobra"

	"github.com/epicfatigue/merlinctl/internal/apiserver"
	"github.com/epicfatigue/merlinctl/internal/command"
	"github.com/epicfatigue/merlinctl/internal/config"
	"github.com/epicfatigue/merlinctl/internal/controlloop"
	"github.com/epicfatigue/merlinctl/internal/deviceinfo"
	"github.com/epicfatigue/merlinctl/internal/fsm"
	"github.com/epicfatigue/merlinctl/internal/fsmdata"
	"github.com/epicfatigue/merlinctl/internal/hardware"
	"github.com/epicfatigue/merlinctl/internal/hardware/valve"
	"github.com/epicfatigue/merlinctl/internal/metrics"
	"github.com/epicfatigue/merlinctl/internal/panelui"
	"github.com/epicfatigue/merlinctl/internal/pidctl"
	"github.com/epicfatigue/merlinctl/internal/statsdb"
	"github.com/epicfatigue/merlinctl/internal/supervisor"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:     "merlinctl",
		Short:   "Botanical extractor embedded controller",
		Version: version,
	}

	root.AddCommand(newServeCmd(), newConfigCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var (
		configPath     string
		statsPath      string
		deviceInfoPath string
		listenAddr     string
		i2cBusNumber   int
		heartbeatSecs  int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control loop and HTTP API until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(serveOptions{
				configPath:     configPath,
				statsPath:      statsPath,
				deviceInfoPath: deviceInfoPath,
				listenAddr:     listenAddr,
				i2cBusNumber:   i2cBusNumber,
				heartbeat:      time.Duration(heartbeatSecs) * time.Second,
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "/etc/merlinctl/recipe.ini", "path to the recipe config file")
	cmd.Flags().StringVar(&statsPath, "stats-db", "/var/lib/merlinctl/stats.db", "path to the lifetime-usage SQLite database")
	cmd.Flags().StringVar(&deviceInfoPath, "device-info", "/etc/merlinctl/device.json", "path to the provisioning-time device identity file")
	cmd.Flags().StringVar(&listenAddr, "listen", ":8080", "address the status/command HTTP API listens on")
	cmd.Flags().IntVar(&i2cBusNumber, "i2c-bus", 1, "Linux I2C bus number the onboard chips are wired to")
	cmd.Flags().IntVar(&heartbeatSecs, "heartbeat-timeout", 5, "seconds without a control loop tick before the watchdog logs a stall")

	return cmd
}

type serveOptions struct {
	configPath     string
	statsPath      string
	deviceInfoPath string
	listenAddr     string
	i2cBusNumber   int
	heartbeat      time.Duration
}

func runServe(opts serveOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	device, err := deviceinfo.Load(opts.deviceInfoPath)
	if err != nil {
		return fmt.Errorf("load device info: %w", err)
	}

	stats, err := statsdb.Open(opts.statsPath)
	if err != nil {
		return fmt.Errorf("open stats db: %w", err)
	}

	cfgWatcher, err := config.Watch(cfg)
	if err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}

	bus, err := i2c.New(opts.i2cBusNumber)
	if err != nil {
		return fmt.Errorf("open i2c bus %d: %w", opts.i2cBusNumber, err)
	}

	sys, err := hardware.NewSystem(bus, defaultPinSet())
	if err != nil {
		return fmt.Errorf("wire hardware facade: %w", err)
	}
	if status, err := sys.Init(); err != nil {
		return fmt.Errorf("hardware init (%s): %w", status, err)
	}

	reg := fsm.NewRegistry()
	machine := fsm.NewMachine(reg)
	data := &fsmdata.Data{SelectedProgram: 1}
	pid := pidctl.New(
		cfg.PIDPterm, cfg.PIDIterm, cfg.PIDDterm,
		time.Duration(cfg.PIDSampleTime*float64(time.Second)),
		0, 100,
		time.Duration(cfg.PIDInitialWindowDelay*float64(time.Second)),
		time.Duration(cfg.PIDCurrentWindow*float64(time.Second)),
		cfg.PIDWindup,
	)

	ctx := &fsm.Context{HW: sys, Cfg: cfg, Data: data, PID: pid}

	queue := &command.Queue{}
	loop := &controlloop.Loop{
		Machine: machine,
		Ctx:     ctx,
		Queue:   queue,
		Panel:   panelui.New(),
		Stats:   stats,
		OnOwnWifi: func() bool { return false },
	}

	mc := metrics.New()
	srv := apiserver.New(loop, queue, stats, device, mc)
	httpServer := &http.Server{Addr: opts.listenAddr, Handler: srv}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "merlinctl: http server: %v\n", err)
		}
	}()

	sup := supervisor.New(loop, opts.heartbeat, stats, cfgWatcher, httpServerCloser{httpServer})
	sup.Run()
	return nil
}

type httpServerCloser struct{ s *http.Server }

func (h httpServerCloser) Close() error { return h.s.Close() }

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the recipe config file",
	}

	var configPath string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved config as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
	showCmd.Flags().StringVar(&configPath, "config", "/etc/merlinctl/recipe.ini", "path to the recipe config file")

	configCmd.AddCommand(showCmd)
	return configCmd
}

// defaultPinSet is the reference wiring for the appliance's first hardware
// revision. Deployment-specific pin mappings belong in a future --pins
// flag; today's single target makes that generalization premature.
func defaultPinSet() hardware.PinSet {
	return hardware.PinSet{
		ValveSteppers: [4]valve.StepperPins{
			{Step: 17, Dir: 27, Enable: 22},
			{Step: 23, Dir: 24, Enable: 25},
			{Step: 5, Dir: 6, Enable: 13},
			{Step: 19, Dir: 26, Enable: 16},
		},
		HeaterPWM:         0,
		PumpPWM:           1,
		FanPWM:            2,
		FanADC:            0,
		LightPWM:          3,
		PanelAddress:      0x20,
		ADCAddresses:      []byte{0x48, 0x49},
		PressureAddresses: []byte{0x76, 0x77},
		ThermistorChannel: 1,
		AlcoholChannel:    2,
	}
}
