package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	lateral "mads-gate/gate/lateral_control"
	"mads-gate/utils"
)

var rootCmd = &cobra.Command{
	Use:          "madsgate",
	Short:        "Lateral control admission gate for a CAN steering bus",
	Long:         "Decides frame by frame whether steering commands from the driving-assistance computer may reach the steering actuator (MADS).",
	SilenceUsage: true,
}

var runOpts struct {
	RunnerConfig
	logLevel string
	logFile  string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Gate steering frames between the ADAS and actuator buses",
	RunE:  runGate,
}

var replayProfile string

var replayCmd = &cobra.Command{
	Use:   "replay <candump.log>",
	Short: "Replay a candump log through the admission monitor",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

var checkProfileCmd = &cobra.Command{
	Use:   "check-profile <profile.yaml>",
	Short: "Validate a vehicle profile and its CAN map",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckProfile,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.VehicleIface, "iface", "vcan0", "SocketCAN interface of the vehicle bus")
	f.StringVar(&runOpts.AdasIface, "adas-iface", "vcan1", "SocketCAN interface the ADAS computer transmits on")
	f.StringVar(&runOpts.ActuatorIface, "out-iface", "vcan2", "SocketCAN interface of the steering actuator")
	f.StringVar(&runOpts.ProfilePath, "profile", "config/profiles/pcm_example.yaml", "Vehicle profile YAML")
	f.DurationVar(&runOpts.LagTimeout, "lag-timeout", 0, "Disengage lateral after this long without steering commands (overrides profile)")
	f.StringVar(&runOpts.MetricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")
	f.BoolVar(&runOpts.Watch, "watch", true, "Re-activate the profile when it changes on disk")
	f.StringVar(&runOpts.logLevel, "log", "info", "trace|debug|info|warn|error|critical")
	f.StringVar(&runOpts.logFile, "log-file", "madsgate.log", "Log file")

	replayCmd.Flags().StringVar(&replayProfile, "profile", "config/profiles/pcm_example.yaml", "Vehicle profile YAML")

	rootCmd.AddCommand(runCmd, replayCmd, checkProfileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGate(cmd *cobra.Command, args []string) error {
	level := utils.ParseLevel(runOpts.logLevel)
	if level == utils.TRACE {
		utils.EnableTrace()
	}
	log, err := utils.NewFileLogger(runOpts.logFile, level, true)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", runOpts.logFile, err)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, runOpts.RunnerConfig, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		return err
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil {
		log.Critical("Run failed: %v", err)
		return err
	}
	return nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	vehicle, err := LoadVehicle(replayProfile)
	if err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	start := time.Now()
	stats, err := Replay(f, vehicle, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "frames=%d decoded=%d skipped=%d transitions=%d lat_active_frames=%d elapsed=%s\n",
		stats.Frames, stats.DecodedFrames, stats.Skipped, stats.Transitions, stats.LatActiveFrames,
		time.Since(start).Round(time.Millisecond))
	return nil
}

func runCheckProfile(cmd *cobra.Command, args []string) error {
	vehicle, err := LoadVehicle(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	p := vehicle.Profile
	fmt.Fprintf(out, "profile:   %s\n", p.Name)
	fmt.Fprintf(out, "can map:   %s (%d frames)\n", p.CANMap, len(vehicle.CANMap.ByID))
	fmt.Fprintf(out, "class:     %s\n", vehicle.Decoder.Class())
	fmt.Fprintf(out, "mads:      enabled=%v disengage_lat_on_brake=%v\n", p.MADS.MadsEnabled, p.MADS.DisengageLatOnBrake)
	fmt.Fprintf(out, "inputs:    %s\n", describeCapabilities(vehicle.Decoder.Capabilities()))

	ids := make([]uint32, 0, len(vehicle.Steering))
	for id := range vehicle.Steering {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Fprintf(out, "steering:  0x%03X %s\n", id, vehicle.Steering[id])
	}
	fmt.Fprintf(out, "lag:       %s\n", p.LagTimeout())
	return nil
}

func describeCapabilities(e lateral.Events) string {
	names := []struct {
		ev   lateral.Events
		name string
	}{
		{lateral.EventSpeed, "speed"},
		{lateral.EventLkasButton, "lkas_button"},
		{lateral.EventMainCruiseButton, "main_cruise_button"},
		{lateral.EventAccMain, "acc_main"},
		{lateral.EventBrake, "brake"},
		{lateral.EventControlsAllowed, "controls_allowed"},
	}
	s := ""
	for _, n := range names {
		if !e.Has(n.ev) {
			continue
		}
		if s != "" {
			s += ","
		}
		s += n.name
	}
	if s == "" {
		return "none"
	}
	return s
}
