package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.einride.tech/can"
	"golang.org/x/sync/errgroup"

	lateral "mads-gate/gate/lateral_control"
	"mads-gate/utils"
)

type RunnerConfig struct {
	VehicleIface  string
	AdasIface     string
	ActuatorIface string
	ProfilePath   string
	LagTimeout    time.Duration // overrides the profile when > 0
	MetricsAddr   string
	Watch         bool
}

// Runner sits between the driving-assistance computer and the steering
// actuator bus. Vehicle bus frames drive the admission monitor; steering
// command frames from the ADAS bus are forwarded only while lat_active.
type Runner struct {
	cfg     RunnerConfig
	log     *utils.Logger
	mon     *lateral.Monitor
	metrics *Metrics

	vehicleRx  utils.CANReader
	adasRx     utils.CANReader
	actuatorTx utils.CANWriter

	mu         sync.Mutex
	vehicle    *Vehicle
	epoch      string
	lagTimeout time.Duration

	lastSteer atomic.Int64 // unix nanos of the last steering command seen
	now       func() time.Time
}

func NewRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger) (*Runner, error) {
	vehicle, err := LoadVehicle(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}

	vehicleRx, err := utils.NewSocketCANReader(ctx, cfg.VehicleIface)
	if err != nil {
		return nil, err
	}
	adasRx, err := utils.NewSocketCANReader(ctx, cfg.AdasIface)
	if err != nil {
		vehicleRx.Close()
		return nil, err
	}
	actuatorTx, err := utils.NewSocketCANWriter(ctx, cfg.ActuatorIface)
	if err != nil {
		vehicleRx.Close()
		adasRx.Close()
		return nil, err
	}

	return newRunner(cfg, log, vehicle, vehicleRx, adasRx, actuatorTx), nil
}

func newRunner(cfg RunnerConfig, log *utils.Logger, vehicle *Vehicle, vehicleRx, adasRx utils.CANReader, actuatorTx utils.CANWriter) *Runner {
	r := &Runner{
		cfg:        cfg,
		log:        log,
		metrics:    NewMetrics(),
		vehicleRx:  vehicleRx,
		adasRx:     adasRx,
		actuatorTx: actuatorTx,
		now:        time.Now,
	}
	r.mon = lateral.NewMonitor(vehicle.Decoder, vehicle.Profile.MADS)
	r.mon.SetObserver(r.onTransition)
	r.install(vehicle, r.nextEpoch())
	r.lastSteer.Store(r.now().UnixNano())
	return r
}

func (r *Runner) Close() {
	if r.vehicleRx != nil {
		_ = r.vehicleRx.Close()
	}
	if r.adasRx != nil {
		_ = r.adasRx.Close()
	}
	if r.actuatorTx != nil {
		_ = r.actuatorTx.Close()
	}
}

// nextEpoch starts a new epoch id. It runs before the monitor is
// reconfigured so the transitions of the activation carry the new id.
func (r *Runner) nextEpoch() string {
	epoch := uuid.NewString()
	r.mu.Lock()
	r.epoch = epoch
	r.mu.Unlock()
	return epoch
}

// install records vehicle as active.
func (r *Runner) install(vehicle *Vehicle, epoch string) {
	lag := vehicle.Profile.LagTimeout()
	if r.cfg.LagTimeout > 0 {
		lag = r.cfg.LagTimeout
	}

	r.mu.Lock()
	r.vehicle = vehicle
	r.lagTimeout = lag
	r.mu.Unlock()

	r.metrics.Activations.Inc()
	r.log.Info("Profile active: vehicle=%s class=%s mads=%v disengage_on_brake=%v steering_frames=%d lag_timeout=%s epoch=%s",
		vehicle.Profile.Name, vehicle.Decoder.Class(), vehicle.Profile.MADS.MadsEnabled,
		vehicle.Profile.MADS.DisengageLatOnBrake, len(vehicle.Steering), lag, epoch)
}

// Reload re-reads the profile and activates it. A profile that fails to
// load leaves the current one in place.
func (r *Runner) Reload() error {
	vehicle, err := LoadVehicle(r.cfg.ProfilePath)
	if err != nil {
		r.log.Error("Profile reload failed, keeping current profile: %v", err)
		return err
	}
	epoch := r.nextEpoch()
	r.mon.Activate(vehicle.Decoder, vehicle.Profile.MADS)
	r.install(vehicle, epoch)
	return nil
}

func (r *Runner) activeVehicle() (*Vehicle, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vehicle, r.lagTimeout
}

func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Starting gate: vehicle=%s adas=%s actuator=%s profile=%s",
		r.cfg.VehicleIface, r.cfg.AdasIface, r.cfg.ActuatorIface, r.cfg.ProfilePath)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.vehicleLoop(ctx) })
	g.Go(func() error { return r.adasLoop(ctx) })
	g.Go(func() error { return r.watchdog(ctx) })

	if r.cfg.Watch {
		vehicle, _ := r.activeVehicle()
		w := NewProfileWatcher([]string{r.cfg.ProfilePath, vehicle.Profile.CANMap},
			func() { _ = r.Reload() },
			func(err error) { r.log.Warn("Profile watcher: %v", err) })
		g.Go(func() error { return w.Run(ctx) })
	}
	if r.cfg.MetricsAddr != "" {
		g.Go(func() error { return r.metrics.Serve(ctx, r.cfg.MetricsAddr) })
	}

	err := g.Wait()
	snap := r.mon.Snapshot()
	r.log.Info("Gate stopped: lat_active=%v reason=%s", snap.LatActive, snap.DisengageReason)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// vehicleLoop feeds every vehicle bus frame to the admission monitor.
func (r *Runner) vehicleLoop(ctx context.Context) error {
	r.log.Debug("Vehicle RX loop started")
	defer r.log.Debug("Vehicle RX loop stopped")

	for {
		frame, err := r.vehicleRx.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("vehicle bus closed: %w", err)
			}
			r.log.Error("Vehicle RX error: %v", err)
			continue
		}
		events := r.mon.HandleFrame(frame)
		r.metrics.VehicleFrames.Inc()
		if events != 0 {
			r.log.Trace("Vehicle RX id=0x%X len=%d data=% X events=%06b",
				frame.ID, frame.Length, frame.Data[:frame.Length], events)
		}
	}
}

// adasLoop forwards ADAS frames to the actuator bus. Steering commands are
// checked against lat_active immediately before transmission.
func (r *Runner) adasLoop(ctx context.Context) error {
	r.log.Debug("ADAS RX loop started")
	defer r.log.Debug("ADAS RX loop stopped")

	for {
		frame, err := r.adasRx.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("adas bus closed: %w", err)
			}
			r.log.Error("ADAS RX error: %v", err)
			continue
		}
		if err := r.forward(ctx, frame); err != nil {
			return err
		}
	}
}

func (r *Runner) forward(ctx context.Context, frame can.Frame) error {
	vehicle, _ := r.activeVehicle()
	if !vehicle.IsSteering(frame.ID) {
		if err := r.actuatorTx.WriteFrame(ctx, frame); err != nil {
			r.log.Critical("Transmit failed id=0x%X: %v", frame.ID, err)
			return err
		}
		r.metrics.PassthroughFrame.Inc()
		return nil
	}

	r.lastSteer.Store(r.now().UnixNano())
	if !r.mon.LatActive() {
		r.metrics.SteeringFrames.WithLabelValues("blocked").Inc()
		r.log.Trace("Blocked steering id=0x%X data=% X", frame.ID, frame.Data[:frame.Length])
		return nil
	}
	if err := r.actuatorTx.WriteFrame(ctx, frame); err != nil {
		r.log.Critical("Transmit failed id=0x%X: %v", frame.ID, err)
		return err
	}
	r.metrics.SteeringFrames.WithLabelValues("forwarded").Inc()
	return nil
}

// watchdog disengages lateral control when steering commands stop arriving
// while lateral control is engaged.
func (r *Runner) watchdog(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.checkLag()
		}
	}
}

func (r *Runner) checkLag() {
	_, lag := r.activeVehicle()
	if lag <= 0 {
		return
	}
	age := r.now().Sub(time.Unix(0, r.lastSteer.Load()))
	if age <= lag {
		return
	}
	if r.mon.Snapshot().ControlsAllowedLat {
		r.log.Warn("No steering command for %.0f ms, disengaging lateral", float64(age)/float64(time.Millisecond))
		r.mon.ExitControls(lateral.DisengageLag)
	}
}

func (r *Runner) onTransition(tr lateral.Transition) {
	r.metrics.ObserveTransition(tr)

	r.mu.Lock()
	epoch := r.epoch
	r.mu.Unlock()

	switch {
	case tr.After.Faulted && !tr.Before.Faulted:
		_, why := r.mon.Faulted()
		r.log.Critical("Admission monitor faulted, steering blocked: %s epoch=%s", why, epoch)
	case tr.Before.LatActive != tr.After.LatActive:
		r.log.Info("lat_active=%v controls_allowed=%v controls_allowed_lat=%v reason=%s cause=%s epoch=%s",
			tr.After.LatActive, tr.After.ControlsAllowed, tr.After.ControlsAllowedLat,
			tr.After.DisengageReason, describeCause(tr), epoch)
	default:
		r.log.Debug("controls_allowed_lat=%v reason=%s cause=%s epoch=%s",
			tr.After.ControlsAllowedLat, tr.After.DisengageReason, describeCause(tr), epoch)
	}
}

func describeCause(tr lateral.Transition) string {
	if tr.Cause == "frame" {
		return fmt.Sprintf("frame 0x%X", tr.FrameID)
	}
	return tr.Cause
}
