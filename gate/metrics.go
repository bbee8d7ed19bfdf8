package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	lateral "mads-gate/gate/lateral_control"
)

// Metrics are registered on a private registry so several runners (tests)
// can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	VehicleFrames    prometheus.Counter
	SteeringFrames   *prometheus.CounterVec
	PassthroughFrame prometheus.Counter
	Disengagements   *prometheus.CounterVec
	LatActive        prometheus.Gauge
	Faulted          prometheus.Gauge
	Activations      prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		VehicleFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: "madsgate",
			Name:      "vehicle_frames_total",
			Help:      "Frames received from the vehicle bus and fed to the admission monitor",
		}),
		SteeringFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "madsgate",
			Name:      "steering_frames_total",
			Help:      "Steering command frames by gate decision",
		}, []string{"decision"}),
		PassthroughFrame: f.NewCounter(prometheus.CounterOpts{
			Namespace: "madsgate",
			Name:      "passthrough_frames_total",
			Help:      "Non-steering frames forwarded from the ADAS bus",
		}),
		Disengagements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "madsgate",
			Name:      "lateral_disengagements_total",
			Help:      "Lateral disengagements by reason",
		}, []string{"reason"}),
		LatActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "madsgate",
			Name:      "lat_active",
			Help:      "1 while steering commands may be forwarded",
		}),
		Faulted: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "madsgate",
			Name:      "monitor_faulted",
			Help:      "1 after the admission monitor latched a fault",
		}),
		Activations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "madsgate",
			Name:      "profile_activations_total",
			Help:      "Vehicle profile activations (configuration epochs)",
		}),
	}
}

// ObserveTransition updates the gauges and counts a disengagement when
// controls_allowed_lat dropped.
func (m *Metrics) ObserveTransition(tr lateral.Transition) {
	m.LatActive.Set(boolToFloat(tr.After.LatActive))
	m.Faulted.Set(boolToFloat(tr.After.Faulted))
	if tr.Before.ControlsAllowedLat && !tr.After.ControlsAllowedLat && tr.After.DisengageReason != lateral.DisengageNone {
		m.Disengagements.WithLabelValues(tr.After.DisengageReason.String()).Inc()
	}
}

// Serve exposes the registry on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
