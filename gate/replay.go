package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"go.einride.tech/can"

	lateral "mads-gate/gate/lateral_control"
)

// ReplayStats summarises one replay.
type ReplayStats struct {
	Lines           int
	Frames          int
	DecodedFrames   int
	Transitions     int
	LatActiveFrames int
	Skipped         int
}

// Replay feeds a candump log through the admission monitor of vehicle and
// writes one line to out per lat_active transition. Lines look like
// "(1700000000.000000) can0 120#01" or bare "120#01"; anything that does not
// parse as a frame is counted as skipped.
func Replay(in io.Reader, vehicle *Vehicle, out io.Writer) (ReplayStats, error) {
	var stats ReplayStats
	mon := lateral.NewMonitor(vehicle.Decoder, vehicle.Profile.MADS)

	var stamp string
	mon.SetObserver(func(tr lateral.Transition) {
		if tr.Before.LatActive == tr.After.LatActive {
			return
		}
		stats.Transitions++
		fmt.Fprintf(out, "%s lat_active=%v controls_allowed_lat=%v requested=%v reason=%s cause=%s\n",
			stamp, tr.After.LatActive, tr.After.ControlsAllowedLat, tr.After.ControlsRequestedLat,
			tr.After.DisengageReason, describeCause(tr))
	})

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		stats.Lines++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		stamp = "-"
		if len(fields) > 1 {
			stamp = strings.Trim(fields[0], "()")
		}

		var f can.Frame
		if err := f.UnmarshalString(fields[len(fields)-1]); err != nil {
			stats.Skipped++
			continue
		}
		stats.Frames++
		if mon.HandleFrame(f) != 0 {
			stats.DecodedFrames++
		}
		if mon.LatActive() {
			stats.LatActiveFrames++
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read candump: %w", err)
	}
	return stats, nil
}
