package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	lateral "mads-gate/gate/lateral_control"
	"mads-gate/utils"
)

// Profile describes one vehicle: where its CAN map lives, how each MADS
// input is decoded, and which frames carry steering commands.
type Profile struct {
	Name           string           `yaml:"name"`
	CANMap         string           `yaml:"can_map"`
	MADS           lateral.Config   `yaml:"mads"`
	Signals        lateral.Bindings `yaml:"signals"`
	SteeringFrames []string         `yaml:"steering_frames"`
	LagTimeoutMS   int              `yaml:"lag_timeout_ms"`
}

// DefaultProfile holds the values used for anything a profile file leaves
// out. MADS itself stays off unless the profile turns it on.
func DefaultProfile() *Profile {
	return &Profile{
		MADS: lateral.Config{
			MadsEnabled:         false,
			DisengageLatOnBrake: true,
		},
		LagTimeoutMS: 500,
	}
}

// LoadProfile reads a profile YAML file. A relative can_map path is
// resolved against the profile's directory.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	p := DefaultProfile()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if p.CANMap != "" && !filepath.IsAbs(p.CANMap) {
		p.CANMap = filepath.Join(filepath.Dir(path), p.CANMap)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.CANMap == "" {
		return fmt.Errorf("can_map is required")
	}
	if len(p.SteeringFrames) == 0 {
		return fmt.Errorf("steering_frames must list at least one frame")
	}
	if p.LagTimeoutMS < 0 {
		return fmt.Errorf("lag_timeout_ms must not be negative")
	}
	return nil
}

func (p *Profile) LagTimeout() time.Duration {
	return time.Duration(p.LagTimeoutMS) * time.Millisecond
}

// Vehicle is a profile resolved against its CAN map.
type Vehicle struct {
	Profile  *Profile
	CANMap   *utils.CANMap
	Decoder  lateral.Decoder
	Steering map[uint32]string
}

// LoadVehicle loads the profile at path and everything it references.
func LoadVehicle(path string) (*Vehicle, error) {
	p, err := LoadProfile(path)
	if err != nil {
		return nil, err
	}
	cmap, err := utils.LoadCANMap(p.CANMap)
	if err != nil {
		return nil, fmt.Errorf("load can map: %w", err)
	}
	return BuildVehicle(p, cmap)
}

// BuildVehicle binds p to cmap.
func BuildVehicle(p *Profile, cmap *utils.CANMap) (*Vehicle, error) {
	dec, err := lateral.NewSignalDecoder(p.Name, cmap, p.Signals)
	if err != nil {
		return nil, fmt.Errorf("profile %s: signals: %w", p.Name, err)
	}

	steering := make(map[uint32]string, len(p.SteeringFrames))
	for _, name := range p.SteeringFrames {
		fd, err := cmap.FrameByName(name)
		if err != nil {
			return nil, fmt.Errorf("profile %s: steering frame: %w", p.Name, err)
		}
		steering[fd.ID] = fd.Name
	}

	return &Vehicle{
		Profile:  p,
		CANMap:   cmap,
		Decoder:  dec,
		Steering: steering,
	}, nil
}

// IsSteering reports whether id carries steering commands.
func (v *Vehicle) IsSteering(id uint32) bool {
	_, ok := v.Steering[id]
	return ok
}
