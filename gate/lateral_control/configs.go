package lateral

// Config holds the MADS operating parameters. It is replaced as a unit by
// State.Reconfigure, never field by field.
type Config struct {
	MadsEnabled         bool `yaml:"mads_enabled" json:"mads_enabled"`
	DisengageLatOnBrake bool `yaml:"disengage_lat_on_brake" json:"disengage_lat_on_brake"`
}
