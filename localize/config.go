package localize

import "time"

// Sensor sources
const (
	SourceStatic = "static"
	SourceSerial = "serial"
	SourceMQTT   = "mqtt"
)

// Config represents the full configuration file
type Config struct {
	Arena   Arena          `yaml:"arena" json:"arena"`
	Params  Params         `yaml:"params,omitempty" json:"params,omitempty"`
	MQTT    MQTTConfig     `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`
	Cycle   CycleConfig    `yaml:"cycle,omitempty" json:"cycle,omitempty"`
	Sensors []SensorConfig `yaml:"sensors" json:"sensors"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"-"`
}

// CycleConfig controls the service-mode localization cycle
type CycleConfig struct {
	Interval time.Duration `yaml:"interval,omitempty" json:"interval,omitempty"` // default 100ms
	Workers  int           `yaml:"workers,omitempty" json:"workers,omitempty"`   // default GOMAXPROCS
	Poses    string        `yaml:"poses,omitempty" json:"poses,omitempty"`       // CSV of hypotheses to score
}

// MountConfig is a sensor mount as written in the config file. The heading
// is in degrees for readability.
type MountConfig struct {
	X          float64 `yaml:"x" json:"x"`
	Y          float64 `yaml:"y" json:"y"`
	HeadingDeg float64 `yaml:"heading" json:"heading"`
}

// StaticSample is a fixed reading used by static sensors
type StaticSample struct {
	Distance   float64 `yaml:"distance" json:"distance"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
}

// SensorConfig defines one range sensor
type SensorConfig struct {
	ID     string        `yaml:"id" json:"id"`
	Source string        `yaml:"source" json:"source"` // static, serial or mqtt
	Mount  MountConfig   `yaml:"mount" json:"mount"`
	Color  string        `yaml:"color,omitempty" json:"color,omitempty"`
	MaxAge time.Duration `yaml:"maxAge,omitempty" json:"maxAge,omitempty"` // serial/mqtt staleness limit

	Port   string       `yaml:"port,omitempty" json:"port,omitempty"`     // serial device path
	Serial PortOptions  `yaml:"serial,omitempty" json:"serial,omitempty"` // serial line settings
	Topic  string       `yaml:"topic,omitempty" json:"topic,omitempty"`   // mqtt sample topic
	Static StaticSample `yaml:"static,omitempty" json:"static,omitempty"`
}

// SensorMount converts the configured mount to radians
func (sc *SensorConfig) SensorMount() SensorMount {
	return SensorMount{X: sc.Mount.X, Y: sc.Mount.Y, Theta: Radians(sc.Mount.HeadingDeg)}
}

// GetSensorByID returns the sensor config for the given ID
func (c *Config) GetSensorByID(id string) *SensorConfig {
	for i := range c.Sensors {
		if c.Sensors[i].ID == id {
			return &c.Sensors[i]
		}
	}
	return nil
}

// SensorsBySource returns the sensors read from the given source
func (c *Config) SensorsBySource(source string) []SensorConfig {
	var out []SensorConfig
	for _, sc := range c.Sensors {
		if sc.Source == source {
			out = append(out, sc)
		}
	}
	return out
}

// DefaultConfig returns a single static sensor at the robot centre
func DefaultConfig() *Config {
	return &Config{
		Arena:  DefaultArena(),
		Params: DefaultParams(),
		Cycle:  CycleConfig{Interval: 100 * time.Millisecond},
		Sensors: []SensorConfig{
			{
				ID:     "front",
				Source: SourceStatic,
				Static: StaticSample{Distance: DefaultArenaHalfWidth / MMToInch, Confidence: ConfidenceMax},
			},
		},
	}
}
