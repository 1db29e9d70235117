package localize

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes YAML config data, applies defaults and validates it
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Arena.HalfWidth == 0 {
		c.Arena.HalfWidth = DefaultArenaHalfWidth
	}
	c.Params = c.Params.withDefaults()
	if c.Cycle.Interval == 0 {
		c.Cycle.Interval = 100 * time.Millisecond
	}
	for i := range c.Sensors {
		if c.Sensors[i].Source == "" {
			c.Sensors[i].Source = SourceStatic
		}
	}
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if !(c.Arena.HalfWidth > 0) {
		return fmt.Errorf("arena.halfWidth must be positive")
	}
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	if c.Cycle.Workers < 0 {
		return fmt.Errorf("cycle.workers must not be negative")
	}
	if len(c.Sensors) == 0 {
		return fmt.Errorf("at least one sensor must be defined")
	}

	seen := make(map[string]bool)
	for i, sc := range c.Sensors {
		if sc.ID == "" {
			return fmt.Errorf("sensors[%d].id is required", i)
		}
		if seen[sc.ID] {
			return fmt.Errorf("sensors[%d].id %q is duplicated", i, sc.ID)
		}
		seen[sc.ID] = true

		switch sc.Source {
		case SourceStatic:
		case SourceSerial:
			if sc.Port == "" {
				return fmt.Errorf("sensors[%d].port is required for serial sensor %s", i, sc.ID)
			}
			if _, err := sc.Serial.Normalize(); err != nil {
				return fmt.Errorf("sensors[%d].serial: %w", i, err)
			}
		case SourceMQTT:
			if sc.Topic == "" {
				return fmt.Errorf("sensors[%d].topic is required for mqtt sensor %s", i, sc.ID)
			}
		default:
			return fmt.Errorf("sensors[%d].source %q is not one of static, serial, mqtt", i, sc.Source)
		}
	}

	if len(c.SensorsBySource(SourceMQTT)) > 0 && c.MQTT.Broker == "" && os.Getenv("MQTT_BROKER") == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt sensors are configured")
	}

	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
