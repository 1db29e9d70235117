package localize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// serialOpener opens serial sensors; replaced in tests
var serialOpener = OpenSerialDriver

// Sensor is a configured range sensor and the model scoring its readings
type Sensor struct {
	Config SensorConfig
	Model  *DistanceModel

	serial *SerialDriver
	mqtt   *MQTTDriver
	static *StaticDriver
}

// Static returns the driver of a static sensor, or nil
func (s *Sensor) Static() *StaticDriver {
	return s.static
}

// LastUpdate returns when the sensor's driver last received a sample. Static
// sensors report false.
func (s *Sensor) LastUpdate() (time.Time, bool) {
	switch {
	case s.serial != nil:
		t := s.serial.LastUpdate()
		return t, !t.IsZero()
	case s.mqtt != nil:
		t := s.mqtt.LastUpdate()
		return t, !t.IsZero()
	}
	return time.Time{}, false
}

// SensorSet owns every configured sensor
type SensorSet struct {
	sensors []*Sensor
	byID    map[string]*Sensor
	wg      sync.WaitGroup
}

// BuildSensors opens the driver of every configured sensor and wraps each in
// a DistanceModel sharing the config's arena and params
func BuildSensors(cfg *Config) (*SensorSet, error) {
	set := &SensorSet{byID: make(map[string]*Sensor)}

	for _, sc := range cfg.Sensors {
		s := &Sensor{Config: sc}

		var driver Driver
		switch sc.Source {
		case SourceSerial:
			d, err := serialOpener(sc.Port, sc.Serial, sc.MaxAge)
			if err != nil {
				set.Close()
				return nil, fmt.Errorf("sensor %s: %w", sc.ID, err)
			}
			s.serial = d
			driver = d
		case SourceMQTT:
			s.mqtt = NewMQTTDriver(sc.ID, sc.Topic, sc.MaxAge)
			driver = s.mqtt
		default:
			s.static = NewStaticDriver(sc.Static.Distance, sc.Static.Confidence)
			driver = s.static
		}

		model, err := NewDistanceModel(driver, sc.SensorMount(),
			WithName(sc.ID),
			WithArena(cfg.Arena),
			WithParams(cfg.Params),
		)
		if err != nil {
			if s.serial != nil {
				s.serial.Close()
			}
			set.Close()
			return nil, err
		}
		s.Model = model

		set.sensors = append(set.sensors, s)
		set.byID[sc.ID] = s
	}

	return set, nil
}

// Start runs the serial monitors until ctx is cancelled
func (s *SensorSet) Start(ctx context.Context) {
	for _, sensor := range s.sensors {
		if sensor.serial == nil {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			err := sensor.serial.Monitor(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Serial sensor %s stopped: %v", sensor.Config.ID, err)
			}
		}()
	}
}

// Sensors returns the sensors in config order
func (s *SensorSet) Sensors() []*Sensor {
	return s.sensors
}

// Get returns a sensor by ID
func (s *SensorSet) Get(id string) (*Sensor, bool) {
	sensor, ok := s.byID[id]
	return sensor, ok
}

// MQTTDrivers returns the drivers fed by MQTT subscriptions, keyed by sensor ID
func (s *SensorSet) MQTTDrivers() map[string]*MQTTDriver {
	drivers := make(map[string]*MQTTDriver)
	for _, sensor := range s.sensors {
		if sensor.mqtt != nil {
			drivers[sensor.Config.ID] = sensor.mqtt
		}
	}
	return drivers
}

// RefreshAll refreshes every model once
func (s *SensorSet) RefreshAll() {
	for _, sensor := range s.sensors {
		sensor.Model.Refresh()
	}
}

// Close closes serial ports and waits for their monitors to exit
func (s *SensorSet) Close() error {
	var errs []error
	for _, sensor := range s.sensors {
		if sensor.serial != nil {
			if err := sensor.serial.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing sensor %s: %w", sensor.Config.ID, err))
			}
		}
	}
	s.wg.Wait()
	return errors.Join(errs...)
}
