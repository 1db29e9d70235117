package localize

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrNotRefreshed is returned by Score when no reading has been cached yet
var ErrNotRefreshed = errors.New("distance model scored before first refresh")

// DistanceModel scores pose hypotheses against the latest reading of one
// range sensor.
//
// Refresh pulls a sample from the driver once per localization cycle; Score
// only reads the cached reading and may be called concurrently from many
// goroutines. Refresh swaps the cache atomically, but callers should still
// finish scoring a cycle before refreshing for the next one so every score in
// a cycle sees the same reading.
type DistanceModel struct {
	name    string
	mount   SensorMount
	driver  Driver
	params  Params
	arena   Arena
	reading atomic.Pointer[CachedReading]
}

// Option configures a DistanceModel at construction
type Option func(*DistanceModel)

// WithParams overrides the sensor noise and unit constants
func WithParams(p Params) Option {
	return func(m *DistanceModel) {
		m.params = p.withDefaults()
	}
}

// WithArena overrides the arena geometry
func WithArena(a Arena) Option {
	return func(m *DistanceModel) {
		m.arena = a
	}
}

// WithName labels the model for logs and diagnostics
func WithName(name string) Option {
	return func(m *DistanceModel) {
		m.name = name
	}
}

// NewDistanceModel creates a model owning driver, mounted at mount
func NewDistanceModel(driver Driver, mount SensorMount, opts ...Option) (*DistanceModel, error) {
	if driver == nil {
		return nil, fmt.Errorf("distance model requires a driver")
	}

	m := &DistanceModel{
		name:   "distance",
		mount:  mount,
		driver: driver,
		params: DefaultParams(),
		arena:  DefaultArena(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.params.Validate(); err != nil {
		return nil, fmt.Errorf("sensor %s: %w", m.name, err)
	}
	if !(m.arena.HalfWidth > 0) {
		return nil, fmt.Errorf("sensor %s: arena half-width must be positive, got %v", m.name, m.arena.HalfWidth)
	}

	return m, nil
}

// Name returns the model's label
func (m *DistanceModel) Name() string {
	return m.name
}

// Mount returns the sensor placement in the robot frame
func (m *DistanceModel) Mount() SensorMount {
	return m.mount
}

// Arena returns the arena the model predicts against
func (m *DistanceModel) Arena() Arena {
	return m.arena
}

// Params returns the model's noise and unit constants
func (m *DistanceModel) Params() Params {
	return m.params
}

// Refresh pulls one sample from the driver and replaces the cached reading
func (m *DistanceModel) Refresh() {
	r := m.params.Convert(Sample(m.driver))
	m.reading.Store(&r)
}

// Reading returns the cached reading and whether Refresh has run
func (m *DistanceModel) Reading() (CachedReading, bool) {
	r := m.reading.Load()
	if r == nil {
		return CachedReading{}, false
	}
	return *r, true
}

// InRange reports whether the cached reading saw a wall. It is false before
// the first Refresh.
func (m *DistanceModel) InRange() bool {
	r := m.reading.Load()
	return r != nil && r.Distance < m.params.MaxRange()
}

// SensorPose returns the sensor's arena-frame position and heading for a
// robot pose
func (m *DistanceModel) SensorPose(p Pose) (Point, float64) {
	mount := RotationTranslation(m.mount.Theta, m.mount.X, m.mount.Y)
	sensor := MultiplyMatrices(PoseTransform(p), mount)
	return Point{X: sensor.Tx, Y: sensor.Ty}, p.Theta + m.mount.Theta
}

// Predict returns the range the sensor would read at pose p and the wall
// the beam hits
func (m *DistanceModel) Predict(p Pose) (float64, Wall) {
	origin, heading := m.SensorPose(p)
	return m.arena.PredictRange(origin, heading)
}

// Score returns the likelihood of the cached reading at pose p. A maxed-out
// reading yields NoInformation for every pose.
func (m *DistanceModel) Score(p Pose) (Likelihood, error) {
	r := m.reading.Load()
	if r == nil {
		return NoInformation(), ErrNotRefreshed
	}
	if r.Distance >= m.params.MaxRange() {
		return NoInformation(), nil
	}

	predicted, _ := m.Predict(p)
	return Informative(NormPdf(r.Distance, predicted, r.StdDev)), nil
}
