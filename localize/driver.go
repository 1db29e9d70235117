package localize

import (
	"math"
	"sync"
	"time"
)

// Driver is a range sensor as seen by a DistanceModel. Both calls are
// synchronous and always succeed; a driver that cannot produce a sample
// reports +Inf with zero confidence, which converts to max range.
type Driver interface {
	// Distance returns the latest range in millimetres
	Distance() float64
	// Confidence returns the latest confidence in [0, ConfidenceMax]
	Confidence() float64
}

// Sampler is implemented by drivers that can return distance and confidence
// from the same sample in one call.
type Sampler interface {
	Sample() RawMeasurement
}

// Sample reads both values from a driver
func Sample(d Driver) RawMeasurement {
	if s, ok := d.(Sampler); ok {
		return s.Sample()
	}
	return RawMeasurement{DistanceMM: d.Distance(), Confidence: d.Confidence()}
}

// StaticDriver reports a fixed sample until it is changed with Set.
type StaticDriver struct {
	mu  sync.RWMutex
	raw RawMeasurement
}

// NewStaticDriver creates a driver that reports the given sample
func NewStaticDriver(distanceMM, confidence float64) *StaticDriver {
	return &StaticDriver{raw: RawMeasurement{DistanceMM: distanceMM, Confidence: confidence}}
}

// Set replaces the reported sample
func (d *StaticDriver) Set(distanceMM, confidence float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.raw = RawMeasurement{DistanceMM: distanceMM, Confidence: confidence}
}

func (d *StaticDriver) Distance() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.raw.DistanceMM
}

func (d *StaticDriver) Confidence() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.raw.Confidence
}

// latestSample holds the most recent sample pushed by a background reader
// and applies the staleness rule shared by the serial and MQTT drivers.
type latestSample struct {
	mu     sync.RWMutex
	raw    RawMeasurement
	at     time.Time
	maxAge time.Duration
	now    func() time.Time
}

func newLatestSample(maxAge time.Duration) *latestSample {
	return &latestSample{maxAge: maxAge, now: time.Now}
}

func (l *latestSample) store(raw RawMeasurement) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.raw = raw
	l.at = l.now()
}

// load returns the latest sample, or the max-range fault sample when
// nothing has arrived or the last sample is older than maxAge
func (l *latestSample) load() RawMeasurement {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.at.IsZero() {
		return faultSample()
	}
	if l.maxAge > 0 && l.now().Sub(l.at) > l.maxAge {
		return faultSample()
	}
	return l.raw
}

func (l *latestSample) lastUpdate() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.at
}

// faultSample reads as +Inf so Params.Convert maps it to the max range of
// whichever model consumes it, including an overridden maxRangeMM
func faultSample() RawMeasurement {
	return RawMeasurement{DistanceMM: math.Inf(1), Confidence: 0}
}

func validSample(raw RawMeasurement) bool {
	return !math.IsNaN(raw.DistanceMM) && !math.IsInf(raw.DistanceMM, 0) &&
		!math.IsNaN(raw.Confidence) && !math.IsInf(raw.Confidence, 0)
}
