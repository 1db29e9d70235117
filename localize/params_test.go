package localize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams_Convert(t *testing.T) {
	p := DefaultParams()
	maxRange := MaxRangeMM * MMToInch

	tests := []struct {
		name         string
		raw          RawMeasurement
		wantDistance float64
		wantStdDev   float64
	}{
		{
			name:         "full confidence",
			raw:          RawMeasurement{DistanceMM: 254, Confidence: 64},
			wantDistance: 10,
			wantStdDev:   2,
		},
		{
			name:         "quarter confidence",
			raw:          RawMeasurement{DistanceMM: 254, Confidence: 16},
			wantDistance: 10,
			wantStdDev:   4,
		},
		{
			name:         "confidence above scale is clamped",
			raw:          RawMeasurement{DistanceMM: 254, Confidence: 200},
			wantDistance: 10,
			wantStdDev:   2,
		},
		{
			name:         "zero confidence is the widest distribution",
			raw:          RawMeasurement{DistanceMM: 254, Confidence: 0},
			wantDistance: 10,
			wantStdDev:   2 / math.Sqrt(MinConfidenceRatio),
		},
		{
			name:         "zero distance floors stddev",
			raw:          RawMeasurement{DistanceMM: 0, Confidence: 64},
			wantDistance: 0,
			wantStdDev:   MinStdDev,
		},
		{
			name:         "negative distance is max range",
			raw:          RawMeasurement{DistanceMM: -3, Confidence: 64},
			wantDistance: maxRange,
			wantStdDev:   0.2 * maxRange,
		},
		{
			name:         "NaN distance is max range",
			raw:          RawMeasurement{DistanceMM: math.NaN(), Confidence: 64},
			wantDistance: maxRange,
			wantStdDev:   0.2 * maxRange,
		},
		{
			name:         "NaN confidence treated as zero",
			raw:          RawMeasurement{DistanceMM: 254, Confidence: math.NaN()},
			wantDistance: 10,
			wantStdDev:   2 / math.Sqrt(MinConfidenceRatio),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Convert(tt.raw)
			assert.InDelta(t, tt.wantDistance, got.Distance, 1e-9)
			assert.InDelta(t, tt.wantStdDev, got.StdDev, 1e-9)
		})
	}
}

func TestParams_ConvertStdDevGrowsAsConfidenceFalls(t *testing.T) {
	p := DefaultParams()
	prev := 0.0
	for _, conf := range []float64{64, 32, 16, 4, 1, 0.01, 0, -5} {
		r := p.Convert(RawMeasurement{DistanceMM: 1000, Confidence: conf})
		assert.False(t, math.IsInf(r.StdDev, 0), "confidence %v", conf)
		assert.GreaterOrEqual(t, r.StdDev, prev, "confidence %v", conf)
		prev = r.StdDev
	}
	assert.Greater(t, prev, p.Convert(RawMeasurement{DistanceMM: 1000, Confidence: 1}).StdDev)
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	bad := []Params{
		{MMToInch: 0, ConfidenceMax: 64, NoiseCoefficient: 0.2, MaxRangeMM: 9999, MinStdDev: 0.01},
		{MMToInch: math.Inf(1), ConfidenceMax: 64, NoiseCoefficient: 0.2, MaxRangeMM: 9999, MinStdDev: 0.01},
		{MMToInch: MMToInch, ConfidenceMax: -1, NoiseCoefficient: 0.2, MaxRangeMM: 9999, MinStdDev: 0.01},
		{MMToInch: MMToInch, ConfidenceMax: 64, NoiseCoefficient: math.NaN(), MaxRangeMM: 9999, MinStdDev: 0.01},
		{MMToInch: MMToInch, ConfidenceMax: 64, NoiseCoefficient: 0.2, MaxRangeMM: -1, MinStdDev: 0.01},
		{MMToInch: MMToInch, ConfidenceMax: 64, NoiseCoefficient: 0.2, MaxRangeMM: 9999, MinStdDev: 0},
	}
	for i, p := range bad {
		assert.Error(t, p.Validate(), "case %d", i)
	}
}

func TestParams_MaxRange(t *testing.T) {
	assert.InDelta(t, 9999/25.4, DefaultParams().MaxRange(), 1e-9)

	p := DefaultParams()
	p.MaxRangeMM = 2000
	assert.InDelta(t, 2000/25.4, p.MaxRange(), 1e-9)
}
