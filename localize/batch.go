package localize

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// ScoredPose is one hypothesis with its likelihood for the current reading
type ScoredPose struct {
	Pose       Pose
	Likelihood Likelihood
	Predicted  float64 // predicted range, inches
	Wall       Wall    // wall the predicted beam hits
}

// ScoreAll scores every pose against the model's cached reading. The caller
// refreshes the model first. Poses are split into contiguous chunks scored
// on up to workers goroutines (workers <= 0 means GOMAXPROCS); results keep
// the input order.
func ScoreAll(ctx context.Context, m *DistanceModel, poses []Pose, workers int) ([]ScoredPose, error) {
	if _, ok := m.Reading(); !ok {
		return nil, ErrNotRefreshed
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(poses) {
		workers = len(poses)
	}

	out := make([]ScoredPose, len(poses))
	if len(poses) == 0 {
		return out, nil
	}

	chunk := (len(poses) + workers - 1) / workers
	g, ctx := errgroup.WithContext(ctx)

	for start := 0; start < len(poses); start += chunk {
		end := min(start+chunk, len(poses))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if (i-start)%256 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				l, err := m.Score(poses[i])
				if err != nil {
					return err
				}
				predicted, wall := m.Predict(poses[i])
				out[i] = ScoredPose{Pose: poses[i], Likelihood: l, Predicted: predicted, Wall: wall}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Combine merges several sensors' scores over the same pose list by
// multiplying their informative likelihoods. A pose no sensor informs stays
// NoInformation. Predicted and Wall are taken from the first sensor.
func Combine(cycles ...[]ScoredPose) ([]ScoredPose, error) {
	if len(cycles) == 0 {
		return nil, nil
	}

	n := len(cycles[0])
	for _, c := range cycles[1:] {
		if len(c) != n {
			return nil, fmt.Errorf("cannot combine %d scored poses with %d", n, len(c))
		}
	}

	out := make([]ScoredPose, n)
	for i := 0; i < n; i++ {
		first := cycles[0][i]
		out[i] = ScoredPose{Pose: first.Pose, Predicted: first.Predicted, Wall: first.Wall}

		weight, informed := 1.0, false
		for _, c := range cycles {
			if v, ok := c[i].Likelihood.Value(); ok {
				weight *= v
				informed = true
			}
		}
		if informed {
			out[i].Likelihood = Informative(weight)
		}
	}
	return out, nil
}

// CycleSummary describes one scored cycle of one sensor
type CycleSummary struct {
	SensorID       string        `json:"sensorId"`
	Reading        CachedReading `json:"reading"`
	InRange        bool          `json:"inRange"`
	Poses          int           `json:"poses"`
	Informative    int           `json:"informative"`
	BestPose       *Pose         `json:"bestPose,omitempty"`
	BestLikelihood float64       `json:"bestLikelihood"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Summarize reduces a scored cycle to counts and the most likely pose
func Summarize(sensorID string, reading CachedReading, inRange bool, scored []ScoredPose) CycleSummary {
	s := CycleSummary{
		SensorID:  sensorID,
		Reading:   reading,
		InRange:   inRange,
		Poses:     len(scored),
		Timestamp: time.Now(),
	}

	for i := range scored {
		v, ok := scored[i].Likelihood.Value()
		if !ok {
			continue
		}
		s.Informative++
		if s.BestPose == nil || v > s.BestLikelihood {
			p := scored[i].Pose
			s.BestPose = &p
			s.BestLikelihood = v
		}
	}

	return s
}

// CombinedSensorID labels the summary of every sensor's combined likelihoods
const CombinedSensorID = "combined"

// SummarizeCombined combines the scored cycles of several sensors and
// summarizes the product. The combined summary has no reading of its own;
// InRange reports whether any pose was informed.
func SummarizeCombined(cycles ...[]ScoredPose) (CycleSummary, error) {
	combined, err := Combine(cycles...)
	if err != nil {
		return CycleSummary{}, err
	}
	s := Summarize(CombinedSensorID, CachedReading{}, false, combined)
	s.InRange = s.Informative > 0
	return s, nil
}
