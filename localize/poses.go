package localize

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
)

// scoreRecord is one row of a score export
type scoreRecord struct {
	X           float64 `csv:"x"`
	Y           float64 `csv:"y"`
	Theta       float64 `csv:"theta"`
	Informative bool    `csv:"informative"`
	Likelihood  float64 `csv:"likelihood"`
	Predicted   float64 `csv:"predicted"`
	Wall        string  `csv:"wall"`
}

// LoadPoses reads pose hypotheses from CSV with an x,y,theta header.
// Theta is in radians.
func LoadPoses(r io.Reader) ([]Pose, error) {
	var poses []Pose
	if err := gocsv.Unmarshal(r, &poses); err != nil {
		return nil, fmt.Errorf("parsing poses CSV: %w", err)
	}
	return poses, nil
}

// LoadPosesFile reads pose hypotheses from a CSV file
func LoadPosesFile(path string) ([]Pose, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening poses file: %w", err)
	}
	defer f.Close()

	return LoadPoses(f)
}

// WriteScores writes scored poses as CSV. Poses without information are
// written with informative=false and likelihood 0.
func WriteScores(w io.Writer, scored []ScoredPose) error {
	records := make([]*scoreRecord, len(scored))
	for i, s := range scored {
		v, ok := s.Likelihood.Value()
		records[i] = &scoreRecord{
			X:           s.Pose.X,
			Y:           s.Pose.Y,
			Theta:       s.Pose.Theta,
			Informative: ok,
			Likelihood:  v,
			Predicted:   s.Predicted,
			Wall:        s.Wall.String(),
		}
	}

	if err := gocsv.Marshal(records, w); err != nil {
		return fmt.Errorf("writing scores CSV: %w", err)
	}
	return nil
}

// GridPoses returns a regular grid of hypotheses covering the arena, with
// `headings` evenly spaced headings per cell
func GridPoses(a Arena, step float64, headings int) []Pose {
	if step <= 0 || headings <= 0 {
		return nil
	}

	var poses []Pose
	for x := -a.HalfWidth + step/2; x < a.HalfWidth; x += step {
		for y := -a.HalfWidth + step/2; y < a.HalfWidth; y += step {
			for h := 0; h < headings; h++ {
				poses = append(poses, Pose{X: x, Y: y, Theta: twoPi * float64(h) / float64(headings)})
			}
		}
	}
	return poses
}
