package localize

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Beam is a sensor ray drawn for diagnostics
type Beam struct {
	SensorID  string
	Origin    Point
	Heading   float64
	Predicted float64
	Wall      Wall
	Observed  *float64 // cached distance, nil when out of range or not refreshed
}

// BeamFor builds the predicted beam of a model at pose p
func BeamFor(m *DistanceModel, p Pose) Beam {
	origin, heading := m.SensorPose(p)
	predicted, wall := m.arena.PredictRange(origin, heading)

	b := Beam{
		SensorID:  m.Name(),
		Origin:    origin,
		Heading:   heading,
		Predicted: predicted,
		Wall:      wall,
	}
	if r, ok := m.Reading(); ok && m.InRange() {
		d := r.Distance
		b.Observed = &d
	}
	return b
}

// ArenaGeoJSON returns the arena outline, the pose and each beam as a
// FeatureCollection. Beams are LineStrings from the sensor to the predicted
// wall hit; an in-range observed reading adds a second line of the measured
// length.
func ArenaGeoJSON(a Arena, pose *Pose, beams []Beam) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	arena := geojson.NewFeature(a.Polygon())
	arena.Properties["type"] = "arena"
	arena.Properties["halfWidth"] = a.HalfWidth
	fc.Append(arena)

	if pose != nil {
		robot := geojson.NewFeature(orb.Point{pose.X, pose.Y})
		robot.Properties["type"] = "pose"
		robot.Properties["theta"] = pose.Theta
		fc.Append(robot)
	}

	for _, b := range beams {
		end := BeamEnd(b.Origin, b.Heading, b.Predicted)
		predicted := geojson.NewFeature(orb.LineString{
			{b.Origin.X, b.Origin.Y},
			{end.X, end.Y},
		})
		predicted.Properties["type"] = "predicted"
		predicted.Properties["sensor"] = b.SensorID
		predicted.Properties["range"] = b.Predicted
		predicted.Properties["wall"] = b.Wall.String()
		fc.Append(predicted)

		if b.Observed != nil {
			hit := BeamEnd(b.Origin, b.Heading, *b.Observed)
			observed := geojson.NewFeature(orb.LineString{
				{b.Origin.X, b.Origin.Y},
				{hit.X, hit.Y},
			})
			observed.Properties["type"] = "observed"
			observed.Properties["sensor"] = b.SensorID
			observed.Properties["range"] = *b.Observed
			fc.Append(observed)
		}
	}

	return fc
}
