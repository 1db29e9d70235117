package localize

import (
	"math"

	"github.com/paulmach/orb"
)

// Wall identifies one side of the square arena
type Wall int

const (
	East Wall = iota
	North
	West
	South
	// NoWall is reported when no wall faces the sensor
	NoWall Wall = -1
)

// wallSpec describes a wall by its outward normal heading, the axis it
// bounds and whether it sits at +halfWidth or -halfWidth on that axis.
type wallSpec struct {
	wall   Wall
	normal float64
	axisX  bool
	sign   float64
}

var walls = [4]wallSpec{
	{wall: East, normal: 0, axisX: true, sign: 1},
	{wall: North, normal: math.Pi / 2, axisX: false, sign: 1},
	{wall: West, normal: math.Pi, axisX: true, sign: -1},
	{wall: South, normal: 3 * math.Pi / 2, axisX: false, sign: -1},
}

func (w Wall) String() string {
	switch w {
	case East:
		return "east"
	case North:
		return "north"
	case West:
		return "west"
	case South:
		return "south"
	default:
		return "none"
	}
}

// Normal returns the heading of the wall's outward normal
func (w Wall) Normal() float64 {
	if w < East || w > South {
		return math.NaN()
	}
	return walls[w].normal
}

// Walls returns the four walls in table order
func Walls() []Wall {
	return []Wall{East, North, West, South}
}

// Arena is a square field centred on the origin with walls at ±HalfWidth
type Arena struct {
	HalfWidth float64 `yaml:"halfWidth" json:"halfWidth"`
}

// DefaultArena returns the standard field
func DefaultArena() Arena {
	return Arena{HalfWidth: DefaultArenaHalfWidth}
}

// Bound returns the arena extent
func (a Arena) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{-a.HalfWidth, -a.HalfWidth},
		Max: orb.Point{a.HalfWidth, a.HalfWidth},
	}
}

// Contains reports whether p lies inside or on the arena walls
func (a Arena) Contains(p Point) bool {
	return a.Bound().Contains(orb.Point{p.X, p.Y})
}

// Polygon returns the arena outline as a closed ring
func (a Arena) Polygon() orb.Polygon {
	return a.Bound().ToPolygon()
}

// WallCoordinate returns the coordinate of a wall along the axis it bounds
func (a Arena) WallCoordinate(w Wall) float64 {
	b := a.Bound()
	switch w {
	case East:
		return b.Max[0]
	case North:
		return b.Max[1]
	case West:
		return b.Min[0]
	case South:
		return b.Min[1]
	}
	return math.NaN()
}

// NoWallRange is the starting value of the nearest-wall search: the arena
// diagonal, which no in-arena ray can exceed.
func (a Arena) NoWallRange() float64 {
	return 2 * math.Sqrt2 * a.HalfWidth
}

// PredictRange returns the distance along heading from origin to the nearest
// wall the ray faces, and that wall. A wall is considered only when the
// heading is strictly within π/2 of its outward normal.
func (a Arena) PredictRange(origin Point, heading float64) (float64, Wall) {
	predicted := a.NoWallRange()
	hit := NoWall

	for _, ws := range walls {
		theta := math.Abs(AngleDiff(ws.normal, heading))
		if !(theta < math.Pi/2) {
			continue
		}

		pos := origin.Y
		if ws.axisX {
			pos = origin.X
		}
		// east/north: W - p, west/south: p + W
		gap := ws.sign * (a.WallCoordinate(ws.wall) - pos)
		if d := gap / math.Cos(theta); d < predicted {
			predicted = d
			hit = ws.wall
		}
	}

	return predicted, hit
}

// BeamEnd returns where a ray of the given length from origin ends
func BeamEnd(origin Point, heading, length float64) Point {
	return TransformPoint(Point{X: length}, RotationTranslation(heading, origin.X, origin.Y))
}
