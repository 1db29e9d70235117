package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/kwv/wallrange/localize"
)

// defaultPalette colours sensors that have no color in the config
var defaultPalette = []color.RGBA{
	{R: 220, G: 40, B: 40, A: 255},
	{R: 30, G: 144, B: 255, A: 255},
	{R: 46, G: 160, B: 67, A: 255},
	{R: 230, G: 140, B: 0, A: 255},
}

// sensorStatus is the /api/sensors view of one sensor
type sensorStatus struct {
	ID         string                  `json:"id"`
	Source     string                  `json:"source"`
	Mount      localize.SensorMount    `json:"mount"`
	Refreshed  bool                    `json:"refreshed"`
	InRange    bool                    `json:"inRange"`
	Reading    *localize.CachedReading `json:"reading,omitempty"`
	LastUpdate *time.Time              `json:"lastUpdate,omitempty"`
}

// poseScore is the /api/score result for one sensor
type poseScore struct {
	SensorID    string  `json:"sensorId"`
	Predicted   float64 `json:"predicted"`
	Wall        string  `json:"wall"`
	Informative bool    `json:"informative"`
	Likelihood  float64 `json:"likelihood"`
}

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *localize.StateTracker, sensors *localize.SensorSet, config *localize.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			HasCycles bool      `json:"hasCycles"`
			Cycles    uint64    `json:"cycles"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			HasCycles: stateTracker.HasCycles(),
			Cycles:    stateTracker.CycleCount(),
		}
		writeJSON(w, status)
	})

	// Sensor mounts and cached readings
	mux.HandleFunc("/api/sensors", func(w http.ResponseWriter, r *http.Request) {
		out := make([]sensorStatus, 0, len(sensors.Sensors()))
		for _, s := range sensors.Sensors() {
			st := sensorStatus{
				ID:      s.Config.ID,
				Source:  s.Config.Source,
				Mount:   s.Model.Mount(),
				InRange: s.Model.InRange(),
			}
			if reading, ok := s.Model.Reading(); ok {
				st.Refreshed = true
				st.Reading = &reading
			}
			if t, ok := s.LastUpdate(); ok {
				st.LastUpdate = &t
			}
			out = append(out, st)
		}
		writeJSON(w, out)
	})

	// Score a single pose against every sensor's cached reading
	mux.HandleFunc("/api/score", func(w http.ResponseWriter, r *http.Request) {
		pose, ok, err := poseFromQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !ok {
			http.Error(w, "x, y and theta query parameters are required", http.StatusBadRequest)
			return
		}

		scores := make([]poseScore, 0, len(sensors.Sensors()))
		combined, informed := 1.0, false
		for _, s := range sensors.Sensors() {
			l, err := s.Model.Score(pose)
			if errors.Is(err, localize.ErrNotRefreshed) {
				http.Error(w, "No readings yet", http.StatusServiceUnavailable)
				return
			}
			predicted, wall := s.Model.Predict(pose)
			v, informative := l.Value()
			scores = append(scores, poseScore{
				SensorID:    s.Config.ID,
				Predicted:   predicted,
				Wall:        wall.String(),
				Informative: informative,
				Likelihood:  v,
			})
			if informative {
				combined *= v
				informed = true
			}
		}

		result := struct {
			Pose        localize.Pose `json:"pose"`
			Sensors     []poseScore   `json:"sensors"`
			Informative bool          `json:"informative"`
			Likelihood  float64       `json:"likelihood"`
		}{
			Pose:        pose,
			Sensors:     scores,
			Informative: informed,
		}
		if informed {
			result.Likelihood = combined
		}
		writeJSON(w, result)
	})

	// Latest cycle summaries
	mux.HandleFunc("/api/cycle", func(w http.ResponseWriter, r *http.Request) {
		if !stateTracker.HasCycles() {
			http.Error(w, "No cycles completed", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, struct {
			Cycle   uint64                  `json:"cycle"`
			Sensors []localize.CycleSummary `json:"sensors"`
		}{
			Cycle:   stateTracker.CycleCount(),
			Sensors: stateTracker.Summaries(),
		})
	})

	// Arena renders; ?x=&y=&theta= picks the pose the beams are drawn from
	for path, format := range map[string]string{
		"/arena.geojson": "geojson",
		"/arena.svg":     "svg",
		"/arena.png":     "png",
	} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			pose, ok, err := poseFromQuery(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			var posePtr *localize.Pose
			if ok {
				posePtr = &pose
			}

			scene, err := buildScene(stateTracker, sensors, config, posePtr)
			if err != nil {
				log.Printf("Error building scene for %s: %v", path, err)
				http.Error(w, "Failed to build scene", http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", contentTypes[format])
			w.Header().Set("Cache-Control", "no-cache")
			if err := scene.write(w, format); err != nil {
				log.Printf("Error encoding %s: %v", path, err)
			}
		})
	}

	// Default route serves an HTML page embedding the SVG
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = fmt.Fprint(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>wallrange</title>
<style>
*{margin:0;padding:0;box-sizing:border-box}
html,body{width:100%;height:100%;overflow:hidden;background:#fff}
img{display:block;width:100vw;height:100vh;object-fit:contain}
</style>
</head>
<body>
<img src="/arena.svg" alt="Arena">
</body>
</html>`)
	})

	// Wrap mux with logging middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		mux.ServeHTTP(w, r)
	})
}

var contentTypes = map[string]string{
	"geojson": "application/geo+json",
	"svg":     "image/svg+xml",
	"png":     "image/png",
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// poseFromQuery reads x, y and theta (radians). ok is false when none of
// them are given. Non-finite values are rejected.
func poseFromQuery(r *http.Request) (localize.Pose, bool, error) {
	q := r.URL.Query()
	if q.Get("x") == "" && q.Get("y") == "" && q.Get("theta") == "" {
		return localize.Pose{}, false, nil
	}

	var vals [3]float64
	for i, key := range []string{"x", "y", "theta"} {
		raw := q.Get(key)
		if raw == "" {
			raw = "0"
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return localize.Pose{}, false, fmt.Errorf("invalid %s: %q", key, raw)
		}
		vals[i] = v
	}
	return localize.Pose{X: vals[0], Y: vals[1], Theta: vals[2]}, true, nil
}

// scene is everything drawn for one render: the arena, the combined
// hypothesis weights of the latest cycle and each sensor's beam
type scene struct {
	arena  localize.Arena
	pose   *localize.Pose
	poses  []localize.ScoredPose
	beams  []localize.Beam
	colors map[string]color.RGBA
}

// buildScene gathers the latest cycle of every sensor. Beams are drawn from
// pose, or from the most likely combined pose when pose is nil, or from the
// arena centre when no pose is informative.
func buildScene(stateTracker *localize.StateTracker, sensors *localize.SensorSet, config *localize.Config, pose *localize.Pose) (*scene, error) {
	var cycles [][]localize.ScoredPose
	for _, s := range sensors.Sensors() {
		if state, ok := stateTracker.Get(s.Config.ID); ok {
			cycles = append(cycles, state.Scored)
		}
	}

	combined, err := localize.Combine(cycles...)
	if err != nil {
		return nil, err
	}

	if pose == nil {
		best := -1.0
		for i := range combined {
			if v, ok := combined[i].Likelihood.Value(); ok && v > best {
				best = v
				p := combined[i].Pose
				pose = &p
			}
		}
	}
	if pose == nil {
		pose = &localize.Pose{}
	}

	sc := &scene{
		arena:  config.Arena,
		pose:   pose,
		poses:  combined,
		colors: sensorColors(config),
	}
	for _, s := range sensors.Sensors() {
		sc.beams = append(sc.beams, localize.BeamFor(s.Model, *pose))
	}
	return sc, nil
}

func (sc *scene) write(w io.Writer, format string) error {
	switch format {
	case "geojson":
		fc := localize.ArenaGeoJSON(sc.arena, sc.pose, sc.beams)
		data, err := fc.MarshalJSON()
		if err != nil {
			return fmt.Errorf("marshaling GeoJSON: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "svg", "png":
		renderer := localize.NewRenderer(sc.arena)
		renderer.Poses = sc.poses
		renderer.Beams = sc.beams
		for id, c := range sc.colors {
			renderer.Colors[id] = c
		}
		if format == "png" {
			return renderer.RenderToPNG(w)
		}
		return renderer.RenderToSVG(w)
	}
	return fmt.Errorf("unsupported render format %q (expected svg, png or geojson)", format)
}

// sensorColors applies sensor colors from config, falling back to the
// default palette in config order
func sensorColors(config *localize.Config) map[string]color.RGBA {
	colors := make(map[string]color.RGBA)
	if config == nil {
		return colors
	}

	for i, sc := range config.Sensors {
		if sc.Color != "" {
			colors[sc.ID] = localize.ParseHexColor(sc.Color)
			continue
		}
		colors[sc.ID] = defaultPalette[i%len(defaultPalette)]
	}
	return colors
}
