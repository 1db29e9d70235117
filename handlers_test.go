package main

import (
	"context"
	"encoding/json"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kwv/wallrange/localize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, handler http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// newTestServer returns an App and its handler; cycled runs one cycle first
func newTestServer(t *testing.T, cycled bool) (*App, http.Handler) {
	t.Helper()
	app := newTestApp(t, twoSensorConfig)
	if cycled {
		_, err := app.RunCycle(context.Background())
		require.NoError(t, err)
	}
	return app, newHTTPServer(app.StateTracker, app.Sensors, app.Config)
}

func TestHealthEndpoint(t *testing.T) {
	app, handler := newTestServer(t, false)

	rec := get(t, handler, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var health struct {
		Status    string `json:"status"`
		HasCycles bool   `json:"hasCycles"`
		Cycles    uint64 `json:"cycles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.HasCycles)

	_, err := app.RunCycle(context.Background())
	require.NoError(t, err)

	rec = get(t, handler, "/health")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.True(t, health.HasCycles)
	assert.Equal(t, uint64(1), health.Cycles)
}

func TestSensorsEndpoint(t *testing.T) {
	_, handler := newTestServer(t, true)

	rec := get(t, handler, "/api/sensors")
	require.Equal(t, http.StatusOK, rec.Code)

	var sensors []sensorStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sensors))
	require.Len(t, sensors, 2)

	assert.Equal(t, "front", sensors[0].ID)
	assert.Equal(t, localize.SourceStatic, sensors[0].Source)
	assert.True(t, sensors[0].Refreshed)
	assert.True(t, sensors[0].InRange)
	require.NotNil(t, sensors[0].Reading)
	assert.InDelta(t, 30.0, sensors[0].Reading.Distance, 1e-9)
	assert.Nil(t, sensors[0].LastUpdate, "static sensors have no sample time")

	assert.Equal(t, "left", sensors[1].ID)
	assert.False(t, sensors[1].InRange)
}

func TestScoreEndpoint(t *testing.T) {
	t.Run("before any refresh", func(t *testing.T) {
		_, handler := newTestServer(t, false)
		rec := get(t, handler, "/api/score?x=0&y=0&theta=0")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("bad queries", func(t *testing.T) {
		_, handler := newTestServer(t, true)
		for _, url := range []string{
			"/api/score",
			"/api/score?x=abc",
			"/api/score?x=1&theta=north",
			"/api/score?x=NaN&y=0&theta=0",
			"/api/score?x=0&y=0&theta=%2BInf",
		} {
			rec := get(t, handler, url)
			assert.Equal(t, http.StatusBadRequest, rec.Code, url)
		}
	})

	t.Run("scores every sensor", func(t *testing.T) {
		_, handler := newTestServer(t, true)

		// front sensor at x=4 facing East sees the wall 30in away
		rec := get(t, handler, "/api/score?x=38&y=0&theta=0")
		require.Equal(t, http.StatusOK, rec.Code)

		var result struct {
			Pose        localize.Pose `json:"pose"`
			Sensors     []poseScore   `json:"sensors"`
			Informative bool          `json:"informative"`
			Likelihood  float64       `json:"likelihood"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 38.0, result.Pose.X)
		require.Len(t, result.Sensors, 2)

		front := result.Sensors[0]
		assert.Equal(t, "front", front.SensorID)
		assert.InDelta(t, 30.0, front.Predicted, 1e-9)
		assert.Equal(t, localize.East.String(), front.Wall)
		assert.True(t, front.Informative)

		left := result.Sensors[1]
		assert.False(t, left.Informative)
		assert.Equal(t, 0.0, left.Likelihood)

		assert.True(t, result.Informative)
		assert.InDelta(t, front.Likelihood, result.Likelihood, 1e-15, "only front informs the product")
	})
}

func TestCycleEndpoint(t *testing.T) {
	app, handler := newTestServer(t, false)

	rec := get(t, handler, "/api/cycle")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	_, err := app.RunCycle(context.Background())
	require.NoError(t, err)

	rec = get(t, handler, "/api/cycle")
	require.Equal(t, http.StatusOK, rec.Code)

	var cycle struct {
		Cycle   uint64                  `json:"cycle"`
		Sensors []localize.CycleSummary `json:"sensors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cycle))
	assert.Equal(t, uint64(1), cycle.Cycle)
	require.Len(t, cycle.Sensors, 2)
	assert.Equal(t, "front", cycle.Sensors[0].SensorID)
	assert.Equal(t, "left", cycle.Sensors[1].SensorID)
}

func TestArenaEndpoints(t *testing.T) {
	_, handler := newTestServer(t, true)

	tests := []struct {
		url         string
		contentType string
		check       func(t *testing.T, body string)
	}{
		{
			url:         "/arena.geojson",
			contentType: "application/geo+json",
			check: func(t *testing.T, body string) {
				assert.Contains(t, body, `"FeatureCollection"`)
				assert.Contains(t, body, `"observed"`)
			},
		},
		{
			url:         "/arena.geojson?x=10&y=-5&theta=1.5",
			contentType: "application/geo+json",
			check: func(t *testing.T, body string) {
				assert.Contains(t, body, "[10,-5]")
			},
		},
		{
			url:         "/arena.svg",
			contentType: "image/svg+xml",
			check: func(t *testing.T, body string) {
				assert.Contains(t, body, "<svg")
			},
		},
		{
			url:         "/arena.png",
			contentType: "image/png",
			check: func(t *testing.T, body string) {
				assert.True(t, strings.HasPrefix(body, "\x89PNG"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			rec := get(t, handler, tt.url)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
			tt.check(t, rec.Body.String())
		})
	}

	rec := get(t, handler, "/arena.svg?x=wide")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, handler, "/arena.png?theta=NaN")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArenaEndpoints_BeforeCycle(t *testing.T) {
	_, handler := newTestServer(t, false)

	rec := get(t, handler, "/arena.geojson")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"arena"`)
}

func TestRootEndpoint(t *testing.T) {
	_, handler := newTestServer(t, false)

	rec := get(t, handler, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `src="/arena.svg"`)

	rec = get(t, handler, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPoseFromQuery(t *testing.T) {
	tests := []struct {
		query   string
		want    localize.Pose
		ok      bool
		wantErr bool
	}{
		{query: "", ok: false},
		{query: "x=1&y=2&theta=0.5", want: localize.Pose{X: 1, Y: 2, Theta: 0.5}, ok: true},
		{query: "y=-3", want: localize.Pose{Y: -3}, ok: true},
		{query: "theta=pi", wantErr: true},
		{query: "x=NaN&y=0&theta=0", wantErr: true},
		{query: "x=0&y=Inf&theta=0", wantErr: true},
		{query: "theta=-Infinity", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/score?"+tt.query, nil)
			pose, ok, err := poseFromQuery(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, pose)
		})
	}
}

func TestBuildScene_BeamPose(t *testing.T) {
	app, _ := newTestServer(t, false)

	sc, err := buildScene(app.StateTracker, app.Sensors, app.Config, nil)
	require.NoError(t, err)
	assert.Equal(t, localize.Pose{}, *sc.pose, "no cycles draws from the centre")
	assert.Empty(t, sc.poses)
	assert.Len(t, sc.beams, 2)

	_, err = app.RunCycle(context.Background())
	require.NoError(t, err)

	sc, err = buildScene(app.StateTracker, app.Sensors, app.Config, nil)
	require.NoError(t, err)
	state, ok := app.StateTracker.Get("front")
	require.True(t, ok)
	summary := state.Summary
	require.NotNil(t, summary.BestPose)
	assert.Equal(t, *summary.BestPose, *sc.pose, "left informs nothing so front's best pose wins")
	assert.Len(t, sc.poses, len(app.Poses))

	given := localize.Pose{X: 1, Y: 1}
	sc, err = buildScene(app.StateTracker, app.Sensors, app.Config, &given)
	require.NoError(t, err)
	assert.Equal(t, given, *sc.pose)
}

func TestSensorColors(t *testing.T) {
	config := &localize.Config{
		Sensors: []localize.SensorConfig{
			{ID: "a", Color: "#FF0000"},
			{ID: "b"},
			{ID: "c"},
		},
	}

	colors := sensorColors(config)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, colors["a"])
	assert.Equal(t, defaultPalette[1], colors["b"])
	assert.Equal(t, defaultPalette[2], colors["c"])

	assert.Empty(t, sensorColors(nil))
}
