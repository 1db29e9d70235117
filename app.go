package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kwv/wallrange/localize"
)

const defaultConfigFile = "config.yaml"

// App encapsulates the application state and dependencies
type App struct {
	Config       *localize.Config
	Sensors      *localize.SensorSet
	StateTracker *localize.StateTracker
	MQTTClient   *localize.MQTTClient
	Publisher    *localize.Publisher
	Poses        []localize.Pose

	// CLI Flags (effectively dependencies)
	ConfigFile   string
	PosesFile    string
	OutputFile   string
	RenderFormat string
	PoseSpec     string
	GridStep     float64
	Headings     int
	Interval     time.Duration
	Workers      int
	HttpPort     int
	MqttMode     bool
	HttpMode     bool
}

// AppOptions carries parsed CLI flags into an App
type AppOptions struct {
	ScoreOnly    bool
	RenderOnly   bool
	ConfigFile   string
	PosesFile    string
	OutputFile   string
	RenderFormat string
	PoseSpec     string
	GridStep     float64
	Headings     int
	Interval     time.Duration
	Workers      int
	HttpPort     int
	MqttMode     bool
	HttpMode     bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		StateTracker: localize.NewStateTracker(),
		ConfigFile:   defaultConfigFile,
		RenderFormat: "svg",
		GridStep:     12,
		Headings:     8,
		HttpPort:     8080,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.PosesFile = opts.PosesFile
	a.OutputFile = opts.OutputFile
	a.RenderFormat = opts.RenderFormat
	a.PoseSpec = opts.PoseSpec
	a.GridStep = opts.GridStep
	a.Headings = opts.Headings
	a.Interval = opts.Interval
	a.Workers = opts.Workers
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// Setup loads the config, opens every sensor and loads the pose hypotheses
func (a *App) Setup() error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	sensors, err := localize.BuildSensors(a.Config)
	if err != nil {
		return fmt.Errorf("building sensors: %w", err)
	}
	a.Sensors = sensors
	for _, s := range sensors.Sensors() {
		log.Printf("Sensor %s (%s) mounted at (%.1f, %.1f) heading %.0f°",
			s.Config.ID, s.Config.Source, s.Config.Mount.X, s.Config.Mount.Y, s.Config.Mount.HeadingDeg)
	}

	if err := a.loadPoses(); err != nil {
		a.Sensors.Close()
		a.Sensors = nil
		return err
	}
	log.Printf("Scoring %d pose hypotheses per cycle", len(a.Poses))
	return nil
}

// loadConfig reads the config file. A missing default config.yaml falls back
// to the built-in single static sensor.
func (a *App) loadConfig() error {
	if a.ConfigFile == "" {
		a.Config = localize.DefaultConfig()
	} else {
		config, err := localize.LoadConfig(a.ConfigFile)
		if err != nil {
			if _, statErr := os.Stat(a.ConfigFile); a.ConfigFile == defaultConfigFile && os.IsNotExist(statErr) {
				log.Printf("Warning: %s not found, using built-in defaults", a.ConfigFile)
				config = localize.DefaultConfig()
			} else {
				return fmt.Errorf("failed to load config: %w (looked at %s)", err, a.ConfigFile)
			}
		} else {
			log.Printf("Loaded config from %s", a.ConfigFile)
		}
		a.Config = config
	}

	if a.Interval > 0 {
		a.Config.Cycle.Interval = a.Interval
	}
	if a.Workers > 0 {
		a.Config.Cycle.Workers = a.Workers
	}
	return nil
}

// loadPoses reads hypotheses from --poses, then the config's cycle.poses,
// falling back to a grid over the arena
func (a *App) loadPoses() error {
	path := a.PosesFile
	if path == "" {
		path = a.Config.Cycle.Poses
	}

	if path != "" {
		poses, err := localize.LoadPosesFile(path)
		if err != nil {
			return err
		}
		if len(poses) == 0 {
			return fmt.Errorf("no poses in %s", path)
		}
		a.Poses = poses
		return nil
	}

	a.Poses = localize.GridPoses(a.Config.Arena, a.GridStep, a.Headings)
	if len(a.Poses) == 0 {
		return fmt.Errorf("grid step %v with %d headings yields no poses", a.GridStep, a.Headings)
	}
	return nil
}

// Close releases sensors and the MQTT connection
func (a *App) Close() {
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	if a.Sensors != nil {
		if err := a.Sensors.Close(); err != nil {
			log.Printf("Error closing sensors: %v", err)
		}
	}
}

// RunCycle refreshes every sensor once, scores all hypotheses against each
// reading and records the results. Readings are published per sensor and
// the cycle once, with the combined summary, when MQTT is enabled.
func (a *App) RunCycle(ctx context.Context) ([]localize.CycleSummary, error) {
	a.Sensors.RefreshAll()

	summaries := make([]localize.CycleSummary, 0, len(a.Sensors.Sensors()))
	cycles := make([][]localize.ScoredPose, 0, len(a.Sensors.Sensors()))
	for _, s := range a.Sensors.Sensors() {
		scored, err := localize.ScoreAll(ctx, s.Model, a.Poses, a.Config.Cycle.Workers)
		if err != nil {
			return nil, fmt.Errorf("scoring sensor %s: %w", s.Config.ID, err)
		}

		reading, _ := s.Model.Reading()
		summary := localize.Summarize(s.Config.ID, reading, s.Model.InRange(), scored)
		a.StateTracker.Record(summary, scored)
		summaries = append(summaries, summary)
		cycles = append(cycles, scored)

		if a.Publisher != nil {
			if err := a.Publisher.PublishReading(s.Model); err != nil {
				log.Printf("Error publishing reading for %s: %v", s.Config.ID, err)
			}
		}
	}

	cycle := a.StateTracker.CompleteCycle()

	if a.Publisher != nil {
		combined, err := localize.SummarizeCombined(cycles...)
		if err != nil {
			return summaries, fmt.Errorf("combining cycle %d: %w", cycle, err)
		}
		if err := a.Publisher.PublishCycle(cycle, summaries, combined); err != nil {
			log.Printf("Error publishing cycle %d: %v", cycle, err)
		}
	}
	return summaries, nil
}

// warmUp starts the sensor monitors and, when any sensor is fed by a
// background reader, waits one cycle interval for first samples
func (a *App) warmUp(ctx context.Context) {
	a.Sensors.Start(ctx)

	for _, s := range a.Sensors.Sensors() {
		if s.Config.Source != localize.SourceStatic {
			log.Printf("Waiting %v for sensor samples...", a.Config.Cycle.Interval)
			select {
			case <-ctx.Done():
			case <-time.After(a.Config.Cycle.Interval):
			}
			return
		}
	}
}

// RunScore runs one cycle and writes every sensor's scores as CSV
func (a *App) RunScore() error {
	if err := a.Setup(); err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.warmUp(ctx)

	summaries, err := a.RunCycle(ctx)
	if err != nil {
		return err
	}

	output := a.OutputFile
	if output == "" {
		output = "scores.csv"
	}

	multi := len(summaries) > 1
	for _, summary := range summaries {
		state, _ := a.StateTracker.Get(summary.SensorID)
		path := output
		if multi {
			path = sensorOutputPath(output, summary.SensorID)
		}
		if err := writeScoresFile(path, state.Scored); err != nil {
			return err
		}
		printSummary(os.Stdout, summary)
		fmt.Printf("  Scores written to: %s\n", path)
	}
	return nil
}

// RunRender runs one cycle and renders the arena with every beam and the
// combined hypothesis weights
func (a *App) RunRender() error {
	format := strings.ToLower(a.RenderFormat)
	if _, ok := contentTypes[format]; !ok {
		return fmt.Errorf("unsupported render format %q (expected svg, png or geojson)", a.RenderFormat)
	}

	var pose *localize.Pose
	if a.PoseSpec != "" {
		p, err := parsePose(a.PoseSpec)
		if err != nil {
			return err
		}
		pose = &p
	}

	if err := a.Setup(); err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.warmUp(ctx)

	if _, err := a.RunCycle(ctx); err != nil {
		return err
	}

	output := a.OutputFile
	if output == "" {
		output = "arena." + format
	}

	scene, err := buildScene(a.StateTracker, a.Sensors, a.Config, pose)
	if err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	if err := scene.write(f, format); err != nil {
		return err
	}

	if scene.pose != nil {
		fmt.Printf("Beams drawn from pose %s\n", scene.pose)
	}
	fmt.Printf("Saved %s render to: %s\n", format, output)
	return nil
}

// RunService runs the localization cycle loop with MQTT and/or HTTP until
// interrupted
func (a *App) RunService() error {
	fmt.Println("Starting wallrange service...")

	if err := a.Setup(); err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Sensors.Start(ctx)

	if a.MqttMode {
		mqttClient, err := localize.InitMQTT(ctx, a.Config, a.Sensors.MQTTDrivers())
		if err != nil {
			return fmt.Errorf("failed to initialize MQTT: %w", err)
		}
		if mqttClient == nil {
			return errors.New("MQTT broker not configured in config.yaml")
		}
		a.MQTTClient = mqttClient
		a.Publisher = localize.NewPublisher(mqttClient.GetClient(), a.Config.MQTT.PublishPrefix)
		fmt.Println("MQTT publisher initialized")
	}

	var server *http.Server
	if a.HttpMode {
		server = &http.Server{
			Addr:    fmt.Sprintf("0.0.0.0:%d", a.HttpPort),
			Handler: newHTTPServer(a.StateTracker, a.Sensors, a.Config),
		}
		go func() {
			log.Printf("[HTTP] Starting server on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[HTTP] Server error: %v", err)
				stop()
			}
		}()
	}

	a.printServiceInfo()

	a.runCycles(ctx)

	fmt.Println("\nShutting down service...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[HTTP] Shutdown error: %v", err)
		}
	}
	fmt.Println("Service stopped")
	return nil
}

// runCycles runs RunCycle on every interval tick until ctx is cancelled
func (a *App) runCycles(ctx context.Context) {
	ticker := time.NewTicker(a.Config.Cycle.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Cycle error: %v", err)
			}
		}
	}
}

func (a *App) printServiceInfo() {
	fmt.Println("\nService Running")
	fmt.Println("===============")
	fmt.Printf("Cycle interval: %v, %d hypotheses\n", a.Config.Cycle.Interval, len(a.Poses))

	if a.MqttMode {
		fmt.Println("\nMQTT:")
		fmt.Println("  Subscribed topics:")
		for _, sc := range a.Config.SensorsBySource(localize.SourceMQTT) {
			fmt.Printf("    - %s (%s)\n", sc.Topic, sc.ID)
		}
		publishPrefix := a.Config.MQTT.PublishPrefix
		if publishPrefix == "" {
			publishPrefix = "wallrange"
		}
		fmt.Printf("  Readings: %s/{sensorID}/reading\n", publishPrefix)
		fmt.Printf("  Cycle summaries: %s/cycle\n", publishPrefix)
	}

	if a.HttpMode {
		fmt.Printf("\nHTTP endpoints (port %d):\n", a.HttpPort)
		fmt.Println("  GET /health           - Health check")
		fmt.Println("  GET /api/sensors      - Sensor mounts and cached readings")
		fmt.Println("  GET /api/score        - Score one pose (?x=&y=&theta=)")
		fmt.Println("  GET /api/cycle        - Latest cycle summaries")
		fmt.Println("  GET /arena.geojson    - Arena and beams as GeoJSON")
		fmt.Println("  GET /arena.svg        - Arena render")
		fmt.Println("  GET /arena.png        - Arena render with legend")
	}

	fmt.Println("\nPress Ctrl+C to stop")
}

// parsePose parses "X,Y,HEADING_DEG"
func parsePose(text string) (localize.Pose, error) {
	parts := strings.Split(text, ",")
	if len(parts) != 3 {
		return localize.Pose{}, fmt.Errorf("invalid pose %q: expected X,Y,HEADING_DEG", text)
	}

	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return localize.Pose{}, fmt.Errorf("invalid pose %q: %w", text, err)
		}
		vals[i] = v
	}
	return localize.Pose{X: vals[0], Y: vals[1], Theta: localize.Radians(vals[2])}, nil
}

// sensorOutputPath inserts the sensor ID before the file extension
func sensorOutputPath(path, sensorID string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + sensorID + ext
}

func writeScoresFile(path string, scored []localize.ScoredPose) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating scores file: %w", err)
	}
	defer f.Close()

	return localize.WriteScores(f, scored)
}

func printSummary(w io.Writer, s localize.CycleSummary) {
	fmt.Fprintf(w, "\n=== %s ===\n", s.SensorID)
	if !s.InRange {
		fmt.Fprintf(w, "  Reading: out of range (no information)\n")
	} else {
		fmt.Fprintf(w, "  Reading: %.2fin ± %.2fin\n", s.Reading.Distance, s.Reading.StdDev)
	}
	fmt.Fprintf(w, "  Poses: %d (%d informative)\n", s.Poses, s.Informative)
	if s.BestPose != nil {
		fmt.Fprintf(w, "  Best pose: %s (likelihood %.4g)\n", s.BestPose, s.BestLikelihood)
	}
}
