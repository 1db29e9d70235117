package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppRunner is the set of modes main can dispatch to
type AppRunner interface {
	ApplyOptions(opts AppOptions)
	RunScore() error
	RunRender() error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("Error: %v", err)
	}
}

// run parses args and dispatches to the selected mode
func run(args []string, out io.Writer, app AppRunner) error {
	fs := flag.NewFlagSet("wallrange", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", defaultConfigFile, "Path to configuration file")
	fs.StringVar(&opts.PosesFile, "poses", "", "CSV of x,y,theta hypotheses (default: config cycle.poses, then a grid)")
	fs.StringVar(&opts.OutputFile, "output", "", "Output file for --score (CSV) or --render (svg, png or geojson)")
	fs.BoolVar(&opts.ScoreOnly, "score", false, "Run one localization cycle, write scores as CSV and exit")
	fs.BoolVar(&opts.RenderOnly, "render", false, "Run one localization cycle, render the arena and exit")
	fs.StringVar(&opts.RenderFormat, "format", "svg", "Render format: svg, png or geojson")
	fs.StringVar(&opts.PoseSpec, "pose", "", "Pose for rendered beams: X,Y,HEADING_DEG (default: most likely pose)")
	fs.Float64Var(&opts.GridStep, "grid-step", 12.0, "Grid spacing in inches when no poses file is given")
	fs.IntVar(&opts.Headings, "headings", 8, "Headings per grid cell when no poses file is given")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode (sensor subscriptions and publishing)")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server for diagnostics")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port (default 8080)")
	fs.DurationVar(&opts.Interval, "interval", 0, "Localization cycle interval (default: config cycle.interval)")
	fs.IntVar(&opts.Workers, "workers", 0, "Scoring goroutines per sensor (default: config cycle.workers, then GOMAXPROCS)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "wallrange version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.ScoreOnly:
		return app.RunScore()
	case opts.RenderOnly:
		return app.RunRender()
	case opts.MqttMode || opts.HttpMode:
		return app.RunService()
	}

	printUsage(out)
	return nil
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Use --score to score pose hypotheses against the current readings")
	fmt.Fprintln(out, "Use --render to draw the arena, beams and scored hypotheses")
	fmt.Fprintln(out, "Use --mqtt to run MQTT service mode")
	fmt.Fprintln(out, "Use --http to run HTTP server mode")
	fmt.Fprintln(out, "Use --mqtt --http to run both MQTT and HTTP together")
	fmt.Fprintln(out, "\nConfiguration:")
	fmt.Fprintln(out, "  config.yaml - arena, sensor mounts, sources and MQTT settings")
	fmt.Fprintln(out, "  poses.csv   - optional x,y,theta hypotheses (theta in radians)")
}
