package localize

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"sort"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// Renderer draws the arena, scored hypotheses and sensor beams.
// Canvas units are millimetres; Scale converts arena inches to them.
type Renderer struct {
	Arena      Arena
	Poses      []ScoredPose
	Beams      []Beam
	Colors     map[string]color.RGBA // sensor ID -> beam colour
	Scale      float64               // canvas mm per arena inch
	Padding    float64               // inches around the walls
	Resolution canvas.Resolution     // PNG output resolution
	GridStep   float64               // grid spacing in inches; 0 disables
}

// NewRenderer creates a renderer with default settings
func NewRenderer(a Arena) *Renderer {
	return &Renderer{
		Arena:      a,
		Colors:     make(map[string]color.RGBA),
		Scale:      2.0,
		Padding:    6.0,
		Resolution: canvas.DPMM(4),
		GridStep:   24.0,
	}
}

func (r *Renderer) size() (float64, float64) {
	side := (2*r.Arena.HalfWidth + 2*r.Padding) * r.Scale
	return side, side
}

// RenderToSVG writes the scene as an SVG
func (r *Renderer) RenderToSVG(w io.Writer) error {
	width, height := r.size()
	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, width, height)
	return svgRenderer.Close()
}

// RenderToPNG writes the scene as a PNG with a sensor legend
func (r *Renderer) RenderToPNG(w io.Writer) error {
	width, height := r.size()
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, width, height)
	r.drawLegend(rast)
	return png.Encode(w, rast)
}

func (r *Renderer) toCanvas(p Point) (float64, float64) {
	return (p.X + r.Arena.HalfWidth + r.Padding) * r.Scale,
		(p.Y + r.Arena.HalfWidth + r.Padding) * r.Scale
}

func (r *Renderer) line(renderer canvasRenderer, from, to Point, style canvas.Style) {
	x1, y1 := r.toCanvas(from)
	x2, y2 := r.toCanvas(to)
	path := &canvas.Path{}
	path.MoveTo(x1, y1)
	path.LineTo(x2, y2)
	renderer.RenderPath(path, style, canvas.Identity)
}

func (r *Renderer) renderToCanvas(renderer canvasRenderer, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	w := r.Arena.HalfWidth

	if r.GridStep > 0 {
		gridStyle := canvas.DefaultStyle
		gridStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		gridStyle.Stroke = canvas.Paint{Color: canvas.Lightgray}
		gridStyle.StrokeWidth = 0.3
		gridStyle.Dashes = []float64{2.0, 2.0}

		for v := math.Ceil(-w/r.GridStep) * r.GridStep; v <= w; v += r.GridStep {
			r.line(renderer, Point{X: v, Y: -w}, Point{X: v, Y: w}, gridStyle)
			r.line(renderer, Point{X: -w, Y: v}, Point{X: w, Y: v}, gridStyle)
		}
	}

	wallStyle := canvas.DefaultStyle
	wallStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	wallStyle.Stroke = canvas.Paint{Color: canvas.Black}
	wallStyle.StrokeWidth = 1.5

	ring := r.Arena.Polygon()[0]
	outline := &canvas.Path{}
	for i, pt := range ring {
		cx, cy := r.toCanvas(Point{X: pt[0], Y: pt[1]})
		if i == 0 {
			outline.MoveTo(cx, cy)
		} else {
			outline.LineTo(cx, cy)
		}
	}
	outline.Close()
	renderer.RenderPath(outline, wallStyle, canvas.Identity)

	r.renderPoses(renderer)
	r.renderBeams(renderer)
}

// renderPoses draws each hypothesis shaded by its likelihood relative to the
// best one; poses without information are drawn hollow
func (r *Renderer) renderPoses(renderer canvasRenderer) {
	best := 0.0
	for _, sp := range r.Poses {
		if v, ok := sp.Likelihood.Value(); ok && v > best {
			best = v
		}
	}

	for _, sp := range r.Poses {
		cx, cy := r.toCanvas(sp.Pose.Position())

		style := canvas.DefaultStyle
		style.StrokeWidth = 0.2
		style.Stroke = canvas.Paint{Color: canvas.Gray}

		v, ok := sp.Likelihood.Value()
		if ok && best > 0 {
			style.Fill = canvas.Paint{Color: likelihoodColor(v / best)}
		} else {
			style.Fill = canvas.Paint{Color: canvas.Transparent}
		}

		renderer.RenderPath(canvas.Circle(0.8).Translate(cx, cy), style, canvas.Identity)

		tipStyle := canvas.DefaultStyle
		tipStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		tipStyle.Stroke = canvas.Paint{Color: canvas.Gray}
		tipStyle.StrokeWidth = 0.2
		r.line(renderer, sp.Pose.Position(), BeamEnd(sp.Pose.Position(), sp.Pose.Theta, 2.0), tipStyle)
	}
}

func (r *Renderer) renderBeams(renderer canvasRenderer) {
	for _, b := range r.Beams {
		c := r.sensorColor(b.SensorID)

		predictedStyle := canvas.DefaultStyle
		predictedStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		predictedStyle.Stroke = canvas.Paint{Color: c}
		predictedStyle.StrokeWidth = 0.6
		predictedStyle.Dashes = []float64{3.0, 1.5}
		r.line(renderer, b.Origin, BeamEnd(b.Origin, b.Heading, b.Predicted), predictedStyle)

		if b.Observed != nil {
			observedStyle := canvas.DefaultStyle
			observedStyle.Fill = canvas.Paint{Color: canvas.Transparent}
			observedStyle.Stroke = canvas.Paint{Color: c}
			observedStyle.StrokeWidth = 1.2
			r.line(renderer, b.Origin, BeamEnd(b.Origin, b.Heading, *b.Observed), observedStyle)
		}

		dotStyle := canvas.DefaultStyle
		dotStyle.Fill = canvas.Paint{Color: c}
		ox, oy := r.toCanvas(b.Origin)
		renderer.RenderPath(canvas.Circle(1.2).Translate(ox, oy), dotStyle, canvas.Identity)
	}
}

func (r *Renderer) sensorColor(id string) color.RGBA {
	if c, ok := r.Colors[id]; ok {
		return c
	}
	return color.RGBA{R: 220, G: 40, B: 40, A: 255}
}

// likelihoodColor maps a relative likelihood in [0, 1] from pale blue to
// saturated red, premultiplied for canvas
func likelihoodColor(rel float64) color.RGBA {
	rel = math.Max(0, math.Min(1, rel))
	return color.RGBA{
		R: uint8(80 + 175*rel),
		G: uint8(140 * (1 - rel)),
		B: uint8(220 * (1 - rel)),
		A: 255,
	}
}

// drawLegend labels each beam colour in the top-left corner of the raster
func (r *Renderer) drawLegend(img draw.Image) {
	ids := make([]string, 0, len(r.Beams))
	seen := make(map[string]bool)
	for _, b := range r.Beams {
		if !seen[b.SensorID] {
			seen[b.SensorID] = true
			ids = append(ids, b.SensorID)
		}
	}
	sort.Strings(ids)

	y := 15
	for _, id := range ids {
		c := r.sensorColor(id)
		for dy := 0; dy < 12; dy++ {
			for dx := 0; dx < 12; dx++ {
				img.Set(10+dx, y+dy-10, c)
			}
		}

		label := id
		for _, b := range r.Beams {
			if b.SensorID == id && b.Observed != nil {
				label = fmt.Sprintf("%s  obs %.1fin  pred %.1fin (%s)", id, *b.Observed, b.Predicted, b.Wall)
				break
			}
		}
		drawText(img, 28, y, label, color.RGBA{0, 0, 0, 255})
		y += 18
	}
}

// drawText renders text onto an image at the specified position
func drawText(img draw.Image, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// ParseHexColor parses a hex color string like "#FF6B6B", defaulting to red
func ParseHexColor(hex string) color.RGBA {
	defaultColor := color.RGBA{255, 0, 0, 255}

	if len(hex) == 0 {
		return defaultColor
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return defaultColor
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return defaultColor
	}
	return color.RGBA{r, g, b, 255}
}
