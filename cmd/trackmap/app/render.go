package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 96.0
	fontSize       = 10.0
	tickMarkLength = 5
	pixelsPerLabel = 150.0
	legendWidth    = 12
	markerSize     = 4 // half of the marker side

	minSpanDegrees = 0.0001 // about 11 m, keeps hovering flights visible
	paddingRatio   = 0.05

	// Default border sizes in pixels
	defaultTopBorder    = 30
	defaultLeftBorder   = 90
	defaultBottomBorder = 40
	defaultRightBorder  = 80
	plainBorder         = 10

	defaultDatetimeFormat = time.DateTime
)

var (
	areaColor   = color.RGBA{R: 0xf4, G: 0xf4, B: 0xf4, A: 0xff}
	gridColor   = color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
	startColor  = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
	finishColor = color.RGBA{A: 0xff}
)

// BorderConfig defines the sizes of white space around the map
type BorderConfig struct {
	Top    int // Space for longitude scale
	Left   int // Space for latitude scale
	Bottom int // Space for information bar
	Right  int // Space for altitude legend
}

// RenderConfig holds all configuration options for track visualization
type RenderConfig struct {
	Width          int            // Width of the map area in pixels
	DatetimeFormat string         // Format string for date/time display
	Location       *time.Location // Timezone for time display
	FontSize       float64        // Font size in points
	NoAnnotations  bool
	BorderConfig   BorderConfig
}

// TrackRenderer draws a recorded flight track coloured by altitude
type TrackRenderer struct {
	config RenderConfig
}

func NewTrackRenderer(config RenderConfig) *TrackRenderer {
	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}

	if config.NoAnnotations {
		config.BorderConfig = BorderConfig{Top: plainBorder, Left: plainBorder, Bottom: plainBorder, Right: plainBorder}
	} else {
		if config.BorderConfig.Top == 0 {
			config.BorderConfig.Top = defaultTopBorder
		}
		if config.BorderConfig.Left == 0 {
			config.BorderConfig.Left = defaultLeftBorder
		}
		if config.BorderConfig.Bottom == 0 {
			config.BorderConfig.Bottom = defaultBottomBorder
		}
		if config.BorderConfig.Right == 0 {
			config.BorderConfig.Right = defaultRightBorder
		}
	}

	return &TrackRenderer{config: config}
}

// Render creates an image of the track with annotations
func (r *TrackRenderer) Render(track *TrackData) (*image.RGBA, error) {
	if track.Empty() {
		return nil, errors.New("track has no points")
	}

	borders := r.config.BorderConfig
	proj := newProjection(track, r.config.Width, image.Pt(borders.Left, borders.Top))

	fullWidth := proj.area.Dx() + borders.Left + borders.Right
	fullHeight := proj.area.Dy() + borders.Top + borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(img, proj.area, image.NewUniform(areaColor), image.Point{}, draw.Src)

	colors := NewColorMapper(track.AltitudeMin, track.AltitudeMax)

	if r.config.NoAnnotations {
		renderTrack(img, proj, track, colors)
		return img, nil
	}

	ann, err := newAnnotator(annotatorConfig{
		DatetimeFormat: r.config.DatetimeFormat,
		Location:       r.config.Location,
		FontSize:       r.config.FontSize,
		Borders:        borders,
	})
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	// grid and labels go under the track
	if err = ann.annotate(img, proj, track, colors); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}
	renderTrack(img, proj, track, colors)

	return img, nil
}

func renderTrack(img *image.RGBA, proj projection, track *TrackData, colors *ColorMapper) {
	prev := track.Points[0]
	for _, p := range track.Points[1:] {
		c := colors.Color((prev.RelativeAltitude + p.RelativeAltitude) / 2)
		drawLine(img, proj.point(prev.Latitude, prev.Longitude), proj.point(p.Latitude, p.Longitude), c)
		prev = p
	}

	first, last := track.Points[0], track.Points[len(track.Points)-1]
	drawMarker(img, proj.point(last.Latitude, last.Longitude), finishColor)
	drawMarker(img, proj.point(first.Latitude, first.Longitude), startColor)
}

// drawLine draws a two pixel wide segment with Bresenham's algorithm.
func drawLine(img *image.RGBA, from, to image.Point, c color.Color) {
	dx := abs(to.X - from.X)
	dy := -abs(to.Y - from.Y)
	sx, sy := 1, 1
	if from.X > to.X {
		sx = -1
	}
	if from.Y > to.Y {
		sy = -1
	}

	x, y := from.X, from.Y
	e := dx + dy
	for {
		img.Set(x, y, c)
		img.Set(x+1, y, c)
		img.Set(x, y+1, c)
		img.Set(x+1, y+1, c)

		if x == to.X && y == to.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

func drawMarker(img *image.RGBA, at image.Point, c color.Color) {
	rect := image.Rect(at.X-markerSize, at.Y-markerSize, at.X+markerSize+1, at.Y+markerSize+1)
	draw.Draw(img, rect, image.White, image.Point{}, draw.Src)
	draw.Draw(img, rect.Inset(1), image.NewUniform(c), image.Point{}, draw.Src)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// projection maps coordinates onto the map area with an equirectangular
// projection around the track's middle latitude.
type projection struct {
	area             image.Rectangle
	longitudeMin     float64
	latitudeMax      float64
	longitudeScale   float64 // cosine of the middle latitude
	pxPerDegree      float64
	offsetX, offsetY float64 // centers the track inside the area
}

func newProjection(track *TrackData, width int, origin image.Point) projection {
	midLatitude := (track.LatitudeMin + track.LatitudeMax) / 2
	lonScale := max(math.Cos(midLatitude*math.Pi/180), 0.01)

	trackX := (track.LongitudeMax - track.LongitudeMin) * lonScale
	trackY := track.LatitudeMax - track.LatitudeMin
	spanX := max(trackX, minSpanDegrees)
	spanY := max(trackY, minSpanDegrees)

	height := int(math.Round(float64(width) * spanY / spanX))
	height = max(width/4, min(height, 2*width))

	usableX := float64(width) * (1 - 2*paddingRatio)
	usableY := float64(height) * (1 - 2*paddingRatio)
	pxPerDegree := min(usableX/spanX, usableY/spanY)

	return projection{
		area:           image.Rect(origin.X, origin.Y, origin.X+width, origin.Y+height),
		longitudeMin:   track.LongitudeMin,
		latitudeMax:    track.LatitudeMax,
		longitudeScale: lonScale,
		pxPerDegree:    pxPerDegree,
		offsetX:        (float64(width) - trackX*pxPerDegree) / 2,
		offsetY:        (float64(height) - trackY*pxPerDegree) / 2,
	}
}

func (p projection) point(latitude, longitude float64) image.Point {
	x := p.offsetX + (longitude-p.longitudeMin)*p.longitudeScale*p.pxPerDegree
	y := p.offsetY + (p.latitudeMax-latitude)*p.pxPerDegree
	return image.Pt(p.area.Min.X+int(math.Round(x)), p.area.Min.Y+int(math.Round(y)))
}

func (p projection) longitudeAt(x int) float64 {
	return p.longitudeMin + (float64(x-p.area.Min.X)-p.offsetX)/(p.longitudeScale*p.pxPerDegree)
}

func (p projection) latitudeAt(y int) float64 {
	return p.latitudeMax - (float64(y-p.area.Min.Y)-p.offsetY)/p.pxPerDegree
}

func (p projection) metersPerPixel() float64 {
	return earthRadius * math.Pi / 180 / p.pxPerDegree
}

// Internal annotator implementation
type annotatorConfig struct {
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, proj projection, track *TrackData, colors *ColorMapper) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawLongitudeScale(img, proj); err != nil {
		return fmt.Errorf("drawing longitude scale: %w", err)
	}
	if err := a.drawLatitudeScale(img, proj); err != nil {
		return fmt.Errorf("drawing latitude scale: %w", err)
	}
	if err := a.drawLegend(img, proj, track, colors); err != nil {
		return fmt.Errorf("drawing altitude legend: %w", err)
	}
	if err := a.drawInfoBar(img, proj, track); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawLongitudeScale(img *image.RGBA, proj projection) error {
	area := proj.area
	lo, hi := proj.longitudeAt(area.Min.X), proj.longitudeAt(area.Max.X-1)
	step := calculateNiceStep(hi-lo, area.Dx())
	start := math.Ceil(lo/step) * step

	textY := area.Min.Y - tickMarkLength - 3
	for i := 0; ; i++ {
		lon := start + float64(i)*step
		if lon > hi {
			break
		}
		x := proj.point(proj.latitudeMax, lon).X

		for y := area.Min.Y; y < area.Max.Y; y++ {
			img.Set(x, y, gridColor)
		}
		for y := area.Min.Y - tickMarkLength; y < area.Min.Y; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatDegrees(lon, step)
		width := font.MeasureString(a.fontFace, label)
		if _, err := a.context.DrawString(label, freetype.Pt(x-width.Round()/2, textY)); err != nil {
			return fmt.Errorf("drawing longitude label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawLatitudeScale(img *image.RGBA, proj projection) error {
	area := proj.area
	lo, hi := proj.latitudeAt(area.Max.Y-1), proj.latitudeAt(area.Min.Y)
	step := calculateNiceStep(hi-lo, area.Dy())
	start := math.Ceil(lo/step) * step

	metrics := a.fontFace.Metrics()
	for i := 0; ; i++ {
		lat := start + float64(i)*step
		if lat > hi {
			break
		}
		y := area.Min.Y + int(math.Round(proj.offsetY+(proj.latitudeMax-lat)*proj.pxPerDegree))

		for x := area.Min.X; x < area.Max.X; x++ {
			img.Set(x, y, gridColor)
		}
		for x := area.Min.X - tickMarkLength; x < area.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		// right aligned against the tick mark, centered on it
		label := formatDegrees(lat, step)
		width := font.MeasureString(a.fontFace, label).Round()
		textY := y + a.fontHeight()/2 - metrics.Descent.Round()
		if _, err := a.context.DrawString(label, freetype.Pt(area.Min.X-tickMarkLength-3-width, textY)); err != nil {
			return fmt.Errorf("drawing latitude label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawLegend(img *image.RGBA, proj projection, track *TrackData, colors *ColorMapper) error {
	area := proj.area
	left := area.Max.X + 10
	span := track.AltitudeMax - track.AltitudeMin

	for y := area.Min.Y; y < area.Max.Y; y++ {
		altitude := track.AltitudeMax
		if span > 0 {
			altitude -= span * float64(y-area.Min.Y) / float64(area.Dy()-1)
		}
		c := colors.Color(altitude)
		for x := left; x < left+legendWidth; x++ {
			img.Set(x, y, c)
		}
	}

	labels := []struct {
		altitude float64
		y        int
	}{
		{track.AltitudeMax, area.Min.Y + a.fontHeight()},
		{track.AltitudeMin, area.Max.Y},
	}
	for _, l := range labels {
		label := fmt.Sprintf("%.1f m", l.altitude)
		if _, err := a.context.DrawString(label, freetype.Pt(left+legendWidth+4, l.y)); err != nil {
			return fmt.Errorf("drawing legend label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, proj projection, track *TrackData) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Start: %s",
		track.TimestampStart.In(a.config.Location).Format(a.config.DatetimeFormat)))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Duration: %s", track.Duration().Round(time.Second)))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Distance: %s", humanize.SIWithDigits(track.Distance, 2, "m")))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Altitude: %.1f m - %.1f m", track.AltitudeMin, track.AltitudeMax))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("%s samples", humanize.Comma(int64(len(track.Points)))))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("1px = %s", humanize.SIWithDigits(proj.metersPerPixel(), 2, "m")))

	metrics := a.fontFace.Metrics()

	// Center text vertically in bottom border
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-a.fontHeight())/2 - metrics.Descent.Round()

	pt := freetype.Pt(a.config.Borders.Left, textY)
	if _, err := a.context.DrawString(sb.String(), pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}

// Helper functions

// calculateNiceStep picks a 1, 2 or 5 times power of ten step that gives a
// label roughly every pixelsPerLabel pixels.
func calculateNiceStep(span float64, pixels int) float64 {
	desiredSteps := max(float64(pixels)/pixelsPerLabel, 1)
	raw := span / desiredSteps
	if raw <= 0 {
		return minSpanDegrees
	}

	magnitude := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 5} {
		if step := m * magnitude; step >= raw {
			return step
		}
	}
	return 10 * magnitude
}

func formatDegrees(value, step float64) string {
	decimals := max(0, int(-math.Floor(math.Log10(step))))
	return fmt.Sprintf("%.*f°", decimals, value)
}
