package plot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/vector"
)

const (
	dpi            = 96.0
	fontSize       = 10.0
	titleFontSize  = 16.0
	tickMarkLength = 5
	pixelsPerLabel = 120.0
	lineWidth      = 1.5

	defaultWidth  = 1200
	defaultHeight = 800

	// Default border sizes in pixels
	defaultTopBorder    = 60
	defaultLeftBorder   = 70
	defaultBottomBorder = 60
	defaultRightBorder  = 30
)

// BorderConfig defines the sizes of white space around the plot area
type BorderConfig struct {
	Top    int // Space for the title
	Left   int // Space for the amplitude scale
	Bottom int // Space for the frequency scale
	Right  int // Right padding
}

// RenderConfig holds the image layout
type RenderConfig struct {
	Width    int     // Image width in pixels
	Height   int     // Image height in pixels
	FontSize float64 // Font size in points

	BorderConfig BorderConfig
}

// Renderer draws charts as line plots
type Renderer struct {
	config RenderConfig
	font   *truetype.Font
}

// NewRenderer creates a new renderer with the given configuration
func NewRenderer(config RenderConfig) (*Renderer, error) {
	// Set defaults for zero values
	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.Height == 0 {
		config.Height = defaultHeight
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
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

	b := config.BorderConfig
	if config.Width <= b.Left+b.Right || config.Height <= b.Top+b.Bottom {
		return nil, fmt.Errorf("image %dx%d is too small for its borders", config.Width, config.Height)
	}

	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	return &Renderer{config: config, font: parsedFont}, nil
}

// Render draws the chart
func (r *Renderer) Render(chart *Chart) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.config.Width, r.config.Height))

	// Fill with white background
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	b := r.config.BorderConfig
	area := image.Rect(b.Left, b.Top, r.config.Width-b.Right, r.config.Height-b.Bottom)

	ax := newAxes(chart, area)

	ann := r.newAnnotator(img)
	defer ann.Close()

	if err := ann.drawGrid(img, ax); err != nil {
		return nil, fmt.Errorf("drawing grid: %w", err)
	}

	for _, s := range chart.Series {
		drawSeries(img, ax, chart.Frequencies, s)
	}

	// frame on top of the data
	drawRect(img, area, color.Black)

	if err := ann.drawLabels(ax, chart); err != nil {
		return nil, fmt.Errorf("drawing labels: %w", err)
	}
	if err := ann.drawLegend(img, ax, chart); err != nil {
		return nil, fmt.Errorf("drawing legend: %w", err)
	}

	return img, nil
}

// axes maps data coordinates to pixels inside area
type axes struct {
	area       image.Rectangle
	xMin, xMax float64
	yMin, yMax float64
}

func newAxes(chart *Chart, area image.Rectangle) axes {
	ax := axes{area: area}
	ax.xMin, ax.xMax = chart.XRange()
	ax.yMin, ax.yMax = chart.YRange()
	return ax
}

func (ax axes) x(freq float64) float64 {
	return float64(ax.area.Min.X) + (freq-ax.xMin)/(ax.xMax-ax.xMin)*float64(ax.area.Dx())
}

func (ax axes) y(v float64) float64 {
	return float64(ax.area.Max.Y) - (v-ax.yMin)/(ax.yMax-ax.yMin)*float64(ax.area.Dy())
}

// drawSeries strokes the series as a polyline, broken at NaN values
func drawSeries(img *image.RGBA, ax axes, freqs []float64, s Series) {
	area := ax.area
	z := vector.NewRasterizer(area.Dx(), area.Dy())
	z.DrawOp = draw.Over

	ox, oy := float64(area.Min.X), float64(area.Min.Y)
	for i := 1; i < len(freqs) && i < len(s.Values); i++ {
		v0, v1 := s.Values[i-1], s.Values[i]
		if math.IsNaN(v0) || math.IsNaN(v1) {
			continue
		}
		strokeSegment(z,
			ax.x(freqs[i-1])-ox, ax.y(v0)-oy,
			ax.x(freqs[i])-ox, ax.y(v1)-oy,
		)
	}

	z.Draw(img, area, image.NewUniform(s.Color), image.Point{})
}

// strokeSegment adds a line segment of lineWidth as a filled quad
func strokeSegment(z *vector.Rasterizer, x0, y0, x1, y1 float64) {
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*lineWidth/2, dx/length*lineWidth/2

	z.MoveTo(float32(x0+nx), float32(y0+ny))
	z.LineTo(float32(x1+nx), float32(y1+ny))
	z.LineTo(float32(x1-nx), float32(y1-ny))
	z.LineTo(float32(x0-nx), float32(y0-ny))
	z.ClosePath()
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x <= r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y, c)
	}
	for y := r.Min.Y; y <= r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X, y, c)
	}
}

// Internal annotator implementation
type annotator struct {
	context   *freetype.Context
	config    RenderConfig
	fontFace  font.Face
	titleFace font.Face
}

func (r *Renderer) newAnnotator(img *image.RGBA) *annotator {
	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(r.font)
	ctx.SetFontSize(r.config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)

	return &annotator{
		context: ctx,
		config:  r.config,
		fontFace: truetype.NewFace(r.font, &truetype.Options{
			Size:    r.config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
		titleFace: truetype.NewFace(r.font, &truetype.Options{
			Size:    titleFontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}
}

func (a *annotator) Close() error {
	if a.titleFace != nil {
		_ = a.titleFace.Close()
	}
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

// drawGrid draws grid lines, tick marks and tick labels on both axes
func (a *annotator) drawGrid(img *image.RGBA, ax axes) error {
	area := ax.area
	fontHeight := a.fontHeight()

	freqStep := calculateNiceFrequencyStep(ax.xMax-ax.xMin, area.Dx())
	for freq := math.Ceil(ax.xMin/freqStep) * freqStep; freq <= ax.xMax; freq += freqStep {
		x := int(math.Round(ax.x(freq)))
		for y := area.Min.Y; y < area.Max.Y; y++ {
			img.Set(x, y, GridColor)
		}
		for y := area.Max.Y; y < area.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatFrequency(freq)
		width := font.MeasureString(a.fontFace, label).Round()
		pt := freetype.Pt(x-width/2, area.Max.Y+tickMarkLength+fontHeight)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}

	ampStep := calculateAmplitudeStep(ax.yMax-ax.yMin, area.Dy())
	for v := ax.yMin; v <= ax.yMax+ampStep/1e6; v += ampStep {
		y := int(math.Round(ax.y(v)))
		for x := area.Min.X; x < area.Max.X; x++ {
			img.Set(x, y, GridColor)
		}
		for x := area.Min.X - tickMarkLength; x < area.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		label := fmt.Sprintf("%g", v)
		width := font.MeasureString(a.fontFace, label).Round()
		pt := freetype.Pt(area.Min.X-tickMarkLength-3-width, y+fontHeight/2-a.fontFace.Metrics().Descent.Round())
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing amplitude label: %w", err)
		}
	}

	return nil
}

// drawLabels draws the title above the plot, the axis labels and the frequency range
func (a *annotator) drawLabels(ax axes, chart *Chart) error {
	area := ax.area
	fontHeight := a.fontHeight()

	if chart.Title != "" {
		width := font.MeasureString(a.titleFace, chart.Title).Round()
		a.context.SetFontSize(titleFontSize)
		pt := freetype.Pt(area.Min.X+(area.Dx()-width)/2, area.Min.Y-fontHeight-8)
		_, err := a.context.DrawString(chart.Title, pt)
		a.context.SetFontSize(a.config.FontSize)
		if err != nil {
			return fmt.Errorf("drawing title: %w", err)
		}
	}

	if _, err := a.context.DrawString(chart.YLabel, freetype.Pt(area.Min.X, area.Min.Y-4)); err != nil {
		return fmt.Errorf("drawing amplitude axis label: %w", err)
	}

	xLabel := fmt.Sprintf("%s    %s - %s", chart.XLabel, formatFrequency(ax.xMin), formatFrequency(ax.xMax))
	width := font.MeasureString(a.fontFace, xLabel).Round()
	pt := freetype.Pt(area.Min.X+(area.Dx()-width)/2, area.Max.Y+tickMarkLength+2*fontHeight+6)
	if _, err := a.context.DrawString(xLabel, pt); err != nil {
		return fmt.Errorf("drawing frequency axis label: %w", err)
	}

	return nil
}

// drawLegend lists the series in the lower right corner of the plot area
func (a *annotator) drawLegend(img *image.RGBA, ax axes, chart *Chart) error {
	const swatch = 20

	fontHeight := a.fontHeight()
	lineHeight := fontHeight + 4

	var textWidth int
	for _, s := range chart.Series {
		textWidth = max(textWidth, font.MeasureString(a.fontFace, s.Name).Round())
	}

	right := ax.area.Max.X - 10
	left := right - textWidth - swatch - 16
	bottom := ax.area.Max.Y - 10
	top := bottom - len(chart.Series)*lineHeight - 6

	box := image.Rect(left, top, right, bottom)
	draw.Draw(img, box, image.White, image.Point{}, draw.Src)
	drawRect(img, box, color.Gray{Y: 0x80})

	for i, s := range chart.Series {
		y := top + 4 + i*lineHeight + lineHeight/2
		for x := left + 5; x < left+5+swatch; x++ {
			img.Set(x, y, s.Color)
			img.Set(x, y+1, s.Color)
		}
		pt := freetype.Pt(left+swatch+10, y+fontHeight/2-a.fontFace.Metrics().Descent.Round())
		if _, err := a.context.DrawString(s.Name, pt); err != nil {
			return fmt.Errorf("drawing legend: %w", err)
		}
	}

	return nil
}

// Helper functions

// calculateNiceFrequencyStep returns a 1, 2 or 5 times power of ten step giving roughly
// one label per pixelsPerLabel pixels.
func calculateNiceFrequencyStep(span float64, width int) float64 {
	return niceStep(span/(float64(width)/pixelsPerLabel), []float64{1, 2, 5, 10})
}

// calculateAmplitudeStep returns a multiple of 5 dB giving a label every 40 pixels or more
func calculateAmplitudeStep(span float64, height int) float64 {
	maxLabels := math.Max(float64(height)/40, 1)
	step := yStep
	for span/step > maxLabels {
		step *= 2
	}
	return step
}

func niceStep(target float64, multiples []float64) float64 {
	if target <= 0 || math.IsNaN(target) || math.IsInf(target, 0) {
		return 1
	}
	magnitude := math.Pow(10, math.Floor(math.Log10(target)))
	for _, m := range multiples {
		if m*magnitude >= target {
			return m * magnitude
		}
	}
	return 10 * magnitude
}

func formatFrequency(freq float64) string {
	value, prefix := humanize.ComputeSI(freq)
	return fmt.Sprintf("%s %sHz", humanize.FtoaWithDigits(value, 3), prefix)
}
