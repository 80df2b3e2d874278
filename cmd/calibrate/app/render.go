package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	figureDPI      = 100.0
	fontSize       = 11.0
	titleFontSize  = 15.0
	infoFontSize   = 8.0
	tickMarkLength = 5
	pixelsPerTick  = 90.0

	// Default border sizes in pixels
	defaultTopBorder    = 50
	defaultLeftBorder   = 90
	defaultBottomBorder = 60
	defaultRightBorder  = 30
	infoLineSpacing     = 1.3
)

// BorderConfig defines the sizes of white space around the plot area
type BorderConfig struct {
	Top    int // Space for the title
	Left   int // Space for the Y scale and label
	Bottom int // Space for the X scale, label and metadata block
	Right  int // Right padding
}

// RenderConfig holds all configuration options for plot rendering
type RenderConfig struct {
	Width        float64 // Figure width in inches
	Height       float64 // Figure height in inches
	Grid         bool
	SubplotLabel bool
	BorderConfig BorderConfig
}

// PlotRenderer draws figures as line plots
type PlotRenderer struct {
	config RenderConfig
}

// NewPlotRenderer creates a renderer, applying defaults for zero values
func NewPlotRenderer(config RenderConfig) (*PlotRenderer, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("invalid figure size %gx%g", config.Width, config.Height)
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
	return &PlotRenderer{config: config}, nil
}

// Render draws fig onto a new white image of the configured figure size.
func (r *PlotRenderer) Render(fig *Figure) (*image.RGBA, error) {
	width := int(math.Round(r.config.Width * figureDPI))
	height := int(math.Round(r.config.Height * figureDPI))

	borders := r.config.BorderConfig
	if len(fig.Info) > 0 {
		borders.Bottom += int(math.Ceil(float64(len(fig.Info)) * infoFontSize * infoLineSpacing * figureDPI / 72))
	}

	area := image.Rect(borders.Left, borders.Top, width-borders.Right, height-borders.Bottom)
	if area.Dx() < 10 || area.Dy() < 10 {
		return nil, fmt.Errorf("figure %dx%d px is too small for its borders", width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	ann, err := newAnnotator()
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	ann.drawCentered(img, fig.Title, titleFontSize, width/2, borders.Top/2)

	xMin, xMax, yMin, yMax, ok := fig.Bounds()
	if !ok {
		ann.context.SetSrc(image.NewUniform(noteColor))
		ann.drawCentered(img, "Data not plotted", fontSize, (area.Min.X+area.Max.X)/2, (area.Min.Y+area.Max.Y)/2)
		ann.context.SetSrc(image.Black)
		ann.drawInfo(img, fig.Info, area.Max.Y+2*tickMarkLength)
		return img, nil
	}

	xMin, xMax = pad(xMin, xMax)
	yMin, yMax = pad(yMin, yMax)
	project := func(x, y float64) (int, int) {
		px := float64(area.Min.X) + (x-xMin)/(xMax-xMin)*float64(area.Dx())
		py := float64(area.Max.Y) - (y-yMin)/(yMax-yMin)*float64(area.Dy())
		return int(math.Round(px)), int(math.Round(py))
	}

	xTicks := niceTicks(xMin, xMax, float64(area.Dx())/pixelsPerTick)
	yTicks := niceTicks(yMin, yMax, float64(area.Dy())/pixelsPerTick)

	if r.config.Grid {
		for _, t := range xTicks {
			x, _ := project(t, yMin)
			drawLine(img, x, area.Min.Y, x, area.Max.Y, gridColor)
		}
		for _, t := range yTicks {
			_, y := project(xMin, t)
			drawLine(img, area.Min.X, y, area.Max.X, y, gridColor)
		}
	}

	for i, s := range fig.Series {
		c := seriesColor(i, len(fig.Series))
		drawSeries(img, area, s, c, project)
	}

	drawRect(img, area, axisColor)
	for _, t := range xTicks {
		x, _ := project(t, yMin)
		drawLine(img, x, area.Max.Y, x, area.Max.Y+tickMarkLength, axisColor)
		ann.drawCentered(img, formatTick(t), fontSize, x, area.Max.Y+tickMarkLength+ann.lineHeight(fontSize)/2+2)
	}
	for _, t := range yTicks {
		_, y := project(xMin, t)
		drawLine(img, area.Min.X-tickMarkLength, y, area.Min.X, y, axisColor)
		ann.drawRight(img, formatTick(t), fontSize, area.Min.X-tickMarkLength-3, y)
	}

	labelY := area.Max.Y + tickMarkLength + 2*ann.lineHeight(fontSize) + 4
	ann.drawCentered(img, fig.XLabel, fontSize, (area.Min.X+area.Max.X)/2, labelY)
	ann.drawVertical(img, fig.YLabel, fontSize, ann.lineHeight(fontSize)/2+2, (area.Min.Y+area.Max.Y)/2)

	if r.config.SubplotLabel {
		ann.drawRight(img, "(a)", fontSize, area.Max.X-4, area.Min.Y+ann.lineHeight(fontSize)/2+4)
	}

	ann.drawInfo(img, fig.Info, labelY+ann.lineHeight(fontSize))
	return img, nil
}

func drawSeries(img *image.RGBA, area image.Rectangle, s Series, c color.Color, project func(x, y float64) (int, int)) {
	clip := img.SubImage(area).(*image.RGBA)

	havePrev := false
	var px, py int
	for i := range s.X {
		if !finite(s.X[i]) || !finite(s.Y[i]) {
			havePrev = false
			continue
		}
		x, y := project(s.X[i], s.Y[i])
		if havePrev {
			drawLine(clip, px, py, x, y, c)
		} else {
			clip.Set(x, y, c)
		}
		px, py, havePrev = x, y, true
	}
}

// drawLine rasterizes a segment with Bresenham's algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	drawLine(img, r.Min.X, r.Min.Y, r.Max.X, r.Min.Y, c)
	drawLine(img, r.Max.X, r.Min.Y, r.Max.X, r.Max.Y, c)
	drawLine(img, r.Max.X, r.Max.Y, r.Min.X, r.Max.Y, c)
	drawLine(img, r.Min.X, r.Max.Y, r.Min.X, r.Min.Y, c)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// pad widens a degenerate range and adds a 2% margin on both sides.
func pad(lo, hi float64) (float64, float64) {
	if hi == lo {
		d := math.Max(math.Abs(lo)*0.05, 0.5)
		return lo - d, hi + d
	}
	m := (hi - lo) * 0.02
	return lo - m, hi + m
}

// niceTicks returns round tick values inside [lo, hi], aiming for about
// target ticks with steps of 1, 2 or 5 times a power of ten.
func niceTicks(lo, hi, target float64) []float64 {
	if target < 2 {
		target = 2
	}
	raw := (hi - lo) / target
	mag := math.Pow(10, math.Floor(math.Log10(raw)))

	step := 10 * mag
	for _, m := range []float64{1, 2, 5} {
		if m*mag >= raw {
			step = m * mag
			break
		}
	}

	var ticks []float64
	for t := math.Ceil(lo/step) * step; t <= hi+step*1e-9; t += step {
		if math.Abs(t) < step*1e-9 {
			t = 0
		}
		ticks = append(ticks, t)
	}
	return ticks
}

func formatTick(v float64) string {
	return strconv.FormatFloat(v, 'g', 7, 64)
}

type annotator struct {
	font    *truetype.Font
	context *freetype.Context
	faces   map[float64]font.Face
}

func newAnnotator() (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(figureDPI)
	ctx.SetFont(parsedFont)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{font: parsedFont, context: ctx, faces: make(map[float64]font.Face)}, nil
}

func (a *annotator) Close() error {
	var err error
	for _, f := range a.faces {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}
	return err
}

func (a *annotator) face(size float64) font.Face {
	f, ok := a.faces[size]
	if !ok {
		f = truetype.NewFace(a.font, &truetype.Options{Size: size, DPI: figureDPI, Hinting: font.HintingNone})
		a.faces[size] = f
	}
	return f
}

func (a *annotator) lineHeight(size float64) int {
	m := a.face(size).Metrics()
	return (m.Ascent + m.Descent).Round()
}

// draw places s with its left edge at x and its vertical centre at y.
func (a *annotator) draw(img draw.Image, s string, size float64, x, y int) {
	if s == "" {
		return
	}
	m := a.face(size).Metrics()
	a.context.SetDst(img)
	a.context.SetClip(img.Bounds())
	a.context.SetFontSize(size)
	baseline := y + (m.Ascent+m.Descent).Round()/2 - m.Descent.Round()
	_, _ = a.context.DrawString(s, freetype.Pt(x, baseline))
}

func (a *annotator) drawCentered(img draw.Image, s string, size float64, x, y int) {
	w := font.MeasureString(a.face(size), s).Round()
	a.draw(img, s, size, x-w/2, y)
}

func (a *annotator) drawRight(img draw.Image, s string, size float64, x, y int) {
	w := font.MeasureString(a.face(size), s).Round()
	a.draw(img, s, size, x-w, y)
}

// drawVertical draws s rotated 90 degrees counter-clockwise, centred on (x, y).
func (a *annotator) drawVertical(img *image.RGBA, s string, size float64, x, y int) {
	if s == "" {
		return
	}
	w := font.MeasureString(a.face(size), s).Round() + 2
	h := a.lineHeight(size) + 2

	tmp := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(tmp, tmp.Bounds(), image.White, image.Point{}, draw.Src)
	a.draw(tmp, s, size, 1, h/2)

	white := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	for ty := 0; ty < h; ty++ {
		for tx := 0; tx < w; tx++ {
			c := tmp.RGBAAt(tx, ty)
			if c == white {
				continue
			}
			img.Set(x-h/2+ty, y+w/2-tx, c)
		}
	}
}

func (a *annotator) drawInfo(img *image.RGBA, lines []string, top int) {
	step := int(math.Ceil(infoFontSize * infoLineSpacing * figureDPI / 72))
	y := top + step/2
	for _, line := range lines {
		a.draw(img, line, infoFontSize, 8, y)
		y += step
	}
}
