package app

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	axisColor = color.Black
	gridColor = color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
	noteColor = color.RGBA{R: 0xcc, A: 0xff}
)

// goldenAngle spreads consecutive hues so neighbouring series stay distinct.
const goldenAngle = 137.50776405

// seriesColor returns the line color of series i out of n. A single series
// uses the classic matplotlib blue.
func seriesColor(i, n int) color.Color {
	if n <= 1 {
		c, _ := colorful.Hex("#1f77b4")
		return c
	}
	hue := math.Mod(210+float64(i)*goldenAngle, 360)
	return colorful.Hcl(hue, 0.6, 0.55).Clamped()
}
