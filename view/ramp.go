package view

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot/palette"
)

// viridisStops are evenly spaced samples of the viridis color map.
var viridisStops = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// A Ramp is a continuous color map interpolated in CIE L*a*b* between color
// stops. It implements gonum.org/v1/plot/palette.ColorMap.
type Ramp struct {
	stops []colorful.Color
	min   float64
	max   float64
	alpha float64
}

var _ palette.ColorMap = &Ramp{}

// NewRamp returns a new Ramp through the hex colors stops over [0, 1].
func NewRamp(stops ...string) (*Ramp, error) {
	if len(stops) < 2 {
		return nil, fmt.Errorf("need at least 2 stops, got %d", len(stops))
	}
	r := &Ramp{
		stops: make([]colorful.Color, len(stops)),
		max:   1,
		alpha: 1,
	}
	for i, stop := range stops {
		c, err := colorful.Hex(stop)
		if err != nil {
			return nil, err
		}
		r.stops[i] = c
	}
	return r, nil
}

// Viridis returns a new viridis Ramp over [0, 1].
func Viridis() *Ramp {
	r, err := NewRamp(viridisStops...)
	if err != nil {
		panic(err)
	}
	return r
}

// Hex returns n colors evenly spaced along r as hex strings.
func (r *Ramp) Hex(n int) []string {
	hex := make([]string, n)
	for i := range hex {
		hex[i] = r.colorAt(float64(i) / float64(max(n-1, 1))).Hex()
	}
	return hex
}

// At implements palette.ColorMap.At.
func (r *Ramp) At(v float64) (color.Color, error) {
	switch {
	case math.IsNaN(v):
		return nil, fmt.Errorf("%v: not a number", v)
	case v < r.min:
		return nil, palette.ErrUnderflow
	case v > r.max:
		return nil, palette.ErrOverflow
	}
	t := 0.0
	if r.max > r.min {
		t = (v - r.min) / (r.max - r.min)
	}
	return r.withAlpha(r.colorAt(t)), nil
}

// Max implements palette.ColorMap.Max.
func (r *Ramp) Max() float64 {
	return r.max
}

// SetMax implements palette.ColorMap.SetMax.
func (r *Ramp) SetMax(v float64) {
	r.max = v
}

// Min implements palette.ColorMap.Min.
func (r *Ramp) Min() float64 {
	return r.min
}

// SetMin implements palette.ColorMap.SetMin.
func (r *Ramp) SetMin(v float64) {
	r.min = v
}

// Alpha implements palette.ColorMap.Alpha.
func (r *Ramp) Alpha() float64 {
	return r.alpha
}

// SetAlpha implements palette.ColorMap.SetAlpha.
func (r *Ramp) SetAlpha(alpha float64) {
	if alpha < 0 || alpha > 1 {
		panic("view: alpha out of range")
	}
	r.alpha = alpha
}

// Palette implements palette.ColorMap.Palette.
func (r *Ramp) Palette(colors int) palette.Palette {
	p := make(rampPalette, colors)
	for i := range p {
		p[i] = r.withAlpha(r.colorAt(float64(i) / float64(max(colors-1, 1))))
	}
	return p
}

// colorAt returns the color at t in [0, 1].
func (r *Ramp) colorAt(t float64) colorful.Color {
	t = min(max(t, 0), 1)
	segment := t * float64(len(r.stops)-1)
	i := min(int(segment), len(r.stops)-2)
	return r.stops[i].BlendLab(r.stops[i+1], segment-float64(i)).Clamped()
}

func (r *Ramp) withAlpha(c colorful.Color) color.Color {
	red, green, blue := c.RGB255()
	return color.NRGBA{R: red, G: green, B: blue, A: uint8(math.Round(255 * r.alpha))}
}

type rampPalette []color.Color

func (p rampPalette) Colors() []color.Color {
	return p
}
