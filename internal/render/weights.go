// Package render maps tree depth to presentation weights. Everything here is
// a pure function of its arguments and safe to call from any goroutine.
package render

import "fmt"

const (
	opacityStep  = 0.25
	opacityFloor = 0.4
	blurStep     = 0.5
	blurCap      = 10.0
	hueStep      = 0.07
	hueCap       = 0.3
)

// Weights are the depth-relative render parameters for one node.
type Weights struct {
	Opacity float64
	Blur    float64
	HueBias float64
}

// For computes the weights of a node at nodeDepth while focusDepth is in
// focus. Opacity falls and blur grows with distance from the focus; the hue
// bias depends on absolute depth only.
func For(focusDepth, nodeDepth int) Weights {
	d := distance(focusDepth, nodeDepth)
	return Weights{
		Opacity: Opacity(d),
		Blur:    Blur(d),
		HueBias: HueBias(nodeDepth),
	}
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// Opacity for a node d levels away from focus, floored so content never
// disappears.
func Opacity(d int) float64 {
	if d == 0 {
		return 1.0
	}
	return max(1.0-float64(d)*opacityStep, opacityFloor)
}

// Blur radius for a node d levels away from focus.
func Blur(d int) float64 {
	if d == 0 {
		return 0.0
	}
	return min(float64(d)*blurStep, blurCap)
}

// HueBias is the progressive tint applied to deeper levels.
func HueBias(depth int) float64 {
	return min(float64(max(depth, 0))*hueStep, hueCap)
}

// RGB is a colour with channels in [0,1].
type RGB struct {
	R, G, B float64
}

var base = RGB{R: 0.0, G: 0.2, B: 0.5}

// Tint is the background colour of a post at depth: a blue base shifted
// towards lighter blue-green as the hue bias grows.
func Tint(depth int) RGB {
	bias := HueBias(depth)
	return RGB{
		R: base.R + bias*0.3,
		G: base.G + bias*0.4,
		B: base.B + bias,
	}
}

// Hex formats the colour as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

// Fade blends c towards bg by 1-opacity, approximating alpha on surfaces
// that have no alpha channel such as terminals.
func (c RGB) Fade(bg RGB, opacity float64) RGB {
	a := min(max(opacity, 0), 1)
	return RGB{
		R: c.R*a + bg.R*(1-a),
		G: c.G*a + bg.G*(1-a),
		B: c.B*a + bg.B*(1-a),
	}
}

func channel(v float64) int {
	return int(min(max(v, 0), 1)*255 + 0.5)
}
