// Package heatmap renders attention weight matrices as PNG images for the
// visualization endpoint. Rendering goes through gonum/plot's HeatMap
// plotter with token strings as axis labels.
package heatmap

import (
	"bytes"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/mckdm/transformer-serverless/internal/tensor"
)

// attnGrid adapts a (seq, seq) attention tensor to plotter.GridXYZ.
// Plot rows grow upward, so the query axis is flipped to keep query 0 at
// the top, matching the usual attention-matrix reading order.
type attnGrid struct {
	w    *tensor.Tensor
	rows int
}

func (g attnGrid) Dims() (c, r int)   { return g.rows, g.rows }
func (g attnGrid) X(c int) float64    { return float64(c) }
func (g attnGrid) Y(r int) float64    { return float64(r) }
func (g attnGrid) Z(c, r int) float64 { return g.w.At(g.rows-1-r, c) }

// tokenTicks labels integer axis positions with token strings.
type tokenTicks []string

func (tt tokenTicks) Ticks(min, max float64) []plot.Tick {
	ticks := make([]plot.Tick, 0, len(tt))
	for i, tok := range tt {
		v := float64(i)
		if v < min || v > max {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: v, Label: tok})
	}
	return ticks
}

// reverse returns the tokens in reverse order, for the flipped query axis.
func reverse(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[len(tokens)-1-i] = tok
	}
	return out
}

// Render draws one head's attention weights as a PNG heatmap. weights must
// be a square (seq, seq) tensor and tokens must have seq entries.
func Render(weights *tensor.Tensor, tokens []string, layer, head int) ([]byte, error) {
	shape := weights.Shape()
	if len(shape) != 2 || shape[0] != shape[1] {
		return nil, fmt.Errorf("heatmap: attention weights must be square, got %v", shape)
	}
	if len(tokens) != shape[0] {
		return nil, fmt.Errorf("heatmap: %d tokens for %d positions", len(tokens), shape[0])
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Attention - Layer %d, Head %d", layer, head)
	p.X.Label.Text = "Key position"
	p.Y.Label.Text = "Query position"
	p.X.Tick.Marker = tokenTicks(tokens)
	p.Y.Tick.Marker = tokenTicks(reverse(tokens))

	hm := plotter.NewHeatMap(attnGrid{w: weights, rows: shape[0]}, moreland.SmoothBlueRed().Palette(255))
	// Attention weights are probabilities; pin the color scale to [0,1] so
	// images are comparable across heads and layers.
	hm.Min = 0
	hm.Max = 1
	p.Add(hm)

	// Scale the canvas with sequence length so labels stay readable.
	side := 4 * vg.Inch
	if n := shape[0]; n > 12 {
		side = vg.Length(n) * vg.Inch / 3
	}

	wt, err := p.WriterTo(side, side, "png")
	if err != nil {
		return nil, fmt.Errorf("heatmap: failed to render plot: %w", err)
	}

	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("heatmap: failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
