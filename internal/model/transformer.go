// Package model implements the transformer language model: a 4-layer,
// 8-head encoder-only architecture following the original "Attention is All
// You Need" formulation (post-norm residual blocks, sinusoidal positional
// encoding, GELU feed-forward), plus top-k sampling and checkpoint
// persistence.
//
// The forward pass is single-threaded on purpose. Each Lambda invocation is
// an isolated process handling one request, so internal parallelism buys
// nothing there; whatever gonum's BLAS does under MatMul is the only
// concurrency involved.
package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/mckdm/transformer-serverless/internal/tensor"
	"github.com/mckdm/transformer-serverless/internal/tokenizer"
)

// Config holds the model hyperparameters. The JSON form doubles as the
// checkpoint header, so field names mirror the trained artifact layout.
type Config struct {
	VocabSize int `json:"vocab_size"`
	DModel    int `json:"d_model"`
	NumLayers int `json:"n_layers"`
	NumHeads  int `json:"n_heads"`
	DFF       int `json:"d_ff"`
	MaxSeqLen int `json:"max_seq_length"`
}

// DefaultConfig returns the hyperparameters the demo checkpoints use.
func DefaultConfig() Config {
	return Config{
		VocabSize: 10000,
		DModel:    256,
		NumLayers: 4,
		NumHeads:  8,
		DFF:       1024,
		MaxSeqLen: 512,
	}
}

func (c Config) validate() error {
	if c.VocabSize <= 0 || c.DModel <= 0 || c.NumLayers <= 0 ||
		c.NumHeads <= 0 || c.DFF <= 0 || c.MaxSeqLen <= 0 {
		return fmt.Errorf("model: all config dimensions must be positive: %+v", c)
	}
	if c.DModel%c.NumHeads != 0 {
		return fmt.Errorf("model: d_model (%d) must be divisible by n_heads (%d)",
			c.DModel, c.NumHeads)
	}
	return nil
}

// attention is one multi-head self-attention block. The Q/K/V/O projections
// are stored as full d_model x d_model weights and sliced into heads at
// forward time.
type attention struct {
	numHeads int
	headDim  int

	wq, wk, wv, wo *tensor.Tensor
	bq, bk, bv, bo *tensor.Tensor
}

// layerNorm normalizes each row to zero mean and unit variance, then applies
// a learned scale and shift.
type layerNorm struct {
	gamma, beta *tensor.Tensor
}

// feedForward is the position-wise two-layer MLP: linear -> GELU -> linear.
type feedForward struct {
	w1, b1 *tensor.Tensor
	w2, b2 *tensor.Tensor
}

// encoderLayer is one post-norm transformer block: attention with residual
// and layer norm, then feed-forward with residual and layer norm.
type encoderLayer struct {
	attn *attention
	ln1  *layerNorm
	ff   *feedForward
	ln2  *layerNorm
}

// Model is the full language model. Weights are read-only after construction
// or checkpoint load, so a Model is safe for concurrent Forward calls.
type Model struct {
	cfg Config

	tokEmbed *tensor.Tensor // (vocab_size, d_model)
	posEnc   *tensor.Tensor // (max_seq_length, d_model), fixed sinusoids
	layers   []*encoderLayer
	lmW      *tensor.Tensor // (d_model, vocab_size)
	lmB      *tensor.Tensor // (1, vocab_size)
}

// New creates a model with randomly initialized weights (normal, std 0.02,
// the usual transformer init). Returns an error when the config is invalid,
// in particular when d_model is not divisible by n_heads.
func New(cfg Config, seed int64) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	const initStd = 0.02

	newAttention := func() *attention {
		d := cfg.DModel
		return &attention{
			numHeads: cfg.NumHeads,
			headDim:  d / cfg.NumHeads,
			wq:       tensor.NewNormal(rng, initStd, d, d),
			wk:       tensor.NewNormal(rng, initStd, d, d),
			wv:       tensor.NewNormal(rng, initStd, d, d),
			wo:       tensor.NewNormal(rng, initStd, d, d),
			bq:       tensor.New(1, d),
			bk:       tensor.New(1, d),
			bv:       tensor.New(1, d),
			bo:       tensor.New(1, d),
		}
	}

	newLayerNorm := func() *layerNorm {
		ln := &layerNorm{
			gamma: tensor.New(1, cfg.DModel),
			beta:  tensor.New(1, cfg.DModel),
		}
		for i := 0; i < cfg.DModel; i++ {
			ln.gamma.Set(1.0, 0, i)
		}
		return ln
	}

	m := &Model{
		cfg:      cfg,
		tokEmbed: tensor.NewNormal(rng, initStd, cfg.VocabSize, cfg.DModel),
		posEnc:   positionalEncoding(cfg.MaxSeqLen, cfg.DModel),
		lmW:      tensor.NewNormal(rng, initStd, cfg.DModel, cfg.VocabSize),
		lmB:      tensor.New(1, cfg.VocabSize),
	}

	for i := 0; i < cfg.NumLayers; i++ {
		m.layers = append(m.layers, &encoderLayer{
			attn: newAttention(),
			ln1:  newLayerNorm(),
			ff: &feedForward{
				w1: tensor.NewNormal(rng, initStd, cfg.DModel, cfg.DFF),
				b1: tensor.New(1, cfg.DFF),
				w2: tensor.NewNormal(rng, initStd, cfg.DFF, cfg.DModel),
				b2: tensor.New(1, cfg.DModel),
			},
			ln2: newLayerNorm(),
		})
	}

	return m, nil
}

// Config returns the model hyperparameters.
func (m *Model) Config() Config {
	return m.cfg
}

// positionalEncoding builds the fixed sinusoidal position table:
// sin on even dimensions, cos on odd, with 10000^(2i/d) wavelengths.
func positionalEncoding(maxSeqLen, dModel int) *tensor.Tensor {
	pe := tensor.New(maxSeqLen, dModel)
	for pos := 0; pos < maxSeqLen; pos++ {
		for i := 0; i < dModel; i += 2 {
			div := math.Exp(-math.Log(10000.0) * float64(i) / float64(dModel))
			angle := float64(pos) * div
			pe.Set(math.Sin(angle), pos, i)
			if i+1 < dModel {
				pe.Set(math.Cos(angle), pos, i+1)
			}
		}
	}
	return pe
}

// maskValue is added to disallowed attention scores before softmax. Large
// enough to zero the weight, small enough not to overflow exp.
const maskValue = -1e9

// buildMask returns the combined padding+causal mask for the given sequence:
// entry (i, j) is 1 when query position i may attend to key position j.
// Position i may never attend to j > i, and PAD keys are unattendable.
func buildMask(ids []int) *tensor.Tensor {
	n := len(ids)
	mask := tensor.New(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			if ids[j] != tokenizer.PadID {
				mask.Set(1.0, i, j)
			}
		}
	}
	return mask
}

// addBias adds a (1, n) bias row to every row of a (m, n) tensor.
func addBias(x, bias *tensor.Tensor) *tensor.Tensor {
	rows, cols := x.Shape()[0], x.Shape()[1]
	out := tensor.New(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(x.At(i, j)+bias.At(0, j), i, j)
		}
	}
	return out
}

// headSlice copies columns [h*headDim, (h+1)*headDim) into a (seq, headDim)
// tensor.
func headSlice(x *tensor.Tensor, h, headDim int) *tensor.Tensor {
	seq := x.Shape()[0]
	out := tensor.New(seq, headDim)
	for i := 0; i < seq; i++ {
		for j := 0; j < headDim; j++ {
			out.Set(x.At(i, h*headDim+j), i, j)
		}
	}
	return out
}

// forward computes multi-head self-attention for x (seq, d_model) under the
// given mask. Returns the projected output and one (seq, seq) attention
// weight tensor per head.
func (a *attention) forward(x, mask *tensor.Tensor) (*tensor.Tensor, []*tensor.Tensor) {
	seq := x.Shape()[0]
	dModel := a.numHeads * a.headDim

	q := addBias(tensor.MatMul(x, a.wq), a.bq)
	k := addBias(tensor.MatMul(x, a.wk), a.bk)
	v := addBias(tensor.MatMul(x, a.wv), a.bv)

	concat := tensor.New(seq, dModel)
	weights := make([]*tensor.Tensor, a.numHeads)
	scale := 1.0 / math.Sqrt(float64(a.headDim))

	for h := 0; h < a.numHeads; h++ {
		qh := headSlice(q, h, a.headDim)
		kh := headSlice(k, h, a.headDim)
		vh := headSlice(v, h, a.headDim)

		// scores = Q K^T / sqrt(d_k), masked positions pushed to -1e9.
		scores := tensor.Scale(tensor.MatMul(qh, tensor.Transpose(kh)), scale)
		for i := 0; i < seq; i++ {
			for j := 0; j < seq; j++ {
				if mask.At(i, j) == 0 {
					scores.Set(maskValue, i, j)
				}
			}
		}

		attnW := tensor.Softmax(scores)
		weights[h] = attnW

		ctx := tensor.MatMul(attnW, vh)
		for i := 0; i < seq; i++ {
			for j := 0; j < a.headDim; j++ {
				concat.Set(ctx.At(i, j), i, h*a.headDim+j)
			}
		}
	}

	out := addBias(tensor.MatMul(concat, a.wo), a.bo)
	return out, weights
}

// forward normalizes each row of x: (x - mean) / sqrt(var + eps) * gamma + beta.
func (ln *layerNorm) forward(x *tensor.Tensor) *tensor.Tensor {
	const eps = 1e-5

	rows, cols := x.Shape()[0], x.Shape()[1]
	out := tensor.New(rows, cols)

	for i := 0; i < rows; i++ {
		mean := 0.0
		for j := 0; j < cols; j++ {
			mean += x.At(i, j)
		}
		mean /= float64(cols)

		variance := 0.0
		for j := 0; j < cols; j++ {
			d := x.At(i, j) - mean
			variance += d * d
		}
		variance /= float64(cols)

		inv := 1.0 / math.Sqrt(variance+eps)
		for j := 0; j < cols; j++ {
			norm := (x.At(i, j) - mean) * inv
			out.Set(norm*ln.gamma.At(0, j)+ln.beta.At(0, j), i, j)
		}
	}
	return out
}

func (ff *feedForward) forward(x *tensor.Tensor) *tensor.Tensor {
	h := tensor.GELU(addBias(tensor.MatMul(x, ff.w1), ff.b1))
	return addBias(tensor.MatMul(h, ff.w2), ff.b2)
}

// Forward maps a token-id sequence to per-position next-token logits.
// Returns the (seq, vocab_size) logits and, per layer, one (seq, seq)
// attention weight tensor per head. Attention rows sum to 1 over keys and
// are exactly 0 for key positions after the query (causal mask).
func (m *Model) Forward(ids []int) (*tensor.Tensor, [][]*tensor.Tensor, error) {
	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("model: empty input sequence")
	}
	if len(ids) > m.cfg.MaxSeqLen {
		return nil, nil, fmt.Errorf("model: sequence length %d exceeds max %d",
			len(ids), m.cfg.MaxSeqLen)
	}
	for i, id := range ids {
		if id < 0 || id >= m.cfg.VocabSize {
			return nil, nil, fmt.Errorf("model: token id %d at position %d out of range [0,%d)",
				id, i, m.cfg.VocabSize)
		}
	}

	seq := len(ids)
	dModel := m.cfg.DModel

	// Token embedding scaled by sqrt(d_model) plus positional encoding.
	x := tensor.New(seq, dModel)
	embedScale := math.Sqrt(float64(dModel))
	for i, id := range ids {
		for j := 0; j < dModel; j++ {
			x.Set(m.tokEmbed.At(id, j)*embedScale+m.posEnc.At(i, j), i, j)
		}
	}

	mask := buildMask(ids)

	attentions := make([][]*tensor.Tensor, 0, m.cfg.NumLayers)
	for _, layer := range m.layers {
		attnOut, weights := layer.attn.forward(x, mask)
		x = layer.ln1.forward(tensor.Add(x, attnOut))

		ffOut := layer.ff.forward(x)
		x = layer.ln2.forward(tensor.Add(x, ffOut))

		attentions = append(attentions, weights)
	}

	logits := addBias(tensor.MatMul(x, m.lmW), m.lmB)
	return logits, attentions, nil
}
