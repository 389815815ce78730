package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/mckdm/transformer-serverless/internal/tokenizer"
)

// SampleConfig controls next-token sampling.
//
// Temperature 0 means greedy decoding (argmax). TopK 0 disables top-k
// filtering. Nucleus sampling and repetition penalties are not implemented.
type SampleConfig struct {
	Temperature float64
	TopK        int
}

// DefaultSampleConfig returns the sampling defaults the generation endpoint
// uses when the request omits them.
func DefaultSampleConfig() SampleConfig {
	return SampleConfig{Temperature: 0.8, TopK: 40}
}

// Generate produces a continuation of prompt by autoregressive decoding:
// forward pass, take the last position's logits, suppress UNK, apply
// temperature and top-k, sample, append. Stops after maxTokens new tokens,
// on EOS, or when the context window fills, whichever comes first.
//
// The returned slice always begins with the prompt, so
// len(result) <= len(prompt) + maxTokens.
func (m *Model) Generate(prompt []int, maxTokens int, cfg SampleConfig, rng *rand.Rand) ([]int, error) {
	if len(prompt) == 0 {
		return nil, fmt.Errorf("model: empty prompt")
	}
	if maxTokens < 0 {
		return nil, fmt.Errorf("model: maxTokens must be >= 0, got %d", maxTokens)
	}
	if cfg.Temperature < 0 {
		return nil, fmt.Errorf("model: temperature must be >= 0, got %f", cfg.Temperature)
	}

	seq := append([]int(nil), prompt...)

	for n := 0; n < maxTokens; n++ {
		if len(seq) >= m.cfg.MaxSeqLen {
			break
		}

		logits, _, err := m.Forward(seq)
		if err != nil {
			return nil, err
		}

		last := append([]float64(nil), logits.Row(len(seq)-1)...)

		// Never emit UNK; it has no text rendering worth generating.
		last[tokenizer.UnkID] = math.Inf(-1)

		next := sampleLogits(last, cfg, rng)
		seq = append(seq, next)

		if next == tokenizer.EosID {
			break
		}
	}

	return seq, nil
}

// sampleLogits picks a token id from raw logits according to cfg.
func sampleLogits(logits []float64, cfg SampleConfig, rng *rand.Rand) int {
	if cfg.Temperature == 0 {
		return argmax(logits)
	}

	scaled := make([]float64, len(logits))
	for i, v := range logits {
		scaled[i] = v / cfg.Temperature
	}

	if cfg.TopK > 0 && cfg.TopK < len(scaled) {
		applyTopK(scaled, cfg.TopK)
	}

	probs := softmaxSlice(scaled)
	return sampleFromDistribution(probs, rng)
}

// applyTopK sets every logit below the k-th largest to -inf, in place.
func applyTopK(logits []float64, k int) {
	sorted := append([]float64(nil), logits...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	threshold := sorted[k-1]

	for i, v := range logits {
		if v < threshold {
			logits[i] = math.Inf(-1)
		}
	}
}

// softmaxSlice converts logits to probabilities, tolerating -inf entries.
func softmaxSlice(logits []float64) []float64 {
	maxVal := math.Inf(-1)
	for _, v := range logits {
		if v > maxVal {
			maxVal = v
		}
	}

	probs := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		if math.IsInf(v, -1) {
			continue
		}
		e := math.Exp(v - maxVal)
		probs[i] = e
		sum += e
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// sampleFromDistribution draws an index from a probability distribution.
func sampleFromDistribution(probs []float64, rng *rand.Rand) int {
	r := rng.Float64()
	cum := 0.0
	for i, p := range probs {
		cum += p
		if r < cum {
			return i
		}
	}
	// Floating point rounding can leave cum slightly under 1; fall back to
	// the last token with non-zero probability.
	for i := len(probs) - 1; i >= 0; i-- {
		if probs[i] > 0 {
			return i
		}
	}
	return 0
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
