package main

import (
	"flag"
	"fmt"

	"github.com/mckdm/transformer-serverless/internal/model"
	"github.com/mckdm/transformer-serverless/internal/tokenizer"
)

// runInitCommand writes a randomly initialized checkpoint sized to match a
// vocabulary. Useful for exercising the serving path before a trained
// checkpoint is available.
func runInitCommand(args []string) error {
	flags := flag.NewFlagSet("init", flag.ExitOnError)
	vocabPath := flags.String("vocab", "", "Path to vocabulary file (required)")
	outPath := flags.String("out", "model.bin", "Output checkpoint file")
	dModel := flags.Int("d-model", 256, "Embedding dimension")
	numLayers := flags.Int("layers", 4, "Number of encoder layers")
	numHeads := flags.Int("heads", 8, "Number of attention heads")
	dFF := flags.Int("d-ff", 1024, "Feed-forward hidden dimension")
	maxSeqLen := flags.Int("max-seq", 512, "Maximum sequence length")
	seed := flags.Int64("seed", 42, "Random seed for weight initialization")
	dtype := flags.String("dtype", "f64", "Checkpoint precision: f64 or f16")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *vocabPath == "" {
		return fmt.Errorf("--vocab is required")
	}

	tok, err := tokenizer.Load(*vocabPath)
	if err != nil {
		return err
	}

	cfg := model.Config{
		VocabSize: tok.VocabSize(),
		DModel:    *dModel,
		NumLayers: *numLayers,
		NumHeads:  *numHeads,
		DFF:       *dFF,
		MaxSeqLen: *maxSeqLen,
	}
	m, err := model.New(cfg, *seed)
	if err != nil {
		return err
	}

	if err := m.Save(*outPath, model.DType(*dtype)); err != nil {
		return err
	}
	fmt.Printf("✓ Checkpoint written to %s (vocab=%d, dim=%d, layers=%d, heads=%d)\n",
		*outPath, cfg.VocabSize, cfg.DModel, cfg.NumLayers, cfg.NumHeads)
	return nil
}
