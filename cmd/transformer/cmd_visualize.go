package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mckdm/transformer-serverless/internal/heatmap"
	"github.com/mckdm/transformer-serverless/internal/model"
	"github.com/mckdm/transformer-serverless/internal/tokenizer"
)

// runVisualizeCommand renders attention heatmaps for a prompt to local PNG
// files, one per selected head.
func runVisualizeCommand(args []string) error {
	flags := flag.NewFlagSet("visualize", flag.ExitOnError)
	modelPath := flags.String("model", "", "Path to model checkpoint (required)")
	vocabPath := flags.String("vocab", "", "Path to vocabulary file (required)")
	text := flags.String("text", "The quick brown fox jumps over the lazy dog.", "Text to visualize")
	layer := flags.Int("layer", 0, "Encoder layer to visualize")
	head := flags.Int("head", -1, "Attention head to visualize (-1=all heads)")
	outDir := flags.String("out", ".", "Directory for output PNG files")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		return fmt.Errorf("--model is required")
	}
	if *vocabPath == "" {
		return fmt.Errorf("--vocab is required")
	}

	m, err := model.Load(*modelPath)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	tok, err := tokenizer.Load(*vocabPath)
	if err != nil {
		return fmt.Errorf("failed to load vocabulary: %w", err)
	}
	cfg := m.Config()
	if *layer < 0 || *layer >= cfg.NumLayers {
		return fmt.Errorf("layer %d out of range (model has %d layers)", *layer, cfg.NumLayers)
	}

	ids := tok.Encode(*text, true)
	_, attn, err := m.Forward(ids)
	if err != nil {
		return err
	}

	tokens := make([]string, len(ids))
	for i, id := range ids {
		tokens[i] = tok.Decode([]int{id}, false)
	}

	heads := []int{*head}
	if *head < 0 {
		heads = heads[:0]
		for h := 0; h < cfg.NumHeads; h++ {
			heads = append(heads, h)
		}
	} else if *head >= cfg.NumHeads {
		return fmt.Errorf("head %d out of range (model has %d heads)", *head, cfg.NumHeads)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, h := range heads {
		png, err := heatmap.Render(attn[*layer][h], tokens, *layer, h)
		if err != nil {
			return err
		}
		path := filepath.Join(*outDir, fmt.Sprintf("attention_layer%d_head%d.png", *layer, h))
		if err := os.WriteFile(path, png, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Printf("✓ Wrote %s\n", path)
	}
	return nil
}
