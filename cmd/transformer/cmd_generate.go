package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/mckdm/transformer-serverless/internal/model"
	"github.com/mckdm/transformer-serverless/internal/tokenizer"
)

// runGenerateCommand generates text from a local checkpoint, either for a
// single prompt or in an interactive REPL.
func runGenerateCommand(args []string) error {
	flags := flag.NewFlagSet("generate", flag.ExitOnError)
	modelPath := flags.String("model", "", "Path to model checkpoint (required)")
	vocabPath := flags.String("vocab", "", "Path to vocabulary file (required)")
	prompt := flags.String("prompt", "", "Text prompt for generation")
	interactive := flags.Bool("interactive", false, "Interactive mode (REPL)")
	maxTokens := flags.Int("max-tokens", 50, "Maximum number of tokens to generate")
	temperature := flags.Float64("temperature", 0.8, "Temperature for sampling (0=greedy)")
	topK := flags.Int("top-k", 40, "Top-k sampling (0=disabled)")
	seed := flags.Int64("seed", 0, "Sampling seed (0=time-based)")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		return fmt.Errorf("--model is required")
	}
	if *vocabPath == "" {
		return fmt.Errorf("--vocab is required")
	}

	fmt.Printf("Loading model from %s...\n", *modelPath)
	m, err := model.Load(*modelPath)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	cfg := m.Config()
	fmt.Printf("✓ Model loaded (vocab=%d, dim=%d, layers=%d, heads=%d)\n",
		cfg.VocabSize, cfg.DModel, cfg.NumLayers, cfg.NumHeads)

	tok, err := tokenizer.Load(*vocabPath)
	if err != nil {
		return fmt.Errorf("failed to load vocabulary: %w", err)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))
	sampleCfg := model.SampleConfig{Temperature: *temperature, TopK: *topK}

	generateOne := func(text string) error {
		ids := append([]int{tokenizer.BosID}, tok.Encode(text, false)...)
		start := time.Now()
		out, err := m.Generate(ids, *maxTokens, sampleCfg, rng)
		if err != nil {
			return err
		}
		fmt.Println(tok.Decode(out, true))
		fmt.Printf("(%d tokens in %.2fs)\n", len(out)-len(ids), time.Since(start).Seconds())
		return nil
	}

	if *interactive {
		fmt.Println("Interactive mode. Type a prompt and press Enter; empty line exits.")
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				break
			}
			if err := generateOne(line); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
		return scanner.Err()
	}

	if *prompt == "" {
		return fmt.Errorf("--prompt is required unless --interactive is set")
	}
	return generateOne(*prompt)
}
