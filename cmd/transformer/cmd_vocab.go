package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/mckdm/transformer-serverless/internal/tokenizer"
)

// runVocabCommand builds a word-level vocabulary from every .txt file under
// a corpus directory and writes it as JSON.
func runVocabCommand(args []string) error {
	flags := flag.NewFlagSet("vocab", flag.ExitOnError)
	corpusDir := flags.String("corpus", "", "Directory of .txt files to scan (required)")
	outPath := flags.String("out", "vocab.json", "Output vocabulary file")
	size := flags.Int("size", 10000, "Maximum vocabulary size including special tokens")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *corpusDir == "" {
		return fmt.Errorf("--corpus is required")
	}

	var files []string
	err := filepath.WalkDir(*corpusDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".txt") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan corpus: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no .txt files found under %s", *corpusDir)
	}

	tok, err := tokenizer.New(*size)
	if err != nil {
		return err
	}

	bar := progressbar.Default(int64(len(files)), "scanning corpus")
	var corpus []string
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		corpus = append(corpus, string(data))
		_ = bar.Add(1)
	}
	tok.BuildVocab(corpus)

	if err := tok.Save(*outPath); err != nil {
		return err
	}
	fmt.Printf("✓ Vocabulary with %d tokens written to %s\n", tok.Len(), *outPath)
	return nil
}
