// Command transformer is the local CLI for working with model artifacts:
// building vocabularies, initializing checkpoints, generating text and
// rendering attention heatmaps without going through the Lambda endpoints.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) > 1 {
		cmd := os.Args[1]
		switch cmd {
		case "vocab":
			if err := runVocabCommand(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "init":
			if err := runInitCommand(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "generate":
			if err := runGenerateCommand(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "visualize":
			if err := runVisualizeCommand(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "help", "-h", "--help":
			printUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
			printUsage()
			os.Exit(1)
		}
	}

	printUsage()
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  transformer [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  vocab       Build a vocabulary from a text corpus")
	fmt.Println("  init        Initialize a randomly weighted model checkpoint")
	fmt.Println("  generate    Generate text from a model checkpoint")
	fmt.Println("  visualize   Render attention heatmaps for a prompt")
	fmt.Println("  help        Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  transformer vocab -corpus=./texts -out=vocab.json -size=10000")
	fmt.Println("  transformer init -vocab=vocab.json -out=model.bin -seed=42")
	fmt.Println("  transformer generate -model=model.bin -vocab=vocab.json -prompt=\"Once upon a time\"")
	fmt.Println("  transformer generate -model=model.bin -vocab=vocab.json -interactive")
	fmt.Println("  transformer visualize -model=model.bin -vocab=vocab.json -text=\"The quick brown fox\" -out=./heatmaps")
	fmt.Println()
}
