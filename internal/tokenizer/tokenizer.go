// Package tokenizer implements the word-level tokenizer the model was
// trained with: lowercase text, split on word/punctuation boundaries, map
// through a frequency-ranked vocabulary with four reserved special tokens.
//
// Decoding is lossy. Tokens are joined with single spaces, so original
// casing and punctuation spacing do not round-trip.
package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Special token strings and their reserved ids. Ids 0-3 are fixed; real
// vocabulary entries start at 4.
const (
	PadToken = "<PAD>"
	UnkToken = "<UNK>"
	BosToken = "<BOS>"
	EosToken = "<EOS>"

	PadID = 0
	UnkID = 1
	BosID = 2
	EosID = 3
)

const numSpecialTokens = 4

// wordRe matches either a run of word characters or a single
// non-word, non-space character (punctuation).
var wordRe = regexp.MustCompile(`\b\w+\b|[^\w\s]`)

// Tokenizer maps between text and token ids. Immutable after BuildVocab or
// Load, so it is safe for concurrent readers.
type Tokenizer struct {
	vocabSize int
	wordToID  map[string]int
	idToWord  map[int]string
}

// New creates an empty tokenizer that will cap its vocabulary at vocabSize
// entries (including the four special tokens).
func New(vocabSize int) (*Tokenizer, error) {
	if vocabSize <= numSpecialTokens {
		return nil, fmt.Errorf("tokenizer: vocab size must be > %d, got %d", numSpecialTokens, vocabSize)
	}

	t := &Tokenizer{
		vocabSize: vocabSize,
		wordToID:  make(map[string]int),
		idToWord:  make(map[int]string),
	}
	for id, tok := range []string{PadToken, UnkToken, BosToken, EosToken} {
		t.wordToID[tok] = id
		t.idToWord[id] = tok
	}
	return t, nil
}

// tokenize lowercases text and splits it into word and punctuation tokens.
func tokenize(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// Tokens exposes the raw token split, used by the attention visualization to
// label heatmap axes.
func Tokens(text string) []string {
	return tokenize(text)
}

// BuildVocab constructs the vocabulary from a training corpus. Tokens are
// ranked by descending frequency (ties broken by first appearance) and the
// top vocabSize-4 receive ids after the reserved special tokens.
func (t *Tokenizer) BuildVocab(texts []string) {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)

	pos := 0
	for _, text := range texts {
		for _, tok := range tokenize(text) {
			if _, seen := counts[tok]; !seen {
				firstSeen[tok] = pos
			}
			counts[tok]++
			pos++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return firstSeen[words[i]] < firstSeen[words[j]]
	})

	if keep := t.vocabSize - numSpecialTokens; len(words) > keep {
		words = words[:keep]
	}

	for _, w := range words {
		id := len(t.wordToID)
		t.wordToID[w] = id
		t.idToWord[id] = w
	}
}

// Encode converts text to token ids, substituting UnkID for tokens outside
// the vocabulary. When addSpecialTokens is true the sequence is wrapped with
// BOS and EOS.
func (t *Tokenizer) Encode(text string, addSpecialTokens bool) []int {
	tokens := tokenize(text)
	ids := make([]int, 0, len(tokens)+2)

	if addSpecialTokens {
		ids = append(ids, BosID)
	}
	for _, tok := range tokens {
		id, ok := t.wordToID[tok]
		if !ok {
			id = UnkID
		}
		ids = append(ids, id)
	}
	if addSpecialTokens {
		ids = append(ids, EosID)
	}
	return ids
}

// Decode converts token ids back to text, joining tokens with spaces.
// When skipSpecialTokens is true, PAD/BOS/EOS are dropped; UNK is kept so
// out-of-vocabulary positions stay visible in the output.
func (t *Tokenizer) Decode(ids []int, skipSpecialTokens bool) string {
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		if skipSpecialTokens && (id == PadID || id == BosID || id == EosID) {
			continue
		}
		w, ok := t.idToWord[id]
		if !ok {
			w = UnkToken
		}
		tokens = append(tokens, w)
	}
	return strings.Join(tokens, " ")
}

// Len returns the number of entries currently in the vocabulary, including
// the special tokens.
func (t *Tokenizer) Len() int {
	return len(t.wordToID)
}

// VocabSize returns the configured vocabulary capacity.
func (t *Tokenizer) VocabSize() int {
	return t.vocabSize
}

// vocabFile is the on-disk vocabulary format. idx_to_word is keyed by
// decimal strings because the trained artifacts store it that way.
type vocabFile struct {
	VocabSize int               `json:"vocab_size"`
	WordToIdx map[string]int    `json:"word_to_idx"`
	IdxToWord map[string]string `json:"idx_to_word"`
}

// Save writes the vocabulary as JSON.
func (t *Tokenizer) Save(path string) error {
	vf := vocabFile{
		VocabSize: t.vocabSize,
		WordToIdx: t.wordToID,
		IdxToWord: make(map[string]string, len(t.idToWord)),
	}
	for id, w := range t.idToWord {
		vf.IdxToWord[strconv.Itoa(id)] = w
	}

	data, err := json.Marshal(vf)
	if err != nil {
		return fmt.Errorf("tokenizer: failed to marshal vocabulary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("tokenizer: failed to write vocabulary: %w", err)
	}
	return nil
}

// Load reads a vocabulary JSON file written by Save (or by the original
// training pipeline, which uses the same format).
func Load(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: failed to read vocabulary: %w", err)
	}

	var vf vocabFile
	if err := json.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("tokenizer: failed to parse vocabulary: %w", err)
	}

	t, err := New(vf.VocabSize)
	if err != nil {
		return nil, err
	}
	for w, id := range vf.WordToIdx {
		t.wordToID[w] = id
	}
	for key, w := range vf.IdxToWord {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("tokenizer: invalid vocabulary id %q: %w", key, err)
		}
		t.idToWord[id] = w
	}
	return t, nil
}
