package tokenizer

import (
	"path/filepath"
	"reflect"
	"testing"
)

func buildTestTokenizer(t *testing.T) *Tokenizer {
	t.Helper()

	tok, err := New(100)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	tok.BuildVocab([]string{
		"the quick brown fox jumps over the lazy dog .",
		"the dog sleeps .",
		"a fox runs !",
	})
	return tok
}

func TestNewRejectsTinyVocab(t *testing.T) {
	if _, err := New(4); err == nil {
		t.Fatal("expected error for vocab size <= number of special tokens")
	}
}

func TestSpecialTokenIDsAreReserved(t *testing.T) {
	tok := buildTestTokenizer(t)

	// "the" is the most frequent token, so it gets the first free id.
	ids := tok.Encode("the", false)
	if len(ids) != 1 || ids[0] != numSpecialTokens {
		t.Errorf("most frequent token got id %v, want [%d]", ids, numSpecialTokens)
	}
}

func TestEncodeAddsSpecialTokens(t *testing.T) {
	tok := buildTestTokenizer(t)

	ids := tok.Encode("the dog", true)
	if ids[0] != BosID {
		t.Errorf("first id = %d, want BOS (%d)", ids[0], BosID)
	}
	if ids[len(ids)-1] != EosID {
		t.Errorf("last id = %d, want EOS (%d)", ids[len(ids)-1], EosID)
	}

	plain := tok.Encode("the dog", false)
	if len(plain) != len(ids)-2 {
		t.Errorf("expected %d ids without specials, got %d", len(ids)-2, len(plain))
	}
}

func TestUnknownTokensMapToUnk(t *testing.T) {
	tok := buildTestTokenizer(t)

	ids := tok.Encode("the zeppelin", false)
	if ids[1] != UnkID {
		t.Errorf("out-of-vocabulary token got id %d, want UNK (%d)", ids[1], UnkID)
	}

	decoded := tok.Decode(ids, true)
	if decoded != "the <UNK>" {
		t.Errorf("decoded = %q, want %q", decoded, "the <UNK>")
	}
}

func TestRoundTripInVocabText(t *testing.T) {
	tok := buildTestTokenizer(t)

	// All tokens are in the vocabulary; tokenization lowercases, so the
	// round trip equals the lowercased, space-joined token stream.
	text := "The quick fox jumps !"
	got := tok.Decode(tok.Encode(text, true), true)
	want := "the quick fox jumps !"
	if got != want {
		t.Errorf("round trip = %q, want %q", got, want)
	}
}

func TestPunctuationSplitting(t *testing.T) {
	got := Tokens("Hello, world! It's 42.")
	want := []string{"hello", ",", "world", "!", "it", "'", "s", "42", "."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokens = %v, want %v", got, want)
	}
}

func TestVocabCapped(t *testing.T) {
	tok, err := New(6)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	tok.BuildVocab([]string{"a a a b b c d e f"})

	// Capacity 6 leaves room for two real tokens: the two most frequent.
	if tok.Len() != 6 {
		t.Fatalf("vocab has %d entries, want 6", tok.Len())
	}
	if ids := tok.Encode("a b", false); ids[0] == UnkID || ids[1] == UnkID {
		t.Errorf("most frequent tokens should be in vocab, got %v", ids)
	}
	if ids := tok.Encode("f", false); ids[0] != UnkID {
		t.Errorf("dropped token should map to UNK, got %v", ids)
	}
}

func TestFrequencyTieBrokenByFirstAppearance(t *testing.T) {
	tok, err := New(7)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	tok.BuildVocab([]string{"zebra apple zebra apple mango"})

	// zebra and apple both appear twice; zebra appeared first.
	if ids := tok.Encode("zebra", false); ids[0] != numSpecialTokens {
		t.Errorf("zebra got id %d, want %d", ids[0], numSpecialTokens)
	}
	if ids := tok.Encode("apple", false); ids[0] != numSpecialTokens+1 {
		t.Errorf("apple got id %d, want %d", ids[0], numSpecialTokens+1)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tok := buildTestTokenizer(t)
	path := filepath.Join(t.TempDir(), "vocab.json")

	if err := tok.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Len() != tok.Len() {
		t.Fatalf("loaded vocab has %d entries, want %d", loaded.Len(), tok.Len())
	}
	if loaded.VocabSize() != tok.VocabSize() {
		t.Errorf("loaded vocab size %d, want %d", loaded.VocabSize(), tok.VocabSize())
	}

	text := "the lazy dog sleeps ."
	want := tok.Encode(text, true)
	got := loaded.Encode(text, true)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("loaded tokenizer encodes %v, want %v", got, want)
	}
	if loaded.Decode(want, true) != tok.Decode(want, true) {
		t.Errorf("loaded tokenizer decodes differently")
	}
}

func TestDecodeKeepsSpecialsWhenAsked(t *testing.T) {
	tok := buildTestTokenizer(t)

	ids := tok.Encode("the dog", true)
	full := tok.Decode(ids, false)
	if full != "<BOS> the dog <EOS>" {
		t.Errorf("decode with specials = %q", full)
	}
}
