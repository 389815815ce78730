package model

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckpointRoundTripF64(t *testing.T) {
	m := newTestModel(t)
	path := filepath.Join(t.TempDir(), "model.bin")

	if err := m.Save(path, F64); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.cfg != m.cfg {
		t.Fatalf("loaded config %+v, want %+v", loaded.cfg, m.cfg)
	}

	orig := m.parameters()
	got := loaded.parameters()
	for i := range orig {
		a, b := orig[i].Data(), got[i].Data()
		for j := range a {
			if a[j] != b[j] {
				t.Fatalf("parameter %d differs at %d: %g vs %g", i, j, a[j], b[j])
			}
		}
	}
}

func TestCheckpointRoundTripF16(t *testing.T) {
	m := newTestModel(t)
	path := filepath.Join(t.TempDir(), "model_f16.bin")

	if err := m.Save(path, F16); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Half precision loses mantissa bits; weights are ~0.02 so absolute
	// error stays well under 1e-3.
	orig := m.parameters()
	got := loaded.parameters()
	for i := range orig {
		a, b := orig[i].Data(), got[i].Data()
		for j := range a {
			if math.Abs(a[j]-b[j]) > 1e-3 {
				t.Fatalf("parameter %d differs at %d beyond f16 tolerance: %g vs %g",
					i, j, a[j], b[j])
			}
		}
	}
}

func TestCheckpointF16IsSmaller(t *testing.T) {
	m := newTestModel(t)
	dir := t.TempDir()
	p64 := filepath.Join(dir, "m64.bin")
	p16 := filepath.Join(dir, "m16.bin")

	if err := m.Save(p64, F64); err != nil {
		t.Fatalf("Save f64 failed: %v", err)
	}
	if err := m.Save(p16, F16); err != nil {
		t.Fatalf("Save f16 failed: %v", err)
	}

	s64, err := os.Stat(p64)
	if err != nil {
		t.Fatal(err)
	}
	s16, err := os.Stat(p16)
	if err != nil {
		t.Fatal(err)
	}

	if s16.Size() >= s64.Size() {
		t.Errorf("f16 checkpoint (%d bytes) not smaller than f64 (%d bytes)",
			s16.Size(), s64.Size())
	}
}

func TestLoadedModelForwardMatches(t *testing.T) {
	m := newTestModel(t)
	path := filepath.Join(t.TempDir(), "model.bin")

	if err := m.Save(path, F64); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	ids := []int{4, 5, 6, 7}
	want, _, err := m.Forward(ids)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	got, _, err := loaded.Forward(ids)
	if err != nil {
		t.Fatalf("Forward on loaded model failed: %v", err)
	}

	for i := 0; i < len(ids); i++ {
		for j := 0; j < m.cfg.VocabSize; j++ {
			if want.At(i, j) != got.At(i, j) {
				t.Fatalf("loaded model logits differ at (%d,%d)", i, j)
			}
		}
	}
}

func TestSaveRejectsUnknownDType(t *testing.T) {
	m := newTestModel(t)
	if err := m.Save(filepath.Join(t.TempDir(), "x.bin"), DType("f8")); err == nil {
		t.Fatal("expected error for unknown dtype")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.bin")); err == nil {
		t.Fatal("expected error for missing checkpoint")
	}
}

func TestLoadRejectsTruncatedCheckpoint(t *testing.T) {
	m := newTestModel(t)
	path := filepath.Join(t.TempDir(), "model.bin")
	if err := m.Save(path, F64); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)/2], 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for truncated checkpoint")
	}
}
