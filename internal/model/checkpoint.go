package model

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/x448/float16"

	"github.com/mckdm/transformer-serverless/internal/tensor"
)

// DType selects the on-disk element encoding for checkpoint tensors.
//
// F16 halves the artifact size, which matters for the Lambda cold-start
// path: the checkpoint is downloaded from S3 on every new execution
// environment. Weights are float64 in memory either way.
type DType string

const (
	F64 DType = "f64"
	F16 DType = "f16"
)

// checkpointHeader is the JSON header at the front of a checkpoint file.
type checkpointHeader struct {
	Config Config `json:"config"`
	DType  DType  `json:"dtype"`
}

// parameters returns all learned tensors in their fixed serialization order.
// Save and Load both iterate this list, so the order is the file format.
func (m *Model) parameters() []*tensor.Tensor {
	params := []*tensor.Tensor{m.tokEmbed}
	for _, l := range m.layers {
		params = append(params,
			l.attn.wq, l.attn.bq,
			l.attn.wk, l.attn.bk,
			l.attn.wv, l.attn.bv,
			l.attn.wo, l.attn.bo,
			l.ln1.gamma, l.ln1.beta,
			l.ff.w1, l.ff.b1,
			l.ff.w2, l.ff.b2,
			l.ln2.gamma, l.ln2.beta,
		)
	}
	return append(params, m.lmW, m.lmB)
}

// Save writes the model to path: a uint32 little-endian header length, the
// JSON header (config + dtype), then every parameter tensor in order.
func (m *Model) Save(path string, dtype DType) error {
	if dtype != F64 && dtype != F16 {
		return fmt.Errorf("model: unknown checkpoint dtype %q", dtype)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("model: failed to create checkpoint: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	headerJSON, err := json.Marshal(checkpointHeader{Config: m.cfg, DType: dtype})
	if err != nil {
		return fmt.Errorf("model: failed to marshal checkpoint header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(headerJSON))); err != nil {
		return fmt.Errorf("model: failed to write header length: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("model: failed to write header: %w", err)
	}

	for i, p := range m.parameters() {
		if err := writeTensor(w, p, dtype); err != nil {
			return fmt.Errorf("model: failed to write parameter %d: %w", i, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("model: failed to flush checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint written by Save. The model is reconstructed from
// the header config, so the caller needs no prior knowledge of the
// hyperparameters.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("model: failed to open checkpoint: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var headerLen uint32
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("model: failed to read header length: %w", err)
	}

	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("model: failed to read header: %w", err)
	}

	var hdr checkpointHeader
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return nil, fmt.Errorf("model: failed to parse checkpoint header: %w", err)
	}
	if hdr.DType != F64 && hdr.DType != F16 {
		return nil, fmt.Errorf("model: unknown checkpoint dtype %q", hdr.DType)
	}

	m, err := New(hdr.Config, 0)
	if err != nil {
		return nil, fmt.Errorf("model: invalid checkpoint config: %w", err)
	}

	for i, p := range m.parameters() {
		if err := readTensor(r, p, hdr.DType); err != nil {
			return nil, fmt.Errorf("model: failed to read parameter %d: %w", i, err)
		}
	}

	return m, nil
}

func writeTensor(w io.Writer, t *tensor.Tensor, dtype DType) error {
	if dtype == F64 {
		return binary.Write(w, binary.LittleEndian, t.Data())
	}

	bits := make([]uint16, t.Size())
	for i, v := range t.Data() {
		bits[i] = float16.Fromfloat32(float32(v)).Bits()
	}
	return binary.Write(w, binary.LittleEndian, bits)
}

func readTensor(r io.Reader, t *tensor.Tensor, dtype DType) error {
	if dtype == F64 {
		return binary.Read(r, binary.LittleEndian, t.Data())
	}

	bits := make([]uint16, t.Size())
	if err := binary.Read(r, binary.LittleEndian, bits); err != nil {
		return err
	}
	data := t.Data()
	for i, b := range bits {
		data[i] = float64(float16.Frombits(b).Float32())
	}
	return nil
}
