// Package tensor provides the small dense-matrix arithmetic the transformer
// forward pass is built on. Tensors are row-major float64 arrays; matrix
// multiplication is delegated to gonum, everything else is plain loops.
package tensor

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Tensor represents a multi-dimensional array of float64 values stored in
// row-major (C-contiguous) order.
//
// Tensor is not safe for concurrent use. Synchronization must be handled by
// the caller if needed.
type Tensor struct {
	data  []float64
	shape []int
}

// New creates a tensor with the given shape, initialized to zero.
// Panics if shape is invalid (empty or contains non-positive dimensions);
// shape errors are programmer bugs, not runtime conditions.
func New(shape ...int) *Tensor {
	if len(shape) == 0 {
		panic("tensor: shape cannot be empty")
	}

	size := 1
	for i, dim := range shape {
		if dim <= 0 {
			panic(fmt.Sprintf("tensor: shape[%d] must be positive, got %d", i, dim))
		}
		size *= dim
	}

	// Copy shape slice to prevent external mutation.
	shapeCopy := make([]int, len(shape))
	copy(shapeCopy, shape)

	return &Tensor{
		data:  make([]float64, size),
		shape: shapeCopy,
	}
}

// NewNormal creates a tensor with values drawn from a normal distribution
// with mean 0 and the given standard deviation. Transformer weights are
// conventionally initialized with std 0.02.
func NewNormal(rng *rand.Rand, std float64, shape ...int) *Tensor {
	t := New(shape...)
	for i := range t.data {
		t.data[i] = rng.NormFloat64() * std
	}
	return t
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	shape := make([]int, len(t.shape))
	copy(shape, t.shape)
	return shape
}

// Dims returns the number of dimensions (rank) of the tensor.
func (t *Tensor) Dims() int {
	return len(t.shape)
}

// Size returns the total number of elements in the tensor.
func (t *Tensor) Size() int {
	return len(t.data)
}

// Data returns the underlying flat storage. The slice is a live view, not a
// copy; callers that mutate it mutate the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// At returns the element at the given indices.
// Panics if indices are invalid.
func (t *Tensor) At(indices ...int) float64 {
	return t.data[t.flatIndex(indices)]
}

// Set stores value at the given indices.
// Panics if indices are invalid.
func (t *Tensor) Set(value float64, indices ...int) {
	t.data[t.flatIndex(indices)] = value
}

// Row returns row i of a 2D tensor as a live view into the backing array.
func (t *Tensor) Row(i int) []float64 {
	if len(t.shape) != 2 {
		panic("tensor: Row requires 2D tensor")
	}
	n := t.shape[1]
	return t.data[i*n : (i+1)*n]
}

// flatIndex converts multi-dimensional indices to a flat array offset.
func (t *Tensor) flatIndex(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: expected %d indices, got %d", len(t.shape), len(indices)))
	}

	idx := 0
	stride := 1
	for i := len(t.shape) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of bounds for dimension %d (size %d)",
				indices[i], i, t.shape[i]))
		}
		idx += indices[i] * stride
		stride *= t.shape[i]
	}
	return idx
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	out := New(t.shape...)
	copy(out.data, t.data)
	return out
}

// Reshape returns a tensor sharing the same data with a new shape.
// Panics if the element count differs.
func (t *Tensor) Reshape(newShape ...int) *Tensor {
	size := 1
	for _, dim := range newShape {
		size *= dim
	}
	if size != len(t.data) {
		panic(fmt.Sprintf("tensor: cannot reshape %v (%d elements) to %v (%d elements)",
			t.shape, len(t.data), newShape, size))
	}

	shapeCopy := make([]int, len(newShape))
	copy(shapeCopy, newShape)
	return &Tensor{data: t.data, shape: shapeCopy}
}

// String returns a compact description of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}

// Add performs element-wise addition: out = a + b.
// Panics if shapes don't match.
func Add(a, b *Tensor) *Tensor {
	if !shapeEqual(a.shape, b.shape) {
		panic(fmt.Sprintf("tensor: cannot add shapes %v and %v", a.shape, b.shape))
	}
	out := New(a.shape...)
	for i := range out.data {
		out.data[i] = a.data[i] + b.data[i]
	}
	return out
}

// Scale multiplies all elements by a scalar: out = a * scalar.
func Scale(a *Tensor, scalar float64) *Tensor {
	out := New(a.shape...)
	for i := range out.data {
		out.data[i] = a.data[i] * scalar
	}
	return out
}

// MatMul performs matrix multiplication C = A @ B through gonum's BLAS-backed
// mat.Dense. A must be (M, K), B must be (K, N); the result is (M, N).
func MatMul(a, b *Tensor) *Tensor {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		panic("tensor: MatMul requires 2D tensors")
	}
	m, k := a.shape[0], a.shape[1]
	kb, n := b.shape[0], b.shape[1]
	if k != kb {
		panic(fmt.Sprintf("tensor: cannot multiply (%d,%d) by (%d,%d)", m, k, kb, n))
	}

	out := New(m, n)
	// mat.NewDense wraps the slices without copying, so the product lands
	// directly in out's backing array.
	am := mat.NewDense(m, k, a.data)
	bm := mat.NewDense(kb, n, b.data)
	cm := mat.NewDense(m, n, out.data)
	cm.Mul(am, bm)
	return out
}

// Transpose returns the transpose of a 2D matrix: (M, N) -> (N, M).
func Transpose(a *Tensor) *Tensor {
	if len(a.shape) != 2 {
		panic("tensor: Transpose requires 2D tensor")
	}

	m, n := a.shape[0], a.shape[1]
	out := New(n, m)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			out.Set(a.At(i, j), j, i)
		}
	}
	return out
}

// GELU applies the Gaussian Error Linear Unit, the transformer feed-forward
// activation: GELU(x) = 0.5 * x * (1 + erf(x / √2)).
func GELU(x *Tensor) *Tensor {
	out := New(x.shape...)
	for i := range x.data {
		v := x.data[i]
		out.data[i] = 0.5 * v * (1.0 + math.Erf(v/math.Sqrt2))
	}
	return out
}

// Softmax converts each row of a 2D tensor to a probability distribution.
// Numerically stable: the row max is subtracted before exponentiation.
func Softmax(x *Tensor) *Tensor {
	if len(x.shape) != 2 {
		panic("tensor: Softmax requires 2D tensor")
	}

	rows, cols := x.shape[0], x.shape[1]
	out := New(rows, cols)

	for r := 0; r < rows; r++ {
		maxVal := x.At(r, 0)
		for c := 1; c < cols; c++ {
			if v := x.At(r, c); v > maxVal {
				maxVal = v
			}
		}

		sum := 0.0
		for c := 0; c < cols; c++ {
			e := math.Exp(x.At(r, c) - maxVal)
			out.Set(e, r, c)
			sum += e
		}

		for c := 0; c < cols; c++ {
			out.Set(out.At(r, c)/sum, r, c)
		}
	}
	return out
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
