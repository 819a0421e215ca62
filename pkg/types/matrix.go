package types

import (
	"fmt"
	"math"
	"math/rand"
)

// Matrix is a dense row-major matrix of float64 values.
// Rows and columns are derived from the stored rows; every row has the same length.
type Matrix struct {
	data [][]float64
}

// NewMatrix creates a matrix from a copy of rows.
func NewMatrix(rows [][]float64) (*Matrix, error) {
	data := make([][]float64, len(rows))
	for i, row := range rows {
		if i > 0 && len(row) != len(rows[0]) {
			return nil, fmt.Errorf("ragged matrix: row %d has %d columns, expected %d", i, len(row), len(rows[0]))
		}
		data[i] = append([]float64(nil), row...)
	}
	return &Matrix{data: data}, nil
}

// MustMatrix is like NewMatrix but panics on ragged input.
func MustMatrix(rows [][]float64) *Matrix {
	m, err := NewMatrix(rows)
	if err != nil {
		panic(err)
	}
	return m
}

// Zeros returns a rows x cols matrix of zeros.
func Zeros(rows, cols int) *Matrix {
	data := make([][]float64, rows)
	for i := range data {
		data[i] = make([]float64, cols)
	}
	return &Matrix{data: data}
}

// Identity returns the n x n identity matrix.
func Identity(n int) *Matrix {
	m := Zeros(n, n)
	for i := 0; i < n; i++ {
		m.data[i][i] = 1
	}
	return m
}

// Random returns a rows x cols matrix with entries drawn uniformly from [0, 1).
func Random(rows, cols int, rng *rand.Rand) *Matrix {
	m := Zeros(rows, cols)
	for i := range m.data {
		for j := range m.data[i] {
			m.data[i][j] = rng.Float64()
		}
	}
	return m
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int {
	return len(m.data)
}

// Cols returns the number of columns. An empty matrix has zero columns.
func (m *Matrix) Cols() int {
	if len(m.data) == 0 {
		return 0
	}
	return len(m.data[0])
}

// At returns the element at (i, j).
func (m *Matrix) At(i, j int) float64 {
	return m.data[i][j]
}

// Row returns row i. The slice is shared with the matrix and must be treated as read-only.
func (m *Matrix) Row(i int) []float64 {
	return m.data[i]
}

// SetRow replaces row i with a copy of values.
func (m *Matrix) SetRow(i int, values []float64) error {
	if i < 0 || i >= len(m.data) {
		return fmt.Errorf("row index %d out of range [0, %d)", i, len(m.data))
	}
	if len(values) != len(m.data[i]) {
		return fmt.Errorf("row %d: got %d values, expected %d", i, len(values), len(m.data[i]))
	}
	copy(m.data[i], values)
	return nil
}

// ToRows returns a deep copy of the matrix rows.
func (m *Matrix) ToRows() [][]float64 {
	out := make([][]float64, len(m.data))
	for i, row := range m.data {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Shape returns rows and columns as a printable string, e.g. "3x4".
func (m *Matrix) Shape() string {
	return fmt.Sprintf("%dx%d", m.Rows(), m.Cols())
}

// EqualWithin reports whether m and other have the same shape and every pair of elements
// agrees within the relative tolerance tol. A tolerance of 0 requires exact equality.
func (m *Matrix) EqualWithin(other *Matrix, tol float64) bool {
	if other == nil || m.Rows() != other.Rows() || m.Cols() != other.Cols() {
		return false
	}
	for i := range m.data {
		for j, a := range m.data[i] {
			if !closeEnough(a, other.data[i][j], tol) {
				return false
			}
		}
	}
	return true
}

func closeEnough(a, b, tol float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale < 1 {
		scale = 1
	}
	return diff <= tol*scale
}

// CheckMultiplicable validates that a (m x n) and b (n x p) can be multiplied.
func CheckMultiplicable(a, b *Matrix) error {
	if a == nil || b == nil {
		return fmt.Errorf("%w: nil operand", ErrDimensionMismatch)
	}
	if a.Cols() != b.Rows() {
		return &DimensionMismatchError{
			ARows: a.Rows(), ACols: a.Cols(),
			BRows: b.Rows(), BCols: b.Cols(),
		}
	}
	return nil
}
