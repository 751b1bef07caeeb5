package ml

import (
	"errors"
	"math"
)

var ErrSingularMatrix = errors.New("singular feature matrix")

// LinearRegression fits an ordinary least squares model by solving the
// normal equations directly. A tiny ridge term keeps the system solvable
// when features are collinear.
type LinearRegression struct {
	W     []float64 // weights, one per feature
	b     float64   // intercept
	Ridge float64
}

func NewLinearRegression() *LinearRegression {
	return &LinearRegression{Ridge: 1e-9}
}

func (m *LinearRegression) Fit(X [][]float64, y []float64) error {
	p, err := validateFit(X, y)
	if err != nil {
		return err
	}

	// Augment with an intercept column and build the (p+1)x(p+1) system
	// A w = v where A = X'X and v = X'y.
	dim := p + 1
	A := make([][]float64, dim)
	for i := range A {
		A[i] = make([]float64, dim)
	}
	v := make([]float64, dim)

	row := make([]float64, dim)
	for i := range X {
		copy(row, X[i])
		row[p] = 1
		for a := 0; a < dim; a++ {
			for b := 0; b < dim; b++ {
				A[a][b] += row[a] * row[b]
			}
			v[a] += row[a] * y[i]
		}
	}
	for a := 0; a < dim; a++ {
		A[a][a] += m.Ridge
	}

	w, err := solve(A, v)
	if err != nil {
		return err
	}

	m.W = w[:p]
	m.b = w[p]
	return nil
}

func (m *LinearRegression) Predict(x []float64) float64 {
	sum := m.b
	for j, v := range x {
		if j >= len(m.W) {
			break
		}
		sum += m.W[j] * v
	}
	return sum
}

// FeatureImportance reports coefficient magnitudes, matching the abs(coef_)
// convention used for linear models.
func (m *LinearRegression) FeatureImportance() []float64 {
	if m.W == nil {
		return nil
	}
	out := make([]float64, len(m.W))
	for i, w := range m.W {
		out[i] = math.Abs(w)
	}
	return out
}

// Bias returns the fitted intercept.
func (m *LinearRegression) Bias() float64 { return m.b }

// solve performs Gaussian elimination with partial pivoting on a copy of A.
func solve(A [][]float64, v []float64) ([]float64, error) {
	n := len(A)
	M := make([][]float64, n)
	for i := range M {
		M[i] = append(append([]float64(nil), A[i]...), v[i])
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(M[r][col]) > math.Abs(M[pivot][col]) {
				pivot = r
			}
		}
		M[col], M[pivot] = M[pivot], M[col]

		if M[col][col] == 0 {
			return nil, ErrSingularMatrix
		}

		for r := col + 1; r < n; r++ {
			f := M[r][col] / M[col][col]
			for c := col; c <= n; c++ {
				M[r][c] -= f * M[col][c]
			}
		}
	}

	w := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		s := M[r][n]
		for c := r + 1; c < n; c++ {
			s -= M[r][c] * w[c]
		}
		w[r] = s / M[r][r]
	}
	return w, nil
}
