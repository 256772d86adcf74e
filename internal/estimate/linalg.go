package estimate

import (
	"math"

	"github.com/rotisserie/eris"
)

// singularTol is the smallest pivot magnitude accepted during elimination.
const singularTol = 1e-12

// LeastSquares solves min ||X·β − y||² + ridge·||β||² via the normal
// equations. X is row-major with one row per observation.
func LeastSquares(x [][]float64, y []float64, ridge float64) ([]float64, error) {
	if len(x) == 0 {
		return nil, eris.New("estimate: least squares with no observations")
	}
	if len(x) != len(y) {
		return nil, eris.Errorf("estimate: least squares shape mismatch (%d rows, %d targets)", len(x), len(y))
	}
	p := len(x[0])
	a := make([][]float64, p)
	for i := range a {
		a[i] = make([]float64, p)
	}
	b := make([]float64, p)

	for r, row := range x {
		if len(row) != p {
			return nil, eris.Errorf("estimate: least squares row %d has %d columns, want %d", r, len(row), p)
		}
		for i := 0; i < p; i++ {
			b[i] += row[i] * y[r]
			for j := 0; j < p; j++ {
				a[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 0; i < p; i++ {
		a[i][i] += ridge
	}

	return solve(a, b)
}

// solve performs Gaussian elimination with partial pivoting on a·β = b.
// Both inputs are overwritten.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < singularTol {
			return nil, eris.Errorf("estimate: singular system at column %d", col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			if f == 0 {
				continue
			}
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}

	out := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		s := b[r]
		for c := r + 1; c < n; c++ {
			s -= a[r][c] * out[c]
		}
		out[r] = s / a[r][r]
	}
	return out, nil
}
