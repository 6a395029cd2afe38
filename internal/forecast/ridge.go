package forecast

import (
	"fmt"
	"math"
)

// DefaultAlphaGrid is the regularization grid searched by expanding-window
// cross-validation when the configuration supplies none.
var DefaultAlphaGrid = []float64{0.001, 0.01, 0.1, 1.0, 10.0}

// linearFit holds the solved coefficients of one regularized regression.
type linearFit struct {
	coef      []float64
	intercept float64
}

func (f linearFit) predict(x []float64) float64 {
	v := f.intercept
	for j, c := range f.coef {
		v += c * x[j]
	}
	return v
}

// fitRidge solves an L2-regularized least squares system on centered
// inputs (the intercept is recovered from the column means and is not
// penalized). With alpha zero and a rank-deficient design matrix the fit
// fails with ErrSingularFit instead of returning degenerate coefficients.
func fitRidge(X [][]float64, y []float64, alpha float64) (linearFit, error) {
	return fitWeightedRidge(X, y, nil, alpha)
}

// fitWeightedRidge is fitRidge with optional per-row weights; it is the
// inner solver for both the point models and the IRLS quantile fits.
func fitWeightedRidge(X [][]float64, y []float64, w []float64, alpha float64) (linearFit, error) {
	n := len(X)
	if n == 0 || n != len(y) {
		return linearFit{}, fmt.Errorf("%w: empty or mismatched training slices", ErrDataContract)
	}
	p := len(X[0])
	if p == 0 {
		return linearFit{}, fmt.Errorf("%w: no features", ErrDataContract)
	}
	if alpha < 0 {
		return linearFit{}, fmt.Errorf("%w: negative regularization %g", ErrSingularFit, alpha)
	}

	// Weighted column means for centering.
	wsum := 0.0
	meansX := make([]float64, p)
	meanY := 0.0
	for i := 0; i < n; i++ {
		wi := 1.0
		if w != nil {
			wi = w[i]
		}
		wsum += wi
		for j := 0; j < p; j++ {
			meansX[j] += wi * X[i][j]
		}
		meanY += wi * y[i]
	}
	if wsum <= 0 {
		return linearFit{}, fmt.Errorf("%w: non-positive weight total", ErrSingularFit)
	}
	for j := 0; j < p; j++ {
		meansX[j] /= wsum
	}
	meanY /= wsum

	// Normal equations on centered data: (X'WX + alpha*I) beta = X'Wy.
	a := make([][]float64, p)
	b := make([]float64, p)
	for j := range a {
		a[j] = make([]float64, p)
	}
	for i := 0; i < n; i++ {
		wi := 1.0
		if w != nil {
			wi = w[i]
		}
		yc := y[i] - meanY
		for j := 0; j < p; j++ {
			xj := X[i][j] - meansX[j]
			b[j] += wi * xj * yc
			for k := j; k < p; k++ {
				a[j][k] += wi * xj * (X[i][k] - meansX[k])
			}
		}
	}
	for j := 0; j < p; j++ {
		a[j][j] += alpha
		for k := 0; k < j; k++ {
			a[j][k] = a[k][j]
		}
	}

	coef, err := solveSymmetric(a, b)
	if err != nil {
		return linearFit{}, err
	}

	intercept := meanY
	for j := 0; j < p; j++ {
		intercept -= coef[j] * meansX[j]
	}
	return linearFit{coef: coef, intercept: intercept}, nil
}

// solveSymmetric runs Gaussian elimination with partial pivoting. A
// vanishing pivot means the (regularized) system is singular.
func solveSymmetric(a [][]float64, b []float64) ([]float64, error) {
	p := len(a)
	m := make([][]float64, p)
	for i := range m {
		m[i] = make([]float64, p+1)
		copy(m[i], a[i])
		m[i][p] = b[i]
	}

	const pivotEps = 1e-12
	for col := 0; col < p; col++ {
		pivot := col
		for r := col + 1; r < p; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < pivotEps {
			return nil, fmt.Errorf("%w: design matrix is rank deficient (column %d)", ErrSingularFit, col)
		}
		m[col], m[pivot] = m[pivot], m[col]
		for r := col + 1; r < p; r++ {
			f := m[r][col] / m[col][col]
			for c := col; c <= p; c++ {
				m[r][c] -= f * m[col][c]
			}
		}
	}

	x := make([]float64, p)
	for row := p - 1; row >= 0; row-- {
		v := m[row][p]
		for c := row + 1; c < p; c++ {
			v -= m[row][c] * x[c]
		}
		x[row] = v / m[row][row]
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite solution", ErrSingularFit)
		}
	}
	return x, nil
}

// selectAlpha picks the regularization strength by expanding-window
// time-series cross-validation, minimizing RMSE. Folds are never
// shuffled: each fold trains on a prefix and scores on the segment that
// follows it. Ties and too-small windows resolve toward the strongest
// regularization, since the feature set is deliberately collinear.
func selectAlpha(X [][]float64, y []float64, grid []float64, splits int) float64 {
	if len(grid) == 0 {
		grid = DefaultAlphaGrid
	}
	if splits < 2 {
		splits = 2
	}
	n := len(X)
	// Need at least a few rows per segment for the CV to mean anything.
	if n < (splits+1)*4 {
		return grid[len(grid)-1]
	}

	seg := n / (splits + 1)
	best := grid[len(grid)-1]
	bestScore := math.Inf(1)
	for gi := len(grid) - 1; gi >= 0; gi-- {
		alpha := grid[gi]
		var sse float64
		var count int
		usable := true
		for k := 1; k <= splits; k++ {
			trainEnd := k * seg
			testEnd := (k + 1) * seg
			if k == splits {
				testEnd = n
			}
			fit, err := fitRidge(X[:trainEnd], y[:trainEnd], alpha)
			if err != nil {
				usable = false
				break
			}
			for i := trainEnd; i < testEnd; i++ {
				d := y[i] - fit.predict(X[i])
				sse += d * d
				count++
			}
		}
		if !usable || count == 0 {
			continue
		}
		score := math.Sqrt(sse / float64(count))
		if score < bestScore {
			bestScore = score
			best = alpha
		}
	}
	return best
}

// rmse is the root-mean-squared error between aligned slices.
func rmse(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	var sse float64
	for i := range actual {
		d := actual[i] - predicted[i]
		sse += d * d
	}
	return math.Sqrt(sse / float64(len(actual)))
}

