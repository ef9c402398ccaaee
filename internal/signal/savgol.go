package signal

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SavitzkyGolay smooths a series with a moving least-squares polynomial
// filter. Interior points use the centre row of the hat matrix for a
// window of length window and polynomial order order; the leading and
// trailing half-windows are smoothed by evaluating the polynomial fitted
// to the first/last full window at each edge position, so peak shape is
// preserved right up to the boundaries.
//
// window must be odd and at least order+2. Series shorter than the
// window are returned as a copy, unsmoothed.
func SavitzkyGolay(values []float64, window, order int) ([]float64, error) {
	if window%2 == 0 {
		return nil, fmt.Errorf("savgol window must be odd, got %d", window)
	}
	if window < order+2 {
		return nil, fmt.Errorf("savgol window %d too small for order %d", window, order)
	}

	n := len(values)
	out := make([]float64, n)
	copy(out, values)
	if n < window {
		return out, nil
	}

	hat, err := hatMatrix(window, order)
	if err != nil {
		return nil, err
	}

	half := window / 2

	// Leading edge: polynomial fitted to the first window, evaluated at
	// positions 0..half-1.
	for i := 0; i < half; i++ {
		out[i] = applyRow(hat, i, values[:window])
	}

	// Interior: centre row slid along the series.
	for i := half; i < n-half; i++ {
		out[i] = applyRow(hat, half, values[i-half:i-half+window])
	}

	// Trailing edge: polynomial fitted to the last window.
	for i := n - half; i < n; i++ {
		pos := window - (n - i)
		out[i] = applyRow(hat, pos, values[n-window:])
	}

	return out, nil
}

// hatMatrix returns H = A (AᵀA)⁻¹ Aᵀ for the Vandermonde design matrix A
// of a centred window, so H[p]·y evaluates the least-squares polynomial
// at window position p.
func hatMatrix(window, order int) (*mat.Dense, error) {
	m := order + 1
	a := mat.NewDense(window, m, nil)
	for i := 0; i < window; i++ {
		x := float64(i - window/2)
		p := 1.0
		for j := 0; j < m; j++ {
			a.Set(i, j, p)
			p *= x
		}
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)

	var inv mat.Dense
	if err := inv.Inverse(&ata); err != nil {
		return nil, fmt.Errorf("savgol design matrix is singular: %w", err)
	}

	var proj, hat mat.Dense
	proj.Mul(a, &inv)
	hat.Mul(&proj, a.T())
	return &hat, nil
}

func applyRow(hat *mat.Dense, row int, window []float64) float64 {
	var sum float64
	for j := range window {
		sum += hat.At(row, j) * window[j]
	}
	return sum
}
