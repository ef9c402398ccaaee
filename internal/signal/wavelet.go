package signal

// Daubechies-4 decomposition filter taps (low-pass). The high-pass taps
// are the quadrature mirror of these.
var db4Low = []float64{
	-0.010597401784997278,
	0.032883011666982945,
	0.030841381835986965,
	-0.18703481171888114,
	-0.02798376941698385,
	0.6308807679295904,
	0.7148465705525415,
	0.23037781330885523,
}

// waveletDecompose runs a multi-level db4 discrete wavelet transform with
// symmetric signal extension and returns the coefficient bands ordered
// [approx_L, detail_L, detail_L-1, ..., detail_1], matching the usual
// wavedec layout.
func waveletDecompose(values []float64, levels int) [][]float64 {
	high := make([]float64, len(db4Low))
	for i, c := range db4Low {
		sign := 1.0
		if i%2 == 0 {
			sign = -1.0
		}
		high[len(db4Low)-1-i] = sign * c
	}

	bands := make([][]float64, levels+1)
	approx := values
	for lvl := levels; lvl >= 1; lvl-- {
		a := convolveDown(approx, db4Low)
		d := convolveDown(approx, high)
		bands[lvl] = d
		approx = a
	}
	bands[0] = approx
	return bands
}

// convolveDown convolves the symmetric extension of x with the filter
// and keeps every second output sample, starting at the second position
// of the full convolution. Each band therefore holds
// floor((len(x)+len(filter)-1)/2) coefficients, the standard wavedec
// band length.
func convolveDown(x, filter []float64) []float64 {
	n := len(x)
	fl := len(filter)
	outLen := (n + fl - 1) / 2
	out := make([]float64, 0, outLen)

	for k := 1; k < n+fl-1; k += 2 {
		var sum float64
		for j := 0; j < fl; j++ {
			sum += filter[j] * symmetricAt(x, k-j)
		}
		out = append(out, sum)
	}
	return out
}

// symmetricAt indexes x with half-point symmetric boundary extension
// (... x1 x0 | x0 x1 ... xn-1 | xn-1 xn-2 ...).
func symmetricAt(x []float64, i int) float64 {
	n := len(x)
	if n == 1 {
		return x[0]
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return x[i]
}

// bandEnergy is the sum of squared coefficients in one band.
func bandEnergy(band []float64) float64 {
	var e float64
	for _, c := range band {
		e += c * c
	}
	return e
}
