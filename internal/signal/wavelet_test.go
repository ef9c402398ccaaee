package signal

import (
	"math"
	"testing"
)

func TestWaveletBandLayout(t *testing.T) {
	values := make([]float64, 128)
	for i := range values {
		values[i] = math.Sin(0.2 * float64(i))
	}

	bands := waveletDecompose(values, 2)
	if len(bands) != 3 {
		t.Fatalf("got %d bands, want 3", len(bands))
	}
	// Band lengths follow floor((n+7)/2) per level for the 8-tap filter:
	// 128 -> 67 -> 37.
	if len(bands[2]) != 67 {
		t.Errorf("finest detail band has %d coefficients, want 67", len(bands[2]))
	}
	if len(bands[1]) != 37 {
		t.Errorf("mid detail band has %d coefficients, want 37", len(bands[1]))
	}
	if len(bands[0]) != 37 {
		t.Errorf("approximation band has %d coefficients, want 37", len(bands[0]))
	}
}

func TestWaveletConstantSeries(t *testing.T) {
	values := make([]float64, 64)
	for i := range values {
		values[i] = 5.0
	}

	bands := waveletDecompose(values, 2)

	// The db4 high-pass filter annihilates constants, so all detail
	// energy vanishes; the approximation carries the full signal.
	for lvl := 1; lvl < len(bands); lvl++ {
		if e := bandEnergy(bands[lvl]); e > 1e-18 {
			t.Errorf("detail band %d energy = %v, want ~0", lvl, e)
		}
	}
	if e := bandEnergy(bands[0]); e <= 0 {
		t.Errorf("approximation energy = %v, want > 0", e)
	}
}

func TestSymmetricExtension(t *testing.T) {
	x := []float64{1, 2, 3}
	cases := []struct {
		idx  int
		want float64
	}{
		{-1, 1}, {-2, 2}, {0, 1}, {2, 3}, {3, 3}, {4, 2}, {5, 1},
	}
	for _, c := range cases {
		if got := symmetricAt(x, c.idx); got != c.want {
			t.Errorf("symmetricAt(%d) = %v, want %v", c.idx, got, c.want)
		}
	}
}
