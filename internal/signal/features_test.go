package signal

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/glucolumin/glucolumin/internal/testutil"
)

func TestExtractDeterministic(t *testing.T) {
	values := testutil.SyntheticScan(300, 42)

	first, err := Extract(values, DefaultConfig())
	testutil.AssertNoError(t, err)
	second, err := Extract(values, DefaultConfig())
	testutil.AssertNoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated extraction differs (-first +second):\n%s", diff)
	}
}

func TestExtractFeatureValues(t *testing.T) {
	values := testutil.SyntheticScan(300, 42)

	f, err := Extract(values, DefaultConfig())
	testutil.AssertNoError(t, err)

	// The fixture oscillates around 94 with amplitude ~5 plus unit noise.
	if f.Mean < 90 || f.Mean > 98 {
		t.Errorf("mean = %v, want near 94", f.Mean)
	}
	if f.Std <= 0 || f.Std > 6 {
		t.Errorf("std = %v, want in (0, 6]", f.Std)
	}
	if f.RMS < f.Mean {
		t.Errorf("rms %v should not be below mean %v for a positive series", f.RMS, f.Mean)
	}
	if f.PeakToPeak <= 0 {
		t.Errorf("peak_to_peak = %v, want > 0", f.PeakToPeak)
	}
	if f.FFTPeak1Power < f.FFTPeak2Power {
		t.Errorf("peak powers out of order: %v < %v", f.FFTPeak1Power, f.FFTPeak2Power)
	}
	// Entropy of a normalised distribution over 150 bins lies in [0, ln 150].
	if f.SpectralEntropy < 0 || f.SpectralEntropy > math.Log(150) {
		t.Errorf("spectral entropy = %v out of range", f.SpectralEntropy)
	}
	if f.WaveletEnergyLow <= f.WaveletEnergyHigh {
		t.Errorf("smoothed series should hold most energy in the approximation band: low=%v high=%v",
			f.WaveletEnergyLow, f.WaveletEnergyHigh)
	}
}

func TestExtractVectorOrder(t *testing.T) {
	f := &Features{
		Mean: 1, Std: 2, RMS: 3, PeakToPeak: 4,
		FFTPeak1Power: 5, FFTPeak2Power: 6, SpectralEntropy: 7,
		WaveletEnergyLow: 8, WaveletEnergyMid: 9, WaveletEnergyHigh: 10,
	}
	vec := f.Vector()
	if len(vec) != len(FeatureNames) {
		t.Fatalf("vector length %d, want %d", len(vec), len(FeatureNames))
	}
	for i, v := range vec {
		if v != float64(i+1) {
			t.Errorf("position %d (%s) = %v, want %v", i, FeatureNames[i], v, float64(i+1))
		}
	}
}

func TestExtractInsufficientSamples(t *testing.T) {
	values := testutil.SyntheticScan(10, 1)
	_, err := Extract(values, DefaultConfig())
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Fatalf("err = %v, want ErrInsufficientSamples", err)
	}
}

func TestExtractNonFiniteInput(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		values := testutil.SyntheticScan(100, 7)
		values[50] = bad
		_, err := Extract(values, DefaultConfig())
		if !errors.Is(err, ErrSignalProcessing) {
			t.Errorf("value %v: err = %v, want ErrSignalProcessing", bad, err)
		}
	}
}

func TestExtractAutoCalibration(t *testing.T) {
	// Low-voltage photodiode output sits near 0.15; the extractor scales
	// it into the working range before filtering.
	raw := testutil.SyntheticScan(300, 42)
	low := make([]float64, len(raw))
	for i, v := range raw {
		low[i] = v / 660.0
	}

	fromRaw, err := Extract(raw, DefaultConfig())
	testutil.AssertNoError(t, err)
	fromLow, err := Extract(low, DefaultConfig())
	testutil.AssertNoError(t, err)

	if math.Abs(fromRaw.Mean-fromLow.Mean) > 1e-6 {
		t.Errorf("calibrated mean = %v, want %v", fromLow.Mean, fromRaw.Mean)
	}
}

func TestExtractBadFilterConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SavgolWindow = 8
	_, err := Extract(testutil.SyntheticScan(100, 1), cfg)
	if !errors.Is(err, ErrSignalProcessing) {
		t.Fatalf("err = %v, want ErrSignalProcessing", err)
	}
}
