// Package signal implements the signal-conditioning stage of the scan
// pipeline: a raw optical-sensor series is denoised and reduced to a
// fixed-order feature vector for the regression stage.
package signal

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/glucolumin/glucolumin/internal/monitoring"
)

// ErrInsufficientSamples is returned when a series is shorter than the
// configured minimum sample count.
var ErrInsufficientSamples = errors.New("insufficient samples")

// ErrSignalProcessing is returned when a series contains non-finite
// values or becomes structurally invalid during conditioning.
var ErrSignalProcessing = errors.New("signal processing error")

// FeatureNames is the canonical feature order. The loaded model artifact
// must list exactly these names in this order; the contract never varies
// across visits for a given artifact.
var FeatureNames = []string{
	"mean",
	"std",
	"rms",
	"peak_to_peak",
	"fft_peak1_power",
	"fft_peak2_power",
	"spectral_entropy",
	"wavelet_energy_low",
	"wavelet_energy_mid",
	"wavelet_energy_high",
}

// Config holds the tunable parameters of the conditioning stage.
type Config struct {
	// MinSamples is the minimum series length accepted.
	MinSamples int

	// SavgolWindow and SavgolOrder parameterise the smoothing filter.
	// Window must be odd and at least SavgolOrder+2.
	SavgolWindow int
	SavgolOrder  int

	// WaveletLevels is the depth of the db4 decomposition.
	WaveletLevels int

	// Raw series whose mean falls below AutoCalibrateBelow are scaled by
	// AutoCalibrateScale before filtering. Low-voltage sensor output
	// (~0.15V) maps into the glucose-like range this way.
	AutoCalibrateBelow float64
	AutoCalibrateScale float64
}

// DefaultConfig returns the production conditioning parameters.
func DefaultConfig() Config {
	return Config{
		MinSamples:         32,
		SavgolWindow:       11,
		SavgolOrder:        3,
		WaveletLevels:      2,
		AutoCalibrateBelow: 10.0,
		AutoCalibrateScale: 660.0,
	}
}

// Features is the fixed-order numeric summary of one conditioned series.
// Field order matches FeatureNames.
type Features struct {
	Mean              float64
	Std               float64
	RMS               float64
	PeakToPeak        float64
	FFTPeak1Power     float64
	FFTPeak2Power     float64
	SpectralEntropy   float64
	WaveletEnergyLow  float64
	WaveletEnergyMid  float64
	WaveletEnergyHigh float64
}

// Vector returns the feature values in FeatureNames order.
func (f *Features) Vector() []float64 {
	return []float64{
		f.Mean,
		f.Std,
		f.RMS,
		f.PeakToPeak,
		f.FFTPeak1Power,
		f.FFTPeak2Power,
		f.SpectralEntropy,
		f.WaveletEnergyLow,
		f.WaveletEnergyMid,
		f.WaveletEnergyHigh,
	}
}

// Extract conditions a raw series and computes its feature vector.
// The computation is deterministic and has no side effects beyond
// diagnostic logging.
func Extract(values []float64, cfg Config) (*Features, error) {
	if len(values) < cfg.MinSamples {
		return nil, fmt.Errorf("%w: got %d samples, need %d",
			ErrInsufficientSamples, len(values), cfg.MinSamples)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite value at sample %d", ErrSignalProcessing, i)
		}
	}

	series := make([]float64, len(values))
	copy(series, values)

	if m := stat.Mean(series, nil); cfg.AutoCalibrateScale > 0 && m < cfg.AutoCalibrateBelow {
		monitoring.Logf("[signal] low magnitude series (mean=%.4f), scaling by %.0fx",
			m, cfg.AutoCalibrateScale)
		for i := range series {
			series[i] *= cfg.AutoCalibrateScale
		}
	}

	smoothed, err := SavitzkyGolay(series, cfg.SavgolWindow, cfg.SavgolOrder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignalProcessing, err)
	}
	for i, v := range smoothed {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite value at sample %d after smoothing",
				ErrSignalProcessing, i)
		}
	}

	f := &Features{}

	// Time-domain statistics on the smoothed series.
	f.Mean = stat.Mean(smoothed, nil)
	f.Std = math.Sqrt(stat.PopVariance(smoothed, nil))
	minV, maxV := smoothed[0], smoothed[0]
	var sumSq float64
	for _, v := range smoothed {
		sumSq += v * v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	f.RMS = math.Sqrt(sumSq / float64(len(smoothed)))
	f.PeakToPeak = maxV - minV

	// Frequency-domain features over the first half of the magnitude
	// spectrum.
	fft := fourier.NewFFT(len(smoothed))
	coeffs := fft.Coefficients(nil, smoothed)
	half := len(smoothed) / 2
	power := make([]float64, half)
	var total float64
	for i := 0; i < half; i++ {
		power[i] = cmplx.Abs(coeffs[i])
		total += power[i]
	}

	sorted := make([]float64, len(power))
	copy(sorted, power)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if len(sorted) > 0 {
		f.FFTPeak1Power = sorted[0]
	}
	if len(sorted) > 1 {
		f.FFTPeak2Power = sorted[1]
	}

	if total > 0 {
		norm := make([]float64, len(power))
		for i, p := range power {
			norm[i] = p / total
		}
		f.SpectralEntropy = stat.Entropy(norm)
	}

	// Wavelet band energies: approx, mid detail, finest detail.
	bands := waveletDecompose(smoothed, cfg.WaveletLevels)
	f.WaveletEnergyLow = bandEnergy(bands[0])
	if len(bands) > 1 {
		f.WaveletEnergyMid = bandEnergy(bands[1])
	}
	if len(bands) > 2 {
		f.WaveletEnergyHigh = bandEnergy(bands[len(bands)-1])
	}

	return f, nil
}
