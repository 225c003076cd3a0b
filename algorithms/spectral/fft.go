package spectral

import (
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// FFT wraps mjibson/go-dsp with an optional analysis window.
type FFT struct {
	window []float64
}

// NewFFT creates an FFT without windowing.
func NewFFT() *FFT {
	return &FFT{}
}

// NewHannFFT creates an FFT that applies a Hann window of the given size
// before transforming.
func NewHannFFT(size int) *FFT {
	return &FFT{window: window.Hann(size)}
}

// Compute transforms x. The input slice is left untouched.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	if len(f.window) == len(x) {
		windowed := make([]float64, len(x))
		for i, v := range x {
			windowed[i] = v * f.window[i]
		}
		return fft.FFTReal(windowed)
	}

	return fft.FFTReal(x)
}

// ComputeInverseReal computes the inverse FFT and keeps the real part.
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	realResult := make([]float64, len(result))
	for i, val := range result {
		realResult[i] = real(val)
	}
	return realResult
}
