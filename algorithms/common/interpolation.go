package common

// linearInterpolate reads data at a fractional index, clamping to the ends.
func linearInterpolate(data []float64, index float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	if index <= 0 {
		return data[0]
	}
	if index >= float64(len(data)-1) {
		return data[len(data)-1]
	}

	i := int(index)
	frac := index - float64(i)

	return data[i] + frac*(data[i+1]-data[i])
}

// Resample converts signal from originalRate to targetRate by linear
// interpolation. Downsampling first smooths with a moving average over the
// rate ratio to limit aliasing. The signal is returned as-is when the rates
// match or either is not positive.
func Resample(signal []float64, originalRate, targetRate int) []float64 {
	if len(signal) == 0 || originalRate <= 0 || targetRate <= 0 || originalRate == targetRate {
		return signal
	}

	ratio := float64(originalRate) / float64(targetRate)
	newLength := int(float64(len(signal)) / ratio)
	if newLength <= 0 {
		return []float64{}
	}

	source := signal
	if ratio > 1 {
		source = movingAverage(signal, int(ratio+0.5))
	}

	resampled := make([]float64, newLength)
	for i := range resampled {
		resampled[i] = linearInterpolate(source, float64(i)*ratio)
	}

	return resampled
}

// movingAverage is a centred box filter of the given width.
func movingAverage(data []float64, width int) []float64 {
	if width <= 1 {
		return data
	}

	prefix := make([]float64, len(data)+1)
	for i, v := range data {
		prefix[i+1] = prefix[i] + v
	}

	half := width / 2
	result := make([]float64, len(data))
	for i := range data {
		start := max(i-half, 0)
		end := min(i-half+width, len(data))
		result[i] = (prefix[end] - prefix[start]) / float64(end-start)
	}
	return result
}
