package common

// NumFrames returns the number of hop-spaced frames covering n samples when
// frames are centred on multiples of hop. Frame t is centred on sample t*hop.
func NumFrames(n, hop int) int {
	if n <= 0 || hop <= 0 {
		return 0
	}
	return 1 + n/hop
}

// CenteredFrame copies the frameLength samples centred on sample center into
// dst, zero-padding wherever the frame runs past either end of signal. dst
// is reallocated when it is too short.
func CenteredFrame(signal []float64, center, frameLength int, dst []float64) []float64 {
	if cap(dst) < frameLength {
		dst = make([]float64, frameLength)
	}
	dst = dst[:frameLength]

	start := center - frameLength/2
	for i := range dst {
		j := start + i
		if j < 0 || j >= len(signal) {
			dst[i] = 0
			continue
		}
		dst[i] = signal[j]
	}
	return dst
}

// Frames slices signal into centred, zero-padded frames. Each frame is a
// fresh slice.
func Frames(signal []float64, frameLength, hop int) [][]float64 {
	numFrames := NumFrames(len(signal), hop)
	frames := make([][]float64, numFrames)
	for t := range frames {
		frames[t] = CenteredFrame(signal, t*hop, frameLength, nil)
	}
	return frames
}
