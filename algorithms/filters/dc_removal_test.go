package filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDCRemovalBlocksConstant(t *testing.T) {
	dc := NewDCRemoval()

	in := make([]float64, 5000)
	for i := range in {
		in[i] = 0.5
	}
	out := dc.ProcessBuffer(in)

	assert.InDelta(t, 0.5, out[0], 1e-12)
	assert.Less(t, math.Abs(out[len(out)-1]), 1e-6)
}

func TestDCRemovalKeepsTone(t *testing.T) {
	const sr = 22050
	dc := NewDCRemovalWithCutoff(sr, 20)

	in := make([]float64, sr)
	for i := range in {
		in[i] = 0.3 + math.Sin(2*math.Pi*440*float64(i)/sr)
	}
	out := dc.ProcessBuffer(in)

	// after the transient, mean is gone and amplitude is kept
	tail := out[sr/2:]
	sum, peak := 0.0, 0.0
	for _, v := range tail {
		sum += v
		peak = math.Max(peak, math.Abs(v))
	}
	assert.InDelta(t, 0, sum/float64(len(tail)), 0.01)
	assert.InDelta(t, 1.0, peak, 0.05)
}

func TestDCRemovalPoleAndReset(t *testing.T) {
	assert.Equal(t, 0.995, NewDCRemoval().PoleLocation())

	dc := NewDCRemovalWithCutoff(22050, 20)
	assert.InDelta(t, 1-2*math.Pi*20/22050, dc.PoleLocation(), 1e-12)

	// invalid arguments keep the default pole
	assert.Equal(t, 0.995, NewDCRemovalWithCutoff(0, 20).PoleLocation())

	first := dc.Process(1)
	dc.Process(1)
	dc.Reset()
	assert.Equal(t, first, dc.Process(1))
}
