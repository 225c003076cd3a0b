package transcribe

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// stochasticTolerance bounds how far a transition row may drift from 1.
const stochasticTolerance = 1e-6

// Path is a decoded state sequence, one state index per frame.
type Path struct {
	States        []int   `json:"states"`
	LogLikelihood float64 `json:"log_likelihood"` // diagnostic only
}

// InitialPrior returns a prior over n states that puts silenceWeight on
// state 0 and spreads the remainder uniformly over the other states.
func InitialPrior(n int, silenceWeight float64) []float64 {
	prior := make([]float64, n)
	if n == 1 {
		prior[0] = 1
		return prior
	}
	prior[0] = silenceWeight
	rest := (1 - silenceWeight) / float64(n-1)
	for i := 1; i < n; i++ {
		prior[i] = rest
	}
	return prior
}

// UniformPrior returns the uniform prior over n states.
func UniformPrior(n int) []float64 {
	prior := make([]float64, n)
	for i := range prior {
		prior[i] = 1 / float64(n)
	}
	return prior
}

// Decode computes the most likely state sequence given a transition matrix
// (N x N), a likelihood matrix (frames x N) and an initial prior.
//
// Scores are accumulated in the log domain. When several predecessors share
// the best score the lowest index wins, and the same rule picks the final
// state, so identical inputs always decode to identical paths.
func Decode(transitions mat.Matrix, likelihoods mat.Matrix, prior []float64) (*Path, error) {
	if transitions == nil {
		return nil, shapeError("nil transition matrix")
	}
	if err := CheckStochastic(transitions, stochasticTolerance); err != nil {
		return nil, err
	}
	n, _ := transitions.Dims()

	if len(prior) != n {
		return nil, shapeError("prior has %d entries, want %d", len(prior), n)
	}
	for i, p := range prior {
		if p < 0 || math.IsNaN(p) {
			return nil, shapeError("prior[%d] = %v is negative", i, p)
		}
	}
	if sum := floats.Sum(prior); !scalar.EqualWithinAbs(sum, 1, stochasticTolerance) {
		return nil, shapeError("prior sums to %v", sum)
	}

	if isEmptyMatrix(likelihoods) {
		return &Path{States: []int{}}, nil
	}
	numFrames, cols := likelihoods.Dims()
	if cols != n {
		return nil, shapeError("likelihood matrix has %d states, transition matrix has %d", cols, n)
	}

	logLik, err := logLikelihoods(likelihoods)
	if err != nil {
		return nil, err
	}

	// Incoming edges per state, ascending by predecessor index, so the
	// inner loop only visits reachable transitions.
	type edge struct {
		from    int
		logProb float64
	}
	incoming := make([][]edge, n)
	for i := range n {
		for j := range n {
			if p := transitions.At(i, j); p > 0 {
				incoming[j] = append(incoming[j], edge{from: i, logProb: math.Log(p)})
			}
		}
	}

	score := make([]float64, n)
	next := make([]float64, n)
	backpointers := make([][]int32, numFrames)

	for j := range n {
		score[j] = math.Log(prior[j]) + logLik[j]
	}

	for t := 1; t < numFrames; t++ {
		bp := make([]int32, n)
		row := logLik[t*n : (t+1)*n]

		for j := range n {
			best := math.Inf(-1)
			arg := 0
			for _, e := range incoming[j] {
				if candidate := score[e.from] + e.logProb; candidate > best {
					best = candidate
					arg = e.from
				}
			}
			next[j] = best + row[j]
			bp[j] = int32(arg)
		}

		backpointers[t] = bp
		score, next = next, score
	}

	last := 0
	for j := 1; j < n; j++ {
		if score[j] > score[last] {
			last = j
		}
	}
	if math.IsInf(score[last], -1) {
		return nil, fmt.Errorf("%w: every path has zero probability", ErrNumericDegeneracy)
	}

	states := make([]int, numFrames)
	states[numFrames-1] = last
	for t := numFrames - 1; t > 0; t-- {
		states[t-1] = int(backpointers[t][states[t]])
	}

	return &Path{
		States:        states,
		LogLikelihood: score[last],
	}, nil
}

// isEmptyMatrix reports whether m holds no frames. A nil *mat.Dense inside
// the interface counts as empty.
func isEmptyMatrix(m mat.Matrix) bool {
	switch m := m.(type) {
	case nil:
		return true
	case *mat.Dense:
		return m == nil || m.IsEmpty()
	}
	rows, _ := m.Dims()
	return rows == 0
}

// logLikelihoods validates a likelihood matrix and returns its element-wise
// log in row-major order.
func logLikelihoods(likelihoods mat.Matrix) ([]float64, error) {
	rows, cols := likelihoods.Dims()
	out := make([]float64, rows*cols)
	row := make([]float64, cols)

	for t := range rows {
		mat.Row(row, t, likelihoods)
		positive := false
		for j, v := range row {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, shapeError("likelihood[%d][%d] = %v", t, j, v)
			}
			if v > 0 {
				positive = true
			}
			out[t*cols+j] = math.Log(v)
		}
		if !positive {
			return nil, fmt.Errorf("%w: frame %d has an all-zero likelihood vector", ErrNumericDegeneracy, t)
		}
	}

	return out, nil
}
