package optim

import (
	"math"
)

// Strong-Wolfe line search constants.
const (
	wolfeC1       = 1e-4 // Sufficient decrease
	wolfeC2       = 0.9  // Curvature
	maxLineSearch = 25
)

// evalAt moves the parameters to x + t·d, evaluates the closure, reads the
// gradient and restores the parameters to x.
func (o *LBFGS[B]) evalAt(closure Closure, x []float32, t float64) (float64, []float32, error) {
	o.flat.addScaled(float32(t), o.d)
	loss, err := closure()
	grad := o.flat.gradient()
	o.flat.restore(x)
	if err != nil {
		return 0, nil, err
	}
	return float64(loss), grad, nil
}

// strongWolfe searches along o.d from the current parameters for a step
// length satisfying the strong Wolfe conditions, bracketing first and then
// zooming with cubic interpolation. It evaluates the closure at most
// maxLS+1 times and leaves the parameters where it found them.
//
// Returns the loss and gradient at the chosen step, the step itself and the
// number of evaluations.
func (o *LBFGS[B]) strongWolfe(
	closure Closure,
	t, f float64, g []float32, gtd float64,
	maxLS int,
) (float64, []float32, float64, int, error) {
	tolChange := o.config.ToleranceChange
	dNorm := absMax(o.d)
	x := o.flat.snapshot()

	fNew, gNew, err := o.evalAt(closure, x, t)
	if err != nil {
		return 0, nil, 0, 0, err
	}
	evals := 1
	gtdNew := dot(gNew, o.d)

	tPrev, fPrev, gPrev, gtdPrev := 0.0, f, g, gtd
	var (
		bracket    []float64
		bracketF   []float64
		bracketG   [][]float32
		bracketGtd []float64
		done       bool
	)

	lsIter := 0
	for lsIter < maxLS {
		if fNew > f+wolfeC1*t*gtd || (lsIter > 1 && fNew >= fPrev) {
			bracket = []float64{tPrev, t}
			bracketF = []float64{fPrev, fNew}
			bracketG = [][]float32{gPrev, gNew}
			bracketGtd = []float64{gtdPrev, gtdNew}
			break
		}
		if math.Abs(gtdNew) <= -wolfeC2*gtd {
			bracket, bracketF, bracketG = []float64{t}, []float64{fNew}, [][]float32{gNew}
			done = true
			break
		}
		if gtdNew >= 0 {
			bracket = []float64{tPrev, t}
			bracketF = []float64{fPrev, fNew}
			bracketG = [][]float32{gPrev, gNew}
			bracketGtd = []float64{gtdPrev, gtdNew}
			break
		}

		// Extrapolate.
		minStep := t + 0.01*(t-tPrev)
		maxStep := t * 10
		next := cubicInterpolate(tPrev, fPrev, gtdPrev, t, fNew, gtdNew, &[2]float64{minStep, maxStep})

		tPrev, fPrev, gPrev, gtdPrev = t, fNew, gNew, gtdNew
		t = next
		if fNew, gNew, err = o.evalAt(closure, x, t); err != nil {
			return 0, nil, 0, 0, err
		}
		evals++
		gtdNew = dot(gNew, o.d)
		lsIter++
	}

	if lsIter == maxLS {
		bracket = []float64{0, t}
		bracketF = []float64{f, fNew}
		bracketG = [][]float32{g, gNew}
	}

	// Zoom until the bracket is small enough or the conditions hold.
	insufProgress := false
	low, high := 0, len(bracket)-1
	if bracketF[low] > bracketF[high] {
		low, high = high, low
	}
	for !done && lsIter < maxLS {
		if math.Abs(bracket[1]-bracket[0])*dNorm < tolChange {
			break
		}

		t = cubicInterpolate(bracket[0], bracketF[0], bracketGtd[0], bracket[1], bracketF[1], bracketGtd[1], nil)

		// Keep t away from the bracket ends.
		hi, lo := math.Max(bracket[0], bracket[1]), math.Min(bracket[0], bracket[1])
		if eps := 0.1 * (hi - lo); math.Min(hi-t, t-lo) < eps {
			if insufProgress || t >= hi || t <= lo {
				if math.Abs(t-hi) < math.Abs(t-lo) {
					t = hi - eps
				} else {
					t = lo + eps
				}
				insufProgress = false
			} else {
				insufProgress = true
			}
		} else {
			insufProgress = false
		}

		if fNew, gNew, err = o.evalAt(closure, x, t); err != nil {
			return 0, nil, 0, 0, err
		}
		evals++
		gtdNew = dot(gNew, o.d)
		lsIter++

		if fNew > f+wolfeC1*t*gtd || fNew >= bracketF[low] {
			bracket[high], bracketF[high], bracketG[high], bracketGtd[high] = t, fNew, gNew, gtdNew
			if bracketF[0] <= bracketF[1] {
				low, high = 0, 1
			} else {
				low, high = 1, 0
			}
		} else {
			if math.Abs(gtdNew) <= -wolfeC2*gtd {
				done = true
			} else if gtdNew*(bracket[high]-bracket[low]) >= 0 {
				bracket[high], bracketF[high], bracketG[high], bracketGtd[high] =
					bracket[low], bracketF[low], bracketG[low], bracketGtd[low]
			}
			bracket[low], bracketF[low], bracketG[low], bracketGtd[low] = t, fNew, gNew, gtdNew
		}
	}

	return bracketF[low], bracketG[low], bracket[low], evals, nil
}

// cubicInterpolate returns the minimizer of the cubic through (x1, f1)
// and (x2, f2) with slopes g1 and g2, clamped to bounds (default: the
// interval between x1 and x2). Falls back to the bounds' midpoint when
// the cubic has no real minimizer.
func cubicInterpolate(x1, f1, g1, x2, f2, g2 float64, bounds *[2]float64) float64 {
	var lo, hi float64
	switch {
	case bounds != nil:
		lo, hi = bounds[0], bounds[1]
	case x1 <= x2:
		lo, hi = x1, x2
	default:
		lo, hi = x2, x1
	}

	d1 := g1 + g2 - 3*(f1-f2)/(x1-x2)
	d2Square := d1*d1 - g1*g2
	if d2Square < 0 {
		return (lo + hi) / 2
	}

	d2 := math.Sqrt(d2Square)
	var minPos float64
	if x1 <= x2 {
		minPos = x2 - (x2-x1)*((g2+d2-d1)/(g2-g1+2*d2))
	} else {
		minPos = x1 - (x1-x2)*((g1+d2-d1)/(g1-g2+2*d2))
	}
	return math.Min(math.Max(minPos, lo), hi)
}
