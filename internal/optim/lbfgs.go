package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/stylize/internal/nn"
	"github.com/born-ml/stylize/internal/tensor"
)

// Line search names accepted by LBFGSConfig.LineSearch.
const (
	LineSearchNone        = ""
	LineSearchStrongWolfe = "strong_wolfe"
)

// LBFGSConfig holds configuration for the L-BFGS optimizer.
// Zero fields take the defaults shown.
type LBFGSConfig struct {
	LR              float32 // Learning rate (default: 1)
	MaxIter         int     // Maximum iterations per Step (default: 20)
	MaxEval         int     // Maximum closure evaluations per Step (default: MaxIter*5/4)
	ToleranceGrad   float64 // Stop when max |grad| falls to this (default: 1e-7)
	ToleranceChange float64 // Stop when loss or step change falls below this (default: 1e-9)
	HistorySize     int     // Number of curvature pairs kept (default: 100)
	LineSearch      string  // LineSearchNone or LineSearchStrongWolfe
}

// LBFGS implements the limited-memory BFGS quasi-Newton method.
//
// Each Step runs up to MaxIter iterations. An iteration builds a search
// direction from the stored curvature pairs (two-loop recursion), moves the
// parameters along it and re-evaluates the closure. The curvature history
// persists across Step calls.
//
// Without a line search the step length is LR, except on the very first
// iteration where it is min(1, 1/|g|₁)·LR. With LineSearchStrongWolfe the
// length is chosen by a cubic-interpolation search satisfying the strong
// Wolfe conditions.
//
// Reference: Nocedal & Wright, "Numerical Optimization", Algorithm 7.4.
type LBFGS[B tensor.Backend] struct {
	flat   flatParams[B]
	config LBFGSConfig

	// budget caps evaluations of the next Step; 0 means no cap.
	budget int

	d            []float32   // Search direction
	t            float64     // Step length
	oldDirs      [][]float32 // y_k = g_{k+1} - g_k
	oldSteps     [][]float32 // s_k = x_{k+1} - x_k
	ro           []float64   // 1 / (y_k · s_k)
	hDiag        float64     // Initial inverse Hessian scale
	prevFlatGrad []float32
	prevLoss     float64

	funcEvals int // Closure evaluations over the optimizer's lifetime
	nIter     int // Iterations over the optimizer's lifetime
}

// NewLBFGS creates a new L-BFGS optimizer.
//
// Panics on an unknown line search name.
func NewLBFGS[B tensor.Backend](params []*nn.Parameter[B], config LBFGSConfig, _ B) *LBFGS[B] {
	if config.LR == 0 {
		config.LR = 1
	}
	if config.MaxIter == 0 {
		config.MaxIter = 20
	}
	if config.MaxEval == 0 {
		config.MaxEval = config.MaxIter * 5 / 4
	}
	if config.ToleranceGrad == 0 {
		config.ToleranceGrad = 1e-7
	}
	if config.ToleranceChange == 0 {
		config.ToleranceChange = 1e-9
	}
	if config.HistorySize == 0 {
		config.HistorySize = 100
	}
	switch config.LineSearch {
	case LineSearchNone, LineSearchStrongWolfe:
	default:
		panic(fmt.Sprintf("lbfgs: unknown line search %q", config.LineSearch))
	}

	return &LBFGS[B]{
		flat:   newFlatParams(params),
		config: config,
	}
}

// SetEvalBudget caps the number of closure evaluations of the next Step
// at n, including line search evaluations. n <= 0 removes the cap.
func (o *LBFGS[B]) SetEvalBudget(n int) {
	o.budget = max(n, 0)
}

// Step runs up to MaxIter L-BFGS iterations.
//
// Returns the loss of the first closure evaluation.
func (o *LBFGS[B]) Step(closure Closure) (float32, error) {
	cfg := o.config
	maxEval, strict := cfg.MaxEval, false
	if o.budget > 0 {
		maxEval, strict = min(maxEval, o.budget), true
		o.budget = 0
	}
	lr := float64(cfg.LR)

	origLoss, err := closure()
	if err != nil {
		return 0, err
	}
	loss := float64(origLoss)
	currentEvals := 1
	o.funcEvals++

	flatGrad := o.flat.gradient()
	if absMax(flatGrad) <= cfg.ToleranceGrad {
		return origLoss, nil
	}

	for nIter := 1; nIter <= cfg.MaxIter; nIter++ {
		o.nIter++

		if o.nIter == 1 {
			o.d = scaled(-1, flatGrad)
			o.oldDirs, o.oldSteps, o.ro = nil, nil, nil
			o.hDiag = 1
		} else {
			o.updateDirection(flatGrad)
		}

		o.prevFlatGrad = append(o.prevFlatGrad[:0], flatGrad...)
		o.prevLoss = loss

		if o.nIter == 1 {
			o.t = math.Min(1, 1/absSum(flatGrad)) * lr
		} else {
			o.t = lr
		}

		gtd := dot(flatGrad, o.d)
		if gtd > -cfg.ToleranceChange {
			break
		}

		var optCond bool
		lsEvals := 0
		if cfg.LineSearch == LineSearchStrongWolfe {
			maxLS := maxLineSearch
			if strict {
				remaining := maxEval - currentEvals
				if remaining < 1 {
					break
				}
				maxLS = min(maxLS, remaining-1)
			}
			var t float64
			loss, flatGrad, t, lsEvals, err = o.strongWolfe(closure, o.t, loss, flatGrad, gtd, maxLS)
			if err != nil {
				return 0, err
			}
			o.t = t
			o.flat.addScaled(float32(o.t), o.d)
			optCond = absMax(flatGrad) <= cfg.ToleranceGrad
		} else {
			o.flat.addScaled(float32(o.t), o.d)
			if nIter != cfg.MaxIter && (!strict || currentEvals < maxEval) {
				l, err := closure()
				if err != nil {
					return 0, err
				}
				loss = float64(l)
				flatGrad = o.flat.gradient()
				optCond = absMax(flatGrad) <= cfg.ToleranceGrad
				lsEvals = 1
			}
		}

		currentEvals += lsEvals
		o.funcEvals += lsEvals

		if nIter == cfg.MaxIter || currentEvals >= maxEval || optCond ||
			absMax(o.d)*math.Abs(o.t) <= cfg.ToleranceChange ||
			math.Abs(loss-o.prevLoss) < cfg.ToleranceChange {
			break
		}
	}

	return origLoss, nil
}

// updateDirection records the newest curvature pair and computes the
// direction -H·g by two-loop recursion.
func (o *LBFGS[B]) updateDirection(flatGrad []float32) {
	y := append([]float32(nil), flatGrad...)
	axpy(-1, o.prevFlatGrad, y)
	s := scaled(o.t, o.d)
	ys := dot(y, s)

	if ys > 1e-10 {
		if len(o.oldDirs) == o.config.HistorySize {
			o.oldDirs, o.oldSteps, o.ro = o.oldDirs[1:], o.oldSteps[1:], o.ro[1:]
		}
		o.oldDirs = append(o.oldDirs, y)
		o.oldSteps = append(o.oldSteps, s)
		o.ro = append(o.ro, 1/ys)
		o.hDiag = ys / dot(y, y)
	}

	numOld := len(o.oldDirs)
	al := make([]float64, numOld)

	q := scaled(-1, flatGrad)
	for i := numOld - 1; i >= 0; i-- {
		al[i] = dot(o.oldSteps[i], q) * o.ro[i]
		axpy(-al[i], o.oldDirs[i], q)
	}

	r := scaled(o.hDiag, q)
	for i := range numOld {
		be := dot(o.oldDirs[i], r) * o.ro[i]
		axpy(al[i]-be, o.oldSteps[i], r)
	}
	o.d = r
}

// ZeroGrad clears gradients for all parameters.
func (o *LBFGS[B]) ZeroGrad() {
	zeroGrad(o.flat.params)
}

// GetLR returns the learning rate.
func (o *LBFGS[B]) GetLR() float32 {
	return o.config.LR
}

// FuncEvals returns the number of closure evaluations so far.
func (o *LBFGS[B]) FuncEvals() int {
	return o.funcEvals
}

// Iterations returns the number of iterations so far.
func (o *LBFGS[B]) Iterations() int {
	return o.nIter
}

// HistoryLen returns the number of stored curvature pairs.
func (o *LBFGS[B]) HistoryLen() int {
	return len(o.oldDirs)
}
