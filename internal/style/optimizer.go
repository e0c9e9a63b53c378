package style

import (
	"fmt"

	"github.com/born-ml/stylize/internal/nn"
	"github.com/born-ml/stylize/internal/optim"
	"github.com/born-ml/stylize/internal/tensor"
)

// Optimizer kinds accepted by NewOptimizer.
const (
	OptimizerLBFGS = "lbfgs"
	OptimizerAdam  = "adam"
	OptimizerSGD   = "sgd"
)

// OptimizerConfig selects and tunes the pixel optimizer.
// Zero fields take the optimizer's defaults.
type OptimizerConfig struct {
	Kind        string
	LR          float32
	LineSearch  string // lbfgs only
	HistorySize int    // lbfgs only
	MaxIter     int    // lbfgs only
}

// NewOptimizer builds the optimizer named by cfg.Kind over params.
// An empty kind selects L-BFGS.
func NewOptimizer[B tensor.Backend](params []*nn.Parameter[B], cfg OptimizerConfig, backend B) (optim.Optimizer, error) {
	switch cfg.Kind {
	case OptimizerLBFGS, "":
		if cfg.LineSearch != optim.LineSearchNone && cfg.LineSearch != optim.LineSearchStrongWolfe {
			return nil, fmt.Errorf("unknown line search %q", cfg.LineSearch)
		}
		return optim.NewLBFGS(params, optim.LBFGSConfig{
			LR:          cfg.LR,
			MaxIter:     cfg.MaxIter,
			HistorySize: cfg.HistorySize,
			LineSearch:  cfg.LineSearch,
		}, backend), nil
	case OptimizerAdam:
		return optim.NewAdam(params, optim.AdamConfig{LR: cfg.LR}, backend), nil
	case OptimizerSGD:
		return optim.NewSGD(params, optim.SGDConfig{LR: cfg.LR, Momentum: 0.9}, backend), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Kind)
	}
}
