package style_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/stylize/internal/autodiff"
	"github.com/born-ml/stylize/internal/backend/cpu"
	"github.com/born-ml/stylize/internal/nn"
	"github.com/born-ml/stylize/internal/optim"
	"github.com/born-ml/stylize/internal/style"
	"github.com/born-ml/stylize/internal/tensor"
)

func TestNewOptimizer(t *testing.T) {
	backend := autodiff.New(cpu.New())
	params := []*nn.Parameter[adBackend]{
		nn.NewParameter("image", tensor.Zeros[float32](tensor.Shape{1, 3, 2, 2}, backend)),
	}

	tests := []struct {
		cfg    style.OptimizerConfig
		wantLR float32
	}{
		{style.OptimizerConfig{}, 1},
		{style.OptimizerConfig{Kind: style.OptimizerLBFGS, LineSearch: optim.LineSearchStrongWolfe}, 1},
		{style.OptimizerConfig{Kind: style.OptimizerAdam}, 0.001},
		{style.OptimizerConfig{Kind: style.OptimizerSGD, LR: 0.5}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Kind, func(t *testing.T) {
			opt, err := style.NewOptimizer(params, tt.cfg, backend)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantLR, opt.GetLR(), 1e-9)
		})
	}

	_, err := style.NewOptimizer(params, style.OptimizerConfig{LineSearch: "backtracking"}, backend)
	assert.ErrorContains(t, err, `unknown line search "backtracking"`)
	_, err = style.NewOptimizer(params, style.OptimizerConfig{Kind: "rmsprop"}, backend)
	assert.ErrorContains(t, err, `unknown optimizer "rmsprop"`)
}
