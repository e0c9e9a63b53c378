package style_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/born-ml/stylize/internal/autodiff"
	"github.com/born-ml/stylize/internal/backend/cpu"
	"github.com/born-ml/stylize/internal/logging"
	"github.com/born-ml/stylize/internal/style"
	"github.com/born-ml/stylize/internal/tensor"
)

func newModel(t *testing.T, backend adBackend, size int) (*style.Model[adBackend], *tensor.Tensor[float32, adBackend]) {
	t.Helper()
	content := randImage(backend, 11, size)
	styleImg := randImage(backend, 12, size)
	model, err := style.BuildModel(tinyNet(backend, 1), modelConfig([]string{"conv_2"}, []string{"conv_1", "conv_2"}), styleImg, content, backend)
	require.NoError(t, err)
	return model, content
}

func TestZeroStepsReturnsClampedInput(t *testing.T) {
	backend := autodiff.New(cpu.New())
	img := randImage(backend, 13, 64)
	img.Data()[0] = 1.5
	img.Data()[1] = -0.25

	model, err := style.BuildModel(tinyNet(backend, 1), modelConfig([]string{"conv_2"}, []string{"conv_1"}), img, img, backend)
	require.NoError(t, err)

	res, err := style.NewDriver(model, style.Options{Steps: 0, ExactSteps: true}, backend, nil).Run(context.Background(), img)
	require.NoError(t, err)

	want := img.Clone()
	want.ClampInPlace(0, 1)
	assert.Equal(t, want.Data(), res.Image.Data())
	assert.Equal(t, 0, res.Evaluations)
	assert.Equal(t, 0, res.Steps)

	// The caller's tensor is left alone.
	assert.Equal(t, float32(1.5), img.Data()[0])
}

func TestZeroStepsInclusiveRunsOneStep(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model, content := newModel(t, backend, 8)

	opts := style.Options{Steps: 0, Optimizer: style.OptimizerConfig{MaxIter: 1}}
	res, err := style.NewDriver(model, opts, backend, nil).Run(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Steps)
	assert.Equal(t, 1, res.Evaluations)
}

func TestCheckpointCount(t *testing.T) {
	cases := []struct {
		steps       int
		exact       bool
		evaluations int
		checkpoints []int
	}{
		{steps: 100, evaluations: 101, checkpoints: []int{50, 100}},
		{steps: 99, evaluations: 100, checkpoints: []int{50, 100}},
		{steps: 99, exact: true, evaluations: 99, checkpoints: []int{50}},
		{steps: 100, exact: true, evaluations: 100, checkpoints: []int{50, 100}},
		{steps: 48, evaluations: 49},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("steps=%d/exact=%v", tc.steps, tc.exact), func(t *testing.T) {
			backend := autodiff.New(cpu.New())
			model, content := newModel(t, backend, 8)
			dir := t.TempDir()

			opts := style.Options{
				Steps:          tc.steps,
				ExactSteps:     tc.exact,
				StyleWeight:    1e6,
				ContentWeight:  1,
				OutputTemplate: filepath.Join(dir, "output_{}.png"),
				Optimizer:      style.OptimizerConfig{MaxIter: 1},
			}
			res, err := style.NewDriver(model, opts, backend, nil).Run(context.Background(), content)
			require.NoError(t, err)
			assert.Equal(t, tc.evaluations, res.Evaluations)
			assert.Equal(t, tc.evaluations, res.Steps)

			var want []string
			for _, n := range tc.checkpoints {
				want = append(want, filepath.Join(dir, fmt.Sprintf("output_%d.png", n)))
			}
			assert.Equal(t, want, res.Checkpoints)

			files, err := filepath.Glob(filepath.Join(dir, "*.png"))
			require.NoError(t, err)
			assert.Len(t, files, len(tc.checkpoints))
		})
	}
}

func TestExactStepsCapsLineSearch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model, content := newModel(t, backend, 8)

	opts := style.Options{
		Steps:         7,
		ExactSteps:    true,
		StyleWeight:   1e3,
		ContentWeight: 1,
		Optimizer:     style.OptimizerConfig{LineSearch: "strong_wolfe"},
	}
	res, err := style.NewDriver(model, opts, backend, nil).Run(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Evaluations)
}

func TestPixelsClampedDuringEvaluation(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model, _ := newModel(t, backend, 8)

	noise := tensor.Randn[float32](tensor.Shape{1, 3, 8, 8}, rngFor(14), backend)
	d := style.NewDriver(model, style.Options{Steps: 30, StyleWeight: 1e6, ContentWeight: 1}, backend, nil)

	seen := 0
	d.Observe(func(e style.Evaluation[adBackend]) {
		seen++
		for _, v := range e.Image.Data() {
			if v < 0 || v > 1 {
				t.Fatalf("run %d: pixel %v outside [0, 1]", e.Run, v)
			}
		}
	})

	res, err := d.Run(context.Background(), noise)
	require.NoError(t, err)
	assert.Equal(t, res.Evaluations, seen)
	for _, v := range res.Image.Data() {
		require.GreaterOrEqual(t, v, float32(0))
		require.LessOrEqual(t, v, float32(1))
	}
}

func TestLossDecreases(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model, content := newModel(t, backend, 16)

	opts := style.Options{
		Steps:         20,
		StyleWeight:   1e4,
		ContentWeight: 1,
		Optimizer:     style.OptimizerConfig{LineSearch: "strong_wolfe"},
	}
	d := style.NewDriver(model, opts, backend, nil)

	var first, best float32
	d.Observe(func(e style.Evaluation[adBackend]) {
		total := e.Scores.Total()
		if e.Run == 1 {
			first, best = total, total
		}
		best = min(best, total)
	})

	_, err := d.Run(context.Background(), content)
	require.NoError(t, err)
	assert.Greater(t, first, float32(0))
	assert.Less(t, best, first)
}

func TestProgressLog(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model, content := newModel(t, backend, 8)

	logger, logs := logging.NewObserved(zapcore.InfoLevel)
	opts := style.Options{
		Steps:           6,
		ExactSteps:      true,
		StyleWeight:     1e6,
		ContentWeight:   1,
		CheckpointEvery: 3,
		Optimizer:       style.OptimizerConfig{Kind: style.OptimizerAdam, LR: 0.01},
	}
	res, err := style.NewDriver(model, opts, backend, logger).Run(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Steps)
	assert.Empty(t, res.Checkpoints)

	entries := logs.FilterMessage("progress").All()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(3), entries[0].ContextMap()["run"])
	assert.Equal(t, int64(6), entries[1].ContextMap()["run"])
	assert.Contains(t, entries[1].ContextMap(), "style_loss")
	assert.Contains(t, entries[1].ContextMap(), "content_loss")
}

func TestRunCancelled(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model, content := newModel(t, backend, 8)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := style.NewDriver(model, style.Options{Steps: 10}, backend, nil).Run(ctx, content)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Evaluations)
	assert.Equal(t, content.Data(), res.Image.Data())
}

func TestRunRejectsInput(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model, _ := newModel(t, backend, 8)

	_, err := style.NewDriver(model, style.Options{}, backend, nil).Run(context.Background(), randImage(backend, 1, 16))
	assert.ErrorIs(t, err, style.ErrShapeMismatch)

	opts := style.Options{Optimizer: style.OptimizerConfig{Kind: "rmsprop"}}
	_, err = style.NewDriver(model, opts, backend, nil).Run(context.Background(), randImage(backend, 1, 8))
	assert.ErrorContains(t, err, "rmsprop")
}

func TestCheckpointWriteError(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model, content := newModel(t, backend, 8)

	// A regular file where the output directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	opts := style.Options{
		Steps:           2,
		ExactSteps:      true,
		CheckpointEvery: 1,
		OutputTemplate:  filepath.Join(blocker, "out_{}.png"),
		Optimizer:       style.OptimizerConfig{Kind: style.OptimizerSGD},
	}
	_, err := style.NewDriver(model, opts, backend, nil).Run(context.Background(), content)
	assert.ErrorContains(t, err, "checkpoint")
}
