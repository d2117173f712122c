package checkpoint

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expconf/expconf"
)

type fakeState struct {
	payload []byte
}

func (f *fakeState) GobEncode() ([]byte, error) {
	return f.payload, nil
}

type fakeTrainer struct {
	dir         string
	model       gob.GobEncoder
	optimizer   gob.GobEncoder
	lrScheduler gob.GobEncoder
}

func (t *fakeTrainer) WorkerPath() string          { return t.dir }
func (t *fakeTrainer) Model() gob.GobEncoder       { return t.model }
func (t *fakeTrainer) Optimizer() gob.GobEncoder   { return t.optimizer }
func (t *fakeTrainer) LRScheduler() gob.GobEncoder { return t.lrScheduler }

func newFakeTrainer(t *testing.T) *fakeTrainer {
	t.Helper()
	return &fakeTrainer{
		dir:         t.TempDir(),
		model:       &fakeState{payload: []byte("model-weights")},
		optimizer:   &fakeState{payload: []byte("optimizer-state")},
		lrScheduler: &fakeState{payload: []byte("lr-state")},
	}
}

func chiefParams(isChief bool) map[string]any {
	return map[string]any{"is_chief": isChief}
}

func improvedLogs(changed bool) map[string]any {
	return map[string]any{
		"summary_perfs": map[string]any{
			"best_valid_perfs_changed": changed,
		},
	}
}

func TestBeforeTrain(t *testing.T) {
	t.Run("CapturesChiefFlag", func(t *testing.T) {
		c := New(newFakeTrainer(t), nil)
		require.NoError(t, c.BeforeTrain(chiefParams(true)))
		assert.True(t, c.isChief)
	})

	t.Run("MissingFlagFails", func(t *testing.T) {
		c := New(newFakeTrainer(t), nil)
		assert.Error(t, c.BeforeTrain(map[string]any{}))
	})

	t.Run("WrongTypeFails", func(t *testing.T) {
		c := New(newFakeTrainer(t), nil)
		assert.Error(t, c.BeforeTrain(map[string]any{"is_chief": "yes"}))
	})
}

func TestAfterEpoch(t *testing.T) {
	t.Run("WritesCheckpointEveryEpoch", func(t *testing.T) {
		trainer := newFakeTrainer(t)
		c := New(trainer, nil)
		require.NoError(t, c.BeforeTrain(chiefParams(false)))

		require.NoError(t, c.AfterEpoch(3, improvedLogs(false)))

		path := filepath.Join(trainer.dir, DefaultCheckpointFileName)
		assert.Equal(t, path, c.CheckpointFile())
		_, err := os.Stat(path)
		assert.NoError(t, err)

		// Non-chief workers never write the best model snapshot.
		_, err = os.Stat(filepath.Join(trainer.dir, DefaultWeightsFileName))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("ChiefWritesBestModelOnImprovement", func(t *testing.T) {
		trainer := newFakeTrainer(t)
		c := New(trainer, nil)
		require.NoError(t, c.BeforeTrain(chiefParams(true)))

		require.NoError(t, c.AfterEpoch(1, improvedLogs(true)))

		data, err := os.ReadFile(filepath.Join(trainer.dir, DefaultWeightsFileName))
		require.NoError(t, err)
		assert.Equal(t, []byte("model-weights"), data)
	})

	t.Run("ChiefSkipsBestModelWithoutImprovement", func(t *testing.T) {
		trainer := newFakeTrainer(t)
		c := New(trainer, nil)
		require.NoError(t, c.BeforeTrain(chiefParams(true)))

		require.NoError(t, c.AfterEpoch(1, improvedLogs(false)))

		_, err := os.Stat(filepath.Join(trainer.dir, DefaultWeightsFileName))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("MissingSummaryPerfsMeansNoImprovement", func(t *testing.T) {
		trainer := newFakeTrainer(t)
		c := New(trainer, nil)
		require.NoError(t, c.BeforeTrain(chiefParams(true)))

		require.NoError(t, c.AfterEpoch(1, map[string]any{}))

		_, err := os.Stat(filepath.Join(trainer.dir, DefaultWeightsFileName))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestConfiguredFileNames(t *testing.T) {
	trainer := newFakeTrainer(t)

	cfg := expconf.New("ModelCheckpointConfig")
	require.NoError(t, cfg.Declare("checkpoint_file_name", "epoch.ckpt"))
	require.NoError(t, cfg.Declare("weights_file_name", "best.bin"))

	c := New(trainer, cfg)
	require.NoError(t, c.BeforeTrain(chiefParams(true)))
	require.NoError(t, c.AfterEpoch(2, improvedLogs(true)))

	assert.Equal(t, filepath.Join(trainer.dir, "epoch.ckpt"), c.CheckpointFile())
	_, err := os.Stat(filepath.Join(trainer.dir, "best.bin"))
	assert.NoError(t, err)
}

func TestLoadRoundTrip(t *testing.T) {
	trainer := newFakeTrainer(t)
	c := New(trainer, nil)
	require.NoError(t, c.AfterEpoch(7, nil))

	ckpt, err := Load(c.CheckpointFile())
	require.NoError(t, err)

	assert.Equal(t, 7, ckpt.Epoch)
	assert.Equal(t, []byte("model-weights"), ckpt.Weights)
	assert.Equal(t, []byte("optimizer-state"), ckpt.Optimizer)
	assert.Equal(t, []byte("lr-state"), ckpt.LRScheduler)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.state"))
	assert.Error(t, err)
}

func TestNilTrainerStates(t *testing.T) {
	trainer := &fakeTrainer{dir: t.TempDir()}
	c := New(trainer, nil)
	require.NoError(t, c.AfterEpoch(0, nil))

	ckpt, err := Load(c.CheckpointFile())
	require.NoError(t, err)
	assert.Empty(t, ckpt.Weights)
	assert.Empty(t, ckpt.Optimizer)
	assert.Empty(t, ckpt.LRScheduler)
}

func TestPriority(t *testing.T) {
	c := New(newFakeTrainer(t), nil)
	assert.Equal(t, 240, c.Priority())
}
