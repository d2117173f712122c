// Package checkpoint persists training state during a training loop. It is
// driven by a trainer at two lifecycle points (before training and after
// each epoch) and sources its file names from a configuration node; it
// performs no configuration serialization of its own.
package checkpoint

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/expconf/expconf"
	"github.com/expconf/expconf/internal/fileops"
)

// Default file names used when the configuration node does not override
// them.
const (
	DefaultCheckpointFileName = "checkpoint.state"
	DefaultWeightsFileName    = "model.weights"
)

// Trainer is the training-loop driver the callback serves. It owns the
// model, optimizer and learning-rate scheduler state and the worker
// directory checkpoints are written under.
type Trainer interface {
	WorkerPath() string
	Model() gob.GobEncoder
	Optimizer() gob.GobEncoder
	LRScheduler() gob.GobEncoder
}

// Checkpoint is the full training state persisted after each epoch.
type Checkpoint struct {
	Epoch       int
	Weights     []byte
	Optimizer   []byte
	LRScheduler []byte
}

// Callback saves a checkpoint after every epoch and a best-model snapshot
// when validation performance improved on the chief worker.
type Callback struct {
	trainer Trainer
	cfg     *expconf.Node
	logger  *zap.Logger

	isChief        bool
	checkpointFile string
}

// Option configures a Callback.
type Option func(*Callback)

// WithLogger installs a logger for checkpoint events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Callback) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a checkpoint callback. The cfg node supplies the checkpoint
// and weights file names under "checkpoint_file_name" and
// "weights_file_name"; missing or empty fields fall back to the defaults.
func New(trainer Trainer, cfg *expconf.Node, opts ...Option) *Callback {
	c := &Callback{
		trainer: trainer,
		cfg:     cfg,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Priority orders this callback among its peers; lower runs earlier.
func (c *Callback) Priority() int {
	return 240
}

// BeforeTrain captures whether this process is the chief worker. The
// parameter bag must carry an "is_chief" flag.
func (c *Callback) BeforeTrain(params map[string]any) error {
	v, ok := params["is_chief"]
	if !ok {
		return fmt.Errorf("checkpoint callback requires an is_chief parameter")
	}
	isChief, ok := v.(bool)
	if !ok {
		return fmt.Errorf("is_chief parameter must be a bool, got %T", v)
	}
	c.isChief = isChief
	return nil
}

// AfterEpoch persists the full training state and, when the chief worker
// observed a validation improvement, a separate best-model snapshot.
func (c *Callback) AfterEpoch(epoch int, logs map[string]any) error {
	if err := c.saveCheckpoint(epoch); err != nil {
		return err
	}
	if c.isChief && bestValidChanged(logs) {
		return c.saveBestModel()
	}
	return nil
}

// CheckpointFile returns the path of the most recently written checkpoint,
// or empty before the first save.
func (c *Callback) CheckpointFile() string {
	return c.checkpointFile
}

func (c *Callback) saveCheckpoint(epoch int) error {
	fileName := c.configuredName("checkpoint_file_name", DefaultCheckpointFileName)
	path := filepath.Join(c.trainer.WorkerPath(), fileName)
	c.logger.Debug("saving checkpoint", zap.Int("epoch", epoch), zap.String("path", path))

	ckpt := Checkpoint{Epoch: epoch}
	var err error
	if ckpt.Weights, err = encodeState(c.trainer.Model()); err != nil {
		return fmt.Errorf("failed to encode model state: %w", err)
	}
	if ckpt.Optimizer, err = encodeState(c.trainer.Optimizer()); err != nil {
		return fmt.Errorf("failed to encode optimizer state: %w", err)
	}
	if ckpt.LRScheduler, err = encodeState(c.trainer.LRScheduler()); err != nil {
		return fmt.Errorf("failed to encode lr scheduler state: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ckpt); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := fileops.AtomicWrite(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint '%s': %w", path, err)
	}

	c.checkpointFile = path
	return nil
}

func (c *Callback) saveBestModel() error {
	fileName := c.configuredName("weights_file_name", DefaultWeightsFileName)
	path := filepath.Join(c.trainer.WorkerPath(), fileName)
	c.logger.Debug("saving best model", zap.String("path", path))

	weights, err := encodeState(c.trainer.Model())
	if err != nil {
		return fmt.Errorf("failed to encode model state: %w", err)
	}
	if err := fileops.AtomicWrite(path, weights, 0644); err != nil {
		return fmt.Errorf("failed to write best model '%s': %w", path, err)
	}
	return nil
}

// configuredName reads a file name from the config node, falling back to
// the default when the node is nil or the field is absent or empty.
func (c *Callback) configuredName(field, fallback string) string {
	if c.cfg == nil {
		return fallback
	}
	name, err := c.cfg.String(field)
	if err != nil || name == "" {
		return fallback
	}
	return name
}

func encodeState(enc gob.GobEncoder) ([]byte, error) {
	if enc == nil {
		return nil, nil
	}
	return enc.GobEncode()
}

// bestValidChanged reads the best_valid_perfs_changed flag out of the
// epoch's summary performance bag.
func bestValidChanged(logs map[string]any) bool {
	summary, ok := logs["summary_perfs"].(map[string]any)
	if !ok {
		return false
	}
	changed, _ := summary["best_valid_perfs_changed"].(bool)
	return changed
}

// Load reads a checkpoint written by the callback.
func Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint '%s': %w", path, err)
	}
	var ckpt Checkpoint
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ckpt); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint '%s': %w", path, err)
	}
	return &ckpt, nil
}
