package expconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFromFile(t *testing.T) {
	tomlConfig := `
epochs = 30
with_valid = false

[lr_scheduler]
policy = "CosineAnnealing"
`

	jsonConfig := `{
	"epochs": 30,
	"with_valid": false,
	"lr_scheduler": {"policy": "CosineAnnealing"}
}`

	yamlConfig := `
epochs: 30
with_valid: false
lr_scheduler:
  policy: CosineAnnealing
`

	newTrainerNode := func(t *testing.T) *Node {
		sched := New("LRSchedulerConfig")
		require.NoError(t, sched.Declare("policy", "StepLR"))

		n := New("TrainerConfig")
		require.NoError(t, n.Declare("epochs", 10))
		require.NoError(t, n.Declare("with_valid", true))
		require.NoError(t, n.Declare("lr_scheduler", sched))
		return n
	}

	tests := []struct {
		name     string
		fileName string
		content  string
	}{
		{"TOML", "config.toml", tomlConfig},
		{"JSON", "config.json", jsonConfig},
		{"YAML", "config.yaml", yamlConfig},
		{"ContentDetection", "config.conf", yamlConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newTrainerNode(t)
			path := writeTempConfig(t, tt.fileName, tt.content)
			require.NoError(t, n.FromFile(path))

			epochs, err := n.Int64("epochs")
			require.NoError(t, err)
			assert.Equal(t, int64(30), epochs)

			withValid, err := n.Bool("with_valid")
			require.NoError(t, err)
			assert.False(t, withValid)

			policy, err := n.String("lr_scheduler.policy")
			require.NoError(t, err)
			assert.Equal(t, "CosineAnnealing", policy)

			// Nested node identity survives file loading.
			sched, _ := n.Get("lr_scheduler")
			_, isNode := sched.(*Node)
			assert.True(t, isNode)
		})
	}

	t.Run("MissingFile", func(t *testing.T) {
		n := newTrainerNode(t)
		err := n.FromFile(filepath.Join(t.TempDir(), "absent.toml"))
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})
}

func TestFromArgs(t *testing.T) {
	n := New("ArgConfig")
	require.NoError(t, n.Declare("epochs", 10))
	require.NoError(t, n.Declare("debug", false))

	require.NoError(t, n.FromArgs([]string{
		"--epochs", "42",
		"--debug",
		"--model.name=resnet18",
	}))

	epochs, _ := n.Get("epochs")
	assert.Equal(t, int64(42), epochs)
	debug, _ := n.Get("debug")
	assert.Equal(t, true, debug)

	name, err := n.String("model.name")
	require.NoError(t, err)
	assert.Equal(t, "resnet18", name)

	t.Run("InvalidSegment", func(t *testing.T) {
		err := n.FromArgs([]string{"--bad!key", "1"})
		assert.ErrorIs(t, err, ErrCLIParse)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	sched := New("SaveSchedConfig")
	require.NoError(t, sched.Declare("policy", "StepLR"))

	n := New("SaveConfig")
	require.NoError(t, n.Declare("epochs", 30))
	require.NoError(t, n.Declare("lr_scheduler", sched))

	path := filepath.Join(t.TempDir(), "saved.toml")
	require.NoError(t, n.Save(path))

	restored := New("SaveRestoredConfig")
	require.NoError(t, restored.FromFile(path))

	epochs, err := restored.Int64("epochs")
	require.NoError(t, err)
	assert.Equal(t, int64(30), epochs)

	policy, err := restored.String("lr_scheduler.policy")
	require.NoError(t, err)
	assert.Equal(t, "StepLR", policy)
}

func TestLoaderPrecedence(t *testing.T) {
	fileConfig := `
epochs = 30
lr = 0.5
tag = "from-file"
`
	path := writeTempConfig(t, "config.toml", fileConfig)

	n := New("PrecedenceConfig")
	require.NoError(t, n.Declare("epochs", 10))
	require.NoError(t, n.Declare("lr", 0.1))
	require.NoError(t, n.Declare("tag", "default"))

	t.Setenv("PRECTEST_LR", "0.9")

	err := NewLoader().
		WithFile(path).
		WithEnv("PRECTEST_").
		WithArgs([]string{"--epochs", "77"}).
		Apply(n)
	require.NoError(t, err)

	// CLI beats env beats file beats defaults.
	epochs, _ := n.Get("epochs")
	assert.Equal(t, int64(77), epochs)
	lr, err := n.Float64("lr")
	require.NoError(t, err)
	assert.Equal(t, 0.9, lr)
	tag, _ := n.Get("tag")
	assert.Equal(t, "from-file", tag)
}

func TestLoaderMissingFile(t *testing.T) {
	n := New("LoaderMissingConfig")
	require.NoError(t, n.Declare("epochs", 10))

	err := NewLoader().
		WithFile(filepath.Join(t.TempDir(), "absent.toml")).
		WithArgs([]string{"--epochs", "5"}).
		Apply(n)

	// The missing file is reported, but remaining sources still applied.
	assert.ErrorIs(t, err, ErrConfigNotFound)
	epochs, _ := n.Get("epochs")
	assert.Equal(t, int64(5), epochs)
}

func TestLoaderValidators(t *testing.T) {
	path := writeTempConfig(t, "config.toml", "epochs = 0\n")

	n := New("ValidatorConfig")
	require.NoError(t, n.Declare("epochs", 10))

	err := NewLoader().
		WithFile(path).
		WithValidator(func(n *Node) error {
			if v, _ := n.Int64("epochs"); v < 1 {
				return assert.AnError
			}
			return nil
		}).
		Apply(n)

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLoaderFileDiscovery(t *testing.T) {
	t.Run("CLIFlagWins", func(t *testing.T) {
		path := writeTempConfig(t, "explicit.toml", "epochs = 3\n")

		n := New("DiscoveryCLIConfig")
		require.NoError(t, n.Declare("epochs", 10))

		opts := DefaultDiscoveryOptions("myexp")
		err := NewLoader().
			WithArgs([]string{"--config", path}).
			WithFileDiscovery(opts).
			Apply(n)
		require.NoError(t, err)

		epochs, _ := n.Get("epochs")
		assert.Equal(t, int64(3), epochs)
	})

	t.Run("EnvVarPath", func(t *testing.T) {
		path := writeTempConfig(t, "fromenv.toml", "epochs = 4\n")
		t.Setenv("MYEXP_CONFIG", path)

		n := New("DiscoveryEnvConfig")
		require.NoError(t, n.Declare("epochs", 10))

		err := NewLoader().
			WithFileDiscovery(DefaultDiscoveryOptions("myexp")).
			Apply(n)
		require.NoError(t, err)

		epochs, _ := n.Get("epochs")
		assert.Equal(t, int64(4), epochs)
	})
}

func TestQuick(t *testing.T) {
	path := writeTempConfig(t, "quick.toml", "epochs = 12\n")

	n := New("QuickConfig")
	require.NoError(t, n.Declare("epochs", 10))

	require.NoError(t, Quick(n, "QUICKTEST_", path))
	epochs, _ := n.Get("epochs")
	assert.Equal(t, int64(12), epochs)
}
