package expconf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRuledNode(t *testing.T) *Node {
	t.Helper()
	n := New("RuledConfig")
	require.NoError(t, n.Declare("epochs", 10))
	require.NoError(t, n.Declare("lr", 0.1))
	require.NoError(t, n.Declare("policy", "StepLR"))

	n.SetRule("epochs", Rule{Required: true, Type: "int", Min: Float(1)})
	n.SetRule("lr", Rule{Type: "float", Min: Float(0), Max: Float(1)})
	n.SetRule("policy", Rule{Type: "string", Choices: []any{"StepLR", "CosineAnnealing"}})
	return n
}

func TestCheckStructure(t *testing.T) {
	tests := []struct {
		name      string
		data      map[string]any
		wantKind  FaultKind
		wantField string
	}{
		{"MissingRequired", map[string]any{"lr": 0.5}, FaultMissing, "epochs"},
		{"WrongType", map[string]any{"epochs": "ten"}, FaultType, "epochs"},
		{"BelowMin", map[string]any{"epochs": 0}, FaultRange, "epochs"},
		{"AboveMax", map[string]any{"epochs": 5, "lr": 2.0}, FaultRange, "lr"},
		{"NotInChoices", map[string]any{"epochs": 5, "policy": "Linear"}, FaultRange, "policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newRuledNode(t)
			err := n.CheckStructure(tt.data)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.NotEmpty(t, verr.Faults)
			assert.Equal(t, tt.wantField, verr.Faults[0].Field)
			assert.Equal(t, tt.wantKind, verr.Faults[0].Kind)
		})
	}

	t.Run("ValidData", func(t *testing.T) {
		n := newRuledNode(t)
		assert.NoError(t, n.CheckStructure(map[string]any{
			"epochs": 5,
			"lr":     0.01,
			"policy": "CosineAnnealing",
		}))
	})

	t.Run("IntegralFloatMatchesIntRule", func(t *testing.T) {
		// JSON decodes numbers as float64; integral values satisfy "int".
		n := newRuledNode(t)
		assert.NoError(t, n.CheckStructure(map[string]any{"epochs": 5.0}))
	})
}

func TestFromStructureValidation(t *testing.T) {
	t.Run("SkippedByDefault", func(t *testing.T) {
		n := newRuledNode(t)
		_, err := n.FromStructure(map[string]any{"epochs": 0})
		require.NoError(t, err)
		epochs, _ := n.Get("epochs")
		assert.Equal(t, 0, epochs)
	})

	t.Run("RejectsInvalidWhenRequested", func(t *testing.T) {
		n := newRuledNode(t)
		_, err := n.FromStructureWithOptions(
			map[string]any{"epochs": 0},
			ApplyOptions{Validate: true},
		)
		require.Error(t, err)

		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
		epochs, _ := n.Get("epochs")
		assert.Equal(t, 10, epochs, "invalid data must not be applied")
	})

	t.Run("AcceptsValidWhenRequested", func(t *testing.T) {
		n := newRuledNode(t)
		_, err := n.FromStructureWithOptions(
			map[string]any{"epochs": 20},
			ApplyOptions{Validate: true},
		)
		require.NoError(t, err)
		epochs, _ := n.Get("epochs")
		assert.Equal(t, 20, epochs)
	})
}

func TestSetRuleChecker(t *testing.T) {
	defer SetRuleChecker(nil)

	called := false
	SetRuleChecker(func(n *Node, data map[string]any) error {
		called = true
		return nil
	})

	n := newRuledNode(t)
	// The custom checker accepts data the default would reject.
	_, err := n.FromStructureWithOptions(
		map[string]any{"epochs": 0},
		ApplyOptions{Validate: true},
	)
	require.NoError(t, err)
	assert.True(t, called)
}
