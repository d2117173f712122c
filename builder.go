package expconf

import (
	"errors"
	"fmt"

	"dario.cat/mergo"
)

// ValidatorFunc validates a fully applied node and returns an error when
// the configuration is unusable.
type ValidatorFunc func(n *Node) error

// Loader composes configuration sources and applies them to a node in one
// pass. Sources layer as file < env < args (later wins); layering happens
// on the plain-data structures before the single FromStructure call, so a
// link node resolves exactly once against the merged input.
type Loader struct {
	file       string
	args       []string
	envPrefix  string
	useEnv     bool
	validate   bool
	resolver   Resolver
	validators []ValidatorFunc
}

// NewLoader creates an empty configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// WithFile sets the configuration file path.
func (l *Loader) WithFile(path string) *Loader {
	l.file = path
	return l
}

// WithArgs sets command-line override arguments.
func (l *Loader) WithArgs(args []string) *Loader {
	l.args = args
	return l
}

// WithEnv enables environment variable overrides with the given prefix
// (e.g. "MYEXP_" maps "trainer.epochs" to MYEXP_TRAINER_EPOCHS).
func (l *Loader) WithEnv(prefix string) *Loader {
	l.useEnv = true
	l.envPrefix = prefix
	return l
}

// WithValidation runs declared node rules against the merged structure.
func (l *Loader) WithValidation() *Loader {
	l.validate = true
	return l
}

// WithResolver overrides the package-level class registry for this load.
func (l *Loader) WithResolver(r Resolver) *Loader {
	l.resolver = r
	return l
}

// WithValidator adds a validation function that runs after the node is
// applied. Validators execute in the order they were added.
func (l *Loader) WithValidator(fn ValidatorFunc) *Loader {
	if fn != nil {
		l.validators = append(l.validators, fn)
	}
	return l
}

// Apply merges all configured sources and applies the result to the node.
// A missing configuration file surfaces as ErrConfigNotFound after the
// remaining sources were still applied, so callers can choose whether
// running on defaults is acceptable.
func (l *Loader) Apply(n *Node) error {
	merged := make(map[string]any)
	var notFound error

	if l.file != "" {
		fileData, err := readStructure(l.file)
		switch {
		case errors.Is(err, ErrConfigNotFound):
			notFound = err
		case err != nil:
			return err
		default:
			if err := mergo.Merge(&merged, fileData, mergo.WithOverride); err != nil {
				return fmt.Errorf("failed to merge file config: %w", err)
			}
		}
	}

	if l.useEnv {
		if err := mergo.Merge(&merged, envStructure(n, l.envPrefix), mergo.WithOverride); err != nil {
			return fmt.Errorf("failed to merge env config: %w", err)
		}
	}

	if len(l.args) > 0 {
		cliData, err := parseArgs(l.args)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCLIParse, err)
		}
		if err := mergo.Merge(&merged, cliData, mergo.WithOverride); err != nil {
			return fmt.Errorf("failed to merge CLI config: %w", err)
		}
	}

	if _, err := n.FromStructureWithOptions(merged, ApplyOptions{
		Validate: l.validate,
		Resolver: l.resolver,
	}); err != nil {
		return err
	}

	for _, validator := range l.validators {
		if err := validator(n); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return notFound
}

// MustApply is like Apply but panics on error. A missing config file is
// tolerated; the node keeps its defaults.
func (l *Loader) MustApply(n *Node) *Node {
	if err := l.Apply(n); err != nil && !errors.Is(err, ErrConfigNotFound) {
		panic(fmt.Sprintf("config load failed: %v", err))
	}
	return n
}

// Quick loads a file with env overrides onto the node in one call.
func Quick(n *Node, envPrefix, configFile string) error {
	return NewLoader().
		WithFile(configFile).
		WithEnv(envPrefix).
		Apply(n)
}
