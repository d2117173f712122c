package expconf

import (
	"fmt"

	"go.uber.org/zap"
)

// Default field names used by link nodes.
const (
	DefaultDiscriminatorField = "type"
	DefaultConfigField        = "class_data"
)

// LinkSpec marks a node as a link node: a schema whose concrete shape is
// resolved at deserialization time. DiscriminatorField holds the chosen
// implementation name, Category is the registry category the name is looked
// up under, and ConfigField receives the resolved implementation's own
// configuration node.
type LinkSpec struct {
	DiscriminatorField string
	Category           string
	ConfigField        string
}

// Resolver looks up a registered implementation by category and name.
// The registry package provides the standard implementation.
type Resolver interface {
	Lookup(category, name string) (any, bool)
}

// Configurable is implemented by registered implementations that carry
// their own configuration schema. A link node resolves the implementation
// through the registry and then deserializes into this schema.
type Configurable interface {
	ConfigSchema() *Node
}

// globalResolver backs link resolution when no per-call resolver is given.
// It is set once at startup, before any configuration pass.
var globalResolver Resolver

// SetResolver installs the process-wide class registry consulted by link
// nodes. Typically called once with registry.Default().
func SetResolver(r Resolver) {
	globalResolver = r
}

func defaultResolver() Resolver {
	return globalResolver
}

// NewLink creates a link node for the given registry category. The node
// declares the discriminator field (empty by default) and the config field
// (nil until resolution succeeds).
func NewLink(name, category string) *Node {
	n := New(name)
	n.link = &LinkSpec{
		DiscriminatorField: DefaultDiscriminatorField,
		Category:           category,
		ConfigField:        DefaultConfigField,
	}
	n.set(n.link.DiscriminatorField, "")
	n.set(n.link.ConfigField, (*Node)(nil))
	return n
}

// Link returns the node's link spec, or nil for regular nodes.
func (n *Node) Link() *LinkSpec {
	return n.link
}

// IsLink reports whether the node resolves its shape through the registry.
// A node is a link node only when the discriminator field, the category and
// the config field are all set.
func (n *Node) IsLink() bool {
	return n.link != nil &&
		n.link.DiscriminatorField != "" &&
		n.link.Category != "" &&
		n.link.ConfigField != ""
}

// LastResolveError returns the most recent link resolution failure, or nil
// if the last resolution succeeded. Resolution failures never abort
// FromStructure; callers that require a resolved implementation check here.
func (n *Node) LastResolveError() error {
	return n.lastResolveErr
}

// ResolveError describes a failed link resolution. It is recorded on the
// node and logged, never returned from FromStructure.
type ResolveError struct {
	Node     string
	Category string
	Name     string
	Reason   string
}

func (e *ResolveError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("failed to resolve config for node %q (category %q): %s",
			e.Node, e.Category, e.Reason)
	}
	return fmt.Sprintf("failed to resolve config %q for node %q (category %q): %s",
		e.Name, e.Node, e.Category, e.Reason)
}

// applyLink resolves the discriminator value through the registry and
// deserializes the chosen implementation's schema into the config field.
// On any failure the node state is left unchanged.
func (n *Node) applyLink(data map[string]any, opts ApplyOptions) {
	spec := n.link

	raw, ok := data[spec.DiscriminatorField]
	if !ok {
		n.failResolve("", "data carries no "+spec.DiscriminatorField+" key")
		return
	}

	name, _ := raw.(string)
	if name == "" {
		// An empty choice is not an error: nothing is applied.
		return
	}

	// A previously serialized node carries the nested config under the
	// config field (restore path); fresh user input is the payload itself.
	payload := data
	if nested, ok := data[spec.ConfigField]; ok {
		payload, _ = nested.(map[string]any)
	}

	resolver := opts.Resolver
	if resolver == nil {
		resolver = defaultResolver()
	}
	if resolver == nil {
		n.failResolve(name, "no resolver configured")
		return
	}

	impl, found := resolver.Lookup(spec.Category, name)
	if !found {
		n.failResolve(name, "no implementation registered")
		return
	}

	configurable, ok := impl.(Configurable)
	if !ok || configurable.ConfigSchema() == nil {
		n.failResolve(name, "implementation has no config schema")
		return
	}
	schema := configurable.ConfigSchema()

	n.set(spec.DiscriminatorField, name)
	if len(payload) > 0 {
		applied, _ := schema.FromStructureWithOptions(payload, opts)
		n.set(spec.ConfigField, applied)
	} else {
		n.set(spec.ConfigField, schema)
	}
	n.lastResolveErr = nil
}

// failResolve records and logs a resolution failure without touching state.
func (n *Node) failResolve(name, reason string) {
	err := &ResolveError{
		Node:     n.name,
		Category: n.link.Category,
		Name:     name,
		Reason:   reason,
	}
	n.lastResolveErr = err
	logger().Error("failed to resolve link config",
		zap.String("node", n.name),
		zap.String("category", n.link.Category),
		zap.String("name", name),
		zap.String("reason", reason),
	)
}
