// Package expconf provides serializable experiment configuration nodes
// with registry-backed polymorphic resolution.
package expconf

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Node is a declarable configuration schema. Its state is serializable to
// and from nested plain data (maps of string keys to scalars, slices and
// nested maps). A process typically holds one Node per schema and mutates
// it in place for the lifetime of a run; Renew resets it between runs.
//
// Nodes are not safe for concurrent mutation. The design assumes a single
// active configuration pass at a time.
type Node struct {
	name   string
	fields map[string]any
	order  []string
	rules  map[string]Rule
	link   *LinkSpec

	snapshot       map[string]any
	lastResolveErr error
}

// New creates a configuration node with the given schema name and registers
// it in the process-wide node tracker used by BackupAll and RenewAll.
func New(name string) *Node {
	n := &Node{
		name:   name,
		fields: make(map[string]any),
		rules:  make(map[string]Rule),
	}
	trackNode(n)
	return n
}

// Name returns the schema name of the node.
func (n *Node) Name() string {
	return n.name
}

// Declare adds a field with its default value to the node's schema.
// The field name must be a valid bare key (letters, digits, '_' and '-').
func (n *Node) Declare(field string, defaultValue any) error {
	if !isValidKeySegment(field) {
		return fmt.Errorf("invalid field name %q in node %q", field, n.name)
	}
	n.set(field, defaultValue)
	return nil
}

// MustDeclare is like Declare but panics on an invalid field name.
// It returns the node to allow chained schema declarations.
func (n *Node) MustDeclare(field string, defaultValue any) *Node {
	if err := n.Declare(field, defaultValue); err != nil {
		panic(err)
	}
	return n
}

// DeclareStruct declares fields derived from a struct with default values.
// It uses `toml` struct tags to determine field names; nested structs become
// nested child nodes named after the field key.
func (n *Node) DeclareStruct(structWithDefaults any) error {
	v := reflect.ValueOf(structWithDefaults)

	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return fmt.Errorf("DeclareStruct requires a non-nil struct pointer or value")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("DeclareStruct requires a struct or struct pointer, got %T", structWithDefaults)
	}

	var errs []string
	n.declareFields(v, &errs)
	if len(errs) > 0 {
		return fmt.Errorf("failed to declare %d field(s): %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// declareFields walks struct fields and declares each exported one.
func (n *Node) declareFields(v reflect.Value, errs *[]string) {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("toml")
		if tag == "-" {
			continue
		}

		key := field.Name
		if tag != "" {
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				key = parts[0]
			}
		}

		isStruct := fieldValue.Kind() == reflect.Struct
		isPtrToStruct := fieldValue.Kind() == reflect.Ptr && field.Type.Elem().Kind() == reflect.Struct

		if isStruct || isPtrToStruct {
			nested := fieldValue
			if isPtrToStruct {
				if fieldValue.IsNil() {
					continue
				}
				nested = fieldValue.Elem()
			}

			child := New(key)
			child.declareFields(nested, errs)
			n.set(key, child)
			continue
		}

		if err := n.Declare(key, fieldValue.Interface()); err != nil {
			*errs = append(*errs, fmt.Sprintf("field %s: %v", field.Name, err))
		}
	}
}

// Get returns the current value of a field and whether it is present.
func (n *Node) Get(field string) (any, bool) {
	v, ok := n.fields[field]
	return v, ok
}

// Set assigns a field value, adding the field if it is not declared.
func (n *Node) Set(field string, value any) {
	n.set(field, value)
}

func (n *Node) set(field string, value any) {
	if _, exists := n.fields[field]; !exists {
		n.order = append(n.order, field)
	}
	n.fields[field] = value
}

// FieldNames returns field names in declaration order. Dynamically added
// fields follow the declared ones in the order they first appeared.
func (n *Node) FieldNames() []string {
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// FieldPaths returns dot-notation paths of all leaf fields, descending into
// nested child nodes.
func (n *Node) FieldPaths() []string {
	var paths []string
	for _, name := range n.order {
		if child, ok := n.fields[name].(*Node); ok && child != nil {
			for _, sub := range child.FieldPaths() {
				paths = append(paths, name+"."+sub)
			}
			continue
		}
		paths = append(paths, name)
	}
	return paths
}

// ToStructure serializes the node's full state into a nested plain-data
// structure. Nested child nodes are serialized recursively; everything else
// is deep-copied so the result never aliases live node state.
func (n *Node) ToStructure() map[string]any {
	out := make(map[string]any, len(n.fields))
	for _, name := range n.order {
		value := n.fields[name]
		if child, ok := value.(*Node); ok {
			if child == nil {
				out[name] = nil
				continue
			}
			out[name] = child.ToStructure()
			continue
		}
		out[name] = deepCopy(value)
	}
	return out
}

// ApplyOptions controls how FromStructure applies incoming data.
type ApplyOptions struct {
	// Validate runs the node's declared rules before applying.
	Validate bool

	// Resolver overrides the package-level resolver for link nodes.
	Resolver Resolver
}

// FromStructure repopulates the node's state from a nested plain-data
// structure without validation. See FromStructureWithOptions.
func (n *Node) FromStructure(data map[string]any) (*Node, error) {
	return n.FromStructureWithOptions(data, ApplyOptions{})
}

// FromStructureWithOptions repopulates the node's state from a nested
// plain-data structure. Empty data is a no-op. The data is deep-copied
// before use and never aliased.
//
// For link nodes the implementation is resolved through the class registry
// (see LinkSpec); resolution failures are logged and recorded on the node
// but do not return an error. For regular nodes every key is applied:
// unknown keys are added dynamically, keys whose declared value is a nested
// node recurse into it, and everything else overwrites the field.
//
// The node is mutated in place and returned. A *ValidationError is returned
// only when opts.Validate is set and the data violates declared rules.
func (n *Node) FromStructureWithOptions(data map[string]any, opts ApplyOptions) (*Node, error) {
	if len(data) == 0 {
		return n, nil
	}

	config := deepCopyStructure(data)

	if opts.Validate {
		if err := n.CheckStructure(config); err != nil {
			return n, err
		}
	}

	if n.IsLink() {
		n.applyLink(config, opts)
		return n, nil
	}

	for _, key := range sortedKeys(config) {
		value := config[key]

		existing, exists := n.fields[key]
		if !exists {
			n.set(key, value)
			continue
		}

		if child, ok := existing.(*Node); ok && child != nil {
			if sub, ok := value.(map[string]any); ok {
				if _, err := child.FromStructureWithOptions(sub, opts); err != nil {
					return n, err
				}
				continue
			}
		}

		n.fields[key] = value
	}

	n.applyPipeStepFields(config)
	return n, nil
}

// pipeStepNodeName identifies the single node that receives special field
// promotion in applyPipeStepFields.
const pipeStepNodeName = "PipeStepConfig"

// applyPipeStepFields reproduces a long-standing exception for the pipeline
// step schema: "type" and "models_folder" found under a "pipe_step" sub-map
// are promoted onto the top level. It applies to that one node only and is
// deliberately not generalized.
func (n *Node) applyPipeStepFields(data map[string]any) {
	if n.name != pipeStepNodeName {
		return
	}
	step, ok := data["pipe_step"].(map[string]any)
	if !ok {
		return
	}
	if v, ok := step["type"]; ok {
		n.set("type", v)
	}
	if v, ok := step["models_folder"]; ok {
		n.set("models_folder", v)
	}
}

// sortedKeys returns map keys in a stable order so repeated applications
// add dynamic fields deterministically.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
