package expconf

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Rule declares validation constraints for a single field. The zero value
// accepts anything; validation is opt-in per field and per apply.
type Rule struct {
	// Required rejects data that does not carry the field.
	Required bool

	// Type names the expected shape: "string", "int", "float", "bool",
	// "map" or "slice". Empty accepts any type.
	Type string

	// Min and Max bound numeric values when set.
	Min *float64
	Max *float64

	// Choices restricts the value to an enumerated set.
	Choices []any
}

// Float returns a pointer to f, for populating Rule bounds inline.
func Float(f float64) *float64 {
	return &f
}

// FaultKind classifies a single validation fault.
type FaultKind int

const (
	// FaultMissing marks a required field absent from the data.
	FaultMissing FaultKind = iota
	// FaultType marks a value of the wrong type.
	FaultType
	// FaultRange marks a value outside its declared range or choices.
	FaultRange
)

func (k FaultKind) String() string {
	switch k {
	case FaultMissing:
		return "missing"
	case FaultType:
		return "type"
	case FaultRange:
		return "range"
	default:
		return "unknown"
	}
}

// FieldFault is one rule violation found while checking a structure.
type FieldFault struct {
	Field  string
	Kind   FaultKind
	Detail string
}

// ValidationError reports all rule violations found in a structure. It is
// returned by FromStructureWithOptions only when validation was requested.
type ValidationError struct {
	Node   string
	Faults []FieldFault
}

func (e *ValidationError) Error() string {
	details := make([]string, len(e.Faults))
	for i, f := range e.Faults {
		details[i] = fmt.Sprintf("%s (%s): %s", f.Field, f.Kind, f.Detail)
	}
	return fmt.Sprintf("invalid config for node %q: %s", e.Node, strings.Join(details, "; "))
}

// RuleChecker validates a structure against a node's declared rules.
type RuleChecker func(n *Node, data map[string]any) error

// ruleChecker is the pluggable checking function behind CheckStructure.
var ruleChecker RuleChecker = checkRules

// SetRuleChecker replaces the rule-checking function. A nil checker
// restores the default.
func SetRuleChecker(fn RuleChecker) {
	if fn == nil {
		fn = checkRules
	}
	ruleChecker = fn
}

// SetRule attaches a validation rule to a field.
func (n *Node) SetRule(field string, r Rule) {
	n.rules[field] = r
}

// Rules returns the node's declared rule set. The default is empty;
// validation never fires unless rules were declared.
func (n *Node) Rules() map[string]Rule {
	return n.rules
}

// CheckStructure validates data against the node's declared rules using
// the installed rule checker. It returns a *ValidationError on violation.
func (n *Node) CheckStructure(data map[string]any) error {
	return ruleChecker(n, data)
}

// checkRules is the default rule checker.
func checkRules(n *Node, data map[string]any) error {
	var faults []FieldFault

	for _, field := range sortedRuleFields(n.rules) {
		rule := n.rules[field]

		value, present := data[field]
		if !present {
			if rule.Required {
				faults = append(faults, FieldFault{field, FaultMissing, "required field is absent"})
			}
			continue
		}

		if rule.Type != "" && !typeMatches(rule.Type, value) {
			faults = append(faults, FieldFault{
				field, FaultType,
				fmt.Sprintf("expected %s, got %T", rule.Type, value),
			})
			continue
		}

		if rule.Min != nil || rule.Max != nil {
			num, ok := toFloat(value)
			if !ok {
				faults = append(faults, FieldFault{
					field, FaultType,
					fmt.Sprintf("range rule on non-numeric value %T", value),
				})
				continue
			}
			if rule.Min != nil && num < *rule.Min {
				faults = append(faults, FieldFault{
					field, FaultRange,
					fmt.Sprintf("%v is below minimum %v", value, *rule.Min),
				})
			}
			if rule.Max != nil && num > *rule.Max {
				faults = append(faults, FieldFault{
					field, FaultRange,
					fmt.Sprintf("%v is above maximum %v", value, *rule.Max),
				})
			}
		}

		if len(rule.Choices) > 0 && !inChoices(value, rule.Choices) {
			faults = append(faults, FieldFault{
				field, FaultRange,
				fmt.Sprintf("%v is not one of the declared choices", value),
			})
		}
	}

	if len(faults) > 0 {
		return &ValidationError{Node: n.name, Faults: faults}
	}
	return nil
}

func sortedRuleFields(rules map[string]Rule) []string {
	fields := make([]string, 0, len(rules))
	for f := range rules {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func typeMatches(want string, value any) bool {
	if value == nil {
		return false
	}
	v := reflect.ValueOf(value)
	switch want {
	case "string":
		return v.Kind() == reflect.String
	case "int":
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		case reflect.Float32, reflect.Float64:
			// JSON decodes all numbers as float64; accept integral floats.
			return v.Float() == float64(int64(v.Float()))
		}
		return false
	case "float":
		switch v.Kind() {
		case reflect.Float32, reflect.Float64,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		}
		return false
	case "bool":
		return v.Kind() == reflect.Bool
	case "map":
		return v.Kind() == reflect.Map
	case "slice":
		return v.Kind() == reflect.Slice || v.Kind() == reflect.Array
	default:
		return false
	}
}

func toFloat(value any) (float64, bool) {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}

func inChoices(value any, choices []any) bool {
	for _, c := range choices {
		if reflect.DeepEqual(value, c) {
			return true
		}
		// Numeric choices should match across int/float representations.
		if a, ok := toFloat(value); ok {
			if b, ok := toFloat(c); ok && a == b {
				return true
			}
		}
	}
	return false
}
