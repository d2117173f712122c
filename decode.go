package expconf

import (
	"fmt"
	"net"
	"net/url"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// structValidate backs ScanValidated. Struct targets opt into validation
// through standard `validate` tags.
var structValidate = validator.New(validator.WithRequiredStructEnabled())

// Scan decodes the node structure under basePath into the target struct or
// map. An empty basePath decodes the whole node. The target must be a
// non-nil pointer; fields map through `toml` tags.
func (n *Node) Scan(basePath string, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("scan target must be a non-nil pointer, got %T", target)
	}

	var sectionData any = n.ToStructure()
	if basePath != "" {
		v, ok := n.lookupPath(basePath)
		if !ok {
			sectionData = map[string]any{}
		} else if child, isNode := v.(*Node); isNode && child != nil {
			sectionData = child.ToStructure()
		} else {
			sectionData = deepCopy(v)
		}
	}

	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		return fmt.Errorf("path %q refers to non-map value (type %T)", basePath, sectionData)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "toml",
		WeaklyTypedInput: true,
		DecodeHook:       decodeHook(),
		ZeroFields:       true,
	})
	if err != nil {
		return fmt.Errorf("decoder creation failed: %w", err)
	}

	if err := decoder.Decode(sectionMap); err != nil {
		return fmt.Errorf("decode failed for path %q: %w", basePath, err)
	}

	return nil
}

// ScanValidated decodes like Scan and then runs struct tag validation on
// the target.
func (n *Node) ScanValidated(basePath string, target any) error {
	if err := n.Scan(basePath, target); err != nil {
		return err
	}
	if err := structValidate.Struct(target); err != nil {
		return fmt.Errorf("config for path %q failed validation: %w", basePath, err)
	}
	return nil
}

// decodeHook returns the composite decode hook for all type conversions.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		stringToNetIPHookFunc(),
		stringToURLHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// stringToNetIPHookFunc handles net.IP conversion.
func stringToNetIPHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t != reflect.TypeOf(net.IP{}) {
			return data, nil
		}

		str := data.(string)
		if len(str) > 45 { // Max IPv6 length
			return nil, fmt.Errorf("invalid IP length: %d", len(str))
		}

		ip := net.ParseIP(str)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP address: %s", str)
		}
		return ip, nil
	}
}

// stringToURLHookFunc handles url.URL conversion.
func stringToURLHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		isPtr := t.Kind() == reflect.Ptr
		targetType := t
		if isPtr {
			targetType = t.Elem()
		}
		if targetType != reflect.TypeOf(url.URL{}) {
			return data, nil
		}

		str := data.(string)
		if len(str) > 2048 {
			return nil, fmt.Errorf("URL too long: %d bytes", len(str))
		}
		u, err := url.Parse(str)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		if isPtr {
			return u, nil
		}
		return *u, nil
	}
}
