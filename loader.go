package expconf

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/expconf/expconf/internal/fileops"
)

// FromFile loads a configuration file and applies it to the node via
// FromStructure. TOML, JSON and YAML are supported; the format is detected
// from the extension, falling back to content sniffing.
func (n *Node) FromFile(path string) error {
	data, err := readStructure(path)
	if err != nil {
		return err
	}
	_, err = n.FromStructure(data)
	return err
}

// FromArgs applies command-line overrides of the form "--dot.path value",
// "--dot.path=value" or "--boolflag" to the node.
func (n *Node) FromArgs(args []string) error {
	overrides, err := parseArgs(args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCLIParse, err)
	}
	_, err = n.FromStructure(overrides)
	return err
}

// Save writes the node's current structure to a TOML file atomically.
func (n *Node) Save(path string) error {
	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(n.ToStructure()); err != nil {
		return fmt.Errorf("failed to marshal config to TOML: %w", err)
	}
	return fileops.AtomicWrite(path, buf.Bytes(), 0644)
}

// readStructure reads and parses a configuration file into a nested map.
func readStructure(path string) (map[string]any, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to stat config file '%s': %w", path, err)
	}
	if fileInfo.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("%w: '%s' is %d bytes", ErrFileSize, path, fileInfo.Size())
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	}
	defer file.Close()

	fileData, err := io.ReadAll(io.LimitReader(file, MaxConfigFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	format := detectFileFormat(path)
	if format == "" {
		format = detectFormatFromContent(fileData)
		if format == "" {
			return nil, fmt.Errorf("unable to determine config format for file '%s'", path)
		}
	}

	fileConfig := make(map[string]any)
	switch format {
	case "toml":
		if err := toml.Unmarshal(fileData, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config file '%s': %w", path, err)
		}
	case "json":
		decoder := json.NewDecoder(bytes.NewReader(fileData))
		decoder.UseNumber() // Preserve number precision
		if err := decoder.Decode(&fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config file '%s': %w", path, err)
		}
		normalizeJSONNumbers(fileConfig)
	case "yaml":
		if err := yaml.Unmarshal(fileData, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config file '%s': %w", path, err)
		}
	}

	return fileConfig, nil
}

// envStructure collects environment overrides for the node's field paths.
// Paths transform to PREFIX_DOT_PATH with dots as underscores, uppercased.
func envStructure(n *Node, prefix string) map[string]any {
	overrides := make(map[string]any)
	for _, path := range n.FieldPaths() {
		envVar := envTransform(prefix, path)
		if value, exists := os.LookupEnv(envVar); exists {
			setNestedValue(overrides, path, parseScalar(value))
		}
	}
	return overrides
}

func envTransform(prefix, path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	return prefix + env
}

// parseArgs processes command-line arguments into a nested map structure.
func parseArgs(args []string) (map[string]any, error) {
	result := make(map[string]any)
	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			// Skip non-flag arguments
			i++
			continue
		}

		argContent := strings.TrimPrefix(arg, "--")
		if argContent == "" {
			// Skip "--" used as a separator
			i++
			continue
		}

		var keyPath string
		var valueStr string

		if strings.Contains(argContent, "=") {
			parts := strings.SplitN(argContent, "=", 2)
			keyPath = parts[0]
			valueStr = parts[1]
			i++
		} else {
			keyPath = argContent
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
				// Boolean flag with no explicit value
				valueStr = "true"
				i++
			} else {
				valueStr = args[i+1]
				i += 2
			}
		}

		if keyPath == "" {
			continue
		}

		segments := strings.Split(keyPath, ".")
		for _, segment := range segments {
			if !isValidKeySegment(segment) {
				return nil, fmt.Errorf("invalid key segment %q in path %q", segment, keyPath)
			}
		}

		setNestedValue(result, keyPath, parseScalar(valueStr))
	}

	return result, nil
}

// parseScalar parses a string into bool, int64 or float64, keeping it a
// string when nothing matches.
func parseScalar(s string) any {
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// normalizeJSONNumbers rewrites json.Number values into int64 or float64
// so structures from JSON files compare equal to TOML/YAML ones.
func normalizeJSONNumbers(m map[string]any) {
	for k, v := range m {
		switch t := v.(type) {
		case json.Number:
			if i, err := t.Int64(); err == nil {
				m[k] = i
			} else if f, err := t.Float64(); err == nil {
				m[k] = f
			} else {
				m[k] = t.String()
			}
		case map[string]any:
			normalizeJSONNumbers(t)
		case []any:
			for i, e := range t {
				if sub, ok := e.(map[string]any); ok {
					normalizeJSONNumbers(sub)
				} else if num, ok := e.(json.Number); ok {
					if iv, err := num.Int64(); err == nil {
						t[i] = iv
					} else if fv, err := num.Float64(); err == nil {
						t[i] = fv
					}
				}
			}
		}
	}
}

// detectFileFormat determines format from file extension.
func detectFileFormat(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml", ".tml":
		return "toml"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return ""
	}
}

// detectFormatFromContent attempts to detect format by parsing.
func detectFormatFromContent(data []byte) string {
	// Try JSON first (strict format)
	var jsonTest any
	if err := json.Unmarshal(data, &jsonTest); err == nil {
		return "json"
	}

	// YAML is a superset of JSON, so check after JSON
	var yamlTest any
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		return "yaml"
	}

	var tomlTest any
	if err := toml.Unmarshal(data, &tomlTest); err == nil {
		return "toml"
	}

	return ""
}
