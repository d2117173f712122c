package expconf

import (
	"os"
	"path/filepath"
	"strings"
)

// FileDiscoveryOptions configures automatic config file discovery.
type FileDiscoveryOptions struct {
	// Base name of the config file (without extension)
	Name string

	// Extensions to try (in order)
	Extensions []string

	// Custom search paths (in addition to defaults)
	Paths []string

	// Environment variable to check for an explicit path
	EnvVar string

	// CLI flag to check (e.g. "--config")
	CLIFlag string

	// Whether to search in XDG config directories
	UseXDG bool

	// Whether to search in the current directory
	UseCurrentDir bool
}

// DefaultDiscoveryOptions returns sensible defaults for an application name.
func DefaultDiscoveryOptions(appName string) FileDiscoveryOptions {
	return FileDiscoveryOptions{
		Name:          appName,
		Extensions:    []string{".toml", ".yaml", ".yml", ".json"},
		EnvVar:        strings.ToUpper(appName) + "_CONFIG",
		CLIFlag:       "--config",
		UseXDG:        true,
		UseCurrentDir: true,
	}
}

// WithFileDiscovery locates the configuration file automatically: explicit
// CLI flag first, then the environment variable, then the search paths.
func (l *Loader) WithFileDiscovery(opts FileDiscoveryOptions) *Loader {
	if opts.CLIFlag != "" && len(l.args) > 0 {
		for i, arg := range l.args {
			if arg == opts.CLIFlag && i+1 < len(l.args) {
				l.file = l.args[i+1]
				return l
			}
			if strings.HasPrefix(arg, opts.CLIFlag+"=") {
				l.file = strings.TrimPrefix(arg, opts.CLIFlag+"=")
				return l
			}
		}
	}

	if opts.EnvVar != "" {
		if path := os.Getenv(opts.EnvVar); path != "" {
			l.file = path
			return l
		}
	}

	var searchPaths []string
	searchPaths = append(searchPaths, opts.Paths...)

	if opts.UseCurrentDir {
		if cwd, err := os.Getwd(); err == nil {
			searchPaths = append(searchPaths, cwd)
		}
	}
	if opts.UseXDG {
		searchPaths = append(searchPaths, xdgConfigPaths(opts.Name)...)
	}

	for _, dir := range searchPaths {
		for _, ext := range opts.Extensions {
			path := filepath.Join(dir, opts.Name+ext)
			if _, err := os.Stat(path); err == nil {
				l.file = path
				return l
			}
		}
	}

	// No file found is not an error; the node keeps its defaults.
	return l
}

// xdgConfigPaths returns XDG-compliant config search paths.
func xdgConfigPaths(appName string) []string {
	var paths []string

	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		paths = append(paths, filepath.Join(xdgHome, appName))
	} else if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", appName))
	}

	if xdgDirs := os.Getenv("XDG_CONFIG_DIRS"); xdgDirs != "" {
		for _, dir := range filepath.SplitList(xdgDirs) {
			paths = append(paths, filepath.Join(dir, appName))
		}
	} else {
		paths = append(paths,
			filepath.Join("/etc/xdg", appName),
			filepath.Join("/etc", appName),
		)
	}

	return paths
}
