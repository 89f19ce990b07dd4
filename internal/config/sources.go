package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/xtxerr/aprs2influxdb/internal/errors"
)

// Source represents a source of raw configuration values.
type Source interface {
	// Lookup returns the raw value for key and whether the source sets it.
	Lookup(key string) (string, bool)
	// Name identifies the source in error messages.
	Name() string
}

// =============================================================================
// Environment
// =============================================================================

// EnvSource reads environment variables.
type EnvSource struct {
	lookup func(string) (string, bool)
}

// NewEnvSource returns a source backed by the process environment.
func NewEnvSource() *EnvSource {
	return &EnvSource{lookup: os.LookupEnv}
}

// NewMapEnvSource returns an environment source over a fixed map.
func NewMapEnvSource(env map[string]string) *EnvSource {
	return &EnvSource{lookup: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}
}

func (e *EnvSource) Lookup(key string) (string, bool) {
	return e.lookup(key)
}

func (e *EnvSource) Name() string { return "environment" }

// =============================================================================
// Command line
// =============================================================================

// FlagSource exposes the flags that were set explicitly on a pflag.FlagSet.
type FlagSource struct {
	fs   *pflag.FlagSet
	keys map[string]string // key -> flag name
}

// BindFlags registers one flag per configuration key on fs.
func BindFlags(fs *pflag.FlagSet) *FlagSource {
	src := &FlagSource{fs: fs, keys: make(map[string]string, len(flagKeys))}
	for _, fk := range flagKeys {
		fs.String(fk.flag, "", fk.help)
		src.keys[fk.key] = fk.flag
	}
	fs.Lookup(FlagLogJSON).NoOptDefVal = "true"
	return src
}

func (f *FlagSource) Lookup(key string) (string, bool) {
	name, ok := f.keys[key]
	if !ok {
		return "", false
	}
	fl := f.fs.Lookup(name)
	if fl == nil || !fl.Changed {
		return "", false
	}
	return fl.Value.String(), true
}

func (f *FlagSource) Name() string { return "command line" }

// =============================================================================
// YAML file
// =============================================================================

// FileSource holds the values of a YAML configuration file. Keys may be
// flat (aprs_server: ...) or nested (aprs: {server: ...}).
type FileSource struct {
	path   string
	values map[string]string
}

// LoadFile reads a YAML configuration file. ${VAR} references are expanded
// from the environment before parsing.
func LoadFile(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return ParseFile(path, []byte(os.ExpandEnv(string(data))))
}

// ParseFile parses YAML configuration data.
func ParseFile(path string, data []byte) (*FileSource, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(errors.Mark(err, errors.ErrInvalidConfig), "parse %s", path)
	}

	src := &FileSource{path: path, values: make(map[string]string)}
	if err := flatten("", raw, src.values); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return src, nil
}

func flatten(prefix string, in map[string]any, out map[string]string) error {
	for k, v := range in {
		key := strings.ToUpper(k)
		if prefix != "" {
			key = prefix + "_" + key
		}
		switch val := v.(type) {
		case map[string]any:
			if err := flatten(key, val, out); err != nil {
				return err
			}
		case []any:
			return errors.NewInvalidValue(strings.ToLower(key), val, "lists are not supported")
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(val)
		}
	}
	return nil
}

func (f *FileSource) Lookup(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

func (f *FileSource) Name() string { return f.path }

// Keys returns the keys set by the file, sorted.
func (f *FileSource) Keys() []string {
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
