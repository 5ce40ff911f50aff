// Package params provides typed section/key parameter lookup with defaults.
// Parameter files are YAML or TOML documents whose top level maps section
// names to key/value tables:
//
//	GA:
//	  PopulationSize: 150
//	  MutationRate: 0.3
package params

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is a parameter file encoding.
type Format int

const (
	YAML Format = iota
	TOML
)

// ErrUnknownFormat is returned for files whose extension names no format.
var ErrUnknownFormat = errors.New("unknown parameter file format")

// FormatOf returns the format implied by the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Params holds parameters by section and key. The zero value is an empty
// set of parameters for which every lookup returns its default.
type Params struct {
	sections map[string]map[string]any
}

// Load reads a parameter file, choosing the decoder by file extension.
func Load(path string) (Params, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Params{}, err
	}
	fp, err := os.Open(path)
	if err != nil {
		return Params{}, err
	}
	defer fp.Close()
	p, err := Decode(fp, format)
	if err != nil {
		return Params{}, fmt.Errorf("loading %s: %w", path, err)
	}
	return p, nil
}

// Decode reads parameters encoded in format from r.
func Decode(r io.Reader, format Format) (Params, error) {
	var sections map[string]map[string]any
	switch format {
	case YAML:
		err := yaml.NewDecoder(r).Decode(&sections)
		if err != nil && !errors.Is(err, io.EOF) {
			return Params{}, err
		}
	case TOML:
		if _, err := toml.NewDecoder(r).Decode(&sections); err != nil {
			return Params{}, err
		}
	default:
		return Params{}, ErrUnknownFormat
	}
	return Params{sections: sections}, nil
}

// Encode writes the parameters to w in format.
func (p Params) Encode(w io.Writer, format Format) error {
	sections := p.sections
	if sections == nil {
		sections = map[string]map[string]any{}
	}
	switch format {
	case YAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(sections); err != nil {
			return err
		}
		return enc.Close()
	case TOML:
		return toml.NewEncoder(w).Encode(sections)
	}
	return ErrUnknownFormat
}

// Set stores value under section and key.
func (p *Params) Set(section, key string, value any) {
	if p.sections == nil {
		p.sections = make(map[string]map[string]any)
	}
	if p.sections[section] == nil {
		p.sections[section] = make(map[string]any)
	}
	p.sections[section][key] = value
}

// Has reports whether section holds key.
func (p Params) Has(section, key string) bool {
	_, ok := p.lookup(section, key)
	return ok
}

func (p Params) lookup(section, key string) (any, bool) {
	v, ok := p.sections[section][key]
	return v, ok
}

// Float returns the numeric value of section/key or def if it is missing or
// not a number.
func (p Params) Float(section, key string, def float64) float64 {
	v, ok := p.lookup(section, key)
	if !ok {
		return def
	}
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err == nil {
			return f
		}
	}
	return def
}

// Int returns the integral value of section/key or def if it is missing or
// not an integer.
func (p Params) Int(section, key string, def int) int {
	v, ok := p.lookup(section, key)
	if !ok {
		return def
	}
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		if x == math.Trunc(x) {
			return int(x)
		}
	case string:
		i, err := strconv.Atoi(x)
		if err == nil {
			return i
		}
	}
	return def
}

// Bool returns the boolean value of section/key or def if it is missing or
// not a boolean.
func (p Params) Bool(section, key string, def bool) bool {
	v, ok := p.lookup(section, key)
	if !ok {
		return def
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(x)
		if err == nil {
			return b
		}
	}
	return def
}

// String returns the value of section/key formatted as a string or def if
// it is missing.
func (p Params) String(section, key string, def string) string {
	v, ok := p.lookup(section, key)
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Sections returns the section names in lexical order.
func (p Params) Sections() []string {
	names := make([]string, 0, len(p.sections))
	for name := range p.sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
