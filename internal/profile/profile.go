// Package profile loads parameter presets from CUE files.
//
// A preset is a named set of variable overrides applied to a render or
// export via the engine's -D mechanism, the programmatic counterpart of
// the customizer panel:
//
//	preset: small: {
//		size: 10
//		wall: 1.5
//		label: "s"
//	}
//
// CUE rather than plain data because presets want what CUE is for:
// defaults shared between presets, constraints (size: >0), and
// composition across files in the same directory.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Preset is one named parameter set.
type Preset struct {
	Name   string
	Params map[string]string // parameter name -> rendered engine value
}

// Defines renders the preset as "name=value" overrides in sorted
// parameter order, so a preset always produces the same argument vector
// (and therefore the same cache key).
func (p Preset) Defines() []string {
	names := make([]string, 0, len(p.Params))
	for name := range p.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, name+"="+p.Params[name])
	}
	return out
}

// LoadPresets loads every preset defined by the CUE package in dir.
// Returns an empty map when the directory defines none.
func LoadPresets(dir string) (map[string]Preset, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("preset directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("preset path is not a directory: %s", dir)
	}
	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scan preset directory: %w", err)
	}
	if len(files) == 0 {
		return map[string]Preset{}, nil
	}

	// Files are named explicitly so presets work without a package
	// clause, the way `cue eval a.cue b.cue` combines standalone files.
	ctx := cuecontext.New()
	instances := load.Instances(files, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("load presets: %w", inst.Err)
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("build presets: %w", err)
	}

	presets := make(map[string]Preset)
	presetsVal := value.LookupPath(cue.ParsePath("preset"))
	if !presetsVal.Exists() {
		return presets, nil
	}

	iter, err := presetsVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterate presets: %w", err)
	}
	for iter.Next() {
		name := iter.Label()
		p, err := compilePreset(name, iter.Value())
		if err != nil {
			return nil, err
		}
		presets[name] = p
	}
	return presets, nil
}

// compilePreset converts one preset struct into rendered engine values.
func compilePreset(name string, v cue.Value) (Preset, error) {
	p := Preset{Name: name, Params: make(map[string]string)}

	iter, err := v.Fields()
	if err != nil {
		return p, fmt.Errorf("preset %q: %w", name, err)
	}
	for iter.Next() {
		param := iter.Label()
		rendered, err := renderValue(iter.Value())
		if err != nil {
			return p, fmt.Errorf("preset %q, parameter %q: %w", name, param, err)
		}
		p.Params[param] = rendered
	}
	return p, nil
}

// renderValue formats a CUE value the way the engine's -D flag expects:
// numbers and booleans bare, strings quoted.
func renderValue(v cue.Value) (string, error) {
	switch v.Kind() {
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return "", err
		}
		return strconv.Quote(s), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil
	default:
		return "", fmt.Errorf("unsupported value kind %s (want number, string, or bool)", v.Kind())
	}
}

// findCUEFiles returns the names of all .cue files directly under dir,
// sorted, relative to dir.
func findCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
