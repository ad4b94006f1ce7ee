// Package template holds the built-in visualization templates: a
// manifest describing parameters and default effects, plus the
// fragment-stage WGSL source the render pipeline compiles.
package template

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed templates
var templateFS embed.FS

// registrationOrder fixes the registry order; "all" mode cycles
// templates in this order.
var registrationOrder = []string{
	"frequency_bars",
	"circular_spectrum",
	"waveform",
	"spectrogram",
	"particles",
	"kaleidoscope",
}

// Manifest is the on-disk template description.
type Manifest struct {
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	DefaultEffects []string         `json:"default_effects"`
	Parameters     map[string]Param `json:"parameters"`
}

// Param describes one tunable shader parameter.
type Param struct {
	Type    string   `json:"type"` // "f32", "u32" or "bool"
	Default any      `json:"default"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
}

// Template is a loaded, registered template.
type Template struct {
	Name     string
	Manifest Manifest
	// Fragment is the fs_main WGSL source with PARAM_* tokens still in
	// place; CompileSource substitutes them.
	Fragment string
}

// UnknownTemplateError reports a template name absent from the registry.
type UnknownTemplateError struct {
	Name string
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("unknown template %q (available: %s)", e.Name, strings.Join(registrationOrder, ", "))
}

var registry = mustLoadRegistry()

// mustLoadRegistry parses every embedded template at init. The embedded
// set is part of the binary; a malformed manifest is a build defect.
func mustLoadRegistry() []*Template {
	templates := make([]*Template, 0, len(registrationOrder))
	for _, name := range registrationOrder {
		manifestRaw, err := templateFS.ReadFile("templates/" + name + "/manifest.json")
		if err != nil {
			panic(fmt.Sprintf("template %s: missing manifest: %v", name, err))
		}
		var m Manifest
		if err := json.Unmarshal(manifestRaw, &m); err != nil {
			panic(fmt.Sprintf("template %s: bad manifest: %v", name, err))
		}
		if m.Name == "" {
			panic(fmt.Sprintf("template %s: manifest missing required name", name))
		}
		fragment, err := templateFS.ReadFile("templates/" + name + "/main.wgsl")
		if err != nil {
			panic(fmt.Sprintf("template %s: missing main.wgsl: %v", name, err))
		}
		templates = append(templates, &Template{
			Name:     m.Name,
			Manifest: m,
			Fragment: string(fragment),
		})
	}
	return templates
}

// All returns every registered template in registration order.
func All() []*Template {
	return registry
}

// Get looks up a template by name.
func Get(name string) (*Template, error) {
	for _, t := range registry {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, &UnknownTemplateError{Name: name}
}

// CompileSource resolves the template's parameters (manifest defaults
// overridden by the caller's KEY=VALUE pairs) and substitutes each
// PARAM_<UPPERCASE_NAME> token in the fragment source.
func (t *Template) CompileSource(overrides map[string]string) (string, error) {
	values, err := resolveParams(t.Manifest.Parameters, overrides)
	if err != nil {
		return "", err
	}

	src := t.Fragment
	for name, literal := range values {
		src = strings.ReplaceAll(src, "PARAM_"+strings.ToUpper(name), literal)
	}
	return src, nil
}
