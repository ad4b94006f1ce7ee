package template

import (
	"fmt"
	"strconv"
	"strings"
)

// ParamError reports an unknown parameter key or an out-of-range or
// malformed value.
type ParamError struct {
	Key string
	Msg string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Key, e.Msg)
}

// ParseOverrides parses a comma-separated KEY=VALUE list from the
// command line into a map. Values are validated later against the
// selected template's manifest.
func ParseOverrides(s string) (map[string]string, error) {
	overrides := map[string]string{}
	if s == "" {
		return overrides, nil
	}
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, &ParamError{Key: pair, Msg: "expected KEY=VALUE"}
		}
		overrides[key] = strings.TrimSpace(value)
	}
	return overrides, nil
}

// resolveParams merges manifest defaults with overrides and renders
// each parameter as the WGSL literal substituted for its PARAM token.
func resolveParams(params map[string]Param, overrides map[string]string) (map[string]string, error) {
	for key := range overrides {
		if _, ok := params[key]; !ok {
			return nil, &ParamError{Key: key, Msg: "unknown parameter"}
		}
	}

	values := make(map[string]string, len(params))
	for name, p := range params {
		raw, overridden := overrides[name]
		literal, err := renderParam(name, p, raw, overridden)
		if err != nil {
			return nil, err
		}
		values[name] = literal
	}
	return values, nil
}

// renderParam validates one parameter value and formats its WGSL
// literal.
func renderParam(name string, p Param, raw string, overridden bool) (string, error) {
	switch p.Type {
	case "f32":
		v, err := paramFloat(name, p, raw, overridden)
		if err != nil {
			return "", err
		}
		return formatWGSLFloat(v), nil

	case "u32":
		v, err := paramFloat(name, p, raw, overridden)
		if err != nil {
			return "", err
		}
		if v < 0 || v != float64(uint64(v)) {
			return "", &ParamError{Key: name, Msg: fmt.Sprintf("expected unsigned integer, got %v", v)}
		}
		return strconv.FormatUint(uint64(v), 10), nil

	case "bool":
		if !overridden {
			b, ok := p.Default.(bool)
			if !ok {
				return "", &ParamError{Key: name, Msg: "manifest default is not a bool"}
			}
			return strconv.FormatBool(b), nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return "", &ParamError{Key: name, Msg: fmt.Sprintf("expected bool, got %q", raw)}
		}
		return strconv.FormatBool(b), nil

	default:
		return "", &ParamError{Key: name, Msg: fmt.Sprintf("manifest declares unsupported type %q", p.Type)}
	}
}

// paramFloat resolves a numeric parameter's value and range-checks it.
func paramFloat(name string, p Param, raw string, overridden bool) (float64, error) {
	var v float64
	if overridden {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, &ParamError{Key: name, Msg: fmt.Sprintf("expected number, got %q", raw)}
		}
		v = parsed
	} else {
		def, ok := p.Default.(float64) // JSON numbers decode to float64
		if !ok {
			return 0, &ParamError{Key: name, Msg: "manifest default is not a number"}
		}
		v = def
	}

	if p.Min != nil && v < *p.Min {
		return 0, &ParamError{Key: name, Msg: fmt.Sprintf("value %v below minimum %v", v, *p.Min)}
	}
	if p.Max != nil && v > *p.Max {
		return 0, &ParamError{Key: name, Msg: fmt.Sprintf("value %v above maximum %v", v, *p.Max)}
	}
	return v, nil
}

// formatWGSLFloat renders a float literal that WGSL parses as f32-typed
// (always carries a decimal point or exponent).
func formatWGSLFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
