package effect

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidParameter = errors.New("invalid parameter")

type ParamKind int

const (
	ParamInt ParamKind = iota
	ParamFloat
	ParamBool
)

// ParamSpec constrains one tunable of a style. Values outside [Min, Max] are
// clamped, never rejected; MustOdd values are forced odd with v|1.
type ParamSpec struct {
	Kind    ParamKind
	Default float64
	Min     float64
	Max     float64
	MustOdd bool
}

type Schema map[string]ParamSpec

// Params is a fully normalized parameter set. Booleans are stored as 0/1.
type Params map[string]float64

func (p Params) Int(name string) int {
	return int(p[name])
}

func (p Params) Float(name string) float64 {
	return p[name]
}

func (p Params) Bool(name string) bool {
	return p[name] != 0
}

// Normalize validates raw values against the schema and returns a complete
// parameter set: missing fields take defaults, numeric fields are clamped,
// must-be-odd fields are repaired, unknown keys are ignored. A value of the
// wrong type fails with ErrInvalidParameter. Pure function of (schema, raw).
func (s Schema) Normalize(raw map[string]any) (Params, error) {
	out := make(Params, len(s))
	for name, spec := range s {
		value := spec.Default
		if rawValue, ok := raw[name]; ok {
			coerced, err := coerceParam(name, spec, rawValue)
			if err != nil {
				return nil, err
			}
			value = coerced
		}

		if spec.Kind != ParamBool {
			value = clampFloat(value, spec.Min, spec.Max)
		}
		if spec.Kind == ParamInt {
			value = math.Round(value)
		}
		if spec.MustOdd {
			value = float64(int(value) | 1)
		}
		out[name] = value
	}
	return out, nil
}

func coerceParam(name string, spec ParamSpec, raw any) (float64, error) {
	if spec.Kind == ParamBool {
		switch v := raw.(type) {
		case bool:
			if v {
				return 1, nil
			}
			return 0, nil
		default:
			return 0, fmt.Errorf("%w: %s must be a boolean", ErrInvalidParameter, name)
		}
	}

	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidParameter, name)
	}
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
