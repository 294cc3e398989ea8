// Package params implements bounded physics parameters and the slider
// transforms used to expose them to clients.
package params

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

// SliderMax is the top of the continuous slider domain. The domain has
// SliderMax+1 steps, 0 through SliderMax.
const SliderMax = 100.0

type Kind int

const (
	Continuous Kind = iota
	Discrete
	Bool
)

func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Discrete:
		return "discrete"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Param is a tagged variant; Kind selects the encode/decode behavior.
// Min, Max and Step are ignored for Bool parameters.
type Param struct {
	Kind        Kind
	DisplayName string
	Min         float64
	Max         float64
	Step        float64

	value dynamo.Value
}

func NewContinuous(displayName string, value, lo, hi float64) *Param {
	return &Param{Kind: Continuous, DisplayName: displayName, Min: lo, Max: hi, value: dynamo.Value(value)}
}

// NewDiscrete creates an integer-stepped parameter. A zero step defaults to 1.
func NewDiscrete(displayName string, value, lo, hi, step float64) *Param {
	if step == 0 {
		step = 1
	}
	return &Param{Kind: Discrete, DisplayName: displayName, Min: lo, Max: hi, Step: step, value: dynamo.Value(value)}
}

func NewBool(displayName string, value bool) *Param {
	return &Param{Kind: Bool, DisplayName: displayName, value: dynamo.BoolValue(value)}
}

func (p *Param) Value() dynamo.Value { return p.value }

func (p *Param) Clone() *Param {
	c := *p
	return &c
}

func (p *Param) span() float64 {
	return math.Abs(p.Max - p.Min)
}

// Encode maps a physical value to its slider representation.
func (p *Param) Encode(v dynamo.Value) any {
	switch p.Kind {
	case Continuous:
		if p.span() == 0 {
			return 0.0
		}
		return (float64(v) - p.Min) / p.span() * SliderMax
	case Discrete:
		return float64(v)
	case Bool:
		return v.Bool()
	default:
		return nil
	}
}

// Decode maps a slider value back to the physical domain.
func (p *Param) Decode(raw any) (dynamo.Value, error) {
	switch p.Kind {
	case Continuous:
		s, err := toFloat(raw)
		if err != nil {
			return 0, err
		}
		return dynamo.Value(p.Min + s/SliderMax*p.span()), nil
	case Discrete:
		s, err := toFloat(raw)
		if err != nil {
			return 0, err
		}
		return dynamo.Value(s), nil
	case Bool:
		b, err := toBool(raw)
		if err != nil {
			return 0, err
		}
		return dynamo.BoolValue(b), nil
	default:
		return 0, fmt.Errorf("unknown parameter kind %d", p.Kind)
	}
}

// Set decodes a client value and stores it. The stored value is unchanged
// when decoding fails.
func (p *Param) Set(raw any) error {
	v, err := p.Decode(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", p.DisplayName, err)
	}
	p.value = v
	return nil
}

// ClientParam is the boundary form of a parameter.
type ClientParam struct {
	Name          string   `json:"name" yaml:"name"`
	AlgorithmName string   `json:"algoName" yaml:"algoName"`
	DisplayName   string   `json:"displayName" yaml:"displayName"`
	Type          string   `json:"type" yaml:"type"`
	Value         any      `json:"value" yaml:"value"`
	Min           *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max           *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Step          *float64 `json:"step,omitempty" yaml:"step,omitempty"`
}

func (p *Param) ToClient(name, algorithmName string) ClientParam {
	c := ClientParam{
		Name:          name,
		AlgorithmName: algorithmName,
		DisplayName:   p.DisplayName,
		Type:          p.Kind.String(),
		Value:         p.Encode(p.value),
	}
	if p.Kind == Discrete {
		lo, hi, step := p.Min, p.Max, p.Step
		c.Min, c.Max, c.Step = &lo, &hi, &step
	}
	return c
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case dynamo.Value:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("not a bool: %q", v)
		}
		return b, nil
	default:
		return false, fmt.Errorf("expected bool, got %T", raw)
	}
}

// Set is a named collection of parameters belonging to one algorithm.
type Set map[string]*Param

func (s Set) Clone() Set {
	c := make(Set, len(s))
	for name, p := range s {
		c[name] = p.Clone()
	}
	return c
}

func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s Set) Values() map[string]dynamo.Value {
	out := make(map[string]dynamo.Value, len(s))
	for name, p := range s {
		out[name] = p.value
	}
	return out
}

// Get returns the current value of name, or def when the set has no such
// parameter.
func (s Set) Get(name string, def dynamo.Value) dynamo.Value {
	if p, ok := s[name]; ok {
		return p.value
	}
	return def
}

func (s Set) ToClient(algorithmName string) []ClientParam {
	out := make([]ClientParam, 0, len(s))
	for _, name := range s.Names() {
		out = append(out, s[name].ToClient(name, algorithmName))
	}
	return out
}
