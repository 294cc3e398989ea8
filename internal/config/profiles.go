package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/params"
)

// Layout algorithm names.
const (
	ForceAtlas2       = "ForceAtlas2"
	ForceAtlas2Barnes = "ForceAtlas2Barnes"
	EdgeBundling      = "EdgeBundling"
)

const DefaultProfile = "default"

// SimulationTime is the per-tick compute budget of the atlas profiles.
const SimulationTime = 100 * time.Millisecond

const edgeBundlingSplits = 7

type Device string

const (
	CPU Device = "CPU"
	GPU Device = "GPU"
)

type Algorithm struct {
	Name   string     `validate:"required,oneof=ForceAtlas2 ForceAtlas2Barnes EdgeBundling"`
	Params params.Set `validate:"required,min=1"`
}

type Global struct {
	SimulationTime    time.Duration     `validate:"gt=0"`
	Dimensions        dynamo.Dimensions
	NumSplits         int               `validate:"gte=0"`
	NumRenderedSplits int               `validate:"gte=0"`
}

// Profile is one candidate configuration of a named layout. A name may map to
// several candidates that differ by algorithm and eligible devices.
type Profile struct {
	Name       string      `validate:"required"`
	Algorithms []Algorithm `validate:"required,min=1,dive"`
	Locks      dynamo.Locks
	Global     Global
	Devices    []Device `validate:"required,min=1,dive,oneof=CPU GPU"`
}

// Clone deep-copies the parameter sets so sessions never share mutable
// parameter state with the static table.
func (p *Profile) Clone() *Profile {
	c := *p
	c.Algorithms = make([]Algorithm, len(p.Algorithms))
	for i, a := range p.Algorithms {
		c.Algorithms[i] = Algorithm{Name: a.Name, Params: a.Params.Clone()}
	}
	c.Devices = append([]Device(nil), p.Devices...)
	return &c
}

func (p *Profile) Supports(d Device) bool {
	for _, dev := range p.Devices {
		if dev == d {
			return true
		}
	}
	return false
}

// Params returns the parameter set of the named algorithm, or nil.
func (p *Profile) Params(algorithm string) params.Set {
	for _, a := range p.Algorithms {
		if a.Name == algorithm {
			return a.Params
		}
	}
	return nil
}

// Physics returns the current values of every parameter of every algorithm.
func (p *Profile) Physics() dynamo.PhysicsConfig {
	cfg := make(dynamo.PhysicsConfig, len(p.Algorithms))
	for _, a := range p.Algorithms {
		vals := make(map[string]dynamo.Value, len(a.Params))
		for name, v := range a.Params.Values() {
			vals[name] = v
		}
		cfg[a.Name] = vals
	}
	return cfg
}

type ClientAlgorithm struct {
	Name   string               `json:"name" yaml:"name"`
	Params []params.ClientParam `json:"params" yaml:"params"`
}

func (p *Profile) ToClient() []ClientAlgorithm {
	out := make([]ClientAlgorithm, 0, len(p.Algorithms))
	for _, a := range p.Algorithms {
		out = append(out, ClientAlgorithm{Name: a.Name, Params: a.Params.ToClient(a.Name)})
	}
	return out
}

// FromClient decodes client updates through the profile's parameter sets,
// storing each accepted value. Unknown algorithms, unknown parameters and
// undecodable values are skipped and reported as warnings. Only algorithms
// with at least one accepted value appear in the result.
func (p *Profile) FromClient(updates map[string]map[string]any) (dynamo.PhysicsConfig, []dynamo.Warning) {
	cfg := make(dynamo.PhysicsConfig)
	var warnings []dynamo.Warning

	for _, algo := range sortedKeys(updates) {
		set := p.Params(algo)
		if set == nil {
			warnings = append(warnings, dynamo.Warning{
				Kind:      dynamo.WarnUnknownAlgorithm,
				Algorithm: algo,
				Detail:    "ignoring setting update",
			})
			continue
		}

		update := updates[algo]
		for _, name := range sortedKeys(update) {
			param, ok := set[name]
			if !ok {
				warnings = append(warnings, dynamo.Warning{
					Kind:      dynamo.WarnUnknownParam,
					Algorithm: algo,
					Param:     name,
					Detail:    "ignoring setting update",
				})
				continue
			}
			if err := param.Set(update[name]); err != nil {
				warnings = append(warnings, dynamo.Warning{
					Kind:      dynamo.WarnInvalidValue,
					Algorithm: algo,
					Param:     name,
					Detail:    err.Error(),
				})
				continue
			}
			if cfg[algo] == nil {
				cfg[algo] = make(map[string]dynamo.Value)
			}
			cfg[algo][name] = param.Value()
		}
	}
	return cfg, warnings
}

// NumUpdates counts the parameter values in cfg.
func NumUpdates(cfg dynamo.PhysicsConfig) int {
	n := 0
	for _, vals := range cfg {
		n += len(vals)
	}
	return n
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func atlasProfile(name, algorithm string) Profile {
	devices := []Device{CPU, GPU}
	if algorithm == ForceAtlas2Barnes {
		devices = []Device{GPU}
	}

	return Profile{
		Name: name,
		Algorithms: []Algorithm{{
			Name: algorithm,
			Params: params.Set{
				"tau":           params.NewDiscrete("Precision vs. Speed", 0, -5, 5, 1),
				"gravity":       params.NewContinuous("Center Magnet", 1.0, 0.01, 100),
				"scalingRatio":  params.NewContinuous("Expansion Ratio", 1.0, 0.01, 100),
				"edgeInfluence": params.NewDiscrete("Edge Influence", 0, 0, 5, 1),
				"strongGravity": params.NewBool("Compact Layout", false),
				"dissuadeHubs":  params.NewBool("Dissuade Hubs", false),
				"linLog":        params.NewBool("Strong Separation (LinLog)", false),
			},
		}},
		Locks: dynamo.Locks{
			LockMidpoints: true,
			LockMidedges:  true,
		},
		Global: Global{
			SimulationTime: SimulationTime,
			Dimensions:     dynamo.DefaultDimensions(),
		},
		Devices: devices,
	}
}

func bundlingProfile(name string) Profile {
	return Profile{
		Name: name,
		Algorithms: []Algorithm{{
			Name: EdgeBundling,
			Params: params.Set{
				"tau":            params.NewContinuous("Speed", 1, 0.01, 10),
				"charge":         params.NewContinuous("Charge", -0.05, -1, -0.0000000001),
				"springStrength": params.NewContinuous("Spring Strength", 400, 0, 800),
				"springDistance": params.NewContinuous("Spring Distance", 0.5, 0.0000001, 1),
			},
		}},
		Locks: dynamo.Locks{
			LockPoints:               true,
			InterpolateMidPointsOnce: true,
		},
		Global: Global{
			SimulationTime:    time.Millisecond,
			Dimensions:        dynamo.DefaultDimensions(),
			NumSplits:         edgeBundlingSplits,
			NumRenderedSplits: edgeBundlingSplits,
		},
		Devices: []Device{CPU, GPU},
	}
}

var profiles = map[string][]Profile{
	"default": {
		atlasProfile("default", ForceAtlas2Barnes),
		atlasProfile("default", ForceAtlas2),
	},
	"gis": {bundlingProfile("gis")},
	"atlas": {
		atlasProfile("atlas", ForceAtlas2Barnes),
		atlasProfile("atlas", ForceAtlas2),
	},
	"atlas2":      {atlasProfile("atlas2", ForceAtlas2)},
	"atlas2fast":  {atlasProfile("atlas2fast", ForceAtlas2)},
	"atlasbarnes": {atlasProfile("atlasbarnes", ForceAtlas2Barnes)},
}

func init() {
	for name, candidates := range profiles {
		for i := range candidates {
			if err := validateProfile(&candidates[i]); err != nil {
				panic(fmt.Sprintf("config: layout profile %s: %v", name, err))
			}
		}
	}
}

// Lookup returns fresh copies of every candidate registered under name.
func Lookup(name string) ([]*Profile, error) {
	candidates, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", dynamo.ErrUnknownProfile, name)
	}
	out := make([]*Profile, len(candidates))
	for i := range candidates {
		out[i] = candidates[i].Clone()
	}
	return out, nil
}

type Selection struct {
	Profile  *Profile
	Device   Device
	Fallback bool
}

// Select picks the first candidate of name runnable on one of the available
// devices, preferring devices in the candidate's own order. When no candidate
// matches, the first candidate is selected on the first available device and
// Fallback is set.
func Select(name string, available ...Device) (Selection, error) {
	candidates, err := Lookup(name)
	if err != nil {
		return Selection{}, err
	}
	if len(available) == 0 {
		available = []Device{CPU}
	}

	for _, p := range candidates {
		for _, dev := range p.Devices {
			for _, a := range available {
				if dev == a {
					return Selection{Profile: p, Device: dev}, nil
				}
			}
		}
	}
	return Selection{Profile: candidates[0], Device: available[0], Fallback: true}, nil
}

func ListProfiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
