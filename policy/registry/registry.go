// Package registry maps policy names to constructors.
//
// A policy is described by a Spec: its name plus flat parameters that
// decode into the policy's Options struct. In YAML:
//
//	- name: slru
//	  n_segments: 2
//	- name: lhd
//	  associativity: 64
//	  byte_hit_rate: true
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/cachesim/policy"
	"github.com/IvanBrykalov/cachesim/policy/arc"
	"github.com/IvanBrykalov/cachesim/policy/fifo"
	"github.com/IvanBrykalov/cachesim/policy/lfu"
	"github.com/IvanBrykalov/cachesim/policy/lhd"
	"github.com/IvanBrykalov/cachesim/policy/lru"
	"github.com/IvanBrykalov/cachesim/policy/random"
	"github.com/IvanBrykalov/cachesim/policy/slru"
	"github.com/IvanBrykalov/cachesim/policy/twoq"
)

// ErrUnknownPolicy is returned for names missing from the registry.
var ErrUnknownPolicy = errors.New("unknown policy")

// Spec names a policy and its parameters.
type Spec struct {
	Name string
	// Params is a YAML mapping of option keys; the zero Node means none.
	Params yaml.Node
}

// UnmarshalYAML reads a mapping whose "name" key selects the policy and
// whose remaining keys are the policy's parameters.
func (s *Spec) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		s.Name, s.Params = n.Value, yaml.Node{}
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: policy must be a name or a mapping", n.Line)
	}
	params := yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	s.Name = ""
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Value == "name" {
			s.Name = v.Value
			continue
		}
		params.Content = append(params.Content, k, v)
	}
	if s.Name == "" {
		return fmt.Errorf("line %d: policy without name", n.Line)
	}
	s.Params = yaml.Node{}
	if len(params.Content) > 0 {
		s.Params = params
	}
	return nil
}

// MarshalYAML writes the flat form read by UnmarshalYAML.
func (s Spec) MarshalYAML() (any, error) {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	out.Content = append(out.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: "name"},
		&yaml.Node{Kind: yaml.ScalarNode, Value: s.Name})
	out.Content = append(out.Content, s.Params.Content...)
	return out, nil
}

// String renders the spec as Parse accepts it.
func (s Spec) String() string {
	if len(s.Params.Content) == 0 {
		return s.Name
	}
	kv := make([]string, 0, len(s.Params.Content)/2)
	for i := 0; i+1 < len(s.Params.Content); i += 2 {
		kv = append(kv, s.Params.Content[i].Value+"="+s.Params.Content[i+1].Value)
	}
	return s.Name + ":" + strings.Join(kv, ",")
}

// Parse reads the command-line form "name" or "name:key=value,key=value".
func Parse(text string) (Spec, error) {
	name, rest, _ := strings.Cut(strings.TrimSpace(text), ":")
	if name == "" {
		return Spec{}, fmt.Errorf("empty policy in %q", text)
	}
	s := Spec{Name: name}
	if rest == "" {
		return s, nil
	}
	s.Params = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, kv := range strings.Split(rest, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return Spec{}, fmt.Errorf("policy %s: parameter %q is not key=value", name, kv)
		}
		s.Params.Content = append(s.Params.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: strings.TrimSpace(k)},
			&yaml.Node{Kind: yaml.ScalarNode, Value: strings.TrimSpace(v)})
	}
	return s, nil
}

type builder func(params *yaml.Node, seed int64) (policy.Factory, error)

var builders = map[string]builder{
	lru.Name: func(params *yaml.Node, _ int64) (policy.Factory, error) {
		if err := noParams(lru.Name, params); err != nil {
			return nil, err
		}
		return func(c int64) (policy.Policy, error) { return lru.New(c) }, nil
	},
	fifo.Name: func(params *yaml.Node, _ int64) (policy.Factory, error) {
		if err := noParams(fifo.Name, params); err != nil {
			return nil, err
		}
		return func(c int64) (policy.Policy, error) { return fifo.New(c) }, nil
	},
	lfu.Name: func(params *yaml.Node, _ int64) (policy.Factory, error) {
		if err := noParams(lfu.Name, params); err != nil {
			return nil, err
		}
		return func(c int64) (policy.Policy, error) { return lfu.New(c) }, nil
	},
	random.Name: func(params *yaml.Node, seed int64) (policy.Factory, error) {
		opt := random.Options{Seed: seed}
		if err := decode(random.Name, params, &opt); err != nil {
			return nil, err
		}
		return func(c int64) (policy.Policy, error) { return random.New(c, opt) }, nil
	},
	arc.Name: func(params *yaml.Node, _ int64) (policy.Factory, error) {
		var opt arc.Options
		if err := decode(arc.Name, params, &opt); err != nil {
			return nil, err
		}
		return func(c int64) (policy.Policy, error) { return arc.New(c, opt) }, nil
	},
	slru.Name: func(params *yaml.Node, _ int64) (policy.Factory, error) {
		var opt slru.Options
		if err := decode(slru.Name, params, &opt); err != nil {
			return nil, err
		}
		return func(c int64) (policy.Policy, error) { return slru.New(c, opt) }, nil
	},
	twoq.Name: func(params *yaml.Node, _ int64) (policy.Factory, error) {
		var opt twoq.Options
		if err := decode(twoq.Name, params, &opt); err != nil {
			return nil, err
		}
		return func(c int64) (policy.Policy, error) { return twoq.New(c, opt) }, nil
	},
	lhd.Name: func(params *yaml.Node, seed int64) (policy.Factory, error) {
		opt := lhd.Options{Seed: seed}
		if err := decode(lhd.Name, params, &opt); err != nil {
			return nil, err
		}
		return func(c int64) (policy.Policy, error) { return lhd.New(c, opt) }, nil
	},
}

// Names returns the registered policy names, sorted.
func Names() []string {
	names := make([]string, 0, len(builders))
	for n := range builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Factory resolves s into a constructor. seed is the default for policies
// that draw random numbers; an explicit "seed" parameter overrides it.
// Unknown parameters are rejected here, option values are validated by
// the constructor.
func Factory(s Spec, seed int64) (policy.Factory, error) {
	b, ok := builders[s.Name]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownPolicy, s.Name, strings.Join(Names(), ", "))
	}
	return b(&s.Params, seed)
}

func noParams(name string, params *yaml.Node) error {
	if len(params.Content) > 0 {
		return &policy.ConfigError{Policy: name, Param: params.Content[0].Value, Reason: "policy takes no parameters"}
	}
	return nil
}

// decode strictly decodes params into opt, which already holds defaults.
func decode(name string, params *yaml.Node, opt any) error {
	if len(params.Content) == 0 {
		return nil
	}
	raw, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("policy %s: %w", name, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(opt); err != nil && !errors.Is(err, io.EOF) {
		return &policy.ConfigError{Policy: name, Param: "params", Reason: err.Error()}
	}
	return nil
}
