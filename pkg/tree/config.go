package tree

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/obsidianstack/statusroll/pkg/rollup"
)

// Config is a decoded tree configuration. Nodes keep their declaration order.
type Config struct {
	Nodes []NodeSpec
}

// NodeSpec describes one node of the configuration.
type NodeSpec struct {
	Name         string
	Kind         Kind
	Rule         string
	Params       rollup.Params
	Dependencies []string
}

// rawSpec mirrors the on-disk fields. Pointers distinguish absent from empty.
type rawSpec struct {
	Type         string         `yaml:"type"`
	Rule         string         `yaml:"rule"`
	Params       map[string]any `yaml:"params"`
	Dependencies *[]string      `yaml:"dependencies"`
}

// Decode reads a configuration document from r.
func Decode(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", ErrConfigUnreadable, err)
	}
	return Parse(data)
}

// Parse decodes a configuration document held in memory.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigUnreadable, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrConfigInvalid)
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: top level must be a mapping", ErrConfigInvalid, root.Line)
	}

	nodes := lookup(root, "nodes")
	if nodes == nil {
		return nil, fmt.Errorf("%w: missing required field \"nodes\"", ErrConfigInvalid)
	}
	if nodes.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: \"nodes\" must be a mapping of name to node spec", ErrConfigInvalid, nodes.Line)
	}

	cfg := &Config{Nodes: make([]NodeSpec, 0, len(nodes.Content)/2)}
	seen := make(map[string]int, len(nodes.Content)/2)
	for i := 0; i+1 < len(nodes.Content); i += 2 {
		key, val := nodes.Content[i], nodes.Content[i+1]
		name := key.Value
		if name == "" {
			return nil, fmt.Errorf("%w: line %d: empty node name", ErrConfigInvalid, key.Line)
		}
		if line, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate node name %q (lines %d and %d)", ErrConfigInvalid, name, line, key.Line)
		}
		seen[name] = key.Line

		spec, err := decodeSpec(name, val)
		if err != nil {
			return nil, err
		}
		cfg.Nodes = append(cfg.Nodes, spec)
	}
	return cfg, nil
}

func decodeSpec(name string, val *yaml.Node) (NodeSpec, error) {
	var raw rawSpec
	if err := val.Decode(&raw); err != nil {
		return NodeSpec{}, fmt.Errorf("%w: node %q: %w", ErrConfigInvalid, name, err)
	}

	spec := NodeSpec{Name: name}
	switch raw.Type {
	case "":
		return NodeSpec{}, fmt.Errorf("%w: node %q: missing required field \"type\"", ErrConfigInvalid, name)
	case Imported.String():
		if raw.Dependencies != nil && len(*raw.Dependencies) > 0 {
			return NodeSpec{}, fmt.Errorf("%w: node %q: imported nodes cannot have dependencies", ErrConfigInvalid, name)
		}
		spec.Kind = Imported
	case Derived.String():
		if raw.Dependencies == nil {
			return NodeSpec{}, fmt.Errorf("%w: node %q: missing required field \"dependencies\"", ErrConfigInvalid, name)
		}
		spec.Kind = Derived
		spec.Rule = raw.Rule
		if spec.Rule == "" {
			spec.Rule = rollup.NameWorstStatus
		}
		spec.Params = rollup.Params(raw.Params)
		spec.Dependencies = *raw.Dependencies
	default:
		return NodeSpec{}, fmt.Errorf("%w: node %q: unknown type %q: want imported|derived", ErrConfigInvalid, name, raw.Type)
	}
	return spec, nil
}

// lookup returns the value node stored under key in a mapping node.
func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
