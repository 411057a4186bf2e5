package waveform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Variant selects how much of the built-in catalog is loaded.
type Variant string

const (
	VariantFull    Variant = "full"
	VariantCompact Variant = "compact"
)

// compactActions is the navigation and volume subset.
var compactActions = []Action{
	Power, Mode, Up, Down, Left, Right, Select, VolumeDown, VolumeUp, PauseMute,
}

// BuiltinTable builds a Table from the captured codes.
func BuiltinTable(v Variant) (*Table, error) {
	switch v {
	case VariantFull, "":
		return NewTable(builtin)
	case VariantCompact:
		entries := make(map[Action]Pair, len(compactActions))
		for _, a := range compactActions {
			entries[a] = builtin[a]
		}
		return NewTable(entries)
	default:
		return nil, fmt.Errorf("unknown catalog variant %q", v)
	}
}

// catalogFile is the YAML representation of a catalog.
type catalogFile struct {
	Actions []catalogEntry `yaml:"actions"`
}

type catalogEntry struct {
	Name      string    `yaml:"name"`
	Primary   pulseList `yaml:"primary,flow"`
	Alternate pulseList `yaml:"alternate,flow"`
}

// pulseList only accepts integer scalars in 0..65535. yaml.v3 would
// otherwise truncate floats such as 1781.9 into a uint16.
type pulseList []uint16

func (p *pulseList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: pulses must be a sequence", node.Line)
	}
	out := make(pulseList, 0, len(node.Content))
	for _, n := range node.Content {
		if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!int" {
			return fmt.Errorf("line %d: pulse %q is not an integer", n.Line, n.Value)
		}
		var v int64
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("line %d: pulse %q: %w", n.Line, n.Value, err)
		}
		if v < 0 || v > 0xFFFF {
			return fmt.Errorf("line %d: pulse %d out of range 0..65535", n.Line, v)
		}
		out = append(out, uint16(v))
	}
	*p = out
	return nil
}

// EncodeCatalog writes t as YAML in layout order.
func EncodeCatalog(w io.Writer, t *Table) error {
	var f catalogFile
	for _, a := range t.Actions() {
		p := t.pairs[a]
		f.Actions = append(f.Actions, catalogEntry{
			Name:      a.String(),
			Primary:   pulseList(p.Primary),
			Alternate: pulseList(p.Alternate),
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode catalog yaml: %w", err)
	}
	return enc.Close()
}

// DecodeCatalog parses a YAML catalog. Durations that do not fit in 16 bits
// are rejected rather than truncated.
func DecodeCatalog(r io.Reader) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f catalogFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog yaml: %w", err)
	}

	entries := make(map[Action]Pair, len(f.Actions))
	for i, e := range f.Actions {
		a, err := ParseAction(e.Name)
		if err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}
		if _, dup := entries[a]; dup {
			return nil, fmt.Errorf("actions[%d]: duplicate action %q", i, e.Name)
		}
		entries[a] = Pair{Primary: Sequence(e.Primary), Alternate: Sequence(e.Alternate)}
	}
	if len(entries) == 0 {
		return nil, errors.New("catalog has no actions")
	}

	return NewTable(entries)
}

// LoadCatalogFile reads a YAML catalog from path.
func LoadCatalogFile(path string) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return DecodeCatalog(bytes.NewReader(b))
}
