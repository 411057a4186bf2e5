package waveform

import (
	"errors"
	"fmt"
	"slices"
)

var ErrEmptySequence = errors.New("empty pulse sequence")

// Sequence is an ordered list of mark/space durations in microseconds,
// starting with a mark.
type Sequence []uint16

// Choice selects one of the two sequences of a Pair.
type Choice uint8

const (
	Primary Choice = iota
	Alternate
)

func (c Choice) String() string {
	switch c {
	case Primary:
		return "primary"
	case Alternate:
		return "alternate"
	default:
		return fmt.Sprintf("Choice(%d)", uint8(c))
	}
}

// Next returns the other choice.
func (c Choice) Next() Choice {
	if c == Primary {
		return Alternate
	}
	return Primary
}

// Pair is the two recorded variants of one action. Receivers use the
// alternation to tell a fresh press from a repeat.
type Pair struct {
	Primary   Sequence
	Alternate Sequence
}

// Select returns a copy of the sequence for c.
func (p Pair) Select(c Choice) Sequence {
	if c == Alternate {
		return slices.Clone(p.Alternate)
	}
	return slices.Clone(p.Primary)
}

func (p Pair) clone() Pair {
	return Pair{Primary: slices.Clone(p.Primary), Alternate: slices.Clone(p.Alternate)}
}

// Table maps actions to their waveform pairs. It is immutable after
// construction and safe for concurrent use.
type Table struct {
	pairs map[Action]Pair
}

// NewTable validates and copies entries.
func NewTable(entries map[Action]Pair) (*Table, error) {
	pairs := make(map[Action]Pair, len(entries))
	for a, p := range entries {
		if !a.Valid() {
			return nil, fmt.Errorf("%w: %v", ErrUnknownAction, a)
		}
		if len(p.Primary) == 0 {
			return nil, fmt.Errorf("%v primary: %w", a, ErrEmptySequence)
		}
		if len(p.Alternate) == 0 {
			return nil, fmt.Errorf("%v alternate: %w", a, ErrEmptySequence)
		}
		pairs[a] = p.clone()
	}
	return &Table{pairs: pairs}, nil
}

// Lookup returns a copy of the pair stored for a.
func (t *Table) Lookup(a Action) (Pair, error) {
	p, ok := t.pairs[a]
	if !ok {
		return Pair{}, fmt.Errorf("%w: %v", ErrUnknownAction, a)
	}
	return p.clone(), nil
}

// Actions returns the actions present in the table in layout order.
func (t *Table) Actions() []Action {
	out := make([]Action, 0, len(t.pairs))
	for a := range t.pairs {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

func (t *Table) Len() int {
	return len(t.pairs)
}
