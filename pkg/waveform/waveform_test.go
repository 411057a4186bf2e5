package waveform

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		want    Action
		wantErr bool
	}{
		{name: "Power", want: Power},
		{name: "Volume +", want: VolumeUp},
		{name: "Pause/Mute", want: PauseMute},
		{name: "0", want: Digit0},
		{name: "power", wantErr: true},
		{name: "Nonexistent", wantErr: true},
		{name: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownAction) {
					t.Fatalf("expected ErrUnknownAction, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAction(%q): %v", tt.name, err)
			}
			if got != tt.want {
				t.Fatalf("ParseAction(%q) = %v, want %v", tt.name, got, tt.want)
			}
			if got.String() != tt.name {
				t.Fatalf("String() = %q, want %q", got.String(), tt.name)
			}
		})
	}
}

func TestBuiltinTableVariants(t *testing.T) {
	full, err := BuiltinTable(VariantFull)
	if err != nil {
		t.Fatalf("full: %v", err)
	}
	if full.Len() != len(AllActions()) {
		t.Fatalf("full catalog has %d actions, want %d", full.Len(), len(AllActions()))
	}

	compact, err := BuiltinTable(VariantCompact)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if compact.Len() != len(compactActions) {
		t.Fatalf("compact catalog has %d actions, want %d", compact.Len(), len(compactActions))
	}
	if _, err := compact.Lookup(Record); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("compact lookup of Record: expected ErrUnknownAction, got %v", err)
	}

	if _, err := BuiltinTable("huge"); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestLookupPower(t *testing.T) {
	table, err := BuiltinTable(VariantFull)
	if err != nil {
		t.Fatal(err)
	}

	p, err := table.Lookup(Power)
	if err != nil {
		t.Fatalf("Lookup(Power): %v", err)
	}
	if p.Primary[0] != 1781 || p.Primary[1] != 835 || p.Primary[len(p.Primary)-1] != 872 {
		t.Fatalf("unexpected primary: %v", p.Primary)
	}
	if p.Alternate[0] != 1735 || p.Alternate[1] != 1735 || p.Alternate[len(p.Alternate)-1] != 908 {
		t.Fatalf("unexpected alternate: %v", p.Alternate)
	}

	// Mutating a looked-up pair must not leak into the table.
	p.Primary[0] = 1
	again, _ := table.Lookup(Power)
	if again.Primary[0] != 1781 {
		t.Fatalf("table mutated through Lookup result")
	}
}

func TestLookupUnknown(t *testing.T) {
	table, err := NewTable(map[Action]Pair{Up: {Primary: Sequence{1}, Alternate: Sequence{2}}})
	if err != nil {
		t.Fatal(err)
	}

	for _, a := range []Action{Down, Action(0), Action(200)} {
		if _, err := table.Lookup(a); !errors.Is(err, ErrUnknownAction) {
			t.Errorf("Lookup(%v): expected ErrUnknownAction, got %v", a, err)
		}
	}
}

func TestNewTableRejectsEmptySequences(t *testing.T) {
	tests := map[string]Pair{
		"empty primary":   {Primary: nil, Alternate: Sequence{1}},
		"empty alternate": {Primary: Sequence{1}, Alternate: Sequence{}},
	}
	for name, p := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewTable(map[Action]Pair{Power: p}); !errors.Is(err, ErrEmptySequence) {
				t.Fatalf("expected ErrEmptySequence, got %v", err)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	p := Pair{Primary: Sequence{1, 2}, Alternate: Sequence{3, 4}}
	if got := p.Select(Primary); !reflect.DeepEqual(got, Sequence{1, 2}) {
		t.Fatalf("Select(Primary) = %v", got)
	}
	if got := p.Select(Alternate); !reflect.DeepEqual(got, Sequence{3, 4}) {
		t.Fatalf("Select(Alternate) = %v", got)
	}
	if Primary.Next() != Alternate || Alternate.Next() != Primary {
		t.Fatal("Next does not alternate")
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	table, err := BuiltinTable(VariantFull)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := EncodeCatalog(&buf, table); err != nil {
		t.Fatalf("EncodeCatalog: %v", err)
	}

	decoded, err := DecodeCatalog(&buf)
	if err != nil {
		t.Fatalf("DecodeCatalog: %v", err)
	}

	if !reflect.DeepEqual(decoded.Actions(), table.Actions()) {
		t.Fatalf("actions mismatch: %v != %v", decoded.Actions(), table.Actions())
	}
	for _, a := range table.Actions() {
		want, _ := table.Lookup(a)
		got, _ := decoded.Lookup(a)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%v mismatch:\ngot:  %+v\nwant: %+v", a, got, want)
		}
	}
}

func TestDecodeCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "overflow",
			yaml: "actions:\n  - name: Power\n    primary: [70000]\n    alternate: [1]\n",
		},
		{
			name: "negative",
			yaml: "actions:\n  - name: Power\n    primary: [-1]\n    alternate: [1]\n",
		},
		{
			name: "fractional",
			yaml: "actions:\n  - name: Power\n    primary: [1781.9, 835]\n    alternate: [1]\n",
		},
		{
			name: "exponent",
			yaml: "actions:\n  - name: Power\n    primary: [1]\n    alternate: [1e3]\n",
		},
		{
			name: "quoted",
			yaml: "actions:\n  - name: Power\n    primary: [\"835\"]\n    alternate: [1]\n",
		},
		{
			name: "scalar pulses",
			yaml: "actions:\n  - name: Power\n    primary: 835\n    alternate: [1]\n",
		},
		{
			name: "unknown action",
			yaml: "actions:\n  - name: Eject\n    primary: [1]\n    alternate: [1]\n",
		},
		{
			name: "duplicate",
			yaml: "actions:\n  - name: Up\n    primary: [1]\n    alternate: [1]\n  - name: Up\n    primary: [1]\n    alternate: [1]\n",
		},
		{
			name: "empty alternate",
			yaml: "actions:\n  - name: Up\n    primary: [1]\n    alternate: []\n",
		},
		{
			name: "unknown field",
			yaml: "actions:\n  - name: Up\n    primary: [1]\n    alternate: [1]\n    carrier: 38000\n",
		},
		{
			name: "no actions",
			yaml: "actions: []\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeCatalog(strings.NewReader(tt.yaml)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDecodeCatalogMaxValue(t *testing.T) {
	table, err := DecodeCatalog(strings.NewReader("actions:\n  - name: Jump\n    primary: [65535, 0]\n    alternate: [1]\n"))
	if err != nil {
		t.Fatal(err)
	}
	p, err := table.Lookup(Jump)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p.Primary, Sequence{65535, 0}) {
		t.Fatalf("primary = %v", p.Primary)
	}
}
