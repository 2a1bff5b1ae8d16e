package lir

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MarshalJSON writes an instruction as its packed 32-bit wire word, so the
// serialized module is exactly the fixed-width encoding spec.md §4.7
// defines rather than a field-per-operand JSON object. sAx offsets survive
// the round trip because Encode stores two's-complement 24-bit and Decode
// sign-extends (the "Critical rule" in spec.md §4.7).
func (i Instruction) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(i.Encode()), 10)), nil
}

func (i *Instruction) UnmarshalJSON(data []byte) error {
	word, err := strconv.ParseUint(string(data), 10, 32)
	if err != nil {
		return fmt.Errorf("lir: instruction word %s: %w", data, err)
	}
	*i = Decode(uint32(word))
	return nil
}

// Serialize renders the module as canonical JSON (spec.md §6 "a versioned,
// self-describing record serialized as canonical JSON"). Canonical here
// means: struct fields in declaration order, instructions as packed words,
// no insignificant whitespace — two serializations of equal modules are
// byte-identical.
func (m *LirModule) Serialize() ([]byte, error) {
	return json.Marshal(m)
}

// Deserialize parses a module previously produced by Serialize and rebuilds
// the string-pool index so Intern stays index-stable over the loaded pool.
func Deserialize(data []byte) (*LirModule, error) {
	var m LirModule
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("lir: deserialize: %w", err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("lir: unsupported module version %d (want %d)", m.Version, CurrentVersion)
	}
	m.stringIndex = make(map[string]int, len(m.Strings))
	for i, s := range m.Strings {
		m.stringIndex[s] = i
	}
	for ci := range m.Cells {
		if err := m.Cells[ci].Validate(); err != nil {
			return nil, fmt.Errorf("lir: cell %q: %w", m.Cells[ci].Name, err)
		}
	}
	return &m, nil
}

// Equal reports structural equality between two modules, ignoring the
// lazily-built string index. Used by the deserialize(serialize(m)) == m
// round-trip contract.
func (m *LirModule) Equal(other *LirModule) bool {
	a, errA := m.Serialize()
	b, errB := other.Serialize()
	return errA == nil && errB == nil && string(a) == string(b)
}
