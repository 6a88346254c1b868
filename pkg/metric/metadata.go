package metric

import (
	"fmt"
	"sort"
	"strconv"
)

// MetadataKind discriminates the allowed metadata value types.
type MetadataKind string

const (
	// MetadataString marks a string-valued metadata entry.
	MetadataString MetadataKind = "str"
	// MetadataInt marks an integer-valued metadata entry.
	MetadataInt MetadataKind = "int"
)

// MetadataValue is one typed metadata entry.
type MetadataValue struct {
	Kind MetadataKind
	Str  string
	Int  int64
}

// String returns the entry's value as text regardless of kind.
func (v MetadataValue) String() string {
	if v.Kind == MetadataInt {
		return strconv.FormatInt(v.Int, 10)
	}
	return v.Str
}

// Metadata is informational data associated with a stored metric snapshot.
// Only string and integer values are allowed.
type Metadata struct {
	Values map[string]MetadataValue
}

// NewMetadata returns an empty metadata set.
func NewMetadata() Metadata {
	return Metadata{Values: make(map[string]MetadataValue)}
}

// SetString stores a string-valued entry.
func (m Metadata) SetString(name, value string) {
	m.Values[name] = MetadataValue{Kind: MetadataString, Str: value}
}

// SetInt stores an integer-valued entry.
func (m Metadata) SetInt(name string, value int64) {
	m.Values[name] = MetadataValue{Kind: MetadataInt, Int: value}
}

// Names returns the entry names in sorted order.
func (m Metadata) Names() []string {
	names := make([]string, 0, len(m.Values))
	for name := range m.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseMetadataValue reconstructs a typed entry from its stored kind and
// textual value.
func ParseMetadataValue(kind MetadataKind, value string) (MetadataValue, error) {
	switch kind {
	case MetadataString:
		return MetadataValue{Kind: MetadataString, Str: value}, nil
	case MetadataInt:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return MetadataValue{}, fmt.Errorf("invalid integer metadata value %q: %w", value, err)
		}
		return MetadataValue{Kind: MetadataInt, Int: i}, nil
	default:
		return MetadataValue{}, fmt.Errorf("unknown metadata kind %q", kind)
	}
}
