package metric

import "strconv"

// ValueKind discriminates the numeric kind held by a Value.
type ValueKind int

const (
	// KindInt marks a value carrying an integer.
	KindInt ValueKind = iota
	// KindFloat marks a value carrying a floating-point number.
	KindFloat
)

// String returns the string representation of the kind.
func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Value is a tagged numeric union. The original kind (integer or float)
// survives flatten/unflatten and storage round-trips.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
}

// Int returns a Value holding an integer.
func Int(v int64) Value {
	return Value{kind: KindInt, i: v}
}

// Float returns a Value holding a floating-point number.
func Float(v float64) Value {
	return Value{kind: KindFloat, f: v}
}

// Kind returns the numeric kind of the value.
func (v Value) Kind() ValueKind { return v.kind }

// Int64 returns the value as an int64, truncating a float kind.
func (v Value) Int64() int64 {
	if v.kind == KindFloat {
		return int64(v.f)
	}
	return v.i
}

// Float64 returns the value as a float64. Rule comparisons operate on
// this representation regardless of kind.
func (v Value) Float64() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Equal reports whether two values are equal in both kind and magnitude.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	if v.kind == KindInt {
		return v.i == other.i
	}
	return v.f == other.f
}

// String formats the value the way it was constructed: integers without
// a decimal point, floats with the shortest exact representation.
func (v Value) String() string {
	if v.kind == KindInt {
		return strconv.FormatInt(v.i, 10)
	}
	return strconv.FormatFloat(v.f, 'g', -1, 64)
}
