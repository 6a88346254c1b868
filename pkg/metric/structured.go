package metric

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// ErrShapeMismatch is returned when a structured conversion finds a leaf
// where the target schema expects a composite, or vice versa.
var ErrShapeMismatch = errors.New("structured conversion shape mismatch")

// fieldTag is the struct tag consulted for metric names; the Go field
// name is used when the tag is absent.
const fieldTag = "metric"

// FromStructured builds a metric tree from a Go value. Numeric values
// become leaf metrics, structs and map[string]T values become composites
// whose children are converted recursively. Nil pointer fields are
// skipped. Any other value shape is a hard error.
func FromStructured(name string, src any) (Node, error) {
	return fromReflected(name, reflect.ValueOf(src))
}

func fromReflected(name string, v reflect.Value) (Node, error) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: nil value for %q", ErrShapeMismatch, name)
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewMetric(name, Int(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NewMetric(name, Int(int64(v.Uint())))
	case reflect.Float32, reflect.Float64:
		return NewMetric(name, Float(v.Float()))
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map keys for %q must be strings", ErrShapeMismatch, name)
		}
		composite, err := NewComposite(name)
		if err != nil {
			return nil, err
		}
		keys := v.MapKeys()
		sortMapKeys(keys)
		for _, key := range keys {
			child, err := fromReflected(key.String(), v.MapIndex(key))
			if err != nil {
				return nil, err
			}
			if _, err := composite.Add(child); err != nil {
				return nil, err
			}
		}
		return composite, nil
	case reflect.Struct:
		composite, err := NewComposite(name)
		if err != nil {
			return nil, err
		}
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			fv := v.Field(i)
			if fv.Kind() == reflect.Pointer && fv.IsNil() {
				continue
			}
			child, err := fromReflected(fieldName(field), fv)
			if err != nil {
				return nil, err
			}
			if _, err := composite.Add(child); err != nil {
				return nil, err
			}
		}
		return composite, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %s for %q", ErrShapeMismatch, v.Kind(), name)
	}
}

// ToStructured populates target, a non-nil pointer to a struct, from the
// composite's children. Numeric fields take leaf values, nested struct and
// map fields take composite subtrees. A child with no matching field, or a
// field whose shape disagrees with the tree, is a hard error.
func ToStructured(c *Composite, target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("%w: target must be a non-nil pointer to a struct", ErrShapeMismatch)
	}
	return toReflected(c, v.Elem())
}

func toReflected(c *Composite, v reflect.Value) error {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		fields := make(map[string]reflect.Value, v.NumField())
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if field := t.Field(i); field.IsExported() {
				fields[fieldName(field)] = v.Field(i)
			}
		}
		for _, name := range c.order {
			fv, ok := fields[name]
			if !ok {
				return fmt.Errorf("%w: target %s has no field named %q", ErrShapeMismatch, t, name)
			}
			if err := assignNode(c.children[name], fv); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: map keys must be strings", ErrShapeMismatch)
		}
		if v.IsNil() {
			v.Set(reflect.MakeMapWithSize(v.Type(), len(c.order)))
		}
		for _, name := range c.order {
			entry := reflect.New(v.Type().Elem()).Elem()
			if err := assignNode(c.children[name], entry); err != nil {
				return err
			}
			v.SetMapIndex(reflect.ValueOf(name), entry)
		}
		return nil
	default:
		return fmt.Errorf("%w: cannot convert composite into %s", ErrShapeMismatch, v.Kind())
	}
}

// assignNode stores a single tree node into a struct field or map entry.
func assignNode(node Node, v reflect.Value) error {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		leaf, ok := node.(*Metric)
		if !ok {
			return fmt.Errorf("%w: composite found for numeric field %q", ErrShapeMismatch, node.Name())
		}
		v.SetInt(leaf.Value().Int64())
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		leaf, ok := node.(*Metric)
		if !ok {
			return fmt.Errorf("%w: composite found for numeric field %q", ErrShapeMismatch, node.Name())
		}
		v.SetUint(uint64(leaf.Value().Int64()))
		return nil
	case reflect.Float32, reflect.Float64:
		leaf, ok := node.(*Metric)
		if !ok {
			return fmt.Errorf("%w: composite found for numeric field %q", ErrShapeMismatch, node.Name())
		}
		v.SetFloat(leaf.Value().Float64())
		return nil
	case reflect.Struct, reflect.Map:
		sub, ok := node.(*Composite)
		if !ok {
			return fmt.Errorf("%w: leaf metric found for composite field %q", ErrShapeMismatch, node.Name())
		}
		return toReflected(sub, v)
	default:
		return fmt.Errorf("%w: unsupported field type %s for %q", ErrShapeMismatch, v.Kind(), node.Name())
	}
}

func fieldName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup(fieldTag); ok && tag != "" {
		return tag
	}
	return field.Name
}

// sortMapKeys orders reflected string keys so conversion output is stable.
func sortMapKeys(keys []reflect.Value) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
}
