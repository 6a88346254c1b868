package metric

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Codec errors surfaced by FromFlattened.
var (
	// ErrEmptyFlattened is returned when unflattening an empty map.
	ErrEmptyFlattened = errors.New("empty value set when constructing metric")
	// ErrMultipleRoots is returned when a flattened set names more than one root.
	ErrMultipleRoots = errors.New("more than one root found")
	// ErrMixedNodes is returned when a path requires a node to be both a
	// leaf and a composite.
	ErrMixedNodes = errors.New("mixed composite and leaf nodes at same level")
)

// Flatten returns the single-entry path/value map for a bare leaf metric.
func (m *Metric) Flatten() map[string]Value {
	out := make(map[string]Value, 1)
	m.flattenInto("", out)
	return out
}

// Flatten produces the canonical absolute path/value map for the tree:
// a leading '/', '/'-joined composite names, and '#' before the leaf name.
// This is the serialization used for storage and rule evaluation, and it
// round-trips bit-exactly through FromFlattened.
func (c *Composite) Flatten() map[string]Value {
	out := make(map[string]Value)
	c.flattenInto("", out)
	return out
}

func (c *Composite) flattenInto(prefix string, out map[string]Value) {
	path := prefix + PathSep + c.name
	for _, name := range c.order {
		c.children[name].flattenInto(path, out)
	}
}

// FromFlattened rebuilds a metric tree from a flattened path/value map.
// It is the inverse of Flatten. A single-entry map whose key contains no
// '#' degenerates to a bare leaf Metric. Errors: an empty map, more than
// one '#' in a path, a missing leading '/', a second root name, or a path
// requiring a node to be both a leaf and a composite. On error no partial
// tree is returned.
func FromFlattened(values map[string]Value) (Node, error) {
	if len(values) == 0 {
		return nil, ErrEmptyFlattened
	}

	paths := make([]string, 0, len(values))
	for path := range values {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	if len(paths) == 1 && !strings.Contains(paths[0], LeafSep) {
		return NewMetric(paths[0], values[paths[0]])
	}

	var root *Composite
	for _, path := range paths {
		parts := strings.Split(path, LeafSep)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: %q must contain exactly one %q", ErrMalformedPath, path, LeafSep)
		}
		location, leafName := parts[0], parts[1]
		if !strings.HasPrefix(location, PathSep) {
			return nil, fmt.Errorf("%w: %q must start with %q", ErrMalformedPath, path, PathSep)
		}
		segments := strings.Split(location[1:], PathSep)

		if root == nil {
			var err error
			if root, err = NewComposite(segments[0]); err != nil {
				return nil, err
			}
		} else if segments[0] != root.name {
			return nil, fmt.Errorf("%w: %q and %q", ErrMultipleRoots, root.name, segments[0])
		}

		base := root
		for _, segment := range segments[1:] {
			child, ok := base.children[segment]
			if !ok {
				sub, err := NewComposite(segment)
				if err != nil {
					return nil, err
				}
				if _, err := base.Add(sub); err != nil {
					return nil, err
				}
				base = sub
				continue
			}
			sub, ok := child.(*Composite)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrMixedNodes, path)
			}
			base = sub
		}

		if _, exists := base.children[leafName]; exists {
			return nil, fmt.Errorf("%w: %q", ErrMixedNodes, path)
		}
		if _, err := base.AddValue(leafName, values[path]); err != nil {
			return nil, err
		}
	}
	return root, nil
}
