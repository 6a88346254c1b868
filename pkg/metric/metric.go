package metric

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Reserved path separator characters. PathSep joins composite names along
// a path, LeafSep marks the final leaf segment. Neither may appear in a
// composite name; LeafSep may not appear in any name.
const (
	PathSep = "/"
	LeafSep = "#"
)

// Sentinel errors returned by tree construction and lookup.
var (
	// ErrEmptyName is returned when a metric name is empty.
	ErrEmptyName = errors.New("metric name cannot be empty")
	// ErrReservedChar is returned when a name contains a reserved separator.
	ErrReservedChar = errors.New("metric name contains reserved character")
	// ErrDuplicateChild is returned when a child name collides with an existing child.
	ErrDuplicateChild = errors.New("child metrics of a composite must have unique names")
	// ErrNotFound is returned when a key path does not resolve to an element.
	ErrNotFound = errors.New("element not found")
	// ErrMalformedPath is returned for key paths that violate the path grammar.
	ErrMalformedPath = errors.New("malformed key path")
	// ErrCycle is returned when adding a composite beneath itself.
	ErrCycle = errors.New("composite metric cannot contain itself")
)

// Node is a node in a composite metric tree: either a leaf *Metric or a
// branch *Composite.
type Node interface {
	// Name returns the node's name.
	Name() string
	// Equal reports structural equality with another node.
	Equal(other Node) bool
	// Flatten produces the path/value map for the node's subtree.
	Flatten() map[string]Value

	flattenInto(prefix string, out map[string]Value)
}

// Metric is a leaf node: a single named scalar. Immutable once constructed.
type Metric struct {
	name  string
	value Value
}

// NewMetric constructs a leaf metric. The name must be non-empty and must
// not contain the leaf separator '#'.
func NewMetric(name string, value Value) (*Metric, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if strings.Contains(name, LeafSep) {
		return nil, fmt.Errorf("%w: %q must not contain %q", ErrReservedChar, name, LeafSep)
	}
	return &Metric{name: name, value: value}, nil
}

// Name returns the metric's name.
func (m *Metric) Name() string { return m.name }

// Value returns the metric's scalar value.
func (m *Metric) Value() Value { return m.value }

// Equal reports whether other is a leaf metric with the same name and value.
func (m *Metric) Equal(other Node) bool {
	o, ok := other.(*Metric)
	if !ok {
		return false
	}
	return m.name == o.name && m.value.Equal(o.value)
}

func (m *Metric) flattenInto(prefix string, out map[string]Value) {
	if prefix == "" {
		out[m.name] = m.value
		return
	}
	out[prefix+LeafSep+m.name] = m.value
}

// Composite is a branch node holding an insertion-ordered collection of
// uniquely named children. A composite exclusively owns its subtree.
// It is not safe for concurrent mutation.
type Composite struct {
	name     string
	order    []string
	children map[string]Node
}

// NewComposite constructs a branch metric with the given initial children.
// The name must be non-empty and must not contain '#' or '/'. Duplicate
// child names are rejected.
func NewComposite(name string, children ...Node) (*Composite, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if strings.ContainsAny(name, LeafSep+PathSep) {
		return nil, fmt.Errorf("%w: %q must not contain %q or %q", ErrReservedChar, name, LeafSep, PathSep)
	}
	c := &Composite{name: name, children: make(map[string]Node)}
	for _, child := range children {
		if _, err := c.Add(child); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Name returns the composite's name.
func (c *Composite) Name() string { return c.name }

// Len returns the number of direct children.
func (c *Composite) Len() int { return len(c.children) }

// Children returns the direct children in insertion order.
func (c *Composite) Children() []Node {
	out := make([]Node, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.children[name])
	}
	return out
}

// Child returns the direct child with the given name, if present.
func (c *Composite) Child(name string) (Node, bool) {
	child, ok := c.children[name]
	return child, ok
}

// Add inserts the given node as a direct child and returns it for chaining.
// A child whose name collides with an existing child is rejected, and a
// composite is rejected if adding it would form a cycle.
func (c *Composite) Add(child Node) (Node, error) {
	if child == nil {
		return nil, errors.New("cannot add nil child")
	}
	if _, exists := c.children[child.Name()]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateChild, child.Name())
	}
	if sub, ok := child.(*Composite); ok {
		if sub == c || sub.contains(c) {
			return nil, ErrCycle
		}
	}
	c.children[child.Name()] = child
	c.order = append(c.order, child.Name())
	return child, nil
}

// AddValue wraps the scalar in a leaf Metric and adds it.
func (c *Composite) AddValue(name string, value Value) (*Metric, error) {
	m, err := NewMetric(name, value)
	if err != nil {
		return nil, err
	}
	if _, err := c.Add(m); err != nil {
		return nil, err
	}
	return m, nil
}

// contains reports whether target is reachable within c's subtree.
func (c *Composite) contains(target *Composite) bool {
	for _, child := range c.children {
		sub, ok := child.(*Composite)
		if !ok {
			continue
		}
		if sub == target || sub.contains(target) {
			return true
		}
	}
	return false
}

// Equal reports whether other is a composite with the same name and a
// recursively equal child set. Child order does not affect equality.
func (c *Composite) Equal(other Node) bool {
	o, ok := other.(*Composite)
	if !ok || c.name != o.name || len(c.children) != len(o.children) {
		return false
	}
	for name, child := range c.children {
		oc, ok := o.children[name]
		if !ok || !child.Equal(oc) {
			return false
		}
	}
	return true
}

// Element resolves a key path relative to this composite. Accepted forms:
// a plain name (direct child lookup), "a/b/.../#leaf" (descend through
// composites to a leaf), "a/b" (descend to a composite), or "#leaf" (leaf
// directly under this composite). The path must not start with '/' and
// must contain at most one '#'.
func (c *Composite) Element(keyPath string) (Node, error) {
	if strings.HasPrefix(keyPath, PathSep) {
		return nil, fmt.Errorf("%w: key path must be relative and not start with %q", ErrMalformedPath, PathSep)
	}

	var location, leafName string
	switch {
	case strings.Contains(keyPath, LeafSep):
		if strings.HasPrefix(keyPath, LeafSep) {
			location, leafName = "", keyPath[1:]
		} else {
			parts := strings.Split(keyPath, LeafSep)
			if len(parts) != 2 {
				return nil, fmt.Errorf("%w: path must contain at most one %q", ErrMalformedPath, LeafSep)
			}
			location, leafName = parts[0], parts[1]
		}
	case !strings.Contains(keyPath, PathSep):
		child, ok := c.children[keyPath]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, keyPath)
		}
		return child, nil
	default:
		location = keyPath
	}

	current := c
	if location != "" {
		for _, segment := range strings.Split(strings.TrimSuffix(location, PathSep), PathSep) {
			child, ok := current.children[segment]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrNotFound, keyPath)
			}
			sub, ok := child.(*Composite)
			if !ok {
				return nil, fmt.Errorf("%w: %q (leaf metric found where a composite was expected)", ErrNotFound, keyPath)
			}
			current = sub
		}
	}
	if leafName == "" {
		return current, nil
	}
	leaf, ok := current.children[leafName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, keyPath)
	}
	return leaf, nil
}

// Keys returns the paths of all descendants, relative to this composite,
// sorted lexicographically. Leaf names are prefixed with '#' and composite
// segments joined with '/'. When coreOnly is true only leaf (Metric) paths
// are returned; otherwise each descendant composite's own path is included.
func (c *Composite) Keys(coreOnly bool) []string {
	var out []string
	c.collectKeys(coreOnly, "", &out)
	sort.Strings(out)
	return out
}

func (c *Composite) collectKeys(coreOnly bool, root string, out *[]string) {
	for _, name := range c.order {
		switch child := c.children[name].(type) {
		case *Metric:
			*out = append(*out, root+LeafSep+name)
		case *Composite:
			sub := name
			if root != "" {
				sub = root + PathSep + name
			}
			if !coreOnly {
				*out = append(*out, sub)
			}
			child.collectKeys(coreOnly, sub, out)
		}
	}
}
