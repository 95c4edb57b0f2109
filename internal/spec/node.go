package spec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-openapi/jsonpointer"
	"gopkg.in/yaml.v3"
)

// Kind is the shape of a document node.
type Kind uint8

const (
	NullKind Kind = iota
	BoolKind
	NumberKind
	StringKind
	SequenceKind
	MappingKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case BoolKind:
		return "bool"
	case NumberKind:
		return "number"
	case StringKind:
		return "string"
	case SequenceKind:
		return "sequence"
	case MappingKind:
		return "mapping"
	}
	return "invalid"
}

// Origin locates a node in its source document.
type Origin struct {
	Doc     string
	Pointer string
	Line    int
	Column  int
}

func (o Origin) String() string {
	if o.Line > 0 {
		return fmt.Sprintf("%s#%s (line %d)", o.Doc, o.Pointer, o.Line)
	}
	return o.Doc + "#" + o.Pointer
}

// Entry is one key/value pair of a mapping node.
type Entry struct {
	Key   string
	Value *Node
}

// Node is an immutable, order-preserving view of one value in a loaded document.
type Node struct {
	kind    Kind
	scalar  string
	items   []*Node
	entries []Entry
	index   map[string]int
	origin  Origin
}

func (n *Node) Kind() Kind {
	if n == nil {
		return NullKind
	}
	return n.kind
}

func (n *Node) Origin() Origin  { return n.origin }
func (n *Node) Doc() string     { return n.origin.Doc }
func (n *Node) Pointer() string { return n.origin.Pointer }
func (n *Node) IsNull() bool    { return n == nil || n.kind == NullKind }

// Scalar returns the literal text of a scalar node.
func (n *Node) Scalar() string {
	if n == nil {
		return ""
	}
	return n.scalar
}

// Get returns the value stored under key, or nil when n is not a mapping or has no such key.
func (n *Node) Get(key string) *Node {
	if n == nil || n.kind != MappingKind {
		return nil
	}
	if i, ok := n.index[key]; ok {
		return n.entries[i].Value
	}
	return nil
}

func (n *Node) Has(key string) bool { return n.Get(key) != nil }

// Entries returns the mapping entries in declaration order; nil for non-mappings.
func (n *Node) Entries() []Entry {
	if n == nil || n.kind != MappingKind {
		return nil
	}
	return n.entries
}

// Items returns the sequence elements; nil for non-sequences.
func (n *Node) Items() []*Node {
	if n == nil || n.kind != SequenceKind {
		return nil
	}
	return n.items
}

func (n *Node) shapeErr(want Kind) error {
	return parseErr(n.origin.Doc, n.origin.Pointer, "expected %s, found %s", want, n.Kind())
}

// Mapping returns the entries of a mapping node or a ParseError.
func (n *Node) Mapping() ([]Entry, error) {
	if n == nil || n.kind != MappingKind {
		return nil, n.orMissing().shapeErr(MappingKind)
	}
	return n.entries, nil
}

// Sequence returns the elements of a sequence node or a ParseError.
func (n *Node) Sequence() ([]*Node, error) {
	if n == nil || n.kind != SequenceKind {
		return nil, n.orMissing().shapeErr(SequenceKind)
	}
	return n.items, nil
}

// Text returns the value of a string node or a ParseError.
func (n *Node) Text() (string, error) {
	if n == nil || n.kind != StringKind {
		return "", n.orMissing().shapeErr(StringKind)
	}
	return n.scalar, nil
}

// Bool returns the value of a bool node or a ParseError.
func (n *Node) Bool() (bool, error) {
	if n == nil || n.kind != BoolKind {
		return false, n.orMissing().shapeErr(BoolKind)
	}
	return n.scalar == "true", nil
}

// Number returns the value of a number node or a ParseError.
func (n *Node) Number() (float64, error) {
	if n == nil || n.kind != NumberKind {
		return 0, n.orMissing().shapeErr(NumberKind)
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(n.scalar, "_", ""), 64)
	if err != nil {
		return 0, parseErr(n.origin.Doc, n.origin.Pointer, "invalid number %q", n.scalar)
	}
	return f, nil
}

func (n *Node) orMissing() *Node {
	if n == nil {
		return &Node{kind: NullKind}
	}
	return n
}

// Str returns the string stored under key, or "" when absent or not a string.
func (n *Node) Str(key string) string {
	v := n.Get(key)
	if v == nil || v.kind != StringKind {
		return ""
	}
	return v.scalar
}

// Flag returns the bool stored under key, false when absent or not a bool.
func (n *Node) Flag(key string) bool {
	v := n.Get(key)
	return v != nil && v.kind == BoolKind && v.scalar == "true"
}

// Strings returns the string elements of the sequence stored under key.
// A single string value is returned as a one-element slice.
func (n *Node) Strings(key string) []string {
	v := n.Get(key)
	switch v.Kind() {
	case StringKind:
		return []string{v.scalar}
	case SequenceKind:
		out := make([]string, 0, len(v.items))
		for _, it := range v.items {
			if it.kind == StringKind {
				out = append(out, it.scalar)
			}
		}
		return out
	}
	return nil
}

// Ref returns the $ref string of a reference object.
func (n *Node) Ref() (string, bool) {
	v := n.Get("$ref")
	if v == nil || v.kind != StringKind {
		return "", false
	}
	return v.scalar, true
}

// Value converts the node into plain Go values: nil, bool, int64, float64, string, []any, map[string]any.
func (n *Node) Value() any {
	switch n.Kind() {
	case BoolKind:
		return n.scalar == "true"
	case NumberKind:
		s := strings.ReplaceAll(n.scalar, "_", "")
		if i, err := strconv.ParseInt(s, 0, 64); err == nil {
			return i
		}
		f, _ := strconv.ParseFloat(s, 64)
		return f
	case StringKind:
		return n.scalar
	case SequenceKind:
		out := make([]any, len(n.items))
		for i, it := range n.items {
			out[i] = it.Value()
		}
		return out
	case MappingKind:
		out := make(map[string]any, len(n.entries))
		for _, e := range n.entries {
			out[e.Key] = e.Value.Value()
		}
		return out
	}
	return nil
}

// Child returns the node addressed by the decoded pointer tokens relative to n.
func (n *Node) Child(tokens ...string) (*Node, bool) {
	cur := n
	for _, tok := range tokens {
		switch cur.Kind() {
		case MappingKind:
			next := cur.Get(tok)
			if next == nil {
				return nil, false
			}
			cur = next
		case SequenceKind:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(cur.items) {
				return nil, false
			}
			cur = cur.items[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

const maxAliasDepth = 64

// Alias expansion limits. Once more than aliasMinExpanded nodes come from
// aliases, their share of all built nodes may not pass aliasRatio(built).
const (
	aliasMinExpanded = 100
	aliasMinBuilt    = 1000
	aliasRatioLow    = 400_000
	aliasRatioHigh   = 4_000_000
)

// aliasRatio is the largest share of alias-expanded nodes allowed after built
// nodes. It tightens from 99% to 10% as documents grow.
func aliasRatio(built int) float64 {
	switch {
	case built <= aliasRatioLow:
		return 0.99
	case built >= aliasRatioHigh:
		return 0.10
	}
	return 0.99 - 0.89*float64(built-aliasRatioLow)/float64(aliasRatioHigh-aliasRatioLow)
}

// nodeBuilder converts one decoded YAML tree into Nodes, expanding aliases.
type nodeBuilder struct {
	doc      string
	built    int
	expanded int
}

func buildNode(doc string, y *yaml.Node) (*Node, error) {
	b := &nodeBuilder{doc: doc}
	return b.build("", y, 0)
}

// count records one node; depth > 0 means it was reached through an alias.
func (b *nodeBuilder) count(pointer string, depth int) error {
	b.built++
	if depth > 0 {
		b.expanded++
	}
	if b.expanded > aliasMinExpanded && b.built > aliasMinBuilt &&
		float64(b.expanded)/float64(b.built) > aliasRatio(b.built) {
		return parseErr(b.doc, pointer, "document expands too many aliases (%d of %d nodes)", b.expanded, b.built)
	}
	return nil
}

func (b *nodeBuilder) build(pointer string, y *yaml.Node, depth int) (*Node, error) {
	if depth > maxAliasDepth {
		return nil, parseErr(b.doc, pointer, "alias nesting too deep")
	}
	if y.Kind != yaml.DocumentNode && y.Kind != yaml.AliasNode {
		if err := b.count(pointer, depth); err != nil {
			return nil, err
		}
	}
	n := &Node{origin: Origin{Doc: b.doc, Pointer: pointer, Line: y.Line, Column: y.Column}}
	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			n.kind = NullKind
			return n, nil
		}
		return b.build(pointer, y.Content[0], depth)
	case yaml.AliasNode:
		if y.Alias == nil {
			return nil, parseErr(b.doc, pointer, "dangling alias")
		}
		return b.build(pointer, y.Alias, depth+1)
	case yaml.SequenceNode:
		n.kind = SequenceKind
		n.items = make([]*Node, 0, len(y.Content))
		for i, c := range y.Content {
			child, err := b.build(pointer+"/"+strconv.Itoa(i), c, depth)
			if err != nil {
				return nil, err
			}
			n.items = append(n.items, child)
		}
		return n, nil
	case yaml.MappingNode:
		n.kind = MappingKind
		n.index = make(map[string]int, len(y.Content)/2)
		merged := map[string]bool{}
		for i := 0; i+1 < len(y.Content); i += 2 {
			k, v := y.Content[i], y.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, parseErr(b.doc, pointer, "line %d: mapping keys must be scalars", k.Line)
			}
			if k.Tag == "!!merge" || (k.Value == "<<" && k.Style == 0) {
				if err := b.merge(n, pointer, v, depth, merged); err != nil {
					return nil, err
				}
				continue
			}
			child, err := b.build(pointer+"/"+jsonpointer.Escape(k.Value), v, depth)
			if err != nil {
				return nil, err
			}
			if at, dup := n.index[k.Value]; dup {
				if !merged[k.Value] {
					return nil, parseErr(b.doc, pointer, "line %d: duplicate key %q", k.Line, k.Value)
				}
				delete(merged, k.Value)
				n.entries[at].Value = child
				continue
			}
			n.index[k.Value] = len(n.entries)
			n.entries = append(n.entries, Entry{Key: k.Value, Value: child})
		}
		return n, nil
	case yaml.ScalarNode:
		n.scalar = y.Value
		switch y.ShortTag() {
		case "!!null":
			n.kind = NullKind
		case "!!bool":
			var val bool
			if err := y.Decode(&val); err != nil {
				return nil, parseErr(b.doc, pointer, "line %d: invalid bool %q", y.Line, y.Value)
			}
			n.kind = BoolKind
			n.scalar = strconv.FormatBool(val)
		case "!!int", "!!float":
			n.kind = NumberKind
		default:
			n.kind = StringKind
		}
		return n, nil
	}
	return nil, parseErr(b.doc, pointer, "line %d: unsupported yaml node", y.Line)
}

// merge applies a YAML merge key; explicit keys win over merged ones.
func (b *nodeBuilder) merge(n *Node, pointer string, v *yaml.Node, depth int, merged map[string]bool) error {
	sources := []*yaml.Node{v}
	if v.Kind == yaml.SequenceNode {
		sources = v.Content
	}
	for _, src := range sources {
		m, err := b.build(pointer, src, depth+1)
		if err != nil {
			return err
		}
		if m.kind != MappingKind {
			return parseErr(b.doc, pointer, "merge key expects a mapping")
		}
		for _, e := range m.entries {
			if _, ok := n.index[e.Key]; ok {
				continue
			}
			merged[e.Key] = true
			n.index[e.Key] = len(n.entries)
			n.entries = append(n.entries, e)
		}
	}
	return nil
}
