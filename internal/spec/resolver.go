package spec

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-openapi/jsonpointer"
)

// Resolution is the outcome of resolving a reference.
// When Deferred is true the target is currently being expanded higher up the call
// stack; Node is nil and the caller must link to Key instead of descending into it.
type Resolution struct {
	Key      RefKey
	Node     *Node
	Deferred bool
}

// Resolver maps $ref strings to nodes across the documents of one run.
// Resolve and Lookup are safe for concurrent use.
type Resolver struct {
	docs *DocumentSet

	mu         sync.Mutex
	inProgress map[RefKey]int
}

func NewResolver(docs *DocumentSet) *Resolver {
	return &Resolver{docs: docs, inProgress: make(map[RefKey]int)}
}

// Documents returns the document set the resolver reads from.
func (r *Resolver) Documents() *DocumentSet { return r.docs }

// Resolve follows raw, written in document from, to its target node.
// Reference chains are followed to the first node that is not itself a reference.
func (r *Resolver) Resolve(from, raw string) (Resolution, error) {
	key, node, err := r.target(from, raw)
	if err != nil {
		return Resolution{}, err
	}
	seen := map[RefKey]bool{key: true}
	for {
		next, ok := node.Ref()
		if !ok {
			break
		}
		k, n, err := r.target(key.Doc, next)
		if err != nil {
			return Resolution{}, err
		}
		if seen[k] {
			return Resolution{}, &SpecError{
				Code:        UnresolvedReferenceError,
				Message:     fmt.Sprintf("reference %q forms a cycle of references with no schema", raw),
				Location:    from,
				JSONPointer: key.Pointer,
				Ref:         raw,
				Circular:    true,
			}
		}
		seen[k] = true
		key, node = k, n
	}
	if r.expanding(key) {
		return Resolution{Key: key, Deferred: true}, nil
	}
	return Resolution{Key: key, Node: node}, nil
}

// ResolveNode resolves n when it is a reference object and returns n itself otherwise.
func (r *Resolver) ResolveNode(n *Node) (Resolution, error) {
	if raw, ok := n.Ref(); ok {
		res, err := r.Resolve(n.Doc(), raw)
		if err != nil {
			var se *SpecError
			if errors.As(err, &se) && se.JSONPointer == "" {
				se.JSONPointer = n.Pointer()
			}
		}
		return res, err
	}
	key := KeyOf(n)
	if r.expanding(key) {
		return Resolution{Key: key, Deferred: true}, nil
	}
	return Resolution{Key: key, Node: n}, nil
}

// Lookup returns the node addressed by key.
func (r *Resolver) Lookup(key RefKey) (*Node, error) {
	doc, ok := r.docs.Get(key.Doc)
	if !ok {
		return nil, &SpecError{Code: UnresolvedReferenceError, Message: fmt.Sprintf("document %s is not loaded", key.Doc), Location: key.Doc}
	}
	if key.Pointer == "" {
		return doc.Root, nil
	}
	ptr, err := jsonpointer.New(key.Pointer)
	if err != nil {
		return nil, &SpecError{Code: UnsupportedReferenceError, Message: fmt.Sprintf("invalid JSON pointer %q", key.Pointer), Location: key.Doc, Cause: err}
	}
	n, ok := doc.Root.Child(ptr.DecodedTokens()...)
	if !ok {
		return nil, &SpecError{Code: UnresolvedReferenceError, Message: fmt.Sprintf("no node at %s", key), Location: key.Doc, JSONPointer: key.Pointer}
	}
	return n, nil
}

// Expand marks key as in progress while fn runs. Resolving key from inside fn
// yields a deferred Resolution, which terminates recursive expansion.
func (r *Resolver) Expand(key RefKey, fn func() error) error {
	r.mu.Lock()
	r.inProgress[key]++
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		if r.inProgress[key]--; r.inProgress[key] <= 0 {
			delete(r.inProgress, key)
		}
		r.mu.Unlock()
	}()
	return fn()
}

func (r *Resolver) expanding(key RefKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inProgress[key] > 0
}

func (r *Resolver) target(from, raw string) (RefKey, *Node, error) {
	ref, err := ParseReference(raw)
	if err != nil {
		var se *SpecError
		if errors.As(err, &se) {
			se.Location = from
		}
		return RefKey{}, nil, err
	}
	docID, err := resolveDocID(from, ref.File)
	if err != nil {
		return RefKey{}, nil, &SpecError{Code: UnsupportedReferenceError, Message: fmt.Sprintf("reference %q: %v", raw, err), Location: from, Ref: raw, Cause: err}
	}
	doc, ok := r.docs.Get(docID)
	if !ok {
		return RefKey{}, nil, &SpecError{
			Code:     UnresolvedReferenceError,
			Message:  fmt.Sprintf("unresolved reference %q: document %s is not loaded", raw, docID),
			Location: from,
			Ref:      raw,
		}
	}
	n, ok := doc.Root.Child(ref.Tokens...)
	if !ok {
		return RefKey{}, nil, &SpecError{
			Code:     UnresolvedReferenceError,
			Message:  fmt.Sprintf("unresolved reference %q: no node at %s#%s", raw, docID, ref.Pointer),
			Location: from,
			Ref:      raw,
		}
	}
	return RefKey{Doc: docID, Pointer: ref.Pointer}, n, nil
}

// CheckAll resolves every reference of every loaded document and returns the first failure.
// Reference chains that only loop back on themselves are left for the modelers,
// which degrade them to unknown shapes.
func (r *Resolver) CheckAll(ctx context.Context) error {
	for _, doc := range r.docs.Docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		var firstErr error
		walkRefs(doc.Root, func(n *Node, raw string) bool {
			if _, err := r.Resolve(n.Doc(), raw); err != nil && !errors.Is(err, ErrCircularReference) {
				var se *SpecError
				if errors.As(err, &se) && se.JSONPointer == "" {
					se.JSONPointer = n.Pointer()
				}
				firstErr = err
				return false
			}
			return true
		})
		if firstErr != nil {
			return firstErr
		}
	}
	return nil
}

// walkRefs visits every reference object below n in document order until fn returns false.
func walkRefs(n *Node, fn func(n *Node, raw string) bool) bool {
	switch n.Kind() {
	case MappingKind:
		if raw, ok := n.Ref(); ok {
			return fn(n, raw)
		}
		for _, e := range n.entries {
			if !walkRefs(e.Value, fn) {
				return false
			}
		}
	case SequenceKind:
		for _, it := range n.items {
			if !walkRefs(it, fn) {
				return false
			}
		}
	}
	return true
}
