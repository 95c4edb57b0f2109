package spec

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-openapi/jsonpointer"
)

// Reference is a parsed $ref string.
type Reference struct {
	Raw     string
	File    string   // document part; empty for same-document refs
	Pointer string   // JSON pointer without the leading '#'
	Tokens  []string // decoded pointer tokens
}

// RefKey is the canonical identity of a reference target.
type RefKey struct {
	Doc     string
	Pointer string
}

func (k RefKey) String() string { return k.Doc + "#" + k.Pointer }

// Name returns the last pointer token, typically the definition name.
func (k RefKey) Name() string {
	if i := strings.LastIndex(k.Pointer, "/"); i >= 0 {
		return jsonpointer.Unescape(k.Pointer[i+1:])
	}
	return ""
}

// KeyOf returns the reference key of a node.
func KeyOf(n *Node) RefKey { return RefKey{Doc: n.Doc(), Pointer: n.Pointer()} }

// ParseReference splits raw into its document and pointer parts.
// Fragments must be empty or JSON pointers; named anchors are unsupported.
func ParseReference(raw string) (Reference, error) {
	ref := Reference{Raw: raw}
	file, frag, hasFrag := strings.Cut(raw, "#")
	ref.File = strings.TrimSpace(file)
	if ref.File == "" && !hasFrag {
		return ref, unsupportedRef(raw, "empty reference")
	}
	if ref.File != "" {
		if u, err := url.Parse(ref.File); err == nil && len(u.Scheme) > 1 {
			switch strings.ToLower(u.Scheme) {
			case "http", "https", "file":
			default:
				return ref, unsupportedRef(raw, fmt.Sprintf("unsupported scheme %q", u.Scheme))
			}
		}
	}
	if frag == "" {
		return ref, nil
	}
	if unescaped, err := url.PathUnescape(frag); err == nil {
		frag = unescaped
	}
	if !strings.HasPrefix(frag, "/") {
		return ref, unsupportedRef(raw, "fragment is not a JSON pointer")
	}
	ptr, err := jsonpointer.New(frag)
	if err != nil {
		return ref, &SpecError{Code: UnsupportedReferenceError, Message: fmt.Sprintf("reference %q: invalid JSON pointer", raw), Ref: raw, Cause: err}
	}
	ref.Pointer = frag
	ref.Tokens = ptr.DecodedTokens()
	return ref, nil
}

func unsupportedRef(raw, why string) *SpecError {
	return &SpecError{Code: UnsupportedReferenceError, Message: fmt.Sprintf("reference %q: %s", raw, why), Ref: raw}
}

func isRemote(id string) bool {
	return strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://")
}

// resolveDocID resolves the document part of a reference relative to the referring document.
func resolveDocID(base, file string) (string, error) {
	if file == "" {
		return base, nil
	}
	u, err := url.Parse(file)
	if err == nil && len(u.Scheme) > 1 {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			u.Fragment = ""
			return u.String(), nil
		case "file":
			p := u.Path
			if p == "" {
				p = u.Opaque
			}
			return filepath.Clean(filepath.FromSlash(p)), nil
		}
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if isRemote(base) {
		b, err := url.Parse(base)
		if err != nil {
			return "", err
		}
		rel, err := url.Parse(file)
		if err != nil {
			return "", err
		}
		return b.ResolveReference(rel).String(), nil
	}
	p := filepath.FromSlash(file)
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	return filepath.Join(filepath.Dir(base), p), nil
}
