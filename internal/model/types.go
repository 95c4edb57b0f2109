// Package model turns loaded OpenAPI documents into a language-neutral type graph
// and a list of operation descriptors that code emitters render.
package model

import (
	"fmt"

	"github.com/mark3labs/swagger2client/internal/spec"
)

// TypeID identifies a type definition in a Graph.
type TypeID string

// Kind discriminates the closed set of type definitions.
type Kind int

const (
	KindPrimitive Kind = iota + 1
	KindCollection
	KindStruct
	KindEnum
	KindUnion
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindCollection:
		return "collection"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindUnion:
		return "union"
	case KindUnknown:
		return "unknown"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type is implemented by Primitive, Collection, Struct, Enum, Union and Unknown only.
type Type interface {
	ID() TypeID
	Kind() Kind
	Info() Meta
	sealed()
}

// Meta is shared by every type definition.
type Meta struct {
	TypeID      TypeID
	Name        string // empty for anonymous types
	Description string
	Origin      spec.Origin
	Nullable    bool
}

func (m Meta) ID() TypeID { return m.TypeID }
func (m Meta) Info() Meta { return m }
func (Meta) sealed()      {}

// PrimitiveKind is the scalar family of a Primitive.
type PrimitiveKind int

const (
	PrimBool PrimitiveKind = iota + 1
	PrimInt
	PrimFloat
	PrimString
	PrimBytes
	PrimDate
	PrimDateTime
)

func (p PrimitiveKind) String() string {
	switch p {
	case PrimBool:
		return "bool"
	case PrimInt:
		return "int"
	case PrimFloat:
		return "float"
	case PrimString:
		return "string"
	case PrimBytes:
		return "bytes"
	case PrimDate:
		return "date"
	case PrimDateTime:
		return "date-time"
	}
	return "invalid"
}

// Primitive is a scalar. Width is the bit size for ints and floats; Format keeps the
// source format string.
type Primitive struct {
	Meta
	Prim   PrimitiveKind
	Width  int
	Format string
}

func (Primitive) Kind() Kind { return KindPrimitive }

// CollectionKind distinguishes sequences from string-keyed maps.
type CollectionKind int

const (
	Sequence CollectionKind = iota + 1
	Map
)

type Collection struct {
	Meta
	Coll CollectionKind
	Elem TypeID
}

func (Collection) Kind() Kind { return KindCollection }

// Field is one struct member. Name is the wire name.
type Field struct {
	Name        string
	Type        TypeID
	Required    bool
	Nullable    bool
	ReadOnly    bool
	Boxed       bool
	Description string
}

// Struct is an object with ordered fields. Bases lists the named allOf sources
// whose fields were merged in.
type Struct struct {
	Meta
	Fields               []Field
	Bases                []TypeID
	AdditionalProperties TypeID
}

func (Struct) Kind() Kind { return KindStruct }

// FieldByName returns the field with the given wire name.
func (s Struct) FieldByName(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

type EnumVariant struct {
	Name  string
	Value any
}

type Enum struct {
	Meta
	Base     PrimitiveKind
	Variants []EnumVariant
}

func (Enum) Kind() Kind { return KindEnum }

// UnionVariant is one alternative. Tags are the discriminator values selecting it.
type UnionVariant struct {
	Type TypeID
	Tags []string
}

// Union is a oneOf/anyOf. With an empty Discriminator, variants are tried in order.
type Union struct {
	Meta
	Variants      []UnionVariant
	Discriminator string
}

func (Union) Kind() Kind { return KindUnion }

// Tagged reports whether a discriminator selects the variant.
func (u Union) Tagged() bool { return u.Discriminator != "" }

// Unknown is an opaque value the modeler could not give a precise shape.
type Unknown struct {
	Meta
	Reason string
	Raw    *spec.Node
}

func (Unknown) Kind() Kind { return KindUnknown }

// withMeta returns a copy of t carrying m.
func withMeta(t Type, m Meta) Type {
	switch v := t.(type) {
	case Primitive:
		v.Meta = m
		return v
	case Collection:
		v.Meta = m
		return v
	case Struct:
		v.Meta = m
		v.Fields = append([]Field(nil), v.Fields...)
		return v
	case Enum:
		v.Meta = m
		return v
	case Union:
		v.Meta = m
		return v
	case Unknown:
		v.Meta = m
		return v
	}
	panic(fmt.Sprintf("model: unexpected type %T", t))
}
