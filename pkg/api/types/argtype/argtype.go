package argtype

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/cmp"
	"gopkg.in/yaml.v3"
)

var ErrInvalidType = errors.New("invalid argument type")

// Kind is the tag of an argument-type node.
type Kind string

const (
	Boolean   Kind = "boolean"
	Integer   Kind = "integer"
	Float     Kind = "float"
	Number    Kind = "number"
	Complex   Kind = "complex"
	String    Kind = "string"
	Timedelta Kind = "timedelta"
	Datetime  Kind = "datetime"
	File      Kind = "file"

	PythonObject Kind = "python object"
	NDArray      Kind = "ndarray"
	List         Kind = "list"
	Tuple        Kind = "tuple"
	Dict         Kind = "dict"
)

// Scalar reports whether the kind stands alone, with no companion field.
func (k Kind) Scalar() bool {
	switch k {
	case Boolean, Integer, Float, Number, Complex, String, Timedelta, Datetime, File:
		return true
	}
	return false
}

func (k Kind) Known() bool {
	switch k {
	case PythonObject, NDArray, List, Tuple, Dict:
		return true
	}
	return k.Scalar()
}

// SimplifyDType maps a numpy dtype-kind letter to a scalar Kind.
//
// Unknown letters map to PythonObject, as numpy does for object arrays.
func SimplifyDType(kind byte) Kind {
	switch kind {
	case 'b':
		return Boolean
	case 'i', 'u':
		return Integer
	case 'f':
		return Float
	case 'c':
		return Complex
	case 'm':
		return Timedelta
	case 'M':
		return Datetime
	case 'S', 'U':
		return String
	default:
		return PythonObject
	}
}

// Dim is one entry of an ndarray shape: a fixed positive extent, or unbound.
//
// On the wire an unbound dim is null (some legacy documents carry the
// literal string "None"; both are accepted, null is always written).
type Dim struct {
	n int
}

func Fixed(n int) Dim {
	return Dim{n: n}
}

func Unbound() Dim {
	return Dim{}
}

// Fixed returns the extent and true for a fixed dim, (0, false) for unbound.
func (d Dim) Fixed() (int, bool) {
	return d.n, 0 < d.n
}

func (d Dim) validate() error {
	if d.n < 0 {
		return fmt.Errorf("%w: shape entry should be positive or unbound: %d", ErrInvalidType, d.n)
	}
	return nil
}

func (d Dim) String() string {
	if n, ok := d.Fixed(); ok {
		return fmt.Sprintf("%d", n)
	}
	return "None"
}

func (d Dim) MarshalJSON() ([]byte, error) {
	if n, ok := d.Fixed(); ok {
		return json.Marshal(n)
	}
	return []byte("null"), nil
}

func (d *Dim) UnmarshalJSON(b []byte) error {
	var expr any
	if err := json.Unmarshal(b, &expr); err != nil {
		return err
	}
	return d.unmarshal(expr)
}

func (d Dim) MarshalYAML() (interface{}, error) {
	if n, ok := d.Fixed(); ok {
		return n, nil
	}
	return nil, nil
}

func (d *Dim) UnmarshalYAML(node *yaml.Node) error {
	var expr any
	if err := node.Decode(&expr); err != nil {
		return err
	}
	return d.unmarshal(expr)
}

func (d *Dim) unmarshal(expr any) error {
	switch v := expr.(type) {
	case nil:
		*d = Unbound()
		return nil
	case string:
		if v == "None" {
			*d = Unbound()
			return nil
		}
	case float64:
		n := int(v)
		if float64(n) != v {
			break
		}
		if n <= 0 {
			return fmt.Errorf("%w: shape entry should be positive or unbound: %v", ErrInvalidType, v)
		}
		*d = Fixed(n)
		return nil
	case int:
		if v <= 0 {
			return fmt.Errorf("%w: shape entry should be positive or unbound: %d", ErrInvalidType, v)
		}
		*d = Fixed(v)
		return nil
	}
	return fmt.Errorf("%w: shape entry should be an integer or null: %v", ErrInvalidType, expr)
}

// Shape is the shape vector of an ndarray node. Empty is a scalar tensor.
type Shape []Dim

func NewShape(dims ...Dim) Shape {
	if dims == nil {
		return Shape{}
	}
	return Shape(dims)
}

func (s Shape) Equal(o Shape) bool {
	return cmp.SliceEq(s, o)
}

func (s Shape) String() string {
	terms := make([]string, len(s))
	for i, d := range s {
		terms[i] = d.String()
	}
	return "(" + strings.Join(terms, ", ") + ")"
}

// ArgumentType is one node of the tagged union describing servable I/O.
//
// Which companion field is required depends on Type:
//
//   - NDArray: Shape (ItemType optional)
//   - List: ItemType
//   - Tuple: ElementTypes
//   - Dict: Properties
//   - PythonObject: PythonType
//
// Scalar kinds carry no companion field.
type ArgumentType struct {
	Type         Kind
	Description  string
	Shape        Shape
	ItemType     *ArgumentType
	ElementTypes []ArgumentType
	Properties   map[string]ArgumentType
	PythonType   string
}

// wire form of ArgumentType. Shape is a pointer so that an empty
// (scalar-tensor) shape survives round trips.
type argumentType struct {
	Type         Kind                    `json:"type" yaml:"type"`
	Description  string                  `json:"description,omitempty" yaml:"description,omitempty"`
	Shape        *Shape                  `json:"shape,omitempty" yaml:"shape,omitempty"`
	ItemType     *ArgumentType           `json:"item_type,omitempty" yaml:"item_type,omitempty"`
	ElementTypes []ArgumentType          `json:"element_types,omitempty" yaml:"element_types,omitempty"`
	Properties   map[string]ArgumentType `json:"properties,omitempty" yaml:"properties,omitempty"`
	PythonType   string                  `json:"python_type,omitempty" yaml:"python_type,omitempty"`
}

func (a ArgumentType) wire() argumentType {
	w := argumentType{
		Type:         a.Type,
		Description:  a.Description,
		ItemType:     a.ItemType,
		ElementTypes: a.ElementTypes,
		Properties:   a.Properties,
		PythonType:   a.PythonType,
	}
	if a.Shape != nil {
		s := a.Shape
		w.Shape = &s
	}
	return w
}

func (a *ArgumentType) fromWire(w argumentType) error {
	a.Type = w.Type
	a.Description = w.Description
	a.Shape = nil
	if w.Shape != nil {
		a.Shape = *w.Shape
		if a.Shape == nil {
			a.Shape = Shape{}
		}
	}
	a.ItemType = w.ItemType
	a.ElementTypes = w.ElementTypes
	a.Properties = w.Properties
	a.PythonType = w.PythonType
	return a.Validate()
}

func (a ArgumentType) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.wire())
}

// UnmarshalJSON accepts the object form or, as a shorthand for nested
// nodes, a bare kind string ("float" ≡ {"type": "float"}).
// The decoded node is validated.
func (a *ArgumentType) UnmarshalJSON(b []byte) error {
	{
		s := new(string)
		if err := json.Unmarshal(b, s); err == nil {
			return a.fromWire(argumentType{Type: Kind(*s)})
		}
	}

	w := argumentType{}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	return a.fromWire(w)
}

func (a ArgumentType) MarshalYAML() (interface{}, error) {
	return a.wire(), nil
}

func (a *ArgumentType) UnmarshalYAML(node *yaml.Node) error {
	{
		s := new(string)
		if err := node.Decode(s); err == nil {
			return a.fromWire(argumentType{Type: Kind(*s)})
		}
	}

	w := argumentType{}
	if err := node.Decode(&w); err != nil {
		return err
	}
	return a.fromWire(w)
}

// Validate checks the node structurally: the kind is known, the kind's
// required companion field is present, no foreign companion field is set,
// shape entries are positive or unbound, and nested nodes are valid too.
func (a ArgumentType) Validate() error {
	if !a.Type.Known() {
		return fmt.Errorf(`%w: unknown type "%s"`, ErrInvalidType, a.Type)
	}

	if err := a.validateCompanions(); err != nil {
		return err
	}

	for _, d := range a.Shape {
		if err := d.validate(); err != nil {
			return err
		}
	}
	if a.ItemType != nil {
		if err := a.ItemType.Validate(); err != nil {
			return fmt.Errorf("item_type: %w", err)
		}
	}
	for i, e := range a.ElementTypes {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("element_types[%d]: %w", i, err)
		}
	}
	for k, p := range a.Properties {
		if err := p.Validate(); err != nil {
			return fmt.Errorf(`properties["%s"]: %w`, k, err)
		}
	}

	return nil
}

func (a ArgumentType) validateCompanions() error {
	allowed := map[string]bool{}
	switch a.Type {
	case NDArray:
		if a.Shape == nil {
			return fmt.Errorf("%w: shape must be specified for ndarrays", ErrInvalidType)
		}
		allowed["shape"] = true
		allowed["item_type"] = true
	case List:
		if a.ItemType == nil {
			return fmt.Errorf("%w: item type must be defined for lists", ErrInvalidType)
		}
		allowed["item_type"] = true
	case Tuple:
		if a.ElementTypes == nil {
			return fmt.Errorf("%w: element types must be defined for tuples", ErrInvalidType)
		}
		allowed["element_types"] = true
	case Dict:
		if a.Properties == nil {
			return fmt.Errorf("%w: properties must be defined for dict type", ErrInvalidType)
		}
		allowed["properties"] = true
	case PythonObject:
		if a.PythonType == "" {
			return fmt.Errorf("%w: python type must be defined for python objects", ErrInvalidType)
		}
		allowed["python_type"] = true
	}

	if a.Shape != nil && !allowed["shape"] {
		return fmt.Errorf(`%w: "%s" does not take a shape`, ErrInvalidType, a.Type)
	}
	if a.ItemType != nil && !allowed["item_type"] {
		return fmt.Errorf(`%w: "%s" does not take an item type`, ErrInvalidType, a.Type)
	}
	if a.ElementTypes != nil && !allowed["element_types"] {
		return fmt.Errorf(`%w: "%s" does not take element types`, ErrInvalidType, a.Type)
	}
	if a.Properties != nil && !allowed["properties"] {
		return fmt.Errorf(`%w: "%s" does not take properties`, ErrInvalidType, a.Type)
	}
	if a.PythonType != "" && !allowed["python_type"] {
		return fmt.Errorf(`%w: "%s" does not take a python type`, ErrInvalidType, a.Type)
	}

	return nil
}

func (a ArgumentType) Equal(o ArgumentType) bool {
	return a.Type == o.Type &&
		a.Description == o.Description &&
		cmp.PEqualWith(eqShapePresence(a.Shape), eqShapePresence(o.Shape), Shape.Equal) &&
		cmp.PEqualWith(a.ItemType, o.ItemType, ArgumentType.Equal) &&
		cmp.SliceEqWith(a.ElementTypes, o.ElementTypes, ArgumentType.Equal) &&
		cmp.MapEqWith(a.Properties, o.Properties, ArgumentType.Equal) &&
		a.PythonType == o.PythonType
}

// distinguish nil shape (absent) from empty shape (scalar tensor).
func eqShapePresence(s Shape) *Shape {
	if s == nil {
		return nil
	}
	return &s
}

// Scalar builds a scalar node. The kind must be scalar.
func Scalar(kind Kind, description string) (ArgumentType, error) {
	a := ArgumentType{Type: kind, Description: description}
	if !kind.Scalar() {
		return ArgumentType{}, fmt.Errorf(`%w: "%s" is not a scalar kind`, ErrInvalidType, kind)
	}
	return a, a.Validate()
}

// NDArrayOf builds an ndarray node. itemType may be nil.
func NDArrayOf(description string, shape Shape, itemType *ArgumentType) (ArgumentType, error) {
	if shape == nil {
		shape = Shape{}
	}
	a := ArgumentType{Type: NDArray, Description: description, Shape: shape, ItemType: itemType}
	return a, a.Validate()
}

// ListOf builds a list node.
func ListOf(description string, itemType ArgumentType) (ArgumentType, error) {
	a := ArgumentType{Type: List, Description: description, ItemType: &itemType}
	return a, a.Validate()
}

// TupleOf builds a tuple node from its element types, in order.
func TupleOf(description string, elementTypes ...ArgumentType) (ArgumentType, error) {
	if elementTypes == nil {
		elementTypes = []ArgumentType{}
	}
	a := ArgumentType{Type: Tuple, Description: description, ElementTypes: elementTypes}
	return a, a.Validate()
}

// DictOf builds a dict node from its property types.
func DictOf(description string, properties map[string]ArgumentType) (ArgumentType, error) {
	a := ArgumentType{Type: Dict, Description: description, Properties: properties}
	return a, a.Validate()
}

// Object builds a python-object node carrying its opaque origin-type tag.
func Object(description string, pythonType string) (ArgumentType, error) {
	a := ArgumentType{Type: PythonObject, Description: description, PythonType: pythonType}
	return a, a.Validate()
}
