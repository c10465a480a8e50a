package schema

import "fmt"

// Type is the semantic type of a field.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeInteger
	TypePositiveInteger
	TypeNonNegativeInteger
	TypeFloat
	TypeBool
	TypeString
	TypeEnum
	TypeBlock
	TypeBlockList
	TypeFloatList
	TypeIntOrAuto
	TypeAny
)

var typeNames = [...]string{
	TypeInvalid:            "invalid",
	TypeInteger:            "integer",
	TypePositiveInteger:    "positive-integer",
	TypeNonNegativeInteger: "non-negative-integer",
	TypeFloat:              "float",
	TypeBool:               "bool",
	TypeString:             "string",
	TypeEnum:               "enum",
	TypeBlock:              "block",
	TypeBlockList:          "block-list",
	TypeFloatList:          "float-list",
	TypeIntOrAuto:          "int-or-auto",
	TypeAny:                "any",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", t)
}

// ParseType maps a type name as written in extension files.
func ParseType(s string) (Type, error) {
	for i, n := range typeNames {
		if n == s && Type(i) != TypeInvalid {
			return Type(i), nil
		}
	}
	switch s {
	case "int":
		return TypeInteger, nil
	case "nested-block":
		return TypeBlock, nil
	case "list-of-block":
		return TypeBlockList, nil
	case "boolean":
		return TypeBool, nil
	}
	return TypeInvalid, fmt.Errorf("unknown field type %q", s)
}

// IsInteger reports whether values of t are stored as Int.
func (t Type) IsInteger() bool {
	return t == TypeInteger || t == TypePositiveInteger || t == TypeNonNegativeInteger
}

// HasChildren reports whether t describes nested fields.
func (t Type) HasChildren() bool {
	return t == TypeBlock || t == TypeBlockList
}
