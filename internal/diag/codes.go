package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Синтаксис фрагментов
	SynInfo                Code = 1000
	SynUnexpectedChar      Code = 1001
	SynUnterminatedString  Code = 1002
	SynUnterminatedComment Code = 1003
	SynBadNumber           Code = 1004
	SynBadEscape           Code = 1005
	SynUnexpectedToken     Code = 1010
	SynExpectValue         Code = 1011
	SynExpectColon         Code = 1012
	SynExpectKey           Code = 1013
	SynUnclosedBrace       Code = 1014
	SynUnclosedBracket     Code = 1015
	SynDuplicateKey        Code = 1020
	SynKeyConflict         Code = 1021
	SynTrailingContent     Code = 1022

	// Схема
	SchInfo             Code = 2000
	SchUnknownKey       Code = 2001
	SchTypeMismatch     Code = 2002
	SchEnumViolation    Code = 2003
	SchMissingRequired  Code = 2004
	SchOutOfRange       Code = 2005
	SchListLength       Code = 2006
	SchDeprecatedAlias  Code = 2007
	SchAliasConflict    Code = 2008
	SchInvalidExtension Code = 2009

	// Межполевые правила
	CnsInfo              Code = 3000
	CnsDivisibility      Code = 3001
	CnsTopology          Code = 3002
	CnsBatchSize         Code = 3003
	CnsOrdering          Code = 3004
	CnsInterval          Code = 3005
	CnsPrecision         Code = 3006
	CnsIncompatible      Code = 3007
	CnsMissingDependency Code = 3008
	CnsAdvisory          Code = 3009
	CnsDatasetMix        Code = 3010

	// Вывод производных значений; любое из них означает баг
	DrvInfo         Code = 4000
	DrvMissingInput Code = 4001
	DrvOverflow     Code = 4002
	DrvInvariant    Code = 4003

	IOLoadFileError Code = 5001
	IOWriteError    Code = 5002
)

var codeDescription = map[Code]string{
	UnknownCode:            "Unknown error",
	SynInfo:                "Syntax information",
	SynUnexpectedChar:      "Unexpected character",
	SynUnterminatedString:  "Unterminated string literal",
	SynUnterminatedComment: "Unterminated block comment",
	SynBadNumber:           "Malformed number literal",
	SynBadEscape:           "Invalid escape sequence",
	SynUnexpectedToken:     "Unexpected token",
	SynExpectValue:         "Expected a value",
	SynExpectColon:         "Expected ':' after key",
	SynExpectKey:           "Expected a key",
	SynUnclosedBrace:       "Unclosed '{'",
	SynUnclosedBracket:     "Unclosed '['",
	SynDuplicateKey:        "Duplicate key within one fragment",
	SynKeyConflict:         "Key path conflicts with an existing value",
	SynTrailingContent:     "Unexpected content after document",
	SchInfo:                "Schema information",
	SchUnknownKey:          "Unknown key",
	SchTypeMismatch:        "Type mismatch",
	SchEnumViolation:       "Value not in enumeration",
	SchMissingRequired:     "Missing required key",
	SchOutOfRange:          "Value out of range",
	SchListLength:          "List length mismatch",
	SchDeprecatedAlias:     "Deprecated key spelling",
	SchAliasConflict:       "Key set under two spellings",
	SchInvalidExtension:    "Invalid schema extension",
	CnsInfo:                "Consistency information",
	CnsDivisibility:        "Divisibility violated",
	CnsTopology:            "Parallelism does not fit the device topology",
	CnsBatchSize:           "Batch size inconsistent",
	CnsOrdering:            "Ordering violated",
	CnsInterval:            "Interval out of bounds",
	CnsPrecision:           "Precision settings inconsistent",
	CnsIncompatible:        "Incompatible settings",
	CnsMissingDependency:   "Dependent key missing",
	CnsAdvisory:            "Suspicious configuration",
	CnsDatasetMix:          "Dataset mixture has no positive weight",
	DrvInfo:                "Derivation information",
	DrvMissingInput:        "Derivation input missing",
	DrvOverflow:            "Derived value overflows",
	DrvInvariant:           "Derived value violates an invariant",
	IOLoadFileError:        "I/O load file error",
	IOWriteError:           "I/O write error",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SCH%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("CNS%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("DRV%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

// Class names the error taxonomy bucket of the code.
func (c Code) Class() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return "SyntaxError"
	case ic >= 2000 && ic < 3000:
		return "SchemaError"
	case ic >= 3000 && ic < 4000:
		return "ConsistencyError"
	case ic >= 4000 && ic < 5000:
		return "DerivationError"
	case ic >= 5000 && ic < 6000:
		return "IOError"
	}
	return "Error"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
