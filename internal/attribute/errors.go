package attribute

import (
	"errors"
	"fmt"
)

// Error represents a failure raised by an attribute.
//
// Attribute errors fall into a few categories:
//   - Unsupported: the operation is meaningless for the attribute variant
//     (setting a calculated attribute, joining from a mapped attribute)
//   - Parse: malformed text during flat-file import, with the source line
//   - Join incompatible: the two sides of a join live in incompatible
//     source or as-of contexts
//   - Tuple across relationships: tuple members reached through different
//     relationship paths
//   - As-of value: an as-of attribute was given no usable point in time
//
// Unsupported and join errors are programming errors; callers should not
// retry them.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Attribute is the qualified attribute name, e.g. "Order.quantity".
	Attribute string

	// Line is the 1-based source line for parse errors, 0 otherwise.
	Line int

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes attribute errors.
type ErrorCode string

const (
	// ErrCodeUnsupported indicates the operation is not implemented for the
	// attribute variant.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"

	// ErrCodeParse indicates malformed text input.
	ErrCodeParse ErrorCode = "PARSE"

	// ErrCodeJoinIncompatible indicates a join between incompatible portals.
	ErrCodeJoinIncompatible ErrorCode = "JOIN_INCOMPATIBLE"

	// ErrCodeTupleAcrossRelationships indicates tuple members with different
	// relationship paths.
	ErrCodeTupleAcrossRelationships ErrorCode = "TUPLE_ACROSS_RELATIONSHIPS"

	// ErrCodeAsOfValue indicates a missing or ambiguous as-of value.
	ErrCodeAsOfValue ErrorCode = "ASOF_VALUE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("%s: %s (attribute=%s, line=%d)", e.Code, e.Message, e.Attribute, e.Line)
	case e.Attribute != "":
		return fmt.Sprintf("%s: %s (attribute=%s)", e.Code, e.Message, e.Attribute)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func hasCode(err error, code ErrorCode) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// IsUnsupported returns true if err is an unsupported-operation error.
func IsUnsupported(err error) bool { return hasCode(err, ErrCodeUnsupported) }

// IsParseError returns true if err is a parse error.
func IsParseError(err error) bool { return hasCode(err, ErrCodeParse) }

// IsJoinIncompatible returns true if err is a join-compatibility error.
func IsJoinIncompatible(err error) bool { return hasCode(err, ErrCodeJoinIncompatible) }

// IsTupleAcrossRelationships returns true if err rejects a tuple whose
// members are reached through different relationships.
func IsTupleAcrossRelationships(err error) bool {
	return hasCode(err, ErrCodeTupleAcrossRelationships)
}

// ParseLine returns the source line of a parse error, or 0.
func ParseLine(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Code == ErrCodeParse {
		return ae.Line
	}
	return 0
}

// NewUnsupportedError creates an Error for an operation the attribute
// variant cannot perform.
func NewUnsupportedError(attribute, operation string) *Error {
	return &Error{
		Code:      ErrCodeUnsupported,
		Attribute: attribute,
		Message:   operation + " is not implemented",
	}
}

// NewParseError creates an Error for malformed input on line.
func NewParseError(attribute string, line int, format string, args ...any) *Error {
	return &Error{
		Code:      ErrCodeParse,
		Attribute: attribute,
		Line:      line,
		Message:   fmt.Sprintf(format, args...),
	}
}

// NewJoinError creates an Error for a join across incompatible portals.
func NewJoinError(left, right, reason string) *Error {
	return &Error{
		Code:      ErrCodeJoinIncompatible,
		Attribute: left,
		Message:   fmt.Sprintf("join not supported with %s: %s", right, reason),
	}
}

// errTupleAcrossRelationships is returned when tuple members are reached
// through different relationships.
func errTupleAcrossRelationships(attribute string) *Error {
	return &Error{
		Code:      ErrCodeTupleAcrossRelationships,
		Attribute: attribute,
		Message:   "cannot form tuples across relationships; the tuple must be created from attributes of the same object",
	}
}
