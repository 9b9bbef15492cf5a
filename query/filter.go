package query

import (
	"fmt"
	"strings"
	"time"
)

// Operator is a comparison operator accepted by the Tracelane query grammar.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpGt       Operator = "gt"
	OpLt       Operator = "lt"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
	OpContains Operator = "contains"
	OpIn       Operator = "in"
	OpIsNull   Operator = "is null"
)

var knownOperators = map[Operator]struct{}{
	OpEq:       {},
	OpNe:       {},
	OpGt:       {},
	OpLt:       {},
	OpGte:      {},
	OpLte:      {},
	OpContains: {},
	OpIn:       {},
	OpIsNull:   {},
}

// Expr is a node in a filter expression tree. Expressions are built by the
// caller, compiled once, and discarded; they are not safe to mutate while a
// compile is in progress.
type Expr interface {
	render(sb *strings.Builder) error
}

// Comparison compares a field against a literal value.
type Comparison struct {
	Field string
	Op    Operator
	Value Value
}

// And joins two expressions; both operands are parenthesised on the wire so
// the remote parser's precedence cannot be misread.
type And struct {
	Left, Right Expr
}

// Or joins two expressions, parenthesised like And.
type Or struct {
	Left, Right Expr
}

// Not negates an expression.
type Not struct {
	Expr Expr
}

func (c Comparison) render(sb *strings.Builder) error {
	if err := validateFieldPath(c.Field); err != nil {
		return err
	}
	if _, ok := knownOperators[c.Op]; !ok {
		return &CompileError{Reason: fmt.Sprintf("unrecognized operator %q", string(c.Op))}
	}

	sb.WriteString(c.Field)
	sb.WriteByte(' ')
	sb.WriteString(string(c.Op))

	// "is null" is a unary test, no literal follows
	if c.Op == OpIsNull {
		return nil
	}

	sb.WriteByte(' ')
	return c.Value.render(sb, c.Op)
}

func (a And) render(sb *strings.Builder) error {
	return renderBinary(sb, a.Left, "and", a.Right)
}

func (o Or) render(sb *strings.Builder) error {
	return renderBinary(sb, o.Left, "or", o.Right)
}

func (n Not) render(sb *strings.Builder) error {
	if n.Expr == nil {
		return &CompileError{Reason: "not expression has no operand"}
	}
	sb.WriteString("not (")
	if err := n.Expr.render(sb); err != nil {
		return err
	}
	sb.WriteByte(')')
	return nil
}

func renderBinary(sb *strings.Builder, left Expr, op string, right Expr) error {
	if left == nil || right == nil {
		return &CompileError{Reason: fmt.Sprintf("%v expression is missing an operand", op)}
	}
	sb.WriteByte('(')
	if err := left.render(sb); err != nil {
		return err
	}
	sb.WriteString(") ")
	sb.WriteString(op)
	sb.WriteString(" (")
	if err := right.render(sb); err != nil {
		return err
	}
	sb.WriteByte(')')
	return nil
}

type valueKind int

const (
	valueNone valueKind = iota
	valueString
	valueNumber
	valueBool
	valueDate
	valueList
)

// Value is a typed literal. The compiler chooses quoting and serialization
// per type; callers never supply pre-escaped text.
type Value struct {
	kind valueKind
	str  string
	num  float64
	b    bool
	t    time.Time
	list []Value
}

// String returns a string literal, single-quoted on the wire with internal
// quotes doubled.
func String(s string) Value { return Value{kind: valueString, str: s} }

// Number returns a numeric literal, rendered unquoted.
func Number(f float64) Value { return Value{kind: valueNumber, num: f} }

// Int returns an integer literal.
func Int(i int) Value { return Value{kind: valueNumber, num: float64(i)} }

// Bool returns a boolean literal, rendered as unquoted true/false.
func Bool(b bool) Value { return Value{kind: valueBool, b: b} }

// Date returns a date literal, rendered as an explicit ISO date. Date macros
// are deliberately not supported; their behaviour on the remote service is
// unverified.
func Date(t time.Time) Value { return Value{kind: valueDate, t: t} }

// List returns a list literal for use with the "in" operator, rendered as a
// comma-joined bracket list.
func List(vs ...Value) Value { return Value{kind: valueList, list: vs} }

func (v Value) render(sb *strings.Builder, op Operator) error {
	switch v.kind {
	case valueString:
		sb.WriteByte('\'')
		sb.WriteString(strings.ReplaceAll(v.str, "'", "''"))
		sb.WriteByte('\'')
	case valueNumber:
		sb.WriteString(formatNumber(v.num))
	case valueBool:
		if v.b {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case valueDate:
		sb.WriteByte('\'')
		sb.WriteString(v.t.Format("2006-01-02"))
		sb.WriteByte('\'')
	case valueList:
		if op != OpIn {
			return &CompileError{Reason: fmt.Sprintf("list literal is only valid with the in operator, got %q", string(op))}
		}
		sb.WriteByte('[')
		for i, elem := range v.list {
			if i > 0 {
				sb.WriteByte(',')
			}
			if elem.kind == valueList {
				return &CompileError{Reason: "nested list literals are not supported"}
			}
			if err := elem.render(sb, OpEq); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	default:
		return &CompileError{Reason: fmt.Sprintf("missing literal for operator %q", string(op))}
	}
	return nil
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", f), "0"), ".")
}

// validateFieldPath checks that a field reference is a dotted path of
// identifiers. Schema validation against the live instance is the metadata
// engine's concern, not the compiler's.
func validateFieldPath(field string) error {
	if field == "" {
		return &CompileError{Reason: "empty field path"}
	}
	for _, segment := range strings.Split(field, ".") {
		if !validIdentifier(segment) {
			return &CompileError{Reason: fmt.Sprintf("ill-formed field path %q", field)}
		}
	}
	return nil
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
