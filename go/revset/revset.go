// Package revset provides a typed expression tree over Mercurial revision
// sets, replacing ad-hoc string concatenation of revset queries. Expressions
// are pure values; nothing here talks to hg. Evaluation happens externally,
// by handing the serialized form to "hg log -r".
package revset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRevision is returned by the revision-taking constructors when
// given text that cannot be a revision identifier.
var ErrInvalidRevision = errors.New("invalid revision")

type kind int

const (
	kindInvalid kind = iota
	kindSingleton
	kindDescendantsOf
	kindAncestorsOf
	kindCommonAncestor
	kindDifference
	kindIntersection
	kindUnion
	kindFirst
)

// Expr is one node of a revset expression. The zero value is the empty
// expression, which serializes to "".
type Expr struct {
	kind     kind
	rev      string
	operands []Expr
}

// checkRevision rejects revision text which could never name a revision, or
// which would change the meaning of the serialized query. Everything else is
// passed through; whether the revision actually exists is only known at
// evaluation time.
func checkRevision(rev string) error {
	if rev == "" {
		return fmt.Errorf("empty revision: %w", ErrInvalidRevision)
	}
	if strings.ContainsAny(rev, " \t\r\n()\"'`\\") {
		return fmt.Errorf("revision %q contains whitespace or revset syntax: %w", rev, ErrInvalidRevision)
	}
	return nil
}

// Singleton returns an expression matching exactly the given revision. If the
// revision does not exist, evaluation reports it as unknown rather than
// returning an empty set.
func Singleton(rev string) (Expr, error) {
	if err := checkRevision(rev); err != nil {
		return Expr{}, err
	}
	return Expr{kind: kindSingleton, rev: rev}, nil
}

// DescendantsOf returns an expression matching every revision reachable
// forward from rev, including rev itself. The revision is wrapped in id(), so
// an unknown revision evaluates to the empty set instead of an error.
func DescendantsOf(rev string) (Expr, error) {
	if err := checkRevision(rev); err != nil {
		return Expr{}, err
	}
	return Expr{kind: kindDescendantsOf, rev: rev}, nil
}

// AncestorsOf returns an expression matching every revision reachable
// backward from rev, including rev itself. Like DescendantsOf, an unknown
// revision evaluates to the empty set.
func AncestorsOf(rev string) (Expr, error) {
	if err := checkRevision(rev); err != nil {
		return Expr{}, err
	}
	return Expr{kind: kindAncestorsOf, rev: rev}, nil
}

// CommonAncestor returns an expression matching the greatest common ancestor
// of a and b.
func CommonAncestor(a, b Expr) Expr {
	return Expr{kind: kindCommonAncestor, operands: []Expr{a, b}}
}

// Difference returns an expression matching revisions in a but not in b.
// Difference(x, x) evaluates to the empty set, not an error.
func Difference(a, b Expr) Expr {
	return Expr{kind: kindDifference, operands: []Expr{a, b}}
}

// Intersection returns an expression matching revisions present in every
// operand. With no operands it returns the empty expression.
func Intersection(exprs ...Expr) Expr {
	if len(exprs) == 0 {
		return Expr{}
	}
	if len(exprs) == 1 {
		return exprs[0]
	}
	return Expr{kind: kindIntersection, operands: exprs}
}

// Union returns an expression matching revisions present in any operand.
// With no operands it returns the empty expression.
func Union(exprs ...Expr) Expr {
	if len(exprs) == 0 {
		return Expr{}
	}
	if len(exprs) == 1 {
		return exprs[0]
	}
	return Expr{kind: kindUnion, operands: exprs}
}

// First returns an expression matching the earliest revision, in topological
// order, of the given set, or the empty set if expr is empty.
func First(expr Expr) Expr {
	return Expr{kind: kindFirst, operands: []Expr{expr}}
}

// IsEmpty returns true for the zero (empty) expression.
func (e Expr) IsEmpty() bool {
	return e.kind == kindInvalid
}

// atomic expressions never need parenthesizing when used as an operand.
// Difference is atomic because its serialized form carries its own
// parentheses.
func (e Expr) atomic() bool {
	switch e.kind {
	case kindSingleton, kindDescendantsOf, kindAncestorsOf, kindCommonAncestor, kindDifference, kindFirst:
		return true
	default:
		return false
	}
}

func (e Expr) operandString(op Expr) string {
	s := op.String()
	if op.atomic() {
		return s
	}
	return "(" + s + ")"
}

// String serializes the expression into the Mercurial revset dialect, ready
// to be passed to "hg log -r".
func (e Expr) String() string {
	switch e.kind {
	case kindInvalid:
		return ""
	case kindSingleton:
		return e.rev
	case kindDescendantsOf:
		return "descendants(id(" + e.rev + "))"
	case kindAncestorsOf:
		return "ancestors(id(" + e.rev + "))"
	case kindCommonAncestor:
		return "ancestor(" + e.operands[0].String() + "," + e.operands[1].String() + ")"
	case kindDifference:
		return "(" + e.operandString(e.operands[0]) + "-" + e.operandString(e.operands[1]) + ")"
	case kindIntersection:
		parts := make([]string, 0, len(e.operands))
		for _, op := range e.operands {
			parts = append(parts, e.operandString(op))
		}
		return strings.Join(parts, " and ")
	case kindUnion:
		parts := make([]string, 0, len(e.operands))
		for _, op := range e.operands {
			parts = append(parts, e.operandString(op))
		}
		return strings.Join(parts, " | ")
	case kindFirst:
		return "first(" + e.operands[0].String() + ")"
	default:
		return ""
	}
}
