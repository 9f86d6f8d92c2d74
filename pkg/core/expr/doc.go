// Package expr compiles and evaluates the arithmetic expressions used by
// operation knots.
//
// An operation knot combines the already-resolved values of two other knots
// coordinate by coordinate, e.g.
//
//	shadow * 0.5 + max(sky, prevResult)
//
// Expressions are parsed into a small AST once and evaluated per coordinate.
// Nothing is executed dynamically: the grammar only knows numbers, the
// identifiers the caller allows, the operators + - * /, unary minus,
// parentheses, the comparisons < <= > >= == != (yielding 1 or 0) and the
// functions min, max and abs. Any other identifier is rejected at compile
// time.
//
// # Usage
//
//	prog, err := expr.Compile("a * b + prevResult", []string{"a", "b", "prevResult"})
//	if err != nil {
//	    return err
//	}
//	v := prog.EvalSlots([]float64{2, 3, 1}) // 7
//
// Division follows IEEE-754 semantics: dividing by zero yields ±Inf or NaN
// rather than an error, so one degenerate coordinate never aborts a knot.
package expr
