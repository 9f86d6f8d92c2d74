// Package linking defines knots and their linking schemes.
//
// A linking scheme is an ordered list of [Step] values. Each step joins the
// running array of values from an "in" reference onto an "out" reference:
//
//   - An abstract step (Abstract == true) reads a precomputed abstract table
//     onto a physical layer. The first step of every knot is abstract.
//   - An INNERAGG step changes level inside one layer, e.g. from
//     COORDINATES3D to OBJECTS, reducing with the step's [Operation].
//   - Any other step joins two distinct physical layers through a spatial
//     [Relation] and reduces the matched partner values.
//
// Operation knots (Spec.KnotOp) do not read layers at all. Each of their
// steps names two other knots in In and Out and combines their resolved
// values with an arithmetic expression (Step.Op), see package expr.
//
// [Validate] and [ValidateSet] check all structural rules before anything is
// resolved. The resolver itself lives in package layer.
package linking
