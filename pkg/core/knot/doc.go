// Package knot binds linking schemes to the layers they render on and keeps
// their resolved values current.
//
// A [Set] holds the knots of one document. Knots start dirty; they become
// dirty again when their spec changes, when a layer they touch gets new join
// tables or geometry ([Set.MarkLayerDirty]), or when a knot they combine
// does. [Set.RecomputeAll] resolves the dirty ones through a
// [layer.Manager] and attaches each result to its target layer with
// DistributeFunctionValues, keyed by the knot id.
//
// Operation knots render on the layer of the knot named by their last step's
// out reference.
package knot
