// Package layer implements physical layers and the join resolver that runs
// linking schemes over them.
//
// # Layers
//
// A [Layer] wraps a [mesh.Mesh] and decides how function arrays at the three
// levels map onto its vertices. The five variants differ only in a static
// capability table:
//
//	kind       levels                              object base
//	point      COORDINATES3D, OBJECTS              COORDINATES3D
//	line       COORDINATES, OBJECTS                COORDINATES
//	triangle   COORDINATES, COORDINATES3D, OBJECTS COORDINATES3D
//	building   COORDINATES, COORDINATES3D, OBJECTS COORDINATES3D
//	heatmap    COORDINATES3D                       COORDINATES3D
//
// Buildings address their footprint points at COORDINATES. Values there
// reach the 3D mesh through each vertex's nearest footprint point and are
// then smoothed over the building's cells.
//
// # Resolution
//
// [Manager.GetAbstractDataFromLink] walks a scheme left to right, keeping one
// running array. Abstract steps seed it from join tables, INNERAGG steps
// reduce within a layer, and cross-layer steps gather the partner's values
// through the join's matched ids. OBJECTS results are broadcast so the
// running array always addresses coordinates.
//
// Operation knots are evaluated by [Manager.ResolveKnotOp], which combines
// already-resolved knots supplied by a [KnotSource].
package layer
