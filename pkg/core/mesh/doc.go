// Package mesh builds half-edge meshes from raw feature geometry.
//
// Every component stores three index tables:
//
//   - VTable (3 entries per triangle) maps half-edge he to the vertex it
//     leaves. Half-edges 3t, 3t+1 and 3t+2 belong to triangle t.
//   - OTable maps a half-edge to the half-edge covering the same edge in the
//     adjacent triangle, or [Boundary].
//   - VertHe maps a vertex to one half-edge leaving it, preferring boundary
//     half-edges so a walk around a boundary vertex can start at the rim.
//
// [Mesh.Load] recenters the input, rebuilds adjacency, makes the winding of
// every connected fan consistent and derives area-weighted vertex normals.
// Scalar fields produced by knots are attached with [Mesh.LoadFunctionData].
package mesh
