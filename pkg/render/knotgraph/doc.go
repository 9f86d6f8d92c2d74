// Package knotgraph renders the link graph of a document's knots.
//
// # Overview
//
// Every knot is a chain of joins between layers. Drawing those chains shows
// which layers feed which knots, where an abstract data table enters, and
// which operation knots combine others. Physical layers are drawn as 3D
// boxes, abstract partners as notes, and knots as rounded boxes (shaded for
// operation knots).
//
// # Usage
//
//	dot := knotgraph.ToDOT(specs, knotgraph.Options{LayerKinds: kinds})
//	svg, err := knotgraph.Render(ctx, dot, knotgraph.FormatSVG)
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG and
// PNG rendering; no Graphviz installation is needed.
package knotgraph
