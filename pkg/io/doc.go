// Package io reads the inputs of a document and writes its artifacts.
//
// # Inputs
//
// Geometry comes either in the native feature format, one object per
// component:
//
//	{
//	  "centroid": [4.9, 52.3, 0],
//	  "features": [
//	    {"coordinates": [0,0,0, 1,0,0, 0,1,0], "indices": [0,1,2], "ids": [0]}
//	  ]
//	}
//
// or as a GeoJSON FeatureCollection ([ReadGeoJSON]), in which case polygons
// are extruded into prisms using their height and minHeight properties.
//
// Join tables are a JSON array per layer. Abstract partners carry inValues,
// physical partners carry inIds (a null entry means no match):
//
//	[
//	  {"spatial_relation": "NEAREST", "layerId": "sensors", "inLevel": "OBJECTS",
//	   "outLevel": "OBJECTS", "inIds": [[0, 1], null]}
//	]
//
// Knots are read with [ReadKnots], which validates the set as a whole.
//
// # Artifacts
//
// [Functions] and [Buffers] snapshot a resolved document as functions.json
// (one array per knot at its target level) and buffers.json (flattened mesh
// views and per-vertex fields per layer).
package io
