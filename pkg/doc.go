// Package pkg provides the core libraries of urbanknots.
//
// # Overview
//
// urbanknots resolves knots over layered urban geometry. A knot is a linking
// scheme: a chain of joins that carries a scalar field from one layer (or an
// abstract dataset) onto another, distributing and aggregating values between
// the levels of each layer on the way. The pkg directory is organized into
// three areas:
//
//  1. [core] - Domain logic (meshes, layers, linking schemes, knots)
//  2. [pipeline] - Orchestration (load → resolve → render)
//  3. Infrastructure ([cache], [session], [project], [io], [observability])
//
// # Architecture
//
// The typical data flow:
//
//	Feature files + join tables
//	         ↓
//	    [core/mesh] package (half-edge topology per component)
//	         ↓
//	    [core/layer] package (levels, joins, resolver)
//	         ↓
//	    [core/knot] package (dirty tracking, parallel resolution)
//	         ↓
//	    functions.json, buffers.json, knot graph
//
// # Quick Start
//
//	p, _ := project.Load("urbanknots.toml")
//	b, _ := pipeline.BundleFromProject(p)
//	runner := pipeline.NewRunner(nil, nil, nil)
//	result, _ := runner.Execute(ctx, b, pipeline.Options{})
//	fmt.Println(result.Stats.Knots)
//
// # Main Packages
//
// ## Core Domain Logic
//
// [core/mesh] - Half-edge meshes with consistent winding, boundary detection
// and a configurable non-manifold policy.
//
// [core/linking] - Knot specs and linking scheme validation.
//
// [core/aggregate] - Distribution and aggregation between levels.
//
// [core/join] - Precomputed join tables delivered by the spatial join service.
//
// [core/layer] - Physical layer kinds and the scheme resolver.
//
// [core/expr] - Arithmetic for operation knots.
//
// [core/knot] - The knot set of one document.
//
// ## Infrastructure
//
// [pipeline] - The pipeline shared by CLI and API.
//
// [cache] - File, Redis and null caches keyed by content hashes.
//
// [session] - Documents and their memory, file, Redis and MongoDB stores.
//
// [render/knotgraph] - Graphviz drawing of how knots move data between layers.
//
// [core]: https://pkg.go.dev/github.com/matzehuels/urbanknots/pkg/core
// [core/mesh]: https://pkg.go.dev/github.com/matzehuels/urbanknots/pkg/core/mesh
// [core/linking]: https://pkg.go.dev/github.com/matzehuels/urbanknots/pkg/core/linking
// [core/aggregate]: https://pkg.go.dev/github.com/matzehuels/urbanknots/pkg/core/aggregate
// [core/join]: https://pkg.go.dev/github.com/matzehuels/urbanknots/pkg/core/join
// [core/layer]: https://pkg.go.dev/github.com/matzehuels/urbanknots/pkg/core/layer
// [core/expr]: https://pkg.go.dev/github.com/matzehuels/urbanknots/pkg/core/expr
// [core/knot]: https://pkg.go.dev/github.com/matzehuels/urbanknots/pkg/core/knot
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/urbanknots/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/urbanknots/pkg/cache
// [session]: https://pkg.go.dev/github.com/matzehuels/urbanknots/pkg/session
// [project]: https://pkg.go.dev/github.com/matzehuels/urbanknots/pkg/project
// [io]: https://pkg.go.dev/github.com/matzehuels/urbanknots/pkg/io
// [observability]: https://pkg.go.dev/github.com/matzehuels/urbanknots/pkg/observability
// [render/knotgraph]: https://pkg.go.dev/github.com/matzehuels/urbanknots/pkg/render/knotgraph
package pkg
