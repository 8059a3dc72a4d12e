// Package render turns Graphviz DOT source into SVG or PNG images.
//
// # Overview
//
// A render runs in up to three steps:
//
//  1. A [LayoutEngine] lays out the DOT source and emits SVG. [Graphviz]
//     runs the Graphviz C library compiled to WebAssembly, so no system
//     installation is needed.
//  2. For PNG output a [Rasterizer] turns the SVG into pixels at its
//     natural size.
//  3. When both a width and a height are requested, [Contain] scales the
//     raster to fit the box and pads it with white.
//
// PNG is always produced from the SVG, never by asking Graphviz for PNG
// directly, so both formats share one layout.
//
// [Service] ties the steps together and adds optional caching, a render
// timeout and observability hooks:
//
//	engine, _ := render.NewGraphviz(ctx, 1)
//	defer engine.Close()
//	svc := render.NewService(engine, render.NewVectorRasterizer())
//	res, err := svc.Render(ctx, render.Request{Graph: "digraph{a->b}", Format: "png"})
//
// # Errors
//
// Every failure is an *errors.Error. An empty graph is INVALID_INPUT; all
// other codes describe a render that was attempted and failed.
package render
