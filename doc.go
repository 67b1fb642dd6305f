// Package assetgen builds the static assets of a web project.
//
// A Project owns a path table that maps each asset category (html, images,
// styles and scripts) to a source glob and a destination directory.  Every
// category has a Pipeline: an ordered list of Stages that read the matching
// files into a Stream, transform it and write the results out.  The heavy
// lifting in each stage (minification, sass compilation, transpilation,
// image re-encoding) is delegated to libraries; this package only composes
// them.
//
// The tasks exposed by a Project mirror a classic front end task runner:
//
//	clean    removes the output directory
//	html     preprocesses (and in production minifies) html pages
//	images   re-encodes images
//	styles   compiles sass into a single main.min.css
//	scripts  lints, transpiles, minifies and bundles into main.min.js
//	build    clean, then the four pipelines above in parallel
//	watch    re-runs a pipeline whenever one of its sources changes
//
// Build mode (development or production) is read once from NODE_ENV and
// handed to every pipeline through the Project.
package assetgen
