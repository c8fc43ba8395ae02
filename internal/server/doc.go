// Package server hosts the Fiber HTTP service for browsing a Python package
// index: the route table, request middleware chain, HTML templates, and the
// raw entry streaming path. Handlers delegate to the repository client
// (internal/pypi), the download cache (internal/cache), and the archive
// abstraction (internal/packaging); this package owns only presentation and
// error-to-status mapping. Keep exports narrow and accept explicit
// dependencies.
package server
