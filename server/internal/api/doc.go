// Package api implements the HTTP REST API for the rollup server.
//
// New(store, alerts) returns an http.Handler that serves:
//
//	GET /api/v1/health        root status, per-status counts, alert count
//	GET /api/v1/nodes         all nodes; ?kind=imported|derived, ?status=red
//	GET /api/v1/nodes/{name}  one node plus the derived nodes it affects
//	PUT /api/v1/nodes/{name}  set a leaf status: {"status":"red","detail":"..."}
//	GET /api/v1/tree          rendered text view (text/plain)
//	GET /api/v1/alerts        firing and recently resolved alerts
//	GET /api/v1/snapshot      every node, roots and root status
//
// Errors are JSON {"error": "..."}: 400 for bad input, 404 for unknown nodes,
// 405 for unsupported methods and 409 when a PUT targets a derived node.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
