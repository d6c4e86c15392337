// Package ws implements the WebSocket hub for the rollup server.
//
// Hub manages a set of connected clients. It sends the full snapshot on
// connect and on every tick of a configurable interval (default 5s), and
// forwards each change set published by the store as soon as it happens.
//
// Message format sent to clients:
//
//	{"event": "snapshot", "data": { /* same schema as GET /api/v1/snapshot */ }}
//	{"event": "changes",  "data": [ {"node": "db", "from": "green", "to": "red", ...} ]}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The endpoint is mounted at /ws/stream by the server.
package ws
