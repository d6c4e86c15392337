// Package shipper sends leaf status reports to statusroll-server over gRPC
// (statusroll.v1.ReportService/Report, see pkg/report).
//
// Shipper.Ship() is non-blocking: results are converted to reports and placed
// in an in-memory channel (default capacity 1000). When the buffer is full the
// oldest entry is evicted so the latest status is always preserved.
//
// Shipper.Run() drains the buffer in a loop, reconnecting with truncated
// exponential backoff (1s→60s, ±25% jitter) on connection or send errors.
// Permanent gRPC errors (InvalidArgument, Unauthenticated, PermissionDenied,
// NotFound, FailedPrecondition) discard the report rather than retrying.
//
// Auth: mTLS via credentials.NewTLS(), API key via gRPC metadata header,
// or plaintext for local development.
package shipper
