// Package report defines the wire contract between statusroll agents and the
// server: a single unary gRPC method, statusroll.v1.ReportService/Report,
// carrying google.protobuf.Struct payloads.
//
// Request fields:
//
//	node              string  leaf node name (required)
//	status            string  green | yellow | red | unknown (required)
//	source            string  reporting agent or probe
//	detail            string  free-form explanation
//	observed_at_unix  number  seconds since the epoch, millisecond precision
//
// Response fields:
//
//	ok           bool
//	message      string
//	root_status  string  status of the tree's first root after recompute
//
// Struct payloads keep the service usable without generated stubs; the
// ServiceDesc below is registered by hand.
package report
