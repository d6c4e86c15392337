// Package receiver implements report.ReportServiceServer, the gRPC endpoint
// that accepts leaf status reports from agents.
//
// Receiver.Report hands the report to the store and maps its errors onto gRPC
// codes: an unknown node is codes.NotFound and a derived node is
// codes.FailedPrecondition. Malformed payloads never reach the receiver; the
// service handler rejects them with codes.InvalidArgument. Authentication is
// enforced upstream by the gRPC server interceptor (see package auth).
//
// New(st) wires the receiver to the given store.
package receiver
