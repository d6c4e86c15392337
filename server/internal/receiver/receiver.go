package receiver

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/obsidianstack/statusroll/pkg/report"
	"github.com/obsidianstack/statusroll/pkg/tree"
	"github.com/obsidianstack/statusroll/server/internal/store"
)

// Outcome labels passed to the recorder.
const (
	ResultAccepted    = "accepted"
	ResultUnknownNode = "unknown_node"
	ResultNotLeaf     = "not_leaf"
	ResultSuperseded  = "superseded"
)

// Receiver implements report.ReportServiceServer.
// It applies each incoming leaf report to the store and answers with the
// current root status.
type Receiver struct {
	report.UnimplementedReportServiceServer
	store  *store.Store
	record func(result string)
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithRecorder sets a callback that observes the outcome of every report.
func WithRecorder(fn func(result string)) Option {
	return func(r *Receiver) { r.record = fn }
}

// New creates a Receiver that writes accepted reports to st.
func New(st *store.Store, opts ...Option) *Receiver {
	r := &Receiver{store: st, record: func(string) {}}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Report is the unary RPC handler called by agents.
// Payload decoding and authentication happen before this is called.
func (r *Receiver) Report(ctx context.Context, rep *report.Report) (*report.Ack, error) {
	changes, err := r.store.Report(rep)
	switch {
	case errors.Is(err, tree.ErrUnknownNode):
		r.record(ResultUnknownNode)
		return nil, grpcstatus.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrNotLeaf):
		r.record(ResultNotLeaf)
		return nil, grpcstatus.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, store.ErrSuperseded):
		// The agent must not retry an out-of-order report.
		r.record(ResultSuperseded)
		slog.Debug("receiver: report superseded", "node", rep.Node, "err", err)
		return &report.Ack{OK: true, Message: "superseded", RootStatus: r.store.RootStatus()}, nil
	case err != nil:
		return nil, grpcstatus.Error(codes.Internal, err.Error())
	}
	r.record(ResultAccepted)

	slog.Debug("receiver: report applied",
		"node", rep.Node,
		"status", rep.Status,
		"source", rep.Source,
		"changes", len(changes),
	)

	return &report.Ack{OK: true, Message: "accepted", RootStatus: r.store.RootStatus()}, nil
}
