package shipper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/obsidianstack/statusroll/agent/internal/compute"
	"github.com/obsidianstack/statusroll/agent/internal/config"
	"github.com/obsidianstack/statusroll/pkg/report"
	"github.com/obsidianstack/statusroll/pkg/status"
)

const sendTimeout = 10 * time.Second

// Shipper buffers reports and sends them to statusroll-server via gRPC.
// Ship is non-blocking; when the buffer is full the oldest report is evicted.
// Run must be called in a goroutine to drain the buffer and handle reconnection.
type Shipper struct {
	cfg    config.AgentConfig
	buf    chan *report.Report
	dialFn dialFunc

	// pending is the report whose send failed with a transient error. It is
	// retried before anything in buf so a node's reports stay in order.
	// Only the Run goroutine touches it.
	pending *report.Report

	root atomic.Uint32 // last root status acknowledged by the server
}

// dialFunc opens a gRPC connection. Tests replace it with a loopback dialer.
type dialFunc func(ctx context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error)

// New creates a Shipper using the given agent config.
func New(cfg config.AgentConfig) *Shipper {
	s := &Shipper{
		cfg:    cfg,
		buf:    make(chan *report.Report, cfg.BufferSize),
		dialFn: defaultDial,
	}
	s.root.Store(uint32(status.Unknown))
	return s
}

// Ship converts res to a report and enqueues it, evicting the oldest
// buffered report if there is no room.
func (s *Shipper) Ship(res *compute.Result) {
	r := toReport(res, s.cfg.ID)
	select {
	case s.buf <- r:
	default:
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest report",
				"node", old.Node, "buffer_cap", cap(s.buf))
		default:
		}
		// Another caller may have taken the freed slot.
		select {
		case s.buf <- r:
		default:
			slog.Warn("shipper: buffer full, dropped report",
				"node", r.Node, "buffer_cap", cap(s.buf))
		}
	}
}

// RootStatus returns the root status carried by the last accepted report.
func (s *Shipper) RootStatus() status.Status {
	return status.Status(s.root.Load())
}

// Run drains the buffer, reconnecting with exponential backoff when the
// connection is lost. Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dialFn(ctx, s.cfg.ServerEndpoint, s.cfg)
		if err != nil {
			wait := bo.next()
			slog.Error("shipper: dial failed, will retry",
				"endpoint", s.cfg.ServerEndpoint, "err", err, "retry_in", wait)
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		slog.Info("shipper: connected", "endpoint", s.cfg.ServerEndpoint)
		bo.reset()

		err = s.drain(ctx, report.NewReportServiceClient(conn))
		conn.Close()
		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("shipper: connection lost, will reconnect",
			"endpoint", s.cfg.ServerEndpoint, "err", err, "retry_in", wait)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// drain sends the pending report, then buffered reports, until a transient
// error or ctx cancellation.
func (s *Shipper) drain(ctx context.Context, client report.ReportServiceClient) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		r := s.pending
		if r == nil {
			select {
			case <-ctx.Done():
				return nil
			case r = <-s.buf:
			}
		}
		s.pending = nil

		sendCtx, cancel := context.WithTimeout(s.withAuth(ctx), sendTimeout)
		ack, err := client.Report(sendCtx, r)
		cancel()

		if err != nil {
			if isPermanentError(err) {
				slog.Error("shipper: permanent send error, discarding report",
					"node", r.Node, "code", grpcstatus.Code(err), "err", err)
				continue
			}
			s.pending = r
			return fmt.Errorf("send: %w", err)
		}

		if !ack.OK {
			slog.Warn("shipper: server rejected report", "node", r.Node, "message", ack.Message)
			continue
		}
		s.root.Store(uint32(ack.RootStatus))
		slog.Debug("shipper: report delivered",
			"node", r.Node, "status", r.Status, "root_status", ack.RootStatus, "message", ack.Message)
	}
}

func (s *Shipper) withAuth(ctx context.Context) context.Context {
	if s.cfg.ServerAuth.Mode != "apikey" || s.cfg.ServerAuth.KeyEnv == "" {
		return ctx
	}
	header := s.cfg.ServerAuth.Header
	if header == "" {
		header = "x-api-key"
	}
	return metadata.AppendToOutgoingContext(ctx, header, s.cfg.ServerAuth.Key())
}

// isPermanentError reports whether retrying the same report cannot succeed.
// NotFound and FailedPrecondition mean the node is missing from the server's
// tree or is not a leaf; the report is dropped until the config changes.
func isPermanentError(err error) bool {
	switch grpcstatus.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied,
		codes.NotFound, codes.FailedPrecondition:
		return true
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func defaultDial(ctx context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error) {
	opts, err := dialOptions(cfg)
	if err != nil {
		return nil, err
	}
	return grpc.DialContext(ctx, endpoint, opts...) //nolint:staticcheck // DialContext kept for grpc <1.63 compat
}

func dialOptions(cfg config.AgentConfig) ([]grpc.DialOption, error) {
	if cfg.ServerAuth.Mode == "mtls" {
		creds, err := buildMTLSCreds(cfg.ServerAuth)
		if err != nil {
			return nil, fmt.Errorf("shipper: build mtls creds: %w", err)
		}
		return []grpc.DialOption{grpc.WithTransportCredentials(creds)}, nil
	}
	// apikey rides in per-call metadata; none is plaintext for local use.
	return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, nil
}

func buildMTLSCreds(auth config.AuthConfig) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}

	if auth.CAFile != "" {
		caPEM, err := os.ReadFile(auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs in ca file %q", auth.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	return credentials.NewTLS(tlsCfg), nil
}
