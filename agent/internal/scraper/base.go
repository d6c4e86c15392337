package scraper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/statusroll/agent/internal/config"
	"github.com/obsidianstack/statusroll/pkg/status"
)

// Observation is the outcome of one probe run for a single leaf node.
type Observation struct {
	Node       string
	Status     status.Status
	Detail     string
	Latency    time.Duration
	ObservedAt time.Time

	// Err is set when the probe could not complete. Status still carries the
	// verdict for that failure (red for an unreachable service, unknown when
	// only the measurement is missing).
	Err error
}

// Prober runs one health check. Probe never returns nil.
type Prober interface {
	Probe(ctx context.Context) *Observation
}

// New returns the Prober for the given probe configuration. HTTP clients are
// built once here and reused across runs.
func New(p config.Probe) (Prober, error) {
	switch p.Type {
	case config.ProbeHTTP, config.ProbePrometheus:
		client, err := buildHTTPClient(p)
		if err != nil {
			return nil, fmt.Errorf("scraper %q: build http client: %w", p.Node, err)
		}
		if p.Type == config.ProbeHTTP {
			return &httpProbe{probe: p, client: client}, nil
		}
		return &promProbe{probe: p, client: client}, nil
	case config.ProbeCert:
		return &certProbe{probe: p, now: time.Now}, nil
	default:
		return nil, fmt.Errorf("scraper: unsupported type %q", p.Type)
	}
}

func newObservation(node string) *Observation {
	return &Observation{Node: node, Status: status.Unknown, ObservedAt: time.Now().UTC()}
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the probe's auth and TLS settings.
func buildHTTPClient(p config.Probe) (*http.Client, error) {
	tlsCfg, err := buildTLSConfig(p)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg},
			auth: p.Auth,
		},
		Timeout: p.Timeout,
	}, nil
}

func buildTLSConfig(p config.Probe) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: p.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	if p.Auth.Mode != "mtls" {
		return tlsCfg, nil
	}

	cert, err := tls.LoadX509KeyPair(p.Auth.CertFile, p.Auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}
	tlsCfg.Certificates = []tls.Certificate{cert}

	if p.Auth.CAFile != "" {
		caPEM, err := os.ReadFile(p.Auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs found in ca file %q", p.Auth.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition. A partial result with a
// parse warning still counts as success.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// The bool is false when the family is absent or holds no samples.
func sumFamily(mf *dto.MetricFamily) (float64, bool) {
	if mf == nil {
		return 0, false
	}
	var total float64
	var seen bool
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		default:
			continue
		}
		seen = true
	}
	return total, seen
}
