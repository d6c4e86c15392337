package scraper

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/obsidianstack/statusroll/agent/internal/config"
	"github.com/obsidianstack/statusroll/pkg/status"
)

type certProbe struct {
	probe config.Probe
	now   func() time.Time
}

// Probe dials the TLS endpoint and grades the leaf certificate: expired is
// red, expiring within warn_days is yellow, anything else green. A host that
// cannot be reached over TLS is red.
func (p *certProbe) Probe(ctx context.Context) *Observation {
	obs := newObservation(p.probe.Node)

	addr, err := dialAddr(p.probe.Endpoint)
	if err != nil {
		obs.Err = err
		obs.Detail = err.Error()
		return obs
	}

	timeout := p.probe.Timeout
	if timeout <= 0 {
		timeout = config.DefaultProbeTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tlsCfg, err := buildTLSConfig(p.probe)
	if err != nil {
		obs.Err = err
		obs.Detail = err.Error()
		return obs
	}
	dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: tlsCfg}

	start := time.Now()
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	obs.Latency = time.Since(start)
	if err != nil {
		obs.Status = status.Red
		obs.Err = fmt.Errorf("cert probe %q: %w", p.probe.Node, err)
		obs.Detail = "unreachable"
		return obs
	}
	defer conn.Close()

	peers := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(peers) == 0 {
		obs.Status = status.Red
		obs.Detail = "no peer certificate"
		return obs
	}

	leaf := peers[0]
	now := p.now()
	daysLeft := int(math.Floor(leaf.NotAfter.Sub(now).Hours() / 24))

	switch {
	case !now.Before(leaf.NotAfter):
		obs.Status = status.Red
		obs.Detail = fmt.Sprintf("certificate expired %s", leaf.NotAfter.UTC().Format(time.RFC3339))
	case daysLeft <= p.probe.WarnDays:
		obs.Status = status.Yellow
		obs.Detail = fmt.Sprintf("certificate expires in %d days", daysLeft)
	default:
		obs.Status = status.Green
		obs.Detail = fmt.Sprintf("certificate valid for %d days", daysLeft)
	}
	return obs
}

// dialAddr accepts host:port or an https URL and returns host:port, defaulting
// to 443.
func dialAddr(endpoint string) (string, error) {
	host := endpoint
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", fmt.Errorf("parse endpoint: %w", err)
		}
		if u.Scheme != "https" {
			return "", fmt.Errorf("endpoint %q: cert probes need https", endpoint)
		}
		host = u.Host
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}
	return host, nil
}
