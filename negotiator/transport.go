package negotiator

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"gitlab.com/NebulousLabs/errors"
)

const (
	// defaultAttemptTimeout bounds a single attempt, covering connect,
	// TLS handshake, authentication and the liveness check. One
	// unreachable strategy must not stall the entire catalog.
	defaultAttemptTimeout = 15 * time.Second
)

// tlsConfig returns the TLS client configuration for the given security
// mode. The unverified and opportunistic modes disable certificate
// verification, matching the relaxed posture of a diagnostic tool that has
// to work against self-signed and mismatched certificates.
func tlsConfig(security SecurityMode, host string) *tls.Config {
	return &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: security != ImplicitTLS,
	}
}

// dialTransport opens the raw transport for one attempt and applies the
// strategy's security mode as far as the transport level goes. For the
// implicit TLS modes the handshake is completed before returning, for
// opportunistic TLS the caller upgrades at the protocol level. The whole
// attempt shares a single deadline set here.
func dialTransport(ctx context.Context, strategy Strategy, params ConnectionParameters, timeout time.Duration) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", params.address(strategy))
	if err != nil {
		return nil, errors.AddContext(err, "connect failed")
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, errors.Compose(errors.AddContext(err, "failed to set attempt deadline"), conn.Close())
	}

	if strategy.Security == ImplicitTLS || strategy.Security == Unverified {
		tlsConn := tls.Client(conn, tlsConfig(strategy.Security, params.Host))
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return nil, errors.Compose(errors.AddContext(err, "TLS handshake failed"), conn.Close())
		}
		return tlsConn, nil
	}
	return conn, nil
}

// abortOnCancel arms a watchdog that forces any in-flight I/O on the
// given connection to fail as soon as the context is cancelled. The
// returned disarm function must be called before the attempt outcome is
// finalized.
func abortOnCancel(ctx context.Context, setDeadline func(time.Time) error) (disarm func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = setDeadline(time.Now())
		case <-done:
		}
	}()
	return func() { close(done) }
}
