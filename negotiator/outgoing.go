package negotiator

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/sirupsen/logrus"
	"gitlab.com/NebulousLabs/errors"
)

type (
	// outgoingConn is the subset of the SMTP client the outgoing executor
	// relies on, narrowed so tests can substitute a fake connection.
	outgoingConn interface {
		Auth(saslClient sasl.Client) error
		Noop() error
		Mail(from string, opts *smtp.MailOptions) error
		Rcpt(to string, opts *smtp.RcptOptions) error
		Data() (io.WriteCloser, error)
		Quit() error
		Close() error
		SetDeadline(t time.Time) error
	}

	// outgoingDialFunc opens a transport to the endpoint and applies the
	// strategy's security mode, returning a connection that is ready for
	// authentication.
	outgoingDialFunc func(ctx context.Context, strategy Strategy, params ConnectionParameters, timeout time.Duration) (outgoingConn, error)

	// OutgoingExecutor attempts a single strategy against an SMTP
	// endpoint.
	OutgoingExecutor struct {
		staticDial    outgoingDialFunc
		staticLogger  *logrus.Entry
		staticTimeout time.Duration
	}

	// OutgoingSession is an authenticated SMTP session handed out by a
	// successful attempt.
	OutgoingSession struct {
		staticConn outgoingConn
		closeOnce  sync.Once
	}

	// smtpConn adapts the go-smtp client to the outgoingConn interface,
	// keeping hold of the raw transport for deadline control.
	smtpConn struct {
		*smtp.Client
		staticTransport net.Conn
	}
)

// SetDeadline bounds all pending and future I/O on the underlying
// transport.
func (c *smtpConn) SetDeadline(t time.Time) error {
	return c.staticTransport.SetDeadline(t)
}

// dialOutgoing opens an SMTP connection according to the given strategy.
func dialOutgoing(ctx context.Context, strategy Strategy, params ConnectionParameters, timeout time.Duration) (outgoingConn, error) {
	conn, err := dialTransport(ctx, strategy, params, timeout)
	if err != nil {
		return nil, err
	}
	var client *smtp.Client
	if strategy.Security == OpportunisticTLS {
		client, err = smtp.NewClientStartTLS(conn, tlsConfig(strategy.Security, params.Host))
		if err != nil {
			return nil, errors.Compose(errors.AddContext(err, "STARTTLS upgrade failed"), conn.Close())
		}
	} else {
		client = smtp.NewClient(conn)
	}
	return &smtpConn{Client: client, staticTransport: conn}, nil
}

// NewOutgoingExecutor creates a new executor for the outgoing direction. A
// non-positive timeout selects the default attempt timeout.
func NewOutgoingExecutor(logger *logrus.Logger, timeout time.Duration) *OutgoingExecutor {
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	return &OutgoingExecutor{
		staticDial:    dialOutgoing,
		staticLogger:  logger.WithField("module", "OutgoingExecutor"),
		staticTimeout: timeout,
	}
}

// Attempt opens a transport, performs the strategy's security handshake and
// authentication exchange, and runs a liveness check. Connections from
// failed attempts are always closed before returning.
func (e *OutgoingExecutor) Attempt(ctx context.Context, strategy Strategy, params ConnectionParameters) AttemptResult {
	logger := e.staticLogger

	conn, err := e.staticDial(ctx, strategy, params, e.staticTimeout)
	if err != nil {
		logger.Debugf("dial failed for strategy '%v', err: %v", strategy.Name, err)
		return failedAttempt(strategy, err)
	}

	// force in-flight I/O to fail as soon as the caller aborts
	disarm := abortOnCancel(ctx, conn.SetDeadline)
	defer disarm()

	outcome, err := runAuthSteps(outgoingAuthSteps(conn, strategy, params))
	if err != nil {
		logger.Debugf("authentication failed for strategy '%v', err: %v", strategy.Name, err)
		return failedAttempt(strategy, err, conn)
	}

	// distinguish "authenticated" from "authenticated but unusable"
	if err := conn.Noop(); err != nil {
		logger.Debugf("liveness check failed for strategy '%v', err: %v", strategy.Name, err)
		result := failedAttempt(strategy, errors.AddContext(err, "liveness check failed"), conn)
		result.Class = ClassLivenessFailed
		return result
	}

	// the attempt deadline no longer applies to the surviving session
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return failedAttempt(strategy, errors.AddContext(err, "failed to clear attempt deadline"), conn)
	}

	return AttemptResult{
		Strategy:   strategy.Name,
		Succeeded:  true,
		Diagnostic: fmt.Sprintf("Successfully connected (%v, %s)", strategy.Security, outcome.describe()),
		Session:    &OutgoingSession{staticConn: conn},
	}
}

// outgoingAuthSteps returns the ordered auth sub-steps for the given
// strategy. SMTP servers that reject PLAIN outright get a LOGIN exchange
// with the same secret, mirroring what standard submission clients do.
func outgoingAuthSteps(conn outgoingConn, strategy Strategy, params ConnectionParameters) []authStep {
	loginExchange := func(secret string) func() error {
		return func() error {
			err := conn.Auth(sasl.NewPlainClient("", params.Username, secret))
			if err != nil && Classify(err) == ClassMechanismUnsupported {
				return conn.Auth(sasl.NewLoginClient(params.Username, secret))
			}
			return err
		}
	}
	switch strategy.Auth {
	case AuthPassword:
		return []authStep{{name: "password login", run: loginExchange(params.Password)}}
	case AuthTokenAsPassword:
		return []authStep{{name: "token as password", run: loginExchange(params.Token)}}
	case AuthToken:
		return []authStep{
			{name: "token as password", run: loginExchange(params.Token)},
			{name: "OAUTHBEARER exchange", run: func() error {
				return conn.Auth(sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
					Username: params.Username,
					Token:    params.Token,
					Host:     params.Host,
				}))
			}},
			{name: "PLAIN with token", run: func() error {
				return conn.Auth(sasl.NewPlainClient("", params.Username, params.Token))
			}},
			{name: "password fallback", run: loginExchange(params.Password)},
		}
	}
	return nil
}

// Noop issues a NOOP on the session.
func (s *OutgoingSession) Noop() error {
	return s.staticConn.Noop()
}

// Close quits the session. Safe to call more than once, only the first
// call takes effect.
func (s *OutgoingSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.staticConn.Quit()
		if err != nil {
			err = errors.Compose(err, s.staticConn.Close())
		}
	})
	return err
}

// Send transmits a single message over the session.
func (s *OutgoingSession) Send(from, to string, msg io.Reader) error {
	if err := s.staticConn.Mail(from, nil); err != nil {
		return errors.AddContext(err, "MAIL FROM rejected")
	}
	if err := s.staticConn.Rcpt(to, nil); err != nil {
		return errors.AddContext(err, "RCPT TO rejected")
	}
	w, err := s.staticConn.Data()
	if err != nil {
		return errors.AddContext(err, "DATA rejected")
	}
	if _, err := io.Copy(w, msg); err != nil {
		return errors.Compose(errors.AddContext(err, "failed to write message"), w.Close())
	}
	return w.Close()
}
