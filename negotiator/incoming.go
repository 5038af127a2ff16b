package negotiator

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/sirupsen/logrus"
	"gitlab.com/NebulousLabs/errors"
)

type (
	// incomingConn is the subset of the IMAP client the incoming executor
	// relies on, narrowed so tests can substitute a fake connection.
	incomingConn interface {
		StartTLS(tlsConfig *tls.Config) error
		Login(username, password string) error
		Authenticate(saslClient sasl.Client) error
		Noop() error
		List(ref, name string, ch chan *imap.MailboxInfo) error
		Select(name string, readOnly bool) (*imap.MailboxStatus, error)
		Logout() error
		Close() error
		SetDeadline(t time.Time) error
	}

	// incomingDialFunc opens a transport to the endpoint and applies the
	// strategy's security mode, returning a connection that is ready for
	// authentication.
	incomingDialFunc func(ctx context.Context, strategy Strategy, params ConnectionParameters, timeout time.Duration) (incomingConn, error)

	// IncomingExecutor attempts a single strategy against an IMAP
	// endpoint.
	IncomingExecutor struct {
		staticDial    incomingDialFunc
		staticLogger  *logrus.Entry
		staticTimeout time.Duration
	}

	// IncomingSession is an authenticated IMAP session handed out by a
	// successful attempt.
	IncomingSession struct {
		staticConn incomingConn
		closeOnce  sync.Once
	}

	// imapConn adapts the go-imap client to the incomingConn interface,
	// keeping hold of the raw transport for deadline control.
	imapConn struct {
		*client.Client
		staticTransport net.Conn
	}
)

// SetDeadline bounds all pending and future I/O on the underlying
// transport.
func (c *imapConn) SetDeadline(t time.Time) error {
	return c.staticTransport.SetDeadline(t)
}

// Close tears down the raw transport. Used as a last resort when a clean
// logout is not possible, no socket may outlive a failed attempt.
func (c *imapConn) Close() error {
	return c.staticTransport.Close()
}

// dialIncoming opens an IMAP connection according to the given strategy.
func dialIncoming(ctx context.Context, strategy Strategy, params ConnectionParameters, timeout time.Duration) (incomingConn, error) {
	conn, err := dialTransport(ctx, strategy, params, timeout)
	if err != nil {
		return nil, err
	}
	c, err := client.New(conn)
	if err != nil {
		return nil, errors.Compose(errors.AddContext(err, "server greeting failed"), conn.Close())
	}
	ic := &imapConn{Client: c, staticTransport: conn}
	if strategy.Security == OpportunisticTLS {
		if err := ic.StartTLS(tlsConfig(strategy.Security, params.Host)); err != nil {
			return nil, errors.Compose(errors.AddContext(err, "STARTTLS upgrade failed"), conn.Close())
		}
	}
	return ic, nil
}

// NewIncomingExecutor creates a new executor for the incoming direction. A
// non-positive timeout selects the default attempt timeout.
func NewIncomingExecutor(logger *logrus.Logger, timeout time.Duration) *IncomingExecutor {
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	return &IncomingExecutor{
		staticDial:    dialIncoming,
		staticLogger:  logger.WithField("module", "IncomingExecutor"),
		staticTimeout: timeout,
	}
}

// Attempt opens a transport, performs the strategy's security handshake and
// authentication exchange, and runs a liveness check. Connections from
// failed attempts are always closed before returning.
func (e *IncomingExecutor) Attempt(ctx context.Context, strategy Strategy, params ConnectionParameters) AttemptResult {
	logger := e.staticLogger

	conn, err := e.staticDial(ctx, strategy, params, e.staticTimeout)
	if err != nil {
		logger.Debugf("dial failed for strategy '%v', err: %v", strategy.Name, err)
		return failedAttempt(strategy, err)
	}

	// force in-flight I/O to fail as soon as the caller aborts
	disarm := abortOnCancel(ctx, conn.SetDeadline)
	defer disarm()

	outcome, err := runAuthSteps(incomingAuthSteps(conn, strategy, params))
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
		Session:    &IncomingSession{staticConn: conn},
	}
}

// incomingAuthSteps returns the ordered auth sub-steps for the given
// strategy.
func incomingAuthSteps(conn incomingConn, strategy Strategy, params ConnectionParameters) []authStep {
	login := func(secret string) func() error {
		return func() error { return conn.Login(params.Username, secret) }
	}
	switch strategy.Auth {
	case AuthPassword:
		return []authStep{{name: "password login", run: login(params.Password)}}
	case AuthTokenAsPassword:
		return []authStep{{name: "token as password", run: login(params.Token)}}
	case AuthToken:
		return []authStep{
			{name: "token as password", run: login(params.Token)},
			{name: "OAUTHBEARER exchange", run: func() error {
				return conn.Authenticate(sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
					Username: params.Username,
					Token:    params.Token,
					Host:     params.Host,
				}))
			}},
			{name: "PLAIN with token", run: func() error {
				return conn.Authenticate(sasl.NewPlainClient("", params.Username, params.Token))
			}},
			{name: "password fallback", run: login(params.Password)},
		}
	}
	return nil
}

// Noop issues a NOOP on the session.
func (s *IncomingSession) Noop() error {
	return s.staticConn.Noop()
}

// Close logs out of the session. Safe to call more than once, only the
// first call takes effect.
func (s *IncomingSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.staticConn.Logout()
		if err != nil {
			err = errors.Compose(err, s.staticConn.Close())
		}
	})
	return err
}

// Mailboxes lists the names of all mailboxes available on the session.
func (s *IncomingSession) Mailboxes() ([]string, error) {
	mailboxes := make(chan *imap.MailboxInfo, 100)
	done := make(chan error, 1)
	go func() {
		done <- s.staticConn.List("", "*", mailboxes)
	}()

	var names []string
	for m := range mailboxes {
		names = append(names, m.Name)
	}
	if err := <-done; err != nil {
		return nil, errors.AddContext(err, "failed to list mailboxes")
	}
	return names, nil
}

// MailboxCount returns the number of messages in the given mailbox. The
// mailbox is opened read-only, probing must not mutate server state.
func (s *IncomingSession) MailboxCount(mailbox string) (uint32, error) {
	status, err := s.staticConn.Select(mailbox, true)
	if err != nil {
		return 0, errors.AddContext(err, fmt.Sprintf("failed to select mailbox '%v'", mailbox))
	}
	return status.Messages, nil
}

// failedAttempt builds a failed attempt result carrying the innermost
// diagnostic and, when a connection is passed, tears that connection down
// so no socket leaks across attempts.
func failedAttempt(strategy Strategy, err error, conns ...interface{ Close() error }) AttemptResult {
	for _, conn := range conns {
		_ = conn.Close()
	}
	return AttemptResult{
		Strategy:   strategy.Name,
		Diagnostic: err.Error(),
		Class:      Classify(err),
	}
}
