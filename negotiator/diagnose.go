package negotiator

import (
	"context"
	"net"
	"strings"
)

// FailureClass groups attempt failures into the handful of buckets a user
// can act on. Distinguishing "wrong password" from "TLS not supported on
// this port" is the whole point of the harness, collapsing them into one
// message would defeat it.
type FailureClass int

const (
	// ClassNone means the attempt did not fail.
	ClassNone FailureClass = iota

	// ClassTransportUnreachable covers connect failures, the host is
	// down, firewalled or the port is wrong.
	ClassTransportUnreachable

	// ClassHandshakeFailed covers TLS negotiation failures.
	ClassHandshakeFailed

	// ClassAuthRejected means the server refused the credentials.
	ClassAuthRejected

	// ClassMechanismUnsupported means the server does not implement the
	// attempted auth mechanism. Inside the token sub-fallback this means
	// "try the next sub-step", it is not a hard failure.
	ClassMechanismUnsupported

	// ClassLivenessFailed means the authenticated session did not respond
	// to a no-op, the session is unusable despite apparent success.
	ClassLivenessFailed

	// ClassTimeout means the attempt did not complete within its bound.
	ClassTimeout

	// ClassUnknown is everything else.
	ClassUnknown
)

// String returns a human readable representation of the failure class.
func (fc FailureClass) String() string {
	switch fc {
	case ClassNone:
		return "none"
	case ClassTransportUnreachable:
		return "transport unreachable"
	case ClassHandshakeFailed:
		return "TLS handshake failed"
	case ClassAuthRejected:
		return "authentication rejected"
	case ClassMechanismUnsupported:
		return "auth mechanism unsupported"
	case ClassLivenessFailed:
		return "liveness check failed"
	case ClassTimeout:
		return "timed out"
	default:
		return "unknown"
	}
}

// Classify maps an attempt error onto a failure class. It inspects the
// error chain where possible and falls back to matching well-known server
// response fragments.
func Classify(err error) FailureClass {
	if err == nil {
		return ClassNone
	}

	// timeouts, both deadline based and context based
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return ClassTimeout
	}
	if strings.Contains(err.Error(), context.DeadlineExceeded.Error()) ||
		strings.Contains(err.Error(), context.Canceled.Error()) {
		return ClassTimeout
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "timeout") || strings.Contains(s, "timed out") {
		return ClassTimeout
	}

	// connect failures
	if strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "no such host") ||
		strings.Contains(s, "network is unreachable") ||
		strings.Contains(s, "dial tcp") {
		return ClassTransportUnreachable
	}

	// TLS failures
	if strings.Contains(s, "x509:") ||
		strings.Contains(s, "starttls") ||
		(strings.Contains(s, "tls") && (strings.Contains(s, "handshake") || strings.Contains(s, "certificate"))) {
		return ClassHandshakeFailed
	}

	// unsupported auth mechanisms, checked before generic auth failures
	// since most servers phrase both with "authentication"
	if strings.Contains(s, "unsupported mechanism") ||
		strings.Contains(s, "mechanism not supported") ||
		strings.Contains(s, "unknown authentication mechanism") ||
		strings.Contains(s, "command not supported") ||
		strings.Contains(s, "504 ") {
		return ClassMechanismUnsupported
	}

	// credential rejections, SMTP enhanced status 5.7.8 and code 535 are
	// the common spellings
	if strings.Contains(s, "5.7.8") ||
		strings.Contains(s, "535 ") ||
		strings.Contains(s, "invalid credentials") ||
		strings.Contains(s, "authentication failed") ||
		strings.Contains(s, "login failed") ||
		strings.Contains(s, "username and password not accepted") {
		return ClassAuthRejected
	}

	if _, ok := err.(net.Error); ok {
		return ClassTransportUnreachable
	}
	return ClassUnknown
}
