package negotiator

type (
	// Session is an authenticated, live protocol session handed out by a
	// successful attempt. It is exclusively owned by whoever holds it last
	// and must be closed exactly once, on every exit path.
	Session interface {
		// Noop issues a no-op protocol command on the session.
		Noop() error

		// Close terminates the session, logging out where the protocol
		// supports it.
		Close() error
	}

	// AttemptResult captures the outcome of attempting a single strategy.
	AttemptResult struct {
		// Strategy is the name of the attempted strategy.
		Strategy string

		// Succeeded indicates whether the attempt produced a usable
		// authenticated session.
		Succeeded bool

		// Diagnostic is the most specific failure reason available, or a
		// human readable confirmation on success.
		Diagnostic string

		// Class is the failure classification, ClassNone on success.
		Class FailureClass

		// Session is the open session, present only when Succeeded is
		// true.
		Session Session
	}

	// VerificationResult is the outcome of the post-success verification
	// action. Its failure is reported separately from negotiation failure.
	VerificationResult struct {
		Succeeded bool
		Summary   string
	}

	// NegotiationReport is the aggregated outcome of one negotiation. It
	// is constructed fresh per invocation and never mutated after return.
	NegotiationReport struct {
		// Direction is the protocol direction that was negotiated.
		Direction Direction

		// Succeeded indicates whether any strategy produced a usable
		// session.
		Succeeded bool

		// WinningStrategy is the name of the first successful strategy,
		// empty when the catalog was exhausted.
		WinningStrategy string

		// Attempts holds one entry per strategy tried, in catalog order,
		// ending with the first successful one.
		Attempts []AttemptResult

		// Verification holds the verification outcome, nil when no
		// verification was run.
		Verification *VerificationResult

		// Err is set when the negotiation aborted before any attempt was
		// made, which only happens on invalid parameters.
		Err error
	}
)

// Session returns the open session of the winning attempt, or nil when the
// negotiation failed. The caller that retains it owns it and has to close
// it exactly once.
func (r *NegotiationReport) Session() Session {
	for _, attempt := range r.Attempts {
		if attempt.Succeeded {
			return attempt.Session
		}
	}
	return nil
}
