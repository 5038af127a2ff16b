package negotiator

const (
	// submissionPort is the well-known STARTTLS submission port. The
	// outgoing catalog probes it explicitly because many providers only
	// accept opportunistic TLS there, regardless of the configured port.
	submissionPort = 587
)

type (
	// SecurityMode describes how the transport is secured before any
	// credentials are sent over it.
	SecurityMode int

	// AuthMode describes which authentication exchange is performed once
	// the transport is secured.
	AuthMode int

	// Direction identifies which protocol direction a negotiation targets.
	Direction int

	// Strategy pairs a transport security mode with an authentication
	// mode. A strategy is attempted as one unit, a catalog of strategies
	// encodes the priority order in which they are tried.
	Strategy struct {
		// Name is the human readable identifier of the strategy, it is
		// used in attempt results and in the final report.
		Name string

		// Security is the transport security mode of the strategy.
		Security SecurityMode

		// Auth is the authentication mode of the strategy.
		Auth AuthMode

		// PortOverride, when non-zero, replaces the configured port for
		// this strategy only.
		PortOverride int
	}
)

const (
	// ImplicitTLS secures the transport before any protocol exchange and
	// verifies the server certificate.
	ImplicitTLS SecurityMode = iota

	// OpportunisticTLS connects in clear text and upgrades the transport
	// with an explicit STARTTLS before credentials are sent.
	OpportunisticTLS

	// Unverified is implicit TLS with certificate verification disabled,
	// it accepts self-signed and mismatched certificates. This is a
	// deliberate diagnostic relaxation, not a production default.
	Unverified
)

const (
	// AuthPassword performs a standard login exchange with the username
	// and password.
	AuthPassword AuthMode = iota

	// AuthToken runs the ordered token sub-fallback, trying the token as
	// a password, then a bearer challenge-response exchange, then a PLAIN
	// exchange embedding the token, finally falling back to the password.
	AuthToken

	// AuthTokenAsPassword uses the token in a standard login exchange
	// without any further fallback.
	AuthTokenAsPassword
)

const (
	// Incoming is the mail retrieval direction (IMAP).
	Incoming Direction = iota

	// Outgoing is the mail submission direction (SMTP).
	Outgoing
)

// String returns a human readable representation of the security mode.
func (sm SecurityMode) String() string {
	switch sm {
	case ImplicitTLS:
		return "implicit TLS"
	case OpportunisticTLS:
		return "STARTTLS"
	case Unverified:
		return "implicit TLS (no verification)"
	default:
		return "unknown"
	}
}

// String returns a human readable representation of the auth mode.
func (am AuthMode) String() string {
	switch am {
	case AuthPassword:
		return "password"
	case AuthToken:
		return "token"
	case AuthTokenAsPassword:
		return "token as password"
	default:
		return "unknown"
	}
}

// String returns a human readable representation of the direction.
func (d Direction) String() string {
	switch d {
	case Incoming:
		return "IMAP (Incoming Mail)"
	case Outgoing:
		return "SMTP (Outgoing Mail)"
	default:
		return "unknown"
	}
}

// Catalog returns the fixed, ordered list of strategies for the given
// direction. The order is a priority list, the most standards-compliant
// method is tried first and the most permissive last. Token strategies are
// included only when the caller supplied a token.
func Catalog(direction Direction, hasToken bool) []Strategy {
	var strategies []Strategy
	switch direction {
	case Incoming:
		strategies = []Strategy{
			{Name: "Standard SSL", Security: ImplicitTLS, Auth: AuthPassword},
			{Name: "Without SSL Verification", Security: Unverified, Auth: AuthPassword},
		}
		if hasToken {
			strategies = append(strategies, Strategy{
				Name:     "With Token Authentication",
				Security: Unverified,
				Auth:     AuthToken,
			})
		}
	case Outgoing:
		strategies = []Strategy{
			{Name: "SSL Connection", Security: ImplicitTLS, Auth: AuthPassword},
			{Name: "TLS Connection", Security: OpportunisticTLS, Auth: AuthPassword, PortOverride: submissionPort},
			{Name: "SSL Without Verification", Security: Unverified, Auth: AuthPassword},
		}
		if hasToken {
			strategies = append(strategies, Strategy{
				Name:     "With Token Authentication",
				Security: Unverified,
				Auth:     AuthTokenAsPassword,
			})
		}
	}
	return strategies
}
