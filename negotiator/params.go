package negotiator

import (
	"fmt"
	"net"
	"strconv"

	"gitlab.com/NebulousLabs/errors"
)

type (
	// ConnectionParameters bundles everything needed to reach and
	// authenticate against one mail endpoint. The value is immutable for
	// the duration of a negotiation.
	ConnectionParameters struct {
		// Host is the server hostname, without scheme or port.
		Host string

		// Port is the server port.
		Port int

		// Username is the account name used in every auth exchange.
		Username string

		// Password is the primary secret.
		Password string

		// Token is an optional bearer-style token. When empty, token
		// strategies are unavailable.
		Token string
	}
)

// Validate returns an error when no strategy could possibly succeed with the
// given parameters. This is the only fatal error class, it aborts a
// negotiation before any attempt is made.
func (p ConnectionParameters) Validate() error {
	if p.Host == "" {
		return errors.New("missing server host")
	}
	if p.Username == "" {
		return errors.New("missing username")
	}
	if p.Port <= 0 {
		return errors.New(fmt.Sprintf("invalid port %d", p.Port))
	}
	return nil
}

// HasToken returns true when a token was supplied.
func (p ConnectionParameters) HasToken() bool {
	return p.Token != ""
}

// address returns the dial address for the given strategy, honouring the
// strategy's port override.
func (p ConnectionParameters) address(strategy Strategy) string {
	port := p.Port
	if strategy.PortOverride != 0 {
		port = strategy.PortOverride
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}
