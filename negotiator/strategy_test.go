package negotiator

import (
	"testing"
)

// TestCatalog is a unit test that covers the strategy catalogs of both
// directions.
func TestCatalog(t *testing.T) {
	t.Parallel()

	// the incoming catalog without a token
	incoming := Catalog(Incoming, false)
	if len(incoming) != 2 {
		t.Fatal("unexpected number of strategies", len(incoming))
	}
	if incoming[0].Name != "Standard SSL" || incoming[0].Security != ImplicitTLS || incoming[0].Auth != AuthPassword {
		t.Fatal("unexpected first strategy", incoming[0])
	}
	if incoming[1].Name != "Without SSL Verification" || incoming[1].Security != Unverified {
		t.Fatal("unexpected second strategy", incoming[1])
	}

	// a supplied token appends the token strategy with full sub-fallback
	incoming = Catalog(Incoming, true)
	if len(incoming) != 3 {
		t.Fatal("unexpected number of strategies", len(incoming))
	}
	last := incoming[len(incoming)-1]
	if last.Name != "With Token Authentication" || last.Auth != AuthToken {
		t.Fatal("unexpected token strategy", last)
	}

	// the outgoing catalog without a token
	outgoing := Catalog(Outgoing, false)
	if len(outgoing) != 3 {
		t.Fatal("unexpected number of strategies", len(outgoing))
	}
	if outgoing[0].Name != "SSL Connection" || outgoing[0].Security != ImplicitTLS {
		t.Fatal("unexpected first strategy", outgoing[0])
	}
	if outgoing[1].Name != "TLS Connection" || outgoing[1].Security != OpportunisticTLS {
		t.Fatal("unexpected second strategy", outgoing[1])
	}
	if outgoing[1].PortOverride != 587 {
		t.Fatal("expected the STARTTLS strategy to probe the submission port, got", outgoing[1].PortOverride)
	}
	if outgoing[2].Name != "SSL Without Verification" || outgoing[2].Security != Unverified {
		t.Fatal("unexpected third strategy", outgoing[2])
	}

	// the outgoing token strategy uses token-as-password without fallback
	outgoing = Catalog(Outgoing, true)
	last = outgoing[len(outgoing)-1]
	if last.Name != "With Token Authentication" || last.Auth != AuthTokenAsPassword {
		t.Fatal("unexpected token strategy", last)
	}
}

// TestParamsAddress is a unit test that covers the dial address helper,
// including the strategy port override.
func TestParamsAddress(t *testing.T) {
	t.Parallel()

	params := ConnectionParameters{Host: "smtp.example.com", Port: 465, Username: "user@example.com"}
	if addr := params.address(Strategy{}); addr != "smtp.example.com:465" {
		t.Fatal("unexpected address", addr)
	}
	if addr := params.address(Strategy{PortOverride: 587}); addr != "smtp.example.com:587" {
		t.Fatal("unexpected address", addr)
	}
}

// TestParamsValidate is a unit test that covers parameter validation.
func TestParamsValidate(t *testing.T) {
	t.Parallel()

	valid := ConnectionParameters{Host: "mail.example.com", Port: 993, Username: "user@example.com"}
	if err := valid.Validate(); err != nil {
		t.Fatal(err)
	}

	cases := []ConnectionParameters{
		{Port: 993, Username: "user@example.com"},
		{Host: "mail.example.com", Port: 993},
		{Host: "mail.example.com", Port: 0, Username: "user@example.com"},
	}
	for _, params := range cases {
		if err := params.Validate(); err == nil {
			t.Fatal("expected a validation error for", params)
		}
	}
}
