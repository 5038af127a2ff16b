package negotiator

import (
	"fmt"
	"strings"
)

// remediation returns the static guidance shown when every strategy of a
// direction failed. The aggregated per-strategy diagnostics point at the
// failure class, these point at what to do about it.
func remediation(direction Direction) []string {
	suggestions := []string{
		"Verify your email credentials are correct",
		fmt.Sprintf("Check if your email provider allows %s access", protocolName(direction)),
		"Check if you need to enable 'Less secure app access' or create an app password",
	}
	switch direction {
	case Incoming:
		suggestions = append(suggestions,
			"Try using a different port (143 for non-SSL IMAP)",
		)
	case Outgoing:
		suggestions = append(suggestions,
			"Try using port 587 (TLS) instead of 465 (SSL)",
			"Check if your server requires a different authentication method",
		)
	}
	return suggestions
}

// protocolName returns the bare protocol name of a direction.
func protocolName(direction Direction) string {
	if direction == Incoming {
		return "IMAP"
	}
	return "SMTP"
}

// Render returns the human readable form of the report, one line per
// attempted strategy plus either a success confirmation with the
// verification summary or the full aggregated diagnostics with remediation
// guidance. Rendering is pure, the report is never mutated.
func (r NegotiationReport) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Testing %v ===\n", r.Direction)

	if r.Err != nil {
		fmt.Fprintf(&sb, "Error: %v\n", r.Err)
		return sb.String()
	}

	for _, attempt := range r.Attempts {
		if attempt.Succeeded {
			fmt.Fprintf(&sb, "[ OK ] %s: %s\n", attempt.Strategy, attempt.Diagnostic)
		} else {
			fmt.Fprintf(&sb, "[FAIL] %s: %s (%v)\n", attempt.Strategy, attempt.Diagnostic, attempt.Class)
		}
	}

	if !r.Succeeded {
		// no attempts without a fatal error means the negotiation was
		// aborted, remediation guidance would be misleading here
		if len(r.Attempts) == 0 {
			sb.WriteString("Negotiation aborted before any connection attempt.\n")
			return sb.String()
		}
		fmt.Fprintf(&sb, "All %s connection methods failed.\nSuggestions:\n", protocolName(r.Direction))
		for i, suggestion := range remediation(r.Direction) {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, suggestion)
		}
		return sb.String()
	}

	fmt.Fprintf(&sb, "Success with %s!\n", r.WinningStrategy)
	if r.Verification != nil {
		if r.Verification.Succeeded {
			sb.WriteString(indent(r.Verification.Summary))
		} else {
			fmt.Fprintf(&sb, "Verification failed: %s\n", r.Verification.Summary)
		}
	}
	return sb.String()
}

// indent prefixes every line of the given block with two spaces.
func indent(block string) string {
	lines := strings.Split(strings.TrimRight(block, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n") + "\n"
}
