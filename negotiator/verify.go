package negotiator

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	uuid "github.com/nu7hatch/gouuid"
	"gitlab.com/NebulousLabs/errors"
)

const (
	// maxListedMailboxes caps how many mailbox names the incoming
	// verification lists, the remainder is reported as a count.
	maxListedMailboxes = 3

	// primaryMailbox is the mailbox whose message count confirms the
	// session is usable for real work.
	primaryMailbox = "INBOX"

	// probeSubject is the subject line of the outgoing probe message.
	probeSubject = "Test Email Connection"
)

// VerifyIncoming confirms an authenticated incoming session is usable by
// enumerating a bounded prefix of the available mailboxes and reporting the
// message count of the primary mailbox. Its failure is a secondary outcome,
// it never retracts a successful negotiation.
func VerifyIncoming(session *IncomingSession) VerificationResult {
	names, err := session.Mailboxes()
	if err != nil {
		return VerificationResult{Summary: err.Error()}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Available mailboxes: %d", len(names))
	for i, name := range names {
		if i == maxListedMailboxes {
			break
		}
		fmt.Fprintf(&sb, "\n  - %s", name)
	}
	if len(names) > maxListedMailboxes {
		fmt.Fprintf(&sb, "\n  ... and %d more", len(names)-maxListedMailboxes)
	}

	// the message count is best effort, a listed catalog already proves
	// the session responds to real commands
	count, err := session.MailboxCount(primaryMailbox)
	if err == nil {
		fmt.Fprintf(&sb, "\n%s contains %d messages", primaryMailbox, count)
	}

	return VerificationResult{Succeeded: true, Summary: sb.String()}
}

// VerifyOutgoing confirms an authenticated outgoing session is usable by
// composing and transmitting a single probe message to the given recipient.
// This is a side-effecting, user-visible action, callers must only invoke
// it after explicit confirmation.
func VerifyOutgoing(session *OutgoingSession, from, recipient, method string) VerificationResult {
	msg, err := buildProbeMessage(from, recipient, method)
	if err != nil {
		return VerificationResult{Summary: errors.AddContext(err, "failed to compose probe message").Error()}
	}
	if err := session.Send(from, recipient, msg); err != nil {
		return VerificationResult{Summary: errors.AddContext(err, "failed to send probe message").Error()}
	}
	return VerificationResult{
		Succeeded: true,
		Summary:   fmt.Sprintf("Test email sent successfully to %s", recipient),
	}
}

// buildProbeMessage composes the probe message transmitted by the outgoing
// verification.
func buildProbeMessage(from, recipient, method string) (io.Reader, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, errors.AddContext(err, "failed to generate message id")
	}

	domain := from
	if at := strings.LastIndex(from, "@"); at != -1 {
		domain = from[at+1:]
	}

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: recipient}})
	h.SetSubject(probeSubject)
	h.SetMessageID(fmt.Sprintf("%s@%s", id.String(), domain))
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, errors.AddContext(err, "failed to create message writer")
	}
	body := fmt.Sprintf(
		"This is a test email sent at %s\n\n"+
			"This email confirms that your SMTP server configuration is working correctly.\n"+
			"Connection method: %s\n",
		time.Now().Format("2006-01-02 15:04:05"), method,
	)
	if _, err := io.WriteString(w, body); err != nil {
		return nil, errors.Compose(errors.AddContext(err, "failed to write message body"), w.Close())
	}
	if err := w.Close(); err != nil {
		return nil, errors.AddContext(err, "failed to finalize message")
	}
	return &buf, nil
}
